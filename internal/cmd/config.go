package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/Iron-Ham/logkeeper/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify the logging configuration",
	Long: `View or modify the logging configuration.

Without arguments, displays the current configuration. Every change is
validated: invalid values are replaced by safe defaults and reported.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the log config file.

Valid keys:
  level              - Minimum level, 0 (TRACE) to 5 (FATAL)
  enableFile         - Write log files (true/false)
  enableConsole      - Print entries to the console (true/false)
  logDir             - Directory holding the date folders
  maxFileSize        - Rotate a file at this size, in MB
  maxFiles           - Rotated files kept per log file
  retentionDays      - Delete files older than this many days
  enableCompression  - Gzip rotated files (true/false)
  bufferSize         - Buffered entries per file before a flush
  flushInterval      - Milliseconds between timed flushes`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the default configuration",
	RunE:  runConfigReset,
}

var configExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write the configuration as JSON to a file or stdout",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigExport,
}

var configImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Apply settings from a JSON file",
	Long: `Apply the known settings of a JSON document. Unknown keys and values of
the wrong type are ignored; the rest is validated like 'config set'.`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigImport,
}

var configBackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Copy the config file to a timestamped backup",
	RunE:  runConfigBackup,
}

var configBackupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "List config backups, oldest first",
	RunE:  runConfigBackups,
}

var configRestoreCmd = &cobra.Command{
	Use:   "restore <backup>",
	Short: "Replace the config file with a backup",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigRestore,
}

var configWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print the configuration whenever the file changes",
	RunE:  runConfigWatch,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

var configShowYAML bool

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configResetCmd)
	configCmd.AddCommand(configExportCmd)
	configCmd.AddCommand(configImportCmd)
	configCmd.AddCommand(configBackupCmd)
	configCmd.AddCommand(configBackupsCmd)
	configCmd.AddCommand(configRestoreCmd)
	configCmd.AddCommand(configWatchCmd)
	configCmd.AddCommand(configPathCmd)

	configShowCmd.Flags().BoolVar(&configShowYAML, "yaml", false, "Show the configuration as YAML")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	m := openConfig(cmd)
	w := out(cmd)

	if configShowYAML {
		return writeYAML(cmd, m.Get())
	}

	fmt.Fprintf(w, "Config file: %s\n\n", m.Path())
	_, err := m.WriteTo(w)
	return err
}

// writeYAML renders cfg with the same key names as the JSON file.
func writeYAML(cmd *cobra.Command, cfg config.LogConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return err
	}
	enc := yaml.NewEncoder(out(cmd))
	enc.SetIndent(2)
	if err := enc.Encode(fields); err != nil {
		return err
	}
	return enc.Close()
}

// configKeys maps each settable key to its value kind.
var configKeys = map[string]string{
	"level":             "int",
	"enableFile":        "bool",
	"enableConsole":     "bool",
	"logDir":            "string",
	"maxFileSize":       "float",
	"maxFiles":          "int",
	"retentionDays":     "int",
	"enableCompression": "bool",
	"bufferSize":        "int",
	"flushInterval":     "int",
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	kind, ok := configKeys[key]
	if !ok {
		valid := make([]string, 0, len(configKeys))
		for k := range configKeys {
			valid = append(valid, k)
		}
		sort.Strings(valid)
		return fmt.Errorf("invalid config key: %s\nValid keys: %s", key, strings.Join(valid, ", "))
	}

	patch, err := buildPatch(key, kind, value)
	if err != nil {
		return err
	}

	m := openConfig(cmd)
	cfg := m.UpdateConfig(patch)
	fmt.Fprintf(out(cmd), "Set %s = %v\n", key, configValue(cfg, key))
	return nil
}

func buildPatch(key, kind, value string) (config.Patch, error) {
	var p config.Patch
	switch kind {
	case "bool":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return p, fmt.Errorf("invalid boolean value for %s: %s", key, value)
		}
		switch key {
		case "enableFile":
			p.EnableFile = &b
		case "enableConsole":
			p.EnableConsole = &b
		case "enableCompression":
			p.EnableCompression = &b
		}
	case "int":
		n, err := strconv.Atoi(value)
		if err != nil {
			return p, fmt.Errorf("invalid integer value for %s: %s", key, value)
		}
		switch key {
		case "level":
			p.Level = &n
		case "maxFiles":
			p.MaxFiles = &n
		case "retentionDays":
			p.RetentionDays = &n
		case "bufferSize":
			p.BufferSize = &n
		case "flushInterval":
			p.FlushInterval = &n
		}
	case "float":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return p, fmt.Errorf("invalid number value for %s: %s", key, value)
		}
		p.MaxFileSize = &f
	case "string":
		p.LogDir = &value
	}
	return p, nil
}

// configValue reads key from cfg through its JSON form.
func configValue(cfg config.LogConfig, key string) any {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}
	return fields[key]
}

// parseScalar keeps numbers and booleans typed.
func parseScalar(s string) any {
	if b, err := strconv.ParseBool(s); err == nil && (s == "true" || s == "false") {
		return b
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func runConfigReset(cmd *cobra.Command, args []string) error {
	m := openConfig(cmd)
	m.ResetToDefault(config.Default())
	fmt.Fprintf(out(cmd), "Configuration reset to defaults in %s\n", m.Path())
	return nil
}

func runConfigExport(cmd *cobra.Command, args []string) error {
	m := openConfig(cmd)
	if len(args) == 0 {
		_, err := m.WriteTo(out(cmd))
		return err
	}
	if err := os.WriteFile(args[0], []byte(m.ExportConfig()), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", args[0], err)
	}
	fmt.Fprintf(out(cmd), "Configuration exported to %s\n", args[0])
	return nil
}

func runConfigImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	m := openConfig(cmd)
	if err := m.ImportConfig(data); err != nil {
		return err
	}
	fmt.Fprintf(out(cmd), "Configuration imported from %s\n", args[0])
	return nil
}

func runConfigBackup(cmd *cobra.Command, args []string) error {
	m := openConfig(cmd)
	path, err := m.CreateBackup()
	if err != nil {
		return err
	}
	fmt.Fprintf(out(cmd), "Backup created: %s\n", path)
	return nil
}

func runConfigBackups(cmd *cobra.Command, args []string) error {
	m := openConfig(cmd)
	backups := m.ListBackups()
	if len(backups) == 0 {
		fmt.Fprintln(out(cmd), "No backups")
		return nil
	}
	for _, b := range backups {
		fmt.Fprintln(out(cmd), b)
	}
	return nil
}

func runConfigRestore(cmd *cobra.Command, args []string) error {
	m := openConfig(cmd)
	if err := m.RestoreFromBackup(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(out(cmd), "Configuration restored from %s\n", args[0])
	return nil
}

func runConfigWatch(cmd *cobra.Command, args []string) error {
	m := openConfig(cmd)
	defer func() { _ = m.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return watchConfig(ctx, cmd, m)
}

// watchConfig prints the configuration on every change until ctx is done.
func watchConfig(ctx context.Context, cmd *cobra.Command, m *config.Manager) error {
	unsubscribe := m.Watch(func(cfg config.LogConfig) {
		fmt.Fprintln(out(cmd), "Configuration changed:")
		_ = writeYAML(cmd, cfg)
	})
	defer unsubscribe()

	if err := m.WatchFile(); err != nil {
		return err
	}
	fmt.Fprintf(out(cmd), "Watching %s (Ctrl+C to stop)\n", m.Path())
	<-ctx.Done()
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	fmt.Fprintln(out(cmd), openConfig(cmd).Path())
	return nil
}
