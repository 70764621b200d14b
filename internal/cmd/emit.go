package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Iron-Ham/logkeeper/internal/logging"
	"github.com/spf13/cobra"
)

var emitCmd = &cobra.Command{
	Use:   "emit <message>",
	Short: "Write one entry to the application log",
	Long: `Emit writes a structured entry through the same pipeline the
application uses: level filtering, console output and the buffered log file.
The entry is flushed before the command exits.

Examples:
  logkeeper emit "backup finished" --category FILE --file backup.go
  logkeeper emit "sync failed" -l error --error "timeout" --txn
  logkeeper emit "cache warmed" --data entries=1200 --data ms=35 --print json
  logkeeper emit "exported" --out entry.csv --print csv`,
	Args: cobra.ExactArgs(1),
	RunE: runEmit,
}

var (
	emitLevel    string
	emitSource   string
	emitCategory string
	emitFile     string
	emitData     []string
	emitError    string
	emitTxn      bool
	emitUser     string
	emitSession  string
	emitPrint    string
	emitOut      string
)

func init() {
	emitCmd.Flags().StringVarP(&emitLevel, "level", "l", "info", "Entry level: "+strings.ToLower(strings.Join(logging.ValidLevels(), ", ")))
	emitCmd.Flags().StringVarP(&emitSource, "source", "s", string(logging.SourceMain), "Entry source: MAIN, RENDERER or PRELOAD")
	emitCmd.Flags().StringVar(&emitCategory, "category", string(logging.CategoryApp), "Entry category: "+strings.Join(categoryNames(), ", "))
	emitCmd.Flags().StringVar(&emitFile, "file", "cli", "Filename recorded in the entry")
	emitCmd.Flags().StringArrayVar(&emitData, "data", nil, "Data field as key=value (repeatable)")
	emitCmd.Flags().StringVar(&emitError, "error", "", "Attach an error message")
	emitCmd.Flags().BoolVar(&emitTxn, "txn", false, "Tag the entry with a new transaction id")
	emitCmd.Flags().StringVar(&emitUser, "user", "", "User id")
	emitCmd.Flags().StringVar(&emitSession, "session", "", "Session id")
	emitCmd.Flags().StringVar(&emitPrint, "print", "", "Also print the entry to stdout in this format: "+strings.Join(logging.ExportFormats(), ", "))
	emitCmd.Flags().StringVarP(&emitOut, "out", "o", "", "Also write the entry to this file, in the --print format (default: json)")
	rootCmd.AddCommand(emitCmd)
}

func runEmit(cmd *cobra.Command, args []string) error {
	level, ok := logging.ParseLevel(emitLevel)
	if !ok {
		return fmt.Errorf("invalid level %q (valid: %s)", emitLevel, strings.Join(logging.ValidLevels(), ", "))
	}
	source := logging.Source(strings.ToUpper(emitSource))
	switch source {
	case logging.SourceMain, logging.SourceRenderer, logging.SourcePreload:
	default:
		return fmt.Errorf("invalid source %q (valid: MAIN, RENDERER, PRELOAD)", emitSource)
	}
	category, err := parseCategory(emitCategory)
	if err != nil {
		return err
	}
	var printFormat logging.ExportFormat
	if emitPrint != "" {
		if printFormat, err = logging.ParseExportFormat(emitPrint); err != nil {
			return err
		}
	}

	entry := logging.Entry{
		Timestamp: logging.Timestamp(time.Now()),
		Source:    source,
		Level:     level,
		Process:   logging.ProcessInfo{Type: "cli", PID: os.Getpid()},
		Module:    logging.ModuleInfo{Category: category, Filename: emitFile},
		Message:   args[0],
		UserID:    emitUser,
		SessionID: emitSession,
	}
	if len(emitData) > 0 {
		data, err := parseData(emitData)
		if err != nil {
			return err
		}
		entry.Data = data
	}
	if emitError != "" {
		entry.Error = &logging.ErrorInfo{Name: "Error", Message: emitError}
	}
	if emitTxn {
		entry.TransactionID = logging.NewTransactionID()
	}

	manager := openConfig(cmd)
	svc := logging.NewService(manager,
		logging.WithSource(overrideSource{manager: manager, logDir: logDirFlag()}),
		logging.WithConsole(logging.NewConsoleSink(cmd.OutOrStdout(), cmd.ErrOrStderr())),
		logging.WithServiceLogger(diagLogger(cmd)),
		logging.WithFileOptions(logging.WithCleanupInterval(0)),
	)
	svc.Write(entry)
	if err := svc.Close(); err != nil {
		return err
	}

	if emitOut != "" {
		format := printFormat
		if format == "" {
			format = logging.ExportJSON
		}
		if err := logging.ExportFile([]logging.Entry{entry}, emitOut, format); err != nil {
			return err
		}
	}
	if printFormat != "" {
		return logging.Export(out(cmd), []logging.Entry{entry}, printFormat)
	}
	return nil
}

func categoryNames() []string {
	categories := logging.Categories()
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = string(c)
	}
	return names
}

// parseCategory accepts a known category in any case.
func parseCategory(s string) (logging.Category, error) {
	want := logging.Category(strings.ToUpper(s))
	for _, c := range logging.Categories() {
		if c == want {
			return c, nil
		}
	}
	return "", fmt.Errorf("invalid category %q (valid: %s)", s, strings.Join(categoryNames(), ", "))
}

// parseData turns key=value pairs into a data map. Values that look like
// numbers or booleans keep that type.
func parseData(pairs []string) (map[string]any, error) {
	data := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --data %q: expected key=value", pair)
		}
		data[key] = parseScalar(value)
	}
	return data, nil
}
