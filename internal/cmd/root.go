package cmd

import (
	"io"
	"log/slog"
	"strings"

	"github.com/Iron-Ham/logkeeper/internal/config"
	"github.com/Iron-Ham/logkeeper/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "logkeeper",
	Short: "Inspect and manage structured application logs",
	Long: `Logkeeper manages the structured log files written by the application:
listing, reading and summarizing log files, enforcing retention, and viewing
or changing the logging configuration.

Settings can also be supplied through the environment, e.g.
LOGKEEPER_CONFIG=/path/to/log-config.json or LOGKEEPER_LOG_DIR=/var/log/app.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "log config file (default is $HOME/.config/logkeeper/log-config.json)")
	rootCmd.PersistentFlags().String("log-dir", "", "override the configured log directory for this command")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "print diagnostic messages")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("log_dir", rootCmd.PersistentFlags().Lookup("log-dir"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	viper.SetDefault("config", config.ConfigFile())

	viper.AutomaticEnv()
	viper.SetEnvPrefix("LOGKEEPER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
}

// diagLogger reports the tool's own warnings on the command's error stream.
func diagLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// openConfig loads the log config file selected by --config.
func openConfig(cmd *cobra.Command) *config.Manager {
	return config.NewManager(viper.GetString("config"), config.Default(), config.WithLogger(diagLogger(cmd)))
}

// overrideSource applies --log-dir without persisting it.
type overrideSource struct {
	manager *config.Manager
	logDir  string
}

func (s overrideSource) Current() config.LogConfig {
	cfg := s.manager.Current()
	if s.logDir != "" {
		cfg.LogDir = s.logDir
	}
	return cfg
}

func logDirFlag() string {
	return viper.GetString("log_dir")
}

// newFileManager returns a file manager reading its settings from src. The
// caller must Destroy it.
func newFileManager(cmd *cobra.Command, src logging.ConfigSource, opts ...logging.FileManagerOption) *logging.FileManager {
	opts = append([]logging.FileManagerOption{logging.WithLogger(diagLogger(cmd))}, opts...)
	return logging.NewFileManager(src, opts...)
}

// openFiles returns a file manager over the configured log directory. The
// caller must Destroy it.
func openFiles(cmd *cobra.Command) (*logging.FileManager, *config.Manager) {
	manager := openConfig(cmd)
	return newFileManager(cmd, overrideSource{manager: manager, logDir: logDirFlag()}), manager
}

// out is where command results are printed.
func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}
