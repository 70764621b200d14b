package cmd

import (
	"fmt"

	"github.com/Iron-Ham/logkeeper/internal/config"
	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete log files past the retention window",
	Long: `Cleanup deletes log files whose modification time is older than the
configured retentionDays, from the date folders and from archives/.
Empty date folders are removed. Running it again deletes nothing new.

Use --days to apply a different window for this run only.`,
	RunE: runCleanup,
}

var cleanupDays int

func init() {
	rootCmd.AddCommand(cleanupCmd)
	cleanupCmd.Flags().IntVar(&cleanupDays, "days", 0, "Retention window in days for this run (default: configured retentionDays)")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("days") && (cleanupDays <= 0 || cleanupDays > config.RetentionDaysLimit) {
		return fmt.Errorf("--days must be between 1 and %d, got %d", config.RetentionDaysLimit, cleanupDays)
	}

	manager := openConfig(cmd)
	src := retentionSource{
		overrideSource: overrideSource{manager: manager, logDir: logDirFlag()},
		days:           cleanupDays,
	}
	files := newFileManager(cmd, src)
	defer files.Destroy()

	deleted := files.CleanupOldLogs()
	fmt.Fprintf(out(cmd), "Deleted %d log file(s) older than %d day(s) from %s\n",
		deleted, src.Current().RetentionDays, files.LogDir())
	return nil
}

// retentionSource applies --days on top of the other overrides.
type retentionSource struct {
	overrideSource
	days int
}

func (s retentionSource) Current() config.LogConfig {
	cfg := s.overrideSource.Current()
	if s.days > 0 {
		cfg.RetentionDays = s.days
	}
	return cfg
}
