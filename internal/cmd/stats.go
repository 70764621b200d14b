package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/Iron-Ham/logkeeper/internal/util"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the log files",
	Long: `Display the number and total size of the log files and the
modification times of the oldest and newest one.`,
	RunE: runStats,
}

var statsJSON bool // Output as JSON

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output statistics as JSON")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	files, _ := openFiles(cmd)
	defer files.Destroy()

	stats := files.GetLogStats()
	w := out(cmd)

	if statsJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	fmt.Fprintln(w, headerStyle.Render("Log Statistics"))
	row := func(label, value string) {
		fmt.Fprintf(w, "  %s %s\n", labelStyle.Render(util.PadRight(label+":", 14)), valueStyle.Render(value))
	}
	row("Directory", files.LogDir())
	row("Files", fmt.Sprintf("%d", stats.TotalFiles))
	row("Total size", util.FormatBytes(stats.TotalSize))
	if stats.TotalFiles > 0 {
		row("Oldest", stats.OldestFile.Format("2006-01-02 15:04:05"))
		row("Newest", stats.NewestFile.Format("2006-01-02 15:04:05"))
	}
	return nil
}
