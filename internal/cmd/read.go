package cmd

import (
	"fmt"
	"strings"

	"github.com/Iron-Ham/logkeeper/internal/util"
	"github.com/spf13/cobra"
)

var readCmd = &cobra.Command{
	Use:   "read <file>",
	Short: "Print a log file",
	Long: `Print a log file named as 'logkeeper files' lists it. Compressed
files are decompressed transparently.

Examples:
  # Whole file
  logkeeper read 2026-10-18/2026-10-18-09-30-00.log

  # Last 20 records, one header line each, cut to 120 columns
  logkeeper read 2026-10-18/2026-10-18-09-30-00.log -n 20 --headers --width 120`,
	Args: cobra.ExactArgs(1),
	RunE: runRead,
}

var (
	readTail    int
	readHeaders bool
	readWidth   int
)

func init() {
	readCmd.Flags().IntVarP(&readTail, "tail", "n", 0, "Number of records to show from the end (0 for all)")
	readCmd.Flags().BoolVar(&readHeaders, "headers", false, "Show only the first line of each record")
	readCmd.Flags().IntVar(&readWidth, "width", 0, "Truncate lines to this many columns (0 for no limit)")
	rootCmd.AddCommand(readCmd)
}

func runRead(cmd *cobra.Command, args []string) error {
	files, _ := openFiles(cmd)
	defer files.Destroy()

	content, err := files.ReadLogFile(args[0])
	if err != nil {
		return err
	}

	records := splitRecords(content)
	if readTail > 0 && len(records) > readTail {
		records = records[len(records)-readTail:]
	}

	w := out(cmd)
	for _, rec := range records {
		if readHeaders {
			rec = util.FirstLine(rec)
		}
		for _, line := range strings.Split(rec, "\n") {
			if readWidth > 0 {
				line = util.TruncateANSI(line, readWidth)
			}
			fmt.Fprintln(w, line)
		}
	}
	return nil
}

// splitRecords groups a file's lines into records. Continuation lines of a
// record (data, error and stack) are indented.
func splitRecords(content string) []string {
	var records []string
	for _, line := range strings.Split(strings.TrimSuffix(content, "\n"), "\n") {
		if line == "" && len(records) == 0 {
			continue
		}
		if strings.HasPrefix(line, "  ") && len(records) > 0 {
			records[len(records)-1] += "\n" + line
			continue
		}
		records = append(records, line)
	}
	return records
}
