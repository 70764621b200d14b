package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Iron-Ham/logkeeper/internal/util"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	valueStyle  = lipgloss.NewStyle().Bold(true)
)

var filesCmd = &cobra.Command{
	Use:   "files [pattern]",
	Short: "List log files",
	Long: `List the log files under the log directory as <date>/<file>, oldest
first. Rotated and compressed files are included.

An optional glob pattern filters the list; '*' does not cross '/'.

Examples:
  logkeeper files
  logkeeper files '2026-10-*/*'
  logkeeper files '*/*.gz' --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFiles,
}

var filesJSON bool

func init() {
	filesCmd.Flags().BoolVar(&filesJSON, "json", false, "Output the list as JSON")
	rootCmd.AddCommand(filesCmd)
}

type fileInfo struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

func runFiles(cmd *cobra.Command, args []string) error {
	files, _ := openFiles(cmd)
	defer files.Destroy()

	names := files.GetLogFiles()
	if len(args) == 1 {
		var err error
		if names, err = files.MatchLogFiles(args[0]); err != nil {
			return err
		}
	}

	root := filepath.Clean(files.LogDir())
	infos := make([]fileInfo, 0, len(names))
	for _, name := range names {
		fi := fileInfo{Name: name}
		if st, err := files.Stat(name); err == nil {
			fi.Size = st.Size()
			fi.Modified = st.ModTime()
		}
		infos = append(infos, fi)
	}

	w := out(cmd)
	if filesJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	if len(infos) == 0 {
		fmt.Fprintf(w, "No log files in %s\n", root)
		return nil
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Log files in %s", root)))
	for _, fi := range infos {
		fmt.Fprintf(w, "  %s %s  %s\n",
			util.PadRight(fi.Name, 48),
			labelStyle.Render(util.PadRight(util.FormatBytes(fi.Size), 10)),
			fi.Modified.Format("2006-01-02 15:04:05"))
	}
	return nil
}
