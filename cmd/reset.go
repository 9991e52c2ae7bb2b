package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/emotag/internal/utils"
)

var (
	resetDB    bool
	resetFiles bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset system state (Database, Event Logs, Snapshots)",
	Long:  "Clears all data. By default, it resets everything. Use flags to clear specific components.",
	RunE: func(cmd *cobra.Command, args []string) error {
		// If no flags are set, default to clearing EVERYTHING
		if !resetDB && !resetFiles {
			resetDB = true
			resetFiles = true
		}

		reader := bufio.NewReader(os.Stdin)

		if resetDB {
			if DB == nil {
				fmt.Fprintln(os.Stderr, "⚠️  No database configured, skipping.")
			} else if confirm(reader, os.Stdout, "⚠️  Are you sure you want to DROP all database tables?") {
				fmt.Println("🗑️  Clearing Database...")
				if err := DB.Reset(cmd.Context()); err != nil {
					utils.ShowError("Failed to reset database", err, nil)
					return err
				}
			}
		}

		if resetFiles {
			dirs := outputDirs()
			if len(dirs) == 0 {
				fmt.Fprintln(os.Stderr, "⚠️  No --record or --snapshots directory configured, skipping.")
			} else if confirm(reader, os.Stdout, fmt.Sprintf("⚠️  Are you sure you want to delete %s?", strings.Join(dirs, ", "))) {
				fmt.Println("🗑️  Clearing Output Files (Event Logs, Snapshots)...")
				for _, d := range dirs {
					removeDir(d)
				}
			}
		}

		fmt.Println("✨ System Reset Complete.")
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetDB, "history", false, "Clear the session history tables")
	resetCmd.Flags().BoolVar(&resetFiles, "files", false, "Clear event logs and snapshots")
	rootCmd.AddCommand(resetCmd)
}

func outputDirs() []string {
	var dirs []string
	for _, d := range []string{cfg.RecordDir, cfg.SnapshotDir} {
		if d != "" {
			dirs = append(dirs, d)
		}
	}
	return dirs
}

func confirm(r *bufio.Reader, w io.Writer, prompt string) bool {
	fmt.Fprintf(w, "%s [y/N]: ", prompt)
	res, _ := r.ReadString('\n')
	res = strings.TrimSpace(strings.ToLower(res))
	return res == "y" || res == "yes"
}

func removeDir(path string) {
	if err := os.RemoveAll(path); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Failed to remove %s: %v\n", path, err)
	}
}
