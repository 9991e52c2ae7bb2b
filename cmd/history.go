package cmd

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/emotag/internal/utils"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded sessions and the overall emotion tally",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireDB(); err != nil {
			return err
		}
		cmd.SilenceUsage = true

		ctx := cmd.Context()
		sessions, err := DB.ListSessions(ctx, historyLimit)
		if err != nil {
			utils.ShowError("Failed to list sessions", err, nil)
			return err
		}

		if len(sessions) == 0 {
			fmt.Println("No sessions found in database.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tMODE\tSOURCE\tSTATE\tFRAMES\tANALYZED\tFACES\tDURATION\tSTARTED")
		fmt.Fprintln(w, "--\t----\t------\t-----\t------\t--------\t-----\t--------\t-------")
		for _, s := range sessions {
			duration := "-"
			if s.FinishedAt != nil {
				duration = utils.FmtDuration(s.FinishedAt.Sub(s.StartedAt))
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
				s.ID, s.Mode, shorten(s.Source, 32), s.State, s.Frames, s.Analyzed, s.Faces,
				duration, s.StartedAt.Local().Format("2006-01-02 15:04"))
		}
		w.Flush()

		counts, err := DB.LabelCounts(ctx, 0)
		if err != nil {
			utils.ShowError("Failed to count labels", err, nil)
			return err
		}
		printCounts(counts)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "Number of sessions to show (0 = all)")
	rootCmd.AddCommand(historyCmd)
}

// shorten keeps the tail of long paths, where the file name is.
func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return "…" + string(r[len(r)-n+1:])
}

func printCounts(counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	labels := make([]string, 0, len(counts))
	for l := range counts {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool {
		if counts[labels[i]] != counts[labels[j]] {
			return counts[labels[i]] > counts[labels[j]]
		}
		return labels[i] < labels[j]
	})

	fmt.Println("\n🎭 Emotions seen:")
	for _, l := range labels {
		fmt.Printf("   %-9s %d\n", l, counts[l])
	}
}
