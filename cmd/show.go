package cmd

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/emotag/internal/utils"
)

var showCmd = &cobra.Command{
	Use:   "show <session_id>",
	Short: "Show the per-frame annotations of a recorded session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid session ID %q: %w", args[0], err)
		}
		if err := requireDB(); err != nil {
			return err
		}
		cmd.SilenceUsage = true

		ctx := cmd.Context()
		annotations, err := DB.SessionAnnotations(ctx, id)
		if err != nil {
			utils.ShowError("Failed to load session", err, nil)
			return err
		}
		if len(annotations) == 0 {
			fmt.Printf("No annotations recorded for session %d.\n", id)
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "FRAME\tEMOTION\tEMOJI\tBOX")
		fmt.Fprintln(w, "-----\t-------\t-----\t---")
		for _, a := range annotations {
			switch {
			case a.Error != "":
				fmt.Fprintf(w, "%d\t⚠️  %s\t\t\n", a.FrameIndex, a.Error)
			case !a.Found:
				fmt.Fprintf(w, "%d\tno face\t\t\n", a.FrameIndex)
			default:
				fmt.Fprintf(w, "%d\t%s\t%s\t%d,%d %dx%d\n", a.FrameIndex, a.Label, a.Glyph,
					a.Box.X, a.Box.Y, a.Box.Width, a.Box.Height)
			}
		}
		w.Flush()

		counts, err := DB.LabelCounts(ctx, id)
		if err != nil {
			utils.ShowError("Failed to count labels", err, nil)
			return err
		}
		printCounts(counts)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
