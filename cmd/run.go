package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/emotag/internal/stream"
)

var runMode string

var runCmd = &cobra.Command{
	Use:   "run [input]",
	Short: "Run a session with the mode chosen by --mode (image, video, live)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := stream.ParseMode(runMode)
		if err != nil {
			return err
		}
		if mode != stream.ModeLive && len(args) == 0 {
			return fmt.Errorf("%s mode needs an input path", mode)
		}
		cmd.SilenceUsage = true

		switch mode {
		case stream.ModeImage:
			return runImage(cmd.Context(), args[0])
		case stream.ModeVideo:
			return runVideo(cmd.Context(), args[0])
		default:
			return runLive(cmd.Context(), cfg.CameraDevice, cfg.CameraFormat)
		}
	},
}

func init() {
	runCmd.Flags().StringVar(&runMode, "mode", "image", "Input type: image, video, live")
	addCameraFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}
