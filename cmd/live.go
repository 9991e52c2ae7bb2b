package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/emotag/internal/config"
	"github.com/andresmejia3/emotag/internal/cv"
	"github.com/andresmejia3/emotag/internal/source"
	"github.com/andresmejia3/emotag/internal/stream"
	"github.com/andresmejia3/emotag/internal/utils"
)

var liveCmd = &cobra.Command{
	Use:     "live",
	Aliases: []string{"livefeed"},
	Short:   "Annotate facial expressions from a camera until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runLive(cmd.Context(), cfg.CameraDevice, cfg.CameraFormat)
	},
}

func init() {
	addCameraFlags(liveCmd)
	rootCmd.AddCommand(liveCmd)
}

// addCameraFlags registers the camera selection flags on a command that can start a live session.
func addCameraFlags(c *cobra.Command) {
	c.Flags().IntVarP(&cfg.CameraDevice, "camera", "c", cfg.CameraDevice, "Camera device index")
	c.Flags().StringVar(&cfg.CameraFormat, "format", cfg.CameraFormat, "FFmpeg capture format: v4l2, avfoundation, dshow")
}

// frameSource keeps a failed open from leaking a typed nil into the interface.
func frameSource[S stream.FrameSource](src S, err error) (stream.FrameSource, error) {
	if err != nil {
		return nil, err
	}
	return src, nil
}

func runLive(ctx context.Context, device int, format string) error {
	input := source.CameraInput(device, format)
	fmt.Fprintf(os.Stderr, "📷 Live feed from %s. Press Ctrl+C to stop.\n", input)

	var ffmpeg *source.FFmpeg
	err := runSession(ctx, stream.ModeLive, input, nil, func(o *stream.Orchestrator) (stream.Summary, error) {
		return o.RunStream(ctx, stream.ModeLive, func(ctx context.Context) (stream.FrameSource, error) {
			if cfg.Capture == config.CaptureGoCV {
				return frameSource(cv.OpenCamera(device))
			}
			src, err := source.OpenCamera(ctx, device, format)
			if err != nil {
				return nil, err
			}
			ffmpeg = src
			return src, nil
		})
	})

	// A camera unplugged mid-session ends it early; surface the capture logs
	if ffmpeg != nil && ffmpeg.Err() != nil && ctx.Err() == nil {
		utils.ShowError("FFmpeg exited with an error", ffmpeg.Err(), ffmpeg.Cmd)
	}
	return err
}
