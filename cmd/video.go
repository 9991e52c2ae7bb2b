package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/andresmejia3/emotag/internal/config"
	"github.com/andresmejia3/emotag/internal/cv"
	"github.com/andresmejia3/emotag/internal/source"
	"github.com/andresmejia3/emotag/internal/stream"
	"github.com/andresmejia3/emotag/internal/types"
	"github.com/andresmejia3/emotag/internal/utils"
)

var videoCmd = &cobra.Command{
	Use:   "video <video_path>",
	Short: "Annotate facial expressions across a video file (mp4, mov, avi)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runVideo(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(videoCmd)
}

// validateVideoInput ensures the input is a readable file before any heavy process starts.
func validateVideoInput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("input file does not exist: %w", err)
		}
		return fmt.Errorf("unable to access input file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("input path is a directory, expected a video file")
	}
	return nil
}

func runVideo(ctx context.Context, videoPath string) error {
	if err := validateVideoInput(videoPath); err != nil {
		utils.ShowError("Invalid video input", err, nil)
		return err
	}

	// Get total frames for progress bar
	totalFrames := -1
	if cfg.Capture == config.CaptureFFmpeg {
		if n := utils.GetTotalFrames(ctx, videoPath); n > 0 {
			totalFrames = n
		}
	}

	if id, err := utils.GenerateSourceID(videoPath); err == nil {
		fmt.Fprintf(os.Stderr, "📼 Processing Video ID: %s\n", id[:12])
	}
	fmt.Fprintf(os.Stderr, "⚙️  Analyzing every %d frame(s)\n", cfg.SkipInterval)

	bar := progressbar.NewOptions(totalFrames,
		progressbar.OptionSetDescription("🔍 emotag"),
		progressbar.OptionSetWriter(os.Stderr), // Write bar to Stderr
		progressbar.OptionShowCount(),
	)
	progress := stream.ReporterFunc(func(context.Context, types.FrameEvent) error {
		bar.Add(1) // Update progress bar for every frame displayed
		return nil
	})

	var ffmpeg *source.FFmpeg
	err := runSession(ctx, stream.ModeVideo, videoPath, progress, func(o *stream.Orchestrator) (stream.Summary, error) {
		return o.RunStream(ctx, stream.ModeVideo, func(ctx context.Context) (stream.FrameSource, error) {
			if cfg.Capture == config.CaptureGoCV {
				capture, err := cv.OpenVideo(videoPath)
				if err != nil {
					return nil, err
				}
				sizeBar(bar, capture.FrameCount())
				return capture, nil
			}
			src, err := source.OpenVideo(ctx, videoPath)
			if err != nil {
				return nil, err
			}
			ffmpeg = src
			return src, nil
		})
	})
	bar.Finish()

	// A decoder that died mid-file ends the session early; surface its logs
	if ffmpeg != nil && ffmpeg.Err() != nil && ctx.Err() == nil {
		utils.ShowError("FFmpeg exited with an error", ffmpeg.Err(), ffmpeg.Cmd)
	}
	return err
}

// sizeBar gives an open-ended bar a total once the frame count is known.
func sizeBar(bar *progressbar.ProgressBar, frames int) {
	if frames > 0 && bar.GetMax() <= 0 {
		bar.ChangeMax(frames)
	}
}
