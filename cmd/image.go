package cmd

import (
	"context"
	"fmt"
	"image"
	"os"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/emotag/internal/source"
	"github.com/andresmejia3/emotag/internal/stream"
)

var imageCmd = &cobra.Command{
	Use:   "image <image_path>",
	Short: "Detect the facial expression in a still image (jpg, png, bmp, webp)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runImage(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(imageCmd)
}

func runImage(ctx context.Context, imagePath string) error {
	fmt.Fprintf(os.Stderr, "🖼️  Analyzing %s\n", imagePath)
	return runSession(ctx, stream.ModeImage, imagePath, nil, func(o *stream.Orchestrator) (stream.Summary, error) {
		return o.RunImage(ctx, func(context.Context) (image.Image, error) {
			return source.DecodeImage(imagePath)
		})
	})
}
