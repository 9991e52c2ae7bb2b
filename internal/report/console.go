package report

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/andresmejia3/emotag/internal/stream"
	"github.com/andresmejia3/emotag/internal/types"
)

// Console prints one block per analyzed frame. Skipped frames print nothing.
type Console struct {
	Out io.Writer
	// Frames prefixes each block with the frame index (video and live).
	Frames bool
}

func (c *Console) Report(_ context.Context, ev types.FrameEvent) error {
	if !ev.Analyzed() {
		return nil
	}
	prefix := ""
	if c.Frames {
		prefix = fmt.Sprintf("[frame %d] ", ev.Index)
	}

	var err error
	switch {
	case ev.Err != nil:
		_, err = fmt.Fprintf(c.Out, "%s⚠️  %v\n", prefix, ev.Err)
	case !ev.Result.Found:
		_, err = fmt.Fprintf(c.Out, "%s🙈 No Face Detected\n", prefix)
	default:
		faces := ev.Faces
		if len(faces) == 0 {
			faces = []types.DetectionResult{*ev.Result}
		}
		for _, f := range faces {
			if _, err = fmt.Fprintf(c.Out, "%s🎯 Emotion: %s  %s  -> %s\n",
				prefix, f.Label, strings.Join(f.Glyphs[:], " "), f.Glyph); err != nil {
				break
			}
		}
	}
	return err
}

// PrintSummary writes the session totals in the SCAN SUMMARY layout.
func PrintSummary(w io.Writer, sum stream.Summary) {
	fmt.Fprintf(w, "\n---------------------------------------------------------\n")
	fmt.Fprintf(w, "📊 %s SESSION SUMMARY (%s)\n", strings.ToUpper(sum.Mode.String()), sum.State)
	fmt.Fprintf(w, "---------------------------------------------------------\n")
	fmt.Fprintf(w, "🎞️  Frames Displayed:  %d\n", sum.Frames)
	fmt.Fprintf(w, "🔍 Frames Analyzed:   %d\n", sum.Analyzed)
	fmt.Fprintf(w, "👁️  Faces Found:       %d\n", sum.Faces)
	if sum.Failures > 0 {
		fmt.Fprintf(w, "⚠️  Failures:          %d\n", sum.Failures)
	}

	labels := make([]types.Label, 0, len(sum.Labels))
	for l := range sum.Labels {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool {
		if sum.Labels[labels[i]] != sum.Labels[labels[j]] {
			return sum.Labels[labels[i]] > sum.Labels[labels[j]]
		}
		return labels[i] < labels[j]
	})
	for _, l := range labels {
		fmt.Fprintf(w, "   %-9s %d\n", l, sum.Labels[l])
	}
	fmt.Fprintf(w, "---------------------------------------------------------\n")
}
