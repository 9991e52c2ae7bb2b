package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/andresmejia3/emotag/internal/render"
	"github.com/andresmejia3/emotag/internal/types"
)

// Snapshots saves every analyzed frame with a face as an overlaid JPEG.
type Snapshots struct {
	Dir string
}

func NewSnapshots(dir string) (*Snapshots, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Snapshots{Dir: dir}, nil
}

func (s *Snapshots) Report(_ context.Context, ev types.FrameEvent) error {
	if ev.Result == nil || !ev.Result.Found || ev.Frame == nil {
		return nil
	}
	faces := ev.Faces
	if len(faces) == 0 {
		faces = []types.DetectionResult{*ev.Result}
	}
	data, err := render.EncodeJPEG(render.Overlay(ev.Frame, faces))
	if err != nil {
		return fmt.Errorf("encode snapshot %d: %w", ev.Index, err)
	}
	name := fmt.Sprintf("frame_%06d_%s.jpg", ev.Index, ev.Result.Label)
	return os.WriteFile(filepath.Join(s.Dir, name), data, 0644)
}
