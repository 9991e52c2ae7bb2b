// Package detect provides the face detector backends.
package detect

import (
	"context"
	"fmt"
	"image"
	"os"
	"sort"

	pigo "github.com/esimov/pigo/core"

	"github.com/andresmejia3/emotag/internal/types"
)

// Pigo detects faces with a pixel-intensity-comparison cascade.
type Pigo struct {
	classifier *pigo.Pigo
}

// NewPigo loads a pigo cascade file (e.g. facefinder).
func NewPigo(path string) (*Pigo, error) {
	cascadeFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cascade: %w", err)
	}

	// Unpack the binary file. This will return the number of cascade trees,
	// the tree depth, the threshold and the prediction from tree's leaf nodes.
	classifier, err := pigo.NewPigo().Unpack(cascadeFile)
	if err != nil {
		return nil, fmt.Errorf("unpack cascade %s: %w", path, err)
	}
	return &Pigo{classifier: classifier}, nil
}

// Detect returns face boxes ordered by detection score, best first.
func (p *Pigo) Detect(ctx context.Context, gray *image.Gray, params types.DetectParams) ([]types.BoundingBox, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bounds := gray.Bounds()
	cols, rows := bounds.Dx(), bounds.Dy()
	if cols == 0 || rows == 0 {
		return nil, nil
	}

	cParams := pigo.CascadeParams{
		MinSize:     params.MinSize,
		MaxSize:     max(cols, rows),
		ShiftFactor: 0.1,
		ScaleFactor: params.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pixels(gray),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	// The result contains quadruplets representing the row, column, scale and detection score.
	dets := p.classifier.RunCascade(cParams, 0.0)
	// Calculate the intersection over union (IoU) of two clusters.
	dets = p.classifier.ClusterDetections(dets, 0.2)
	return Boxes(dets, params.MinQuality, bounds), nil
}

// pixels returns gray's samples as one contiguous row-major slice.
func pixels(gray *image.Gray) []uint8 {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	if gray.Stride == w && b.Min == (image.Point{}) {
		return gray.Pix[:w*h]
	}
	out := make([]uint8, 0, w*h)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := gray.PixOffset(b.Min.X, y)
		out = append(out, gray.Pix[off:off+w]...)
	}
	return out
}

// Boxes converts centre/scale detections into frame rectangles, dropping those scored
// below minQuality and clipping the rest to bounds.
func Boxes(dets []pigo.Detection, minQuality float64, bounds image.Rectangle) []types.BoundingBox {
	sort.SliceStable(dets, func(i, j int) bool { return dets[i].Q > dets[j].Q })

	var boxes []types.BoundingBox
	for _, det := range dets {
		if float64(det.Q) < minQuality {
			continue
		}
		half := det.Scale / 2
		r := image.Rect(det.Col-half, det.Row-half, det.Col+half, det.Row+half).
			Add(bounds.Min).
			Intersect(bounds)
		if r.Empty() {
			continue
		}
		boxes = append(boxes, types.BoxFromRect(r))
	}
	return boxes
}
