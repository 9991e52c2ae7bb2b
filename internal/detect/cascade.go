//go:build gocv

package detect

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/andresmejia3/emotag/internal/types"
)

// Cascade detects faces with an OpenCV Haar cascade.
type Cascade struct {
	mu         sync.Mutex
	classifier gocv.CascadeClassifier
}

// NewCascade loads an OpenCV cascade XML file (e.g. haarcascade_frontalface_default.xml).
func NewCascade(path string) (*Cascade, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, fmt.Errorf("failed to load cascade %s", path)
	}
	return &Cascade{classifier: classifier}, nil
}

func (c *Cascade) Detect(ctx context.Context, gray *image.Gray, params types.DetectParams) ([]types.BoundingBox, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mat, err := gocv.ImageGrayToMatGray(gray)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	c.mu.Lock()
	rects := c.classifier.DetectMultiScaleWithParams(mat, params.ScaleFactor, params.MinNeighbors, 0,
		image.Pt(params.MinSize, params.MinSize), image.Pt(0, 0))
	c.mu.Unlock()

	boxes := make([]types.BoundingBox, 0, len(rects))
	for _, r := range rects {
		boxes = append(boxes, types.BoxFromRect(r.Add(gray.Bounds().Min)))
	}
	return boxes, nil
}

func (c *Cascade) Close() error {
	return c.classifier.Close()
}
