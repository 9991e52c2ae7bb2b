//go:build !gocv

package detect

import (
	"context"
	"errors"
	"image"

	"github.com/andresmejia3/emotag/internal/types"
)

// ErrNoOpenCV is returned by the cascade backend in builds without the gocv tag.
var ErrNoOpenCV = errors.New("cascade detector requires a build with -tags gocv")

type Cascade struct{}

func NewCascade(path string) (*Cascade, error) {
	return nil, ErrNoOpenCV
}

func (c *Cascade) Detect(ctx context.Context, gray *image.Gray, params types.DetectParams) ([]types.BoundingBox, error) {
	return nil, ErrNoOpenCV
}

func (c *Cascade) Close() error { return nil }
