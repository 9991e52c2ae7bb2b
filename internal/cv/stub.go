//go:build !gocv

// Package cv holds the OpenCV-backed frame sources and classifier.
package cv

import (
	"context"
	"errors"
	"image"

	"github.com/andresmejia3/emotag/internal/types"
)

// ErrNoOpenCV is returned by every constructor in builds without the gocv tag.
var ErrNoOpenCV = errors.New("OpenCV backend requires a build with -tags gocv")

type Capture struct{}

func OpenVideo(path string) (*Capture, error)  { return nil, ErrNoOpenCV }
func OpenCamera(device int) (*Capture, error) { return nil, ErrNoOpenCV }

func (c *Capture) Next(ctx context.Context) (image.Image, error) { return nil, ErrNoOpenCV }
func (c *Capture) FrameCount() int                                { return 0 }
func (c *Capture) Close() error                                   { return nil }

type DNN struct{}

func NewDNN(model string) (*DNN, error) { return nil, ErrNoOpenCV }

func (d *DNN) Classify(ctx context.Context, t types.Tensor) ([]float32, error) {
	return nil, ErrNoOpenCV
}

func (d *DNN) Close() error { return nil }
