//go:build gocv

// Package cv holds the OpenCV-backed frame sources and classifier.
package cv

import (
	"context"
	"fmt"
	"image"
	"io"

	"gocv.io/x/gocv"
)

// Capture is a frame source over an OpenCV VideoCapture.
type Capture struct {
	vc  *gocv.VideoCapture
	img gocv.Mat
}

// OpenVideo opens a video file for decoding.
func OpenVideo(path string) (*Capture, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("open video %s: %w", path, err)
	}
	return newCapture(vc)
}

// OpenCamera opens camera device index.
func OpenCamera(device int) (*Capture, error) {
	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("open camera %d: %w", device, err)
	}
	return newCapture(vc)
}

func newCapture(vc *gocv.VideoCapture) (*Capture, error) {
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("capture device not opened")
	}
	return &Capture{vc: vc, img: gocv.NewMat()}, nil
}

// Next returns the next frame, io.EOF once the capture yields nothing.
func (c *Capture) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ok := c.vc.Read(&c.img); !ok || c.img.Empty() {
		return nil, io.EOF
	}
	return c.img.ToImage()
}

// FrameCount reports the container's frame count, 0 when unknown.
func (c *Capture) FrameCount() int {
	n := int(c.vc.Get(gocv.VideoCaptureFrameCount))
	if n < 0 {
		return 0
	}
	return n
}

func (c *Capture) Close() error {
	c.img.Close()
	return c.vc.Close()
}
