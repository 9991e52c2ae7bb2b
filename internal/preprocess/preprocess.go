// Package preprocess turns a face region into the classifier's input tensor.
package preprocess

import (
	"image"
	"image/draw"

	xdraw "golang.org/x/image/draw"

	"github.com/andresmejia3/emotag/internal/types"
)

// Prepare converts region to luminance, resamples it to 48x48 and scales samples to [0,1].
// Any non-empty region is accepted regardless of size, aspect ratio or color model.
func Prepare(region image.Image) types.Tensor {
	gray := Grayscale(region)

	side := types.TensorSide
	small := image.NewGray(image.Rect(0, 0, side, side))
	xdraw.BiLinear.Scale(small, small.Bounds(), gray, gray.Bounds(), xdraw.Src, nil)

	data := make([]float32, types.TensorSize)
	for y := 0; y < side; y++ {
		row := small.Pix[y*small.Stride : y*small.Stride+side]
		for x, v := range row {
			data[y*side+x] = float32(v) / 255.0
		}
	}
	return types.Tensor{Data: data}
}

// Grayscale returns a luminance copy of img (0.299R + 0.587G + 0.114B).
// An *image.Gray input is returned unchanged.
func Grayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(b)
	draw.Draw(gray, b, img, b.Min, draw.Src)
	return gray
}
