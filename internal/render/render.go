// Package render draws detection overlays onto frames.
package render

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/andresmejia3/emotag/internal/types"
)

var (
	BoxColor   = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	LabelColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	labelBG    = color.RGBA{R: 0, G: 0, B: 0, A: 255}
)

const thickness = 2

// Overlay copies frame and draws each found face's box with its label above it.
func Overlay(frame image.Image, results []types.DetectionResult) *image.RGBA {
	b := frame.Bounds()
	m := image.NewRGBA(b)
	draw.Draw(m, b, frame, b.Min, draw.Src)

	for _, res := range results {
		if !res.Found {
			continue
		}
		rect := res.Box.Rect()
		DrawBox(m, rect, BoxColor, thickness)
		DrawLabel(m, rect.Min, res.Label.String())
	}
	return m
}

// DrawBox strokes rect's outline, clipped to img.
func DrawBox(img *image.RGBA, rect image.Rectangle, c color.RGBA, width int) {
	// Clip rect to image bounds to prevent panics
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return
	}
	width = min(width, rect.Dx(), rect.Dy())

	fill(img, image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+width), c) // Top
	fill(img, image.Rect(rect.Min.X, rect.Max.Y-width, rect.Max.X, rect.Max.Y), c) // Bottom
	fill(img, image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+width, rect.Max.Y), c) // Left
	fill(img, image.Rect(rect.Max.X-width, rect.Min.Y, rect.Max.X, rect.Max.Y), c) // Right
}

func fill(img *image.RGBA, rect image.Rectangle, c color.RGBA) {
	stride := img.Stride
	pix := img.Pix
	imgMinX, imgMinY := img.Rect.Min.X, img.Rect.Min.Y
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		rowStart := (y-imgMinY)*stride + (rect.Min.X-imgMinX)*4
		for x := 0; x < rect.Dx(); x++ {
			off := rowStart + x*4
			pix[off] = c.R
			pix[off+1] = c.G
			pix[off+2] = c.B
			pix[off+3] = c.A
		}
	}
}

// DrawLabel writes text on a filled strip just above at, or just inside the top edge
// when there is no room above. basicfont only covers ASCII, so glyphs are not drawn.
func DrawLabel(img *image.RGBA, at image.Point, text string) {
	face := basicfont.Face7x13
	h := face.Height + 2
	w := font.MeasureString(face, text).Ceil() + 4

	top := at.Y - h
	if top < img.Rect.Min.Y {
		top = at.Y
	}
	strip := image.Rect(at.X, top, at.X+w, top+h).Intersect(img.Bounds())
	if strip.Empty() {
		return
	}
	fill(img, strip, labelBG)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(LabelColor),
		Face: face,
		Dot:  fixed.P(strip.Min.X+2, strip.Min.Y+face.Ascent+1),
	}
	d.DrawString(text)
}

// EncodeJPEG encodes img at the quality ffmpeg is asked for.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
