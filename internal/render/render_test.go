package render

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/andresmejia3/emotag/internal/types"
)

func gray(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func TestOverlayDrawsBox(t *testing.T) {
	frame := gray(100, 100, 128)
	res := types.DetectionResult{
		Found: true,
		Label: types.Happy,
		Box:   types.BoundingBox{X: 30, Y: 40, Width: 40, Height: 30},
	}

	out := Overlay(frame, []types.DetectionResult{res})

	if got := out.RGBAAt(50, 40); got != BoxColor {
		t.Errorf("top edge = %v, want %v", got, BoxColor)
	}
	if got := out.RGBAAt(69, 55); got != BoxColor {
		t.Errorf("right edge = %v, want %v", got, BoxColor)
	}
	// Interior untouched
	if got := out.RGBAAt(50, 55); got != (color.RGBA{128, 128, 128, 255}) {
		t.Errorf("interior = %v", got)
	}
	// Source frame untouched
	if frame.GrayAt(50, 40).Y != 128 {
		t.Error("Overlay modified the input frame")
	}
}

func TestOverlaySkipsNoFace(t *testing.T) {
	frame := gray(20, 20, 10)
	out := Overlay(frame, []types.DetectionResult{types.NoFace})
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			if out.RGBAAt(x, y) != (color.RGBA{10, 10, 10, 255}) {
				t.Fatalf("pixel (%d,%d) changed for NoFace", x, y)
			}
		}
	}
}

func TestDrawBoxClipped(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	// Must not panic when the box hangs off the frame
	DrawBox(img, image.Rect(-5, -5, 5, 5), BoxColor, 2)
	if img.RGBAAt(0, 0) != BoxColor {
		t.Errorf("clipped corner = %v", img.RGBAAt(0, 0))
	}
	DrawBox(img, image.Rect(50, 50, 60, 60), BoxColor, 2)
}

func TestDrawLabel(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 80, 40))
	DrawLabel(img, image.Pt(2, 20), "happy")

	lit := 0
	for y := 0; y < 20; y++ {
		for x := 0; x < 80; x++ {
			if img.RGBAAt(x, y) == LabelColor {
				lit++
			}
		}
	}
	if lit == 0 {
		t.Error("DrawLabel drew no text pixels above the anchor")
	}
}

func TestEncodeJPEG(t *testing.T) {
	data, err := EncodeJPEG(gray(8, 8, 200))
	if err != nil {
		t.Fatal(err)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a JPEG: %v", err)
	}
	if img.Bounds().Dx() != 8 {
		t.Errorf("bounds = %v", img.Bounds())
	}
}
