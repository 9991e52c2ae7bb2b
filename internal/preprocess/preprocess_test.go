package preprocess

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/andresmejia3/emotag/internal/types"
)

func fill(img interface {
	image.Image
	Set(x, y int, c color.Color)
}, c color.Color) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			img.Set(x, y, c)
		}
	}
}

func TestPrepareShapeAndRange(t *testing.T) {
	noisy := image.NewRGBA(image.Rect(0, 0, 97, 13))
	b := noisy.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			noisy.Set(x, y, color.RGBA{uint8(x * 7), uint8(y * 31), uint8(x * y), 255})
		}
	}

	tests := []struct {
		name   string
		region image.Image
	}{
		{"1x1 gray", image.NewGray(image.Rect(0, 0, 1, 1))},
		{"1x200 strip", image.NewRGBA(image.Rect(0, 0, 1, 200))},
		{"48x48 exact", image.NewNRGBA(image.Rect(0, 0, 48, 48))},
		{"wide noisy rgba", noisy},
		{"offset sub-image", noisy.SubImage(image.Rect(40, 2, 90, 12))},
		{"large gray16", image.NewGray16(image.Rect(0, 0, 640, 480))},
		{"cmyk", image.NewCMYK(image.Rect(0, 0, 33, 71))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Prepare(tt.region)
			if got.Shape() != [4]int{1, 48, 48, 1} {
				t.Fatalf("Shape() = %v", got.Shape())
			}
			if len(got.Data) != types.TensorSize {
				t.Fatalf("len(Data) = %d, want %d", len(got.Data), types.TensorSize)
			}
			for i, v := range got.Data {
				if v < 0 || v > 1 || math.IsNaN(float64(v)) {
					t.Fatalf("sample %d out of range: %v", i, v)
				}
			}
		})
	}
}

func TestPrepareScalesTo255(t *testing.T) {
	white := image.NewRGBA(image.Rect(0, 0, 120, 90))
	fill(white, color.White)
	got := Prepare(white)
	for i, v := range got.Data {
		if math.Abs(float64(v)-1.0) > 1e-6 {
			t.Fatalf("white sample %d = %v, want 1.0", i, v)
		}
	}

	black := image.NewRGBA(image.Rect(0, 0, 5, 5))
	fill(black, color.Black)
	for i, v := range Prepare(black).Data {
		if v != 0 {
			t.Fatalf("black sample %d = %v, want 0", i, v)
		}
	}
}

func TestGrayscaleLuminance(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 1))
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})
	img.Set(1, 0, color.RGBA{0, 255, 0, 255})
	img.Set(2, 0, color.RGBA{0, 0, 255, 255})

	g := Grayscale(img)
	want := []uint8{76, 150, 29}
	for x, w := range want {
		got := g.GrayAt(x, 0).Y
		if diff := int(got) - int(w); diff < -1 || diff > 1 {
			t.Errorf("pixel %d luminance = %d, want ~%d", x, got, w)
		}
	}
}
