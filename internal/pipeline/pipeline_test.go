package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"
	"testing"

	"github.com/andresmejia3/emotag/internal/emoji"
	"github.com/andresmejia3/emotag/internal/types"
)

// stubDetector returns a fixed box list and records what it was called with.
type stubDetector struct {
	boxes  []types.BoundingBox
	err    error
	calls  int
	gray   *image.Gray
	params types.DetectParams
}

func (d *stubDetector) Detect(_ context.Context, gray *image.Gray, p types.DetectParams) ([]types.BoundingBox, error) {
	d.calls++
	d.gray = gray
	d.params = p
	return d.boxes, d.err
}

// brightnessClassifier maps the mean tensor value onto a label so different regions
// produce different, predictable labels.
type brightnessClassifier struct {
	err   error
	calls int
	means []float64
}

func (c *brightnessClassifier) Classify(_ context.Context, t types.Tensor) ([]float32, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	var sum float64
	for _, v := range t.Data {
		sum += float64(v)
	}
	mean := sum / float64(len(t.Data))
	c.means = append(c.means, mean)

	probs := make([]float32, types.NumLabels)
	idx := int(mean * float64(types.NumLabels-1))
	probs[idx] = 0.9
	return probs, nil
}

type fixedClassifier []float32

func (f fixedClassifier) Classify(context.Context, types.Tensor) ([]float32, error) {
	return f, nil
}

// twoTone builds a frame whose left half is red and right half is white.
func twoTone() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	draw.Draw(img, image.Rect(0, 0, 100, 100), &image.Uniform{color.RGBA{255, 0, 0, 255}}, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(100, 0, 200, 100), &image.Uniform{color.White}, image.Point{}, draw.Src)
	return img
}

var (
	redBox   = types.BoundingBox{X: 10, Y: 10, Width: 60, Height: 60}
	whiteBox = types.BoundingBox{X: 120, Y: 20, Width: 50, Height: 50}
	mixedBox = types.BoundingBox{X: 70, Y: 0, Width: 60, Height: 80}
)

func TestAnnotateNoFace(t *testing.T) {
	det := &stubDetector{}
	cls := &brightnessClassifier{}
	p := New(det, cls, emoji.NewSeededMapper(1), types.DetectParams{ScaleFactor: 1.1, MinNeighbors: 5})

	res, err := p.Annotate(context.Background(), twoTone())
	if err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}
	if res.Found || res != types.NoFace {
		t.Errorf("Expected NoFace, got %+v", res)
	}
	if cls.calls != 0 {
		t.Errorf("classifier called %d times on a faceless frame", cls.calls)
	}
}

func TestAnnotateUsesFirstBoxOnly(t *testing.T) {
	orders := [][]types.BoundingBox{
		{redBox, whiteBox, mixedBox},
		{redBox, mixedBox, whiteBox},
	}

	var results []types.DetectionResult
	for _, boxes := range orders {
		cls := &brightnessClassifier{}
		p := New(&stubDetector{boxes: boxes}, cls, emoji.NewSeededMapper(3), types.DetectParams{})
		res, err := p.Annotate(context.Background(), twoTone())
		if err != nil {
			t.Fatalf("Annotate failed: %v", err)
		}
		if cls.calls != 1 {
			t.Fatalf("Expected exactly 1 classification, got %d", cls.calls)
		}
		results = append(results, res)
	}

	if results[0] != results[1] {
		t.Errorf("reordering trailing boxes changed result: %+v vs %+v", results[0], results[1])
	}
	if results[0].Box != redBox {
		t.Errorf("Expected result for first box %v, got %v", redBox, results[0].Box)
	}
}

func TestAnnotateCarvesColorRegion(t *testing.T) {
	det := &stubDetector{boxes: []types.BoundingBox{redBox}}
	cls := &brightnessClassifier{}
	params := types.DetectParams{ScaleFactor: 1.2, MinNeighbors: 3, MinSize: 20}
	p := New(det, cls, emoji.NewSeededMapper(1), params)

	res, err := p.Annotate(context.Background(), twoTone())
	if err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}

	if det.gray == nil || det.gray.Bounds() != image.Rect(0, 0, 200, 100) {
		t.Fatalf("detector did not receive a full-frame grayscale image")
	}
	if det.params != params {
		t.Errorf("detector params = %+v, want %+v", det.params, params)
	}

	// Pure red has luminance ~76/255.
	if math.Abs(cls.means[0]-76.0/255.0) > 0.01 {
		t.Errorf("classifier saw mean %.3f, want red luminance ~0.298", cls.means[0])
	}
	if !res.Found || res.Label != types.Label(int(cls.means[0]*6)) {
		t.Errorf("unexpected result %+v", res)
	}
	if res.Glyphs != emoji.Glyphs(res.Label) {
		t.Errorf("glyphs %v do not match label %s", res.Glyphs, res.Label)
	}
	found := false
	for _, g := range res.Glyphs {
		found = found || g == res.Glyph
	}
	if !found {
		t.Errorf("picked glyph %q not among %v", res.Glyph, res.Glyphs)
	}
}

func TestAnnotateArgMaxLabel(t *testing.T) {
	probs := fixedClassifier{0.01, 0.02, 0.05, 0.7, 0.1, 0.1, 0.02}
	p := New(&stubDetector{boxes: []types.BoundingBox{whiteBox}}, probs, emoji.NewSeededMapper(1), types.DetectParams{})
	res, err := p.Annotate(context.Background(), twoTone())
	if err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}
	if res.Label != types.Happy {
		t.Errorf("Label = %s, want happy", res.Label)
	}
}

func TestAnnotateErrors(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name string
		det  FaceDetector
		cls  Classifier
	}{
		{"detector failure", &stubDetector{err: boom}, &brightnessClassifier{}},
		{"classifier failure", &stubDetector{boxes: []types.BoundingBox{redBox}}, &brightnessClassifier{err: boom}},
		{"short score vector", &stubDetector{boxes: []types.BoundingBox{redBox}}, fixedClassifier{1, 0}},
		{"box outside frame", &stubDetector{boxes: []types.BoundingBox{{X: 190, Y: 90, Width: 40, Height: 40}}}, &brightnessClassifier{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.det, tt.cls, emoji.NewSeededMapper(1), types.DetectParams{})
			_, err := p.Annotate(context.Background(), twoTone())
			if !errors.Is(err, ErrInference) {
				t.Fatalf("Expected ErrInference, got %v", err)
			}
		})
	}
}

func TestAnnotateAll(t *testing.T) {
	cls := &brightnessClassifier{}
	p := New(&stubDetector{boxes: []types.BoundingBox{redBox, whiteBox}}, cls, emoji.NewSeededMapper(1), types.DetectParams{})
	results, err := p.AnnotateAll(context.Background(), twoTone())
	if err != nil {
		t.Fatalf("AnnotateAll failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].Box != redBox || results[1].Box != whiteBox {
		t.Errorf("results not in detector order: %+v", results)
	}
	if results[1].Label != types.Neutral {
		t.Errorf("white region label = %s, want neutral", results[1].Label)
	}

	none, err := New(&stubDetector{}, cls, emoji.NewSeededMapper(1), types.DetectParams{}).AnnotateAll(context.Background(), twoTone())
	if err != nil || len(none) != 0 {
		t.Errorf("Expected no results, got %v, %v", none, err)
	}
}

func TestArgMax(t *testing.T) {
	tests := []struct {
		scores []float32
		want   int
	}{
		{[]float32{0.1, 0.5, 0.4}, 1},
		{[]float32{0.3, 0.3, 0.3}, 0},
		{[]float32{0, 0, 0, 0, 0, 0, 1}, 6},
	}
	for _, tt := range tests {
		if got := ArgMax(tt.scores); got != tt.want {
			t.Errorf("ArgMax(%v) = %d, want %d", tt.scores, got, tt.want)
		}
	}
}

// plainImage hides SubImage so Region takes the fallback path.
type plainImage struct{ image.Image }

func TestRegionFallback(t *testing.T) {
	r, err := Region(plainImage{twoTone()}, redBox)
	if err != nil {
		t.Fatal(err)
	}
	if r.Bounds() != redBox.Rect() {
		t.Errorf("Bounds() = %v", r.Bounds())
	}
	if _, err := Region(twoTone(), types.BoundingBox{X: 1, Y: 1}); err == nil {
		t.Error("Expected error for zero-area box")
	}
}
