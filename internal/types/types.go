package types

import (
	"fmt"
	"image"
)

// Label is one of the fixed emotion classes. Its value is the index into the
// classifier's probability vector.
type Label int

const (
	Angry Label = iota
	Disgust
	Fear
	Happy
	Sad
	Surprise
	Neutral
)

// NumLabels is the length of the classifier output vector.
const NumLabels = 7

var labelNames = [NumLabels]string{"angry", "disgust", "fear", "happy", "sad", "surprise", "neutral"}

// Labels returns every label in classifier output order.
func Labels() []Label {
	out := make([]Label, NumLabels)
	for i := range out {
		out[i] = Label(i)
	}
	return out
}

func (l Label) Valid() bool { return l >= 0 && int(l) < NumLabels }

func (l Label) String() string {
	if !l.Valid() {
		return fmt.Sprintf("label(%d)", int(l))
	}
	return labelNames[l]
}

// ParseLabel maps a label name back to its Label.
func ParseLabel(s string) (Label, error) {
	for i, name := range labelNames {
		if name == s {
			return Label(i), nil
		}
	}
	return 0, fmt.Errorf("unknown emotion label %q", s)
}

// BoundingBox is a face rectangle in frame pixel coordinates.
type BoundingBox struct {
	X      int `json:"x" cbor:"x"`
	Y      int `json:"y" cbor:"y"`
	Width  int `json:"width" cbor:"w"`
	Height int `json:"height" cbor:"h"`
}

func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// BoxFromRect converts an image.Rectangle into a BoundingBox.
func BoxFromRect(r image.Rectangle) BoundingBox {
	return BoundingBox{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// DetectParams are the detector sensitivity settings passed on every Detect call.
type DetectParams struct {
	ScaleFactor  float64 // pyramid scale step, > 1
	MinNeighbors int     // cascade backend: overlapping hits required per face
	MinSize      int     // smallest face side in pixels
	MinQuality   float64 // pigo backend: minimum cluster score
}

// Tensor geometry expected by the classifier: (1, 48, 48, 1).
const (
	TensorBatch    = 1
	TensorSide     = 48
	TensorChannels = 1
	TensorSize     = TensorBatch * TensorSide * TensorSide * TensorChannels
)

// Tensor is the normalized classifier input. Data is row-major, every sample in [0,1].
type Tensor struct {
	Data []float32
}

func (t Tensor) Shape() [4]int {
	return [4]int{TensorBatch, TensorSide, TensorSide, TensorChannels}
}

// At returns the sample at row y, column x of the single batch entry.
func (t Tensor) At(y, x int) float32 {
	return t.Data[y*TensorSide+x]
}

// DetectionResult is the per-frame pipeline output. Found is false for the NoFace sentinel.
type DetectionResult struct {
	Found  bool        `json:"found" cbor:"found"`
	Label  Label       `json:"label" cbor:"label"`
	Glyphs [3]string   `json:"glyphs" cbor:"glyphs"`
	Glyph  string      `json:"glyph" cbor:"glyph"`
	Box    BoundingBox `json:"box" cbor:"box"`
}

// NoFace is the result for a frame without any detected face.
var NoFace = DetectionResult{}

func (r DetectionResult) String() string {
	if !r.Found {
		return "no face"
	}
	return fmt.Sprintf("%s %s", r.Label, r.Glyph)
}

// FrameEvent is reported once per displayed frame. Result is nil for frames skipped
// by the throttle and for frames whose inference failed (Err is set then).
type FrameEvent struct {
	Index  int
	Frame  image.Image
	Result *DetectionResult
	Faces  []DetectionResult
	Err    error
}

// Analyzed reports whether the pipeline ran on this frame.
func (e FrameEvent) Analyzed() bool {
	return e.Result != nil || e.Err != nil
}
