// Package pipeline composes face detection, preprocessing, classification and glyph
// selection into a single per-frame operation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/andresmejia3/emotag/internal/emoji"
	"github.com/andresmejia3/emotag/internal/preprocess"
	"github.com/andresmejia3/emotag/internal/types"
)

// ErrInference marks a detector or classifier failure on a specific frame.
var ErrInference = errors.New("inference failed")

// FaceDetector finds faces in a single-channel frame.
type FaceDetector interface {
	Detect(ctx context.Context, gray *image.Gray, params types.DetectParams) ([]types.BoundingBox, error)
}

// Classifier returns a probability per types.Label for a normalized face tensor.
type Classifier interface {
	Classify(ctx context.Context, t types.Tensor) ([]float32, error)
}

// GlyphPicker selects the displayed glyph for a label.
type GlyphPicker interface {
	Pick(label types.Label) string
}

// Pipeline annotates frames. It holds no per-frame state.
type Pipeline struct {
	detector   FaceDetector
	classifier Classifier
	picker     GlyphPicker
	params     types.DetectParams
}

func New(detector FaceDetector, classifier Classifier, picker GlyphPicker, params types.DetectParams) *Pipeline {
	return &Pipeline{
		detector:   detector,
		classifier: classifier,
		picker:     picker,
		params:     params,
	}
}

// Annotate reports the emotion of the first face the detector returns, or types.NoFace.
func (p *Pipeline) Annotate(ctx context.Context, frame image.Image) (types.DetectionResult, error) {
	boxes, err := p.detect(ctx, frame)
	if err != nil {
		return types.NoFace, err
	}
	if len(boxes) == 0 {
		return types.NoFace, nil
	}
	return p.classify(ctx, frame, boxes[0])
}

// AnnotateAll is the opt-in multi-face variant: one result per box, in detector order.
// An empty slice means no face was found.
func (p *Pipeline) AnnotateAll(ctx context.Context, frame image.Image) ([]types.DetectionResult, error) {
	boxes, err := p.detect(ctx, frame)
	if err != nil {
		return nil, err
	}
	results := make([]types.DetectionResult, 0, len(boxes))
	for _, box := range boxes {
		res, err := p.classify(ctx, frame, box)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (p *Pipeline) detect(ctx context.Context, frame image.Image) ([]types.BoundingBox, error) {
	gray := preprocess.Grayscale(frame)
	boxes, err := p.detector.Detect(ctx, gray, p.params)
	if err != nil {
		return nil, fmt.Errorf("%w: face detection: %w", ErrInference, err)
	}
	return boxes, nil
}

func (p *Pipeline) classify(ctx context.Context, frame image.Image, box types.BoundingBox) (types.DetectionResult, error) {
	region, err := Region(frame, box)
	if err != nil {
		return types.NoFace, fmt.Errorf("%w: %w", ErrInference, err)
	}

	probs, err := p.classifier.Classify(ctx, preprocess.Prepare(region))
	if err != nil {
		return types.NoFace, fmt.Errorf("%w: classification: %w", ErrInference, err)
	}
	if len(probs) != types.NumLabels {
		return types.NoFace, fmt.Errorf("%w: classifier returned %d scores, want %d", ErrInference, len(probs), types.NumLabels)
	}

	label := types.Label(ArgMax(probs))
	return types.DetectionResult{
		Found:  true,
		Label:  label,
		Glyphs: emoji.Glyphs(label),
		Glyph:  p.picker.Pick(label),
		Box:    box,
	}, nil
}

// ArgMax returns the index of the largest score. Ties resolve to the lowest index.
func ArgMax(scores []float32) int {
	best := 0
	for i, v := range scores {
		if v > scores[best] {
			best = i
		}
	}
	return best
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// Region returns the read-only view of frame selected by box.
func Region(frame image.Image, box types.BoundingBox) (image.Image, error) {
	r := box.Rect()
	if box.Width <= 0 || box.Height <= 0 || !r.In(frame.Bounds()) {
		return nil, fmt.Errorf("face box %v outside frame %v", r, frame.Bounds())
	}
	if s, ok := frame.(subImager); ok {
		return s.SubImage(r), nil
	}
	return &region{src: frame, rect: r}, nil
}

// region is the fallback view for images without SubImage.
type region struct {
	src  image.Image
	rect image.Rectangle
}

func (r *region) ColorModel() color.Model { return r.src.ColorModel() }
func (r *region) Bounds() image.Rectangle { return r.rect }
func (r *region) At(x, y int) color.Color { return r.src.At(x, y) }
