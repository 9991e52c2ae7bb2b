package report

import (
	"context"

	"github.com/andresmejia3/emotag/internal/store"
	"github.com/andresmejia3/emotag/internal/types"
)

// AnnotationSink is the part of store.Store the reporter writes to.
type AnnotationSink interface {
	InsertAnnotation(ctx context.Context, a store.Annotation) error
}

// StoreReporter persists every analyzed frame of one session.
type StoreReporter struct {
	Sink      AnnotationSink
	SessionID int64
}

func (s *StoreReporter) Report(ctx context.Context, ev types.FrameEvent) error {
	if !ev.Analyzed() {
		return nil
	}
	for _, a := range Annotations(s.SessionID, ev) {
		if err := s.Sink.InsertAnnotation(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Annotations maps an analyzed event to rows: one per face, or a single row
// for a no-face or failed frame.
func Annotations(sessionID int64, ev types.FrameEvent) []store.Annotation {
	base := store.Annotation{SessionID: sessionID, FrameIndex: ev.Index}
	if ev.Err != nil {
		base.Error = ev.Err.Error()
		return []store.Annotation{base}
	}
	if ev.Result == nil || !ev.Result.Found {
		return []store.Annotation{base}
	}

	faces := ev.Faces
	if len(faces) == 0 {
		faces = []types.DetectionResult{*ev.Result}
	}
	out := make([]store.Annotation, 0, len(faces))
	for _, f := range faces {
		a := base
		a.Found = true
		a.Label = f.Label.String()
		a.Glyph = f.Glyph
		a.Box = f.Box
		out = append(out, a)
	}
	return out
}
