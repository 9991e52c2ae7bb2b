// Package stream drives the annotation pipeline over a still image, a decoded video or a
// live camera and reports every displayed frame.
package stream

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/andresmejia3/emotag/internal/types"
)

var (
	// ErrStartup means the classifier could not be loaded; no mode accepts input.
	ErrStartup = errors.New("startup failure")
	// ErrSourceOpen means the frame source could not be opened; the session aborts.
	ErrSourceOpen = errors.New("frame source unavailable")
)

// DefaultSkipInterval analyzes every 5th frame, starting with frame 0.
const DefaultSkipInterval = 5

// Mode selects the frame source kind.
type Mode int

const (
	ModeImage Mode = iota
	ModeVideo
	ModeLive
)

func (m Mode) String() string {
	switch m {
	case ModeImage:
		return "image"
	case ModeVideo:
		return "video"
	case ModeLive:
		return "live"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode accepts "image", "video", "live" and "livefeed".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "image":
		return ModeImage, nil
	case "video":
		return ModeVideo, nil
	case "live", "livefeed":
		return ModeLive, nil
	}
	return 0, fmt.Errorf("unknown mode %q (want image, video or live)", s)
}

// State is the orchestrator lifecycle: Idle -> Running -> Completed | Aborted.
type State int

const (
	Idle State = iota
	Running
	Completed
	Aborted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Aborted:
		return "aborted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// FrameSource yields frames one at a time. Next returns io.EOF at end of stream.
type FrameSource interface {
	Next(ctx context.Context) (image.Image, error)
	Close() error
}

// Opener acquires a FrameSource when a session starts.
type Opener func(ctx context.Context) (FrameSource, error)

// ImageOpener decodes the single frame of image mode.
type ImageOpener func(ctx context.Context) (image.Image, error)

// Annotator is the per-frame pipeline operation.
type Annotator interface {
	Annotate(ctx context.Context, frame image.Image) (types.DetectionResult, error)
}

// MultiAnnotator is implemented by annotators supporting the multi-face extension.
type MultiAnnotator interface {
	AnnotateAll(ctx context.Context, frame image.Image) ([]types.DetectionResult, error)
}

// Reporter receives every displayed frame.
type Reporter interface {
	Report(ctx context.Context, ev types.FrameEvent) error
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, ev types.FrameEvent) error

func (f ReporterFunc) Report(ctx context.Context, ev types.FrameEvent) error { return f(ctx, ev) }

// Config controls throttling and the multi-face extension.
type Config struct {
	SkipInterval int
	AllFaces     bool
}

// Summary describes a finished session.
type Summary struct {
	Mode     Mode
	State    State
	Frames   int
	Analyzed int
	Faces    int
	Failures int
	Labels   map[types.Label]int
}

func newSummary(mode Mode) Summary {
	return Summary{Mode: mode, Labels: make(map[types.Label]int)}
}
