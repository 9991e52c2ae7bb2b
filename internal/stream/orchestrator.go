package stream

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/andresmejia3/emotag/internal/types"
)

// Orchestrator runs one session at a time. It is not safe for concurrent use.
type Orchestrator struct {
	annotator Annotator
	reporter  Reporter
	cfg       Config
	startErr  error
	state     State
}

// New returns an Idle orchestrator. A SkipInterval below 1 falls back to DefaultSkipInterval.
func New(annotator Annotator, reporter Reporter, cfg Config) *Orchestrator {
	if cfg.SkipInterval < 1 {
		cfg.SkipInterval = DefaultSkipInterval
	}
	return &Orchestrator{annotator: annotator, reporter: reporter, cfg: cfg}
}

// Unavailable returns an orchestrator for a failed startup: every mode rejects input
// with an error wrapping ErrStartup and cause.
func Unavailable(cause error) *Orchestrator {
	return &Orchestrator{startErr: fmt.Errorf("%w: %w", ErrStartup, cause)}
}

func (o *Orchestrator) State() State { return o.state }

// RunImage annotates exactly one frame.
func (o *Orchestrator) RunImage(ctx context.Context, open ImageOpener) (Summary, error) {
	sum := newSummary(ModeImage)
	if o.startErr != nil {
		sum.State = o.state
		return sum, o.startErr
	}

	o.state = Running
	frame, err := open(ctx)
	if err != nil {
		o.state = Aborted
		sum.State = o.state
		return sum, fmt.Errorf("%w: %w", ErrSourceOpen, err)
	}

	if err := o.step(ctx, 0, frame, true, &sum); err != nil {
		o.state = Aborted
		sum.State = o.state
		return sum, err
	}
	o.state = Completed
	sum.State = o.state
	return sum, nil
}

// RunStream pulls frames from the opened source until end of stream, a read failure
// or cancellation of ctx, analyzing every SkipInterval-th frame. The source is closed
// on every exit path.
func (o *Orchestrator) RunStream(ctx context.Context, mode Mode, open Opener) (sum Summary, err error) {
	sum = newSummary(mode)
	if o.startErr != nil {
		sum.State = o.state
		return sum, o.startErr
	}

	o.state = Running
	src, err := open(ctx)
	if err != nil {
		o.state = Aborted
		sum.State = o.state
		return sum, fmt.Errorf("%w: %w", ErrSourceOpen, err)
	}
	defer func() {
		if cerr := src.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close frame source: %w", cerr)
		}
	}()

	for counter := 0; ; counter++ {
		// Cooperative stop, checked once per frame boundary.
		if ctx.Err() != nil {
			break
		}

		frame, rerr := src.Next(ctx)
		if rerr != nil {
			// io.EOF and mid-stream read failures both end the session normally.
			if !errors.Is(rerr, io.EOF) && ctx.Err() == nil {
				sum.Failures++
			}
			break
		}

		if err := o.step(ctx, counter, frame, counter%o.cfg.SkipInterval == 0, &sum); err != nil {
			o.state = Aborted
			sum.State = o.state
			return sum, err
		}
	}

	o.state = Completed
	sum.State = o.state
	return sum, nil
}

// step processes one frame. Only reporter failures are returned: inference failures
// are reported on the event and processing continues.
func (o *Orchestrator) step(ctx context.Context, index int, frame image.Image, analyze bool, sum *Summary) error {
	ev := types.FrameEvent{Index: index, Frame: frame}
	sum.Frames++

	if analyze {
		sum.Analyzed++
		res, faces, err := o.annotate(ctx, frame)
		if err != nil {
			ev.Err = err
			sum.Failures++
		} else {
			ev.Result = &res
			ev.Faces = faces
			if res.Found {
				sum.Faces++
				sum.Labels[res.Label]++
			}
		}
	}

	if o.reporter == nil {
		return nil
	}
	if err := o.reporter.Report(ctx, ev); err != nil {
		return fmt.Errorf("report frame %d: %w", index, err)
	}
	return nil
}

func (o *Orchestrator) annotate(ctx context.Context, frame image.Image) (types.DetectionResult, []types.DetectionResult, error) {
	if o.cfg.AllFaces {
		if multi, ok := o.annotator.(MultiAnnotator); ok {
			faces, err := multi.AnnotateAll(ctx, frame)
			if err != nil {
				return types.NoFace, nil, err
			}
			if len(faces) == 0 {
				return types.NoFace, nil, nil
			}
			return faces[0], faces, nil
		}
	}
	res, err := o.annotator.Annotate(ctx, frame)
	return res, nil, err
}
