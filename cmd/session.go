package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/andresmejia3/emotag/internal/config"
	"github.com/andresmejia3/emotag/internal/cv"
	"github.com/andresmejia3/emotag/internal/detect"
	"github.com/andresmejia3/emotag/internal/emoji"
	"github.com/andresmejia3/emotag/internal/pipeline"
	"github.com/andresmejia3/emotag/internal/report"
	"github.com/andresmejia3/emotag/internal/store"
	"github.com/andresmejia3/emotag/internal/stream"
	"github.com/andresmejia3/emotag/internal/utils"
	"github.com/andresmejia3/emotag/internal/worker"
)

// cleanup runs deferred teardown in reverse order of registration.
type cleanup []func() error

func (c *cleanup) add(fn func() error) { *c = append(*c, fn) }

func (c cleanup) run() {
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			fmt.Fprintf(os.Stderr, "⚠️  Cleanup failed: %v\n", err)
		}
	}
}

// buildPipeline loads the detector and classifier. Any failure here is a startup failure.
func buildPipeline(ctx context.Context, c config.Config, done *cleanup) (*pipeline.Pipeline, error) {
	var classifier pipeline.Classifier
	switch c.Classifier {
	case config.ClassifierDNN:
		dnn, err := cv.NewDNN(c.ModelPath)
		if err != nil {
			return nil, fmt.Errorf("load model: %w", err)
		}
		done.add(dnn.Close)
		classifier = dnn
	default:
		fmt.Fprintln(os.Stderr, "🚀 Starting Emotion Model...")
		w, err := worker.NewClassifier(ctx, c.WorkerScript, c.ModelPath, c.Timeout())
		if err != nil {
			return nil, fmt.Errorf("load model: %w", err)
		}
		done.add(w.Close)
		classifier = w
	}

	var detector pipeline.FaceDetector
	switch c.Detector {
	case config.DetectorCascade:
		cascade, err := detect.NewCascade(c.CascadePath)
		if err != nil {
			return nil, fmt.Errorf("load face detector: %w", err)
		}
		done.add(cascade.Close)
		detector = cascade
	default:
		if err := ensureCascade(ctx, c.CascadePath, detect.FacefinderURL); err != nil {
			return nil, fmt.Errorf("load face detector: %w", err)
		}
		p, err := detect.NewPigo(c.CascadePath)
		if err != nil {
			return nil, fmt.Errorf("load face detector: %w", err)
		}
		detector = p
	}

	return pipeline.New(detector, classifier, newPicker(c.Seed), c.DetectParams()), nil
}

// ensureCascade downloads the pigo cascade on first use.
func ensureCascade(ctx context.Context, path, url string) error {
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return nil // Present, or unreadable: NewPigo reports the latter
	}
	fmt.Fprintf(os.Stderr, "⬇️  Cascade %s not found, fetching %s\n", path, url)
	return detect.FetchCascade(ctx, url, path)
}

func newPicker(seed int64) *emoji.Mapper {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return emoji.NewSeededMapper(seed)
}

// openOutputs builds the optional presentation reporters named in c.
func openOutputs(ctx context.Context, c config.Config, mode stream.Mode, done *cleanup) ([]stream.Reporter, error) {
	var out []stream.Reporter

	if c.RecordDir != "" {
		rec, err := report.NewRecorder(c.RecordDir, mode.String())
		if err != nil {
			return nil, fmt.Errorf("open event log: %w", err)
		}
		done.add(rec.Close)
		fmt.Fprintf(os.Stderr, "📝 Recording events to %s\n", rec.Path())
		out = append(out, rec)
	}

	if c.SnapshotDir != "" {
		snaps, err := report.NewSnapshots(c.SnapshotDir)
		if err != nil {
			return nil, fmt.Errorf("open snapshot directory: %w", err)
		}
		out = append(out, snaps)
	}

	if c.ServeAddr != "" {
		hub := report.NewHub()
		hub.Frames = true
		serveCtx, stop := context.WithCancel(ctx)
		served := make(chan error, 1)
		go func() { served <- hub.Serve(serveCtx, c.ServeAddr) }()
		done.add(func() error {
			stop()
			return <-served
		})
		fmt.Fprintf(os.Stderr, "🌐 Serving live results on ws://%s/ws\n", c.ServeAddr)
		out = append(out, hub)
	}

	if c.PublishEndpoint != "" {
		pub, err := report.NewPublisher(c.PublishEndpoint)
		if err != nil {
			return nil, fmt.Errorf("open publisher: %w", err)
		}
		done.add(pub.Close)
		out = append(out, pub)
	}

	return out, nil
}

// runSession assembles the orchestrator for mode, runs it and records the outcome.
// progress, when non-nil, sees every displayed frame after the other reporters.
func runSession(ctx context.Context, mode stream.Mode, source string, progress stream.Reporter,
	run func(*stream.Orchestrator) (stream.Summary, error)) error {

	var done cleanup
	defer done.run()

	reporters := []stream.Reporter{&report.Console{Out: os.Stdout, Frames: mode != stream.ModeImage}}
	outputs, err := openOutputs(ctx, cfg, mode, &done)
	if err != nil {
		utils.ShowError("Failed to open outputs", err, nil)
		return err
	}
	reporters = append(reporters, outputs...)

	var orch *stream.Orchestrator
	p, err := buildPipeline(ctx, cfg, &done)
	if err != nil {
		orch = stream.Unavailable(err)
	}

	var sessionID int64
	if DB != nil && err == nil {
		var sourceID string
		if mode != stream.ModeLive {
			sourceID, _ = utils.GenerateSourceID(source)
		}
		sessionID, err = DB.CreateSession(ctx, mode.String(), source, sourceID, cfg.SkipInterval)
		if err != nil {
			utils.ShowError("Failed to register session", err, nil)
			return err
		}
		reporters = append(reporters, &report.StoreReporter{Sink: DB, SessionID: sessionID})
	}

	if progress != nil {
		reporters = append(reporters, progress)
	}
	if orch == nil {
		orch = stream.New(p, report.Multi(reporters...), stream.Config{
			SkipInterval: cfg.SkipInterval,
			AllFaces:     cfg.AllFaces,
		})
	}

	sum, runErr := run(orch)

	if sessionID != 0 {
		// The run context may be cancelled (Ctrl+C); the final write must still land.
		finishCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := DB.FinishSession(finishCtx, sessionID, sum.State.String(), totals(sum))
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "⚠️  Failed to record session %d: %v\n", sessionID, err)
		}
	}

	switch {
	case errors.Is(runErr, stream.ErrStartup):
		utils.ShowError("Emotion model unavailable", runErr, nil)
		return runErr
	case errors.Is(runErr, stream.ErrSourceOpen):
		utils.ShowError(fmt.Sprintf("Failed to open %s source", mode), runErr, nil)
		return runErr
	case runErr != nil:
		utils.ShowError("Session aborted", runErr, nil)
	}

	report.PrintSummary(os.Stderr, sum)
	if sessionID != 0 {
		fmt.Fprintf(os.Stderr, "💾 Saved as session %d\n", sessionID)
	}
	return runErr
}

func totals(sum stream.Summary) store.Totals {
	return store.Totals{
		Frames:   sum.Frames,
		Analyzed: sum.Analyzed,
		Faces:    sum.Faces,
		Failures: sum.Failures,
	}
}
