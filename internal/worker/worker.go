package worker

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync"
	"time"

	"github.com/andresmejia3/emotag/internal/types"
	"github.com/andresmejia3/emotag/internal/utils" // Using the SafeCommand wrapper
)

// PythonWorker runs the Keras expression model in a child process.
type PythonWorker struct {
	ID       int
	Cmd      *utils.SafeCommand
	Stdin    io.WriteCloser
	DataPipe io.ReadCloser
	Timeout  time.Duration

	// Respawn, when set, starts a replacement after a request is interrupted.
	Respawn func(ctx context.Context) (*PythonWorker, error)

	mu     sync.Mutex
	broken error
}

func NewPythonWorker(ctx context.Context, id int, script, model string) (*PythonWorker, error) {
	// 1. Initialize the SafeCommand we built
	py := utils.NewSafeCommand(ctx, "python3", "-u", script, "--model", model)

	// Create a side-channel pipe (FD 3) for clean data transfer
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}
	// Pass the write-end to the child process. It will appear as FD 3.
	py.Cmd.ExtraFiles = []*os.File{w}

	stdin, err := py.StdinPipe()
	if err != nil {
		w.Close() // Prevent FD leak
		r.Close() // Close read-end too!
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := py.Start(); err != nil {
		w.Close() // Close write end if start fails
		r.Close() // Close read-end too!
		return nil, fmt.Errorf("worker %d failed to start: %w", id, err)
	}

	// Close the write-end in the parent so only the child holds it
	w.Close()

	return &PythonWorker{
		ID:       id,
		Cmd:      py,
		Stdin:    stdin,
		DataPipe: r,
	}, nil
}

// NewClassifier starts a worker for model and waits until the model is loaded.
// A missing model file or a failed load is reported before any frame is read.
func NewClassifier(ctx context.Context, script, model string, timeout time.Duration) (*PythonWorker, error) {
	if _, err := os.Stat(model); err != nil {
		return nil, fmt.Errorf("model %s: %w", model, err)
	}
	if _, err := os.Stat(script); err != nil {
		return nil, fmt.Errorf("worker script %s: %w", script, err)
	}

	w, err := startReady(ctx, 0, script, model)
	if err != nil {
		return nil, err
	}
	// Applies to Classify only; model loading is bounded by ctx alone.
	w.Timeout = timeout
	w.Respawn = func(ctx context.Context) (*PythonWorker, error) {
		return startReady(ctx, w.ID+1, script, model)
	}
	return w, nil
}

func startReady(ctx context.Context, id int, script, model string) (*PythonWorker, error) {
	w, err := NewPythonWorker(ctx, id, script, model)
	if err != nil {
		return nil, err
	}
	if err := w.AwaitReady(ctx); err != nil {
		w.Close()
		if w.Cmd.Stderr.Len() > 0 {
			return nil, fmt.Errorf("%w\n%s", err, w.Cmd.Stderr.String())
		}
		return nil, err
	}
	return w, nil
}

// AwaitReady consumes the handshake the worker sends once its model is loaded.
// Only ctx bounds it; loading a model can take far longer than one inference.
func (w *PythonWorker) AwaitReady(ctx context.Context) error {
	return w.call(ctx, 0, func() error {
		body, err := w.readFrame()
		if err != nil {
			return fmt.Errorf("worker %d exited before ready: %w", w.ID, err)
		}
		if _, err := parseScores(body); err != nil {
			return err
		}
		return nil
	})
}

// Communicate sends one length-prefixed request and returns the response body.
func (w *PythonWorker) Communicate(data []byte) ([]byte, error) {
	// Protocol: [Length][Data]
	if err := binary.Write(w.Stdin, binary.BigEndian, uint32(len(data))); err != nil {
		return nil, err
	}
	if _, err := w.Stdin.Write(data); err != nil {
		return nil, err
	}
	return w.readFrame()
}

func (w *PythonWorker) readFrame() ([]byte, error) {
	// Now we read from our clean DataPipe, so no Magic Byte is needed.
	header := make([]byte, 4)
	if _, err := io.ReadFull(w.DataPipe, header); err != nil {
		return nil, err // This is where we catch the "ModuleNotFoundError" crash
	}

	respLen := binary.BigEndian.Uint32(header)
	respBody := make([]byte, respLen)
	_, err := io.ReadFull(w.DataPipe, respBody)
	return respBody, err
}

// Classify returns the seven expression scores for t.
func (w *PythonWorker) Classify(ctx context.Context, t types.Tensor) ([]float32, error) {
	if len(t.Data) != types.TensorSize {
		return nil, fmt.Errorf("tensor has %d values, want %d", len(t.Data), types.TensorSize)
	}
	req := new(bytes.Buffer)
	req.Grow(4 * types.TensorSize)
	if err := binary.Write(req, binary.BigEndian, t.Data); err != nil {
		return nil, err
	}

	var scores []float32
	err := w.call(ctx, w.Timeout, func() error {
		resp, err := w.Communicate(req.Bytes())
		if err != nil {
			return fmt.Errorf("worker %d: %w", w.ID, err)
		}
		scores, err = parseScores(resp)
		return err
	})
	return scores, err
}

// call serializes access to the pipes and bounds fn by ctx and timeout (0 = none).
// A request that does not finish leaves the pipes mid-frame: the process is killed
// and replaced through Respawn. Without Respawn, or when it fails, every later call
// fails.
func (w *PythonWorker) call(ctx context.Context, timeout time.Duration, fn func() error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.broken != nil {
		return w.broken
	}

	parent := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		err := fmt.Errorf("worker %d interrupted: %w", w.ID, ctx.Err())
		w.kill()
		<-done // The request goroutine must be off the old pipes before they are replaced
		if rerr := w.respawn(parent); rerr != nil {
			w.broken = fmt.Errorf("worker %d unusable after interrupted request: %w", w.ID, errors.Join(ctx.Err(), rerr))
		}
		return err
	}
}

// respawn swaps in a fresh process. It fails when the session itself is over.
func (w *PythonWorker) respawn(ctx context.Context) error {
	if w.Respawn == nil {
		return errors.New("no respawn configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	w.reap()
	nw, err := w.Respawn(ctx)
	if err != nil {
		return fmt.Errorf("respawn: %w", err)
	}
	fmt.Fprintf(os.Stderr, "⚠️  Worker %d timed out, replaced by worker %d\n", w.ID, nw.ID)
	w.ID, w.Cmd, w.Stdin, w.DataPipe = nw.ID, nw.Cmd, nw.Stdin, nw.DataPipe
	return nil
}

func (w *PythonWorker) kill() {
	if w.Cmd != nil && w.Cmd.Process != nil {
		w.Cmd.Process.Kill()
	}
	w.Stdin.Close()
	w.DataPipe.Close()
}

// reap collects a killed process so it does not linger as a zombie.
func (w *PythonWorker) reap() {
	if w.Cmd != nil {
		w.Cmd.Wait()
		w.Cmd = nil
	}
}

// Protocol: [Status:0] [N] [N x float32]  or  [Status:1] [MsgLen] [Msg]
func parseScores(body []byte) ([]float32, error) {
	r := bytes.NewReader(body)
	status, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("empty worker response")
	}

	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, fmt.Errorf("truncated worker response: %w", err)
	}

	if status != 0 {
		msg := make([]byte, n)
		if _, err := io.ReadFull(r, msg); err != nil {
			return nil, fmt.Errorf("truncated worker error: %w", err)
		}
		return nil, fmt.Errorf("python worker error: %s", msg)
	}

	if int(n)*4 != r.Len() {
		return nil, fmt.Errorf("worker response declares %d scores but carries %d bytes", n, r.Len())
	}
	scores := make([]float32, n)
	for i := range scores {
		var bits uint32
		binary.Read(r, binary.BigEndian, &bits)
		scores[i] = math.Float32frombits(bits)
	}
	return scores, nil
}

func (w *PythonWorker) Close() error {
	w.Stdin.Close()
	w.DataPipe.Close()
	if w.Cmd == nil {
		return nil
	}
	return w.Cmd.Wait()
}
