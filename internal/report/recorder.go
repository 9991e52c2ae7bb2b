package report

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/andresmejia3/emotag/internal/types"
)

const recordMagic = "EMOTAG01"

// Recorder appends every event as a CBOR Message to a length-framed log:
// magic, then per record [8 byte unix nanos][4 byte length][payload], little endian.
type Recorder struct {
	mu   sync.Mutex
	f    *os.File
	w    *bufio.Writer
	path string
}

func NewRecorder(outputDir, prefix string) (*Recorder, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}
	timestamp := time.Now().Format("20060102_150405")
	filename := filepath.Join(outputDir, fmt.Sprintf("%s_%s.cbor", timestamp, prefix))
	f, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	w := bufio.NewWriterSize(f, 1024*1024)
	if _, err := w.WriteString(recordMagic); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Recorder{f: f, w: w, path: filename}, nil
}

// Path is the log file being written.
func (r *Recorder) Path() string { return r.path }

func (r *Recorder) Report(_ context.Context, ev types.FrameEvent) error {
	payload, err := cbor.Marshal(NewMessage(ev))
	if err != nil {
		return err
	}
	return r.Record(payload)
}

func (r *Recorder) Record(payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return fmt.Errorf("recorder is closed")
	}
	var header [12]byte
	binary.LittleEndian.PutUint64(header[:8], uint64(time.Now().UnixNano()))
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(payload)))
	if _, err := r.w.Write(header[:]); err != nil {
		return err
	}
	if _, err := r.w.Write(payload); err != nil {
		return err
	}
	return r.w.Flush()
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return nil
	}
	if err := r.w.Flush(); err != nil {
		_ = r.f.Close()
		r.w = nil
		return err
	}
	err := r.f.Close()
	r.w = nil
	return err
}

// ReadRecords decodes a log written by Recorder.
func ReadRecords(rd io.Reader) ([]Message, error) {
	br := bufio.NewReader(rd)
	magic := make([]byte, len(recordMagic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if string(magic) != recordMagic {
		return nil, fmt.Errorf("not an emotag event log")
	}

	var out []Message
	for {
		var header [12]byte
		if _, err := io.ReadFull(br, header[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, fmt.Errorf("record %d header: %w", len(out), err)
		}
		payload := make([]byte, binary.LittleEndian.Uint32(header[8:12]))
		if _, err := io.ReadFull(br, payload); err != nil {
			return out, fmt.Errorf("record %d payload: %w", len(out), err)
		}
		var msg Message
		if err := cbor.Unmarshal(payload, &msg); err != nil {
			return out, fmt.Errorf("record %d: %w", len(out), err)
		}
		out = append(out, msg)
	}
}
