// Package source implements frame sources backed by an ffmpeg MJPEG pipe and still image decoding.
package source

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"os"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/andresmejia3/emotag/internal/utils"
)

const megabyte = 1024 * 1024

// MJPEG splits a concatenated JPEG stream into frames.
type MJPEG struct {
	scanner *bufio.Scanner
	pending []byte
}

func NewMJPEG(r io.Reader) *MJPEG {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, megabyte), 64*megabyte)
	scanner.Split(utils.SplitJpeg)
	return &MJPEG{scanner: scanner}
}

// Next returns the next decoded frame, io.EOF at end of stream.
func (m *MJPEG) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data := m.pending
	m.pending = nil
	if data == nil {
		if !m.scanner.Scan() {
			// Check for scanner errors (e.g. token too long, unexpected EOF)
			if err := m.scanner.Err(); err != nil {
				return nil, fmt.Errorf("frame scanner failed: %w", err)
			}
			return nil, io.EOF
		}
		data = m.scanner.Bytes()
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return img, nil
}

func (m *MJPEG) Close() error { return nil }

// peek reads the next JPEG ahead of Next. It reports false when the stream
// ended first.
func (m *MJPEG) peek() bool {
	if m.pending != nil {
		return true
	}
	if !m.scanner.Scan() {
		return false
	}
	m.pending = bytes.Clone(m.scanner.Bytes())
	return true
}

// FFmpeg is a frame source reading from an ffmpeg decoder process.
type FFmpeg struct {
	*MJPEG
	Cmd     *utils.SafeCommand
	out     io.ReadCloser
	cancel  context.CancelFunc
	waitErr error
	closed  bool
}

// OpenVideo starts decoding the video file at path.
func OpenVideo(ctx context.Context, path string) (*FFmpeg, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory, expected a video file", path)
	}
	if err := utils.ProbeVideo(ctx, path); err != nil {
		return nil, err
	}
	return start(ctx, path, "")
}

// OpenCamera starts capturing from camera device index through ffmpeg's format demuxer.
func OpenCamera(ctx context.Context, device int, format string) (*FFmpeg, error) {
	input := CameraInput(device, format)
	if strings.HasPrefix(input, "/dev/") {
		if _, err := os.Stat(input); err != nil {
			return nil, fmt.Errorf("camera %d unavailable: %w", device, err)
		}
	}
	return start(ctx, input, format)
}

// CameraInput maps a device index to the ffmpeg input name for format.
func CameraInput(device int, format string) string {
	switch format {
	case "v4l2":
		return fmt.Sprintf("/dev/video%d", device)
	case "avfoundation":
		return fmt.Sprintf("%d:none", device)
	case "dshow":
		return fmt.Sprintf("video=%d", device)
	}
	return fmt.Sprintf("%d", device)
}

func start(ctx context.Context, input, format string) (*FFmpeg, error) {
	ctx, cancel := context.WithCancel(ctx)
	cmd := utils.NewFFmpegCmd(ctx, input, format)

	out, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create FFmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start FFmpeg: %w", err)
	}

	f := &FFmpeg{
		MJPEG:  NewMJPEG(out),
		Cmd:    cmd,
		out:    out,
		cancel: cancel,
	}
	if err := f.awaitFirstFrame(); err != nil {
		return nil, fmt.Errorf("open %s: %w", input, err)
	}
	return f, nil
}

// awaitFirstFrame blocks until ffmpeg emits a frame or exits. A busy or missing
// device makes ffmpeg exit before its first frame; that is an open failure.
// A clean exit without frames is an empty stream.
func (f *FFmpeg) awaitFirstFrame() error {
	if f.peek() {
		return nil
	}
	scanErr := f.scanner.Err()

	// Output is drained, so Wait reports ffmpeg's own exit status.
	f.closed = true
	f.waitErr = f.Cmd.Wait()
	f.cancel()

	if f.waitErr == nil && scanErr == nil {
		return nil
	}
	err := f.waitErr
	if err == nil {
		err = scanErr
	}
	if stderr := strings.TrimSpace(f.Cmd.Stderr.String()); stderr != "" {
		return fmt.Errorf("ffmpeg exited before the first frame: %w\n%s", err, stderr)
	}
	return fmt.Errorf("ffmpeg exited before the first frame: %w", err)
}

// Close stops ffmpeg and reaps it. Exit errors caused by the stop are not reported;
// use Err for the decoder's own exit status.
func (f *FFmpeg) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	f.cancel()
	f.out.Close() // Ensure pipe is closed to prevent leaks/zombies
	f.waitErr = f.Cmd.Wait()
	return nil
}

// Err returns ffmpeg's exit error after Close.
func (f *FFmpeg) Err() error { return f.waitErr }

// DecodeImage reads a still image (jpeg, png, gif, bmp, webp).
func DecodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}
