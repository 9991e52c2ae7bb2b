package source

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/andresmejia3/emotag/internal/stream"
)

func encodeJPEG(t *testing.T, w io.Writer, c color.Color) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 12))
	for y := 0; y < 12; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, c)
		}
	}
	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatal(err)
	}
}

func TestMJPEGFrames(t *testing.T) {
	var stream bytes.Buffer
	for i := 0; i < 3; i++ {
		encodeJPEG(t, &stream, color.Gray{Y: uint8(40 * i)})
	}

	src := NewMJPEG(&stream)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		img, err := src.Next(ctx)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if img.Bounds() != image.Rect(0, 0, 16, 12) {
			t.Errorf("frame %d bounds = %v", i, img.Bounds())
		}
	}
	if _, err := src.Next(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("Expected io.EOF, got %v", err)
	}
}

func TestMJPEGCorruptFrame(t *testing.T) {
	// SOI/EOI markers around garbage look like a frame but fail to decode.
	src := NewMJPEG(bytes.NewReader([]byte{0xFF, 0xD8, 0x00, 0x01, 0xFF, 0xD9}))
	if _, err := src.Next(context.Background()); err == nil || errors.Is(err, io.EOF) {
		t.Errorf("Expected decode error, got %v", err)
	}
}

func TestMJPEGCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMJPEG(bytes.NewReader(nil)).Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestDecodeImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "face.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, image.NewNRGBA(image.Rect(0, 0, 7, 5))); err != nil {
		t.Fatal(err)
	}
	f.Close()

	img, err := DecodeImage(path)
	if err != nil {
		t.Fatalf("DecodeImage failed: %v", err)
	}
	if img.Bounds().Dx() != 7 || img.Bounds().Dy() != 5 {
		t.Errorf("bounds = %v", img.Bounds())
	}

	if _, err := DecodeImage(filepath.Join(dir, "missing.jpg")); err == nil {
		t.Error("Expected error for missing file")
	}

	bogus := filepath.Join(dir, "bogus.jpg")
	os.WriteFile(bogus, []byte("not an image"), 0644)
	if _, err := DecodeImage(bogus); err == nil {
		t.Error("Expected error for undecodable file")
	}
}

func TestOpenVideoRejectsDirectory(t *testing.T) {
	if _, err := OpenVideo(context.Background(), t.TempDir()); err == nil {
		t.Error("Expected error for directory input")
	}
	if _, err := OpenVideo(context.Background(), "does-not-exist.mp4"); err == nil {
		t.Error("Expected error for missing input")
	}
}

func TestCameraInput(t *testing.T) {
	tests := map[string]string{
		"v4l2":         "/dev/video0",
		"avfoundation": "0:none",
		"dshow":        "video=0",
		"":             "0",
	}
	for format, want := range tests {
		if got := CameraInput(0, format); got != want {
			t.Errorf("CameraInput(0, %q) = %q, want %q", format, got, want)
		}
	}
}

// fakeFFmpeg puts an executable named ffmpeg running script first on PATH.
func fakeFFmpeg(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in for ffmpeg needs a POSIX shell")
	}
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "ffmpeg"), []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
	return dir
}

func TestOpenCameraUnavailable(t *testing.T) {
	fakeFFmpeg(t, "echo '[avfoundation] Selected video device is busy' >&2\nexit 1\n")

	_, err := OpenCamera(context.Background(), 0, "avfoundation")
	if err == nil {
		t.Fatal("Expected error when ffmpeg exits before the first frame")
	}
	if !strings.Contains(err.Error(), "device is busy") {
		t.Errorf("Expected ffmpeg logs in error, got %v", err)
	}

	// The orchestrator turns it into a source open failure and aborts.
	orch := stream.New(nil, nil, stream.Config{SkipInterval: 5})
	sum, err := orch.RunStream(context.Background(), stream.ModeLive, func(ctx context.Context) (stream.FrameSource, error) {
		src, err := OpenCamera(ctx, 0, "avfoundation")
		if err != nil {
			return nil, err
		}
		return src, nil
	})
	if !errors.Is(err, stream.ErrSourceOpen) {
		t.Errorf("Expected ErrSourceOpen, got %v", err)
	}
	if sum.State != stream.Aborted || sum.Frames != 0 {
		t.Errorf("summary = %+v, want aborted with no frames", sum)
	}
}

func TestOpenCameraStreamsFrames(t *testing.T) {
	dir := fakeFFmpeg(t, "cat \"$(dirname \"$0\")/frames.mjpeg\"\n")

	var frames bytes.Buffer
	for i := 0; i < 2; i++ {
		encodeJPEG(t, &frames, color.Gray{Y: uint8(100 * i)})
	}
	if err := os.WriteFile(filepath.Join(dir, "frames.mjpeg"), frames.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	src, err := OpenCamera(context.Background(), 0, "avfoundation")
	if err != nil {
		t.Fatalf("OpenCamera failed: %v", err)
	}
	defer src.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := src.Next(ctx); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}
	if _, err := src.Next(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("Expected io.EOF, got %v", err)
	}
}

func TestOpenCameraEmptyStream(t *testing.T) {
	fakeFFmpeg(t, "exit 0\n")

	src, err := OpenCamera(context.Background(), 0, "dshow")
	if err != nil {
		t.Fatalf("Expected clean empty stream, got %v", err)
	}
	if _, err := src.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("Expected io.EOF, got %v", err)
	}
	if err := src.Close(); err != nil || src.Err() != nil {
		t.Errorf("Close = %v, Err = %v", err, src.Err())
	}
}
