//go:build !gocv

package cv

import (
	"errors"
	"testing"
)

func TestStubsReportMissingOpenCV(t *testing.T) {
	if _, err := OpenVideo("clip.mp4"); !errors.Is(err, ErrNoOpenCV) {
		t.Errorf("OpenVideo: expected ErrNoOpenCV, got %v", err)
	}
	if _, err := OpenCamera(0); !errors.Is(err, ErrNoOpenCV) {
		t.Errorf("OpenCamera: expected ErrNoOpenCV, got %v", err)
	}
	if _, err := NewDNN("Model.onnx"); !errors.Is(err, ErrNoOpenCV) {
		t.Errorf("NewDNN: expected ErrNoOpenCV, got %v", err)
	}
}
