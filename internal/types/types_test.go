package types

import (
	"image"
	"testing"
)

func TestLabelOrder(t *testing.T) {
	want := []string{"angry", "disgust", "fear", "happy", "sad", "surprise", "neutral"}
	labels := Labels()
	if len(labels) != len(want) {
		t.Fatalf("Expected %d labels, got %d", len(want), len(labels))
	}
	for i, l := range labels {
		if l.String() != want[i] {
			t.Errorf("label %d = %q, want %q", i, l, want[i])
		}
		back, err := ParseLabel(want[i])
		if err != nil || back != l {
			t.Errorf("ParseLabel(%q) = %v, %v", want[i], back, err)
		}
	}
}

func TestParseLabelUnknown(t *testing.T) {
	if _, err := ParseLabel("contempt"); err == nil {
		t.Fatal("Expected error for unknown label")
	}
	if Label(7).Valid() || Label(-1).Valid() {
		t.Error("out-of-range labels must be invalid")
	}
}

func TestBoundingBoxRect(t *testing.T) {
	b := BoundingBox{X: 10, Y: 20, Width: 30, Height: 40}
	r := b.Rect()
	if r != image.Rect(10, 20, 40, 60) {
		t.Errorf("Rect() = %v", r)
	}
	if BoxFromRect(r) != b {
		t.Errorf("BoxFromRect(%v) = %+v", r, BoxFromRect(r))
	}
}

func TestFrameEventAnalyzed(t *testing.T) {
	if (FrameEvent{}).Analyzed() {
		t.Error("skipped frame reported as analyzed")
	}
	res := NoFace
	if !(FrameEvent{Result: &res}).Analyzed() {
		t.Error("frame with result not reported as analyzed")
	}
}
