package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/andresmejia3/emotag/internal/types"
)

// TestStoreIntegration runs a full integration test against a real Postgres container.
// It requires Docker to be running.
func TestStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	// Explicitly check for Docker availability and fail hard if missing
	// We wrap this in a function to recover from panics inside testcontainers (e.g. socket not found)
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("testcontainers panicked: %v", r)
			}
		}()
		_, err = testcontainers.NewDockerClientWithOpts(ctx)
		return
	}()
	if err != nil {
		t.Fatalf("Docker not available, cannot run integration test: %v", err)
	}

	pgContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("emotag_test"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
		testcontainers.WithLogger(noopLogger{}),
	)
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("Failed to terminate container: %v", err)
		}
	}()

	// Get Connection String
	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	// Initialize Store (runs migrations)
	s, err := New(ctx, connStr)
	if err != nil {
		t.Fatalf("Failed to connect to store: %v", err)
	}
	defer s.Close(ctx)

	// --- Test Scenarios ---

	id, err := s.CreateSession(ctx, "video", "/tmp/clip.mp4", "abc123", 5)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if id <= 0 {
		t.Errorf("Expected positive ID, got %d", id)
	}

	annotations := []Annotation{
		{SessionID: id, FrameIndex: 0, Found: true, Label: "happy", Glyph: "😊", Box: types.BoundingBox{X: 1, Y: 2, Width: 30, Height: 40}},
		{SessionID: id, FrameIndex: 5, Found: false},
		{SessionID: id, FrameIndex: 10, Found: true, Label: "happy", Glyph: "😁", Box: types.BoundingBox{X: 3, Y: 4, Width: 30, Height: 40}},
		{SessionID: id, FrameIndex: 15, Found: true, Label: "sad", Glyph: "😢", Box: types.BoundingBox{X: 5, Y: 6, Width: 30, Height: 40}},
		{SessionID: id, FrameIndex: 20, Found: false, Error: "inference failed: worker crashed"},
	}
	for _, a := range annotations {
		if err := s.InsertAnnotation(ctx, a); err != nil {
			t.Fatalf("InsertAnnotation(%d) failed: %v", a.FrameIndex, err)
		}
	}

	if err := s.FinishSession(ctx, id, "completed", Totals{Frames: 23, Analyzed: 5, Faces: 3, Failures: 1}); err != nil {
		t.Fatalf("FinishSession failed: %v", err)
	}
	if err := s.FinishSession(ctx, id+100, "completed", Totals{}); err == nil {
		t.Error("Expected error finishing unknown session")
	}

	sessions, err := s.ListSessions(ctx, 10)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("Expected 1 session, got %d", len(sessions))
	}
	got := sessions[0]
	if got.State != "completed" || got.FinishedAt == nil || got.Frames != 23 || got.Failures != 1 || got.SkipInterval != 5 {
		t.Errorf("unexpected session row: %+v", got)
	}

	stored, err := s.SessionAnnotations(ctx, id)
	if err != nil {
		t.Fatalf("SessionAnnotations failed: %v", err)
	}
	if len(stored) != len(annotations) {
		t.Fatalf("Expected %d annotations, got %d", len(annotations), len(stored))
	}
	if stored[2].Box != annotations[2].Box {
		t.Errorf("box round trip: got %+v, want %+v", stored[2].Box, annotations[2].Box)
	}
	if stored[1].Found || stored[1].Box != (types.BoundingBox{}) {
		t.Errorf("no-face annotation came back as %+v", stored[1])
	}
	if stored[4].Error == "" {
		t.Error("Expected error text on failed frame")
	}

	counts, err := s.LabelCounts(ctx, id)
	if err != nil {
		t.Fatalf("LabelCounts failed: %v", err)
	}
	if counts["happy"] != 2 || counts["sad"] != 1 || len(counts) != 2 {
		t.Errorf("LabelCounts = %v", counts)
	}

	all, err := s.LabelCounts(ctx, 0)
	if err != nil || all["happy"] != 2 {
		t.Errorf("LabelCounts(all) = %v, %v", all, err)
	}

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if _, err := s.ListSessions(ctx, 0); err == nil {
		t.Error("Expected error listing sessions after reset")
	}
}

type noopLogger struct{}

func (n noopLogger) Printf(format string, v ...interface{}) {}
