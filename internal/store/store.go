package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/andresmejia3/emotag/internal/types"
)

// Store manages the PostgreSQL connection holding session history.
type Store struct {
	conn *pgx.Conn
}

// Session is one run of the image, video or live command.
type Session struct {
	ID           int64
	Mode         string
	Source       string
	SourceID     string
	SkipInterval int
	State        string
	StartedAt    time.Time
	FinishedAt   *time.Time
	Totals
}

// Totals are the counters written when a session finishes.
type Totals struct {
	Frames   int
	Analyzed int
	Faces    int
	Failures int
}

// Annotation is one analyzed frame of a session.
type Annotation struct {
	SessionID  int64
	FrameIndex int
	Found      bool
	Label      string
	Glyph      string
	Box        types.BoundingBox
	Error      string
	CreatedAt  time.Time
}

// New establishes a connection to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	// Initialize schema (Auto-Migration)
	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

// initSchema creates the necessary tables if they don't exist (Auto-Migration).
func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS sessions (
			id BIGSERIAL PRIMARY KEY,
			mode TEXT NOT NULL,
			source TEXT NOT NULL,
			source_id TEXT NOT NULL DEFAULT '',
			skip_interval INT NOT NULL,
			state TEXT NOT NULL,
			started_at TIMESTAMPTZ DEFAULT NOW(),
			finished_at TIMESTAMPTZ,
			frames INT NOT NULL DEFAULT 0,
			analyzed INT NOT NULL DEFAULT 0,
			faces INT NOT NULL DEFAULT 0,
			failures INT NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS annotations (
			id BIGSERIAL PRIMARY KEY,
			session_id BIGINT REFERENCES sessions(id) ON DELETE CASCADE,
			frame_index INT NOT NULL,
			found BOOLEAN NOT NULL,
			label TEXT NOT NULL DEFAULT '',
			glyph TEXT NOT NULL DEFAULT '',
			box INT[],
			error TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS annotations_session_id_idx ON annotations (session_id);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Store) Close(ctx context.Context) {
	s.conn.Close(ctx)
}

// CreateSession registers a running session and returns its ID.
func (s *Store) CreateSession(ctx context.Context, mode, source, sourceID string, skipInterval int) (int64, error) {
	var id int64
	err := s.conn.QueryRow(ctx, `
		INSERT INTO sessions (mode, source, source_id, skip_interval, state)
		VALUES ($1, $2, $3, $4, 'running')
		RETURNING id
	`, mode, source, sourceID, skipInterval).Scan(&id)
	return id, err
}

// FinishSession records the terminal state and counters of a session.
func (s *Store) FinishSession(ctx context.Context, id int64, state string, t Totals) error {
	tag, err := s.conn.Exec(ctx, `
		UPDATE sessions
		SET state = $2, finished_at = NOW(), frames = $3, analyzed = $4, faces = $5, failures = $6
		WHERE id = $1
	`, id, state, t.Frames, t.Analyzed, t.Faces, t.Failures)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %d not found", id)
	}
	return nil
}

// InsertAnnotation saves the outcome of one analyzed frame.
func (s *Store) InsertAnnotation(ctx context.Context, a Annotation) error {
	var box []int32
	if a.Found {
		box = []int32{int32(a.Box.X), int32(a.Box.Y), int32(a.Box.Width), int32(a.Box.Height)}
	}
	_, err := s.conn.Exec(ctx, `
		INSERT INTO annotations (session_id, frame_index, found, label, glyph, box, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, a.SessionID, a.FrameIndex, a.Found, a.Label, a.Glyph, box, a.Error)
	return err
}

// ListSessions returns the most recent sessions first. limit <= 0 returns all.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	query := `
		SELECT id, mode, source, source_id, skip_interval, state, started_at, finished_at,
		       frames, analyzed, faces, failures
		FROM sessions ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var ses Session
		if err := rows.Scan(&ses.ID, &ses.Mode, &ses.Source, &ses.SourceID, &ses.SkipInterval, &ses.State,
			&ses.StartedAt, &ses.FinishedAt, &ses.Frames, &ses.Analyzed, &ses.Faces, &ses.Failures); err != nil {
			return nil, err
		}
		sessions = append(sessions, ses)
	}
	return sessions, rows.Err()
}

// SessionAnnotations returns the annotations of a session in frame order.
func (s *Store) SessionAnnotations(ctx context.Context, sessionID int64) ([]Annotation, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT session_id, frame_index, found, label, glyph, box, error, created_at
		FROM annotations WHERE session_id = $1 ORDER BY frame_index, id
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Annotation
	for rows.Next() {
		var a Annotation
		var box []int32
		if err := rows.Scan(&a.SessionID, &a.FrameIndex, &a.Found, &a.Label, &a.Glyph, &box, &a.Error, &a.CreatedAt); err != nil {
			return nil, err
		}
		if len(box) == 4 {
			a.Box = types.BoundingBox{X: int(box[0]), Y: int(box[1]), Width: int(box[2]), Height: int(box[3])}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// LabelCounts tallies detected labels for a session, or across all sessions when sessionID is 0.
func (s *Store) LabelCounts(ctx context.Context, sessionID int64) (map[string]int, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT label, COUNT(*) FROM annotations
		WHERE found AND ($1::bigint = 0 OR session_id = $1::bigint)
		GROUP BY label
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, err
		}
		counts[label] = n
	}
	return counts, rows.Err()
}

// Reset drops all application tables to clear the database state.
// This is useful for development to force a schema refresh without migrations.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, `
		DROP TABLE IF EXISTS annotations CASCADE;
		DROP TABLE IF EXISTS sessions CASCADE;
	`)
	return err
}
