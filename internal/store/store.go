// Package store persists lessons, content versions, and generation traces to
// SQLite. It is the only shared mutable resource in the pipeline; each
// pipeline instance touches only its own lesson id.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"lessonforge/internal/logging"
)

// Status is the lesson lifecycle state.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusGenerating Status = "generating"
	StatusGenerated  Status = "generated"
	StatusFailed     Status = "failed"
)

// ErrNotQueued is returned by ClaimLesson when the lesson is not in the
// queued state - a second kickoff trigger racing the first sees this and
// becomes a no-op.
var ErrNotQueued = errors.New("lesson is not queued")

// ErrNotFound is returned for missing lessons or versions.
var ErrNotFound = errors.New("not found")

// Lesson is one lesson row.
type Lesson struct {
	ID            string
	Topic         string
	PedagogyJSON  string
	Status        Status
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ContentVersion is one persisted compiled artifact. Version is monotonic
// per lesson.
type ContentVersion struct {
	LessonID      string
	Version       int
	SourceText    string
	ModuleText    string
	IntegrityHash string
	CreatedAt     time.Time
}

// TraceRecord is one generation attempt's audit record. Records are
// append-only and never reordered: the primary key is insertion order.
type TraceRecord struct {
	ID            int64
	LessonID      string
	Attempt       int
	Prompt        string
	Response      string
	SafetyIssues  string // JSON-encoded []safety.Issue, empty when clean
	CompileError  string
	RepairApplied string // comma-joined repair rule ids, empty when none
	Outcome       string // succeeded | safety_rejected | compile_failed | generation_failed
	CreatedAt     time.Time
}

// Stats summarizes stored state for the status command.
type Stats struct {
	LessonsByStatus map[Status]int
	TotalVersions   int
	TotalTraces     int
}

// Store is the SQLite-backed repository.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
}

// Open creates (or opens) the database at path and ensures the schema.
func Open(dbPath string) (*Store, error) {
	log := logging.Get(logging.CategoryStore)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db, dbPath: dbPath}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	log.Debugw("store opened", "path", dbPath)
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS lessons (
		id TEXT PRIMARY KEY,
		topic TEXT NOT NULL,
		pedagogy_json TEXT NOT NULL DEFAULT '{}',
		status TEXT NOT NULL DEFAULT 'queued',
		failure_reason TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS content_versions (
		lesson_id TEXT NOT NULL REFERENCES lessons(id),
		version INTEGER NOT NULL,
		source_text TEXT NOT NULL,
		module_text TEXT NOT NULL,
		integrity_hash TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (lesson_id, version)
	);

	CREATE TABLE IF NOT EXISTS generation_traces (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		lesson_id TEXT NOT NULL REFERENCES lessons(id),
		attempt INTEGER NOT NULL,
		prompt TEXT NOT NULL,
		response TEXT NOT NULL,
		safety_issues TEXT NOT NULL DEFAULT '',
		compile_error TEXT NOT NULL DEFAULT '',
		repair_applied TEXT NOT NULL DEFAULT '',
		outcome TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_versions_lesson ON content_versions(lesson_id);
	CREATE INDEX IF NOT EXISTS idx_traces_lesson ON generation_traces(lesson_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateLesson inserts a new queued lesson.
func (s *Store) CreateLesson(ctx context.Context, id, topic, pedagogyJSON string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pedagogyJSON == "" {
		pedagogyJSON = "{}"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lessons (id, topic, pedagogy_json, status) VALUES (?, ?, ?, ?)`,
		id, topic, pedagogyJSON, StatusQueued)
	if err != nil {
		return fmt.Errorf("create lesson: %w", err)
	}
	return nil
}

// GetLesson fetches one lesson.
func (s *Store) GetLesson(ctx context.Context, id string) (*Lesson, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, topic, pedagogy_json, status, failure_reason, created_at, updated_at
		 FROM lessons WHERE id = ?`, id)

	var l Lesson
	err := row.Scan(&l.ID, &l.Topic, &l.PedagogyJSON, &l.Status, &l.FailureReason, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get lesson: %w", err)
	}
	return &l, nil
}

// ClaimLesson transitions queued -> generating iff the lesson is exactly
// queued. The conditional UPDATE is the precondition guard that makes a
// racing second kickoff a no-op.
func (s *Store) ClaimLesson(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE lessons SET status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = ?`,
		StatusGenerating, id, StatusQueued)
	if err != nil {
		return fmt.Errorf("claim lesson: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("claim lesson: %w", err)
	}
	if n == 0 {
		return ErrNotQueued
	}
	return nil
}

// SetStatus writes a terminal (or re-queued) status. For the generating
// lesson this is always the last write of the run.
func (s *Store) SetStatus(ctx context.Context, id string, status Status, failureReason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE lessons SET status = ?, failure_reason = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		status, failureReason, id)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveContentVersion persists a new content version with the next monotonic
// version number for the lesson, returning that number.
func (s *Store) SaveContentVersion(ctx context.Context, lessonID, sourceText, moduleText, integrityHash string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("save version: %w", err)
	}
	defer tx.Rollback()

	var version int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM content_versions WHERE lesson_id = ?`,
		lessonID).Scan(&version); err != nil {
		return 0, fmt.Errorf("save version: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO content_versions (lesson_id, version, source_text, module_text, integrity_hash)
		 VALUES (?, ?, ?, ?, ?)`,
		lessonID, version, sourceText, moduleText, integrityHash); err != nil {
		return 0, fmt.Errorf("save version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("save version: %w", err)
	}
	return version, nil
}

// LatestContentVersion fetches the highest version for a lesson.
func (s *Store) LatestContentVersion(ctx context.Context, lessonID string) (*ContentVersion, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT lesson_id, version, source_text, module_text, integrity_hash, created_at
		 FROM content_versions WHERE lesson_id = ?
		 ORDER BY version DESC LIMIT 1`, lessonID)

	var v ContentVersion
	err := row.Scan(&v.LessonID, &v.Version, &v.SourceText, &v.ModuleText, &v.IntegrityHash, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest version: %w", err)
	}
	return &v, nil
}

// AppendTrace appends one attempt record. Insertion order is the attempt
// order; rows are never updated or deleted.
func (s *Store) AppendTrace(ctx context.Context, rec TraceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO generation_traces
		 (lesson_id, attempt, prompt, response, safety_issues, compile_error, repair_applied, outcome)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.LessonID, rec.Attempt, rec.Prompt, rec.Response,
		rec.SafetyIssues, rec.CompileError, rec.RepairApplied, rec.Outcome)
	if err != nil {
		return fmt.Errorf("append trace: %w", err)
	}
	return nil
}

// Traces returns a lesson's attempt trail in append order.
func (s *Store) Traces(ctx context.Context, lessonID string) ([]TraceRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, lesson_id, attempt, prompt, response, safety_issues, compile_error, repair_applied, outcome, created_at
		 FROM generation_traces WHERE lesson_id = ? ORDER BY id`, lessonID)
	if err != nil {
		return nil, fmt.Errorf("traces: %w", err)
	}
	defer rows.Close()

	var out []TraceRecord
	for rows.Next() {
		var r TraceRecord
		if err := rows.Scan(&r.ID, &r.LessonID, &r.Attempt, &r.Prompt, &r.Response,
			&r.SafetyIssues, &r.CompileError, &r.RepairApplied, &r.Outcome, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("traces: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetStats summarizes stored lessons, versions, and traces.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{LessonsByStatus: make(map[Status]int)}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM lessons GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var st Status
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, fmt.Errorf("stats: %w", err)
		}
		stats.LessonsByStatus[st] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM content_versions`).Scan(&stats.TotalVersions); err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM generation_traces`).Scan(&stats.TotalTraces); err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	return stats, nil
}
