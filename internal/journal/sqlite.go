package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/LucasAlfare/FL-BT/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// SQLite is a journal in a local sqlite file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (and creates if needed) the journal at path.
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		path = "history.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	q := `
	CREATE TABLE IF NOT EXISTS job_records (
		session_id TEXT NOT NULL,
		external_id TEXT NOT NULL,
		job_id TEXT,
		status TEXT NOT NULL,
		error_message TEXT,
		artifact_path TEXT,
		fetch_error TEXT,
		submitted_at DATETIME,
		completed_at DATETIME,
		recorded_at DATETIME NOT NULL,
		PRIMARY KEY (session_id, external_id)
	);
	CREATE INDEX IF NOT EXISTS job_records_external ON job_records(external_id);
	`
	_, err := s.db.Exec(q)
	return err
}

// Close closes the database.
func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save upserts rec for sessionID.
func (s *SQLite) Save(ctx context.Context, sessionID string, rec models.Record) error {
	var completedAt sql.NullTime
	if rec.CompletedAt != nil {
		completedAt = sql.NullTime{Time: rec.CompletedAt.UTC(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_records(session_id,external_id,job_id,status,error_message,artifact_path,fetch_error,submitted_at,completed_at,recorded_at)
		VALUES(?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(session_id, external_id) DO UPDATE SET
			job_id=excluded.job_id,
			status=excluded.status,
			error_message=excluded.error_message,
			artifact_path=excluded.artifact_path,
			fetch_error=excluded.fetch_error,
			completed_at=excluded.completed_at,
			recorded_at=excluded.recorded_at`,
		sessionID, rec.ExternalID, rec.JobID, string(rec.Status), rec.ErrorMessage,
		rec.ArtifactPath, rec.FetchError, rec.SubmittedAt.UTC(), completedAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save %s: %w", rec.ExternalID, err)
	}
	return nil
}

const selectEntries = `SELECT session_id,external_id,job_id,status,error_message,artifact_path,fetch_error,submitted_at,completed_at,recorded_at FROM job_records`

// List returns journal entries, newest first.
func (s *SQLite) List(ctx context.Context, opts ListOptions) ([]Entry, error) {
	q := selectEntries
	args := []any{}
	if opts.ExternalID != "" {
		q += ` WHERE external_id = ?`
		args = append(args, opts.ExternalID)
	}
	q += ` ORDER BY recorded_at DESC LIMIT ?`
	args = append(args, opts.limit())

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list journal: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Get returns the entry of externalID in sessionID.
func (s *SQLite) Get(ctx context.Context, sessionID, externalID string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, selectEntries+` WHERE session_id = ? AND external_id = ?`, sessionID, externalID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("get %s/%s: %w", sessionID, externalID, err)
	}
	return e, nil
}

// Ping checks that the database file is usable.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// scanEntry reads one row selected by selectEntries.
func scanEntry(row interface{ Scan(dest ...any) error }) (Entry, error) {
	var e Entry
	var jobID, errMsg, artifact, fetchErr sql.NullString
	var status string
	var submittedAt, completedAt, recordedAt sql.NullTime
	if err := row.Scan(&e.SessionID, &e.Record.ExternalID, &jobID, &status, &errMsg,
		&artifact, &fetchErr, &submittedAt, &completedAt, &recordedAt); err != nil {
		return Entry{}, err
	}
	e.Record.JobID = jobID.String
	e.Record.Status = models.Status(status)
	e.Record.ErrorMessage = errMsg.String
	e.Record.ArtifactPath = artifact.String
	e.Record.FetchError = fetchErr.String
	if submittedAt.Valid {
		e.Record.SubmittedAt = submittedAt.Time
	}
	if completedAt.Valid {
		t := completedAt.Time
		e.Record.CompletedAt = &t
	}
	if recordedAt.Valid {
		e.RecordedAt = recordedAt.Time
		e.Record.UpdatedAt = recordedAt.Time
	}
	return e, nil
}

// Wipe deletes all entries.
func (s *SQLite) Wipe(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM job_records`); err != nil {
		return fmt.Errorf("wipe job records: %w", err)
	}
	return nil
}
