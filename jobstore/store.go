// Package jobstore persists print-job records and the facts derived from
// document processing. It is the job-store collaborator injected into the
// processing pipeline: metadata updates are keyed by job id and safe for
// concurrent writers.
package jobstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spoolworks/spooldoc/dbopen"
)

// Job states.
const (
	StateReceived   = "received"
	StateProcessing = "processing"
	StateDone       = "done"
	StateFailed     = "failed"
)

// Job is one spooled print job and the facts derived from processing it.
type Job struct {
	ID             string            `json:"id"`
	State          string            `json:"state"`
	DeclaredFormat string            `json:"declared_format,omitempty"`
	OriginalSize   int64             `json:"original_size"`
	ProcessedSize  int64             `json:"processed_size"`
	DocumentType   string            `json:"document_type,omitempty"`
	PageCount      int               `json:"page_count"`
	HasThumbnail   bool              `json:"has_thumbnail"`
	DocumentPath   string            `json:"document_path,omitempty"`
	ThumbnailPath  string            `json:"thumbnail_path,omitempty"`
	Error          string            `json:"error,omitempty"`
	Properties     map[string]string `json:"properties,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	ProcessedAt    *time.Time        `json:"processed_at,omitempty"`
}

// Store wraps an SQLite database holding job records.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the job database at path and runs migrations.
func Open(path string) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll())
	if err != nil {
		return nil, fmt.Errorf("open job db: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewWithDB wraps an already-open database (used by tests with
// dbopen.OpenMemory) and runs migrations.
func NewWithDB(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// DB returns the underlying *sql.DB for sharing with observability layers.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS jobs (
    id               TEXT PRIMARY KEY,
    state            TEXT NOT NULL DEFAULT 'received',
    declared_format  TEXT,
    original_size    INTEGER NOT NULL DEFAULT 0,
    processed_size   INTEGER NOT NULL DEFAULT 0,
    document_type    TEXT,
    page_count       INTEGER NOT NULL DEFAULT 0,
    has_thumbnail    INTEGER NOT NULL DEFAULT 0,
    document_path    TEXT,
    thumbnail_path   TEXT,
    error            TEXT,
    properties       TEXT,
    created_at       TEXT NOT NULL,
    updated_at       TEXT NOT NULL,
    processed_at     TEXT
);

CREATE INDEX IF NOT EXISTS idx_jobs_state   ON jobs(state);
CREATE INDEX IF NOT EXISTS idx_jobs_created ON jobs(created_at DESC);
`
	_, err := s.db.Exec(ddl)
	return err
}

// CreateJob inserts a new job in the received state.
func (s *Store) CreateJob(ctx context.Context, id, declaredFormat string, size int64, props map[string]string) error {
	var propsJSON sql.NullString
	if len(props) > 0 {
		b, err := json.Marshal(props)
		if err != nil {
			return fmt.Errorf("marshal properties: %w", err)
		}
		propsJSON = sql.NullString{String: string(b), Valid: true}
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, state, declared_format, original_size, properties, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?)`,
		id, StateReceived, declaredFormat, size, propsJSON, now, now)
	if err != nil {
		return fmt.Errorf("insert job %s: %w", id, err)
	}
	return nil
}

// UpdateJobState transitions a job to a new state, recording an error message
// for failed jobs.
func (s *Store) UpdateJobState(ctx context.Context, id, state, errMsg string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := dbopen.Exec(ctx, s.db,
		`UPDATE jobs SET state = ?, error = ?, updated_at = ? WHERE id = ?`,
		state, errMsg, now, id)
	if err != nil {
		return fmt.Errorf("update job %s state: %w", id, err)
	}
	return nil
}

// SaveResult records the outcome of processing a job.
func (s *Store) SaveResult(ctx context.Context, id string, success bool, processedSize int64,
	docType string, pageCount int, docPath, thumbPath, errMsg string) error {

	state := StateDone
	if !success {
		state = StateFailed
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := dbopen.Exec(ctx, s.db, `
		UPDATE jobs SET
			state = ?, processed_size = ?, document_type = ?, page_count = ?,
			has_thumbnail = ?, document_path = ?, thumbnail_path = ?, error = ?,
			updated_at = ?, processed_at = ?
		WHERE id = ?`,
		state, processedSize, docType, pageCount,
		thumbPath != "", docPath, thumbPath, errMsg,
		now, now, id)
	if err != nil {
		return fmt.Errorf("save result for job %s: %w", id, err)
	}
	return nil
}

// UpdateJobMetadata applies a key/value facts map to a job row. Known keys
// map onto columns; unknown keys are merged into the properties JSON. This is
// the docproc.JobStore contract: best-effort, tolerant of unknown keys, safe
// under concurrent calls for distinct job ids. The read-merge-write on the
// properties blob runs in a single transaction (with busy retry) so
// concurrent updates to the same job never drop each other's keys.
func (s *Store) UpdateJobMetadata(ctx context.Context, jobID string, facts map[string]string) error {
	if len(facts) == 0 {
		return nil
	}

	colSet := make([]string, 0, len(facts)+1)
	colArgs := make([]any, 0, len(facts)+2)
	extra := make(map[string]string)

	for k, v := range facts {
		switch k {
		case "original_size", "processed_size":
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("fact %s=%q: %w", k, v, err)
			}
			colSet = append(colSet, k+" = ?")
			colArgs = append(colArgs, n)
		case "page_count":
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("fact %s=%q: %w", k, v, err)
			}
			colSet = append(colSet, "page_count = ?")
			colArgs = append(colArgs, n)
		case "document_type":
			colSet = append(colSet, "document_type = ?")
			colArgs = append(colArgs, v)
		case "has_thumbnail":
			colSet = append(colSet, "has_thumbnail = ?")
			colArgs = append(colArgs, v == "true")
		case "processing_time":
			ms, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("fact %s=%q: %w", k, v, err)
			}
			colSet = append(colSet, "processed_at = ?")
			colArgs = append(colArgs, time.UnixMilli(ms).UTC().Format(time.RFC3339Nano))
		default:
			extra[k] = v
		}
	}

	return dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		// Fresh copies per attempt: RunTx may retry the whole closure.
		set := append([]string(nil), colSet...)
		args := append([]any(nil), colArgs...)

		if len(extra) > 0 {
			merged, err := mergeProperties(tx, jobID, extra)
			if err != nil {
				return err
			}
			set = append(set, "properties = ?")
			args = append(args, merged)
		}

		set = append(set, "updated_at = ?")
		args = append(args, time.Now().UTC().Format(time.RFC3339Nano))
		args = append(args, jobID)

		q := "UPDATE jobs SET " + strings.Join(set, ", ") + " WHERE id = ?"
		res, err := tx.Exec(q, args...)
		if err != nil {
			return fmt.Errorf("update metadata for job %s: %w", jobID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("job %s not found", jobID)
		}
		return nil
	})
}

func mergeProperties(tx *sql.Tx, jobID string, extra map[string]string) (string, error) {
	var existing sql.NullString
	err := tx.QueryRow(`SELECT properties FROM jobs WHERE id = ?`, jobID).Scan(&existing)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("job %s not found", jobID)
	}
	if err != nil {
		return "", fmt.Errorf("read properties for job %s: %w", jobID, err)
	}

	props := make(map[string]string)
	if existing.Valid && existing.String != "" {
		if err := json.Unmarshal([]byte(existing.String), &props); err != nil {
			return "", fmt.Errorf("parse properties for job %s: %w", jobID, err)
		}
	}
	for k, v := range extra {
		props[k] = v
	}
	b, err := json.Marshal(props)
	if err != nil {
		return "", fmt.Errorf("marshal properties: %w", err)
	}
	return string(b), nil
}

// GetJob returns a job by id, or nil if it does not exist.
func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, state, declared_format, original_size, processed_size,
		       document_type, page_count, has_thumbnail, document_path,
		       thumbnail_path, error, properties, created_at, updated_at, processed_at
		FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return job, err
}

// ListJobs returns jobs filtered by state (empty for all), newest first.
func (s *Store) ListJobs(ctx context.Context, state string, limit int) ([]*Job, error) {
	q := `SELECT id, state, declared_format, original_size, processed_size,
	             document_type, page_count, has_thumbnail, document_path,
	             thumbnail_path, error, properties, created_at, updated_at, processed_at
	      FROM jobs`
	args := []any{}
	if state != "" {
		q += " WHERE state = ?"
		args = append(args, state)
	}
	q += " ORDER BY created_at DESC"
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ListJobsByState returns all jobs in the given state, oldest first, for
// boot-time recovery of work interrupted by a crash.
func (s *Store) ListJobsByState(ctx context.Context, state string) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, state, declared_format, original_size, processed_size,
		       document_type, page_count, has_thumbnail, document_path,
		       thumbnail_path, error, properties, created_at, updated_at, processed_at
		FROM jobs WHERE state = ? ORDER BY created_at ASC`, state)
	if err != nil {
		return nil, fmt.Errorf("list jobs by state: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(r rowScanner) (*Job, error) {
	var (
		job                                     Job
		declared, docType, docPath, thumbPath   sql.NullString
		errMsg, propsJSON, createdAt, updatedAt sql.NullString
		processedAt                             sql.NullString
	)
	err := r.Scan(&job.ID, &job.State, &declared, &job.OriginalSize, &job.ProcessedSize,
		&docType, &job.PageCount, &job.HasThumbnail, &docPath,
		&thumbPath, &errMsg, &propsJSON, &createdAt, &updatedAt, &processedAt)
	if err != nil {
		return nil, err
	}

	job.DeclaredFormat = declared.String
	job.DocumentType = docType.String
	job.DocumentPath = docPath.String
	job.ThumbnailPath = thumbPath.String
	job.Error = errMsg.String
	if propsJSON.Valid && propsJSON.String != "" {
		_ = json.Unmarshal([]byte(propsJSON.String), &job.Properties)
	}
	if createdAt.Valid {
		job.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt.String)
	}
	if updatedAt.Valid {
		job.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt.String)
	}
	if processedAt.Valid && processedAt.String != "" {
		if t, err := time.Parse(time.RFC3339Nano, processedAt.String); err == nil {
			job.ProcessedAt = &t
		}
	}
	return &job, nil
}
