package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const jobColumns = `id, status, status_line, progress, error_message, archive_path, work_dir, created_at, updated_at`

// Create allocates a new job with a fresh id, initial status, and an
// exclusive working directory under resultsDir.
func (s *Store) Create(ctx context.Context, resultsDir string) (*Job, error) {
	id := uuid.NewString()
	workDir := filepath.Join(resultsDir, id)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("create job work dir: %w", err)
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	if err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (id, status, status_line, progress, work_dir, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id,
		StatusCreated,
		"Uploaded",
		0,
		workDir,
		timestamp,
		timestamp,
	); err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier. Returns ErrNotFound for unknown ids.
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Mutate applies fn to the job's mutable fields under the job's lock and
// persists the result. Concurrent Mutate calls for the same id serialize;
// calls for different ids proceed independently. Progress never decreases
// and terminal jobs are never modified.
func (s *Store) Mutate(ctx context.Context, id string, fn func(*Job)) (*Job, error) {
	lock := s.jobLock(id)
	lock.Lock()
	defer lock.Unlock()

	job, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return job, nil
	}

	prevProgress := job.Progress
	fn(job)
	if job.Progress < prevProgress {
		job.Progress = prevProgress
	}
	if !job.Status.Valid() {
		return nil, fmt.Errorf("mutate job: invalid status %q", job.Status)
	}

	job.UpdatedAt = time.Now().UTC()
	if err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, status_line = ?, progress = ?, error_message = ?,
             archive_path = ?, updated_at = ?
         WHERE id = ?`,
		job.Status,
		nullableString(job.StatusLine),
		job.Progress,
		nullableString(job.ErrorMessage),
		nullableString(job.ArchivePath),
		job.UpdatedAt.Format(time.RFC3339Nano),
		job.ID,
	); err != nil {
		return nil, fmt.Errorf("update job: %w", err)
	}
	return job, nil
}

// AppendLog records a log line for the job. Lines are append-only and
// ordered by insertion.
func (s *Store) AppendLog(ctx context.Context, id, line string) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.execWithRetry(
		ctx,
		`INSERT INTO job_logs (job_id, line, created_at) VALUES (?, ?, ?)`,
		id,
		line,
		time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("append job log: %w", err)
	}
	return nil
}

// Logs returns every log line recorded for the job in insertion order.
func (s *Store) Logs(ctx context.Context, id string) ([]string, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT line FROM job_logs WHERE job_id = ? ORDER BY id`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("query job logs: %w", err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("scan job log: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// LatestLog returns the most recent log line for the job, or "" when no
// lines have been recorded.
func (s *Store) LatestLog(ctx context.Context, id string) (string, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT line FROM job_logs WHERE job_id = ? ORDER BY id DESC LIMIT 1`,
		id,
	)
	var line string
	if err := row.Scan(&line); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("latest job log: %w", err)
	}
	return line, nil
}

// List returns all jobs ordered by creation time, newest first.
func (s *Store) List(ctx context.Context) ([]*Job, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var list []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, job)
	}
	return list, rows.Err()
}

// Snapshot projects the job's current state plus its latest log line into
// an immutable view for progress observers.
func (s *Store) Snapshot(ctx context.Context, id string) (Snapshot, error) {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	latest, err := s.LatestLog(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Status:     job.Status,
		StatusLine: job.StatusLine,
		Progress:   job.Progress,
		LatestLog:  latest,
		Done:       job.Status.Terminal(),
		Error:      job.ErrorMessage,
	}
	if job.Status == StatusDone && job.ArchivePath != "" {
		snap.DownloadURL = "/download/" + filepath.Base(job.ArchivePath)
	}
	return snap, nil
}

// FailRunning marks every non-terminal job as failed. Called on daemon
// shutdown so observers are not left polling jobs that will never finish.
func (s *Store) FailRunning(ctx context.Context, reason string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET status = ?, status_line = ?, error_message = ?, updated_at = ?
         WHERE status NOT IN (?, ?)`,
		StatusFailed,
		"Failed",
		reason,
		now,
		StatusDone,
		StatusFailed,
	); err != nil {
		return fmt.Errorf("fail running jobs: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(scanner rowScanner) (*Job, error) {
	var (
		job          Job
		statusLine   sql.NullString
		errorMessage sql.NullString
		archivePath  sql.NullString
		workDir      sql.NullString
		createdAt    string
		updatedAt    string
	)
	if err := scanner.Scan(
		&job.ID,
		&job.Status,
		&statusLine,
		&job.Progress,
		&errorMessage,
		&archivePath,
		&workDir,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	job.StatusLine = stringOrEmpty(statusLine)
	job.ErrorMessage = stringOrEmpty(errorMessage)
	job.ArchivePath = stringOrEmpty(archivePath)
	job.WorkDir = stringOrEmpty(workDir)
	job.CreatedAt = parseTimestamp(createdAt)
	job.UpdatedAt = parseTimestamp(updatedAt)
	return &job, nil
}
