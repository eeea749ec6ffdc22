package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
	"server/internal/infra"
)

const jobColumns = `id, user_id, input_image_id, style_id, prompt, status, error_message,
retry_count, max_retries, queued_at, started_at, completed_at, created_at, updated_at`

// JobRepositoryPG implements domain.JobRepository backed by PostgreSQL. All
// multi-row mutations run inside a single transaction; the claim and retry
// paths rely on conditional updates so that concurrent actors resolve through
// row counts instead of locks.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

// CreateQueued inserts the job and its initial QUEUED history entry atomically.
func (r *JobRepositoryPG) CreateQueued(ctx context.Context, job *domain.Job, historyMessage string) (*domain.Job, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin create job: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
INSERT INTO generation_jobs (id, user_id, input_image_id, style_id, prompt, status, max_retries, queued_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now())
RETURNING `+jobColumns+`;
`, job.ID, job.UserID, job.InputImageID, job.StyleID, job.Prompt, domain.StatusQueued, job.MaxRetries)
	created, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	if err := insertHistory(ctx, tx, created.ID, created.UserID, domain.StatusQueued, historyMessage); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit create job: %w", err)
	}
	return created, nil
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	row := r.pool.QueryRow(ctx, `
SELECT `+jobColumns+`
FROM generation_jobs
WHERE id = $1;
`, jobID)
	return scanJobNotFound(row)
}

// GetForUser fetches a job only when it belongs to the user.
func (r *JobRepositoryPG) GetForUser(ctx context.Context, jobID, userID string) (*domain.Job, error) {
	row := r.pool.QueryRow(ctx, `
SELECT `+jobColumns+`
FROM generation_jobs
WHERE id = $1 AND user_id = $2;
`, jobID, userID)
	return scanJobNotFound(row)
}

// ListByUser returns the user's jobs newest first, joined with style metadata.
func (r *JobRepositoryPG) ListByUser(ctx context.Context, userID string) ([]domain.JobSummary, error) {
	rows, err := r.pool.Query(ctx, `
SELECT j.id, j.user_id, j.input_image_id, j.style_id, j.prompt, j.status, j.error_message,
       j.retry_count, j.max_retries, j.queued_at, j.started_at, j.completed_at, j.created_at, j.updated_at,
       s.name, s.key
FROM generation_jobs j
JOIN style_configs s ON s.id = j.style_id
WHERE j.user_id = $1
ORDER BY j.created_at DESC;
`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.JobSummary
	for rows.Next() {
		var s domain.JobSummary
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.InputImageID, &s.StyleID, &s.Prompt, &s.Status, &s.ErrorMessage,
			&s.RetryCount, &s.MaxRetries, &s.QueuedAt, &s.StartedAt, &s.CompletedAt, &s.CreatedAt, &s.UpdatedAt,
			&s.StyleName, &s.StyleKey,
		); err != nil {
			return nil, err
		}
		jobs = append(jobs, s)
	}
	return jobs, rows.Err()
}

// CountByUser counts the user's currently existing jobs. Quota is derived
// from this count, so deleting jobs restores headroom.
func (r *JobRepositoryPG) CountByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
SELECT count(*) FROM generation_jobs WHERE user_id = $1;
`, userID).Scan(&count)
	return count, err
}

// FindOldestQueued returns the id of the oldest QUEUED job (FIFO order).
func (r *JobRepositoryPG) FindOldestQueued(ctx context.Context) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
SELECT id FROM generation_jobs
WHERE status = $1
ORDER BY created_at ASC
LIMIT 1;
`, domain.StatusQueued).Scan(&id)
	if infra.IsNoRows(err) {
		return "", domain.ErrNotFound
	}
	return id, err
}

// ClaimQueued is the compare-and-swap claim: QUEUED -> PROCESSING. Zero rows
// affected means another actor already advanced (or deleted) the job.
func (r *JobRepositoryPG) ClaimQueued(ctx context.Context, jobID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
UPDATE generation_jobs
SET status = $2, started_at = now(), error_message = NULL, updated_at = now()
WHERE id = $1 AND status = $3;
`, jobID, domain.StatusProcessing, domain.StatusQueued)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// AppendHistory records a single audit entry.
func (r *JobRepositoryPG) AppendHistory(ctx context.Context, entry *domain.HistoryEntry) error {
	message := ""
	if entry.Message != nil {
		message = *entry.Message
	}
	_, err := r.pool.Exec(ctx, `
INSERT INTO generation_history (id, job_id, user_id, status, message)
VALUES ($1, $2, $3, $4, NULLIF($5, ''));
`, uuid.NewString(), entry.JobID, entry.UserID, entry.Status, message)
	return err
}

// ListHistory returns the job's audit trail in creation order. The job must
// belong to the user.
func (r *JobRepositoryPG) ListHistory(ctx context.Context, jobID, userID string) ([]domain.HistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, job_id, user_id, status, message, created_at
FROM generation_history
WHERE job_id = $1 AND user_id = $2
ORDER BY created_at ASC;
`, jobID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var e domain.HistoryEntry
		if err := rows.Scan(&e.ID, &e.JobID, &e.UserID, &e.Status, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MarkCompleted sets the terminal COMPLETED state and appends history in one
// transaction.
func (r *JobRepositoryPG) MarkCompleted(ctx context.Context, jobID, userID, historyMessage string) error {
	return r.finishJob(ctx, jobID, userID, domain.StatusCompleted, nil, historyMessage)
}

// MarkFailed sets the terminal FAILED state with the error message and appends
// history in one transaction.
func (r *JobRepositoryPG) MarkFailed(ctx context.Context, jobID, userID, errorMessage string) error {
	return r.finishJob(ctx, jobID, userID, domain.StatusFailed, &errorMessage, errorMessage)
}

func (r *JobRepositoryPG) finishJob(ctx context.Context, jobID, userID string, status domain.GenerationStatus, errorMessage *string, historyMessage string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin finish job: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
UPDATE generation_jobs
SET status = $2, completed_at = now(), error_message = $3, updated_at = now()
WHERE id = $1;
`, jobID, status, errorMessage)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	if err := insertHistory(ctx, tx, jobID, userID, status, historyMessage); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit finish job: %w", err)
	}
	return nil
}

// ResetForRetry requeues a FAILED job and increments its retry counter. The
// conditional update keeps a racing worker or double retry from requeueing
// twice.
func (r *JobRepositoryPG) ResetForRetry(ctx context.Context, jobID, userID string) (*domain.Job, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin retry job: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
UPDATE generation_jobs
SET status = $3, retry_count = retry_count + 1, error_message = NULL,
    queued_at = now(), started_at = NULL, completed_at = NULL, updated_at = now()
WHERE id = $1 AND user_id = $2 AND status = $4
RETURNING `+jobColumns+`;
`, jobID, userID, domain.StatusQueued, domain.StatusFailed)
	updated, err := scanJob(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrInvalidState
		}
		return nil, fmt.Errorf("retry job: %w", err)
	}

	if err := insertHistory(ctx, tx, updated.ID, updated.UserID, domain.StatusQueued, "Retry requested"); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit retry job: %w", err)
	}
	return updated, nil
}

// Delete removes history, generated-image rows and the job itself, in
// dependency order, atomically.
func (r *JobRepositoryPG) Delete(ctx context.Context, jobID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete job: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM generation_history WHERE job_id = $1;`, jobID); err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM generated_images WHERE job_id = $1;`, jobID); err != nil {
		return fmt.Errorf("delete generated images: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM generation_jobs WHERE id = $1;`, jobID); err != nil {
		return fmt.Errorf("delete job: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete job: %w", err)
	}
	return nil
}

func insertHistory(ctx context.Context, tx pgx.Tx, jobID, userID string, status domain.GenerationStatus, message string) error {
	_, err := tx.Exec(ctx, `
INSERT INTO generation_history (id, job_id, user_id, status, message)
VALUES ($1, $2, $3, $4, NULLIF($5, ''));
`, uuid.NewString(), jobID, userID, status, message)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	if err := row.Scan(
		&job.ID, &job.UserID, &job.InputImageID, &job.StyleID, &job.Prompt, &job.Status, &job.ErrorMessage,
		&job.RetryCount, &job.MaxRetries, &job.QueuedAt, &job.StartedAt, &job.CompletedAt, &job.CreatedAt, &job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &job, nil
}

func scanJobNotFound(row pgx.Row) (*domain.Job, error) {
	job, err := scanJob(row)
	if infra.IsNoRows(err) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
