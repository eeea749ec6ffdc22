package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/storage"
)

// JobView is the caller-facing projection of a job. OutputURL is a freshly
// minted short-lived link, present only for completed jobs whose artifact
// could be signed.
type JobView struct {
	ID           string                  `json:"id"`
	Status       domain.GenerationStatus `json:"status"`
	Prompt       *string                 `json:"prompt"`
	StyleName    string                  `json:"styleName,omitempty"`
	StyleKey     string                  `json:"styleKey,omitempty"`
	OutputURL    *string                 `json:"outputUrl"`
	ErrorMessage *string                 `json:"errorMessage"`
	RetryCount   int                     `json:"retryCount"`
	MaxRetries   int                     `json:"maxRetries"`
	CreatedAt    time.Time               `json:"createdAt"`
	CompletedAt  *time.Time              `json:"completedAt"`
}

// JobService is the façade other layers invoke. It mediates the quota guard
// and the job store; the worker loop is the only mutator of claimed jobs.
type JobService struct {
	jobs    domain.JobRepository
	images  domain.GeneratedImageRepository
	uploads domain.UploadedImageRepository
	styles  domain.StyleRepository
	quota   *QuotaGuard
	store   storage.ObjectStore
	urlTTL  time.Duration

	maxRetries int
	logger     infra.Logger
}

// JobServiceOptions bundles the façade's dependencies.
type JobServiceOptions struct {
	Jobs       domain.JobRepository
	Images     domain.GeneratedImageRepository
	Uploads    domain.UploadedImageRepository
	Styles     domain.StyleRepository
	Quota      *QuotaGuard
	Store      storage.ObjectStore
	URLTTL     time.Duration
	MaxRetries int
	Logger     infra.Logger
}

// NewJobService constructs the façade.
func NewJobService(opts JobServiceOptions) *JobService {
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	urlTTL := opts.URLTTL
	if urlTTL <= 0 {
		urlTTL = 10 * time.Minute
	}
	return &JobService{
		jobs:       opts.Jobs,
		images:     opts.Images,
		uploads:    opts.Uploads,
		styles:     opts.Styles,
		quota:      opts.Quota,
		store:      opts.Store,
		urlTTL:     urlTTL,
		maxRetries: maxRetries,
		logger:     opts.Logger,
	}
}

// CheckGenerationLimit exposes the quota snapshot to callers that want to
// display it.
func (s *JobService) CheckGenerationLimit(ctx context.Context, userID string) (*domain.GenerationLimit, error) {
	return s.quota.CheckLimit(ctx, userID)
}

// CreateJob validates quota, input-image ownership and style activeness, then
// inserts a QUEUED job with its initial history entry atomically.
func (s *JobService) CreateJob(ctx context.Context, userID, inputImageID, styleID string, prompt *string) (*domain.Job, error) {
	limit, err := s.quota.CheckLimit(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !limit.CanGenerate {
		return nil, fmt.Errorf("%w: free limit reached (%d generations); activate developer mode for unlimited access", domain.ErrQuotaExceeded, limit.Limit)
	}

	if _, err := s.uploads.GetForUser(ctx, inputImageID, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: input image", domain.ErrNotFound)
		}
		return nil, err
	}
	if _, err := s.styles.GetActiveByID(ctx, styleID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: style configuration", domain.ErrNotFound)
		}
		return nil, err
	}

	job := &domain.Job{
		UserID:       userID,
		InputImageID: inputImageID,
		StyleID:      styleID,
		Prompt:       prompt,
		MaxRetries:   s.maxRetries,
	}
	created, err := s.jobs.CreateQueued(ctx, job, "Job queued")
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("job_id", created.ID).Str("user_id", userID).Msg("job queued")
	return created, nil
}

// ListJobs returns the user's jobs newest first, annotating completed jobs
// with a fresh signed output URL. URL minting failures degrade to a null URL,
// never an error.
func (s *JobService) ListJobs(ctx context.Context, userID string) ([]JobView, error) {
	summaries, err := s.jobs.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]JobView, 0, len(summaries))
	for _, summary := range summaries {
		view := JobView{
			ID:           summary.ID,
			Status:       summary.Status,
			Prompt:       summary.Prompt,
			StyleName:    summary.StyleName,
			StyleKey:     summary.StyleKey,
			ErrorMessage: summary.ErrorMessage,
			RetryCount:   summary.RetryCount,
			MaxRetries:   summary.MaxRetries,
			CreatedAt:    summary.CreatedAt,
			CompletedAt:  summary.CompletedAt,
		}
		view.OutputURL = s.outputURL(ctx, &summary.Job)
		views = append(views, view)
	}
	return views, nil
}

// GetJob returns one of the user's jobs with a fresh signed output URL when
// completed.
func (s *JobService) GetJob(ctx context.Context, jobID, userID string) (*JobView, error) {
	job, err := s.jobs.GetForUser(ctx, jobID, userID)
	if err != nil {
		return nil, err
	}
	view := JobView{
		ID:           job.ID,
		Status:       job.Status,
		Prompt:       job.Prompt,
		ErrorMessage: job.ErrorMessage,
		RetryCount:   job.RetryCount,
		MaxRetries:   job.MaxRetries,
		CreatedAt:    job.CreatedAt,
		CompletedAt:  job.CompletedAt,
	}
	view.OutputURL = s.outputURL(ctx, job)
	return &view, nil
}

// GetHistory returns the ordered audit trail of one of the user's jobs.
func (s *JobService) GetHistory(ctx context.Context, jobID, userID string) ([]domain.HistoryEntry, error) {
	if _, err := s.jobs.GetForUser(ctx, jobID, userID); err != nil {
		return nil, err
	}
	return s.jobs.ListHistory(ctx, jobID, userID)
}

// RetryJob requeues a FAILED job. Retries do not consume quota: the attempt
// was already paid for at creation time.
func (s *JobService) RetryJob(ctx context.Context, jobID, userID string) (*domain.Job, error) {
	job, err := s.jobs.GetForUser(ctx, jobID, userID)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.StatusFailed {
		return nil, fmt.Errorf("%w: only failed jobs can be retried", domain.ErrInvalidState)
	}
	if job.RetryCount >= job.MaxRetries {
		return nil, fmt.Errorf("%w: %d of %d retries used", domain.ErrRetryLimitExceeded, job.RetryCount, job.MaxRetries)
	}
	retried, err := s.jobs.ResetForRetry(ctx, jobID, userID)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("job_id", jobID).Int("retry_count", retried.RetryCount).Msg("job requeued for retry")
	return retried, nil
}

// DeleteJob removes the job with its history and artifacts. Stored objects
// are deleted best-effort first; storage failures never block the row
// deletion.
func (s *JobService) DeleteJob(ctx context.Context, jobID, userID string) error {
	if _, err := s.jobs.GetForUser(ctx, jobID, userID); err != nil {
		return err
	}

	artifacts, err := s.images.ListByJob(ctx, jobID)
	if err != nil {
		return err
	}
	for _, artifact := range artifacts {
		if err := s.store.Delete(ctx, artifact.StorageKey); err != nil {
			s.logger.Warn().Err(err).Str("job_id", jobID).Str("storage_key", artifact.StorageKey).Msg("artifact cleanup failed")
		}
	}

	return s.jobs.Delete(ctx, jobID)
}

func (s *JobService) outputURL(ctx context.Context, job *domain.Job) *string {
	if job.Status != domain.StatusCompleted {
		return nil
	}
	artifact, err := s.images.LatestByJob(ctx, job.ID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("output lookup failed")
		}
		return nil
	}
	url, err := s.store.SignedURL(ctx, artifact.StorageKey, s.urlTTL)
	if err != nil {
		s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("signed url failed")
		return nil
	}
	return &url
}
