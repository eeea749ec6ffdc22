package domain

import "context"

// JobRepository owns persistence and state transitions for jobs and their
// append-only history. Methods that touch more than one table run in a single
// transaction so a crash leaves either the old or the new state.
type JobRepository interface {
	// CreateQueued inserts a QUEUED job and its initial history entry
	// atomically, returning the stored job.
	CreateQueued(ctx context.Context, job *Job, historyMessage string) (*Job, error)

	GetByID(ctx context.Context, jobID string) (*Job, error)
	GetForUser(ctx context.Context, jobID, userID string) (*Job, error)
	ListByUser(ctx context.Context, userID string) ([]JobSummary, error)
	CountByUser(ctx context.Context, userID string) (int, error)

	// FindOldestQueued returns the id of the oldest QUEUED job, or ErrNotFound
	// when the queue is empty.
	FindOldestQueued(ctx context.Context) (string, error)

	// ClaimQueued performs the conditional QUEUED -> PROCESSING update. It
	// reports false (without error) when zero rows were affected, meaning some
	// other actor advanced the job first.
	ClaimQueued(ctx context.Context, jobID string) (bool, error)

	AppendHistory(ctx context.Context, entry *HistoryEntry) error
	ListHistory(ctx context.Context, jobID, userID string) ([]HistoryEntry, error)

	// MarkCompleted and MarkFailed set the terminal status, completion
	// timestamp and history entry in one transaction.
	MarkCompleted(ctx context.Context, jobID, userID, historyMessage string) error
	MarkFailed(ctx context.Context, jobID, userID, errorMessage string) error

	// ResetForRetry requeues a FAILED job: status QUEUED, retry count
	// incremented, error/started/completed cleared, history appended.
	ResetForRetry(ctx context.Context, jobID, userID string) (*Job, error)

	// Delete removes history, generated-image rows and the job, in that order,
	// atomically.
	Delete(ctx context.Context, jobID string) error
}

// GeneratedImageRepository persists output artifact references.
type GeneratedImageRepository interface {
	Create(ctx context.Context, img *GeneratedImage) error
	ListByJob(ctx context.Context, jobID string) ([]GeneratedImage, error)
	// LatestByJob returns the most recent image for the job, or ErrNotFound.
	LatestByJob(ctx context.Context, jobID string) (*GeneratedImage, error)
	CountByJob(ctx context.Context, jobID string) (int, error)
}

// UploadedImageRepository resolves user-owned input images.
type UploadedImageRepository interface {
	GetByID(ctx context.Context, imageID string) (*UploadedImage, error)
	GetForUser(ctx context.Context, imageID, userID string) (*UploadedImage, error)
}

// StyleRepository is the read-only style catalog lookup.
type StyleRepository interface {
	GetByID(ctx context.Context, styleID string) (*StyleConfig, error)
	GetActiveByID(ctx context.Context, styleID string) (*StyleConfig, error)
}

// ProfileRepository reads quota-relevant profile fields.
type ProfileRepository interface {
	GetByID(ctx context.Context, userID string) (*Profile, error)
	SetDevMode(ctx context.Context, userID string, active bool) error
}
