package domain

import "time"

// GenerationStatus enumerates job lifecycle states.
type GenerationStatus string

const (
	StatusQueued     GenerationStatus = "QUEUED"
	StatusProcessing GenerationStatus = "PROCESSING"
	StatusCompleted  GenerationStatus = "COMPLETED"
	StatusFailed     GenerationStatus = "FAILED"
)

// Terminal reports whether the status is a terminal state.
func (s GenerationStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is one user-initiated request to transform an input image with a style
// preset. Jobs move QUEUED -> PROCESSING -> {COMPLETED, FAILED}; FAILED jobs
// may be requeued by an explicit retry while RetryCount < MaxRetries.
type Job struct {
	ID           string
	UserID       string
	InputImageID string
	StyleID      string
	Prompt       *string
	Status       GenerationStatus
	ErrorMessage *string
	RetryCount   int
	MaxRetries   int
	QueuedAt     *time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// JobSummary is a list-view projection of a job joined with its style.
type JobSummary struct {
	Job
	StyleName string
	StyleKey  string
}

// HistoryEntry is one append-only audit record of a job status transition.
// Entries are never updated; they are removed only when the owning job is
// deleted.
type HistoryEntry struct {
	ID        string
	JobID     string
	UserID    string
	Status    GenerationStatus
	Message   *string
	CreatedAt time.Time
}

// GeneratedImage references the stored output artifact of a successful
// generation. The bytes live in object storage; only the key is persisted.
type GeneratedImage struct {
	ID            string
	UserID        string
	JobID         string
	SourceImageID *string
	StorageKey    string
	ContentType   string
	CreatedAt     time.Time
}

// UploadedImage is a user-owned input image reference. Uploading itself is
// handled outside this service; jobs only validate ownership and read bytes.
type UploadedImage struct {
	ID          string
	UserID      string
	StorageKey  string
	ContentType string
	CreatedAt   time.Time
}
