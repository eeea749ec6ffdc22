package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"server/internal/domain"
)

// In-memory doubles for the repository and storage contracts. They mirror the
// relational semantics the pgx implementations provide, including the
// conditional claim update.

type fakeJobs struct {
	mu      sync.Mutex
	seq     int
	jobs    map[string]*domain.Job
	history []domain.HistoryEntry
	styles  map[string]*domain.StyleConfig
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{
		jobs:   map[string]*domain.Job{},
		styles: map[string]*domain.StyleConfig{},
	}
}

func (f *fakeJobs) nextID() string {
	f.seq++
	return fmt.Sprintf("job-%d", f.seq)
}

func (f *fakeJobs) CreateQueued(_ context.Context, job *domain.Job, historyMessage string) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	stored := *job
	stored.ID = f.nextID()
	stored.Status = domain.StatusQueued
	stored.QueuedAt = &now
	stored.CreatedAt = now
	stored.UpdatedAt = now
	f.jobs[stored.ID] = &stored
	f.appendHistoryLocked(stored.ID, stored.UserID, domain.StatusQueued, historyMessage)
	result := stored
	return &result, nil
}

func (f *fakeJobs) appendHistoryLocked(jobID, userID string, status domain.GenerationStatus, message string) {
	msg := message
	f.history = append(f.history, domain.HistoryEntry{
		ID:        fmt.Sprintf("hist-%d", len(f.history)+1),
		JobID:     jobID,
		UserID:    userID,
		Status:    status,
		Message:   &msg,
		CreatedAt: time.Now(),
	})
}

func (f *fakeJobs) GetByID(_ context.Context, jobID string) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *job
	return &copied, nil
}

func (f *fakeJobs) GetForUser(ctx context.Context, jobID, userID string) (*domain.Job, error) {
	job, err := f.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

func (f *fakeJobs) ListByUser(_ context.Context, userID string) ([]domain.JobSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.JobSummary
	for _, job := range f.jobs {
		if job.UserID != userID {
			continue
		}
		summary := domain.JobSummary{Job: *job}
		if style, ok := f.styles[job.StyleID]; ok {
			summary.StyleName = style.Name
			summary.StyleKey = style.Key
		}
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeJobs) CountByUser(_ context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, job := range f.jobs {
		if job.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (f *fakeJobs) FindOldestQueued(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var oldest *domain.Job
	for _, job := range f.jobs {
		if job.Status != domain.StatusQueued {
			continue
		}
		if oldest == nil || job.CreatedAt.Before(oldest.CreatedAt) {
			oldest = job
		}
	}
	if oldest == nil {
		return "", domain.ErrNotFound
	}
	return oldest.ID, nil
}

func (f *fakeJobs) ClaimQueued(_ context.Context, jobID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok || job.Status != domain.StatusQueued {
		return false, nil
	}
	now := time.Now()
	job.Status = domain.StatusProcessing
	job.StartedAt = &now
	job.ErrorMessage = nil
	job.UpdatedAt = now
	return true, nil
}

func (f *fakeJobs) AppendHistory(_ context.Context, entry *domain.HistoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	message := ""
	if entry.Message != nil {
		message = *entry.Message
	}
	f.appendHistoryLocked(entry.JobID, entry.UserID, entry.Status, message)
	return nil
}

func (f *fakeJobs) ListHistory(_ context.Context, jobID, userID string) ([]domain.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.HistoryEntry
	for _, entry := range f.history {
		if entry.JobID == jobID && entry.UserID == userID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (f *fakeJobs) MarkCompleted(_ context.Context, jobID, userID, historyMessage string) error {
	return f.finish(jobID, userID, domain.StatusCompleted, historyMessage, nil)
}

func (f *fakeJobs) MarkFailed(_ context.Context, jobID, userID, errorMessage string) error {
	return f.finish(jobID, userID, domain.StatusFailed, errorMessage, &errorMessage)
}

func (f *fakeJobs) finish(jobID, userID string, status domain.GenerationStatus, historyMessage string, errorMessage *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now()
	job.Status = status
	job.CompletedAt = &now
	job.UpdatedAt = now
	job.ErrorMessage = errorMessage
	f.appendHistoryLocked(jobID, userID, status, historyMessage)
	return nil
}

func (f *fakeJobs) ResetForRetry(_ context.Context, jobID, userID string) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok || job.UserID != userID {
		return nil, domain.ErrNotFound
	}
	if job.Status != domain.StatusFailed {
		return nil, domain.ErrInvalidState
	}
	now := time.Now()
	job.Status = domain.StatusQueued
	job.RetryCount++
	job.ErrorMessage = nil
	job.StartedAt = nil
	job.CompletedAt = nil
	job.QueuedAt = &now
	job.UpdatedAt = now
	f.appendHistoryLocked(jobID, userID, domain.StatusQueued, "Retry requested")
	copied := *job
	return &copied, nil
}

func (f *fakeJobs) Delete(_ context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.jobs[jobID]; !ok {
		return domain.ErrNotFound
	}
	delete(f.jobs, jobID)
	kept := f.history[:0]
	for _, entry := range f.history {
		if entry.JobID != jobID {
			kept = append(kept, entry)
		}
	}
	f.history = kept
	return nil
}

var _ domain.JobRepository = (*fakeJobs)(nil)

type fakeImages struct {
	mu     sync.Mutex
	seq    int
	images map[string][]domain.GeneratedImage
}

func newFakeImages() *fakeImages {
	return &fakeImages{images: map[string][]domain.GeneratedImage{}}
}

func (f *fakeImages) Create(_ context.Context, img *domain.GeneratedImage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	stored := *img
	stored.ID = fmt.Sprintf("img-%d", f.seq)
	stored.CreatedAt = time.Now()
	f.images[img.JobID] = append(f.images[img.JobID], stored)
	return nil
}

func (f *fakeImages) ListByJob(_ context.Context, jobID string) ([]domain.GeneratedImage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.GeneratedImage(nil), f.images[jobID]...), nil
}

func (f *fakeImages) LatestByJob(_ context.Context, jobID string) (*domain.GeneratedImage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.images[jobID]
	if len(list) == 0 {
		return nil, domain.ErrNotFound
	}
	latest := list[len(list)-1]
	return &latest, nil
}

func (f *fakeImages) CountByJob(_ context.Context, jobID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.images[jobID]), nil
}

var _ domain.GeneratedImageRepository = (*fakeImages)(nil)

type fakeUploads struct {
	uploads map[string]*domain.UploadedImage
}

func newFakeUploads() *fakeUploads {
	return &fakeUploads{uploads: map[string]*domain.UploadedImage{}}
}

func (f *fakeUploads) GetByID(_ context.Context, imageID string) (*domain.UploadedImage, error) {
	img, ok := f.uploads[imageID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *img
	return &copied, nil
}

func (f *fakeUploads) GetForUser(ctx context.Context, imageID, userID string) (*domain.UploadedImage, error) {
	img, err := f.GetByID(ctx, imageID)
	if err != nil {
		return nil, err
	}
	if img.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return img, nil
}

var _ domain.UploadedImageRepository = (*fakeUploads)(nil)

type fakeStyles struct {
	styles map[string]*domain.StyleConfig
}

func newFakeStyles() *fakeStyles {
	return &fakeStyles{styles: map[string]*domain.StyleConfig{}}
}

func (f *fakeStyles) GetByID(_ context.Context, styleID string) (*domain.StyleConfig, error) {
	style, ok := f.styles[styleID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return style, nil
}

func (f *fakeStyles) GetActiveByID(ctx context.Context, styleID string) (*domain.StyleConfig, error) {
	style, err := f.GetByID(ctx, styleID)
	if err != nil {
		return nil, err
	}
	if !style.IsActive {
		return nil, domain.ErrNotFound
	}
	return style, nil
}

var _ domain.StyleRepository = (*fakeStyles)(nil)

type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]*domain.Profile
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{profiles: map[string]*domain.Profile{}}
}

func (f *fakeProfiles) GetByID(_ context.Context, userID string) (*domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	profile, ok := f.profiles[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *profile
	return &copied, nil
}

func (f *fakeProfiles) SetDevMode(_ context.Context, userID string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	profile, ok := f.profiles[userID]
	if !ok {
		return domain.ErrNotFound
	}
	profile.IsDevMode = active
	return nil
}

var _ domain.ProfileRepository = (*fakeProfiles)(nil)

type fakeObjects struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	signErr error
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{blobs: map[string][]byte{}}
}

func (f *fakeObjects) Upload(_ context.Context, key string, data []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[key] = append([]byte(nil), data...)
	return nil
}

func (f *fakeObjects) Download(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.blobs[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (f *fakeObjects) SignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signErr != nil {
		return "", f.signErr
	}
	if _, ok := f.blobs[key]; !ok {
		return "", domain.ErrNotFound
	}
	return "https://signed.example/" + key, nil
}

func (f *fakeObjects) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.blobs, key)
	return nil
}
