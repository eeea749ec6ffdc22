// Package worker runs the single background loop that claims QUEUED jobs and
// executes generation. The relational store is the only coordination medium:
// the conditional QUEUED -> PROCESSING update decides who owns a job.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/providers/image"
	"server/internal/storage"
)

// Options bundles the worker's dependencies.
type Options struct {
	Jobs         domain.JobRepository
	Images       domain.GeneratedImageRepository
	Uploads      domain.UploadedImageRepository
	Styles       domain.StyleRepository
	Generator    image.Generator
	Store        storage.ObjectStore
	Logger       infra.Logger
	PollInterval time.Duration
	DefaultModel string
	SignedURLTTL time.Duration
}

// Worker polls for the oldest QUEUED job and processes it. One job is in
// flight at a time; cancellation arrives through the context passed to Run.
type Worker struct {
	jobs    domain.JobRepository
	images  domain.GeneratedImageRepository
	uploads domain.UploadedImageRepository
	styles  domain.StyleRepository

	generator image.Generator
	store     storage.ObjectStore
	logger    infra.Logger

	pollInterval time.Duration
	defaultModel string
	signedURLTTL time.Duration
}

// New constructs a worker.
func New(opts Options) *Worker {
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	signedURLTTL := opts.SignedURLTTL
	if signedURLTTL <= 0 {
		signedURLTTL = 10 * time.Minute
	}
	return &Worker{
		jobs:         opts.Jobs,
		images:       opts.Images,
		uploads:      opts.Uploads,
		styles:       opts.Styles,
		generator:    opts.Generator,
		store:        opts.Store,
		logger:       opts.Logger,
		pollInterval: pollInterval,
		defaultModel: opts.DefaultModel,
		signedURLTTL: signedURLTTL,
	}
}

// Run polls until the context is canceled. Infrastructure errors (store
// unreachable) are logged and retried after the poll interval; they never
// crash the loop.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().Dur("poll_interval", w.pollInterval).Msg("worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("worker stopping")
			return ctx.Err()
		default:
		}

		jobID, err := w.jobs.FindOldestQueued(ctx)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, context.Canceled) {
				w.logger.Error().Err(err).Msg("queue poll failed")
			}
			w.sleep(ctx)
			continue
		}

		if err := w.Process(ctx, jobID); err != nil {
			w.logger.Error().Err(err).Str("job_id", jobID).Msg("job failed")
		}
	}
}

func (w *Worker) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.pollInterval):
	}
}

// Process drives one job to a terminal state. It is idempotent across process
// restarts: an already-completed job, or one whose artifact exists from a
// crashed attempt, short-circuits without calling the provider again, and a
// lost claim is a silent no-op.
func (w *Worker) Process(ctx context.Context, jobID string) error {
	// Re-fetch fresh; the find and the claim are separate steps.
	job, err := w.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Deleted between find and claim.
			return nil
		}
		return err
	}

	if job.Status == domain.StatusCompleted {
		return nil
	}

	artifactCount, err := w.images.CountByJob(ctx, job.ID)
	if err != nil {
		return err
	}
	if artifactCount > 0 && !job.Status.Terminal() {
		// Crash recovery: the artifact exists but the terminal transition was
		// lost. Finish the bookkeeping without another provider call.
		if err := w.jobs.MarkCompleted(ctx, job.ID, job.UserID, "Output already generated"); err != nil {
			return err
		}
		w.logger.Info().Str("job_id", job.ID).Msg("job recovered, output already generated")
		return nil
	}

	if job.Status != domain.StatusQueued {
		return nil
	}

	claimed, err := w.jobs.ClaimQueued(ctx, job.ID)
	if err != nil {
		return err
	}
	if !claimed {
		// Zero rows affected: another actor advanced the job first.
		return nil
	}

	if err := w.jobs.AppendHistory(ctx, &domain.HistoryEntry{
		JobID:   job.ID,
		UserID:  job.UserID,
		Status:  domain.StatusProcessing,
		Message: strPtr("Job started"),
	}); err != nil {
		return err
	}
	w.logger.Info().Str("job_id", job.ID).Msg("job claimed")

	historyMessage, err := w.generate(ctx, job)
	if err != nil {
		if failErr := w.jobs.MarkFailed(ctx, job.ID, job.UserID, err.Error()); failErr != nil {
			w.logger.Error().Err(failErr).Str("job_id", job.ID).Msg("failed to record job failure")
		}
		return err
	}

	if err := w.jobs.MarkCompleted(ctx, job.ID, job.UserID, historyMessage); err != nil {
		return err
	}
	w.logger.Info().Str("job_id", job.ID).Msg("job completed")
	return nil
}

// generate composes the prompt, calls the provider chain and persists the
// artifact. The returned string is the COMPLETED history message encoding the
// output descriptor.
func (w *Worker) generate(ctx context.Context, job *domain.Job) (string, error) {
	style, err := w.styles.GetByID(ctx, job.StyleID)
	if err != nil {
		return "", fmt.Errorf("style configuration missing: %w", err)
	}
	upload, err := w.uploads.GetByID(ctx, job.InputImageID)
	if err != nil {
		return "", fmt.Errorf("input image missing: %w", err)
	}

	inputBytes, err := w.store.Download(ctx, upload.StorageKey)
	if err != nil {
		return "", fmt.Errorf("%w: download input image: %v", domain.ErrStorageFailure, err)
	}

	userPrompt := ""
	if job.Prompt != nil {
		userPrompt = *job.Prompt
	}
	params := image.GenerateParams{
		Model:            style.ResolveModel(w.defaultModel),
		Prompt:           domain.ComposePrompt(style, userPrompt),
		GuidanceScale:    style.EffectiveGuidanceScale(2.5),
		Steps:            style.Steps(28),
		InputImage:       inputBytes,
		InputContentType: upload.ContentType,
	}
	if strength, ok := style.EffectiveStrength(); ok {
		params.Strength = strength
	}
	if style.WantsControl() {
		// Structural conditioning: forward the control image (the input when
		// no dedicated control image exists) and the negative prompt.
		params.NegativePrompt = domain.ComposeNegativePrompt(style, "")
		params.ControlImage = inputBytes
		if scale, ok := style.ControlConditioningScale(); ok {
			params.ControlConditioningScale = scale
		}
	}
	if overrides, ok := style.Params["providerOverrides"].(map[string]any); ok {
		params.Overrides = overrides
	}

	result, err := w.generator.Generate(ctx, params)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("users/%s/generated/%s%s", job.UserID, uuid.NewString(), extensionFor(result.ContentType))
	if err := w.store.Upload(ctx, key, result.Image, result.ContentType); err != nil {
		return "", fmt.Errorf("%w: store generated image: %v", domain.ErrStorageFailure, err)
	}

	if err := w.images.Create(ctx, &domain.GeneratedImage{
		UserID:        job.UserID,
		JobID:         job.ID,
		SourceImageID: &job.InputImageID,
		StorageKey:    key,
		ContentType:   result.ContentType,
	}); err != nil {
		return "", fmt.Errorf("persist generated image: %w", err)
	}

	descriptor := map[string]string{
		"storageKey":  key,
		"contentType": result.ContentType,
	}
	if url, err := w.store.SignedURL(ctx, key, w.signedURLTTL); err == nil {
		descriptor["outputUrl"] = url
	}
	message, err := json.Marshal(descriptor)
	if err != nil {
		return "", fmt.Errorf("encode output descriptor: %w", err)
	}
	return string(message), nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

func strPtr(s string) *string { return &s }
