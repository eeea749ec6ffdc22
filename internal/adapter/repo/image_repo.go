package repo

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
	"server/internal/infra"
)

// GeneratedImageRepositoryPG implements domain.GeneratedImageRepository.
type GeneratedImageRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewGeneratedImageRepository constructs a generated-image repository.
func NewGeneratedImageRepository(pool *pgxpool.Pool) *GeneratedImageRepositoryPG {
	return &GeneratedImageRepositoryPG{pool: pool}
}

// Create persists one output artifact reference.
func (r *GeneratedImageRepositoryPG) Create(ctx context.Context, img *domain.GeneratedImage) error {
	if img.ID == "" {
		img.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `
INSERT INTO generated_images (id, user_id, job_id, source_image_id, storage_key, content_type)
VALUES ($1, $2, $3, $4, $5, $6);
`, img.ID, img.UserID, img.JobID, img.SourceImageID, img.StorageKey, img.ContentType)
	return err
}

// ListByJob returns all artifacts for the job, newest first.
func (r *GeneratedImageRepositoryPG) ListByJob(ctx context.Context, jobID string) ([]domain.GeneratedImage, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, user_id, job_id, source_image_id, storage_key, content_type, created_at
FROM generated_images
WHERE job_id = $1
ORDER BY created_at DESC;
`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []domain.GeneratedImage
	for rows.Next() {
		var img domain.GeneratedImage
		if err := rows.Scan(&img.ID, &img.UserID, &img.JobID, &img.SourceImageID, &img.StorageKey, &img.ContentType, &img.CreatedAt); err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// LatestByJob returns the most recent artifact, the job's "current output".
func (r *GeneratedImageRepositoryPG) LatestByJob(ctx context.Context, jobID string) (*domain.GeneratedImage, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, user_id, job_id, source_image_id, storage_key, content_type, created_at
FROM generated_images
WHERE job_id = $1
ORDER BY created_at DESC
LIMIT 1;
`, jobID)
	var img domain.GeneratedImage
	if err := row.Scan(&img.ID, &img.UserID, &img.JobID, &img.SourceImageID, &img.StorageKey, &img.ContentType, &img.CreatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &img, nil
}

// CountByJob counts artifacts belonging to the job.
func (r *GeneratedImageRepositoryPG) CountByJob(ctx context.Context, jobID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
SELECT count(*) FROM generated_images WHERE job_id = $1;
`, jobID).Scan(&count)
	return count, err
}

var _ domain.GeneratedImageRepository = (*GeneratedImageRepositoryPG)(nil)

// UploadedImageRepositoryPG implements domain.UploadedImageRepository.
type UploadedImageRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewUploadedImageRepository constructs an uploaded-image repository.
func NewUploadedImageRepository(pool *pgxpool.Pool) *UploadedImageRepositoryPG {
	return &UploadedImageRepositoryPG{pool: pool}
}

// GetByID fetches an uploaded image regardless of owner (worker path).
func (r *UploadedImageRepositoryPG) GetByID(ctx context.Context, imageID string) (*domain.UploadedImage, error) {
	return r.get(ctx, `
SELECT id, user_id, storage_key, content_type, created_at
FROM uploaded_images
WHERE id = $1;
`, imageID)
}

// GetForUser fetches an uploaded image only when the user owns it.
func (r *UploadedImageRepositoryPG) GetForUser(ctx context.Context, imageID, userID string) (*domain.UploadedImage, error) {
	return r.get(ctx, `
SELECT id, user_id, storage_key, content_type, created_at
FROM uploaded_images
WHERE id = $1 AND user_id = $2;
`, imageID, userID)
}

func (r *UploadedImageRepositoryPG) get(ctx context.Context, query string, args ...any) (*domain.UploadedImage, error) {
	row := r.pool.QueryRow(ctx, query, args...)
	var img domain.UploadedImage
	if err := row.Scan(&img.ID, &img.UserID, &img.StorageKey, &img.ContentType, &img.CreatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &img, nil
}

var _ domain.UploadedImageRepository = (*UploadedImageRepositoryPG)(nil)
