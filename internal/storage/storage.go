// Package storage provides object storage for generated image artifacts.
package storage

import (
	"context"
	"time"
)

// ObjectStore is the contract the job pipeline needs from object storage:
// upload the output on success, read the input image, mint short-lived URLs
// for completed outputs and delete artifacts when a job is deleted.
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, error)
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}
