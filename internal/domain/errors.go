package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrQuotaExceeded      = errors.New("quota exceeded")
	ErrInvalidState       = errors.New("invalid job state")
	ErrRetryLimitExceeded = errors.New("retry limit reached")
	ErrInvalidPasskey     = errors.New("invalid passkey")

	// Provider errors classify generation backend failures. The worker records
	// them on the job; they are never surfaced synchronously to a caller.
	ErrProviderTimeout          = errors.New("provider timeout")
	ErrProviderBusy             = errors.New("provider busy")
	ErrProviderPermissionDenied = errors.New("provider permission denied")
	ErrProviderFailure          = errors.New("provider failure")

	ErrStorageFailure = errors.New("storage failure")
)
