// Package service holds the public operations of the generation pipeline:
// the quota guard and the job façade invoked by the HTTP layer.
package service

import (
	"context"

	"server/internal/domain"
)

// QuotaGuard computes whether a user may start a new job. "Used" counts the
// user's currently existing job rows, so deleting jobs restores headroom; the
// dev-mode flag bypasses the limit entirely.
type QuotaGuard struct {
	profiles domain.ProfileRepository
	jobs     domain.JobRepository
	limit    int
	passkey  string
}

// NewQuotaGuard wires the guard with the fixed free-tier limit and the shared
// dev-mode passkey.
func NewQuotaGuard(profiles domain.ProfileRepository, jobs domain.JobRepository, limit int, passkey string) *QuotaGuard {
	return &QuotaGuard{profiles: profiles, jobs: jobs, limit: limit, passkey: passkey}
}

// CheckLimit returns the quota snapshot for the user. Read-only.
func (g *QuotaGuard) CheckLimit(ctx context.Context, userID string) (*domain.GenerationLimit, error) {
	profile, err := g.profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	used, err := g.jobs.CountByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if profile.IsDevMode {
		return &domain.GenerationLimit{
			Limit:       g.limit,
			Used:        used,
			Remaining:   domain.UnlimitedRemaining,
			IsDevMode:   true,
			CanGenerate: true,
		}, nil
	}

	remaining := g.limit - used
	if remaining < 0 {
		remaining = 0
	}
	return &domain.GenerationLimit{
		Limit:       g.limit,
		Used:        used,
		Remaining:   remaining,
		IsDevMode:   false,
		CanGenerate: used < g.limit,
	}, nil
}

// SetDevMode toggles unlimited generations. Activation requires the shared
// passkey; deactivation is always allowed.
func (g *QuotaGuard) SetDevMode(ctx context.Context, userID, passkey string, activate bool) error {
	if activate && passkey != g.passkey {
		return domain.ErrInvalidPasskey
	}
	return g.profiles.SetDevMode(ctx, userID, activate)
}
