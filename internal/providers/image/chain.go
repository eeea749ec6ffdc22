package image

import (
	"context"
	"fmt"

	"server/internal/domain"
	"server/internal/infra"
)

// Chain iterates an ordered list of capability-compatible backends until one
// succeeds or all fail. Backends without credentials are skipped, so a
// missing primary token routes straight to the fallback.
type Chain struct {
	generators []Generator
	logger     infra.Logger
}

// NewChain wires the backends in priority order.
func NewChain(logger infra.Logger, generators ...Generator) *Chain {
	return &Chain{generators: generators, logger: logger}
}

// Name identifies the chain in logs.
func (c *Chain) Name() string { return "chain" }

// Available reports whether any backend can attempt a call.
func (c *Chain) Available() bool {
	for _, g := range c.generators {
		if g.Available() {
			return true
		}
	}
	return false
}

// Generate tries each available backend in order. Failures are logged and the
// next backend is attempted; the last classified error is returned when all
// backends fail.
func (c *Chain) Generate(ctx context.Context, params GenerateParams) (*Result, error) {
	var lastErr error
	for _, g := range c.generators {
		if !g.Available() {
			c.logger.Debug().Str("provider", g.Name()).Msg("provider skipped, no credentials")
			continue
		}
		result, err := g.Generate(ctx, params)
		if err == nil {
			return result, nil
		}
		lastErr = err
		c.logger.Warn().Err(err).Str("provider", g.Name()).Msg("provider attempt failed")

		if ctx.Err() != nil {
			break
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%w: no image provider configured", domain.ErrProviderFailure)
}

var _ Generator = (*Chain)(nil)
