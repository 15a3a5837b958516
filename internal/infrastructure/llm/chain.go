package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"IntelVault/internal/ports"
)

// Chain tries providers in order and returns the first answer. Providers
// that are not configured are skipped silently.
type Chain struct {
	providers []ports.Completer
	limiter   *rate.Limiter
	logger    *slog.Logger
}

var _ ports.Completer = (*Chain)(nil)

// NewChain paces calls to requestsPerMinute; zero disables pacing. One
// CompleteJSON call takes one slot however many providers it tries.
func NewChain(requestsPerMinute int, logger *slog.Logger, providers ...ports.Completer) *Chain {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	limit := rate.Inf
	if requestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(requestsPerMinute))
	}
	return &Chain{
		providers: providers,
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger,
	}
}

// CompleteJSON returns ports.ErrUnavailable when no provider is configured,
// otherwise the last provider error when all of them failed.
func (c *Chain) CompleteJSON(ctx context.Context, system string, user any, maxTokens int) (map[string]any, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for model slot: %w", err)
	}
	var lastErr error
	for i, p := range c.providers {
		out, err := p.CompleteJSON(ctx, system, user, maxTokens)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, ports.ErrUnavailable) {
			continue
		}
		c.logger.Warn("model provider failed", "provider", i, "error", err)
		lastErr = err
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ports.ErrUnavailable
}
