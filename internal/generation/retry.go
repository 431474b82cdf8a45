package generation

import (
	"context"
	"errors"
	"time"

	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

// DefaultStrategy is three attempts with exponential backoff starting at one second.
var DefaultStrategy = retry.Strategy{Attempts: 3, Delay: time.Second, Backoff: 2}

// Retrying retries a Generator on transient failures.
type Retrying struct {
	next     Generator
	strategy retry.Strategy
}

// NewRetrying wraps next. A zero strategy falls back to DefaultStrategy.
func NewRetrying(next Generator, s retry.Strategy) *Retrying {
	if s.Attempts <= 0 {
		s = DefaultStrategy
	}
	return &Retrying{next: next, strategy: s}
}

// Generate calls the wrapped generator until it succeeds, the strategy is
// exhausted, ctx is done, or the failure is one a retry cannot fix.
func (r *Retrying) Generate(ctx context.Context, req Request) (string, error) {
	var (
		out     string
		stop    error
		attempt int
	)

	err := retry.Do(func() error {
		attempt++

		if err := ctx.Err(); err != nil {
			stop = err
			return nil
		}

		res, err := r.next.Generate(ctx, req)
		if err == nil {
			out = res
			return nil
		}

		if errors.Is(err, ErrInvalidRequest) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			stop = err
			return nil
		}

		zlog.Logger.Warn().Err(err).Int("attempt", attempt).Msg("image generation failed")
		return err
	}, r.strategy)

	if stop != nil {
		return "", stop
	}
	if err != nil {
		return "", err
	}
	return out, nil
}
