package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/akarev/keepup/internal/errs"
)

// RetryPolicy bounds the transient-failure retry loop. Only
// errs.ErrUnavailable is ever retried; validation and not-found failures
// surface immediately.
type RetryPolicy struct {
	BaseDelay   time.Duration // first delay; doubles per attempt
	MaxDelay    time.Duration // cap on any single delay
	MaxAttempts uint64        // retries after the initial attempt
}

// DefaultRetry is tuned for a backend that needs a few seconds to warm up.
var DefaultRetry = RetryPolicy{
	BaseDelay:   200 * time.Millisecond,
	MaxDelay:    5 * time.Second,
	MaxAttempts: 5,
}

// Backoff returns the delay-per-attempt schedule: exponential doubling from
// BaseDelay, capped at MaxDelay, with ±20% jitter so clients do not retry in
// lockstep. The schedule is a pure generator; it does no sleeping itself and
// can be tested without waiting.
func (p RetryPolicy) Backoff() retry.Backoff {
	b := retry.NewExponential(p.BaseDelay)
	b = retry.WithCappedDuration(p.MaxDelay, b)
	b = retry.WithJitterPercent(20, b)
	b = retry.WithMaxRetries(p.MaxAttempts, b)
	return b
}

// withRetry runs one gateway call under the retry policy. After the first
// unavailable failure the loop probes Ping before replaying the real call, so
// a backend that is still starting up is not hammered with full requests.
// Exhausting the schedule surfaces errs.ErrSyncFailed.
func (c *Collection) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	warming := false
	err := retry.Do(ctx, c.policy.Backoff(), func(ctx context.Context) error {
		if warming {
			if perr := c.gw.Ping(ctx); errors.Is(perr, errs.ErrUnavailable) {
				return retry.RetryableError(perr)
			}
		}
		err := fn(ctx)
		if errors.Is(err, errs.ErrUnavailable) {
			warming = true
			c.log.Warn("backend unavailable, retrying", zap.String("op", op), zap.Error(err))
			return retry.RetryableError(err)
		}
		return err
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errs.ErrUnavailable):
		return fmt.Errorf("%w: %s: %v", errs.ErrSyncFailed, op, err)
	case errors.Is(err, errs.ErrValidation),
		errors.Is(err, errs.ErrNotFound),
		errors.Is(err, errs.ErrTimeout),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	}
	// Unclassified failures must never vanish silently.
	c.log.Error("gateway call failed", zap.String("op", op), zap.Error(err))
	return err
}
