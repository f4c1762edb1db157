package service

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	apperrors "lessonbook/pkg/errors"
	"lessonbook/pkg/logger"
	"lessonbook/pkg/model"
)

type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// RetryOrchestrator re-runs an attempt while it reports lock contention.
// Every other outcome is final.
type RetryOrchestrator struct {
	policy RetryPolicy
	sleep  func(ctx context.Context, d time.Duration) error
	log    *logger.Logger
}

func NewRetryOrchestrator(policy RetryPolicy, log *logger.Logger) *RetryOrchestrator {
	return &RetryOrchestrator{
		policy: policy,
		sleep:  sleepContext,
		log:    log,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// WithRetry runs op up to maxAttempts times. A non-positive maxAttempts
// falls back to the policy. When every attempt hit contention the last
// result is returned as MAX_RETRIES_EXCEEDED.
func (r *RetryOrchestrator) WithRetry(ctx context.Context, op func(ctx context.Context) model.BookingResult, maxAttempts int) model.BookingResult {
	if maxAttempts <= 0 {
		maxAttempts = max(r.policy.MaxAttempts, 1)
	}

	var result model.BookingResult
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result = op(ctx)
		result.Attempts = attempt

		if result.ErrorCode != apperrors.CodeLockContention {
			return result
		}
		if attempt == maxAttempts {
			break
		}

		delay := r.backoff(attempt - 1)
		r.log.Debug("Lock contention, retrying booking attempt",
			"attempt", attempt,
			"delay", delay.String(),
		)
		if err := r.sleep(ctx, delay); err != nil {
			return result
		}
	}

	r.log.Warn("Booking retries exhausted", "attempts", maxAttempts)
	result.ErrorCode = apperrors.CodeMaxRetriesExceeded
	result.Error = fmt.Sprintf("the requested window stayed busy after %d attempts, please try again", maxAttempts)
	return result
}

// backoff is full jitter over min(base * 2^n, max).
func (r *RetryOrchestrator) backoff(n int) time.Duration {
	ceiling := r.policy.MaxDelay
	if n < 32 {
		if d := r.policy.BaseDelay << n; d > 0 && d < ceiling {
			ceiling = d
		}
	}
	if ceiling <= 0 {
		return 0
	}
	return rand.N(ceiling + 1)
}
