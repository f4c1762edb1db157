// Package lock provides the distributed lease lock that serializes booking
// attempts on overlapping windows.
//
// A lock is a set of leases, one per key. Each lease names a random owner
// token and an expiry, so a crashed holder blocks others for at most one TTL.
// Keys are always taken in sorted order.
package lock

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"lessonbook/pkg/logger"

	"github.com/google/uuid"
)

var (
	// ErrContention means the keys stayed held by someone else until the
	// acquire timeout. It is retryable.
	ErrContention = errors.New("lock contention: lease still held by another owner")

	// ErrLeaseLost means at least one lease expired or was taken over.
	ErrLeaseLost = errors.New("lease lost")
)

const (
	defaultPollMin = 5 * time.Millisecond
	defaultPollMax = 100 * time.Millisecond
)

type DistributedLock interface {
	Acquire(ctx context.Context, keys []string, timeout time.Duration) (*Handle, error)
	Confirm(ctx context.Context, h *Handle) error
	Release(ctx context.Context, h *Handle) error
}

// LeaseStore is a shared table of leases.
type LeaseStore interface {
	// TryAcquire takes key for owner when it is free or expired. It returns
	// false when a live lease belongs to someone else.
	TryAcquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	// Check reports whether owner still holds a live lease on key.
	Check(ctx context.Context, key, owner string) (bool, error)
	// Release deletes the lease only if owner still holds it.
	Release(ctx context.Context, key, owner string) error
	// PurgeExpired removes dead leases and returns how many it removed.
	PurgeExpired(ctx context.Context) (int64, error)
}

// Handle is the proof of holding a set of leases.
type Handle struct {
	Keys       []string
	Owner      string
	AcquiredAt time.Time
	// ExpiresAt is conservative: it counts from before the first lease was taken.
	ExpiresAt time.Time
}

type LeaseLock struct {
	store   LeaseStore
	ttl     time.Duration
	pollMin time.Duration
	pollMax time.Duration
	now     func() time.Time
	log     *logger.Logger
}

type Option func(*LeaseLock)

func WithPolling(min, max time.Duration) Option {
	return func(l *LeaseLock) {
		l.pollMin, l.pollMax = min, max
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *LeaseLock) {
		l.now = now
	}
}

func NewLeaseLock(store LeaseStore, ttl time.Duration, log *logger.Logger, opts ...Option) *LeaseLock {
	l := &LeaseLock{
		store:   store,
		ttl:     ttl,
		pollMin: defaultPollMin,
		pollMax: defaultPollMax,
		now:     time.Now,
		log:     log,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *LeaseLock) Store() LeaseStore {
	return l.store
}

// Acquire takes every key or none. It polls with jittered backoff until
// timeout and then returns ErrContention. Store failures are returned
// wrapped and are not retryable.
func (l *LeaseLock) Acquire(ctx context.Context, keys []string, timeout time.Duration) (*Handle, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("acquire: no keys")
	}

	ordered := slices.Clone(keys)
	slices.Sort(ordered)
	ordered = slices.Compact(ordered)

	start := l.now()
	h := &Handle{
		Owner:      uuid.NewString(),
		AcquiredAt: start,
		ExpiresAt:  start.Add(l.ttl),
	}
	deadline := start.Add(timeout)

	for _, key := range ordered {
		if err := l.acquireOne(ctx, key, h.Owner, deadline); err != nil {
			l.releaseQuietly(h)
			return nil, err
		}
		h.Keys = append(h.Keys, key)
	}

	return h, nil
}

func (l *LeaseLock) acquireOne(ctx context.Context, key, owner string, deadline time.Time) error {
	delay := l.pollMin

	for {
		ok, err := l.store.TryAcquire(ctx, key, owner, l.ttl)
		if err != nil {
			return fmt.Errorf("acquire lease %s: %w", key, err)
		}
		if ok {
			return nil
		}

		remaining := deadline.Sub(l.now())
		if remaining <= 0 {
			return fmt.Errorf("%w: %s", ErrContention, key)
		}

		wait := jitter(delay)
		if wait > remaining {
			wait = remaining
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("acquire lease %s: %w", key, ctx.Err())
		case <-timer.C:
		}

		delay = min(delay*2, l.pollMax)
	}
}

// jitter returns a duration in [d/2, d].
func jitter(d time.Duration) time.Duration {
	if d <= 1 {
		return d
	}
	half := d / 2
	return half + rand.N(half+1)
}

// Confirm verifies that every lease of h is still held.
func (l *LeaseLock) Confirm(ctx context.Context, h *Handle) error {
	if h == nil {
		return ErrLeaseLost
	}
	if !l.now().Before(h.ExpiresAt) {
		return fmt.Errorf("%w: handle expired at %s", ErrLeaseLost, h.ExpiresAt.Format(time.RFC3339Nano))
	}

	for _, key := range h.Keys {
		held, err := l.store.Check(ctx, key, h.Owner)
		if err != nil {
			return fmt.Errorf("check lease %s: %w", key, err)
		}
		if !held {
			return fmt.Errorf("%w: %s", ErrLeaseLost, key)
		}
	}
	return nil
}

// Release drops every lease still owned by h. Leases already taken over by
// someone else are left alone.
func (l *LeaseLock) Release(ctx context.Context, h *Handle) error {
	if h == nil {
		return nil
	}

	var errs []error
	for _, key := range h.Keys {
		if err := l.store.Release(ctx, key, h.Owner); err != nil {
			errs = append(errs, fmt.Errorf("release lease %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

func (l *LeaseLock) releaseQuietly(h *Handle) {
	if len(h.Keys) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.ttl)
	defer cancel()

	if err := l.Release(ctx, h); err != nil {
		l.log.Warn("Failed to release partially acquired leases",
			"keys", h.Keys,
			"error", err,
		)
	}
}
