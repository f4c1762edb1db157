package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"lessonbook/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLock(store LeaseStore, opts ...Option) *LeaseLock {
	opts = append([]Option{WithPolling(time.Millisecond, 5*time.Millisecond)}, opts...)
	return NewLeaseLock(store, 30*time.Second, logger.Discard(), opts...)
}

func TestLeaseLock_AcquireRelease(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	l := newTestLock(store)

	h, err := l.Acquire(ctx, []string{"b", "a", "b"}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, h.Keys, "keys are sorted and deduplicated")
	assert.NotEmpty(t, h.Owner)
	assert.Equal(t, 2, store.Held())

	require.NoError(t, l.Confirm(ctx, h))
	require.NoError(t, l.Release(ctx, h))
	assert.Equal(t, 0, store.Held())
}

func TestLeaseLock_ContentionTimesOut(t *testing.T) {
	ctx := context.Background()
	l := newTestLock(NewMemoryStore())

	held, err := l.Acquire(ctx, []string{"slot"}, time.Second)
	require.NoError(t, err)

	start := time.Now()
	_, err = l.Acquire(ctx, []string{"slot"}, 30*time.Millisecond)
	assert.ErrorIs(t, err, ErrContention)
	assert.Less(t, time.Since(start), time.Second)

	require.NoError(t, l.Release(ctx, held))
	_, err = l.Acquire(ctx, []string{"slot"}, 30*time.Millisecond)
	assert.NoError(t, err)
}

func TestLeaseLock_PartialAcquireIsUndone(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	l := newTestLock(store)

	_, err := l.Acquire(ctx, []string{"b"}, time.Second)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, []string{"a", "b"}, 20*time.Millisecond)
	require.ErrorIs(t, err, ErrContention)

	assert.Equal(t, 1, store.Held(), "lease on a must be released after failing on b")
}

func TestLeaseLock_ExpiredLeaseIsReclaimed(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	fake := func() time.Time { return now }

	store := NewMemoryStore()
	store.SetClock(fake)
	l := newTestLock(store, WithClock(fake))

	crashed, err := l.Acquire(ctx, []string{"slot"}, time.Second)
	require.NoError(t, err)

	now = now.Add(31 * time.Second)

	h, err := l.Acquire(ctx, []string{"slot"}, time.Second)
	require.NoError(t, err)
	require.NoError(t, l.Confirm(ctx, h))

	assert.ErrorIs(t, l.Confirm(ctx, crashed), ErrLeaseLost)

	require.NoError(t, l.Release(ctx, crashed))
	assert.NoError(t, l.Confirm(ctx, h), "a stale holder's release must not drop the new lease")
}

func TestLeaseLock_ConfirmDetectsTakeover(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	l := newTestLock(store)

	h, err := l.Acquire(ctx, []string{"slot"}, time.Second)
	require.NoError(t, err)

	require.NoError(t, store.Release(ctx, "slot", h.Owner))
	ok, err := store.TryAcquire(ctx, "slot", "intruder", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	assert.ErrorIs(t, l.Confirm(ctx, h), ErrLeaseLost)
}

type failingStore struct {
	MemoryStore
}

func (f *failingStore) TryAcquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	return false, errors.New("store unreachable")
}

func TestLeaseLock_StoreFailureIsNotContention(t *testing.T) {
	l := newTestLock(&failingStore{})

	_, err := l.Acquire(context.Background(), []string{"slot"}, time.Second)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrContention)
}

func TestLeaseLock_ContextCancelled(t *testing.T) {
	l := newTestLock(NewMemoryStore())
	_, err := l.Acquire(context.Background(), []string{"slot"}, time.Second)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err = l.Acquire(ctx, []string{"slot"}, 5*time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrContention)
}

func TestLeaseLock_MutualExclusion(t *testing.T) {
	ctx := context.Background()
	l := newTestLock(NewMemoryStore())

	var inside, maxInside, done int32
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := l.Acquire(ctx, []string{"slot:o:2025-09-05:1400", "slot:o:2025-09-05:1415"}, 5*time.Second)
			if err != nil {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			atomic.AddInt32(&done, 1)
			_ = l.Release(ctx, h)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, int32(16), done)
}
