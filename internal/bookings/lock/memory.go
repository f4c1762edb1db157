package lock

import (
	"context"
	"sync"
	"time"

	"lessonbook/pkg/model"
)

// MemoryStore keeps leases in process memory. It only serializes callers that
// share the same instance.
type MemoryStore struct {
	mu     sync.Mutex
	leases map[string]model.Lease
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		leases: make(map[string]model.Lease),
		now:    time.Now,
	}
}

// SetClock replaces the store's time source.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) TryAcquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if current, ok := s.leases[key]; ok && now.Before(current.ExpiresAt) {
		return false, nil
	}

	s.leases[key] = model.Lease{
		Key:       key,
		Owner:     owner,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	return true, nil
}

func (s *MemoryStore) Check(ctx context.Context, key, owner string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.leases[key]
	return ok && current.Owner == owner && s.now().Before(current.ExpiresAt), nil
}

func (s *MemoryStore) Release(ctx context.Context, key, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.leases[key]; ok && current.Owner == owner {
		delete(s.leases, key)
	}
	return nil
}

func (s *MemoryStore) PurgeExpired(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var purged int64
	for key, lease := range s.leases {
		if !now.Before(lease.ExpiresAt) {
			delete(s.leases, key)
			purged++
		}
	}
	return purged, nil
}

// Held returns the number of live leases.
func (s *MemoryStore) Held() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for _, lease := range s.leases {
		if now.Before(lease.ExpiresAt) {
			n++
		}
	}
	return n
}
