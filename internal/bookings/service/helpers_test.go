package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"lessonbook/internal/bookings/lock"
	"lessonbook/internal/bookings/repository"
	"lessonbook/internal/bookings/validator"
	"lessonbook/pkg/config"
	"lessonbook/pkg/kafka"
	"lessonbook/pkg/logger"
	"lessonbook/pkg/model"
)

const (
	testOwner     = "owner-1"
	testOwner2    = "owner-2"
	testOffering  = "lesson-60"
	testOffering2 = "lesson-60-b"
	testRequester = "req-1"
	testDate      = "2025-09-05"
)

// pinnedNow sits before the example date so every test window is in the
// future.
var pinnedNow = time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	svc          *bookingService
	cfg          *config.Config
	clock        *fakeClock
	commitments  *repository.MemoryCommitments
	transactions *repository.MemoryTransactions
	audit        *repository.MemoryAudit
	catalog      *repository.MemoryCatalog
	leases       *lock.MemoryStore
	lock         *lock.LeaseLock
}

func testConfig() *config.Config {
	return &config.Config{
		WriteTimeout:        time.Second,
		ReadTimeout:         time.Second,
		LockLeaseTTL:        30 * time.Second,
		LockAcquireTimeout:  2 * time.Second,
		LockReleaseTimeout:  time.Second,
		LockSlotGranularity: 15 * time.Minute,
		TransactionTTL:      10 * time.Second,
		MaxAttempts:         3,
		RetryBaseDelay:      5 * time.Millisecond,
		RetryMaxDelay:       20 * time.Millisecond,
		DurationTolerance:   time.Minute,
		AuthorizedRoles:     []string{"instructor"},
		Log:                 logger.Discard(),
	}
}

func newHarness(t *testing.T, mutate ...func(*harness, *Stores, *lock.DistributedLock)) *harness {
	t.Helper()

	h := &harness{
		cfg:   testConfig(),
		clock: &fakeClock{now: pinnedNow},
	}
	h.commitments = repository.NewMemoryCommitments()
	h.transactions = repository.NewMemoryTransactions(h.clock.Now)
	h.audit = repository.NewMemoryAudit()
	h.catalog = repository.NewMemoryCatalog()
	h.leases = lock.NewMemoryStore()
	h.lock = lock.NewLeaseLock(h.leases, h.cfg.LockLeaseTTL, h.cfg.Log, lock.WithPolling(time.Millisecond, 5*time.Millisecond))

	h.catalog.PutOwner(model.ResourceOwner{ID: testOwner, Name: "Dana", Role: "instructor", Active: true})
	h.catalog.PutOwner(model.ResourceOwner{ID: testOwner2, Name: "Yael", Role: "instructor", Active: true})
	h.catalog.PutOffering(model.Offering{ID: testOffering, OwnerID: testOwner, DurationMin: 60, Active: true})
	h.catalog.PutOffering(model.Offering{ID: testOffering2, OwnerID: testOwner2, DurationMin: 60, Active: true})
	h.catalog.PutRequester(model.Requester{ID: testRequester, Name: "Avi", Active: true})

	stores := Stores{
		Commitments:  h.commitments,
		Transactions: h.transactions,
		Audit:        h.audit,
		Catalog:      h.catalog,
	}
	var lk lock.DistributedLock = h.lock
	for _, m := range mutate {
		m(h, &stores, &lk)
	}

	h.svc = NewBookingService(h.cfg, stores, lk, h.leases, nil, validator.WithClock(h.clock.Now)).(*bookingService)
	h.svc.coordinator.cfg.Now = h.clock.Now
	h.svc.retry.sleep = func(context.Context, time.Duration) error { return nil }
	return h
}

func (h *harness) withPublisher(p kafka.Publisher) {
	h.svc.audit.publisher = p
}

func request(owner, offering, start, end string) model.BookingRequest {
	return model.BookingRequest{
		OwnerID:     owner,
		RequesterID: testRequester,
		OfferingID:  offering,
		Date:        testDate,
		StartTime:   start,
		EndTime:     end,
		Modality:    model.ModalityOnline,
	}
}

func at(hhmm string) time.Time {
	t, _ := time.Parse("2006-01-02 15:04", testDate+" "+hhmm)
	return t
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
}

func (p *recordingPublisher) Publish(_ context.Context, msg kafka.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return p.err
}
