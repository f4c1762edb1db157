package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	bookingserrors "lessonbook/internal/bookings/errors"
	"lessonbook/internal/bookings/lock"
	"lessonbook/internal/bookings/repository"
	apperrors "lessonbook/pkg/errors"
	"lessonbook/pkg/kafka"
	"lessonbook/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookAtomic_R1Example(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := h.svc.BookAtomic(ctx, request(testOwner, testOffering, "14:00", "15:00"))
	require.True(t, first.Success, first.Error)
	assert.Equal(t, 1, first.Attempts)
	assert.NotEmpty(t, first.CommitmentID)
	assert.NotEmpty(t, first.TransactionID)
	assert.NotEmpty(t, first.AuditID)

	second := h.svc.BookAtomic(ctx, request(testOwner, testOffering, "14:30", "15:30"))
	assert.False(t, second.Success)
	assert.Equal(t, apperrors.CodeSlotConflict, second.ErrorCode)
	require.Len(t, second.Conflicts, 1)
	assert.Equal(t, first.CommitmentID, second.Conflicts[0].ID)
	assert.Equal(t, at("14:00"), second.Conflicts[0].StartTime)

	third := h.svc.BookAtomic(ctx, request(testOwner, testOffering, "15:00", "16:00"))
	require.True(t, third.Success, third.Error)

	assert.Len(t, h.commitments.All(), 2)
	assert.Equal(t, 0, h.leases.Held())
}

func TestBookAtomic_MutualExclusion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	const workers = 20
	results := make([]model.BookingResult, workers)

	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = h.svc.BookAtomic(ctx, request(testOwner, testOffering, "14:00", "15:00"))
		}()
	}
	wg.Wait()

	successes := 0
	for _, r := range results {
		if r.Success {
			successes++
			continue
		}
		assert.Contains(t, []string{apperrors.CodeSlotConflict, apperrors.CodeMaxRetriesExceeded}, r.ErrorCode)
	}
	assert.Equal(t, 1, successes)
	assert.Len(t, h.commitments.All(), 1)
	assert.Equal(t, 0, h.leases.Held())
}

func TestBookAtomic_OverlappingWindowsSerialize(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	windows := [][2]string{{"14:00", "15:00"}, {"14:30", "15:30"}, {"13:45", "14:45"}}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := range 15 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := windows[i%len(windows)]
			res := h.svc.BookAtomic(ctx, request(testOwner, testOffering, w[0], w[1]))
			if res.Success {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// Every pair of these windows overlaps, so at most one may win.
	assert.Equal(t, 1, successes)

	all := h.commitments.All()
	for i := range all {
		for j := i + 1; j < len(all); j++ {
			assert.False(t, all[i].Window().Overlaps(all[j].Window()), "committed windows overlap")
		}
	}
}

func TestBookAtomic_Independence(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	starts := []string{"08:00", "09:00", "10:00", "11:00", "12:00", "13:00", "14:00", "15:00"}
	ends := []string{"09:00", "10:00", "11:00", "12:00", "13:00", "14:00", "15:00", "16:00"}

	var wg sync.WaitGroup
	results := make(chan model.BookingResult, 2*len(starts))
	for i := range starts {
		for _, target := range [][2]string{{testOwner, testOffering}, {testOwner2, testOffering2}} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- h.svc.BookAtomic(ctx, request(target[0], target[1], starts[i], ends[i]))
			}()
		}
	}
	wg.Wait()
	close(results)

	for r := range results {
		assert.True(t, r.Success, "disjoint window failed: %s %s", r.ErrorCode, r.Error)
	}
	assert.Len(t, h.commitments.All(), 2*len(starts))
}

// hookLock runs after once the leases are held, before the coordinator
// looks at the store.
type hookLock struct {
	lock.DistributedLock
	after func()
}

func (l hookLock) Acquire(ctx context.Context, keys []string, timeout time.Duration) (*lock.Handle, error) {
	h, err := l.DistributedLock.Acquire(ctx, keys, timeout)
	if err == nil && l.after != nil {
		l.after()
	}
	return h, err
}

func TestBookAtomic_ConflictAppearingAfterAdvisoryCheck(t *testing.T) {
	var intruder *repository.MemoryCommitments
	h := newHarness(t, func(h *harness, _ *Stores, lk *lock.DistributedLock) {
		intruder = h.commitments
		*lk = hookLock{DistributedLock: *lk, after: func() {
			_ = intruder.Insert(context.Background(), &model.Commitment{
				ID: "sneaky", OwnerID: testOwner, Date: testDate,
				StartTime: at("14:15"), EndTime: at("14:45"),
				Status: model.CommitmentStatusConfirmed,
			})
		}}
	})

	res := h.svc.BookAtomic(context.Background(), request(testOwner, testOffering, "14:00", "15:00"))

	assert.Equal(t, apperrors.CodeSlotConflict, res.ErrorCode)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, "sneaky", res.Conflicts[0].ID)
	assert.Len(t, h.commitments.All(), 1)
	assert.Equal(t, 0, h.leases.Held())

	tx, err := h.transactions.FindByID(context.Background(), res.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionStatusRolledBack, tx.Status)
}

type failingInsert struct {
	*repository.MemoryCommitments
}

func (failingInsert) Insert(context.Context, *model.Commitment) error {
	return errors.New("no primary available")
}

type panickingInsert struct {
	*repository.MemoryCommitments
}

func (panickingInsert) Insert(context.Context, *model.Commitment) error {
	panic("nil map write")
}

type failingCommit struct {
	*repository.MemoryTransactions
}

func (failingCommit) MarkCommitted(context.Context, string, string) error {
	return errors.New("write concern timeout")
}

func TestBookAtomic_FailurePathsRollBackAndRelease(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*harness, *Stores, *lock.DistributedLock)
		wantCode string
		detail   string
	}{
		{
			name: "commitment insert fails",
			mutate: func(h *harness, s *Stores, _ *lock.DistributedLock) {
				s.Commitments = failingInsert{h.commitments}
			},
			wantCode: apperrors.CodeCreationFailed,
			detail:   "no primary available",
		},
		{
			name: "commit fails",
			mutate: func(h *harness, s *Stores, _ *lock.DistributedLock) {
				s.Transactions = failingCommit{h.transactions}
			},
			wantCode: apperrors.CodeCommitFailed,
			detail:   "write concern timeout",
		},
		{
			name: "panic during insert",
			mutate: func(h *harness, s *Stores, _ *lock.DistributedLock) {
				s.Commitments = panickingInsert{h.commitments}
			},
			wantCode: apperrors.CodeSystemError,
			detail:   "nil map write",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.mutate)
			ctx := context.Background()

			res := h.svc.BookAtomic(ctx, request(testOwner, testOffering, "14:00", "15:00"))

			assert.False(t, res.Success)
			assert.Equal(t, tt.wantCode, res.ErrorCode)
			assert.Equal(t, apperrors.GenericSystemMessage, res.Error)
			assert.Equal(t, 1, res.Attempts)
			assert.Equal(t, 0, h.leases.Held(), "leases must be released")
			assert.Empty(t, h.commitments.All(), "no commitment may survive a failed attempt")

			tx, err := h.transactions.FindByID(ctx, res.TransactionID)
			require.NoError(t, err)
			assert.Equal(t, model.TransactionStatusRolledBack, tx.Status)

			entries := h.audit.Entries()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.wantCode, entries[0].Outcome)
			assert.Contains(t, entries[0].Detail, tt.detail)
		})
	}
}

// lostAckCommit applies the commit but reports a failure, and hides the
// outcome from the first failReads read-backs.
type lostAckCommit struct {
	*repository.MemoryTransactions
	failReads int32
	reads     atomic.Int32
}

func (l *lostAckCommit) MarkCommitted(ctx context.Context, id, commitmentID string) error {
	if err := l.MemoryTransactions.MarkCommitted(ctx, id, commitmentID); err != nil {
		return err
	}
	return errors.New("connection reset")
}

func (l *lostAckCommit) FindByID(ctx context.Context, id string) (*model.BookingTransaction, error) {
	if l.reads.Add(1) <= l.failReads {
		return nil, errors.New("connection reset")
	}
	return l.MemoryTransactions.FindByID(ctx, id)
}

func TestBookAtomic_CommittedTransactionIsNeverCompensated(t *testing.T) {
	tests := []struct {
		name      string
		failReads int32
	}{
		{name: "first read-back fails", failReads: 1},
		{name: "every read-back fails", failReads: 1 << 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(h *harness, s *Stores, _ *lock.DistributedLock) {
				s.Transactions = &lostAckCommit{MemoryTransactions: h.transactions, failReads: tt.failReads}
			})
			ctx := context.Background()

			res := h.svc.BookAtomic(ctx, request(testOwner, testOffering, "14:00", "15:00"))

			assert.False(t, res.Success)
			assert.Equal(t, apperrors.CodeRollbackFailed, res.ErrorCode)
			require.Len(t, h.commitments.All(), 1, "the commitment of a committed transaction must survive")
			assert.Equal(t, 0, h.leases.Held())

			tx, err := h.transactions.FindByID(ctx, res.TransactionID)
			require.NoError(t, err)
			assert.Equal(t, model.TransactionStatusCommitted, tx.Status)
			assert.Equal(t, h.commitments.All()[0].ID, tx.CommitmentID)
		})
	}
}

func TestBookAtomic_ContentionExhaustsRetries(t *testing.T) {
	h := newHarness(t, func(h *harness, _ *Stores, _ *lock.DistributedLock) {
		h.cfg.LockAcquireTimeout = 20 * time.Millisecond
	})
	ctx := context.Background()

	keys := lock.SlotKeys(testOwner, testDate, at("14:00"), at("15:00"), h.cfg.LockSlotGranularity)
	ok, err := h.leases.TryAcquire(ctx, keys[1], "someone-else", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	res := h.svc.BookAtomic(ctx, request(testOwner, testOffering, "14:00", "15:00"))

	assert.Equal(t, apperrors.CodeMaxRetriesExceeded, res.ErrorCode)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 1, h.leases.Held(), "only the foreign lease remains")
	assert.Empty(t, h.commitments.All())
}

func TestBookAtomic_ReapsAbandonedTransactionUnderLock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.transactions.Create(ctx, &model.BookingTransaction{
		ID: "tx-abandoned", OwnerID: testOwner, Date: testDate,
		StartTime: at("14:00"), EndTime: at("15:00"),
		Status: model.TransactionStatusActive, ExpiresAt: pinnedNow.Add(-time.Second),
	}))
	require.NoError(t, h.commitments.Insert(ctx, &model.Commitment{
		ID: "orphan", OwnerID: testOwner, Date: testDate,
		StartTime: at("14:00"), EndTime: at("15:00"),
		Status: model.CommitmentStatusPending, TransactionID: "tx-abandoned",
	}))

	res := h.svc.BookAtomic(ctx, request(testOwner, testOffering, "14:00", "15:00"))
	require.True(t, res.Success, "%s: %s", res.ErrorCode, res.Error)

	old, err := h.transactions.FindByID(ctx, "tx-abandoned")
	require.NoError(t, err)
	assert.Equal(t, model.TransactionStatusRolledBack, old.Status)

	_, err = h.commitments.FindByID(ctx, "orphan")
	assert.ErrorIs(t, err, bookingserrors.ErrNotFound)
}

func TestBookAtomic_ValidationFailureIsAudited(t *testing.T) {
	h := newHarness(t)

	req := request(testOwner, "no-such-offering", "14:00", "15:00")
	res := h.svc.BookAtomic(context.Background(), req)

	assert.Equal(t, apperrors.CodeValidation, res.ErrorCode)
	assert.Equal(t, 0, res.Attempts)
	assert.Contains(t, res.Error, "offering_id")

	entries := h.audit.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, apperrors.CodeValidation, entries[0].Outcome)
	assert.Equal(t, req.OfferingID, entries[0].Request.OfferingID)
	assert.Equal(t, res.AuditID, entries[0].ID)
}

func TestBookAtomic_SanitizesInput(t *testing.T) {
	h := newHarness(t)

	req := request("  "+testOwner+" ", testOffering, "9:00", "10:00")
	req.Modality = "In Person"
	res := h.svc.BookAtomic(context.Background(), req)
	require.True(t, res.Success, "%s: %s", res.ErrorCode, res.Error)

	c, err := h.svc.GetCommitment(context.Background(), res.CommitmentID)
	require.NoError(t, err)
	assert.Equal(t, testOwner, c.OwnerID)
	assert.Equal(t, model.ModalityInPerson, c.Modality)
	assert.Equal(t, at("09:00"), c.StartTime)
}

func TestBookAtomic_PublishesAuditEvent(t *testing.T) {
	h := newHarness(t)
	pub := &recordingPublisher{}
	h.withPublisher(pub)

	res := h.svc.BookAtomic(context.Background(), request(testOwner, testOffering, "14:00", "15:00"))
	require.True(t, res.Success)

	require.Len(t, pub.messages, 1)
	msg := pub.messages[0]
	assert.Equal(t, testOwner, msg.Key)
	assert.Equal(t, EventBookingAttempted, msg.GetEventType())
	assert.Equal(t, res.TransactionID, msg.GetCorrelationID())

	var event BookingAttemptedEvent
	require.NoError(t, msg.DecodeValue(&event))
	assert.Equal(t, model.AuditOutcomeSuccess, event.Outcome)
	assert.Equal(t, res.AuditID, event.AuditID)
	assert.Equal(t, res.CommitmentID, event.CommitmentID)
}

func TestBookAtomic_PublisherFailureDoesNotFailBooking(t *testing.T) {
	h := newHarness(t)
	h.withPublisher(&recordingPublisher{err: kafka.ErrProducerClosed})

	res := h.svc.BookAtomic(context.Background(), request(testOwner, testOffering, "14:00", "15:00"))
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.AuditID)
}

func TestCleanupExpiredTransactions_Idempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, id := range []string{"tx-a", "tx-b"} {
		require.NoError(t, h.transactions.Create(ctx, &model.BookingTransaction{
			ID: id, OwnerID: testOwner, Date: testDate,
			Status: model.TransactionStatusActive, ExpiresAt: pinnedNow.Add(-time.Minute),
		}))
	}
	require.NoError(t, h.commitments.Insert(ctx, &model.Commitment{
		ID: "orphan", OwnerID: testOwner, Date: testDate,
		StartTime: at("10:00"), EndTime: at("11:00"),
		Status: model.CommitmentStatusPending, TransactionID: "tx-a",
	}))
	require.NoError(t, h.transactions.Create(ctx, &model.BookingTransaction{
		ID: "tx-live", OwnerID: testOwner, Date: testDate,
		Status: model.TransactionStatusActive, ExpiresAt: pinnedNow.Add(time.Minute),
	}))

	ok, err := h.leases.TryAcquire(ctx, "slot:dead", "crashed-process", time.Nanosecond)
	require.NoError(t, err)
	require.True(t, ok)
	time.Sleep(2 * time.Millisecond)

	first := h.svc.CleanupExpiredTransactions(ctx)
	assert.Equal(t, 2, first.CleanedCount)
	assert.Equal(t, int64(1), first.PurgedLeases)
	assert.Empty(t, first.Errors)
	assert.Empty(t, h.commitments.All())

	second := h.svc.CleanupExpiredTransactions(ctx)
	assert.Equal(t, 0, second.CleanedCount)
	assert.Equal(t, int64(0), second.PurgedLeases)
	assert.Empty(t, second.Errors)

	live, err := h.transactions.FindByID(ctx, "tx-live")
	require.NoError(t, err)
	assert.Equal(t, model.TransactionStatusActive, live.Status)
}

func TestCleanupExpiredTransactions_ConcurrentRunsCountOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	const abandoned = 10
	for i := range abandoned {
		require.NoError(t, h.transactions.Create(ctx, &model.BookingTransaction{
			ID: "tx-" + string(rune('a'+i)), OwnerID: testOwner, Date: testDate,
			Status: model.TransactionStatusActive, ExpiresAt: pinnedNow.Add(-time.Minute),
		}))
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := h.svc.CleanupExpiredTransactions(ctx)
			mu.Lock()
			total += res.CleanedCount
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, abandoned, total)
}

func TestCleanup_DoesNotTouchCommittedBooking(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res := h.svc.BookAtomic(ctx, request(testOwner, testOffering, "14:00", "15:00"))
	require.True(t, res.Success)

	h.clock.Advance(time.Hour)
	cleanup := h.svc.CleanupExpiredTransactions(ctx)
	assert.Equal(t, 0, cleanup.CleanedCount)

	_, err := h.svc.GetCommitment(ctx, res.CommitmentID)
	assert.NoError(t, err)
}

func TestGetTransactionStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res := h.svc.BookAtomic(ctx, request(testOwner, testOffering, "14:00", "15:00"))
	require.True(t, res.Success)

	status, err := h.svc.GetTransactionStatus(ctx, res.TransactionID)
	require.NoError(t, err)
	assert.True(t, status.Found)
	assert.Equal(t, model.TransactionStatusCommitted, status.Status)
	require.NotNil(t, status.ExpiresAt)
	assert.Equal(t, pinnedNow.Add(h.cfg.TransactionTTL), *status.ExpiresAt)

	missing, err := h.svc.GetTransactionStatus(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, missing.Found)

	_, err = h.svc.GetTransactionStatus(ctx, "  ")
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.AsAppError(err).Code)
}

func TestGetCommitment_NotFound(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.GetCommitment(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.AsAppError(err).Code)
}

func TestCheckAvailability(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res := h.svc.BookAtomic(ctx, request(testOwner, testOffering, "14:00", "15:00"))
	require.True(t, res.Success)

	conflicts, err := h.svc.CheckAvailability(ctx, testOwner, testDate, "14:30", "15:30")
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, res.CommitmentID, conflicts[0].ID)

	conflicts, err = h.svc.CheckAvailability(ctx, testOwner, testDate, "15:00", "16:00")
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	_, err = h.svc.CheckAvailability(ctx, "ghost", testDate, "15:00", "16:00")
	assert.Equal(t, apperrors.CodeNotFound, apperrors.AsAppError(err).Code)

	_, err = h.svc.CheckAvailability(ctx, testOwner, testDate, "16:00", "15:00")
	assert.Equal(t, apperrors.CodeValidation, apperrors.AsAppError(err).Code)
}

func TestConflictAnalyzer_HasConflicts(t *testing.T) {
	commitments := repository.NewMemoryCommitments()
	require.NoError(t, commitments.Insert(context.Background(), &model.Commitment{
		ID: "a", OwnerID: testOwner, Date: testDate,
		StartTime: at("14:00"), EndTime: at("15:00"), Status: model.CommitmentStatusConfirmed,
	}))
	analyzer := NewConflictAnalyzer(commitments)

	tests := []struct {
		name    string
		window  model.TimeWindow
		exclude string
		want    bool
	}{
		{"overlap", model.TimeWindow{Date: testDate, Start: at("14:30"), End: at("15:30")}, "", true},
		{"touching", model.TimeWindow{Date: testDate, Start: at("15:00"), End: at("16:00")}, "", false},
		{"other date", model.TimeWindow{Date: "2025-09-06", Start: at("14:30"), End: at("15:30")}, "", false},
		{"self excluded", model.TimeWindow{Date: testDate, Start: at("14:00"), End: at("15:00")}, "a", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := analyzer.HasConflicts(context.Background(), testOwner, tt.window, tt.exclude)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
