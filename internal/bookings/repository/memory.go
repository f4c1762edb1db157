package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	bookingserrors "lessonbook/internal/bookings/errors"
	"lessonbook/pkg/model"

	"github.com/google/uuid"
)

// The memory repositories implement the repository interfaces in process.
// They back tests and single-node development runs.

type MemoryCommitments struct {
	mu    sync.Mutex
	items map[string]model.Commitment
}

func NewMemoryCommitments() *MemoryCommitments {
	return &MemoryCommitments{items: make(map[string]model.Commitment)}
}

func (m *MemoryCommitments) Insert(_ context.Context, c *model.Commitment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if _, ok := m.items[c.ID]; ok {
		return fmt.Errorf("%w: %s", bookingserrors.ErrDuplicateCommitment, c.ID)
	}
	m.items[c.ID] = *c
	return nil
}

func (m *MemoryCommitments) FindByID(_ context.Context, id string) (*model.Commitment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.items[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	return &c, nil
}

func (m *MemoryCommitments) FindOverlapping(_ context.Context, ownerID, date string, start, end time.Time, excludeID string) ([]model.ConflictingCommitment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	window := model.TimeWindow{Date: date, Start: start, End: end}
	conflicts := []model.ConflictingCommitment{}
	for _, c := range m.items {
		if c.OwnerID != ownerID || c.Date != date || c.ID == excludeID || !c.IsOccupying() {
			continue
		}
		if c.Window().Overlaps(window) {
			conflicts = append(conflicts, model.ConflictingCommitment{
				ID:            c.ID,
				StartTime:     c.StartTime,
				EndTime:       c.EndTime,
				Status:        c.Status,
				TransactionID: c.TransactionID,
			})
		}
	}
	sort.Slice(conflicts, func(i, j int) bool {
		return conflicts[i].StartTime.Before(conflicts[j].StartTime)
	})
	return conflicts, nil
}

func (m *MemoryCommitments) DeleteByTransaction(_ context.Context, transactionID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, c := range m.items {
		if c.TransactionID == transactionID {
			delete(m.items, id)
			n++
		}
	}
	return n, nil
}

// All returns a snapshot of every stored commitment.
func (m *MemoryCommitments) All() []model.Commitment {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.Commitment, 0, len(m.items))
	for _, c := range m.items {
		out = append(out, c)
	}
	return out
}

type MemoryTransactions struct {
	mu    sync.Mutex
	items map[string]model.BookingTransaction
	now   func() time.Time
}

func NewMemoryTransactions(now func() time.Time) *MemoryTransactions {
	if now == nil {
		now = time.Now
	}
	return &MemoryTransactions{items: make(map[string]model.BookingTransaction), now: now}
}

func (m *MemoryTransactions) Create(_ context.Context, tx *model.BookingTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[tx.ID]; ok {
		return fmt.Errorf("booking transaction %s already exists", tx.ID)
	}
	m.items[tx.ID] = *tx
	return nil
}

func (m *MemoryTransactions) FindByID(_ context.Context, id string) (*model.BookingTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.items[id]
	if !ok {
		return nil, bookingserrors.ErrTransactionNotFound
	}
	return &tx, nil
}

func (m *MemoryTransactions) MarkCommitted(_ context.Context, id, commitmentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, err := m.activeLocked(id)
	if err != nil {
		return err
	}
	now := m.now()
	if tx.IsExpired(now) {
		return bookingserrors.ErrTransactionExpired
	}
	tx.Status = model.TransactionStatusCommitted
	tx.CommitmentID = commitmentID
	tx.UpdatedAt = now
	m.items[id] = tx
	return nil
}

func (m *MemoryTransactions) MarkRolledBack(_ context.Context, id, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, err := m.activeLocked(id)
	if err != nil {
		return err
	}
	tx.Status = model.TransactionStatusRolledBack
	tx.FailureReason = reason
	tx.UpdatedAt = m.now()
	m.items[id] = tx
	return nil
}

func (m *MemoryTransactions) activeLocked(id string) (model.BookingTransaction, error) {
	tx, ok := m.items[id]
	if !ok {
		return tx, bookingserrors.ErrTransactionNotFound
	}
	if tx.Status != model.TransactionStatusActive {
		return tx, fmt.Errorf("%w: status %s", bookingserrors.ErrTransactionNotActive, tx.Status)
	}
	return tx, nil
}

func (m *MemoryTransactions) FindExpiredActive(_ context.Context, ownerID, date string, limit int) ([]*model.BookingTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var out []*model.BookingTransaction
	for _, tx := range m.items {
		if tx.Status != model.TransactionStatusActive || !tx.IsExpired(now) {
			continue
		}
		if (ownerID != "" && tx.OwnerID != ownerID) || (date != "" && tx.Date != date) {
			continue
		}
		out = append(out, &tx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type MemoryAudit struct {
	mu      sync.Mutex
	entries []model.AuditEntry
}

func NewMemoryAudit() *MemoryAudit {
	return &MemoryAudit{}
}

func (m *MemoryAudit) Insert(_ context.Context, entry *model.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *MemoryAudit) Entries() []model.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.AuditEntry(nil), m.entries...)
}

type MemoryCatalog struct {
	mu         sync.RWMutex
	owners     map[string]model.ResourceOwner
	offerings  map[string]model.Offering
	requesters map[string]model.Requester
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		owners:     make(map[string]model.ResourceOwner),
		offerings:  make(map[string]model.Offering),
		requesters: make(map[string]model.Requester),
	}
}

func (m *MemoryCatalog) PutOwner(o model.ResourceOwner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[o.ID] = o
}

func (m *MemoryCatalog) PutOffering(o model.Offering) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offerings[o.ID] = o
}

func (m *MemoryCatalog) PutRequester(r model.Requester) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requesters[r.ID] = r
}

func (m *MemoryCatalog) FindOwner(_ context.Context, id string) (*model.ResourceOwner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.owners[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrOwnerNotFound, id)
	}
	return &o, nil
}

func (m *MemoryCatalog) FindOffering(_ context.Context, id string) (*model.Offering, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.offerings[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrOfferingNotFound, id)
	}
	return &o, nil
}

func (m *MemoryCatalog) FindRequester(_ context.Context, id string) (*model.Requester, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requesters[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrRequesterNotFound, id)
	}
	return &r, nil
}

var (
	_ CommitmentRepository  = (*MemoryCommitments)(nil)
	_ TransactionRepository = (*MemoryTransactions)(nil)
	_ AuditRepository       = (*MemoryAudit)(nil)
	_ CatalogRepository     = (*MemoryCatalog)(nil)
)
