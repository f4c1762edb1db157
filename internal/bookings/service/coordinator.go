package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	bookingserrors "lessonbook/internal/bookings/errors"
	"lessonbook/internal/bookings/lock"
	"lessonbook/internal/bookings/repository"
	mongotx "lessonbook/pkg/db/mongo"
	apperrors "lessonbook/pkg/errors"
	"lessonbook/pkg/logger"
	"lessonbook/pkg/model"

	"github.com/google/uuid"
)

const (
	reasonSlotConflict = "slot conflict"
	reasonCreation     = "commitment creation failed"
	reasonCommit       = "commit failed"
	reasonPanic        = "panic during booking"
	reasonExpired      = "expired"
)

type CoordinatorConfig struct {
	TransactionTTL  time.Duration
	AcquireTimeout  time.Duration
	ReleaseTimeout  time.Duration
	SlotGranularity time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// Coordinator runs one booking attempt: lease, transaction record,
// authoritative conflict check, commitment, commit. Any failure after the
// transaction record exists leaves it rolled back.
type Coordinator struct {
	lock         lock.DistributedLock
	analyzer     *ConflictAnalyzer
	commitments  repository.CommitmentRepository
	transactions repository.TransactionRepository
	txManager    mongotx.TransactionManager
	cfg          CoordinatorConfig
	log          *logger.Logger
}

func NewCoordinator(
	lk lock.DistributedLock,
	analyzer *ConflictAnalyzer,
	commitments repository.CommitmentRepository,
	transactions repository.TransactionRepository,
	txManager mongotx.TransactionManager,
	cfg CoordinatorConfig,
	log *logger.Logger,
) *Coordinator {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if txManager == nil {
		txManager = mongotx.DirectTransactionManager{}
	}
	return &Coordinator{
		lock:         lk,
		analyzer:     analyzer,
		commitments:  commitments,
		transactions: transactions,
		txManager:    txManager,
		cfg:          cfg,
		log:          log,
	}
}

func (c *Coordinator) RunAtomic(ctx context.Context, req model.ValidatedRequest) (result model.BookingResult) {
	w := req.Window
	lockKey := lock.WindowKey(req.OwnerID, w.Date, w.Start, w.End)
	keys := lock.SlotKeys(req.OwnerID, w.Date, w.Start, w.End, c.cfg.SlotGranularity)
	log := c.log.With("owner_id", req.OwnerID, "lock_key", lockKey)

	var (
		handle    *lock.Handle
		tx        *model.BookingTransaction
		committed bool
	)

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			log.Error("Panic during booking attempt", "panic", r, "stack", string(debug.Stack()))
			result = model.Failed(apperrors.CodeSystemError, apperrors.GenericSystemMessage, err)
			if tx != nil {
				result.TransactionID = tx.ID
				if !committed {
					if _, cerr := c.compensate(ctx, tx.ID, reasonPanic); cerr != nil {
						log.Error("Failed to roll back after panic", "transaction_id", tx.ID, "error", cerr)
					}
				}
			}
		}
		if handle != nil {
			c.release(ctx, handle, log)
		}
	}()

	var err error
	handle, err = c.lock.Acquire(ctx, keys, c.cfg.AcquireTimeout)
	if err != nil {
		if errors.Is(err, lock.ErrContention) {
			log.Debug("Lock contention", "error", err)
			return model.Failed(apperrors.CodeLockContention, "the requested window is being booked by someone else, please retry", err)
		}
		log.Error("Failed to acquire booking lock", "error", err)
		return model.Failed(apperrors.CodeSystemError, apperrors.GenericSystemMessage, err)
	}

	now := c.cfg.Now().UTC()
	newTx := &model.BookingTransaction{
		ID:        uuid.NewString(),
		LockKey:   lockKey,
		SlotKeys:  handle.Keys,
		OwnerID:   req.OwnerID,
		Date:      w.Date,
		StartTime: w.Start.UTC(),
		EndTime:   w.End.UTC(),
		Status:    model.TransactionStatusActive,
		CreatedAt: now,
		ExpiresAt: now.Add(c.cfg.TransactionTTL),
		UpdatedAt: now,
	}
	if err := c.transactions.Create(ctx, newTx); err != nil {
		log.Error("Failed to create booking transaction", "error", err)
		return model.Failed(apperrors.CodeSystemError, apperrors.GenericSystemMessage, err)
	}
	tx = newTx
	log = log.With("transaction_id", tx.ID)

	c.reapAbandoned(ctx, req.OwnerID, w.Date, log)

	conflicts, err := c.analyzer.FindConflicts(ctx, req.OwnerID, w, "")
	if err != nil {
		log.Error("Conflict check failed", "error", err)
		c.rollback(ctx, tx.ID, err.Error(), log)
		return c.failed(apperrors.CodeSystemError, apperrors.GenericSystemMessage, err, tx)
	}
	if len(conflicts) > 0 {
		c.rollback(ctx, tx.ID, reasonSlotConflict, log)
		res := c.failed(apperrors.CodeSlotConflict, fmt.Sprintf("window %s overlaps %d existing commitment(s)", w, len(conflicts)), nil, tx)
		res.Conflicts = conflicts
		return res
	}

	commitment := &model.Commitment{
		ID:            uuid.NewString(),
		OwnerID:       req.OwnerID,
		RequesterID:   req.RequesterID,
		OfferingID:    req.OfferingID,
		Date:          w.Date,
		StartTime:     w.Start.UTC(),
		EndTime:       w.End.UTC(),
		Modality:      req.Modality,
		Notes:         req.Notes,
		Status:        model.CommitmentStatusPending,
		TransactionID: tx.ID,
		CreatedAt:     now,
	}
	if err := c.commitments.Insert(ctx, commitment); err != nil {
		log.Error("Failed to insert commitment", "error", err)
		if _, cerr := c.compensate(ctx, tx.ID, reasonCreation); cerr != nil {
			log.Error("Rollback after creation failure failed", "error", cerr)
			return c.failed(apperrors.CodeRollbackFailed, apperrors.GenericSystemMessage, errors.Join(err, cerr), tx)
		}
		return c.failed(apperrors.CodeCreationFailed, apperrors.GenericSystemMessage, err, tx)
	}

	if err := c.commit(ctx, handle, tx.ID, commitment.ID); err != nil {
		log.Error("Failed to commit booking", "commitment_id", commitment.ID, "error", err)
		if _, cerr := c.compensate(ctx, tx.ID, reasonCommit); cerr != nil {
			log.Error("Rollback after commit failure failed", "commitment_id", commitment.ID, "error", cerr)
			return c.failed(apperrors.CodeRollbackFailed, apperrors.GenericSystemMessage, errors.Join(err, cerr), tx)
		}
		return c.failed(apperrors.CodeCommitFailed, apperrors.GenericSystemMessage, err, tx)
	}
	committed = true

	log.Info("Booking committed",
		"commitment_id", commitment.ID,
		"window", w.String(),
	)
	return model.Succeeded(commitment.ID, tx.ID)
}

// commit fences on the leases, then moves the transaction to committed. An
// ambiguous store error is resolved by reading the transaction back.
func (c *Coordinator) commit(ctx context.Context, h *lock.Handle, txID, commitmentID string) error {
	if err := c.lock.Confirm(ctx, h); err != nil {
		return fmt.Errorf("confirm leases: %w", err)
	}

	err := c.transactions.MarkCommitted(ctx, txID, commitmentID)
	if err == nil {
		return nil
	}
	if errors.Is(err, bookingserrors.ErrTransactionExpired) || errors.Is(err, bookingserrors.ErrTransactionNotFound) {
		return err
	}

	tx, ferr := c.transactions.FindByID(ctx, txID)
	if ferr == nil && tx.Status == model.TransactionStatusCommitted && tx.CommitmentID == commitmentID {
		return nil
	}
	return err
}

// compensate deletes whatever commitment the transaction produced and rolls
// it back. The transaction must not be committed. It reports whether this
// call performed the rollback; losing the race to the reaper is not an
// error.
func (c *Coordinator) compensate(ctx context.Context, txID, reason string) (bool, error) {
	ctx, cancel := c.detached(ctx)
	defer cancel()

	rolledBack := false
	err := c.txManager.ExecuteTransaction(ctx, func(ctx context.Context) error {
		rolledBack = false
		cur, err := c.transactions.FindByID(ctx, txID)
		switch {
		case errors.Is(err, bookingserrors.ErrTransactionNotFound):
		case err != nil:
			return fmt.Errorf("read transaction %s before rollback: %w", txID, err)
		case cur.Status == model.TransactionStatusCommitted:
			return fmt.Errorf("%w: transaction %s is committed", bookingserrors.ErrTransactionNotActive, txID)
		}
		if _, err := c.commitments.DeleteByTransaction(ctx, txID); err != nil {
			return err
		}
		err = c.transactions.MarkRolledBack(ctx, txID, reason)
		if errors.Is(err, bookingserrors.ErrTransactionNotActive) {
			return nil
		}
		if err != nil {
			return err
		}
		rolledBack = true
		return nil
	})
	return rolledBack, err
}

// rollback marks a transaction that never produced a commitment.
func (c *Coordinator) rollback(ctx context.Context, txID, reason string, log *logger.Logger) {
	ctx, cancel := c.detached(ctx)
	defer cancel()

	err := c.transactions.MarkRolledBack(ctx, txID, reason)
	if err != nil && !errors.Is(err, bookingserrors.ErrTransactionNotActive) {
		log.Warn("Failed to roll back booking transaction, leaving it to expire", "reason", reason, "error", err)
	}
}

// Reap rolls back one abandoned transaction and deletes its commitment.
// It reports false when the transaction was already resolved.
func (c *Coordinator) Reap(ctx context.Context, tx *model.BookingTransaction) (bool, error) {
	return c.compensate(ctx, tx.ID, reasonExpired)
}

func (c *Coordinator) reapAbandoned(ctx context.Context, ownerID, date string, log *logger.Logger) {
	abandoned, err := c.transactions.FindExpiredActive(ctx, ownerID, date, 0)
	if err != nil {
		log.Warn("Failed to look up abandoned transactions", "date", date, "error", err)
		return
	}
	for _, tx := range abandoned {
		reaped, err := c.Reap(ctx, tx)
		if err != nil {
			log.Warn("Failed to reap abandoned transaction", "abandoned_transaction_id", tx.ID, "error", err)
			continue
		}
		if reaped {
			log.Info("Reaped abandoned transaction", "abandoned_transaction_id", tx.ID)
		}
	}
}

func (c *Coordinator) release(ctx context.Context, h *lock.Handle, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.ReleaseTimeout)
	defer cancel()

	if err := c.lock.Release(ctx, h); err != nil {
		log.Warn("Failed to release booking lock, leases will expire", "keys", h.Keys, "error", err)
	}
}

// detached survives cancellation of the caller so cleanup still runs.
func (c *Coordinator) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), c.cfg.ReleaseTimeout)
}

func (c *Coordinator) failed(code, message string, cause error, tx *model.BookingTransaction) model.BookingResult {
	res := model.Failed(code, message, cause)
	res.TransactionID = tx.ID
	return res
}
