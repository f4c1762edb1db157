package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "lessonbook/internal/bookings/errors"
	"lessonbook/internal/bookings/lock"
	"lessonbook/internal/bookings/repository"
	"lessonbook/internal/bookings/validator"
	"lessonbook/pkg/config"
	mongotx "lessonbook/pkg/db/mongo"
	apperrors "lessonbook/pkg/errors"
	"lessonbook/pkg/kafka"
	"lessonbook/pkg/model"
	"lessonbook/pkg/sanitizer"
)

const cleanupBatchSize = 500

type BookingService interface {
	BookAtomic(ctx context.Context, req model.BookingRequest) model.BookingResult
	CleanupExpiredTransactions(ctx context.Context) model.CleanupResult
	GetTransactionStatus(ctx context.Context, id string) (model.TransactionStatus, error)
	CheckAvailability(ctx context.Context, ownerID, date, startTime, endTime string) ([]model.ConflictingCommitment, error)
	GetCommitment(ctx context.Context, id string) (*model.Commitment, error)
}

// Stores groups the persistence a BookingService runs on.
type Stores struct {
	Commitments  repository.CommitmentRepository
	Transactions repository.TransactionRepository
	Audit        repository.AuditRepository
	Catalog      repository.CatalogRepository
	TxManager    mongotx.TransactionManager
}

// LeasePurger drops dead lease rows during cleanup.
type LeasePurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

type bookingService struct {
	validator    *validator.BookingValidator
	analyzer     *ConflictAnalyzer
	coordinator  *Coordinator
	retry        *RetryOrchestrator
	audit        *AuditRecorder
	commitments  repository.CommitmentRepository
	transactions repository.TransactionRepository
	catalog      repository.CatalogRepository
	leases       LeasePurger
	cfg          *config.Config
}

// NewBookingService wires the booking pipeline from configuration. leases
// may be nil when the lock backend expires leases on its own. publisher may
// be nil when Kafka is disabled.
func NewBookingService(
	cfg *config.Config,
	stores Stores,
	lk lock.DistributedLock,
	leases LeasePurger,
	publisher kafka.Publisher,
	opts ...validator.Option,
) BookingService {
	analyzer := NewConflictAnalyzer(stores.Commitments)

	coordinator := NewCoordinator(lk, analyzer, stores.Commitments, stores.Transactions, stores.TxManager, CoordinatorConfig{
		TransactionTTL:  cfg.TransactionTTL,
		AcquireTimeout:  cfg.LockAcquireTimeout,
		ReleaseTimeout:  cfg.LockReleaseTimeout,
		SlotGranularity: cfg.LockSlotGranularity,
	}, cfg.Log)

	retry := NewRetryOrchestrator(RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
	}, cfg.Log)

	return &bookingService{
		validator:    validator.NewBookingValidator(stores.Catalog, cfg.AuthorizedRoles, cfg.DurationTolerance, cfg.Log, opts...),
		analyzer:     analyzer,
		coordinator:  coordinator,
		retry:        retry,
		audit:        NewAuditRecorder(stores.Audit, publisher, cfg.WriteTimeout, cfg.Log),
		commitments:  stores.Commitments,
		transactions: stores.Transactions,
		catalog:      stores.Catalog,
		leases:       leases,
		cfg:          cfg,
	}
}

func (s *bookingService) BookAtomic(ctx context.Context, req model.BookingRequest) model.BookingResult {
	req = sanitizer.SanitizeBookingRequest(req)
	log := s.cfg.Log.With("owner_id", req.OwnerID, "requester_id", req.RequesterID)

	result := s.book(ctx, req)

	detail := ""
	if result.Cause != nil {
		detail = result.Cause.Error()
	}

	switch {
	case result.Success:
		log.Info("Booking succeeded",
			"commitment_id", result.CommitmentID,
			"transaction_id", result.TransactionID,
			"attempts", result.Attempts,
		)
	case apperrors.IsSystemCode(result.ErrorCode):
		log.Error("Booking failed with system error",
			"error_code", result.ErrorCode,
			"transaction_id", result.TransactionID,
			"error", detail,
		)
	default:
		log.Warn("Booking rejected",
			"error_code", result.ErrorCode,
			"reason", result.Error,
			"attempts", result.Attempts,
		)
	}

	result.AuditID = s.audit.Record(ctx, req, result, detail)
	return result
}

func (s *bookingService) book(ctx context.Context, req model.BookingRequest) model.BookingResult {
	vreq, err := s.validator.Validate(ctx, req)
	if err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return model.Failed(apperrors.CodeValidation, verrs.Error(), verrs)
		}
		return model.Failed(apperrors.CodeSystemError, apperrors.GenericSystemMessage, err)
	}

	// Advisory only: the coordinator re-checks under the lock.
	conflicts, err := s.analyzer.FindConflicts(ctx, vreq.OwnerID, vreq.Window, "")
	if err != nil {
		s.cfg.Log.Warn("Advisory conflict check failed, continuing", "owner_id", vreq.OwnerID, "error", err)
	} else if len(conflicts) > 0 && s.settled(ctx, conflicts) {
		res := model.Failed(apperrors.CodeSlotConflict, fmt.Sprintf("window %s overlaps %d existing commitment(s)", vreq.Window, len(conflicts)), nil)
		res.Conflicts = conflicts
		return res
	}

	return s.retry.WithRetry(ctx, func(ctx context.Context) model.BookingResult {
		return s.coordinator.RunAtomic(ctx, vreq)
	}, s.cfg.MaxAttempts)
}

// settled reports whether every conflict belongs to a committed
// transaction. A conflict still owned by an active transaction may vanish
// (rollback or reaping), so it is left to the authoritative check.
func (s *bookingService) settled(ctx context.Context, conflicts []model.ConflictingCommitment) bool {
	for _, c := range conflicts {
		if c.TransactionID == "" {
			continue
		}
		tx, err := s.transactions.FindByID(ctx, c.TransactionID)
		if err != nil || tx.Status == model.TransactionStatusActive {
			return false
		}
	}
	return true
}

// CleanupExpiredTransactions rolls back every abandoned transaction and
// purges dead leases. Running it twice or concurrently with bookings is
// safe: each rollback is a compare-and-set.
func (s *bookingService) CleanupExpiredTransactions(ctx context.Context) model.CleanupResult {
	result := model.CleanupResult{Errors: []string{}}

	for {
		expired, err := s.transactions.FindExpiredActive(ctx, "", "", cleanupBatchSize)
		if err != nil {
			s.cfg.Log.Error("Failed to list expired transactions", "error", err)
			result.Errors = append(result.Errors, err.Error())
			break
		}

		progressed := false
		for _, tx := range expired {
			reaped, err := s.coordinator.Reap(ctx, tx)
			if err != nil {
				s.cfg.Log.Warn("Failed to reap expired transaction", "transaction_id", tx.ID, "error", err)
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", tx.ID, err))
				continue
			}
			progressed = true
			if reaped {
				result.CleanedCount++
			}
		}

		if len(expired) < cleanupBatchSize || !progressed || ctx.Err() != nil {
			break
		}
	}

	if s.leases != nil {
		purged, err := s.leases.PurgeExpired(ctx)
		if err != nil {
			s.cfg.Log.Warn("Failed to purge expired leases", "error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("purge leases: %v", err))
		}
		result.PurgedLeases = purged
	}

	if result.CleanedCount > 0 || len(result.Errors) > 0 {
		s.cfg.Log.Info("Expired transaction cleanup finished",
			"cleaned_count", result.CleanedCount,
			"purged_leases", result.PurgedLeases,
			"errors", len(result.Errors),
		)
	}
	return result
}

func (s *bookingService) GetTransactionStatus(ctx context.Context, id string) (model.TransactionStatus, error) {
	id = sanitizer.SanitizeID(id)
	if id == "" {
		return model.TransactionStatus{}, apperrors.InvalidInput("Transaction ID cannot be empty")
	}

	tx, err := s.transactions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrTransactionNotFound) {
			return model.TransactionStatus{Found: false}, nil
		}
		s.cfg.Log.Error("Failed to load transaction", "transaction_id", id, "error", err)
		return model.TransactionStatus{}, apperrors.Internal("Failed to retrieve transaction", err)
	}

	expiresAt := tx.ExpiresAt
	return model.TransactionStatus{Found: true, Status: tx.Status, ExpiresAt: &expiresAt}, nil
}

func (s *bookingService) CheckAvailability(ctx context.Context, ownerID, date, startTime, endTime string) ([]model.ConflictingCommitment, error) {
	ownerID = sanitizer.SanitizeID(ownerID)
	date = sanitizer.SanitizeDate(date)
	startTime = sanitizer.SanitizeClockTime(startTime)
	endTime = sanitizer.SanitizeClockTime(endTime)

	owner, err := s.catalog.FindOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrOwnerNotFound) {
			return nil, apperrors.NotFoundWithID("Resource owner", ownerID)
		}
		return nil, apperrors.Internal("Failed to retrieve resource owner", err)
	}

	window, err := parseOwnerWindow(owner, date, startTime, endTime)
	if err != nil {
		return nil, apperrors.Validation(err.Error(), nil)
	}

	conflicts, err := s.analyzer.FindConflicts(ctx, owner.ID, window, "")
	if err != nil {
		s.cfg.Log.Error("Availability check failed", "owner_id", owner.ID, "error", err)
		return nil, apperrors.Internal("Failed to check availability", err)
	}
	return conflicts, nil
}

func (s *bookingService) GetCommitment(ctx context.Context, id string) (*model.Commitment, error) {
	id = sanitizer.SanitizeID(id)
	if id == "" {
		return nil, apperrors.InvalidInput("Commitment ID cannot be empty")
	}

	commitment, err := s.commitments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Commitment", id)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid commitment ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve commitment", err)
	}
	return commitment, nil
}

func parseOwnerWindow(owner *model.ResourceOwner, date, startTime, endTime string) (model.TimeWindow, error) {
	loc, err := validator.OwnerLocation(owner)
	if err != nil {
		return model.TimeWindow{}, fmt.Errorf("resource owner time zone is invalid: %w", err)
	}

	start, err := time.ParseInLocation("2006-01-02 15:04", date+" "+startTime, loc)
	if err != nil {
		return model.TimeWindow{}, fmt.Errorf("date and start_time must be YYYY-MM-DD and HH:MM")
	}
	end, err := time.ParseInLocation("2006-01-02 15:04", date+" "+endTime, loc)
	if err != nil {
		return model.TimeWindow{}, fmt.Errorf("date and end_time must be YYYY-MM-DD and HH:MM")
	}
	if !end.After(start) {
		return model.TimeWindow{}, fmt.Errorf("end_time must be after start_time")
	}
	return model.TimeWindow{Date: date, Start: start, End: end}, nil
}
