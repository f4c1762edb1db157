package app_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lessonbook/internal/bookings/handler"
	"lessonbook/internal/bookings/lock"
	"lessonbook/internal/bookings/repository"
	"lessonbook/internal/bookings/service"
	"lessonbook/pkg/app"
	"lessonbook/pkg/client"
	"lessonbook/pkg/config"
	apperrors "lessonbook/pkg/errors"
	"lessonbook/pkg/logger"
	"lessonbook/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type okPinger struct{}

func (okPinger) Ping(context.Context, *readpref.ReadPref) error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		Port:                "0",
		RateLimitRequests:   100,
		RateLimitWindow:     time.Minute,
		RequestTimeout:      5 * time.Second,
		IdempotencyTTL:      time.Minute,
		MaxRequestSize:      1 << 20,
		ReadTimeout:         5 * time.Second,
		WriteTimeout:        5 * time.Second,
		IdleTimeout:         5 * time.Second,
		ShutdownTimeout:     time.Second,
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

// newServer runs the full HTTP stack over in-memory stores.
func newServer(t *testing.T) *client.BookingClient {
	t.Helper()
	cfg := testConfig()

	catalog := repository.NewMemoryCatalog()
	catalog.PutOwner(model.ResourceOwner{ID: "owner-1", Name: "Dana", Role: "instructor", Active: true})
	catalog.PutOffering(model.Offering{ID: "lesson-60", OwnerID: "owner-1", DurationMin: 60, Active: true})
	catalog.PutRequester(model.Requester{ID: "req-1", Name: "Avi", Active: true})
	catalog.PutRequester(model.Requester{ID: "req-2", Name: "Maya", Active: true})

	leases := lock.NewMemoryStore()
	svc := service.NewBookingService(cfg, service.Stores{
		Commitments:  repository.NewMemoryCommitments(),
		Transactions: repository.NewMemoryTransactions(time.Now),
		Audit:        repository.NewMemoryAudit(),
		Catalog:      catalog,
	}, lock.NewLeaseLock(leases, cfg.LockLeaseTTL, cfg.Log), leases, nil)

	a := app.NewApplication(cfg)
	a.SetApp(handler.NewHealthHandler(okPinger{}, cfg.Log), handler.NewBookingHandler(svc, cfg.Log))

	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)
	return client.NewBookingClient(srv.URL)
}

func lesson(requester, start, end string) model.BookingRequest {
	return model.BookingRequest{
		OwnerID:     "owner-1",
		RequesterID: requester,
		OfferingID:  "lesson-60",
		Date:        "2030-01-10",
		StartTime:   start,
		EndTime:     end,
		Modality:    model.ModalityOnline,
	}
}

func TestApplication_BookingRoundTrip(t *testing.T) {
	c := newServer(t)
	ctx := context.Background()

	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, c.WaitForHealthy(healthCtx))

	res, err := c.Book(ctx, lesson("req-1", "14:00", "15:00"))
	require.NoError(t, err)
	require.True(t, res.Success)
	require.NotEmpty(t, res.CommitmentID)
	assert.Equal(t, 1, res.Attempts)

	commitment, err := c.GetCommitment(ctx, res.CommitmentID)
	require.NoError(t, err)
	assert.Equal(t, "owner-1", commitment.OwnerID)
	assert.Equal(t, "req-1", commitment.RequesterID)

	status, err := c.TransactionStatus(ctx, res.TransactionID)
	require.NoError(t, err)
	assert.True(t, status.Found)
	assert.Equal(t, model.TransactionStatusCommitted, status.Status)

	conflicts, err := c.Availability(ctx, "owner-1", "2030-01-10", "14:30", "15:30")
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, res.CommitmentID, conflicts[0].ID)

	free, err := c.Availability(ctx, "owner-1", "2030-01-10", "15:00", "16:00")
	require.NoError(t, err)
	assert.Empty(t, free)
}

func TestApplication_ConflictIsReported(t *testing.T) {
	c := newServer(t)
	ctx := context.Background()

	_, err := c.Book(ctx, lesson("req-1", "14:00", "15:00"))
	require.NoError(t, err)

	_, err = c.Book(ctx, lesson("req-2", "14:30", "15:30"))
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr), "expected APIError, got %v", err)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, apperrors.CodeSlotConflict, apiErr.Code)
	assert.NotEmpty(t, apiErr.Details["conflicts"])
}

func TestApplication_ValidationFailure(t *testing.T) {
	c := newServer(t)

	_, err := c.Book(context.Background(), lesson("req-1", "14:00", "14:20"))
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr), "expected APIError, got %v", err)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, apperrors.CodeValidation, apiErr.Code)
}

func TestApplication_IdempotentReplay(t *testing.T) {
	c := newServer(t)
	ctx := context.Background()

	req := lesson("req-1", "09:00", "10:00")
	req.IdempotencyKey = "retry-me"

	first, err := c.Book(ctx, req)
	require.NoError(t, err)
	second, err := c.Book(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.CommitmentID, second.CommitmentID)
}

func TestApplication_CleanupWithNothingExpired(t *testing.T) {
	c := newServer(t)

	res, err := c.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.CleanedCount)
}

func TestApplication_UnknownCommitment(t *testing.T) {
	c := newServer(t)

	_, err := c.GetCommitment(context.Background(), "00000000-0000-4000-8000-000000000000")
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr), "expected APIError, got %v", err)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}
