package worker

import (
	"context"
	"sync/atomic"
	"time"

	"lessonbook/pkg/logger"
	"lessonbook/pkg/model"
)

// Cleaner is the part of the booking service the reaper drives.
type Cleaner interface {
	CleanupExpiredTransactions(ctx context.Context) model.CleanupResult
}

type ReaperStats struct {
	Runs         int64 `json:"runs"`
	Cleaned      int64 `json:"cleaned"`
	PurgedLeases int64 `json:"purged_leases"`
	Failures     int64 `json:"failures"`
}

// Reaper periodically rolls back abandoned booking transactions.
type Reaper struct {
	cleaner  Cleaner
	interval time.Duration
	log      *logger.Logger

	runs     atomic.Int64
	cleaned  atomic.Int64
	purged   atomic.Int64
	failures atomic.Int64
}

func NewReaper(cleaner Cleaner, interval time.Duration, log *logger.Logger) *Reaper {
	return &Reaper{
		cleaner:  cleaner,
		interval: interval,
		log:      log.With("component", "reaper"),
	}
}

// Start runs one sweep immediately and then one per interval until ctx is
// done.
func (r *Reaper) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info("Transaction reaper started", "interval", r.interval.String())
	r.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			r.log.Info("Transaction reaper stopped")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

func (r *Reaper) RunOnce(ctx context.Context) model.CleanupResult {
	res := r.cleaner.CleanupExpiredTransactions(ctx)

	r.runs.Add(1)
	r.cleaned.Add(int64(res.CleanedCount))
	r.purged.Add(res.PurgedLeases)
	if len(res.Errors) > 0 {
		r.failures.Add(1)
		r.log.Warn("Reaper sweep finished with errors",
			"cleaned_count", res.CleanedCount,
			"errors", res.Errors,
		)
	}
	return res
}

func (r *Reaper) Stats() ReaperStats {
	return ReaperStats{
		Runs:         r.runs.Load(),
		Cleaned:      r.cleaned.Load(),
		PurgedLeases: r.purged.Load(),
		Failures:     r.failures.Load(),
	}
}
