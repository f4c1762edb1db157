package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"lessonbook/internal/bookings/bootstrap"
	"lessonbook/internal/bookings/worker"
	"lessonbook/pkg/config"
)

const JobName = "booking-reaper"

// The reaper runs the expired-transaction sweep on its own, for deployments
// that keep cleanup off the API replicas.
func main() {
	cfg := config.Load(JobName)

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid configuration", "error", err)
	}
	cfg.LogConfiguration()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services := bootstrap.Build(ctx, cfg)
	defer cfg.GracefulShutdown()
	defer services.Close(cfg)

	reaper := worker.NewReaper(services.Booking, cfg.CleanupInterval, cfg.Log)
	reaper.Start(ctx)

	stats := reaper.Stats()
	cfg.Log.Info("Reaper exiting",
		"runs", stats.Runs,
		"cleaned", stats.Cleaned,
		"purged_leases", stats.PurgedLeases,
		"failures", stats.Failures,
	)
}
