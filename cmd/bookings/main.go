package main

import (
	"context"
	_ "time/tzdata"

	"lessonbook/internal/bookings/bootstrap"
	"lessonbook/internal/bookings/handler"
	"lessonbook/internal/bookings/worker"
	"lessonbook/pkg/app"
	"lessonbook/pkg/config"
)

const ServiceName = "bookings"

func main() {
	cfg := config.Load(ServiceName)

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid configuration", "error", err)
	}

	cfg.LogConfiguration()

	cfg.Log.Info("Starting Bookings service")
	services := bootstrap.Build(context.Background(), cfg)
	defer cfg.GracefulShutdown()
	defer services.Close(cfg)

	reaper := worker.NewReaper(services.Booking, cfg.CleanupInterval, cfg.Log)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(
		handler.NewHealthHandler(cfg.Client.Mongo, cfg.Log),
		handler.NewBookingHandler(services.Booking, cfg.Log),
	)
	serverApp.AddWorker(reaper.Start)
	serverApp.Run()
}
