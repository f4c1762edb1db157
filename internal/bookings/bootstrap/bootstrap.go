package bootstrap

import (
	"context"

	"lessonbook/internal/bookings/lock"
	"lessonbook/internal/bookings/repository"
	"lessonbook/internal/bookings/service"
	"lessonbook/pkg/config"
	mongotx "lessonbook/pkg/db/mongo"
	"lessonbook/pkg/kafka"
	kafka_config "lessonbook/pkg/kafka/config"
	kafka_middleware "lessonbook/pkg/kafka/middleware"
)

// Services is the wired booking core of a process.
type Services struct {
	Booking  service.BookingService
	producer *kafka.Producer
}

// Close flushes the audit producer, if any.
func (s *Services) Close(cfg *config.Config) {
	if s.producer == nil {
		return
	}
	if err := s.producer.Close(); err != nil {
		cfg.Log.Error("Failed to close Kafka producer", "error", err)
	}
}

// Build connects the configured stores and wires the booking service. It
// exits the process on any connection or setup failure.
func Build(ctx context.Context, cfg *config.Config) *Services {
	cfg.SetMongo()
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)

	leases := leaseStore(ctx, cfg)
	lk := lock.NewLeaseLock(leases, cfg.LockLeaseTTL, cfg.Log)

	stores := service.Stores{
		Commitments:  repository.NewMongoCommitmentRepository(cfg),
		Transactions: repository.NewMongoTransactionRepository(cfg),
		Audit:        repository.NewMongoAuditRepository(cfg),
		Catalog:      repository.NewMongoCatalogRepository(cfg),
		TxManager:    mongotx.NewTransactionManager(cfg.Client.Mongo, cfg.MongoTransactions),
	}

	svc := &Services{}
	var publisher kafka.Publisher
	if cfg.KafkaEnabled {
		svc.producer = newProducer(cfg)
		publisher = svc.producer
	}

	svc.Booking = service.NewBookingService(cfg, stores, lk, leases, publisher)
	cfg.Log.Info("Booking service initialized",
		"database", db.Name(),
		"lock_backend", cfg.LockBackend,
		"kafka_enabled", cfg.KafkaEnabled,
	)
	return svc
}

func leaseStore(ctx context.Context, cfg *config.Config) lock.LeaseStore {
	switch cfg.LockBackend {
	case config.LockBackendRedis:
		cfg.SetRedis()
		return lock.NewRedisStore(cfg.Client.Redis)
	case config.LockBackendPostgres:
		cfg.SetPostgres()
		store := lock.NewPostgresStore(cfg.Client.Postgres)
		if err := store.EnsureSchema(ctx); err != nil {
			cfg.Log.Fatal("Failed to prepare Postgres lease table", "error", err)
		}
		return store
	case config.LockBackendMemory:
		cfg.Log.Warn("Using in-process lease store; leases are not shared between replicas")
		return lock.NewMemoryStore()
	default:
		return lock.NewMongoStore(cfg.Client.Mongo.Database(cfg.MongoDatabaseName), cfg.LockReleaseTimeout)
	}
}

func newProducer(cfg *config.Config) *kafka.Producer {
	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.KafkaBookingTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	if kafkaCfg.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	}
	return producer
}
