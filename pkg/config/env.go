package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"
	EnvMongoTransactions = "MONGO_TRANSACTIONS"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvLockBackend         = "LOCK_BACKEND"
	EnvLockLeaseTTL        = "LOCK_LEASE_TTL"
	EnvLockAcquireTimeout  = "LOCK_ACQUIRE_TIMEOUT"
	EnvLockReleaseTimeout  = "LOCK_RELEASE_TIMEOUT"
	EnvLockSlotGranularity = "LOCK_SLOT_GRANULARITY"

	EnvTransactionTTL    = "BOOKING_TRANSACTION_TTL"
	EnvMaxAttempts       = "BOOKING_MAX_ATTEMPTS"
	EnvRetryBaseDelay    = "BOOKING_RETRY_BASE_DELAY"
	EnvRetryMaxDelay     = "BOOKING_RETRY_MAX_DELAY"
	EnvDurationTolerance = "BOOKING_DURATION_TOLERANCE"
	EnvAuthorizedRoles   = "BOOKING_AUTHORIZED_ROLES"
	EnvCleanupInterval   = "CLEANUP_INTERVAL"

	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvRedisDB       = "REDIS_DB"

	EnvPostgresDSN = "POSTGRES_DSN"

	EnvKafkaEnabled      = "KAFKA_ENABLED"
	EnvKafkaBookingTopic = "KAFKA_BOOKING_TOPIC"
)
