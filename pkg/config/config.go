package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"lessonbook/pkg/client"
	"lessonbook/pkg/logger"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration
	MongoTransactions bool

	Port     string
	LogLevel string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	LockBackend         string
	LockLeaseTTL        time.Duration
	LockAcquireTimeout  time.Duration
	LockReleaseTimeout  time.Duration
	LockSlotGranularity time.Duration

	TransactionTTL    time.Duration
	MaxAttempts       int
	RetryBaseDelay    time.Duration
	RetryMaxDelay     time.Duration
	DurationTolerance time.Duration
	AuthorizedRoles   []string
	CleanupInterval   time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	PostgresDSN string

	KafkaEnabled      bool
	KafkaBookingTopic string

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	cfg := FromEnv(serviceName)

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

// FromEnv reads the configuration without validating it.
func FromEnv(serviceName string) *Config {
	logLevel := getEnvStr(EnvLogLevel, DefaultLogLevel)

	return &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),
		MongoTransactions: getEnvBool(EnvMongoTransactions, DefaultMongoTransactions),

		Port:     getEnvStr(EnvPort, DefaultPort),
		LogLevel: logLevel,

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		LockBackend:         strings.ToLower(getEnvStr(EnvLockBackend, DefaultLockBackend)),
		LockLeaseTTL:        getEnvDuration(EnvLockLeaseTTL, DefaultLockLeaseTTL),
		LockAcquireTimeout:  getEnvDuration(EnvLockAcquireTimeout, DefaultLockAcquireTimeout),
		LockReleaseTimeout:  getEnvDuration(EnvLockReleaseTimeout, DefaultLockReleaseTimeout),
		LockSlotGranularity: getEnvDuration(EnvLockSlotGranularity, DefaultLockSlotGranularity),

		TransactionTTL:    getEnvDuration(EnvTransactionTTL, DefaultTransactionTTL),
		MaxAttempts:       getEnvNum(EnvMaxAttempts, DefaultMaxAttempts),
		RetryBaseDelay:    getEnvDuration(EnvRetryBaseDelay, DefaultRetryBaseDelay),
		RetryMaxDelay:     getEnvDuration(EnvRetryMaxDelay, DefaultRetryMaxDelay),
		DurationTolerance: getEnvDuration(EnvDurationTolerance, DefaultDurationTolerance),
		AuthorizedRoles:   getEnvList(EnvAuthorizedRoles, DefaultAuthorizedRoles),
		CleanupInterval:   getEnvDuration(EnvCleanupInterval, DefaultCleanupInterval),

		RedisAddr:     getEnvStr(EnvRedisAddr, DefaultRedisAddr),
		RedisPassword: getEnvStr(EnvRedisPassword, ""),
		RedisDB:       getEnvNum(EnvRedisDB, DefaultRedisDB),

		PostgresDSN: getEnvStr(EnvPostgresDSN, DefaultPostgresDSN),

		KafkaEnabled:      getEnvBool(EnvKafkaEnabled, DefaultKafkaEnabled),
		KafkaBookingTopic: getEnvStr(EnvKafkaBookingTopic, DefaultKafkaBookingTopic),

		Log: logger.New(logger.Config{
			Level:     logLevel,
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) SetRedis() {
	cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.MongoConnTimeout)
}

func (cfg *Config) SetPostgres() {
	cfg.Client.SetPostgres(cfg.Log, cfg.PostgresDSN, cfg.MongoConnTimeout)
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		errors = append(errors, "MongoURI cannot be empty")
	} else if !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
	}
	if cfg.MongoDatabaseName == "" {
		errors = append(errors, "MongoDatabaseName cannot be empty")
	}

	positiveDurations := []struct {
		name  string
		value time.Duration
	}{
		{"MongoConnTimeout", cfg.MongoConnTimeout},
		{"RateLimitWindow", cfg.RateLimitWindow},
		{"RequestTimeout", cfg.RequestTimeout},
		{"IdempotencyTTL", cfg.IdempotencyTTL},
		{"ReadTimeout", cfg.ReadTimeout},
		{"WriteTimeout", cfg.WriteTimeout},
		{"IdleTimeout", cfg.IdleTimeout},
		{"ShutdownTimeout", cfg.ShutdownTimeout},
		{"LockLeaseTTL", cfg.LockLeaseTTL},
		{"LockAcquireTimeout", cfg.LockAcquireTimeout},
		{"LockReleaseTimeout", cfg.LockReleaseTimeout},
		{"TransactionTTL", cfg.TransactionTTL},
		{"RetryBaseDelay", cfg.RetryBaseDelay},
		{"RetryMaxDelay", cfg.RetryMaxDelay},
		{"CleanupInterval", cfg.CleanupInterval},
	}
	for _, d := range positiveDurations {
		if d.value <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got: %s", d.name, d.value))
		}
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}

	switch cfg.LockBackend {
	case LockBackendMongo, LockBackendRedis, LockBackendPostgres, LockBackendMemory:
	default:
		errors = append(errors, fmt.Sprintf("LockBackend must be one of [mongo, redis, postgres, memory], got: %s", cfg.LockBackend))
	}
	if cfg.LockBackend == LockBackendRedis && cfg.RedisAddr == "" {
		errors = append(errors, "RedisAddr is required when LockBackend is redis")
	}
	if cfg.LockBackend == LockBackendPostgres && cfg.PostgresDSN == "" {
		errors = append(errors, "PostgresDSN is required when LockBackend is postgres")
	}

	if cfg.LockSlotGranularity < time.Minute || (24*time.Hour)%cfg.LockSlotGranularity != 0 {
		errors = append(errors, fmt.Sprintf("LockSlotGranularity must be at least 1m and divide 24h evenly, got: %s", cfg.LockSlotGranularity))
	}
	if cfg.TransactionTTL > cfg.LockLeaseTTL {
		errors = append(errors, fmt.Sprintf("TransactionTTL (%s) must not exceed LockLeaseTTL (%s)", cfg.TransactionTTL, cfg.LockLeaseTTL))
	}
	if cfg.RetryMaxDelay < cfg.RetryBaseDelay {
		errors = append(errors, fmt.Sprintf("RetryMaxDelay (%s) must be >= RetryBaseDelay (%s)", cfg.RetryMaxDelay, cfg.RetryBaseDelay))
	}
	if cfg.MaxAttempts <= 0 {
		errors = append(errors, fmt.Sprintf("MaxAttempts must be positive, got: %d", cfg.MaxAttempts))
	}
	if cfg.DurationTolerance < 0 {
		errors = append(errors, fmt.Sprintf("DurationTolerance cannot be negative, got: %s", cfg.DurationTolerance))
	}
	if len(cfg.AuthorizedRoles) == 0 {
		errors = append(errors, "AuthorizedRoles cannot be empty")
	}

	if cfg.KafkaEnabled && cfg.KafkaBookingTopic == "" {
		errors = append(errors, "KafkaBookingTopic is required when Kafka is enabled")
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"mongo_transactions", cfg.MongoTransactions,
		"port", cfg.Port,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"lock_backend", cfg.LockBackend,
		"lock_lease_ttl", cfg.LockLeaseTTL,
		"lock_acquire_timeout", cfg.LockAcquireTimeout,
		"lock_release_timeout", cfg.LockReleaseTimeout,
		"lock_slot_granularity", cfg.LockSlotGranularity,
		"transaction_ttl", cfg.TransactionTTL,
		"max_attempts", cfg.MaxAttempts,
		"retry_base_delay", cfg.RetryBaseDelay,
		"retry_max_delay", cfg.RetryMaxDelay,
		"duration_tolerance", cfg.DurationTolerance,
		"authorized_roles", cfg.AuthorizedRoles,
		"cleanup_interval", cfg.CleanupInterval,
		"redis_addr", cfg.RedisAddr,
		"redis_password_set", cfg.RedisPassword != "",
		"postgres_dsn", redactPostgresDSN(cfg.PostgresDSN),
		"kafka_enabled", cfg.KafkaEnabled,
		"kafka_booking_topic", cfg.KafkaBookingTopic,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func redactPostgresDSN(dsn string) string {
	credentialRegex := regexp.MustCompile(`(postgres(ql)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(dsn, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key, fallback string) []string {
	raw := getEnvStr(key, fallback)
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(strings.ToLower(item)); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
}
