package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"regexp"
	"shortlets/pkg/client"
	"shortlets/pkg/logger"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	Port string

	CheckoutSigningSecret string
	SessionSigningSecret  string
	CheckoutBaseURL       string
	PropertyTimeZone      string

	LockBackend        string
	LockTTL            time.Duration
	LockAcquireTimeout time.Duration
	LockRetryInterval  time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	PaymentGatewayURL     string
	PaymentGatewaySecret  string
	PaymentGatewayTimeout time.Duration

	NotifyEnabled  bool
	NotifyTopic    string
	MailTopic      string
	NotifyDLQTopic string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	envFileErr := loadEnvFile()

	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		Port: getEnvStr(EnvPort, DefaultPort),

		CheckoutSigningSecret: getEnvStr(EnvCheckoutSigningSecret, ""),
		SessionSigningSecret:  getEnvStr(EnvSessionSigningSecret, ""),
		CheckoutBaseURL:       getEnvStr(EnvCheckoutBaseURL, DefaultCheckoutBaseURL),
		PropertyTimeZone:      getEnvStr(EnvPropertyTimeZone, DefaultPropertyTimeZone),

		LockBackend:        getEnvStr(EnvLockBackend, DefaultLockBackend),
		LockTTL:            getEnvDuration(EnvLockTTL, DefaultLockTTL),
		LockAcquireTimeout: getEnvDuration(EnvLockAcquireTimeout, DefaultLockAcquireTimeout),
		LockRetryInterval:  getEnvDuration(EnvLockRetryInterval, DefaultLockRetryInterval),

		RedisAddr:     getEnvStr(EnvRedisAddr, DefaultRedisAddr),
		RedisPassword: getEnvStr(EnvRedisPassword, ""),
		RedisDB:       getEnvNum(EnvRedisDB, DefaultRedisDB),

		PaymentGatewayURL:     getEnvStr(EnvPaymentGatewayURL, DefaultPaymentGatewayURL),
		PaymentGatewaySecret:  getEnvStr(EnvPaymentGatewaySecret, ""),
		PaymentGatewayTimeout: getEnvDuration(EnvPaymentGatewayTimeout, DefaultPaymentGatewayTimeout),

		NotifyEnabled:  getEnvBool(EnvNotifyEnabled, false),
		NotifyTopic:    getEnvStr(EnvNotifyTopic, DefaultNotifyTopic),
		MailTopic:      getEnvStr(EnvMailTopic, DefaultMailTopic),
		NotifyDLQTopic: getEnvStr(EnvNotifyDLQTopic, DefaultNotifyDLQTopic),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	if envFileErr != nil {
		cfg.Log.Warn("Failed to load env file", "error", envFileErr)
	}

	err := cfg.Validate()
	if err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

// loadEnvFile reads ENV_FILE (or .env) into the process environment. A missing file is not an error;
// variables already set in the environment win.
func loadEnvFile() error {
	path := getEnvStr(EnvEnvFile, ".env")
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) SetRedis() {
	cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
}

func (cfg *Config) Location() *time.Location {
	loc, err := time.LoadLocation(cfg.PropertyTimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		errors = append(errors, "MongoURI cannot be empty")
	} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
	}

	if cfg.MongoDatabaseName == "" {
		errors = append(errors, "MongoDatabaseName cannot be empty")
	}
	if cfg.MongoConnTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
	}

	if len(cfg.CheckoutSigningSecret) < 16 {
		errors = append(errors, "CheckoutSigningSecret must be set and at least 16 characters long")
	}
	if len(cfg.SessionSigningSecret) < 16 {
		errors = append(errors, "SessionSigningSecret must be set and at least 16 characters long")
	}
	if u, err := url.Parse(cfg.CheckoutBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, fmt.Sprintf("CheckoutBaseURL must be an absolute URL, got: %s", cfg.CheckoutBaseURL))
	}
	if _, err := time.LoadLocation(cfg.PropertyTimeZone); err != nil {
		errors = append(errors, fmt.Sprintf("PropertyTimeZone is not a known time zone: %s", cfg.PropertyTimeZone))
	}

	if cfg.LockBackend != LockBackendMongo && cfg.LockBackend != LockBackendRedis {
		errors = append(errors, fmt.Sprintf("LockBackend must be one of [%s, %s], got: %s", LockBackendMongo, LockBackendRedis, cfg.LockBackend))
	}
	if cfg.LockTTL <= 0 {
		errors = append(errors, fmt.Sprintf("LockTTL must be positive, got: %s", cfg.LockTTL))
	}
	if cfg.LockAcquireTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("LockAcquireTimeout must be positive, got: %s", cfg.LockAcquireTimeout))
	}
	if cfg.LockRetryInterval <= 0 || cfg.LockRetryInterval > cfg.LockAcquireTimeout {
		errors = append(errors, fmt.Sprintf("LockRetryInterval must be positive and not exceed LockAcquireTimeout, got: %s", cfg.LockRetryInterval))
	}
	if cfg.LockBackend == LockBackendRedis && cfg.RedisAddr == "" {
		errors = append(errors, "RedisAddr cannot be empty when LockBackend is redis")
	}

	if cfg.PaymentGatewayURL == "" {
		errors = append(errors, "PaymentGatewayURL cannot be empty")
	}
	if cfg.PaymentGatewayTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("PaymentGatewayTimeout must be positive, got: %s", cfg.PaymentGatewayTimeout))
	}

	if cfg.NotifyEnabled && (cfg.NotifyTopic == "" || cfg.MailTopic == "") {
		errors = append(errors, "NotifyTopic and MailTopic cannot be empty when notifications are enabled")
	}

	if cfg.RateLimitWindow <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitWindow must be positive, got: %s", cfg.RateLimitWindow))
	}
	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
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
		"port", cfg.Port,
		"checkout_secret_set", cfg.CheckoutSigningSecret != "",
		"session_secret_set", cfg.SessionSigningSecret != "",
		"checkout_base_url", cfg.CheckoutBaseURL,
		"property_timezone", cfg.PropertyTimeZone,
		"lock_backend", cfg.LockBackend,
		"lock_ttl", cfg.LockTTL,
		"lock_acquire_timeout", cfg.LockAcquireTimeout,
		"redis_addr", cfg.RedisAddr,
		"payment_gateway_url", cfg.PaymentGatewayURL,
		"payment_gateway_secret_set", cfg.PaymentGatewaySecret != "",
		"notify_enabled", cfg.NotifyEnabled,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
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

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
