package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "shortlets"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultCheckoutBaseURL  = "http://localhost:3000"
	DefaultPropertyTimeZone = "UTC"

	LockBackendMongo = "mongo"
	LockBackendRedis = "redis"

	DefaultLockBackend       = LockBackendMongo
	DefaultLockTTL           = 30 * time.Second
	DefaultLockAcquireTimeout = 5 * time.Second
	DefaultLockRetryInterval = 100 * time.Millisecond

	DefaultRedisAddr = "localhost:6379"
	DefaultRedisDB   = 0

	DefaultPaymentGatewayURL     = "https://api.paystack.co"
	DefaultPaymentGatewayTimeout = 10 * time.Second

	DefaultNotifyTopic    = "shortlets.notifications"
	DefaultMailTopic      = "shortlets.mail"
	DefaultNotifyDLQTopic = "shortlets.notifications.dlq"

	DefaultRateLimitRequests = 10
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultPaginationLimit = 100
)
