package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"
	EnvEnvFile  = "ENV_FILE"

	EnvCheckoutSigningSecret = "CHECKOUT_SIGNING_SECRET"
	EnvSessionSigningSecret  = "SESSION_SIGNING_SECRET"
	EnvCheckoutBaseURL       = "CHECKOUT_BASE_URL"
	EnvPropertyTimeZone      = "PROPERTY_TIMEZONE"

	EnvLockBackend       = "LOCK_BACKEND"
	EnvLockTTL           = "LOCK_TTL"
	EnvLockAcquireTimeout = "LOCK_ACQUIRE_TIMEOUT"
	EnvLockRetryInterval = "LOCK_RETRY_INTERVAL"

	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvRedisDB       = "REDIS_DB"

	EnvPaymentGatewayURL     = "PAYMENT_GATEWAY_URL"
	EnvPaymentGatewaySecret  = "PAYMENT_GATEWAY_SECRET"
	EnvPaymentGatewayTimeout = "PAYMENT_GATEWAY_TIMEOUT"

	EnvNotifyEnabled  = "NOTIFY_ENABLED"
	EnvNotifyTopic    = "NOTIFY_TOPIC"
	EnvMailTopic      = "MAIL_TOPIC"
	EnvNotifyDLQTopic = "NOTIFY_DLQ_TOPIC"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"
)
