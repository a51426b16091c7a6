package app

import (
	"shortlets/pkg/config"
	"shortlets/pkg/kafka"
	kafka_config "shortlets/pkg/kafka/config"
	kafka_middleware "shortlets/pkg/kafka/middleware"
	"shortlets/pkg/lock"
	"shortlets/pkg/notify"
)

// NewLocker connects the configured lock backend and returns a property locker on top of it.
func NewLocker(cfg *config.Config) lock.Locker {
	opts := lock.Options{
		TTL:            cfg.LockTTL,
		AcquireTimeout: cfg.LockAcquireTimeout,
		RetryInterval:  cfg.LockRetryInterval,
	}

	var store lock.Store
	switch cfg.LockBackend {
	case config.LockBackendRedis:
		if cfg.Client.Redis == nil {
			cfg.SetRedis()
		}
		store = lock.NewRedisStore(cfg.Client.Redis)
	default:
		store = lock.NewMongoStore(cfg.Client.Mongo.Database(cfg.MongoDatabaseName))
	}

	cfg.Log.Info("Property locker initialized", "backend", cfg.LockBackend, "ttl", cfg.LockTTL)
	return lock.New(store, opts, cfg.Log)
}

// NewNotifier returns a Kafka backed notifier when notifications are enabled and a logging one
// otherwise. Producers are flushed and closed when a shuts down.
func (a *Application) NewNotifier(cfg *config.Config, source string) notify.Notifier {
	if !cfg.NotifyEnabled {
		cfg.Log.Info("Notifications disabled, events will only be logged")
		return notify.NewLogNotifier(cfg.Log)
	}

	kcfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kcfg.LogConfiguration(cfg.Log.Info)

	notifications := newProducer(cfg, kcfg, cfg.NotifyTopic)
	mail := newProducer(cfg, kcfg, cfg.MailTopic)

	notifier := notify.NewKafkaNotifier(notifications, mail, source, cfg.Log)
	a.OnShutdown(func() {
		notifier.Wait()
		for _, p := range []*kafka.Producer{notifications, mail} {
			if err := p.Close(); err != nil {
				cfg.Log.Error("Failed to close Kafka producer", "topic", p.Topic(), "error", err)
			}
		}
	})
	return notifier
}

func newProducer(cfg *config.Config, kcfg *kafka_config.Config, topic string) *kafka.Producer {
	p, err := kafka.NewProducer(kcfg, cfg.Log, topic, cfg.NotifyDLQTopic)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "topic", topic, "error", err)
	}
	if kcfg.EnableMiddleware {
		p.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	}
	return p
}
