package notify

import (
	"context"
	"sync"
	"time"

	"shortlets/pkg/kafka"
	"shortlets/pkg/logger"
)

const (
	EventNotification = "user-notification"
	EventMail         = "mail-request"

	publishTimeout = 10 * time.Second
	schemaVersion  = "1"
)

// KafkaNotifier publishes notifications and mail requests to their topics in the background.
type KafkaNotifier struct {
	notifications kafka.Publisher
	mail          kafka.Publisher
	source        string
	log           *logger.Logger
	wg            sync.WaitGroup
}

func NewKafkaNotifier(notifications, mail kafka.Publisher, source string, log *logger.Logger) *KafkaNotifier {
	return &KafkaNotifier{
		notifications: notifications,
		mail:          mail,
		source:        source,
		log:           log,
	}
}

func (n *KafkaNotifier) Notify(ctx context.Context, note Notification) {
	n.publish(ctx, n.notifications, note.UserID, EventNotification, note)
}

func (n *KafkaNotifier) Mail(ctx context.Context, m Mail) {
	n.publish(ctx, n.mail, m.UserID, EventMail+"."+m.Kind, m)
}

func (n *KafkaNotifier) publish(ctx context.Context, pub kafka.Publisher, key, eventType string, payload any) {
	msg, err := kafka.NewMessage().
		WithKey(key).
		WithValue(payload).
		WithEventType(eventType).
		WithSource(n.source).
		WithSchemaVersion(schemaVersion).
		WithCorrelationID(logger.RequestID(ctx)).
		Build()
	if err != nil {
		n.log.Error("Failed to build notification message", "event_type", eventType, "error", err)
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()

		if err := pub.Publish(pctx, msg); err != nil {
			n.log.Error("Failed to publish notification",
				"event_type", eventType,
				"user_id", key,
				"error", err,
			)
		}
	}()
}

// Wait blocks until in-flight publishes finish. Call it before closing the producers.
func (n *KafkaNotifier) Wait() {
	n.wg.Wait()
}
