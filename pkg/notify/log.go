package notify

import (
	"context"

	"shortlets/pkg/logger"
)

// LogNotifier only logs. It is used when delivery is disabled.
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(ctx context.Context, note Notification) {
	n.log.InfoContext(ctx, "Notification (delivery disabled)",
		"user_id", note.UserID,
		"title", note.Title,
		"url", note.URL,
	)
}

func (n *LogNotifier) Mail(ctx context.Context, m Mail) {
	n.log.InfoContext(ctx, "Mail (delivery disabled)",
		"user_id", m.UserID,
		"kind", m.Kind,
	)
}
