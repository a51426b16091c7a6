package testutil

import (
	"context"
	"io"
	"shortlets/pkg/config"
	"shortlets/pkg/lock"
	"shortlets/pkg/logger"
	"shortlets/pkg/notify"
	"sync"
	"time"
)

const (
	CheckoutSecret = "checkout-secret-for-tests"
	CheckoutBase   = "https://shortlets.example"
)

func Logger() *logger.Logger {
	return logger.New(logger.Config{Output: io.Discard})
}

// Config returns the settings workflow services read, with a discarding logger.
func Config() *config.Config {
	return &config.Config{
		CheckoutSigningSecret: CheckoutSecret,
		CheckoutBaseURL:       CheckoutBase,
		PropertyTimeZone:      "UTC",
		ReadTimeout:           time.Second,
		WriteTimeout:          time.Second,
		Log:                   Logger(),
	}
}

func Locker() lock.Locker {
	return lock.New(lock.NewMemoryStore(), lock.Options{
		TTL:            time.Second,
		AcquireTimeout: 200 * time.Millisecond,
		RetryInterval:  5 * time.Millisecond,
	}, Logger())
}

// Notifier records every notification and mail it is handed.
type Notifier struct {
	mu    sync.Mutex
	notes []notify.Notification
	mails []notify.Mail
}

func (n *Notifier) Notify(_ context.Context, note notify.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note)
}

func (n *Notifier) Mail(_ context.Context, m notify.Mail) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.mails = append(n.mails, m)
}

func (n *Notifier) Notifications() []notify.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Notification{}, n.notes...)
}

func (n *Notifier) Mails() []notify.Mail {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Mail{}, n.mails...)
}

// MailsTo returns the kinds of mail sent to userID, in order.
func (n *Notifier) MailsTo(userID string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var kinds []string
	for _, m := range n.mails {
		if m.UserID == userID {
			kinds = append(kinds, m.Kind)
		}
	}
	return kinds
}
