// Package notify delivers user notifications and transactional mail.
//
// Delivery is fire-and-forget: callers never see a failure, which is logged instead.
// Workflows call it only after their state change has committed.
package notify

import "context"

const (
	MailBookingRequest         = "booking-request"
	MailBookingRequestApproved = "booking-request-approved"
	MailBookingRequestRejected = "booking-request-rejected"
	MailPaymentConfirmedUser   = "payment-confirmation-user"
	MailPaymentConfirmedHost   = "payment-confirmation-host"
)

// Notification is an in-app message for one user.
type Notification struct {
	UserID string `json:"user_id"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	URL    string `json:"url,omitempty"`
}

// Mail is rendered and sent by the mail service; Kind selects the template.
type Mail struct {
	Kind   string         `json:"kind"`
	UserID string         `json:"user_id"`
	Data   map[string]any `json:"data,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification)
	Mail(ctx context.Context, m Mail)
}
