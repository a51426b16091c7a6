package model

import "time"

const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"

	MinCheckoutHours = 1
	MaxCheckoutHours = 12
)

type Approval struct {
	ID         string    `json:"id,omitempty" bson:"_id,omitempty"`
	BookingID  string    `json:"booking_id" bson:"booking_id"`
	PropertyID string    `json:"property_id" bson:"property_id"`
	UserID     string    `json:"user_id" bson:"user_id"`
	Message    string    `json:"message,omitempty" bson:"message,omitempty"`
	Status     string    `json:"status" bson:"status"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" bson:"updated_at"`
}

func (a *Approval) IsResolved() bool {
	return a.Status == ApprovalApproved || a.Status == ApprovalRejected
}

// ApprovalDecision is the host's answer to a pending request.
type ApprovalDecision struct {
	Status         string `json:"status" validate:"required,oneof=approved rejected"`
	ExpireHours    int    `json:"expire_hours"`
	ConfirmOverlap bool   `json:"confirm_overlap"`
}
