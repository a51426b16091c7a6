package model

import (
	"time"
)

const (
	BookingPending   = "Pending"
	BookingConfirmed = "Confirmed"
	BookingCancelled = "Cancelled"

	PaymentPending   = "Pending"
	PaymentCompleted = "Completed"
	PaymentFailed    = "Failed"
)

type Payment struct {
	Status        string `json:"status" bson:"status"`
	TransactionID string `json:"transaction_id,omitempty" bson:"transaction_id,omitempty"`
}

type Booking struct {
	ID                string     `json:"id,omitempty" bson:"_id,omitempty"`
	PropertyID        string     `json:"property_id" bson:"property_id"`
	UserID            string     `json:"user_id" bson:"user_id"`
	StartDate         time.Time  `json:"start_date" bson:"start_date"`
	EndDate           time.Time  `json:"end_date" bson:"end_date"`
	Guests            int        `json:"guests" bson:"guests"`
	Nights            int        `json:"nights" bson:"nights"`
	TotalCost         int64      `json:"total_cost,omitempty" bson:"total_cost,omitempty"`
	Status            string     `json:"status" bson:"status"`
	Payment           Payment    `json:"payment" bson:"payment"`
	EnablePayment     bool       `json:"enable_payment" bson:"enable_payment"`
	IsActive          bool       `json:"is_active" bson:"is_active"`
	LinkedBookingID   string     `json:"linked_booking_id,omitempty" bson:"linked_booking_id,omitempty"`
	CheckoutExpiresAt *time.Time `json:"checkout_expires_at,omitempty" bson:"checkout_expires_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" bson:"updated_at"`
}

func (b *Booking) Range() DateRange {
	return DateRange{Start: b.StartDate, End: b.EndDate}
}

// CheckoutLapsed reports whether the booking's checkout window closed at now without a payment.
// Instant bookings have no window and never lapse.
func (b *Booking) CheckoutLapsed(now time.Time) bool {
	return b.CheckoutExpiresAt != nil &&
		b.Payment.Status == PaymentPending &&
		now.After(*b.CheckoutExpiresAt)
}

// BookingRequest is what a guest submits. UserID comes from the caller identity, never the body.
type BookingRequest struct {
	PropertyID string `json:"property_id" validate:"required,mongodb"`
	StartDate  string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate    string `json:"end_date" validate:"required,datetime=2006-01-02"`
	Guests     int    `json:"guests" validate:"required,min=1,max=50"`
	TotalCost  int64  `json:"total_cost" validate:"omitempty,min=0"`
	Message    string `json:"message" validate:"omitempty,max=1000"`
	UserID     string `json:"-" validate:"required"`
}

// DateBlockRequest is a host-imposed hold on a property.
type DateBlockRequest struct {
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}
