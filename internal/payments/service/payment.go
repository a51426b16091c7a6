package service

import (
	"context"
	"shortlets/internal/payments/gateway"
	"shortlets/pkg/config"
	apperrors "shortlets/pkg/errors"
	"shortlets/pkg/model"
	"shortlets/pkg/sanitizer"
	"strings"
)

const EventChargeSuccess = "charge.success"

// WebhookEvent is a signed notification pushed by the payment provider.
type WebhookEvent struct {
	Event string         `json:"event"`
	Data  gateway.Charge `json:"data"`
}

type PaymentService interface {
	// Verify asks the gateway whether reference paid for bookingID and, if so, confirms it.
	Verify(ctx context.Context, callerID, bookingID, reference string) (*model.Booking, error)
	// HandleEvent processes a webhook event. Events other than successful charges are ignored
	// and reported as not handled.
	HandleEvent(ctx context.Context, event *WebhookEvent) (bool, error)
}

type paymentService struct {
	reconciler *Reconciler
	gateway    gateway.Gateway
	cfg        *config.Config
}

func NewPaymentService(reconciler *Reconciler, gw gateway.Gateway, cfg *config.Config) PaymentService {
	return &paymentService{
		reconciler: reconciler,
		gateway:    gw,
		cfg:        cfg,
	}
}

func (s *paymentService) Verify(ctx context.Context, callerID, bookingID, reference string) (*model.Booking, error) {
	bookingID = sanitizer.SanitizeID(bookingID)
	reference = strings.TrimSpace(reference)
	if bookingID == "" || reference == "" {
		return nil, apperrors.InvalidInput("Booking ID and payment reference are required")
	}

	booking, err := s.reconciler.findBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != callerID {
		s.cfg.Log.Warn("Payment verification by non-owner rejected",
			"booking_id", bookingID,
			"caller_id", callerID,
		)
		return nil, apperrors.Unauthorized("You are not allowed to pay for this booking")
	}
	if isConfirmedWith(booking, reference) {
		return booking, nil
	}
	// a lapsed booking still goes to the gateway so a captured charge is flagged for refund
	if !booking.CheckoutLapsed(s.reconciler.now()) {
		if err := checkPayable(booking); err != nil {
			return nil, err
		}
	}

	v, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		s.cfg.Log.Error("Payment gateway verification failed",
			"booking_id", bookingID,
			"reference", reference,
			"error", err,
		)
		return nil, apperrors.Unavailable("payment gateway")
	}
	if err := checkVerification(booking, v); err != nil {
		s.cfg.Log.Warn("Payment not accepted",
			"booking_id", bookingID,
			"reference", reference,
			"reason", err.Error(),
		)
		return nil, err
	}

	return s.reconciler.Confirm(ctx, bookingID, reference)
}

func (s *paymentService) HandleEvent(ctx context.Context, event *WebhookEvent) (bool, error) {
	if event.Event != EventChargeSuccess {
		s.cfg.Log.Info("Ignoring gateway event", "event", event.Event, "reference", event.Data.Reference)
		return false, nil
	}

	bookingID := sanitizer.SanitizeID(event.Data.Metadata.BookingID)
	if bookingID == "" {
		return false, apperrors.InvalidInput("Charge carries no booking reference")
	}

	booking, err := s.reconciler.findBooking(ctx, bookingID)
	if err != nil {
		return false, err
	}
	if err := checkVerification(booking, event.Data.Verification()); err != nil {
		return false, err
	}

	if _, err := s.reconciler.Confirm(ctx, bookingID, event.Data.Reference); err != nil {
		return false, err
	}
	return true, nil
}

// checkVerification accepts a charge only if it succeeded, belongs to booking and covers its
// cost.
func checkVerification(booking *model.Booking, v *gateway.Verification) error {
	if !v.Success {
		reason := v.Reason
		if reason == "" {
			reason = "Payment was not successful"
		}
		return apperrors.PaymentFailed(reason, nil)
	}
	if v.BookingID != "" && v.BookingID != booking.ID {
		return apperrors.PaymentFailed("Payment does not belong to this booking", nil).
			WithDetails(map[string]any{"booking_id": booking.ID})
	}
	if booking.TotalCost > 0 && v.Amount < booking.TotalCost {
		return apperrors.PaymentFailed("Payment amount does not cover the booking", nil).
			WithDetails(map[string]any{"expected": booking.TotalCost, "paid": v.Amount})
	}
	return nil
}
