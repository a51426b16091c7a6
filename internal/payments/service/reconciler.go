package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	availabilityerrors "shortlets/internal/availability/errors"
	propertyrepo "shortlets/internal/availability/repository"
	bookingserrors "shortlets/internal/bookings/errors"
	"shortlets/internal/bookings/repository"
	"shortlets/pkg/config"
	apperrors "shortlets/pkg/errors"
	"shortlets/pkg/lock"
	"shortlets/pkg/model"
	"shortlets/pkg/notify"
)

// Reconciler turns a captured payment into a confirmed booking and a durable occupancy.
type Reconciler struct {
	bookings   repository.BookingRepository
	approvals  repository.ApprovalRepository
	properties propertyrepo.PropertyRepository
	locker     lock.Locker
	notifier   notify.Notifier
	cfg        *config.Config
	now        func() time.Time
}

func NewReconciler(
	bookings repository.BookingRepository,
	approvals repository.ApprovalRepository,
	properties propertyrepo.PropertyRepository,
	locker lock.Locker,
	notifier notify.Notifier,
	cfg *config.Config,
) *Reconciler {
	return &Reconciler{
		bookings:   bookings,
		approvals:  approvals,
		properties: properties,
		locker:     locker,
		notifier:   notifier,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Confirm records reference as the payment for bookingID. The requests that lost to the
// booking are deleted with their approvals and the booking's dates become occupied.
//
// Confirm is idempotent: calling it again with the same reference returns the confirmed
// booking without writing or notifying anything. A payment that arrives after the booking's
// checkout window closed is recorded as failed for refund and the superseded requests return to
// contention.
func (r *Reconciler) Confirm(ctx context.Context, bookingID, reference string) (*model.Booking, error) {
	if reference == "" {
		return nil, apperrors.InvalidInput("Payment reference cannot be empty")
	}

	booking, err := r.findBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if isConfirmedWith(booking, reference) {
		return booking, nil
	}

	var (
		property *model.Property
		losers   []*model.Booking
		replay   bool
	)
	err = r.locker.WithPropertyLock(ctx, booking.PropertyID, func(ctx context.Context) error {
		booking, err = r.findBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if isConfirmedWith(booking, reference) {
			replay = true
			return nil
		}
		if booking.CheckoutLapsed(r.now()) {
			return r.lapsedPayment(ctx, booking, reference)
		}
		if err := checkPayable(booking); err != nil {
			return err
		}

		property, err = r.findProperty(ctx, booking.PropertyID)
		if err != nil {
			return err
		}
		if !property.IsAvailable(booking.Range()) {
			return r.failPayment(ctx, booking, reference)
		}

		losers, err = r.bookings.FindLinked(ctx, booking.ID)
		if err != nil {
			return apperrors.Internal("Failed to look up superseded requests", err)
		}
		return r.commit(ctx, booking, reference, bookingIDs(losers))
	})
	if err != nil {
		if !apperrors.IsAppError(err) {
			r.cfg.Log.Error("Failed to confirm payment", "booking_id", bookingID, "reference", reference, "error", err)
			return nil, apperrors.Internal("Failed to confirm payment", err)
		}
		return nil, err
	}
	if replay {
		return booking, nil
	}

	booking.Status = model.BookingConfirmed
	booking.Payment = model.Payment{Status: model.PaymentCompleted, TransactionID: reference}

	r.cfg.Log.Info("Payment confirmed",
		"booking_id", booking.ID,
		"property_id", booking.PropertyID,
		"reference", reference,
		"removed_requests", len(losers),
	)
	r.notifyConfirmed(ctx, property, booking, losers)
	return booking, nil
}

func (r *Reconciler) commit(ctx context.Context, booking *model.Booking, reference string, loserIDs []string) error {
	return r.bookings.ExecuteTransaction(ctx, func(sessCtx context.Context) error {
		if len(loserIDs) > 0 {
			if _, err := r.bookings.DeleteMany(sessCtx, loserIDs); err != nil {
				return apperrors.Internal("Failed to remove superseded requests", err)
			}
			if _, err := r.approvals.DeleteByBookingIDs(sessCtx, loserIDs); err != nil {
				return apperrors.Internal("Failed to remove superseded approvals", err)
			}
		}

		if err := r.bookings.Confirm(sessCtx, booking.ID, reference); err != nil {
			if errors.Is(err, bookingserrors.ErrStatusChanged) {
				return apperrors.Conflict("Booking was modified by another request")
			}
			return apperrors.Internal("Failed to confirm booking", err)
		}

		if err := r.properties.AddOccupiedRange(sessCtx, booking.PropertyID, booking.Range()); err != nil {
			if errors.Is(err, availabilityerrors.ErrRangeTaken) {
				return apperrors.Conflict("The booked dates are no longer available")
			}
			return apperrors.Internal("Failed to record occupancy", err)
		}
		return nil
	})
}

// failPayment marks a payment that arrived for dates that are already taken. The money has
// been captured, so the booking is flagged for a refund.
func (r *Reconciler) failPayment(ctx context.Context, booking *model.Booking, reference string) error {
	if err := r.bookings.FailPayment(ctx, booking.ID, reference); err != nil {
		r.cfg.Log.Error("Failed to mark payment as failed", "booking_id", booking.ID, "error", err)
	}
	r.cfg.Log.Error("Payment captured for unavailable dates, refund required",
		"booking_id", booking.ID,
		"property_id", booking.PropertyID,
		"reference", reference,
		"range", booking.Range().String(),
	)
	return apperrors.Conflict("The booked dates are no longer available; the payment will be refunded").
		WithDetails(map[string]any{"booking_id": booking.ID, "reference": reference})
}

// lapsedPayment records a payment captured after the checkout window closed. The booking has
// forfeited its dates, so the requests it superseded are reactivated.
func (r *Reconciler) lapsedPayment(ctx context.Context, booking *model.Booking, reference string) error {
	err := r.bookings.ExecuteTransaction(ctx, func(sessCtx context.Context) error {
		if err := r.bookings.FailPayment(sessCtx, booking.ID, reference); err != nil {
			return err
		}
		_, err := r.bookings.Reactivate(sessCtx, booking.ID)
		return err
	})
	if err != nil {
		return apperrors.Internal("Failed to record late payment", err)
	}

	r.cfg.Log.Error("Payment captured after checkout window closed, refund required",
		"booking_id", booking.ID,
		"property_id", booking.PropertyID,
		"reference", reference,
		"checkout_expires_at", booking.CheckoutExpiresAt,
	)
	return apperrors.Conflict("The checkout window for this booking has closed; the payment will be refunded").
		WithDetails(map[string]any{"booking_id": booking.ID, "reference": reference})
}

func (r *Reconciler) notifyConfirmed(ctx context.Context, property *model.Property, booking *model.Booking, losers []*model.Booking) {
	dates := map[string]any{
		"booking_id":     booking.ID,
		"property_title": property.Title,
		"start_date":     booking.StartDate.Format(model.DateLayout),
		"end_date":       booking.EndDate.Format(model.DateLayout),
		"reference":      booking.Payment.TransactionID,
	}

	for _, loser := range losers {
		r.notifier.Mail(ctx, notify.Mail{
			Kind:   notify.MailBookingRequestRejected,
			UserID: loser.UserID,
			Data: map[string]any{
				"booking_id":     loser.ID,
				"property_title": property.Title,
				"start_date":     loser.StartDate.Format(model.DateLayout),
				"end_date":       loser.EndDate.Format(model.DateLayout),
			},
		})
	}

	r.notifier.Notify(ctx, notify.Notification{
		UserID: booking.UserID,
		Title:  "Booking Confirmed",
		Body:   fmt.Sprintf("Your stay at %s from %s is confirmed", property.Title, booking.StartDate.Format(model.DateLayout)),
		URL:    "/bookings/" + booking.ID,
	})
	r.notifier.Mail(ctx, notify.Mail{Kind: notify.MailPaymentConfirmedUser, UserID: booking.UserID, Data: dates})

	r.notifier.Notify(ctx, notify.Notification{
		UserID: property.HostID,
		Title:  "New Reservation",
		Body:   fmt.Sprintf("%s is booked from %s to %s", property.Title, booking.StartDate.Format(model.DateLayout), booking.EndDate.Format(model.DateLayout)),
		URL:    "/host/bookings/" + booking.ID,
	})
	r.notifier.Mail(ctx, notify.Mail{Kind: notify.MailPaymentConfirmedHost, UserID: property.HostID, Data: dates})
}

// --- Helpers ---

func isConfirmedWith(booking *model.Booking, reference string) bool {
	return booking.Payment.Status == model.PaymentCompleted && booking.Payment.TransactionID == reference
}

func checkPayable(booking *model.Booking) error {
	switch {
	case booking.Payment.Status == model.PaymentCompleted:
		return apperrors.Conflict("This booking has already been paid with a different reference")
	case booking.Payment.Status == model.PaymentFailed, booking.Status == model.BookingCancelled:
		return apperrors.Conflict("This booking has been cancelled")
	case !booking.EnablePayment:
		return apperrors.Conflict("This booking is not open for payment")
	}
	return nil
}

func bookingIDs(bookings []*model.Booking) []string {
	ids := make([]string, 0, len(bookings))
	for _, b := range bookings {
		ids = append(ids, b.ID)
	}
	return ids
}

func (r *Reconciler) findBooking(ctx context.Context, id string) (*model.Booking, error) {
	booking, err := r.bookings.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid booking ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}
	return booking, nil
}

func (r *Reconciler) findProperty(ctx context.Context, id string) (*model.Property, error) {
	property, err := r.properties.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, availabilityerrors.ErrPropertyNotFound) {
			return nil, apperrors.NotFoundWithID("Property", id)
		}
		return nil, apperrors.Internal("Failed to retrieve property", err)
	}
	return property, nil
}
