package service

import (
	"context"
	"errors"
	"fmt"
	availabilityerrors "shortlets/internal/availability/errors"
	propertyrepo "shortlets/internal/availability/repository"
	bookingserrors "shortlets/internal/bookings/errors"
	"shortlets/internal/bookings/repository"
	"shortlets/internal/bookings/validator"
	"shortlets/internal/checkout"
	"shortlets/internal/conflicts"
	"shortlets/pkg/config"
	apperrors "shortlets/pkg/errors"
	"shortlets/pkg/lock"
	"shortlets/pkg/model"
	"shortlets/pkg/notify"
	"time"
)

// Result is the outcome of a host decision.
type Result struct {
	Approval    *model.Approval `json:"approval"`
	Booking     *model.Booking  `json:"booking"`
	Deactivated []string        `json:"deactivated_booking_ids,omitempty"`
	CheckoutURL string          `json:"checkout_url,omitempty"`
	ExpiresAt   *time.Time      `json:"checkout_expires_at,omitempty"`
	Token       string          `json:"-"`
}

type ApprovalService interface {
	// Approve opens checkout for the approval's booking and deactivates every active pending
	// request overlapping it. When such requests exist confirmOverlap must be set, otherwise
	// a confirmation-required error is returned and nothing changes.
	Approve(ctx context.Context, hostID, approvalID string, expireHours int, confirmOverlap bool) (*Result, error)
	// Reject cancels the approval's booking. Competing requests are left untouched.
	Reject(ctx context.Context, hostID, approvalID string) (*Result, error)
}

type approvalService struct {
	bookings   repository.BookingRepository
	approvals  repository.ApprovalRepository
	properties propertyrepo.PropertyRepository
	detector   *conflicts.Detector
	window     *checkout.Window
	locker     lock.Locker
	notifier   notify.Notifier
	validator  *validator.BookingValidator
	cfg        *config.Config
}

func NewApprovalService(
	bookings repository.BookingRepository,
	approvals repository.ApprovalRepository,
	properties propertyrepo.PropertyRepository,
	detector *conflicts.Detector,
	window *checkout.Window,
	locker lock.Locker,
	notifier notify.Notifier,
	validator *validator.BookingValidator,
	cfg *config.Config,
) ApprovalService {
	return &approvalService{
		bookings:   bookings,
		approvals:  approvals,
		properties: properties,
		detector:   detector,
		window:     window,
		locker:     locker,
		notifier:   notifier,
		validator:  validator,
		cfg:        cfg,
	}
}

// subject is an approval loaded together with its booking and property.
type subject struct {
	approval *model.Approval
	booking  *model.Booking
	property *model.Property
}

func (s *approvalService) Approve(ctx context.Context, hostID, approvalID string, expireHours int, confirmOverlap bool) (*Result, error) {
	subj, err := s.load(ctx, hostID, approvalID)
	if err != nil {
		return nil, err
	}

	var result *Result
	err = s.locker.WithPropertyLock(ctx, subj.property.ID, func(ctx context.Context) error {
		var err error
		result, err = s.approveLocked(ctx, subj.approval.ID, subj.booking.ID, subj.property.ID, expireHours, confirmOverlap)
		return err
	})
	if err != nil {
		if !apperrors.IsAppError(err) {
			s.cfg.Log.Error("Failed to approve booking request", "approval_id", approvalID, "error", err)
			return nil, apperrors.Internal("Failed to approve booking request", err)
		}
		return nil, err
	}

	s.cfg.Log.Info("Booking request approved",
		"approval_id", result.Approval.ID,
		"booking_id", result.Booking.ID,
		"property_id", subj.property.ID,
		"deactivated", len(result.Deactivated),
		"checkout_expires_at", result.ExpiresAt,
	)
	s.notifyApproved(ctx, subj.property, result)
	return result, nil
}

func (s *approvalService) approveLocked(ctx context.Context, approvalID, bookingID, propertyID string, expireHours int, confirmOverlap bool) (*Result, error) {
	// state may have moved while we waited for the lock
	approval, err := s.findApproval(ctx, approvalID)
	if err != nil {
		return nil, err
	}
	if approval.Status != model.ApprovalPending {
		return nil, apperrors.Conflict("This booking request has already been " + approval.Status)
	}
	booking, err := s.findBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	released, err := s.detector.ReleaseExpired(ctx, propertyID, booking.Range())
	if err != nil {
		return nil, err
	}
	if len(released) > 0 {
		s.cfg.Log.Info("Forfeited lapsed checkouts", "property_id", propertyID, "booking_ids", released)
		// this request may have been one of the superseded ones
		if booking, err = s.findBooking(ctx, bookingID); err != nil {
			return nil, err
		}
	}
	if booking.Status != model.BookingPending || booking.EnablePayment || !booking.IsActive {
		return nil, apperrors.Conflict("This booking request can no longer be approved").
			WithDetails(map[string]any{
				"status":            booking.Status,
				"linked_booking_id": booking.LinkedBookingID,
			})
	}
	property, err := s.findProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}

	rng := booking.Range()
	if !property.IsAvailable(rng) {
		return nil, apperrors.Conflict("The requested dates are no longer available").
			WithDetails(map[string]any{"range": rng.String()})
	}

	winners, err := s.detector.FindWinners(ctx, propertyID, rng, booking.ID)
	if err != nil {
		return nil, err
	}
	if len(winners) > 0 {
		return nil, apperrors.Conflict("Another booking for these dates is awaiting payment").
			WithDetails(map[string]any{"booking_id": winners[0].ID})
	}

	competitors, err := s.detector.FindConflicts(ctx, propertyID, rng, conflicts.Query{
		ExcludeBookingID: booking.ID,
		ActiveOnly:       true,
	})
	if err != nil {
		return nil, err
	}
	competitorIDs := conflicts.IDs(competitors)
	if len(competitorIDs) > 0 && !confirmOverlap {
		return nil, apperrors.ConfirmationRequired(
			fmt.Sprintf("Approving this request will decline %d overlapping request(s)", len(competitorIDs)),
			map[string]any{"booking_ids": competitorIDs},
		)
	}
	if err := s.validator.ValidateCheckoutHours(expireHours); err != nil {
		return nil, apperrors.Validation("Invalid checkout window", map[string]any{"error": err.Error()})
	}

	checkIn, err := property.CheckInTime(booking.StartDate, s.cfg.Location())
	if err != nil {
		return nil, apperrors.Internal("Failed to resolve check-in time", err)
	}
	token, err := s.window.Issue(booking.ID, expireHours, checkIn)
	if err != nil {
		return nil, err
	}

	err = s.bookings.ExecuteTransaction(ctx, func(sessCtx context.Context) error {
		if len(competitorIDs) > 0 {
			if _, err := s.bookings.Deactivate(sessCtx, competitorIDs, booking.ID); err != nil {
				return apperrors.Internal("Failed to deactivate competing requests", err)
			}
		}
		if err := s.bookings.OpenCheckout(sessCtx, booking.ID, token.ExpiresAt); err != nil {
			return s.mapTransitionError(err, "Booking")
		}
		if err := s.approvals.UpdateStatus(sessCtx, approval.ID, model.ApprovalPending, model.ApprovalApproved); err != nil {
			return s.mapTransitionError(err, "Approval")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	approval.Status = model.ApprovalApproved
	expiresAt := token.ExpiresAt
	booking.EnablePayment = true
	booking.IsActive = false
	booking.CheckoutExpiresAt = &expiresAt

	return &Result{
		Approval:    approval,
		Booking:     booking,
		Deactivated: competitorIDs,
		CheckoutURL: checkout.Link(s.cfg.CheckoutBaseURL, booking, token),
		ExpiresAt:   &expiresAt,
		Token:       token.Value,
	}, nil
}

func (s *approvalService) notifyApproved(ctx context.Context, property *model.Property, result *Result) {
	booking := result.Booking
	s.notifier.Notify(ctx, notify.Notification{
		UserID: booking.UserID,
		Title:  "Booking Approved",
		Body: fmt.Sprintf("Your request for %s was approved. Complete payment before %s",
			property.Title,
			result.ExpiresAt.UTC().Format(time.RFC1123),
		),
		URL: result.CheckoutURL,
	})
	s.notifier.Mail(ctx, notify.Mail{
		Kind:   notify.MailBookingRequestApproved,
		UserID: booking.UserID,
		Data: map[string]any{
			"booking_id":     booking.ID,
			"property_title": property.Title,
			"start_date":     booking.StartDate.Format(model.DateLayout),
			"end_date":       booking.EndDate.Format(model.DateLayout),
			"checkout_link":  result.CheckoutURL,
			"expires_at":     result.ExpiresAt.UTC().Format(time.RFC3339),
		},
	})
}

func (s *approvalService) Reject(ctx context.Context, hostID, approvalID string) (*Result, error) {
	subj, err := s.load(ctx, hostID, approvalID)
	if err != nil {
		return nil, err
	}

	err = s.locker.WithPropertyLock(ctx, subj.property.ID, func(ctx context.Context) error {
		return s.bookings.ExecuteTransaction(ctx, func(sessCtx context.Context) error {
			if err := s.approvals.UpdateStatus(sessCtx, subj.approval.ID, model.ApprovalPending, model.ApprovalRejected); err != nil {
				return s.mapTransitionError(err, "Approval")
			}
			if err := s.bookings.Cancel(sessCtx, subj.booking.ID); err != nil {
				return s.mapTransitionError(err, "Booking")
			}
			return nil
		})
	})
	if err != nil {
		if !apperrors.IsAppError(err) {
			s.cfg.Log.Error("Failed to reject booking request", "approval_id", approvalID, "error", err)
			return nil, apperrors.Internal("Failed to reject booking request", err)
		}
		return nil, err
	}

	subj.approval.Status = model.ApprovalRejected
	subj.booking.Status = model.BookingCancelled

	s.cfg.Log.Info("Booking request rejected",
		"approval_id", subj.approval.ID,
		"booking_id", subj.booking.ID,
		"property_id", subj.property.ID,
	)

	s.notifier.Notify(ctx, notify.Notification{
		UserID: subj.booking.UserID,
		Title:  "Booking Declined",
		Body:   fmt.Sprintf("Your request for %s was declined by the host", subj.property.Title),
	})
	s.notifier.Mail(ctx, notify.Mail{
		Kind:   notify.MailBookingRequestRejected,
		UserID: subj.booking.UserID,
		Data: map[string]any{
			"booking_id":     subj.booking.ID,
			"property_title": subj.property.Title,
			"start_date":     subj.booking.StartDate.Format(model.DateLayout),
			"end_date":       subj.booking.EndDate.Format(model.DateLayout),
		},
	})

	return &Result{Approval: subj.approval, Booking: subj.booking}, nil
}

// --- Helpers ---

// load resolves an approval for its host. Everything here is checked before the lock is taken
// and before anything is written.
func (s *approvalService) load(ctx context.Context, hostID, approvalID string) (*subject, error) {
	approval, err := s.findApproval(ctx, approvalID)
	if err != nil {
		return nil, err
	}
	booking, err := s.findBooking(ctx, approval.BookingID)
	if err != nil {
		return nil, err
	}
	property, err := s.findProperty(ctx, booking.PropertyID)
	if err != nil {
		return nil, err
	}

	if property.HostID != hostID {
		s.cfg.Log.Warn("Approval decision by non-host rejected",
			"approval_id", approvalID,
			"property_id", property.ID,
			"caller_id", hostID,
		)
		return nil, apperrors.Forbidden("Only the host can decide on this booking request")
	}
	if approval.IsResolved() {
		return nil, apperrors.Conflict("This booking request has already been " + approval.Status)
	}
	return &subject{approval: approval, booking: booking, property: property}, nil
}

func (s *approvalService) mapTransitionError(err error, resource string) error {
	switch {
	case errors.Is(err, bookingserrors.ErrStatusChanged):
		return apperrors.Conflict(resource + " was modified by another request")
	case errors.Is(err, bookingserrors.ErrNotFound), errors.Is(err, bookingserrors.ErrApprovalNotFound):
		return apperrors.NotFound(resource)
	}
	return apperrors.Internal("Failed to update "+resource, err)
}

func (s *approvalService) findApproval(ctx context.Context, id string) (*model.Approval, error) {
	approval, err := s.approvals.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrApprovalNotFound) {
			return nil, apperrors.NotFoundWithID("Approval", id)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid approval ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve approval", err)
	}
	return approval, nil
}

func (s *approvalService) findBooking(ctx context.Context, id string) (*model.Booking, error) {
	booking, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}
	return booking, nil
}

func (s *approvalService) findProperty(ctx context.Context, id string) (*model.Property, error) {
	property, err := s.properties.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, availabilityerrors.ErrPropertyNotFound) {
			return nil, apperrors.NotFoundWithID("Property", id)
		}
		return nil, apperrors.Internal("Failed to retrieve property", err)
	}
	return property, nil
}
