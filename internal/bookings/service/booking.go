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
	"shortlets/pkg/sanitizer"
	"sync"
)

type BookingService interface {
	// Create submits a booking request. Instant-bookable properties are booked directly and no
	// approval is returned.
	Create(ctx context.Context, req *model.BookingRequest) (*model.Booking, *model.Approval, error)
	GetByID(ctx context.Context, callerID, id string) (*model.Booking, error)
	// GetForCheckout returns an unpaid booking to its owner. A non-empty token must be a live
	// checkout token for the booking.
	GetForCheckout(ctx context.Context, callerID, bookingID, propertyID, token string) (*model.Booking, error)
	ListPendingApprovals(ctx context.Context, hostID, propertyID string, limit int, offset int64) ([]*model.Approval, int64, error)
}

type bookingService struct {
	repo       repository.BookingRepository
	approvals  repository.ApprovalRepository
	properties propertyrepo.PropertyRepository
	detector   *conflicts.Detector
	window     *checkout.Window
	locker     lock.Locker
	notifier   notify.Notifier
	validator  *validator.BookingValidator
	cfg        *config.Config
}

func NewBookingService(
	repo repository.BookingRepository,
	approvals repository.ApprovalRepository,
	properties propertyrepo.PropertyRepository,
	detector *conflicts.Detector,
	window *checkout.Window,
	locker lock.Locker,
	notifier notify.Notifier,
	validator *validator.BookingValidator,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:       repo,
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

func (s *bookingService) Create(ctx context.Context, req *model.BookingRequest) (*model.Booking, *model.Approval, error) {
	s.sanitize(req)
	rng, err := s.validator.Validate(req, s.cfg.Location())
	if err != nil {
		s.cfg.Log.Warn("Booking request validation failed", "property_id", req.PropertyID, "error", err)
		return nil, nil, apperrors.Validation("Invalid booking request", map[string]any{"error": err.Error()})
	}

	property, err := s.findProperty(ctx, req.PropertyID)
	if err != nil {
		return nil, nil, err
	}
	if property.HostID == req.UserID {
		return nil, nil, apperrors.Forbidden("Hosts cannot book their own property")
	}

	booking := &model.Booking{
		PropertyID: property.ID,
		UserID:     req.UserID,
		StartDate:  rng.Start,
		EndDate:    rng.End,
		Guests:     req.Guests,
		Nights:     rng.Nights(),
		TotalCost:  req.TotalCost,
		Status:     model.BookingPending,
		Payment:    model.Payment{Status: model.PaymentPending},
	}

	var approval *model.Approval
	err = s.locker.WithPropertyLock(ctx, property.ID, func(ctx context.Context) error {
		// re-read under the lock; the first read may be stale
		current, err := s.findProperty(ctx, property.ID)
		if err != nil {
			return err
		}
		if !current.IsAvailable(rng) {
			return apperrors.Conflict("The selected dates are not available").
				WithDetails(map[string]any{"range": rng.String()})
		}

		released, err := s.detector.ReleaseExpired(ctx, property.ID, rng)
		if err != nil {
			return err
		}
		if len(released) > 0 {
			s.cfg.Log.Info("Forfeited lapsed checkouts", "property_id", property.ID, "booking_ids", released)
		}

		if current.InstantBooking {
			return s.createInstant(ctx, booking, rng)
		}
		approval, err = s.createRequest(ctx, booking, rng, req.Message)
		return err
	})
	if err != nil {
		if !apperrors.IsAppError(err) {
			s.cfg.Log.Error("Failed to create booking", "property_id", property.ID, "error", err)
			return nil, nil, apperrors.Internal("Failed to create booking", err)
		}
		return nil, nil, err
	}

	s.cfg.Log.Info("Booking created successfully",
		"booking_id", booking.ID,
		"property_id", booking.PropertyID,
		"range", rng.String(),
		"instant", property.InstantBooking,
		"linked_booking_id", booking.LinkedBookingID,
	)

	if approval != nil {
		s.notifyHostOfRequest(ctx, property, booking, approval)
	} else {
		s.notifier.Notify(ctx, notify.Notification{
			UserID: property.HostID,
			Title:  "New Booking",
			Body:   fmt.Sprintf("%s was instantly booked for %s", property.Title, rng.String()),
		})
	}
	return booking, approval, nil
}

// createInstant books directly; the booking is payable at once and takes no part in approvals.
func (s *bookingService) createInstant(ctx context.Context, booking *model.Booking, rng model.DateRange) error {
	winners, err := s.detector.FindWinners(ctx, booking.PropertyID, rng, "")
	if err != nil {
		return err
	}
	if len(winners) > 0 {
		return apperrors.Conflict("The selected dates are awaiting payment by another guest")
	}

	booking.EnablePayment = true
	booking.IsActive = false
	if err := s.repo.Create(ctx, booking); err != nil {
		return apperrors.Internal("Failed to create booking", err)
	}
	return nil
}

func (s *bookingService) createRequest(ctx context.Context, booking *model.Booking, rng model.DateRange, message string) (*model.Approval, error) {
	linkTo, err := s.detector.LinkTarget(ctx, booking.PropertyID, rng)
	if err != nil {
		return nil, err
	}
	booking.IsActive = linkTo == ""
	booking.LinkedBookingID = linkTo

	approval := &model.Approval{
		PropertyID: booking.PropertyID,
		UserID:     booking.UserID,
		Message:    message,
		Status:     model.ApprovalPending,
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx context.Context) error {
		if err := s.repo.Create(sessCtx, booking); err != nil {
			return apperrors.Internal("Failed to create booking", err)
		}
		approval.BookingID = booking.ID
		if err := s.approvals.Create(sessCtx, approval); err != nil {
			return apperrors.Internal("Failed to create approval request", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return approval, nil
}

func (s *bookingService) notifyHostOfRequest(ctx context.Context, property *model.Property, booking *model.Booking, approval *model.Approval) {
	s.notifier.Notify(ctx, notify.Notification{
		UserID: property.HostID,
		Title:  "Booking Request",
		Body: fmt.Sprintf("You have a new booking request for %s from %s to %s",
			property.Title,
			booking.StartDate.Format(model.DateLayout),
			booking.EndDate.Format(model.DateLayout),
		),
		URL: "/host/approvals/" + approval.ID,
	})
	s.notifier.Mail(ctx, notify.Mail{
		Kind:   notify.MailBookingRequest,
		UserID: property.HostID,
		Data: map[string]any{
			"approval_id":    approval.ID,
			"booking_id":     booking.ID,
			"property_title": property.Title,
			"start_date":     booking.StartDate.Format(model.DateLayout),
			"end_date":       booking.EndDate.Format(model.DateLayout),
			"guests":         booking.Guests,
			"message":        approval.Message,
		},
	})
}

func (s *bookingService) GetByID(ctx context.Context, callerID, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.findBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.UserID == callerID {
		return booking, nil
	}

	property, err := s.findProperty(ctx, booking.PropertyID)
	if err != nil {
		return nil, err
	}
	if property.HostID != callerID {
		return nil, apperrors.Forbidden("You are not allowed to view this booking")
	}
	return booking, nil
}

func (s *bookingService) GetForCheckout(ctx context.Context, callerID, bookingID, propertyID, token string) (*model.Booking, error) {
	booking, err := s.findBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if propertyID != "" && booking.PropertyID != propertyID {
		return nil, apperrors.NotFoundWithID("Booking", bookingID)
	}
	if booking.UserID != callerID {
		return nil, apperrors.Unauthorized("You are not allowed to check out this booking")
	}
	if booking.Payment.Status == model.PaymentCompleted {
		return nil, apperrors.Conflict("This booking has already been paid")
	}

	if token != "" {
		if _, err := s.window.Validate(token, bookingID); err != nil {
			s.cfg.Log.Warn("Checkout token rejected", "booking_id", bookingID, "error", err)
			return nil, err
		}
	}
	return booking, nil
}

func (s *bookingService) ListPendingApprovals(ctx context.Context, hostID, propertyID string, limit int, offset int64) ([]*model.Approval, int64, error) {
	property, err := s.findProperty(ctx, propertyID)
	if err != nil {
		return nil, 0, err
	}
	if property.HostID != hostID {
		return nil, 0, apperrors.Forbidden("Only the host can review booking requests")
	}

	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var approvals []*model.Approval
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		var err error
		count, err = s.approvals.CountPendingByProperty(ctx, propertyID)
		if err != nil {
			s.cfg.Log.Error("Failed to count pending approvals", "property_id", propertyID, "error", err)
			errCount = apperrors.Internal("Failed to count pending approvals", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		approvals, err = s.approvals.FindPendingByProperty(ctx, propertyID, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to list pending approvals",
				"property_id", propertyID,
				"limit", limit,
				"offset", offset,
				"error", err,
			)
			errFind = apperrors.Internal("Failed to retrieve pending approvals", err)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	if approvals == nil {
		approvals = []*model.Approval{}
	}
	return approvals, count, nil
}

// --- Helpers ---

func (s *bookingService) sanitize(req *model.BookingRequest) {
	req.PropertyID = sanitizer.SanitizeID(req.PropertyID)
	req.Message = sanitizer.SanitizeMessage(req.Message)
}

func (s *bookingService) findBooking(ctx context.Context, id string) (*model.Booking, error) {
	booking, err := s.repo.FindByID(ctx, id)
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

func (s *bookingService) findProperty(ctx context.Context, id string) (*model.Property, error) {
	property, err := s.properties.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, availabilityerrors.ErrPropertyNotFound) {
			return nil, apperrors.NotFoundWithID("Property", id)
		}
		if errors.Is(err, availabilityerrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid property ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve property", err)
	}
	return property, nil
}
