package service

import (
	"context"
	"errors"
	availabilityerrors "shortlets/internal/availability/errors"
	"shortlets/internal/availability/repository"
	bookingserrors "shortlets/internal/bookings/errors"
	bookingsrepo "shortlets/internal/bookings/repository"
	"shortlets/internal/checkout"
	"shortlets/pkg/config"
	apperrors "shortlets/pkg/errors"
	"shortlets/pkg/lock"
	"shortlets/pkg/model"
	"time"
)

type AvailabilityService interface {
	IsAvailable(ctx context.Context, propertyID string, start, end time.Time) (bool, error)
	// CheckBooking is the pre-payment check: the booking belongs to callerID, its checkout
	// window is open and its dates are still free.
	CheckBooking(ctx context.Context, callerID, bookingID, token string) (*model.Booking, error)
	BlockDates(ctx context.Context, hostID, propertyID string, start, end time.Time) (*model.Property, error)
	UnblockDates(ctx context.Context, hostID, propertyID string, start, end time.Time) (*model.Property, error)
}

type availabilityService struct {
	properties repository.PropertyRepository
	bookings   bookingsrepo.BookingRepository
	window     *checkout.Window
	locker     lock.Locker
	cfg        *config.Config
	now        func() time.Time
}

func NewAvailabilityService(
	properties repository.PropertyRepository,
	bookings bookingsrepo.BookingRepository,
	window *checkout.Window,
	locker lock.Locker,
	cfg *config.Config,
) AvailabilityService {
	return &availabilityService{
		properties: properties,
		bookings:   bookings,
		window:     window,
		locker:     locker,
		cfg:        cfg,
		now:        time.Now,
	}
}

func (s *availabilityService) IsAvailable(ctx context.Context, propertyID string, start, end time.Time) (bool, error) {
	rng, err := model.NewDateRange(start, end)
	if err != nil {
		return false, apperrors.Validation(err.Error(), nil)
	}

	property, err := s.findProperty(ctx, propertyID)
	if err != nil {
		return false, err
	}
	return property.IsAvailable(rng), nil
}

func (s *availabilityService) CheckBooking(ctx context.Context, callerID, bookingID, token string) (*model.Booking, error) {
	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) || errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, apperrors.NotFoundWithID("Booking", bookingID)
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}

	if booking.UserID != callerID {
		s.cfg.Log.Warn("Check-booking by non-owner rejected",
			"booking_id", bookingID,
			"caller_id", callerID,
		)
		return nil, apperrors.Unauthorized("You are not allowed to pay for this booking")
	}

	if booking.Payment.Status == model.PaymentCompleted {
		return nil, apperrors.Conflict("This booking has already been paid")
	}
	if booking.Status != model.BookingPending || !booking.EnablePayment {
		return nil, apperrors.Conflict("This booking is not open for payment")
	}

	if token != "" {
		if _, err := s.window.Validate(token, bookingID); err != nil {
			return nil, err
		}
	} else if booking.CheckoutExpiresAt != nil && s.now().After(*booking.CheckoutExpiresAt) {
		return nil, apperrors.Unauthorized("Checkout link has expired")
	}

	property, err := s.findProperty(ctx, booking.PropertyID)
	if err != nil {
		return nil, err
	}
	if !property.IsAvailable(booking.Range()) {
		return nil, apperrors.Conflict("The date you selected for this booking is no longer available, so we cannot process the payment")
	}

	return booking, nil
}

func (s *availabilityService) BlockDates(ctx context.Context, hostID, propertyID string, start, end time.Time) (*model.Property, error) {
	rng, err := model.NewDateRange(start, end)
	if err != nil {
		return nil, apperrors.Validation(err.Error(), nil)
	}

	var updated *model.Property
	err = s.locker.WithPropertyLock(ctx, propertyID, func(ctx context.Context) error {
		property, err := s.hostProperty(ctx, hostID, propertyID)
		if err != nil {
			return err
		}

		// a range that swallows whole blocks is merged; one that starts or ends inside a block is refused
		for _, b := range property.BlockedRanges {
			if b.Contains(rng.Start) || b.Contains(rng.End) {
				return apperrors.Conflict("These dates overlap a range that is already blocked").
					WithDetails(map[string]any{"range": rng.String(), "blocked": b.String()})
			}
		}

		blocked := model.MergeRanges(append(property.BlockedRanges, rng))
		if err := s.properties.SetBlockedRanges(ctx, propertyID, blocked); err != nil {
			return s.mapPropertyError(err, propertyID, "Failed to block dates")
		}
		property.BlockedRanges = blocked
		updated = property
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cfg.Log.Info("Dates blocked",
		"property_id", propertyID,
		"range", rng.String(),
	)
	return updated, nil
}

func (s *availabilityService) UnblockDates(ctx context.Context, hostID, propertyID string, start, end time.Time) (*model.Property, error) {
	rng, err := model.NewDateRange(start, end)
	if err != nil {
		return nil, apperrors.Validation(err.Error(), nil)
	}

	var updated *model.Property
	err = s.locker.WithPropertyLock(ctx, propertyID, func(ctx context.Context) error {
		property, err := s.hostProperty(ctx, hostID, propertyID)
		if err != nil {
			return err
		}

		blocked := model.SubtractRange(property.BlockedRanges, rng)
		if err := s.properties.SetBlockedRanges(ctx, propertyID, blocked); err != nil {
			return s.mapPropertyError(err, propertyID, "Failed to unblock dates")
		}
		property.BlockedRanges = blocked
		updated = property
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cfg.Log.Info("Dates unblocked",
		"property_id", propertyID,
		"range", rng.String(),
	)
	return updated, nil
}

func (s *availabilityService) hostProperty(ctx context.Context, hostID, propertyID string) (*model.Property, error) {
	property, err := s.findProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if property.HostID != hostID {
		return nil, apperrors.Forbidden("Only the host can change this property's calendar")
	}
	return property, nil
}

func (s *availabilityService) findProperty(ctx context.Context, propertyID string) (*model.Property, error) {
	property, err := s.properties.FindByID(ctx, propertyID)
	if err != nil {
		return nil, s.mapPropertyError(err, propertyID, "Failed to retrieve property")
	}
	return property, nil
}

func (s *availabilityService) mapPropertyError(err error, propertyID, msg string) error {
	switch {
	case errors.Is(err, availabilityerrors.ErrPropertyNotFound):
		return apperrors.NotFoundWithID("Property", propertyID)
	case errors.Is(err, availabilityerrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid property ID format")
	case apperrors.IsAppError(err):
		return err
	}
	s.cfg.Log.Error(msg, "property_id", propertyID, "error", err)
	return apperrors.Internal(msg, err)
}
