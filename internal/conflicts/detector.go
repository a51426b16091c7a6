// Package conflicts finds booking requests that compete for the same dates.
package conflicts

import (
	"context"
	"shortlets/internal/bookings/repository"
	apperrors "shortlets/pkg/errors"
	"shortlets/pkg/model"
	"sort"
	"time"
)

// Query narrows FindConflicts. An empty ApprovalStatus means pending.
type Query struct {
	ExcludeBookingID string
	ApprovalStatus   string
	ActiveOnly       bool
}

// Conflict is a competing request: a booking that is not yet payable and its approval.
type Conflict struct {
	Booking  *model.Booking  `json:"booking"`
	Approval *model.Approval `json:"approval"`
}

type Detector struct {
	bookings  repository.BookingRepository
	approvals repository.ApprovalRepository
	now       func() time.Time
}

func NewDetector(bookings repository.BookingRepository, approvals repository.ApprovalRepository) *Detector {
	return &Detector{bookings: bookings, approvals: approvals, now: time.Now}
}

// FindConflicts returns pending requests on propertyID whose dates overlap rng, oldest first.
// Bookings already opened for payment are never returned; see FindWinners.
func (d *Detector) FindConflicts(ctx context.Context, propertyID string, rng model.DateRange, q Query) ([]Conflict, error) {
	notPayable := false
	filter := repository.OverlapFilter{
		ExcludeID:     q.ExcludeBookingID,
		Status:        model.BookingPending,
		EnablePayment: &notPayable,
	}
	if q.ActiveOnly {
		active := true
		filter.IsActive = &active
	}

	bookings, err := d.bookings.FindOverlapping(ctx, propertyID, rng, filter)
	if err != nil {
		return nil, apperrors.Internal("Failed to look up overlapping bookings", err)
	}
	if len(bookings) == 0 {
		return []Conflict{}, nil
	}

	status := q.ApprovalStatus
	if status == "" {
		status = model.ApprovalPending
	}
	ids := make([]string, 0, len(bookings))
	for _, b := range bookings {
		ids = append(ids, b.ID)
	}
	approvals, err := d.approvals.FindByBookingIDs(ctx, ids, status)
	if err != nil {
		return nil, apperrors.Internal("Failed to look up competing approvals", err)
	}

	byBooking := make(map[string]*model.Approval, len(approvals))
	for _, a := range approvals {
		byBooking[a.BookingID] = a
	}

	conflicts := make([]Conflict, 0, len(approvals))
	for _, b := range bookings {
		if a, ok := byBooking[b.ID]; ok {
			conflicts = append(conflicts, Conflict{Booking: b, Approval: a})
		}
	}
	sort.SliceStable(conflicts, func(i, j int) bool {
		return conflicts[i].Booking.CreatedAt.Before(conflicts[j].Booking.CreatedAt)
	})
	return conflicts, nil
}

// FindWinners returns bookings on propertyID overlapping rng that are open for payment but not
// yet paid. Instant bookings awaiting payment are included. Winners whose checkout window has
// lapsed no longer hold the dates and are left out.
func (d *Detector) FindWinners(ctx context.Context, propertyID string, rng model.DateRange, excludeID string) ([]*model.Booking, error) {
	payable, err := d.payable(ctx, propertyID, rng, excludeID)
	if err != nil {
		return nil, err
	}

	now := d.now()
	winners := make([]*model.Booking, 0, len(payable))
	for _, b := range payable {
		if !b.CheckoutLapsed(now) {
			winners = append(winners, b)
		}
	}
	return winners, nil
}

// ReleaseExpired forfeits every winner overlapping rng whose checkout window has lapsed and puts
// the requests it superseded back into contention. It returns the forfeited booking IDs.
// Callers must hold the property lock.
func (d *Detector) ReleaseExpired(ctx context.Context, propertyID string, rng model.DateRange) ([]string, error) {
	payable, err := d.payable(ctx, propertyID, rng, "")
	if err != nil {
		return nil, err
	}

	now := d.now()
	var expired []string
	for _, b := range payable {
		if b.CheckoutLapsed(now) {
			expired = append(expired, b.ID)
		}
	}
	if len(expired) == 0 {
		return nil, nil
	}

	err = d.bookings.ExecuteTransaction(ctx, func(sessCtx context.Context) error {
		for _, id := range expired {
			if err := d.bookings.Forfeit(sessCtx, id); err != nil {
				return apperrors.Internal("Failed to forfeit expired checkout", err)
			}
			if _, err := d.bookings.Reactivate(sessCtx, id); err != nil {
				return apperrors.Internal("Failed to reactivate superseded requests", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expired, nil
}

func (d *Detector) payable(ctx context.Context, propertyID string, rng model.DateRange, excludeID string) ([]*model.Booking, error) {
	enabled := true
	bookings, err := d.bookings.FindOverlapping(ctx, propertyID, rng, repository.OverlapFilter{
		ExcludeID:     excludeID,
		Status:        model.BookingPending,
		EnablePayment: &enabled,
	})
	if err != nil {
		return nil, apperrors.Internal("Failed to look up approved bookings", err)
	}
	return bookings, nil
}

// LinkTarget decides whether a new request for rng starts out superseded. When exactly one
// approved-but-unpaid booking overlaps it, that booking's ID is returned.
func (d *Detector) LinkTarget(ctx context.Context, propertyID string, rng model.DateRange) (string, error) {
	winners, err := d.FindWinners(ctx, propertyID, rng, "")
	if err != nil {
		return "", err
	}
	if len(winners) == 1 {
		return winners[0].ID, nil
	}
	return "", nil
}

// IDs returns the booking IDs of conflicts in order.
func IDs(conflicts []Conflict) []string {
	ids := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		ids = append(ids, c.Booking.ID)
	}
	return ids
}
