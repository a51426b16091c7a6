// Package testutil provides an in-memory stand-in for the Mongo repositories so workflow tests
// can run without a database. ExecuteTransaction snapshots the whole store and restores it when
// the callback fails.
package testutil

import (
	"context"
	"sort"
	availabilityerrors "shortlets/internal/availability/errors"
	propertyrepo "shortlets/internal/availability/repository"
	bookingserrors "shortlets/internal/bookings/errors"
	"shortlets/internal/bookings/repository"
	mongotx "shortlets/pkg/db/mongo"
	"shortlets/pkg/model"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Store struct {
	mu         sync.Mutex
	properties map[string]*model.Property
	bookings   map[string]*model.Booking
	approvals  map[string]*model.Approval
	clock      time.Time

	// FailNext, when set, is returned by the next write and then cleared.
	FailNext error
}

func NewStore() *Store {
	return &Store{
		properties: map[string]*model.Property{},
		bookings:   map[string]*model.Booking{},
		approvals:  map[string]*model.Approval{},
		clock:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Bookings, Approvals and Properties expose the store through the repository interfaces.
func (s *Store) Bookings() repository.BookingRepository { return bookingRepo{s} }
func (s *Store) Approvals() repository.ApprovalRepository { return approvalRepo{s} }
func (s *Store) Properties() propertyrepo.PropertyRepository { return propertyRepo{s} }

func (s *Store) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *Store) failure() error {
	err := s.FailNext
	s.FailNext = nil
	return err
}

func newID() string {
	return primitive.NewObjectID().Hex()
}

// AddProperty inserts p, assigning an ID when it has none.
func (s *Store) AddProperty(p model.Property) *model.Property {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = newID()
	}
	if p.OccupiedRanges == nil {
		p.OccupiedRanges = []model.DateRange{}
	}
	if p.BlockedRanges == nil {
		p.BlockedRanges = []model.DateRange{}
	}
	cp := p
	s.properties[p.ID] = &cp
	out := cp
	return &out
}

// Property returns a copy of the stored property.
func (s *Store) Property(id string) *model.Property {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.properties[id]
	if !ok {
		return nil
	}
	return copyProperty(p)
}

// Booking returns a copy of the stored booking.
func (s *Store) Booking(id string) *model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil
	}
	cp := *b
	return &cp
}

// SetCheckoutExpiry moves the end of a booking's checkout window.
func (s *Store) SetCheckoutExpiry(id string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.bookings[id]; ok {
		at = at.UTC()
		b.CheckoutExpiresAt = &at
	}
}

// Approval returns a copy of the stored approval.
func (s *Store) Approval(id string) *model.Approval {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.approvals[id]
	if !ok {
		return nil
	}
	cp := *a
	return &cp
}

// ApprovalFor returns the approval of bookingID.
func (s *Store) ApprovalFor(bookingID string) *model.Approval {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.approvals {
		if a.BookingID == bookingID {
			cp := *a
			return &cp
		}
	}
	return nil
}

func copyProperty(p *model.Property) *model.Property {
	cp := *p
	cp.OccupiedRanges = append([]model.DateRange{}, p.OccupiedRanges...)
	cp.BlockedRanges = append([]model.DateRange{}, p.BlockedRanges...)
	return &cp
}

func (s *Store) snapshot() (map[string]*model.Property, map[string]*model.Booking, map[string]*model.Approval) {
	props := make(map[string]*model.Property, len(s.properties))
	for k, v := range s.properties {
		props[k] = copyProperty(v)
	}
	bookings := make(map[string]*model.Booking, len(s.bookings))
	for k, v := range s.bookings {
		cp := *v
		bookings[k] = &cp
	}
	approvals := make(map[string]*model.Approval, len(s.approvals))
	for k, v := range s.approvals {
		cp := *v
		approvals[k] = &cp
	}
	return props, bookings, approvals
}

func (s *Store) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	s.mu.Lock()
	props, bookings, approvals := s.snapshot()
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.properties, s.bookings, s.approvals = props, bookings, approvals
		s.mu.Unlock()
		return err
	}
	return nil
}

type bookingRepo struct{ s *Store }

func (r bookingRepo) Create(_ context.Context, booking *model.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure(); err != nil {
		return err
	}
	booking.ID = newID()
	booking.CreatedAt = r.s.tick()
	booking.UpdatedAt = booking.CreatedAt
	cp := *booking
	r.s.bookings[booking.ID] = &cp
	return nil
}

func (r bookingRepo) FindByID(_ context.Context, id string) (*model.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, bookingserrors.ErrInvalidID
	}
	b, ok := r.s.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (r bookingRepo) FindOverlapping(_ context.Context, propertyID string, rng model.DateRange, f repository.OverlapFilter) ([]*model.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Booking
	for _, b := range r.s.bookings {
		if b.PropertyID != propertyID || !b.Range().Overlaps(rng) || b.ID == f.ExcludeID {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		if f.EnablePayment != nil && b.EnablePayment != *f.EnablePayment {
			continue
		}
		if f.IsActive != nil && b.IsActive != *f.IsActive {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r bookingRepo) FindLinked(_ context.Context, winnerID string) ([]*model.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Booking
	for _, b := range r.s.bookings {
		if b.LinkedBookingID == winnerID {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r bookingRepo) Deactivate(_ context.Context, ids []string, winnerID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure(); err != nil {
		return 0, err
	}
	var n int64
	for _, id := range ids {
		b, ok := r.s.bookings[id]
		if !ok || !b.IsActive || b.EnablePayment {
			continue
		}
		b.IsActive = false
		b.LinkedBookingID = winnerID
		b.UpdatedAt = r.s.tick()
		n++
	}
	return n, nil
}

func (r bookingRepo) update(id string, match func(*model.Booking) bool, apply func(*model.Booking)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure(); err != nil {
		return err
	}
	b, ok := r.s.bookings[id]
	if !ok {
		return bookingserrors.ErrNotFound
	}
	if !match(b) {
		return bookingserrors.ErrStatusChanged
	}
	apply(b)
	b.UpdatedAt = r.s.tick()
	return nil
}

func (r bookingRepo) OpenCheckout(_ context.Context, id string, expiresAt time.Time) error {
	return r.update(id,
		func(b *model.Booking) bool {
			return b.Status == model.BookingPending && b.IsActive && !b.EnablePayment
		},
		func(b *model.Booking) {
			at := expiresAt.UTC()
			b.EnablePayment = true
			b.IsActive = false
			b.CheckoutExpiresAt = &at
		})
}

func (r bookingRepo) Confirm(_ context.Context, id string, reference string) error {
	return r.update(id,
		func(b *model.Booking) bool {
			return b.Payment.Status == model.PaymentPending && b.EnablePayment && b.Status == model.BookingPending
		},
		func(b *model.Booking) {
			b.Status = model.BookingConfirmed
			b.Payment = model.Payment{Status: model.PaymentCompleted, TransactionID: reference}
		})
}

func (r bookingRepo) FailPayment(_ context.Context, id string, reference string) error {
	return r.update(id,
		func(b *model.Booking) bool { return b.Payment.Status == model.PaymentPending },
		func(b *model.Booking) {
			b.Status = model.BookingCancelled
			b.Payment = model.Payment{Status: model.PaymentFailed, TransactionID: reference}
		})
}

func (r bookingRepo) Cancel(_ context.Context, id string) error {
	return r.update(id,
		func(b *model.Booking) bool { return b.Status == model.BookingPending },
		func(b *model.Booking) { b.Status = model.BookingCancelled })
}

func (r bookingRepo) Forfeit(_ context.Context, id string) error {
	return r.update(id,
		func(b *model.Booking) bool {
			return b.Status == model.BookingPending && b.EnablePayment && b.Payment.Status == model.PaymentPending
		},
		func(b *model.Booking) {
			b.Status = model.BookingCancelled
			b.EnablePayment = false
		})
}

func (r bookingRepo) Reactivate(_ context.Context, winnerID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure(); err != nil {
		return 0, err
	}
	var n int64
	for _, b := range r.s.bookings {
		if b.LinkedBookingID != winnerID || b.Status != model.BookingPending || b.EnablePayment {
			continue
		}
		b.IsActive = true
		b.LinkedBookingID = ""
		b.UpdatedAt = r.s.tick()
		n++
	}
	return n, nil
}

func (r bookingRepo) DeleteMany(_ context.Context, ids []string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure(); err != nil {
		return 0, err
	}
	var n int64
	for _, id := range ids {
		if _, ok := r.s.bookings[id]; ok {
			delete(r.s.bookings, id)
			n++
		}
	}
	return n, nil
}

func (r bookingRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.s.ExecuteTransaction(ctx, fn)
}

type approvalRepo struct{ s *Store }

func (r approvalRepo) Create(_ context.Context, approval *model.Approval) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure(); err != nil {
		return err
	}
	approval.ID = newID()
	approval.CreatedAt = r.s.tick()
	approval.UpdatedAt = approval.CreatedAt
	cp := *approval
	r.s.approvals[approval.ID] = &cp
	return nil
}

func (r approvalRepo) FindByID(_ context.Context, id string) (*model.Approval, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, bookingserrors.ErrInvalidID
	}
	a, ok := r.s.approvals[id]
	if !ok {
		return nil, bookingserrors.ErrApprovalNotFound
	}
	cp := *a
	return &cp, nil
}

func (r approvalRepo) FindByBookingIDs(_ context.Context, bookingIDs []string, status string) ([]*model.Approval, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	want := make(map[string]bool, len(bookingIDs))
	for _, id := range bookingIDs {
		want[id] = true
	}
	out := []*model.Approval{}
	for _, a := range r.s.approvals {
		if want[a.BookingID] && (status == "" || a.Status == status) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r approvalRepo) UpdateStatus(_ context.Context, id string, from, to string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure(); err != nil {
		return err
	}
	a, ok := r.s.approvals[id]
	if !ok || a.Status != from {
		return bookingserrors.ErrStatusChanged
	}
	a.Status = to
	a.UpdatedAt = r.s.tick()
	return nil
}

func (r approvalRepo) DeleteByBookingIDs(_ context.Context, bookingIDs []string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure(); err != nil {
		return 0, err
	}
	want := make(map[string]bool, len(bookingIDs))
	for _, id := range bookingIDs {
		want[id] = true
	}
	var n int64
	for id, a := range r.s.approvals {
		if want[a.BookingID] {
			delete(r.s.approvals, id)
			n++
		}
	}
	return n, nil
}

func (r approvalRepo) pendingFor(propertyID string) []*model.Approval {
	var out []*model.Approval
	for _, a := range r.s.approvals {
		if a.PropertyID == propertyID && a.Status == model.ApprovalPending {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r approvalRepo) FindPendingByProperty(_ context.Context, propertyID string, limit int, offset int64) ([]*model.Approval, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	all := r.pendingFor(propertyID)
	if offset >= int64(len(all)) {
		return []*model.Approval{}, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r approvalRepo) CountPendingByProperty(_ context.Context, propertyID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.pendingFor(propertyID))), nil
}

type propertyRepo struct{ s *Store }

func (r propertyRepo) FindByID(_ context.Context, id string) (*model.Property, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, availabilityerrors.ErrInvalidID
	}
	p, ok := r.s.properties[id]
	if !ok {
		return nil, availabilityerrors.ErrPropertyNotFound
	}
	return copyProperty(p), nil
}

func (r propertyRepo) SetBlockedRanges(_ context.Context, id string, ranges []model.DateRange) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure(); err != nil {
		return err
	}
	p, ok := r.s.properties[id]
	if !ok {
		return availabilityerrors.ErrPropertyNotFound
	}
	p.BlockedRanges = append([]model.DateRange{}, ranges...)
	return nil
}

func (r propertyRepo) AddOccupiedRange(_ context.Context, id string, rng model.DateRange) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure(); err != nil {
		return err
	}
	p, ok := r.s.properties[id]
	if !ok {
		return availabilityerrors.ErrPropertyNotFound
	}
	if rng.OverlapsAny(p.OccupiedRanges) {
		return availabilityerrors.ErrRangeTaken
	}
	p.OccupiedRanges = append(p.OccupiedRanges, rng)
	sort.Slice(p.OccupiedRanges, func(i, j int) bool {
		return p.OccupiedRanges[i].Start.Before(p.OccupiedRanges[j].Start)
	})
	return nil
}
