package service

import (
	"context"
	"errors"
	"shortlets/internal/bookings/validator"
	"shortlets/internal/checkout"
	"shortlets/internal/conflicts"
	"shortlets/internal/testutil"
	apperrors "shortlets/pkg/errors"
	"shortlets/pkg/model"
	"shortlets/pkg/notify"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store    *testutil.Store
	notifier *testutil.Notifier
	window   *checkout.Window
	svc      BookingService
	property *model.Property
}

func newFixture(t *testing.T, instant bool) *fixture {
	store := testutil.NewStore()
	notifier := &testutil.Notifier{}
	cfg := testutil.Config()
	window := checkout.NewWindow(testutil.CheckoutSecret)

	property := store.AddProperty(model.Property{
		HostID:         "host-1",
		Title:          "Victoria Island penthouse",
		InstantBooking: instant,
	})

	svc := NewBookingService(
		store.Bookings(),
		store.Approvals(),
		store.Properties(),
		conflicts.NewDetector(store.Bookings(), store.Approvals()),
		window,
		testutil.Locker(),
		notifier,
		validator.NewBookingValidator(cfg.Log),
		cfg,
	)
	return &fixture{store: store, notifier: notifier, window: window, svc: svc, property: property}
}

// future returns a YYYY-MM-DD date days from now.
func future(days int) string {
	return time.Now().UTC().AddDate(0, 0, days).Format(model.DateLayout)
}

func (f *fixture) request(userID string, startIn, endIn int) *model.BookingRequest {
	return &model.BookingRequest{
		PropertyID: f.property.ID,
		StartDate:  future(startIn),
		EndDate:    future(endIn),
		Guests:     2,
		Message:    "  Arriving late,\x00 sorry  ",
		UserID:     userID,
	}
}

func TestCreate_RequestNeedsApproval(t *testing.T) {
	f := newFixture(t, false)

	booking, approval, err := f.svc.Create(context.Background(), f.request("guest-1", 10, 15))
	require.NoError(t, err)
	require.NotNil(t, approval)

	assert.Equal(t, model.BookingPending, booking.Status)
	assert.Equal(t, model.PaymentPending, booking.Payment.Status)
	assert.True(t, booking.IsActive)
	assert.False(t, booking.EnablePayment)
	assert.Equal(t, 5, booking.Nights)

	assert.Equal(t, booking.ID, approval.BookingID)
	assert.Equal(t, f.property.ID, approval.PropertyID)
	assert.Equal(t, model.ApprovalPending, approval.Status)
	assert.Equal(t, "Arriving late, sorry", approval.Message)

	assert.Equal(t, []string{notify.MailBookingRequest}, f.notifier.MailsTo("host-1"))
	require.Len(t, f.notifier.Notifications(), 1)
	assert.Equal(t, "Booking Request", f.notifier.Notifications()[0].Title)
}

func TestCreate_InstantBooking(t *testing.T) {
	f := newFixture(t, true)

	booking, approval, err := f.svc.Create(context.Background(), f.request("guest-1", 10, 15))
	require.NoError(t, err)
	assert.Nil(t, approval)
	assert.True(t, booking.EnablePayment)
	assert.False(t, booking.IsActive)
	assert.Empty(t, f.notifier.MailsTo("host-1"))

	_, _, err = f.svc.Create(context.Background(), f.request("guest-2", 12, 13))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict), "an unpaid instant booking holds its dates")
}

func TestCreate_UnavailableDates(t *testing.T) {
	f := newFixture(t, false)
	occupied, err := model.ParseDateRange(future(12), future(14))
	require.NoError(t, err)
	require.NoError(t, f.store.Properties().AddOccupiedRange(context.Background(), f.property.ID, occupied))

	_, _, err = f.svc.Create(context.Background(), f.request("guest-1", 14, 16))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
}

func TestCreate_PreLinksToSingleWinner(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	winner, _, err := f.svc.Create(ctx, f.request("guest-1", 10, 15))
	require.NoError(t, err)
	require.NoError(t, f.store.Bookings().OpenCheckout(ctx, winner.ID, time.Now().Add(time.Hour)))

	late, approval, err := f.svc.Create(ctx, f.request("guest-2", 14, 20))
	require.NoError(t, err)
	require.NotNil(t, approval)
	assert.False(t, late.IsActive)
	assert.Equal(t, winner.ID, late.LinkedBookingID)

	apart, _, err := f.svc.Create(ctx, f.request("guest-3", 30, 32))
	require.NoError(t, err)
	assert.True(t, apart.IsActive)
	assert.Empty(t, apart.LinkedBookingID)
}

func TestCreate_LapsedWinnerForfeitsDates(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	stale, _, err := f.svc.Create(ctx, f.request("guest-1", 10, 15))
	require.NoError(t, err)
	superseded, _, err := f.svc.Create(ctx, f.request("guest-2", 12, 13))
	require.NoError(t, err)
	require.NoError(t, f.store.Bookings().OpenCheckout(ctx, stale.ID, time.Now().Add(-72*time.Hour)))
	_, err = f.store.Bookings().Deactivate(ctx, []string{superseded.ID}, stale.ID)
	require.NoError(t, err)

	late, approval, err := f.svc.Create(ctx, f.request("guest-3", 14, 20))
	require.NoError(t, err)
	require.NotNil(t, approval)
	assert.True(t, late.IsActive)
	assert.Empty(t, late.LinkedBookingID)

	assert.Equal(t, model.BookingCancelled, f.store.Booking(stale.ID).Status)
	back := f.store.Booking(superseded.ID)
	assert.True(t, back.IsActive)
	assert.Empty(t, back.LinkedBookingID)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t, false)

	req := f.request("guest-1", 10, 15)
	req.StartDate = future(-2)
	_, _, err := f.svc.Create(context.Background(), req)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, _, err = f.svc.Create(context.Background(), f.request("host-1", 10, 12))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	req = f.request("guest-1", 10, 15)
	req.PropertyID = "64b7f0c2a1b2c3d4e5f60718"
	_, _, err = f.svc.Create(context.Background(), req)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestCreate_RollsBackOnApprovalFailure(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	booking, _, err := f.svc.Create(ctx, f.request("guest-1", 10, 15))
	require.NoError(t, err)

	// the approval insert fails after the booking insert succeeded
	failing := &failingApprovals{Store: f.store}
	svc := f.svc.(*bookingService)
	svc.approvals = failing
	_, _, err = svc.Create(ctx, f.request("guest-2", 40, 45))
	require.Error(t, err)

	pending, count, err := f.svc.ListPendingApprovals(ctx, "host-1", f.property.ID, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	assert.Equal(t, booking.ID, pending[0].BookingID)
}

type failingApprovals struct {
	*testutil.Store
}

func (f *failingApprovals) Create(context.Context, *model.Approval) error {
	return errors.New("write conflict")
}

func (f *failingApprovals) FindByID(ctx context.Context, id string) (*model.Approval, error) {
	return f.Store.Approvals().FindByID(ctx, id)
}

func (f *failingApprovals) FindByBookingIDs(ctx context.Context, ids []string, status string) ([]*model.Approval, error) {
	return f.Store.Approvals().FindByBookingIDs(ctx, ids, status)
}

func (f *failingApprovals) UpdateStatus(ctx context.Context, id, from, to string) error {
	return f.Store.Approvals().UpdateStatus(ctx, id, from, to)
}

func (f *failingApprovals) DeleteByBookingIDs(ctx context.Context, ids []string) (int64, error) {
	return f.Store.Approvals().DeleteByBookingIDs(ctx, ids)
}

func (f *failingApprovals) FindPendingByProperty(ctx context.Context, propertyID string, limit int, offset int64) ([]*model.Approval, error) {
	return f.Store.Approvals().FindPendingByProperty(ctx, propertyID, limit, offset)
}

func (f *failingApprovals) CountPendingByProperty(ctx context.Context, propertyID string) (int64, error) {
	return f.Store.Approvals().CountPendingByProperty(ctx, propertyID)
}

func TestGetByID_Access(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	booking, _, err := f.svc.Create(ctx, f.request("guest-1", 10, 15))
	require.NoError(t, err)

	_, err = f.svc.GetByID(ctx, "guest-1", booking.ID)
	assert.NoError(t, err)
	_, err = f.svc.GetByID(ctx, "host-1", booking.ID)
	assert.NoError(t, err)
	_, err = f.svc.GetByID(ctx, "stranger", booking.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
	_, err = f.svc.GetByID(ctx, "guest-1", "nope")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
}

func TestGetForCheckout(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	booking, _, err := f.svc.Create(ctx, f.request("guest-1", 10, 15))
	require.NoError(t, err)

	token, err := f.window.Issue(booking.ID, 3, time.Now().Add(10*24*time.Hour))
	require.NoError(t, err)

	got, err := f.svc.GetForCheckout(ctx, "guest-1", booking.ID, f.property.ID, token.Value)
	require.NoError(t, err)
	assert.Equal(t, booking.ID, got.ID)

	_, err = f.svc.GetForCheckout(ctx, "guest-2", booking.ID, f.property.ID, token.Value)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))

	_, err = f.svc.GetForCheckout(ctx, "guest-1", booking.ID, "64b7f0c2a1b2c3d4e5f60718", token.Value)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	_, err = f.svc.GetForCheckout(ctx, "guest-1", booking.ID, f.property.ID, "forged")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))

	require.NoError(t, f.store.Bookings().OpenCheckout(ctx, booking.ID, time.Now().Add(time.Hour)))
	require.NoError(t, f.store.Bookings().Confirm(ctx, booking.ID, "ref-1"))
	_, err = f.svc.GetForCheckout(ctx, "guest-1", booking.ID, f.property.ID, token.Value)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
}

func TestListPendingApprovals(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, _, err := f.svc.Create(ctx, f.request("guest-1", 10+i*10, 12+i*10))
		require.NoError(t, err)
	}

	page, total, err := f.svc.ListPendingApprovals(ctx, "host-1", f.property.ID, 2, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, page, 2)

	page, _, err = f.svc.ListPendingApprovals(ctx, "host-1", f.property.ID, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page, 1)

	_, _, err = f.svc.ListPendingApprovals(ctx, "guest-1", f.property.ID, 2, 0)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}
