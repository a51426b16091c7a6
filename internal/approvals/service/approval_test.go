package service

import (
	"context"
	"errors"
	"shortlets/internal/bookings/repository"
	"shortlets/internal/bookings/validator"
	"shortlets/internal/checkout"
	"shortlets/internal/conflicts"
	"shortlets/internal/testutil"
	apperrors "shortlets/pkg/errors"
	"shortlets/pkg/model"
	"shortlets/pkg/notify"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store    *testutil.Store
	notifier *testutil.Notifier
	window   *checkout.Window
	svc      ApprovalService
	property *model.Property
}

func newFixture(t *testing.T) *fixture {
	store := testutil.NewStore()
	notifier := &testutil.Notifier{}
	cfg := testutil.Config()
	window := checkout.NewWindow(testutil.CheckoutSecret)

	property := store.AddProperty(model.Property{
		HostID: "host-1",
		Title:  "Lekki loft",
	})

	svc := NewApprovalService(
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

// request stores a pending, active request for days [startIn, endIn] from today.
func (f *fixture) request(t *testing.T, guest string, startIn, endIn int) (*model.Booking, *model.Approval) {
	t.Helper()
	ctx := context.Background()
	today := model.AsDate(time.Now().UTC())

	booking := &model.Booking{
		PropertyID: f.property.ID,
		UserID:     guest,
		StartDate:  today.AddDate(0, 0, startIn),
		EndDate:    today.AddDate(0, 0, endIn),
		Guests:     1,
		Nights:     endIn - startIn,
		Status:     model.BookingPending,
		Payment:    model.Payment{Status: model.PaymentPending},
		IsActive:   true,
	}
	require.NoError(t, f.store.Bookings().Create(ctx, booking))

	approval := &model.Approval{
		BookingID:  booking.ID,
		PropertyID: f.property.ID,
		UserID:     guest,
		Status:     model.ApprovalPending,
	}
	require.NoError(t, f.store.Approvals().Create(ctx, approval))
	return booking, approval
}

func TestApprove_SingleWinnerAmongOverlapping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	winner, winnerApproval := f.request(t, "guest-1", 10, 15)
	b2, a2 := f.request(t, "guest-2", 14, 20)
	b3, _ := f.request(t, "guest-3", 8, 10)
	apart, _ := f.request(t, "guest-4", 30, 32)

	result, err := f.svc.Approve(ctx, "host-1", winnerApproval.ID, 3, true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{b2.ID, b3.ID}, result.Deactivated)
	assert.NotEmpty(t, result.Token)
	assert.Contains(t, result.CheckoutURL, testutil.CheckoutBase+"/checkout?")

	got := f.store.Booking(winner.ID)
	assert.True(t, got.EnablePayment)
	assert.False(t, got.IsActive)
	require.NotNil(t, got.CheckoutExpiresAt)
	assert.Equal(t, model.ApprovalApproved, f.store.Approval(winnerApproval.ID).Status)

	for _, id := range []string{b2.ID, b3.ID} {
		loser := f.store.Booking(id)
		assert.False(t, loser.IsActive, id)
		assert.False(t, loser.EnablePayment, id)
		assert.Equal(t, winner.ID, loser.LinkedBookingID, id)
	}
	// losers keep their approval pending until the winner pays
	assert.Equal(t, model.ApprovalPending, f.store.Approval(a2.ID).Status)

	untouched := f.store.Booking(apart.ID)
	assert.True(t, untouched.IsActive)
	assert.Empty(t, untouched.LinkedBookingID)

	verdict, err := f.window.Validate(result.Token, winner.ID)
	require.NoError(t, err)
	assert.Equal(t, checkout.VerdictOK, verdict)

	assert.Equal(t, []string{notify.MailBookingRequestApproved}, f.notifier.MailsTo("guest-1"))
	assert.Empty(t, f.notifier.MailsTo("guest-2"))
}

func TestApprove_ConfirmationRequiredMutatesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b1, a1 := f.request(t, "guest-1", 10, 15)
	b2, a2 := f.request(t, "guest-2", 15, 18)
	beforeB1, beforeB2 := f.store.Booking(b1.ID), f.store.Booking(b2.ID)
	beforeA1, beforeA2 := f.store.Approval(a1.ID), f.store.Approval(a2.ID)

	_, err := f.svc.Approve(ctx, "host-1", a1.ID, 3, false)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConfirmationRequired))
	assert.Equal(t, []string{b2.ID}, apperrors.AsAppError(err).Details["booking_ids"])

	assert.Equal(t, beforeB1, f.store.Booking(b1.ID))
	assert.Equal(t, beforeB2, f.store.Booking(b2.ID))
	assert.Equal(t, beforeA1, f.store.Approval(a1.ID))
	assert.Equal(t, beforeA2, f.store.Approval(a2.ID))
	assert.Empty(t, f.notifier.Mails())
}

func TestApprove_NoConflictsNeedsNoConfirmation(t *testing.T) {
	f := newFixture(t)

	booking, approval := f.request(t, "guest-1", 10, 15)
	result, err := f.svc.Approve(context.Background(), "host-1", approval.ID, model.MaxCheckoutHours, false)
	require.NoError(t, err)
	assert.Empty(t, result.Deactivated)
	assert.True(t, f.store.Booking(booking.ID).EnablePayment)
}

func TestApprove_ExpireHoursOutOfRange(t *testing.T) {
	f := newFixture(t)
	booking, approval := f.request(t, "guest-1", 10, 15)

	for _, hours := range []int{0, 13} {
		_, err := f.svc.Approve(context.Background(), "host-1", approval.ID, hours, true)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation), "hours=%d", hours)
	}
	assert.False(t, f.store.Booking(booking.ID).EnablePayment)
}

func TestApprove_ConfirmationCheckedBeforeExpireHours(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b1, a1 := f.request(t, "guest-1", 10, 15)
	b2, _ := f.request(t, "guest-2", 12, 18)

	_, err := f.svc.Approve(ctx, "host-1", a1.ID, 0, false)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConfirmationRequired))

	_, err = f.svc.Approve(ctx, "host-1", a1.ID, 0, true)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	assert.False(t, f.store.Booking(b1.ID).EnablePayment)
	assert.True(t, f.store.Booking(b2.ID).IsActive, "nothing is deactivated when the window is invalid")
}

func TestApprove_WindowMustCloseBeforeCheckIn(t *testing.T) {
	f := newFixture(t)
	booking, approval := f.request(t, "guest-1", 0, 2)

	_, err := f.svc.Approve(context.Background(), "host-1", approval.ID, 1, true)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	assert.False(t, f.store.Booking(booking.ID).EnablePayment)
	assert.Equal(t, model.ApprovalPending, f.store.Approval(approval.ID).Status)
}

func TestApprove_BlockedWhileAnotherWinnerAwaitsPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, a1 := f.request(t, "guest-1", 10, 15)
	_, err := f.svc.Approve(ctx, "host-1", a1.ID, 3, false)
	require.NoError(t, err)

	// a later request for overlapping dates that was never deactivated
	_, a2 := f.request(t, "guest-2", 14, 20)
	_, err = f.svc.Approve(ctx, "host-1", a2.ID, 3, true)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
}

// lapsedWinner turns a pending request into a winner whose checkout window closed hoursAgo.
func (f *fixture) lapsedWinner(t *testing.T, booking *model.Booking, approval *model.Approval, hoursAgo int) {
	t.Helper()
	ctx := context.Background()
	closed := time.Now().Add(-time.Duration(hoursAgo) * time.Hour)
	require.NoError(t, f.store.Bookings().OpenCheckout(ctx, booking.ID, closed))
	require.NoError(t, f.store.Approvals().UpdateStatus(ctx, approval.ID, model.ApprovalPending, model.ApprovalApproved))
}

func TestApprove_LapsedWinnerForfeitsDates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stale, staleApproval := f.request(t, "guest-1", 10, 15)
	other, otherApproval := f.request(t, "guest-2", 14, 20)
	f.lapsedWinner(t, stale, staleApproval, 72)

	result, err := f.svc.Approve(ctx, "host-1", otherApproval.ID, 3, false)
	require.NoError(t, err)
	assert.Empty(t, result.Deactivated)
	assert.True(t, f.store.Booking(other.ID).EnablePayment)

	forfeited := f.store.Booking(stale.ID)
	assert.Equal(t, model.BookingCancelled, forfeited.Status)
	assert.False(t, forfeited.EnablePayment)
}

func TestApprove_SupersededRequestReturnsAfterLapse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stale, staleApproval := f.request(t, "guest-1", 10, 15)
	loser, loserApproval := f.request(t, "guest-2", 12, 13)
	_, err := f.svc.Approve(ctx, "host-1", staleApproval.ID, 3, true)
	require.NoError(t, err)
	require.Equal(t, stale.ID, f.store.Booking(loser.ID).LinkedBookingID)

	// window still open: the loser cannot win
	_, err = f.svc.Approve(ctx, "host-1", loserApproval.ID, 3, true)
	require.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	f.store.SetCheckoutExpiry(stale.ID, time.Now().Add(-time.Hour))

	result, err := f.svc.Approve(ctx, "host-1", loserApproval.ID, 3, false)
	require.NoError(t, err)
	assert.Equal(t, loser.ID, result.Booking.ID)
	got := f.store.Booking(loser.ID)
	assert.True(t, got.EnablePayment)
	assert.Empty(t, got.LinkedBookingID)
	assert.Equal(t, model.BookingCancelled, f.store.Booking(stale.ID).Status)
}

func TestApprove_DeactivatedRequestCannotWin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, a1 := f.request(t, "guest-1", 10, 15)
	loser, a2 := f.request(t, "guest-2", 12, 13)
	_, err := f.svc.Approve(ctx, "host-1", a1.ID, 3, true)
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, "host-1", a2.ID, 3, true)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
	assert.False(t, f.store.Booking(loser.ID).EnablePayment)
}

func TestApprove_DatesTakenMeanwhile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	booking, approval := f.request(t, "guest-1", 10, 15)
	require.NoError(t, f.store.Properties().AddOccupiedRange(ctx, f.property.ID, booking.Range()))

	_, err := f.svc.Approve(ctx, "host-1", approval.ID, 3, true)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
}

func TestApprove_Access(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, approval := f.request(t, "guest-1", 10, 15)

	_, err := f.svc.Approve(ctx, "guest-1", approval.ID, 3, true)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = f.svc.Approve(ctx, "host-1", "64b7f0c2a1b2c3d4e5f60718", 3, true)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	_, err = f.svc.Approve(ctx, "host-1", "not-an-id", 3, true)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
}

func TestApprove_AlreadyResolved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, approval := f.request(t, "guest-1", 10, 15)

	_, err := f.svc.Reject(ctx, "host-1", approval.ID)
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, "host-1", approval.ID, 3, true)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
	_, err = f.svc.Reject(ctx, "host-1", approval.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
}

func TestApprove_ConcurrentApprovalsElectOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var approvals []*model.Approval
	var bookings []*model.Booking
	for i := 0; i < 4; i++ {
		b, a := f.request(t, "guest", 10+i, 16+i)
		bookings = append(bookings, b)
		approvals = append(approvals, a)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for _, a := range approvals {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := f.svc.Approve(ctx, "host-1", id, 3, true); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(a.ID)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	payable := 0
	var winnerID string
	for _, b := range bookings {
		if f.store.Booking(b.ID).EnablePayment {
			payable++
			winnerID = b.ID
		}
	}
	require.Equal(t, 1, payable)
	for _, b := range bookings {
		if b.ID == winnerID {
			continue
		}
		got := f.store.Booking(b.ID)
		assert.False(t, got.IsActive)
		assert.Equal(t, winnerID, got.LinkedBookingID)
	}
}

func TestReject_TouchesOnlyTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	target, approval := f.request(t, "guest-1", 10, 15)
	other, otherApproval := f.request(t, "guest-2", 12, 14)
	beforeOther := f.store.Booking(other.ID)
	beforeOtherApproval := f.store.Approval(otherApproval.ID)

	result, err := f.svc.Reject(ctx, "host-1", approval.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ApprovalRejected, result.Approval.Status)
	assert.Equal(t, model.BookingCancelled, result.Booking.Status)

	assert.Equal(t, model.BookingCancelled, f.store.Booking(target.ID).Status)
	assert.Equal(t, model.ApprovalRejected, f.store.Approval(approval.ID).Status)
	assert.Equal(t, beforeOther, f.store.Booking(other.ID))
	assert.Equal(t, beforeOtherApproval, f.store.Approval(otherApproval.ID))

	assert.Equal(t, []string{notify.MailBookingRequestRejected}, f.notifier.MailsTo("guest-1"))
	assert.Empty(t, f.notifier.MailsTo("guest-2"))
}

func TestReject_RollsBackOnFailure(t *testing.T) {
	f := newFixture(t)
	_, approval := f.request(t, "guest-1", 10, 15)

	// the approval flips, then the booking write fails
	svc := f.svc.(*approvalService)
	svc.bookings = &failingCancel{BookingRepository: f.store.Bookings()}

	_, err := svc.Reject(context.Background(), "host-1", approval.ID)
	require.Error(t, err)
	assert.Equal(t, model.ApprovalPending, f.store.Approval(approval.ID).Status)
	assert.Empty(t, f.notifier.Mails())
}

type failingCancel struct {
	repository.BookingRepository
}

func (f *failingCancel) Cancel(context.Context, string) error {
	return errors.New("write conflict")
}
