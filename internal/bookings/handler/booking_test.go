package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	apperrors "shortlets/pkg/errors"
	"shortlets/pkg/logger"
	"shortlets/pkg/middleware"
	"shortlets/pkg/model"
	"strings"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockBookingService struct {
	createFunc      func(ctx context.Context, req *model.BookingRequest) (*model.Booking, *model.Approval, error)
	getByIDFunc     func(ctx context.Context, callerID, id string) (*model.Booking, error)
	getCheckoutFunc func(ctx context.Context, callerID, bookingID, propertyID, token string) (*model.Booking, error)
	listPendingFunc func(ctx context.Context, hostID, propertyID string, limit int, offset int64) ([]*model.Approval, int64, error)
}

func (m *mockBookingService) Create(ctx context.Context, req *model.BookingRequest) (*model.Booking, *model.Approval, error) {
	return m.createFunc(ctx, req)
}

func (m *mockBookingService) GetByID(ctx context.Context, callerID, id string) (*model.Booking, error) {
	return m.getByIDFunc(ctx, callerID, id)
}

func (m *mockBookingService) GetForCheckout(ctx context.Context, callerID, bookingID, propertyID, token string) (*model.Booking, error) {
	return m.getCheckoutFunc(ctx, callerID, bookingID, propertyID, token)
}

func (m *mockBookingService) ListPendingApprovals(ctx context.Context, hostID, propertyID string, limit int, offset int64) ([]*model.Approval, int64, error) {
	return m.listPendingFunc(ctx, hostID, propertyID, limit, offset)
}

func serve(svc *mockBookingService, req *http.Request) *httptest.ResponseRecorder {
	router := httprouter.New()
	NewBookingHandler(svc, logger.New(logger.Config{Output: io.Discard})).RegisterRoutes(router)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func asCaller(req *http.Request, id string) *http.Request {
	return req.WithContext(middleware.WithCallerID(req.Context(), id))
}

func TestCreate_UsesCallerIdentity(t *testing.T) {
	svc := &mockBookingService{
		createFunc: func(_ context.Context, req *model.BookingRequest) (*model.Booking, *model.Approval, error) {
			assert.Equal(t, "guest-1", req.UserID)
			return &model.Booking{ID: "b1", UserID: req.UserID}, &model.Approval{ID: "a1", BookingID: "b1"}, nil
		},
	}

	body := `{"property_id":"64b7f0c2a1b2c3d4e5f60718","start_date":"2030-07-10","end_date":"2030-07-12","guests":2}`
	req := asCaller(httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(body)), "guest-1")
	rec := serve(svc, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		Data CreateBookingResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "b1", resp.Data.Booking.ID)
	assert.Equal(t, "a1", resp.Data.Approval.ID)
}

func TestCreate_RejectsUserIDInBody(t *testing.T) {
	body := `{"property_id":"64b7f0c2a1b2c3d4e5f60718","start_date":"2030-07-10","end_date":"2030-07-12","guests":2,"user_id":"someone-else"}`
	req := asCaller(httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(body)), "guest-1")
	rec := serve(&mockBookingService{}, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreate_Anonymous(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(`{}`))
	rec := serve(&mockBookingService{}, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetForCheckout_PassesQuery(t *testing.T) {
	svc := &mockBookingService{
		getCheckoutFunc: func(_ context.Context, callerID, bookingID, propertyID, token string) (*model.Booking, error) {
			assert.Equal(t, "guest-1", callerID)
			assert.Equal(t, "b1", bookingID)
			assert.Equal(t, "p1", propertyID)
			assert.Equal(t, "tok", token)
			return nil, apperrors.Unauthorized("Checkout link has expired")
		},
	}

	req := asCaller(httptest.NewRequest(http.MethodGet, "/api/v1/bookings/b1/checkout?property_id=p1&token=tok", nil), "guest-1")
	rec := serve(svc, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListPendingApprovals_Paginates(t *testing.T) {
	svc := &mockBookingService{
		listPendingFunc: func(_ context.Context, hostID, propertyID string, limit int, offset int64) ([]*model.Approval, int64, error) {
			assert.Equal(t, "host-1", hostID)
			assert.Equal(t, 5, limit)
			assert.EqualValues(t, 10, offset)
			return []*model.Approval{{ID: "a1"}}, 11, nil
		},
	}

	req := asCaller(httptest.NewRequest(http.MethodGet, "/api/v1/properties/p1/approvals?limit=5&offset=10", nil), "host-1")
	rec := serve(svc, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		TotalCount int64 `json:"total_count"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.EqualValues(t, 11, resp.TotalCount)
}
