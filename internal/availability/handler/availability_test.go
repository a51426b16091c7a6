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
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAvailabilityService struct {
	isAvailableFunc  func(ctx context.Context, propertyID string, start, end time.Time) (bool, error)
	checkBookingFunc func(ctx context.Context, callerID, bookingID, token string) (*model.Booking, error)
	blockFunc        func(ctx context.Context, hostID, propertyID string, start, end time.Time) (*model.Property, error)
}

func (m *mockAvailabilityService) IsAvailable(ctx context.Context, propertyID string, start, end time.Time) (bool, error) {
	return m.isAvailableFunc(ctx, propertyID, start, end)
}

func (m *mockAvailabilityService) CheckBooking(ctx context.Context, callerID, bookingID, token string) (*model.Booking, error) {
	return m.checkBookingFunc(ctx, callerID, bookingID, token)
}

func (m *mockAvailabilityService) BlockDates(ctx context.Context, hostID, propertyID string, start, end time.Time) (*model.Property, error) {
	return m.blockFunc(ctx, hostID, propertyID, start, end)
}

func (m *mockAvailabilityService) UnblockDates(ctx context.Context, hostID, propertyID string, start, end time.Time) (*model.Property, error) {
	return m.blockFunc(ctx, hostID, propertyID, start, end)
}

func newRouter(svc *mockAvailabilityService) *httprouter.Router {
	router := httprouter.New()
	NewAvailabilityHandler(svc, logger.New(logger.Config{Output: io.Discard})).RegisterRoutes(router)
	return router
}

func TestIsAvailable_Handler(t *testing.T) {
	svc := &mockAvailabilityService{
		isAvailableFunc: func(_ context.Context, propertyID string, start, end time.Time) (bool, error) {
			assert.Equal(t, "p1", propertyID)
			assert.Equal(t, "2024-07-10", start.Format(model.DateLayout))
			assert.Equal(t, "2024-07-15", end.Format(model.DateLayout))
			return true, nil
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/properties/p1/availability?start_date=2024-07-10&end_date=2024-07-15", nil)
	newRouter(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data AvailabilityResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.True(t, body.Data.Available)
}

func TestIsAvailable_BadDates(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/properties/p1/availability?start_date=2024-07-15&end_date=2024-07-10", nil)
	newRouter(&mockAvailabilityService{}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIsAvailable_NotFound(t *testing.T) {
	svc := &mockAvailabilityService{
		isAvailableFunc: func(context.Context, string, time.Time, time.Time) (bool, error) {
			return false, apperrors.NotFoundWithID("Property", "p1")
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/properties/p1/availability?start_date=2024-07-10&end_date=2024-07-15", nil)
	newRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBlockDates_RequiresCaller(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/properties/p1/blocks", strings.NewReader(`{"start_date":"2024-07-10","end_date":"2024-07-12"}`))
	newRouter(&mockAvailabilityService{}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBlockDates_PassesHost(t *testing.T) {
	var gotHost string
	svc := &mockAvailabilityService{
		blockFunc: func(_ context.Context, hostID, propertyID string, start, end time.Time) (*model.Property, error) {
			gotHost = hostID
			return &model.Property{ID: propertyID, BlockedRanges: []model.DateRange{{Start: start, End: end}}}, nil
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/properties/p1/blocks", strings.NewReader(`{"start_date":"2024-07-10","end_date":"2024-07-12"}`))
	req = req.WithContext(middleware.WithCallerID(req.Context(), "host-1"))
	newRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "host-1", gotHost)
}

func TestBlockDates_UnknownField(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/properties/p1/blocks", strings.NewReader(`{"start_date":"2024-07-10","end_date":"2024-07-12","reason":"x"}`))
	req = req.WithContext(middleware.WithCallerID(req.Context(), "host-1"))
	newRouter(&mockAvailabilityService{}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
