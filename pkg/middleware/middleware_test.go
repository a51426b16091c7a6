package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apperrors "shortlets/pkg/errors"
	"shortlets/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "session-secret-0123456789"

func quietLogger() *logger.Logger {
	return logger.New(logger.Config{Output: io.Discard})
}

func echoCaller() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, CallerID(r.Context()))
	})
}

func TestAuthenticate(t *testing.T) {
	valid, err := IssueSessionToken(testSecret, "user-1", time.Hour)
	require.NoError(t, err)
	expired, err := IssueSessionToken(testSecret, "user-1", -time.Minute)
	require.NoError(t, err)
	foreign, err := IssueSessionToken("another-secret-0123456789", "user-1", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"anonymous passes", "", http.StatusOK, ""},
		{"valid token", "Bearer " + valid, http.StatusOK, "user-1"},
		{"expired token", "Bearer " + expired, http.StatusUnauthorized, ""},
		{"wrong secret", "Bearer " + foreign, http.StatusUnauthorized, ""},
		{"not bearer", "Basic abc", http.StatusUnauthorized, ""},
	}

	h := Authenticate(testSecret, quietLogger())(echoCaller())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestRequireCaller(t *testing.T) {
	_, err := RequireCaller(context.Background())
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))

	id, err := RequireCaller(WithCallerID(context.Background(), "u"))
	require.NoError(t, err)
	assert.Equal(t, "u", id)
}

func TestGatewaySignatureVerification(t *testing.T) {
	secret := "gateway-secret"
	body := `{"event":"charge.success","data":{"reference":"ref-1"}}`

	var seen string
	h := GatewaySignatureVerification(secret, quietLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		seen = string(b)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", strings.NewReader(body))
	req.Header.Set(HeaderGatewaySignature, SignGatewayPayload([]byte(body), secret))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, body, seen, "body must be restored for the handler")

	req = httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", strings.NewReader(body))
	req.Header.Set(HeaderGatewaySignature, SignGatewayPayload([]byte(body+" "), secret))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", strings.NewReader(body))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVerifyGatewaySignature_EmptySecretNeverMatches(t *testing.T) {
	assert.False(t, VerifyGatewaySignature([]byte("x"), SignGatewayPayload([]byte("x"), ""), ""))
}

func TestRateLimit_PerCaller(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute, quietLogger())
	defer rl.Stop()

	h := RateLimit(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	call := func(user string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", nil)
		req = req.WithContext(WithCallerID(req.Context(), user))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("a"))
	assert.Equal(t, http.StatusOK, call("a"))
	assert.Equal(t, http.StatusTooManyRequests, call("a"))
	assert.Equal(t, http.StatusOK, call("b"))
}

func TestIdempotency_ReplaysSuccess(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()

	calls := 0
	h := Idempotency(store, quietLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"b1"}`)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", nil)
		req.Header.Set(HeaderIdempotencyKey, "k-1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, `{"id":"b1"}`, rec.Body.String())
	}
	assert.Equal(t, 1, calls)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", nil)
	req = req.WithContext(WithCallerID(req.Context(), "someone-else"))
	req.Header.Set(HeaderIdempotencyKey, "k-1")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, 2, calls, "same key from another caller must not replay")
}

func TestIdempotency_DoesNotCacheFailures(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()

	calls := 0
	h := Idempotency(store, quietLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = apperrors.WriteError(w, apperrors.ConcurrencyConflict("busy"))
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/approvals/a1/decision", nil)
		req.Header.Set(HeaderIdempotencyKey, "k-2")
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, 2, calls)
}

func TestMaxRequestSize(t *testing.T) {
	h := MaxRequestSize(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
		}
	}))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123"))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestContentTypeValidation(t *testing.T) {
	h := ContentTypeValidation(quietLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestLogging_PropagatesRequestID(t *testing.T) {
	var seen string
	h := RequestLogging(quietLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.RequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(HeaderRequestID, "client-req-0001")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "client-req-0001", seen)
	assert.Equal(t, "client-req-0001", rec.Header().Get(HeaderRequestID))
}

func TestRequestTimeout(t *testing.T) {
	h := RequestTimeout(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}
