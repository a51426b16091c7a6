package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without underlying error",
			appErr:   NotFound("Booking"),
			expected: "NOT_FOUND: Booking not found",
		},
		{
			name:     "with underlying error",
			appErr:   Internal("Failed to confirm booking", errors.New("write conflict")),
			expected: "INTERNAL_ERROR: Failed to confirm booking (caused by: write conflict)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.appErr.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestConstructors_StatusAndCode(t *testing.T) {
	tests := []struct {
		name      string
		err       *AppError
		code      string
		status    int
		retryable bool
	}{
		{"not found", NotFoundWithID("Booking", "b1"), CodeNotFound, http.StatusNotFound, false},
		{"validation", Validation("bad dates", nil), CodeValidation, http.StatusUnprocessableEntity, false},
		{"invalid input", InvalidInput("bad json"), CodeInvalidInput, http.StatusBadRequest, false},
		{"unauthorized", Unauthorized("token expired"), CodeUnauthorized, http.StatusUnauthorized, false},
		{"forbidden", Forbidden("not the host"), CodeForbidden, http.StatusForbidden, false},
		{"conflict", Conflict("dates taken"), CodeConflict, http.StatusConflict, false},
		{"concurrency", ConcurrencyConflict("property busy"), CodeConcurrencyConflict, http.StatusConflict, true},
		{"confirmation", ConfirmationRequired("confirm", nil), CodeConfirmationRequired, http.StatusConflict, false},
		{"payment", PaymentFailed("Declined", nil), CodePaymentFailed, http.StatusPaymentRequired, false},
		{"timeout", Timeout("slow"), CodeTimeout, http.StatusGatewayTimeout, false},
		{"unavailable", Unavailable("Payment gateway"), CodeUnavailable, http.StatusServiceUnavailable, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("code = %s, want %s", tt.err.Code, tt.code)
			}
			if tt.err.StatusCode() != tt.status {
				t.Errorf("status = %d, want %d", tt.err.StatusCode(), tt.status)
			}
			if tt.err.Retryable != tt.retryable {
				t.Errorf("retryable = %v, want %v", tt.err.Retryable, tt.retryable)
			}
		})
	}
}

func TestNotFoundWithID_Details(t *testing.T) {
	err := NotFoundWithID("Approval", "a-42")

	if err.Details["id"] != "a-42" {
		t.Errorf("expected id 'a-42', got %v", err.Details["id"])
	}
	if err.Details["resource"] != "Approval" {
		t.Errorf("expected resource 'Approval', got %v", err.Details["resource"])
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("gateway down")
	appErr := PaymentFailed("Could not verify payment", cause)

	if !errors.Is(appErr, cause) {
		t.Errorf("errors.Is should find the cause through Unwrap")
	}
}

func TestHasCode_ThroughWrapping(t *testing.T) {
	base := ConfirmationRequired("There are overlapping requests", map[string]any{"conflicts": []string{"b2"}})
	wrapped := fmt.Errorf("approve: %w", base)

	if !HasCode(wrapped, CodeConfirmationRequired) {
		t.Errorf("HasCode should see through fmt.Errorf wrapping")
	}
	if HasCode(wrapped, CodeConflict) {
		t.Errorf("HasCode matched the wrong code")
	}
	if HasCode(errors.New("plain"), CodeInternal) {
		t.Errorf("HasCode should be false for non-AppError")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(fmt.Errorf("lock: %w", ConcurrencyConflict("busy"))) {
		t.Errorf("concurrency conflicts must be retryable")
	}
	if IsRetryable(Conflict("dates taken")) {
		t.Errorf("business conflicts must not be retryable")
	}
	if IsRetryable(errors.New("boom")) {
		t.Errorf("plain errors must not be retryable")
	}
}

func TestAsAppError(t *testing.T) {
	appErr := Forbidden("not the host")
	if got := AsAppError(fmt.Errorf("wrap: %w", appErr)); got != appErr {
		t.Errorf("AsAppError() should unwrap to the same AppError")
	}

	plain := errors.New("regular error")
	got := AsAppError(plain)
	if got.Code != CodeInternal {
		t.Errorf("AsAppError() should wrap regular error as internal error")
	}
	if got.Err != plain {
		t.Errorf("AsAppError() should keep the original error")
	}
}

func TestWriteError_Body(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := WriteError(rec, ConcurrencyConflict("Property is busy, retry shortly")); err != nil {
		t.Fatalf("WriteError() error = %v", err)
	}

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body.Code != CodeConcurrencyConflict || !body.Retryable {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestAppError_ToJSON(t *testing.T) {
	data := string(NotFoundWithID("Property", "p1").ToJSON())

	if !strings.Contains(data, "NOT_FOUND") {
		t.Errorf("ToJSON() should contain error code, got %s", data)
	}
	if strings.Contains(data, "retryable") {
		t.Errorf("ToJSON() should omit retryable when false, got %s", data)
	}
}
