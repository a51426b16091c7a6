package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, status int, body string) *HTTPGateway {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		assert.Equal(t, "/transaction/verify/ref-1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewHTTPGateway(srv.URL, "sk_test", time.Second)
}

func TestVerify_Success(t *testing.T) {
	g := newServer(t, http.StatusOK, `{
		"status": true,
		"message": "Verification successful",
		"data": {
			"status": "success",
			"reference": "ref-1",
			"amount": 2500000,
			"currency": "NGN",
			"gateway_response": "Approved",
			"metadata": {"booking_id": "b1"}
		}
	}`)

	v, err := g.Verify(context.Background(), "ref-1")
	require.NoError(t, err)
	assert.True(t, v.Success)
	assert.Equal(t, "b1", v.BookingID)
	assert.EqualValues(t, 2500000, v.Amount)
	assert.Empty(t, v.Reason)
}

func TestVerify_Declined(t *testing.T) {
	g := newServer(t, http.StatusOK, `{
		"status": true,
		"message": "Verification successful",
		"data": {"status": "failed", "reference": "ref-1", "gateway_response": "Insufficient Funds"}
	}`)

	v, err := g.Verify(context.Background(), "ref-1")
	require.NoError(t, err)
	assert.False(t, v.Success)
	assert.Equal(t, "Insufficient Funds", v.Reason)
}

func TestVerify_UnknownReference(t *testing.T) {
	g := newServer(t, http.StatusBadRequest, `{"status": false, "message": "Transaction reference not found"}`)

	v, err := g.Verify(context.Background(), "ref-1")
	require.NoError(t, err)
	assert.False(t, v.Success)
	assert.Equal(t, "Transaction reference not found", v.Reason)
}

func TestVerify_GatewayDown(t *testing.T) {
	g := newServer(t, http.StatusBadGateway, `upstream error`)

	_, err := g.Verify(context.Background(), "ref-1")
	assert.Error(t, err)
}
