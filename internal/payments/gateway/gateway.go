// Package gateway talks to the card payment provider.
package gateway

import (
	"context"
	"fmt"
	"net/url"
	"shortlets/pkg/client"
	"time"
)

const statusSuccess = "success"

// Verification is the provider's account of a single charge.
type Verification struct {
	Success   bool
	Reference string
	Amount    int64
	Currency  string
	Reason    string
	BookingID string
	PaidAt    time.Time
}

type Gateway interface {
	// Verify looks up the charge for reference. A declined charge is not an error: it comes
	// back with Success false and a Reason.
	Verify(ctx context.Context, reference string) (*Verification, error)
}

type Metadata struct {
	BookingID string `json:"booking_id"`
}

// Charge is the transaction object the provider returns from verification and sends in
// webhook events.
type Charge struct {
	Status          string    `json:"status"`
	Reference       string    `json:"reference"`
	Amount          int64     `json:"amount"`
	Currency        string    `json:"currency"`
	GatewayResponse string    `json:"gateway_response"`
	PaidAt          time.Time `json:"paid_at"`
	Metadata        Metadata  `json:"metadata"`
}

func (c Charge) Verification() *Verification {
	v := &Verification{
		Success:   c.Status == statusSuccess,
		Reference: c.Reference,
		Amount:    c.Amount,
		Currency:  c.Currency,
		BookingID: c.Metadata.BookingID,
		PaidAt:    c.PaidAt,
	}
	if !v.Success {
		v.Reason = c.GatewayResponse
		if v.Reason == "" {
			v.Reason = "Payment was not successful (" + c.Status + ")"
		}
	}
	return v
}

type verifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    Charge `json:"data"`
}

// HTTPGateway verifies charges through the provider's REST API.
type HTTPGateway struct {
	http *client.HttpClient
}

func NewHTTPGateway(baseURL, secret string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		http: client.NewHttpClient(baseURL, timeout).WithBearer(secret),
	}
}

func (g *HTTPGateway) Verify(ctx context.Context, reference string) (*Verification, error) {
	resp, err := g.http.GET(ctx, "/transaction/verify/"+url.PathEscape(reference))
	if err != nil {
		return nil, fmt.Errorf("verify %s: %w", reference, err)
	}

	var body verifyResponse
	if err := resp.DecodeJSON(&body); err != nil && resp.IsSuccess() {
		return nil, fmt.Errorf("verify %s: decode response: %w", reference, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("verify %s: gateway returned %d", reference, resp.StatusCode)
	case !resp.IsSuccess() || !body.Status:
		reason := body.Message
		if reason == "" {
			reason = client.GetErrorMessage(resp)
		}
		return &Verification{Reference: reference, Reason: reason}, nil
	}

	v := body.Data.Verification()
	if v.Reference == "" {
		v.Reference = reference
	}
	return v, nil
}
