// Package checkout issues and validates the time-limited tokens that let a guest pay for an
// approved booking.
package checkout

import (
	"errors"
	"fmt"
	"net/url"
	apperrors "shortlets/pkg/errors"
	"shortlets/pkg/model"
	"shortlets/pkg/sanitizer"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer = "shortlets-checkout"

	// CheckInLeadTime is how long before check-in a checkout window must close.
	CheckInLeadTime = 24 * time.Hour
)

type Verdict int

const (
	VerdictOK Verdict = iota
	VerdictExpired
	VerdictMismatch
	VerdictInvalid
)

func (v Verdict) String() string {
	switch v {
	case VerdictOK:
		return "ok"
	case VerdictExpired:
		return "expired"
	case VerdictMismatch:
		return "mismatch"
	default:
		return "invalid"
	}
}

type Claims struct {
	BookingID string `json:"booking_id"`
	jwt.RegisteredClaims
}

type Token struct {
	Value     string    `json:"token"`
	BookingID string    `json:"booking_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Window struct {
	secret []byte
	now    func() time.Time
}

func NewWindow(secret string) *Window {
	return &Window{secret: []byte(secret), now: time.Now}
}

// Issue signs a token for bookingID that expires expireHours from now. The window must close
// at least CheckInLeadTime before checkIn.
func (w *Window) Issue(bookingID string, expireHours int, checkIn time.Time) (Token, error) {
	if expireHours < model.MinCheckoutHours || expireHours > model.MaxCheckoutHours {
		return Token{}, apperrors.Validation(
			fmt.Sprintf("Expiration time must be between %d and %d hours", model.MinCheckoutHours, model.MaxCheckoutHours),
			map[string]any{"expire_hours": expireHours},
		)
	}

	now := w.now()
	expiresAt := now.Add(time.Duration(expireHours) * time.Hour)
	cutoff := checkIn.Add(-CheckInLeadTime)
	if expiresAt.After(cutoff) {
		return Token{}, apperrors.Validation(
			"Expiration time must be set at least 24 hours before the check-in time",
			map[string]any{
				"expires_at": expiresAt.UTC().Format(time.RFC3339),
				"cutoff":     cutoff.UTC().Format(time.RFC3339),
			},
		)
	}

	claims := Claims{
		BookingID: bookingID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   bookingID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(w.secret)
	if err != nil {
		return Token{}, apperrors.Internal("Failed to sign checkout token", err)
	}

	return Token{
		Value:     signed,
		BookingID: bookingID,
		ExpiresAt: time.Unix(claims.ExpiresAt.Unix(), 0).UTC(),
	}, nil
}

// Validate checks that raw is a live token for bookingID. The returned error is nil only for
// VerdictOK.
func (w *Window) Validate(raw, bookingID string) (Verdict, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return w.secret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(w.now),
	)

	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return VerdictExpired, apperrors.Unauthorized("Checkout link has expired")
	case err != nil:
		return VerdictInvalid, apperrors.Unauthorized("Invalid checkout token")
	case claims.BookingID != bookingID:
		return VerdictMismatch, apperrors.Unauthorized("Checkout token does not belong to this booking")
	}
	return VerdictOK, nil
}

// Link builds the guest-facing checkout URL for booking.
func Link(baseURL string, booking *model.Booking, token Token) string {
	q := url.Values{}
	q.Set("bookingId", booking.ID)
	q.Set("propertyId", booking.PropertyID)
	q.Set("token", token.Value)
	return sanitizer.NormalizeBaseURL(baseURL) + "/checkout?" + q.Encode()
}
