package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	apperrors "shortlets/pkg/errors"
	"shortlets/pkg/logger"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const sessionIssuer = "shortlets"

type callerKey struct{}

// SessionClaims identify the authenticated user. Sessions are issued by the account service.
type SessionClaims struct {
	jwt.RegisteredClaims
}

func WithCallerID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, callerKey{}, userID)
}

func CallerID(ctx context.Context) string {
	id, _ := ctx.Value(callerKey{}).(string)
	return id
}

// RequireCaller returns the authenticated user id or an Unauthorized error.
func RequireCaller(ctx context.Context) (string, error) {
	id := CallerID(ctx)
	if id == "" {
		return "", apperrors.Unauthorized("Authentication required")
	}
	return id, nil
}

func IssueSessionToken(secret, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    sessionIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

func parseSessionToken(secret, raw string) (string, error) {
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("session token has no subject")
	}
	return claims.Subject, nil
}

// Authenticate resolves a bearer session token into the caller id. Requests without a
// token pass through anonymous; handlers that need a caller use RequireCaller.
func Authenticate(secret string, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				_ = apperrors.WriteError(w, apperrors.Unauthorized("Malformed Authorization header"))
				return
			}

			userID, err := parseSessionToken(secret, raw)
			if err != nil {
				log.Warn("Rejected session token",
					"request_id", logger.RequestID(r.Context()),
					"path", r.URL.Path,
					"error", err,
				)
				_ = apperrors.WriteError(w, apperrors.Unauthorized("Invalid or expired session"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithCallerID(r.Context(), userID)))
		})
	}
}
