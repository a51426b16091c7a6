package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"io"
	"net/http"
	apperrors "shortlets/pkg/errors"
	"shortlets/pkg/logger"
	"strings"
)

const HeaderGatewaySignature = "X-Gateway-Signature"

// GatewaySignatureVerification accepts only webhook bodies signed with the gateway secret
// (hex HMAC-SHA512 of the raw body).
func GatewaySignatureVerification(secret string, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			signature := strings.TrimSpace(r.Header.Get(HeaderGatewaySignature))
			if signature == "" {
				rejectWebhook(w, log, r, "Missing "+HeaderGatewaySignature+" header")
				return
			}

			body, err := readAndRestoreBody(r)
			if err != nil {
				rejectWebhook(w, log, r, "Failed to read request body")
				return
			}

			if !VerifyGatewaySignature(body, signature, secret) {
				rejectWebhook(w, log, r, "Invalid webhook signature")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func SignGatewayPayload(body []byte, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func VerifyGatewaySignature(body []byte, signature, secret string) bool {
	if secret == "" {
		return false
	}
	expected := SignGatewayPayload(body, secret)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

func readAndRestoreBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

func rejectWebhook(w http.ResponseWriter, log *logger.Logger, r *http.Request, reason string) {
	log.Warn("Gateway webhook verification failed",
		"request_id", logger.RequestID(r.Context()),
		"reason", reason,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
	)
	_ = apperrors.WriteError(w, apperrors.Unauthorized("Unauthorized"))
}
