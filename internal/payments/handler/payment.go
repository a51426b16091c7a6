package handler

import (
	"encoding/json"
	"net/http"
	"shortlets/internal/payments/service"
	apperrors "shortlets/pkg/errors"
	httputil "shortlets/pkg/http"
	"shortlets/pkg/logger"
	"shortlets/pkg/middleware"

	"github.com/go-playground/validator/v10"
	"github.com/julienschmidt/httprouter"
)

type VerifyRequest struct {
	BookingID string `json:"booking_id" validate:"required"`
	Reference string `json:"reference" validate:"required,max=100"`
}

type WebhookResponse struct {
	Handled bool `json:"handled"`
}

type PaymentHandler struct {
	service       service.PaymentService
	webhookSecret string
	validate      *validator.Validate
	log           *logger.Logger
}

func NewPaymentHandler(service service.PaymentService, webhookSecret string, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		service:       service,
		webhookSecret: webhookSecret,
		validate:      validator.New(),
		log:           log,
	}
}

func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	callerID, err := middleware.RequireCaller(r.Context())
	if err != nil {
		h.writeError(w, "Verify", err)
		return
	}

	var req VerifyRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Verify", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, "Verify", apperrors.Validation("Invalid payment verification request", map[string]any{"error": err.Error()}))
		return
	}

	booking, err := h.service.Verify(r.Context(), callerID, req.BookingID, req.Reference)
	if err != nil {
		h.writeError(w, "Verify", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "Verify", "operation", "WriteSuccess", "error", err)
	}
}

// Webhook receives provider events. The signature has been checked by the time it runs.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	// provider payloads carry many fields we do not model
	var event service.WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		h.writeError(w, "Webhook", apperrors.InvalidInput("Invalid webhook payload"))
		return
	}

	handled, err := h.service.HandleEvent(r.Context(), &event)
	if err != nil {
		h.log.Error("Failed to process gateway event",
			"event", event.Event,
			"reference", event.Data.Reference,
			"booking_id", event.Data.Metadata.BookingID,
			"error", err,
		)
		h.writeError(w, "Webhook", err)
		return
	}

	if err := httputil.WriteSuccess(w, WebhookResponse{Handled: handled}); err != nil {
		h.log.Error("failed to write success response", "handler", "Webhook", "operation", "WriteSuccess", "error", err)
	}
}

func (h *PaymentHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *PaymentHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/payments/verify", h.Verify)
	router.Handler(http.MethodPost, "/api/v1/payments/webhook",
		middleware.GatewaySignatureVerification(h.webhookSecret, h.log)(http.HandlerFunc(h.Webhook)))
}
