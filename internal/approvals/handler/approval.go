package handler

import (
	"net/http"
	"shortlets/internal/approvals/service"
	"shortlets/internal/bookings/validator"
	apperrors "shortlets/pkg/errors"
	httputil "shortlets/pkg/http"
	"shortlets/pkg/logger"
	"shortlets/pkg/middleware"
	"shortlets/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type ApprovalHandler struct {
	service   service.ApprovalService
	validator *validator.BookingValidator
	log       *logger.Logger
}

func NewApprovalHandler(service service.ApprovalService, validator *validator.BookingValidator, log *logger.Logger) *ApprovalHandler {
	return &ApprovalHandler{
		service:   service,
		validator: validator,
		log:       log,
	}
}

// Decide applies the host's decision to a pending booking request.
func (h *ApprovalHandler) Decide(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	hostID, err := middleware.RequireCaller(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	var decision model.ApprovalDecision
	if err := httputil.DecodeJSON(r, &decision); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.validator.ValidateDecision(&decision); err != nil {
		h.writeError(w, apperrors.Validation("Invalid decision", map[string]any{"error": err.Error()}))
		return
	}

	var result *service.Result
	switch decision.Status {
	case model.ApprovalApproved:
		result, err = h.service.Approve(r.Context(), hostID, ps.ByName("id"), decision.ExpireHours, decision.ConfirmOverlap)
	default:
		result, err = h.service.Reject(r.Context(), hostID, ps.ByName("id"))
	}
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "Decide", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ApprovalHandler) writeError(w http.ResponseWriter, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", "Decide", "operation", "WriteError", "error", writeErr)
	}
}

func (h *ApprovalHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/approvals/:id/decision", h.Decide)
}
