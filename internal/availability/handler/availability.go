package handler

import (
	"context"
	"net/http"
	"shortlets/internal/availability/service"
	apperrors "shortlets/pkg/errors"
	httputil "shortlets/pkg/http"
	"shortlets/pkg/logger"
	"shortlets/pkg/middleware"
	"shortlets/pkg/model"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/julienschmidt/httprouter"
)

type AvailabilityResponse struct {
	PropertyID string `json:"property_id"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Available  bool   `json:"available"`
}

type AvailabilityHandler struct {
	service  service.AvailabilityService
	validate *validator.Validate
	log      *logger.Logger
}

func NewAvailabilityHandler(service service.AvailabilityService, log *logger.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{
		service:  service,
		validate: validator.New(),
		log:      log,
	}
}

func (h *AvailabilityHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *AvailabilityHandler) IsAvailable(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	propertyID := ps.ByName("id")
	query := r.URL.Query()

	rng, err := model.ParseDateRange(query.Get("start_date"), query.Get("end_date"))
	if err != nil {
		h.writeError(w, "IsAvailable", apperrors.InvalidInput(err.Error()))
		return
	}

	available, err := h.service.IsAvailable(r.Context(), propertyID, rng.Start, rng.End)
	if err != nil {
		h.writeError(w, "IsAvailable", err)
		return
	}

	if err := httputil.WriteSuccess(w, AvailabilityResponse{
		PropertyID: propertyID,
		StartDate:  rng.Start.Format(model.DateLayout),
		EndDate:    rng.End.Format(model.DateLayout),
		Available:  available,
	}); err != nil {
		h.log.Error("failed to write success response", "handler", "IsAvailable", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AvailabilityHandler) CheckBooking(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	callerID, err := middleware.RequireCaller(r.Context())
	if err != nil {
		h.writeError(w, "CheckBooking", err)
		return
	}

	booking, err := h.service.CheckBooking(r.Context(), callerID, ps.ByName("id"), r.URL.Query().Get("token"))
	if err != nil {
		h.writeError(w, "CheckBooking", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "CheckBooking", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AvailabilityHandler) BlockDates(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.changeBlocks(w, r, ps, "BlockDates", h.service.BlockDates)
}

func (h *AvailabilityHandler) UnblockDates(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.changeBlocks(w, r, ps, "UnblockDates", h.service.UnblockDates)
}

type blockFunc func(ctx context.Context, hostID, propertyID string, start, end time.Time) (*model.Property, error)

func (h *AvailabilityHandler) changeBlocks(w http.ResponseWriter, r *http.Request, ps httprouter.Params, name string, apply blockFunc) {
	hostID, err := middleware.RequireCaller(r.Context())
	if err != nil {
		h.writeError(w, name, err)
		return
	}

	var req model.DateBlockRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, name, err)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.writeError(w, name, apperrors.Validation("Invalid date range", map[string]any{"error": err.Error()}))
		return
	}

	rng, err := model.ParseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		h.writeError(w, name, apperrors.Validation(err.Error(), nil))
		return
	}

	property, err := apply(r.Context(), hostID, ps.ByName("id"), rng.Start, rng.End)
	if err != nil {
		h.writeError(w, name, err)
		return
	}

	if err := httputil.WriteSuccess(w, property); err != nil {
		h.log.Error("failed to write success response", "handler", name, "operation", "WriteSuccess", "error", err)
	}
}

func (h *AvailabilityHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/properties/:id/availability", h.IsAvailable)
	router.POST("/api/v1/properties/:id/blocks", h.BlockDates)
	router.POST("/api/v1/properties/:id/unblock", h.UnblockDates)
	router.GET("/api/v1/bookings/:id/check", h.CheckBooking)
}
