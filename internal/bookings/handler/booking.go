package handler

import (
	"net/http"

	"shortlets/internal/bookings/service"
	httputil "shortlets/pkg/http"
	"shortlets/pkg/logger"
	"shortlets/pkg/middleware"
	"shortlets/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type CreateBookingResponse struct {
	Booking  *model.Booking  `json:"booking"`
	Approval *model.Approval `json:"approval,omitempty"`
}

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	callerID, err := middleware.RequireCaller(r.Context())
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	var req model.BookingRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Create", err)
		return
	}
	req.UserID = callerID

	booking, approval, err := h.service.Create(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, CreateBookingResponse{Booking: booking, Approval: approval}); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	callerID, err := middleware.RequireCaller(r.Context())
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	booking, err := h.service.GetByID(r.Context(), callerID, ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) GetForCheckout(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	callerID, err := middleware.RequireCaller(r.Context())
	if err != nil {
		h.writeError(w, "GetForCheckout", err)
		return
	}

	query := r.URL.Query()
	booking, err := h.service.GetForCheckout(r.Context(), callerID, ps.ByName("id"), query.Get("property_id"), query.Get("token"))
	if err != nil {
		h.writeError(w, "GetForCheckout", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "GetForCheckout", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) ListPendingApprovals(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	hostID, err := middleware.RequireCaller(r.Context())
	if err != nil {
		h.writeError(w, "ListPendingApprovals", err)
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListPendingApprovals", err)
		return
	}

	approvals, total, err := h.service.ListPendingApprovals(r.Context(), hostID, ps.ByName("id"), limit, offset)
	if err != nil {
		h.writeError(w, "ListPendingApprovals", err)
		return
	}

	if err := httputil.WritePaginated(w, approvals, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListPendingApprovals", "operation", "WritePaginated", "error", err)
	}
}

func (h *BookingHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Create)
	router.GET("/api/v1/bookings/:id", h.GetByID)
	router.GET("/api/v1/bookings/:id/checkout", h.GetForCheckout)
	router.GET("/api/v1/properties/:id/approvals", h.ListPendingApprovals)
}
