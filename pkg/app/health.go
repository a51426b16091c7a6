package app

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"shortlets/pkg/client"
	httputil "shortlets/pkg/http"
	"shortlets/pkg/logger"
)

const readinessTimeout = 2 * time.Second

type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
	Cache    string `json:"cache,omitempty"`
}

type HealthHandler struct {
	clients *client.Client
	log     *logger.Logger
}

func NewHealthHandler(clients *client.Client, log *logger.Logger) *HealthHandler {
	return &HealthHandler{clients: clients, log: log}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := httputil.WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok"}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Health", "operation", "WriteJSON", "error", err)
	}
}

// Ready pings every configured backing store.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	resp := HealthResponse{Status: "ready", Database: "ok"}
	status := http.StatusOK

	if h.clients.Mongo == nil || h.clients.Mongo.Ping(ctx, nil) != nil {
		resp.Database = "error"
		status = http.StatusServiceUnavailable
	}
	if h.clients.Redis != nil {
		resp.Cache = "ok"
		if err := h.clients.Redis.Ping(ctx).Err(); err != nil {
			resp.Cache = "error"
			status = http.StatusServiceUnavailable
		}
	}
	if status != http.StatusOK {
		resp.Status = "unavailable"
		h.log.Error("Readiness check failed", "database", resp.Database, "cache", resp.Cache)
	}

	if err := httputil.WriteJSON(w, status, resp); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Ready", "operation", "WriteJSON", "error", err)
	}
}

func (h *HealthHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
}
