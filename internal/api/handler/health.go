package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/mcoot/ultratic/internal/api/apierr"
	"github.com/mcoot/ultratic/internal/api/response"
)

// Pinger is anything whose liveness can be checked
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports whether the ledger is reachable
type HealthHandler struct {
	ledger Pinger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(ledger Pinger) *HealthHandler {
	return &HealthHandler{ledger: ledger}
}

// Check handles GET /api/v1/health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.ledger.Ping(ctx); err != nil {
		WriteError(w, apierr.NewUnavailableError(err.Error()))
		return
	}
	response.JSON(w, http.StatusOK, response.HealthResponse{Status: "ok"})
}
