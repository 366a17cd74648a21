package handler

import (
	"net/http"
	"strconv"

	"github.com/mcoot/ultratic/internal/api/response"
	"github.com/mcoot/ultratic/internal/services/stats"
)

// StatsHandler serves aggregate game statistics
type StatsHandler struct {
	stats *stats.Service
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(svc *stats.Service) *StatsHandler {
	return &StatsHandler{stats: svc}
}

// Fetch handles GET /api/v1/stats?page=N. A missing page means 1.
func (h *StatsHandler) Fetch(w http.ResponseWriter, r *http.Request) {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			WriteError(w, NewInvalidRequestError("page must be an integer"))
			return
		}
		page = n
	}

	result, err := h.stats.FetchPage(r.Context(), page)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, result)
}
