package handler

import (
	"net/http"
	"time"

	"github.com/alanyoungcy/updownbot/internal/domain"
)

// StatsProvider supplies the live performance snapshot.
type StatsProvider interface {
	Stats(now time.Time) domain.Stats
}

// StatsHandler serves the aggregate performance endpoint.
type StatsHandler struct {
	provider StatsProvider
}

// NewStatsHandler creates a StatsHandler.
func NewStatsHandler(provider StatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider}
}

// GetStats responds with win/loss counters, P&L, exposure, pause state, and
// the active window.
// GET /api/stats
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.provider.Stats(time.Now()))
}
