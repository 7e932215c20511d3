package api

import (
	"log/slog"
	"net/http"

	"github.com/MikeSquared-Agency/EduMate/internal/scoring"
	"github.com/MikeSquared-Agency/EduMate/internal/store"
)

type DashboardHandler struct {
	store  store.Store
	clock  scoring.Clock
	logger *slog.Logger
}

func NewDashboardHandler(s store.Store, clock scoring.Clock, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{store: s, clock: clock, logger: logger}
}

func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	stats, err := h.store.GetDashboardStats(r.Context(), user.ID, h.clock.Now())
	if err != nil {
		writeInternal(w, h.logger, "dashboard stats failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"stats": stats})
}
