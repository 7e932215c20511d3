package api

import (
	"log/slog"
	"net/http"

	"github.com/MikeSquared-Agency/EduMate/internal/assistant"
	"github.com/MikeSquared-Agency/EduMate/internal/store"
)

type RemindersHandler struct {
	store     store.Store
	reminders *assistant.Reminders
	logger    *slog.Logger
}

func NewRemindersHandler(s store.Store, reminders *assistant.Reminders, logger *slog.Logger) *RemindersHandler {
	return &RemindersHandler{store: s, reminders: reminders, logger: logger}
}

func (h *RemindersHandler) Smart(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	list, err := h.store.ListAssignments(r.Context(), store.AssignmentFilter{UserID: user.ID, ExcludeSubmitted: true})
	if err != nil {
		h.logger.Error("list assignments for reminders failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"success": false, "error": "Failed to fetch smart reminders."})
		return
	}
	if len(list) == 0 || h.reminders == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "reminders": []assistant.Reminder{}})
		return
	}

	reminders, err := h.reminders.Generate(r.Context(), user.ID, list)
	if err != nil {
		h.logger.Warn("smart reminders aborted", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"success": false, "error": "Failed to fetch smart reminders."})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "reminders": reminders})
}
