package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/EduMate/internal/assistant"
	"github.com/MikeSquared-Agency/EduMate/internal/hermes"
	"github.com/MikeSquared-Agency/EduMate/internal/scoring"
	"github.com/MikeSquared-Agency/EduMate/internal/store"
)

type SubjectsHandler struct {
	store     store.Store
	hermes    hermes.Client
	reminders *assistant.Reminders
	clock     scoring.Clock
	logger    *slog.Logger
}

func NewSubjectsHandler(s store.Store, h hermes.Client, reminders *assistant.Reminders, clock scoring.Clock, logger *slog.Logger) *SubjectsHandler {
	return &SubjectsHandler{store: s, hermes: h, reminders: reminders, clock: clock, logger: logger}
}

type SubjectRequest struct {
	Name        string `json:"name" validate:"required,notblank"`
	Description string `json:"description"`
	Color       string `json:"color" validate:"omitempty,hexcolor"`
}

func (h *SubjectsHandler) List(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	subjects, err := h.store.ListSubjects(r.Context(), user.ID)
	if err != nil {
		writeInternal(w, h.logger, "list subjects failed", err)
		return
	}
	if subjects == nil {
		subjects = []*store.Subject{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"subjects": subjects})
}

func (h *SubjectsHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	var req SubjectRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeSubjectError(w, err)
		return
	}

	sub := &store.Subject{
		UserID:      user.ID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Color:       colorOrDefault(req.Color),
	}
	if err := h.store.CreateSubject(r.Context(), sub); err != nil {
		writeInternal(w, h.logger, "create subject failed", err)
		return
	}

	hermes.Emit(r.Context(), h.hermes, h.logger, hermes.SubjectSubjectCreated(sub.ID.String()), hermes.SubjectEvent{
		SubjectID: sub.ID.String(),
		UserID:    user.ID.String(),
		Name:      sub.Name,
		Timestamp: h.clock.Now().UTC(),
	})

	writeJSON(w, http.StatusCreated, map[string]interface{}{"subject": sub})
}

func (h *SubjectsHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	var req SubjectRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeSubjectError(w, err)
		return
	}

	sub, ok := h.ownedSubject(w, r, user.ID)
	if !ok {
		return
	}
	sub.Name = strings.TrimSpace(req.Name)
	sub.Description = req.Description
	sub.Color = colorOrDefault(req.Color)
	if err := h.store.UpdateSubject(r.Context(), sub); err != nil {
		writeInternal(w, h.logger, "update subject failed", err)
		return
	}
	// Cached reminders quote subject names.
	h.invalidateReminders(r, user.ID)
	writeJSON(w, http.StatusOK, map[string]interface{}{"subject": sub})
}

// Delete removes the subject and, through the foreign key, its assignments.
func (h *SubjectsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	sub, ok := h.ownedSubject(w, r, user.ID)
	if !ok {
		return
	}
	if err := h.store.DeleteSubject(r.Context(), user.ID, sub.ID); err != nil {
		writeInternal(w, h.logger, "delete subject failed", err)
		return
	}
	h.invalidateReminders(r, user.ID)

	hermes.Emit(r.Context(), h.hermes, h.logger, hermes.SubjectSubjectDeleted(sub.ID.String()), hermes.SubjectEvent{
		SubjectID: sub.ID.String(),
		UserID:    user.ID.String(),
		Timestamp: h.clock.Now().UTC(),
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "Subject deleted successfully"})
}

func (h *SubjectsHandler) invalidateReminders(r *http.Request, userID uuid.UUID) {
	if h.reminders != nil {
		h.reminders.Invalidate(r.Context(), userID)
	}
}

func (h *SubjectsHandler) ownedSubject(w http.ResponseWriter, r *http.Request, userID uuid.UUID) (*store.Subject, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Subject not found")
		return nil, false
	}
	sub, err := h.store.GetSubject(r.Context(), userID, id)
	if err != nil {
		writeInternal(w, h.logger, "get subject failed", err)
		return nil, false
	}
	if sub == nil {
		writeError(w, http.StatusNotFound, "Subject not found")
		return nil, false
	}
	return sub, true
}

func writeSubjectError(w http.ResponseWriter, err error) {
	var ve *validationError
	if errors.As(err, &ve) && ve.has("name", "required", "notblank") {
		writeError(w, http.StatusBadRequest, "Subject name is required")
		return
	}
	writeBadRequest(w, err)
}

func colorOrDefault(c string) string {
	if c == "" {
		return store.DefaultSubjectColor
	}
	return c
}
