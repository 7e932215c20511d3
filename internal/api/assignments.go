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

type AssignmentsHandler struct {
	store     store.Store
	hermes    hermes.Client
	reminders *assistant.Reminders
	clock     scoring.Clock
	logger    *slog.Logger
}

func NewAssignmentsHandler(s store.Store, h hermes.Client, reminders *assistant.Reminders, clock scoring.Clock, logger *slog.Logger) *AssignmentsHandler {
	return &AssignmentsHandler{store: s, hermes: h, reminders: reminders, clock: clock, logger: logger}
}

type CreateAssignmentRequest struct {
	Title       string `json:"title" validate:"required,notblank"`
	Description string `json:"description"`
	Deadline    string `json:"deadline" validate:"required"`
	SubjectID   string `json:"subject_id" validate:"required,uuid"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`
}

// UpdateAssignmentRequest is a partial update: nil fields are left unchanged.
type UpdateAssignmentRequest struct {
	Title       *string `json:"title" validate:"omitempty,notblank"`
	Description *string `json:"description"`
	Deadline    *string `json:"deadline"`
	SubjectID   *string `json:"subject_id" validate:"omitempty,uuid"`
	Priority    *string `json:"priority"`
	Status      *string `json:"status"`
}

func (h *AssignmentsHandler) List(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	filter := store.AssignmentFilter{UserID: user.ID}

	if v := r.URL.Query().Get("status"); v != "" {
		st := store.AssignmentStatus(v)
		if !st.Valid() {
			writeError(w, http.StatusBadRequest, "Invalid status")
			return
		}
		filter.Status = &st
	}
	if v := r.URL.Query().Get("subject_id"); v != "" {
		sid, err := uuid.Parse(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid subject")
			return
		}
		filter.SubjectID = &sid
	}

	assignments, err := h.store.ListAssignments(r.Context(), filter)
	if err != nil {
		writeInternal(w, h.logger, "list assignments failed", err)
		return
	}
	if assignments == nil {
		assignments = []*store.Assignment{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"assignments": assignments})
}

func (h *AssignmentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	var req CreateAssignmentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		var ve *validationError
		switch {
		case errors.As(err, &ve) && ve.has("subject_id", "uuid"):
			writeError(w, http.StatusBadRequest, "Invalid subject")
		case errors.As(err, &ve):
			writeError(w, http.StatusBadRequest, "Title, deadline, and subject are required")
		default:
			writeBadRequest(w, err)
		}
		return
	}

	deadline := scoring.ParseDeadline(req.Deadline)
	if deadline == nil {
		writeError(w, http.StatusBadRequest, "Invalid deadline")
		return
	}
	priority, ok := parseOptionalPriority(req.Priority)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid priority")
		return
	}
	status, ok := parseOptionalStatus(req.Status)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid status")
		return
	}

	subjectID, _ := uuid.Parse(req.SubjectID)
	sub, ok := h.userSubject(w, r, user.ID, subjectID)
	if !ok {
		return
	}

	a := &store.Assignment{
		UserID:       user.ID,
		SubjectID:    sub.ID,
		Title:        strings.TrimSpace(req.Title),
		Description:  req.Description,
		Deadline:     deadline,
		Priority:     string(priority),
		Status:       status,
		SubjectName:  sub.Name,
		SubjectColor: sub.Color,
	}
	if err := h.store.CreateAssignment(r.Context(), a); err != nil {
		writeInternal(w, h.logger, "create assignment failed", err)
		return
	}

	h.afterWrite(r, a, hermes.SubjectAssignmentCreated(a.ID.String()))
	writeJSON(w, http.StatusCreated, map[string]interface{}{"assignment": a})
}

func (h *AssignmentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	var req UpdateAssignmentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		var ve *validationError
		switch {
		case errors.As(err, &ve) && ve.has("subject_id", "uuid"):
			writeError(w, http.StatusBadRequest, "Invalid subject")
		case errors.As(err, &ve) && ve.has("title", "notblank"):
			writeError(w, http.StatusBadRequest, "Title cannot be blank")
		default:
			writeBadRequest(w, err)
		}
		return
	}

	a, ok := h.ownedAssignment(w, r, user.ID)
	if !ok {
		return
	}
	wasSubmitted := a.Status == store.StatusSubmitted

	if req.SubjectID != nil {
		sid, _ := uuid.Parse(*req.SubjectID)
		sub, ok := h.userSubject(w, r, user.ID, sid)
		if !ok {
			return
		}
		a.SubjectID = sub.ID
		a.SubjectName = sub.Name
		a.SubjectColor = sub.Color
	}
	if req.Title != nil {
		a.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		a.Description = *req.Description
	}
	if req.Deadline != nil {
		deadline := scoring.ParseDeadline(*req.Deadline)
		if deadline == nil {
			writeError(w, http.StatusBadRequest, "Invalid deadline")
			return
		}
		if a.Deadline == nil || !a.Deadline.Equal(*deadline) {
			// A moved deadline earns a fresh reminder.
			a.RemindedAt = nil
		}
		a.Deadline = deadline
	}
	if req.Priority != nil {
		p, ok := store.ParsePriority(*req.Priority)
		if !ok {
			writeError(w, http.StatusBadRequest, "Invalid priority")
			return
		}
		a.Priority = string(p)
	}
	if req.Status != nil {
		st := store.AssignmentStatus(*req.Status)
		if !st.Valid() {
			writeError(w, http.StatusBadRequest, "Invalid status")
			return
		}
		a.Status = st
	}

	if err := h.store.UpdateAssignment(r.Context(), a); err != nil {
		writeInternal(w, h.logger, "update assignment failed", err)
		return
	}

	subject := hermes.SubjectAssignmentUpdated(a.ID.String())
	if !wasSubmitted && a.Status == store.StatusSubmitted {
		subject = hermes.SubjectAssignmentSubmitted(a.ID.String())
	}
	h.afterWrite(r, a, subject)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Assignment updated successfully",
		"assignment": a,
	})
}

// Complete marks the assignment as submitted.
func (h *AssignmentsHandler) Complete(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	a, ok := h.ownedAssignment(w, r, user.ID)
	if !ok {
		return
	}
	if a.Status == store.StatusSubmitted {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"message":    "Assignment already submitted",
			"assignment": a,
		})
		return
	}

	a.Status = store.StatusSubmitted
	if err := h.store.UpdateAssignment(r.Context(), a); err != nil {
		writeInternal(w, h.logger, "complete assignment failed", err)
		return
	}

	h.afterWrite(r, a, hermes.SubjectAssignmentSubmitted(a.ID.String()))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Assignment marked as complete",
		"assignment": a,
	})
}

func (h *AssignmentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	a, ok := h.ownedAssignment(w, r, user.ID)
	if !ok {
		return
	}
	if err := h.store.DeleteAssignment(r.Context(), user.ID, a.ID); err != nil {
		writeInternal(w, h.logger, "delete assignment failed", err)
		return
	}

	h.afterWrite(r, a, hermes.SubjectAssignmentDeleted(a.ID.String()))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Assignment deleted successfully"})
}

// afterWrite drops the user's cached reminders and publishes the change.
func (h *AssignmentsHandler) afterWrite(r *http.Request, a *store.Assignment, subject string) {
	if h.reminders != nil {
		h.reminders.Invalidate(r.Context(), a.UserID)
	}
	hermes.Emit(r.Context(), h.hermes, h.logger, subject, hermes.AssignmentEvent{
		AssignmentID: a.ID.String(),
		UserID:       a.UserID.String(),
		SubjectID:    a.SubjectID.String(),
		Title:        a.Title,
		Status:       string(a.Status),
		Priority:     a.Priority,
		Deadline:     a.Deadline,
		Timestamp:    h.clock.Now().UTC(),
	})
}

func (h *AssignmentsHandler) ownedAssignment(w http.ResponseWriter, r *http.Request, userID uuid.UUID) (*store.Assignment, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Assignment not found")
		return nil, false
	}
	a, err := h.store.GetAssignment(r.Context(), userID, id)
	if err != nil {
		writeInternal(w, h.logger, "get assignment failed", err)
		return nil, false
	}
	if a == nil {
		writeError(w, http.StatusNotFound, "Assignment not found")
		return nil, false
	}
	return a, true
}

// userSubject loads a subject the user owns; anything else is "Invalid subject".
func (h *AssignmentsHandler) userSubject(w http.ResponseWriter, r *http.Request, userID, id uuid.UUID) (*store.Subject, bool) {
	sub, err := h.store.GetSubject(r.Context(), userID, id)
	if err != nil {
		writeInternal(w, h.logger, "get subject failed", err)
		return nil, false
	}
	if sub == nil {
		writeError(w, http.StatusBadRequest, "Invalid subject")
		return nil, false
	}
	return sub, true
}

func parseOptionalPriority(s string) (store.Priority, bool) {
	if strings.TrimSpace(s) == "" {
		return store.PriorityMedium, true
	}
	return store.ParsePriority(s)
}

func parseOptionalStatus(s string) (store.AssignmentStatus, bool) {
	if s == "" {
		return store.StatusPending, true
	}
	st := store.AssignmentStatus(s)
	return st, st.Valid()
}
