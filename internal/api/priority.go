package api

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/EduMate/internal/scoring"
	"github.com/MikeSquared-Agency/EduMate/internal/store"
)

// PriorityHandler serves the ranked views of a user's open assignments.
type PriorityHandler struct {
	store        store.Store
	engine       *scoring.Engine
	focusCompact int
	focusFull    int
	logger       *slog.Logger
}

func NewPriorityHandler(s store.Store, engine *scoring.Engine, focusCompact, focusFull int, logger *slog.Logger) *PriorityHandler {
	if focusCompact <= 0 {
		focusCompact = 3
	}
	if focusFull <= 0 {
		focusFull = 5
	}
	return &PriorityHandler{store: s, engine: engine, focusCompact: focusCompact, focusFull: focusFull, logger: logger}
}

func (h *PriorityHandler) openAssignments(w http.ResponseWriter, r *http.Request) ([]*store.Assignment, bool) {
	user := UserFromContext(r.Context())
	list, err := h.store.ListAssignments(r.Context(), store.AssignmentFilter{UserID: user.ID, ExcludeSubmitted: true})
	if err != nil {
		writeInternal(w, h.logger, "list assignments for ranking failed", err)
		return nil, false
	}
	return list, true
}

func (h *PriorityHandler) Ranked(w http.ResponseWriter, r *http.Request) {
	list, ok := h.openAssignments(w, r)
	if !ok {
		return
	}
	ranked := h.engine.Rank(list)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"assignments": ranked,
		"summary":     scoring.Summarize(ranked),
	})
}

// Focus returns the top N tasks. limit is a positive number or "full".
func (h *PriorityHandler) Focus(w http.ResponseWriter, r *http.Request) {
	limit := h.focusCompact
	switch v := r.URL.Query().Get("limit"); v {
	case "":
	case "full":
		limit = h.focusFull
	default:
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive number or \"full\"")
			return
		}
		limit = n
	}

	list, ok := h.openAssignments(w, r)
	if !ok {
		return
	}
	focus := h.engine.Focus(list, limit)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"assignments": focus,
		"limit":       limit,
	})
}

func (h *PriorityHandler) Next(w http.ResponseWriter, r *http.Request) {
	list, ok := h.openAssignments(w, r)
	if !ok {
		return
	}
	next := h.engine.Next(list)
	if next == nil {
		writeError(w, http.StatusNotFound, "No open assignments")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"assignment": next})
}

// Explain scores a single assignment and returns the factor breakdown.
func (h *PriorityHandler) Explain(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Assignment not found")
		return
	}
	a, err := h.store.GetAssignment(r.Context(), user.ID, id)
	if err != nil {
		writeInternal(w, h.logger, "get assignment failed", err)
		return
	}
	if a == nil {
		writeError(w, http.StatusNotFound, "Assignment not found")
		return
	}

	writeJSON(w, http.StatusOK, scoring.RankedAssignment{Assignment: a, Assessment: h.engine.Score(a)})
}

var exportHeader = []string{"Title", "Subject", "Deadline", "Priority Score", "Urgency Level", "Recommendation"}

// Export writes the ranking as CSV.
func (h *PriorityHandler) Export(w http.ResponseWriter, r *http.Request) {
	list, ok := h.openAssignments(w, r)
	if !ok {
		return
	}
	ranked := h.engine.Rank(list)

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="priorities.csv"`)
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	_ = cw.Write(exportHeader)
	for _, ra := range ranked {
		deadline := ""
		if ra.Assignment.Deadline != nil {
			deadline = ra.Assignment.Deadline.UTC().Format("2006-01-02")
		}
		_ = cw.Write([]string{
			ra.Assignment.Title,
			ra.Assignment.SubjectName,
			deadline,
			fmt.Sprintf("%.2f", ra.Assessment.Score),
			ra.Assessment.UrgencyLevel,
			ra.Assessment.Recommendation,
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.logger.Warn("csv export write failed", "error", err)
	}
}
