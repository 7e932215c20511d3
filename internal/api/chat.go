package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/MikeSquared-Agency/EduMate/internal/assistant"
	"github.com/MikeSquared-Agency/EduMate/internal/gemini"
)

type ChatHandler struct {
	chat    *assistant.Chat
	metrics *Metrics
	logger  *slog.Logger
}

func NewChatHandler(chat *assistant.Chat, m *Metrics, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, metrics: m, logger: logger}
}

type ChatRequest struct {
	Message string `json:"message"`
}

func (h *ChatHandler) Simple(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "Message is required"})
		return
	}
	if h.chat == nil {
		h.metrics.ObserveAI("chat", "unavailable")
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"success": false, "error": gemini.ErrNotConfigured.Error()})
		return
	}

	text, err := h.chat.Reply(r.Context(), req.Message)
	if err != nil {
		status, msg, outcome := classifyChatError(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("chat request failed", "error", err)
		} else {
			h.logger.Warn("chat request rejected", "error", err)
		}
		h.metrics.ObserveAI("chat", outcome)
		writeJSON(w, status, map[string]interface{}{"success": false, "error": msg})
		return
	}

	h.metrics.ObserveAI("chat", "ok")
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "response": text})
}

func classifyChatError(err error) (status int, msg, outcome string) {
	switch {
	case errors.Is(err, assistant.ErrEmptyMessage):
		return http.StatusBadRequest, "Message is required", "invalid"
	case errors.Is(err, gemini.ErrModelNotFound):
		return http.StatusNotFound, "AI model not found or not available. Please check the model name and API key.", "model_not_found"
	case errors.Is(err, gemini.ErrQuotaExceeded):
		return http.StatusTooManyRequests, "AI quota exceeded. Please check your usage limits or try again later.", "quota_exceeded"
	case errors.Is(err, gemini.ErrInvalidAPIKey):
		return http.StatusUnauthorized, "Invalid AI API key. Please check the configured key.", "invalid_key"
	case errors.Is(err, gemini.ErrUnavailable), errors.Is(err, gemini.ErrNotConfigured):
		return http.StatusServiceUnavailable, "AI service is temporarily unavailable. Please try again later.", "unavailable"
	case errors.Is(err, context.Canceled):
		return http.StatusInternalServerError, "Request cancelled.", "cancelled"
	default:
		return http.StatusInternalServerError, "Failed to process chat request. Please try again.", "error"
	}
}
