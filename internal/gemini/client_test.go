package gemini

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(url string, threshold uint32) *HTTPClient {
	return NewHTTPClient(Options{
		APIKey:           "test-key",
		Model:            "gemini-test",
		BaseURL:          url,
		Timeout:          5 * time.Second,
		FailureThreshold: threshold,
		BreakerTimeout:   time.Minute,
	}, discardLogger())
}

func TestGenerateSuccess(t *testing.T) {
	var got geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"candidates": [{"content": {"parts": [{"text": "Hello "}, {"text": "student"}]}}],
			"usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 3, "totalTokenCount": 15}
		}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 5)
	resp, err := c.Generate(context.Background(), GenerateRequest{
		Contents: []Content{
			{Role: "model", Text: "Hi, I'm EduMate"},
			{Role: "user", Text: "help"},
		},
		SystemInstruction: "be nice",
		MaxOutputTokens:   500,
		Temperature:       0.7,
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello student", resp.Text)
	assert.Equal(t, 12, resp.PromptTokens)
	assert.Equal(t, 3, resp.CompletionTokens)

	require.Len(t, got.Contents, 2)
	assert.Equal(t, "user", got.Contents[1].Role)
	assert.Equal(t, "help", got.Contents[1].Parts[0].Text)
	require.NotNil(t, got.SystemInstruction)
	assert.Equal(t, "be nice", got.SystemInstruction.Parts[0].Text)
	assert.Equal(t, 500, got.GenerationConfig.MaxOutputTokens)
	assert.InDelta(t, 0.7, got.GenerationConfig.Temperature, 1e-9)
}

func TestGenerateClassifiesErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"model not found", http.StatusNotFound, `{"error":{"message":"models/x is not found"}}`, ErrModelNotFound},
		{"quota", http.StatusTooManyRequests, `{"error":{"message":"Resource exhausted"}}`, ErrQuotaExceeded},
		{"quota in body", http.StatusBadRequest, `{"error":{"message":"Quota exceeded for project"}}`, ErrQuotaExceeded},
		{"bad key", http.StatusBadRequest, `{"error":{"message":"API key not valid. Please pass a valid API key."}}`, ErrInvalidAPIKey},
		{"unauthorized", http.StatusUnauthorized, `{}`, ErrInvalidAPIKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL, 5).Generate(context.Background(), GenerateRequest{})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGenerateNotConfigured(t *testing.T) {
	c := NewHTTPClient(Options{Model: "m"}, discardLogger())
	_, err := c.Generate(context.Background(), GenerateRequest{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestBreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"internal"}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 2)
	for i := 0; i < 2; i++ {
		_, err := c.Generate(context.Background(), GenerateRequest{})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnavailable)
	}

	_, err := c.Generate(context.Background(), GenerateRequest{})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(2), calls.Load(), "open breaker must not call upstream")
}

func TestBreakerIgnoresQuotaErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 1)
	for i := 0; i < 3; i++ {
		_, err := c.Generate(context.Background(), GenerateRequest{})
		assert.ErrorIs(t, err, ErrQuotaExceeded)
	}
}
