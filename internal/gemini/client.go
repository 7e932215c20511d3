package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
)

const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

var (
	ErrModelNotFound = errors.New("AI model not found")
	ErrQuotaExceeded = errors.New("AI quota exceeded")
	ErrInvalidAPIKey = errors.New("invalid AI API key")
	ErrUnavailable   = errors.New("AI service temporarily unavailable")
	ErrNotConfigured = errors.New("AI service not configured")
)

// Content is one turn of a conversation.
type Content struct {
	Role string
	Text string
}

type GenerateRequest struct {
	Contents          []Content
	SystemInstruction string
	MaxOutputTokens   int
	Temperature       float64
}

type GenerateResponse struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// Client generates text from a conversation.
type Client interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

type Options struct {
	APIKey           string
	Model            string
	BaseURL          string
	Timeout          time.Duration
	FailureThreshold uint32
	BreakerTimeout   time.Duration
}

// HTTPClient calls the generateContent REST endpoint behind a circuit breaker.
type HTTPClient struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*GenerateResponse]
	logger  *slog.Logger
}

func NewHTTPClient(opts Options, logger *slog.Logger) *HTTPClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 5
	}
	c := &HTTPClient{
		apiKey:  opts.APIKey,
		model:   opts.Model,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		client:  &http.Client{Timeout: opts.Timeout},
		logger:  logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker[*GenerateResponse](gobreaker.Settings{
		Name:        "gemini",
		MaxRequests: 1,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.FailureThreshold
		},
		// Caller mistakes do not say anything about upstream health.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrQuotaExceeded) ||
				errors.Is(err, ErrInvalidAPIKey) ||
				errors.Is(err, ErrModelNotFound) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return c
}

func (c *HTTPClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}
	resp, err := c.breaker.Execute(func() (*GenerateResponse, error) {
		return c.generate(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrUnavailable
	}
	return resp, err
}

func (c *HTTPClient) generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	apiReq := geminiRequest{
		GenerationConfig: geminiGenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxOutputTokens,
		},
	}
	for _, content := range req.Contents {
		apiReq.Contents = append(apiReq.Contents, geminiContent{
			Role:  content.Role,
			Parts: []geminiPart{{Text: content.Text}},
		})
	}
	if req.SystemInstruction != "" {
		apiReq.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: req.SystemInstruction}},
		}
	}

	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	// The API only accepts the key as a query parameter.
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, classify(resp.StatusCode, string(msg))
	}

	var apiResp geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	out := &GenerateResponse{Model: c.model}
	if len(apiResp.Candidates) > 0 {
		var sb strings.Builder
		for _, p := range apiResp.Candidates[0].Content.Parts {
			sb.WriteString(p.Text)
		}
		out.Text = sb.String()
	}
	if apiResp.UsageMetadata != nil {
		out.PromptTokens = apiResp.UsageMetadata.PromptTokenCount
		out.CompletionTokens = apiResp.UsageMetadata.CandidatesTokenCount
	}
	return out, nil
}

// classify maps an upstream failure onto the package's sentinel errors.
func classify(status int, body string) error {
	lower := strings.ToLower(body)
	switch {
	case status == http.StatusNotFound || strings.Contains(lower, "not found"):
		return fmt.Errorf("%w: %s", ErrModelNotFound, truncate(body))
	case status == http.StatusTooManyRequests || strings.Contains(lower, "quota"):
		return fmt.Errorf("%w: %s", ErrQuotaExceeded, truncate(body))
	case status == http.StatusUnauthorized || status == http.StatusForbidden || strings.Contains(lower, "api key"):
		return fmt.Errorf("%w: %s", ErrInvalidAPIKey, truncate(body))
	default:
		return fmt.Errorf("gemini API error (status %d): %s", status, truncate(body))
	}
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}

type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata,omitempty"`
}
