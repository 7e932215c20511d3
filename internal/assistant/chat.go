package assistant

import (
	"context"
	"errors"
	"strings"

	"github.com/MikeSquared-Agency/EduMate/internal/gemini"
)

var ErrEmptyMessage = errors.New("message is required")

const chatSystemPrompt = `You are EduMate AI, a helpful academic assistant for students. You help with:
- Study tips and techniques
- Assignment guidance and planning
- Subject explanations
- Time management for academics
- Motivation and academic support
- General academic questions
Keep responses helpful, encouraging, and focused on education. Be concise but thorough.`

const chatGreeting = "Hello! How can I assist you with your studies today?"

type ChatOptions struct {
	MaxTokens   int
	Temperature float64
}

// Chat answers single study questions.
type Chat struct {
	client gemini.Client
	opts   ChatOptions
}

func NewChat(client gemini.Client, opts ChatOptions) *Chat {
	return &Chat{client: client, opts: opts}
}

// Reply sends message after the seeded persona turns and returns the trimmed answer.
func (c *Chat) Reply(ctx context.Context, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyMessage
	}
	resp, err := c.client.Generate(ctx, gemini.GenerateRequest{
		Contents: []gemini.Content{
			{Role: "user", Text: chatSystemPrompt},
			{Role: "model", Text: chatGreeting},
			{Role: "user", Text: message},
		},
		MaxOutputTokens: c.opts.MaxTokens,
		Temperature:     c.opts.Temperature,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}
