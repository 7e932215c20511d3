package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/EduMate/internal/gemini"
	"github.com/MikeSquared-Agency/EduMate/internal/store"
)

// Reminder is one actionable suggestion derived from the open assignments.
type Reminder struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"dueDate"`
	Time        string `json:"time"`
	Priority    string `json:"priority"`
	Category    string `json:"category"`
}

const (
	defaultReminderTime     = "09:00 AM"
	defaultReminderPriority = "medium"
	defaultReminderCategory = "Planning"
)

var (
	reminderPriorities = map[string]string{"urgent": "urgent", "high": "high", "medium": "medium", "low": "low"}
	reminderCategories = map[string]string{"study": "Study", "assignment": "Assignment", "planning": "Planning", "wellness": "Wellness"}

	fencePattern = regexp.MustCompile("```(?:json)?")
	arrayPattern = regexp.MustCompile(`(?s)\[.*\]`)

	errNoArray = errors.New("response does not contain a JSON array")
)

// Outcome labels reported through ReminderOptions.Observe.
const (
	OutcomeOK       = "ok"
	OutcomeCached   = "cached"
	OutcomeFallback = "fallback"
	OutcomeEmpty    = "empty"
)

type ReminderOptions struct {
	CacheTTL time.Duration
	Now      func() time.Time
	Observe  func(outcome string)
}

// Reminders turns a user's open assignments into smart reminders.
type Reminders struct {
	client gemini.Client
	cache  Cache
	opts   ReminderOptions
	logger *slog.Logger
}

func NewReminders(client gemini.Client, cache Cache, opts ReminderOptions, logger *slog.Logger) *Reminders {
	if cache == nil {
		cache = NopCache{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Observe == nil {
		opts.Observe = func(string) {}
	}
	return &Reminders{client: client, cache: cache, opts: opts, logger: logger}
}

// Generate never fails on AI or parse errors: it returns the fallback reminder
// instead. The error is reserved for a cancelled context.
func (r *Reminders) Generate(ctx context.Context, userID uuid.UUID, assignments []*store.Assignment) ([]Reminder, error) {
	if len(assignments) == 0 {
		r.opts.Observe(OutcomeEmpty)
		return []Reminder{}, nil
	}

	if cached, ok, err := r.cache.Get(ctx, userID); err != nil {
		r.logger.Warn("reminder cache read failed", "user_id", userID, "error", err)
	} else if ok {
		r.opts.Observe(OutcomeCached)
		return cached, nil
	}

	resp, err := r.client.Generate(ctx, gemini.GenerateRequest{
		Contents: []gemini.Content{{Role: "user", Text: BuildReminderPrompt(assignments)}},
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		r.logger.Warn("smart reminder generation failed, using fallback", "user_id", userID, "error", err)
		r.opts.Observe(OutcomeFallback)
		return []Reminder{FallbackReminder(r.opts.Now())}, nil
	}

	reminders, err := ParseReminders(resp.Text)
	if err != nil || len(reminders) == 0 {
		r.logger.Warn("smart reminder response unusable, using fallback", "user_id", userID, "error", err)
		r.opts.Observe(OutcomeFallback)
		return []Reminder{FallbackReminder(r.opts.Now())}, nil
	}

	if err := r.cache.Set(ctx, userID, reminders, r.opts.CacheTTL); err != nil {
		r.logger.Warn("reminder cache write failed", "user_id", userID, "error", err)
	}
	r.opts.Observe(OutcomeOK)
	return reminders, nil
}

// Invalidate drops any cached reminders for the user.
func (r *Reminders) Invalidate(ctx context.Context, userID uuid.UUID) {
	if err := r.cache.Invalidate(ctx, userID); err != nil {
		r.logger.Warn("reminder cache invalidation failed", "user_id", userID, "error", err)
	}
}

// BuildReminderPrompt lists one line per assignment and asks for a JSON array.
func BuildReminderPrompt(assignments []*store.Assignment) string {
	var lines []string
	for _, a := range assignments {
		if a == nil {
			continue
		}
		due := "none"
		if a.Deadline != nil && !a.Deadline.IsZero() {
			due = a.Deadline.UTC().Format("2006-01-02")
		}
		lines = append(lines, fmt.Sprintf("- Title: %s, Due Date: %s, Status: %s, Subject: %s",
			a.Title, due, a.Status, a.SubjectName))
	}

	return `You are an academic assistant. Based on the following list of assignments, generate 3-5 smart, actionable reminders for a student. Focus on proactive steps, study tips, or time management advice related to these assignments.
Assignments:
` + strings.Join(lines, "\n") + `
Format your response as a JSON array of objects, where each object has 'title', 'description', 'dueDate' (YYYY-MM-DD), 'time' (HH:MM AM/PM), 'priority' (urgent, high, medium, low), and 'category' (Study, Assignment, Planning, Wellness). Ensure due dates are relevant to the assignments provided. If an assignment is due soon, suggest an urgent reminder. If no specific time is relevant, use a default like "09:00 AM".
Example JSON structure:
[
  {
    "title": "Start research for History Essay",
    "description": "Begin gathering sources and outlining for the upcoming essay.",
    "dueDate": "2025-07-20",
    "time": "09:00 AM",
    "priority": "high",
    "category": "Assignment"
  }
]`
}

// ParseReminders extracts and normalises the reminder array from model output.
func ParseReminders(text string) ([]Reminder, error) {
	s := strings.TrimSpace(fencePattern.ReplaceAllString(text, ""))
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		m := arrayPattern.FindString(s)
		if m == "" {
			return nil, errNoArray
		}
		s = m
	}

	var raw []Reminder
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("decode reminders: %w", err)
	}

	out := make([]Reminder, 0, len(raw))
	for _, rem := range raw {
		rem.Title = strings.TrimSpace(rem.Title)
		if rem.Title == "" {
			continue
		}
		rem.Description = strings.TrimSpace(rem.Description)
		rem.Priority = normalise(rem.Priority, reminderPriorities, defaultReminderPriority)
		rem.Category = normalise(rem.Category, reminderCategories, defaultReminderCategory)
		if strings.TrimSpace(rem.Time) == "" {
			rem.Time = defaultReminderTime
		}
		out = append(out, rem)
	}
	return out, nil
}

func normalise(v string, allowed map[string]string, fallback string) string {
	if canon, ok := allowed[strings.ToLower(strings.TrimSpace(v))]; ok {
		return canon
	}
	return fallback
}

// FallbackReminder is returned whenever smart generation is unavailable.
func FallbackReminder(now time.Time) Reminder {
	return Reminder{
		Title:       "Check your assignment deadlines",
		Description: "Review your upcoming assignments to plan your week.",
		DueDate:     now.UTC().Format("2006-01-02"),
		Time:        defaultReminderTime,
		Priority:    defaultReminderPriority,
		Category:    defaultReminderCategory,
	}
}
