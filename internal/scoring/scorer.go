package scoring

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/MikeSquared-Agency/EduMate/internal/store"
)

// Urgency levels derived from the rounded score.
const (
	LevelCritical = "critical"
	LevelHigh     = "high"
	LevelMedium   = "medium"
	LevelLow      = "low"
)

const (
	RecOverdue       = "OVERDUE - do this immediately"
	RecDueToday      = "Due today - start now"
	RecDueTomorrow   = "Due tomorrow - top priority"
	RecHighPriority  = "High priority - do this first"
	RecImportant     = "Important - do this next"
	RecModerate      = "Moderate priority - plan for this week"
	RecLow           = "Low priority - can wait"
	RecReviewDefault = "Review this task"
)

// Assessment is the explainable priority of one assignment.
type Assessment struct {
	Score             float64        `json:"score"`
	UrgencyLevel      string         `json:"urgency_level"`
	Recommendation    string         `json:"recommendation"`
	DaysUntilDeadline *int           `json:"days_until_deadline"`
	Factors           []FactorResult `json:"factors,omitempty"`

	// Degraded is set when the score is a fallback rather than computed.
	Degraded       bool   `json:"degraded"`
	DegradedReason string `json:"degraded_reason,omitempty"`
}

// DefaultAssessment is the neutral result used when scoring fails.
func DefaultAssessment(reason string) Assessment {
	return Assessment{
		Score:          neutralScore,
		UrgencyLevel:   LevelMedium,
		Recommendation: RecReviewDefault,
		Degraded:       true,
		DegradedReason: reason,
	}
}

// DeadlineLabel renders the day count for display.
func (a Assessment) DeadlineLabel() string {
	if a.DaysUntilDeadline == nil {
		return "Check deadline"
	}
	switch d := *a.DaysUntilDeadline; {
	case d == -1:
		return "1 day overdue"
	case d < -1:
		return fmt.Sprintf("%d days overdue", -d)
	case d == 0:
		return "Due today"
	case d == 1:
		return "Due tomorrow"
	default:
		return fmt.Sprintf("%d days left", d)
	}
}

func (a Assessment) MarshalJSON() ([]byte, error) {
	type plain Assessment
	return json.Marshal(struct {
		plain
		DeadlineLabel string `json:"deadline_label"`
	}{plain(a), a.DeadlineLabel()})
}

func urgencyLevel(score float64) string {
	switch {
	case score >= 8.5:
		return LevelCritical
	case score >= 7:
		return LevelHigh
	case score >= 5:
		return LevelMedium
	default:
		return LevelLow
	}
}

func recommendation(score float64, days *int) string {
	if score >= 9 {
		switch {
		case days != nil && *days < 0:
			return RecOverdue
		case days != nil && *days == 0:
			return RecDueToday
		case days != nil && *days == 1:
			return RecDueTomorrow
		default:
			return RecHighPriority
		}
	}
	switch {
	case score >= 7:
		return RecImportant
	case score >= 5:
		return RecModerate
	default:
		return RecLow
	}
}

// Engine ranks assignments by deadline urgency and declared priority.
// It holds no mutable state and never writes to its input.
type Engine struct {
	cfg   Config
	clock Clock
}

// NewEngine validates cfg. A nil clock means the system clock.
func NewEngine(cfg Config, clock Clock) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scoring config: %w", err)
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Engine{cfg: cfg, clock: clock}, nil
}

func (e *Engine) Config() Config { return e.cfg }

// Score assesses one assignment. It never panics: a nil assignment or a
// failure while scoring yields DefaultAssessment.
func (e *Engine) Score(a *store.Assignment) (result Assessment) {
	if a == nil {
		return DefaultAssessment("no assignment")
	}
	defer func() {
		if r := recover(); r != nil {
			result = DefaultAssessment(fmt.Sprintf("scoring failed: %v", r))
		}
	}()
	return e.assess(a, e.clock.Now())
}

func (e *Engine) assess(a *store.Assignment, now time.Time) Assessment {
	deadline := DeadlineFactor(a.Deadline, now)
	priority := PriorityFactor(a.Priority)

	deadline.Weight = e.cfg.Weights.Deadline
	deadline.Weighted = deadline.Score * deadline.Weight
	priority.Weight = e.cfg.Weights.Priority
	priority.Weighted = priority.Score * priority.Weight

	score := round2(clamp(deadline.Weighted+priority.Weighted, 0, MaxScore))
	days := DaysUntil(a.Deadline, now)

	return Assessment{
		Score:             score,
		UrgencyLevel:      urgencyLevel(score),
		Recommendation:    recommendation(score, days),
		DaysUntilDeadline: days,
		Factors:           []FactorResult{deadline, priority},
	}
}
