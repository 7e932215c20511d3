package scoring

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// FactorResult captures one factor's contribution to the total score.
type FactorResult struct {
	Name      string  `json:"name"`
	Score     float64 `json:"score"`
	Weight    float64 `json:"weight"`
	Weighted  float64 `json:"weighted"`
	Available bool    `json:"available"`
	Reason    string  `json:"reason"`
}

const (
	MaxScore     = 10.0
	neutralScore = 5.0
)

var deadlineLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDeadline accepts RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"
// and "2006-01-02". Zone-less values are read as UTC. Returns nil when nothing
// matches.
func ParseDeadline(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range deadlineLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func hasDeadline(deadline *time.Time) bool {
	return deadline != nil && !deadline.IsZero()
}

// DaysUntil returns ceil((deadline - now) / 24h), or nil without a deadline.
// The count is duration arithmetic, not calendar-date subtraction, so it can
// disagree with the calendar near midnight.
func DaysUntil(deadline *time.Time, now time.Time) *int {
	if !hasDeadline(deadline) {
		return nil
	}
	d := int(math.Ceil(float64(deadline.Sub(now)) / float64(24*time.Hour)))
	return &d
}

// DeadlineUrgency maps a deadline to [0,10]. A missing deadline is neutral (5).
func DeadlineUrgency(deadline *time.Time, now time.Time) (float64, *int) {
	days := DaysUntil(deadline, now)
	if days == nil {
		return neutralScore, nil
	}
	return urgencyForDays(*days), days
}

func urgencyForDays(d int) float64 {
	switch {
	case d < 0:
		return 10
	case d == 0:
		return 9.5
	case d == 1:
		return 9
	case d <= 3:
		return 8
	case d <= 7:
		return 6
	case d <= 14:
		return 4
	default:
		return 2
	}
}

var priorityLevels = map[string]float64{
	"high":   10,
	"medium": 6,
	"low":    3,
}

// PriorityLevel maps a priority label to [0,10]. Unknown labels count as medium.
func PriorityLevel(priority string) float64 {
	score, _ := lookupPriority(priority)
	return score
}

func lookupPriority(priority string) (float64, bool) {
	if v, ok := priorityLevels[strings.ToLower(strings.TrimSpace(priority))]; ok {
		return v, true
	}
	return priorityLevels["medium"], false
}

// DeadlineFactor explains the deadline component of a score.
func DeadlineFactor(deadline *time.Time, now time.Time) FactorResult {
	score, days := DeadlineUrgency(deadline, now)
	if days == nil {
		return FactorResult{Name: "deadline", Score: score, Available: false, Reason: "no usable deadline"}
	}
	var reason string
	switch {
	case *days < 0:
		reason = fmt.Sprintf("overdue by %d days", -*days)
	case *days == 0:
		reason = "due today"
	default:
		reason = fmt.Sprintf("due in %d days", *days)
	}
	return FactorResult{Name: "deadline", Score: score, Available: true, Reason: reason}
}

// PriorityFactor explains the priority component of a score.
func PriorityFactor(priority string) FactorResult {
	score, ok := lookupPriority(priority)
	if !ok {
		return FactorResult{Name: "priority", Score: score, Available: false, Reason: "unrecognised priority, treated as medium"}
	}
	return FactorResult{Name: "priority", Score: score, Available: true, Reason: strings.ToLower(strings.TrimSpace(priority))}
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// round2 rounds half-up to two decimals.
func round2(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}
