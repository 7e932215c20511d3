package scoring

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/EduMate/internal/store"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultConfig(), FixedClock{T: testNow})
	require.NoError(t, err)
	return e
}

func assignment(title, deadline, priority string, status store.AssignmentStatus) *store.Assignment {
	return &store.Assignment{
		ID:       uuid.New(),
		Title:    title,
		Deadline: ParseDeadline(deadline),
		Priority: priority,
		Status:   status,
	}
}

func TestNewEngineRejectsBadConfig(t *testing.T) {
	_, err := NewEngine(Config{Weights: Weights{Deadline: 0.9, Priority: 0.9}}, nil)
	assert.Error(t, err)

	_, err = NewEngine(Config{Weights: DefaultWeights(), TieTolerance: -1}, nil)
	assert.Error(t, err)

	e, err := NewEngine(DefaultConfig(), nil)
	require.NoError(t, err)
	assert.IsType(t, SystemClock{}, e.clock)
}

func TestScoreOverdueHigh(t *testing.T) {
	e := newTestEngine(t)
	a := e.Score(assignment("Essay", "2025-07-10", "high", store.StatusPending))

	assert.Equal(t, 10.0, a.Score)
	assert.Equal(t, LevelCritical, a.UrgencyLevel)
	assert.Equal(t, RecOverdue, a.Recommendation)
	require.NotNil(t, a.DaysUntilDeadline)
	assert.Equal(t, -5, *a.DaysUntilDeadline)
	assert.False(t, a.Degraded)
	assert.Equal(t, "5 days overdue", a.DeadlineLabel())
}

func TestScoreDueTodayLow(t *testing.T) {
	e := newTestEngine(t)
	a := e.Score(assignment("Quiz", "2025-07-15", "low", store.StatusPending))

	assert.InDelta(t, 7.55, a.Score, 1e-9)
	assert.Equal(t, LevelHigh, a.UrgencyLevel)
	assert.Equal(t, RecImportant, a.Recommendation)
	require.NotNil(t, a.DaysUntilDeadline)
	assert.Equal(t, 0, *a.DaysUntilDeadline)
	assert.Equal(t, "Due today", a.DeadlineLabel())
}

func TestScoreFarMedium(t *testing.T) {
	e := newTestEngine(t)
	a := e.Score(assignment("Project", "2025-08-15", "medium", store.StatusInProgress))

	assert.InDelta(t, 3.2, a.Score, 1e-9)
	assert.Equal(t, LevelLow, a.UrgencyLevel)
	assert.Equal(t, RecLow, a.Recommendation)
	assert.Equal(t, "31 days left", a.DeadlineLabel())
}

func TestScoreMissingDeadline(t *testing.T) {
	e := newTestEngine(t)
	a := e.Score(assignment("Reading", "", "high", store.StatusPending))

	assert.InDelta(t, 6.5, a.Score, 1e-9)
	assert.Equal(t, LevelMedium, a.UrgencyLevel)
	assert.Equal(t, RecModerate, a.Recommendation)
	assert.Nil(t, a.DaysUntilDeadline)
	assert.Equal(t, "Check deadline", a.DeadlineLabel())
	assert.False(t, a.Degraded)

	require.Len(t, a.Factors, 2)
	assert.False(t, a.Factors[0].Available)
	assert.InDelta(t, 3.5, a.Factors[0].Weighted, 1e-9)
	assert.InDelta(t, 3.0, a.Factors[1].Weighted, 1e-9)
}

func TestRecommendations(t *testing.T) {
	tests := []struct {
		name     string
		deadline string
		priority string
		want     string
	}{
		{"due tomorrow high", "2025-07-16", "high", RecDueTomorrow},
		{"due today high", "2025-07-15", "high", RecDueToday},
		{"due today medium", "2025-07-15", "medium", RecImportant},
		{"three days high", "2025-07-18", "high", RecImportant},
		{"week medium", "2025-07-22", "medium", RecModerate},
		{"fortnight low", "2025-07-29", "low", RecLow},
	}
	e := newTestEngine(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := e.Score(assignment(tt.name, tt.deadline, tt.priority, store.StatusPending))
			assert.Equal(t, tt.want, a.Recommendation, "score %.2f", a.Score)
		})
	}
}

func TestRecommendationHighScoreWithoutDays(t *testing.T) {
	assert.Equal(t, RecHighPriority, recommendation(9.2, nil))
	assert.Equal(t, RecHighPriority, recommendation(9.0, intPtr(2)))
}

func TestUrgencyLevelThresholds(t *testing.T) {
	assert.Equal(t, LevelCritical, urgencyLevel(8.5))
	assert.Equal(t, LevelHigh, urgencyLevel(8.49))
	assert.Equal(t, LevelHigh, urgencyLevel(7))
	assert.Equal(t, LevelMedium, urgencyLevel(6.99))
	assert.Equal(t, LevelMedium, urgencyLevel(5))
	assert.Equal(t, LevelLow, urgencyLevel(4.99))
}

func TestScoreDegrades(t *testing.T) {
	t.Run("nil assignment", func(t *testing.T) {
		a := newTestEngine(t).Score(nil)
		assert.True(t, a.Degraded)
		assert.Equal(t, DefaultAssessment("no assignment"), a)
	})

	t.Run("clock failure", func(t *testing.T) {
		e, err := NewEngine(DefaultConfig(), ClockFunc(func() time.Time { panic("clock unavailable") }))
		require.NoError(t, err)

		a := e.Score(assignment("Essay", "2025-07-10", "high", store.StatusPending))
		assert.True(t, a.Degraded)
		assert.Contains(t, a.DegradedReason, "clock unavailable")
		assert.Equal(t, 5.0, a.Score)
		assert.Equal(t, LevelMedium, a.UrgencyLevel)
		assert.Equal(t, RecReviewDefault, a.Recommendation)
		assert.Nil(t, a.DaysUntilDeadline)
	})
}

func TestDeadlineLabel(t *testing.T) {
	tests := []struct {
		days *int
		want string
	}{
		{nil, "Check deadline"},
		{intPtr(-1), "1 day overdue"},
		{intPtr(-3), "3 days overdue"},
		{intPtr(0), "Due today"},
		{intPtr(1), "Due tomorrow"},
		{intPtr(9), "9 days left"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Assessment{DaysUntilDeadline: tt.days}.DeadlineLabel())
	}
}

func TestScoreDoesNotMutateInput(t *testing.T) {
	e := newTestEngine(t)
	a := assignment("Essay", "2025-07-10", " HIGH ", store.StatusPending)
	before := *a
	deadline := *a.Deadline

	e.Score(a)

	assert.Equal(t, before, *a)
	assert.Equal(t, deadline, *a.Deadline)
}

func TestAssessmentJSON(t *testing.T) {
	e := newTestEngine(t)
	a := e.Score(assignment("Essay", "2025-07-16", "high", store.StatusPending))

	raw, err := json.Marshal(a)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "Due tomorrow", decoded["deadline_label"])
	assert.Equal(t, LevelCritical, decoded["urgency_level"])
	assert.EqualValues(t, 1, decoded["days_until_deadline"])
	assert.NotContains(t, decoded, "degraded_reason")
}
