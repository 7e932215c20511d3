package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/EduMate/internal/scoring"
)

const sampleAssignments = `[
  {"title": "Reading log", "subject": "English", "deadline": "2025-08-30", "priority": "low"},
  {"title": "Lab report", "subject": "Physics", "deadline": "2025-07-13T09:00:00Z", "priority": "high"},
  {"title": "Poster", "subject": "Art", "deadline": "whenever", "priority": "medium"},
  {"title": "Old essay", "subject": "History", "deadline": "2025-07-15", "priority": "high", "status": "submitted"}
]`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "assignments.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleAssignments), 0o600))
	return path
}

func TestRunRankTable(t *testing.T) {
	var out bytes.Buffer
	err := runRank(&out, rankOptions{file: writeSample(t), now: "2025-07-15T00:00:00Z"}, scoring.DefaultConfig())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.GreaterOrEqual(t, len(lines), 4)
	assert.Contains(t, lines[0], "RECOMMENDATION")
	assert.Contains(t, lines[1], "Lab report")
	assert.Contains(t, lines[1], "CRITICAL")
	assert.Contains(t, lines[1], "1 day overdue")
	assert.Contains(t, lines[2], "Poster")
	assert.Contains(t, lines[2], "Check deadline")
	assert.Contains(t, lines[3], "Reading log")
	assert.NotContains(t, out.String(), "Old essay")
	assert.Contains(t, out.String(), "3 open: 1 critical")
}

func TestRunRankFocusJSON(t *testing.T) {
	var out bytes.Buffer
	opts := rankOptions{file: writeSample(t), now: "2025-07-15T00:00:00Z", focus: 1, asJSON: true}
	require.NoError(t, runRank(&out, opts, scoring.DefaultConfig()))

	var body struct {
		Assignments []struct {
			Title      string `json:"title"`
			AIPriority struct {
				Score float64 `json:"score"`
			} `json:"ai_priority"`
		} `json:"assignments"`
		Summary scoring.Summary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &body))
	require.Len(t, body.Assignments, 1)
	assert.Equal(t, "Lab report", body.Assignments[0].Title)
	assert.Equal(t, 10.0, body.Assignments[0].AIPriority.Score)
	assert.Equal(t, 1, body.Summary.Total)
}

func TestRunRankErrors(t *testing.T) {
	var out bytes.Buffer

	err := runRank(&out, rankOptions{file: writeSample(t), now: "yesterday"}, scoring.DefaultConfig())
	assert.Error(t, err)

	err = runRank(&out, rankOptions{file: filepath.Join(t.TempDir(), "missing.json")}, scoring.DefaultConfig())
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"not":"an array"}`), 0o600))
	err = runRank(&out, rankOptions{file: bad}, scoring.DefaultConfig())
	assert.Error(t, err)

	cfg := scoring.DefaultConfig()
	cfg.Weights.Deadline = 0.9
	err = runRank(&out, rankOptions{file: writeSample(t)}, cfg)
	assert.Error(t, err, "weights that do not sum to 1 are rejected")
}

func TestRunRankEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(path, []byte(`[]`), 0o600))

	var out bytes.Buffer
	require.NoError(t, runRank(&out, rankOptions{file: path}, scoring.DefaultConfig()))
	assert.Equal(t, "no open assignments\n", out.String())
}
