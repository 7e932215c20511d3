package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/EduMate/internal/assistant"
	"github.com/MikeSquared-Agency/EduMate/internal/auth"
	"github.com/MikeSquared-Agency/EduMate/internal/gemini"
	"github.com/MikeSquared-Agency/EduMate/internal/scoring"
	"github.com/MikeSquared-Agency/EduMate/internal/store"
)

var testNow = time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)

// Mocks
type mockStore struct {
	mu          sync.Mutex
	users       map[uuid.UUID]*store.User
	subjects    map[uuid.UUID]*store.Subject
	assignments map[uuid.UUID]*store.Assignment
	listErr     error
}

func newMockStore() *mockStore {
	return &mockStore{
		users:       make(map[uuid.UUID]*store.User),
		subjects:    make(map[uuid.UUID]*store.Subject),
		assignments: make(map[uuid.UUID]*store.Assignment),
	}
}

func (m *mockStore) CreateUser(_ context.Context, u *store.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return store.ErrEmailTaken
		}
	}
	u.ID = uuid.New()
	u.CreatedAt = testNow
	u.UpdatedAt = testNow
	cp := *u
	m.users[u.ID] = &cp
	return nil
}
func (m *mockStore) GetUserByID(_ context.Context, id uuid.UUID) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}
func (m *mockStore) GetUserByEmail(_ context.Context, email string) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}
func (m *mockStore) UpdateUserPassword(_ context.Context, id uuid.UUID, hash []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.PasswordHash = hash
	}
	return nil
}

func (m *mockStore) CreateSubject(_ context.Context, s *store.Subject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = uuid.New()
	s.CreatedAt = testNow
	s.UpdatedAt = testNow
	cp := *s
	m.subjects[s.ID] = &cp
	return nil
}
func (m *mockStore) GetSubject(_ context.Context, userID, id uuid.UUID) (*store.Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.subjects[id]; ok && s.UserID == userID {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}
func (m *mockStore) ListSubjects(_ context.Context, userID uuid.UUID) ([]*store.Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.Subject
	for _, s := range m.subjects {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}
func (m *mockStore) UpdateSubject(_ context.Context, s *store.Subject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.subjects[s.ID] = &cp
	return nil
}
func (m *mockStore) DeleteSubject(_ context.Context, userID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subjects, id)
	for aid, a := range m.assignments {
		if a.SubjectID == id {
			delete(m.assignments, aid)
		}
	}
	return nil
}

func (m *mockStore) CreateAssignment(_ context.Context, a *store.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = uuid.New()
	a.CreatedAt = testNow
	a.UpdatedAt = testNow
	cp := *a
	m.assignments[a.ID] = &cp
	return nil
}
func (m *mockStore) GetAssignment(_ context.Context, userID, id uuid.UUID) (*store.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.assignments[id]; ok && a.UserID == userID {
		cp := *a
		return &cp, nil
	}
	return nil, nil
}
func (m *mockStore) ListAssignments(_ context.Context, f store.AssignmentFilter) ([]*store.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*store.Assignment
	for _, a := range m.assignments {
		if a.UserID != f.UserID {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		if f.SubjectID != nil && a.SubjectID != *f.SubjectID {
			continue
		}
		if f.ExcludeSubmitted && a.Status == store.StatusSubmitted {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := out[i].Deadline, out[j].Deadline
		if di == nil || dj == nil {
			return dj == nil && di != nil
		}
		return di.Before(*dj)
	})
	return out, nil
}
func (m *mockStore) UpdateAssignment(_ context.Context, a *store.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.UpdatedAt = testNow
	cp := *a
	m.assignments[a.ID] = &cp
	return nil
}
func (m *mockStore) DeleteAssignment(_ context.Context, userID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.assignments, id)
	return nil
}
func (m *mockStore) GetDashboardStats(_ context.Context, userID uuid.UUID, now time.Time) (*store.DashboardStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &store.DashboardStats{}
	for _, s := range m.subjects {
		if s.UserID == userID {
			stats.Subjects++
		}
	}
	start, end := store.DayWindow(now)
	for _, a := range m.assignments {
		if a.UserID != userID {
			continue
		}
		switch a.Status {
		case store.StatusPending:
			stats.Assignments.Pending++
		case store.StatusInProgress:
			stats.Assignments.InProgress++
		case store.StatusSubmitted:
			stats.Assignments.Submitted++
		}
		if a.Status == store.StatusSubmitted || a.Deadline == nil {
			continue
		}
		if a.Deadline.Before(start) {
			stats.Overdue++
		} else if a.Deadline.Before(end) {
			stats.Upcoming++
		}
	}
	return stats, nil
}
func (m *mockStore) ListReminderCandidates(_ context.Context, _ store.ReminderQuery) ([]*store.ReminderCandidate, error) {
	return nil, nil
}
func (m *mockStore) MarkReminded(_ context.Context, _ uuid.UUID, _ time.Time) error { return nil }
func (m *mockStore) RecordReminderFailure(_ context.Context, _ uuid.UUID, _ time.Time, _ bool) error {
	return nil
}
func (m *mockStore) Close() error { return nil }

// memoryCache keeps generated reminders per user, like the Redis cache.
type memoryCache struct {
	mu    sync.Mutex
	items map[uuid.UUID][]assistant.Reminder
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: make(map[uuid.UUID][]assistant.Reminder)}
}

func (c *memoryCache) Get(_ context.Context, userID uuid.UUID) ([]assistant.Reminder, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.items[userID]
	return r, ok, nil
}
func (c *memoryCache) Set(_ context.Context, userID uuid.UUID, reminders []assistant.Reminder, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[userID] = reminders
	return nil
}
func (c *memoryCache) Invalidate(_ context.Context, userID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, userID)
	return nil
}

type mockHermes struct {
	mu       sync.Mutex
	subjects []string
	payloads []interface{}
}

func (m *mockHermes) Publish(_ context.Context, subject string, data interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subjects = append(m.subjects, subject)
	m.payloads = append(m.payloads, data)
	return nil
}
func (m *mockHermes) Close() {}

func (m *mockHermes) published() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.subjects...)
}

func (m *mockHermes) lastPayload() interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.payloads) == 0 {
		return nil
	}
	return m.payloads[len(m.payloads)-1]
}

type stubGemini struct {
	text  string
	err   error
	calls int
}

func (g *stubGemini) Generate(_ context.Context, _ gemini.GenerateRequest) (*gemini.GenerateResponse, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return &gemini.GenerateResponse{Text: g.text}, nil
}

type testEnv struct {
	router  http.Handler
	store   *mockStore
	hermes  *mockHermes
	gemini  *stubGemini
	cache   *memoryCache
	tokens  *auth.TokenManager
	metrics *Metrics
}

func setupTestRouter(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ms := newMockStore()
	mh := &mockHermes{}
	g := &stubGemini{}
	cache := newMemoryCache()

	tokens, err := auth.NewTokenManager("test-secret", "edumate", time.Hour)
	require.NoError(t, err)
	engine, err := scoring.NewEngine(scoring.DefaultConfig(), scoring.FixedClock{T: testNow})
	require.NoError(t, err)
	metrics := NewMetrics(nil)

	svc := Services{
		Store:     ms,
		Tokens:    tokens,
		Engine:    engine,
		Chat:      assistant.NewChat(g, assistant.ChatOptions{MaxTokens: 500, Temperature: 0.7}),
		Reminders: assistant.NewReminders(g, cache, assistant.ReminderOptions{Now: func() time.Time { return testNow }}, logger),
		Hermes:    mh,
		Metrics:   metrics,
		Clock:     scoring.FixedClock{T: testNow},
	}
	cfg := RouterConfig{BcryptCost: 4, FocusCompact: 3, FocusFull: 5}
	return &testEnv{
		router:  NewRouter(svc, cfg, logger),
		store:   ms,
		hermes:  mh,
		gemini:  g,
		cache:   cache,
		tokens:  tokens,
		metrics: metrics,
	}
}

// createUser stores a user directly and returns a bearer token for it.
func (e *testEnv) createUser(t *testing.T, email string) (*store.User, string) {
	t.Helper()
	hash, err := auth.HashPassword("secret123", 4)
	require.NoError(t, err)
	u := &store.User{Name: "Test Student", Email: email, PasswordHash: hash}
	require.NoError(t, e.store.CreateUser(context.Background(), u))
	token, err := e.tokens.Issue(u)
	require.NoError(t, err)
	return u, token
}

func (e *testEnv) createSubject(t *testing.T, userID uuid.UUID, name string) *store.Subject {
	t.Helper()
	s := &store.Subject{UserID: userID, Name: name, Color: store.DefaultSubjectColor}
	require.NoError(t, e.store.CreateSubject(context.Background(), s))
	return s
}

func (e *testEnv) createAssignment(t *testing.T, sub *store.Subject, title string, deadline *time.Time, priority string, status store.AssignmentStatus) *store.Assignment {
	t.Helper()
	a := &store.Assignment{
		UserID:      sub.UserID,
		SubjectID:   sub.ID,
		SubjectName: sub.Name,
		Title:       title,
		Deadline:    deadline,
		Priority:    priority,
		Status:      status,
	}
	require.NoError(t, e.store.CreateAssignment(context.Background(), a))
	return a
}

func (e *testEnv) do(method, path, token, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func daysFromNow(n int) *time.Time {
	d := testNow.AddDate(0, 0, n)
	return &d
}

func decodeInto(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}
