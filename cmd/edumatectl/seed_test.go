package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePlanner = `# Term plan

## Physics
- [ ] Lab report @2025-07-20 🔴
- [x] Reading quiz @2025-07-10 🟢
- [ ] No deadline here 🟡

## History
- [ ] Essay   draft @2025-07-25T17:00:00
Notes that are not items.
`

func TestParsePlanner(t *testing.T) {
	items, err := parsePlanner(strings.NewReader(samplePlanner))
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, plannerItem{Subject: "Physics", Title: "Lab report", Deadline: "2025-07-20", Priority: "high"}, items[0])
	assert.Equal(t, plannerItem{Subject: "Physics", Title: "Reading quiz", Deadline: "2025-07-10", Priority: "low", Done: true}, items[1])
	assert.Equal(t, plannerItem{Subject: "History", Title: "Essay draft", Deadline: "2025-07-25T17:00:00", Priority: "medium"}, items[2])
}

// fakeAPI records the calls a seeder makes.
type fakeAPI struct {
	mu          sync.Mutex
	subjects    []string
	assignments []map[string]string
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret123" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Invalid credentials"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok"})
	})
	mux.HandleFunc("/api/subjects", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		f.mu.Lock()
		defer f.mu.Unlock()
		if r.Method == http.MethodGet {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"subjects": []map[string]string{{"id": "sub-physics", "name": "physics"}},
			})
			return
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.subjects = append(f.subjects, body["name"])
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"subject": map[string]string{"id": "sub-" + strings.ToLower(body["name"])},
		})
	})
	mux.HandleFunc("/api/assignments", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		defer f.mu.Unlock()
		if body["title"] == "Rejected" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Invalid deadline"})
			return
		}
		f.assignments = append(f.assignments, body)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"assignment": body})
	})
	return mux
}

func TestSeederImportsItems(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	s := &seeder{api: srv.URL, client: srv.Client()}
	require.NoError(t, s.login("ada@example.com", "secret123"))

	items, err := parsePlanner(strings.NewReader(samplePlanner))
	require.NoError(t, err)
	items = append(items, plannerItem{Subject: "History", Title: "Rejected", Deadline: "2025-07-01", Priority: "low"})

	var out bytes.Buffer
	created, skipped := s.importItems(items, &out)
	assert.Equal(t, 3, created)
	assert.Equal(t, 1, skipped)
	assert.Contains(t, out.String(), `skip "Rejected": status 400: Invalid deadline`)

	// Physics already exists; History is created once.
	assert.Equal(t, []string{"History"}, api.subjects)
	require.Len(t, api.assignments, 3)
	assert.Equal(t, "sub-physics", api.assignments[0]["subject_id"])
	assert.Equal(t, "submitted", api.assignments[1]["status"])
	assert.Equal(t, "sub-history", api.assignments[2]["subject_id"])
}

func TestSeederLoginFailure(t *testing.T) {
	srv := httptest.NewServer((&fakeAPI{}).handler(t))
	defer srv.Close()

	s := &seeder{api: srv.URL, client: srv.Client()}
	err := s.login("ada@example.com", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid credentials")
}
