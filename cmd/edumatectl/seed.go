package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// plannerItem is one assignment parsed from a markdown planner.
type plannerItem struct {
	Subject  string
	Title    string
	Deadline string
	Priority string
	Done     bool
}

// Priority emoji to priority label mapping
var priorityMap = map[string]string{
	"🔴": "high",
	"🟠": "high",
	"🟡": "medium",
	"🟢": "low",
}

var duePattern = regexp.MustCompile(`@(\d{4}-\d{2}-\d{2}(?:[T ]\d{2}:\d{2}:\d{2})?)`)

// parsePlanner reads "## Subject" sections holding "- [ ] Title @2025-07-20 🔴"
// items. Checked items are imported as submitted.
func parsePlanner(r io.Reader) ([]plannerItem, error) {
	var items []plannerItem
	var currentSubject string
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := scanner.Text()

		// Detect section headers
		if strings.HasPrefix(line, "#") {
			currentSubject = strings.TrimSpace(strings.TrimLeft(line, "# "))
			continue
		}

		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "- [") || currentSubject == "" {
			continue
		}

		isDone := strings.HasPrefix(trimmed, "- [x]") || strings.HasPrefix(trimmed, "- [X]")
		text := strings.TrimSpace(trimmed[min(len(trimmed), 5):])

		item := plannerItem{Subject: currentSubject, Priority: "medium", Done: isDone}
		for emoji, p := range priorityMap {
			if strings.Contains(text, emoji) {
				item.Priority = p
				text = strings.ReplaceAll(text, emoji, "")
				break
			}
		}
		if m := duePattern.FindStringSubmatch(text); m != nil {
			item.Deadline = m[1]
			text = strings.Replace(text, m[0], "", 1)
		}
		item.Title = strings.Join(strings.Fields(text), " ")
		if item.Title == "" || item.Deadline == "" {
			continue
		}
		items = append(items, item)
	}
	return items, scanner.Err()
}

type seedOptions struct {
	file   string
	api    string
	email  string
	dryRun bool
}

func newSeedCmd() *cobra.Command {
	var opts seedOptions
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Import a markdown planner through the API",
		Long: `Reads a markdown planner and creates its subjects and assignments for a user.

  ## Physics
  - [ ] Lab report @2025-07-20 🔴
  - [x] Reading quiz @2025-07-10 🟢

Headers become subjects, @dates become deadlines and the emoji sets the priority.
The user's password is prompted without echo.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.Open(opts.file)
			if err != nil {
				return err
			}
			defer f.Close()
			items, err := parsePlanner(f)
			if err != nil {
				return fmt.Errorf("parse %s: %w", opts.file, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "parsed %d items from %s\n", len(items), opts.file)
			if opts.dryRun {
				for i, item := range items {
					fmt.Fprintf(out, "[%d] %s (subject=%s, deadline=%s, priority=%s, done=%v)\n",
						i+1, item.Title, item.Subject, item.Deadline, item.Priority, item.Done)
				}
				return nil
			}

			if opts.email == "" {
				return fmt.Errorf("--email is required")
			}
			pwd, err := prompt(out, "Password: ")
			if err != nil {
				return err
			}
			s := &seeder{api: strings.TrimRight(opts.api, "/"), client: &http.Client{Timeout: 30 * time.Second}}
			if err := s.login(opts.email, pwd); err != nil {
				return err
			}
			created, skipped := s.importItems(items, out)
			fmt.Fprintf(out, "done: %d created, %d skipped\n", created, skipped)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.file, "file", "planner.md", "path to the markdown planner")
	cmd.Flags().StringVar(&opts.api, "api", "http://localhost:5000", "EduMate API base URL")
	cmd.Flags().StringVar(&opts.email, "email", "", "e-mail of the account to import into")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "print items without posting")
	return cmd
}

type seeder struct {
	api      string
	client   *http.Client
	token    string
	subjects map[string]string
}

func (s *seeder) login(email, password string) error {
	var resp struct {
		Token string `json:"token"`
		Error string `json:"error"`
	}
	status, err := s.post("/api/auth/login", map[string]string{"email": email, "password": password}, &resp)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("login failed: %s", resp.Error)
	}
	s.token = resp.Token
	return s.loadSubjects()
}

func (s *seeder) loadSubjects() error {
	req, err := http.NewRequest(http.MethodGet, s.api+"/api/subjects", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var body struct {
		Subjects []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"subjects"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode subjects: %w", err)
	}
	s.subjects = make(map[string]string, len(body.Subjects))
	for _, sub := range body.Subjects {
		s.subjects[strings.ToLower(sub.Name)] = sub.ID
	}
	return nil
}

// subjectID returns the ID of the named subject, creating it on first use.
func (s *seeder) subjectID(name string) (string, error) {
	if id, ok := s.subjects[strings.ToLower(name)]; ok {
		return id, nil
	}
	var resp struct {
		Subject struct {
			ID string `json:"id"`
		} `json:"subject"`
		Error string `json:"error"`
	}
	status, err := s.post("/api/subjects", map[string]string{"name": name}, &resp)
	if err != nil {
		return "", err
	}
	if status != http.StatusCreated {
		return "", fmt.Errorf("create subject %q: status %d: %s", name, status, resp.Error)
	}
	s.subjects[strings.ToLower(name)] = resp.Subject.ID
	return resp.Subject.ID, nil
}

func (s *seeder) importItems(items []plannerItem, out io.Writer) (created, skipped int) {
	for _, item := range items {
		subjectID, err := s.subjectID(item.Subject)
		if err != nil {
			fmt.Fprintf(out, "skip %q: %v\n", item.Title, err)
			skipped++
			continue
		}
		body := map[string]string{
			"title":      item.Title,
			"deadline":   item.Deadline,
			"subject_id": subjectID,
			"priority":   item.Priority,
		}
		if item.Done {
			body["status"] = "submitted"
		}
		var resp struct {
			Error string `json:"error"`
		}
		status, err := s.post("/api/assignments", body, &resp)
		if err != nil {
			fmt.Fprintf(out, "skip %q: %v\n", item.Title, err)
			skipped++
			continue
		}
		if status != http.StatusCreated {
			fmt.Fprintf(out, "skip %q: status %d: %s\n", item.Title, status, resp.Error)
			skipped++
			continue
		}
		created++
	}
	return created, skipped
}

func (s *seeder) post(path string, payload interface{}, dst interface{}) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequest(http.MethodPost, s.api+path, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil && err != io.EOF {
		return resp.StatusCode, fmt.Errorf("decode %s response: %w", path, err)
	}
	return resp.StatusCode, nil
}
