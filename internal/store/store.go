package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrEmailTaken is returned by CreateUser when the e-mail is already registered.
var ErrEmailTaken = errors.New("email already registered")

type AssignmentStatus string

const (
	StatusPending    AssignmentStatus = "pending"
	StatusInProgress AssignmentStatus = "in_progress"
	StatusSubmitted  AssignmentStatus = "submitted"
)

func (s AssignmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusSubmitted:
		return true
	}
	return false
}

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ParsePriority normalises a user-supplied label. ok is false for unknown labels.
func ParsePriority(s string) (Priority, bool) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return p, true
	}
	return PriorityMedium, false
}

const DefaultSubjectColor = "#3B82F6"

type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Subject struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Assignment struct {
	ID          uuid.UUID        `json:"id"`
	UserID      uuid.UUID        `json:"user_id"`
	SubjectID   uuid.UUID        `json:"subject_id"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Deadline    *time.Time       `json:"deadline"`
	Priority    string           `json:"priority"`
	Status      AssignmentStatus `json:"status"`

	// Display only, filled by joins on subjects.
	SubjectName  string `json:"subject_name,omitempty"`
	SubjectColor string `json:"subject_color,omitempty"`

	RemindedAt *time.Time `json:"reminded_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

type AssignmentFilter struct {
	UserID           uuid.UUID
	Status           *AssignmentStatus
	SubjectID        *uuid.UUID
	ExcludeSubmitted bool
	Limit            int
	Offset           int
}

type StatusCounts struct {
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Submitted  int `json:"submitted"`
}

type DashboardStats struct {
	Subjects    int          `json:"subjects"`
	Assignments StatusCounts `json:"assignments"`
	Upcoming    int          `json:"upcoming"`
	Overdue     int          `json:"overdue"`
}

// ReminderCandidate is an assignment that is due soon and has not been reminded yet,
// joined with the owner's contact details.
type ReminderCandidate struct {
	Assignment
	UserName         string `json:"user_name"`
	UserEmail        string `json:"user_email"`
	ReminderAttempts int    `json:"reminder_attempts"`
}

// ReminderQuery selects reminder candidates. Assignments whose last failed
// attempt is after RetryBefore, or that reached MaxAttempts, are skipped.
// Never-attempted rows come first so failing rows cannot fill the batch.
type ReminderQuery struct {
	DueBefore   time.Time
	RetryBefore time.Time
	MaxAttempts int
	Limit       int
}

type Store interface {
	CreateUser(ctx context.Context, u *User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdateUserPassword(ctx context.Context, id uuid.UUID, hash []byte) error

	CreateSubject(ctx context.Context, s *Subject) error
	GetSubject(ctx context.Context, userID, id uuid.UUID) (*Subject, error)
	ListSubjects(ctx context.Context, userID uuid.UUID) ([]*Subject, error)
	UpdateSubject(ctx context.Context, s *Subject) error
	DeleteSubject(ctx context.Context, userID, id uuid.UUID) error

	CreateAssignment(ctx context.Context, a *Assignment) error
	GetAssignment(ctx context.Context, userID, id uuid.UUID) (*Assignment, error)
	ListAssignments(ctx context.Context, filter AssignmentFilter) ([]*Assignment, error)
	UpdateAssignment(ctx context.Context, a *Assignment) error
	DeleteAssignment(ctx context.Context, userID, id uuid.UUID) error

	GetDashboardStats(ctx context.Context, userID uuid.UUID, now time.Time) (*DashboardStats, error)

	// Deadline reminders
	ListReminderCandidates(ctx context.Context, q ReminderQuery) ([]*ReminderCandidate, error)
	MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) error
	// RecordReminderFailure counts a failed send. A permanent failure
	// stops further attempts for the assignment's current deadline.
	RecordReminderFailure(ctx context.Context, id uuid.UUID, at time.Time, permanent bool) error

	Close() error
}

// DayWindow returns the UTC start of now's day and the exclusive end of the
// upcoming window (start of day + 8 days), matching "today through today+7".
func DayWindow(now time.Time) (start, upcomingEnd time.Time) {
	n := now.UTC()
	start = time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 8)
}
