package hermes

import "time"

type AssignmentEvent struct {
	AssignmentID string     `json:"assignment_id"`
	UserID       string     `json:"user_id"`
	SubjectID    string     `json:"subject_id,omitempty"`
	Title        string     `json:"title,omitempty"`
	Status       string     `json:"status,omitempty"`
	Priority     string     `json:"priority,omitempty"`
	Deadline     *time.Time `json:"deadline,omitempty"`
	Timestamp    time.Time  `json:"timestamp"`
}

type AssignmentRemindedEvent struct {
	AssignmentID string    `json:"assignment_id"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	Deadline     time.Time `json:"deadline"`
	Timestamp    time.Time `json:"timestamp"`
}

type SubjectEvent struct {
	SubjectID string    `json:"subject_id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type UserRegisteredEvent struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Timestamp time.Time `json:"timestamp"`
}
