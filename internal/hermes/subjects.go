package hermes

import "time"

const (
	StreamName   = "EDUMATE_EVENTS"
	StreamMaxAge = 30 * 24 * time.Hour
)

var StreamSubjects = []string{"edumate.assignment.>", "edumate.subject.>", "edumate.user.>"}

// Assignment lifecycle subjects
func SubjectAssignmentCreated(id string) string   { return "edumate.assignment." + id + ".created" }
func SubjectAssignmentUpdated(id string) string   { return "edumate.assignment." + id + ".updated" }
func SubjectAssignmentSubmitted(id string) string { return "edumate.assignment." + id + ".submitted" }
func SubjectAssignmentDeleted(id string) string   { return "edumate.assignment." + id + ".deleted" }
func SubjectAssignmentReminded(id string) string  { return "edumate.assignment." + id + ".reminded" }

func SubjectSubjectCreated(id string) string { return "edumate.subject." + id + ".created" }
func SubjectSubjectDeleted(id string) string { return "edumate.subject." + id + ".deleted" }

func SubjectUserRegistered(id string) string { return "edumate.user." + id + ".registered" }
