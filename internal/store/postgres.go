package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

const pgUniqueViolation = "23505"

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// --- Users ---

func (s *PostgresStore) CreateUser(ctx context.Context, u *User) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`,
		u.Name, u.Email, u.PasswordHash,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrEmailTaken
	}
	return err
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.getUser(ctx, `SELECT id, name, email, password_hash, created_at, updated_at FROM users WHERE id = $1`, id)
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.getUser(ctx, `SELECT id, name, email, password_hash, created_at, updated_at FROM users WHERE lower(email) = lower($1)`, email)
}

func (s *PostgresStore) getUser(ctx context.Context, query string, arg interface{}) (*User, error) {
	u := &User{}
	err := s.pool.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, id uuid.UUID, hash []byte) error {
	_, err := s.pool.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, id, hash)
	return err
}

// --- Subjects ---

const subjectColumns = `id, user_id, name, description, color, created_at, updated_at`

func (s *PostgresStore) CreateSubject(ctx context.Context, sub *Subject) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO subjects (user_id, name, description, color)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		sub.UserID, sub.Name, nullString(sub.Description), sub.Color,
	).Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)
}

func (s *PostgresStore) GetSubject(ctx context.Context, userID, id uuid.UUID) (*Subject, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+subjectColumns+` FROM subjects WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	subjects, err := scanSubjects(rows)
	if err != nil || len(subjects) == 0 {
		return nil, err
	}
	return subjects[0], nil
}

func (s *PostgresStore) ListSubjects(ctx context.Context, userID uuid.UUID) ([]*Subject, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+subjectColumns+`
		FROM subjects WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubjects(rows)
}

func (s *PostgresStore) UpdateSubject(ctx context.Context, sub *Subject) error {
	return s.pool.QueryRow(ctx, `
		UPDATE subjects SET name = $3, description = $4, color = $5, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING updated_at`,
		sub.ID, sub.UserID, sub.Name, nullString(sub.Description), sub.Color,
	).Scan(&sub.UpdatedAt)
}

func (s *PostgresStore) DeleteSubject(ctx context.Context, userID, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM subjects WHERE id = $1 AND user_id = $2`, id, userID)
	return err
}

func scanSubjects(rows pgx.Rows) ([]*Subject, error) {
	var subjects []*Subject
	for rows.Next() {
		sub := &Subject{}
		var description sql.NullString
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Name, &description, &sub.Color, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return nil, err
		}
		sub.Description = description.String
		subjects = append(subjects, sub)
	}
	return subjects, rows.Err()
}

// --- Assignments ---

const assignmentColumns = `a.id, a.user_id, a.subject_id, a.title, a.description,
	a.deadline, a.priority, a.status,
	s.name, s.color,
	a.reminded_at, a.created_at, a.updated_at`

const assignmentFrom = ` FROM assignments a JOIN subjects s ON a.subject_id = s.id`

func (s *PostgresStore) CreateAssignment(ctx context.Context, a *Assignment) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO assignments (user_id, subject_id, title, description, deadline, priority, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		a.UserID, a.SubjectID, a.Title, nullString(a.Description), a.Deadline, a.Priority, string(a.Status),
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

func (s *PostgresStore) GetAssignment(ctx context.Context, userID, id uuid.UUID) (*Assignment, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+assignmentColumns+assignmentFrom+` WHERE a.id = $1 AND a.user_id = $2`, id, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list, err := scanAssignments(rows)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return list[0], nil
}

func (s *PostgresStore) ListAssignments(ctx context.Context, filter AssignmentFilter) ([]*Assignment, error) {
	query := `SELECT ` + assignmentColumns + assignmentFrom + ` WHERE a.user_id = $1`
	args := []interface{}{filter.UserID}
	n := 1

	if filter.Status != nil {
		n++
		query += fmt.Sprintf(" AND a.status = $%d", n)
		args = append(args, string(*filter.Status))
	}
	if filter.SubjectID != nil {
		n++
		query += fmt.Sprintf(" AND a.subject_id = $%d", n)
		args = append(args, *filter.SubjectID)
	}
	if filter.ExcludeSubmitted {
		query += " AND a.status <> 'submitted'"
	}

	query += " ORDER BY a.deadline ASC NULLS LAST, a.created_at ASC"

	if filter.Limit > 0 {
		n++
		query += fmt.Sprintf(" LIMIT $%d", n)
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		n++
		query += fmt.Sprintf(" OFFSET $%d", n)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAssignments(rows)
}

func (s *PostgresStore) UpdateAssignment(ctx context.Context, a *Assignment) error {
	return s.pool.QueryRow(ctx, `
		UPDATE assignments SET
			subject_id = $3, title = $4, description = $5,
			deadline = $6, priority = $7, status = $8,
			reminded_at = $9, updated_at = now(),
			reminder_attempts = CASE WHEN deadline IS DISTINCT FROM $6 THEN 0 ELSE reminder_attempts END,
			reminder_attempted_at = CASE WHEN deadline IS DISTINCT FROM $6 THEN NULL ELSE reminder_attempted_at END,
			reminder_abandoned = CASE WHEN deadline IS DISTINCT FROM $6 THEN false ELSE reminder_abandoned END
		WHERE id = $1 AND user_id = $2
		RETURNING updated_at`,
		a.ID, a.UserID, a.SubjectID, a.Title, nullString(a.Description),
		a.Deadline, a.Priority, string(a.Status),
		a.RemindedAt,
	).Scan(&a.UpdatedAt)
}

func (s *PostgresStore) DeleteAssignment(ctx context.Context, userID, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM assignments WHERE id = $1 AND user_id = $2`, id, userID)
	return err
}

func scanAssignments(rows pgx.Rows) ([]*Assignment, error) {
	var list []*Assignment
	for rows.Next() {
		a := &Assignment{}
		var description sql.NullString
		var status string
		if err := rows.Scan(
			&a.ID, &a.UserID, &a.SubjectID, &a.Title, &description,
			&a.Deadline, &a.Priority, &status,
			&a.SubjectName, &a.SubjectColor,
			&a.RemindedAt, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, err
		}
		a.Description = description.String
		a.Status = AssignmentStatus(status)
		list = append(list, a)
	}
	return list, rows.Err()
}

// --- Dashboard ---

func (s *PostgresStore) GetDashboardStats(ctx context.Context, userID uuid.UUID, now time.Time) (*DashboardStats, error) {
	dayStart, upcomingEnd := DayWindow(now)
	stats := &DashboardStats{}
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM subjects WHERE user_id = $1),
			COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'in_progress' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'submitted' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status <> 'submitted' AND deadline >= $2 AND deadline < $3 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status <> 'submitted' AND deadline < $2 THEN 1 ELSE 0 END), 0)
		FROM assignments WHERE user_id = $1`,
		userID, dayStart, upcomingEnd,
	).Scan(
		&stats.Subjects,
		&stats.Assignments.Pending, &stats.Assignments.InProgress, &stats.Assignments.Submitted,
		&stats.Upcoming, &stats.Overdue,
	)
	if err != nil {
		return nil, fmt.Errorf("dashboard stats: %w", err)
	}
	return stats, nil
}

// --- Reminders ---

func (s *PostgresStore) ListReminderCandidates(ctx context.Context, q ReminderQuery) ([]*ReminderCandidate, error) {
	if q.Limit <= 0 {
		q.Limit = 100
	}
	if q.MaxAttempts <= 0 {
		q.MaxAttempts = 3
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+assignmentColumns+`, u.name, u.email, a.reminder_attempts
		`+assignmentFrom+`
		JOIN users u ON a.user_id = u.id
		WHERE a.status <> 'submitted'
		  AND a.reminded_at IS NULL
		  AND NOT a.reminder_abandoned
		  AND a.reminder_attempts < $3
		  AND (a.reminder_attempted_at IS NULL OR a.reminder_attempted_at <= $2)
		  AND a.deadline IS NOT NULL
		  AND a.deadline <= $1
		ORDER BY a.reminder_attempted_at ASC NULLS FIRST, a.deadline ASC
		LIMIT $4`, q.DueBefore, q.RetryBefore, q.MaxAttempts, q.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ReminderCandidate
	for rows.Next() {
		c := &ReminderCandidate{}
		var description sql.NullString
		var status string
		if err := rows.Scan(
			&c.ID, &c.UserID, &c.SubjectID, &c.Title, &description,
			&c.Deadline, &c.Priority, &status,
			&c.SubjectName, &c.SubjectColor,
			&c.RemindedAt, &c.CreatedAt, &c.UpdatedAt,
			&c.UserName, &c.UserEmail, &c.ReminderAttempts,
		); err != nil {
			return nil, err
		}
		c.Description = description.String
		c.Status = AssignmentStatus(status)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE assignments SET reminded_at = $2 WHERE id = $1`, id, at)
	return err
}

func (s *PostgresStore) RecordReminderFailure(ctx context.Context, id uuid.UUID, at time.Time, permanent bool) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE assignments SET
			reminder_attempts = reminder_attempts + 1,
			reminder_attempted_at = $2,
			reminder_abandoned = reminder_abandoned OR $3
		WHERE id = $1`, id, at, permanent)
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
