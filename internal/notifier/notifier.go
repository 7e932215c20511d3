package notifier

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/EduMate/internal/hermes"
	"github.com/MikeSquared-Agency/EduMate/internal/mailer"
	"github.com/MikeSquared-Agency/EduMate/internal/store"
)

// ReminderStore is the slice of store.Store the notifier needs.
type ReminderStore interface {
	ListReminderCandidates(ctx context.Context, q store.ReminderQuery) ([]*store.ReminderCandidate, error)
	MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) error
	RecordReminderFailure(ctx context.Context, id uuid.UUID, at time.Time, permanent bool) error
}

const (
	OutcomeSent     = "sent"
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected"
)

type Options struct {
	TickInterval time.Duration
	Lead         time.Duration
	BatchSize    int
	MaxAttempts  int
	Now          func() time.Time

	// RetryAfter is the wait before a failed send is tried again.
	// Defaults to TickInterval.
	RetryAfter time.Duration

	// OnOutcome is called once per attempted e-mail.
	OnOutcome func(outcome string)
}

// Notifier e-mails owners of assignments whose deadline is within the lead window.
type Notifier struct {
	store  ReminderStore
	mailer mailer.Mailer
	hermes hermes.Client
	opts   Options
	logger *slog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func New(s ReminderStore, m mailer.Mailer, h hermes.Client, opts Options, logger *slog.Logger) *Notifier {
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Hour
	}
	if opts.Lead <= 0 {
		opts.Lead = 24 * time.Hour
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = opts.TickInterval
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.OnOutcome == nil {
		opts.OnOutcome = func(string) {}
	}
	return &Notifier{
		store:  s,
		mailer: m,
		hermes: h,
		opts:   opts,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

func (n *Notifier) Start(ctx context.Context) {
	n.wg.Add(1)
	go n.loop(ctx)
}

func (n *Notifier) Stop() {
	n.stopOnce.Do(func() { close(n.stopCh) })
	n.wg.Wait()
}

func (n *Notifier) loop(ctx context.Context) {
	defer n.wg.Done()
	ticker := time.NewTicker(n.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-n.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.Tick(ctx)
		}
	}
}

// Tick runs one reminder pass and returns how many e-mails were sent.
// Failed sends are retried after RetryAfter, up to MaxAttempts. Rejected
// messages are not retried.
func (n *Notifier) Tick(ctx context.Context) int {
	now := n.opts.Now()
	candidates, err := n.store.ListReminderCandidates(ctx, store.ReminderQuery{
		DueBefore:   now.Add(n.opts.Lead),
		RetryBefore: now.Add(-n.opts.RetryAfter),
		MaxAttempts: n.opts.MaxAttempts,
		Limit:       n.opts.BatchSize,
	})
	if err != nil {
		n.logger.Error("failed to list reminder candidates", "error", err)
		return 0
	}
	if len(candidates) == 0 {
		return 0
	}

	n.logger.Info("sending deadline reminders", "count", len(candidates))
	sent := 0
	for _, c := range candidates {
		if ctx.Err() != nil {
			break
		}
		if n.remind(ctx, c, now) {
			sent++
		}
	}
	return sent
}

func (n *Notifier) remind(ctx context.Context, c *store.ReminderCandidate, now time.Time) bool {
	if c.Deadline == nil {
		return false
	}
	err := n.mailer.SendAssignmentReminder(ctx, mailer.ReminderEmail{
		ToName:   c.UserName,
		ToEmail:  c.UserEmail,
		Title:    c.Title,
		Subject:  c.SubjectName,
		Deadline: *c.Deadline,
	})
	if err != nil {
		permanent := errors.Is(err, mailer.ErrRejected)
		if permanent {
			n.opts.OnOutcome(OutcomeRejected)
		} else {
			n.opts.OnOutcome(OutcomeFailed)
		}
		n.logger.Warn("failed to send reminder",
			"assignment_id", c.ID,
			"attempt", c.ReminderAttempts+1,
			"permanent", permanent,
			"error", err,
		)
		if err := n.store.RecordReminderFailure(ctx, c.ID, now, permanent); err != nil {
			n.logger.Error("failed to record reminder failure", "assignment_id", c.ID, "error", err)
		}
		return false
	}
	n.opts.OnOutcome(OutcomeSent)

	if err := n.store.MarkReminded(ctx, c.ID, now); err != nil {
		n.logger.Error("failed to mark assignment reminded", "assignment_id", c.ID, "error", err)
	}
	hermes.Emit(ctx, n.hermes, n.logger, hermes.SubjectAssignmentReminded(c.ID.String()), hermes.AssignmentRemindedEvent{
		AssignmentID: c.ID.String(),
		UserID:       c.UserID.String(),
		Email:        c.UserEmail,
		Deadline:     *c.Deadline,
		Timestamp:    now,
	})
	return true
}
