package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	htmltmpl "html/template"
	"log/slog"
	"net/http"
	texttmpl "text/template"
	"time"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	DefaultHost = "https://api.sendgrid.com"
	endpoint    = "/v3/mail/send"
)

// ErrRejected marks a message SendGrid refused outright, such as an invalid
// recipient address. Resending it unchanged will fail again.
var ErrRejected = errors.New("message rejected")

// ReminderEmail describes one upcoming-deadline notice.
type ReminderEmail struct {
	ToName   string
	ToEmail  string
	Title    string
	Subject  string
	Deadline time.Time
}

// FormattedDeadline is the human form used in both bodies.
func (r ReminderEmail) FormattedDeadline() string {
	return r.Deadline.UTC().Format("Monday, January 2, 2006 at 3:04 PM MST")
}

type Mailer interface {
	SendAssignmentReminder(ctx context.Context, msg ReminderEmail) error
}

var htmlReminder = htmltmpl.Must(htmltmpl.New("reminder").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #3B82F6;">Assignment Reminder</h2>
  <p>Hi {{if .ToName}}{{.ToName}}{{else}}there{{end}}!</p>
  <p>This is a friendly reminder about your upcoming assignment:</p>
  <div style="background-color: #F3F4F6; padding: 20px; border-radius: 8px; margin: 20px 0;">
    <h3 style="margin: 0; color: #1F2937;">{{.Title}}</h3>
    <p style="margin: 5px 0; color: #6B7280;">Subject: {{.Subject}}</p>
    <p style="margin: 5px 0; color: #EF4444; font-weight: bold;">Due: {{.FormattedDeadline}}</p>
  </div>
  <p>Don't forget to submit your assignment on time!</p>
  <p>Best regards,<br>EduMate AI Team</p>
</div>`))

var textReminder = texttmpl.Must(texttmpl.New("reminder").Parse(`Hi {{if .ToName}}{{.ToName}}{{else}}there{{end}}!

This is a friendly reminder about your upcoming assignment:

  {{.Title}}
  Subject: {{.Subject}}
  Due: {{.FormattedDeadline}}

Don't forget to submit your assignment on time!

Best regards,
EduMate AI Team
`))

// Render returns the e-mail subject line and its plain-text and HTML bodies.
func Render(msg ReminderEmail) (subject, text, html string, err error) {
	var tb, hb bytes.Buffer
	if err := textReminder.Execute(&tb, msg); err != nil {
		return "", "", "", fmt.Errorf("render text: %w", err)
	}
	if err := htmlReminder.Execute(&hb, msg); err != nil {
		return "", "", "", fmt.Errorf("render html: %w", err)
	}
	return "Assignment Reminder: " + msg.Title, tb.String(), hb.String(), nil
}

type SendgridMailer struct {
	key  string
	host string
	from *sgmail.Email
}

func NewSendgridMailer(key, fromName, fromAddress string) *SendgridMailer {
	return &SendgridMailer{
		key:  key,
		host: DefaultHost,
		from: sgmail.NewEmail(fromName, fromAddress),
	}
}

func (m *SendgridMailer) prepare(msg ReminderEmail) (*sgmail.SGMailV3, error) {
	subject, text, html, err := Render(msg)
	if err != nil {
		return nil, err
	}
	p := sgmail.NewPersonalization()
	p.Subject = subject
	p.AddTos(sgmail.NewEmail(msg.ToName, msg.ToEmail))

	v3 := sgmail.NewV3Mail()
	v3.SetFrom(m.from)
	v3.AddPersonalizations(p)
	v3.AddContent(
		sgmail.NewContent("text/plain", text),
		sgmail.NewContent("text/html", html),
	)
	return v3, nil
}

func (m *SendgridMailer) SendAssignmentReminder(ctx context.Context, msg ReminderEmail) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v3, err := m.prepare(msg)
	if err != nil {
		return err
	}
	req := sendgrid.GetRequest(m.key, endpoint, m.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(v3)

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	switch {
	case res.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("sendgrid: %w: status %d: %s", ErrRejected, res.StatusCode, res.Body)
	case res.StatusCode >= http.StatusBadRequest:
		return fmt.Errorf("sendgrid: status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

// LogMailer only logs. It stands in when no SendGrid key is configured.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendAssignmentReminder(_ context.Context, msg ReminderEmail) error {
	m.logger.Info("reminder email (not sent)",
		"to", msg.ToEmail,
		"title", msg.Title,
		"deadline", msg.Deadline,
	)
	return nil
}
