package hermes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// HeaderEventType carries the last subject token, e.g. "created".
const HeaderEventType = "Edumate-Event-Type"

const (
	// maxPendingAcks bounds unacknowledged async publishes. Past it Publish
	// fails fast instead of queueing.
	maxPendingAcks = 256
	drainTimeout   = 5 * time.Second
)

// Client publishes domain events.
type Client interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close()
}

// NATSClient persists events in the EDUMATE_EVENTS stream. Publishes are
// asynchronous: acks are collected in the background and failures are logged.
type NATSClient struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	logger *slog.Logger
}

func NewNATSClient(ctx context.Context, url string, logger *slog.Logger) (*NATSClient, error) {
	nc, err := nats.Connect(url,
		nats.Name("edumate"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("hermes disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("hermes reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc,
		jetstream.WithPublishAsyncMaxPending(maxPendingAcks),
		jetstream.WithPublishAsyncErrHandler(func(_ jetstream.JetStream, msg *nats.Msg, err error) {
			logger.Warn("event not acknowledged", "subject", msg.Subject, "error", err)
		}),
	)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	c := &NATSClient{conn: nc, js: js, logger: logger}
	if err := c.ensureStream(ctx); err != nil {
		logger.Warn("failed to ensure event stream, publishing without persistence", "stream", StreamName, "error", err)
	}
	return c, nil
}

func (c *NATSClient) ensureStream(ctx context.Context) error {
	_, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Description: "EduMate assignment, subject and user events",
		Subjects:    StreamSubjects,
		MaxAge:      StreamMaxAge,
		Storage:     jetstream.FileStorage,
	})
	return err
}

// Publish encodes data as JSON and hands it to JetStream without waiting for
// the ack. It only blocks briefly when maxPendingAcks are outstanding.
func (c *NATSClient) Publish(ctx context.Context, subject string, data interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := newMessage(subject, data)
	if err != nil {
		return err
	}
	if _, err := c.js.PublishMsgAsync(msg); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close waits up to drainTimeout for outstanding acks, then drains.
func (c *NATSClient) Close() {
	select {
	case <-c.js.PublishAsyncComplete():
	case <-time.After(drainTimeout):
		c.logger.Warn("closing with unacknowledged events", "pending", c.js.PublishAsyncPending())
	}
	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
	}
}

func newMessage(subject string, data interface{}) (*nats.Msg, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", subject, err)
	}
	msg := nats.NewMsg(subject)
	msg.Data = payload
	msg.Header.Set(HeaderEventType, EventType(subject))
	return msg, nil
}

// EventType returns the final token of a subject.
func EventType(subject string) string {
	if i := strings.LastIndexByte(subject, '.'); i >= 0 {
		return subject[i+1:]
	}
	return subject
}

// Emit publishes best-effort. A nil client means events are disabled.
func Emit(ctx context.Context, c Client, logger *slog.Logger, subject string, data interface{}) {
	if c == nil {
		return
	}
	if err := c.Publish(ctx, subject, data); err != nil {
		logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}
