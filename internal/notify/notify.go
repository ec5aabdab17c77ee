// Package notify delivers privacy alerts raised by automatic scans.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/privacycheck/privacycheck/internal/severity"
)

// Notification is one user-facing alert.
type Notification struct {
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	URL       string            `json:"url"`
	RiskLevel severity.Severity `json:"riskLevel"`
	ReportID  string            `json:"reportId,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	logger *log.Logger
}

// NewLogNotifier returns a LogNotifier. A nil logger uses log.Default().
func NewLogNotifier(logger *log.Logger) *LogNotifier {
	if logger == nil {
		logger = log.Default()
	}
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(_ context.Context, n Notification) error {
	l.logger.Printf("%s [%s] %s", n.Title, n.RiskLevel, n.Message)
	return nil
}

// NATSNotifier publishes notifications as JSON on a NATS subject.
type NATSNotifier struct {
	nc      *nats.Conn
	subject string
	logger  *log.Logger
}

// NewNATSNotifier connects to the NATS server at url.
func NewNATSNotifier(url, subject string, logger *log.Logger) (*NATSNotifier, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	nc, err := nats.Connect(url,
		nats.Name("privacycheck"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Printf("nats disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Printf("nats reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &NATSNotifier{nc: nc, subject: subject, logger: logger}, nil
}

// Subject returns the subject notifications are published on.
func (n *NATSNotifier) Subject() string { return n.subject }

func (n *NATSNotifier) Notify(ctx context.Context, note Notification) error {
	data, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := n.nc.Publish(n.subject, data); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	if err := n.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush notification: %w", err)
	}
	return nil
}

// Close drains and closes the connection.
func (n *NATSNotifier) Close() error {
	if n.nc == nil {
		return nil
	}
	return n.nc.Drain()
}
