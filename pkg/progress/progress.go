// Package progress publishes pipeline stage events for external
// consumers (dashboards, job queues).
package progress

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"wanderpod/pkg/config"
	"wanderpod/pkg/model"
)

// Event is one pipeline stage notification.
type Event struct {
	RequestID string      `json:"request_id"`
	Location  string      `json:"location"`
	Stage     model.Stage `json:"stage"`
	Timestamp time.Time   `json:"timestamp"`
}

// Reporter publishes stage events. Implementations must tolerate being
// called from the request path: failures are logged, never returned.
type Reporter interface {
	Report(requestID, location string, stage model.Stage)
	Close()
}

// New returns a NATS-backed reporter, or a no-op one when no NATS URL
// is configured.
func New(cfg config.ProgressConfig) (Reporter, error) {
	if cfg.NATSUrl == "" {
		return NopReporter{}, nil
	}

	conn, err := nats.Connect(cfg.NATSUrl,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	return &natsReporter{conn: conn, subject: cfg.Subject}, nil
}

type natsReporter struct {
	conn    *nats.Conn
	subject string
}

func (r *natsReporter) Report(requestID, location string, stage model.Stage) {
	event := Event{
		RequestID: requestID,
		Location:  location,
		Stage:     stage,
		Timestamp: time.Now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		slog.Warn("Progress event marshal failed", "stage", stage, "error", err)
		return
	}

	if err := r.conn.Publish(r.subject, data); err != nil {
		slog.Warn("Progress event publish failed", "stage", stage, "error", err)
	}
}

func (r *natsReporter) Close() {
	// Flush pending events before dropping the connection
	_ = r.conn.Drain()
}

// NopReporter discards all events.
type NopReporter struct{}

func (NopReporter) Report(requestID, location string, stage model.Stage) {}
func (NopReporter) Close()                                              {}
