package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Subject convention: notifications.timeline.<event_type>.
const subjectPrefix = "notifications.timeline."

// NATSNotifier publishes step events to NATS for the notification service.
// All publish operations are non-fatal — errors are logged but never
// propagated, so notification failures never interrupt transitions.
type NATSNotifier struct {
	conn *nats.Conn
	log  zerolog.Logger
}

// NewNATSNotifier connects to the given NATS URL.
func NewNATSNotifier(url string, log zerolog.Logger) (*NATSNotifier, error) {
	conn, err := nats.Connect(url, nats.Name("solardesk"))
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	return &NATSNotifier{conn: conn, log: log}, nil
}

// Close drains the connection.
func (n *NATSNotifier) Close() {
	if n.conn != nil {
		_ = n.conn.Drain()
	}
}

func (n *NATSNotifier) PublishStepEvent(ctx context.Context, ev StepEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		n.log.Warn().Err(err).Str("event_type", ev.EventType).Msg("notify: failed to marshal event")
		return
	}

	subject := subjectPrefix + ev.EventType
	if err := n.conn.Publish(subject, data); err != nil {
		n.log.Warn().Err(err).
			Str("subject", subject).
			Str("lead_id", ev.LeadID).
			Msg("notify: failed to publish event (non-fatal)")
		return
	}

	n.log.Debug().
		Str("subject", subject).
		Str("lead_id", ev.LeadID).
		Str("step", ev.StepName).
		Msg("notify: event published")
}
