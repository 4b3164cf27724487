package notify

import (
	"context"

	"github.com/solardesk/solardesk/internal/domain"
)

// StepEvent describes a committed timeline transition for downstream
// notification delivery. Delivery itself is an external concern; publishers
// here only hand the event off.
type StepEvent struct {
	EventType  string            `json:"event_type"`
	LeadID     string            `json:"lead_id"`
	StepName   string            `json:"step_name"`
	ActorID    string            `json:"actor_id"`
	LeadStatus domain.LeadStatus `json:"lead_status"`
	Override   bool              `json:"override,omitempty"`
}

// Notifier publishes step events. Implementations must be non-fatal: a
// failed publish never interrupts the transition that produced it.
type Notifier interface {
	PublishStepEvent(ctx context.Context, ev StepEvent)
}

// Noop discards all events.
type Noop struct{}

func (Noop) PublishStepEvent(context.Context, StepEvent) {}
