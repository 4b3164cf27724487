package domain

import "time"

// ActivityLogEntry is one immutable audit record. Entries are append-only:
// never mutated or deleted, and the sole source of truth on disputed records.
type ActivityLogEntry struct {
	ID     string
	LeadID *string // nil for non-lead actions (catalog administration)
	UserID string
	Action string

	EntityType string
	EntityID   string

	// OldValue/NewValue hold JSON snapshots of the entity before and after.
	OldValue string
	NewValue string

	AdminOverride bool
	Timestamp     time.Time
}

// StepSnapshot is the JSON shape written into OldValue/NewValue for step
// instance transitions.
type StepSnapshot struct {
	Status      StepStatus `json:"status"`
	Remarks     *Remarks   `json:"remarks,omitempty"`
	Attachments []string   `json:"attachments,omitempty"`
	CompletedBy *string    `json:"completed_by,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// LeadSnapshot is the JSON shape written for lead-level changes.
type LeadSnapshot struct {
	Status LeadStatus `json:"status"`
	Closed bool       `json:"closed"`
}
