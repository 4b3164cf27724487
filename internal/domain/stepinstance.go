package domain

import "time"

// LeadStepInstance is a per-lead materialization of a step template.
// Invariant: exactly one instance per (LeadID, StepTemplateID) pair;
// CompletedAt and CompletedBy are set together or both nil.
type LeadStepInstance struct {
	ID             string
	LeadID         string
	StepTemplateID string
	Status         StepStatus

	CompletedBy *string
	CompletedAt *time.Time

	Remarks     *Remarks
	Attachments []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// MarkCompleted sets the completion fields as a unit.
func (i *LeadStepInstance) MarkCompleted(actorID string, remarks *Remarks, attachments []string, now time.Time) {
	i.Status = StepCompleted
	i.CompletedBy = &actorID
	i.CompletedAt = &now
	i.Remarks = remarks
	if len(attachments) > 0 {
		i.Attachments = attachments
	}
}

// MarkReopened reverts to pending and clears the completion fields. The prior
// remarks are preserved only in the audit trail, not on the live record.
func (i *LeadStepInstance) MarkReopened() {
	i.Status = StepPending
	i.CompletedBy = nil
	i.CompletedAt = nil
	i.Remarks = nil
}

// SamePayload reports whether remarks and attachment set match the live
// record. Used to detect duplicate completion attempts.
func (i *LeadStepInstance) SamePayload(remarks *Remarks, attachments []string) bool {
	if !remarksEqual(i.Remarks, remarks) {
		return false
	}
	if len(i.Attachments) != len(attachments) {
		return false
	}
	seen := make(map[string]bool, len(i.Attachments))
	for _, a := range i.Attachments {
		seen[a] = true
	}
	for _, a := range attachments {
		if !seen[a] {
			return false
		}
	}
	return true
}
