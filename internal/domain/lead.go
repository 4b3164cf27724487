package domain

import "time"

// Lead is a customer's solar-installation project record. Status advances
// along the lead ladder as timeline milestones complete; Closed is an
// orthogonal overlay set only through project closure.
type Lead struct {
	ID           string
	CustomerName string
	Phone        string
	Email        string
	Address      string
	City         string
	Status       LeadStatus
	Closed       bool

	// OwnerID is the account that created the lead (agent/office/admin).
	OwnerID   string
	OwnerRole Role

	// InstallerID is assigned by the office role once a crew is picked.
	InstallerID *string
	// CustomerAccountID links a customer-role login, enabling customer
	// uploads on steps flagged CustomerUpload.
	CustomerAccountID *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Cancellable reports whether the lead may still be cancelled.
func (l *Lead) Cancellable() bool {
	return l.Status != LeadCancelled && !l.Closed
}
