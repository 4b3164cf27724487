package domain

import "time"

// Document is metadata over an opaque blob-store path. The upload transport
// and the bytes themselves live outside this system; validation only ever
// consults category and status.
type Document struct {
	ID         string
	LeadID     string
	Category   string
	Path       string
	Status     DocumentStatus
	UploadedBy string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
