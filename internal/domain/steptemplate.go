package domain

import (
	"strings"
	"time"
)

// StepTemplate is a reusable timeline step definition. OrderIndex defines the
// canonical sequence and is kept contiguous by the catalog service; templates
// become immutable once any lead has materialized them.
type StepTemplate struct {
	ID         string
	Name       string
	Category   StepCategory
	OrderIndex int

	// AllowedRoles are the role tags permitted to act on instances of this
	// template. Admin acts through the override path regardless.
	AllowedRoles []Role

	RemarksRequired    bool
	AttachmentsAllowed bool
	// AttachmentsRequired demands at least one attachment on completion.
	AttachmentsRequired bool
	// CustomerUpload lets the lead's linked customer account satisfy the
	// step by uploading.
	CustomerUpload bool

	// MandatoryDocs are document categories that must each hold a
	// valid-status document before the step can complete.
	MandatoryDocs []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RoleAllowed reports whether r may act on instances of this template.
func (t *StepTemplate) RoleAllowed(r Role) bool {
	for _, a := range t.AllowedRoles {
		if a == r {
			return true
		}
	}
	return false
}

// CategoryForName maps a step name onto a category using the keyword
// heuristic the catalog historically relied on. It is a convenience default
// for catalog administration only; dependency gating always uses the stored
// Category tag.
func CategoryForName(name string) StepCategory {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "payment"):
		return CategoryPayment
	case strings.Contains(lower, "loan"):
		return CategoryLoan
	case strings.Contains(lower, "installation"):
		return CategoryInstallation
	case strings.Contains(lower, "closure"), strings.Contains(lower, "handover"):
		return CategoryClosure
	case strings.Contains(lower, "document"), strings.Contains(lower, "upload"):
		return CategoryDocument
	default:
		return CategoryGeneral
	}
}
