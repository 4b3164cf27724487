package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/solardesk/solardesk/internal/domain"
)

// Lead options
type LeadOption func(*domain.Lead)

func WithLeadStatus(s domain.LeadStatus) LeadOption {
	return func(l *domain.Lead) {
		l.Status = s
	}
}

func WithClosed() LeadOption {
	return func(l *domain.Lead) {
		l.Closed = true
	}
}

func WithOwner(id string, role domain.Role) LeadOption {
	return func(l *domain.Lead) {
		l.OwnerID = id
		l.OwnerRole = role
	}
}

func WithInstaller(id string) LeadOption {
	return func(l *domain.Lead) {
		l.InstallerID = &id
	}
}

func WithCustomerAccount(id string) LeadOption {
	return func(l *domain.Lead) {
		l.CustomerAccountID = &id
	}
}

func NewTestLead(name string, opts ...LeadOption) *domain.Lead {
	now := time.Now().UTC()
	l := &domain.Lead{
		ID:           uuid.New().String(),
		CustomerName: name,
		Phone:        "9900000000",
		City:         "Pune",
		Status:       domain.LeadNew,
		OwnerID:      "agent-1",
		OwnerRole:    domain.RoleAgent,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// StepTemplate options
type TemplateOption func(*domain.StepTemplate)

func WithCategory(c domain.StepCategory) TemplateOption {
	return func(t *domain.StepTemplate) {
		t.Category = c
	}
}

func WithOrder(i int) TemplateOption {
	return func(t *domain.StepTemplate) {
		t.OrderIndex = i
	}
}

func WithAllowedRoles(roles ...domain.Role) TemplateOption {
	return func(t *domain.StepTemplate) {
		t.AllowedRoles = roles
	}
}

func WithRemarksRequired() TemplateOption {
	return func(t *domain.StepTemplate) {
		t.RemarksRequired = true
	}
}

func WithAttachments(required bool) TemplateOption {
	return func(t *domain.StepTemplate) {
		t.AttachmentsAllowed = true
		t.AttachmentsRequired = required
	}
}

func WithCustomerUpload() TemplateOption {
	return func(t *domain.StepTemplate) {
		t.CustomerUpload = true
	}
}

func WithMandatoryDocs(categories ...string) TemplateOption {
	return func(t *domain.StepTemplate) {
		t.MandatoryDocs = categories
	}
}

func NewTestTemplate(name string, order int, opts ...TemplateOption) *domain.StepTemplate {
	now := time.Now().UTC()
	t := &domain.StepTemplate{
		ID:           uuid.New().String(),
		Name:         name,
		Category:     domain.CategoryGeneral,
		OrderIndex:   order,
		AllowedRoles: []domain.Role{domain.RoleOffice, domain.RoleAdmin},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Step instance options
type InstanceOption func(*domain.LeadStepInstance)

func WithStepStatus(s domain.StepStatus) InstanceOption {
	return func(i *domain.LeadStepInstance) {
		i.Status = s
	}
}

func Completed(by string, remarks *domain.Remarks) InstanceOption {
	return func(i *domain.LeadStepInstance) {
		now := time.Now().UTC()
		i.Status = domain.StepCompleted
		i.CompletedBy = &by
		i.CompletedAt = &now
		i.Remarks = remarks
	}
}

func NewTestInstance(leadID, templateID string, opts ...InstanceOption) *domain.LeadStepInstance {
	now := time.Now().UTC()
	i := &domain.LeadStepInstance{
		ID:             uuid.New().String(),
		LeadID:         leadID,
		StepTemplateID: templateID,
		Status:         domain.StepUpcoming,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Document options
type DocumentOption func(*domain.Document)

func WithDocumentStatus(s domain.DocumentStatus) DocumentOption {
	return func(d *domain.Document) {
		d.Status = s
	}
}

func NewTestDocument(leadID, category string, opts ...DocumentOption) *domain.Document {
	now := time.Now().UTC()
	d := &domain.Document{
		ID:         uuid.New().String(),
		LeadID:     leadID,
		Category:   category,
		Path:       "blobs/" + uuid.New().String(),
		Status:     domain.DocumentPendingReview,
		UploadedBy: "customer-1",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}
