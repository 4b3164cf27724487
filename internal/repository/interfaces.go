package repository

import (
	"context"
	"time"

	"github.com/solardesk/solardesk/internal/domain"
)

// StepView joins a step instance with its template, the unit the timeline
// engine and dependency resolver reason over.
type StepView struct {
	Instance domain.LeadStepInstance
	Template domain.StepTemplate
}

type LeadRepo interface {
	Create(ctx context.Context, l *domain.Lead) error
	GetByID(ctx context.Context, id string) (*domain.Lead, error)
	List(ctx context.Context, filter LeadFilter) ([]*domain.Lead, error)
	// Update conditionally writes the lead, requiring the stored updated_at
	// to equal expectedUpdatedAt. Returns ErrStaleWrite on mismatch.
	Update(ctx context.Context, l *domain.Lead, expectedUpdatedAt time.Time) error
}

// LeadFilter narrows List results. Zero values mean "any".
type LeadFilter struct {
	Status  domain.LeadStatus
	OwnerID string
	// InstallerID filters leads assigned to an installer account.
	InstallerID string
	// CustomerAccountID filters the single lead a customer login can see.
	CustomerAccountID string
}

type StepTemplateRepo interface {
	Create(ctx context.Context, t *domain.StepTemplate) error
	GetByID(ctx context.Context, id string) (*domain.StepTemplate, error)
	// ListOrdered returns all templates sorted by order_index ascending.
	ListOrdered(ctx context.Context) ([]*domain.StepTemplate, error)
	// ShiftOrderFrom increments order_index by one for every template at or
	// after index, opening a slot for insertion.
	ShiftOrderFrom(ctx context.Context, index int) error
	// InstanceCount reports how many lead step instances reference the
	// template; templates with instances are immutable.
	InstanceCount(ctx context.Context, templateID string) (int, error)
}

type StepInstanceRepo interface {
	Create(ctx context.Context, i *domain.LeadStepInstance) error
	GetByID(ctx context.Context, id string) (*domain.LeadStepInstance, error)
	// ListViewsByLead returns the lead's full step set joined with templates,
	// ordered by template order_index.
	ListViewsByLead(ctx context.Context, leadID string) ([]StepView, error)
	// Update conditionally writes the instance, requiring the stored
	// updated_at to equal expectedUpdatedAt. Returns ErrStaleWrite on
	// mismatch.
	Update(ctx context.Context, i *domain.LeadStepInstance, expectedUpdatedAt time.Time) error
	// UpdateMarker rewrites only the pending/upcoming marker. It is derived
	// state recomputed inside the same transaction as a guarded transition,
	// so it carries no conditional check of its own.
	UpdateMarker(ctx context.Context, id string, status domain.StepStatus) error
}

type ActivityLogRepo interface {
	Append(ctx context.Context, e *domain.ActivityLogEntry) error
	ListByLead(ctx context.Context, leadID string) ([]*domain.ActivityLogEntry, error)
	CountByLeadAndAction(ctx context.Context, leadID, action string) (int, error)
}

type DocumentRepo interface {
	Create(ctx context.Context, d *domain.Document) error
	ListByLead(ctx context.Context, leadID string) ([]*domain.Document, error)
	ListByLeadAndCategory(ctx context.Context, leadID, category string) ([]*domain.Document, error)
	SetStatus(ctx context.Context, id string, status domain.DocumentStatus) error
}
