package service

import (
	"context"

	"github.com/solardesk/solardesk/internal/domain"
	"github.com/solardesk/solardesk/internal/repository"
)

// LeadWithTimeline bundles a lead with its ordered step views for the
// dashboard and timeline screens.
type LeadWithTimeline struct {
	Lead  *domain.Lead
	Steps []repository.StepView
}

type LeadService interface {
	// Create persists the lead and materializes one step instance per
	// catalog template, the lowest-order one pending.
	Create(ctx context.Context, l *domain.Lead) error
	Get(ctx context.Context, id string) (*LeadWithTimeline, error)
	List(ctx context.Context, filter repository.LeadFilter) ([]*domain.Lead, error)
	// UpdateContact rewrites the contact/address fields only.
	UpdateContact(ctx context.Context, actor Actor, l *domain.Lead) error
	AssignInstaller(ctx context.Context, actor Actor, leadID, installerID string) error
	LinkCustomerAccount(ctx context.Context, actor Actor, leadID, accountID string) error
	Cancel(ctx context.Context, actor Actor, leadID string) error
	Activity(ctx context.Context, leadID string) ([]*domain.ActivityLogEntry, error)
}

type CatalogService interface {
	List(ctx context.Context) ([]*domain.StepTemplate, error)
	// Create appends the template at the end of the catalog order.
	Create(ctx context.Context, t *domain.StepTemplate) error
	// InsertAt places the template at the given order index, shifting later
	// templates so order stays contiguous.
	InsertAt(ctx context.Context, t *domain.StepTemplate, index int) error
	// Seed installs the default catalog when the table is empty.
	Seed(ctx context.Context) (int, error)
}

type DocumentService interface {
	Register(ctx context.Context, d *domain.Document) error
	ListByLead(ctx context.Context, leadID string) ([]*domain.Document, error)
	Review(ctx context.Context, actor Actor, documentID string, status domain.DocumentStatus) error
}

// Actor is the authenticated identity a request acts as.
type Actor struct {
	ID   string
	Role domain.Role
}
