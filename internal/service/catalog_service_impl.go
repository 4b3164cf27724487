package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/solardesk/solardesk/internal/db"
	"github.com/solardesk/solardesk/internal/domain"
	"github.com/solardesk/solardesk/internal/repository"
)

type catalogService struct {
	templates repository.StepTemplateRepo
	uow       db.UnitOfWork
}

func NewCatalogService(templates repository.StepTemplateRepo, uow db.UnitOfWork) CatalogService {
	return &catalogService{templates: templates, uow: uow}
}

func (s *catalogService) List(ctx context.Context) ([]*domain.StepTemplate, error) {
	return s.templates.ListOrdered(ctx)
}

func (s *catalogService) Create(ctx context.Context, t *domain.StepTemplate) error {
	prepareTemplate(t)
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txTemplates := repository.NewSQLiteStepTemplateRepo(tx)
		existing, err := txTemplates.ListOrdered(ctx)
		if err != nil {
			return err
		}
		t.OrderIndex = len(existing)
		return txTemplates.Create(ctx, t)
	})
}

// InsertAt reassigns contiguous order rather than relying on sentinel index
// gaps: every template at or after the slot shifts up by one.
func (s *catalogService) InsertAt(ctx context.Context, t *domain.StepTemplate, index int) error {
	if index < 0 {
		return fmt.Errorf("insert index must be non-negative")
	}
	prepareTemplate(t)
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txTemplates := repository.NewSQLiteStepTemplateRepo(tx)
		existing, err := txTemplates.ListOrdered(ctx)
		if err != nil {
			return err
		}
		if index > len(existing) {
			index = len(existing)
		}
		if err := txTemplates.ShiftOrderFrom(ctx, index); err != nil {
			return err
		}
		t.OrderIndex = index
		return txTemplates.Create(ctx, t)
	})
}

func prepareTemplate(t *domain.StepTemplate) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Category == "" {
		t.Category = domain.CategoryForName(t.Name)
	}
	if len(t.AllowedRoles) == 0 {
		t.AllowedRoles = []domain.Role{domain.RoleOffice, domain.RoleAdmin}
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
}

// defaultCatalog is the out-of-the-box installation timeline.
var defaultCatalog = []domain.StepTemplate{
	{
		Name: "Site Survey", Category: domain.CategoryGeneral,
		AllowedRoles:    []domain.Role{domain.RoleAgent, domain.RoleOffice, domain.RoleAdmin},
		RemarksRequired: true,
	},
	{
		Name: "Document Upload", Category: domain.CategoryDocument,
		AllowedRoles:        []domain.Role{domain.RoleOffice, domain.RoleAdmin, domain.RoleCustomer},
		AttachmentsAllowed:  true,
		AttachmentsRequired: true,
		CustomerUpload:      true,
		MandatoryDocs:       []string{"identity_proof", "electricity_bill"},
	},
	{
		Name: "Quotation Accepted", Category: domain.CategoryGeneral,
		AllowedRoles:    []domain.Role{domain.RoleOffice, domain.RoleAdmin},
		RemarksRequired: true,
	},
	{
		Name: "Payment Received", Category: domain.CategoryPayment,
		AllowedRoles:       []domain.Role{domain.RoleOffice, domain.RoleAdmin},
		RemarksRequired:    true,
		AttachmentsAllowed: true,
	},
	{
		Name: "Installation Completed", Category: domain.CategoryInstallation,
		AllowedRoles:       []domain.Role{domain.RoleInstaller, domain.RoleOffice, domain.RoleAdmin},
		RemarksRequired:    true,
		AttachmentsAllowed: true,
	},
	{
		Name: "Net Meter Installed", Category: domain.CategoryGeneral,
		AllowedRoles:       []domain.Role{domain.RoleOffice, domain.RoleAdmin},
		AttachmentsAllowed: true,
	},
	{
		Name: "Project Handover", Category: domain.CategoryClosure,
		AllowedRoles:    []domain.Role{domain.RoleOffice, domain.RoleAdmin},
		RemarksRequired: true,
	},
}

// Seed installs the default catalog when the table is empty. Returns the
// number of templates created.
func (s *catalogService) Seed(ctx context.Context) (int, error) {
	var created int
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txTemplates := repository.NewSQLiteStepTemplateRepo(tx)
		existing, err := txTemplates.ListOrdered(ctx)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return nil
		}
		now := time.Now().UTC()
		for i := range defaultCatalog {
			t := defaultCatalog[i]
			t.ID = uuid.New().String()
			t.OrderIndex = i
			t.CreatedAt = now
			t.UpdatedAt = now
			if err := txTemplates.Create(ctx, &t); err != nil {
				return fmt.Errorf("seeding template %q: %w", t.Name, err)
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}
