package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/solardesk/solardesk/internal/db"
	"github.com/solardesk/solardesk/internal/domain"
	"github.com/solardesk/solardesk/internal/repository"
)

type leadService struct {
	leads     repository.LeadRepo
	instances repository.StepInstanceRepo
	templates repository.StepTemplateRepo
	activity  repository.ActivityLogRepo
	uow       db.UnitOfWork
}

func NewLeadService(
	leads repository.LeadRepo,
	instances repository.StepInstanceRepo,
	templates repository.StepTemplateRepo,
	activity repository.ActivityLogRepo,
	uow db.UnitOfWork,
) LeadService {
	return &leadService{
		leads:     leads,
		instances: instances,
		templates: templates,
		activity:  activity,
		uow:       uow,
	}
}

func (s *leadService) Create(ctx context.Context, l *domain.Lead) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	l.Status = domain.LeadNew
	l.CreatedAt = now
	l.UpdatedAt = now

	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txLeads := repository.NewSQLiteLeadRepo(tx)
		txTemplates := repository.NewSQLiteStepTemplateRepo(tx)
		txInstances := repository.NewSQLiteStepInstanceRepo(tx)
		txActivity := repository.NewSQLiteActivityLogRepo(tx)

		if err := txLeads.Create(ctx, l); err != nil {
			return err
		}

		templates, err := txTemplates.ListOrdered(ctx)
		if err != nil {
			return err
		}
		for idx, t := range templates {
			status := domain.StepUpcoming
			if idx == 0 {
				status = domain.StepPending
			}
			inst := &domain.LeadStepInstance{
				ID:             uuid.New().String(),
				LeadID:         l.ID,
				StepTemplateID: t.ID,
				Status:         status,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if err := txInstances.Create(ctx, inst); err != nil {
				return fmt.Errorf("materializing step %q: %w", t.Name, err)
			}
		}

		return appendLeadEntry(ctx, txActivity, l, l.OwnerID, domain.ActivityLeadCreated, nil)
	})
}

func (s *leadService) Get(ctx context.Context, id string) (*LeadWithTimeline, error) {
	lead, err := s.leads.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	steps, err := s.instances.ListViewsByLead(ctx, id)
	if err != nil {
		return nil, err
	}
	return &LeadWithTimeline{Lead: lead, Steps: steps}, nil
}

func (s *leadService) List(ctx context.Context, filter repository.LeadFilter) ([]*domain.Lead, error) {
	return s.leads.List(ctx, filter)
}

func (s *leadService) UpdateContact(ctx context.Context, actor Actor, l *domain.Lead) error {
	if err := requireOffice(actor); err != nil {
		return err
	}
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txLeads := repository.NewSQLiteLeadRepo(tx)
		txActivity := repository.NewSQLiteActivityLogRepo(tx)

		current, err := txLeads.GetByID(ctx, l.ID)
		if err != nil {
			return err
		}
		old := *current
		current.CustomerName = l.CustomerName
		current.Phone = l.Phone
		current.Email = l.Email
		current.Address = l.Address
		current.City = l.City
		if err := txLeads.Update(ctx, current, old.UpdatedAt); err != nil {
			return err
		}
		return appendLeadEntry(ctx, txActivity, current, actor.ID, domain.ActivityLeadUpdated, &old)
	})
}

func (s *leadService) AssignInstaller(ctx context.Context, actor Actor, leadID, installerID string) error {
	if err := requireOffice(actor); err != nil {
		return err
	}
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txLeads := repository.NewSQLiteLeadRepo(tx)
		txActivity := repository.NewSQLiteActivityLogRepo(tx)

		current, err := txLeads.GetByID(ctx, leadID)
		if err != nil {
			return err
		}
		old := *current
		current.InstallerID = &installerID
		if err := txLeads.Update(ctx, current, old.UpdatedAt); err != nil {
			return err
		}
		return appendLeadEntry(ctx, txActivity, current, actor.ID, domain.ActivityInstallerSet, &old)
	})
}

func (s *leadService) LinkCustomerAccount(ctx context.Context, actor Actor, leadID, accountID string) error {
	if err := requireOffice(actor); err != nil {
		return err
	}
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txLeads := repository.NewSQLiteLeadRepo(tx)
		txActivity := repository.NewSQLiteActivityLogRepo(tx)

		current, err := txLeads.GetByID(ctx, leadID)
		if err != nil {
			return err
		}
		old := *current
		current.CustomerAccountID = &accountID
		if err := txLeads.Update(ctx, current, old.UpdatedAt); err != nil {
			return err
		}
		return appendLeadEntry(ctx, txActivity, current, actor.ID, domain.ActivityLeadUpdated, &old)
	})
}

func (s *leadService) Cancel(ctx context.Context, actor Actor, leadID string) error {
	if err := requireOffice(actor); err != nil {
		return err
	}
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txLeads := repository.NewSQLiteLeadRepo(tx)
		txActivity := repository.NewSQLiteActivityLogRepo(tx)

		current, err := txLeads.GetByID(ctx, leadID)
		if err != nil {
			return err
		}
		if !current.Cancellable() {
			return fmt.Errorf("lead %s cannot be cancelled in its current state", leadID)
		}
		old := *current
		current.Status = domain.LeadCancelled
		if err := txLeads.Update(ctx, current, old.UpdatedAt); err != nil {
			return err
		}
		return appendLeadEntry(ctx, txActivity, current, actor.ID, domain.ActivityLeadCancelled, &old)
	})
}

func (s *leadService) Activity(ctx context.Context, leadID string) ([]*domain.ActivityLogEntry, error) {
	return s.activity.ListByLead(ctx, leadID)
}

func requireOffice(actor Actor) error {
	if actor.Role != domain.RoleOffice && actor.Role != domain.RoleAdmin {
		return fmt.Errorf("role %q may not modify leads", actor.Role)
	}
	return nil
}

func appendLeadEntry(ctx context.Context, activity repository.ActivityLogRepo,
	lead *domain.Lead, actorID, action string, old *domain.Lead) error {

	newJSON, err := json.Marshal(domain.LeadSnapshot{Status: lead.Status, Closed: lead.Closed})
	if err != nil {
		return fmt.Errorf("encoding lead snapshot: %w", err)
	}
	oldStr := ""
	if old != nil {
		oldJSON, err := json.Marshal(domain.LeadSnapshot{Status: old.Status, Closed: old.Closed})
		if err != nil {
			return fmt.Errorf("encoding lead snapshot: %w", err)
		}
		oldStr = string(oldJSON)
	}

	leadID := lead.ID
	return activity.Append(ctx, &domain.ActivityLogEntry{
		ID:         uuid.New().String(),
		LeadID:     &leadID,
		UserID:     actorID,
		Action:     action,
		EntityType: "lead",
		EntityID:   lead.ID,
		OldValue:   oldStr,
		NewValue:   string(newJSON),
		Timestamp:  time.Now().UTC(),
	})
}
