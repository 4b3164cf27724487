package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/solardesk/solardesk/internal/domain"
	"github.com/solardesk/solardesk/internal/repository"
)

type documentService struct {
	documents repository.DocumentRepo
}

func NewDocumentService(documents repository.DocumentRepo) DocumentService {
	return &documentService{documents: documents}
}

// Register records metadata for an already-uploaded blob. New documents
// start in pending_review; only reviewed valid documents satisfy
// mandatory-document gates.
func (s *documentService) Register(ctx context.Context, d *domain.Document) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.Status == "" {
		d.Status = domain.DocumentPendingReview
	}
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now
	return s.documents.Create(ctx, d)
}

func (s *documentService) ListByLead(ctx context.Context, leadID string) ([]*domain.Document, error) {
	return s.documents.ListByLead(ctx, leadID)
}

func (s *documentService) Review(ctx context.Context, actor Actor, documentID string, status domain.DocumentStatus) error {
	if actor.Role != domain.RoleOffice && actor.Role != domain.RoleAdmin {
		return fmt.Errorf("role %q may not review documents", actor.Role)
	}
	switch status {
	case domain.DocumentValid, domain.DocumentRejected:
	default:
		return fmt.Errorf("review status must be valid or rejected")
	}
	return s.documents.SetStatus(ctx, documentID, status)
}
