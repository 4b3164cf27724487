package timeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/solardesk/solardesk/internal/domain"
	"github.com/solardesk/solardesk/internal/repository"
)

// DocumentSource is the read-only slice of the external document store the
// validation policy consults. Satisfied by repository.SQLiteDocumentRepo.
type DocumentSource interface {
	ListByLeadAndCategory(ctx context.Context, leadID, category string) ([]*domain.Document, error)
}

// ValidationPolicy enforces per-step completion preconditions. Failures are
// user-correctable input errors and always enumerate every unmet
// requirement.
type ValidationPolicy struct {
	docs DocumentSource
}

// NewValidationPolicy creates a policy backed by the given document source.
func NewValidationPolicy(docs DocumentSource) *ValidationPolicy {
	return &ValidationPolicy{docs: docs}
}

// ValidateComplete checks remarks, attachments, remark payload shape, and
// mandatory document presence for a complete action on the given step.
func (p *ValidationPolicy) ValidateComplete(ctx context.Context, view repository.StepView, remarks *domain.Remarks, attachments []string) error {
	var missing []string

	t := view.Template

	if t.RemarksRequired && remarks.Empty() {
		missing = append(missing, "remarks")
	}

	if remarks != nil {
		if err := remarks.Validate(); err != nil {
			missing = append(missing, err.Error())
		} else if want := domain.KindForCategory(t.Category); want != domain.RemarkNote &&
			!remarks.Empty() && remarks.Kind != want {
			missing = append(missing, fmt.Sprintf("remarks of kind %q (got %q)", want, remarks.Kind))
		}
	}

	if t.AttachmentsRequired && len(attachments) == 0 {
		missing = append(missing, "at least one attachment")
	}
	if !t.AttachmentsAllowed && len(attachments) > 0 {
		missing = append(missing, "no attachments (step does not accept them)")
	}

	for _, category := range t.MandatoryDocs {
		ok, err := p.hasValidDocument(ctx, view.Instance.LeadID, category)
		if err != nil {
			return fmt.Errorf("consulting document store for %q: %w", category, err)
		}
		if !ok {
			missing = append(missing, fmt.Sprintf("valid document in category %q", category))
		}
	}

	if len(missing) > 0 {
		return newValidationFailed(t.Name, missing)
	}
	return nil
}

// ValidateSkip requires a non-empty note explaining the skip; closure steps
// can never be skipped.
func (p *ValidationPolicy) ValidateSkip(view repository.StepView, remarks *domain.Remarks) error {
	var missing []string
	if view.Template.Category == domain.CategoryClosure {
		return newValidationFailed(view.Template.Name, []string{"closure step cannot be skipped"})
	}
	if remarks == nil || strings.TrimSpace(remarks.Note) == "" {
		missing = append(missing, "remarks explaining the skip")
	}
	if len(missing) > 0 {
		return newValidationFailed(view.Template.Name, missing)
	}
	return nil
}

func (p *ValidationPolicy) hasValidDocument(ctx context.Context, leadID, category string) (bool, error) {
	docs, err := p.docs.ListByLeadAndCategory(ctx, leadID, category)
	if err != nil {
		return false, err
	}
	for _, d := range docs {
		if d.Status == domain.DocumentValid {
			return true, nil
		}
	}
	return false, nil
}
