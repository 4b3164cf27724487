package server

import (
	"time"

	"github.com/solardesk/solardesk/internal/domain"
	"github.com/solardesk/solardesk/internal/repository"
	"github.com/solardesk/solardesk/internal/timeline"
)

type leadResponse struct {
	ID                string  `json:"id"`
	CustomerName      string  `json:"customer_name"`
	Phone             string  `json:"phone"`
	Email             string  `json:"email,omitempty"`
	Address           string  `json:"address,omitempty"`
	City              string  `json:"city,omitempty"`
	Status            string  `json:"status"`
	Closed            bool    `json:"closed"`
	OwnerID           string  `json:"owner_id"`
	OwnerRole         string  `json:"owner_role"`
	InstallerID       *string `json:"installer_id,omitempty"`
	CustomerAccountID *string `json:"customer_account_id,omitempty"`
	CreatedAt         string  `json:"created_at"`
	UpdatedAt         string  `json:"updated_at"`
}

func toLeadResponse(l *domain.Lead) leadResponse {
	return leadResponse{
		ID:                l.ID,
		CustomerName:      l.CustomerName,
		Phone:             l.Phone,
		Email:             l.Email,
		Address:           l.Address,
		City:              l.City,
		Status:            string(l.Status),
		Closed:            l.Closed,
		OwnerID:           l.OwnerID,
		OwnerRole:         string(l.OwnerRole),
		InstallerID:       l.InstallerID,
		CustomerAccountID: l.CustomerAccountID,
		CreatedAt:         l.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:         l.UpdatedAt.Format(time.RFC3339Nano),
	}
}

type stepResponse struct {
	ID          string          `json:"id"`
	TemplateID  string          `json:"template_id"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	OrderIndex  int             `json:"order_index"`
	Status      string          `json:"status"`
	CompletedBy *string         `json:"completed_by,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Remarks     *domain.Remarks `json:"remarks,omitempty"`
	Attachments []string        `json:"attachments,omitempty"`
	UpdatedAt   string          `json:"updated_at"`
}

func toStepResponse(v repository.StepView) stepResponse {
	return stepResponse{
		ID:          v.Instance.ID,
		TemplateID:  v.Template.ID,
		Name:        v.Template.Name,
		Category:    string(v.Template.Category),
		OrderIndex:  v.Template.OrderIndex,
		Status:      string(v.Instance.Status),
		CompletedBy: v.Instance.CompletedBy,
		CompletedAt: v.Instance.CompletedAt,
		Remarks:     v.Instance.Remarks,
		Attachments: v.Instance.Attachments,
		UpdatedAt:   v.Instance.UpdatedAt.Format(time.RFC3339Nano),
	}
}

type leadDetailResponse struct {
	Lead  leadResponse   `json:"lead"`
	Steps []stepResponse `json:"steps"`
}

type transitionResponse struct {
	StepID     string `json:"step_id"`
	StepName   string `json:"step_name"`
	StepStatus string `json:"step_status"`
	LeadStatus string `json:"lead_status"`
	LeadClosed bool   `json:"lead_closed"`
	Duplicate  bool   `json:"duplicate,omitempty"`
	UpdatedAt  string `json:"updated_at"`
}

func toTransitionResponse(r *timeline.TransitionResult) transitionResponse {
	return transitionResponse{
		StepID:     r.Step.ID,
		StepName:   r.StepName,
		StepStatus: string(r.Step.Status),
		LeadStatus: string(r.LeadStatus),
		LeadClosed: r.LeadClosed,
		Duplicate:  r.Duplicate,
		UpdatedAt:  r.Step.UpdatedAt.Format(time.RFC3339Nano),
	}
}

type overrideResponse struct {
	StepsChanged []string `json:"steps_changed"`
	LeadStatus   string   `json:"lead_status"`
	LeadClosed   bool     `json:"lead_closed"`
}

type activityResponse struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	OldValue      string    `json:"old_value,omitempty"`
	NewValue      string    `json:"new_value,omitempty"`
	AdminOverride bool      `json:"admin_override"`
	Timestamp     time.Time `json:"timestamp"`
}

func toActivityResponse(e *domain.ActivityLogEntry) activityResponse {
	return activityResponse{
		ID:            e.ID,
		UserID:        e.UserID,
		Action:        e.Action,
		EntityType:    e.EntityType,
		EntityID:      e.EntityID,
		OldValue:      e.OldValue,
		NewValue:      e.NewValue,
		AdminOverride: e.AdminOverride,
		Timestamp:     e.Timestamp,
	}
}

type templateResponse struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Category            string   `json:"category"`
	OrderIndex          int      `json:"order_index"`
	AllowedRoles        []string `json:"allowed_roles"`
	RemarksRequired     bool     `json:"remarks_required"`
	AttachmentsAllowed  bool     `json:"attachments_allowed"`
	AttachmentsRequired bool     `json:"attachments_required"`
	CustomerUpload      bool     `json:"customer_upload"`
	MandatoryDocs       []string `json:"mandatory_docs,omitempty"`
}

func toTemplateResponse(t *domain.StepTemplate) templateResponse {
	roles := make([]string, 0, len(t.AllowedRoles))
	for _, r := range t.AllowedRoles {
		roles = append(roles, string(r))
	}
	return templateResponse{
		ID:                  t.ID,
		Name:                t.Name,
		Category:            string(t.Category),
		OrderIndex:          t.OrderIndex,
		AllowedRoles:        roles,
		RemarksRequired:     t.RemarksRequired,
		AttachmentsAllowed:  t.AttachmentsAllowed,
		AttachmentsRequired: t.AttachmentsRequired,
		CustomerUpload:      t.CustomerUpload,
		MandatoryDocs:       t.MandatoryDocs,
	}
}

type documentResponse struct {
	ID         string    `json:"id"`
	LeadID     string    `json:"lead_id"`
	Category   string    `json:"category"`
	Path       string    `json:"path"`
	Status     string    `json:"status"`
	UploadedBy string    `json:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at"`
}

func toDocumentResponse(d *domain.Document) documentResponse {
	return documentResponse{
		ID:         d.ID,
		LeadID:     d.LeadID,
		Category:   d.Category,
		Path:       d.Path,
		Status:     string(d.Status),
		UploadedBy: d.UploadedBy,
		CreatedAt:  d.CreatedAt,
	}
}
