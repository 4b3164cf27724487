package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/solardesk/solardesk/internal/domain"
)

func (s *Server) handleListCatalog(w http.ResponseWriter, r *http.Request) {
	templates, err := s.catalog.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]templateResponse, 0, len(templates))
	for _, t := range templates {
		out = append(out, toTemplateResponse(t))
	}
	s.writeJSON(w, http.StatusOK, out)
}

type createTemplateRequest struct {
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	// OrderIndex, when set, inserts at that position and shifts later
	// templates; when omitted the template is appended.
	OrderIndex          *int     `json:"order_index,omitempty"`
	AllowedRoles        []string `json:"allowed_roles,omitempty"`
	RemarksRequired     bool     `json:"remarks_required"`
	AttachmentsAllowed  bool     `json:"attachments_allowed"`
	AttachmentsRequired bool     `json:"attachments_required"`
	CustomerUpload      bool     `json:"customer_upload"`
	MandatoryDocs       []string `json:"mandatory_docs,omitempty"`
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r.Context())
	if !ok {
		s.writeError(w, r, errUnauthenticated("no actor in context"))
		return
	}
	if actor.Role != domain.RoleAdmin {
		s.writeError(w, r, errForbidden("catalog administration requires the admin role"))
		return
	}

	var req createTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, errBadRequest("invalid JSON body: "+err.Error()))
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		s.writeError(w, r, errBadRequest("name is required"))
		return
	}
	if req.Category != "" && !domain.ValidStepCategories[req.Category] {
		s.writeError(w, r, errBadRequest("unknown category "+req.Category))
		return
	}

	roles := make([]domain.Role, 0, len(req.AllowedRoles))
	for _, raw := range req.AllowedRoles {
		if !domain.ValidRoles[raw] {
			s.writeError(w, r, errBadRequest("unknown role "+raw))
			return
		}
		roles = append(roles, domain.Role(raw))
	}

	t := &domain.StepTemplate{
		Name:                req.Name,
		Category:            domain.StepCategory(req.Category),
		AllowedRoles:        roles,
		RemarksRequired:     req.RemarksRequired,
		AttachmentsAllowed:  req.AttachmentsAllowed,
		AttachmentsRequired: req.AttachmentsRequired,
		CustomerUpload:      req.CustomerUpload,
		MandatoryDocs:       req.MandatoryDocs,
	}

	var err error
	if req.OrderIndex != nil {
		err = s.catalog.InsertAt(r.Context(), t, *req.OrderIndex)
	} else {
		err = s.catalog.Create(r.Context(), t)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toTemplateResponse(t))
}

type registerDocumentRequest struct {
	Category string `json:"category"`
	Path     string `json:"path"`
}

func (s *Server) handleRegisterDocument(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r.Context())
	if !ok {
		s.writeError(w, r, errUnauthenticated("no actor in context"))
		return
	}

	var req registerDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, errBadRequest("invalid JSON body: "+err.Error()))
		return
	}
	if req.Category == "" || req.Path == "" {
		s.writeError(w, r, errBadRequest("category and path are required"))
		return
	}

	d := &domain.Document{
		LeadID:     mux.Vars(r)["id"],
		Category:   req.Category,
		Path:       req.Path,
		UploadedBy: actor.ID,
	}
	if err := s.documents.Register(r.Context(), d); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toDocumentResponse(d))
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.documents.ListByLead(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]documentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, toDocumentResponse(d))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleReviewDocument(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r.Context())
	if !ok {
		s.writeError(w, r, errUnauthenticated("no actor in context"))
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		s.writeError(w, r, errBadRequest("status is required"))
		return
	}
	if err := s.documents.Review(r.Context(), actor, mux.Vars(r)["id"], domain.DocumentStatus(req.Status)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
