package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/solardesk/solardesk/internal/domain"
	"github.com/solardesk/solardesk/internal/repository"
)

type createLeadRequest struct {
	CustomerName string `json:"customer_name"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	Address      string `json:"address"`
	City         string `json:"city"`
}

func (s *Server) handleCreateLead(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r.Context())
	if !ok {
		s.writeError(w, r, errUnauthenticated("no actor in context"))
		return
	}

	var req createLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, errBadRequest("invalid JSON body: "+err.Error()))
		return
	}
	if strings.TrimSpace(req.CustomerName) == "" || strings.TrimSpace(req.Phone) == "" {
		s.writeError(w, r, errBadRequest("customer_name and phone are required"))
		return
	}

	lead := &domain.Lead{
		CustomerName: req.CustomerName,
		Phone:        req.Phone,
		Email:        req.Email,
		Address:      req.Address,
		City:         req.City,
		OwnerID:      actor.ID,
		OwnerRole:    actor.Role,
	}
	if err := s.leads.Create(r.Context(), lead); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toLeadResponse(lead))
}

func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r.Context())
	if !ok {
		s.writeError(w, r, errUnauthenticated("no actor in context"))
		return
	}

	q := r.URL.Query()
	filter := repository.LeadFilter{
		Status:  domain.LeadStatus(q.Get("status")),
		OwnerID: q.Get("owner_id"),
	}
	// Installer and customer logins only see their own slice of the book.
	switch actor.Role {
	case domain.RoleInstaller:
		filter.InstallerID = actor.ID
	case domain.RoleCustomer:
		filter.CustomerAccountID = actor.ID
	}

	leads, err := s.leads.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]leadResponse, 0, len(leads))
	for _, l := range leads {
		out = append(out, toLeadResponse(l))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetLead(w http.ResponseWriter, r *http.Request) {
	detail, err := s.leads.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	steps := make([]stepResponse, 0, len(detail.Steps))
	for _, v := range detail.Steps {
		steps = append(steps, toStepResponse(v))
	}
	s.writeJSON(w, http.StatusOK, leadDetailResponse{
		Lead:  toLeadResponse(detail.Lead),
		Steps: steps,
	})
}

func (s *Server) handleUpdateLead(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r.Context())
	if !ok {
		s.writeError(w, r, errUnauthenticated("no actor in context"))
		return
	}

	var req createLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, errBadRequest("invalid JSON body: "+err.Error()))
		return
	}

	lead := &domain.Lead{
		ID:           mux.Vars(r)["id"],
		CustomerName: req.CustomerName,
		Phone:        req.Phone,
		Email:        req.Email,
		Address:      req.Address,
		City:         req.City,
	}
	if err := s.leads.UpdateContact(r.Context(), actor, lead); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toLeadResponse(lead))
}

func (s *Server) handleAssignInstaller(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r.Context())
	if !ok {
		s.writeError(w, r, errUnauthenticated("no actor in context"))
		return
	}

	var req struct {
		InstallerID string `json:"installer_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.InstallerID == "" {
		s.writeError(w, r, errBadRequest("installer_id is required"))
		return
	}
	if err := s.leads.AssignInstaller(r.Context(), actor, mux.Vars(r)["id"], req.InstallerID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLinkCustomer(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r.Context())
	if !ok {
		s.writeError(w, r, errUnauthenticated("no actor in context"))
		return
	}

	var req struct {
		AccountID string `json:"account_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AccountID == "" {
		s.writeError(w, r, errBadRequest("account_id is required"))
		return
	}
	if err := s.leads.LinkCustomerAccount(r.Context(), actor, mux.Vars(r)["id"], req.AccountID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCancelLead(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r.Context())
	if !ok {
		s.writeError(w, r, errUnauthenticated("no actor in context"))
		return
	}
	if err := s.leads.Cancel(r.Context(), actor, mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLeadActivity(w http.ResponseWriter, r *http.Request) {
	entries, err := s.leads.Activity(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]activityResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toActivityResponse(e))
	}
	s.writeJSON(w, http.StatusOK, out)
}
