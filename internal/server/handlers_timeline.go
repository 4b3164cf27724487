package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/solardesk/solardesk/internal/domain"
	"github.com/solardesk/solardesk/internal/timeline"
)

type transitionBody struct {
	Action      string          `json:"action"`
	Remarks     *domain.Remarks `json:"remarks,omitempty"`
	Attachments []string        `json:"attachments,omitempty"`
	// ExpectedUpdatedAt is the concurrency token from the caller's last read
	// of the step. Omitting it opts out of the stale-view guard.
	ExpectedUpdatedAt *time.Time `json:"expected_updated_at,omitempty"`
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r.Context())
	if !ok {
		s.writeError(w, r, errUnauthenticated("no actor in context"))
		return
	}

	var body transitionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, r, errBadRequest("invalid JSON body: "+err.Error()))
		return
	}
	if body.Action == "" {
		s.writeError(w, r, errBadRequest("action is required"))
		return
	}

	vars := mux.Vars(r)
	res, err := s.engine.Transition(r.Context(), timeline.TransitionRequest{
		LeadID:            vars["id"],
		StepID:            vars["stepID"],
		ActorID:           actor.ID,
		ActorRole:         actor.Role,
		Action:            domain.TransitionAction(body.Action),
		Remarks:           body.Remarks,
		Attachments:       body.Attachments,
		ExpectedUpdatedAt: body.ExpectedUpdatedAt,
	})
	if err != nil {
		transitionsTotal.WithLabelValues(body.Action, "rejected").Inc()
		s.writeError(w, r, err)
		return
	}

	outcome := "applied"
	if res.Duplicate {
		outcome = "duplicate"
	}
	transitionsTotal.WithLabelValues(body.Action, outcome).Inc()
	s.writeJSON(w, http.StatusOK, toTransitionResponse(res))
}

type overrideBody struct {
	Action        string `json:"action"`
	StepID        string `json:"step_id,omitempty"`
	Justification string `json:"justification"`
}

// handleOverride is the admin entry point for the privileged action
// vocabulary. The capability grant happens here, per request, so the
// override path below the HTTP boundary never consults roles itself.
func (s *Server) handleOverride(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r.Context())
	if !ok {
		s.writeError(w, r, errUnauthenticated("no actor in context"))
		return
	}

	var body overrideBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, r, errBadRequest("invalid JSON body: "+err.Error()))
		return
	}

	cap, err := timeline.GrantAdmin(actor.ID, actor.Role)
	if err != nil {
		transitionsTotal.WithLabelValues(body.Action, "rejected").Inc()
		s.writeError(w, r, err)
		return
	}

	ctx := r.Context()
	leadID := mux.Vars(r)["id"]
	action := domain.TransitionAction(body.Action)

	needsStep := action == domain.ActionComplete || action == domain.ActionReopen ||
		action == domain.ActionMoveForward || action == domain.ActionMoveBackward
	if needsStep && body.StepID == "" {
		s.writeError(w, r, errBadRequest("step_id is required for "+body.Action))
		return
	}

	var (
		single *timeline.TransitionResult
		batch  *timeline.OverrideResult
	)
	switch action {
	case domain.ActionComplete:
		single, err = s.override.Complete(ctx, cap, leadID, body.StepID, body.Justification)
	case domain.ActionReopen:
		single, err = s.override.Reopen(ctx, cap, leadID, body.StepID, body.Justification)
	case domain.ActionMoveForward:
		batch, err = s.override.MoveForward(ctx, cap, leadID, body.StepID, body.Justification)
	case domain.ActionMoveBackward:
		batch, err = s.override.MoveBackward(ctx, cap, leadID, body.StepID, body.Justification)
	case domain.ActionCloseProject:
		single, err = s.override.CloseProject(ctx, cap, leadID, body.Justification)
	case domain.ActionReopenProject:
		single, err = s.override.ReopenProject(ctx, cap, leadID, body.Justification)
	default:
		s.writeError(w, r, errBadRequest("unknown override action "+body.Action))
		return
	}
	if err != nil {
		transitionsTotal.WithLabelValues(body.Action, "rejected").Inc()
		s.writeError(w, r, err)
		return
	}
	transitionsTotal.WithLabelValues(body.Action, "applied").Inc()

	if single != nil {
		s.writeJSON(w, http.StatusOK, toTransitionResponse(single))
		return
	}
	s.writeJSON(w, http.StatusOK, overrideResponse{
		StepsChanged: batch.StepsChanged,
		LeadStatus:   string(batch.LeadStatus),
		LeadClosed:   batch.LeadClosed,
	})
}
