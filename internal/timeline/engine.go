package timeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/solardesk/solardesk/internal/db"
	"github.com/solardesk/solardesk/internal/domain"
	"github.com/solardesk/solardesk/internal/notify"
	"github.com/solardesk/solardesk/internal/repository"
)

// TransitionRequest is one timeline action for a role+lead+step.
type TransitionRequest struct {
	LeadID    string
	StepID    string
	ActorID   string
	ActorRole domain.Role
	Action    domain.TransitionAction

	Remarks     *domain.Remarks
	Attachments []string

	// ExpectedUpdatedAt is the caller's last-known concurrency token for the
	// step instance. When set, a mismatch fails with CodeConflict before any
	// other check, so a raced submission from a stale view loses cleanly.
	ExpectedUpdatedAt *time.Time
}

// TransitionResult reports the post-transition step and lead state.
type TransitionResult struct {
	Step       domain.LeadStepInstance
	StepName   string
	LeadStatus domain.LeadStatus
	LeadClosed bool

	// Duplicate marks an idempotent repeat of an identical complete; no
	// state changed, only a duplicate_attempt audit entry was written.
	Duplicate bool
}

// Engine is the timeline state machine. Every transition executes as one
// unit of work: read the lead and its full step set, decide in memory, apply
// conditional writes, append audit entries.
type Engine struct {
	uow      db.UnitOfWork
	policy   *ValidationPolicy
	notifier notify.Notifier
	log      zerolog.Logger
	now      func() time.Time
}

// NewEngine wires the engine. notifier may be notify.Noop{}.
func NewEngine(uow db.UnitOfWork, policy *ValidationPolicy, notifier notify.Notifier, log zerolog.Logger) *Engine {
	return &Engine{
		uow:      uow,
		policy:   policy,
		notifier: notifier,
		log:      log.With().Str("component", "timeline").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Transition handles the non-override action vocabulary. Override-only
// actions are rejected here; they enter through OverrideAuthority.
func (e *Engine) Transition(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	switch req.Action {
	case domain.ActionComplete, domain.ActionReopen, domain.ActionSkip:
	default:
		return nil, newRoleNotPermitted(string(req.ActorRole),
			fmt.Sprintf("action %q (admin override required)", req.Action))
	}

	var res *TransitionResult
	err := e.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		st, err := e.loadState(ctx, tx, req.LeadID)
		if err != nil {
			return err
		}
		if st.lead.Closed {
			return newProjectClosed(st.lead.ID)
		}

		view, err := st.findStep(req.StepID)
		if err != nil {
			return err
		}
		if err := checkRole(st.lead, view.Template, req.ActorRole, req.ActorID); err != nil {
			return err
		}
		if req.ExpectedUpdatedAt != nil && !view.Instance.UpdatedAt.Equal(*req.ExpectedUpdatedAt) {
			return newConflict("step changed since last read; refetch and retry")
		}

		switch req.Action {
		case domain.ActionComplete:
			res, err = e.completeStep(ctx, st, view, req.ActorID, req.Remarks, req.Attachments, false)
		case domain.ActionReopen:
			res, err = e.reopenStep(ctx, st, view, req.ActorID, false)
		case domain.ActionSkip:
			res, err = e.skipStep(ctx, st, view, req.ActorID, req.Remarks)
		}
		return err
	})
	if err != nil {
		e.log.Warn().Err(err).
			Str("lead_id", req.LeadID).
			Str("step_id", req.StepID).
			Str("action", string(req.Action)).
			Str("actor", req.ActorID).
			Msg("transition rejected")
		return nil, err
	}

	e.log.Info().
		Str("lead_id", req.LeadID).
		Str("step_id", req.StepID).
		Str("action", string(req.Action)).
		Str("actor", req.ActorID).
		Bool("duplicate", res.Duplicate).
		Str("lead_status", string(res.LeadStatus)).
		Msg("transition applied")

	if !res.Duplicate {
		e.notifier.PublishStepEvent(ctx, notify.StepEvent{
			EventType:  string(req.Action),
			LeadID:     req.LeadID,
			StepName:   res.StepName,
			ActorID:    req.ActorID,
			LeadStatus: res.LeadStatus,
		})
	}
	return res, nil
}

// leadState is the in-transaction working set for one lead.
type leadState struct {
	lead      *domain.Lead
	leadToken time.Time
	steps     []repository.StepView

	leads     *repository.SQLiteLeadRepo
	instances *repository.SQLiteStepInstanceRepo
	activity  *repository.SQLiteActivityLogRepo
}

func (e *Engine) loadState(ctx context.Context, tx db.DBTX, leadID string) (*leadState, error) {
	st := &leadState{
		leads:     repository.NewSQLiteLeadRepo(tx),
		instances: repository.NewSQLiteStepInstanceRepo(tx),
		activity:  repository.NewSQLiteActivityLogRepo(tx),
	}

	lead, err := st.leads.GetByID(ctx, leadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newNotFound("lead " + leadID)
		}
		return nil, err
	}
	st.lead = lead
	st.leadToken = lead.UpdatedAt

	steps, err := st.instances.ListViewsByLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	st.steps = steps

	// Invariant: one instance per (lead, template). A duplicate is a
	// data-integrity bug; halt rather than attempt repair.
	seen := make(map[string]bool, len(steps))
	for _, s := range steps {
		if seen[s.Instance.StepTemplateID] {
			return nil, newInvariantViolation(fmt.Sprintf(
				"lead %s has multiple instances of template %s", leadID, s.Instance.StepTemplateID))
		}
		seen[s.Instance.StepTemplateID] = true
	}
	return st, nil
}

func (st *leadState) findStep(stepID string) (repository.StepView, error) {
	for _, s := range st.steps {
		if s.Instance.ID == stepID {
			return s, nil
		}
	}
	return repository.StepView{}, newNotFound("step " + stepID)
}

// setStepStatus updates the in-memory step set so recomputation sees the
// mutation applied within this transaction.
func (st *leadState) setStep(updated domain.LeadStepInstance) {
	for i := range st.steps {
		if st.steps[i].Instance.ID == updated.ID {
			st.steps[i].Instance = updated
			return
		}
	}
}

// checkRole enforces the template's allowed-role set. Customers additionally
// must be the lead's linked account acting on a customer-uploadable step.
func checkRole(lead *domain.Lead, t domain.StepTemplate, role domain.Role, actorID string) error {
	if !t.RoleAllowed(role) {
		return newRoleNotPermitted(string(role), t.Name)
	}
	if role == domain.RoleCustomer {
		if !t.CustomerUpload {
			return newRoleNotPermitted(string(role), t.Name)
		}
		if lead.CustomerAccountID == nil || *lead.CustomerAccountID != actorID {
			return newRoleNotPermitted(string(role), t.Name)
		}
	}
	return nil
}

func (e *Engine) completeStep(ctx context.Context, st *leadState, view repository.StepView,
	actorID string, remarks *domain.Remarks, attachments []string, override bool) (*TransitionResult, error) {

	if view.Instance.Status == domain.StepCompleted {
		if view.Instance.SamePayload(remarks, attachments) {
			// Idempotent repeat: audit it, change nothing, re-fire nothing.
			if err := e.appendStepActivity(ctx, st, domain.ActivityDuplicateAttempt,
				view, view.Instance, view.Instance, actorID, override); err != nil {
				return nil, err
			}
			return &TransitionResult{
				Step:       view.Instance,
				StepName:   view.Template.Name,
				LeadStatus: st.lead.Status,
				LeadClosed: st.lead.Closed,
				Duplicate:  true,
			}, nil
		}
		return nil, newConflict("step already completed with a different payload; reopen it first")
	}

	if !override {
		if elig := CheckEligibility(st.steps, view); !elig.Eligible {
			return nil, newDependencyNotSatisfied(view.Template.Name, elig.Blocking)
		}
		if err := e.policy.ValidateComplete(ctx, view, remarks, attachments); err != nil {
			return nil, err
		}
	}

	old := view.Instance
	updated := view.Instance
	updated.MarkCompleted(actorID, remarks, attachments, e.now())
	if err := e.writeInstance(ctx, st, &updated, old.UpdatedAt); err != nil {
		return nil, err
	}
	st.setStep(updated)

	if err := e.appendStepActivity(ctx, st, domain.ActivityStepCompleted, view, old, updated, actorID, override); err != nil {
		return nil, err
	}

	closing := view.Template.Category == domain.CategoryClosure
	if err := e.finishMutation(ctx, st, actorID, closing, override); err != nil {
		return nil, err
	}

	return &TransitionResult{
		Step:       updated,
		StepName:   view.Template.Name,
		LeadStatus: st.lead.Status,
		LeadClosed: st.lead.Closed,
	}, nil
}

func (e *Engine) reopenStep(ctx context.Context, st *leadState, view repository.StepView,
	actorID string, override bool) (*TransitionResult, error) {

	if view.Instance.Status != domain.StepCompleted {
		return nil, newConflict("only a completed step can be reopened")
	}

	old := view.Instance
	updated := view.Instance
	updated.MarkReopened()
	if err := e.writeInstance(ctx, st, &updated, old.UpdatedAt); err != nil {
		return nil, err
	}
	st.setStep(updated)

	// The old snapshot preserves the cleared remarks in the audit trail.
	if err := e.appendStepActivity(ctx, st, domain.ActivityStepReopened, view, old, updated, actorID, override); err != nil {
		return nil, err
	}

	if err := e.finishMutation(ctx, st, actorID, false, override); err != nil {
		return nil, err
	}

	return &TransitionResult{
		Step:       updated,
		StepName:   view.Template.Name,
		LeadStatus: st.lead.Status,
		LeadClosed: st.lead.Closed,
	}, nil
}

func (e *Engine) skipStep(ctx context.Context, st *leadState, view repository.StepView,
	actorID string, remarks *domain.Remarks) (*TransitionResult, error) {

	if view.Instance.Status == domain.StepCompleted {
		return nil, newConflict("step already completed; nothing to skip")
	}
	if elig := CheckEligibility(st.steps, view); !elig.Eligible {
		return nil, newDependencyNotSatisfied(view.Template.Name, elig.Blocking)
	}
	if err := e.policy.ValidateSkip(view, remarks); err != nil {
		return nil, err
	}

	old := view.Instance
	updated := view.Instance
	updated.MarkCompleted(actorID, remarks, nil, e.now())
	if err := e.writeInstance(ctx, st, &updated, old.UpdatedAt); err != nil {
		return nil, err
	}
	st.setStep(updated)

	if err := e.appendStepActivity(ctx, st, domain.ActivityStepSkipped, view, old, updated, actorID, false); err != nil {
		return nil, err
	}

	if err := e.finishMutation(ctx, st, actorID, false, false); err != nil {
		return nil, err
	}

	return &TransitionResult{
		Step:       updated,
		StepName:   view.Template.Name,
		LeadStatus: st.lead.Status,
		LeadClosed: st.lead.Closed,
	}, nil
}

// finishMutation recomputes the derived state after one or more step writes:
// pending/upcoming markers and the lead aggregate status (monotonic unless
// regress), plus the closed flag when the closure step completed.
func (e *Engine) finishMutation(ctx context.Context, st *leadState, actorID string, closing, override bool) error {
	return e.finishMutationMode(ctx, st, actorID, closing, override, false)
}

func (e *Engine) finishMutationMode(ctx context.Context, st *leadState, actorID string, closing, override, regress bool) error {
	for _, mc := range RecomputeMarkers(st.steps) {
		if err := st.instances.UpdateMarker(ctx, mc.instanceID, mc.status); err != nil {
			return err
		}
	}

	computed := ComputeLeadStatus(st.steps)
	newStatus := AdvanceLeadStatus(st.lead.Status, computed)
	if regress {
		newStatus = computed
	}

	oldLead := domain.LeadSnapshot{Status: st.lead.Status, Closed: st.lead.Closed}
	changed := newStatus != st.lead.Status || closing
	if !changed {
		return nil
	}

	st.lead.Status = newStatus
	if closing {
		st.lead.Closed = true
	}
	if err := e.writeLead(ctx, st); err != nil {
		return err
	}

	if closing {
		if err := e.appendLeadActivity(ctx, st, domain.ActivityProjectClosed, oldLead, actorID, override); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) writeInstance(ctx context.Context, st *leadState, i *domain.LeadStepInstance, token time.Time) error {
	if err := st.instances.Update(ctx, i, token); err != nil {
		if errors.Is(err, repository.ErrStaleWrite) || repository.IsLockContention(err) {
			return newConflict("step changed since last read; refetch and retry")
		}
		if errors.Is(err, repository.ErrNotFound) {
			return newNotFound("step " + i.ID)
		}
		return err
	}
	return nil
}

func (e *Engine) writeLead(ctx context.Context, st *leadState) error {
	if err := st.leads.Update(ctx, st.lead, st.leadToken); err != nil {
		if errors.Is(err, repository.ErrStaleWrite) || repository.IsLockContention(err) {
			return newConflict("lead changed since last read; refetch and retry")
		}
		return err
	}
	st.leadToken = st.lead.UpdatedAt
	return nil
}

func (e *Engine) appendStepActivity(ctx context.Context, st *leadState, action string,
	view repository.StepView, old, updated domain.LeadStepInstance, actorID string, override bool) error {

	oldJSON, err := json.Marshal(stepSnapshot(old))
	if err != nil {
		return fmt.Errorf("encoding old step snapshot: %w", err)
	}
	newJSON, err := json.Marshal(stepSnapshot(updated))
	if err != nil {
		return fmt.Errorf("encoding new step snapshot: %w", err)
	}

	leadID := st.lead.ID
	return st.activity.Append(ctx, &domain.ActivityLogEntry{
		ID:            uuid.New().String(),
		LeadID:        &leadID,
		UserID:        actorID,
		Action:        action,
		EntityType:    "lead_step_instance",
		EntityID:      view.Instance.ID,
		OldValue:      string(oldJSON),
		NewValue:      string(newJSON),
		AdminOverride: override,
		Timestamp:     e.now(),
	})
}

func (e *Engine) appendLeadActivity(ctx context.Context, st *leadState, action string,
	old domain.LeadSnapshot, actorID string, override bool) error {

	oldJSON, err := json.Marshal(old)
	if err != nil {
		return fmt.Errorf("encoding old lead snapshot: %w", err)
	}
	newJSON, err := json.Marshal(domain.LeadSnapshot{Status: st.lead.Status, Closed: st.lead.Closed})
	if err != nil {
		return fmt.Errorf("encoding new lead snapshot: %w", err)
	}

	leadID := st.lead.ID
	return st.activity.Append(ctx, &domain.ActivityLogEntry{
		ID:            uuid.New().String(),
		LeadID:        &leadID,
		UserID:        actorID,
		Action:        action,
		EntityType:    "lead",
		EntityID:      st.lead.ID,
		OldValue:      string(oldJSON),
		NewValue:      string(newJSON),
		AdminOverride: override,
		Timestamp:     e.now(),
	})
}

func stepSnapshot(i domain.LeadStepInstance) domain.StepSnapshot {
	return domain.StepSnapshot{
		Status:      i.Status,
		Remarks:     i.Remarks,
		Attachments: i.Attachments,
		CompletedBy: i.CompletedBy,
		CompletedAt: i.CompletedAt,
	}
}
