package timeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/solardesk/solardesk/internal/db"
	"github.com/solardesk/solardesk/internal/domain"
	"github.com/solardesk/solardesk/internal/notify"
	"github.com/solardesk/solardesk/internal/repository"
)

// AdminCapability is the token gating the override path. It can only be
// obtained through GrantAdmin, so the "skip validation" behavior lives in
// exactly one place instead of role checks sprinkled through the engine.
type AdminCapability struct {
	actorID string
	granted bool
}

// ActorID returns the admin account the capability was granted to.
func (c AdminCapability) ActorID() string { return c.actorID }

// GrantAdmin issues an override capability, restricted to the admin role.
func GrantAdmin(actorID string, role domain.Role) (AdminCapability, error) {
	if role != domain.RoleAdmin {
		return AdminCapability{}, newRoleNotPermitted(string(role), "override authority")
	}
	return AdminCapability{actorID: actorID, granted: true}, nil
}

// OverrideResult reports the outcome of an override call.
type OverrideResult struct {
	// StepsChanged lists the names of step instances mutated, in apply order.
	StepsChanged []string
	LeadStatus   domain.LeadStatus
	LeadClosed   bool
}

// OverrideAuthority is the privileged entry point. It shares the engine's
// state transitions and concurrency guards but suppresses dependency and
// validation checks, requires a justification on every call, and flags every
// audit entry with admin_override.
type OverrideAuthority struct {
	engine *Engine
}

// NewOverrideAuthority wraps an engine with the override entry points.
func NewOverrideAuthority(engine *Engine) *OverrideAuthority {
	return &OverrideAuthority{engine: engine}
}

func checkOverride(cap AdminCapability, justification string) error {
	if !cap.granted {
		return newRoleNotPermitted("unknown", "override authority")
	}
	if strings.TrimSpace(justification) == "" {
		return &Error{Code: CodeOverrideFailed, Message: "override requires a non-empty justification"}
	}
	return nil
}

// Complete force-completes one step, skipping dependency and validation
// checks. The stored remarks carry the override marker and justification.
func (o *OverrideAuthority) Complete(ctx context.Context, cap AdminCapability, leadID, stepID, justification string) (*TransitionResult, error) {
	if err := checkOverride(cap, justification); err != nil {
		return nil, err
	}
	remarks := domain.OverrideRemarks(domain.ActionComplete, justification)

	var res *TransitionResult
	err := o.engine.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		st, view, err := o.loadTarget(ctx, tx, leadID, stepID)
		if err != nil {
			return err
		}
		res, err = o.engine.completeStep(ctx, st, view, cap.actorID, remarks, nil, true)
		return err
	})
	if err != nil {
		return nil, err
	}
	o.publish(ctx, domain.ActionComplete, leadID, res.StepName, cap.actorID, res.LeadStatus)
	return res, nil
}

// Reopen force-reopens one completed step.
func (o *OverrideAuthority) Reopen(ctx context.Context, cap AdminCapability, leadID, stepID, justification string) (*TransitionResult, error) {
	if err := checkOverride(cap, justification); err != nil {
		return nil, err
	}

	var res *TransitionResult
	err := o.engine.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		st, view, err := o.loadTarget(ctx, tx, leadID, stepID)
		if err != nil {
			return err
		}
		res, err = o.engine.reopenStep(ctx, st, view, cap.actorID, true)
		return err
	})
	if err != nil {
		return nil, err
	}
	o.publish(ctx, domain.ActionReopen, leadID, res.StepName, cap.actorID, res.LeadStatus)
	return res, nil
}

// MoveForward completes every non-completed step up to and including the
// target, in catalog order. The batch is all-or-nothing: any per-step
// failure rolls the whole transaction back as a single OverrideFailed.
func (o *OverrideAuthority) MoveForward(ctx context.Context, cap AdminCapability, leadID, targetStepID, justification string) (*OverrideResult, error) {
	if err := checkOverride(cap, justification); err != nil {
		return nil, err
	}
	remarks := domain.OverrideRemarks(domain.ActionMoveForward, justification)

	var res *OverrideResult
	err := o.engine.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		st, target, err := o.loadTarget(ctx, tx, leadID, targetStepID)
		if err != nil {
			return err
		}

		var changed []string
		closing := false
		for _, s := range st.steps {
			if s.Template.OrderIndex > target.Template.OrderIndex {
				break
			}
			if s.Instance.Status == domain.StepCompleted {
				continue
			}
			old := s.Instance
			updated := s.Instance
			updated.MarkCompleted(cap.actorID, remarks, nil, o.engine.now())
			if err := o.engine.writeInstance(ctx, st, &updated, old.UpdatedAt); err != nil {
				return err
			}
			st.setStep(updated)
			if err := o.engine.appendStepActivity(ctx, st, domain.ActivityStepCompleted, s, old, updated, cap.actorID, true); err != nil {
				return err
			}
			if s.Template.Category == domain.CategoryClosure {
				closing = true
			}
			changed = append(changed, s.Template.Name)
		}
		if len(changed) == 0 {
			return &Error{Code: CodeOverrideFailed, Message: "move_forward matched no pending steps"}
		}

		if err := o.engine.finishMutation(ctx, st, cap.actorID, closing, true); err != nil {
			return err
		}
		res = &OverrideResult{StepsChanged: changed, LeadStatus: st.lead.Status, LeadClosed: st.lead.Closed}
		return nil
	})
	if err != nil {
		return nil, asOverrideFailed(err)
	}
	o.publish(ctx, domain.ActionMoveForward, leadID, fmt.Sprintf("%d steps", len(res.StepsChanged)), cap.actorID, res.LeadStatus)
	return res, nil
}

// MoveBackward reopens the target and every completed step after it, in
// reverse catalog order, and reapplies the recomputed (possibly lower)
// aggregate status. This is the only sanctioned regression path. A closed
// lead is rejected; unwinding a closed project starts with ReopenProject.
func (o *OverrideAuthority) MoveBackward(ctx context.Context, cap AdminCapability, leadID, targetStepID, justification string) (*OverrideResult, error) {
	if err := checkOverride(cap, justification); err != nil {
		return nil, err
	}

	var res *OverrideResult
	err := o.engine.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		st, target, err := o.loadTarget(ctx, tx, leadID, targetStepID)
		if err != nil {
			return err
		}

		var changed []string
		for i := len(st.steps) - 1; i >= 0; i-- {
			s := st.steps[i]
			if s.Template.OrderIndex < target.Template.OrderIndex {
				break
			}
			if s.Instance.Status != domain.StepCompleted {
				continue
			}
			old := s.Instance
			updated := s.Instance
			updated.MarkReopened()
			if err := o.engine.writeInstance(ctx, st, &updated, old.UpdatedAt); err != nil {
				return err
			}
			st.setStep(updated)
			if err := o.engine.appendStepActivity(ctx, st, domain.ActivityStepReopened, s, old, updated, cap.actorID, true); err != nil {
				return err
			}
			changed = append(changed, s.Template.Name)
		}
		if len(changed) == 0 {
			return &Error{Code: CodeOverrideFailed, Message: "move_backward matched no completed steps"}
		}

		if err := o.engine.finishMutationMode(ctx, st, cap.actorID, false, true, true); err != nil {
			return err
		}
		res = &OverrideResult{StepsChanged: changed, LeadStatus: st.lead.Status, LeadClosed: st.lead.Closed}
		return nil
	})
	if err != nil {
		return nil, asOverrideFailed(err)
	}
	o.publish(ctx, domain.ActionMoveBackward, leadID, fmt.Sprintf("%d steps", len(res.StepsChanged)), cap.actorID, res.LeadStatus)
	return res, nil
}

// CloseProject force-completes the closure step regardless of outstanding
// work and sets the closed flag, storing the justification as final remarks.
func (o *OverrideAuthority) CloseProject(ctx context.Context, cap AdminCapability, leadID, justification string) (*TransitionResult, error) {
	if err := checkOverride(cap, justification); err != nil {
		return nil, err
	}
	remarks := domain.OverrideRemarks(domain.ActionCloseProject, justification)

	var res *TransitionResult
	err := o.engine.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		st, err := o.engine.loadState(ctx, tx, leadID)
		if err != nil {
			return err
		}
		if st.lead.Closed {
			return newProjectClosed(st.lead.ID)
		}
		view, err := findClosureStep(st)
		if err != nil {
			return err
		}
		res, err = o.engine.completeStep(ctx, st, view, cap.actorID, remarks, nil, true)
		return err
	})
	if err != nil {
		return nil, err
	}
	o.publish(ctx, domain.ActionCloseProject, leadID, res.StepName, cap.actorID, res.LeadStatus)
	return res, nil
}

// ReopenProject clears the closed flag, reopens the closure step, and
// reverts the lead to the ongoing (processing) status. It is the only action
// accepted on a closed lead.
func (o *OverrideAuthority) ReopenProject(ctx context.Context, cap AdminCapability, leadID, justification string) (*TransitionResult, error) {
	if err := checkOverride(cap, justification); err != nil {
		return nil, err
	}

	var res *TransitionResult
	err := o.engine.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		st, err := o.engine.loadState(ctx, tx, leadID)
		if err != nil {
			return err
		}
		if !st.lead.Closed {
			return newConflict("lead is not closed")
		}
		view, err := findClosureStep(st)
		if err != nil {
			return err
		}

		old := view.Instance
		updated := view.Instance
		updated.MarkReopened()
		if err := o.engine.writeInstance(ctx, st, &updated, old.UpdatedAt); err != nil {
			return err
		}
		st.setStep(updated)
		if err := o.engine.appendStepActivity(ctx, st, domain.ActivityStepReopened, view, old, updated, cap.actorID, true); err != nil {
			return err
		}

		oldLead := domain.LeadSnapshot{Status: st.lead.Status, Closed: st.lead.Closed}
		st.lead.Closed = false
		st.lead.Status = domain.LeadProcessing
		if err := o.engine.writeLead(ctx, st); err != nil {
			return err
		}
		if err := o.engine.appendLeadActivity(ctx, st, domain.ActivityProjectReopened, oldLead, cap.actorID, true); err != nil {
			return err
		}

		for _, mc := range RecomputeMarkers(st.steps) {
			if err := st.instances.UpdateMarker(ctx, mc.instanceID, mc.status); err != nil {
				return err
			}
		}

		res = &TransitionResult{
			Step:       updated,
			StepName:   view.Template.Name,
			LeadStatus: st.lead.Status,
			LeadClosed: st.lead.Closed,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	o.publish(ctx, domain.ActionReopenProject, leadID, res.StepName, cap.actorID, res.LeadStatus)
	return res, nil
}

// loadTarget loads lead state and resolves the target step, enforcing the
// closed-lead guard shared by every override except ReopenProject.
func (o *OverrideAuthority) loadTarget(ctx context.Context, tx db.DBTX, leadID, stepID string) (*leadState, repository.StepView, error) {
	st, err := o.engine.loadState(ctx, tx, leadID)
	if err != nil {
		return nil, repository.StepView{}, err
	}
	if st.lead.Closed {
		return nil, repository.StepView{}, newProjectClosed(st.lead.ID)
	}
	view, err := st.findStep(stepID)
	if err != nil {
		return nil, repository.StepView{}, err
	}
	return st, view, nil
}

func findClosureStep(st *leadState) (repository.StepView, error) {
	for _, s := range st.steps {
		if s.Template.Category == domain.CategoryClosure {
			return s, nil
		}
	}
	return repository.StepView{}, &Error{Code: CodeOverrideFailed, Message: "lead has no closure step"}
}

// asOverrideFailed collapses any batch failure into a single OverrideFailed,
// keeping not-found and closed-lead outcomes distinguishable.
func asOverrideFailed(err error) error {
	switch CodeOf(err) {
	case CodeOverrideFailed, CodeNotFound, CodeProjectClosed:
		return err
	}
	var te *Error
	if errors.As(err, &te) {
		return newOverrideFailed(te)
	}
	return newOverrideFailed(err)
}

func (o *OverrideAuthority) publish(ctx context.Context, action domain.TransitionAction, leadID, stepName, actorID string, status domain.LeadStatus) {
	o.engine.log.Info().
		Str("lead_id", leadID).
		Str("action", string(action)).
		Str("actor", actorID).
		Bool("override", true).
		Msg("override applied")
	o.engine.notifier.PublishStepEvent(ctx, notify.StepEvent{
		EventType:  string(action),
		LeadID:     leadID,
		StepName:   stepName,
		ActorID:    actorID,
		LeadStatus: status,
		Override:   true,
	})
}
