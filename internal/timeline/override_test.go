package timeline

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solardesk/solardesk/internal/domain"
	"github.com/solardesk/solardesk/internal/repository"
	"github.com/solardesk/solardesk/internal/testutil"
)

func adminCap(t *testing.T) AdminCapability {
	t.Helper()
	cap, err := GrantAdmin("admin-1", domain.RoleAdmin)
	require.NoError(t, err)
	return cap
}

func TestGrantAdmin_RejectsOtherRoles(t *testing.T) {
	for _, role := range []domain.Role{domain.RoleAgent, domain.RoleOffice, domain.RoleInstaller, domain.RoleCustomer} {
		_, err := GrantAdmin("user-1", role)
		assert.Equal(t, CodeRoleNotPermitted, CodeOf(err), "role %s", role)
	}

	cap, err := GrantAdmin("admin-1", domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", cap.ActorID())
}

func TestOverride_RequiresJustification(t *testing.T) {
	f := newEngineFixture(t, defaultTemplates()...)
	authority := NewOverrideAuthority(f.engine)

	_, err := authority.Complete(context.Background(), adminCap(t), f.lead.ID,
		f.stepID(t, "Site Survey"), "   ")
	assert.Equal(t, CodeOverrideFailed, CodeOf(err))

	_, err = authority.Complete(context.Background(), AdminCapability{}, f.lead.ID,
		f.stepID(t, "Site Survey"), "valid reason")
	assert.Equal(t, CodeRoleNotPermitted, CodeOf(err))
}

func TestOverride_CompleteSkipsDependencyAndValidation(t *testing.T) {
	f := newEngineFixture(t, defaultTemplates()...)
	authority := NewOverrideAuthority(f.engine)
	ctx := context.Background()

	// Installation is deep in the sequence and gated on payment; the
	// override ignores both and records the justification.
	res, err := authority.Complete(ctx, adminCap(t), f.lead.ID,
		f.stepID(t, "Installation Completed"), "installed during pilot program")
	require.NoError(t, err)
	assert.Equal(t, domain.StepCompleted, res.Step.Status)
	require.NotNil(t, res.Step.Remarks)
	assert.Equal(t, domain.RemarkOverride, res.Step.Remarks.Kind)
	assert.Equal(t, "installed during pilot program", res.Step.Remarks.Override.Justification)

	entries, err := f.activity.ListByLead(ctx, f.lead.ID)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.True(t, entries[0].AdminOverride)
}

func TestOverride_MoveForwardCompletesRange(t *testing.T) {
	f := newEngineFixture(t, defaultTemplates()...)
	authority := NewOverrideAuthority(f.engine)
	ctx := context.Background()

	res, err := authority.MoveForward(ctx, adminCap(t), f.lead.ID,
		f.stepID(t, "Installation Completed"), "paper records caught up")
	require.NoError(t, err)
	assert.Equal(t, []string{"Site Survey", "Payment Received", "Installation Completed"}, res.StepsChanged)
	assert.Equal(t, domain.LeadCompleted, res.LeadStatus)
	assert.False(t, res.LeadClosed)

	views := f.views(t)
	for _, v := range views[:3] {
		assert.Equal(t, domain.StepCompleted, v.Instance.Status)
	}
	assert.Equal(t, domain.StepPending, views[3].Instance.Status)
}

func TestOverride_MoveForwardEmptyRangeFails(t *testing.T) {
	f := newEngineFixture(t, defaultTemplates()...)
	authority := NewOverrideAuthority(f.engine)
	ctx := context.Background()

	_, err := authority.MoveForward(ctx, adminCap(t), f.lead.ID,
		f.stepID(t, "Site Survey"), "first pass")
	require.NoError(t, err)

	// Everything up to the target is already complete.
	_, err = authority.MoveForward(ctx, adminCap(t), f.lead.ID,
		f.stepID(t, "Site Survey"), "second pass")
	assert.Equal(t, CodeOverrideFailed, CodeOf(err))
}

// A mid-batch write failure must leave no partial application: the whole
// move_forward rolls back, steps and audit trail included.
func TestOverride_MoveForwardRollsBackAtomically(t *testing.T) {
	f := newEngineFixture(t, defaultTemplates()...)
	ctx := context.Background()

	// Each step in the batch costs two writes (instance update + audit
	// append); failing the fourth write breaks the batch on its second step.
	failing := &testutil.FailOnNthExecUoW{DB: f.db, FailOn: 4, Err: errors.New("disk full")}
	policy := NewValidationPolicy(repository.NewSQLiteDocumentRepo(f.db))
	engine := NewEngine(failing, policy, f.published, zerolog.Nop())
	authority := NewOverrideAuthority(engine)

	_, err := authority.MoveForward(ctx, adminCap(t), f.lead.ID,
		f.stepID(t, "Installation Completed"), "bulk catch-up")
	require.Error(t, err)
	assert.Equal(t, CodeOverrideFailed, CodeOf(err))

	// No step moved, no audit entry survived.
	views := f.views(t)
	assert.Equal(t, domain.StepPending, views[0].Instance.Status)
	for _, v := range views[1:] {
		assert.Equal(t, domain.StepUpcoming, v.Instance.Status)
	}
	entries, err := f.activity.ListByLead(ctx, f.lead.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)

	lead, err := f.leads.GetByID(ctx, f.lead.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LeadNew, lead.Status)
}

func TestOverride_MoveBackwardReopensAndRegresses(t *testing.T) {
	f := newEngineFixture(t, defaultTemplates()...)
	authority := NewOverrideAuthority(f.engine)
	ctx := context.Background()

	_, err := authority.MoveForward(ctx, adminCap(t), f.lead.ID,
		f.stepID(t, "Installation Completed"), "migration import")
	require.NoError(t, err)

	res, err := authority.MoveBackward(ctx, adminCap(t), f.lead.ID,
		f.stepID(t, "Payment Received"), "payment bounced, rework from there")
	require.NoError(t, err)
	assert.Equal(t, []string{"Installation Completed", "Payment Received"}, res.StepsChanged)
	// Only the survey remains completed, so the ladder regresses.
	assert.Equal(t, domain.LeadInterested, res.LeadStatus)

	views := f.views(t)
	assert.Equal(t, domain.StepCompleted, views[0].Instance.Status)
	assert.Equal(t, domain.StepPending, views[1].Instance.Status)
	assert.Equal(t, domain.StepUpcoming, views[2].Instance.Status)
	assert.Equal(t, domain.StepUpcoming, views[3].Instance.Status)

	n, err := f.activity.CountByLeadAndAction(ctx, f.lead.ID, domain.ActivityStepReopened)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestOverride_MoveBackwardRejectedOnClosedLead(t *testing.T) {
	f := newEngineFixture(t, defaultTemplates()...)
	authority := NewOverrideAuthority(f.engine)
	ctx := context.Background()

	_, err := authority.CloseProject(ctx, adminCap(t), f.lead.ID, "customer cancelled")
	require.NoError(t, err)

	// A closed lead accepts only reopen_project; unwinding it backward has
	// to go through that gate first.
	_, err = authority.MoveBackward(ctx, adminCap(t), f.lead.ID,
		f.stepID(t, "Payment Received"), "attempting rework")
	require.Equal(t, CodeProjectClosed, CodeOf(err))

	reopened, err := authority.ReopenProject(ctx, adminCap(t), f.lead.ID, "customer returned")
	require.NoError(t, err)
	assert.False(t, reopened.LeadClosed)
}

func TestOverride_CloseAndReopenProject(t *testing.T) {
	f := newEngineFixture(t, defaultTemplates()...)
	authority := NewOverrideAuthority(f.engine)
	ctx := context.Background()

	res, err := authority.CloseProject(ctx, adminCap(t), f.lead.ID, "customer walked away")
	require.NoError(t, err)
	assert.True(t, res.LeadClosed)
	assert.Equal(t, "Project Handover", res.StepName)

	n, err := f.activity.CountByLeadAndAction(ctx, f.lead.ID, domain.ActivityProjectClosed)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Every normal action now bounces off the closed flag.
	_, err = f.engine.Transition(ctx, TransitionRequest{
		LeadID:    f.lead.ID,
		StepID:    f.stepID(t, "Site Survey"),
		ActorID:   "office-1",
		ActorRole: domain.RoleOffice,
		Action:    domain.ActionComplete,
		Remarks:   domain.NoteRemarks("done"),
	})
	require.Equal(t, CodeProjectClosed, CodeOf(err))

	// Even admin overrides other than reopen_project are rejected.
	_, err = authority.Complete(ctx, adminCap(t), f.lead.ID,
		f.stepID(t, "Site Survey"), "trying anyway")
	require.Equal(t, CodeProjectClosed, CodeOf(err))

	reopened, err := authority.ReopenProject(ctx, adminCap(t), f.lead.ID, "customer returned")
	require.NoError(t, err)
	assert.False(t, reopened.LeadClosed)
	assert.Equal(t, domain.LeadProcessing, reopened.LeadStatus)
	assert.Equal(t, domain.StepPending, reopened.Step.Status)

	// Normal work resumes.
	f.complete(t, "Site Survey", domain.NoteRemarks("resurveyed"))
}

func TestOverride_ReopenProjectNeedsClosedLead(t *testing.T) {
	f := newEngineFixture(t, defaultTemplates()...)
	authority := NewOverrideAuthority(f.engine)

	_, err := authority.ReopenProject(context.Background(), adminCap(t), f.lead.ID, "nothing to reopen")
	assert.Equal(t, CodeConflict, CodeOf(err))
}
