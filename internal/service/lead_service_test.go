package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solardesk/solardesk/internal/domain"
	"github.com/solardesk/solardesk/internal/repository"
	"github.com/solardesk/solardesk/internal/testutil"
)

func newLeadService(t *testing.T) (LeadService, *sql.DB) {
	t.Helper()
	db := testutil.NewTestDB(t)
	svc := NewLeadService(
		repository.NewSQLiteLeadRepo(db),
		repository.NewSQLiteStepInstanceRepo(db),
		repository.NewSQLiteStepTemplateRepo(db),
		repository.NewSQLiteActivityLogRepo(db),
		testutil.NewTestUoW(db),
	)
	return svc, db
}

func seedCatalog(t *testing.T, db *sql.DB, names ...string) {
	t.Helper()
	repo := repository.NewSQLiteStepTemplateRepo(db)
	for i, name := range names {
		require.NoError(t, repo.Create(context.Background(), testutil.NewTestTemplate(name, i)))
	}
}

func office() Actor { return Actor{ID: "office-1", Role: domain.RoleOffice} }

func TestLeadService_CreateMaterializesTimeline(t *testing.T) {
	svc, db := newLeadService(t)
	seedCatalog(t, db, "Survey", "Payment", "Handover")
	ctx := context.Background()

	lead := &domain.Lead{CustomerName: "Ravi", Phone: "9811111111", OwnerID: "agent-1", OwnerRole: domain.RoleAgent}
	require.NoError(t, svc.Create(ctx, lead))
	require.NotEmpty(t, lead.ID)
	assert.Equal(t, domain.LeadNew, lead.Status)

	detail, err := svc.Get(ctx, lead.ID)
	require.NoError(t, err)
	require.Len(t, detail.Steps, 3)
	// The lowest-order step starts pending, the rest upcoming.
	assert.Equal(t, domain.StepPending, detail.Steps[0].Instance.Status)
	assert.Equal(t, domain.StepUpcoming, detail.Steps[1].Instance.Status)
	assert.Equal(t, domain.StepUpcoming, detail.Steps[2].Instance.Status)

	entries, err := svc.Activity(ctx, lead.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.ActivityLeadCreated, entries[0].Action)
}

func TestLeadService_UpdateContactRequiresOfficeRole(t *testing.T) {
	svc, db := newLeadService(t)
	seedCatalog(t, db, "Survey")
	ctx := context.Background()

	lead := &domain.Lead{CustomerName: "Ravi", Phone: "9811111111", OwnerID: "agent-1", OwnerRole: domain.RoleAgent}
	require.NoError(t, svc.Create(ctx, lead))

	lead.City = "Nagpur"
	err := svc.UpdateContact(ctx, Actor{ID: "agent-1", Role: domain.RoleAgent}, lead)
	assert.Error(t, err)

	require.NoError(t, svc.UpdateContact(ctx, office(), lead))
	detail, err := svc.Get(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "Nagpur", detail.Lead.City)
}

func TestLeadService_AssignInstallerAndLinkCustomer(t *testing.T) {
	svc, db := newLeadService(t)
	seedCatalog(t, db, "Survey")
	ctx := context.Background()

	lead := &domain.Lead{CustomerName: "Meena", Phone: "9822222222", OwnerID: "office-1", OwnerRole: domain.RoleOffice}
	require.NoError(t, svc.Create(ctx, lead))

	require.NoError(t, svc.AssignInstaller(ctx, office(), lead.ID, "inst-4"))
	require.NoError(t, svc.LinkCustomerAccount(ctx, office(), lead.ID, "cust-4"))

	detail, err := svc.Get(ctx, lead.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.Lead.InstallerID)
	assert.Equal(t, "inst-4", *detail.Lead.InstallerID)
	require.NotNil(t, detail.Lead.CustomerAccountID)
	assert.Equal(t, "cust-4", *detail.Lead.CustomerAccountID)

	n := 0
	entries, err := svc.Activity(ctx, lead.ID)
	require.NoError(t, err)
	for _, e := range entries {
		if e.Action == domain.ActivityInstallerSet {
			n++
		}
	}
	assert.Equal(t, 1, n)
}

func TestLeadService_Cancel(t *testing.T) {
	svc, db := newLeadService(t)
	seedCatalog(t, db, "Survey")
	ctx := context.Background()

	lead := &domain.Lead{CustomerName: "Drop", Phone: "9833333333", OwnerID: "office-1", OwnerRole: domain.RoleOffice}
	require.NoError(t, svc.Create(ctx, lead))

	require.NoError(t, svc.Cancel(ctx, office(), lead.ID))

	detail, err := svc.Get(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LeadCancelled, detail.Lead.Status)

	// A cancelled lead cannot be cancelled again.
	assert.Error(t, svc.Cancel(ctx, office(), lead.ID))
}

func TestLeadService_GetNotFound(t *testing.T) {
	svc, _ := newLeadService(t)
	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
