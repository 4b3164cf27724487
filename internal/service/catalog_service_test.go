package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solardesk/solardesk/internal/domain"
	"github.com/solardesk/solardesk/internal/repository"
	"github.com/solardesk/solardesk/internal/testutil"
)

func newCatalogService(t *testing.T) CatalogService {
	t.Helper()
	db := testutil.NewTestDB(t)
	return NewCatalogService(repository.NewSQLiteStepTemplateRepo(db), testutil.NewTestUoW(db))
}

func TestCatalogService_CreateAppends(t *testing.T) {
	svc := newCatalogService(t)
	ctx := context.Background()

	require.NoError(t, svc.Create(ctx, &domain.StepTemplate{Name: "Site Survey"}))
	require.NoError(t, svc.Create(ctx, &domain.StepTemplate{Name: "Payment Received"}))

	templates, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, templates, 2)
	assert.Equal(t, 0, templates[0].OrderIndex)
	assert.Equal(t, 1, templates[1].OrderIndex)
	// Category defaults from the name keyword heuristic.
	assert.Equal(t, domain.CategoryGeneral, templates[0].Category)
	assert.Equal(t, domain.CategoryPayment, templates[1].Category)
	assert.NotEmpty(t, templates[0].ID)
	assert.Equal(t, []domain.Role{domain.RoleOffice, domain.RoleAdmin}, templates[0].AllowedRoles)
}

func TestCatalogService_InsertAtKeepsOrderContiguous(t *testing.T) {
	svc := newCatalogService(t)
	ctx := context.Background()

	for _, name := range []string{"Survey", "Quotation", "Handover"} {
		require.NoError(t, svc.Create(ctx, &domain.StepTemplate{Name: name}))
	}

	require.NoError(t, svc.InsertAt(ctx, &domain.StepTemplate{
		Name:     "Bank Loan Sanction",
		Category: domain.CategoryLoan,
	}, 1))

	templates, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, templates, 4)

	names := make([]string, 0, 4)
	for i, tmpl := range templates {
		assert.Equal(t, i, tmpl.OrderIndex, "order stays contiguous")
		names = append(names, tmpl.Name)
	}
	assert.Equal(t, []string{"Survey", "Bank Loan Sanction", "Quotation", "Handover"}, names)
}

func TestCatalogService_InsertAt_IndexBeyondEndAppends(t *testing.T) {
	svc := newCatalogService(t)
	ctx := context.Background()

	require.NoError(t, svc.Create(ctx, &domain.StepTemplate{Name: "Survey"}))
	require.NoError(t, svc.InsertAt(ctx, &domain.StepTemplate{Name: "Tail"}, 99))

	templates, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, templates, 2)
	assert.Equal(t, "Tail", templates[1].Name)
	assert.Equal(t, 1, templates[1].OrderIndex)
}

func TestCatalogService_InsertAt_NegativeIndexRejected(t *testing.T) {
	svc := newCatalogService(t)
	err := svc.InsertAt(context.Background(), &domain.StepTemplate{Name: "Bad"}, -1)
	assert.Error(t, err)
}

func TestCatalogService_SeedOnlyWhenEmpty(t *testing.T) {
	svc := newCatalogService(t)
	ctx := context.Background()

	n, err := svc.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	templates, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, templates, 7)
	assert.Equal(t, "Site Survey", templates[0].Name)
	assert.Equal(t, domain.CategoryClosure, templates[6].Category)

	// Re-seeding a populated catalog is a no-op.
	n, err = svc.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
