package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solardesk/solardesk/internal/domain"
	"github.com/solardesk/solardesk/internal/testutil"
)

func TestDocumentRepo_CreateAndList(t *testing.T) {
	db := testutil.NewTestDB(t)
	leads := NewSQLiteLeadRepo(db)
	docs := NewSQLiteDocumentRepo(db)
	ctx := context.Background()

	lead := testutil.NewTestLead("Docs")
	require.NoError(t, leads.Create(ctx, lead))

	require.NoError(t, docs.Create(ctx, testutil.NewTestDocument(lead.ID, "identity_proof")))
	require.NoError(t, docs.Create(ctx, testutil.NewTestDocument(lead.ID, "electricity_bill")))

	all, err := docs.ListByLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	identity, err := docs.ListByLeadAndCategory(ctx, lead.ID, "identity_proof")
	require.NoError(t, err)
	require.Len(t, identity, 1)
	assert.Equal(t, domain.DocumentPendingReview, identity[0].Status)
}

func TestDocumentRepo_SetStatus(t *testing.T) {
	db := testutil.NewTestDB(t)
	leads := NewSQLiteLeadRepo(db)
	docs := NewSQLiteDocumentRepo(db)
	ctx := context.Background()

	lead := testutil.NewTestLead("Review")
	require.NoError(t, leads.Create(ctx, lead))

	doc := testutil.NewTestDocument(lead.ID, "identity_proof")
	require.NoError(t, docs.Create(ctx, doc))
	require.NoError(t, docs.SetStatus(ctx, doc.ID, domain.DocumentValid))

	fetched, err := docs.ListByLeadAndCategory(ctx, lead.ID, "identity_proof")
	require.NoError(t, err)
	require.Len(t, fetched, 1)
	assert.Equal(t, domain.DocumentValid, fetched[0].Status)
}

func TestDocumentRepo_SetStatus_NotFound(t *testing.T) {
	db := testutil.NewTestDB(t)
	docs := NewSQLiteDocumentRepo(db)

	err := docs.SetStatus(context.Background(), "nonexistent", domain.DocumentValid)
	assert.ErrorIs(t, err, ErrNotFound)
}
