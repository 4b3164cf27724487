package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solardesk/solardesk/internal/domain"
	"github.com/solardesk/solardesk/internal/testutil"
)

func newEntry(leadID, action string, at time.Time) *domain.ActivityLogEntry {
	return &domain.ActivityLogEntry{
		ID:         uuid.New().String(),
		LeadID:     &leadID,
		UserID:     "office-1",
		Action:     action,
		EntityType: "lead_step_instance",
		EntityID:   uuid.New().String(),
		OldValue:   `{"status":"pending"}`,
		NewValue:   `{"status":"completed"}`,
		Timestamp:  at,
	}
}

func TestActivityLogRepo_AppendAndListByLead(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLiteActivityLogRepo(db)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, repo.Append(ctx, newEntry("lead-1", domain.ActivityStepCompleted, now)))
	require.NoError(t, repo.Append(ctx, newEntry("lead-1", domain.ActivityDuplicateAttempt, now.Add(time.Second))))
	require.NoError(t, repo.Append(ctx, newEntry("lead-2", domain.ActivityStepCompleted, now)))

	entries, err := repo.ListByLead(ctx, "lead-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.ActivityStepCompleted, entries[0].Action)
	assert.Equal(t, domain.ActivityDuplicateAttempt, entries[1].Action)
	assert.Equal(t, `{"status":"completed"}`, entries[0].NewValue)
}

func TestActivityLogRepo_CountByLeadAndAction(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLiteActivityLogRepo(db)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, repo.Append(ctx, newEntry("lead-1", domain.ActivityDuplicateAttempt, now)))
	require.NoError(t, repo.Append(ctx, newEntry("lead-1", domain.ActivityDuplicateAttempt, now)))
	require.NoError(t, repo.Append(ctx, newEntry("lead-1", domain.ActivityStepCompleted, now)))

	n, err := repo.CountByLeadAndAction(ctx, "lead-1", domain.ActivityDuplicateAttempt)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

// Immutability is enforced by the storage layer: UPDATE and DELETE abort via
// triggers even when issued directly, outside any repository method.
func TestActivityLog_ImmutableAtStorageLayer(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLiteActivityLogRepo(db)
	ctx := context.Background()

	entry := newEntry("lead-1", domain.ActivityStepCompleted, time.Now().UTC())
	require.NoError(t, repo.Append(ctx, entry))

	_, err := db.ExecContext(ctx, `UPDATE activity_log SET action = 'tampered' WHERE id = ?`, entry.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "immutable")

	_, err = db.ExecContext(ctx, `DELETE FROM activity_log WHERE id = ?`, entry.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "immutable")

	entries, err := repo.ListByLead(ctx, "lead-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.ActivityStepCompleted, entries[0].Action)
}
