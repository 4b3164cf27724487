package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/solardesk/solardesk/internal/db"
	"github.com/solardesk/solardesk/internal/domain"
)

// activityColumns is the canonical SELECT column list for activity_log.
const activityColumns = `id, lead_id, user_id, action, entity_type, entity_id,
		old_value, new_value, admin_override, timestamp`

// SQLiteActivityLogRepo implements ActivityLogRepo. The table carries
// update/delete-prevention triggers, so Append is the only mutation that can
// ever succeed against it.
type SQLiteActivityLogRepo struct {
	db db.DBTX
}

// NewSQLiteActivityLogRepo creates a new SQLiteActivityLogRepo.
func NewSQLiteActivityLogRepo(conn db.DBTX) *SQLiteActivityLogRepo {
	return &SQLiteActivityLogRepo{db: conn}
}

func (r *SQLiteActivityLogRepo) Append(ctx context.Context, e *domain.ActivityLogEntry) error {
	query := `INSERT INTO activity_log (` + activityColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		e.ID,
		nullableString(e.LeadID),
		e.UserID,
		e.Action,
		e.EntityType,
		e.EntityID,
		e.OldValue,
		e.NewValue,
		boolToInt(e.AdminOverride),
		formatTime(e.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("appending activity entry: %w", err)
	}
	return nil
}

func (r *SQLiteActivityLogRepo) ListByLead(ctx context.Context, leadID string) ([]*domain.ActivityLogEntry, error) {
	query := `SELECT ` + activityColumns + ` FROM activity_log WHERE lead_id = ? ORDER BY timestamp, id`
	rows, err := r.db.QueryContext(ctx, query, leadID)
	if err != nil {
		return nil, fmt.Errorf("listing activity entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.ActivityLogEntry
	for rows.Next() {
		e, err := scanActivityFrom(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating activity entries: %w", err)
	}
	return entries, nil
}

func (r *SQLiteActivityLogRepo) CountByLeadAndAction(ctx context.Context, leadID, action string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM activity_log WHERE lead_id = ? AND action = ?`, leadID, action).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting activity entries: %w", err)
	}
	return count, nil
}

func scanActivityFrom(sc rowScanner) (*domain.ActivityLogEntry, error) {
	var e domain.ActivityLogEntry
	var leadID sql.NullString
	var overrideInt int
	var timestampStr string

	err := sc.Scan(
		&e.ID, &leadID, &e.UserID, &e.Action, &e.EntityType, &e.EntityID,
		&e.OldValue, &e.NewValue, &overrideInt, &timestampStr,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning activity entry: %w", err)
	}

	e.LeadID = fromNullString(leadID)
	e.AdminOverride = intToBool(overrideInt)
	if e.Timestamp, err = parseTime(timestampStr); err != nil {
		return nil, err
	}
	return &e, nil
}
