package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/solardesk/solardesk/internal/db"
	"github.com/solardesk/solardesk/internal/domain"
)

// leadColumns is the canonical SELECT column list for leads.
const leadColumns = `id, customer_name, phone, email, address, city, status, closed,
		owner_id, owner_role, installer_id, customer_account_id, created_at, updated_at`

// SQLiteLeadRepo implements LeadRepo using a SQLite database.
type SQLiteLeadRepo struct {
	db db.DBTX
}

// NewSQLiteLeadRepo creates a new SQLiteLeadRepo over a *sql.DB or *sql.Tx.
func NewSQLiteLeadRepo(conn db.DBTX) *SQLiteLeadRepo {
	return &SQLiteLeadRepo{db: conn}
}

func (r *SQLiteLeadRepo) Create(ctx context.Context, l *domain.Lead) error {
	query := `INSERT INTO leads (` + leadColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		l.ID,
		l.CustomerName,
		l.Phone,
		l.Email,
		l.Address,
		l.City,
		string(l.Status),
		boolToInt(l.Closed),
		l.OwnerID,
		string(l.OwnerRole),
		nullableString(l.InstallerID),
		nullableString(l.CustomerAccountID),
		formatTime(l.CreatedAt),
		formatTime(l.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting lead: %w", err)
	}
	return nil
}

func (r *SQLiteLeadRepo) GetByID(ctx context.Context, id string) (*domain.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = ?`
	return r.scanLead(r.db.QueryRowContext(ctx, query, id))
}

func (r *SQLiteLeadRepo) List(ctx context.Context, filter LeadFilter) ([]*domain.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE 1=1`
	var args []any
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.OwnerID != "" {
		query += ` AND owner_id = ?`
		args = append(args, filter.OwnerID)
	}
	if filter.InstallerID != "" {
		query += ` AND installer_id = ?`
		args = append(args, filter.InstallerID)
	}
	if filter.CustomerAccountID != "" {
		query += ` AND customer_account_id = ?`
		args = append(args, filter.CustomerAccountID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing leads: %w", err)
	}
	defer rows.Close()

	var leads []*domain.Lead
	for rows.Next() {
		l, err := r.scanLeadRow(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating leads: %w", err)
	}
	return leads, nil
}

func (r *SQLiteLeadRepo) Update(ctx context.Context, l *domain.Lead, expectedUpdatedAt time.Time) error {
	l.UpdatedAt = time.Now().UTC()
	query := `UPDATE leads SET
		customer_name = ?, phone = ?, email = ?, address = ?, city = ?,
		status = ?, closed = ?, installer_id = ?, customer_account_id = ?,
		updated_at = ?
		WHERE id = ? AND updated_at = ?`
	res, err := r.db.ExecContext(ctx, query,
		l.CustomerName,
		l.Phone,
		l.Email,
		l.Address,
		l.City,
		string(l.Status),
		boolToInt(l.Closed),
		nullableString(l.InstallerID),
		nullableString(l.CustomerAccountID),
		formatTime(l.UpdatedAt),
		l.ID,
		formatTime(expectedUpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("updating lead: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking lead update result: %w", err)
	}
	if n == 0 {
		// Distinguish missing row from stale token.
		if _, getErr := r.GetByID(ctx, l.ID); errors.Is(getErr, ErrNotFound) {
			return ErrNotFound
		}
		return ErrStaleWrite
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteLeadRepo) scanLead(row *sql.Row) (*domain.Lead, error) {
	l, err := scanLeadFrom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return l, err
}

func (r *SQLiteLeadRepo) scanLeadRow(rows *sql.Rows) (*domain.Lead, error) {
	return scanLeadFrom(rows)
}

func scanLeadFrom(sc rowScanner) (*domain.Lead, error) {
	var l domain.Lead
	var statusStr, ownerRoleStr string
	var closedInt int
	var installerID, customerAccountID sql.NullString
	var createdAtStr, updatedAtStr string

	err := sc.Scan(
		&l.ID, &l.CustomerName, &l.Phone, &l.Email, &l.Address, &l.City,
		&statusStr, &closedInt, &l.OwnerID, &ownerRoleStr,
		&installerID, &customerAccountID, &createdAtStr, &updatedAtStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning lead: %w", err)
	}

	l.Status = domain.LeadStatus(statusStr)
	l.OwnerRole = domain.Role(ownerRoleStr)
	l.Closed = intToBool(closedInt)
	l.InstallerID = fromNullString(installerID)
	l.CustomerAccountID = fromNullString(customerAccountID)
	if l.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return nil, err
	}
	if l.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
		return nil, err
	}
	return &l, nil
}
