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

// stepInstanceColumns is the canonical SELECT column list for
// lead_step_instances.
const stepInstanceColumns = `id, lead_id, step_template_id, status,
		completed_by, completed_at, remarks, attachments, created_at, updated_at`

// stepInstanceColumnsAliased is the same list prefixed with "i." for joins.
const stepInstanceColumnsAliased = `i.id, i.lead_id, i.step_template_id, i.status,
		i.completed_by, i.completed_at, i.remarks, i.attachments, i.created_at, i.updated_at`

// SQLiteStepInstanceRepo implements StepInstanceRepo using a SQLite database.
type SQLiteStepInstanceRepo struct {
	db db.DBTX
}

// NewSQLiteStepInstanceRepo creates a new SQLiteStepInstanceRepo.
func NewSQLiteStepInstanceRepo(conn db.DBTX) *SQLiteStepInstanceRepo {
	return &SQLiteStepInstanceRepo{db: conn}
}

func (r *SQLiteStepInstanceRepo) Create(ctx context.Context, i *domain.LeadStepInstance) error {
	remarksJSON, err := remarksToColumn(i.Remarks)
	if err != nil {
		return err
	}
	attachJSON, err := marshalJSONColumn(i.Attachments)
	if err != nil {
		return err
	}
	query := `INSERT INTO lead_step_instances (` + stepInstanceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		i.ID,
		i.LeadID,
		i.StepTemplateID,
		string(i.Status),
		nullableString(i.CompletedBy),
		nullableTimeToString(i.CompletedAt),
		remarksJSON,
		attachJSON,
		formatTime(i.CreatedAt),
		formatTime(i.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting step instance: %w", err)
	}
	return nil
}

func (r *SQLiteStepInstanceRepo) GetByID(ctx context.Context, id string) (*domain.LeadStepInstance, error) {
	query := `SELECT ` + stepInstanceColumns + ` FROM lead_step_instances WHERE id = ?`
	i, err := scanStepInstanceFrom(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return i, err
}

func (r *SQLiteStepInstanceRepo) ListViewsByLead(ctx context.Context, leadID string) ([]StepView, error) {
	query := `SELECT ` + stepInstanceColumnsAliased + `, ` + stepTemplateColumnsAliased + `
		FROM lead_step_instances i
		JOIN step_templates t ON i.step_template_id = t.id
		WHERE i.lead_id = ?
		ORDER BY t.order_index`
	rows, err := r.db.QueryContext(ctx, query, leadID)
	if err != nil {
		return nil, fmt.Errorf("listing step views: %w", err)
	}
	defer rows.Close()

	var views []StepView
	for rows.Next() {
		v, err := scanStepViewFrom(rows)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating step views: %w", err)
	}
	return views, nil
}

func (r *SQLiteStepInstanceRepo) Update(ctx context.Context, i *domain.LeadStepInstance, expectedUpdatedAt time.Time) error {
	remarksJSON, err := remarksToColumn(i.Remarks)
	if err != nil {
		return err
	}
	attachJSON, err := marshalJSONColumn(i.Attachments)
	if err != nil {
		return err
	}
	i.UpdatedAt = time.Now().UTC()
	query := `UPDATE lead_step_instances SET
		status = ?, completed_by = ?, completed_at = ?, remarks = ?, attachments = ?, updated_at = ?
		WHERE id = ? AND updated_at = ?`
	res, err := r.db.ExecContext(ctx, query,
		string(i.Status),
		nullableString(i.CompletedBy),
		nullableTimeToString(i.CompletedAt),
		remarksJSON,
		attachJSON,
		formatTime(i.UpdatedAt),
		i.ID,
		formatTime(expectedUpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("updating step instance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking step instance update result: %w", err)
	}
	if n == 0 {
		if _, getErr := r.GetByID(ctx, i.ID); errors.Is(getErr, ErrNotFound) {
			return ErrNotFound
		}
		return ErrStaleWrite
	}
	return nil
}

func (r *SQLiteStepInstanceRepo) UpdateMarker(ctx context.Context, id string, status domain.StepStatus) error {
	query := `UPDATE lead_step_instances SET status = ?, updated_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, string(status), formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("updating step marker: %w", err)
	}
	return nil
}

func remarksToColumn(r *domain.Remarks) (any, error) {
	if r == nil {
		return nil, nil
	}
	s, err := marshalJSONColumn(r)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func scanStepInstanceFrom(sc rowScanner) (*domain.LeadStepInstance, error) {
	var i domain.LeadStepInstance
	var statusStr string
	var completedBy, completedAt, remarksJSON sql.NullString
	var attachJSON, createdAtStr, updatedAtStr string

	err := sc.Scan(
		&i.ID, &i.LeadID, &i.StepTemplateID, &statusStr,
		&completedBy, &completedAt, &remarksJSON, &attachJSON,
		&createdAtStr, &updatedAtStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning step instance: %w", err)
	}
	if err := populateStepInstance(&i, statusStr, completedBy, completedAt, remarksJSON, attachJSON, createdAtStr, updatedAtStr); err != nil {
		return nil, err
	}
	return &i, nil
}

func scanStepViewFrom(rows *sql.Rows) (StepView, error) {
	var v StepView
	var statusStr string
	var completedBy, completedAt, remarksJSON sql.NullString
	var attachJSON, createdAtStr, updatedAtStr string

	var categoryStr, rolesJSON, docsJSON string
	var remarksReq, attachAllowed, attachRequired, customerUpload int
	var tCreatedAtStr, tUpdatedAtStr string

	err := rows.Scan(
		&v.Instance.ID, &v.Instance.LeadID, &v.Instance.StepTemplateID, &statusStr,
		&completedBy, &completedAt, &remarksJSON, &attachJSON,
		&createdAtStr, &updatedAtStr,
		&v.Template.ID, &v.Template.Name, &categoryStr, &v.Template.OrderIndex, &rolesJSON,
		&remarksReq, &attachAllowed, &attachRequired, &customerUpload,
		&docsJSON, &tCreatedAtStr, &tUpdatedAtStr,
	)
	if err != nil {
		return v, fmt.Errorf("scanning step view: %w", err)
	}

	if err := populateStepInstance(&v.Instance, statusStr, completedBy, completedAt, remarksJSON, attachJSON, createdAtStr, updatedAtStr); err != nil {
		return v, err
	}

	v.Template.Category = domain.StepCategory(categoryStr)
	v.Template.RemarksRequired = intToBool(remarksReq)
	v.Template.AttachmentsAllowed = intToBool(attachAllowed)
	v.Template.AttachmentsRequired = intToBool(attachRequired)
	v.Template.CustomerUpload = intToBool(customerUpload)
	if err := unmarshalJSONColumn(rolesJSON, &v.Template.AllowedRoles); err != nil {
		return v, err
	}
	if err := unmarshalJSONColumn(docsJSON, &v.Template.MandatoryDocs); err != nil {
		return v, err
	}
	if v.Template.CreatedAt, err = parseTime(tCreatedAtStr); err != nil {
		return v, err
	}
	if v.Template.UpdatedAt, err = parseTime(tUpdatedAtStr); err != nil {
		return v, err
	}
	return v, nil
}

func populateStepInstance(i *domain.LeadStepInstance, statusStr string,
	completedBy, completedAt, remarksJSON sql.NullString,
	attachJSON, createdAtStr, updatedAtStr string) error {

	i.Status = domain.StepStatus(statusStr)
	i.CompletedBy = fromNullString(completedBy)
	var err error
	if i.CompletedAt, err = parseNullableTime(completedAt); err != nil {
		return err
	}
	if remarksJSON.Valid && remarksJSON.String != "" {
		var rm domain.Remarks
		if err := unmarshalJSONColumn(remarksJSON.String, &rm); err != nil {
			return err
		}
		i.Remarks = &rm
	}
	if err := unmarshalJSONColumn(attachJSON, &i.Attachments); err != nil {
		return err
	}
	if i.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return err
	}
	if i.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
		return err
	}
	return nil
}
