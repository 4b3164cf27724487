package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/solardesk/solardesk/internal/db"
	"github.com/solardesk/solardesk/internal/domain"
)

// stepTemplateColumns is the canonical SELECT column list for step_templates.
const stepTemplateColumns = `id, name, category, order_index, allowed_roles,
		remarks_required, attachments_allowed, attachments_required, customer_upload,
		mandatory_docs, created_at, updated_at`

// stepTemplateColumnsAliased is the same column list prefixed with "t." for
// join queries.
const stepTemplateColumnsAliased = `t.id, t.name, t.category, t.order_index, t.allowed_roles,
		t.remarks_required, t.attachments_allowed, t.attachments_required, t.customer_upload,
		t.mandatory_docs, t.created_at, t.updated_at`

// SQLiteStepTemplateRepo implements StepTemplateRepo using a SQLite database.
type SQLiteStepTemplateRepo struct {
	db db.DBTX
}

// NewSQLiteStepTemplateRepo creates a new SQLiteStepTemplateRepo.
func NewSQLiteStepTemplateRepo(conn db.DBTX) *SQLiteStepTemplateRepo {
	return &SQLiteStepTemplateRepo{db: conn}
}

func (r *SQLiteStepTemplateRepo) Create(ctx context.Context, t *domain.StepTemplate) error {
	rolesJSON, err := marshalJSONColumn(t.AllowedRoles)
	if err != nil {
		return err
	}
	docsJSON, err := marshalJSONColumn(t.MandatoryDocs)
	if err != nil {
		return err
	}
	query := `INSERT INTO step_templates (` + stepTemplateColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		t.ID,
		t.Name,
		string(t.Category),
		t.OrderIndex,
		rolesJSON,
		boolToInt(t.RemarksRequired),
		boolToInt(t.AttachmentsAllowed),
		boolToInt(t.AttachmentsRequired),
		boolToInt(t.CustomerUpload),
		docsJSON,
		formatTime(t.CreatedAt),
		formatTime(t.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting step template: %w", err)
	}
	return nil
}

func (r *SQLiteStepTemplateRepo) GetByID(ctx context.Context, id string) (*domain.StepTemplate, error) {
	query := `SELECT ` + stepTemplateColumns + ` FROM step_templates WHERE id = ?`
	t, err := scanStepTemplateFrom(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

func (r *SQLiteStepTemplateRepo) ListOrdered(ctx context.Context) ([]*domain.StepTemplate, error) {
	query := `SELECT ` + stepTemplateColumns + ` FROM step_templates ORDER BY order_index`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing step templates: %w", err)
	}
	defer rows.Close()

	var templates []*domain.StepTemplate
	for rows.Next() {
		t, err := scanStepTemplateFrom(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating step templates: %w", err)
	}
	return templates, nil
}

func (r *SQLiteStepTemplateRepo) ShiftOrderFrom(ctx context.Context, index int) error {
	// Negative offset first to dodge the UNIQUE(order_index) constraint
	// while rows move, then flip sign.
	if _, err := r.db.ExecContext(ctx,
		`UPDATE step_templates SET order_index = -(order_index + 1) WHERE order_index >= ?`, index); err != nil {
		return fmt.Errorf("shifting step template order: %w", err)
	}
	if _, err := r.db.ExecContext(ctx,
		`UPDATE step_templates SET order_index = -order_index WHERE order_index < 0`); err != nil {
		return fmt.Errorf("restoring shifted step template order: %w", err)
	}
	return nil
}

func (r *SQLiteStepTemplateRepo) InstanceCount(ctx context.Context, templateID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM lead_step_instances WHERE step_template_id = ?`, templateID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting template instances: %w", err)
	}
	return count, nil
}

func scanStepTemplateFrom(sc rowScanner) (*domain.StepTemplate, error) {
	var t domain.StepTemplate
	var categoryStr, rolesJSON, docsJSON string
	var remarksReq, attachAllowed, attachRequired, customerUpload int
	var createdAtStr, updatedAtStr string

	err := sc.Scan(
		&t.ID, &t.Name, &categoryStr, &t.OrderIndex, &rolesJSON,
		&remarksReq, &attachAllowed, &attachRequired, &customerUpload,
		&docsJSON, &createdAtStr, &updatedAtStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning step template: %w", err)
	}

	t.Category = domain.StepCategory(categoryStr)
	t.RemarksRequired = intToBool(remarksReq)
	t.AttachmentsAllowed = intToBool(attachAllowed)
	t.AttachmentsRequired = intToBool(attachRequired)
	t.CustomerUpload = intToBool(customerUpload)
	if err := unmarshalJSONColumn(rolesJSON, &t.AllowedRoles); err != nil {
		return nil, err
	}
	if err := unmarshalJSONColumn(docsJSON, &t.MandatoryDocs); err != nil {
		return nil, err
	}
	if t.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
		return nil, err
	}
	return &t, nil
}
