package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/solardesk/solardesk/internal/db"
	"github.com/solardesk/solardesk/internal/domain"
)

// documentColumns is the canonical SELECT column list for documents.
const documentColumns = `id, lead_id, category, path, status, uploaded_by, created_at, updated_at`

// SQLiteDocumentRepo implements DocumentRepo. It only holds metadata over
// opaque blob paths; the bytes live in an external store.
type SQLiteDocumentRepo struct {
	db db.DBTX
}

// NewSQLiteDocumentRepo creates a new SQLiteDocumentRepo.
func NewSQLiteDocumentRepo(conn db.DBTX) *SQLiteDocumentRepo {
	return &SQLiteDocumentRepo{db: conn}
}

func (r *SQLiteDocumentRepo) Create(ctx context.Context, d *domain.Document) error {
	query := `INSERT INTO documents (` + documentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		d.ID,
		d.LeadID,
		d.Category,
		d.Path,
		string(d.Status),
		d.UploadedBy,
		formatTime(d.CreatedAt),
		formatTime(d.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}
	return nil
}

func (r *SQLiteDocumentRepo) ListByLead(ctx context.Context, leadID string) ([]*domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE lead_id = ? ORDER BY created_at`
	return r.queryDocuments(ctx, query, leadID)
}

func (r *SQLiteDocumentRepo) ListByLeadAndCategory(ctx context.Context, leadID, category string) ([]*domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE lead_id = ? AND category = ? ORDER BY created_at`
	return r.queryDocuments(ctx, query, leadID, category)
}

func (r *SQLiteDocumentRepo) SetStatus(ctx context.Context, id string, status domain.DocumentStatus) error {
	query := `UPDATE documents SET status = ?, updated_at = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, string(status), formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("updating document status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking document update result: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteDocumentRepo) queryDocuments(ctx context.Context, query string, args ...any) ([]*domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		var d domain.Document
		var statusStr, createdAtStr, updatedAtStr string
		if err := rows.Scan(&d.ID, &d.LeadID, &d.Category, &d.Path, &statusStr,
			&d.UploadedBy, &createdAtStr, &updatedAtStr); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		d.Status = domain.DocumentStatus(statusStr)
		if d.CreatedAt, err = parseTime(createdAtStr); err != nil {
			return nil, err
		}
		if d.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
			return nil, err
		}
		docs = append(docs, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}
