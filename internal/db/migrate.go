package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// migrations is the ordered statement list. Statements are idempotent
// (CREATE ... IF NOT EXISTS) and the whole list re-runs on every open.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS leads (
		id                  TEXT PRIMARY KEY,
		customer_name       TEXT NOT NULL,
		phone               TEXT NOT NULL,
		email               TEXT NOT NULL DEFAULT '',
		address             TEXT NOT NULL DEFAULT '',
		city                TEXT NOT NULL DEFAULT '',
		status              TEXT NOT NULL
		                    CHECK(status IN ('lead','lead_interested','lead_processing','lead_completed','lead_cancelled')),
		closed              INTEGER NOT NULL DEFAULT 0,
		owner_id            TEXT NOT NULL,
		owner_role          TEXT NOT NULL,
		installer_id        TEXT,
		customer_account_id TEXT,
		created_at          TEXT NOT NULL,
		updated_at          TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS step_templates (
		id                   TEXT PRIMARY KEY,
		name                 TEXT NOT NULL,
		category             TEXT NOT NULL
		                     CHECK(category IN ('general','document','payment','loan','installation','closure')),
		order_index          INTEGER NOT NULL UNIQUE,
		allowed_roles        TEXT NOT NULL,
		remarks_required     INTEGER NOT NULL DEFAULT 0,
		attachments_allowed  INTEGER NOT NULL DEFAULT 0,
		attachments_required INTEGER NOT NULL DEFAULT 0,
		customer_upload      INTEGER NOT NULL DEFAULT 0,
		mandatory_docs       TEXT NOT NULL DEFAULT '[]',
		created_at           TEXT NOT NULL,
		updated_at           TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS lead_step_instances (
		id               TEXT PRIMARY KEY,
		lead_id          TEXT NOT NULL REFERENCES leads(id) ON DELETE CASCADE,
		step_template_id TEXT NOT NULL REFERENCES step_templates(id),
		status           TEXT NOT NULL
		                 CHECK(status IN ('upcoming','pending','completed')),
		completed_by     TEXT,
		completed_at     TEXT,
		remarks          TEXT,
		attachments      TEXT NOT NULL DEFAULT '[]',
		created_at       TEXT NOT NULL,
		updated_at       TEXT NOT NULL,
		UNIQUE(lead_id, step_template_id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_step_instances_lead ON lead_step_instances(lead_id)`,

	`CREATE TABLE IF NOT EXISTS activity_log (
		id             TEXT PRIMARY KEY,
		lead_id        TEXT,
		user_id        TEXT NOT NULL,
		action         TEXT NOT NULL,
		entity_type    TEXT NOT NULL,
		entity_id      TEXT NOT NULL,
		old_value      TEXT NOT NULL DEFAULT '',
		new_value      TEXT NOT NULL DEFAULT '',
		admin_override INTEGER NOT NULL DEFAULT 0,
		timestamp      TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_activity_log_lead ON activity_log(lead_id)`,

	// The audit trail is append-only at the storage layer, not just by
	// convention.
	`CREATE TRIGGER IF NOT EXISTS activity_log_no_update
		BEFORE UPDATE ON activity_log
	BEGIN
		SELECT RAISE(ABORT, 'activity_log entries are immutable');
	END`,

	`CREATE TRIGGER IF NOT EXISTS activity_log_no_delete
		BEFORE DELETE ON activity_log
	BEGIN
		SELECT RAISE(ABORT, 'activity_log entries are immutable');
	END`,

	`CREATE TABLE IF NOT EXISTS documents (
		id          TEXT PRIMARY KEY,
		lead_id     TEXT NOT NULL REFERENCES leads(id) ON DELETE CASCADE,
		category    TEXT NOT NULL,
		path        TEXT NOT NULL,
		status      TEXT NOT NULL
		            CHECK(status IN ('valid','rejected','pending_review')),
		uploaded_by TEXT NOT NULL,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_documents_lead_category ON documents(lead_id, category)`,
}

// Migrate runs all schema migrations.
func Migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			// Tolerate "duplicate column name" from ALTER TABLE since the
			// migration system re-runs all statements.
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
