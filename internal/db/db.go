package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// OpenDB opens the CRM database at the given path, or an in-memory database
// for ":memory:". Enables WAL mode and foreign keys and runs all migrations.
func OpenDB(path string) (*sql.DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	// WAL keeps reads (dashboards, timeline fetches) from blocking behind
	// transition writes. _txlock=immediate takes the write lock at BEGIN, so
	// a raced transition waits out busy_timeout and then reads the winner's
	// committed row instead of hitting SQLITE_BUSY mid-transaction. The
	// pragmas go in the DSN so every pooled connection gets them.
	dsn := "file:" + path +
		"?_txlock=immediate" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=foreign_keys(1)"

	database, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := Migrate(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return database, nil
}
