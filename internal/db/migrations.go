package db

import (
	"context"
	"fmt"
)

// legacyColumns were added after the first gateway releases. Older databases are
// upgraded in place.
var legacyColumns = []struct {
	name string
	ddl  string
}{
	{"origin", "ALTER TABLE usage_requests ADD COLUMN origin TEXT NOT NULL DEFAULT ''"},
	{"session_id", "ALTER TABLE usage_requests ADD COLUMN session_id TEXT NOT NULL DEFAULT ''"},
}

// MigrateLegacyColumns adds any column missing from usage_requests.
func (db *DB) MigrateLegacyColumns() error {
	existing, err := db.columns("usage_requests")
	if err != nil {
		return err
	}

	for _, col := range legacyColumns {
		if existing[col.name] {
			continue
		}
		if _, err := db.ExecContext(context.Background(), col.ddl); err != nil {
			return fmt.Errorf("failed to add column %s: %w", col.name, err)
		}
	}

	_, err = db.ExecContext(context.Background(),
		"CREATE INDEX IF NOT EXISTS idx_usage_requests_session ON usage_requests(session_id)")
	return err
}

func (db *DB) columns(table string) (map[string]bool, error) {
	rows, err := db.QueryContext(context.Background(), fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("failed to read table info: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid      int
			name     string
			colType  string
			notNull  int
			defValue any
			pk       int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defValue, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan table info: %w", err)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}
