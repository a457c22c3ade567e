package store

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations[i] upgrades the schema from user_version i to i+1.
var migrations = [][]string{
	{
		`CREATE TABLE IF NOT EXISTS records (
			id     TEXT PRIMARY KEY NOT NULL,
			record BLOB NOT NULL
		)`,
	},
	{
		`ALTER TABLE records ADD COLUMN staged_at INTEGER NOT NULL DEFAULT 0`,
		`ALTER TABLE records ADD COLUMN rejected_reason TEXT`,
		`ALTER TABLE records ADD COLUMN rejected_at INTEGER`,
	},
}

// SchemaVersion is the user_version of a fully migrated database.
var SchemaVersion = len(migrations)

// migrate runs inside an immediate transaction so that concurrent collectors
// opening a fresh file apply each migration exactly once.
func migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	var version int
	if err := tx.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > SchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, SchemaVersion)
	}
	if version == SchemaVersion {
		return nil
	}

	for v := version; v < SchemaVersion; v++ {
		for _, stmt := range migrations[v] {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migration %d: %w", v+1, err)
			}
		}
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, SchemaVersion)); err != nil {
		return fmt.Errorf("write schema version: %w", err)
	}
	return tx.Commit()
}
