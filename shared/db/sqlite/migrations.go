package sqlite

import (
	"database/sql"
	"fmt"
)

type migration struct {
	version int
	name    string
	up      string
}

// migrations are applied in order; each runs once and is recorded in
// schema_migrations.
var migrations = []migration{
	{
		version: 1,
		name:    "create_images_table",
		up: `
			CREATE TABLE IF NOT EXISTS images (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL CHECK (name <> ''),
				data BLOB NOT NULL CHECK (length(data) > 0),
				content_type TEXT NOT NULL CHECK (content_type <> ''),
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_images_created_at
			ON images(created_at DESC);
		`,
	},
}

func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	currentVersion := 0
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if err := applyMigration(db, m); err != nil {
			return err
		}
	}

	return nil
}

func applyMigration(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction for migration %d: %w", m.version, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.up); err != nil {
		return fmt.Errorf("failed to execute migration %d (%s): %w", m.version, m.name, err)
	}

	_, err = tx.Exec(
		"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
		m.version,
		m.name,
	)
	if err != nil {
		return fmt.Errorf("failed to record migration %d: %w", m.version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
	}
	return nil
}
