package store

import (
	"database/sql"
	"fmt"

	"lockbox/pkg/asset"
)

// Schema version constants
const (
	// SchemaVersion1 is the original schema: items carried inline images in
	// their encrypted payloads and no assets table existed.
	SchemaVersion1 = 1
	// SchemaVersion2 adds the assets table; inline images migrate into it on
	// first unlock.
	SchemaVersion2 = 2
	// CurrentSchemaVersion is the current schema version
	CurrentSchemaVersion = SchemaVersion2
)

// getSchemaVersion returns the current schema version from the database.
// Returns 1 if no version is stored (legacy database).
func getSchemaVersion(db *sql.DB) (int, error) {
	var tableName string
	err := db.QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableName)

	if err == sql.ErrNoRows {
		// No schema_version table = version 1 (legacy)
		return SchemaVersion1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("store: failed to check schema_version table: %w", err)
	}

	var version int
	err = db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return SchemaVersion1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("store: failed to get schema version: %w", err)
	}

	return version, nil
}

// setSchemaVersion sets the schema version in the database.
func setSchemaVersion(db *sql.DB, version int) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			migrated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("store: failed to create schema_version table: %w", err)
	}

	_, err = db.Exec("INSERT OR REPLACE INTO schema_version (version) VALUES (?)", version)
	if err != nil {
		return fmt.Errorf("store: failed to set schema version: %w", err)
	}

	return nil
}

// migrateSchema migrates the database schema to the current version. Each
// step is idempotent; a crash mid-migration re-runs safely on next unlock.
func migrateSchema(db *sql.DB) error {
	version, err := getSchemaVersion(db)
	if err != nil {
		return err
	}

	if version < SchemaVersion2 {
		if err := migrateToV2(db); err != nil {
			return fmt.Errorf("store: migration to v2 failed: %w", err)
		}
	}

	return nil
}

// migrateToV2 introduces the assets table. Item payloads are not rewritten
// here: inline images convert lazily after load, where the DEK and the asset
// store are both available.
func migrateToV2(db *sql.DB) error {
	if err := asset.EnsureSchema(db); err != nil {
		return err
	}
	return setSchemaVersion(db, SchemaVersion2)
}

// createTables creates the required SQLite tables for a fresh vault.
func createTables(db *sql.DB) error {
	// vault_keys table (encrypted DEK)
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS vault_keys (
			id INTEGER PRIMARY KEY,
			encrypted_dek BLOB NOT NULL,
			dek_nonce BLOB NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}

	// items table: one encrypted payload per item, with the category id and
	// timestamps in plaintext columns for ordering and counting without
	// decryption.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS items (
			id TEXT PRIMARY KEY,
			category TEXT NOT NULL,
			encrypted_payload BLOB NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS categories (
			id TEXT PRIMARY KEY,
			encrypted_payload BLOB NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// settings is a single-row table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS settings (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			encrypted_payload BLOB NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	return asset.EnsureSchema(db)
}
