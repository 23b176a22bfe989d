package db

import (
	"fmt"
)

// runMigrations applies database migrations for existing databases.
// Every migration is additive and default-valued so older stores open unchanged.
func (db *DB) runMigrations() error {
	// Migration 1: Add zoom_level to accounts
	if err := db.migration001AddZoomLevel(); err != nil {
		return fmt.Errorf("migration 001: %w", err)
	}

	// Migration 2: Add password_hash to accounts
	if err := db.migration002AddPasswordHash(); err != nil {
		return fmt.Errorf("migration 002: %w", err)
	}

	return nil
}

// migration001AddZoomLevel adds the per-account zoom factor
func (db *DB) migration001AddZoomLevel() error {
	hasZoom, err := db.hasColumn("accounts", "zoom_level")
	if err != nil {
		return err
	}
	if hasZoom {
		return nil
	}

	// Existing rows pick up the column default
	_, err = db.conn.Exec(`ALTER TABLE accounts ADD COLUMN zoom_level REAL DEFAULT 1.0;`)
	if err != nil {
		return fmt.Errorf("add zoom_level column: %w", err)
	}
	return nil
}

// migration002AddPasswordHash adds the optional lock digest (NULL = no password)
func (db *DB) migration002AddPasswordHash() error {
	hasHash, err := db.hasColumn("accounts", "password_hash")
	if err != nil {
		return err
	}
	if hasHash {
		return nil
	}

	_, err = db.conn.Exec(`ALTER TABLE accounts ADD COLUMN password_hash TEXT;`)
	if err != nil {
		return fmt.Errorf("add password_hash column: %w", err)
	}
	return nil
}

func (db *DB) hasColumn(table, column string) (bool, error) {
	var count int
	err := db.conn.QueryRow(`
		SELECT COUNT(*) FROM pragma_table_info(?)
		WHERE name = ?
	`, table, column).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("inspect %s.%s: %w", table, column, err)
	}
	return count > 0, nil
}
