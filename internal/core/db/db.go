package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

var (
	// ErrAccountNotFound is returned when no row matches the account id
	ErrAccountNotFound = errors.New("account not found")

	// ErrEmptyName is returned when creating or renaming with a blank name
	ErrEmptyName = errors.New("account name must not be empty")
)

// timestampLayout is how last_active is written. It sorts lexicographically
// and stays readable next to legacy CURRENT_TIMESTAMP values.
const timestampLayout = "2006-01-02 15:04:05.000000"

// DB wraps a SQLite database connection
type DB struct {
	conn        *sql.DB
	storageRoot string
	now         func() time.Time
}

// New creates a new database connection and initializes schema.
// Account storage directories are allocated next to the database file.
func New(dbPath string) (*DB, error) {
	// Ensure parent directory exists
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open with WAL mode for concurrent reads
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	conn.SetMaxOpenConns(1) // SQLite only supports one writer
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	db := &DB{
		conn:        conn,
		storageRoot: dbDir,
		now:         time.Now,
	}

	// Initialize schema
	if err := db.initSchema(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	// Run migrations for existing databases
	if err := db.runMigrations(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// StorageRoot returns the directory account storage is allocated under
func (db *DB) StorageRoot() string {
	return db.storageRoot
}

// QueryRow executes a query that returns a single row
func (db *DB) QueryRow(query string, args ...interface{}) *sql.Row {
	return db.conn.QueryRow(query, args...)
}

func (db *DB) timestamp() string {
	return db.now().UTC().Format(timestampLayout)
}

// parseTimestamp reads last_active in any format it has been written in:
// ours, SQLite's CURRENT_TIMESTAMP, or a driver-formatted time.
func parseTimestamp(v sql.NullString) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	s := strings.TrimSpace(v.String)
	layouts := []string{
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04:05",
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// execOne runs a single-row update and maps "no rows" to ErrAccountNotFound
func (db *DB) execOne(query string, args ...interface{}) error {
	result, err := db.conn.Exec(query, args...)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAccountNotFound
	}
	return nil
}
