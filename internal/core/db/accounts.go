package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/neilberkman/acctabs/internal/core/models"
	"github.com/neilberkman/acctabs/internal/core/storage"
)

const accountColumns = `id, name, session_dir, zoom_level, password_hash, last_active`

// CreateAccount inserts a new account and allocates its storage directory.
// The directory is unique among existing rows and on disk; a colliding slug
// gets the row id appended.
func (db *DB) CreateAccount(name string) (*models.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	lastActive := db.timestamp()
	result, err := tx.Exec(`
		INSERT INTO accounts (name, session_dir, last_active, zoom_level)
		VALUES (?, '', ?, ?)
	`, name, lastActive, models.DefaultZoom)
	if err != nil {
		return nil, fmt.Errorf("insert account: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("read account id: %w", err)
	}

	dir, err := db.allocateDir(tx, name, id)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(`UPDATE accounts SET session_dir = ? WHERE id = ?`, dir, id); err != nil {
		return nil, fmt.Errorf("set storage path: %w", err)
	}

	if err := os.MkdirAll(db.storageRoot, 0755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	if err := os.Mkdir(dir, 0700); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	if err := tx.Commit(); err != nil {
		_ = os.Remove(dir)
		return nil, fmt.Errorf("commit account: %w", err)
	}

	return &models.Account{
		ID:           id,
		Name:         name,
		StoragePath:  dir,
		ZoomFactor:   models.DefaultZoom,
		LastActiveAt: parseTimestamp(sql.NullString{String: lastActive, Valid: true}),
	}, nil
}

func (db *DB) allocateDir(tx *sql.Tx, name string, id int64) (string, error) {
	base := storage.DirName(name)

	// session_<slug>, session_<slug>_<id>, session_<slug>_<id>_2, ...
	for n := 0; ; n++ {
		var dir string
		switch n {
		case 0:
			dir = filepath.Join(db.storageRoot, base)
		case 1:
			dir = filepath.Join(db.storageRoot, fmt.Sprintf("%s_%d", base, id))
		default:
			dir = filepath.Join(db.storageRoot, fmt.Sprintf("%s_%d_%d", base, id, n))
		}

		taken, err := dirTaken(tx, dir, id)
		if err != nil {
			return "", err
		}
		if !taken {
			return dir, nil
		}
	}
}

func dirTaken(tx *sql.Tx, dir string, id int64) (bool, error) {
	if _, err := os.Lstat(dir); err == nil {
		return true, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat %s: %w", dir, err)
	}

	var inUse bool
	err := tx.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM accounts WHERE session_dir = ? AND id != ?)
	`, dir, id).Scan(&inUse)
	if err != nil {
		return false, fmt.Errorf("check storage path: %w", err)
	}
	return inUse, nil
}

// ListAccounts returns every account, most recently active first
func (db *DB) ListAccounts() ([]models.Account, error) {
	rows, err := db.conn.Query(`
		SELECT ` + accountColumns + `
		FROM accounts
		ORDER BY last_active DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var accounts []models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

// GetAccount loads a single account by id
func (db *DB) GetAccount(id int64) (*models.Account, error) {
	row := db.conn.QueryRow(`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	return a, err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(s scanner) (*models.Account, error) {
	var (
		a          models.Account
		zoom       sql.NullFloat64
		digest     sql.NullString
		lastActive sql.NullString
	)
	if err := s.Scan(&a.ID, &a.Name, &a.StoragePath, &zoom, &digest, &lastActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}

	// Rows written before zoom existed read as NULL or 0
	a.ZoomFactor = models.DefaultZoom
	if zoom.Valid && zoom.Float64 != 0 {
		a.ZoomFactor = models.ClampZoom(zoom.Float64)
	}
	if digest.Valid {
		a.PasswordDigest = digest.String
	}
	a.LastActiveAt = parseTimestamp(lastActive)
	return &a, nil
}

// UpdateZoom stores a clamped zoom factor for the account
func (db *DB) UpdateZoom(id int64, factor float64) error {
	return db.execOne(`UPDATE accounts SET zoom_level = ? WHERE id = ?`, models.ClampZoom(factor), id)
}

// RenameAccount changes the display name. The storage directory keeps its original name.
func (db *DB) RenameAccount(id int64, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	return db.execOne(`UPDATE accounts SET name = ? WHERE id = ?`, name, id)
}

// SetPasswordDigest stores the lock digest. An empty digest clears it.
func (db *DB) SetPasswordDigest(id int64, digest string) error {
	var value interface{}
	if digest != "" {
		value = digest
	}
	return db.execOne(`UPDATE accounts SET password_hash = ? WHERE id = ?`, value, id)
}

// TouchLastActive marks the account as used now
func (db *DB) TouchLastActive(id int64) error {
	return db.execOne(`UPDATE accounts SET last_active = ? WHERE id = ?`, db.timestamp(), id)
}

// DeleteAccount removes the row and returns its storage path so the caller
// can tear the directory down.
func (db *DB) DeleteAccount(id int64) (string, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var dir string
	err = tx.QueryRow(`SELECT session_dir FROM accounts WHERE id = ?`, id).Scan(&dir)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrAccountNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load account: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM accounts WHERE id = ?`, id); err != nil {
		return "", fmt.Errorf("delete account: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit delete: %w", err)
	}
	return dir, nil
}

// StoragePaths returns every storage path referenced by an account row
func (db *DB) StoragePaths() (map[string]bool, error) {
	rows, err := db.conn.Query(`SELECT session_dir FROM accounts`)
	if err != nil {
		return nil, fmt.Errorf("query storage paths: %w", err)
	}
	defer func() { _ = rows.Close() }()

	paths := make(map[string]bool)
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths[filepath.Clean(p)] = true
	}
	return paths, rows.Err()
}
