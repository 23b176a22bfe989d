package db

// initSchema creates the accounts table in its original shape. Columns added
// later (zoom_level, password_hash) are applied by runMigrations, so fresh and
// upgraded databases go through the same path.
func (db *DB) initSchema() error {
	schema := `
	-- Accounts table
	CREATE TABLE IF NOT EXISTS accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		session_dir TEXT NOT NULL,
		last_active TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		settings TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_last_active ON accounts(last_active);
	CREATE INDEX IF NOT EXISTS idx_accounts_session_dir ON accounts(session_dir);
	`

	_, err := db.conn.Exec(schema)
	return err
}
