package db

import (
	"database/sql"
	"time"
)

// Stats represents database statistics
type Stats struct {
	TotalAccounts     int
	ProtectedAccounts int
	OldestActive      time.Time
	NewestActive      time.Time
}

// GetStats returns summary statistics over all accounts
func (db *DB) GetStats() (*Stats, error) {
	stats := &Stats{}

	err := db.QueryRow("SELECT COUNT(*) FROM accounts").Scan(&stats.TotalAccounts)
	if err != nil {
		return nil, err
	}

	err = db.QueryRow(`
		SELECT COUNT(*) FROM accounts
		WHERE password_hash IS NOT NULL AND password_hash != ''
	`).Scan(&stats.ProtectedAccounts)
	if err != nil {
		return nil, err
	}

	// Activity range (only if we have accounts)
	if stats.TotalAccounts > 0 {
		var oldest, newest sql.NullString
		err = db.QueryRow("SELECT MIN(last_active), MAX(last_active) FROM accounts").Scan(&oldest, &newest)
		if err != nil {
			return nil, err
		}
		stats.OldestActive = parseTimestamp(oldest)
		stats.NewestActive = parseTimestamp(newest)
	}

	return stats, nil
}
