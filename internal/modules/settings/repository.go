// Package settings provides persisted user preferences.
package settings

import (
	"database/sql"
	"fmt"
)

// Repository provides key-value settings storage
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new settings repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Get returns the stored value for a key.
// Returns "", false when the key is not set.
func (r *Repository) Get(key string) (string, bool, error) {
	var value string
	err := r.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores a value for a key, replacing any previous value
func (r *Repository) Set(key, value string) error {
	query := "INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)"
	if _, err := r.db.Exec(query, key, value); err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}
