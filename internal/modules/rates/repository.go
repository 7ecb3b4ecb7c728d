// Package rates provides the exchange rate store and resolver.
package rates

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wilqq-the/stronghodl/internal/domain"
)

// Repository provides access to stored exchange rates.
// Only directly fetched rates are stored; reverse and multi-hop rates are
// derived by the resolver and never persisted.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new exchange rate repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("component", "rate_repository").Logger(),
	}
}

// Upsert inserts or replaces a directed rate for a currency pair
func (r *Repository) Upsert(fromCurrency, toCurrency string, rate float64) error {
	if rate <= 0 {
		return fmt.Errorf("rate must be positive, got %f for %s->%s", rate, fromCurrency, toCurrency)
	}

	query := `
		INSERT OR REPLACE INTO exchange_rates (from_currency, to_currency, rate, updated_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := r.db.Exec(query, fromCurrency, toCurrency, rate, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert exchange rate %s->%s: %w", fromCurrency, toCurrency, err)
	}

	return nil
}

// Get fetches the stored rate for a currency pair.
// Returns nil, nil when no rate is stored for the pair.
func (r *Repository) Get(fromCurrency, toCurrency string) (*domain.ExchangeRate, error) {
	query := `
		SELECT from_currency, to_currency, rate, updated_at
		FROM exchange_rates
		WHERE from_currency = ? AND to_currency = ?
	`

	var er domain.ExchangeRate
	var updatedAt int64
	err := r.db.QueryRow(query, fromCurrency, toCurrency).
		Scan(&er.FromCurrency, &er.ToCurrency, &er.Rate, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query exchange rate %s->%s: %w", fromCurrency, toCurrency, err)
	}

	er.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	return &er, nil
}

// List returns all stored rates
func (r *Repository) List() ([]domain.ExchangeRate, error) {
	query := `
		SELECT from_currency, to_currency, rate, updated_at
		FROM exchange_rates
		ORDER BY from_currency, to_currency
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query exchange rates: %w", err)
	}
	defer rows.Close()

	var result []domain.ExchangeRate
	for rows.Next() {
		var er domain.ExchangeRate
		var updatedAt int64
		if err := rows.Scan(&er.FromCurrency, &er.ToCurrency, &er.Rate, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan exchange rate: %w", err)
		}
		er.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		result = append(result, er)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating exchange rates: %w", err)
	}

	return result, nil
}

// DeleteOlderThan removes rates last updated before the cutoff.
// Returns the number of rows deleted.
func (r *Repository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec("DELETE FROM exchange_rates WHERE updated_at < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old exchange rates: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if deleted > 0 {
		r.log.Debug().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("Pruned old exchange rates")
	}

	return deleted, nil
}
