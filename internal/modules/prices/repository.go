// Package prices provides the BTC price store and read service.
package prices

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wilqq-the/stronghodl/internal/domain"
)

// currentPriceID is the fixed id of the singleton current price row.
const currentPriceID = 1

// Repository provides access to current, daily and intraday price data
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new price repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("component", "price_repository").Logger(),
	}
}

// UpsertCurrentPrice overwrites the singleton current price row in place
func (r *Repository) UpsertCurrentPrice(p *domain.CurrentPrice) error {
	query := `
		INSERT OR REPLACE INTO current_price (id, price, change_24h_abs, change_24h_pct, timestamp, source)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query, currentPriceID,
		p.Price, p.Change24hAbs, p.Change24hPct, p.Timestamp.Unix(), p.Source)
	if err != nil {
		return fmt.Errorf("failed to upsert current price: %w", err)
	}

	return nil
}

// GetCurrentPrice fetches the singleton current price row.
// Returns nil, nil when no price has been stored yet.
func (r *Repository) GetCurrentPrice() (*domain.CurrentPrice, error) {
	query := `
		SELECT price, change_24h_abs, change_24h_pct, timestamp, source
		FROM current_price
		WHERE id = ?
	`

	var p domain.CurrentPrice
	var ts int64
	err := r.db.QueryRow(query, currentPriceID).
		Scan(&p.Price, &p.Change24hAbs, &p.Change24hPct, &ts, &p.Source)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query current price: %w", err)
	}

	p.Timestamp = time.Unix(ts, 0).UTC()

	return &p, nil
}

// UpsertDaily inserts or replaces one daily OHLC bucket, keyed by date.
// The upsert is idempotent per date; the second write's values win.
func (r *Repository) UpsertDaily(p domain.DailyPrice) error {
	query := `
		INSERT OR REPLACE INTO daily_prices (date, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	var volume interface{}
	if p.Volume != nil {
		volume = *p.Volume
	}

	if _, err := r.db.Exec(query, p.Date, p.Open, p.High, p.Low, p.Close, volume); err != nil {
		return fmt.Errorf("failed to upsert daily price for %s: %w", p.Date, err)
	}

	return nil
}

// ReplaceAllDaily replaces the whole daily series with the given data.
// Used only on first-run bootstrap; routine refreshes use per-date upserts.
func (r *Repository) ReplaceAllDaily(series []domain.DailyPrice) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM daily_prices"); err != nil {
		return fmt.Errorf("failed to clear daily prices: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO daily_prices (date, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range series {
		var volume interface{}
		if p.Volume != nil {
			volume = *p.Volume
		}
		if _, err := stmt.Exec(p.Date, p.Open, p.High, p.Low, p.Close, volume); err != nil {
			return fmt.Errorf("failed to insert daily price for %s: %w", p.Date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit daily series: %w", err)
	}

	r.log.Info().Int("days", len(series)).Msg("Replaced daily price series")

	return nil
}

// ListDaily returns up to limit daily buckets, newest first
func (r *Repository) ListDaily(limit int) ([]domain.DailyPrice, error) {
	query := `
		SELECT date, open, high, low, close, volume
		FROM daily_prices
		ORDER BY date DESC
		LIMIT ?
	`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	var prices []domain.DailyPrice
	for rows.Next() {
		var p domain.DailyPrice
		var volume sql.NullFloat64

		if err := rows.Scan(&p.Date, &p.Open, &p.High, &p.Low, &p.Close, &volume); err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}
		if volume.Valid {
			p.Volume = &volume.Float64
		}

		prices = append(prices, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}

	return prices, nil
}

// CountDaily returns the number of stored daily buckets
func (r *Repository) CountDaily() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM daily_prices").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count daily prices: %w", err)
	}
	return count, nil
}

// UpsertIntraday inserts or replaces one intraday point, keyed by timestamp
func (r *Repository) UpsertIntraday(p domain.IntradayPoint) error {
	query := `
		INSERT OR REPLACE INTO intraday_prices (timestamp, price, volume)
		VALUES (?, ?, ?)
	`

	var volume interface{}
	if p.Volume != nil {
		volume = *p.Volume
	}

	if _, err := r.db.Exec(query, p.Timestamp.Unix(), p.Price, volume); err != nil {
		return fmt.Errorf("failed to upsert intraday point: %w", err)
	}

	return nil
}

// ListIntraday returns intraday points since the cutoff, oldest first
func (r *Repository) ListIntraday(since time.Time) ([]domain.IntradayPoint, error) {
	query := `
		SELECT timestamp, price, volume
		FROM intraday_prices
		WHERE timestamp >= ?
		ORDER BY timestamp ASC
	`

	rows, err := r.db.Query(query, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query intraday points: %w", err)
	}
	defer rows.Close()

	var points []domain.IntradayPoint
	for rows.Next() {
		var p domain.IntradayPoint
		var ts int64
		var volume sql.NullFloat64

		if err := rows.Scan(&ts, &p.Price, &volume); err != nil {
			return nil, fmt.Errorf("failed to scan intraday point: %w", err)
		}
		p.Timestamp = time.Unix(ts, 0).UTC()
		if volume.Valid {
			p.Volume = &volume.Float64
		}

		points = append(points, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating intraday points: %w", err)
	}

	return points, nil
}

// PruneIntraday removes intraday points older than the cutoff
func (r *Repository) PruneIntraday(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec("DELETE FROM intraday_prices WHERE timestamp < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune intraday points: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}
