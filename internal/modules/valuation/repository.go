// Package valuation derives the portfolio snapshot from the ledger,
// current price and resolved exchange rates.
package valuation

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/wilqq-the/stronghodl/internal/domain"
)

// snapshotID is the fixed id of the singleton snapshot row.
const snapshotID = 1

// Repository provides access to the cached portfolio snapshot
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new snapshot repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("component", "snapshot_repository").Logger(),
	}
}

// Upsert overwrites the singleton snapshot row wholesale.
// The snapshot is never partially updated.
func (r *Repository) Upsert(s *domain.PortfolioSnapshot) error {
	query := `
		INSERT OR REPLACE INTO portfolio_snapshot (
			id, total_btc, total_transactions, main_currency,
			total_invested_main, total_fees_main, avg_buy_price_main,
			current_price_main, current_value_main,
			unrealized_pnl_main, unrealized_pnl_pct,
			change_24h_main, change_24h_pct,
			secondary_currency, current_value_secondary, last_updated
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		snapshotID,
		s.TotalBtc.String(),
		s.TotalTransactions,
		s.MainCurrency,
		s.TotalInvestedMain,
		s.TotalFeesMain,
		s.AvgBuyPriceMain,
		s.CurrentPriceMain,
		s.CurrentValueMain,
		s.UnrealizedPnlMain,
		s.UnrealizedPnlPct,
		s.Change24hMain,
		s.Change24hPct,
		s.SecondaryCurrency,
		s.CurrentValueSecondary,
		s.LastUpdated.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert portfolio snapshot: %w", err)
	}

	return nil
}

// Get fetches the cached snapshot.
// Returns nil, nil when no snapshot has been computed yet.
func (r *Repository) Get() (*domain.PortfolioSnapshot, error) {
	query := `
		SELECT total_btc, total_transactions, main_currency,
			total_invested_main, total_fees_main, avg_buy_price_main,
			current_price_main, current_value_main,
			unrealized_pnl_main, unrealized_pnl_pct,
			change_24h_main, change_24h_pct,
			secondary_currency, current_value_secondary, last_updated
		FROM portfolio_snapshot
		WHERE id = ?
	`

	var s domain.PortfolioSnapshot
	var totalBtcStr string
	var lastUpdated int64

	err := r.db.QueryRow(query, snapshotID).Scan(
		&totalBtcStr,
		&s.TotalTransactions,
		&s.MainCurrency,
		&s.TotalInvestedMain,
		&s.TotalFeesMain,
		&s.AvgBuyPriceMain,
		&s.CurrentPriceMain,
		&s.CurrentValueMain,
		&s.UnrealizedPnlMain,
		&s.UnrealizedPnlPct,
		&s.Change24hMain,
		&s.Change24hPct,
		&s.SecondaryCurrency,
		&s.CurrentValueSecondary,
		&lastUpdated,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolio snapshot: %w", err)
	}

	totalBtc, err := decimal.NewFromString(totalBtcStr)
	if err != nil {
		return nil, fmt.Errorf("invalid total btc %q: %w", totalBtcStr, err)
	}

	s.TotalBtc = totalBtc
	s.LastUpdated = time.Unix(lastUpdated, 0).UTC()

	return &s, nil
}
