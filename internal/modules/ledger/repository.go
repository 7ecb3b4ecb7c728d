// Package ledger provides read access to the transaction ledger.
// The ledger is owned by the surrounding CRUD layer; the valuation core only
// reads it. Insert and Delete exist for that layer and for test fixtures.
package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/wilqq-the/stronghodl/internal/domain"
)

// Repository provides access to ledger transactions
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new ledger repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("component", "ledger_repository").Logger(),
	}
}

// Insert stores a new transaction. A zero ID is assigned a fresh UUID.
func (r *Repository) Insert(tx *domain.Transaction) error {
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	if tx.BtcAmount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("btc amount must be positive, got %s", tx.BtcAmount)
	}
	if tx.Kind != domain.KindBuy && tx.Kind != domain.KindSell {
		return fmt.Errorf("invalid transaction kind: %s", tx.Kind)
	}

	query := `
		INSERT INTO transactions
			(id, kind, btc_amount, price_per_unit, currency, total, fees, fees_currency, date, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		tx.ID.String(),
		string(tx.Kind),
		tx.BtcAmount.String(),
		tx.PricePerUnit,
		tx.Currency,
		tx.Total,
		tx.Fees,
		tx.FeesCurrency,
		tx.Date.Unix(),
		tx.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	return nil
}

// Delete removes a transaction by id
func (r *Repository) Delete(id uuid.UUID) error {
	if _, err := r.db.Exec("DELETE FROM transactions WHERE id = ?", id.String()); err != nil {
		return fmt.Errorf("failed to delete transaction %s: %w", id, err)
	}
	return nil
}

// List returns all transactions ordered by date ascending
func (r *Repository) List() ([]domain.Transaction, error) {
	query := `
		SELECT id, kind, btc_amount, price_per_unit, currency, total, fees, fees_currency, date, notes
		FROM transactions
		ORDER BY date ASC
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return txs, nil
}

// Count returns the total number of ledger entries
func (r *Repository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM transactions").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// BtcTotals sums BTC amounts by kind. Totals are exact: amounts are stored
// as decimal strings and summed without float conversion.
func (r *Repository) BtcTotals() (totalBuy, totalSell decimal.Decimal, err error) {
	rows, err := r.db.Query("SELECT kind, btc_amount FROM transactions")
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to query btc totals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind, amountStr string
		if err := rows.Scan(&kind, &amountStr); err != nil {
			return decimal.Zero, decimal.Zero, fmt.Errorf("failed to scan btc amount: %w", err)
		}

		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return decimal.Zero, decimal.Zero, fmt.Errorf("invalid btc amount %q: %w", amountStr, err)
		}

		switch domain.TransactionKind(kind) {
		case domain.KindBuy:
			totalBuy = totalBuy.Add(amount)
		case domain.KindSell:
			totalSell = totalSell.Add(amount)
		}
	}

	if err := rows.Err(); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("error iterating btc totals: %w", err)
	}

	return totalBuy, totalSell, nil
}

// scanner abstracts *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(s scanner) (domain.Transaction, error) {
	var tx domain.Transaction
	var idStr, kind, amountStr string
	var dateUnix int64

	err := s.Scan(&idStr, &kind, &amountStr, &tx.PricePerUnit, &tx.Currency,
		&tx.Total, &tx.Fees, &tx.FeesCurrency, &dateUnix, &tx.Notes)
	if err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return tx, fmt.Errorf("invalid transaction id %q: %w", idStr, err)
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return tx, fmt.Errorf("invalid btc amount %q: %w", amountStr, err)
	}

	tx.ID = id
	tx.Kind = domain.TransactionKind(kind)
	tx.BtcAmount = amount
	tx.Date = time.Unix(dateUnix, 0).UTC()

	return tx, nil
}
