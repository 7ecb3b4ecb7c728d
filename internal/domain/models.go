// Package domain holds the core types shared across StrongHodl modules.
// The domain layer is pure: no database, HTTP or logging dependencies.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionKind distinguishes ledger entry directions
type TransactionKind string

const (
	KindBuy  TransactionKind = "BUY"
	KindSell TransactionKind = "SELL"
)

// Transaction is a single ledger entry. The ledger is owned by the CRUD
// layer; the valuation core only reads it. Total == BtcAmount * PricePerUnit
// is enforced at creation time and not re-validated on read.
type Transaction struct {
	ID           uuid.UUID       `json:"id"`
	Kind         TransactionKind `json:"kind"`
	BtcAmount    decimal.Decimal `json:"btc_amount"`
	PricePerUnit float64         `json:"price_per_unit"`
	Currency     string          `json:"currency"`
	Total        float64         `json:"total"`
	Fees         float64         `json:"fees"`
	FeesCurrency string          `json:"fees_currency"`
	Date         time.Time       `json:"date"`
	Notes        string          `json:"notes,omitempty"`
}

// ExchangeRate is a directed, positive rate as fetched from a feed.
// Reverse and multi-hop rates are derived on read and never persisted.
type ExchangeRate struct {
	FromCurrency string    `json:"from_currency"`
	ToCurrency   string    `json:"to_currency"`
	Rate         float64   `json:"rate"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CurrentPrice is the singleton BTC price record, overwritten in place.
type CurrentPrice struct {
	Price        float64   `json:"price"`
	Change24hAbs float64   `json:"change_24h_abs"`
	Change24hPct float64   `json:"change_24h_pct"`
	Timestamp    time.Time `json:"timestamp"`
	Source       string    `json:"source"`
}

// DailyPrice is one daily OHLCV bucket, keyed by date (YYYY-MM-DD).
type DailyPrice struct {
	Date   string   `json:"date"`
	Open   float64  `json:"open"`
	High   float64  `json:"high"`
	Low    float64  `json:"low"`
	Close  float64  `json:"close"`
	Volume *float64 `json:"volume,omitempty"`
}

// IntradayPoint is one intraday price sample, keyed by timestamp.
type IntradayPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	Volume    *float64  `json:"volume,omitempty"`
}

// PortfolioSnapshot is the derived valuation record. It is recomputed
// wholesale on every trigger and never incrementally patched.
type PortfolioSnapshot struct {
	TotalBtc              decimal.Decimal `json:"total_btc"`
	TotalTransactions     int             `json:"total_transactions"`
	MainCurrency          string          `json:"main_currency"`
	TotalInvestedMain     float64         `json:"total_invested_main"`
	TotalFeesMain         float64         `json:"total_fees_main"`
	AvgBuyPriceMain       float64         `json:"avg_buy_price_main"`
	CurrentPriceMain      float64         `json:"current_price_main"`
	CurrentValueMain      float64         `json:"current_value_main"`
	UnrealizedPnlMain     float64         `json:"unrealized_pnl_main"`
	UnrealizedPnlPct      float64         `json:"unrealized_pnl_pct"`
	Change24hMain         float64         `json:"change_24h_main"`
	Change24hPct          float64         `json:"change_24h_pct"`
	SecondaryCurrency     string          `json:"secondary_currency"`
	CurrentValueSecondary float64         `json:"current_value_secondary"`
	LastUpdated           time.Time       `json:"last_updated"`
}
