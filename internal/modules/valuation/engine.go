package valuation

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/wilqq-the/stronghodl/internal/domain"
)

// fallbackPriceUSD is used when no current price has ever been stored.
// Valuation must remain defined even before the first feed fetch succeeds.
const fallbackPriceUSD = 65000.0

// ledgerReader is the read-only slice of the ledger the engine needs.
type ledgerReader interface {
	List() ([]domain.Transaction, error)
	BtcTotals() (totalBuy, totalSell decimal.Decimal, err error)
}

// priceReader reads the stored current price.
type priceReader interface {
	GetCurrentPrice() (*domain.CurrentPrice, error)
}

// rateResolver converts between currencies, always returning a usable rate.
type rateResolver interface {
	Resolve(fromCurrency, toCurrency string) float64
}

// settingsReader exposes the display currency preferences.
type settingsReader interface {
	GetMainCurrency() string
	GetSecondaryCurrency() string
}

// Engine recomputes the portfolio snapshot wholesale from the ledger,
// current price and resolved rates. A failed recompute leaves the previous
// snapshot untouched.
type Engine struct {
	ledger   ledgerReader
	prices   priceReader
	resolver rateResolver
	settings settingsReader
	repo     *Repository
	log      zerolog.Logger
}

// NewEngine creates a new valuation engine
func NewEngine(
	ledger ledgerReader,
	prices priceReader,
	resolver rateResolver,
	settings settingsReader,
	repo *Repository,
	log zerolog.Logger,
) *Engine {
	return &Engine{
		ledger:   ledger,
		prices:   prices,
		resolver: resolver,
		settings: settings,
		repo:     repo,
		log:      log.With().Str("service", "valuation_engine").Logger(),
	}
}

// Recompute derives and persists a fresh snapshot.
// When price is nil the stored current price is used, falling back to a
// hardcoded price if none exists yet.
func (e *Engine) Recompute(price *domain.CurrentPrice) (*domain.PortfolioSnapshot, error) {
	if price == nil {
		stored, err := e.prices.GetCurrentPrice()
		if err != nil {
			return nil, fmt.Errorf("failed to read current price: %w", err)
		}
		if stored != nil {
			price = stored
		} else {
			e.log.Warn().Float64("price", fallbackPriceUSD).Msg("No stored price, using fallback")
			price = &domain.CurrentPrice{
				Price:     fallbackPriceUSD,
				Timestamp: time.Now().UTC(),
				Source:    "fallback",
			}
		}
	}

	totalBuy, totalSell, err := e.ledger.BtcTotals()
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate btc totals: %w", err)
	}
	// May be negative when the ledger is inconsistent; surfaced as-is.
	totalBtc := totalBuy.Sub(totalSell)

	txs, err := e.ledger.List()
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}

	// BUY legs only: convert each row's total and unit price to USD.
	// The average buy price is an unweighted mean of per-transaction unit
	// prices, kept for snapshot backward compatibility.
	var investedUSD, unitPriceSumUSD, totalFees float64
	buyCount := 0
	for _, tx := range txs {
		// Fees are summed across all rows without per-row currency
		// conversion; the single conversion to the display currency
		// happens below.
		totalFees += tx.Fees

		if tx.Kind != domain.KindBuy {
			continue
		}
		toUSD := e.resolver.Resolve(tx.Currency, "USD")
		investedUSD += tx.Total * toUSD
		unitPriceSumUSD += tx.PricePerUnit * toUSD
		buyCount++
	}

	avgBuyPriceUSD := 0.0
	if buyCount > 0 {
		avgBuyPriceUSD = unitPriceSumUSD / float64(buyCount)
	}

	mainCurrency := e.settings.GetMainCurrency()
	secondaryCurrency := e.settings.GetSecondaryCurrency()
	usdToMain := e.resolver.Resolve("USD", mainCurrency)
	usdToSecondary := e.resolver.Resolve("USD", secondaryCurrency)

	totalBtcF, _ := totalBtc.Float64()

	priceMain := price.Price * usdToMain
	investedMain := investedUSD * usdToMain
	currentValueMain := totalBtcF * priceMain

	pnlMain := currentValueMain - investedMain
	pnlPct := 0.0
	if investedMain > 0 {
		pnlPct = pnlMain / investedMain * 100
	}

	change24hMain := price.Change24hAbs * usdToMain * totalBtcF
	change24hPct := 0.0
	if denom := currentValueMain - change24hMain; denom > 0 {
		change24hPct = change24hMain / denom * 100
	}

	snapshot := &domain.PortfolioSnapshot{
		TotalBtc:              totalBtc,
		TotalTransactions:     len(txs),
		MainCurrency:          mainCurrency,
		TotalInvestedMain:     investedMain,
		TotalFeesMain:         totalFees * usdToMain,
		AvgBuyPriceMain:       avgBuyPriceUSD * usdToMain,
		CurrentPriceMain:      priceMain,
		CurrentValueMain:      currentValueMain,
		UnrealizedPnlMain:     pnlMain,
		UnrealizedPnlPct:      pnlPct,
		Change24hMain:         change24hMain,
		Change24hPct:          change24hPct,
		SecondaryCurrency:     secondaryCurrency,
		CurrentValueSecondary: totalBtcF * price.Price * usdToSecondary,
		LastUpdated:           time.Now().UTC(),
	}

	if err := e.repo.Upsert(snapshot); err != nil {
		return nil, fmt.Errorf("failed to persist snapshot: %w", err)
	}

	e.log.Debug().
		Str("total_btc", totalBtc.String()).
		Float64("value_main", currentValueMain).
		Float64("pnl_main", pnlMain).
		Str("main", mainCurrency).
		Msg("Recomputed portfolio snapshot")

	return snapshot, nil
}

// GetSnapshot returns the cached snapshot, computing one if none exists.
func (e *Engine) GetSnapshot() (*domain.PortfolioSnapshot, error) {
	snapshot, err := e.repo.Get()
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return e.Recompute(nil)
	}
	return snapshot, nil
}
