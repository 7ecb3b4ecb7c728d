package domain

// RateResolver resolves a conversion rate between two currencies.
// Implementations must be total: a usable positive rate is always returned,
// degrading through fallbacks rather than failing.
type RateResolver interface {
	Resolve(fromCurrency, toCurrency string) float64
	ClearCache()
}

// MarketFeed is the external BTC market data provider.
type MarketFeed interface {
	FetchCurrentPrice() (*CurrentPrice, error)
	FetchIntradayPoints() ([]IntradayPoint, error)
	FetchHistoricalOHLC(days int) ([]DailyPrice, error)
}

// FxFeed is the external foreign exchange rate provider.
// FetchRates returns a base-currency rate table keyed by target currency.
type FxFeed interface {
	FetchRates(baseCurrency string) (map[string]float64, error)
}

// SettingsReader exposes the user preferences the valuation core consumes.
// Main currency selection is restricted to USD and EUR.
type SettingsReader interface {
	GetMainCurrency() string
	GetSecondaryCurrency() string
	GetSupportedCurrencies() []string
	IsIntradayEnabled() bool
}
