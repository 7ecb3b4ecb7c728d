package clientdata

import "time"

// TTL constants for different data types.
// These are added to time.Now() when storing to calculate expires_at.
const (
	// Short-lived data (changes constantly)
	TTLCurrentPrice = time.Minute // Current BTC price between scheduler ticks

	// Hourly-ish data
	TTLExchangeRate = time.Hour // Currency exchange rates
	TTLIntraday     = time.Hour // Intraday price points

	// Daily data
	TTLHistoricalOHLC = 12 * time.Hour // Daily OHLC series refreshes once per day
)
