// Package exchangerate provides currency exchange rate fetching with
// persistent caching.
package exchangerate

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/wilqq-the/stronghodl/internal/clientdata"
)

// Client for exchangerate-api.com
type Client struct {
	baseURL   string
	client    *http.Client
	log       zerolog.Logger
	cacheRepo *clientdata.Repository
}

// NewClient creates a new exchangerate-api.com client.
// cacheRepo is optional - if nil, caching is disabled.
func NewClient(baseURL string, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://api.exchangerate-api.com/v4/latest"
	}
	return &Client{
		baseURL:   baseURL,
		client:    &http.Client{Timeout: 10 * time.Second},
		log:       log.With().Str("client", "exchangerate-api").Logger(),
		cacheRepo: cacheRepo,
	}
}

// cachedRateTable is the structure stored in the cache per base currency.
type cachedRateTable struct {
	Rates map[string]float64 `msgpack:"rates"`
}

// FetchRates fetches the full rate table for a base currency.
// If the API fails, returns stale cached data if available (stale data > no data).
func (c *Client) FetchRates(baseCurrency string) (map[string]float64, error) {
	cacheKey := "table:" + baseCurrency

	if c.cacheRepo != nil {
		var cached cachedRateTable
		found, err := c.cacheRepo.GetIfFresh("exchangerate", cacheKey, &cached)
		if err == nil && found && len(cached.Rates) > 0 {
			c.log.Debug().Str("base", baseCurrency).Int("rates", len(cached.Rates)).Msg("Cache hit")
			return cached.Rates, nil
		}
	}

	url := fmt.Sprintf("%s/%s", c.baseURL, baseCurrency)
	c.log.Debug().Str("url", url).Msg("Fetching rates")

	resp, err := c.client.Get(url)
	if err != nil {
		if stale, ok := c.getStaleTable(cacheKey); ok {
			c.log.Warn().Err(err).Str("base", baseCurrency).
				Msg("API failed, using stale cached rates")
			return stale, nil
		}
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if stale, ok := c.getStaleTable(cacheKey); ok {
			c.log.Warn().Int("status", resp.StatusCode).Str("base", baseCurrency).
				Msg("API error, using stale cached rates")
			return stale, nil
		}
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var result struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		if stale, ok := c.getStaleTable(cacheKey); ok {
			c.log.Warn().Err(err).Str("base", baseCurrency).
				Msg("Failed to parse API response, using stale cached rates")
			return stale, nil
		}
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(result.Rates) == 0 {
		if stale, ok := c.getStaleTable(cacheKey); ok {
			c.log.Warn().Str("base", baseCurrency).
				Msg("Empty rate table in API response, using stale cached rates")
			return stale, nil
		}
		return nil, fmt.Errorf("no rates in response for base %s", baseCurrency)
	}

	if c.cacheRepo != nil {
		cached := cachedRateTable{Rates: result.Rates}
		if err := c.cacheRepo.Store("exchangerate", cacheKey, cached, clientdata.TTLExchangeRate); err != nil {
			c.log.Warn().Err(err).Str("base", baseCurrency).Msg("Failed to cache rate table")
		}
	}

	c.log.Info().Str("base", baseCurrency).Int("rates", len(result.Rates)).Msg("Fetched rates")

	return result.Rates, nil
}

// GetRate fetches a single rate via the base-currency table.
func (c *Client) GetRate(fromCurrency, toCurrency string) (float64, error) {
	if fromCurrency == toCurrency {
		return 1.0, nil
	}

	rates, err := c.FetchRates(fromCurrency)
	if err != nil {
		return 0, err
	}

	rate, exists := rates[toCurrency]
	if !exists || rate <= 0 {
		return 0, fmt.Errorf("rate not found for %s->%s", fromCurrency, toCurrency)
	}

	return rate, nil
}

// getStaleTable retrieves a cached rate table even if expired.
// Use this as a fallback when API calls fail - stale data is better than no data.
func (c *Client) getStaleTable(cacheKey string) (map[string]float64, bool) {
	if c.cacheRepo == nil {
		return nil, false
	}
	var cached cachedRateTable
	found, err := c.cacheRepo.Get("exchangerate", cacheKey, &cached)
	if err != nil || !found || len(cached.Rates) == 0 {
		return nil, false
	}
	return cached.Rates, true
}
