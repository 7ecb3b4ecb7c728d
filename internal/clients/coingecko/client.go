// Package coingecko provides BTC market data fetching with persistent caching.
package coingecko

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/wilqq-the/stronghodl/internal/clientdata"
	"github.com/wilqq-the/stronghodl/internal/domain"
)

const sourceName = "coingecko"

// Client for the CoinGecko public API
type Client struct {
	baseURL   string
	client    *http.Client
	log       zerolog.Logger
	cacheRepo *clientdata.Repository
}

// NewClient creates a new CoinGecko client.
// cacheRepo is optional - if nil, caching is disabled.
func NewClient(baseURL string, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}
	return &Client{
		baseURL:   baseURL,
		client:    &http.Client{Timeout: 10 * time.Second},
		log:       log.With().Str("client", sourceName).Logger(),
		cacheRepo: cacheRepo,
	}
}

// cachedPrice is the structure stored in the cache for the current price.
type cachedPrice struct {
	Price        float64 `msgpack:"price"`
	Change24hAbs float64 `msgpack:"change_24h_abs"`
	Change24hPct float64 `msgpack:"change_24h_pct"`
	Timestamp    int64   `msgpack:"timestamp"`
}

// FetchCurrentPrice fetches the current BTC price in USD with 24h change.
// If the API fails, returns stale cached data if available (stale data > no data).
func (c *Client) FetchCurrentPrice() (*domain.CurrentPrice, error) {
	const cacheKey = "btc:usd"

	if c.cacheRepo != nil {
		var cached cachedPrice
		found, err := c.cacheRepo.GetIfFresh("market_prices", cacheKey, &cached)
		if err == nil && found {
			c.log.Debug().Float64("price", cached.Price).Msg("Cache hit")
			return cached.toDomain(), nil
		}
	}

	url := fmt.Sprintf("%s/simple/price?ids=bitcoin&vs_currencies=usd&include_24hr_change=true", c.baseURL)
	c.log.Debug().Str("url", url).Msg("Fetching current price")

	resp, err := c.client.Get(url)
	if err != nil {
		if stale, ok := c.getStalePrice(cacheKey); ok {
			c.log.Warn().Err(err).Float64("price", stale.Price).
				Msg("API failed, using stale cached price")
			return stale, nil
		}
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if stale, ok := c.getStalePrice(cacheKey); ok {
			c.log.Warn().Int("status", resp.StatusCode).Float64("price", stale.Price).
				Msg("API error, using stale cached price")
			return stale, nil
		}
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var result struct {
		Bitcoin struct {
			USD          float64 `json:"usd"`
			USD24hChange float64 `json:"usd_24h_change"`
		} `json:"bitcoin"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		if stale, ok := c.getStalePrice(cacheKey); ok {
			c.log.Warn().Err(err).Msg("Failed to parse API response, using stale cached price")
			return stale, nil
		}
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if result.Bitcoin.USD <= 0 {
		if stale, ok := c.getStalePrice(cacheKey); ok {
			c.log.Warn().Msg("Price missing in API response, using stale cached price")
			return stale, nil
		}
		return nil, fmt.Errorf("price not found in response")
	}

	pct := result.Bitcoin.USD24hChange
	// usd_24h_change is a percentage; derive the absolute delta from the
	// implied price 24 hours ago.
	abs := 0.0
	if pct > -100 {
		prev := result.Bitcoin.USD / (1 + pct/100)
		abs = result.Bitcoin.USD - prev
	}

	price := &domain.CurrentPrice{
		Price:        result.Bitcoin.USD,
		Change24hAbs: abs,
		Change24hPct: pct,
		Timestamp:    time.Now().UTC(),
		Source:       sourceName,
	}

	if c.cacheRepo != nil {
		cached := cachedPrice{
			Price:        price.Price,
			Change24hAbs: price.Change24hAbs,
			Change24hPct: price.Change24hPct,
			Timestamp:    price.Timestamp.Unix(),
		}
		if err := c.cacheRepo.Store("market_prices", cacheKey, cached, clientdata.TTLCurrentPrice); err != nil {
			c.log.Warn().Err(err).Msg("Failed to cache current price")
		}
	}

	c.log.Info().Float64("price", price.Price).Float64("change_pct", pct).Msg("Fetched current price")

	return price, nil
}

// FetchIntradayPoints fetches today's price points (roughly 5-minute
// resolution from the market chart endpoint).
func (c *Client) FetchIntradayPoints() ([]domain.IntradayPoint, error) {
	url := fmt.Sprintf("%s/coins/bitcoin/market_chart?vs_currency=usd&days=1", c.baseURL)
	c.log.Debug().Str("url", url).Msg("Fetching intraday points")

	resp, err := c.client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var result struct {
		Prices       [][2]float64 `json:"prices"`
		TotalVolumes [][2]float64 `json:"total_volumes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	volumes := make(map[int64]float64, len(result.TotalVolumes))
	for _, v := range result.TotalVolumes {
		volumes[int64(v[0])] = v[1]
	}

	points := make([]domain.IntradayPoint, 0, len(result.Prices))
	for _, p := range result.Prices {
		millis := int64(p[0])
		point := domain.IntradayPoint{
			Timestamp: time.UnixMilli(millis).UTC(),
			Price:     p[1],
		}
		if vol, ok := volumes[millis]; ok {
			point.Volume = &vol
		}
		points = append(points, point)
	}

	c.log.Debug().Int("points", len(points)).Msg("Fetched intraday points")

	return points, nil
}

// cachedOHLC is the structure stored in the cache for the historical series.
type cachedOHLC struct {
	Candles []cachedCandle `msgpack:"candles"`
}

type cachedCandle struct {
	Date  string  `msgpack:"date"`
	Open  float64 `msgpack:"open"`
	High  float64 `msgpack:"high"`
	Low   float64 `msgpack:"low"`
	Close float64 `msgpack:"close"`
}

// FetchHistoricalOHLC fetches daily OHLC candles for the last N days.
// The OHLC endpoint returns no volume; candles carry a nil volume.
func (c *Client) FetchHistoricalOHLC(days int) ([]domain.DailyPrice, error) {
	if days <= 0 {
		days = 30
	}
	cacheKey := fmt.Sprintf("btc:usd:%dd", days)

	if c.cacheRepo != nil {
		var cached cachedOHLC
		found, err := c.cacheRepo.GetIfFresh("market_history", cacheKey, &cached)
		if err == nil && found {
			c.log.Debug().Int("candles", len(cached.Candles)).Msg("Cache hit")
			return cached.toDomain(), nil
		}
	}

	url := fmt.Sprintf("%s/coins/bitcoin/ohlc?vs_currency=usd&days=%d", c.baseURL, days)
	c.log.Debug().Str("url", url).Msg("Fetching historical OHLC")

	resp, err := c.client.Get(url)
	if err != nil {
		if stale, ok := c.getStaleOHLC(cacheKey); ok {
			c.log.Warn().Err(err).Msg("API failed, using stale cached OHLC")
			return stale, nil
		}
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if stale, ok := c.getStaleOHLC(cacheKey); ok {
			c.log.Warn().Int("status", resp.StatusCode).Msg("API error, using stale cached OHLC")
			return stale, nil
		}
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var raw [][5]float64
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		if stale, ok := c.getStaleOHLC(cacheKey); ok {
			c.log.Warn().Err(err).Msg("Failed to parse API response, using stale cached OHLC")
			return stale, nil
		}
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	// The endpoint returns intra-day candles for short ranges; bucket them
	// per calendar date so upserts stay idempotent per date.
	byDate := make(map[string]*domain.DailyPrice)
	order := make([]string, 0, days)
	for _, candle := range raw {
		date := time.UnixMilli(int64(candle[0])).UTC().Format("2006-01-02")
		dp, ok := byDate[date]
		if !ok {
			byDate[date] = &domain.DailyPrice{
				Date:  date,
				Open:  candle[1],
				High:  candle[2],
				Low:   candle[3],
				Close: candle[4],
			}
			order = append(order, date)
			continue
		}
		if candle[2] > dp.High {
			dp.High = candle[2]
		}
		if candle[3] < dp.Low {
			dp.Low = candle[3]
		}
		dp.Close = candle[4]
	}

	prices := make([]domain.DailyPrice, 0, len(order))
	for _, date := range order {
		prices = append(prices, *byDate[date])
	}

	if c.cacheRepo != nil {
		cached := cachedOHLC{Candles: make([]cachedCandle, 0, len(prices))}
		for _, p := range prices {
			cached.Candles = append(cached.Candles, cachedCandle{
				Date: p.Date, Open: p.Open, High: p.High, Low: p.Low, Close: p.Close,
			})
		}
		if err := c.cacheRepo.Store("market_history", cacheKey, cached, clientdata.TTLHistoricalOHLC); err != nil {
			c.log.Warn().Err(err).Msg("Failed to cache OHLC series")
		}
	}

	c.log.Info().Int("days", days).Int("candles", len(prices)).Msg("Fetched historical OHLC")

	return prices, nil
}

// getStalePrice retrieves a cached price even if expired.
func (c *Client) getStalePrice(cacheKey string) (*domain.CurrentPrice, bool) {
	if c.cacheRepo == nil {
		return nil, false
	}
	var cached cachedPrice
	found, err := c.cacheRepo.Get("market_prices", cacheKey, &cached)
	if err != nil || !found {
		return nil, false
	}
	return cached.toDomain(), true
}

// getStaleOHLC retrieves a cached OHLC series even if expired.
func (c *Client) getStaleOHLC(cacheKey string) ([]domain.DailyPrice, bool) {
	if c.cacheRepo == nil {
		return nil, false
	}
	var cached cachedOHLC
	found, err := c.cacheRepo.Get("market_history", cacheKey, &cached)
	if err != nil || !found {
		return nil, false
	}
	return cached.toDomain(), true
}

func (p cachedPrice) toDomain() *domain.CurrentPrice {
	return &domain.CurrentPrice{
		Price:        p.Price,
		Change24hAbs: p.Change24hAbs,
		Change24hPct: p.Change24hPct,
		Timestamp:    time.Unix(p.Timestamp, 0).UTC(),
		Source:       sourceName,
	}
}

func (o cachedOHLC) toDomain() []domain.DailyPrice {
	prices := make([]domain.DailyPrice, 0, len(o.Candles))
	for _, c := range o.Candles {
		prices = append(prices, domain.DailyPrice{
			Date: c.Date, Open: c.Open, High: c.High, Low: c.Low, Close: c.Close,
		})
	}
	return prices
}
