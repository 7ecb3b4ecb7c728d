package scheduler

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wilqq-the/stronghodl/internal/domain"
	"github.com/wilqq-the/stronghodl/internal/modules/prices"
	"github.com/wilqq-the/stronghodl/internal/modules/valuation"
)

// IntradayPriceJob fetches the latest price point, updates the current price
// and today's OHLC bucket, and triggers a snapshot recompute.
type IntradayPriceJob struct {
	feed      domain.MarketFeed
	priceRepo *prices.Repository
	priceSvc  *prices.Service
	engine    *valuation.Engine
	settings  intradayToggle
	log       zerolog.Logger
	onPrice   func(*domain.CurrentPrice)
}

// NewIntradayPriceJob creates the hourly price refresh job
func NewIntradayPriceJob(
	feed domain.MarketFeed,
	priceRepo *prices.Repository,
	priceSvc *prices.Service,
	engine *valuation.Engine,
	settings intradayToggle,
	log zerolog.Logger,
) *IntradayPriceJob {
	return &IntradayPriceJob{
		feed:      feed,
		priceRepo: priceRepo,
		priceSvc:  priceSvc,
		engine:    engine,
		settings:  settings,
		log:       log.With().Str("job", "intraday_price").Logger(),
	}
}

// Name returns the job name
func (j *IntradayPriceJob) Name() string {
	return "intraday_price"
}

// SetOnPrice registers a callback invoked after every successful price
// upsert. Used to push updates to websocket subscribers.
func (j *IntradayPriceJob) SetOnPrice(fn func(*domain.CurrentPrice)) {
	j.onPrice = fn
}

// Run performs one tick, skipping silently when intraday updates are
// disabled in settings.
func (j *IntradayPriceJob) Run() error {
	if !j.settings.IsIntradayEnabled() {
		j.log.Debug().Msg("Intraday updates disabled, skipping tick")
		return nil
	}
	return j.RunNow()
}

// RunNow performs one tick unconditionally. Used by the manual
// operator-triggered refresh.
func (j *IntradayPriceJob) RunNow() error {
	price, err := j.feed.FetchCurrentPrice()
	if err != nil {
		return fmt.Errorf("failed to fetch current price: %w", err)
	}

	if err := j.priceRepo.UpsertCurrentPrice(price); err != nil {
		return fmt.Errorf("failed to store current price: %w", err)
	}
	j.priceSvc.InvalidateCache()

	if err := j.updateTodayBucket(price); err != nil {
		// OHLC bucket maintenance is best-effort; the snapshot recompute
		// matters more than today's candle.
		j.log.Warn().Err(err).Msg("Failed to update today's OHLC bucket")
	}

	point := domain.IntradayPoint{Timestamp: price.Timestamp, Price: price.Price}
	if err := j.priceRepo.UpsertIntraday(point); err != nil {
		j.log.Warn().Err(err).Msg("Failed to store intraday point")
	}

	if _, err := j.engine.Recompute(price); err != nil {
		return fmt.Errorf("failed to recompute snapshot: %w", err)
	}

	if j.onPrice != nil {
		j.onPrice(price)
	}

	j.log.Info().Float64("price", price.Price).Msg("Intraday update completed")

	return nil
}

// updateTodayBucket folds the fresh price into today's OHLC candle,
// creating it on the first tick of the day.
func (j *IntradayPriceJob) updateTodayBucket(price *domain.CurrentPrice) error {
	today := price.Timestamp.UTC().Format("2006-01-02")

	existing, err := j.priceRepo.ListDaily(1)
	if err != nil {
		return err
	}

	bucket := domain.DailyPrice{
		Date:  today,
		Open:  price.Price,
		High:  price.Price,
		Low:   price.Price,
		Close: price.Price,
	}

	if len(existing) > 0 && existing[0].Date == today {
		bucket = existing[0]
		if price.Price > bucket.High {
			bucket.High = price.Price
		}
		if price.Price < bucket.Low {
			bucket.Low = price.Price
		}
		bucket.Close = price.Price
	}

	return j.priceRepo.UpsertDaily(bucket)
}

// intradayRetention bounds retained intraday history.
const intradayRetention = 7 * 24 * time.Hour

// PruneOldPoints removes intraday samples older than the retention window.
// Called opportunistically by the historical job.
func (j *IntradayPriceJob) PruneOldPoints() {
	deleted, err := j.priceRepo.PruneIntraday(time.Now().Add(-intradayRetention))
	if err != nil {
		j.log.Warn().Err(err).Msg("Failed to prune intraday points")
		return
	}
	if deleted > 0 {
		j.log.Debug().Int64("deleted", deleted).Msg("Pruned old intraday points")
	}
}
