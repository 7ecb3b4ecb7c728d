package scheduler

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/wilqq-the/stronghodl/internal/domain"
	"github.com/wilqq-the/stronghodl/internal/modules/prices"
)

// historicalDays is how far back each refresh reaches.
const historicalDays = 30

// HistoricalPriceJob refreshes the daily OHLC series once per day.
// Routine refreshes upsert per date; only a first-run bootstrap replaces the
// whole table.
type HistoricalPriceJob struct {
	feed      domain.MarketFeed
	priceRepo *prices.Repository
	intraday  *IntradayPriceJob
	log       zerolog.Logger
}

// NewHistoricalPriceJob creates the daily history refresh job
func NewHistoricalPriceJob(
	feed domain.MarketFeed,
	priceRepo *prices.Repository,
	intraday *IntradayPriceJob,
	log zerolog.Logger,
) *HistoricalPriceJob {
	return &HistoricalPriceJob{
		feed:      feed,
		priceRepo: priceRepo,
		intraday:  intraday,
		log:       log.With().Str("job", "historical_price").Logger(),
	}
}

// Name returns the job name
func (j *HistoricalPriceJob) Name() string {
	return "historical_price"
}

// Run performs one refresh tick
func (j *HistoricalPriceJob) Run() error {
	series, err := j.feed.FetchHistoricalOHLC(historicalDays)
	if err != nil {
		return fmt.Errorf("failed to fetch historical OHLC: %w", err)
	}
	if len(series) == 0 {
		return fmt.Errorf("feed returned empty OHLC series")
	}

	count, err := j.priceRepo.CountDaily()
	if err != nil {
		return fmt.Errorf("failed to count daily prices: %w", err)
	}

	if count == 0 {
		// First-run bootstrap replaces the whole table.
		if err := j.priceRepo.ReplaceAllDaily(series); err != nil {
			return fmt.Errorf("failed to bootstrap daily series: %w", err)
		}
	} else {
		for _, bucket := range series {
			if err := j.priceRepo.UpsertDaily(bucket); err != nil {
				return fmt.Errorf("failed to upsert daily price for %s: %w", bucket.Date, err)
			}
		}
	}

	if j.intraday != nil {
		j.intraday.PruneOldPoints()
	}

	j.log.Info().Int("days", len(series)).Msg("Historical refresh completed")

	return nil
}
