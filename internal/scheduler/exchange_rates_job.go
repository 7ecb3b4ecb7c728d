package scheduler

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/wilqq-the/stronghodl/internal/domain"
	"github.com/wilqq-the/stronghodl/internal/modules/rates"
)

// rateBases are the base currencies fetched on every tick. USD and EUR are
// bootstrapped unconditionally because main-currency selection is restricted
// to the two.
var rateBases = []string{"USD", "EUR"}

// ExchangeRatesJob refreshes stored FX rates every few hours and clears the
// resolver's memory cache so new rates take effect immediately.
type ExchangeRatesJob struct {
	feed     domain.FxFeed
	rateRepo *rates.Repository
	resolver *rates.Resolver
	settings domain.SettingsReader
	log      zerolog.Logger
}

// NewExchangeRatesJob creates the FX refresh job
func NewExchangeRatesJob(
	feed domain.FxFeed,
	rateRepo *rates.Repository,
	resolver *rates.Resolver,
	settings domain.SettingsReader,
	log zerolog.Logger,
) *ExchangeRatesJob {
	return &ExchangeRatesJob{
		feed:     feed,
		rateRepo: rateRepo,
		resolver: resolver,
		settings: settings,
		log:      log.With().Str("job", "exchange_rates").Logger(),
	}
}

// Name returns the job name
func (j *ExchangeRatesJob) Name() string {
	return "exchange_rates"
}

// Run fetches USD- and EUR-based tables and upserts rates for every
// supported currency. Partial success is OK - logged as warnings.
func (j *ExchangeRatesJob) Run() error {
	targets := j.targetCurrencies()

	successCount := 0
	errorCount := 0

	for _, base := range rateBases {
		table, err := j.feed.FetchRates(base)
		if err != nil {
			j.log.Error().Err(err).Str("base", base).Msg("Failed to fetch rate table")
			errorCount++
			continue
		}

		for _, target := range targets {
			if target == base {
				continue
			}
			rate, ok := table[target]
			if !ok || rate <= 0 {
				j.log.Warn().Str("base", base).Str("target", target).Msg("Rate missing in table")
				continue
			}
			if err := j.rateRepo.Upsert(base, target, rate); err != nil {
				j.log.Error().Err(err).Str("base", base).Str("target", target).
					Msg("Failed to store rate")
				errorCount++
				continue
			}
			successCount++
		}
	}

	// Fresh rates must win over hour-old resolutions.
	j.resolver.ClearCache()

	j.log.Info().Int("success", successCount).Int("errors", errorCount).
		Msg("Exchange rate sync completed")

	if successCount == 0 {
		return fmt.Errorf("all rate fetches failed")
	}

	return nil
}

// targetCurrencies merges the user's supported set with the unconditional
// USD/EUR core.
func (j *ExchangeRatesJob) targetCurrencies() []string {
	seen := map[string]bool{"USD": true, "EUR": true}
	targets := []string{"USD", "EUR"}

	for _, c := range j.settings.GetSupportedCurrencies() {
		if !seen[c] {
			seen[c] = true
			targets = append(targets, c)
		}
	}

	return targets
}
