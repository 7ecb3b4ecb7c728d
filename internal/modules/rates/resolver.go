package rates

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/wilqq-the/stronghodl/internal/domain"
)

// cacheTTL bounds how long an in-memory resolution stays valid.
// Within the window repeated resolutions for the same pair cost no I/O.
const cacheTTL = time.Hour

// rateStore is the read-only slice of the repository the resolver needs.
type rateStore interface {
	Get(fromCurrency, toCurrency string) (*domain.ExchangeRate, error)
}

// staticFallbackRates holds intentionally imprecise last-resort rates for a
// small set of known pairs, used only when the store has nothing usable.
var staticFallbackRates = map[string]float64{
	"EUR:USD": 1.09,
	"USD:EUR": 0.92,
	"GBP:USD": 1.27,
	"USD:GBP": 0.79,
	"PLN:USD": 0.25,
	"USD:PLN": 4.00,
	"EUR:GBP": 0.86,
	"GBP:EUR": 1.16,
	"EUR:PLN": 4.35,
	"PLN:EUR": 0.23,
}

type cachedResolution struct {
	rate       float64
	resolvedAt time.Time
}

// Resolver resolves a conversion rate between any two currencies.
// Resolve is total: every call returns a usable positive rate, degrading
// through an ordered strategy chain. The store is never written; only the
// in-memory cache is mutated.
type Resolver struct {
	store rateStore
	log   zerolog.Logger

	mu    sync.RWMutex
	cache map[string]cachedResolution
}

// NewResolver creates a new exchange rate resolver
func NewResolver(store rateStore, log zerolog.Logger) *Resolver {
	return &Resolver{
		store: store,
		log:   log.With().Str("component", "rate_resolver").Logger(),
		cache: make(map[string]cachedResolution),
	}
}

// Resolve returns a conversion rate for the pair, first match wins:
// identity, in-memory cache, direct stored rate, reverse stored rate,
// USD two-hop, static fallback table, absolute fallback 1.0.
func (r *Resolver) Resolve(fromCurrency, toCurrency string) float64 {
	if fromCurrency == toCurrency {
		return 1.0
	}

	cacheKey := fromCurrency + ":" + toCurrency

	if rate, ok := r.getCached(cacheKey); ok {
		return rate
	}

	// Ordered strategies, each a pure lookup over the store snapshot.
	// Evaluated in order; the USD bridge reuses only direct/reverse lookups
	// per hop so resolution depth stays bounded.
	strategies := []struct {
		name string
		fn   func(from, to string) (float64, bool)
	}{
		{"direct", r.resolveDirect},
		{"reverse", r.resolveReverse},
		{"usd_bridge", r.resolveViaUSD},
		{"static", r.resolveStatic},
	}

	for _, s := range strategies {
		if rate, ok := s.fn(fromCurrency, toCurrency); ok && rate > 0 {
			if s.name != "direct" {
				r.log.Debug().
					Str("from", fromCurrency).
					Str("to", toCurrency).
					Float64("rate", rate).
					Str("strategy", s.name).
					Msg("Resolved rate via fallback strategy")
			}
			r.putCached(cacheKey, rate)
			return rate
		}
	}

	// Absolute fallback keeps the function total. Valuation must always be
	// defined, even with an empty store.
	r.log.Warn().
		Str("from", fromCurrency).
		Str("to", toCurrency).
		Msg("No rate available after all fallbacks, using 1.0")
	r.putCached(cacheKey, 1.0)

	return 1.0
}

// ClearCache empties the in-memory resolution cache so freshly stored rates
// take effect immediately. Called by the FX sync job after each refresh.
func (r *Resolver) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]cachedResolution)
}

// resolveDirect looks up the stored rate for the pair
func (r *Resolver) resolveDirect(from, to string) (float64, bool) {
	er, err := r.store.Get(from, to)
	if err != nil {
		r.log.Warn().Err(err).Str("from", from).Str("to", to).Msg("Rate store read failed")
		return 0, false
	}
	if er == nil || er.Rate <= 0 {
		return 0, false
	}
	return er.Rate, true
}

// resolveReverse looks up the inverted pair and inverts the rate
func (r *Resolver) resolveReverse(from, to string) (float64, bool) {
	er, err := r.store.Get(to, from)
	if err != nil {
		r.log.Warn().Err(err).Str("from", to).Str("to", from).Msg("Rate store read failed")
		return 0, false
	}
	if er == nil || er.Rate <= 0 {
		return 0, false
	}
	return 1.0 / er.Rate, true
}

// resolveViaUSD resolves both legs through USD using direct/reverse lookups
// only. Fails silently when either hop is unavailable.
func (r *Resolver) resolveViaUSD(from, to string) (float64, bool) {
	if from == "USD" || to == "USD" {
		return 0, false
	}

	toUSD, ok := r.resolveStoredEitherWay(from, "USD")
	if !ok {
		return 0, false
	}
	fromUSD, ok := r.resolveStoredEitherWay("USD", to)
	if !ok {
		return 0, false
	}

	return toUSD * fromUSD, true
}

// resolveStoredEitherWay tries the direct then the reverse stored rate.
func (r *Resolver) resolveStoredEitherWay(from, to string) (float64, bool) {
	if rate, ok := r.resolveDirect(from, to); ok {
		return rate, true
	}
	return r.resolveReverse(from, to)
}

// resolveStatic consults the hardcoded fallback table
func (r *Resolver) resolveStatic(from, to string) (float64, bool) {
	rate, ok := staticFallbackRates[from+":"+to]
	return rate, ok
}

func (r *Resolver) getCached(key string) (float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.cache[key]
	if !ok {
		return 0, false
	}
	if time.Since(entry.resolvedAt) >= cacheTTL {
		return 0, false
	}
	return entry.rate, true
}

func (r *Resolver) putCached(key string, rate float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[key] = cachedResolution{rate: rate, resolvedAt: time.Now()}
}
