package rates

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/wilqq-the/stronghodl/internal/domain"
)

// fakeStore serves rates from a map and counts lookups.
type fakeStore struct {
	rates map[string]float64
	calls int
}

func (f *fakeStore) Get(from, to string) (*domain.ExchangeRate, error) {
	f.calls++
	rate, ok := f.rates[from+":"+to]
	if !ok {
		return nil, nil
	}
	return &domain.ExchangeRate{
		FromCurrency: from,
		ToCurrency:   to,
		Rate:         rate,
		UpdatedAt:    time.Now(),
	}, nil
}

func TestResolverStrategyChain(t *testing.T) {
	tests := []struct {
		name   string
		stored map[string]float64
		from   string
		to     string
		want   float64
	}{
		{
			name: "identity",
			from: "USD", to: "USD",
			want: 1.0,
		},
		{
			name:   "direct stored rate",
			stored: map[string]float64{"USD:EUR": 0.92},
			from:   "USD", to: "EUR",
			want: 0.92,
		},
		{
			name:   "reverse stored rate inverted",
			stored: map[string]float64{"USD:EUR": 0.92},
			from:   "EUR", to: "USD",
			want: 1.0 / 0.92,
		},
		{
			name:   "usd bridge multiplies both hops",
			stored: map[string]float64{"PLN:USD": 0.25, "USD:EUR": 0.90},
			from:   "PLN", to: "EUR",
			want: 0.25 * 0.90,
		},
		{
			name:   "usd bridge falls back to reverse legs",
			stored: map[string]float64{"USD:PLN": 4.0, "EUR:USD": 1.10},
			from:   "PLN", to: "EUR",
			want: (1.0 / 4.0) * (1.0 / 1.10),
		},
		{
			name: "static fallback table",
			from: "GBP", to: "USD",
			want: 1.27,
		},
		{
			name: "absolute fallback for unknown pair",
			from: "CHF", to: "JPY",
			want: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(&fakeStore{rates: tt.stored}, zerolog.Nop())
			assert.InDelta(t, tt.want, r.Resolve(tt.from, tt.to), 1e-9)
		})
	}
}

func TestResolverIsTotal(t *testing.T) {
	// Every pair resolves to a positive rate even with an empty store.
	r := NewResolver(&fakeStore{}, zerolog.Nop())

	pairs := [][2]string{
		{"USD", "EUR"}, {"EUR", "USD"}, {"PLN", "GBP"},
		{"CHF", "JPY"}, {"XYZ", "ABC"}, {"BTC", "BTC"},
	}
	for _, p := range pairs {
		assert.Greater(t, r.Resolve(p[0], p[1]), 0.0, "%s->%s", p[0], p[1])
	}
}

func TestResolverIdentitySkipsStore(t *testing.T) {
	store := &fakeStore{}
	r := NewResolver(store, zerolog.Nop())

	assert.Equal(t, 1.0, r.Resolve("EUR", "EUR"))
	assert.Equal(t, 0, store.calls)
}

func TestResolverCachesResolutions(t *testing.T) {
	store := &fakeStore{rates: map[string]float64{"USD:EUR": 0.92}}
	r := NewResolver(store, zerolog.Nop())

	assert.InDelta(t, 0.92, r.Resolve("USD", "EUR"), 1e-9)
	callsAfterFirst := store.calls

	// Second resolution within the TTL is served from memory.
	assert.InDelta(t, 0.92, r.Resolve("USD", "EUR"), 1e-9)
	assert.Equal(t, callsAfterFirst, store.calls)

	r.ClearCache()
	assert.InDelta(t, 0.92, r.Resolve("USD", "EUR"), 1e-9)
	assert.Greater(t, store.calls, callsAfterFirst)
}

func TestResolverCachesFallbackResults(t *testing.T) {
	// Even the absolute fallback is cached so a missing pair does not hit
	// the store on every valuation.
	store := &fakeStore{}
	r := NewResolver(store, zerolog.Nop())

	assert.Equal(t, 1.0, r.Resolve("CHF", "JPY"))
	callsAfterFirst := store.calls
	assert.Equal(t, 1.0, r.Resolve("CHF", "JPY"))
	assert.Equal(t, callsAfterFirst, store.calls)
}

func TestResolverPicksUpNewRatesAfterClear(t *testing.T) {
	store := &fakeStore{}
	r := NewResolver(store, zerolog.Nop())

	// No stored rate: static fallback answers.
	assert.InDelta(t, 1.09, r.Resolve("EUR", "USD"), 1e-9)

	store.rates = map[string]float64{"EUR:USD": 1.05}
	r.ClearCache()
	assert.InDelta(t, 1.05, r.Resolve("EUR", "USD"), 1e-9)
}
