package prices

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wilqq-the/stronghodl/internal/domain"
)

func TestServiceServesCachedPriceUntilInvalidated(t *testing.T) {
	repo := NewRepository(newTestDB(t), zerolog.Nop())
	svc := NewService(repo, zerolog.Nop())

	require.NoError(t, repo.UpsertCurrentPrice(&domain.CurrentPrice{
		Price: 68000, Timestamp: time.Now().UTC(), Source: "coingecko",
	}))

	p, err := svc.GetCurrentPrice()
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.InDelta(t, 68000, p.Price, 1e-9)

	// A direct store write is invisible while the read cache is warm.
	require.NoError(t, repo.UpsertCurrentPrice(&domain.CurrentPrice{
		Price: 70000, Timestamp: time.Now().UTC(), Source: "coingecko",
	}))

	p, err = svc.GetCurrentPrice()
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.InDelta(t, 68000, p.Price, 1e-9)

	svc.InvalidateCache()

	p, err = svc.GetCurrentPrice()
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.InDelta(t, 70000, p.Price, 1e-9)
}

func TestServiceReturnsNilBeforeFirstPrice(t *testing.T) {
	svc := NewService(NewRepository(newTestDB(t), zerolog.Nop()), zerolog.Nop())

	p, err := svc.GetCurrentPrice()
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestGetAnalyticsOverDailySeries(t *testing.T) {
	repo := NewRepository(newTestDB(t), zerolog.Nop())
	svc := NewService(repo, zerolog.Nop())

	// Ten days with closes 1..10, chronological by date.
	for i := 1; i <= 10; i++ {
		close := float64(i)
		require.NoError(t, repo.UpsertDaily(domain.DailyPrice{
			Date:  time.Date(2025, 6, i, 0, 0, 0, 0, time.UTC).Format("2006-01-02"),
			Open:  close,
			High:  close + 0.5,
			Low:   close - 0.5,
			Close: close,
		}))
	}

	a, err := svc.GetAnalytics(10)
	require.NoError(t, err)
	require.NotNil(t, a)

	assert.Equal(t, 10, a.Days)
	require.NotNil(t, a.SMA7)
	assert.InDelta(t, 7.0, *a.SMA7, 1e-9) // mean of closes 4..10
	assert.Nil(t, a.SMA30)                // not enough data
	assert.Greater(t, a.AnnualizedVolatility, 0.0)
	assert.InDelta(t, 10.5, a.High, 1e-9)
	assert.InDelta(t, 0.5, a.Low, 1e-9)
}

func TestGetAnalyticsEmptySeries(t *testing.T) {
	svc := NewService(NewRepository(newTestDB(t), zerolog.Nop()), zerolog.Nop())

	a, err := svc.GetAnalytics(0)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, 30, a.Days) // default window
	assert.Nil(t, a.SMA7)
	assert.Zero(t, a.AnnualizedVolatility)
}
