package prices

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wilqq-the/stronghodl/internal/database"
	"github.com/wilqq-the/stronghodl/internal/domain"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "app.db"),
		Profile: database.ProfileStandard,
		Name:    "app",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate())
	return db.Conn()
}

func TestCurrentPriceIsSingleton(t *testing.T) {
	repo := NewRepository(newTestDB(t), zerolog.Nop())

	p, err := repo.GetCurrentPrice()
	require.NoError(t, err)
	assert.Nil(t, p)

	first := &domain.CurrentPrice{
		Price:     68000,
		Timestamp: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		Source:    "coingecko",
	}
	require.NoError(t, repo.UpsertCurrentPrice(first))

	second := &domain.CurrentPrice{
		Price:        70000,
		Change24hAbs: 1000,
		Change24hPct: 1.45,
		Timestamp:    time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC),
		Source:       "coingecko",
	}
	require.NoError(t, repo.UpsertCurrentPrice(second))

	got, err := repo.GetCurrentPrice()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.InDelta(t, 70000, got.Price, 1e-9)
	assert.InDelta(t, 1000, got.Change24hAbs, 1e-9)
	assert.Equal(t, second.Timestamp, got.Timestamp)

	var count int
	require.NoError(t, repo.db.QueryRow("SELECT COUNT(*) FROM current_price").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestUpsertDailySecondWriteWins(t *testing.T) {
	repo := NewRepository(newTestDB(t), zerolog.Nop())

	require.NoError(t, repo.UpsertDaily(domain.DailyPrice{
		Date: "2025-06-01", Open: 100, High: 110, Low: 95, Close: 105,
	}))
	require.NoError(t, repo.UpsertDaily(domain.DailyPrice{
		Date: "2025-06-01", Open: 100, High: 120, Low: 95, Close: 115,
	}))

	series, err := repo.ListDaily(10)
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.InDelta(t, 120, series[0].High, 1e-9)
	assert.InDelta(t, 115, series[0].Close, 1e-9)
}

func TestListDailyReturnsNewestFirst(t *testing.T) {
	repo := NewRepository(newTestDB(t), zerolog.Nop())

	for _, date := range []string{"2025-06-01", "2025-06-03", "2025-06-02"} {
		require.NoError(t, repo.UpsertDaily(domain.DailyPrice{
			Date: date, Open: 1, High: 1, Low: 1, Close: 1,
		}))
	}

	series, err := repo.ListDaily(2)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, "2025-06-03", series[0].Date)
	assert.Equal(t, "2025-06-02", series[1].Date)
}

func TestReplaceAllDailySwapsWholeSeries(t *testing.T) {
	repo := NewRepository(newTestDB(t), zerolog.Nop())

	require.NoError(t, repo.UpsertDaily(domain.DailyPrice{
		Date: "2025-01-01", Open: 1, High: 1, Low: 1, Close: 1,
	}))

	volume := 1234.5
	require.NoError(t, repo.ReplaceAllDaily([]domain.DailyPrice{
		{Date: "2025-06-01", Open: 100, High: 110, Low: 95, Close: 105, Volume: &volume},
		{Date: "2025-06-02", Open: 105, High: 115, Low: 100, Close: 112},
	}))

	count, err := repo.CountDaily()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	series, err := repo.ListDaily(10)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, "2025-06-02", series[0].Date)
	assert.Nil(t, series[0].Volume)
	require.NotNil(t, series[1].Volume)
	assert.InDelta(t, 1234.5, *series[1].Volume, 1e-9)
}

func TestIntradayUpsertListAndPrune(t *testing.T) {
	repo := NewRepository(newTestDB(t), zerolog.Nop())

	now := time.Now().Truncate(time.Second).UTC()
	old := now.Add(-48 * time.Hour)

	require.NoError(t, repo.UpsertIntraday(domain.IntradayPoint{Timestamp: old, Price: 60000}))
	require.NoError(t, repo.UpsertIntraday(domain.IntradayPoint{Timestamp: now, Price: 70000}))

	// Same timestamp replaces in place.
	require.NoError(t, repo.UpsertIntraday(domain.IntradayPoint{Timestamp: now, Price: 70500}))

	points, err := repo.ListIntraday(now.Add(-72 * time.Hour))
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, old, points[0].Timestamp)
	assert.InDelta(t, 70500, points[1].Price, 1e-9)

	deleted, err := repo.PruneIntraday(now.Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	points, err = repo.ListIntraday(now.Add(-72 * time.Hour))
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, now, points[0].Timestamp)
}
