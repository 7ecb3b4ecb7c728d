package ledger

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
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

func buyTx(amount string, pricePerUnit float64, date time.Time) *domain.Transaction {
	amt := decimal.RequireFromString(amount)
	return &domain.Transaction{
		Kind:         domain.KindBuy,
		BtcAmount:    amt,
		PricePerUnit: pricePerUnit,
		Currency:     "USD",
		Total:        pricePerUnit * mustFloat(amt),
		FeesCurrency: "USD",
		Date:         date,
	}
}

func mustFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func TestInsertAssignsIDAndRoundTrips(t *testing.T) {
	repo := NewRepository(newTestDB(t), zerolog.Nop())

	tx := buyTx("0.5", 50000, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	tx.Fees = 12.5
	tx.Notes = "first buy"

	require.NoError(t, repo.Insert(tx))
	assert.NotEqual(t, uuid.Nil, tx.ID)

	txs, err := repo.List()
	require.NoError(t, err)
	require.Len(t, txs, 1)

	got := txs[0]
	assert.Equal(t, tx.ID, got.ID)
	assert.Equal(t, domain.KindBuy, got.Kind)
	assert.True(t, got.BtcAmount.Equal(decimal.RequireFromString("0.5")))
	assert.InDelta(t, 50000, got.PricePerUnit, 1e-9)
	assert.Equal(t, "USD", got.Currency)
	assert.InDelta(t, 12.5, got.Fees, 1e-9)
	assert.Equal(t, "first buy", got.Notes)
	assert.Equal(t, tx.Date, got.Date)
}

func TestInsertValidation(t *testing.T) {
	repo := NewRepository(newTestDB(t), zerolog.Nop())

	tests := []struct {
		name string
		tx   *domain.Transaction
	}{
		{
			name: "zero amount",
			tx: &domain.Transaction{
				Kind:      domain.KindBuy,
				BtcAmount: decimal.Zero,
				Date:      time.Now(),
			},
		},
		{
			name: "negative amount",
			tx: &domain.Transaction{
				Kind:      domain.KindSell,
				BtcAmount: decimal.RequireFromString("-0.1"),
				Date:      time.Now(),
			},
		},
		{
			name: "unknown kind",
			tx: &domain.Transaction{
				Kind:      domain.TransactionKind("TRANSFER"),
				BtcAmount: decimal.RequireFromString("0.1"),
				Date:      time.Now(),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, repo.Insert(tt.tx))
		})
	}

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestListOrdersByDateAscending(t *testing.T) {
	repo := NewRepository(newTestDB(t), zerolog.Nop())

	later := buyTx("0.2", 60000, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC))
	earlier := buyTx("0.1", 40000, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	require.NoError(t, repo.Insert(later))
	require.NoError(t, repo.Insert(earlier))

	txs, err := repo.List()
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, earlier.ID, txs[0].ID)
	assert.Equal(t, later.ID, txs[1].ID)
}

func TestBtcTotalsAreExact(t *testing.T) {
	repo := NewRepository(newTestDB(t), zerolog.Nop())

	// 0.1 and 0.2 are classic float traps; stored as decimal strings the
	// sums come out exact.
	require.NoError(t, repo.Insert(buyTx("0.1", 50000, time.Now())))
	require.NoError(t, repo.Insert(buyTx("0.2", 55000, time.Now())))

	sell := buyTx("0.1", 60000, time.Now())
	sell.Kind = domain.KindSell
	require.NoError(t, repo.Insert(sell))

	totalBuy, totalSell, err := repo.BtcTotals()
	require.NoError(t, err)
	assert.True(t, totalBuy.Equal(decimal.RequireFromString("0.3")), "buy total %s", totalBuy)
	assert.True(t, totalSell.Equal(decimal.RequireFromString("0.1")), "sell total %s", totalSell)
	assert.True(t, totalBuy.Sub(totalSell).Equal(decimal.RequireFromString("0.2")))
}

func TestDeleteRemovesTransaction(t *testing.T) {
	repo := NewRepository(newTestDB(t), zerolog.Nop())

	tx := buyTx("0.1", 50000, time.Now())
	require.NoError(t, repo.Insert(tx))
	require.NoError(t, repo.Delete(tx.ID))

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
