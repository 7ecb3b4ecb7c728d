package settings

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wilqq-the/stronghodl/internal/database"
)

func newTestService(t *testing.T) (*Service, *sql.DB) {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "app.db"),
		Profile: database.ProfileStandard,
		Name:    "app",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate())
	return NewService(NewRepository(db.Conn()), zerolog.Nop()), db.Conn()
}

func TestDefaultsWhenNothingStored(t *testing.T) {
	svc, _ := newTestService(t)

	assert.Equal(t, "USD", svc.GetMainCurrency())
	assert.Equal(t, "EUR", svc.GetSecondaryCurrency())
	assert.Equal(t, []string{"USD", "EUR", "GBP", "PLN"}, svc.GetSupportedCurrencies())
	assert.True(t, svc.IsIntradayEnabled())
}

func TestSetMainCurrency(t *testing.T) {
	svc, _ := newTestService(t)

	require.NoError(t, svc.SetMainCurrency("eur"))
	assert.Equal(t, "EUR", svc.GetMainCurrency())

	require.NoError(t, svc.SetMainCurrency("USD"))
	assert.Equal(t, "USD", svc.GetMainCurrency())
}

func TestSetMainCurrencyRejectsUnsupported(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.SetMainCurrency("JPY")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be USD or EUR")

	// The stored value is untouched.
	assert.Equal(t, "USD", svc.GetMainCurrency())
}

func TestMainCurrencyIgnoresCorruptStoredValue(t *testing.T) {
	svc, conn := newTestService(t)

	// Bypass validation by writing directly.
	_, err := conn.Exec("INSERT INTO settings (key, value) VALUES (?, ?)", KeyMainCurrency, "GBP")
	require.NoError(t, err)

	assert.Equal(t, DefaultMainCurrency, svc.GetMainCurrency())
}

func TestSupportedCurrenciesRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)

	require.NoError(t, svc.SetSupportedCurrencies([]string{"USD", "EUR", "CHF"}))
	assert.Equal(t, []string{"USD", "EUR", "CHF"}, svc.GetSupportedCurrencies())
}

func TestSupportedCurrenciesNormalizesMessyInput(t *testing.T) {
	svc, conn := newTestService(t)

	_, err := conn.Exec("INSERT INTO settings (key, value) VALUES (?, ?)",
		KeySupportedCurrencies, " usd, eur ,,pln ")
	require.NoError(t, err)

	assert.Equal(t, []string{"USD", "EUR", "PLN"}, svc.GetSupportedCurrencies())
}

func TestIntradayToggle(t *testing.T) {
	svc, _ := newTestService(t)

	require.NoError(t, svc.SetIntradayEnabled(false))
	assert.False(t, svc.IsIntradayEnabled())

	require.NoError(t, svc.SetIntradayEnabled(true))
	assert.True(t, svc.IsIntradayEnabled())
}

func TestIntradayToggleDefaultsOnGarbage(t *testing.T) {
	svc, conn := newTestService(t)

	_, err := conn.Exec("INSERT INTO settings (key, value) VALUES (?, ?)",
		KeyIntradayEnabled, "maybe")
	require.NoError(t, err)

	assert.True(t, svc.IsIntradayEnabled())
}
