package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wilqq-the/stronghodl/internal/database"
	"github.com/wilqq-the/stronghodl/internal/domain"
	"github.com/wilqq-the/stronghodl/internal/modules/ledger"
	"github.com/wilqq-the/stronghodl/internal/modules/prices"
	"github.com/wilqq-the/stronghodl/internal/modules/rates"
	"github.com/wilqq-the/stronghodl/internal/modules/settings"
	"github.com/wilqq-the/stronghodl/internal/modules/valuation"
	"github.com/wilqq-the/stronghodl/internal/scheduler"
)

type stubMarketFeed struct {
	price *domain.CurrentPrice
	err   error
}

func (f *stubMarketFeed) FetchCurrentPrice() (*domain.CurrentPrice, error) {
	return f.price, f.err
}

func (f *stubMarketFeed) FetchIntradayPoints() ([]domain.IntradayPoint, error) {
	return nil, nil
}

func (f *stubMarketFeed) FetchHistoricalOHLC(days int) ([]domain.DailyPrice, error) {
	return nil, fmt.Errorf("not implemented")
}

type stubFxFeed struct{}

func (f *stubFxFeed) FetchRates(base string) (map[string]float64, error) {
	return nil, fmt.Errorf("not implemented")
}

type testStack struct {
	server    *Server
	priceRepo *prices.Repository
	rateRepo  *rates.Repository
	market    *stubMarketFeed
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "app.db"),
		Profile: database.ProfileStandard,
		Name:    "app",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())

	conn := db.Conn()
	log := zerolog.Nop()

	settingsSvc := settings.NewService(settings.NewRepository(conn), log)
	rateRepo := rates.NewRepository(conn, log)
	resolver := rates.NewResolver(rateRepo, log)
	priceRepo := prices.NewRepository(conn, log)
	priceSvc := prices.NewService(priceRepo, log)
	engine := valuation.NewEngine(
		ledger.NewRepository(conn, log), priceRepo, resolver, settingsSvc,
		valuation.NewRepository(conn, log), log)
	triggers := valuation.NewTriggers(engine, 10*time.Millisecond, time.Minute, log)
	t.Cleanup(triggers.Stop)

	market := &stubMarketFeed{price: &domain.CurrentPrice{
		Price:     70000,
		Timestamp: time.Now().UTC(),
		Source:    "coingecko",
	}}
	intraday := scheduler.NewIntradayPriceJob(market, priceRepo, priceSvc, engine, settingsSvc, log)
	historical := scheduler.NewHistoricalPriceJob(market, priceRepo, intraday, log)
	fxJob := scheduler.NewExchangeRatesJob(&stubFxFeed{}, rateRepo, resolver, settingsSvc, log)
	sched := scheduler.New(intraday, historical, fxJob, settingsSvc, log)

	srv := New(Config{
		Port:         0,
		Log:          log,
		PriceService: priceSvc,
		PriceRepo:    priceRepo,
		RateRepo:     rateRepo,
		Resolver:     resolver,
		Engine:       engine,
		Triggers:     triggers,
		Settings:     settingsSvc,
		Scheduler:    sched,
	})

	return &testStack{server: srv, priceRepo: priceRepo, rateRepo: rateRepo, market: market}
}

func (ts *testStack) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	ts.server.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(dest))
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestStack(t)

	rec := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCurrentPriceEndpoint(t *testing.T) {
	ts := newTestStack(t)

	rec := ts.do(t, http.MethodGet, "/api/price/current", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, ts.priceRepo.UpsertCurrentPrice(&domain.CurrentPrice{
		Price: 70000, Timestamp: time.Now().UTC(), Source: "coingecko",
	}))

	rec = ts.do(t, http.MethodGet, "/api/price/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.CurrentPrice
	decode(t, rec, &got)
	assert.InDelta(t, 70000, got.Price, 1e-9)
}

func TestResolveRateEndpoint(t *testing.T) {
	ts := newTestStack(t)

	require.NoError(t, ts.rateRepo.Upsert("USD", "EUR", 0.93))

	rec := ts.do(t, http.MethodGet, "/api/rates/usd/eur", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		From string  `json:"from"`
		To   string  `json:"to"`
		Rate float64 `json:"rate"`
	}
	decode(t, rec, &got)
	assert.Equal(t, "USD", got.From)
	assert.Equal(t, "EUR", got.To)
	assert.InDelta(t, 0.93, got.Rate, 1e-9)
}

func TestSnapshotEndpointComputesOnFirstRead(t *testing.T) {
	ts := newTestStack(t)

	require.NoError(t, ts.priceRepo.UpsertCurrentPrice(&domain.CurrentPrice{
		Price: 70000, Timestamp: time.Now().UTC(), Source: "coingecko",
	}))

	rec := ts.do(t, http.MethodGet, "/api/portfolio/snapshot", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.PortfolioSnapshot
	decode(t, rec, &got)
	assert.Equal(t, "USD", got.MainCurrency)
	assert.InDelta(t, 70000, got.CurrentPriceMain, 1e-9)
}

func TestRecomputeEndpointModes(t *testing.T) {
	ts := newTestStack(t)

	rec := ts.do(t, http.MethodPost, "/api/portfolio/recompute", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/portfolio/recompute?mode=debounced", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/portfolio/recompute?mode=rate-limited", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var first map[string]string
	decode(t, rec, &first)
	assert.Equal(t, "recomputed", first["status"])

	rec = ts.do(t, http.MethodPost, "/api/portfolio/recompute?mode=rate-limited", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var second map[string]string
	decode(t, rec, &second)
	assert.Equal(t, "throttled", second["status"])
}

func TestSettingsEndpoint(t *testing.T) {
	ts := newTestStack(t)

	rec := ts.do(t, http.MethodGet, "/api/settings/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got settingsResponse
	decode(t, rec, &got)
	assert.Equal(t, "USD", got.MainCurrency)
	assert.True(t, got.IntradayEnabled)

	rec = ts.do(t, http.MethodPut, "/api/settings/", map[string]interface{}{
		"main_currency":    "EUR",
		"intraday_enabled": false,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	decode(t, rec, &got)
	assert.Equal(t, "EUR", got.MainCurrency)
	assert.False(t, got.IntradayEnabled)
}

func TestSettingsEndpointRejectsInvalidMainCurrency(t *testing.T) {
	ts := newTestStack(t)

	rec := ts.do(t, http.MethodPut, "/api/settings/", map[string]interface{}{
		"main_currency": "JPY",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateNowEndpoint(t *testing.T) {
	ts := newTestStack(t)

	rec := ts.do(t, http.MethodPost, "/api/scheduler/update-now", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	stored, err := ts.priceRepo.GetCurrentPrice()
	require.NoError(t, err)
	assert.NotNil(t, stored)

	// A dead feed surfaces as a gateway error.
	ts.market.price = nil
	ts.market.err = fmt.Errorf("feed down")
	rec = ts.do(t, http.MethodPost, "/api/scheduler/update-now", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestSchedulerStatusEndpoint(t *testing.T) {
	ts := newTestStack(t)

	rec := ts.do(t, http.MethodGet, "/api/scheduler/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got scheduler.Status
	decode(t, rec, &got)
	assert.False(t, got.Running)
}

func TestBackupEndpointUnconfigured(t *testing.T) {
	ts := newTestStack(t)

	rec := ts.do(t, http.MethodPost, "/api/system/backup", nil)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}
