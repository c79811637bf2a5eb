package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amsmoox/tradebot/internal/config"
	"github.com/Amsmoox/tradebot/internal/extract"
	"github.com/Amsmoox/tradebot/internal/fetcher"
	"github.com/Amsmoox/tradebot/internal/model"
	"github.com/Amsmoox/tradebot/internal/resilience"
	"github.com/Amsmoox/tradebot/internal/scheduler"
	"github.com/Amsmoox/tradebot/internal/scraper"
	"github.com/Amsmoox/tradebot/internal/store"
)

const testPage = `<html><body><div id="fxl-sig-active-cntr">
  <div class="fxml-sig-cntr">
    <a class="hover" href="/live-rates/eur-usd">EUR/USD</a>
    <span class="text-uppercase">BUY</span>
    <span class="blink">Active</span>
    <span ng-if="sig.entryPrice">1.0850</span>
  </div>
</div></body></html>`

type pageFetcher struct{}

func (pageFetcher) Fetch(context.Context, string, model.Validators) (*fetcher.Outcome, error) {
	return &fetcher.Outcome{
		Status:     fetcher.StatusChanged,
		Body:       []byte(testPage),
		Validators: model.Validators{ETag: `"v1"`},
	}, nil
}

func newTestEnv(t *testing.T) *appEnv {
	t.Helper()
	cfg = &config.Config{}

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	svc := scraper.NewService(scraper.Options{DefaultInterval: 60}, st, extract.NewFXLeaders(), nil, nil)
	svc.AddSource("fxleaders", "https://example.com/signals", pageFetcher{})

	return &appEnv{
		Store:     st,
		Service:   svc,
		Scheduler: scheduler.New(svc, resilience.DefaultRetryConfig()),
	}
}

func TestServeHealth(t *testing.T) {
	router := newRouter(newTestEnv(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServeTriggerScrape(t *testing.T) {
	router := newRouter(newTestEnv(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sources/fxleaders/scrape", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var res model.CycleResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, model.OutcomeNewSignals, res.Outcome)
	assert.Equal(t, 1, res.New)
}

func TestServeTriggerUnknownSource(t *testing.T) {
	router := newRouter(newTestEnv(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sources/nope/scrape", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestServeSourceStatus(t *testing.T) {
	env := newTestEnv(t)
	router := newRouter(env)

	// Run one cycle so the watermark has content.
	env.Service.RunCycle(context.Background(), "fxleaders")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sources/fxleaders/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var st model.SourceStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "fxleaders", st.Source)
	assert.Equal(t, 1, st.SignalsTotal)
	require.NotNil(t, st.Watermark)
	assert.Equal(t, 45, st.Watermark.PollInterval)
}

func TestServeStatusUnknownSource(t *testing.T) {
	router := newRouter(newTestEnv(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sources/nope/status", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeListSignals(t *testing.T) {
	env := newTestEnv(t)
	router := newRouter(env)

	env.Service.RunCycle(context.Background(), "fxleaders")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/signals?source=fxleaders", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Signals []model.Signal `json:"signals"`
		Count   int            `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "EUR/USD", body.Signals[0].Instrument)
	assert.Equal(t, "BUY", body.Signals[0].Action)
	assert.NotEmpty(t, body.Signals[0].Fingerprint)
}

func TestServeListSignalsBadParams(t *testing.T) {
	router := newRouter(newTestEnv(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/signals?limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/signals?since=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServeMetricsEndpoint(t *testing.T) {
	router := newRouter(newTestEnv(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
