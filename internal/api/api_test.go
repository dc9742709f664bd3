package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"CryptoSentinel/internal/analyzer"
	"CryptoSentinel/internal/collector"
	"CryptoSentinel/internal/model"
	"CryptoSentinel/internal/monitor"
	"CryptoSentinel/internal/notifier"
	"CryptoSentinel/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.MemoryStore) {
	t.Helper()
	fixed := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	gw := &collector.Gateway{Now: func() time.Time { return fixed }}
	st := store.NewMemoryStore()
	mon := monitor.New(st, gw, notifier.NewLogNotifier())

	srv := httptest.NewServer(New(analyzer.New(gw, st), gw, mon, st).Router())
	t.Cleanup(srv.Close)
	return srv, st
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := get(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, "ok", body["status"])

	resp = get(t, srv.URL+"/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPositionLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := post(t, srv.URL+"/api/positions",
		`{"user_id":42,"symbol":"btc","direction":"long","entry_price":100,"quantity":2,"take_profit":120,"stop_loss":90}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created model.Position
	decode(t, resp, &created)
	assert.Equal(t, "BTCUSDT", created.Symbol)
	assert.Equal(t, model.DirectionLong, created.Direction)
	assert.Equal(t, model.StatusOpen, created.Status)

	closeURL := srv.URL + "/api/positions/" + jsonID(created.ID) + "/close"
	resp = post(t, closeURL, `{"price":110}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var closed model.Position
	decode(t, resp, &closed)
	assert.Equal(t, model.StatusClosedManual, closed.Status)
	assert.InDelta(t, 20.0, closed.PnL, 1e-9)
	assert.InDelta(t, 10.0, closed.PnLPercent, 1e-9)
	require.NotNil(t, closed.ClosedAt)

	resp = post(t, closeURL, `{"price":111}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestClosePositionUsesMarketPriceWhenOmitted(t *testing.T) {
	srv, st := newTestServer(t)
	p, err := st.CreatePosition(context.Background(), model.Position{
		UserID: 1, Symbol: "ETHUSDT", Direction: model.DirectionShort, EntryPrice: 3800, Quantity: 1,
	})
	require.NoError(t, err)

	resp := post(t, srv.URL+"/api/positions/"+jsonID(p.ID)+"/close", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var closed model.Position
	decode(t, resp, &closed)
	assert.Equal(t, model.StatusClosedManual, closed.Status)
	assert.Greater(t, closed.CurrentPrice, 0.0)
}

func TestClosePositionErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := post(t, srv.URL+"/api/positions/999/close", `{"price":1}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = post(t, srv.URL+"/api/positions/abc/close", `{"price":1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, srv.URL+"/api/positions", `{"symbol":"BTC","direction":"SIDEWAYS","entry_price":1,"quantity":1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateAlert(t *testing.T) {
	srv, st := newTestServer(t)

	resp := post(t, srv.URL+"/api/alerts", `{"user_id":7,"symbol":"sol","condition":"above","target_price":250}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var a model.Alert
	decode(t, resp, &a)
	assert.Equal(t, "SOLUSDT", a.Symbol)
	assert.Equal(t, model.ConditionAbove, a.Condition)
	assert.False(t, a.Triggered)

	stored, ok := st.Alert(a.ID)
	require.True(t, ok)
	assert.Equal(t, 250.0, stored.TargetPrice)

	resp = post(t, srv.URL+"/api/alerts", `{"symbol":"sol","condition":"SIDEWAYS","target_price":250}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, srv.URL+"/api/alerts", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAnalyzeThenListSignals(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := get(t, srv.URL+"/api/analyze/eth?timeframe=4h")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res analyzer.Analysis
	decode(t, resp, &res)
	assert.Equal(t, "ETHUSDT", res.Signal.Symbol)
	assert.Equal(t, "4h", res.Signal.Timeframe)
	assert.Equal(t, "synthetic", res.Provenance)

	resp = get(t, srv.URL+"/api/signals?symbol=eth")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Signals []model.Signal `json:"signals"`
	}
	decode(t, resp, &list)
	require.Len(t, list.Signals, 1)
	assert.Equal(t, res.Signal.ID, list.Signals[0].ID)

	resp = get(t, srv.URL+"/api/signals?symbol=btc")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &list)
	assert.Empty(t, list.Signals)

	resp = get(t, srv.URL+"/api/signals?limit=0")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestScreener(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := get(t, srv.URL+"/api/screener?limit=5")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Entries []model.ScreenerEntry `json:"entries"`
	}
	decode(t, resp, &body)
	require.Len(t, body.Entries, 5)
	assert.Equal(t, "BTCUSDT", body.Entries[0].Symbol)

	resp = get(t, srv.URL+"/api/screener?limit=abc")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMonitorStatus(t *testing.T) {
	srv, st := newTestServer(t)
	_, err := st.CreateAlert(context.Background(), model.Alert{Symbol: "BTCUSDT", Condition: model.ConditionBelow, TargetPrice: 10})
	require.NoError(t, err)

	resp := get(t, srv.URL+"/api/monitor")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		State     string                 `json:"state"`
		Stats     store.Stats            `json:"stats"`
		LastCycle map[string]interface{} `json:"last_cycle"`
	}
	decode(t, resp, &body)
	assert.Equal(t, "idle", body.State)
	assert.Equal(t, 1, body.Stats.ActiveAlerts)
	assert.Equal(t, 0, body.Stats.OpenPositions)
	assert.Nil(t, body.LastCycle)
}

func jsonID(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
