package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"CryptoSentinel/internal/analyzer"
	"CryptoSentinel/internal/collector"
	"CryptoSentinel/internal/metrics"
	"CryptoSentinel/internal/model"
	"CryptoSentinel/internal/monitor"
	"CryptoSentinel/internal/scheduler"
	"CryptoSentinel/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	defaultScreenerLimit = 20
	maxScreenerLimit     = 100
	defaultSignalLimit   = 10
	maxSignalLimit       = 200
)

// Analyzer produces an analysis for one symbol.
type Analyzer interface {
	Analyze(ctx context.Context, symbol, timeframe string) (analyzer.Analysis, error)
}

// MarketData is the part of the gateway the API reads directly.
type MarketData interface {
	FetchSnapshot(ctx context.Context, symbol, timeframe string) collector.Result
	Screener(ctx context.Context, limit int) []model.ScreenerEntry
}

// Monitor is the monitoring loop as seen by the API.
type Monitor interface {
	State() monitor.State
	LastReport() monitor.CycleReport
	ClosePosition(ctx context.Context, id int64, price float64) (model.Position, error)
}

// API serves the HTTP surface.
type API struct {
	Analyzer Analyzer
	Market   MarketData
	Monitor  Monitor
	Store    store.Store
}

func New(an Analyzer, md MarketData, mon Monitor, st store.Store) *API {
	return &API{Analyzer: an, Market: md, Monitor: mon, Store: st}
}

// Router builds the chi router with every route mounted.
func (api *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/analyze/{symbol}", api.HandleAnalyze)
		r.Get("/screener", api.HandleScreener)
		r.Get("/signals", api.HandleSignals)
		r.Get("/monitor", api.HandleMonitor)
		r.Post("/positions", api.HandleCreatePosition)
		r.Post("/positions/{id}/close", api.HandleClosePosition)
		r.Post("/alerts", api.HandleCreateAlert)
	})
	return r
}

func (api *API) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	timeframe := r.URL.Query().Get("timeframe")
	if timeframe == "" {
		timeframe = "1h"
	}

	res, err := api.Analyzer.Analyze(r.Context(), scheduler.NormalizeSymbol(symbol), timeframe)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (api *API) HandleScreener(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultScreenerLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if limit < 1 || limit > maxScreenerLimit {
		writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": api.Market.Screener(r.Context(), limit),
	})
}

func (api *API) HandleSignals(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultSignalLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if limit < 1 || limit > maxSignalLimit {
		writeError(w, http.StatusBadRequest, "limit must be between 1 and 200")
		return
	}
	symbol := r.URL.Query().Get("symbol")
	if symbol != "" {
		symbol = scheduler.NormalizeSymbol(symbol)
	}

	signals, err := api.Store.RecentSignals(r.Context(), symbol, limit)
	if err != nil {
		log.Printf("[ERROR] list signals: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list signals")
		return
	}
	if signals == nil {
		signals = []model.Signal{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"signals": signals})
}

func (api *API) HandleMonitor(w http.ResponseWriter, r *http.Request) {
	stats, err := api.Store.Stats(r.Context())
	if err != nil {
		log.Printf("[ERROR] store stats: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to read stats")
		return
	}

	rep := api.Monitor.LastReport()
	resp := map[string]interface{}{
		"state": api.Monitor.State().String(),
		"stats": stats,
	}
	if !rep.StartedAt.IsZero() {
		resp["last_cycle"] = map[string]interface{}{
			"started_at":        rep.StartedAt,
			"duration_ms":       rep.Duration.Milliseconds(),
			"symbols":           rep.Symbols,
			"positions_checked": rep.PositionsChecked,
			"positions_closed":  rep.PositionsClosed,
			"alerts_checked":    rep.AlertsChecked,
			"alerts_triggered":  rep.AlertsTriggered,
			"errors":            rep.Errors,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (api *API) HandleCreatePosition(w http.ResponseWriter, r *http.Request) {
	var p model.Position
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p.Symbol = scheduler.NormalizeSymbol(p.Symbol)
	p.Direction = model.Direction(strings.ToUpper(string(p.Direction)))

	created, err := api.Store.CreatePosition(r.Context(), p)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	log.Printf("[INFO] position %d opened: %s %s @ %.8g", created.ID, created.Symbol, created.Direction, created.EntryPrice)
	writeJSON(w, http.StatusCreated, created)
}

type closeRequest struct {
	Price float64 `json:"price"`
}

func (api *API) HandleClosePosition(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid position id")
		return
	}

	var req closeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	price := req.Price
	if price == 0 {
		p, err := api.Store.GetPosition(r.Context(), id)
		if err != nil {
			api.writeStoreError(w, err)
			return
		}
		res := api.Market.FetchSnapshot(r.Context(), p.Symbol, "1m")
		price = res.Snapshot.Ticker.Price
		if res.Provenance == collector.Synthetic {
			log.Printf("[WARN] closing position %d at synthetic price %.8g", id, price)
		}
	}

	closed, err := api.Monitor.ClosePosition(r.Context(), id, price)
	if err != nil {
		api.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, closed)
}

func (api *API) HandleCreateAlert(w http.ResponseWriter, r *http.Request) {
	var a model.Alert
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	a.Symbol = scheduler.NormalizeSymbol(a.Symbol)
	a.Condition = model.AlertCondition(strings.ToUpper(string(a.Condition)))

	created, err := api.Store.CreateAlert(r.Context(), a)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	log.Printf("[INFO] alert %d created: %s %s %.8g", created.ID, created.Symbol, created.Condition, created.TargetPrice)
	writeJSON(w, http.StatusCreated, created)
}

func (api *API) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, monitor.ErrPositionNotOpen):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("[ERROR] close position: %v", err)
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(key + " must be an integer")
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[WARN] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
