package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"CryptoSentinel/internal/analyzer"
	"CryptoSentinel/internal/api"
	"CryptoSentinel/internal/collector"
	"CryptoSentinel/internal/config"
	"CryptoSentinel/internal/monitor"
	"CryptoSentinel/internal/notifier"
	"CryptoSentinel/internal/scheduler"
	"CryptoSentinel/internal/store"
)

// notifierSink is what both the Telegram and the log notifier provide.
type notifierSink interface {
	monitor.Notifier
	scheduler.AdminSender
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] CryptoSentinel starting...")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	// Init store
	var st store.Store
	if cfg.Database.SQLitePath != "" {
		ss, err := store.NewSQLiteStore(cfg.Database.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite store failed, using in-memory store: %v", err)
			st = store.NewMemoryStore()
		} else {
			st = ss
		}
	} else {
		st = store.NewMemoryStore()
	}
	defer st.Close()

	// Init market data gateway
	up := cfg.Upstream
	retry := collector.RetryPolicy{MaxAttempts: up.MaxAttempts, BaseDelay: up.BaseBackoff}
	binance := collector.NewBinanceFetcher(up.BinanceBaseURL, up.Proxy, up.Timeout, retry)
	coingecko := collector.NewCoinGeckoFetcher(up.CoinGeckoBaseURL, up.Proxy, up.Timeout)
	gw := collector.NewGateway(binance, coingecko)
	log.Printf("[INFO] data sources: %s, fallback %s", binance.Name(), coingecko.Name())

	an := analyzer.New(gw, st)

	// Init notifier
	var tn *notifier.TelegramNotifier
	var sink notifierSink
	if cfg.Telegram.BotToken != "" {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.AdminChatID, cfg.Telegram.APIBase, up.Proxy)
		sink = tn
	} else {
		log.Println("[WARN] no Telegram bot token, notifications go to the log")
		sink = notifier.NewLogNotifier()
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init monitor
	mon := monitor.New(st, gw, sink)
	mon.Interval = cfg.Monitor.Interval
	mon.SymbolDelay = cfg.Monitor.SymbolDelay
	mon.Timeframe = cfg.Monitor.Timeframe
	if err := mon.Start(ctx); err != nil {
		log.Fatalf("[FATAL] start monitor: %v", err)
	}

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, an, gw, st, mon, sink)
	if err := sched.RegisterScan(cfg.Scan.Cron, cfg.Scan.Symbols, cfg.Scan.Timeframe); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()

	if cfg.Scan.RunOnStart {
		log.Println("[INFO] run_on_start enabled, scanning watchlist now")
		go sched.RunScanNow()
	}

	// Start Telegram polling
	if tn != nil && cfg.Telegram.Polling {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Println("[INFO] Telegram polling started")
	}

	// Start HTTP API
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.New(an, gw, mon, st).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("[INFO] HTTP API listening on %s", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[ERROR] HTTP server: %v", err)
		}
	}()

	log.Println("[INFO] CryptoSentinel is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[WARN] HTTP shutdown: %v", err)
	}
	if err := mon.Stop(shutdownCtx); err != nil {
		log.Printf("[WARN] monitor stop: %v", err)
	}
	sched.Stop()
	cancel()
	log.Println("[INFO] CryptoSentinel stopped")
}
