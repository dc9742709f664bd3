package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"CryptoSentinel/internal/analyzer"
	"CryptoSentinel/internal/collector"
	"CryptoSentinel/internal/config"
	"CryptoSentinel/internal/notifier"
	"CryptoSentinel/internal/scheduler"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func main() {
	symbol := flag.String("symbol", "BTC", "coin or pair to analyse, e.g. BTC or ETHUSDT")
	timeframe := flag.String("timeframe", "1h", "candle interval")
	offline := flag.Bool("offline", false, "skip upstreams and use synthetic data")
	cfgPath := flag.String("config", "configs/config.yaml", "config file for upstream settings")
	flag.Parse()

	log.SetFlags(0)
	log.SetOutput(os.Stderr)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}

	gw := &collector.Gateway{Now: time.Now}
	if !*offline {
		up := cfg.Upstream
		retry := collector.RetryPolicy{MaxAttempts: up.MaxAttempts, BaseDelay: up.BaseBackoff}
		gw = collector.NewGateway(
			collector.NewBinanceFetcher(up.BinanceBaseURL, up.Proxy, up.Timeout, retry),
			collector.NewCoinGeckoFetcher(up.CoinGeckoBaseURL, up.Proxy, up.Timeout),
		)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	res, err := analyzer.New(gw, nil).Analyze(ctx, scheduler.NormalizeSymbol(*symbol), *timeframe)
	if err != nil {
		log.Fatalf("[FATAL] analyze: %v", err)
	}
	render(res)
}

func render(res analyzer.Analysis) {
	snap, sig, ind := res.Snapshot, res.Signal, res.Signal.Indicators

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(fmt.Sprintf("%s %s", sig.Symbol, sig.Timeframe))
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"Source", fmt.Sprintf("%s (%s)", snap.Source, res.Provenance)},
		{"Price", notifier.FormatPrice(snap.Price())},
		{"24h Change", fmt.Sprintf("%+.2f%%", snap.Ticker.ChangePercent)},
		{"24h High / Low", notifier.FormatPrice(snap.Ticker.High24h) + " / " + notifier.FormatPrice(snap.Ticker.Low24h)},
		{"Candles", fmt.Sprintf("%d (synthetic: %v)", len(snap.Candles), snap.CandlesSynthetic)},
		{"Range Position", fmt.Sprintf("%.0f%%", res.Range.Position*100)},
	})
	t.AppendSeparator()

	t.AppendRows([]table.Row{
		{"RSI(14)", fmt.Sprintf("%.2f", ind.RSI)},
		{"SMA 20 / 50", fmt.Sprintf("%.8g / %.8g", ind.SMA20, ind.SMA50)},
		{"EMA 20 / 50", fmt.Sprintf("%.8g / %.8g", ind.EMA20, ind.EMA50)},
		{"MACD / Signal / Hist", fmt.Sprintf("%.6g / %.6g / %.6g", ind.MACD, ind.MACDSignal, ind.MACDHistogram)},
		{"Bollinger", fmt.Sprintf("%.8g / %.8g / %.8g", ind.BBUpper, ind.BBMiddle, ind.BBLower)},
		{"Trend Strength", fmt.Sprintf("%.1f", ind.TrendStrength)},
	})
	t.AppendSeparator()

	t.AppendRows([]table.Row{
		{"Direction", string(sig.Direction)},
		{"Confidence", fmt.Sprintf("%.1f%% (strength %d/5)", sig.Confidence, sig.Strength)},
		{"Entry", notifier.FormatPrice(sig.EntryPrice)},
		{"Take Profit", notifier.FormatPrice(sig.TakeProfit)},
		{"Stop Loss", notifier.FormatPrice(sig.StopLoss)},
		{"Risk/Reward", fmt.Sprintf("%.2f", sig.RiskRewardRatio)},
	})

	keys := make([]string, 0, len(sig.Rationale))
	for k := range sig.Rationale {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > 0 {
		t.AppendSeparator()
		for _, k := range keys {
			t.AppendRow(table.Row{k, sig.Rationale[k]})
		}
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 22, WidthMax: 22, Align: text.AlignLeft},
		{Number: 2, WidthMin: 30, WidthMax: 50, Align: text.AlignLeft},
	})

	t.Render()
}
