package scheduler

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"CryptoSentinel/internal/analyzer"
	"CryptoSentinel/internal/model"
	"CryptoSentinel/internal/monitor"
	"CryptoSentinel/internal/notifier"
	"CryptoSentinel/internal/store"

	"github.com/robfig/cron/v3"
)

// Analyzer runs an explicit analysis.
type Analyzer interface {
	Analyze(ctx context.Context, symbol, timeframe string) (analyzer.Analysis, error)
}

// Screener lists the most traded pairs.
type Screener interface {
	Screener(ctx context.Context, limit int) []model.ScreenerEntry
}

// AdminSender delivers free text to the operator.
type AdminSender interface {
	SendAdmin(ctx context.Context, text string) error
}

// MonitorStatus exposes the monitoring loop's state.
type MonitorStatus interface {
	State() monitor.State
	LastReport() monitor.CycleReport
}

// Scheduler runs the watchlist scan on a cron schedule and answers chat commands.
type Scheduler struct {
	Cron      *cron.Cron
	Analyzer  Analyzer
	Screener  Screener
	Store     store.Store
	Monitor   MonitorStatus
	Admin     AdminSender
	Symbols   []string
	Timeframe string
	Ctx       context.Context

	mu   sync.Mutex
	last map[string]model.Direction
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, an Analyzer, sc Screener, st store.Store, mon MonitorStatus, admin AdminSender) *Scheduler {
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Analyzer:  an,
		Screener:  sc,
		Store:     st,
		Monitor:   mon,
		Admin:     admin,
		Timeframe: "1h",
		Ctx:       ctx,
		last:      make(map[string]model.Direction),
	}
}

// RegisterScan registers the watchlist scan.
func (s *Scheduler) RegisterScan(spec string, symbols []string, timeframe string) error {
	s.Symbols = make([]string, 0, len(symbols))
	for _, sym := range symbols {
		if sym = NormalizeSymbol(sym); sym != "" {
			s.Symbols = append(s.Symbols, sym)
		}
	}
	if timeframe != "" {
		s.Timeframe = timeframe
	}
	if _, err := s.Cron.AddFunc(spec, s.scanTask); err != nil {
		return fmt.Errorf("register scan task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler and waits for a running scan to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

// RunScanNow executes the watchlist scan immediately (manual trigger / RUN_ON_START).
func (s *Scheduler) RunScanNow() {
	s.scanTask()
}

func (s *Scheduler) scanTask() {
	if len(s.Symbols) == 0 {
		return
	}
	log.Printf("[INFO] running watchlist scan over %d symbols", len(s.Symbols))

	for _, sym := range s.Symbols {
		res, err := s.Analyzer.Analyze(s.Ctx, sym, s.Timeframe)
		if err != nil {
			log.Printf("[ERROR] scan %s: %v", sym, err)
			continue
		}
		sig := res.Signal

		s.mu.Lock()
		prev, seen := s.last[sym]
		s.last[sym] = sig.Direction
		s.mu.Unlock()

		if seen && prev != sig.Direction && sig.Direction != model.DirectionNeutral {
			log.Printf("[INFO] %s direction changed %s -> %s", sym, prev, sig.Direction)
			s.trySend(notifier.FormatDirectionChange(prev, sig))
		}
	}
}

// Watchlist returns the last scanned direction per symbol.
func (s *Scheduler) Watchlist() map[string]model.Direction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]model.Direction, len(s.last))
	for k, v := range s.last {
		out[k] = v
	}
	return out
}

const helpText = "Available commands:\n" +
	"• /analyze SYMBOL [TIMEFRAME]\n" +
	"• /screener [N]\n" +
	"• /status"

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, _ int64, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return helpText
	}
	// "/analyze@SentinelBot" in group chats
	cmd := strings.ToLower(strings.SplitN(fields[0], "@", 2)[0])
	args := fields[1:]

	switch cmd {
	case "/analyze":
		if len(args) == 0 {
			return "Usage: /analyze SYMBOL [TIMEFRAME]"
		}
		tf := s.Timeframe
		if len(args) > 1 {
			tf = args[1]
		}
		res, err := s.Analyzer.Analyze(ctx, NormalizeSymbol(args[0]), tf)
		if err != nil {
			log.Printf("[ERROR] analyze command: %v", err)
			return fmt.Sprintf("❌ Analysis failed: %v", err)
		}
		return notifier.FormatSignal(res.Signal, res.Snapshot.Source)
	case "/screener":
		limit := 10
		if len(args) > 0 {
			if n, err := strconv.Atoi(args[0]); err == nil && n > 0 && n <= 50 {
				limit = n
			}
		}
		return notifier.FormatScreener(s.Screener.Screener(ctx, limit))
	case "/status":
		return s.status(ctx)
	default:
		return helpText
	}
}

func (s *Scheduler) status(ctx context.Context) string {
	view := notifier.StatusView{MonitorState: "disabled", Watchlist: s.Watchlist()}
	if s.Monitor != nil {
		view.MonitorState = s.Monitor.State().String()
		last := s.Monitor.LastReport()
		view.LastCycle = last.StartedAt
		view.LastCycleErrors = last.Errors
	}
	if s.Store != nil {
		st, err := s.Store.Stats(ctx)
		if err != nil {
			log.Printf("[ERROR] load stats: %v", err)
		} else {
			view.OpenPositions = st.OpenPositions
			view.ActiveAlerts = st.ActiveAlerts
			view.TotalSignals = st.TotalSignals
		}
	}
	return notifier.FormatStatus(view)
}

// NormalizeSymbol upper-cases a symbol and appends USDT to bare coin names.
func NormalizeSymbol(sym string) string {
	sym = strings.ToUpper(strings.TrimSpace(sym))
	if sym == "" {
		return ""
	}
	if !strings.HasSuffix(sym, "USDT") {
		sym += "USDT"
	}
	return sym
}

func (s *Scheduler) trySend(text string) {
	if s.Admin == nil {
		return
	}
	if err := s.Admin.SendAdmin(s.Ctx, text); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}
