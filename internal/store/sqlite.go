package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"CryptoSentinel/internal/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists state to a SQLite database.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (or creates) the SQLite database and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so API reads do not block the monitor's writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite store opened: %s", dbPath)
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS positions (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id       INTEGER NOT NULL,
			symbol        TEXT NOT NULL,
			direction     TEXT NOT NULL,
			entry_price   REAL NOT NULL,
			quantity      REAL NOT NULL,
			take_profit   REAL,
			stop_loss     REAL,
			current_price REAL,
			pnl           REAL DEFAULT 0,
			pnl_percent   REAL DEFAULT 0,
			status        TEXT NOT NULL DEFAULT 'OPEN',
			created_at    INTEGER NOT NULL,
			closed_at     INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_positions_status ON positions(status)`,

		`CREATE TABLE IF NOT EXISTS alerts (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id         INTEGER NOT NULL,
			symbol          TEXT NOT NULL,
			condition       TEXT NOT NULL,
			target_price    REAL NOT NULL,
			triggered       INTEGER NOT NULL DEFAULT 0,
			triggered_price REAL,
			triggered_at    INTEGER,
			created_at      INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_triggered ON alerts(triggered)`,

		`CREATE TABLE IF NOT EXISTS signals_history (
			id                TEXT PRIMARY KEY,
			symbol            TEXT NOT NULL,
			timeframe         TEXT NOT NULL,
			direction         TEXT NOT NULL,
			confidence        REAL,
			strength          INTEGER,
			entry_price       REAL,
			take_profit       REAL,
			stop_loss         REAL,
			risk_reward_ratio REAL,
			volume_24h        REAL,
			rationale         TEXT,
			indicators        TEXT,
			created_at        INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_symbol_ts ON signals_history(symbol, created_at)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

const positionColumns = `id, user_id, symbol, direction, entry_price, quantity, take_profit, stop_loss,
	current_price, pnl, pnl_percent, status, created_at, closed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPosition(r rowScanner) (model.Position, error) {
	var (
		p        model.Position
		tp, sl   sql.NullFloat64
		cur      sql.NullFloat64
		created  int64
		closedAt sql.NullInt64
	)
	err := r.Scan(&p.ID, &p.UserID, &p.Symbol, &p.Direction, &p.EntryPrice, &p.Quantity,
		&tp, &sl, &cur, &p.PnL, &p.PnLPercent, &p.Status, &created, &closedAt)
	if err != nil {
		return p, err
	}
	p.TakeProfit = tp.Float64
	p.StopLoss = sl.Float64
	p.CurrentPrice = cur.Float64
	p.CreatedAt = time.UnixMilli(created)
	if closedAt.Valid {
		t := time.UnixMilli(closedAt.Int64)
		p.ClosedAt = &t
	}
	return p, nil
}

func (s *SQLiteStore) ListOpenPositions(ctx context.Context) ([]model.Position, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE status = 'OPEN' ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query open positions: %w", err)
	}
	defer rows.Close()

	var out []model.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetPosition(ctx context.Context, id int64) (model.Position, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+positionColumns+` FROM positions WHERE id = ?`, id)
	p, err := scanPosition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return p, fmt.Errorf("position %d: %w", id, ErrNotFound)
	}
	return p, err
}

func (s *SQLiteStore) CreatePosition(ctx context.Context, p model.Position) (model.Position, error) {
	if err := p.Validate(); err != nil {
		return p, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	p.Symbol = strings.ToUpper(p.Symbol)
	p.Status = model.StatusOpen
	p.CurrentPrice = p.EntryPrice
	p.PnL, p.PnLPercent, p.ClosedAt = 0, 0, nil

	res, err := s.db.ExecContext(ctx, `INSERT INTO positions
		(user_id, symbol, direction, entry_price, quantity, take_profit, stop_loss,
		 current_price, pnl, pnl_percent, status, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.UserID, p.Symbol, p.Direction, p.EntryPrice, p.Quantity, p.TakeProfit, p.StopLoss,
		p.CurrentPrice, p.PnL, p.PnLPercent, p.Status, p.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return p, fmt.Errorf("insert position: %w", err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return p, err
	}
	return p, nil
}

func (s *SQLiteStore) UpdatePosition(ctx context.Context, id int64, patch model.PositionPatch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		res sql.Result
		err error
	)
	if patch.Close != nil {
		if !patch.Close.Status.Terminal() {
			return false, fmt.Errorf("position %d: close status %q is not terminal", id, patch.Close.Status)
		}
		res, err = s.db.ExecContext(ctx, `UPDATE positions
			SET current_price = ?, pnl = ?, pnl_percent = ?, status = ?, closed_at = ?
			WHERE id = ? AND status = 'OPEN'`,
			patch.CurrentPrice, patch.PnL, patch.PnLPercent, patch.Close.Status,
			patch.Close.ClosedAt.UnixMilli(), id)
	} else {
		res, err = s.db.ExecContext(ctx, `UPDATE positions
			SET current_price = ?, pnl = ?, pnl_percent = ?
			WHERE id = ? AND status = 'OPEN'`,
			patch.CurrentPrice, patch.PnL, patch.PnLPercent, id)
	}
	if err != nil {
		return false, fmt.Errorf("update position %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, s.existsLocked(ctx, "positions", id)
	}
	return true, nil
}

// existsLocked distinguishes a lost compare-and-set (nil) from a missing row.
func (s *SQLiteStore) existsLocked(ctx context.Context, table string, id int64) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", strings.TrimSuffix(table, "s"), id, ErrNotFound)
	}
	return err
}

func (s *SQLiteStore) ListActiveAlerts(ctx context.Context) ([]model.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, user_id, symbol, condition, target_price, created_at
		FROM alerts WHERE triggered = 0 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query active alerts: %w", err)
	}
	defer rows.Close()

	var out []model.Alert
	for rows.Next() {
		var (
			a       model.Alert
			created int64
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.Symbol, &a.Condition, &a.TargetPrice, &created); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.CreatedAt = time.UnixMilli(created)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CreateAlert(ctx context.Context, a model.Alert) (model.Alert, error) {
	if err := a.Validate(); err != nil {
		return a, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	a.Symbol = strings.ToUpper(a.Symbol)
	a.Triggered, a.TriggeredPrice, a.TriggeredAt = false, 0, nil

	res, err := s.db.ExecContext(ctx, `INSERT INTO alerts
		(user_id, symbol, condition, target_price, created_at) VALUES (?,?,?,?,?)`,
		a.UserID, a.Symbol, a.Condition, a.TargetPrice, a.CreatedAt.UnixMilli())
	if err != nil {
		return a, fmt.Errorf("insert alert: %w", err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return a, err
	}
	return a, nil
}

func (s *SQLiteStore) MarkAlertTriggered(ctx context.Context, id int64, price float64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE alerts
		SET triggered = 1, triggered_price = ?, triggered_at = ?
		WHERE id = ? AND triggered = 0`, price, at.UnixMilli(), id)
	if err != nil {
		return false, fmt.Errorf("trigger alert %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, s.existsLocked(ctx, "alerts", id)
	}
	return true, nil
}

func (s *SQLiteStore) AppendSignal(ctx context.Context, sig model.Signal) error {
	rationale, err := json.Marshal(sig.Rationale)
	if err != nil {
		return fmt.Errorf("encode rationale: %w", err)
	}
	indicators, err := json.Marshal(sig.Indicators)
	if err != nil {
		return fmt.Errorf("encode indicators: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `INSERT INTO signals_history
		(id, symbol, timeframe, direction, confidence, strength, entry_price, take_profit,
		 stop_loss, risk_reward_ratio, volume_24h, rationale, indicators, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		sig.ID, sig.Symbol, sig.Timeframe, sig.Direction, sig.Confidence, sig.Strength,
		sig.EntryPrice, sig.TakeProfit, sig.StopLoss, sig.RiskRewardRatio, sig.Volume24h,
		string(rationale), string(indicators), sig.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

// RecentSignals returns the newest signals first. An empty symbol matches all.
func (s *SQLiteStore) RecentSignals(ctx context.Context, symbol string, limit int) ([]model.Signal, error) {
	if limit <= 0 {
		limit = 10
	}
	q := `SELECT id, symbol, timeframe, direction, confidence, strength, entry_price, take_profit,
		stop_loss, risk_reward_ratio, volume_24h, rationale, indicators, created_at
		FROM signals_history`
	args := []any{}
	if symbol != "" {
		q += ` WHERE symbol = ?`
		args = append(args, strings.ToUpper(symbol))
	}
	q += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var out []model.Signal
	for rows.Next() {
		var (
			sig                   model.Signal
			rationale, indicators string
			created               int64
		)
		if err := rows.Scan(&sig.ID, &sig.Symbol, &sig.Timeframe, &sig.Direction, &sig.Confidence,
			&sig.Strength, &sig.EntryPrice, &sig.TakeProfit, &sig.StopLoss, &sig.RiskRewardRatio,
			&sig.Volume24h, &rationale, &indicators, &created); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		if err := json.Unmarshal([]byte(rationale), &sig.Rationale); err != nil {
			log.Printf("[WARN] signal %s has unreadable rationale: %v", sig.ID, err)
		}
		if err := json.Unmarshal([]byte(indicators), &sig.Indicators); err != nil {
			log.Printf("[WARN] signal %s has unreadable indicators: %v", sig.ID, err)
		}
		sig.CreatedAt = time.UnixMilli(created)
		out = append(out, sig)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM positions WHERE status = 'OPEN'),
		(SELECT COUNT(*) FROM alerts WHERE triggered = 0),
		(SELECT COUNT(*) FROM signals_history)`).Scan(&st.OpenPositions, &st.ActiveAlerts, &st.TotalSignals)
	if err != nil {
		return st, fmt.Errorf("query stats: %w", err)
	}
	return st, nil
}

func (s *SQLiteStore) Close() error {
	log.Println("[INFO] closing sqlite store")
	return s.db.Close()
}
