package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cascadeBot/internal/domain"
	"cascadeBot/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements ports.PositionRepository, ports.TradeRepository and
// ports.KlineRepository using SQLite. The TP ladder and per-trade TP hits
// are stored as JSON columns; the lifecycle engine rebuilds its in-memory
// state from them after a restart.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/cascade_bot.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// WAL mode for better concurrency between the tracker and admin reads.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "SQLite database ready", map[string]interface{}{"path": dbPath})
	return repo, nil
}

func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS positions (
		id TEXT PRIMARY KEY,
		preset_id TEXT NOT NULL DEFAULT '',
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		entry_price REAL NOT NULL,
		quantity REAL NOT NULL,
		risk_pct REAL NOT NULL,
		sl_price REAL NOT NULL,
		current_sl REAL NOT NULL,
		tp_ladder TEXT NOT NULL,
		status TEXT NOT NULL,
		remaining_pct REAL NOT NULL,
		realized_pnl REAL NOT NULL DEFAULT 0,
		unrealized_pnl REAL NOT NULL DEFAULT 0,
		opened_at TIMESTAMP NOT NULL,
		closed_at TIMESTAMP DEFAULT NULL,
		close_reason TEXT DEFAULT NULL,
		bar_count INTEGER NOT NULL DEFAULT 0,
		max_price REAL NOT NULL DEFAULT 0,
		min_price REAL NOT NULL DEFAULT 0,
		max_profit_pct REAL NOT NULL DEFAULT 0,
		max_loss_pct REAL NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS trade_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		position_id TEXT NOT NULL,
		preset_id TEXT NOT NULL DEFAULT '',
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		interval TEXT NOT NULL DEFAULT '',
		entry_price REAL NOT NULL,
		exit_price REAL NOT NULL,
		quantity REAL NOT NULL,
		pnl_pct REAL NOT NULL,
		pnl REAL NOT NULL,
		entry_time TIMESTAMP NOT NULL,
		exit_time TIMESTAMP NOT NULL,
		duration_bars INTEGER NOT NULL DEFAULT 0,
		close_reason TEXT NULL,
		tp_hits TEXT NOT NULL DEFAULT '[]',
		max_profit_pct REAL NOT NULL DEFAULT 0,
		max_loss_pct REAL NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS klines (
		symbol TEXT NOT NULL,
		interval TEXT NOT NULL,
		open_time TIMESTAMP NOT NULL,
		close_time TIMESTAMP NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume REAL NOT NULL,
		PRIMARY KEY (symbol, interval, open_time)
	);

	CREATE INDEX IF NOT EXISTS idx_positions_symbol_status ON positions (symbol, status);
	CREATE INDEX IF NOT EXISTS idx_trade_history_symbol_entry_time ON trade_history (symbol, entry_time);
	CREATE INDEX IF NOT EXISTS idx_klines_lookup ON klines (symbol, interval, open_time);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- PositionRepository Implementation ---

// Create saves a new position.
func (r *Repository) Create(ctx context.Context, pos *domain.Position) error {
	const query = `
	INSERT INTO positions (id, preset_id, symbol, side, entry_price, quantity, risk_pct,
	                       sl_price, current_sl, tp_ladder, status, remaining_pct,
	                       realized_pnl, unrealized_pnl, opened_at, bar_count,
	                       max_price, min_price, max_profit_pct, max_loss_pct)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	ladder, err := json.Marshal(pos.TPLadder)
	if err != nil {
		return fmt.Errorf("failed to marshal TP ladder for position %s: %w", pos.ID, err)
	}
	_, err = r.db.ExecContext(ctx, query,
		pos.ID, pos.PresetID, pos.Symbol, pos.Side, pos.EntryPrice, pos.Quantity, pos.RiskPct,
		pos.SLPrice, pos.CurrentSL, string(ladder), pos.Status, pos.RemainingPct,
		pos.RealizedPnL, pos.UnrealizedPnL, pos.OpenedAt, pos.BarCount,
		pos.MaxPrice, pos.MinPrice, pos.MaxProfitPct, pos.MaxLossPct)
	if err != nil {
		return fmt.Errorf("failed to insert position %s for symbol %s: %w", pos.ID, pos.Symbol, err)
	}
	r.logger.Debug(ctx, "Position created", map[string]interface{}{"positionID": pos.ID, "symbol": pos.Symbol})
	return nil
}

// Update modifies an existing position (ladder hits, stop moves, status).
func (r *Repository) Update(ctx context.Context, pos *domain.Position) error {
	const query = `
	UPDATE positions
	SET current_sl = ?, tp_ladder = ?, status = ?, remaining_pct = ?,
	    realized_pnl = ?, unrealized_pnl = ?, closed_at = ?, close_reason = ?,
	    bar_count = ?, max_price = ?, min_price = ?, max_profit_pct = ?, max_loss_pct = ?
	WHERE id = ?`

	ladder, err := json.Marshal(pos.TPLadder)
	if err != nil {
		return fmt.Errorf("failed to marshal TP ladder for position %s: %w", pos.ID, err)
	}
	var closedAt sql.NullTime
	if !pos.ClosedAt.IsZero() {
		closedAt = sql.NullTime{Time: pos.ClosedAt, Valid: true}
	}
	var closeReason sql.NullString
	if pos.CloseReason != "" {
		closeReason = sql.NullString{String: string(pos.CloseReason), Valid: true}
	}

	result, err := r.db.ExecContext(ctx, query,
		pos.CurrentSL, string(ladder), pos.Status, pos.RemainingPct,
		pos.RealizedPnL, pos.UnrealizedPnL, closedAt, closeReason,
		pos.BarCount, pos.MaxPrice, pos.MinPrice, pos.MaxProfitPct, pos.MaxLossPct,
		pos.ID)
	if err != nil {
		return fmt.Errorf("failed to update position %s: %w", pos.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for position %s: %w", pos.ID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("position %s not found for update: %w", pos.ID, ports.ErrNotFound)
	}
	r.logger.Debug(ctx, "Position updated", map[string]interface{}{"positionID": pos.ID, "status": pos.Status})
	return nil
}

const positionColumns = `
	id, preset_id, symbol, side, entry_price, quantity, risk_pct,
	sl_price, current_sl, tp_ladder, status, remaining_pct,
	realized_pnl, unrealized_pnl, opened_at, closed_at, close_reason,
	bar_count, max_price, min_price, max_profit_pct, max_loss_pct`

// FindOpenBySymbol retrieves the currently open position for a symbol, if any.
func (r *Repository) FindOpenBySymbol(ctx context.Context, symbol string) (*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE symbol = ? AND status != ? LIMIT 1`

	row := r.db.QueryRowContext(ctx, query, symbol, domain.StatusClosed)
	pos, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query open position for symbol %s: %w", symbol, err)
	}
	return pos, nil
}

// FindOpen retrieves all open positions for restart recovery.
func (r *Repository) FindOpen(ctx context.Context) ([]*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE status != ? ORDER BY opened_at`

	rows, err := r.db.QueryContext(ctx, query, domain.StatusClosed)
	if err != nil {
		return nil, fmt.Errorf("failed to query open positions: %w", err)
	}
	defer rows.Close()

	positions := make([]*domain.Position, 0)
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position during FindOpen: %w", err)
		}
		positions = append(positions, pos)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating position rows: %w", err)
	}
	return positions, nil
}

// FindByID retrieves a position by ID. Returns nil, nil if not found.
func (r *Repository) FindByID(ctx context.Context, id string) (*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	pos, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query position by ID %s: %w", id, err)
	}
	return pos, nil
}

// --- TradeRepository Implementation ---

// CreateTrade saves a new trade record and returns its assigned row ID.
func (r *Repository) CreateTrade(ctx context.Context, trade *domain.Trade) (int64, error) {
	const query = `
	INSERT INTO trade_history (position_id, preset_id, symbol, side, interval,
	                           entry_price, exit_price, quantity, pnl_pct, pnl,
	                           entry_time, exit_time, duration_bars, close_reason,
	                           tp_hits, max_profit_pct, max_loss_pct)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	hits, err := json.Marshal(trade.TPHits)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal TP hits for trade %s: %w", trade.PositionID, err)
	}
	result, err := r.db.ExecContext(ctx, query,
		trade.PositionID, trade.PresetID, trade.Symbol, trade.Side, trade.Interval,
		trade.EntryPrice, trade.ExitPrice, trade.Quantity, trade.PnLPct, trade.PnL,
		trade.EntryTime, trade.ExitTime, trade.DurationBars, trade.CloseReason,
		string(hits), trade.MaxProfitPct, trade.MaxLossPct)
	if err != nil {
		return 0, fmt.Errorf("failed to insert trade history for symbol %s: %w", trade.Symbol, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for trade history %s: %w", trade.Symbol, err)
	}
	r.logger.Debug(ctx, "Trade history created", map[string]interface{}{"tradeID": id, "symbol": trade.Symbol, "pnl": trade.PnL})
	return id, nil
}

const tradeColumns = `
	position_id, preset_id, symbol, side, interval, entry_price, exit_price,
	quantity, pnl_pct, pnl, entry_time, exit_time, duration_bars, close_reason,
	tp_hits, max_profit_pct, max_loss_pct`

// FindBySymbol retrieves the most recent trades for a symbol, up to limit.
func (r *Repository) FindBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trade_history WHERE symbol = ? ORDER BY entry_time DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade history for symbol %s: %w", symbol, err)
	}
	defer rows.Close()
	return collectTrades(rows)
}

// FindAll retrieves all trades ordered by exit time.
func (r *Repository) FindAll(ctx context.Context) ([]*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trade_history ORDER BY exit_time`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query all trades: %w", err)
	}
	defer rows.Close()
	return collectTrades(rows)
}

// --- KlineRepository Implementation ---

// SaveKlines upserts a batch of candles inside one transaction.
func (r *Repository) SaveKlines(ctx context.Context, klines []*domain.Kline) error {
	if len(klines) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin kline transaction: %w", err)
	}
	defer tx.Rollback()

	const query = `
	INSERT INTO klines (symbol, interval, open_time, close_time, open, high, low, close, volume)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (symbol, interval, open_time) DO UPDATE SET
		close_time = excluded.close_time, open = excluded.open, high = excluded.high,
		low = excluded.low, close = excluded.close, volume = excluded.volume`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare kline upsert: %w", err)
	}
	defer stmt.Close()

	for _, k := range klines {
		if _, err := stmt.ExecContext(ctx, k.Symbol, k.Interval, k.OpenTime, k.CloseTime,
			k.Open, k.High, k.Low, k.Close, k.Volume); err != nil {
			return fmt.Errorf("failed to upsert kline %s %s %s: %w", k.Symbol, k.Interval, k.OpenTime, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit kline batch: %w", err)
	}
	r.logger.Debug(ctx, "Klines saved", map[string]interface{}{"count": len(klines)})
	return nil
}

// FindRange retrieves candles for (symbol, interval) within [start, end].
func (r *Repository) FindRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]*domain.Kline, error) {
	const query = `
	SELECT symbol, interval, open_time, close_time, open, high, low, close, volume
	FROM klines
	WHERE symbol = ? AND interval = ? AND open_time >= ? AND open_time <= ?
	ORDER BY open_time`

	rows, err := r.db.QueryContext(ctx, query, symbol, interval, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query klines for %s %s: %w", symbol, interval, err)
	}
	defer rows.Close()

	klines := make([]*domain.Kline, 0)
	for rows.Next() {
		k := &domain.Kline{IsFinal: true}
		if err := rows.Scan(&k.Symbol, &k.Interval, &k.OpenTime, &k.CloseTime,
			&k.Open, &k.High, &k.Low, &k.Close, &k.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan kline: %w", err)
		}
		klines = append(klines, k)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating kline rows: %w", err)
	}
	return klines, nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPosition(s scanner) (*domain.Position, error) {
	p := &domain.Position{}
	var side, status, ladder string
	var closedAt sql.NullTime
	var closeReason sql.NullString
	err := s.Scan(
		&p.ID, &p.PresetID, &p.Symbol, &side, &p.EntryPrice, &p.Quantity, &p.RiskPct,
		&p.SLPrice, &p.CurrentSL, &ladder, &status, &p.RemainingPct,
		&p.RealizedPnL, &p.UnrealizedPnL, &p.OpenedAt, &closedAt, &closeReason,
		&p.BarCount, &p.MaxPrice, &p.MinPrice, &p.MaxProfitPct, &p.MaxLossPct)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(ladder), &p.TPLadder); err != nil {
		return nil, fmt.Errorf("failed to unmarshal TP ladder for position %s: %w", p.ID, err)
	}
	p.Side = domain.Side(side)
	p.Status = domain.PositionStatus(status)
	if closedAt.Valid {
		p.ClosedAt = closedAt.Time
	}
	if closeReason.Valid {
		p.CloseReason = domain.CloseReason(closeReason.String)
	}
	return p, nil
}

func scanTrade(s scanner) (*domain.Trade, error) {
	t := &domain.Trade{}
	var side, hits string
	var closeReason sql.NullString
	err := s.Scan(
		&t.PositionID, &t.PresetID, &t.Symbol, &side, &t.Interval, &t.EntryPrice, &t.ExitPrice,
		&t.Quantity, &t.PnLPct, &t.PnL, &t.EntryTime, &t.ExitTime, &t.DurationBars, &closeReason,
		&hits, &t.MaxProfitPct, &t.MaxLossPct)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(hits), &t.TPHits); err != nil {
		return nil, fmt.Errorf("failed to unmarshal TP hits for trade %s: %w", t.PositionID, err)
	}
	t.Side = domain.Side(side)
	if closeReason.Valid {
		t.CloseReason = domain.CloseReason(closeReason.String)
	} else {
		t.CloseReason = domain.CloseReasonUnknown
	}
	return t, nil
}

func collectTrades(rows *sql.Rows) ([]*domain.Trade, error) {
	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade history row: %w", err)
		}
		trades = append(trades, trade)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade history rows: %w", err)
	}
	return trades, nil
}
