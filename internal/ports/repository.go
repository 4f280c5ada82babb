package ports

import (
	"context"
	"time"

	"cascadeBot/internal/domain"
)

// PositionRepository defines the interface for storing and retrieving
// trading positions, including their TP ladders and ratcheted stops.
type PositionRepository interface {
	// Create saves a new position.
	Create(ctx context.Context, pos *domain.Position) error
	// Update modifies an existing position (ladder hits, stop moves, status).
	Update(ctx context.Context, pos *domain.Position) error
	// FindOpenBySymbol retrieves the currently open position for a symbol.
	// Returns nil, nil if no open position is found.
	FindOpenBySymbol(ctx context.Context, symbol string) (*domain.Position, error)
	// FindOpen retrieves all open positions, used to rebuild in-memory state
	// after a restart.
	FindOpen(ctx context.Context) ([]*domain.Position, error)
	// FindByID retrieves a position by ID. Returns nil, nil if not found.
	FindByID(ctx context.Context, id string) (*domain.Position, error)
}

// TradeRepository defines the interface for storing completed trades.
type TradeRepository interface {
	// CreateTrade saves a new trade record and returns its assigned row ID.
	CreateTrade(ctx context.Context, trade *domain.Trade) (int64, error)
	// FindBySymbol retrieves the most recent trades for a symbol, up to limit.
	FindBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.Trade, error)
	// FindAll retrieves all trades ordered by exit time.
	FindAll(ctx context.Context) ([]*domain.Trade, error)
}

// KlineRepository defines storage for candle history used by offline runs
// and the correlation window.
type KlineRepository interface {
	// SaveKlines upserts a batch of candles.
	SaveKlines(ctx context.Context, klines []*domain.Kline) error
	// FindRange retrieves candles for (symbol, interval) within [start, end],
	// ordered by open time.
	FindRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]*domain.Kline, error)
}

// PresetStore is the capability interface for preset lookup and persistence.
// The core never branches on the backing storage technology.
type PresetStore interface {
	// GetActive returns the active preset for (symbol, interval, regime).
	// Returns ErrNotFound when none is active.
	GetActive(ctx context.Context, symbol, interval string, regime domain.Regime) (*domain.Preset, error)
	// Save persists a preset, active or not.
	Save(ctx context.Context, preset *domain.Preset) error
	// List returns all stored presets.
	List(ctx context.Context) ([]*domain.Preset, error)
}
