package ports

import (
	"context"
	"time"

	"cascadeBot/internal/domain"
)

// MarketDataClient defines the market-data surface of an exchange.
// Order routing is deliberately absent: the core simulates or records
// intended fills and never places orders.
type MarketDataClient interface {
	// Ping checks connectivity to the exchange API.
	Ping(ctx context.Context) error

	// GetServerTime retrieves the current server time from the exchange.
	GetServerTime(ctx context.Context) (time.Time, error)

	// GetTickerPrice retrieves the last ticker price for a given symbol.
	GetTickerPrice(ctx context.Context, symbol string) (float64, error)

	// GetKlines retrieves the most recent klines for the given symbol.
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*domain.Kline, error)

	// GetKlinesRange retrieves historical klines between start and end,
	// paging through the exchange's per-request limit.
	GetKlinesRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]*domain.Kline, error)

	// StreamKlines starts a kline stream for one symbol/interval. The handler
	// receives every update; callers filter on IsFinal. Returns done/stop
	// channels controlling the stream.
	StreamKlines(ctx context.Context, symbol, interval string, handler func(kline *domain.Kline), errHandler func(err error)) (doneCh chan struct{}, stopCh chan struct{}, err error)
}
