// Package backtest replays kline history through the same lifecycle engine
// the live tracker uses. Runs are deterministic: identical inputs produce
// identical ledgers and equity curves, which is what makes optimizer scores
// comparable across evaluations.
package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"cascadeBot/internal/analytics"
	"cascadeBot/internal/domain"
	"cascadeBot/internal/lifecycle"
	"cascadeBot/internal/ports"
	"cascadeBot/internal/signalgen"
	"cascadeBot/internal/volatility"
)

// DefaultRiskPct is the equity share risked per trade when no sizing
// function is supplied.
const DefaultRiskPct = 2.0

// SizeFunc converts equity and stop distance into a position quantity and
// the risk percentage it represents.
type SizeFunc func(equity, entryPrice, slPrice float64) (quantity, riskPct float64)

// Config tunes a simulation run. The zero value picks sane defaults.
type Config struct {
	InitialBalance   float64
	GapToleranceBars int
	Resolution       lifecycle.Resolution
	Filters          signalgen.FilterConfig
	SizeFunc         SizeFunc
	ATRPeriod        int
	BaselinePeriod   int
}

// EquityPoint is one per-bar sample of balance plus open unrealized PnL.
type EquityPoint struct {
	Time  time.Time
	Value float64
}

// Result is a finished simulation: the trade ledger, the per-bar equity
// curve, and the derived performance report.
type Result struct {
	Symbol       string
	Interval     string
	Trades       []*domain.Trade
	Equity       []EquityPoint
	Metrics      *analytics.PerformanceMetrics
	FinalBalance float64
}

// Engine replays candles bar by bar. It is stateless between runs; one
// instance may be shared by concurrent goroutines as long as each call gets
// its own candle slice.
type Engine struct {
	cfg        Config
	classifier *volatility.Classifier
}

// NewEngine builds a simulation engine.
func NewEngine(cfg Config) *Engine {
	if cfg.InitialBalance <= 0 {
		cfg.InitialBalance = 10000
	}
	if cfg.SizeFunc == nil {
		cfg.SizeFunc = FixedFractionalSize(DefaultRiskPct)
	}
	return &Engine{
		cfg:        cfg,
		classifier: volatility.NewClassifier(cfg.ATRPeriod, cfg.BaselinePeriod),
	}
}

// FixedFractionalSize risks a fixed share of equity per trade, divided by the
// stop distance.
func FixedFractionalSize(riskPct float64) SizeFunc {
	return func(equity, entryPrice, slPrice float64) (float64, float64) {
		dist := math.Abs(entryPrice - slPrice)
		if dist <= 0 || equity <= 0 {
			return 0, riskPct
		}
		return equity * riskPct / 100 / dist, riskPct
	}
}

// Run replays the series against the provider's presets. At most one position
// is open at a time; an opposite breakout closes it and flips. The returned
// ledger holds only closed trades; a position still open at the end of data
// is closed at the final bar's close.
func (e *Engine) Run(ctx context.Context, symbol, interval string, klines []*domain.Kline, provider PresetProvider) (*Result, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: nil preset provider", ports.ErrInvalidRequest)
	}
	if err := CheckSeries(klines, interval, e.cfg.GapToleranceBars); err != nil {
		return nil, err
	}
	if len(klines) < e.classifier.MinBars() {
		return nil, fmt.Errorf("%w: need %d bars for regime classification, have %d",
			ports.ErrInsufficientHistory, e.classifier.MinBars(), len(klines))
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrContextCanceled, err)
	}

	regimes, err := e.classifier.Series(klines)
	if err != nil {
		return nil, err
	}

	// Channel series are cached per parameter set so regime switches do not
	// trigger recomputation.
	channels := make(map[domain.IndicatorParams][]signalgen.ChannelSnapshot)
	channelFor := func(p domain.IndicatorParams) ([]signalgen.ChannelSnapshot, error) {
		if s, ok := channels[p]; ok {
			return s, nil
		}
		s, err := signalgen.ChannelSeries(klines, p)
		if err != nil {
			return nil, err
		}
		channels[p] = s
		return s, nil
	}

	res := &Result{
		Symbol:   symbol,
		Interval: interval,
		Equity:   make([]EquityPoint, 0, len(klines)),
	}
	balance := e.cfg.InitialBalance
	var pos *domain.Position
	var posNotional float64
	seq := 0

	for i, bar := range klines {
		if pos != nil {
			events, err := lifecycle.AdvanceWith(pos, bar, e.cfg.Resolution)
			if err != nil {
				return nil, err
			}
			if closed := closedEvent(events); closed != nil {
				trade := buildTrade(pos, symbol, interval, posNotional, closed)
				res.Trades = append(res.Trades, trade)
				balance += trade.PnL
				pos = nil
			}
		}

		preset, perr := provider.ActiveFor(symbol, interval, regimes[i].Regime)
		if perr == nil && preset != nil {
			snaps, serr := channelFor(preset.Params)
			if serr == nil {
				if side, ok := signalgen.Breakout(bar, snaps[i]); ok {
					if pos != nil && pos.Side != side {
						events, cerr := lifecycle.CloseAt(pos, bar.Close, domain.CloseReasonSignal, bar.CloseTime)
						if cerr != nil {
							return nil, cerr
						}
						trade := buildTrade(pos, symbol, interval, posNotional, closedEvent(events))
						res.Trades = append(res.Trades, trade)
						balance += trade.PnL
						pos = nil
					}
					if pos == nil && signalgen.ApplyFilters(klines[:i+1], side, e.cfg.Filters).Passed {
						seq++
						pos, posNotional = e.open(preset, side, bar, balance, seq)
					}
				}
			}
		}

		equity := balance
		if pos != nil {
			equity += (pos.RealizedPnL + pos.UnrealizedPnL*pos.RemainingPct/100) / 100 * posNotional
		}
		res.Equity = append(res.Equity, EquityPoint{Time: bar.CloseTime, Value: equity})

		// Cancellation is honored between bars, keeping each bar atomic.
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("%w: %v", ports.ErrContextCanceled, err)
			}
		}
	}

	if pos != nil {
		last := klines[len(klines)-1]
		events, cerr := lifecycle.CloseAt(pos, last.Close, domain.CloseReasonManual, last.CloseTime)
		if cerr != nil {
			return nil, cerr
		}
		trade := buildTrade(pos, symbol, interval, posNotional, closedEvent(events))
		res.Trades = append(res.Trades, trade)
		balance += trade.PnL
	}

	res.FinalBalance = balance
	res.Metrics = analytics.AnalyzePerformance(res.Trades, e.cfg.InitialBalance)
	return res, nil
}

// open sizes and creates a position from a breakout bar. IDs are sequential
// rather than random so repeated runs produce identical ledgers.
func (e *Engine) open(preset *domain.Preset, side domain.Side, bar *domain.Kline, equity float64, seq int) (*domain.Position, float64) {
	sig := signalgen.BuildSignal(preset, side, bar.Close, bar.CloseTime, time.Hour)
	sig.ID = fmt.Sprintf("%s-%s-%d", preset.Symbol, preset.Interval, seq)
	quantity, riskPct := e.cfg.SizeFunc(equity, sig.EntryPrice, sig.SLPrice)
	if quantity <= 0 {
		return nil, 0
	}
	pos := domain.NewPositionFromSignal(sig, quantity, riskPct, preset.TPSizePcts, bar.CloseTime)
	return pos, sig.EntryPrice * quantity
}

func closedEvent(events []lifecycle.Event) *lifecycle.Event {
	for i := range events {
		if events[i].Type == lifecycle.EventClosed {
			return &events[i]
		}
	}
	return nil
}

// buildTrade projects a closed position into its immutable ledger record.
func buildTrade(pos *domain.Position, symbol, interval string, notional float64, closed *lifecycle.Event) *domain.Trade {
	trade := &domain.Trade{
		PositionID:   pos.ID,
		PresetID:     pos.PresetID,
		Symbol:       symbol,
		Side:         pos.Side,
		Interval:     interval,
		EntryPrice:   pos.EntryPrice,
		Quantity:     pos.Quantity,
		PnLPct:       pos.RealizedPnL,
		PnL:          pos.RealizedPnL / 100 * notional,
		EntryTime:    pos.OpenedAt,
		DurationBars: pos.BarCount,
		CloseReason:  pos.CloseReason,
		MaxProfitPct: pos.MaxProfitPct,
		MaxLossPct:   pos.MaxLossPct,
	}
	if closed != nil {
		trade.ExitPrice = closed.Price
		trade.ExitTime = closed.At
	}
	for i, tp := range pos.TPLadder {
		if !tp.Hit {
			continue
		}
		pct := (tp.Price - pos.EntryPrice) / pos.EntryPrice * 100
		if pos.Side == domain.Short {
			pct = -pct
		}
		trade.TPHits = append(trade.TPHits, domain.TPHit{
			Index:   i + 1,
			Price:   tp.Price,
			SizePct: tp.SizePct,
			PnLPct:  pct,
		})
	}
	return trade
}
