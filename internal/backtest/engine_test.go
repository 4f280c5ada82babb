package backtest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cascadeBot/internal/domain"
	"cascadeBot/internal/ports"
)

// hourlyBars builds quiet bars with a half-point range around close 100.
func hourlyBars(n int) []*domain.Kline {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]*domain.Kline, n)
	for i := 0; i < n; i++ {
		out[i] = &domain.Kline{
			OpenTime:  start.Add(time.Duration(i) * time.Hour),
			CloseTime: start.Add(time.Duration(i+1) * time.Hour),
			Symbol:    "BTCUSDT",
			Interval:  "1h",
			Open:      100,
			High:      100.5,
			Low:       99.5,
			Close:     100,
			Volume:    1000,
			IsFinal:   true,
		}
	}
	return out
}

// staticProvider serves the same preset for every regime, keeping exit levels
// fixed across the run.
type staticProvider struct {
	preset *domain.Preset
}

func (s staticProvider) ActiveFor(string, string, domain.Regime) (*domain.Preset, error) {
	return s.preset, nil
}

func fastPreset() *domain.Preset {
	return &domain.Preset{
		ID:         "preset-1",
		Symbol:     "BTCUSDT",
		Interval:   "1h",
		Regime:     domain.RegimeNormal,
		Params:     domain.IndicatorParams{I1: 5, I2: 5, I3: 0.1, I4: 1, I5: 1},
		SLPct:      8.5,
		TPPcts:     [domain.NumTPLevels]float64{1.0, 2.0, 3.0, 4.0, 7.5, 14.0},
		TPSizePcts: [domain.NumTPLevels]float64{17, 17, 17, 17, 16, 16},
		Active:     true,
	}
}

func fastEngine() *Engine {
	return NewEngine(Config{
		InitialBalance: 10000,
		ATRPeriod:      2,
		BaselinePeriod: 3,
	})
}

func TestIntervalDuration(t *testing.T) {
	d, err := IntervalDuration("30m")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, d)

	_, err = IntervalDuration("7m")
	require.ErrorIs(t, err, ports.ErrInvalidRequest)
}

func TestCheckSeriesEmpty(t *testing.T) {
	err := CheckSeries(nil, "1h", 0)
	require.ErrorIs(t, err, ports.ErrInsufficientHistory)
}

func TestCheckSeriesNonMonotonic(t *testing.T) {
	klines := hourlyBars(10)
	klines[5].OpenTime = klines[4].OpenTime

	err := CheckSeries(klines, "1h", 0)
	require.ErrorIs(t, err, ports.ErrNonMonotonicSeries)
}

func TestCheckSeriesGap(t *testing.T) {
	klines := hourlyBars(10)
	// A 3-bar gap is within the default tolerance, a 5-bar gap is not.
	for i := 5; i < 10; i++ {
		klines[i].OpenTime = klines[i].OpenTime.Add(3 * time.Hour)
		klines[i].CloseTime = klines[i].CloseTime.Add(3 * time.Hour)
	}
	require.NoError(t, CheckSeries(klines, "1h", 0))

	for i := 5; i < 10; i++ {
		klines[i].OpenTime = klines[i].OpenTime.Add(2 * time.Hour)
		klines[i].CloseTime = klines[i].CloseTime.Add(2 * time.Hour)
	}
	err := CheckSeries(klines, "1h", 0)
	require.ErrorIs(t, err, ports.ErrSeriesGap)
}

func TestRunNilProvider(t *testing.T) {
	_, err := fastEngine().Run(context.Background(), "BTCUSDT", "1h", hourlyBars(50), nil)
	require.ErrorIs(t, err, ports.ErrInvalidRequest)
}

func TestRunInsufficientHistory(t *testing.T) {
	e := NewEngine(Config{}) // default classifier needs 114 bars
	_, err := e.Run(context.Background(), "BTCUSDT", "1h", hourlyBars(50), FixedPreset{Preset: fastPreset()})
	require.ErrorIs(t, err, ports.ErrInsufficientHistory)
}

func TestRunContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := fastEngine().Run(ctx, "BTCUSDT", "1h", hourlyBars(50), FixedPreset{Preset: fastPreset()})
	require.ErrorIs(t, err, ports.ErrContextCanceled)
}

func TestRunNoBreakoutsNoTrades(t *testing.T) {
	res, err := fastEngine().Run(context.Background(), "BTCUSDT", "1h", hourlyBars(50), staticProvider{preset: fastPreset()})
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
	require.Len(t, res.Equity, 50)
	assert.InDelta(t, 10000, res.FinalBalance, 1e-9)
	assert.InDelta(t, 10000, res.Equity[49].Value, 1e-9)
}

// breakoutBars is a quiet series with a long breakout at bar 20 followed by a
// stop-out at bar 21.
func breakoutBars() []*domain.Kline {
	klines := hourlyBars(60)
	klines[20].High = 112
	klines[21].Low = 88
	klines[21].Close = 92
	return klines
}

func TestRunOpensAndStopsOut(t *testing.T) {
	res, err := fastEngine().Run(context.Background(), "BTCUSDT", "1h", breakoutBars(), staticProvider{preset: fastPreset()})
	require.NoError(t, err)
	require.NotEmpty(t, res.Trades)

	first := res.Trades[0]
	assert.Equal(t, "BTCUSDT-1h-1", first.PositionID)
	assert.Equal(t, domain.Long, first.Side)
	assert.InDelta(t, 100, first.EntryPrice, 1e-9)
	assert.Equal(t, domain.CloseReasonStopLoss, first.CloseReason)
	assert.InDelta(t, 100*(1-8.5/100), first.ExitPrice, 1e-9)
	assert.Negative(t, first.PnL)
	assert.Empty(t, first.TPHits)
	assert.Equal(t, 1, first.DurationBars)
}

func TestRunClosesOpenPositionAtEndOfData(t *testing.T) {
	klines := hourlyBars(40)
	klines[len(klines)-1].High = 112 // breakout on the final bar

	res, err := fastEngine().Run(context.Background(), "BTCUSDT", "1h", klines, staticProvider{preset: fastPreset()})
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, domain.CloseReasonManual, res.Trades[0].CloseReason)
	assert.InDelta(t, 100, res.Trades[0].ExitPrice, 1e-9)
}

func TestRunIsDeterministic(t *testing.T) {
	e := fastEngine()
	provider := staticProvider{preset: fastPreset()}

	a, err := e.Run(context.Background(), "BTCUSDT", "1h", breakoutBars(), provider)
	require.NoError(t, err)
	b, err := e.Run(context.Background(), "BTCUSDT", "1h", breakoutBars(), provider)
	require.NoError(t, err)

	require.Equal(t, len(a.Trades), len(b.Trades))
	for i := range a.Trades {
		assert.Equal(t, a.Trades[i], b.Trades[i], "trade %d", i)
	}
	assert.Equal(t, a.Equity, b.Equity)
	assert.InDelta(t, a.FinalBalance, b.FinalBalance, 1e-12)
}

func TestFixedFractionalSize(t *testing.T) {
	size := FixedFractionalSize(2)

	qty, riskPct := size(10000, 100, 91.5)
	assert.InDelta(t, 2, riskPct, 1e-9)
	// Risked amount equals 2% of equity at the stop distance.
	assert.InDelta(t, 10000*0.02, qty*(100-91.5), 1e-9)

	qty, _ = size(10000, 100, 100)
	assert.Zero(t, qty)
	qty, _ = size(0, 100, 91.5)
	assert.Zero(t, qty)
}

func TestSequentialTradeIDs(t *testing.T) {
	klines := hourlyBars(80)
	// Two separated breakout/stop-out pairs.
	klines[20].High = 112
	klines[21].Low = 88
	klines[21].Close = 92
	klines[50].High = 112
	klines[51].Low = 80
	klines[51].Close = 85

	res, err := fastEngine().Run(context.Background(), "BTCUSDT", "1h", klines, staticProvider{preset: fastPreset()})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(res.Trades), 2)
	for i, tr := range res.Trades {
		assert.Equal(t, fmt.Sprintf("BTCUSDT-1h-%d", i+1), tr.PositionID)
	}
}
