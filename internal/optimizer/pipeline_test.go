package optimizer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cascadeBot/internal/adapters/logger"
	"cascadeBot/internal/backtest"
	"cascadeBot/internal/domain"
	"cascadeBot/internal/ports"
	"cascadeBot/internal/presets"
)

// quietSeries builds hourly bars with a half-point range around close 100.
// No channel variant in the catalogue breaks out of it.
func quietSeries(n int) []*domain.Kline {
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

// channelPreset uses two-bar periods so the 15% perturbation sweep collapses
// the integer parameters back onto the base and only the float multipliers
// produce neighbors.
func channelPreset() *domain.Preset {
	return &domain.Preset{
		ID:         "base-1",
		Symbol:     "BTCUSDT",
		Interval:   "1h",
		Regime:     domain.RegimeNormal,
		Params:     domain.IndicatorParams{I1: 2, I2: 2, I3: 0.1, I4: 2, I5: 1},
		SLPct:      8.5,
		TPPcts:     [domain.NumTPLevels]float64{1.0, 2.0, 3.0, 4.0, 7.5, 14.0},
		TPSizePcts: [domain.NumTPLevels]float64{17, 17, 17, 17, 16, 16},
		Active:     true,
	}
}

func fastBacktestConfig() backtest.Config {
	return backtest.Config{
		InitialBalance: 10000,
		ATRPeriod:      2,
		BaselinePeriod: 3,
	}
}

func newTestOptimizer(t *testing.T, cfg Config) *Optimizer {
	t.Helper()
	o, err := New(cfg, logger.NewStdLogger(logger.LevelError))
	require.NoError(t, err)
	return o
}

// A flat series scores exactly 20 under the default weights: every component
// is clamped to zero except the drawdown term, which is perfect.
const flatSeriesScore = 20.0

func TestWalkForwardAcceptsStableSeries(t *testing.T) {
	o := newTestOptimizer(t, Config{
		Backtest:    fastBacktestConfig(),
		WalkForward: WalkForwardConfig{TrainMonths: 1, TestMonths: 1, StepMonths: 1, MinWindows: 2},
	})

	// 2200 hourly bars span just over three 30-day months: windows at offsets
	// zero and one month fit, a third does not.
	res, err := o.WalkForward(context.Background(), channelPreset(), quietSeries(2200))
	require.NoError(t, err)
	require.Len(t, res.Windows, 2)

	for i, w := range res.Windows {
		assert.InDelta(t, flatSeriesScore, w.TrainScore, 1e-9, "window %d", i)
		assert.InDelta(t, flatSeriesScore, w.TestScore, 1e-9, "window %d", i)
		assert.InDelta(t, 1.0, w.Efficiency, 1e-9, "window %d", i)
		assert.True(t, w.Passed, "window %d", i)
		assert.Zero(t, w.TrainTrades, "window %d", i)
		assert.Zero(t, w.TestTrades, "window %d", i)
	}
	assert.Equal(t, 2, res.PassedWindows)
	assert.InDelta(t, 1.0, res.AvgEfficiency, 1e-9)
	assert.InDelta(t, 1.0, res.MinEfficiency, 1e-9)
	assert.True(t, res.Accepted)
}

func TestWalkForwardRejectsWhenEfficiencyFloorUnmet(t *testing.T) {
	// An efficiency floor above 1.0 fails every window, so the majority rule
	// rejects the preset even though each window produced a defined score.
	o := newTestOptimizer(t, Config{
		Backtest: fastBacktestConfig(),
		WalkForward: WalkForwardConfig{
			TrainMonths:   1,
			TestMonths:    1,
			StepMonths:    1,
			MinWindows:    2,
			MinEfficiency: 1.01,
		},
	})

	res, err := o.WalkForward(context.Background(), channelPreset(), quietSeries(2200))
	require.NoError(t, err)
	require.Len(t, res.Windows, 2)
	assert.Zero(t, res.PassedWindows)
	for i, w := range res.Windows {
		assert.False(t, w.Passed, "window %d", i)
	}
	assert.False(t, res.Accepted)
}

func TestWalkForwardInsufficientHistory(t *testing.T) {
	o := newTestOptimizer(t, Config{
		Backtest:    fastBacktestConfig(),
		WalkForward: WalkForwardConfig{TrainMonths: 1, TestMonths: 1, StepMonths: 1, MinWindows: 2},
	})

	_, err := o.WalkForward(context.Background(), channelPreset(), nil)
	require.ErrorIs(t, err, ports.ErrInsufficientHistory)

	// 100 hourly bars are far short of the three months the windows need.
	_, err = o.WalkForward(context.Background(), channelPreset(), quietSeries(100))
	require.ErrorIs(t, err, ports.ErrInsufficientHistory)
}

func TestRobustnessStableSeriesScoresFull(t *testing.T) {
	o := newTestOptimizer(t, Config{Backtest: fastBacktestConfig()})

	res, err := o.Robustness(context.Background(), channelPreset(), quietSeries(300))
	require.NoError(t, err)

	assert.InDelta(t, flatSeriesScore, res.BaseScore, 1e-9)
	require.Len(t, res.Neighbors, 6)
	for _, n := range res.Neighbors {
		assert.True(t, n.Valid, "neighbor %s dir %d", n.Param, n.Direction)
		assert.InDelta(t, flatSeriesScore, n.Score, 1e-9)
	}
	assert.InDelta(t, 1.0, res.Score, 1e-9)
}

// fragileSpikeSeries is quiet history with a single high spike whose peak sits
// between the base long trigger and the triggers of the loosened neighbors,
// followed by a slow fade. The base parameters never trade; lowering the ATR
// multiplier or the midpoint offset by 15% admits a long that bleeds into a
// losing end-of-data close.
func fragileSpikeSeries() []*domain.Kline {
	klines := quietSeries(167)

	spike := klines[130]
	spike.High = 107.4

	shelf := klines[131]
	shelf.Open = 100.1
	shelf.High = 100.4
	shelf.Low = 100.1
	shelf.Close = 100.1

	level := 100.1
	for i := 132; i < 167; i++ {
		k := klines[i]
		k.Open = level
		level -= 0.2
		k.Close = level
		k.High = k.Open + 0.1
		k.Low = k.Close - 0.1
	}
	return klines
}

func TestRobustnessFlagsFragileParams(t *testing.T) {
	cfg := fastBacktestConfig()
	// Oversized positions turn the fade into a drawdown past the scoring cap,
	// zeroing the loosened neighbors' composite scores.
	cfg.SizeFunc = backtest.FixedFractionalSize(35)
	o := newTestOptimizer(t, Config{Backtest: cfg})

	res, err := o.Robustness(context.Background(), channelPreset(), fragileSpikeSeries())
	require.NoError(t, err)

	// The base parameters stay flat on this series.
	assert.InDelta(t, flatSeriesScore, res.BaseScore, 1e-9)
	require.Len(t, res.Neighbors, 6)

	invalid := map[string]int{}
	for _, n := range res.Neighbors {
		if !n.Valid {
			invalid[n.Param] = n.Direction
		}
	}
	assert.Equal(t, map[string]int{"i4": -1, "i5": -1}, invalid)
	assert.InDelta(t, 4.0/6.0, res.Score, 1e-9)
}

func TestOptimizeRejectsEverythingOnFlatSeries(t *testing.T) {
	// Default gates require at least 20 trades; a flat series produces none
	// for any catalogue variant, so no candidate survives the grid search.
	o := newTestOptimizer(t, Config{
		Backtest:    fastBacktestConfig(),
		WalkForward: WalkForwardConfig{TrainMonths: 1, TestMonths: 1, StepMonths: 1, MinWindows: 2},
	})

	res, err := o.Optimize(context.Background(), channelPreset(), quietSeries(2200))
	require.ErrorIs(t, err, ports.ErrNoEligiblePreset)
	require.NotNil(t, res)
	assert.Equal(t, presets.VariantCount, res.Grid.Evaluated)
	assert.Zero(t, res.Grid.Valid)
	assert.Empty(t, res.Candidates)
	assert.Nil(t, res.Best)
}

func TestOptimizeActivatesCandidateUnderPermissiveGates(t *testing.T) {
	base := channelPreset()
	o := newTestOptimizer(t, Config{
		Gates:       Gates{MaxSharpe: 100, MaxDrawdown: 100},
		Backtest:    fastBacktestConfig(),
		WalkForward: WalkForwardConfig{TrainMonths: 1, TestMonths: 1, StepMonths: 1, MinWindows: 2},
	})

	res, err := o.Optimize(context.Background(), base, quietSeries(2200))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, presets.VariantCount, res.Grid.Evaluated)
	assert.Equal(t, presets.VariantCount, res.Grid.Valid)

	// The first survivor clears walk-forward and robustness and is activated.
	require.Len(t, res.Candidates, 1)
	assert.True(t, res.Candidates[0].Accepted)
	assert.Empty(t, res.Candidates[0].Reasons)

	require.NotNil(t, res.Best)
	assert.True(t, res.Best.Active)
	assert.Equal(t, base.Symbol, res.Best.Symbol)
	assert.Equal(t, base.Interval, res.Best.Interval)
	assert.NotEmpty(t, res.Best.ID)
	assert.NotEqual(t, base.ID, res.Best.ID)
	assert.InDelta(t, 1.0, res.Best.Robustness, 1e-9)
	assert.Zero(t, res.Best.Metrics.TotalTrades)
	assert.False(t, res.Best.GeneratedAt.IsZero())
}
