package signalgen

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cascadeBot/internal/adapters/logger"
	"cascadeBot/internal/domain"
)

func testPreset() *domain.Preset {
	return &domain.Preset{
		ID:       "preset-1",
		Symbol:   "BTCUSDT",
		Interval: "1h",
		Regime:   domain.RegimeNormal,
		Params:   domain.IndicatorParams{I1: 5, I2: 5, I3: 0.1, I4: 1, I5: 1},
		SLPct:    8.5,
		TPPcts:   [domain.NumTPLevels]float64{1.0, 2.0, 3.0, 4.0, 7.5, 14.0},
		TPSizePcts: [domain.NumTPLevels]float64{
			17, 17, 17, 17, 16, 16,
		},
		Active: true,
	}
}

func newTestGenerator() *Generator {
	return NewGenerator(logger.NewStdLogger(logger.LevelError), DefaultFilterConfig(), time.Hour)
}

// quietKlines builds bars with a tight half-point range around close 100, so
// the triggers sit well clear of ordinary bars.
func quietKlines(n int) []*domain.Kline {
	klines := flatKlines(n)
	for _, k := range klines {
		k.High = 100.5
		k.Low = 99.5
	}
	return klines
}

// breakoutSeries is a quiet series whose last bar pierces the long trigger.
func breakoutSeries() []*domain.Kline {
	klines := quietKlines(20)
	klines[len(klines)-1].High = 112
	return klines
}

func TestCheckNoBreakout(t *testing.T) {
	g := newTestGenerator()
	sig, err := g.Check(context.Background(), quietKlines(20), testPreset())
	require.NoError(t, err)
	assert.Nil(t, sig)
}

func TestCheckLongBreakout(t *testing.T) {
	g := newTestGenerator()
	preset := testPreset()

	sig, err := g.Check(context.Background(), breakoutSeries(), preset)
	require.NoError(t, err)
	require.NotNil(t, sig)

	assert.Equal(t, domain.Long, sig.Side)
	assert.Equal(t, "BTCUSDT", sig.Symbol)
	assert.Equal(t, "1h", sig.Interval)
	assert.Equal(t, preset.ID, sig.PresetID)
	assert.Equal(t, domain.SignalPending, sig.Status)
	assert.InDelta(t, 100.0, sig.EntryPrice, 1e-9)
	assert.InDelta(t, 100*(1-8.5/100), sig.SLPrice, 1e-9)
	assert.InDelta(t, 101.0, sig.TPPrices[0], 1e-9)
	assert.InDelta(t, 114.0, sig.TPPrices[5], 1e-9)
	assert.True(t, sig.ExpiresAt.After(sig.CreatedAt))
}

func TestCheckInvalidPreset(t *testing.T) {
	g := newTestGenerator()
	preset := testPreset()
	preset.TPSizePcts[0] = 50 // sizes no longer sum to 100

	_, err := g.Check(context.Background(), breakoutSeries(), preset)
	require.Error(t, err)
}

func TestCheckDeduplicates(t *testing.T) {
	g := newTestGenerator()
	preset := testPreset()
	klines := breakoutSeries()

	first, err := g.Check(context.Background(), klines, preset)
	require.NoError(t, err)
	require.NotNil(t, first)

	// The same breakout on the next evaluation is suppressed while the first
	// signal is still valid.
	second, err := g.Check(context.Background(), klines, preset)
	require.NoError(t, err)
	assert.Nil(t, second)

	assert.Len(t, g.Active(), 1)
}

func TestCheckAfterFill(t *testing.T) {
	g := newTestGenerator()
	preset := testPreset()
	klines := breakoutSeries()

	first, err := g.Check(context.Background(), klines, preset)
	require.NoError(t, err)
	require.NotNil(t, first)

	g.MarkFilled(first)
	assert.Equal(t, domain.SignalFilled, first.Status)
	assert.Empty(t, g.Active())

	second, err := g.Check(context.Background(), klines, preset)
	require.NoError(t, err)
	assert.NotNil(t, second)
}

func TestExpiredSignalIsReplaced(t *testing.T) {
	g := newTestGenerator()
	preset := testPreset()
	klines := breakoutSeries()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }

	first, err := g.Check(context.Background(), klines, preset)
	require.NoError(t, err)
	require.NotNil(t, first)

	now = now.Add(2 * time.Hour) // past the one-hour expiry
	second, err := g.Check(context.Background(), klines, preset)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestActivePrunesExpired(t *testing.T) {
	g := newTestGenerator()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }

	sig, err := g.Check(context.Background(), breakoutSeries(), testPreset())
	require.NoError(t, err)
	require.NotNil(t, sig)

	now = now.Add(2 * time.Hour)
	assert.Empty(t, g.Active())
	assert.Equal(t, domain.SignalExpired, sig.Status)
}

func TestBuildSignalShortMirror(t *testing.T) {
	preset := testPreset()
	now := time.Now().UTC()
	sig := BuildSignal(preset, domain.Short, 200, now, time.Hour)

	assert.Equal(t, domain.Short, sig.Side)
	assert.InDelta(t, 200*(1+8.5/100), sig.SLPrice, 1e-9)
	for i := 0; i < domain.NumTPLevels; i++ {
		assert.InDelta(t, 200*(1-preset.TPPcts[i]/100), sig.TPPrices[i], 1e-9)
		assert.Less(t, sig.TPPrices[i], sig.EntryPrice)
	}
}

func TestScaleLadder(t *testing.T) {
	preset := testPreset()

	same := ScaleLadder(preset, domain.RegimeNormal)
	assert.Same(t, preset, same)

	high := ScaleLadder(preset, domain.RegimeHigh)
	assert.Equal(t, domain.RegimeHigh, high.Regime)
	assert.InDelta(t, 8.5*1.2, high.SLPct, 1e-9)
	for i := range high.TPPcts {
		assert.InDelta(t, preset.TPPcts[i]*1.3, high.TPPcts[i], 1e-9)
	}
	// The source preset is untouched.
	assert.InDelta(t, 8.5, preset.SLPct, 1e-9)
}
