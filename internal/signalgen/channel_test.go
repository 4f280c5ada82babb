package signalgen

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cascadeBot/internal/domain"
)

func flatKlines(n int) []*domain.Kline {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]*domain.Kline, n)
	for i := 0; i < n; i++ {
		out[i] = &domain.Kline{
			OpenTime:  start.Add(time.Duration(i) * time.Hour),
			CloseTime: start.Add(time.Duration(i+1) * time.Hour),
			Symbol:    "BTCUSDT",
			Interval:  "1h",
			Open:      100,
			High:      105,
			Low:       95,
			Close:     100,
			Volume:    1000,
			IsFinal:   true,
		}
	}
	return out
}

func TestMinBarsFor(t *testing.T) {
	// The ATR period dominates small channel windows.
	assert.Equal(t, 14, MinBarsFor(domain.IndicatorParams{I1: 5, I2: 5}))
	assert.Equal(t, 60, MinBarsFor(domain.IndicatorParams{I1: 60, I2: 14}))
	assert.Equal(t, 20, MinBarsFor(domain.IndicatorParams{I1: 10, I2: 20}))
}

func TestChannelSeriesInsufficientHistory(t *testing.T) {
	_, err := ChannelSeries(flatKlines(10), domain.IndicatorParams{I1: 5, I2: 5, I3: 1, I4: 1, I5: 1})
	require.Error(t, err)
}

func TestChannelSeriesInvalidPeriods(t *testing.T) {
	_, err := ChannelSeries(flatKlines(20), domain.IndicatorParams{I1: 0, I2: 5})
	require.Error(t, err)
}

func TestChannelAtFlatSeries(t *testing.T) {
	p := domain.IndicatorParams{I1: 5, I2: 5, I3: 1, I4: 1, I5: 1}
	snap, err := ChannelAt(flatKlines(20), p)
	require.NoError(t, err)

	assert.InDelta(t, 105.0, snap.HighChannel, 1e-9)
	assert.InDelta(t, 95.0, snap.LowChannel, 1e-9)
	assert.InDelta(t, 100.0, snap.MidChannel, 1e-9)
	assert.InDelta(t, 10.0, snap.Width(), 1e-9)
	assert.InDelta(t, 10.0, snap.ATR, 1e-9)
	assert.InDelta(t, 0.0, snap.Stdev, 1e-9)
	// mid*(1+1%) + atr*1 + stdev*1
	assert.InDelta(t, 111.0, snap.LongTrigger, 1e-9)
	assert.InDelta(t, 89.0, snap.ShortTrigger, 1e-9)
}

func TestChannelSeriesWarmupIsNaN(t *testing.T) {
	p := domain.IndicatorParams{I1: 5, I2: 5, I3: 1, I4: 1, I5: 1}
	series, err := ChannelSeries(flatKlines(20), p)
	require.NoError(t, err)
	require.Len(t, series, 20)

	assert.True(t, math.IsNaN(series[0].LongTrigger))
	assert.False(t, math.IsNaN(series[len(series)-1].LongTrigger))
}

func TestBreakout(t *testing.T) {
	snap := ChannelSnapshot{LongTrigger: 111, ShortTrigger: 89}

	tests := []struct {
		name     string
		high     float64
		low      float64
		wantSide domain.Side
		wantOK   bool
	}{
		{"inside channel", 105, 95, "", false},
		{"long breakout", 112, 95, domain.Long, true},
		{"short breakout", 105, 88, domain.Short, true},
		{"both sides, long wins", 112, 88, domain.Long, true},
		{"touch is not a cross", 111, 89, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			side, ok := Breakout(&domain.Kline{High: tt.high, Low: tt.low}, snap)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantSide, side)
		})
	}
}

func TestBreakoutUndefinedTriggers(t *testing.T) {
	snap := ChannelSnapshot{LongTrigger: math.NaN(), ShortTrigger: math.NaN()}
	_, ok := Breakout(&domain.Kline{High: 1000, Low: 0}, snap)
	assert.False(t, ok)
}

func TestApplyFiltersVolume(t *testing.T) {
	cfg := DefaultFilterConfig()
	cfg.VolumeEnabled = true
	klines := flatKlines(25)

	// Average volume, no expansion on the breakout bar.
	res := ApplyFilters(klines, domain.Long, cfg)
	assert.False(t, res.Passed)
	assert.Equal(t, "volume", res.Rejected)

	// Breakout bar volume well above the rolling average passes.
	klines[len(klines)-1].Volume = 5000
	res = ApplyFilters(klines, domain.Long, cfg)
	assert.True(t, res.Passed)
}

func TestApplyFiltersDisabledByDefault(t *testing.T) {
	res := ApplyFilters(flatKlines(25), domain.Short, DefaultFilterConfig())
	assert.True(t, res.Passed)
	assert.Empty(t, res.Rejected)
}
