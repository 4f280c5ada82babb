package volatility

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cascadeBot/internal/domain"
)

// flatKlines builds bars with a constant true range of 10 around close 100.
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

func TestClassifierDefaults(t *testing.T) {
	c := NewClassifier(0, 0)
	assert.Equal(t, DefaultATRPeriod+DefaultBaselinePeriod, c.MinBars())
}

func TestClassifyInsufficientHistory(t *testing.T) {
	c := NewClassifier(2, 3)
	_, err := c.Classify(flatKlines(c.MinBars() - 1))
	require.Error(t, err)
}

func TestClassifyStableMarket(t *testing.T) {
	c := NewClassifier(2, 3)
	snap, err := c.Classify(flatKlines(20))
	require.NoError(t, err)

	assert.Equal(t, domain.RegimeNormal, snap.Regime)
	assert.InDelta(t, 10.0, snap.ATR, 1e-9)
	assert.InDelta(t, 10.0, snap.Baseline, 1e-9)
	assert.InDelta(t, 1.0, snap.Ratio, 1e-9)
}

func TestClassifyVolatilitySpike(t *testing.T) {
	c := NewClassifier(2, 3)
	klines := flatKlines(20)
	last := klines[len(klines)-1]
	last.High = 125
	last.Low = 75

	snap, err := c.Classify(klines)
	require.NoError(t, err)

	// TR jumps from 10 to 50; ATR(2) becomes (10+50)/2 = 30 while the
	// baseline mean over the last 3 ATR values is (10+10+30)/3.
	assert.InDelta(t, 30.0, snap.ATR, 1e-9)
	assert.InDelta(t, 50.0/3, snap.Baseline, 1e-9)
	assert.Greater(t, snap.Ratio, 1.3)
	assert.Equal(t, domain.RegimeHigh, snap.Regime)
}

func TestClassifyQuietMarket(t *testing.T) {
	c := NewClassifier(2, 3)
	klines := flatKlines(20)
	// Collapse the ranges of the last two bars so the current ATR sits far
	// below its own baseline.
	for _, k := range klines[len(klines)-2:] {
		k.High = 100.5
		k.Low = 99.5
	}

	snap, err := c.Classify(klines)
	require.NoError(t, err)
	assert.Less(t, snap.Ratio, 0.7)
	assert.Equal(t, domain.RegimeLow, snap.Regime)
}

func TestSeriesAlignsWithInput(t *testing.T) {
	c := NewClassifier(2, 3)
	klines := flatKlines(20)
	series, err := c.Series(klines)
	require.NoError(t, err)
	require.Len(t, series, len(klines))

	// Warmup bars carry the normal regime so that callers can index the
	// series with kline offsets without special-casing the head.
	for i := 0; i < c.MinBars()-1; i++ {
		assert.Equal(t, domain.RegimeNormal, series[i].Regime, "bar %d", i)
	}
	assert.Equal(t, domain.RegimeNormal, series[len(series)-1].Regime)
}

func TestRegimeAtWarmup(t *testing.T) {
	c := NewClassifier(2, 3)
	klines := flatKlines(20)
	regime, err := c.RegimeAt(klines, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.RegimeNormal, regime)
}

func TestMultipliersFor(t *testing.T) {
	tests := []struct {
		regime domain.Regime
		tp, sl float64
	}{
		{domain.RegimeLow, 0.8, 0.8},
		{domain.RegimeNormal, 1.0, 1.0},
		{domain.RegimeHigh, 1.3, 1.2},
		{domain.Regime("bogus"), 1.0, 1.0},
	}
	for _, tt := range tests {
		m := MultipliersFor(tt.regime)
		assert.Equal(t, tt.tp, m.TP, "regime %s", tt.regime)
		assert.Equal(t, tt.sl, m.SL, "regime %s", tt.regime)
	}
}

func TestRegimeFromRatioBoundaries(t *testing.T) {
	assert.Equal(t, domain.RegimeLow, domain.RegimeFromRatio(0.69))
	assert.Equal(t, domain.RegimeNormal, domain.RegimeFromRatio(0.7))
	assert.Equal(t, domain.RegimeNormal, domain.RegimeFromRatio(1.3))
	assert.Equal(t, domain.RegimeHigh, domain.RegimeFromRatio(1.31))
}
