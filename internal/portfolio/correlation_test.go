package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrelationInsufficientData(t *testing.T) {
	tr := NewCorrelationTracker(0)
	_, ok := tr.Correlation("BTCUSDT", "ETHUSDT")
	assert.False(t, ok)

	// 20 closes give only 19 returns, one short of the minimum.
	for i := 0; i < 20; i++ {
		price := 100 + float64(i%3)
		tr.Observe("BTCUSDT", price)
		tr.Observe("ETHUSDT", price*20)
	}
	_, ok = tr.Correlation("BTCUSDT", "ETHUSDT")
	assert.False(t, ok)
}

func TestCorrelationPerfectlyCorrelated(t *testing.T) {
	tr := correlatedTracker()

	corr, ok := tr.Correlation("BTCUSDT", "ETHUSDT")
	require.True(t, ok)
	assert.InDelta(t, 1.0, corr, 1e-9)

	anti, ok := tr.Correlation("BTCUSDT", "LTCUSDT")
	require.True(t, ok)
	assert.InDelta(t, -1.0, anti, 1e-6)
}

func TestCorrelationConstantSeries(t *testing.T) {
	tr := NewCorrelationTracker(0)
	for i := 0; i < 30; i++ {
		tr.Observe("BTCUSDT", 100) // zero variance
		tr.Observe("ETHUSDT", 2000+float64(i%5))
	}
	_, ok := tr.Correlation("BTCUSDT", "ETHUSDT")
	assert.False(t, ok)
}

func TestObserveTrimsWindow(t *testing.T) {
	tr := NewCorrelationTracker(25)
	for i := 0; i < 100; i++ {
		tr.Observe("BTCUSDT", float64(100+i))
	}

	tr.mu.RLock()
	defer tr.mu.RUnlock()
	require.Len(t, tr.closes["BTCUSDT"], 25)
	assert.InDelta(t, 175, tr.closes["BTCUSDT"][0], 1e-9)
	assert.InDelta(t, 199, tr.closes["BTCUSDT"][24], 1e-9)
}

func TestObserveSeriesSeedsAndTrims(t *testing.T) {
	tr := NewCorrelationTracker(25)
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = float64(100 + i)
	}
	tr.ObserveSeries("BTCUSDT", closes)

	tr.mu.RLock()
	require.Len(t, tr.closes["BTCUSDT"], 25)
	assert.InDelta(t, 115, tr.closes["BTCUSDT"][0], 1e-9)
	tr.mu.RUnlock()

	// Seeding copies the input; mutating the source must not leak in.
	closes[39] = -1
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	assert.InDelta(t, 139, tr.closes["BTCUSDT"][24], 1e-9)
}

func TestTrackerWindowFloor(t *testing.T) {
	// A window too small to ever produce a correlation falls back to the
	// default.
	tr := NewCorrelationTracker(5)
	assert.Equal(t, 100, tr.window)
}
