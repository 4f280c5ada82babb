package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cascadeBot/internal/domain"
)

func bar(high, low, close float64) *domain.Kline {
	return &domain.Kline{High: high, Low: low, Close: close}
}

func TestTrueRanges(t *testing.T) {
	klines := []*domain.Kline{
		bar(12, 10, 11),
		bar(13, 11, 12),    // plain range: 13-11
		bar(110, 108, 109), // gap up: |110-12| dominates
	}

	trs := TrueRanges(klines)
	require.Len(t, trs, 3)
	assert.InDelta(t, 2, trs[0], 1e-9) // first bar has no previous close
	assert.InDelta(t, 2, trs[1], 1e-9)
	assert.InDelta(t, 98, trs[2], 1e-9)

	assert.Empty(t, TrueRanges(nil))
}

func TestATRSeries(t *testing.T) {
	klines := []*domain.Kline{
		bar(12, 10, 11), // TR 2
		bar(13, 11, 12), // TR 2
		bar(15, 12, 14), // TR 3
	}

	atr, err := ATRSeries(klines, 2)
	require.NoError(t, err)
	require.Len(t, atr, 3)

	assert.True(t, math.IsNaN(atr[0]))
	// Seeded with the simple average, then Wilder-smoothed.
	assert.InDelta(t, 2, atr[1], 1e-9)   // (2+2)/2
	assert.InDelta(t, 2.5, atr[2], 1e-9) // (2*1+3)/2
}

func TestATRSeriesErrors(t *testing.T) {
	klines := []*domain.Kline{bar(12, 10, 11)}

	_, err := ATRSeries(klines, 0)
	require.Error(t, err)
	_, err = ATRSeries(klines, 2)
	require.Error(t, err)
}

func TestATRConstantRange(t *testing.T) {
	// Identical bars keep the ATR pinned to the bar range.
	klines := make([]*domain.Kline, 20)
	for i := range klines {
		klines[i] = bar(100.5, 99.5, 100)
	}

	v, err := ATR(klines, 14)
	require.NoError(t, err)
	assert.InDelta(t, 1, v, 1e-9)
}
