package indicators

import (
	"fmt"
	"math"

	"cascadeBot/internal/domain"
)

// DefaultATRPeriod is the ATR period used across the system.
const DefaultATRPeriod = 14

// TrueRanges computes the true range for every bar. The first bar has no
// previous close, so its TR is simply high-low.
func TrueRanges(klines []*domain.Kline) []float64 {
	trs := make([]float64, len(klines))
	if len(klines) == 0 {
		return trs
	}
	trs[0] = klines[0].High - klines[0].Low
	for i := 1; i < len(klines); i++ {
		high := klines[i].High
		low := klines[i].Low
		prevClose := klines[i-1].Close

		tr1 := high - low
		tr2 := math.Abs(high - prevClose)
		tr3 := math.Abs(low - prevClose)
		trs[i] = math.Max(tr1, math.Max(tr2, tr3))
	}
	return trs
}

// ATRSeries computes the Average True Range for every bar using Wilder's
// smoothing. Entries before index period-1 are NaN (warmup).
func ATRSeries(klines []*domain.Kline, period int) ([]float64, error) {
	if period < 1 {
		return nil, fmt.Errorf("ATR period must be positive, got %d", period)
	}
	if len(klines) < period {
		return nil, fmt.Errorf("not enough data points for ATR: need %d, got %d", period, len(klines))
	}

	trs := TrueRanges(klines)
	atr := make([]float64, len(klines))
	for i := 0; i < period-1; i++ {
		atr[i] = math.NaN()
	}

	// Seed with the simple average of the first 'period' true ranges,
	// then apply Wilder's recursive smoothing.
	var sum float64
	for i := 0; i < period; i++ {
		sum += trs[i]
	}
	atr[period-1] = sum / float64(period)
	for i := period; i < len(klines); i++ {
		atr[i] = (atr[i-1]*float64(period-1) + trs[i]) / float64(period)
	}
	return atr, nil
}

// ATR computes the latest Average True Range value.
func ATR(klines []*domain.Kline, period int) (float64, error) {
	series, err := ATRSeries(klines, period)
	if err != nil {
		return 0, err
	}
	return series[len(series)-1], nil
}
