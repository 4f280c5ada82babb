package indicators

import (
	"fmt"

	"cascadeBot/internal/domain"
)

// ADX calculates the Average Directional Index for the latest bar. Used as a
// trend-strength filter on entry signals.
func ADX(klines []*domain.Kline, period int) (float64, error) {
	// Needs period bars for the DI averages plus period DX values for ADX.
	if len(klines) < 2*period+1 {
		return 0, fmt.Errorf("not enough data (%d) to calculate ADX for period %d", len(klines), period)
	}

	trs := TrueRanges(klines)
	plusDM := make([]float64, len(klines))
	minusDM := make([]float64, len(klines))
	for i := 1; i < len(klines); i++ {
		up := klines[i].High - klines[i-1].High
		down := klines[i-1].Low - klines[i].Low
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	// Wilder-smoothed running sums.
	var smTR, smPlus, smMinus float64
	for i := 1; i <= period; i++ {
		smTR += trs[i]
		smPlus += plusDM[i]
		smMinus += minusDM[i]
	}

	dx := func() float64 {
		if smTR == 0 {
			return 0
		}
		plusDI := 100 * smPlus / smTR
		minusDI := 100 * smMinus / smTR
		sum := plusDI + minusDI
		if sum == 0 {
			return 0
		}
		diff := plusDI - minusDI
		if diff < 0 {
			diff = -diff
		}
		return 100 * diff / sum
	}

	adx := dx()
	n := 1.0
	for i := period + 1; i < len(klines); i++ {
		smTR = smTR - smTR/float64(period) + trs[i]
		smPlus = smPlus - smPlus/float64(period) + plusDM[i]
		smMinus = smMinus - smMinus/float64(period) + minusDM[i]
		if n < float64(period) {
			adx += dx()
			n++
			if n == float64(period) {
				adx /= float64(period)
			}
		} else {
			adx = (adx*float64(period-1) + dx()) / float64(period)
		}
	}
	return adx, nil
}
