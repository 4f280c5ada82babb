package backtest

import (
	"fmt"
	"time"

	"cascadeBot/internal/domain"
	"cascadeBot/internal/ports"
)

// DefaultGapToleranceBars is how many missing bars in a row the engine
// accepts before treating the series as broken.
const DefaultGapToleranceBars = 3

var intervalDurations = map[string]time.Duration{
	"1m":  time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"1d":  24 * time.Hour,
}

// IntervalDuration maps an interval label to its bar duration.
func IntervalDuration(interval string) (time.Duration, error) {
	if d, ok := intervalDurations[interval]; ok {
		return d, nil
	}
	return 0, fmt.Errorf("%w: unknown interval %q", ports.ErrInvalidRequest, interval)
}

// CheckSeries validates a candle slice before a run: timestamps must be
// strictly increasing and gaps must stay within tolerance. Larger gaps are a
// data-quality error surfaced to the caller, never interpolated over.
func CheckSeries(klines []*domain.Kline, interval string, gapToleranceBars int) error {
	if len(klines) == 0 {
		return fmt.Errorf("%w: empty series", ports.ErrInsufficientHistory)
	}
	barDur, err := IntervalDuration(interval)
	if err != nil {
		return err
	}
	if gapToleranceBars <= 0 {
		gapToleranceBars = DefaultGapToleranceBars
	}
	maxGap := barDur * time.Duration(gapToleranceBars+1)
	for i := 1; i < len(klines); i++ {
		prev, cur := klines[i-1], klines[i]
		if !cur.OpenTime.After(prev.OpenTime) {
			return fmt.Errorf("%w: bar %d at %s does not advance past %s",
				ports.ErrNonMonotonicSeries, i, cur.OpenTime.Format(time.RFC3339), prev.OpenTime.Format(time.RFC3339))
		}
		if gap := cur.OpenTime.Sub(prev.OpenTime); gap > maxGap {
			return fmt.Errorf("%w: %s between bars %d and %d exceeds %s",
				ports.ErrSeriesGap, gap, i-1, i, maxGap)
		}
	}
	return nil
}
