package optimizer

import (
	"context"
	"fmt"
	"time"

	"cascadeBot/internal/backtest"
	"cascadeBot/internal/domain"
	"cascadeBot/internal/ports"
)

// walk-forward windows are measured in 30-day months.
const monthDuration = 30 * 24 * time.Hour

// WalkForwardConfig shapes the rolling train/test windows.
type WalkForwardConfig struct {
	TrainMonths   int
	TestMonths    int
	StepMonths    int
	MinWindows    int
	MinEfficiency float64 // test score / train score floor per window
}

func (c WalkForwardConfig) withDefaults() WalkForwardConfig {
	if c.TrainMonths <= 0 {
		c.TrainMonths = 6
	}
	if c.TestMonths <= 0 {
		c.TestMonths = 2
	}
	if c.StepMonths <= 0 {
		c.StepMonths = 2
	}
	if c.MinWindows <= 0 {
		c.MinWindows = 4
	}
	if c.MinEfficiency <= 0 {
		c.MinEfficiency = 0.5
	}
	return c
}

// Window is one train/test split with its scores.
type Window struct {
	TrainStart time.Time
	TrainEnd   time.Time
	TestStart  time.Time
	TestEnd    time.Time

	TrainScore  float64
	TestScore   float64
	TrainTrades int
	TestTrades  int
	Efficiency  float64
	Passed      bool
}

// WalkForwardResult summarizes an out-of-sample validation.
type WalkForwardResult struct {
	Windows       []Window
	PassedWindows int
	AvgEfficiency float64
	MinEfficiency float64
	// Accepted means the preset held up on a majority of windows.
	Accepted bool
}

// WalkForward validates a preset out of sample: the candle series is split
// into rolling train/test windows and a preset passes a window when its test
// score retains at least the configured fraction of its train score.
func (o *Optimizer) WalkForward(ctx context.Context, preset *domain.Preset, klines []*domain.Kline) (*WalkForwardResult, error) {
	if len(klines) == 0 {
		return nil, fmt.Errorf("%w: empty series", ports.ErrInsufficientHistory)
	}
	cfg := o.cfg.WalkForward

	first := klines[0].OpenTime
	last := klines[len(klines)-1].OpenTime
	span := last.Sub(first)
	need := time.Duration(cfg.TrainMonths+cfg.TestMonths+(cfg.MinWindows-1)*cfg.StepMonths) * monthDuration
	if span < need {
		return nil, fmt.Errorf("%w: %.1f months of data, walk-forward needs %.1f",
			ports.ErrInsufficientHistory, span.Hours()/24/30, need.Hours()/24/30)
	}

	result := &WalkForwardResult{MinEfficiency: -1}
	trainDur := time.Duration(cfg.TrainMonths) * monthDuration
	testDur := time.Duration(cfg.TestMonths) * monthDuration
	stepDur := time.Duration(cfg.StepMonths) * monthDuration

	var effSum float64
	for start := first; !start.Add(trainDur + testDur).After(last.Add(time.Nanosecond)); start = start.Add(stepDur) {
		if err := ctx.Err(); err != nil {
			// Partial validation is still meaningful; stop adding windows.
			break
		}
		w := Window{
			TrainStart: start,
			TrainEnd:   start.Add(trainDur),
			TestStart:  start.Add(trainDur),
			TestEnd:    start.Add(trainDur + testDur),
		}
		train := sliceByTime(klines, w.TrainStart, w.TrainEnd)
		test := sliceByTime(klines, w.TestStart, w.TestEnd)

		trainRun, err := o.engine.Run(ctx, preset.Symbol, preset.Interval, train, backtest.FixedPreset{Preset: preset})
		if err != nil {
			return nil, fmt.Errorf("walk-forward train window at %s: %w", w.TrainStart.Format("2006-01-02"), err)
		}
		testRun, err := o.engine.Run(ctx, preset.Symbol, preset.Interval, test, backtest.FixedPreset{Preset: preset})
		if err != nil {
			return nil, fmt.Errorf("walk-forward test window at %s: %w", w.TestStart.Format("2006-01-02"), err)
		}

		w.TrainScore = CompositeScore(trainRun.Metrics, o.cfg.Weights)
		w.TestScore = CompositeScore(testRun.Metrics, o.cfg.Weights)
		w.TrainTrades = trainRun.Metrics.TotalTrades
		w.TestTrades = testRun.Metrics.TotalTrades
		if w.TrainScore > 0 {
			w.Efficiency = w.TestScore / w.TrainScore
		}
		w.Passed = w.TrainScore > 0 && w.Efficiency >= cfg.MinEfficiency
		if w.Passed {
			result.PassedWindows++
		}
		effSum += w.Efficiency
		if result.MinEfficiency < 0 || w.Efficiency < result.MinEfficiency {
			result.MinEfficiency = w.Efficiency
		}
		result.Windows = append(result.Windows, w)
	}

	if len(result.Windows) > 0 {
		result.AvgEfficiency = effSum / float64(len(result.Windows))
	}
	result.Accepted = len(result.Windows) >= cfg.MinWindows &&
		result.PassedWindows*2 > len(result.Windows)
	return result, nil
}

// sliceByTime returns the bars with OpenTime in [from, to).
func sliceByTime(klines []*domain.Kline, from, to time.Time) []*domain.Kline {
	lo := 0
	for lo < len(klines) && klines[lo].OpenTime.Before(from) {
		lo++
	}
	hi := lo
	for hi < len(klines) && klines[hi].OpenTime.Before(to) {
		hi++
	}
	return klines[lo:hi]
}
