// Package volatility classifies market conditions by comparing current ATR
// against its own rolling baseline. Preset selection and position sizing both
// key off the resulting regime.
package volatility

import (
	"fmt"
	"math"

	"cascadeBot/internal/domain"
	"cascadeBot/internal/indicators"
)

const (
	// DefaultATRPeriod is the ATR lookback used for regime classification.
	DefaultATRPeriod = 14
	// DefaultBaselinePeriod is the rolling-mean window applied to the ATR
	// series to obtain the baseline the current ATR is compared against.
	DefaultBaselinePeriod = 100
)

// Multipliers scale a preset's base TP/SL distances for a given regime.
type Multipliers struct {
	TP float64
	SL float64
}

var regimeMultipliers = map[domain.Regime]Multipliers{
	domain.RegimeLow:    {TP: 0.8, SL: 0.8},
	domain.RegimeNormal: {TP: 1.0, SL: 1.0},
	domain.RegimeHigh:   {TP: 1.3, SL: 1.2},
}

// MultipliersFor returns the TP/SL scaling for a regime. Unknown regimes map
// to the normal multipliers.
func MultipliersFor(r domain.Regime) Multipliers {
	if m, ok := regimeMultipliers[r]; ok {
		return m
	}
	return regimeMultipliers[domain.RegimeNormal]
}

// Classifier computes volatility regimes from kline history.
type Classifier struct {
	atrPeriod      int
	baselinePeriod int
}

// NewClassifier builds a classifier with the given periods. Non-positive
// values fall back to the defaults.
func NewClassifier(atrPeriod, baselinePeriod int) *Classifier {
	if atrPeriod <= 0 {
		atrPeriod = DefaultATRPeriod
	}
	if baselinePeriod <= 0 {
		baselinePeriod = DefaultBaselinePeriod
	}
	return &Classifier{atrPeriod: atrPeriod, baselinePeriod: baselinePeriod}
}

// MinBars returns the minimum history length required before the classifier
// produces a defined regime.
func (c *Classifier) MinBars() int {
	return c.atrPeriod + c.baselinePeriod
}

// Snapshot is the classification of a single bar.
type Snapshot struct {
	Regime   domain.Regime
	ATR      float64
	Baseline float64
	Ratio    float64
}

// Classify returns the regime for the most recent bar of the series.
func (c *Classifier) Classify(klines []*domain.Kline) (Snapshot, error) {
	series, err := c.Series(klines)
	if err != nil {
		return Snapshot{}, err
	}
	return series[len(series)-1], nil
}

// Series computes a per-bar snapshot for the whole series. Bars before the
// warmup window carry RegimeNormal with NaN ATR/baseline so that callers can
// index the result with the same offsets as the input klines.
func (c *Classifier) Series(klines []*domain.Kline) ([]Snapshot, error) {
	if len(klines) < c.MinBars() {
		return nil, fmt.Errorf("volatility: need %d bars, have %d", c.MinBars(), len(klines))
	}
	atr, err := indicators.ATRSeries(klines, c.atrPeriod)
	if err != nil {
		return nil, fmt.Errorf("volatility: %w", err)
	}
	// The ATR series starts with a NaN warmup, so the baseline is computed
	// over the valid tail and re-padded to full length.
	firstValid := c.atrPeriod - 1
	mean, err := indicators.RollingMean(atr[firstValid:], c.baselinePeriod)
	if err != nil {
		return nil, fmt.Errorf("volatility: %w", err)
	}
	baseline := make([]float64, len(klines))
	for i := 0; i < firstValid; i++ {
		baseline[i] = math.NaN()
	}
	copy(baseline[firstValid:], mean)

	out := make([]Snapshot, len(klines))
	for i := range klines {
		snap := Snapshot{Regime: domain.RegimeNormal, ATR: atr[i], Baseline: baseline[i], Ratio: math.NaN()}
		if !math.IsNaN(atr[i]) && !math.IsNaN(baseline[i]) && baseline[i] > 0 {
			snap.Ratio = atr[i] / baseline[i]
			snap.Regime = domain.RegimeFromRatio(snap.Ratio)
		}
		out[i] = snap
	}
	return out, nil
}

// RegimeAt classifies the bar at index i using only bars up to and including
// i. During warmup it returns RegimeNormal.
func (c *Classifier) RegimeAt(klines []*domain.Kline, i int) (domain.Regime, error) {
	if i < 0 || i >= len(klines) {
		return domain.RegimeNormal, fmt.Errorf("volatility: index %d out of range [0,%d)", i, len(klines))
	}
	if i+1 < c.MinBars() {
		return domain.RegimeNormal, nil
	}
	snap, err := c.Classify(klines[:i+1])
	if err != nil {
		return domain.RegimeNormal, err
	}
	return snap.Regime, nil
}
