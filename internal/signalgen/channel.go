// Package signalgen turns kline history into entry signals. The indicator is
// a channel breakout: triggers sit above/below the channel midpoint, offset by
// an ATR component, a stdev component, and a percentage shift.
package signalgen

import (
	"fmt"
	"math"

	"cascadeBot/internal/domain"
	"cascadeBot/internal/indicators"
)

// ChannelSnapshot is the indicator state at a single bar.
type ChannelSnapshot struct {
	HighChannel  float64
	LowChannel   float64
	MidChannel   float64
	LongTrigger  float64
	ShortTrigger float64
	ATR          float64
	Stdev        float64
}

// Width returns the channel height in price units.
func (s ChannelSnapshot) Width() float64 {
	return s.HighChannel - s.LowChannel
}

// MinBarsFor returns the bars of history the indicator needs before its
// triggers are defined.
func MinBarsFor(p domain.IndicatorParams) int {
	n := p.I1
	if p.I2 > n {
		n = p.I2
	}
	if indicators.DefaultATRPeriod > n {
		n = indicators.DefaultATRPeriod
	}
	return n
}

// ChannelSeries computes the indicator for every bar of the series. Bars
// inside the warmup window hold NaN triggers.
func ChannelSeries(klines []*domain.Kline, p domain.IndicatorParams) ([]ChannelSnapshot, error) {
	if p.I1 < 1 || p.I2 < 1 {
		return nil, fmt.Errorf("signalgen: indicator periods must be >= 1 (i1=%d i2=%d)", p.I1, p.I2)
	}
	if len(klines) < MinBarsFor(p) {
		return nil, fmt.Errorf("signalgen: need %d bars, have %d", MinBarsFor(p), len(klines))
	}

	highs := make([]float64, len(klines))
	lows := make([]float64, len(klines))
	closes := make([]float64, len(klines))
	for i, k := range klines {
		highs[i] = k.High
		lows[i] = k.Low
		closes[i] = k.Close
	}

	highChannel, err := indicators.RollingMax(highs, p.I1)
	if err != nil {
		return nil, fmt.Errorf("signalgen: %w", err)
	}
	lowChannel, err := indicators.RollingMin(lows, p.I1)
	if err != nil {
		return nil, fmt.Errorf("signalgen: %w", err)
	}
	stdev, err := indicators.RollingStdev(closes, p.I2)
	if err != nil {
		return nil, fmt.Errorf("signalgen: %w", err)
	}
	atr, err := indicators.ATRSeries(klines, indicators.DefaultATRPeriod)
	if err != nil {
		return nil, fmt.Errorf("signalgen: %w", err)
	}

	out := make([]ChannelSnapshot, len(klines))
	for i := range klines {
		snap := ChannelSnapshot{
			HighChannel:  highChannel[i],
			LowChannel:   lowChannel[i],
			ATR:          atr[i],
			Stdev:        stdev[i],
			LongTrigger:  math.NaN(),
			ShortTrigger: math.NaN(),
			MidChannel:   math.NaN(),
		}
		if !math.IsNaN(highChannel[i]) && !math.IsNaN(lowChannel[i]) &&
			!math.IsNaN(stdev[i]) && !math.IsNaN(atr[i]) {
			snap.MidChannel = highChannel[i] - (highChannel[i]-lowChannel[i])*0.5
			atrComponent := atr[i] * p.I4
			stdevComponent := stdev[i] * p.I3
			snap.LongTrigger = snap.MidChannel*(1+p.I5/100) + atrComponent + stdevComponent
			snap.ShortTrigger = snap.MidChannel*(1-p.I5/100) - atrComponent - stdevComponent
		}
		out[i] = snap
	}
	return out, nil
}

// ChannelAt computes the indicator for the last bar of the series.
func ChannelAt(klines []*domain.Kline, p domain.IndicatorParams) (ChannelSnapshot, error) {
	series, err := ChannelSeries(klines, p)
	if err != nil {
		return ChannelSnapshot{}, err
	}
	last := series[len(series)-1]
	if math.IsNaN(last.LongTrigger) || math.IsNaN(last.ShortTrigger) {
		return ChannelSnapshot{}, fmt.Errorf("signalgen: triggers undefined at last bar")
	}
	return last, nil
}

// Breakout reports whether the bar crosses a trigger. Returns the side and
// true when a breakout occurred. Long has priority if both triggers are
// crossed on the same bar.
func Breakout(bar *domain.Kline, snap ChannelSnapshot) (domain.Side, bool) {
	if math.IsNaN(snap.LongTrigger) || math.IsNaN(snap.ShortTrigger) {
		return "", false
	}
	if bar.High > snap.LongTrigger {
		return domain.Long, true
	}
	if bar.Low < snap.ShortTrigger {
		return domain.Short, true
	}
	return "", false
}
