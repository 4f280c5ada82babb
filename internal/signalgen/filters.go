package signalgen

import (
	"math"

	"cascadeBot/internal/domain"
	"cascadeBot/internal/indicators"
)

// FilterConfig controls the optional quality filters applied to a breakout
// before it becomes a signal. All filters default to off.
type FilterConfig struct {
	VolumeEnabled    bool
	VolumeWindow     int
	VolumeMultiplier float64

	RSIEnabled    bool
	RSIPeriod     int
	RSILongLevel  float64
	RSIShortLevel float64

	ADXEnabled  bool
	ADXPeriod   int
	ADXMinLevel float64
}

// DefaultFilterConfig returns the standard filter thresholds with every
// filter disabled.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		VolumeWindow:     20,
		VolumeMultiplier: 1.5,
		RSIPeriod:        14,
		RSILongLevel:     30,
		RSIShortLevel:    70,
		ADXPeriod:        14,
		ADXMinLevel:      20,
	}
}

// FilterResult names the filter that rejected a breakout, empty when passed.
type FilterResult struct {
	Passed   bool
	Rejected string
}

// ApplyFilters runs the enabled filters against the series. The last kline is
// the breakout bar.
func ApplyFilters(klines []*domain.Kline, side domain.Side, cfg FilterConfig) FilterResult {
	if cfg.VolumeEnabled && !volumePass(klines, cfg.VolumeWindow, cfg.VolumeMultiplier) {
		return FilterResult{Rejected: "volume"}
	}
	if cfg.RSIEnabled && !rsiPass(klines, side, cfg) {
		return FilterResult{Rejected: "rsi"}
	}
	if cfg.ADXEnabled && !adxPass(klines, cfg.ADXPeriod, cfg.ADXMinLevel) {
		return FilterResult{Rejected: "adx"}
	}
	return FilterResult{Passed: true}
}

// volumePass requires the breakout bar's volume to exceed the rolling average
// by the configured multiplier.
func volumePass(klines []*domain.Kline, window int, multiplier float64) bool {
	if len(klines) < window {
		return true
	}
	var sum float64
	for _, k := range klines[len(klines)-window:] {
		sum += k.Volume
	}
	avg := sum / float64(window)
	return klines[len(klines)-1].Volume >= avg*multiplier
}

// rsiPass admits longs only from oversold and shorts only from overbought.
func rsiPass(klines []*domain.Kline, side domain.Side, cfg FilterConfig) bool {
	rsi, err := indicators.RSI(klines, cfg.RSIPeriod)
	if err != nil || math.IsNaN(rsi) {
		return true
	}
	if side == domain.Long {
		return rsi < cfg.RSILongLevel
	}
	return rsi > cfg.RSIShortLevel
}

// adxPass requires trend strength above the minimum level.
func adxPass(klines []*domain.Kline, period int, minLevel float64) bool {
	adx, err := indicators.ADX(klines, period)
	if err != nil || math.IsNaN(adx) {
		return true
	}
	return adx >= minLevel
}
