package domain

import (
	"fmt"
	"math"
	"time"
)

// NumTPLevels is the fixed depth of the take-profit ladder.
const NumTPLevels = 6

// IndicatorParams holds the channel-breakout indicator inputs.
type IndicatorParams struct {
	I1 int     `yaml:"i1"` // channel period (rolling highest/lowest)
	I2 int     `yaml:"i2"` // stdev period
	I3 float64 `yaml:"i3"` // stdev multiplier
	I4 float64 `yaml:"i4"` // ATR multiplier
	I5 float64 `yaml:"i5"` // percent offset from channel midpoint
}

// PresetMetrics is the performance snapshot recorded when a preset is generated.
type PresetMetrics struct {
	TotalTrades  int     `yaml:"total_trades"`
	WinRate      float64 `yaml:"win_rate"`
	WinRateTP1   float64 `yaml:"win_rate_tp1"`
	SharpeRatio  float64 `yaml:"sharpe_ratio"`
	ProfitFactor float64 `yaml:"profit_factor"`
	MaxDrawdown  float64 `yaml:"max_drawdown"`
	TotalPnLPct  float64 `yaml:"total_pnl_pct"`
}

// Preset is an immutable parameter set keyed by (symbol, interval, regime).
// Presets are created by the optimizer and read by the signal generator;
// failing presets are kept with Active=false for auditability.
type Preset struct {
	ID       string `yaml:"id"`
	Symbol   string `yaml:"symbol"`
	Interval string `yaml:"interval"`
	Regime   Regime `yaml:"regime"`

	Params IndicatorParams `yaml:"params"`

	SLPct      float64              `yaml:"sl_pct"`       // stop distance, percent of entry
	TPPcts     [NumTPLevels]float64 `yaml:"tp_pcts"`      // TP distances, percent of entry
	TPSizePcts [NumTPLevels]float64 `yaml:"tp_size_pcts"` // position share closed per level, sums to 100

	Metrics     PresetMetrics `yaml:"metrics"`
	Robustness  float64       `yaml:"robustness"`
	Active      bool          `yaml:"active"`
	GeneratedAt time.Time     `yaml:"generated_at"`
}

// PresetKey builds the lookup key used by preset stores.
func PresetKey(symbol, interval string, regime Regime) string {
	return fmt.Sprintf("%s_%s_%s", symbol, interval, regime)
}

// Key returns the preset's store key.
func (p *Preset) Key() string {
	return PresetKey(p.Symbol, p.Interval, p.Regime)
}

// Validate checks the TP ladder invariants. A preset failing validation must
// never reach the lifecycle engine.
func (p *Preset) Validate() error {
	if p.Symbol == "" || p.Interval == "" {
		return fmt.Errorf("preset %s: symbol and interval are required", p.ID)
	}
	if p.SLPct <= 0 || p.SLPct >= 100 {
		return fmt.Errorf("preset %s: sl_pct %.4f out of range (0, 100)", p.ID, p.SLPct)
	}
	var sum float64
	for i := 0; i < NumTPLevels; i++ {
		if p.TPPcts[i] <= 0 {
			return fmt.Errorf("preset %s: tp%d distance %.4f must be positive", p.ID, i+1, p.TPPcts[i])
		}
		if i > 0 && p.TPPcts[i] <= p.TPPcts[i-1] {
			return fmt.Errorf("preset %s: tp ladder not monotonic at level %d (%.4f <= %.4f)",
				p.ID, i+1, p.TPPcts[i], p.TPPcts[i-1])
		}
		if p.TPSizePcts[i] < 0 {
			return fmt.Errorf("preset %s: tp%d size %.4f cannot be negative", p.ID, i+1, p.TPSizePcts[i])
		}
		sum += p.TPSizePcts[i]
	}
	if math.Abs(sum-100) > 0.01 {
		return fmt.Errorf("preset %s: tp sizes sum to %.4f, want 100", p.ID, sum)
	}
	if p.Params.I1 < 1 || p.Params.I2 < 1 {
		return fmt.Errorf("preset %s: indicator periods must be >= 1", p.ID)
	}
	return nil
}

// NormalizeSizes rescales the TP size distribution to sum to exactly 100.
// Used when loading hand-edited preset files.
func (p *Preset) NormalizeSizes() {
	var sum float64
	for _, s := range p.TPSizePcts {
		sum += s
	}
	if sum <= 0 || math.Abs(sum-100) <= 0.01 {
		return
	}
	factor := 100 / sum
	for i := range p.TPSizePcts {
		p.TPSizePcts[i] *= factor
	}
}
