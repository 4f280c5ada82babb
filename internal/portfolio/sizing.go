package portfolio

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"cascadeBot/internal/ports"
)

// SizingStrategy selects how a position quantity is derived from equity and
// stop distance.
type SizingStrategy string

const (
	// SizeFixedFractional risks a fixed percentage of equity per trade.
	SizeFixedFractional SizingStrategy = "fixed_fractional"
	// SizeVolatilityAdjusted scales the fixed-fractional size down in high
	// volatility and up in low volatility.
	SizeVolatilityAdjusted SizingStrategy = "volatility_adjusted"
	// SizeKelly derives the risk share from the asset's trailing win rate
	// and payoff ratio, scaled by a safety fraction.
	SizeKelly SizingStrategy = "kelly"
)

// KellyCapFraction scales full Kelly down; noisy win-rate estimates make
// betting full Kelly reliably ruinous.
const KellyCapFraction = 0.25

// SizerConfig tunes position sizing.
type SizerConfig struct {
	Strategy       SizingStrategy
	RiskPerTrade   float64 // percent of equity, default 2
	MaxPositionPct float64 // risk percent ceiling for Kelly, default 5
	// QuantityStep is the exchange lot step; quantities are rounded down
	// to it. Zero disables rounding.
	QuantityStep float64
}

func (c SizerConfig) withDefaults() SizerConfig {
	if c.Strategy == "" {
		c.Strategy = SizeFixedFractional
	}
	if c.RiskPerTrade <= 0 {
		c.RiskPerTrade = 2
	}
	if c.MaxPositionPct <= 0 {
		c.MaxPositionPct = 5
	}
	return c
}

// SizeInput carries everything a sizing call may need. ATRRatio feeds the
// volatility adjustment; WinRate and PayoffRatio feed Kelly.
type SizeInput struct {
	Equity     float64
	EntryPrice float64
	SLPrice    float64

	ATRRatio float64 // current ATR / baseline, 0 when unknown

	WinRate     float64 // trailing, fraction 0-1
	PayoffRatio float64 // trailing avg win / avg loss
}

// SizeResult is a sized position: the quantity and the risk it represents.
type SizeResult struct {
	Quantity float64
	RiskPct  float64
}

// Sizer turns signals into position quantities under a risk budget.
type Sizer struct {
	cfg SizerConfig
}

// NewSizer builds a Sizer.
func NewSizer(cfg SizerConfig) *Sizer {
	return &Sizer{cfg: cfg.withDefaults()}
}

// Size computes the quantity for the configured strategy. Whatever the
// strategy, quantity times stop distance never exceeds the risk budget
// implied by the returned risk percentage.
func (s *Sizer) Size(in SizeInput) (SizeResult, error) {
	dist := math.Abs(in.EntryPrice - in.SLPrice)
	if dist <= 0 {
		return SizeResult{}, fmt.Errorf("%w: zero stop distance", ports.ErrInvalidRequest)
	}
	if in.Equity <= 0 {
		return SizeResult{}, fmt.Errorf("%w: non-positive equity", ports.ErrInvalidRequest)
	}

	riskPct := s.cfg.RiskPerTrade
	switch s.cfg.Strategy {
	case SizeVolatilityAdjusted:
		riskPct *= volatilityAdjustment(in.ATRRatio)
	case SizeKelly:
		riskPct = s.kellyRiskPct(in)
	}

	budget := in.Equity * riskPct / 100
	quantity := budget / dist
	if s.cfg.QuantityStep > 0 {
		quantity = roundToStep(quantity, s.cfg.QuantityStep)
	}
	if quantity <= 0 {
		return SizeResult{}, fmt.Errorf("%w: risk budget %.4f too small for stop distance %.4f",
			ports.ErrInvalidRequest, budget, dist)
	}
	return SizeResult{Quantity: quantity, RiskPct: riskPct}, nil
}

// volatilityAdjustment shrinks size when ATR runs hot and grows it when the
// market is quiet.
func volatilityAdjustment(atrRatio float64) float64 {
	switch {
	case atrRatio > 1.3:
		return 0.7
	case atrRatio > 0 && atrRatio < 0.7:
		return 1.2
	default:
		return 1.0
	}
}

// kellyRiskPct computes the fractional-Kelly risk share, clamped between
// half the base risk and the position ceiling.
func (s *Sizer) kellyRiskPct(in SizeInput) float64 {
	if in.PayoffRatio <= 0 || in.WinRate <= 0 {
		return s.cfg.RiskPerTrade
	}
	kelly := in.WinRate - (1-in.WinRate)/in.PayoffRatio
	if kelly < 0 {
		kelly = 0
	}
	if kelly > 1 {
		kelly = 1
	}
	pct := kelly * KellyCapFraction * 100
	if pct > s.cfg.MaxPositionPct {
		pct = s.cfg.MaxPositionPct
	}
	if floor := s.cfg.RiskPerTrade / 2; pct < floor {
		pct = floor
	}
	return pct
}

// roundToStep rounds a quantity down to the exchange lot step, avoiding
// float drift on small steps.
func roundToStep(quantity, step float64) float64 {
	q := decimal.NewFromFloat(quantity)
	st := decimal.NewFromFloat(step)
	if st.IsZero() {
		return quantity
	}
	f, _ := q.Div(st).Floor().Mul(st).Float64()
	return f
}
