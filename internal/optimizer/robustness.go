package optimizer

import (
	"context"
	"fmt"
	"math"

	"cascadeBot/internal/backtest"
	"cascadeBot/internal/domain"
	"cascadeBot/internal/ports"
)

// RobustnessConfig shapes the parameter-perturbation sweep.
type RobustnessConfig struct {
	// VariationPct is the single-parameter perturbation applied in both
	// directions.
	VariationPct float64
	// MaxScoreDegradationPct is how far a neighbor's score may fall below
	// the base score and still count as valid.
	MaxScoreDegradationPct float64
}

func (c RobustnessConfig) withDefaults() RobustnessConfig {
	if c.VariationPct <= 0 {
		c.VariationPct = 15
	}
	if c.MaxScoreDegradationPct <= 0 {
		c.MaxScoreDegradationPct = 30
	}
	return c
}

// Neighbor is one perturbed evaluation.
type Neighbor struct {
	Param     string
	Direction int // +1 or -1
	Params    domain.IndicatorParams
	Score     float64
	Valid     bool
}

// RobustnessResult is the outcome of a perturbation sweep around a preset.
type RobustnessResult struct {
	BaseScore float64
	Neighbors []Neighbor
	// Score is the fraction of neighbors whose composite score stayed
	// inside the degradation band. A spiky parameter set scores low even
	// when its raw backtest looks excellent.
	Score float64
}

// Robustness perturbs each indicator parameter by the configured variation,
// one at a time, and measures how much of the preset's score survives.
func (o *Optimizer) Robustness(ctx context.Context, preset *domain.Preset, klines []*domain.Kline) (*RobustnessResult, error) {
	cfg := o.cfg.Robustness

	baseRun, err := o.engine.Run(ctx, preset.Symbol, preset.Interval, klines, backtest.FixedPreset{Preset: preset})
	if err != nil {
		return nil, fmt.Errorf("robustness base run: %w", err)
	}
	result := &RobustnessResult{BaseScore: CompositeScore(baseRun.Metrics, o.cfg.Weights)}
	floor := result.BaseScore * (1 - cfg.MaxScoreDegradationPct/100)

	for _, n := range perturbations(preset.Params, cfg.VariationPct) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ports.ErrContextCanceled, err)
		}
		candidate := *preset
		candidate.Params = n.Params
		run, err := o.engine.Run(ctx, preset.Symbol, preset.Interval, klines, backtest.FixedPreset{Preset: &candidate})
		if err != nil {
			// A neighbor that cannot even be evaluated counts against
			// robustness rather than failing the sweep.
			result.Neighbors = append(result.Neighbors, n)
			continue
		}
		n.Score = CompositeScore(run.Metrics, o.cfg.Weights)
		n.Valid = n.Score >= floor
		result.Neighbors = append(result.Neighbors, n)
	}

	if len(result.Neighbors) > 0 {
		valid := 0
		for _, n := range result.Neighbors {
			if n.Valid {
				valid++
			}
		}
		result.Score = float64(valid) / float64(len(result.Neighbors))
	}
	return result, nil
}

// perturbations builds the +/- neighbors for every parameter, skipping ones
// the rounding collapses back onto the base value.
func perturbations(base domain.IndicatorParams, variationPct float64) []Neighbor {
	f := variationPct / 100
	var out []Neighbor
	add := func(name string, dir int, p domain.IndicatorParams) {
		if p == base {
			return
		}
		out = append(out, Neighbor{Param: name, Direction: dir, Params: p})
	}
	for _, dir := range []int{-1, 1} {
		scale := 1 + float64(dir)*f

		p := base
		p.I1 = perturbInt(base.I1, scale)
		add("i1", dir, p)

		p = base
		p.I2 = perturbInt(base.I2, scale)
		add("i2", dir, p)

		p = base
		p.I3 = base.I3 * scale
		add("i3", dir, p)

		p = base
		p.I4 = base.I4 * scale
		add("i4", dir, p)

		p = base
		p.I5 = base.I5 * scale
		add("i5", dir, p)
	}
	return out
}

func perturbInt(v int, scale float64) int {
	n := int(math.Round(float64(v) * scale))
	if n < 1 {
		n = 1
	}
	return n
}
