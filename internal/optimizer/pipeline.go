package optimizer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cascadeBot/internal/domain"
	"cascadeBot/internal/ports"
)

// CandidateOutcome records why a grid-search survivor was accepted or not.
type CandidateOutcome struct {
	Eval        EvalResult
	WalkForward *WalkForwardResult
	Robustness  *RobustnessResult
	Accepted    bool
	Reasons     []string
}

// OptimizeResult is the full pipeline outcome for one (symbol, interval,
// regime) slot.
type OptimizeResult struct {
	Grid       *GridSearchResult
	Candidates []CandidateOutcome
	// Best is the activated preset, nil when no candidate cleared every
	// gate.
	Best *domain.Preset
}

// Optimize runs the full pipeline: grid search over the catalogue, then
// walk-forward and robustness validation of the top candidates. The first
// candidate clearing every gate is returned as an active preset; when none
// does, ErrNoEligiblePreset is returned alongside the collected outcomes so
// the caller can inspect (and persist, inactive) what was tried.
func (o *Optimizer) Optimize(ctx context.Context, base *domain.Preset, klines []*domain.Kline) (*OptimizeResult, error) {
	grid, err := o.GridSearch(ctx, base, klines)
	if err != nil {
		return nil, err
	}
	result := &OptimizeResult{Grid: grid}

	for _, eval := range grid.TopN(o.cfg.TopN) {
		if err := ctx.Err(); err != nil {
			break
		}
		outcome := CandidateOutcome{Eval: eval}
		candidate := *base
		candidate.Params = eval.Params

		wf, err := o.WalkForward(ctx, &candidate, klines)
		if err != nil {
			outcome.Reasons = append(outcome.Reasons, fmt.Sprintf("walk-forward: %v", err))
			result.Candidates = append(result.Candidates, outcome)
			continue
		}
		outcome.WalkForward = wf
		if !wf.Accepted {
			outcome.Reasons = append(outcome.Reasons,
				fmt.Sprintf("walk-forward: %d/%d windows passed", wf.PassedWindows, len(wf.Windows)))
		}

		rb, err := o.Robustness(ctx, &candidate, klines)
		if err != nil {
			outcome.Reasons = append(outcome.Reasons, fmt.Sprintf("robustness: %v", err))
			result.Candidates = append(result.Candidates, outcome)
			continue
		}
		outcome.Robustness = rb
		if rb.Score < o.cfg.Gates.MinRobustness {
			outcome.Reasons = append(outcome.Reasons,
				fmt.Sprintf("robustness=%.2f < %.2f", rb.Score, o.cfg.Gates.MinRobustness))
		}

		outcome.Accepted = len(outcome.Reasons) == 0
		result.Candidates = append(result.Candidates, outcome)
		if outcome.Accepted {
			result.Best = o.buildPreset(base, eval, rb.Score, true)
			break
		}
	}

	o.logger.Info(ctx, "optimization finished", map[string]interface{}{
		"symbol":     base.Symbol,
		"interval":   base.Interval,
		"regime":     base.Regime,
		"candidates": len(result.Candidates),
		"accepted":   result.Best != nil,
	})
	if result.Best == nil {
		return result, fmt.Errorf("%w: %s", ports.ErrNoEligiblePreset, base.Key())
	}
	return result, nil
}

// InactivePresets projects the rejected candidates into presets with
// Active=false for persistence.
func (r *OptimizeResult) InactivePresets(o *Optimizer, base *domain.Preset) []*domain.Preset {
	var out []*domain.Preset
	for _, c := range r.Candidates {
		if c.Accepted {
			continue
		}
		robustness := 0.0
		if c.Robustness != nil {
			robustness = c.Robustness.Score
		}
		out = append(out, o.buildPreset(base, c.Eval, robustness, false))
	}
	return out
}

func (o *Optimizer) buildPreset(base *domain.Preset, eval EvalResult, robustness float64, active bool) *domain.Preset {
	p := *base
	p.ID = uuid.NewString()
	p.Params = eval.Params
	if eval.Metrics != nil {
		p.Metrics = eval.Metrics.ToPresetMetrics()
	}
	p.Robustness = robustness
	p.Active = active
	p.GeneratedAt = time.Now().UTC()
	return &p
}
