package optimizer

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"cascadeBot/internal/analytics"
	"cascadeBot/internal/backtest"
	"cascadeBot/internal/domain"
	"cascadeBot/internal/ports"
	"cascadeBot/internal/presets"
)

// Config tunes the optimizer pipeline.
type Config struct {
	Gates       Gates
	Weights     ScoreWeights
	Workers     int
	Backtest    backtest.Config
	WalkForward WalkForwardConfig
	Robustness  RobustnessConfig
	// TopN is how many grid-search survivors go through walk-forward and
	// robustness validation.
	TopN int
}

// Optimizer runs the grid-search / walk-forward / robustness pipeline.
type Optimizer struct {
	cfg    Config
	logger ports.Logger
	engine *backtest.Engine
}

// New builds an Optimizer. Zero-value config fields fall back to defaults.
func New(cfg Config, logger ports.Logger) (*Optimizer, error) {
	if logger == nil {
		return nil, fmt.Errorf("%w: logger is required", ports.ErrInvalidRequest)
	}
	if cfg.Gates == (Gates{}) {
		cfg.Gates = DefaultGates()
	}
	if cfg.Weights == (ScoreWeights{}) {
		cfg.Weights = DefaultScoreWeights()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.TopN <= 0 {
		cfg.TopN = 5
	}
	cfg.WalkForward = cfg.WalkForward.withDefaults()
	cfg.Robustness = cfg.Robustness.withDefaults()
	return &Optimizer{
		cfg:    cfg,
		logger: logger,
		engine: backtest.NewEngine(cfg.Backtest),
	}, nil
}

// EvalResult is one scored grid-search candidate.
type EvalResult struct {
	VariantIndex int
	Params       domain.IndicatorParams
	Metrics      *analytics.PerformanceMetrics
	Score        float64
	Valid        bool
	Reasons      []string
	Err          error
}

// GridSearchResult holds the ranked candidates of one sweep.
type GridSearchResult struct {
	Symbol    string
	Interval  string
	Results   []EvalResult // sorted by score, best first
	Evaluated int
	Valid     int
	// Aborted is set when the context was cancelled mid-sweep; the results
	// collected so far are still ranked and usable.
	Aborted bool
}

// TopN returns the best n valid candidates.
func (r *GridSearchResult) TopN(n int) []EvalResult {
	out := make([]EvalResult, 0, n)
	for _, res := range r.Results {
		if !res.Valid {
			continue
		}
		out = append(out, res)
		if len(out) == n {
			break
		}
	}
	return out
}

// GridSearch evaluates every catalogue variant against the series using the
// base preset's ladder, fanning runs out over the worker pool. Cancellation
// is honored between simulation runs; partial rankings are returned, not
// discarded.
func (o *Optimizer) GridSearch(ctx context.Context, base *domain.Preset, klines []*domain.Kline) (*GridSearchResult, error) {
	if base == nil {
		return nil, fmt.Errorf("%w: nil base preset", ports.ErrInvalidRequest)
	}
	if err := base.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrInvalidRequest, err)
	}

	jobs := make(chan int)
	results := make(chan EvalResult)
	var wg sync.WaitGroup

	for w := 0; w < o.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results <- o.evaluate(ctx, base, klines, idx)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := 0; i < presets.VariantCount; i++ {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	out := &GridSearchResult{Symbol: base.Symbol, Interval: base.Interval}
	for res := range results {
		out.Evaluated++
		if res.Valid {
			out.Valid++
		}
		out.Results = append(out.Results, res)
	}
	if ctx.Err() != nil {
		out.Aborted = true
	}

	sort.SliceStable(out.Results, func(i, j int) bool {
		return out.Results[i].Score > out.Results[j].Score
	})
	o.logger.Info(ctx, "grid search finished", map[string]interface{}{
		"symbol":    out.Symbol,
		"interval":  out.Interval,
		"evaluated": out.Evaluated,
		"valid":     out.Valid,
		"aborted":   out.Aborted,
	})
	return out, nil
}

// evaluate backtests one catalogue variant and scores it.
func (o *Optimizer) evaluate(ctx context.Context, base *domain.Preset, klines []*domain.Kline, idx int) EvalResult {
	params, err := presets.Variant(idx)
	if err != nil {
		return EvalResult{VariantIndex: idx, Err: err}
	}
	candidate := *base
	candidate.Params = params

	run, err := o.engine.Run(ctx, base.Symbol, base.Interval, klines, backtest.FixedPreset{Preset: &candidate})
	if err != nil {
		return EvalResult{VariantIndex: idx, Params: params, Err: err}
	}

	res := EvalResult{
		VariantIndex: idx,
		Params:       params,
		Metrics:      run.Metrics,
		Reasons:      o.cfg.Gates.Check(run.Metrics),
	}
	res.Valid = len(res.Reasons) == 0
	if res.Valid {
		res.Score = CompositeScore(run.Metrics, o.cfg.Weights)
	}
	return res
}
