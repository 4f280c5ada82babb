// Package optimizer searches the indicator parameter catalogue for presets
// that survive out-of-sample validation and parameter perturbation. Presets
// failing a gate are kept inactive rather than deleted so every decision
// stays auditable.
package optimizer

import (
	"fmt"

	"cascadeBot/internal/analytics"
)

// Gates are the acceptance thresholds a preset must clear to be activated.
// The Sharpe ceiling is deliberate: results above it are treated as certain
// overfit, not as exceptional performance.
type Gates struct {
	MinTrades       int
	MinWinRateTP1   float64 // percent
	MinSharpe       float64
	MaxSharpe       float64
	MinProfitFactor float64
	MaxDrawdown     float64 // percent
	MinRobustness   float64 // fraction 0-1
}

// DefaultGates returns the production thresholds.
func DefaultGates() Gates {
	return Gates{
		MinTrades:       20,
		MinWinRateTP1:   65,
		MinSharpe:       1.2,
		MaxSharpe:       2.5,
		MinProfitFactor: 1.4,
		MaxDrawdown:     15,
		MinRobustness:   0.8,
	}
}

// Check returns the list of failed gate descriptions, empty when the metrics
// clear every threshold. Robustness is gated separately since it is computed
// after the metric gates.
func (g Gates) Check(m *analytics.PerformanceMetrics) []string {
	var reasons []string
	if m.TotalTrades < g.MinTrades {
		reasons = append(reasons, fmt.Sprintf("trades=%d < %d", m.TotalTrades, g.MinTrades))
	}
	if m.WinRateTP1() < g.MinWinRateTP1 {
		reasons = append(reasons, fmt.Sprintf("tp1_wr=%.1f%% < %.1f%%", m.WinRateTP1(), g.MinWinRateTP1))
	}
	if m.SharpeRatio < g.MinSharpe {
		reasons = append(reasons, fmt.Sprintf("sharpe=%.2f < %.2f", m.SharpeRatio, g.MinSharpe))
	}
	if m.SharpeRatio > g.MaxSharpe {
		reasons = append(reasons, fmt.Sprintf("sharpe=%.2f > %.2f (overfit)", m.SharpeRatio, g.MaxSharpe))
	}
	if m.ProfitFactor < g.MinProfitFactor {
		reasons = append(reasons, fmt.Sprintf("pf=%.2f < %.2f", m.ProfitFactor, g.MinProfitFactor))
	}
	if m.MaxDrawdown > g.MaxDrawdown {
		reasons = append(reasons, fmt.Sprintf("dd=%.1f%% > %.1f%%", m.MaxDrawdown, g.MaxDrawdown))
	}
	return reasons
}

// ScoreWeights blend the normalized metrics into the composite score.
type ScoreWeights struct {
	Sharpe       float64
	ProfitFactor float64
	WinRateTP1   float64
	Drawdown     float64
}

// DefaultScoreWeights returns the production blend.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{Sharpe: 0.30, ProfitFactor: 0.25, WinRateTP1: 0.25, Drawdown: 0.20}
}

// CompositeScore maps the metrics into a 0-100 ranking score. Each metric is
// normalized over its useful range: Sharpe and PF over 1.0-3.0, TP1 win rate
// over 50-90%, drawdown inverted over 0-20%.
func CompositeScore(m *analytics.PerformanceMetrics, w ScoreWeights) float64 {
	sharpeNorm := clamp100((m.SharpeRatio - 1.0) / 2.0 * 100)
	pfNorm := clamp100((m.ProfitFactor - 1.0) / 2.0 * 100)
	wrNorm := clamp100((m.WinRateTP1() - 50) / 40 * 100)
	ddNorm := clamp100((20 - m.MaxDrawdown) / 20 * 100)
	return w.Sharpe*sharpeNorm + w.ProfitFactor*pfNorm + w.WinRateTP1*wrNorm + w.Drawdown*ddNorm
}

func clamp100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
