// Package analytics computes trade-ledger performance metrics. The same
// report feeds backtest output, optimizer scoring, and the acceptance gates.
package analytics

import (
	"math"
	"sort"
	"time"

	"cascadeBot/internal/domain"
)

// PerformanceMetrics holds comprehensive performance metrics for a preset run.
type PerformanceMetrics struct {
	// Basic metrics
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64 // percent
	TotalPnL      float64 // quote currency
	TotalPnLPct   float64 // sum of per-trade weighted percent returns
	MaxDrawdown   float64 // percent, peak to trough on the trade-by-trade curve
	ProfitFactor  float64
	AverageWin    float64 // percent
	AverageLoss   float64 // percent
	SharpeRatio   float64
	SortinoRatio  float64
	FinalBalance  float64

	// Ladder metrics: share of trades reaching each TP level, percent.
	TPHitRates [domain.NumTPLevels]float64

	// Advanced metrics
	MaxConsecutiveWins   int
	MaxConsecutiveLosses int
	AverageDurationBars  float64
	MaxDrawdownDuration  time.Duration
	Expectancy           float64 // percent per trade
	RecoveryFactor       float64
	MonthlyReturns       map[string]float64
	EquityCurve          []EquityPoint
}

// EquityPoint is one sample of the equity curve.
type EquityPoint struct {
	Time     time.Time
	Value    float64
	Drawdown float64 // percent below peak
}

// WinRateTP1 is the share of trades that reached at least the first TP level,
// the primary quality gate for a preset.
func (m *PerformanceMetrics) WinRateTP1() float64 {
	return m.TPHitRates[0]
}

// AnalyzePerformance calculates performance metrics from closed trades.
// Trades are processed in entry-time order; the input slice is not modified.
func AnalyzePerformance(trades []*domain.Trade, initialBalance float64) *PerformanceMetrics {
	metrics := &PerformanceMetrics{
		FinalBalance:   initialBalance,
		MonthlyReturns: make(map[string]float64),
		EquityCurve:    make([]EquityPoint, 0, len(trades)),
	}
	if len(trades) == 0 {
		return metrics
	}

	ordered := make([]*domain.Trade, len(trades))
	copy(ordered, trades)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].EntryTime.Before(ordered[j].EntryTime)
	})

	balance := initialBalance
	peak := initialBalance
	peakTime := ordered[0].EntryTime
	var consecutiveWins, consecutiveLosses int
	var grossProfit, grossLoss float64
	var sumWins, sumLosses float64
	var totalBars int
	var tpCounts [domain.NumTPLevels]int
	returns := make([]float64, 0, len(ordered))

	for _, trade := range ordered {
		metrics.TotalTrades++
		returns = append(returns, trade.PnLPct)
		metrics.TotalPnLPct += trade.PnLPct
		totalBars += trade.DurationBars

		if trade.PnL > 0 {
			metrics.WinningTrades++
			consecutiveWins++
			consecutiveLosses = 0
			grossProfit += trade.PnL
			sumWins += trade.PnLPct
		} else {
			metrics.LosingTrades++
			consecutiveLosses++
			consecutiveWins = 0
			grossLoss += -trade.PnL
			sumLosses += trade.PnLPct
		}
		if consecutiveWins > metrics.MaxConsecutiveWins {
			metrics.MaxConsecutiveWins = consecutiveWins
		}
		if consecutiveLosses > metrics.MaxConsecutiveLosses {
			metrics.MaxConsecutiveLosses = consecutiveLosses
		}

		for _, hit := range trade.TPHits {
			if hit.Index >= 1 && hit.Index <= domain.NumTPLevels {
				tpCounts[hit.Index-1]++
			}
		}

		balance += trade.PnL
		metrics.TotalPnL += trade.PnL
		metrics.FinalBalance = balance
		metrics.MonthlyReturns[trade.ExitTime.Format("2006-01")] += trade.PnL

		if balance > peak {
			peak = balance
			peakTime = trade.ExitTime
		}
		drawdown := 0.0
		if peak > 0 {
			drawdown = (peak - balance) / peak * 100
		}
		if drawdown > metrics.MaxDrawdown {
			metrics.MaxDrawdown = drawdown
			if d := trade.ExitTime.Sub(peakTime); d > metrics.MaxDrawdownDuration {
				metrics.MaxDrawdownDuration = d
			}
		}
		metrics.EquityCurve = append(metrics.EquityCurve, EquityPoint{
			Time:     trade.ExitTime,
			Value:    balance,
			Drawdown: drawdown,
		})
	}

	metrics.WinRate = float64(metrics.WinningTrades) / float64(metrics.TotalTrades) * 100
	for i, n := range tpCounts {
		metrics.TPHitRates[i] = float64(n) / float64(metrics.TotalTrades) * 100
	}
	if metrics.WinningTrades > 0 {
		metrics.AverageWin = sumWins / float64(metrics.WinningTrades)
	}
	if metrics.LosingTrades > 0 {
		metrics.AverageLoss = sumLosses / float64(metrics.LosingTrades)
	}
	if grossLoss > 0 {
		metrics.ProfitFactor = grossProfit / grossLoss
	} else if grossProfit > 0 {
		metrics.ProfitFactor = math.Inf(1)
	}
	metrics.AverageDurationBars = float64(totalBars) / float64(metrics.TotalTrades)
	metrics.Expectancy = metrics.WinRate/100*metrics.AverageWin + (1-metrics.WinRate/100)*metrics.AverageLoss
	if metrics.MaxDrawdown > 0 {
		metrics.RecoveryFactor = metrics.TotalPnLPct / metrics.MaxDrawdown
	}

	annualization := annualizationFactor(ordered)
	metrics.SharpeRatio = sharpe(returns, annualization)
	metrics.SortinoRatio = sortino(returns, annualization)
	return metrics
}

// annualizationFactor converts per-trade ratios to yearly ones from the
// ledger's own time span, keeping the result deterministic.
func annualizationFactor(trades []*domain.Trade) float64 {
	first := trades[0].EntryTime
	last := trades[len(trades)-1].ExitTime
	years := last.Sub(first).Hours() / (24 * 365)
	if years <= 0 {
		return 1
	}
	perYear := float64(len(trades)) / years
	if perYear <= 0 {
		return 1
	}
	return math.Sqrt(perYear)
}

func sharpe(returns []float64, annualization float64) float64 {
	mean, stdev := meanStdev(returns)
	if stdev == 0 {
		return 0
	}
	return mean / stdev * annualization
}

// sortino penalizes only downside deviation.
func sortino(returns []float64, annualization float64) float64 {
	mean, _ := meanStdev(returns)
	var downside float64
	var n int
	for _, r := range returns {
		if r < 0 {
			downside += r * r
			n++
		}
	}
	if n == 0 {
		return 0
	}
	dd := math.Sqrt(downside / float64(n))
	if dd == 0 {
		return 0
	}
	return mean / dd * annualization
}

func meanStdev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	if len(values) < 2 {
		return mean, 0
	}
	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	return mean, math.Sqrt(variance / float64(len(values)-1))
}

// GetMonthlyReturns returns the monthly PnL as a time-sorted slice.
func (m *PerformanceMetrics) GetMonthlyReturns() []MonthlyReturn {
	returns := make([]MonthlyReturn, 0, len(m.MonthlyReturns))
	for month, profit := range m.MonthlyReturns {
		date, _ := time.Parse("2006-01", month)
		returns = append(returns, MonthlyReturn{Month: date, Return: profit})
	}
	sort.Slice(returns, func(i, j int) bool {
		return returns[i].Month.Before(returns[j].Month)
	})
	return returns
}

// MonthlyReturn is one month's realized PnL.
type MonthlyReturn struct {
	Month  time.Time
	Return float64
}

// ToPresetMetrics projects the report into the snapshot stored on a preset.
func (m *PerformanceMetrics) ToPresetMetrics() domain.PresetMetrics {
	return domain.PresetMetrics{
		TotalTrades:  m.TotalTrades,
		WinRate:      m.WinRate,
		WinRateTP1:   m.WinRateTP1(),
		SharpeRatio:  m.SharpeRatio,
		ProfitFactor: m.ProfitFactor,
		MaxDrawdown:  m.MaxDrawdown,
		TotalPnLPct:  m.TotalPnLPct,
	}
}
