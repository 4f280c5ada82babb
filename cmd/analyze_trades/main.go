package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"text/tabwriter"

	"cascadeBot/config"
	"cascadeBot/internal/adapters/logger"
	"cascadeBot/internal/adapters/sqlite"
	"cascadeBot/internal/analytics"
	"cascadeBot/internal/domain"
)

// Prints a per-symbol performance report over the recorded trade ledger,
// plus a close-reason breakdown showing how the ladder exits distribute.
func main() {
	var (
		symbol  = flag.String("symbol", "", "restrict the report to one pair")
		balance = flag.Float64("balance", 10000, "initial balance for drawdown math")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx := context.Background()

	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to open trade store: %v", err)
	}
	defer repo.Close()

	trades, err := repo.FindAll(ctx)
	if err != nil {
		log.Fatalf("Failed to load trades: %v", err)
	}
	if *symbol != "" {
		filtered := trades[:0]
		for _, t := range trades {
			if t.Symbol == *symbol {
				filtered = append(filtered, t)
			}
		}
		trades = filtered
	}
	if len(trades) == 0 {
		log.Println("No recorded trades to analyze.")
		return
	}

	bySymbol := make(map[string][]*domain.Trade)
	for _, t := range trades {
		bySymbol[t.Symbol] = append(bySymbol[t.Symbol], t)
	}
	symbols := make([]string, 0, len(bySymbol))
	for s := range bySymbol {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "Symbol\tTrades\tWinRate\tTP1Rate\tSharpe\tPF\tMaxDD\tPnLPct\tExpectancy\t")
	for _, s := range symbols {
		m := analytics.AnalyzePerformance(bySymbol[s], *balance)
		fmt.Fprintf(w, "%s\t%d\t%.1f%%\t%.1f%%\t%.2f\t%.2f\t%.1f%%\t%.1f%%\t%.2f%%\t\n",
			s, m.TotalTrades, m.WinRate, m.WinRateTP1(), m.SharpeRatio,
			m.ProfitFactor, m.MaxDrawdown, m.TotalPnLPct, m.Expectancy)
	}
	w.Flush()

	fmt.Println("\n## Ladder Depth")
	total := analytics.AnalyzePerformance(trades, *balance)
	for i, rate := range total.TPHitRates {
		fmt.Printf("TP%d reached: %.1f%%\n", i+1, rate)
	}

	fmt.Println("\n## Close Reasons")
	analyzeCloseReasons(trades)
}

// analyzeCloseReasons counts trades and PnL per close reason.
func analyzeCloseReasons(trades []*domain.Trade) {
	counts := make(map[domain.CloseReason]int)
	pnlPct := make(map[domain.CloseReason]float64)
	for _, t := range trades {
		counts[t.CloseReason]++
		pnlPct[t.CloseReason] += t.PnLPct
	}

	var reasons []domain.CloseReason
	for reason := range counts {
		reasons = append(reasons, reason)
	}
	sort.Slice(reasons, func(i, j int) bool {
		return string(reasons[i]) < string(reasons[j])
	})

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "Reason\tCount\tTotal PnL%\tAvg PnL%\t")
	for _, reason := range reasons {
		count := counts[reason]
		total := pnlPct[reason]
		fmt.Fprintf(w, "%s\t%d\t%.2f\t%.2f\t\n", reason, count, total, total/float64(count))
	}
	w.Flush()
}
