package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"cascadeBot/config"
	"cascadeBot/internal/adapters/logger"
	"cascadeBot/internal/adapters/presetfs"
	"cascadeBot/internal/adapters/sqlite"
	"cascadeBot/internal/backtest"
	"cascadeBot/internal/domain"
	"cascadeBot/internal/lifecycle"
	"cascadeBot/internal/ports"
	"cascadeBot/internal/presets"
	"cascadeBot/internal/utils"
)

func main() {
	var (
		symbol    = flag.String("symbol", "BTCUSDT", "trading pair to simulate")
		interval  = flag.String("interval", "1h", "kline interval")
		csvFile   = flag.String("csv", "", "candle CSV file; when empty, candles come from the sqlite store")
		months    = flag.Int("months", 10, "history window when loading from the sqlite store")
		balance   = flag.Float64("balance", 10000, "initial balance")
		riskPct   = flag.Float64("risk", 2.0, "equity percent risked per trade")
		tpFirst   = flag.Bool("tp-first", false, "resolve same-bar stop and TP crossings in the position's favor")
		tradesOut = flag.String("trades", "", "optional CSV file for the trade ledger")
	)
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx := context.Background()

	// 2. Load candles
	var klines []*domain.Kline
	if *csvFile != "" {
		klines, err = utils.ReadKlinesFromCSV(*csvFile)
		if err != nil {
			appLogger.Error(ctx, err, "Failed to read candle CSV", map[string]interface{}{"file": *csvFile})
			log.Fatalf("Failed to read candle CSV: %v", err)
		}
	} else {
		repo, rerr := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
		if rerr != nil {
			log.Fatalf("FATAL: Failed to open kline store: %v", rerr)
		}
		defer repo.Close()
		end := time.Now()
		klines, err = repo.FindRange(ctx, *symbol, *interval, end.AddDate(0, -*months, 0), end)
		if err != nil {
			appLogger.Error(ctx, err, "Failed to load candles from store")
			log.Fatalf("Failed to load candles: %v", err)
		}
	}
	if len(klines) == 0 {
		log.Fatalf("No candles available for %s/%s", *symbol, *interval)
	}
	appLogger.Info(ctx, "Loaded candles", map[string]interface{}{
		"symbol":   *symbol,
		"interval": *interval,
		"count":    len(klines),
		"from":     klines[0].OpenTime,
		"to":       klines[len(klines)-1].CloseTime,
	})

	// 3. Resolve the preset: the stored active one, falling back to defaults
	store, err := presetfs.New(cfg.PresetDir, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to open preset store: %v", err)
	}
	provider := storeProvider{store: store, ctx: ctx}

	// 4. Run the simulation
	resolution := lifecycle.StopFirst
	if *tpFirst {
		resolution = lifecycle.TPFirst
	}
	engine := backtest.NewEngine(backtest.Config{
		InitialBalance: *balance,
		Resolution:     resolution,
		SizeFunc:       backtest.FixedFractionalSize(*riskPct),
	})
	result, err := engine.Run(ctx, *symbol, *interval, klines, provider)
	if err != nil {
		appLogger.Error(ctx, err, "Simulation failed")
		log.Fatalf("Simulation failed: %v", err)
	}

	m := result.Metrics
	appLogger.Info(ctx, "Simulation finished", map[string]interface{}{
		"trades":       m.TotalTrades,
		"winRate":      fmt.Sprintf("%.1f%%", m.WinRate),
		"winRateTP1":   fmt.Sprintf("%.1f%%", m.WinRateTP1()),
		"sharpe":       fmt.Sprintf("%.2f", m.SharpeRatio),
		"profitFactor": fmt.Sprintf("%.2f", m.ProfitFactor),
		"maxDrawdown":  fmt.Sprintf("%.1f%%", m.MaxDrawdown),
		"totalPnLPct":  fmt.Sprintf("%.1f%%", m.TotalPnLPct),
		"finalBalance": fmt.Sprintf("%.2f", result.FinalBalance),
	})
	for i, rate := range m.TPHitRates {
		appLogger.Info(ctx, "TP level hit rate", map[string]interface{}{
			"level": i + 1,
			"rate":  fmt.Sprintf("%.1f%%", rate),
		})
	}

	// 5. Optional trade ledger export
	if *tradesOut != "" {
		if err := utils.WriteTradesToCSV(result.Trades, *tradesOut); err != nil {
			appLogger.Error(ctx, err, "Error writing trades CSV")
			log.Fatalf("Error writing trades CSV: %v", err)
		}
		appLogger.Info(ctx, "Trades saved to", map[string]interface{}{"filename": *tradesOut})
	}
}

// storeProvider serves presets from the store, falling back to the default
// catalogue entry for slots without an optimized preset.
type storeProvider struct {
	store *presetfs.Store
	ctx   context.Context
}

func (p storeProvider) ActiveFor(symbol, interval string, regime domain.Regime) (*domain.Preset, error) {
	preset, err := p.store.GetActive(p.ctx, symbol, interval, regime)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return presets.NewDefault(symbol, interval, regime), nil
		}
		return nil, err
	}
	return preset, nil
}
