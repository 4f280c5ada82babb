package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cascadeBot/config"
	"cascadeBot/internal/adapters/logger"
	"cascadeBot/internal/adapters/presetfs"
	"cascadeBot/internal/adapters/sqlite"
	"cascadeBot/internal/domain"
	"cascadeBot/internal/optimizer"
	"cascadeBot/internal/ports"
	"cascadeBot/internal/presets"
	"cascadeBot/internal/utils"
)

func main() {
	var (
		symbol     = flag.String("symbol", "BTCUSDT", "trading pair to optimize")
		interval   = flag.String("interval", "1h", "kline interval")
		regimeFlag = flag.String("regime", "normal", "volatility regime slot (low, normal, high)")
		csvFile    = flag.String("csv", "", "candle CSV file; when empty, candles come from the sqlite store")
		months     = flag.Int("months", 10, "history window when loading from the sqlite store")
		workers    = flag.Int("workers", 0, "parallel simulation workers (0 = NumCPU)")
		topN       = flag.Int("top", 5, "grid-search survivors validated by walk-forward and robustness")
		keepFailed = flag.Bool("keep-failed", true, "persist rejected candidates as inactive presets")
	)
	flag.Parse()

	regime := domain.Regime(*regimeFlag)
	switch regime {
	case domain.RegimeLow, domain.RegimeNormal, domain.RegimeHigh:
	default:
		log.Fatalf("Unknown regime %q (want low, normal, or high)", *regimeFlag)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	appLogger := logger.NewStdLogger(cfg.LogLevel)

	// Cancellation propagates into the sweep; partial rankings are kept.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		appLogger.Warn(ctx, "Shutdown signal received, aborting sweep")
		cancel()
	}()

	// Load candles
	var klines []*domain.Kline
	if *csvFile != "" {
		klines, err = utils.ReadKlinesFromCSV(*csvFile)
		if err != nil {
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
			log.Fatalf("Failed to load candles: %v", err)
		}
	}
	if len(klines) == 0 {
		log.Fatalf("No candles available for %s/%s", *symbol, *interval)
	}
	appLogger.Info(ctx, "Loaded candles", map[string]interface{}{
		"symbol": *symbol, "interval": *interval, "count": len(klines),
	})

	store, err := presetfs.New(cfg.PresetDir, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to open preset store: %v", err)
	}

	opt, err := optimizer.New(optimizer.Config{
		Workers: *workers,
		TopN:    *topN,
	}, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to build optimizer: %v", err)
	}

	base := presets.NewDefault(*symbol, *interval, regime)
	result, err := opt.Optimize(ctx, base, klines)
	if err != nil && !errors.Is(err, ports.ErrNoEligiblePreset) {
		appLogger.Error(ctx, err, "Optimization failed")
		log.Fatalf("Optimization failed: %v", err)
	}

	if *keepFailed && result != nil {
		for _, p := range result.InactivePresets(opt, base) {
			if serr := store.Save(ctx, p); serr != nil {
				appLogger.Error(ctx, serr, "Failed to archive rejected preset", map[string]interface{}{"presetID": p.ID})
			}
		}
	}

	if result == nil || result.Best == nil {
		appLogger.Warn(ctx, "No candidate cleared every gate; slot keeps its previous preset", map[string]interface{}{
			"symbol": *symbol, "interval": *interval, "regime": regime,
		})
		os.Exit(1)
	}

	if err := store.Save(ctx, result.Best); err != nil {
		appLogger.Error(ctx, err, "Failed to save optimized preset")
		log.Fatalf("Failed to save optimized preset: %v", err)
	}
	appLogger.Info(ctx, "Optimized preset activated", map[string]interface{}{
		"presetID":   result.Best.ID,
		"symbol":     result.Best.Symbol,
		"interval":   result.Best.Interval,
		"regime":     result.Best.Regime,
		"params":     result.Best.Params,
		"sharpe":     result.Best.Metrics.SharpeRatio,
		"winRateTP1": result.Best.Metrics.WinRateTP1,
		"robustness": result.Best.Robustness,
	})
}
