package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"cascadeBot/config"
	"cascadeBot/internal/adapters/binanceclient"
	"cascadeBot/internal/adapters/logger"
	"cascadeBot/internal/adapters/sqlite"
	"cascadeBot/internal/utils"
)

func main() {
	var (
		symbolsFlag   = flag.String("symbols", "", "comma-separated pairs, defaults to configured SYMBOLS")
		intervalsFlag = flag.String("intervals", "", "comma-separated intervals, defaults to configured INTERVALS")
		months        = flag.Int("months", 10, "how many months of history to fetch")
		outDir        = flag.String("out", "data", "directory for CSV output")
		saveDB        = flag.Bool("db", true, "also persist candles into the sqlite kline store")
	)
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	symbols := cfg.Symbols
	if *symbolsFlag != "" {
		symbols = strings.Split(*symbolsFlag, ",")
	}
	intervals := cfg.Intervals
	if *intervalsFlag != "" {
		intervals = strings.Split(*intervalsFlag, ",")
	}

	// 3. Initialize Exchange Client (Binance Adapter)
	marketClient, err := binanceclient.New(binanceclient.Config{
		UseTestnet:           cfg.IsTestnet,
		Logger:               appLogger,
		ReconnectDelay:       cfg.ReconnectDelay,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}
	appLogger.Info(context.Background(), "Binance client initialized")

	// 4. Optionally open the kline store
	var repo *sqlite.Repository
	if *saveDB {
		repo, err = sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
		if err != nil {
			appLogger.Error(context.Background(), err, "FATAL: Failed to open kline store")
			log.Fatalf("FATAL: Failed to open kline store: %v", err)
		}
		defer repo.Close()
	}

	end := time.Now()
	start := end.AddDate(0, -*months, 0)

	for _, symbol := range symbols {
		for _, interval := range intervals {
			fmt.Printf("Fetching klines for %s %s from %s to %s...\n", symbol, interval, start.Format("2006-01-02"), end.Format("2006-01-02"))
			klines, err := marketClient.GetKlinesRange(context.Background(), symbol, interval, start, end)
			if err != nil {
				appLogger.Error(context.Background(), err, "Error fetching klines", map[string]interface{}{"symbol": symbol, "interval": interval})
				continue
			}
			appLogger.Info(context.Background(), "Fetched klines", map[string]interface{}{"symbol": symbol, "interval": interval, "count": len(klines)})

			filename := fmt.Sprintf("%s/%s_%s_%s_to_%s.csv", *outDir, symbol, interval, start.Format("20060102"), end.Format("20060102"))
			if err := utils.WriteKlinesToCSV(klines, filename); err != nil {
				appLogger.Error(context.Background(), err, "Error writing CSV", map[string]interface{}{"filename": filename})
				continue
			}
			appLogger.Info(context.Background(), "Saved to", map[string]interface{}{"filename": filename})

			if repo != nil {
				if err := repo.SaveKlines(context.Background(), klines); err != nil {
					appLogger.Error(context.Background(), err, "Error persisting klines", map[string]interface{}{"symbol": symbol, "interval": interval})
				}
			}
		}
	}
}
