package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up

	"cascadeBot/config"
	"cascadeBot/internal/adapters/binanceclient"
	"cascadeBot/internal/adapters/logger"
	"cascadeBot/internal/adapters/presetfs"
	"cascadeBot/internal/adapters/sqlite"
	"cascadeBot/internal/app"
	"cascadeBot/internal/portfolio"
	"cascadeBot/internal/signalgen"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err) // Also log to stderr
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()
	appLogger.Info(context.Background(), "Database repository initialized")

	// 4. Initialize Preset Store
	presetStore, err := presetfs.New(cfg.PresetDir, appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize preset store")
		log.Fatalf("FATAL: Failed to initialize preset store: %v", err)
	}
	appLogger.Info(context.Background(), "Preset store initialized", map[string]interface{}{"dir": cfg.PresetDir})

	// 5. Initialize Exchange Client (Binance Adapter)
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

	// 6. Initialize Signal Generator and Portfolio Manager
	generator := signalgen.NewGenerator(appLogger, signalgen.DefaultFilterConfig(), cfg.SignalExpiry)

	manager, err := portfolio.NewManager(
		cfg.Limits(),
		portfolio.NewCorrelationTracker(0),
		portfolio.NewSizer(cfg.SizerConfig()),
		appLogger,
	)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize portfolio manager")
		log.Fatalf("FATAL: Failed to initialize portfolio manager: %v", err)
	}
	appLogger.Info(context.Background(), "Portfolio manager initialized", map[string]interface{}{
		"maxPositions": cfg.MaxPositions,
		"maxPerSector": cfg.MaxPerSector,
		"maxHeatPct":   cfg.MaxPortfolioHeatPct,
	})

	// 7. Initialize Application Service
	trackingService, err := app.NewTrackingService(
		cfg,
		appLogger,
		marketClient, // Pass the concrete implementation, service expects the interface
		repo,         // Pass the concrete implementation, service expects the interface
		repo,         // Pass the concrete implementation, service expects the interface
		presetStore,
		generator,
		manager,
	)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize tracking service")
		log.Fatalf("FATAL: Failed to initialize tracking service: %v", err)
	}
	appLogger.Info(context.Background(), "Tracking service initialized")

	// 8. Start the Service
	// Use context.Background() as the base context for the application run
	if err := trackingService.Start(context.Background()); err != nil {
		appLogger.Error(context.Background(), err, "Tracking service exited with error")
		log.Fatalf("FATAL: Tracking service exited with error: %v", err)
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
}
