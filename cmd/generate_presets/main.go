package main

import (
	"context"
	"flag"
	"log"

	"cascadeBot/config"
	"cascadeBot/internal/adapters/logger"
	"cascadeBot/internal/adapters/presetfs"
	"cascadeBot/internal/presets"
)

// Seeds the preset store with the default catalogue: one preset per tracked
// (symbol, interval, regime) slot, ladders scaled per regime and indicator
// parameters per sector. Existing active presets are demoted to the archive.
func main() {
	var overwrite = flag.Bool("overwrite", false, "replace slots that already have an active preset")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx := context.Background()

	store, err := presetfs.New(cfg.PresetDir, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to open preset store: %v", err)
	}

	saved, skipped := 0, 0
	for _, p := range presets.GenerateAll() {
		if !*overwrite {
			if _, err := store.GetActive(ctx, p.Symbol, p.Interval, p.Regime); err == nil {
				skipped++
				continue
			}
		}
		if err := store.Save(ctx, p); err != nil {
			appLogger.Error(ctx, err, "Failed to save preset", map[string]interface{}{"key": p.Key()})
			continue
		}
		saved++
	}

	appLogger.Info(ctx, "Default preset catalogue generated", map[string]interface{}{
		"dir":     cfg.PresetDir,
		"saved":   saved,
		"skipped": skipped,
	})
}
