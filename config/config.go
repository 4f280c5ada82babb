package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"cascadeBot/internal/adapters/logger" // Import the logger package for LogLevel
	"cascadeBot/internal/domain"
	"cascadeBot/internal/portfolio"
)

// Config holds all application configuration.
type Config struct {
	// Exchange connection
	IsTestnet bool

	// Tracked universe
	Symbols   []string // Trading pairs to track (e.g., BTCUSDT,ETHUSDT)
	Intervals []string // Kline intervals to track (e.g., 30m,1h,2h)

	// Portfolio risk limits
	MaxPositions         int
	MaxPerSector         int
	CorrelationThreshold float64
	MaxPortfolioHeatPct  float64

	// Position sizing
	SizingStrategy portfolio.SizingStrategy
	RiskPerTrade   float64 // Percent of equity risked per trade
	MaxPositionPct float64 // Ceiling on risk percent per position
	InitialBalance float64 // Starting equity for heat and sizing math

	// Signal generation
	SignalExpiry time.Duration // How long an unfilled signal stays valid

	// Storage
	DBPath    string
	PresetDir string

	// Logging
	LogLevel logger.LogLevel // Use the LogLevel type from the logger adapter

	// Connection Settings
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true) // Default to testnet for safety

	// Tracked universe
	cfg.Symbols = getEnvAsSlice("SYMBOLS", domain.TradingPairs)
	if len(cfg.Symbols) == 0 {
		errs = append(errs, "SYMBOLS must contain at least one pair")
	}
	cfg.Intervals = getEnvAsSlice("INTERVALS", domain.Timeframes)
	if len(cfg.Intervals) == 0 {
		errs = append(errs, "INTERVALS must contain at least one interval")
	}

	// Portfolio risk limits
	cfg.MaxPositions, err = getEnvAsIntRequired("MAX_POSITIONS", 5)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_POSITIONS: %v", err))
	} else if cfg.MaxPositions <= 0 {
		errs = append(errs, "MAX_POSITIONS must be positive")
	}

	cfg.MaxPerSector, err = getEnvAsIntRequired("MAX_PER_SECTOR", 2)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_PER_SECTOR: %v", err))
	} else if cfg.MaxPerSector <= 0 {
		errs = append(errs, "MAX_PER_SECTOR must be positive")
	}

	cfg.CorrelationThreshold, err = getEnvAsFloatRequired("CORRELATION_THRESHOLD", 0.7)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid CORRELATION_THRESHOLD: %v", err))
	} else if cfg.CorrelationThreshold <= 0 || cfg.CorrelationThreshold > 1 {
		errs = append(errs, "CORRELATION_THRESHOLD must be between 0.0 (exclusive) and 1.0")
	}

	cfg.MaxPortfolioHeatPct, err = getEnvAsFloatRequired("MAX_PORTFOLIO_HEAT_PCT", 8.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_PORTFOLIO_HEAT_PCT: %v", err))
	} else if cfg.MaxPortfolioHeatPct <= 0 {
		errs = append(errs, "MAX_PORTFOLIO_HEAT_PCT must be positive")
	}

	// Position sizing
	sizingStr := getEnv("SIZING_STRATEGY", string(portfolio.SizeFixedFractional))
	switch portfolio.SizingStrategy(sizingStr) {
	case portfolio.SizeFixedFractional, portfolio.SizeVolatilityAdjusted, portfolio.SizeKelly:
		cfg.SizingStrategy = portfolio.SizingStrategy(sizingStr)
	default:
		errs = append(errs, fmt.Sprintf("unknown SIZING_STRATEGY %q", sizingStr))
	}

	cfg.RiskPerTrade, err = getEnvAsFloatRequired("RISK_PER_TRADE_PCT", 2.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid RISK_PER_TRADE_PCT: %v", err))
	} else if cfg.RiskPerTrade <= 0 {
		errs = append(errs, "RISK_PER_TRADE_PCT must be positive")
	}

	cfg.MaxPositionPct, err = getEnvAsFloatRequired("MAX_POSITION_PCT", 5.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_POSITION_PCT: %v", err))
	} else if cfg.MaxPositionPct < cfg.RiskPerTrade {
		errs = append(errs, "MAX_POSITION_PCT must be at least RISK_PER_TRADE_PCT")
	}

	cfg.InitialBalance, err = getEnvAsFloatRequired("INITIAL_BALANCE", 10000.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid INITIAL_BALANCE: %v", err))
	} else if cfg.InitialBalance <= 0 {
		errs = append(errs, "INITIAL_BALANCE must be positive")
	}

	// Signal generation
	signalExpiryMinutes := getEnvAsInt("SIGNAL_EXPIRY_MINUTES", 30)
	if signalExpiryMinutes <= 0 {
		errs = append(errs, "SIGNAL_EXPIRY_MINUTES must be positive")
	}
	cfg.SignalExpiry = time.Duration(signalExpiryMinutes) * time.Minute

	// Storage
	cfg.DBPath = getEnv("DB_PATH", "./data/cascade_bot.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}
	cfg.PresetDir = getEnv("PRESET_DIR", "./data/presets")
	if cfg.PresetDir == "" {
		errs = append(errs, "PRESET_DIR must be set")
	}

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr) // Use the parser from the logger package

	// Connection Settings
	reconnectDelaySeconds := getEnvAsInt("RECONNECT_DELAY_SECONDS", 5)
	if reconnectDelaySeconds <= 0 {
		errs = append(errs, "RECONNECT_DELAY_SECONDS must be positive")
	}
	cfg.ReconnectDelay = time.Duration(reconnectDelaySeconds) * time.Second

	cfg.MaxReconnectAttempts = getEnvAsInt("MAX_RECONNECT_ATTEMPTS", 10)
	if cfg.MaxReconnectAttempts < 0 {
		errs = append(errs, "MAX_RECONNECT_ATTEMPTS cannot be negative")
	}

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// Limits converts the portfolio-related fields into portfolio.Limits.
func (c *Config) Limits() portfolio.Limits {
	return portfolio.Limits{
		MaxPositions:         c.MaxPositions,
		MaxPerSector:         c.MaxPerSector,
		CorrelationThreshold: c.CorrelationThreshold,
		MaxHeatPct:           c.MaxPortfolioHeatPct,
	}
}

// SizerConfig converts the sizing fields into a portfolio.SizerConfig.
func (c *Config) SizerConfig() portfolio.SizerConfig {
	return portfolio.SizerConfig{
		Strategy:       c.SizingStrategy,
		RiskPerTrade:   c.RiskPerTrade,
		MaxPositionPct: c.MaxPositionPct,
	}
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Log warning? For non-required fields, default is often acceptable.
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
