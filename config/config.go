// Package config loads process configuration from CLI flags and
// environment variables, and the per-symbol tick-size override table.
// Parsing itself is a thin shell: the values it produces feed every other
// package, but no order-flow logic lives here.
package config

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds everything needed to start the engine.
type Config struct {
	Demo     bool
	Port     int
	Symbols  []string
	MinSize  int64
	APIKey   string

	DatabentoAPIKey string
	LiveURL         string
	LogLevel        string

	DBPath    string
	RedisAddr string

	Thresholds Thresholds
}

// Thresholds holds every tunable constant across the detector pipeline,
// with the defaults named below.
type Thresholds struct {
	// CVD zero-cross hysteresis.
	ZeroCrossMinAbsCVD int64

	// Aggregate significant-imbalance ratio.
	SignificantImbalance float64

	// Volume-profile stacked-imbalance ratio.
	StackedImbalanceRatio float64
	StackedImbalanceRun   int

	// Absorption detector.
	AbsorptionMinSize   int64
	AbsorptionIdleLimit int64 // ms

	// Confluence sliding window, ms.
	ConfluenceWindowMs int64

	// Outcome tracker.
	OutcomeMark1m   int64 // ms
	OutcomeMark5m   int64 // ms
	OutcomeWinTicks float64

	// Broadcast hub.
	SubscriberBufferSize int

	// Store.
	StoreBacklogSize int

	// Aggregator, ms.
	BucketIdleCloseMs int64

	DefaultTick float64
}

// DefaultThresholds mirrors the defaults documented above.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ZeroCrossMinAbsCVD:    300,
		SignificantImbalance:  0.15,
		StackedImbalanceRatio: 0.67,
		StackedImbalanceRun:   3,
		AbsorptionMinSize:     20,
		AbsorptionIdleLimit:   5 * 60 * 1000,
		ConfluenceWindowMs:    30 * 1000,
		OutcomeMark1m:         60 * 1000,
		OutcomeMark5m:         300 * 1000,
		OutcomeWinTicks:       4,
		SubscriberBufferSize:  1024,
		StoreBacklogSize:      10000,
		BucketIdleCloseMs:     1100,
		DefaultTick:           0.25,
	}
}

// LoadFromEnv loads configuration from a .env file (if present), the
// environment, and CLI flags. Flags take precedence over env.
func LoadFromEnv(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	fs := flag.NewFlagSet("orderflow-engine", flag.ContinueOnError)
	demo := fs.Bool("demo", getEnvOrDefault("OFE_DEMO", "false") == "true", "run against the demo trade generator instead of the live vendor feed")
	port := fs.Int("port", getEnvInt("PORT", 8080), "HTTP/WebSocket listen port")
	symbols := fs.String("symbols", getEnvOrDefault("OFE_SYMBOLS", "ESZ5"), "comma-separated list of symbols to track")
	minSize := fs.Int64("min-size", int64(getEnvInt("OFE_MIN_SIZE", 0)), "minimum trade size forwarded to subscribers")
	apiKey := fs.String("api-key", getEnvOrDefault("DATABENTO_API_KEY", ""), "vendor API key for the live trade source")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("LoadFromEnv: parse flags: %w", err)
	}

	cfg := &Config{
		Demo:            *demo,
		Port:            *port,
		Symbols:         splitCSV(*symbols),
		MinSize:         *minSize,
		APIKey:          *apiKey,
		DatabentoAPIKey: *apiKey,
		LiveURL:         getEnvOrDefault("OFE_LIVE_URL", "wss://live.databento.com/v1/trades"),
		LogLevel:        getEnvOrDefault("RUST_LOG", "info"),
		DBPath:          getEnvOrDefault("OFE_DB_PATH", "orderflow.db"),
		RedisAddr:       getEnvOrDefault("OFE_REDIS_ADDR", ""),
		Thresholds:      DefaultThresholds(),
	}

	if !cfg.Demo && cfg.APIKey == "" {
		return nil, fmt.Errorf("LoadFromEnv: live mode requires --api-key or DATABENTO_API_KEY")
	}

	return cfg, nil
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var intValue int
	if _, err := fmt.Sscanf(value, "%d", &intValue); err != nil {
		return defaultValue
	}
	return intValue
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
