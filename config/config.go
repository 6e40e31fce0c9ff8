package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string
	GatewayAddr   string

	// Market data feed: "ws" or "sim"
	FeedMode string
	FeedURL  string

	// Simulated underlyings, "NAME:spot" comma-separated (sim mode)
	SimUnderlyings string

	// Pricing inputs
	RiskFreeRate  float64
	DividendYield float64

	// Historical volatility window (samples per underlying)
	HistVolWindow int

	// Alert delivery (optional)
	WebhookURL       string
	TelegramBotToken string
	TelegramChatID   string

	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/violations.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		GatewayAddr:   getEnv("GATEWAY_ADDR", ":8085"),

		FeedMode: getEnv("FEED_MODE", "sim"),
		FeedURL:  getEnv("FEED_URL", "ws://localhost:9001/ticks"),

		// Default: NIFTY and BANKNIFTY random walks
		SimUnderlyings: getEnv("SIM_UNDERLYINGS", "NIFTY:22000,BANKNIFTY:47000"),

		RiskFreeRate:  getEnvFloat("RISK_FREE_RATE", 0.07),
		DividendYield: getEnvFloat("DIVIDEND_YIELD", 0.0),

		HistVolWindow: getEnvInt("HISTVOL_WINDOW", 256),

		WebhookURL:       getEnv("WEBHOOK_URL", ""),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// ParseSimUnderlyings parses SimUnderlyings into a name -> starting-spot map.
func (c *Config) ParseSimUnderlyings() map[string]float64 {
	out := make(map[string]float64)
	for _, part := range strings.Split(c.SimUnderlyings, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, spotStr, ok := strings.Cut(part, ":")
		if !ok {
			log.Printf("[config] skipping invalid underlying spec: %q", part)
			continue
		}
		spot, err := strconv.ParseFloat(spotStr, 64)
		if err != nil || spot <= 0 {
			log.Printf("[config] skipping invalid spot in %q", part)
			continue
		}
		out[strings.ToUpper(strings.TrimSpace(name))] = spot
	}
	return out
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid float for %s: %q, using %v", key, v, fallback)
		return fallback
	}
	return f
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid int for %s: %q, using %v", key, v, fallback)
		return fallback
	}
	return n
}
