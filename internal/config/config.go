// Package config loads monitor settings from flags and environment
// variables, with a best-effort .env file on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"perp-risk-monitor/internal/domain"
)

// Config holds everything the monitor needs to run.
type Config struct {
	// WalletAddress is the EVM address whose account is monitored.
	WalletAddress string

	ExchangeURL   string
	ExchangeWSURL string

	PostgresDSN   string
	ClickhouseDSN string
	UseMemory     bool

	PollInterval  time.Duration
	WriteInterval time.Duration
	CacheTTL      time.Duration

	ListenAddr string

	Limits domain.RiskLimits
}

// LoadEnvFile loads .env into the process environment if one exists.
// A missing file is not an error.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// FromEnv builds a Config from environment variables, applying
// defaults for everything optional.
func FromEnv() Config {
	cfg := Config{
		WalletAddress: os.Getenv("WALLET_ADDRESS"),
		ExchangeURL:   os.Getenv("EXCHANGE_URL"),
		ExchangeWSURL: os.Getenv("EXCHANGE_WS_URL"),
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		ClickhouseDSN: os.Getenv("CLICKHOUSE_DSN"),
		UseMemory:     envBool("USE_MEMORY", false),
		PollInterval:  envDuration("POLL_INTERVAL", 15*time.Second),
		WriteInterval: envDuration("WRITE_INTERVAL", time.Minute),
		CacheTTL:      envDuration("CACHE_TTL", 5*time.Second),
		ListenAddr:    envString("LISTEN_ADDR", ":8080"),
		Limits:        limitsFromEnv(),
	}
	return cfg
}

// Validate reports the first fatal configuration problem.
func (c Config) Validate() error {
	if c.WalletAddress == "" {
		return errors.New("wallet address is required")
	}
	if !c.UseMemory && (c.PostgresDSN == "" || c.ClickhouseDSN == "") {
		return errors.New("postgres and clickhouse DSNs are required (or enable in-memory storage)")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", c.PollInterval)
	}
	if c.WriteInterval < 0 {
		return fmt.Errorf("write interval must not be negative, got %v", c.WriteInterval)
	}
	return nil
}

// limitsFromEnv overlays environment overrides on the default limits.
func limitsFromEnv() domain.RiskLimits {
	limits := domain.DefaultRiskLimits()
	limits.MaxPositionSizeUSD = envFloat("MAX_POSITION_SIZE_USD", limits.MaxPositionSizeUSD)
	limits.MaxLeverage = envFloat("MAX_LEVERAGE", limits.MaxLeverage)
	limits.MaxDrawdownPct = envFloat("MAX_DRAWDOWN_PCT", limits.MaxDrawdownPct)
	limits.MaxPositionPct = envFloat("MAX_POSITION_PCT", limits.MaxPositionPct)
	limits.MinDistanceToLiq = envFloat("MIN_DISTANCE_TO_LIQ", limits.MinDistanceToLiq)
	return limits
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
