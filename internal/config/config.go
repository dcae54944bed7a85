package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultAPIBase is where the pricing engine listens when nothing is configured.
const DefaultAPIBase = "http://localhost:8000"

// Config holds application configuration
type Config struct {
	// Pricing engine
	APIBase       string
	SingleTimeout time.Duration
	BatchTimeout  time.Duration
	HealthTimeout time.Duration
	EngineWait    time.Duration

	// Console server
	Port string

	// Logging
	Environment string
	LogLevel    string
}

// Load loads configuration from environment variables, reading .env first when present.
func Load() *Config {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads configuration from the current environment only.
func FromEnv() *Config {
	return &Config{
		APIBase:       strings.TrimRight(getEnv("PRICING_API_BASE", getEnv("REACT_APP_API_BASE", DefaultAPIBase)), "/"),
		SingleTimeout: getEnvSeconds("SINGLE_TIMEOUT_SEC", 30),
		BatchTimeout:  getEnvSeconds("BATCH_TIMEOUT_SEC", 120),
		HealthTimeout: getEnvSeconds("HEALTH_TIMEOUT_SEC", 10),
		EngineWait:    getEnvSeconds("ENGINE_WAIT_SEC", 0),

		Port: getEnv("PORT", "8080"),

		Environment: os.Getenv("ENVIRONMENT"),
		LogLevel:    os.Getenv("LOG_LEVEL"),
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvSeconds(key string, defaultSec int) time.Duration {
	sec := defaultSec
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n >= 0 {
			sec = n
		}
	}
	return time.Duration(sec) * time.Second
}
