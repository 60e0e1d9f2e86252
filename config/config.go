// Package config provides configuration for the discovery orchestrator.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the orchestrator configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseURL string

	// Structure service
	ChemServiceURL     string
	ChemServiceTimeout time.Duration

	// Transformation rule catalog (empty means built-in defaults)
	RulesPath string

	// Dispatcher settings
	Workers    int
	QueueSize  int
	RunTimeout time.Duration

	// Retry policy for infrastructure failures
	RetryAttempts int
	RetryDelay    time.Duration

	// Logging
	LogLevel string
}

// Load loads configuration from a .env file (when present) and the
// environment.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPPort:           getEnvInt("HTTP_PORT", 8080),
		DatabaseURL:        getEnv("DATABASE_URL", "file:molforge.db?cache=shared&mode=rwc"),
		ChemServiceURL:     getEnv("CHEM_SERVICE_URL", "http://localhost:8100"),
		ChemServiceTimeout: time.Duration(getEnvInt("CHEM_SERVICE_TIMEOUT_MS", 30000)) * time.Millisecond,
		RulesPath:          getEnv("RULES_PATH", ""),
		Workers:            getEnvInt("WORKERS", 4),
		QueueSize:          getEnvInt("QUEUE_SIZE", 64),
		RunTimeout:         time.Duration(getEnvInt("RUN_TIMEOUT_MS", 600000)) * time.Millisecond,
		RetryAttempts:      getEnvInt("RETRY_ATTEMPTS", 3),
		RetryDelay:         time.Duration(getEnvInt("RETRY_DELAY_MS", 2000)) * time.Millisecond,
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
