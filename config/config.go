// Package config loads engine configuration from the environment.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config carries everything the server and CLI need to wire up.
type Config struct {
	Port             string
	UserDBURL        string // base URL of the path-addressed user tree
	RelayURL         string // base URL of the push relay
	DBPath           string // SQLite audit store path
	DispatchLimit    int    // max in-flight relay requests
	SchedulerEnabled bool
}

// Load reads configuration from the environment, with .env as a
// development convenience. Missing keys fall back to local defaults.
func Load() *Config {
	// Absence of a .env file is the normal production case.
	_ = godotenv.Load()

	return &Config{
		Port:             getEnv("PORT", "8080"),
		UserDBURL:        getEnv("USERDB_URL", "http://localhost:9000"),
		RelayURL:         getEnv("RELAY_URL", "http://localhost:9100"),
		DBPath:           getEnv("DB_PATH", "reminders.db"),
		DispatchLimit:    getEnvInt("DISPATCH_LIMIT", 8),
		SchedulerEnabled: getEnvBool("SCHEDULER_ENABLED", true),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
