// Package config loads service configuration from the environment,
// with an optional .env file for local development.
package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config carries everything the server and CLI need at startup.
type Config struct {
	Port              string
	FirestoreProject  string
	DatabasePath      string
	RulesPath         string // Empty means the embedded rule table.
	LogLevel          string
	MaxRows           int
	RateLimitPerSec   float64
	RateLimitBurst    int
	MaxUploadSizeByte int64
}

// Load reads configuration from the environment. A missing .env file is
// not an error; OS variables and defaults are used.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on OS environment variables and defaults")
	}

	return &Config{
		Port:              getEnv("PORT", "8080"),
		FirestoreProject:  getEnv("FIRESTORE_PROJECT", ""),
		DatabasePath:      getEnv("DATABASE_PATH", "./extrato.db"),
		RulesPath:         getEnv("RULES_PATH", ""),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		MaxRows:           getEnvAsInt("IMPORT_MAX_ROWS", 10000),
		RateLimitPerSec:   float64(getEnvAsInt("RATE_LIMIT_PER_SEC", 10)),
		RateLimitBurst:    getEnvAsInt("RATE_LIMIT_BURST", 20),
		MaxUploadSizeByte: int64(getEnvAsInt("MAX_UPLOAD_SIZE_BYTES", 10*1024*1024)),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("invalid integer value for %s (%q), using default %d", key, valueStr, fallback)
		return fallback
	}
	return value
}
