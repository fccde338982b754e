package main

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the mock agent configuration loaded from environment variables.
type Config struct {
	Port       string
	LogLevel   string // debug, info, warn, error
	ChunkDelay time.Duration
	Token      string // when set, requests must carry this bearer token
}

// LoadConfig loads configuration from environment variables.
// It loads a .env file if present (silent fail if not found).
func LoadConfig() *Config {
	godotenv.Load() // Load .env file if present

	return &Config{
		Port:       getEnvOrDefault("MOCKAGENT_PORT", "8080"),
		LogLevel:   getEnvOrDefault("MOCKAGENT_LOG_LEVEL", "info"),
		ChunkDelay: getEnvDurationOrDefault("MOCKAGENT_CHUNK_DELAY", 50*time.Millisecond),
		Token:      os.Getenv("MOCKAGENT_TOKEN"),
	}
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvDurationOrDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return def
}
