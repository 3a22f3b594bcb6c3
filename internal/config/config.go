package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	// DatabaseURL selects a PostgreSQL translation memory when set. TMPath
	// is the SQLite memory used otherwise.
	DatabaseURL       string
	TMPath            string
	Neo4jURI          string
	Neo4jUser         string
	Neo4jPassword     string
	WorkerCount       int
	SourceLocale      string
	TargetLocale      string
	FilterConfigDir   string
	LeverageThreshold float64
	LogLevel          string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}
	return FromEnv()
}

// FromEnv reads the configuration from the environment only.
func FromEnv() *Config {
	return &Config{
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		TMPath:            getEnv("TM_PATH", "l10nkit-tm.db"),
		Neo4jURI:          getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:         getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:     getEnv("NEO4J_PASSWORD", "password"),
		WorkerCount:       getEnvInt("WORKER_COUNT", 8),
		SourceLocale:      getEnv("SOURCE_LOCALE", "en"),
		TargetLocale:      getEnv("TARGET_LOCALE", ""),
		FilterConfigDir:   getEnv("FILTER_CONFIG_DIR", ""),
		LeverageThreshold: getEnvFloat("LEVERAGE_THRESHOLD", 0.75),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
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
