package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Store backends.
const (
	StoreBackendFile   = "file"
	StoreBackendSQLite = "sqlite"
	StoreBackendRedis  = "redis"
)

// Config holds all telemetry configuration
type Config struct {
	Telemetry TelemetryConfig
	Store     StoreConfig
	Redis     RedisConfig
	App       AppConfig
}

// TelemetryConfig holds client behavior configuration
type TelemetryConfig struct {
	Enabled       bool
	Mode          string
	Endpoint      string
	MaxQueueSize  int
	FlushInterval time.Duration
	BatchSize     int
	MaxRetries    int
	SendTimeout   time.Duration
	DebugMode     bool
}

// StoreConfig holds local state store configuration
type StoreConfig struct {
	Backend string
	Path    string
}

// RedisConfig holds Redis configuration for the redis store backend
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// AppConfig holds the static environment tags attached to events
type AppConfig struct {
	Version  string
	Platform string
	Locale   string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Telemetry: TelemetryConfig{
			Enabled:       getEnvAsBool("TELEMETRY_ENABLED", true),
			Mode:          getEnv("TELEMETRY_MODE", "default"),
			Endpoint:      getEnv("TELEMETRY_ENDPOINT", "https://collect.harborapp.dev/api/telemetry/events"),
			MaxQueueSize:  getEnvAsInt("TELEMETRY_MAX_QUEUE_SIZE", 1000),
			FlushInterval: time.Duration(getEnvAsInt("TELEMETRY_FLUSH_INTERVAL_MS", 30000)) * time.Millisecond,
			BatchSize:     getEnvAsInt("TELEMETRY_BATCH_SIZE", 50),
			MaxRetries:    getEnvAsInt("TELEMETRY_MAX_RETRIES", 3),
			SendTimeout:   time.Duration(getEnvAsInt("TELEMETRY_SEND_TIMEOUT_MS", 10000)) * time.Millisecond,
			DebugMode:     getEnvAsBool("TELEMETRY_DEBUG", false),
		},
		Store: StoreConfig{
			Backend: getEnv("TELEMETRY_STORE", StoreBackendFile),
			Path:    getEnv("TELEMETRY_STORE_PATH", ""),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		App: AppConfig{
			Version:  getEnv("APP_VERSION", ""),
			Platform: getEnv("APP_PLATFORM", ""),
			Locale:   getEnv("APP_LOCALE", ""),
		},
	}

	switch cfg.Store.Backend {
	case StoreBackendFile, StoreBackendSQLite, StoreBackendRedis:
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	if cfg.Telemetry.MaxQueueSize <= 0 {
		return nil, fmt.Errorf("max queue size must be positive, got %d", cfg.Telemetry.MaxQueueSize)
	}
	if cfg.Telemetry.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", cfg.Telemetry.BatchSize)
	}

	return cfg, nil
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
