// internal/config/config.go

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

const defaultTokenSecret = "your-secret-key"

// Config holds all application configuration
type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	NATS        NATSConfig
	Store       StoreConfig
	Catalog     CatalogConfig
	Session     SessionConfig
	Identity    IdentityConfig
	Log         LogConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CorsOrigins     []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	SSLMode      string
}

// RedisConfig holds redis configuration
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// NATSConfig holds NATS configuration. An empty URL disables the event bus.
type NATSConfig struct {
	URL            string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectTimeout time.Duration
}

// StoreConfig selects the session store backend
type StoreConfig struct {
	Driver string
}

// CatalogConfig holds place generation configuration
type CatalogConfig struct {
	RadiusMeters float64
	NamesFile    string
	Seed         int64
	FocusSpan    float64
}

// SessionConfig holds session management configuration
type SessionConfig struct {
	EventsTopic   string
	IdleTTL       time.Duration
	SweepInterval time.Duration
}

// IdentityConfig holds session token configuration
type IdentityConfig struct {
	TokenSecret string
	TokenExpiry time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
}

// Load loads configuration from an optional .env file and environment variables
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("error loading .env file: %w", err)
	}

	config := Config{
		Environment: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			CorsOrigins:     getEnvAsSlice("SERVER_CORS_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvAsInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			Database:     getEnv("DB_NAME", "geofinder"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
			MaxLifetime:  getEnvAsDuration("DB_MAX_LIFETIME", 5*time.Minute),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvAsInt("REDIS_DB", 0),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "geofinder:session:"),
		},
		NATS: NATSConfig{
			URL:            getEnv("NATS_URL", ""),
			MaxReconnects:  getEnvAsInt("NATS_MAX_RECONNECTS", 10),
			ReconnectWait:  getEnvAsDuration("NATS_RECONNECT_WAIT", 1*time.Second),
			ConnectTimeout: getEnvAsDuration("NATS_CONNECT_TIMEOUT", 2*time.Second),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(getEnv("STORE_DRIVER", StoreMemory)),
		},
		Catalog: CatalogConfig{
			RadiusMeters: getEnvAsFloat("CATALOG_RADIUS_METERS", 10000),
			NamesFile:    getEnv("CATALOG_NAMES_FILE", ""),
			Seed:         getEnvAsInt64("CATALOG_SEED", 0),
			FocusSpan:    getEnvAsFloat("CATALOG_FOCUS_SPAN", 0.015),
		},
		Session: SessionConfig{
			EventsTopic:   getEnv("SESSION_EVENTS_TOPIC", "geofinder.session"),
			IdleTTL:       getEnvAsDuration("SESSION_IDLE_TTL", 30*time.Minute),
			SweepInterval: getEnvAsDuration("SESSION_SWEEP_INTERVAL", 1*time.Minute),
		},
		Identity: IdentityConfig{
			TokenSecret: getEnv("IDENTITY_TOKEN_SECRET", defaultTokenSecret),
			TokenExpiry: getEnvAsDuration("IDENTITY_TOKEN_EXPIRY", 24*time.Hour),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}

	return config, validate(config)
}

// validate checks if config is valid
func validate(config Config) error {
	if config.Identity.TokenSecret == defaultTokenSecret && config.Environment != "development" {
		return fmt.Errorf("token secret must be set in non-development environments")
	}

	if config.Catalog.RadiusMeters <= 0 {
		return fmt.Errorf("catalog radius must be positive, got %f", config.Catalog.RadiusMeters)
	}

	switch config.Store.Driver {
	case StoreMemory, StorePostgres, StoreRedis:
	default:
		return fmt.Errorf("unknown store driver %q", config.Store.Driver)
	}

	if config.Session.IdleTTL <= 0 || config.Session.SweepInterval <= 0 {
		return fmt.Errorf("session idle TTL and sweep interval must be positive")
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	return strings.Split(valueStr, ",")
}
