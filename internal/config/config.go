package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	GRPC     GRPCConfig
	HTTP     HTTPConfig
	Auth     AuthConfig
	Log      LogConfig
}

// AppConfig carries process-wide settings.
type AppConfig struct {
	Env string // "development" or "production"
}

// DatabaseConfig contains database-related settings.
type DatabaseConfig struct {
	Path string // SQLite database file path
}

// GRPCConfig contains gRPC server settings.
type GRPCConfig struct {
	Address string // gRPC server listen address (e.g., ":50051")
}

// HTTPConfig contains the health/metrics listener settings.
type HTTPConfig struct {
	Address string
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	JWTSecret string // JWT signing secret
}

// LogConfig controls the zap logger and optional file rotation.
type LogConfig struct {
	Level     string
	File      string // empty logs to stdout only
	MaxSizeMB int
	MaxFiles  int
}

// Load loads configuration from environment variables with sensible defaults.
// A .env file in the working directory is read first when present; variables
// already set in the environment win.
func Load() (*Config, error) {
	cfg, err := load("")
	if err != nil {
		return nil, err
	}

	// Validate critical settings
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is not set; required for production")
	}
	return cfg, nil
}

// LoadWithDefaults is like Load but uses a safe default for JWT_SECRET in development.
// WARNING: Only use in development! Use Load() in production.
func LoadWithDefaults() (*Config, error) {
	return load("dev-secret-change-me")
}

func load(defaultSecret string) (*Config, error) {
	_ = godotenv.Load()

	maxSize, err := getEnvInt("LOG_MAX_SIZE_MB", 10)
	if err != nil {
		return nil, err
	}
	maxFiles, err := getEnvInt("LOG_MAX_FILES", 5)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Env: strings.ToLower(getEnv("APP_ENV", "development")),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "users.db"),
		},
		GRPC: GRPCConfig{
			Address: getEnv("GRPC_ADDRESS", ":50051"),
		},
		HTTP: HTTPConfig{
			Address: getEnv("HTTP_ADDRESS", ":8080"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", defaultSecret),
		},
		Log: LogConfig{
			Level:     strings.ToLower(getEnv("LOG_LEVEL", "info")),
			File:      getEnv("LOG_FILE", ""),
			MaxSizeMB: maxSize,
			MaxFiles:  maxFiles,
		},
	}
	return cfg, nil
}

// IsProduction reports whether APP_ENV selects production behaviour.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// getEnv retrieves an environment variable with a default fallback.
func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

// getEnvInt retrieves an environment variable as an integer with a default fallback.
func getEnvInt(key string, defaultVal int) (int, error) {
	if value, exists := os.LookupEnv(key); exists {
		intVal, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0, fmt.Errorf("invalid integer for %s: %w", key, err)
		}
		return intVal, nil
	}
	return defaultVal, nil
}

// String returns a string representation of the config (sensitive values are masked).
func (c *Config) String() string {
	return fmt.Sprintf("Config{Env: %s, DB: %s, gRPC: %s, HTTP: %s, Log: %s, Auth: *** (masked) ***}",
		c.App.Env, c.Database.Path, c.GRPC.Address, c.HTTP.Address, c.Log.Level)
}
