// Package config loads service configuration from defaults, an optional YAML
// file and environment overrides, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPathEnv names the variable holding the YAML config path.
const ConfigPathEnv = "LIVECHARGE_CONFIG"

// Config is the service configuration.
type Config struct {
	HTTPAddr    string            `yaml:"http_addr"`
	Database    DatabaseConfig    `yaml:"database"`
	Auth        AuthConfig        `yaml:"auth"`
	Log         LogConfig         `yaml:"log"`
	Area        AreaConfig        `yaml:"area"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
}

// DatabaseConfig configures the Postgres pool.
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	MigrateOnStart  bool          `yaml:"migrate_on_start"`
}

// AuthConfig configures inner JWT auth and seeded public API keys.
type AuthConfig struct {
	JWTSecret string   `yaml:"jwt_secret"`
	APIKeys   []string `yaml:"api_keys"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AreaConfig bounds public area queries.
type AreaConfig struct {
	MaxLimit int `yaml:"max_limit"`
}

// MaintenanceConfig schedules the charger cleanup. An empty DailyAt (or
// "off" in the environment) disables the scheduler.
type MaintenanceConfig struct {
	DailyAt string `yaml:"daily_at"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTPAddr: ":8080",
		Database: DatabaseConfig{
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Log:         LogConfig{Level: "info", Format: "json"},
		Area:        AreaConfig{MaxLimit: 10},
		Maintenance: MaintenanceConfig{DailyAt: "03:00"},
	}
}

// Load builds the configuration and validates it.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv(ConfigPathEnv); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", cfg.HTTPAddr)
	cfg.Database.URL = getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", cfg.Database.URL))
	cfg.Database.MigrateOnStart = getenvBoolDefault("MIGRATE_ON_START", cfg.Database.MigrateOnStart)
	cfg.Auth.JWTSecret = getenvDefault("AUTH_JWT_SECRET", cfg.Auth.JWTSecret)
	if keys := splitCSV(os.Getenv("API_KEYS")); len(keys) > 0 {
		cfg.Auth.APIKeys = keys
	}
	cfg.Log.Level = getenvDefault("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getenvDefault("LOG_FORMAT", cfg.Log.Format)
	cfg.Area.MaxLimit = getenvIntDefault("AREA_MAX_LIMIT", cfg.Area.MaxLimit)
	cfg.Maintenance.DailyAt = strings.TrimSpace(getenvDefault("MAINTENANCE_DAILY_AT", cfg.Maintenance.DailyAt))
	if strings.EqualFold(cfg.Maintenance.DailyAt, "off") {
		cfg.Maintenance.DailyAt = ""
	}
}

// Validate checks required and bounded settings.
func (c Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("config: DATABASE_URL or PG_DSN is required")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("config: AUTH_JWT_SECRET is required")
	}
	if c.Area.MaxLimit <= 0 {
		return errors.New("config: area max limit must be positive")
	}
	if c.Maintenance.DailyAt != "" {
		if _, err := time.Parse("15:04", c.Maintenance.DailyAt); err != nil {
			return fmt.Errorf("config: maintenance daily_at %q: want HH:MM", c.Maintenance.DailyAt)
		}
	}
	return nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBoolDefault(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}
