// Package config loads service configuration from a YAML file with
// environment variable overrides. A .env file, when present, is loaded
// before overrides are applied.
package config

import (
	"fmt"
	"time"
)

// Default configuration values.
const (
	defaultServiceName = "paylink"
	defaultServicePort = 8096
	defaultVersion     = "0.1.0"

	defaultDBHost    = "localhost"
	defaultDBPort    = 5432
	defaultDBName    = "paylink"
	defaultDBUser    = "postgres"
	defaultDBSSLMode = "disable"

	defaultRailBaseURL = "https://api.stripe.com/v1"
	defaultRailTimeout = 30 * time.Second

	defaultMaxClicksPerMinute = 60
	defaultWindowSeconds      = 60

	defaultLoggingLevel = "info"
)

// Config holds the application configuration.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Database  DatabaseConfig  `yaml:"database"`
	Rail      RailConfig      `yaml:"rail"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	Version   string `yaml:"version"`
	Port      int    `env:"PAYLINK_PORT" yaml:"port"`
	Debug     bool   `env:"APP_DEBUG"    yaml:"debug"`
	JWTSecret string `env:"JWT_SECRET"   yaml:"jwt_secret"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host     string `env:"POSTGRES_PAYLINK_HOST"     yaml:"host"`
	Port     int    `env:"POSTGRES_PAYLINK_PORT"     yaml:"port"`
	User     string `env:"POSTGRES_PAYLINK_USER"     yaml:"user"`
	Password string `env:"POSTGRES_PAYLINK_PASSWORD" yaml:"password"`
	Database string `env:"POSTGRES_PAYLINK_DB"       yaml:"database"`
	SSLMode  string `env:"POSTGRES_PAYLINK_SSLMODE"  yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// RailConfig holds payment-rail client configuration.
type RailConfig struct {
	BaseURL string        `env:"RAIL_BASE_URL" yaml:"base_url"`
	APIKey  string        `env:"RAIL_API_KEY"  yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
	// RemediationURL is surfaced to sellers whose connected account still
	// has outstanding payout requirements.
	RemediationURL string `yaml:"remediation_url"`
}

// RateLimitConfig holds click endpoint rate limiting configuration.
type RateLimitConfig struct {
	MaxClicksPerMinute int `yaml:"max_clicks_per_minute"`
	WindowSeconds      int `yaml:"window_seconds"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `env:"LOG_LEVEL" yaml:"level"`
}

// Load loads configuration from the specified path.
func Load(path string) (*Config, error) {
	return loadWithDefaults(path, setDefaults)
}

// setDefaults applies default values to the config.
func setDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	setDatabaseDefaults(&cfg.Database)
	setRailDefaults(&cfg.Rail)
	setRateLimitDefaults(&cfg.RateLimit)

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaultLoggingLevel
	}
}

func setServiceDefaults(svc *ServiceConfig) {
	if svc.Name == "" {
		svc.Name = defaultServiceName
	}
	if svc.Version == "" {
		svc.Version = defaultVersion
	}
	if svc.Port == 0 {
		svc.Port = defaultServicePort
	}
}

func setDatabaseDefaults(db *DatabaseConfig) {
	if db.Host == "" {
		db.Host = defaultDBHost
	}
	if db.Port == 0 {
		db.Port = defaultDBPort
	}
	if db.User == "" {
		db.User = defaultDBUser
	}
	if db.Database == "" {
		db.Database = defaultDBName
	}
	if db.SSLMode == "" {
		db.SSLMode = defaultDBSSLMode
	}
}

func setRailDefaults(rail *RailConfig) {
	if rail.BaseURL == "" {
		rail.BaseURL = defaultRailBaseURL
	}
	if rail.Timeout == 0 {
		rail.Timeout = defaultRailTimeout
	}
}

func setRateLimitDefaults(rl *RateLimitConfig) {
	if rl.MaxClicksPerMinute == 0 {
		rl.MaxClicksPerMinute = defaultMaxClicksPerMinute
	}
	if rl.WindowSeconds == 0 {
		rl.WindowSeconds = defaultWindowSeconds
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validatePort("service.port", c.Service.Port); err != nil {
		return err
	}
	if c.Service.JWTSecret == "" {
		return &ValidationError{Field: "service.jwt_secret", Message: "is required"}
	}
	if c.Rail.APIKey == "" {
		return &ValidationError{Field: "rail.api_key", Message: "is required"}
	}
	return nil
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func validatePort(field string, port int) error {
	if port < 1 || port > 65535 {
		return &ValidationError{Field: field, Message: "must be between 1 and 65535"}
	}
	return nil
}
