// Package config loads the service configuration from a YAML file with
// ${VAR} environment expansion, then applies environment overrides.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete edifica-api configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds listener and middleware tuning.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	MaxBodyBytes    int64  `yaml:"max_body_bytes"`
	RateLimitPerSec int    `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int    `yaml:"rate_limit_burst"`

	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig holds the Postgres connection string.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// AuthConfig holds the token secret and lifetimes. The secret is
// required and has no default.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`

	TokenTTL   time.Duration `yaml:"-"`
	ResetTTL   time.Duration `yaml:"-"`
	RefreshTTL time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	TokenTTLRaw   string `yaml:"token_ttl"`
	ResetTTLRaw   string `yaml:"reset_ttl"`
	RefreshTTLRaw string `yaml:"refresh_ttl"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads the configuration file at path, expands ${VAR} references,
// applies environment overrides and validates the result. An empty path
// builds the configuration from environment variables alone.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		expanded := expandEnvVars(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.parseDurations(); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with environment values.
// Unset variables expand to the empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyEnv lets a handful of environment variables override the file.
func (c *Config) applyEnv() {
	if v := os.Getenv("EDIFICA_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("EDIFICA_DATABASE_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("EDIFICA_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("EDIFICA_TOKEN_TTL"); v != "" {
		c.Auth.TokenTTLRaw = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.MaxBodyBytes <= 0 {
		c.Server.MaxBodyBytes = 1 << 20
	}
	if c.Server.RateLimitPerSec <= 0 {
		c.Server.RateLimitPerSec = 50
	}
	if c.Server.RateLimitBurst <= 0 {
		c.Server.RateLimitBurst = 100
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Auth.TokenTTLRaw == "" {
		c.Auth.TokenTTLRaw = "24h"
	}
	if c.Auth.ResetTTLRaw == "" {
		c.Auth.ResetTTLRaw = "30m"
	}
	if c.Auth.RefreshTTLRaw == "" {
		c.Auth.RefreshTTLRaw = "336h"
	}
}

func (c *Config) parseDurations() error {
	var err error
	if c.Auth.TokenTTL, err = time.ParseDuration(c.Auth.TokenTTLRaw); err != nil {
		return fmt.Errorf("parsing token_ttl %q: %w", c.Auth.TokenTTLRaw, err)
	}
	if c.Auth.ResetTTL, err = time.ParseDuration(c.Auth.ResetTTLRaw); err != nil {
		return fmt.Errorf("parsing reset_ttl %q: %w", c.Auth.ResetTTLRaw, err)
	}
	if c.Auth.RefreshTTL, err = time.ParseDuration(c.Auth.RefreshTTLRaw); err != nil {
		return fmt.Errorf("parsing refresh_ttl %q: %w", c.Auth.RefreshTTLRaw, err)
	}
	return nil
}

// Validate checks that required fields are present. The JWT secret is
// deliberately never defaulted.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 bytes")
	}
	return nil
}
