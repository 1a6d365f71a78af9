package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"flichub/internal/relay"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	GoEnv string `env:"GO_ENV" default:"development"`

	// TCP relay
	TCPHost string `env:"TCP_HOST" default:"0.0.0.0"`
	TCPPort int    `env:"TCP_PORT" default:"8124"`

	// HTTP API + websocket
	HTTPEnabled bool `env:"HTTP_ENABLED" default:"true"`
	HTTPPort    int  `env:"HTTP_PORT" default:"8125"`

	// Hub backend: memory | redis
	HubBackend     string `env:"HUB_BACKEND" default:"memory"`
	HubFixturePath string `env:"HUB_FIXTURE_PATH"`

	// Redis hub
	RedisURL      string `env:"REDIS_URL" default:"redis://localhost:6379/0"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" default:"0"`
	RedisPrefix   string `env:"REDIS_PREFIX" default:"flichub"`

	// Session behaviour
	IdlePulseEnabled      bool          `env:"IDLE_PULSE_ENABLED" default:"true"`
	IdlePulseDelay        time.Duration `env:"IDLE_PULSE_DELAY" default:"100ms"`
	ButtonRefreshInterval time.Duration `env:"BUTTON_REFRESH_INTERVAL" default:"0"`
	UnknownCommandReply   bool          `env:"UNKNOWN_COMMAND_REPLY" default:"false"`
	CommandRateLimit      float64       `env:"COMMAND_RATE_LIMIT" default:"0"`
	CommandRateBurst      int           `env:"COMMAND_RATE_BURST" default:"100"`
	IdleTimeout           time.Duration `env:"IDLE_TIMEOUT" default:"0"`
	WriteTimeout          time.Duration `env:"WRITE_TIMEOUT" default:"10s"`
	SendQueueSize         int           `env:"SEND_QUEUE_SIZE" default:"64"`

	// Discovery
	MDNSEnabled  bool   `env:"MDNS_ENABLED" default:"false"`
	MDNSInstance string `env:"MDNS_INSTANCE" default:"FlicHub Relay"`

	// Development
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"json"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// .env is optional; system env vars still apply without it
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	return loadFromEnv()
}

func loadFromEnv() (*Config, error) {
	config := &Config{}

	if err := loadEnvString(&config.GoEnv, "GO_ENV", "development"); err != nil {
		return nil, err
	}

	// TCP relay
	if err := loadEnvString(&config.TCPHost, "TCP_HOST", "0.0.0.0"); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.TCPPort, "TCP_PORT", 8124); err != nil {
		return nil, err
	}

	// HTTP
	if err := loadEnvBool(&config.HTTPEnabled, "HTTP_ENABLED", true); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.HTTPPort, "HTTP_PORT", 8125); err != nil {
		return nil, err
	}

	// Hub
	if err := loadEnvString(&config.HubBackend, "HUB_BACKEND", "memory"); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.HubFixturePath, "HUB_FIXTURE_PATH", ""); err != nil {
		return nil, err
	}

	// Redis
	if err := loadEnvString(&config.RedisURL, "REDIS_URL", "redis://localhost:6379/0"); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.RedisPassword, "REDIS_PASSWORD", ""); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.RedisDB, "REDIS_DB", 0); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.RedisPrefix, "REDIS_PREFIX", "flichub"); err != nil {
		return nil, err
	}

	// Session behaviour
	if err := loadEnvBool(&config.IdlePulseEnabled, "IDLE_PULSE_ENABLED", true); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.IdlePulseDelay, "IDLE_PULSE_DELAY", 100*time.Millisecond); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.ButtonRefreshInterval, "BUTTON_REFRESH_INTERVAL", 0); err != nil {
		return nil, err
	}
	if err := loadEnvBool(&config.UnknownCommandReply, "UNKNOWN_COMMAND_REPLY", false); err != nil {
		return nil, err
	}
	if err := loadEnvFloat(&config.CommandRateLimit, "COMMAND_RATE_LIMIT", 0); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.CommandRateBurst, "COMMAND_RATE_BURST", 100); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.IdleTimeout, "IDLE_TIMEOUT", 0); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.WriteTimeout, "WRITE_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.SendQueueSize, "SEND_QUEUE_SIZE", 64); err != nil {
		return nil, err
	}

	// Discovery
	if err := loadEnvBool(&config.MDNSEnabled, "MDNS_ENABLED", false); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.MDNSInstance, "MDNS_INSTANCE", "FlicHub Relay"); err != nil {
		return nil, err
	}

	// Development
	if err := loadEnvString(&config.LogLevel, "LOG_LEVEL", "info"); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.LogFormat, "LOG_FORMAT", "json"); err != nil {
		return nil, err
	}
	return config, nil
}

// Helper functions for type conversion and validation
func loadEnvString(target *string, key, defaultValue string) error {
	if value := os.Getenv(key); value != "" {
		*target = value
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvInt(target *int, key string, defaultValue int) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvFloat(target *float64, key string, defaultValue float64) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvBool(target *bool, key string, defaultValue bool) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvDuration(target *time.Duration, key string, defaultValue time.Duration) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

// Validate performs validation on the loaded configuration
func (c *Config) Validate() error {
	var errors []string

	// Validate ports are in valid range
	if c.TCPPort < 1 || c.TCPPort > 65535 {
		errors = append(errors, "TCP_PORT must be between 1 and 65535")
	}
	if c.HTTPEnabled && (c.HTTPPort < 1 || c.HTTPPort > 65535) {
		errors = append(errors, "HTTP_PORT must be between 1 and 65535")
	}
	if c.HTTPEnabled && c.HTTPPort == c.TCPPort {
		errors = append(errors, "HTTP_PORT must differ from TCP_PORT")
	}

	validBackends := []string{"memory", "redis"}
	if !contains(validBackends, c.HubBackend) {
		errors = append(errors, fmt.Sprintf("HUB_BACKEND must be one of: %s", strings.Join(validBackends, ", ")))
	}
	if c.HubBackend == "redis" && c.RedisURL == "" {
		errors = append(errors, "REDIS_URL is required when HUB_BACKEND is redis")
	}

	if c.IdlePulseDelay <= 0 {
		errors = append(errors, "IDLE_PULSE_DELAY must be positive")
	}
	if c.ButtonRefreshInterval < 0 || c.IdleTimeout < 0 || c.WriteTimeout < 0 {
		errors = append(errors, "BUTTON_REFRESH_INTERVAL, IDLE_TIMEOUT and WRITE_TIMEOUT must not be negative")
	}
	if c.CommandRateLimit < 0 {
		errors = append(errors, "COMMAND_RATE_LIMIT must not be negative")
	}
	if c.CommandRateLimit > 0 && c.CommandRateBurst < 1 {
		errors = append(errors, "COMMAND_RATE_BURST must be at least 1")
	}
	if c.SendQueueSize < 1 {
		errors = append(errors, "SEND_QUEUE_SIZE must be at least 1")
	}

	// Validate log level
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %s", strings.Join(validLogLevels, ", ")))
	}

	// Validate log format
	validLogFormats := []string{"text", "json"}
	if !contains(validLogFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: %s", strings.Join(validLogFormats, ", ")))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// TCPAddr is the relay listen address.
func (c *Config) TCPAddr() string {
	return fmt.Sprintf("%s:%d", c.TCPHost, c.TCPPort)
}

// HTTPAddr is the HTTP API listen address.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.TCPHost, c.HTTPPort)
}

// SlogLevel maps LogLevel to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger from LogLevel and LogFormat.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// RelayOptions converts the session settings into relay.Options.
func (c *Config) RelayOptions(logger *slog.Logger) relay.Options {
	return relay.Options{
		IdlePulse:       c.IdlePulseEnabled,
		IdlePulseDelay:  c.IdlePulseDelay,
		RefreshInterval: c.ButtonRefreshInterval,
		ReplyUnknown:    c.UnknownCommandReply,
		RateLimit:       c.CommandRateLimit,
		RateBurst:       c.CommandRateBurst,
		IdleTimeout:     c.IdleTimeout,
		WriteTimeout:    c.WriteTimeout,
		SendQueueSize:   c.SendQueueSize,
		Logger:          logger,
	}
}

// Helper function to check if slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
