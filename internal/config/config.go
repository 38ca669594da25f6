// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.supportchat/config.yaml or ./config.yaml)
//  3. Default values
//
// The configuration is loaded once at process start, validated, and passed
// into constructors; business logic never reads ambient environment state.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sentinel errors for configuration validation.
// Check with errors.Is(); Load wraps them with detail.
var (
	// ErrMissingAPIKey indicates the Gemini API key is not set.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is empty or malformed.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max output tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max output tokens")

	// ErrInvalidTimeout indicates the generation timeout is out of range.
	ErrInvalidTimeout = errors.New("invalid generation timeout")

	// ErrInvalidHistoryWindow indicates the history window size is out of range.
	ErrInvalidHistoryWindow = errors.New("invalid history window")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

// Generation and context-window bounds.
const (
	// DefaultHistoryWindow is the number of recent turns supplied as
	// context to each generation call.
	DefaultHistoryWindow = 12

	// MaxHistoryWindow caps the window so a misconfigured deployment
	// cannot blow the prompt budget.
	MaxHistoryWindow = 200

	// DefaultMaxOutputTokens bounds the length of a generated reply.
	DefaultMaxOutputTokens = 300

	// DefaultGenerateTimeout is the hard wall-clock bound on one
	// generation call.
	DefaultGenerateTimeout = 25 * time.Second

	// DefaultMaxMessageLen is the hard cap on an inbound message; longer
	// messages are truncated at the HTTP boundary.
	DefaultMaxMessageLen = 2000
)

// DefaultPersona is the fixed policy/persona block prepended to every
// transcript. Deployments override it via persona or persona_file.
const DefaultPersona = `You are SpurStore Support (fictional e-commerce store).

Store facts (use these as source of truth):
- Shipping:
  - We ship across India + USA.
  - India delivery: 2-5 business days.
  - USA delivery: 7-12 business days.
  - Orders above Rs.999 ship free in India. Otherwise Rs.79.
- Returns & refunds:
  - 7-day return window from delivery date.
  - Items must be unused + in original packaging.
  - Refunds to original payment method in 5-7 business days after pickup/QC.
- Support hours:
  - Mon-Sat, 10:00-18:00 IST.
- Contact:
  - Email: support@spurstores.example
  - WhatsApp: +91-90000-00000

Rules:
- Answer clearly and concisely.
- If user asks something not covered, say you're not 100% sure and offer to connect to a human.
- Don't invent policies, prices, or promises.

You are a helpful support agent.`

// TracingConfig configures the optional OTLP trace exporter.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled" json:"enabled"`
	Endpoint    string `mapstructure:"endpoint" json:"endpoint"` // host:port of the OTLP/HTTP receiver
	ServiceName string `mapstructure:"service_name" json:"service_name"`
	Environment string `mapstructure:"environment" json:"environment"`
}

// Config stores application configuration.
// SENSITIVE fields (API key, database password) must never be logged.
type Config struct {
	// Generation configuration
	GeminiAPIKey           string  `mapstructure:"gemini_api_key" json:"-"` // SENSITIVE
	ModelName              string  `mapstructure:"model_name" json:"model_name"`
	Temperature            float32 `mapstructure:"temperature" json:"temperature"`
	MaxOutputTokens        int     `mapstructure:"max_output_tokens" json:"max_output_tokens"`
	GenerateTimeoutSeconds int     `mapstructure:"generate_timeout_seconds" json:"generate_timeout_seconds"`

	// Chat configuration
	HistoryWindow int    `mapstructure:"history_window" json:"history_window"`
	MaxMessageLen int    `mapstructure:"max_message_len" json:"max_message_len"`
	Persona       string `mapstructure:"persona" json:"persona"`
	PersonaFile   string `mapstructure:"persona_file" json:"persona_file"`

	// HTTP server configuration
	Addr        string   `mapstructure:"addr" json:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`

	// Storage configuration (see storage.go for DSN helpers)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"-"` // SENSITIVE
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Logging configuration
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`

	// Observability configuration
	Tracing TracingConfig `mapstructure:"tracing" json:"tracing"`
}

// GenerateTimeout returns the generation timeout as a duration.
func (c *Config) GenerateTimeout() time.Duration {
	return time.Duration(c.GenerateTimeoutSeconds) * time.Second
}

// SlogLevel maps the configured log level string to a slog.Level.
// Unknown values fall back to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
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

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".supportchat"))
	}
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults + env apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings.
	if err := cfg.parseDatabaseURL(os.Getenv("DATABASE_URL")); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.loadPersonaFile(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// loadPersonaFile replaces the persona text with the contents of
// persona_file when one is configured.
func (c *Config) loadPersonaFile() error {
	if c.PersonaFile == "" {
		return nil
	}
	data, err := os.ReadFile(c.PersonaFile)
	if err != nil {
		return fmt.Errorf("reading persona file: %w", err)
	}
	persona := strings.TrimSpace(string(data))
	if persona == "" {
		return fmt.Errorf("persona file %s is empty", c.PersonaFile)
	}
	c.Persona = persona
	return nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	// Generation defaults
	v.SetDefault("model_name", "gemini-2.5-flash")
	v.SetDefault("temperature", 0.2)
	v.SetDefault("max_output_tokens", DefaultMaxOutputTokens)
	v.SetDefault("generate_timeout_seconds", int(DefaultGenerateTimeout/time.Second))

	// Chat defaults
	v.SetDefault("history_window", DefaultHistoryWindow)
	v.SetDefault("max_message_len", DefaultMaxMessageLen)
	v.SetDefault("persona", DefaultPersona)

	// HTTP defaults
	v.SetDefault("addr", "127.0.0.1:3001")
	v.SetDefault("cors_origins", []string{"http://localhost:5173"})

	// PostgreSQL defaults (matching docker-compose.yml)
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "supportchat")
	v.SetDefault("postgres_password", "supportchat_dev_password")
	v.SetDefault("postgres_db_name", "supportchat")
	v.SetDefault("postgres_ssl_mode", "disable")

	// Logging defaults
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)

	// Tracing defaults (disabled until an endpoint is configured)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.service_name", "supportchat")
	v.SetDefault("tracing.environment", "dev")
}

// bindEnvVariables binds environment variables explicitly.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("gemini_api_key", "GEMINI_API_KEY")
	mustBind("model_name", "GEMINI_MODEL")

	mustBind("addr", "SUPPORTCHAT_ADDR")
	mustBind("cors_origins", "SUPPORTCHAT_CORS_ORIGINS")
	mustBind("persona_file", "SUPPORTCHAT_PERSONA_FILE")
	mustBind("history_window", "SUPPORTCHAT_HISTORY_WINDOW")
	mustBind("log_level", "SUPPORTCHAT_LOG_LEVEL")
	mustBind("log_json", "SUPPORTCHAT_LOG_JSON")

	mustBind("postgres_host", "SUPPORTCHAT_POSTGRES_HOST")
	mustBind("postgres_port", "SUPPORTCHAT_POSTGRES_PORT")
	mustBind("postgres_user", "SUPPORTCHAT_POSTGRES_USER")
	mustBind("postgres_password", "SUPPORTCHAT_POSTGRES_PASSWORD")
	mustBind("postgres_db_name", "SUPPORTCHAT_POSTGRES_DB")
	mustBind("postgres_ssl_mode", "SUPPORTCHAT_POSTGRES_SSL_MODE")

	mustBind("tracing.enabled", "SUPPORTCHAT_TRACING_ENABLED")
	mustBind("tracing.endpoint", "OTLP_ENDPOINT")
}
