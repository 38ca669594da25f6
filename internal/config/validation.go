package config

import (
	"fmt"
	"strings"
)

// validSSLModes are the sslmode values accepted by libpq/pgx.
var validSSLModes = map[string]bool{
	"disable":     true,
	"allow":       true,
	"prefer":      true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

// Validate checks the configuration for out-of-range or missing values.
// It fails fast at startup so misconfiguration never reaches request handling.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.GeminiAPIKey) == "" {
		return fmt.Errorf("%w: set GEMINI_API_KEY", ErrMissingAPIKey)
	}

	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: model name is empty", ErrInvalidModelName)
	}

	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %v (must be in [0, 2])", ErrInvalidTemperature, c.Temperature)
	}

	if c.MaxOutputTokens <= 0 || c.MaxOutputTokens > 65536 {
		return fmt.Errorf("%w: %d (must be in (0, 65536])", ErrInvalidMaxTokens, c.MaxOutputTokens)
	}

	if c.GenerateTimeoutSeconds <= 0 || c.GenerateTimeoutSeconds > 300 {
		return fmt.Errorf("%w: %ds (must be in (0, 300])", ErrInvalidTimeout, c.GenerateTimeoutSeconds)
	}

	if c.HistoryWindow <= 0 || c.HistoryWindow > MaxHistoryWindow {
		return fmt.Errorf("%w: %d (must be in (0, %d])", ErrInvalidHistoryWindow, c.HistoryWindow, MaxHistoryWindow)
	}

	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: host is empty", ErrInvalidPostgresHost)
	}

	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d (must be in [1, 65535])", ErrInvalidPostgresPort, c.PostgresPort)
	}

	if strings.TrimSpace(c.PostgresDBName) == "" {
		return fmt.Errorf("%w: database name is empty", ErrInvalidPostgresDBName)
	}

	if !validSSLModes[c.PostgresSSLMode] {
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}

	return nil
}
