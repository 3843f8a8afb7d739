package config

import (
	"fmt"
	"time"

	"github.com/kilianp07/fleetpulse/core/pipeline"
	"github.com/kilianp07/fleetpulse/infra/auth"
)

// SourceConfig describes the telemetry endpoint.
type SourceConfig struct {
	URL          string               `json:"url"`
	TimeoutMS    int                  `json:"timeout_ms"`
	MaxBodyBytes int64                `json:"max_body_bytes"`
	UserAgent    string               `json:"user_agent"`
	Retry        pipeline.RetryConfig `json:"retry"`
	Auth         auth.Conf            `json:"auth"`
}

// SetDefaults applies sane defaults.
func (c *SourceConfig) SetDefaults() {
	if c.TimeoutMS == 0 {
		c.TimeoutMS = 5000
	}
}

// Timeout returns the fetch timeout.
func (c SourceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// Validate checks mandatory fields.
func (c SourceConfig) Validate() error {
	if c.TimeoutMS < 0 {
		return fmt.Errorf("timeout_ms must be >= 0")
	}
	if c.MaxBodyBytes < 0 {
		return fmt.Errorf("max_body_bytes must be >= 0")
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must be >= 0")
	}
	return nil
}

// ServerConfig defines the HTTP API and the poller.
type ServerConfig struct {
	Address string `json:"address"`
	// PollIntervalSeconds runs the pipeline periodically; 0 disables polling.
	PollIntervalSeconds int `json:"poll_interval_seconds"`
	// APIToken protects /api/runs when set.
	APIToken string `json:"api_token"`
	// AllowedOrigins lists browser origins, besides the API host, that may
	// open the /ws feed.
	AllowedOrigins []string `json:"allowed_origins"`
}

// SetDefaults applies sane defaults.
func (c *ServerConfig) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
}

// PollInterval returns the polling period, zero when disabled.
func (c ServerConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// Validate checks mandatory fields.
func (c ServerConfig) Validate() error {
	if c.PollIntervalSeconds < 0 {
		return fmt.Errorf("poll_interval_seconds must be >= 0")
	}
	return nil
}

// LogConfig defines the log output.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level"`
}

// SetDefaults applies sane defaults.
func (c *LogConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
}

// Validate checks the level name.
func (c LogConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("unknown level %s", c.Level)
	}
}
