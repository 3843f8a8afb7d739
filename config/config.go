package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/fleetpulse/core/metrics"
	"github.com/kilianp07/fleetpulse/core/normalize"
	"github.com/kilianp07/fleetpulse/core/runlog"
	"github.com/kilianp07/fleetpulse/infra/monitoring"
	"github.com/kilianp07/fleetpulse/infra/mqtt"
	"github.com/kilianp07/fleetpulse/infra/store"
	"github.com/kilianp07/fleetpulse/simulator"
)

// EnvPrefix prefixes environment overrides. Nested keys are separated by a
// double underscore: FP_SOURCE__URL sets source.url.
const EnvPrefix = "FP_"

type Config struct {
	Source     SourceConfig         `json:"source"`
	Thresholds normalize.Thresholds `json:"thresholds"`
	Server     ServerConfig         `json:"server"`
	Metrics    metrics.Config       `json:"metrics"`
	MQTT       mqtt.Config          `json:"mqtt"`
	Redis      store.RedisConfig    `json:"redis"`
	RunLog     runlog.Config        `json:"run_log"`
	Sentry     monitoring.Config    `json:"sentry"`
	Log        LogConfig            `json:"log"`
	Simulator  simulator.Config     `json:"simulator"`
}

// Load reads the configuration file at path, applies environment overrides
// and defaults, then validates the result. An empty path loads defaults and
// environment only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		var parser koanf.Parser
		switch ext := strings.ToLower(filepath.Ext(path)); ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	c.Source.SetDefaults()
	c.Server.SetDefaults()
	c.Thresholds = c.Thresholds.WithDefaults()
	c.Log.SetDefaults()
	c.Simulator.SetDefaults()
}

// Validate checks every block.
func (c Config) Validate() error {
	if err := c.Source.Validate(); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if err := c.Thresholds.Validate(); err != nil {
		return fmt.Errorf("thresholds: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if err := c.Simulator.Validate(); err != nil {
		return fmt.Errorf("simulator: %w", err)
	}
	switch c.RunLog.Type {
	case "", "jsonl", "rotating", "sqlite":
	default:
		return fmt.Errorf("run_log: unknown type %s", c.RunLog.Type)
	}
	if c.RunLog.Type != "" && c.RunLog.Path == "" {
		return fmt.Errorf("run_log: path is required")
	}
	return nil
}
