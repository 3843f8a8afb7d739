package simulator

import (
	"errors"
	"fmt"
	"time"
)

// Config holds parameters for the telemetry simulator.
type Config struct {
	Address      string        `json:"address" yaml:"address"`
	FleetSize    int           `json:"fleet_size" yaml:"fleet_size"`
	Seed         int64         `json:"seed" yaml:"seed"`
	TickInterval time.Duration `json:"tick_interval" yaml:"tick_interval"`
	Faults       Faults        `json:"faults" yaml:"faults"`
	ScenarioFile string        `json:"scenario_file" yaml:"scenario_file"`
}

// Faults controls the defects injected into served payloads.
type Faults struct {
	// NullRate is the probability that a vehicle entry is served as null.
	NullRate float64 `json:"null_rate" yaml:"null_rate"`
	// OutOfRangeRate is the probability that a vehicle reports an
	// impossible speed or position.
	OutOfRangeRate float64 `json:"out_of_range_rate" yaml:"out_of_range_rate"`
	// Delay postpones every response.
	Delay time.Duration `json:"delay" yaml:"delay"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Address == "" {
		c.Address = ":5000"
	}
	if c.FleetSize == 0 && c.ScenarioFile == "" {
		c.FleetSize = 10
	}
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.FleetSize < 0 {
		return errors.New("fleet size must be >= 0")
	}
	for name, r := range map[string]float64{"null_rate": c.Faults.NullRate, "out_of_range_rate": c.Faults.OutOfRangeRate} {
		if r < 0 || r > 1 {
			return fmt.Errorf("%s must be within [0,1], got %v", name, r)
		}
	}
	if c.Faults.Delay < 0 {
		return errors.New("delay must be >= 0")
	}
	return nil
}
