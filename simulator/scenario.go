package simulator

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/fleetpulse/core/model"
)

// Scenario is a fleet description loaded from YAML. Listed vehicles keep
// their readings for the whole session; Generate adds moving vehicles.
type Scenario struct {
	Name     string            `yaml:"name"`
	Seed     int64             `yaml:"seed"`
	Generate int               `yaml:"generate"`
	Faults   *Faults           `yaml:"faults"`
	Vehicles []ScenarioVehicle `yaml:"vehicles"`
}

// ScenarioVehicle is a fixed vehicle reading.
type ScenarioVehicle struct {
	ID        string                `yaml:"id"`
	Speed     float64               `yaml:"speed"`
	Latitude  float64               `yaml:"latitude"`
	Longitude float64               `yaml:"longitude"`
	Mode      string                `yaml:"mode"`
	Battery   *model.BatteryReading `yaml:"battery"`
	Motor     *model.MotorReading   `yaml:"motor"`
}

// LoadScenario reads a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

// ParseScenario decodes a YAML scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	seen := make(map[string]struct{}, len(s.Vehicles))
	for i, v := range s.Vehicles {
		if v.ID == "" {
			return nil, fmt.Errorf("scenario vehicle %d: missing id", i)
		}
		if _, dup := seen[v.ID]; dup {
			return nil, fmt.Errorf("scenario vehicle %s: duplicate id", v.ID)
		}
		seen[v.ID] = struct{}{}
	}
	if s.Generate < 0 {
		return nil, fmt.Errorf("generate must be >= 0")
	}
	return &s, nil
}

// Fleet builds the scenario fleet. seed is used when the scenario sets none.
func (s *Scenario) Fleet(seed int64) *Fleet {
	if s.Seed != 0 {
		seed = s.Seed
	}
	f := GenerateFleet(s.Generate, seed)
	for _, sv := range s.Vehicles {
		mode := sv.Mode
		if mode == "" {
			mode = string(ModeIdle)
		}
		f.vehicles = append(f.vehicles, &Vehicle{
			ID:        sv.ID,
			Mode:      Mode(mode),
			Speed:     sv.Speed,
			Latitude:  sv.Latitude,
			Longitude: sv.Longitude,
			fixed: &model.VehicleRecord{
				ID:        sv.ID,
				Speed:     sv.Speed,
				Latitude:  sv.Latitude,
				Longitude: sv.Longitude,
				Mode:      mode,
				Battery:   sv.Battery,
				Motor:     sv.Motor,
			},
		})
	}
	return f
}
