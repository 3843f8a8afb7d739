package normalize

import "fmt"

// Thresholds parameterizes the validation rules.
type Thresholds struct {
	MaxSpeed       float64 `json:"max_speed"`        // km/h, above is Invalid
	WarnSpeed      float64 `json:"warn_speed"`       // km/h, above is Warning
	MinBatterySoC  float64 `json:"min_battery_soc"`  // percent, below is Warning
	MaxBatteryTemp float64 `json:"max_battery_temp"` // °C, above is Warning
	MaxMotorTemp   float64 `json:"max_motor_temp"`   // °C, above is Warning
}

// DefaultThresholds returns the stock limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxSpeed:       300,
		WarnSpeed:      120,
		MinBatterySoC:  10,
		MaxBatteryTemp: 60,
		MaxMotorTemp:   120,
	}
}

// WithDefaults fills zero fields from DefaultThresholds.
func (t Thresholds) WithDefaults() Thresholds {
	d := DefaultThresholds()
	if t.MaxSpeed == 0 {
		t.MaxSpeed = d.MaxSpeed
	}
	if t.WarnSpeed == 0 {
		t.WarnSpeed = d.WarnSpeed
	}
	if t.MinBatterySoC == 0 {
		t.MinBatterySoC = d.MinBatterySoC
	}
	if t.MaxBatteryTemp == 0 {
		t.MaxBatteryTemp = d.MaxBatteryTemp
	}
	if t.MaxMotorTemp == 0 {
		t.MaxMotorTemp = d.MaxMotorTemp
	}
	return t
}

// Validate checks that the limits are consistent.
func (t Thresholds) Validate() error {
	if t.MaxSpeed <= 0 {
		return fmt.Errorf("max_speed must be positive")
	}
	if t.WarnSpeed <= 0 || t.WarnSpeed > t.MaxSpeed {
		return fmt.Errorf("warn_speed must be in (0, max_speed]")
	}
	if t.MinBatterySoC < 0 || t.MinBatterySoC > 100 {
		return fmt.Errorf("min_battery_soc must be in [0, 100]")
	}
	return nil
}
