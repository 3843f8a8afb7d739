package model

import (
	"math"
	"time"
)

// VehicleRecord is one vehicle reading extracted from a telemetry payload.
// Records are built by the decoder and never mutated afterwards.
type VehicleRecord struct {
	ID        string  `json:"id"`
	Speed     float64 `json:"speed"`     // km/h
	Latitude  float64 `json:"latitude"`  // degrees
	Longitude float64 `json:"longitude"` // degrees

	// Optional readings, nil or zero when the source does not report them.
	Mode      string          `json:"mode,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"` // epoch milliseconds
	Battery   *BatteryReading `json:"battery,omitempty"`
	Motor     *MotorReading   `json:"motor,omitempty"`
}

// BatteryReading holds the traction battery sensors of a vehicle.
type BatteryReading struct {
	SoC         float64 `json:"soc"`         // state of charge in percent
	Temperature float64 `json:"temperature"` // °C
	Voltage     float64 `json:"voltage"`     // V
	Current     float64 `json:"current"`     // A
}

// MotorReading holds the drive motor sensors of a vehicle.
type MotorReading struct {
	RPM         float64 `json:"rpm"`
	Temperature float64 `json:"temperature"` // °C
	Load        float64 `json:"load"`        // percent
}

// Position is a WGS84 coordinate pair.
type Position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ReportedAt returns the source timestamp, or the zero time when absent.
func (v VehicleRecord) ReportedAt() time.Time {
	if v.Timestamp == 0 {
		return time.Time{}
	}
	return time.UnixMilli(v.Timestamp)
}

// Position returns the GPS position of the record.
func (v VehicleRecord) Position() Position {
	return Position{Lat: v.Latitude, Lon: v.Longitude}
}

// SpeedInRange reports whether speed lies within [0, max]. NaN is out of range.
func (v VehicleRecord) SpeedInRange(max float64) bool {
	return v.Speed >= 0 && v.Speed <= max
}

// PositionInRange reports whether latitude and longitude are valid WGS84 values.
func (v VehicleRecord) PositionInRange() bool {
	return v.Latitude >= -90 && v.Latitude <= 90 &&
		v.Longitude >= -180 && v.Longitude <= 180
}

// Finite reports whether every core numeric field is a finite number.
func (v VehicleRecord) Finite() bool {
	for _, f := range []float64{v.Speed, v.Latitude, v.Longitude} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// AnnotatedRecord is a VehicleRecord after validation. Invalid records only
// guarantee the ID field.
type AnnotatedRecord struct {
	VehicleRecord
	Status  Status   `json:"status"`
	Reasons []string `json:"reasons,omitempty"`
}

// Valid reports whether the record takes part in fleet statistics.
func (r AnnotatedRecord) Valid() bool { return r.Status != StatusInvalid }
