package model

import "time"

// FleetSummary is the aggregate produced once per pipeline run.
type FleetSummary struct {
	TotalVehicles int            `json:"totalVehicles"`
	ValidVehicles int            `json:"validVehicles"`
	AverageSpeed  float64        `json:"averageSpeed"`
	Centroid      Position       `json:"centroid"`
	StatusCounts  map[Status]int `json:"statusCounts"`
	GeneratedAt   time.Time      `json:"generatedAt"`
}

// RecordError is a soft, per-vehicle failure that did not abort the run.
type RecordError struct {
	VehicleID string `json:"vehicleId"`
	Message   string `json:"message"`
}

// PipelineResult is the outcome of a successful pipeline run.
type PipelineResult struct {
	Summary  FleetSummary      `json:"summary"`
	Errors   []RecordError     `json:"errors"`
	Vehicles []AnnotatedRecord `json:"vehicles,omitempty"`
}

// HasVehicle reports whether the result mentions the vehicle either as a
// record or in a soft error.
func (r PipelineResult) HasVehicle(id string) bool {
	for _, v := range r.Vehicles {
		if v.ID == id {
			return true
		}
	}
	for _, e := range r.Errors {
		if e.VehicleID == id {
			return true
		}
	}
	return false
}
