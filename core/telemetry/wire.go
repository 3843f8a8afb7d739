package telemetry

// Payload is the JSON document served by a telemetry source:
//
//	{"telemetry": {"<vehicleId>": {"sensors": {"gps": {...}}}}}
//
// Unknown fields are ignored.
type Payload struct {
	Telemetry map[string]Entry `json:"telemetry"`
}

// Entry is the per-vehicle object of a payload.
type Entry struct {
	VehicleID string   `json:"vehicle_id,omitempty"`
	Timestamp *int64   `json:"timestamp,omitempty"`
	Mode      string   `json:"mode,omitempty"`
	Sensors   Sensors  `json:"sensors"`
	Battery   *Battery `json:"battery,omitempty"`
	Motor     *Motor   `json:"motor,omitempty"`
}

// Sensors groups the sensor blocks of an entry.
type Sensors struct {
	GPS GPS `json:"gps"`
}

// GPS holds the position block. Absent values decode as nil.
type GPS struct {
	Speed     *float64 `json:"speed,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// Battery is the optional battery block.
type Battery struct {
	SoC         *float64 `json:"soc,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Voltage     *float64 `json:"voltage,omitempty"`
	Current     *float64 `json:"current,omitempty"`
}

// Motor is the optional motor block.
type Motor struct {
	RPM         *float64 `json:"rpm,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Load        *float64 `json:"load,omitempty"`
}

func num(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// F returns a pointer to f. Convenience for building payloads.
func F(f float64) *float64 { return &f }
