package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetpulse/core/model"
)

func sample() *model.PipelineResult {
	return &model.PipelineResult{
		Summary: model.FleetSummary{
			TotalVehicles: 2,
			ValidVehicles: 1,
			AverageSpeed:  50,
			Centroid:      model.Position{Lat: 10, Lon: 20},
			StatusCounts:  map[model.Status]int{model.StatusNormal: 1, model.StatusWarning: 0, model.StatusInvalid: 1},
			GeneratedAt:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		},
		Errors: []model.RecordError{
			{VehicleID: "n", Message: "telemetry entry is not an object"},
			{VehicleID: "b", Message: "speed out of range"},
		},
		Vehicles: []model.AnnotatedRecord{
			{VehicleRecord: model.VehicleRecord{ID: "a", Speed: 50, Latitude: 10, Longitude: 20}, Status: model.StatusNormal},
			{VehicleRecord: model.VehicleRecord{ID: "b", Speed: -5}, Status: model.StatusInvalid, Reasons: []string{"speed out of range"}},
		},
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, sample()))
	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	summary := out["summary"].(map[string]any)
	assert.Equal(t, 2.0, summary["totalVehicles"])
	assert.Equal(t, map[string]any{"Normal": 1.0, "Warning": 0.0, "Invalid": 1.0}, summary["statusCounts"])
	assert.Len(t, out["errors"], 2)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "CSV", sample()))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"vehicle_id", "status", "speed", "latitude", "longitude", "reasons"},
		{"a", "Normal", "50", "10", "20", ""},
		{"b", "Invalid", "-5", "0", "0", "speed out of range"},
		{"n", "", "", "", "", "telemetry entry is not an object"},
	}, rows)
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatHTML, sample()))
	html := buf.String()
	assert.Contains(t, html, "Vehicle status")
	assert.Contains(t, html, "Speed per vehicle")
	assert.Contains(t, html, "Positions")
}

func TestWriteUnknownFormat(t *testing.T) {
	assert.Error(t, Write(&bytes.Buffer{}, "xml", sample()))
}
