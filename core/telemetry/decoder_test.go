package telemetry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetpulse/core/model"
)

func TestDecodeRoundTrip(t *testing.T) {
	want := []model.VehicleRecord{
		{ID: "v1", Speed: 40, Latitude: 10, Longitude: 20},
		{ID: "v2", Speed: 130.5, Latitude: -33.9, Longitude: 151.2, Mode: "cruising", Timestamp: 1700000000000},
		{ID: "v3", Speed: 0, Latitude: 0, Longitude: 0,
			Battery: &model.BatteryReading{SoC: 55, Temperature: 31, Voltage: 398, Current: -12},
			Motor:   &model.MotorReading{RPM: 2100, Temperature: 70, Load: 42}},
	}
	data, err := Encode(want)
	require.NoError(t, err)

	batch, err := NewDecoder().Decode(data)
	require.NoError(t, err)
	assert.Empty(t, batch.Errors)

	got := batch.ByID()
	require.Len(t, got, len(want))
	for _, w := range want {
		assert.Equal(t, w, got[w.ID])
	}
}

func TestDecodeNullEntryIsSoftError(t *testing.T) {
	payload := `{"telemetry":{
		"a":{"sensors":{"gps":{"speed":10,"latitude":1,"longitude":2}}},
		"b":null,
		"c":{"sensors":{"gps":{"speed":20,"latitude":3,"longitude":4}}}
	}}`
	batch, err := NewDecoder().Decode([]byte(payload))
	require.NoError(t, err)

	require.Len(t, batch.Errors, 1)
	assert.Equal(t, "b", batch.Errors[0].VehicleID)
	assert.Len(t, batch.Records, 2)
	assert.Contains(t, batch.ByID(), "a")
	assert.Contains(t, batch.ByID(), "c")
}

func TestDecodeMissingFieldsDefaultToZero(t *testing.T) {
	payload := `{"telemetry":{"v1":{"sensors":{"gps":{"speed":42}}},"v2":{}}}`
	batch, err := NewDecoder().Decode([]byte(payload))
	require.NoError(t, err)
	require.Empty(t, batch.Errors)

	byID := batch.ByID()
	assert.Equal(t, model.VehicleRecord{ID: "v1", Speed: 42}, byID["v1"])
	assert.Equal(t, model.VehicleRecord{ID: "v2"}, byID["v2"])
}

func TestDecodeKeepsSourceOrder(t *testing.T) {
	payload := `{"telemetry":{"z":{},"a":{},"m":{}}}`
	batch, err := NewDecoder().Decode([]byte(payload))
	require.NoError(t, err)
	ids := make([]string, 0, len(batch.Records))
	for _, r := range batch.Records {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"z", "a", "m"}, ids)
}

func TestDecodeIgnoresUnknownFields(t *testing.T) {
	payload := `{"version":3,"telemetry":{"v1":{"extra":[1,2],"sensors":{"gps":{"speed":5,"alt":100},"imu":{}}}}}`
	batch, err := NewDecoder().Decode([]byte(payload))
	require.NoError(t, err)
	require.Len(t, batch.Records, 1)
	assert.Equal(t, 5.0, batch.Records[0].Speed)
}

func TestDecodeSoftErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		id      string
	}{
		{"string entry", `{"telemetry":{"x":"oops"}}`, "x"},
		{"array entry", `{"telemetry":{"x":[1]}}`, "x"},
		{"wrong field type", `{"telemetry":{"x":{"sensors":{"gps":{"speed":"fast"}}}}}`, "x"},
		{"empty id", `{"telemetry":{"":{}}}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch, err := NewDecoder().Decode([]byte(tt.payload))
			require.NoError(t, err)
			assert.Empty(t, batch.Records)
			require.Len(t, batch.Errors, 1)
			assert.Equal(t, tt.id, batch.Errors[0].VehicleID)
			assert.NotEmpty(t, batch.Errors[0].Message)
		})
	}
}

func TestDecodeDuplicateID(t *testing.T) {
	payload := `{"telemetry":{"v1":{"sensors":{"gps":{"speed":1}}},"v1":{"sensors":{"gps":{"speed":2}}}}}`
	batch, err := NewDecoder().Decode([]byte(payload))
	require.NoError(t, err)
	require.Len(t, batch.Records, 1)
	assert.Equal(t, 1.0, batch.Records[0].Speed)
	require.Len(t, batch.Errors, 1)
	assert.Equal(t, "duplicate vehicle id", batch.Errors[0].Message)
}

func TestDecodeFatalErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		kind    DecodeKind
	}{
		{"not json", `{"telemetry":`, KindMalformedJSON},
		{"array root", `[1,2,3]`, KindMalformedJSON},
		{"null root", `null`, KindMalformedJSON},
		{"empty", ``, KindMalformedJSON},
		{"no telemetry", `{"data":{}}`, KindMissingTelemetry},
		{"telemetry not object", `{"telemetry":[]}`, KindMissingTelemetry},
		{"telemetry null", `{"telemetry":null}`, KindMissingTelemetry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDecoder().Decode([]byte(tt.payload))
			var de *DecodeError
			require.True(t, errors.As(err, &de), "got %v", err)
			assert.Equal(t, tt.kind, de.Kind)
		})
	}
}

func TestDecodeEmptyTelemetry(t *testing.T) {
	batch, err := NewDecoder().Decode([]byte(`{"telemetry":{}}`))
	require.NoError(t, err)
	assert.Empty(t, batch.Records)
	assert.Empty(t, batch.Errors)
}
