package model

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVehicleRecordRanges(t *testing.T) {
	v := VehicleRecord{ID: "v1", Speed: 80, Latitude: 10, Longitude: 20}
	if !v.SpeedInRange(300) || !v.PositionInRange() || !v.Finite() {
		t.Fatalf("valid record rejected: %#v", v)
	}
	v.Speed = math.NaN()
	if v.SpeedInRange(300) {
		t.Fatalf("NaN speed accepted")
	}
	if v.Finite() {
		t.Fatalf("NaN speed reported finite")
	}
	v = VehicleRecord{Latitude: 90.5}
	if v.PositionInRange() {
		t.Fatalf("latitude 90.5 accepted")
	}
	v = VehicleRecord{Longitude: -180}
	if !v.PositionInRange() {
		t.Fatalf("longitude -180 rejected")
	}
}

func TestStatusWorse(t *testing.T) {
	assert.Equal(t, StatusWarning, StatusNormal.Worse(StatusWarning))
	assert.Equal(t, StatusInvalid, StatusInvalid.Worse(StatusWarning))
	assert.Equal(t, StatusNormal, StatusNormal.Worse(StatusNormal))
}

func TestStatusJSONNames(t *testing.T) {
	rec := AnnotatedRecord{VehicleRecord: VehicleRecord{ID: "v1"}, Status: StatusWarning}
	b, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"status":"Warning"`)

	counts := map[Status]int{StatusNormal: 1, StatusWarning: 0, StatusInvalid: 2}
	b, err = json.Marshal(counts)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Normal":1,"Warning":0,"Invalid":2}`, string(b))

	var back map[Status]int
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, counts, back)
}

func TestParseStatusUnknown(t *testing.T) {
	if _, err := ParseStatus("Broken"); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}

func TestStageTransitions(t *testing.T) {
	allowed := map[Stage][]Stage{
		StageFetching:    {StageDecoding, StageFailed},
		StageDecoding:    {StageNormalizing, StageFailed},
		StageNormalizing: {StageAggregating},
		StageAggregating: {StageDone},
	}
	all := []Stage{StageFetching, StageDecoding, StageNormalizing, StageAggregating, StageDone, StageFailed}
	for _, from := range all {
		for _, to := range all {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			if got := from.CanTransition(to); got != want {
				t.Errorf("%s -> %s: got %v want %v", from, to, got, want)
			}
		}
	}
	if !StageDone.Terminal() || !StageFailed.Terminal() || StageDecoding.Terminal() {
		t.Fatalf("terminal stages wrong")
	}
}

func TestPipelineResultHasVehicle(t *testing.T) {
	res := PipelineResult{
		Vehicles: []AnnotatedRecord{{VehicleRecord: VehicleRecord{ID: "a"}}},
		Errors:   []RecordError{{VehicleID: "b", Message: "x"}},
	}
	assert.True(t, res.HasVehicle("a"))
	assert.True(t, res.HasVehicle("b"))
	assert.False(t, res.HasVehicle("c"))
}
