package normalize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetpulse/core/model"
)

func rec(speed, lat, lon float64) model.VehicleRecord {
	return model.VehicleRecord{ID: "v1", Speed: speed, Latitude: lat, Longitude: lon}
}

func TestNormalizeSpeedBoundaries(t *testing.T) {
	n := Default()
	tests := []struct {
		speed   float64
		status  model.Status
		reasons []string
	}{
		{0, model.StatusNormal, nil},
		{120, model.StatusNormal, nil},
		{120.01, model.StatusWarning, []string{ReasonSpeedWarning}},
		{300, model.StatusWarning, []string{ReasonSpeedWarning}},
		{300.01, model.StatusInvalid, []string{ReasonSpeedRange}},
		{-0.1, model.StatusInvalid, []string{ReasonSpeedRange}},
	}
	for _, tt := range tests {
		got := n.Normalize(rec(tt.speed, 0, 0))
		assert.Equal(t, tt.status, got.Status, "speed %v", tt.speed)
		assert.Equal(t, tt.reasons, got.Reasons, "speed %v", tt.speed)
	}
}

func TestNormalizePosition(t *testing.T) {
	n := Default()
	for _, p := range [][2]float64{{90.1, 0}, {-90.1, 0}, {0, 180.1}, {0, -181}} {
		got := n.Normalize(rec(50, p[0], p[1]))
		assert.Equal(t, model.StatusInvalid, got.Status)
		assert.Equal(t, []string{ReasonPositionRange}, got.Reasons)
	}
	got := n.Normalize(rec(50, 90, -180))
	assert.Equal(t, model.StatusNormal, got.Status)
}

func TestNormalizeAccumulatesReasons(t *testing.T) {
	got := Default().Normalize(rec(500, 95, 0))
	assert.Equal(t, model.StatusInvalid, got.Status)
	assert.Equal(t, []string{ReasonSpeedRange, ReasonPositionRange}, got.Reasons)

	got = Default().Normalize(model.VehicleRecord{
		ID: "v2", Speed: 150,
		Battery: &model.BatteryReading{SoC: 5, Temperature: 65},
		Motor:   &model.MotorReading{Temperature: 130},
	})
	assert.Equal(t, model.StatusWarning, got.Status)
	assert.Equal(t, []string{ReasonSpeedWarning, ReasonBatteryLow, ReasonBatteryHot, ReasonMotorHot}, got.Reasons)
}

func TestNormalizeWarningPlusInvalidIsInvalid(t *testing.T) {
	got := Default().Normalize(rec(200, 0, 200))
	assert.Equal(t, model.StatusInvalid, got.Status)
	assert.Equal(t, []string{ReasonPositionRange, ReasonSpeedWarning}, got.Reasons)
}

func TestNormalizeMissingID(t *testing.T) {
	got := Default().Normalize(model.VehicleRecord{})
	assert.Equal(t, model.StatusInvalid, got.Status)
	assert.Equal(t, []string{ReasonMissingID}, got.Reasons)
}

func TestNormalizeIsTotal(t *testing.T) {
	n := Default()
	values := []float64{
		0, -1, 1, 90, -90, 180, -180, 300, 1e308, -1e308,
		math.NaN(), math.Inf(1), math.Inf(-1), math.SmallestNonzeroFloat64,
	}
	for _, s := range values {
		for _, lat := range values {
			for _, lon := range values {
				r := rec(s, lat, lon)
				var got model.AnnotatedRecord
				require.NotPanics(t, func() { got = n.Normalize(r) })
				assert.Equal(t, "v1", got.ID)
				if got.Status == model.StatusNormal {
					assert.Empty(t, got.Reasons)
				} else {
					assert.NotEmpty(t, got.Reasons)
				}
			}
		}
	}
}

func TestNormalizeNaNIsInvalid(t *testing.T) {
	got := Default().Normalize(rec(math.NaN(), math.NaN(), 0))
	assert.Equal(t, model.StatusInvalid, got.Status)
	assert.Equal(t, []string{ReasonSpeedRange, ReasonPositionRange}, got.Reasons)
}

func TestCustomThresholds(t *testing.T) {
	n := New(Thresholds{MaxSpeed: 200, WarnSpeed: 90})
	assert.Equal(t, model.StatusWarning, n.Normalize(rec(100, 0, 0)).Status)
	assert.Equal(t, model.StatusInvalid, n.Normalize(rec(250, 0, 0)).Status)

	bat := model.VehicleRecord{ID: "b", Battery: &model.BatteryReading{SoC: 9, Temperature: 20}}
	assert.Equal(t, model.StatusWarning, n.Normalize(bat).Status, "unset thresholds fall back to defaults")
}

func TestNormalizeAllPreservesOrder(t *testing.T) {
	in := []model.VehicleRecord{{ID: "c"}, {ID: "a", Speed: -1}, {ID: "b"}}
	out := Default().NormalizeAll(in)
	require.Len(t, out, 3)
	assert.Equal(t, "c", out[0].ID)
	assert.Equal(t, "a", out[1].ID)
	assert.Equal(t, model.StatusInvalid, out[1].Status)
	assert.Equal(t, "b", out[2].ID)
}

func TestThresholdsValidate(t *testing.T) {
	require.NoError(t, DefaultThresholds().Validate())
	assert.Error(t, Thresholds{MaxSpeed: 100, WarnSpeed: 150}.Validate())
	assert.Error(t, Thresholds{WarnSpeed: 10}.Validate())
	assert.Error(t, Thresholds{MaxSpeed: 100, WarnSpeed: 50, MinBatterySoC: 120}.Validate())
}

func TestSetThresholdsSwapsRules(t *testing.T) {
	n := Default()
	assert.Equal(t, model.StatusWarning, n.Normalize(rec(130, 0, 0)).Status)

	n.SetThresholds(Thresholds{WarnSpeed: 150})
	assert.Equal(t, model.StatusNormal, n.Normalize(rec(130, 0, 0)).Status)
	assert.Equal(t, model.StatusInvalid, n.Normalize(rec(320, 0, 0)).Status, "zero max speed keeps its default")
}
