package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/fleetpulse/core/metrics"
	"github.com/kilianp07/fleetpulse/core/model"
)

type bodyRecorder struct {
	mu     sync.Mutex
	bodies []string
}

func (b *bodyRecorder) handler(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	b.mu.Lock()
	b.bodies = append(b.bodies, strings.TrimSpace(string(data)))
	b.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func lineProtocol(p *write.Point) string {
	return strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
}

func TestInfluxSink_RecordRun(t *testing.T) {
	rec := &bodyRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(rec.handler))
	defer srv.Close()

	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()
	now := time.Unix(1700000000, 0)
	sum := &model.FleetSummary{
		TotalVehicles: 3,
		ValidVehicles: 1,
		AverageSpeed:  50,
		Centroid:      model.Position{Lat: 1, Lon: 2},
		StatusCounts:  map[model.Status]int{model.StatusNormal: 1, model.StatusInvalid: 2},
		GeneratedAt:   now,
	}
	err := sink.RecordRun(coremetrics.RunEvent{
		RunID:      "r1",
		Outcome:    coremetrics.OutcomeSuccess,
		Duration:   1500 * time.Millisecond,
		Summary:    sum,
		SoftErrors: 2,
		Time:       now,
	})
	require.NoError(t, err)

	run := write.NewPointWithMeasurement("fleet_run").
		AddTag("outcome", "success").
		AddTag("run_id", "r1").
		AddField("duration_ms", 1500.0).
		AddField("soft_errors", 2).
		SetTime(now)
	summary := write.NewPointWithMeasurement("fleet_summary").
		AddTag("run_id", "r1").
		AddField("total_vehicles", 3).
		AddField("valid_vehicles", 1).
		AddField("average_speed", 50.0).
		AddField("centroid_lat", 1.0).
		AddField("centroid_lon", 2.0).
		AddField("normal", 1).
		AddField("warning", 0).
		AddField("invalid", 2).
		SetTime(now)
	assert.Equal(t, []string{lineProtocol(run), lineProtocol(summary)}, rec.bodies)
}

func TestInfluxSink_RecordFailedRun(t *testing.T) {
	rec := &bodyRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(rec.handler))
	defer srv.Close()

	sink := NewInfluxSink(srv.URL+"/api/v2/write", "token", "org", "bucket")
	now := time.Unix(1700000000, 0)
	require.NoError(t, sink.RecordRun(coremetrics.RunEvent{
		RunID: "r2", Outcome: coremetrics.OutcomeTransportError, ErrorKind: "timeout", Time: now,
	}))
	require.Len(t, rec.bodies, 1)
	assert.Contains(t, rec.bodies[0], "error_kind=timeout")
	assert.Contains(t, rec.bodies[0], "outcome=transport_error")
}

func TestInfluxSink_RecordVehicleStates(t *testing.T) {
	rec := &bodyRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(rec.handler))
	defer srv.Close()

	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	now := time.Unix(1700000000, 0)
	evs := []coremetrics.VehicleStateEvent{{
		RunID: "r1",
		Time:  now,
		Vehicle: model.AnnotatedRecord{
			VehicleRecord: model.VehicleRecord{ID: "v1", Speed: 130, Latitude: 1, Longitude: 2},
			Status:        model.StatusWarning,
			Reasons:       []string{"speed exceeds threshold"},
		},
	}}
	require.NoError(t, sink.RecordVehicleStates(evs))

	p := write.NewPointWithMeasurement("vehicle_state").
		AddTag("vehicle_id", "v1").
		AddTag("status", "Warning").
		AddField("speed", 130.0).
		AddField("latitude", 1.0).
		AddField("longitude", 2.0).
		AddField("reasons", "speed exceeds threshold").
		SetTime(now)
	require.Len(t, rec.bodies, 1)
	assert.Equal(t, lineProtocol(p), rec.bodies[0])

	assert.NoError(t, sink.RecordVehicleStates(nil))
	assert.Len(t, rec.bodies, 1)
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL+"/api/v2/write", "tok", "org", "bucket")
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}
