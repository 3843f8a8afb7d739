package metrics

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetpulse/core/events"
	coremetrics "github.com/kilianp07/fleetpulse/core/metrics"
	"github.com/kilianp07/fleetpulse/core/model"
	"github.com/kilianp07/fleetpulse/internal/eventbus"
)

func newPromSink(t *testing.T, reg prometheus.Registerer) *PromSink {
	t.Helper()
	s, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	sink, ok := s.(*PromSink)
	require.True(t, ok, "expected PromSink")
	return sink
}

func TestPromSink_RecordRun(t *testing.T) {
	sink := newPromSink(t, prometheus.NewRegistry())
	now := time.Unix(1700000000, 0)

	require.NoError(t, sink.RecordRun(coremetrics.RunEvent{
		Outcome:    coremetrics.OutcomeSuccess,
		Duration:   time.Second,
		SoftErrors: 1,
		Time:       now,
		Summary: &model.FleetSummary{
			ValidVehicles: 2,
			AverageSpeed:  55.5,
			StatusCounts:  map[model.Status]int{model.StatusNormal: 1, model.StatusWarning: 1, model.StatusInvalid: 1},
		},
	}))
	require.NoError(t, sink.RecordRun(coremetrics.RunEvent{
		Outcome: coremetrics.OutcomeTransportError, ErrorKind: "timeout", Time: now,
	}))

	expected := `
# HELP fleetpulse_runs_total Total number of pipeline runs by outcome
# TYPE fleetpulse_runs_total counter
fleetpulse_runs_total{error_kind="",outcome="success"} 1
fleetpulse_runs_total{error_kind="timeout",outcome="transport_error"} 1
`
	assert.NoError(t, testutil.CollectAndCompare(sink.runs, strings.NewReader(expected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.softErrors))
	assert.Equal(t, 2.0, testutil.ToFloat64(sink.validVehicles))
	assert.Equal(t, 55.5, testutil.ToFloat64(sink.averageSpeed))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.fleetVehicles.WithLabelValues("Invalid")))
	assert.Equal(t, float64(now.Unix()), testutil.ToFloat64(sink.lastSuccess))
	assert.Equal(t, 1, testutil.CollectAndCount(sink.runDuration))
}

func TestPromSink_AlreadyRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := newPromSink(t, reg)
	second := newPromSink(t, reg)
	assert.Same(t, first.runs, second.runs)
}

func TestEventCollector_RecordsStageDurations(t *testing.T) {
	sink := newPromSink(t, prometheus.NewRegistry())
	bus := eventbus.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartEventCollector(ctx, bus, sink)

	require.Eventually(t, func() bool { return bus.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	bus.Publish(events.StageEvent{RunID: "r", From: model.StageFetching, Stage: model.StageDecoding, Elapsed: 20 * time.Millisecond})
	bus.Publish(events.StageEvent{RunID: "r", From: model.StageDecoding, Stage: model.StageNormalizing, Elapsed: time.Millisecond})

	assert.Eventually(t, func() bool {
		return testutil.CollectAndCount(sink.stageDuration) == 2
	}, time.Second, 5*time.Millisecond)
}
