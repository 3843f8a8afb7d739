package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetpulse/config"
	"github.com/kilianp07/fleetpulse/core/events"
	"github.com/kilianp07/fleetpulse/core/model"
	"github.com/kilianp07/fleetpulse/core/runlog"
	"github.com/kilianp07/fleetpulse/core/telemetry"
	"github.com/kilianp07/fleetpulse/core/transport"
	"github.com/kilianp07/fleetpulse/core/vehiclestate"
	"github.com/kilianp07/fleetpulse/infra/auth"
	"github.com/kilianp07/fleetpulse/infra/logger"
	"github.com/kilianp07/fleetpulse/infra/mqtt"
	"github.com/kilianp07/fleetpulse/internal/eventbus"
	"github.com/kilianp07/fleetpulse/simulator"
)

func newService(t *testing.T, source string) *Service {
	t.Helper()
	cfg := &config.Config{
		Source: config.SourceConfig{URL: source, TimeoutMS: 2000},
		RunLog: runlog.Config{Type: "jsonl", Path: filepath.Join(t.TempDir(), "runs.jsonl")},
	}
	cfg.SetDefaults()
	svc, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func simulatorURL(t *testing.T, size int) string {
	t.Helper()
	srv := simulator.NewServer(simulator.GenerateFleet(size, 7), simulator.Faults{}, logger.NopLogger{})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL + "/latest-data"
}

func TestService_PollPersistsRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := newService(t, simulatorURL(t, 5))
	svc.Start(ctx)

	res, err := svc.PollOnce(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 5, res.Summary.TotalVehicles)

	require.Eventually(t, func() bool {
		states, err := svc.States().List(ctx, vehiclestate.Filter{})
		return err == nil && len(states) == 5
	}, 2*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool {
		recs, err := svc.RunLog().Query(ctx, runlog.Query{})
		return err == nil && len(recs) == 1 && recs[0].Outcome == "success"
	}, 2*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool { return svc.fleet.Last() != nil }, 2*time.Second, 20*time.Millisecond)
}

func TestService_PollFailureIsLogged(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()
	svc := newService(t, ts.URL)
	svc.Start(ctx)

	_, err := svc.PollOnce(ctx, "")
	var te *transport.Error
	require.True(t, errors.As(err, &te))

	require.Eventually(t, func() bool {
		recs, err := svc.RunLog().Query(ctx, runlog.Query{})
		return err == nil && len(recs) == 1 && recs[0].Outcome == "transport_error"
	}, 2*time.Second, 20*time.Millisecond)
	states, err := svc.States().List(ctx, vehiclestate.Filter{})
	require.NoError(t, err)
	assert.Empty(t, states)
}

func TestService_PollOnceWithoutURL(t *testing.T) {
	svc := newService(t, "")
	_, err := svc.PollOnce(context.Background(), "")
	assert.Error(t, err)
}

func TestService_Routes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := simulatorURL(t, 3)
	svc := newService(t, src)
	svc.Start(ctx)
	api := httptest.NewServer(svc.Handler())
	defer api.Close()

	resp, err := http.Get(api.URL + "/api/fleet/summary?url=" + url.QueryEscape(src))
	require.NoError(t, err)
	var res model.PipelineResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	resp.Body.Close()
	assert.Equal(t, 3, res.Summary.TotalVehicles)

	require.Eventually(t, func() bool {
		resp, err := http.Get(api.URL + "/api/fleet/vehicles")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var states []vehiclestate.State
		return json.NewDecoder(resp.Body).Decode(&states) == nil && len(states) == 3
	}, 2*time.Second, 20*time.Millisecond)

	for _, tc := range []struct {
		path string
		code int
	}{
		{"/healthz", http.StatusOK},
		{"/api/runs", http.StatusOK},
		{"/api/fleet/vehicles/missing", http.StatusNotFound},
		{"/api/fleet/nearby?lat=39.8&lon=116.3&radius_km=500", http.StatusOK},
		{"/api/fleet/chart", http.StatusOK},
	} {
		resp, err := http.Get(api.URL + tc.path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, tc.code, resp.StatusCode, tc.path)
	}
}

func TestRecorder_PublishesSuccessfulRuns(t *testing.T) {
	pub := mqtt.NewMockPublisher()
	states := vehiclestate.NewMemoryStore()
	rec := &Recorder{States: states, Publisher: pub, Logger: logger.NopLogger{}}
	res := &model.PipelineResult{
		Summary:  model.FleetSummary{TotalVehicles: 1, GeneratedAt: time.Now()},
		Errors:   []model.RecordError{},
		Vehicles: []model.AnnotatedRecord{{VehicleRecord: model.VehicleRecord{ID: "v1"}}},
	}
	rec.Handle(context.Background(), events.RunCompletedEvent{RunID: "r1", Result: res})
	rec.Handle(context.Background(), events.RunCompletedEvent{RunID: "r2", Err: errors.New("down")})

	assert.Equal(t, 1, pub.Count())
	st, ok, err := states.Get(context.Background(), "v1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "r1", st.RunID)
}

func TestService_ReloadThresholds(t *testing.T) {
	payload, err := telemetry.Encode([]model.VehicleRecord{{ID: "v1", Speed: 130, Latitude: 48.8, Longitude: 2.3}})
	require.NoError(t, err)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer ts.Close()
	ctx := context.Background()
	svc := newService(t, ts.URL)

	res, err := svc.PollOnce(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Summary.StatusCounts[model.StatusWarning])

	cfg := *svc.cfg
	cfg.Thresholds.WarnSpeed = 150
	svc.Reload(&cfg)

	res, err = svc.PollOnce(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Summary.StatusCounts[model.StatusNormal])
}

func TestService_SummaryKeepsCredentialsOnSource(t *testing.T) {
	headers := make(chan string, 4)
	record := func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"telemetry":{}}`))
	}
	source := httptest.NewServer(http.HandlerFunc(record))
	defer source.Close()
	foreign := httptest.NewServer(http.HandlerFunc(record))
	defer foreign.Close()

	cfg := &config.Config{Source: config.SourceConfig{URL: source.URL, Auth: auth.Conf{Token: "source-token"}}}
	cfg.SetDefaults()
	svc, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer svc.Close()
	api := httptest.NewServer(svc.Handler())
	defer api.Close()

	resp, err := http.Get(api.URL + "/api/fleet/summary?url=" + url.QueryEscape(foreign.URL))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, <-headers)

	_, err = svc.PollOnce(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "Bearer source-token", <-headers)
}

type slowRunLog struct {
	mu   sync.Mutex
	recs []runlog.Record
}

func (s *slowRunLog) Append(_ context.Context, rec runlog.Record) error {
	time.Sleep(5 * time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	return nil
}

func (s *slowRunLog) Query(context.Context, runlog.Query) ([]runlog.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]runlog.Record(nil), s.recs...), nil
}

func (s *slowRunLog) Close() error { return nil }

func TestRecorder_KeepsEveryRunUnderLoad(t *testing.T) {
	src := simulatorURL(t, 4)
	cfg := &config.Config{Source: config.SourceConfig{URL: src}}
	cfg.SetDefaults()
	runs := &slowRunLog{}
	rec := &Recorder{States: vehiclestate.NewMemoryStore(), RunLog: runs, Logger: logger.NopLogger{}}
	bus := eventbus.New()
	defer bus.Close()
	_ = bus.Subscribe() // a stalled consumer must not cost the recorder any run

	runner, err := NewRunner(cfg, nil, nil, bus, rec.Handle, logger.NopLogger{})
	require.NoError(t, err)

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := runner.Run(context.Background(), src, time.Second)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	recs, err := runs.Query(context.Background(), runlog.Query{})
	require.NoError(t, err)
	assert.Len(t, recs, n)
	assert.Greater(t, bus.Dropped(), uint64(0))
}
