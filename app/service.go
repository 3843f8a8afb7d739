package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	fleetapi "github.com/kilianp07/fleetpulse/api/fleet"
	"github.com/kilianp07/fleetpulse/api/runs"
	"github.com/kilianp07/fleetpulse/api/vehicles"
	"github.com/kilianp07/fleetpulse/api/ws"
	"github.com/kilianp07/fleetpulse/config"
	"github.com/kilianp07/fleetpulse/core/events"
	coremetrics "github.com/kilianp07/fleetpulse/core/metrics"
	"github.com/kilianp07/fleetpulse/core/model"
	coremon "github.com/kilianp07/fleetpulse/core/monitoring"
	coremqtt "github.com/kilianp07/fleetpulse/core/mqtt"
	"github.com/kilianp07/fleetpulse/core/normalize"
	"github.com/kilianp07/fleetpulse/core/pipeline"
	"github.com/kilianp07/fleetpulse/core/runlog"
	"github.com/kilianp07/fleetpulse/core/vehiclestate"
	"github.com/kilianp07/fleetpulse/infra/logger"
	"github.com/kilianp07/fleetpulse/infra/metrics"
	"github.com/kilianp07/fleetpulse/infra/monitoring"
	"github.com/kilianp07/fleetpulse/infra/mqtt"
	"github.com/kilianp07/fleetpulse/internal/eventbus"
)

// Service wires the pipeline to its sinks, stores and HTTP API.
type Service struct {
	cfg    *config.Config
	log    logger.Logger
	bus    *eventbus.Bus
	sink   coremetrics.MetricsSink
	runner pipeline.Runner
	norm   *normalize.Normalizer
	states vehiclestate.Store
	runs   runlog.Store
	client *mqtt.PahoClient
	fleet  *fleetapi.Handler
	hub    *ws.Hub
	rec    *Recorder
}

// New creates a Service from the configuration.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		return nil, err
	}
	logg := logger.New("service")

	monitor, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(monitor)

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	bus := eventbus.New()
	norm := normalize.New(cfg.Thresholds)
	var rec *Recorder
	done := func(ctx context.Context, ev events.RunCompletedEvent) { rec.Handle(ctx, ev) }
	runner, err := NewRunner(cfg, norm, sink, bus, done, logger.New("pipeline"))
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	states, err := NewStateStore(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	runLog, err := runlog.Open(cfg.RunLog)
	if err != nil {
		return nil, fmt.Errorf("run log: %w", err)
	}

	svc := &Service{
		cfg:    cfg,
		log:    logg,
		bus:    bus,
		sink:   sink,
		runner: runner,
		norm:   norm,
		states: states,
		runs:   runLog,
		fleet:  fleetapi.NewHandler(runner, cfg.Source.URL, cfg.Source.Timeout(), logger.New("api")),
		hub:    ws.New(logger.New("ws"), cfg.Server.AllowedOrigins...),
	}
	rec = &Recorder{
		States:   states,
		RunLog:   runLog,
		Logger:   logger.New("recorder"),
		OnResult: func(ev events.RunCompletedEvent) { svc.fleet.SetLast(ev.Result) },
	}
	svc.rec = rec
	if cfg.MQTT.Enabled() {
		client, err := mqtt.NewPahoClient(cfg.MQTT)
		if err != nil {
			_ = svc.Close()
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		svc.client = client
		svc.rec.Publisher = client
	}
	return svc, nil
}

// Start launches the background consumers, the poller and the MQTT command
// listener. It returns immediately.
func (s *Service) Start(ctx context.Context) {
	metrics.StartEventCollector(ctx, s.bus, s.sink)
	go s.hub.Run(ctx, s.bus.Subscribe())

	if port := s.cfg.Metrics.PrometheusPort; port != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, port); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if s.client != nil {
		s.client.OnPollRequest(func(req coremqtt.PollRequest) {
			s.log.Infof("poll requested over mqtt: %s", req.CommandID)
			go s.poll(ctx, req.URL)
		})
	}
	if every := s.cfg.Server.PollInterval(); every > 0 && s.cfg.Source.URL != "" {
		go s.pollEvery(ctx, every)
	}
}

// Run starts the service and serves the HTTP API until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.Start(ctx)
	srv := &http.Server{Addr: s.cfg.Server.Address, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("http shutdown: %v", err)
		}
	}()
	s.log.Infof("serving api on %s", s.cfg.Server.Address)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler returns the HTTP routes of the service.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/fleet/summary", s.fleet.Summary())
	mux.Handle("/api/fleet/chart", s.fleet.Chart())
	state := vehicles.NewStateHandler(s.states)
	mux.Handle("/api/fleet/vehicles", state)
	mux.Handle("/api/fleet/vehicles/", state)
	mux.Handle("/api/fleet/nearby", vehicles.NewNearbyHandler(s.states))
	mux.Handle("/api/runs", runs.NewHandler(s.runs, s.cfg.Server.APIToken))
	mux.Handle("/ws", s.hub)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// PollOnce runs the pipeline against url, or the configured source when url
// is empty.
func (s *Service) PollOnce(ctx context.Context, url string) (*model.PipelineResult, error) {
	if url == "" {
		url = s.cfg.Source.URL
	}
	if url == "" {
		return nil, fmt.Errorf("no source url configured")
	}
	return s.runner.Run(ctx, url, s.cfg.Source.Timeout())
}

func (s *Service) poll(ctx context.Context, url string) {
	defer coremon.Recover()
	res, err := s.PollOnce(ctx, url)
	if err != nil {
		s.log.Warnf("poll failed: %v", err)
		return
	}
	s.log.Infof("poll done: %d vehicles, %d errors", res.Summary.TotalVehicles, len(res.Errors))
}

func (s *Service) pollEvery(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	s.poll(ctx, "")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.poll(ctx, "")
		}
	}
}

// Reload applies the settings of cfg that can change at runtime: the log
// level and the validation thresholds.
func (s *Service) Reload(cfg *config.Config) {
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		s.log.Warnf("reload: %v", err)
	}
	s.norm.SetThresholds(cfg.Thresholds)
	s.log.Infof("thresholds now %+v", cfg.Thresholds.WithDefaults())
}

// States exposes the vehicle state store.
func (s *Service) States() vehiclestate.Store { return s.states }

// RunLog exposes the run history, nil when disabled.
func (s *Service) RunLog() runlog.Store { return s.runs }

// Close releases resources held by the service.
func (s *Service) Close() error {
	var errs []error
	if s.client != nil {
		s.client.Disconnect()
	}
	if s.runs != nil {
		errs = append(errs, s.runs.Close())
	}
	if c, ok := s.states.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if c, ok := s.sink.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	s.bus.Close()
	coremon.Flush(2 * time.Second)
	return errors.Join(errs...)
}
