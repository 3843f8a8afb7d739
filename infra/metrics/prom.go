package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/fleetpulse/core/metrics"
	"github.com/kilianp07/fleetpulse/core/model"
)

// PromSink records pipeline runs in Prometheus metrics.
type PromSink struct {
	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
	stageDuration *prometheus.HistogramVec
	softErrors    prometheus.Counter
	fleetVehicles *prometheus.GaugeVec
	validVehicles prometheus.Gauge
	averageSpeed  prometheus.Gauge
	lastSuccess   prometheus.Gauge
}

// NewPromSink registers pipeline metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using cfg.PrometheusPort.
func NewPromSink() (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetpulse_runs_total",
			Help: "Total number of pipeline runs by outcome",
		}, []string{"outcome", "error_kind"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fleetpulse_run_duration_seconds",
			Help:    "Wall time of a pipeline run",
			Buckets: prometheus.DefBuckets,
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fleetpulse_stage_duration_seconds",
			Help:    "Time spent in each pipeline stage",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"stage"}),
		softErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleetpulse_soft_errors_total",
			Help: "Per-vehicle errors that did not abort a run",
		}),
		fleetVehicles: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fleetpulse_fleet_vehicles",
			Help: "Vehicles per status in the last successful run",
		}, []string{"status"}),
		validVehicles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fleetpulse_fleet_valid_vehicles",
			Help: "Valid vehicles in the last successful run",
		}),
		averageSpeed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fleetpulse_fleet_average_speed_kmh",
			Help: "Average speed of valid vehicles in the last successful run",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fleetpulse_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run",
		}),
	}

	var err error
	if s.runs, err = register(reg, s.runs); err != nil {
		return nil, err
	}
	if s.runDuration, err = register(reg, s.runDuration); err != nil {
		return nil, err
	}
	if s.stageDuration, err = register(reg, s.stageDuration); err != nil {
		return nil, err
	}
	if s.softErrors, err = register(reg, s.softErrors); err != nil {
		return nil, err
	}
	if s.fleetVehicles, err = register(reg, s.fleetVehicles); err != nil {
		return nil, err
	}
	if s.validVehicles, err = register(reg, s.validVehicles); err != nil {
		return nil, err
	}
	if s.averageSpeed, err = register(reg, s.averageSpeed); err != nil {
		return nil, err
	}
	if s.lastSuccess, err = register(reg, s.lastSuccess); err != nil {
		return nil, err
	}
	return s, nil
}

// register adds c to reg, reusing the existing collector when the same
// metric was registered before.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordRun counts the run and, on success, updates the fleet gauges.
func (s *PromSink) RecordRun(ev coremetrics.RunEvent) error {
	s.runs.WithLabelValues(ev.Outcome, ev.ErrorKind).Inc()
	s.runDuration.Observe(ev.Duration.Seconds())
	s.softErrors.Add(float64(ev.SoftErrors))
	if ev.Summary == nil {
		return nil
	}
	for _, st := range model.Statuses {
		s.fleetVehicles.WithLabelValues(st.String()).Set(float64(ev.Summary.StatusCounts[st]))
	}
	s.validVehicles.Set(float64(ev.Summary.ValidVehicles))
	s.averageSpeed.Set(ev.Summary.AverageSpeed)
	s.lastSuccess.Set(float64(ev.Time.Unix()))
	return nil
}

// RecordStageDuration observes the stage histogram.
func (s *PromSink) RecordStageDuration(t coremetrics.StageTiming) error {
	s.stageDuration.WithLabelValues(t.Stage.String()).Observe(t.Duration.Seconds())
	return nil
}
