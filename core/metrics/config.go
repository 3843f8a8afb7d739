package metrics

import (
	"fmt"
	"net"

	"github.com/kilianp07/fleetpulse/core/factory"
)

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PrometheusPort is the listen address of /metrics, e.g. ":9090".
	PrometheusPort string `json:"prometheus_port"`
}

// Validate checks that every sink names a type and that the Prometheus
// address is well formed.
func (c Config) Validate() error {
	for i, s := range c.Sinks {
		if s.Type == "" {
			return fmt.Errorf("metrics.sinks[%d]: missing type", i)
		}
	}
	if c.PrometheusPort != "" {
		if _, _, err := net.SplitHostPort(c.PrometheusPort); err != nil {
			return fmt.Errorf("metrics.prometheus_port: %w", err)
		}
	}
	return nil
}

var sinkRegistry = factory.NewRegistry[MetricsSink]()

// RegisterMetricsSink adds a sink factory under name. Adapters register
// themselves from init.
func RegisterMetricsSink(name string, f factory.Factory[MetricsSink]) error {
	return sinkRegistry.Register(name, f)
}

// RegisteredSinks lists the available sink types.
func RegisteredSinks() []string { return sinkRegistry.Names() }

// NewMetricsSink builds one sink per entry. No entry yields a NopSink and
// several are combined in a MultiSink.
func NewMetricsSink(cfgs []factory.ModuleConfig) (MetricsSink, error) {
	switch len(cfgs) {
	case 0:
		return NopSink{}, nil
	case 1:
		return sinkRegistry.Create(cfgs[0])
	}
	sinks := make([]MetricsSink, 0, len(cfgs))
	for _, c := range cfgs {
		s, err := sinkRegistry.Create(c)
		if err != nil {
			return nil, fmt.Errorf("sink %q: %w", c.Type, err)
		}
		sinks = append(sinks, s)
	}
	return NewMultiSink(sinks...), nil
}
