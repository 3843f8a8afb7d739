package app

import (
	"context"
	"fmt"
	"net/url"

	"github.com/kilianp07/fleetpulse/config"
	"github.com/kilianp07/fleetpulse/core/aggregate"
	"github.com/kilianp07/fleetpulse/core/logger"
	coremetrics "github.com/kilianp07/fleetpulse/core/metrics"
	"github.com/kilianp07/fleetpulse/core/normalize"
	"github.com/kilianp07/fleetpulse/core/pipeline"
	"github.com/kilianp07/fleetpulse/core/telemetry"
	"github.com/kilianp07/fleetpulse/core/transport"
	"github.com/kilianp07/fleetpulse/core/vehiclestate"
	"github.com/kilianp07/fleetpulse/infra/auth"
	"github.com/kilianp07/fleetpulse/infra/store"
	"github.com/kilianp07/fleetpulse/internal/eventbus"
)

// NewFetcher builds the transport client for the configured source.
// Credentials are only sent to the host of src.URL; without a source url the
// client never authenticates.
func NewFetcher(src config.SourceConfig) *transport.Client {
	opts := []transport.Option{
		transport.WithDefaultTimeout(src.Timeout()),
		transport.WithMaxBodyBytes(src.MaxBodyBytes),
		transport.WithUserAgent(src.UserAgent),
	}
	if a := auth.New(src.Auth); a != nil {
		if u, err := url.Parse(src.URL); err == nil && u.Host != "" {
			opts = append(opts, transport.WithAuthorizer(a), transport.WithAuthorizedHost(u.Host))
		}
	}
	return transport.NewClient(opts...)
}

// NewRunner builds the pipeline described by cfg, wrapped with the
// configured retries. A nil norm is built from cfg.Thresholds. done, when
// set, receives every attempt.
func NewRunner(cfg *config.Config, norm *normalize.Normalizer, sink coremetrics.MetricsSink, bus eventbus.EventBus, done pipeline.CompletionFunc, log logger.Logger) (pipeline.Runner, error) {
	if norm == nil {
		norm = normalize.New(cfg.Thresholds)
	}
	p, err := pipeline.New(pipeline.Config{
		Fetcher:    NewFetcher(cfg.Source),
		Decoder:    telemetry.NewDecoder(),
		Normalizer: norm,
		Aggregator: aggregate.New(),
		Sink:       sink,
		Bus:        bus,
		OnComplete: done,
		Logger:     log,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Source.Retry.MaxRetries > 0 {
		return pipeline.NewRetrying(p, cfg.Source.Retry, log), nil
	}
	return p, nil
}

// NewStateStore returns a Redis store when an address is configured and an
// in-memory store otherwise.
func NewStateStore(ctx context.Context, cfg store.RedisConfig) (vehiclestate.Store, error) {
	if cfg.Addr == "" {
		return vehiclestate.NewMemoryStore(), nil
	}
	rs, err := store.NewRedisStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("redis state store: %w", err)
	}
	return rs, nil
}
