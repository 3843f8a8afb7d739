package pipeline

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kilianp07/fleetpulse/core/logger"
	"github.com/kilianp07/fleetpulse/core/model"
)

// RetryConfig controls caller-level retries of whole runs.
type RetryConfig struct {
	MaxRetries        int `json:"max_retries"`
	InitialIntervalMS int `json:"initial_interval_ms"`
	MaxIntervalMS     int `json:"max_interval_ms"`
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.InitialIntervalMS <= 0 {
		c.InitialIntervalMS = 200
	}
	if c.MaxIntervalMS <= 0 {
		c.MaxIntervalMS = 5000
	}
	if c.MaxIntervalMS < c.InitialIntervalMS {
		c.MaxIntervalMS = c.InitialIntervalMS
	}
	return c
}

// Retrying re-runs a Runner while it fails with a retryable error. Each
// attempt is a complete, independent run.
type Retrying struct {
	runner Runner
	cfg    RetryConfig
	logger logger.Logger
}

var _ Runner = (*Retrying)(nil)

// NewRetrying wraps r. MaxRetries <= 0 disables retries.
func NewRetrying(r Runner, cfg RetryConfig, log logger.Logger) *Retrying {
	if log == nil {
		log = nopLogger{}
	}
	return &Retrying{runner: r, cfg: cfg.withDefaults(), logger: log}
}

// Run calls the wrapped runner, retrying with exponential backoff. Decode
// errors and non-retryable status codes are returned immediately.
func (r *Retrying) Run(ctx context.Context, url string, timeout time.Duration) (*model.PipelineResult, error) {
	if r.cfg.MaxRetries <= 0 {
		return r.runner.Run(ctx, url, timeout)
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = time.Duration(r.cfg.InitialIntervalMS) * time.Millisecond
	eb.MaxInterval = time.Duration(r.cfg.MaxIntervalMS) * time.Millisecond
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(r.cfg.MaxRetries)), ctx)

	var res *model.PipelineResult
	op := func() error {
		out, err := r.runner.Run(ctx, url, timeout)
		if err != nil {
			if !Retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		res = out
		return nil
	}
	notify := func(err error, next time.Duration) {
		r.logger.Warnf("run failed, retrying in %s: %v", next, err)
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, err
	}
	return res, nil
}
