package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/fleetpulse/core/aggregate"
	"github.com/kilianp07/fleetpulse/core/events"
	"github.com/kilianp07/fleetpulse/core/logger"
	"github.com/kilianp07/fleetpulse/core/metrics"
	"github.com/kilianp07/fleetpulse/core/model"
	coremon "github.com/kilianp07/fleetpulse/core/monitoring"
	"github.com/kilianp07/fleetpulse/core/normalize"
	"github.com/kilianp07/fleetpulse/core/telemetry"
	"github.com/kilianp07/fleetpulse/internal/eventbus"
)

// Fetcher retrieves a raw telemetry payload. *transport.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, url string, timeout time.Duration) ([]byte, error)
}

// Runner executes one pipeline run. Both *Pipeline and *Retrying implement it.
type Runner interface {
	Run(ctx context.Context, url string, timeout time.Duration) (*model.PipelineResult, error)
}

// CompletionFunc receives every finished run, successful or not, before Run
// returns. Unlike the bus it never drops a run.
type CompletionFunc func(ctx context.Context, ev events.RunCompletedEvent)

// Config holds the pipeline collaborators. Only Fetcher is required.
type Config struct {
	Fetcher    Fetcher
	Decoder    *telemetry.Decoder
	Normalizer *normalize.Normalizer
	Aggregator *aggregate.Aggregator
	Sink       metrics.MetricsSink
	Bus        eventbus.EventBus
	OnComplete CompletionFunc
	Logger     logger.Logger
	Now        func() time.Time
}

// Pipeline chains fetch, decode, normalize and aggregate. It keeps no state
// between runs and is safe for concurrent use.
type Pipeline struct {
	fetcher    Fetcher
	decoder    *telemetry.Decoder
	normalizer *normalize.Normalizer
	aggregator *aggregate.Aggregator
	sink       metrics.MetricsSink
	bus        eventbus.EventBus
	onComplete CompletionFunc
	logger     logger.Logger
	now        func() time.Time
}

var _ Runner = (*Pipeline)(nil)

// New creates a pipeline, filling unset collaborators with defaults.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Fetcher == nil {
		return nil, errors.New("pipeline: nil fetcher")
	}
	p := &Pipeline{
		fetcher:    cfg.Fetcher,
		decoder:    cfg.Decoder,
		normalizer: cfg.Normalizer,
		aggregator: cfg.Aggregator,
		sink:       cfg.Sink,
		bus:        cfg.Bus,
		onComplete: cfg.OnComplete,
		logger:     cfg.Logger,
		now:        cfg.Now,
	}
	if p.decoder == nil {
		p.decoder = telemetry.NewDecoder()
	}
	if p.normalizer == nil {
		p.normalizer = normalize.Default()
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.aggregator == nil {
		p.aggregator = aggregate.New(aggregate.WithClock(p.now))
	}
	if p.sink == nil {
		p.sink = metrics.NopSink{}
	}
	if p.logger == nil {
		p.logger = nopLogger{}
	}
	return p, nil
}

// Run fetches the payload at url within timeout and folds it into a fleet
// summary. Transport and decode failures abort the run with a *Error; per
// vehicle problems are reported in the result's Errors. Run never retries.
func (p *Pipeline) Run(ctx context.Context, url string, timeout time.Duration) (*model.PipelineResult, error) {
	r := p.start(ctx, url)
	r.log.Debugf("fetching %s", url)

	body, err := p.fetcher.Fetch(ctx, url, timeout)
	if err != nil {
		return nil, r.fail(fmt.Errorf("fetch telemetry: %w", err))
	}
	r.advance(model.StageDecoding)

	batch, err := p.decoder.Decode(body)
	if err != nil {
		return nil, r.fail(fmt.Errorf("decode telemetry: %w", err))
	}
	r.advance(model.StageNormalizing)

	annotated := p.normalizer.NormalizeAll(batch.Records)
	r.advance(model.StageAggregating)

	res := &model.PipelineResult{
		Summary:  p.aggregator.Aggregate(annotated),
		Errors:   collectErrors(batch.Errors, annotated),
		Vehicles: annotated,
	}
	r.advance(model.StageDone)
	r.succeed(res)
	return res, nil
}

// collectErrors lists decoder soft errors first, then one error per invalid
// record in record order.
func collectErrors(soft []model.RecordError, recs []model.AnnotatedRecord) []model.RecordError {
	out := make([]model.RecordError, 0, len(soft))
	out = append(out, soft...)
	for _, rec := range recs {
		if rec.Status == model.StatusInvalid {
			out = append(out, model.RecordError{VehicleID: rec.ID, Message: strings.Join(rec.Reasons, "; ")})
		}
	}
	return out
}

// run tracks the state machine of a single execution.
type run struct {
	p       *Pipeline
	ctx     context.Context
	id      string
	url     string
	log     logger.Logger
	stage   model.Stage
	started time.Time
	entered time.Time
}

func (p *Pipeline) start(ctx context.Context, url string) *run {
	now := p.now()
	id := uuid.NewString()
	return &run{
		p:       p,
		ctx:     ctx,
		id:      id,
		url:     url,
		log:     logger.With(p.logger, map[string]any{"run_id": id}),
		stage:   model.StageFetching,
		started: now,
		entered: now,
	}
}

// advance moves the run to next. An illegal transition is a programming
// error and panics.
func (r *run) advance(next model.Stage) {
	if !r.stage.CanTransition(next) {
		panic(fmt.Sprintf("pipeline: illegal transition %s -> %s", r.stage, next))
	}
	now := r.p.now()
	ev := events.StageEvent{RunID: r.id, From: r.stage, Stage: next, Elapsed: now.Sub(r.entered), Time: now}
	r.stage, r.entered = next, now
	if r.p.bus != nil {
		r.p.bus.Publish(ev)
	}
}

func (r *run) fail(cause error) error {
	err := &Error{RunID: r.id, Stage: r.stage, Err: cause}
	r.advance(model.StageFailed)
	elapsed := r.p.now().Sub(r.started)

	r.log.Errorf("run failed after %s: %v", elapsed, cause)
	coremon.CaptureModule(err, "pipeline", "run_id", r.id, "stage", err.Stage.String(), "kind", ErrorKind(err))
	r.record(metrics.RunEvent{
		RunID:     r.id,
		URL:       r.url,
		Outcome:   OutcomeOf(err),
		ErrorKind: ErrorKind(err),
		Duration:  elapsed,
		Time:      r.entered,
	})
	r.publish(events.RunCompletedEvent{RunID: r.id, URL: r.url, Err: err, Duration: elapsed, Time: r.entered})
	return err
}

func (r *run) succeed(res *model.PipelineResult) {
	elapsed := r.p.now().Sub(r.started)
	s := res.Summary
	r.log.Infof("run done in %s: %d vehicles, %d valid, avg speed %.2f, %d errors",
		elapsed, s.TotalVehicles, s.ValidVehicles, s.AverageSpeed, len(res.Errors))

	r.record(metrics.RunEvent{
		RunID:      r.id,
		URL:        r.url,
		Outcome:    metrics.OutcomeSuccess,
		Duration:   elapsed,
		Summary:    &s,
		SoftErrors: len(res.Errors),
		Time:       r.entered,
	})
	if vr, ok := r.p.sink.(metrics.VehicleStateRecorder); ok && len(res.Vehicles) > 0 {
		if err := vr.RecordVehicleStates(metrics.VehicleStates(r.id, res)); err != nil {
			r.log.Warnf("vehicle state metrics error: %v", err)
		}
	}
	r.publish(events.RunCompletedEvent{RunID: r.id, URL: r.url, Result: res, Duration: elapsed, Time: r.entered})
}

func (r *run) record(ev metrics.RunEvent) {
	if err := r.p.sink.RecordRun(ev); err != nil {
		r.log.Warnf("run metrics error: %v", err)
	}
}

// publish hands the completed run to the completion callback, which must
// see it even when the caller's context is already done, then to the bus.
func (r *run) publish(ev events.RunCompletedEvent) {
	if r.p.onComplete != nil {
		r.p.onComplete(context.WithoutCancel(r.ctx), ev)
	}
	if r.p.bus != nil {
		r.p.bus.Publish(ev)
	}
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any)         {}
func (nopLogger) Debugw(string, map[string]any) {}
func (nopLogger) Infof(string, ...any)          {}
func (nopLogger) Warnf(string, ...any)          {}
func (nopLogger) Errorf(string, ...any)         {}
