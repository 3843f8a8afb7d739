package metrics

import (
	"context"

	"github.com/kilianp07/fleetpulse/core/events"
	coremetrics "github.com/kilianp07/fleetpulse/core/metrics"
	"github.com/kilianp07/fleetpulse/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records stage timings
// for sinks implementing StageRecorder. It stops when the context is canceled
// or the bus is closed. Runs themselves are reported by the pipeline.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	rec, ok := sink.(coremetrics.StageRecorder)
	if !ok {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if e, ok := ev.(events.StageEvent); ok {
					_ = rec.RecordStageDuration(coremetrics.StageTiming{
						RunID:    e.RunID,
						Stage:    e.From,
						Duration: e.Elapsed,
					})
				}
			}
		}
	}()
}
