package metrics

import (
	"context"
	"time"

	coremetrics "github.com/kilianp07/slotplan/core/metrics"
	"github.com/kilianp07/slotplan/core/scheduler"
	"github.com/kilianp07/slotplan/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records task events
// on sinks implementing TaskEventRecorder. It stops when the context is
// canceled or the bus is closed. The returned channel is closed once the
// collector has exited.
func StartEventCollector(ctx context.Context, bus *eventbus.Bus[scheduler.Event], sink coremetrics.MetricsSink) <-chan struct{} {
	done := make(chan struct{})
	rec, ok := sink.(coremetrics.TaskEventRecorder)
	if bus == nil || !ok {
		close(done)
		return done
	}
	sub := bus.Subscribe()
	log := newLogger("event-collector")
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if ev.Kind != scheduler.EventTaskScheduled && ev.Kind != scheduler.EventTaskRunaway {
					continue
				}
				if err := rec.RecordTaskEvent(coremetrics.TaskEvent{
					RunID:    ev.RunID,
					Scenario: ev.Scenario,
					Task:     ev.Task,
					Kind:     ev.Kind.String(),
					Start:    ev.Start,
					End:      ev.End,
					Time:     time.Now(),
				}); err != nil {
					log.Warnf("record task event %s: %v", ev.Task, err)
				}
			}
		}
	}()
	return done
}
