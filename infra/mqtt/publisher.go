package mqtt

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/kilianp07/slotplan/core/scheduler"
	"github.com/kilianp07/slotplan/internal/eventbus"
	"github.com/kilianp07/slotplan/pkg/export"
)

// Publisher sends finished schedules to a broker.
type Publisher interface {
	PublishSchedule(ctx context.Context, s export.Schedule) error
}

type eventMessage struct {
	Kind     string     `json:"kind"`
	RunID    string     `json:"run_id"`
	Scenario string     `json:"scenario"`
	Task     string     `json:"task,omitempty"`
	Start    *time.Time `json:"start,omitempty"`
	End      *time.Time `json:"end,omitempty"`
	OK       *bool      `json:"ok,omitempty"`
}

func newEventMessage(ev scheduler.Event) eventMessage {
	m := eventMessage{Kind: ev.Kind.String(), RunID: ev.RunID, Scenario: ev.Scenario, Task: ev.Task}
	if !ev.Start.IsZero() {
		m.Start = &ev.Start
	}
	if !ev.End.IsZero() {
		m.End = &ev.End
	}
	if ev.Kind == scheduler.EventScenarioDone {
		ok := ev.OK
		m.OK = &ok
	}
	return m
}

// PublishEvent publishes a progress event. Events are never retained.
func (p *PahoPublisher) PublishEvent(ctx context.Context, ev scheduler.Event) error {
	payload, err := json.Marshal(newEventMessage(ev))
	if err != nil {
		return err
	}
	return p.publish(ctx, p.EventTopic(ev.Scenario), false, payload)
}

// ForwardEvents publishes every event of bus until ctx is canceled or the
// bus is closed. The returned channel is closed when forwarding stops.
func (p *PahoPublisher) ForwardEvents(ctx context.Context, bus *eventbus.Bus[scheduler.Event]) <-chan struct{} {
	done := make(chan struct{})
	sub := bus.Subscribe()
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
				if err := p.PublishEvent(ctx, ev); err != nil {
					p.logger.Warnf("forward %s event: %v", ev.Kind, err)
				}
			}
		}
	}()
	return done
}

// MockPublisher records published schedules. It is used in tests.
type MockPublisher struct {
	mu        sync.Mutex
	Schedules []export.Schedule
	Err       error
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

// PublishSchedule records s or returns the configured error.
func (m *MockPublisher) PublishSchedule(_ context.Context, s export.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Schedules = append(m.Schedules, s)
	return nil
}

// Published returns a copy of the recorded schedules.
func (m *MockPublisher) Published() []export.Schedule {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]export.Schedule(nil), m.Schedules...)
}
