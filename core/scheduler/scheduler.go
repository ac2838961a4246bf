package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/slotplan/core/logger"
	"github.com/kilianp07/slotplan/core/message"
	"github.com/kilianp07/slotplan/core/metrics"
	"github.com/kilianp07/slotplan/core/model"
)

// DefaultMaxDetailedWarnings is the number of unscheduled tasks reported
// individually.
const DefaultMaxDetailedWarnings = 10

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithSink sets the diagnostics sink.
func WithSink(s message.Sink) Option { return func(sc *Scheduler) { sc.sink = s } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(sc *Scheduler) { sc.log = l } }

// WithRecorder sets the metrics sink finished runs are recorded to.
func WithRecorder(r metrics.MetricsSink) Option { return func(sc *Scheduler) { sc.recorder = r } }

// WithEventBus sets the publisher of progress events.
func WithEventBus(p EventPublisher) Option { return func(sc *Scheduler) { sc.events = p } }

// WithMaxDetailedWarnings limits how many unscheduled tasks are reported one
// by one.
func WithMaxDetailedWarnings(n int) Option {
	return func(sc *Scheduler) { sc.maxDetailed = n }
}

// WithScenarios restricts Schedule to the named scenarios.
func WithScenarios(names ...string) Option {
	return func(sc *Scheduler) {
		sc.only = make(map[string]bool, len(names))
		for _, n := range names {
			sc.only[n] = true
		}
	}
}

// Scheduler drives the scheduling of a project.
type Scheduler struct {
	project     *model.Project
	sink        message.Sink
	log         logger.Logger
	recorder    metrics.MetricsSink
	events      EventPublisher
	maxDetailed int
	only        map[string]bool
}

// New returns a Scheduler for p.
func New(p *model.Project, opts ...Option) *Scheduler {
	s := &Scheduler{
		project:     p,
		sink:        message.NopSink{},
		log:         logger.Nop{},
		recorder:    metrics.NopSink{},
		maxDetailed: DefaultMaxDetailedWarnings,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Schedule runs every enabled scenario in declaration order. A dependency
// loop fails only its scenario; the context is checked between scenarios.
func (s *Scheduler) Schedule(ctx context.Context) (*Result, error) {
	if len(s.project.Tasks()) == 0 {
		return nil, ErrNoTasks
	}
	res := &Result{}
	for idx, sc := range s.project.Scenarios {
		if !sc.Enabled || (s.only != nil && !s.only[sc.Name]) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		sr, err := s.ScheduleScenario(ctx, idx)
		if sr != nil {
			res.Scenarios = append(res.Scenarios, sr)
		}
		if err != nil && !errors.Is(err, ErrDependencyLoop) {
			return res, err
		}
	}
	return res, nil
}

// ScheduleScenario prepares, schedules and checks one scenario.
func (s *Scheduler) ScheduleScenario(ctx context.Context, idx int) (*ScenarioResult, error) {
	if idx < 0 || idx >= len(s.project.Scenarios) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownScenario, idx)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.project.Validate(); err != nil {
		return nil, fmt.Errorf("project %s: %w", s.project.Name, err)
	}
	if len(s.project.Tasks()) == 0 {
		return nil, ErrNoTasks
	}
	began := time.Now()
	sc := newScenario(s.project, idx, uuid.NewString(), s.sink, s.log, s.events)
	s.log.Infof("scheduling scenario %s of project %s (run %s)", sc.name, s.project.Name, sc.runID)
	sc.publish(Event{Kind: EventScenarioStarted})

	err := s.prepare(sc)
	unscheduled := 0
	if err == nil {
		s.scheduleScenario(sc)
		unscheduled = s.reportUnscheduled(sc)
		s.finish(sc)
	} else {
		s.log.Errorf("scenario %s: %v", sc.name, err)
	}

	res := &ScenarioResult{
		Index:       idx,
		Name:        sc.name,
		RunID:       sc.runID,
		Err:         err,
		Unscheduled: unscheduled,
		Errors:      sc.severities[message.Error],
		Warnings:    sc.severities[message.Warning],
		Duration:    time.Since(began),
		sc:          sc,
	}
	res.OK = err == nil && unscheduled == 0 && res.Errors == 0
	s.log.Infof("scenario %s done in %s: ok=%t errors=%d warnings=%d", sc.name, res.Duration, res.OK, res.Errors, res.Warnings)
	sc.publish(Event{Kind: EventScenarioDone, OK: res.OK})
	s.record(res)
	return res, err
}

func (s *Scheduler) prepare(sc *scenario) error {
	sc.buildWorkingTime()
	for _, t := range sc.tasks {
		for _, a := range t.spec.Allocations {
			for _, c := range a.Candidates {
				for _, l := range sc.leaves(c) {
					l.used = true
				}
			}
		}
		for _, b := range t.spec.Bookings {
			for _, l := range sc.leaves(b.Resource) {
				l.used = true
			}
		}
	}
	for _, r := range sc.resources {
		r.PrepareScheduling()
		r.PreScheduleCheck()
	}
	for _, t := range sc.tasks {
		t.PrepareScheduling()
		t.PreScheduleCheck()
	}
	for _, t := range sc.tasks {
		t.Xref()
	}
	for _, t := range sc.tasks {
		t.PropagateInitialValues()
	}
	if err := s.checkForLoops(sc); err != nil {
		return err
	}
	for _, r := range sc.resources {
		r.CalcCriticalness()
	}
	for _, t := range sc.tasks {
		t.CalcCriticalness()
	}
	for _, t := range sc.tasks {
		t.CalcPathCriticalness(false)
	}
	s.log.Debugf("scenario %s prepared: %d tasks, %d resources", sc.name, len(sc.tasks), len(sc.resources))
	return nil
}

// checkForLoops walks the graph forward from the start of every top-level
// task and backward from its end.
func (s *Scheduler) checkForLoops(sc *scenario) error {
	for _, forward := range []bool{true, false} {
		for _, t := range sc.tasks {
			t.resetLoopFlags()
		}
		for _, t := range sc.tasks {
			if t.task.Parent != model.NoTask {
				continue
			}
			cycle := t.CheckForLoops(nil, !forward, true, forward)
			if cycle == nil {
				continue
			}
			le := &LoopError{}
			for _, n := range cycle {
				le.Path = append(le.Path, n.format(sc))
			}
			sc.report(message.Error, msgLoop, sc.task(cycle[0].task).task.Source, "depends", "%s", le.Error())
			return le
		}
	}
	return nil
}

func (s *Scheduler) scheduleScenario(sc *scenario) {
	var leaves []*TaskScenario
	for _, t := range sc.tasks {
		if t.task.Leaf() {
			leaves = append(leaves, t)
		}
	}
	for {
		var ready []*TaskScenario
		for _, t := range leaves {
			if t.ReadyForScheduling() {
				ready = append(ready, t)
			}
		}
		if len(ready) == 0 {
			return
		}
		sort.SliceStable(ready, func(i, j int) bool { return higherUrgency(ready[i], ready[j]) })
		t := ready[0]
		s.log.Debugf("scheduling task %s (priority %d, path criticalness %.3f)", t.task.Key, t.spec.Priority, t.PathCriticalness())
		t.Schedule()
		if !t.scheduled && !t.runaway {
			t.warnf(msgStalled, "", "task %s could not be scheduled", t.task.Key)
			t.runaway = true
		}
	}
}

// higherUrgency orders by priority, then path criticalness, then
// declaration order.
func higherUrgency(a, b *TaskScenario) bool {
	if a.spec.Priority != b.spec.Priority {
		return a.spec.Priority > b.spec.Priority
	}
	if a.PathCriticalness() != b.PathCriticalness() {
		return a.PathCriticalness() > b.PathCriticalness()
	}
	return a.task.Seq() < b.task.Seq()
}

func (s *Scheduler) reportUnscheduled(sc *scenario) int {
	n := 0
	for _, t := range sc.tasks {
		if t.scheduled {
			continue
		}
		n++
		if n <= s.maxDetailed {
			t.warnf(msgUnscheduled, "", "task %s has not been scheduled", t.task.Key)
		}
	}
	if n > s.maxDetailed {
		sc.report(message.Warning, msgUnscheduled, nil, "", "%d more tasks have not been scheduled", n-s.maxDetailed)
	}
	return n
}

func (s *Scheduler) finish(sc *scenario) {
	for _, t := range sc.tasks {
		if t.task.Parent == model.NoTask {
			t.FinishScheduling()
		}
	}
	for _, r := range sc.resources {
		if r.res.Parent == model.NoResource {
			r.FinishScheduling()
		}
	}
	for _, t := range sc.tasks {
		if t.task.Parent == model.NoTask {
			t.PostScheduleCheck()
		}
	}
	for _, r := range sc.resources {
		r.PostScheduleCheck()
	}
}

func (s *Scheduler) record(res *ScenarioResult) {
	now := time.Now()
	run := metrics.ScenarioRun{
		RunID:       res.RunID,
		Project:     s.project.Name,
		Scenario:    res.Name,
		OK:          res.OK,
		Tasks:       len(res.sc.tasks),
		Unscheduled: res.Unscheduled,
		Errors:      res.Errors,
		Warnings:    res.Warnings,
		Duration:    res.Duration,
		Time:        now,
	}
	for _, t := range res.sc.tasks {
		if t.scheduled {
			run.Scheduled++
		}
		if t.runaway {
			run.Runaway++
		}
	}
	run.Start, run.End = res.Span()
	if err := s.recorder.RecordScenarioRun(run); err != nil {
		s.log.Warnf("record scenario run: %v", err)
	}
	lr, ok := s.recorder.(metrics.ResourceLoadRecorder)
	if !ok || res.Err != nil {
		return
	}
	frame := s.project.Frame()
	var loads []metrics.ResourceLoad
	for _, r := range res.sc.resources {
		if !r.res.Leaf() || !r.used {
			continue
		}
		loads = append(loads, metrics.ResourceLoad{
			RunID:        res.RunID,
			Scenario:     res.Name,
			Resource:     r.res.Key,
			Allocated:    r.AllocatedTime(frame, model.NoTask),
			Free:         r.EffectiveFreeTime(frame),
			Vacation:     r.VacationSlots(frame),
			Cost:         r.Cost(frame, model.NoTask),
			Criticalness: r.criticalness,
			Time:         now,
		})
	}
	if err := lr.RecordResourceLoad(loads); err != nil {
		s.log.Warnf("record resource load: %v", err)
	}
}
