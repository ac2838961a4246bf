package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/slotplan/core/metrics"
)

// PromSink exposes scheduling runs as Prometheus metrics.
type PromSink struct {
	runs         *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	tasks        *prometheus.GaugeVec
	messages     *prometheus.GaugeVec
	allocated    *prometheus.GaugeVec
	free         *prometheus.GaugeVec
	criticalness *prometheus.GaugeVec
	taskEvents   *prometheus.CounterVec
}

// NewPromSink registers the scheduling metrics on the default registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on reg. A nil registerer
// defaults to the global Prometheus registerer. Metrics that are already
// registered are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slotplan_scenario_runs_total",
			Help: "Number of scheduled scenarios",
		}, []string{"project", "scenario", "ok"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "slotplan_scenario_duration_seconds",
			Help:    "Wall time spent scheduling a scenario",
			Buckets: prometheus.DefBuckets,
		}, []string{"project", "scenario"}),
		tasks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "slotplan_scenario_tasks",
			Help: "Tasks of the last run by state",
		}, []string{"project", "scenario", "state"}),
		messages: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "slotplan_scenario_messages",
			Help: "Diagnostics of the last run by severity",
		}, []string{"project", "scenario", "severity"}),
		allocated: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "slotplan_resource_allocated_slots",
			Help: "Booked slots of a resource in the last run",
		}, []string{"scenario", "resource"}),
		free: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "slotplan_resource_free_slots",
			Help: "Bookable slots left for a resource in the last run",
		}, []string{"scenario", "resource"}),
		criticalness: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "slotplan_resource_criticalness",
			Help: "Requested effort relative to the free capacity of a resource",
		}, []string{"scenario", "resource"}),
		taskEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slotplan_task_events_total",
			Help: "Task progress events by kind",
		}, []string{"scenario", "kind"}),
	}
	var err error
	if s.runs, err = register(reg, s.runs); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, s.duration); err != nil {
		return nil, err
	}
	if s.tasks, err = register(reg, s.tasks); err != nil {
		return nil, err
	}
	if s.messages, err = register(reg, s.messages); err != nil {
		return nil, err
	}
	if s.allocated, err = register(reg, s.allocated); err != nil {
		return nil, err
	}
	if s.free, err = register(reg, s.free); err != nil {
		return nil, err
	}
	if s.criticalness, err = register(reg, s.criticalness); err != nil {
		return nil, err
	}
	if s.taskEvents, err = register(reg, s.taskEvents); err != nil {
		return nil, err
	}
	return s, nil
}

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

// RecordScenarioRun updates the run counters and the per state gauges.
func (s *PromSink) RecordScenarioRun(run coremetrics.ScenarioRun) error {
	s.runs.WithLabelValues(run.Project, run.Scenario, strconv.FormatBool(run.OK)).Inc()
	s.duration.WithLabelValues(run.Project, run.Scenario).Observe(run.Duration.Seconds())
	s.tasks.WithLabelValues(run.Project, run.Scenario, "total").Set(float64(run.Tasks))
	s.tasks.WithLabelValues(run.Project, run.Scenario, "scheduled").Set(float64(run.Scheduled))
	s.tasks.WithLabelValues(run.Project, run.Scenario, "runaway").Set(float64(run.Runaway))
	s.tasks.WithLabelValues(run.Project, run.Scenario, "unscheduled").Set(float64(run.Unscheduled))
	s.messages.WithLabelValues(run.Project, run.Scenario, "error").Set(float64(run.Errors))
	s.messages.WithLabelValues(run.Project, run.Scenario, "warning").Set(float64(run.Warnings))
	return nil
}

// RecordResourceLoad sets the resource gauges.
func (s *PromSink) RecordResourceLoad(loads []coremetrics.ResourceLoad) error {
	for _, l := range loads {
		s.allocated.WithLabelValues(l.Scenario, l.Resource).Set(l.Allocated)
		s.free.WithLabelValues(l.Scenario, l.Resource).Set(l.Free)
		s.criticalness.WithLabelValues(l.Scenario, l.Resource).Set(l.Criticalness)
	}
	return nil
}

// RecordTaskEvent counts task progress events.
func (s *PromSink) RecordTaskEvent(ev coremetrics.TaskEvent) error {
	s.taskEvents.WithLabelValues(ev.Scenario, ev.Kind).Inc()
	return nil
}
