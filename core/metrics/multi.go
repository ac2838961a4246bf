package metrics

import "errors"

// MultiSink fans records out to several sinks and joins their errors.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink combines sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordScenarioRun forwards run to every sink.
func (m *MultiSink) RecordScenarioRun(run ScenarioRun) error {
	var errs []error
	for _, s := range m.Sinks {
		if err := s.RecordScenarioRun(run); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordResourceLoad forwards loads to every sink that records them.
func (m *MultiSink) RecordResourceLoad(loads []ResourceLoad) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(ResourceLoadRecorder); ok {
			if err := r.RecordResourceLoad(loads); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// RecordTaskEvent forwards ev to every sink that records task events.
func (m *MultiSink) RecordTaskEvent(ev TaskEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(TaskEventRecorder); ok {
			if err := r.RecordTaskEvent(ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink holding a connection.
func (m *MultiSink) Close() { closeSinks(m.Sinks) }
