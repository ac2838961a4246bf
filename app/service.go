package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kilianp07/slotplan/config"
	"github.com/kilianp07/slotplan/core/message"
	coremetrics "github.com/kilianp07/slotplan/core/metrics"
	"github.com/kilianp07/slotplan/core/model"
	"github.com/kilianp07/slotplan/core/scheduler"
	"github.com/kilianp07/slotplan/infra/logger"
	"github.com/kilianp07/slotplan/infra/metrics"
	"github.com/kilianp07/slotplan/infra/mqtt"
	"github.com/kilianp07/slotplan/infra/store"
	"github.com/kilianp07/slotplan/internal/eventbus"
	"github.com/kilianp07/slotplan/pkg/export"
)

type eventForwarder interface {
	ForwardEvents(ctx context.Context, bus *eventbus.Bus[scheduler.Event]) <-chan struct{}
}

// Service schedules projects and delivers the results to the configured
// report, metrics sinks, broker and run history.
type Service struct {
	Sink      coremetrics.MetricsSink
	Publisher mqtt.Publisher
	Store     *store.SQLiteStore
	// Out receives the report when no output path is configured.
	Out io.Writer

	cfg *config.Config
	log logger.Logger
}

// New creates a Service from the configuration. The MQTT connection and the
// store are opened here.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sinks: %w", err)
	}
	svc := &Service{Sink: sink, Out: os.Stdout, cfg: cfg, log: logg}

	if cfg.MQTT.Enabled {
		pub, err := mqtt.NewPahoPublisher(cfg.MQTT.Config)
		if err != nil {
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		svc.Publisher = pub
	}
	if cfg.Store.Enabled {
		st, err := store.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			_ = svc.Close()
			return nil, fmt.Errorf("store: %w", err)
		}
		svc.Store = st
	}
	return svc, nil
}

// Run schedules p and delivers the result. Delivery failures are joined
// into the returned error; the scheduling result is returned whenever the
// scheduler produced one.
func (s *Service) Run(ctx context.Context, p *model.Project) (*scheduler.Result, error) {
	bus := eventbus.New[scheduler.Event](s.cfg.Scheduler.EventBuffer)
	waits := []<-chan struct{}{metrics.StartEventCollector(ctx, bus, s.Sink)}
	if fw, ok := s.Publisher.(eventForwarder); ok {
		waits = append(waits, fw.ForwardEvents(ctx, bus))
	}

	opts := []scheduler.Option{
		scheduler.WithSink(message.LogSink{Log: logger.New("diagnostics")}),
		scheduler.WithLogger(logger.New("scheduler")),
		scheduler.WithRecorder(s.Sink),
		scheduler.WithEventBus(bus),
		scheduler.WithMaxDetailedWarnings(s.cfg.Scheduler.MaxDetailedWarnings),
	}
	if len(s.cfg.Scheduler.Scenarios) > 0 {
		opts = append(opts, scheduler.WithScenarios(s.cfg.Scheduler.Scenarios...))
	}
	res, err := scheduler.New(p, opts...).Schedule(ctx)
	bus.Close()
	for _, w := range waits {
		<-w
	}
	if err != nil {
		return res, err
	}
	if dropped := bus.Dropped(); dropped > 0 {
		s.log.Warnf("%d progress events dropped", dropped)
	}
	return res, s.deliver(ctx, export.FromResults(res))
}

func (s *Service) deliver(ctx context.Context, schedules []export.Schedule) error {
	var errs []error
	if err := s.writeReport(s.cfg.Output.Path, func(w io.Writer) error {
		return export.Write(w, s.cfg.Output.Format, schedules)
	}); err != nil {
		errs = append(errs, fmt.Errorf("report: %w", err))
	}
	if s.cfg.Output.Bookings != "" {
		if err := s.writeReport(s.cfg.Output.Bookings, func(w io.Writer) error {
			return export.WriteBookingsCSV(w, schedules)
		}); err != nil {
			errs = append(errs, fmt.Errorf("bookings: %w", err))
		}
	}
	for _, sch := range schedules {
		if s.Publisher != nil {
			if err := s.Publisher.PublishSchedule(ctx, sch); err != nil {
				errs = append(errs, fmt.Errorf("publish %s: %w", sch.Scenario, err))
			}
		}
		if s.Store != nil {
			if err := s.Store.Save(ctx, sch); err != nil {
				errs = append(errs, fmt.Errorf("store %s: %w", sch.Scenario, err))
			}
		}
	}
	if s.Store != nil && s.cfg.Store.Keep > 0 {
		n, err := s.Store.Prune(ctx, s.cfg.Store.Keep)
		if err != nil {
			errs = append(errs, fmt.Errorf("prune: %w", err))
		} else if n > 0 {
			s.log.Debugf("pruned %d runs", n)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) writeReport(path string, write func(io.Writer) error) error {
	if path == "" {
		return write(s.Out)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	var errs []error
	if p, ok := s.Publisher.(*mqtt.PahoPublisher); ok {
		p.Disconnect()
	}
	if s.Store != nil {
		errs = append(errs, s.Store.Close())
	}
	if c, ok := s.Sink.(interface{ Close() }); ok {
		c.Close()
	}
	return errors.Join(errs...)
}
