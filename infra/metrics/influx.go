package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/slotplan/core/metrics"
	"github.com/kilianp07/slotplan/infra/logger"
)

// InfluxSink writes scheduling runs to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

// RecordScenarioRun writes a scenario_run point.
func (s *InfluxSink) RecordScenarioRun(run coremetrics.ScenarioRun) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("scenario_run").
		AddTag("project", run.Project).
		AddTag("scenario", run.Scenario).
		AddTag("run_id", run.RunID).
		AddTag("ok", strconv.FormatBool(run.OK)).
		AddField("tasks", run.Tasks).
		AddField("scheduled", run.Scheduled).
		AddField("runaway", run.Runaway).
		AddField("unscheduled", run.Unscheduled).
		AddField("errors", run.Errors).
		AddField("warnings", run.Warnings).
		AddField("duration_ms", round3(run.Duration.Seconds()*1000))
	if !run.Start.IsZero() && !run.End.IsZero() {
		p = p.AddField("span_h", round3(run.End.Sub(run.Start).Hours()))
	}
	p = p.SetTime(run.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordResourceLoad writes one resource_load point per resource.
func (s *InfluxSink) RecordResourceLoad(loads []coremetrics.ResourceLoad) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, l := range loads {
		p := write.NewPointWithMeasurement("resource_load").
			AddTag("resource", l.Resource).
			AddTag("scenario", l.Scenario).
			AddTag("run_id", l.RunID).
			AddField("allocated", round3(l.Allocated)).
			AddField("free", round3(l.Free)).
			AddField("vacation", round3(l.Vacation)).
			AddField("cost", round3(l.Cost)).
			AddField("criticalness", round3(l.Criticalness)).
			SetTime(l.Time)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordTaskEvent writes a task_event point.
func (s *InfluxSink) RecordTaskEvent(ev coremetrics.TaskEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("task_event").
		AddTag("task", ev.Task).
		AddTag("scenario", ev.Scenario).
		AddTag("kind", ev.Kind).
		AddTag("run_id", ev.RunID)
	if !ev.Start.IsZero() {
		p = p.AddField("start", ev.Start.Unix())
	}
	if !ev.End.IsZero() {
		p = p.AddField("end", ev.End.Unix())
	}
	if ev.Start.IsZero() && ev.End.IsZero() {
		p = p.AddField("count", 1)
	}
	p = p.SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
