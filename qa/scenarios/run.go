package scenarios

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/slotplan/core/message"
	"github.com/kilianp07/slotplan/core/scheduler"
	"github.com/kilianp07/slotplan/infra/metrics"
	"github.com/kilianp07/slotplan/internal/eventbus"
	"github.com/kilianp07/slotplan/pkg/projectfile"
)

// RunCase schedules the project of c and checks every expectation.
func RunCase(t *testing.T, c *Case) {
	t.Helper()
	p, err := projectfile.Build(&c.Project, c.Name+".yaml")
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	bus := eventbus.New[scheduler.Event](1024)
	done := metrics.StartEventCollector(context.Background(), bus, sink)
	var diags message.Collector

	res, err := scheduler.New(p,
		scheduler.WithSink(&diags),
		scheduler.WithRecorder(sink),
		scheduler.WithEventBus(bus),
	).Schedule(context.Background())
	bus.Close()
	<-done
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, "slotplan_scenario_runs_total")
	require.NoError(t, err)
	assert.Equal(t, len(res.Scenarios), count)

	for name, exp := range c.Expected {
		sr := res.Scenario(name)
		require.NotNil(t, sr, "scenario %s", name)
		assert.Equal(t, exp.OK, sr.OK, "scenario %s ok", name)
		assert.GreaterOrEqual(t, sr.Errors, exp.MinErrors, "scenario %s errors", name)
		if exp.Unscheduled != nil {
			assert.Equal(t, *exp.Unscheduled, sr.Unscheduled, "scenario %s unscheduled", name)
		}
		for key, te := range exp.Tasks {
			ts := sr.TaskByKey(key)
			require.NotNil(t, ts, "task %s", key)
			checkTime(t, name+"/"+key+" start", te.Start, ts.Start())
			checkTime(t, name+"/"+key+" end", te.End, ts.End())
		}
	}
	if t.Failed() {
		for _, m := range diags.Messages() {
			t.Log(m.String())
		}
	}
}

func checkTime(t *testing.T, what, want string, got time.Time) {
	t.Helper()
	if want == "" {
		return
	}
	w, err := time.Parse(time.RFC3339, want)
	require.NoError(t, err, what)
	assert.True(t, w.Equal(got), "%s: want %s, got %s", what, w.Format(time.RFC3339), got.Format(time.RFC3339))
}
