package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/slotplan/config"
	"github.com/kilianp07/slotplan/core/factory"
	"github.com/kilianp07/slotplan/core/model"
	"github.com/kilianp07/slotplan/infra/mqtt"
	"github.com/kilianp07/slotplan/pkg/export"
	"github.com/kilianp07/slotplan/pkg/projectfile"
)

const project = `project: {name: demo, start: 2025-03-03, end: 2025-03-14}
scenarios: [{name: plan}, {name: late}]
resources: [{id: dev}]
tasks:
  - {id: a, effort: 2h, allocate: [dev]}
  - id: b
    effort: 1h
    allocate: [dev]
    depends: [a]
    scenarios:
      late: {start: "2025-03-05"}
`

func newProject(t *testing.T) *model.Project {
	t.Helper()
	p, err := projectfile.Parse([]byte(project), "demo.yaml")
	require.NoError(t, err)
	return p
}

func newConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	return cfg
}

func TestRunWritesReport(t *testing.T) {
	cfg := newConfig(t)
	svc, err := New(cfg)
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()
	var out bytes.Buffer
	svc.Out = &out

	res, err := svc.Run(context.Background(), newProject(t))
	require.NoError(t, err)
	assert.True(t, res.OK())

	var schedules []export.Schedule
	require.NoError(t, json.Unmarshal(out.Bytes(), &schedules))
	require.Len(t, schedules, 2)
	assert.Equal(t, "plan", schedules[0].Scenario)
	assert.Equal(t, "late", schedules[1].Scenario)
	require.Len(t, schedules[1].Tasks, 2)
	assert.Equal(t, 5, schedules[1].Tasks[1].Start.Day())
}

func TestRunScenarioFilter(t *testing.T) {
	cfg := newConfig(t)
	cfg.Scheduler.Scenarios = []string{"late"}
	svc, err := New(cfg)
	require.NoError(t, err)
	var out bytes.Buffer
	svc.Out = &out

	res, err := svc.Run(context.Background(), newProject(t))
	require.NoError(t, err)
	require.Len(t, res.Scenarios, 1)
	assert.Equal(t, "late", res.Scenarios[0].Name)
}

func TestRunDeliversEverywhere(t *testing.T) {
	dir := t.TempDir()
	cfg := newConfig(t)
	cfg.Store = config.StoreConfig{Enabled: true, Path: filepath.Join(dir, "runs.db"), Keep: 1}
	cfg.Output = config.OutputConfig{
		Format:   export.FormatCSV,
		Path:     filepath.Join(dir, "plan.csv"),
		Bookings: filepath.Join(dir, "bookings.csv"),
	}
	svc, err := New(cfg)
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()
	pub := mqtt.NewMockPublisher()
	svc.Publisher = pub

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err = svc.Run(ctx, newProject(t))
		require.NoError(t, err)
	}

	report, err := os.ReadFile(cfg.Output.Path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(report), "scenario,task_id,"))
	bookings, err := os.ReadFile(cfg.Output.Bookings)
	require.NoError(t, err)
	assert.Contains(t, string(bookings), "plan,dev,a,")

	published := pub.Published()
	require.Len(t, published, 4)
	assert.Equal(t, "demo", published[0].Project)

	runs, err := svc.Store.Runs(ctx, "demo", "", 0)
	require.NoError(t, err)
	assert.Len(t, runs, 2, "one run per scenario is kept")
	latest, err := svc.Store.Latest(ctx, "demo", "plan")
	require.NoError(t, err)
	assert.Equal(t, published[2].RunID, latest.RunID)
}

func TestRunJoinsDeliveryErrors(t *testing.T) {
	cfg := newConfig(t)
	svc, err := New(cfg)
	require.NoError(t, err)
	svc.Out = &bytes.Buffer{}
	pub := mqtt.NewMockPublisher()
	pub.Err = errors.New("broker down")
	svc.Publisher = pub

	res, err := svc.Run(context.Background(), newProject(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish plan: broker down")
	assert.Contains(t, err.Error(), "publish late: broker down")
	require.NotNil(t, res)
	assert.True(t, res.OK())
}

func TestNewRejectsUnknownSink(t *testing.T) {
	cfg := newConfig(t)
	cfg.Metrics.Sinks = []factory.ModuleConfig{{Type: "carrier-pigeon"}}
	_, err := New(cfg)
	assert.Error(t, err)
}
