package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/slotplan/core/scheduler"
	"github.com/kilianp07/slotplan/internal/eventbus"
	"github.com/kilianp07/slotplan/pkg/export"
)

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "config.yaml", `scheduler:
  max_detailed_warnings: 3
  scenarios: [plan]
logging:
  level: DEBUG
  format: json
metrics:
  listen: ":9102"
  sinks:
    - type: "nop"
    - type: "influx"
      conf:
        url: "http://localhost:8086"
mqtt:
  enabled: true
  broker: "tcp://localhost:1883"
  client_id: "cli"
  username: "user"
  password: "pass"
  topic_prefix: "plans"
  qos: 1
  retain: true
store:
  enabled: true
  path: "/tmp/runs.db"
  keep: 5
output:
  format: CSV
  path: "plan.csv"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Scheduler.MaxDetailedWarnings)
	assert.Equal(t, []string{"plan"}, cfg.Scheduler.Scenarios)
	assert.Equal(t, eventbus.DefaultBuffer, cfg.Scheduler.EventBuffer)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Options().Format)
	assert.Equal(t, ":9102", cfg.Metrics.Listen)
	require.Len(t, cfg.Metrics.Sinks, 2)
	assert.Equal(t, "influx", cfg.Metrics.Sinks[1].Type)
	assert.Equal(t, "http://localhost:8086", cfg.Metrics.Sinks[1].Conf["url"])
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, "cli", cfg.MQTT.ClientID)
	assert.Equal(t, "plans", cfg.MQTT.TopicPrefix)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)
	assert.True(t, cfg.MQTT.Retain)
	assert.Equal(t, StoreConfig{Enabled: true, Path: "/tmp/runs.db", Keep: 5}, cfg.Store)
	assert.Equal(t, OutputConfig{Format: export.FormatCSV, Path: "plan.csv"}, cfg.Output)
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "config.json", `{"store": {"enabled": true}, "output": {"path": "out.json"}}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "slotplan.db", cfg.Store.Path)
	assert.Equal(t, export.FormatJSON, cfg.Output.Format)
	assert.Equal(t, "out.json", cfg.Output.Path)
}

func TestDefaults(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)
	assert.Equal(t, scheduler.DefaultMaxDetailedWarnings, cfg.Scheduler.MaxDetailedWarnings)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.MQTT.Enabled)
	assert.False(t, cfg.Store.Enabled)
	assert.Equal(t, export.FormatJSON, cfg.Output.Format)
	assert.Empty(t, cfg.Metrics.Sinks)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("K_MQTT__BROKER", "tcp://broker:1883")
	t.Setenv("K_MQTT__ENABLED", "true")
	t.Setenv("K_LOGGING__LEVEL", "warn")
	t.Setenv("K_STORE__KEEP", "7")
	path := writeFile(t, "config.yaml", "mqtt:\n  broker: tcp://file:1883\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 7, cfg.Store.Keep)
}

func TestLoadErrors(t *testing.T) {
	tests := map[string]struct {
		name string
		data string
	}{
		"unsupported format":  {"config.toml", ""},
		"mqtt without broker": {"config.yaml", "mqtt: {enabled: true}"},
		"bad qos":             {"config.yaml", "mqtt: {qos: 3}"},
		"bad level":           {"config.yaml", "logging: {level: loud}"},
		"bad log format":      {"config.yaml", "logging: {format: xml}"},
		"bad output":          {"config.yaml", "output: {format: pdf}"},
		"negative keep":       {"config.yaml", "store: {keep: -1}"},
		"negative warnings":   {"config.yaml", "scheduler: {max_detailed_warnings: -2}"},
		"untyped sink":        {"config.yaml", "metrics: {sinks: [{conf: {}}]}"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.name, tt.data))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestOutputFormatError(t *testing.T) {
	_, err := Load(writeFile(t, "config.yaml", "output: {format: pdf}"))
	assert.ErrorIs(t, err, export.ErrUnknownFormat)
}
