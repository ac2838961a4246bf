package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/slotplan/core/metrics"
	"github.com/kilianp07/slotplan/core/scheduler"
	"github.com/kilianp07/slotplan/infra/mqtt"
	"github.com/kilianp07/slotplan/internal/eventbus"
	"github.com/kilianp07/slotplan/pkg/export"
)

// EnvPrefix marks environment variables that override file settings.
// K_MQTT__BROKER sets mqtt.broker.
const EnvPrefix = "K_"

type Config struct {
	Scheduler SchedulerConfig `json:"scheduler"`
	Logging   LoggingConfig   `json:"logging"`
	Metrics   metrics.Config  `json:"metrics"`
	MQTT      MQTTConfig      `json:"mqtt"`
	Store     StoreConfig     `json:"store"`
	Output    OutputConfig    `json:"output"`
}

// SchedulerConfig tunes a scheduling run.
type SchedulerConfig struct {
	// MaxDetailedWarnings caps the per task warnings about unscheduled tasks.
	MaxDetailedWarnings int `json:"max_detailed_warnings"`
	// Scenarios restricts the run to the named scenarios. Empty runs all
	// enabled scenarios.
	Scenarios []string `json:"scenarios"`
	// EventBuffer is the per subscriber capacity of the progress event bus.
	EventBuffer int `json:"event_buffer"`
}

func (c *SchedulerConfig) SetDefaults() {
	if c.MaxDetailedWarnings == 0 {
		c.MaxDetailedWarnings = scheduler.DefaultMaxDetailedWarnings
	}
	if c.EventBuffer == 0 {
		c.EventBuffer = eventbus.DefaultBuffer
	}
}

func (c SchedulerConfig) Validate() error {
	if c.MaxDetailedWarnings < 0 {
		return fmt.Errorf("max_detailed_warnings must not be negative")
	}
	if c.EventBuffer < 0 {
		return fmt.Errorf("event_buffer must not be negative")
	}
	return nil
}

// MQTTConfig enables publication of schedules and progress events.
type MQTTConfig struct {
	Enabled bool `json:"enabled"`

	mqtt.Config `json:",squash"`
}

func (c MQTTConfig) Validate() error {
	if c.Enabled && c.Broker == "" {
		return errors.New("broker is required when mqtt is enabled")
	}
	if c.QoS > 2 || c.LWTQoS > 2 {
		return fmt.Errorf("qos must be 0, 1 or 2")
	}
	return nil
}

// StoreConfig controls the SQLite run history.
type StoreConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
	// Keep is the number of runs kept per project and scenario. Zero keeps
	// everything.
	Keep int `json:"keep"`
	// APIToken protects the run history endpoint served next to the metrics.
	APIToken string `json:"api_token"`
}

func (c *StoreConfig) SetDefaults() {
	if c.Path == "" {
		c.Path = "slotplan.db"
	}
}

func (c StoreConfig) Validate() error {
	if c.Keep < 0 {
		return fmt.Errorf("keep must not be negative")
	}
	return nil
}

// OutputConfig selects where the schedule report is written.
type OutputConfig struct {
	// Format is json or csv.
	Format string `json:"format"`
	// Path of the report, empty for stdout.
	Path string `json:"path"`
	// Bookings optionally receives the resource bookings as CSV.
	Bookings string `json:"bookings"`
}

func (c *OutputConfig) SetDefaults() {
	c.Format = strings.ToLower(c.Format)
	if c.Format == "" {
		c.Format = export.FormatJSON
	}
}

func (c OutputConfig) Validate() error {
	switch c.Format {
	case export.FormatJSON, export.FormatCSV:
		return nil
	}
	return fmt.Errorf("%w: %s", export.ErrUnknownFormat, c.Format)
}

// SetDefaults fills unset values of every section.
func (c *Config) SetDefaults() {
	c.Scheduler.SetDefaults()
	c.Logging.SetDefaults()
	c.Store.SetDefaults()
	c.Output.SetDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	var errs []error
	add := func(section string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", section, err))
		}
	}
	add("scheduler", c.Scheduler.Validate())
	add("logging", c.Logging.Validate())
	add("mqtt", c.MQTT.Validate())
	add("store", c.Store.Validate())
	add("output", c.Output.Validate())
	for i, s := range c.Metrics.Sinks {
		if s.Type == "" {
			add("metrics", fmt.Errorf("sink %d has no type", i))
		}
	}
	return errors.Join(errs...)
}

// Default returns a configuration with only defaults and environment
// overrides applied.
func Default() (*Config, error) {
	return Load("")
}

// Load reads the file at path, applies K_ environment overrides and
// defaults, and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	// Optional environment overrides
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
