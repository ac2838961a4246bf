package metrics

import "github.com/kilianp07/slotplan/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks" yaml:"sinks"`
	// Listen is the address of the Prometheus endpoint, empty to disable.
	Listen string `json:"listen" yaml:"listen"`
}
