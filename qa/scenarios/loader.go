// Package scenarios runs golden scheduling cases described in YAML: an
// inline project file and the expected outcome of each of its scenarios.
package scenarios

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/slotplan/pkg/projectfile"
)

// TaskExpect pins the dates of a task. Empty fields are not checked.
type TaskExpect struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// Expected is the outcome of one project scenario.
type Expected struct {
	OK bool `yaml:"ok"`
	// MinErrors is the least number of error diagnostics.
	MinErrors   int                   `yaml:"min_errors"`
	Unscheduled *int                  `yaml:"unscheduled"`
	Tasks       map[string]TaskExpect `yaml:"tasks"`
}

type Case struct {
	Name        string              `yaml:"name"`
	Description string              `yaml:"description,omitempty"`
	Project     projectfile.File    `yaml:"project"`
	Expected    map[string]Expected `yaml:"expected"`
}

func Load(path string) (*Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Case
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
