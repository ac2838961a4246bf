// Package projectfile reads YAML or JSON project descriptions and turns them
// into a model.Project ready to be scheduled.
package projectfile

import "gopkg.in/yaml.v3"

// File is the top-level document.
type File struct {
	Project   ProjectDecl    `yaml:"project" json:"project"`
	Scenarios []ScenarioDecl `yaml:"scenarios" json:"scenarios"`
	Shifts    []ShiftDecl    `yaml:"shifts" json:"shifts"`
	Resources []ResourceDecl `yaml:"resources" json:"resources"`
	Tasks     []TaskDecl     `yaml:"tasks" json:"tasks"`
}

// ProjectDecl holds the project wide settings. Start and end are required.
type ProjectDecl struct {
	Name              string              `yaml:"name" json:"name"`
	Start             string              `yaml:"start" json:"start"`
	End               string              `yaml:"end" json:"end"`
	Granularity       string              `yaml:"granularity" json:"granularity"`
	Timezone          string              `yaml:"timezone" json:"timezone"`
	DailyWorkingHours float64             `yaml:"daily_working_hours" json:"daily_working_hours"`
	YearlyWorkingDays float64             `yaml:"yearly_working_days" json:"yearly_working_days"`
	WorkingHours      map[string][]string `yaml:"working_hours" json:"working_hours"`
	Vacations         []IntervalDecl      `yaml:"vacations" json:"vacations"`
}

// ScenarioDecl declares an additional scenario. The first entry renames the
// default "plan" scenario.
type ScenarioDecl struct {
	Name     string `yaml:"name" json:"name"`
	Disabled bool   `yaml:"disabled" json:"disabled"`
}

// IntervalDecl is a [start, end) date range.
type IntervalDecl struct {
	Start string `yaml:"start" json:"start"`
	End   string `yaml:"end" json:"end"`
}

// ShiftDecl declares a named alternative calendar.
type ShiftDecl struct {
	ID           string              `yaml:"id" json:"id"`
	Name         string              `yaml:"name" json:"name"`
	Replace      bool                `yaml:"replace" json:"replace"`
	WorkingHours map[string][]string `yaml:"working_hours" json:"working_hours"`
	Vacations    []IntervalDecl      `yaml:"vacations" json:"vacations"`
}

// ShiftAssignmentDecl applies a shift during an interval.
type ShiftAssignmentDecl struct {
	Shift string `yaml:"shift" json:"shift"`
	Start string `yaml:"start" json:"start"`
	End   string `yaml:"end" json:"end"`
}

// LimitDecl declares a named period limit such as dailymax.
type LimitDecl struct {
	Name     string `yaml:"name" json:"name"`
	Value    string `yaml:"value" json:"value"`
	Start    string `yaml:"start" json:"start"`
	End      string `yaml:"end" json:"end"`
	Resource string `yaml:"resource" json:"resource"`
}

// ResourceDecl declares a resource and, through Members, a group.
type ResourceDecl struct {
	ResourceAttrs `yaml:",inline"`

	ID           string                   `yaml:"id" json:"id"`
	Name         string                   `yaml:"name" json:"name"`
	WorkingHours map[string][]string      `yaml:"working_hours" json:"working_hours"`
	Shifts       []ShiftAssignmentDecl    `yaml:"shifts" json:"shifts"`
	Limits       []LimitDecl              `yaml:"limits" json:"limits"`
	Members      []ResourceDecl           `yaml:"members" json:"members"`
	Scenarios    map[string]ResourceAttrs `yaml:"scenarios" json:"scenarios"`

	line int
}

// ResourceAttrs are the resource attributes that may differ per scenario.
type ResourceAttrs struct {
	Efficiency *float64       `yaml:"efficiency" json:"efficiency"`
	Rate       *float64       `yaml:"rate" json:"rate"`
	Vacations  []IntervalDecl `yaml:"vacations" json:"vacations"`
}

// UnmarshalYAML records the declaration line.
func (r *ResourceDecl) UnmarshalYAML(n *yaml.Node) error {
	type plain ResourceDecl
	if err := n.Decode((*plain)(r)); err != nil {
		return err
	}
	r.line = n.Line
	return nil
}

// AllocationDecl requests one of Resources for every booked slot. A plain
// string is shorthand for a single candidate.
type AllocationDecl struct {
	Resources  []string `yaml:"resources" json:"resources"`
	Mandatory  bool     `yaml:"mandatory" json:"mandatory"`
	Persistent bool     `yaml:"persistent" json:"persistent"`
	Select     string   `yaml:"select" json:"select"`
}

// UnmarshalYAML accepts a scalar resource id or a mapping.
func (a *AllocationDecl) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		a.Resources = []string{n.Value}
		return nil
	}
	type plain AllocationDecl
	return n.Decode((*plain)(a))
}

// DependencyDecl references another task. On is "start" or "end"; it
// defaults to end for depends and start for precedes. A plain string is
// shorthand for the task reference.
type DependencyDecl struct {
	Task        string `yaml:"task" json:"task"`
	On          string `yaml:"on" json:"on"`
	GapDuration string `yaml:"gap_duration" json:"gap_duration"`
	GapLength   string `yaml:"gap_length" json:"gap_length"`

	line int
}

// UnmarshalYAML accepts a scalar task reference or a mapping.
func (d *DependencyDecl) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		d.Task, d.line = n.Value, n.Line
		return nil
	}
	type plain DependencyDecl
	if err := n.Decode((*plain)(d)); err != nil {
		return err
	}
	d.line = n.Line
	return nil
}

// BookingDecl is completed work of a resource on the declaring task.
type BookingDecl struct {
	Resource  string         `yaml:"resource" json:"resource"`
	Intervals []IntervalDecl `yaml:"intervals" json:"intervals"`
	Overtime  int            `yaml:"overtime" json:"overtime"`
	Sloppy    int            `yaml:"sloppy" json:"sloppy"`
}

// AlertDecl is a check on the scheduled task, e.g. attr end, op <=, value
// 2025-04-01.
type AlertDecl struct {
	Message string `yaml:"message" json:"message"`
	Fail    bool   `yaml:"fail" json:"fail"`
	Attr    string `yaml:"attr" json:"attr"`
	Op      string `yaml:"op" json:"op"`
	Value   string `yaml:"value" json:"value"`
}

// TaskAttrs are the task attributes that may differ per scenario.
type TaskAttrs struct {
	Start      string           `yaml:"start" json:"start"`
	End        string           `yaml:"end" json:"end"`
	Effort     string           `yaml:"effort" json:"effort"`
	Length     string           `yaml:"length" json:"length"`
	Duration   string           `yaml:"duration" json:"duration"`
	Milestone  *bool            `yaml:"milestone" json:"milestone"`
	Scheduled  *bool            `yaml:"scheduled" json:"scheduled"`
	Scheduling string           `yaml:"scheduling" json:"scheduling"`
	Priority   *int             `yaml:"priority" json:"priority"`
	Allocate   []AllocationDecl `yaml:"allocate" json:"allocate"`
	Bookings   []BookingDecl    `yaml:"bookings" json:"bookings"`
	MinStart   string           `yaml:"min_start" json:"min_start"`
	MaxStart   string           `yaml:"max_start" json:"max_start"`
	MinEnd     string           `yaml:"min_end" json:"min_end"`
	MaxEnd     string           `yaml:"max_end" json:"max_end"`
	ChargeRate *float64         `yaml:"charge_rate" json:"charge_rate"`
}

// TaskDecl declares a task and its children.
type TaskDecl struct {
	TaskAttrs `yaml:",inline"`

	ID        string                `yaml:"id" json:"id"`
	Name      string                `yaml:"name" json:"name"`
	Depends   []DependencyDecl      `yaml:"depends" json:"depends"`
	Precedes  []DependencyDecl      `yaml:"precedes" json:"precedes"`
	Limits    []LimitDecl           `yaml:"limits" json:"limits"`
	Shifts    []ShiftAssignmentDecl `yaml:"shifts" json:"shifts"`
	Alerts    []AlertDecl           `yaml:"alerts" json:"alerts"`
	Children  []TaskDecl            `yaml:"children" json:"children"`
	Scenarios map[string]TaskAttrs  `yaml:"scenarios" json:"scenarios"`

	line int
}

// UnmarshalYAML records the declaration line.
func (t *TaskDecl) UnmarshalYAML(n *yaml.Node) error {
	type plain TaskDecl
	if err := n.Decode((*plain)(t)); err != nil {
		return err
	}
	t.line = n.Line
	return nil
}
