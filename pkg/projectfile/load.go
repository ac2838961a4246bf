package projectfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/slotplan/core/message"
	"github.com/kilianp07/slotplan/core/model"
)

// Load reads a project file. JSON documents are read by the YAML decoder as
// well, so any extension is accepted.
func Load(path string) (*model.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, path)
}

// Parse decodes data; name is used in error positions and as default
// project name.
func Parse(data []byte, name string) (*model.Project, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return Build(&f, name)
}

// Build turns a decoded File into a project. All declaration errors are
// returned together.
func Build(f *File, name string) (*model.Project, error) {
	b := &builder{file: name}
	if err := b.project(f); err != nil {
		return nil, err
	}
	b.scenarios(f.Scenarios)
	for _, s := range f.Shifts {
		b.shift(s)
	}
	for _, r := range f.Resources {
		b.resource(r, model.NoResource)
	}
	for _, t := range f.Tasks {
		b.task(t, model.NoTask)
	}
	if err := b.p.Validate(); err != nil {
		b.errs = append(b.errs, fmt.Errorf("%s: %w", name, err))
	}
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	return b.p, nil
}

type builder struct {
	file string
	p    *model.Project
	loc  *time.Location
	errs []error
}

func (b *builder) errorf(line int, format string, args ...any) {
	pos := b.file
	if line > 0 {
		pos = fmt.Sprintf("%s:%d", b.file, line)
	}
	b.errs = append(b.errs, fmt.Errorf("%s: %s", pos, fmt.Sprintf(format, args...)))
}

func (b *builder) source(line int) *message.SourceLocation {
	return &message.SourceLocation{File: b.file, Line: line}
}

func (b *builder) project(f *File) error {
	d := f.Project
	b.loc = time.UTC
	if d.Timezone != "" {
		loc, err := time.LoadLocation(d.Timezone)
		if err != nil {
			return fmt.Errorf("%s: timezone: %w", b.file, err)
		}
		b.loc = loc
	}
	start, err := parseDate(d.Start, b.loc)
	if err != nil {
		return fmt.Errorf("%s: project start: %w", b.file, err)
	}
	end, err := parseDate(d.End, b.loc)
	if err != nil {
		return fmt.Errorf("%s: project end: %w", b.file, err)
	}
	gran := time.Hour
	if d.Granularity != "" {
		if gran, err = time.ParseDuration(d.Granularity); err != nil {
			return fmt.Errorf("%s: granularity: %w", b.file, err)
		}
	}
	name := d.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(b.file), filepath.Ext(b.file))
	}
	p, err := model.NewProject(name, start, end, gran)
	if err != nil {
		return fmt.Errorf("%s: %w", b.file, err)
	}
	if d.DailyWorkingHours > 0 {
		p.DailyWorkingHours = d.DailyWorkingHours
	}
	if d.YearlyWorkingDays > 0 {
		p.YearlyWorkingDays = d.YearlyWorkingDays
	}
	p.WorkingHours.SetTimezone(b.loc)
	if err := applyWorkingHours(p.WorkingHours, d.WorkingHours); err != nil {
		return fmt.Errorf("%s: working hours: %w", b.file, err)
	}
	if p.Vacations, err = parseIntervals(d.Vacations, b.loc); err != nil {
		return fmt.Errorf("%s: vacations: %w", b.file, err)
	}
	b.p = p
	return nil
}

func (b *builder) scenarios(decls []ScenarioDecl) {
	for i, d := range decls {
		if d.Name == "" {
			b.errorf(0, "scenario %d has no name", i+1)
			continue
		}
		if i == 0 {
			b.p.Scenarios[0] = model.Scenario{Name: d.Name, Enabled: !d.Disabled}
			continue
		}
		if _, err := b.p.AddScenario(d.Name, !d.Disabled); err != nil {
			b.errorf(0, "%v", err)
		}
	}
}

func (b *builder) shift(d ShiftDecl) {
	name := d.Name
	if name == "" {
		name = d.ID
	}
	s, err := b.p.AddShift(d.ID, name)
	if err != nil {
		b.errorf(0, "%v", err)
		return
	}
	s.Replace = d.Replace
	s.WorkingHours.SetTimezone(b.loc)
	if err := applyWorkingHours(s.WorkingHours, d.WorkingHours); err != nil {
		b.errorf(0, "shift %s: %v", d.ID, err)
	}
	if s.Vacations, err = parseIntervals(d.Vacations, b.loc); err != nil {
		b.errorf(0, "shift %s: %v", d.ID, err)
	}
}

// scenarioIndex resolves the name of a per scenario override.
func (b *builder) scenarioIndex(line int, owner, name string) (int, bool) {
	idx, ok := b.p.ScenarioIndex(name)
	if !ok {
		b.errorf(line, "%s: unknown scenario %s", owner, name)
	}
	return idx, ok
}

func (b *builder) resource(d ResourceDecl, parent model.ResourceID) {
	name := d.Name
	if name == "" {
		name = d.ID
	}
	r, err := b.p.AddResource(d.ID, name, parent)
	if err != nil {
		b.errorf(d.line, "%v", err)
		return
	}
	r.Source = b.source(d.line)

	spec := r.Spec(0)
	if len(d.WorkingHours) > 0 {
		wh := b.p.NewWorkingHours()
		wh.SetTimezone(b.loc)
		if err := applyWorkingHours(wh, d.WorkingHours); err != nil {
			b.errorf(d.line, "resource %s: %v", d.ID, err)
		} else {
			spec.WorkingHours = wh
		}
	}
	spec.Shifts = b.shiftAssignments(d.line, d.ID, d.Shifts)
	spec.Limits = b.limits(d.line, d.ID, d.Limits, false)
	b.resourceAttrs(d.line, d.ID, spec, d.ResourceAttrs)
	for i := 1; i < len(r.Specs); i++ {
		r.Specs[i] = spec.Clone()
	}
	for sc, attrs := range d.Scenarios {
		if idx, ok := b.scenarioIndex(d.line, d.ID, sc); ok {
			b.resourceAttrs(d.line, d.ID, r.Spec(idx), attrs)
		}
	}
	for _, m := range d.Members {
		b.resource(m, r.ID)
	}
}

func (b *builder) resourceAttrs(line int, id string, spec *model.ResourceSpec, a ResourceAttrs) {
	if a.Efficiency != nil {
		if *a.Efficiency < 0 {
			b.errorf(line, "resource %s: efficiency must not be negative", id)
		} else {
			spec.Efficiency = *a.Efficiency
		}
	}
	if a.Rate != nil {
		spec.Rate = *a.Rate
	}
	if len(a.Vacations) > 0 {
		vac, err := parseIntervals(a.Vacations, b.loc)
		if err != nil {
			b.errorf(line, "resource %s: %v", id, err)
			return
		}
		spec.Vacations = vac
	}
}

func (b *builder) shiftAssignments(line int, owner string, decls []ShiftAssignmentDecl) []model.ShiftAssignment {
	var out []model.ShiftAssignment
	for _, d := range decls {
		s, ok := b.p.Shift(d.Shift)
		if !ok {
			b.errorf(line, "%s: unknown shift %s", owner, d.Shift)
			continue
		}
		iv := b.p.Frame()
		if d.Start != "" || d.End != "" {
			var err error
			if iv, err = parseInterval(IntervalDecl{Start: d.Start, End: d.End}, b.loc); err != nil {
				b.errorf(line, "%s: shift %s: %v", owner, d.Shift, err)
				continue
			}
		}
		out = append(out, model.ShiftAssignment{Shift: s, Interval: iv})
	}
	return out
}

func (b *builder) limits(line int, owner string, decls []LimitDecl, task bool) []model.LimitSpec {
	var out []model.LimitSpec
	for _, d := range decls {
		v, err := parseDuration(d.Value, b.p, false)
		if err != nil {
			b.errorf(line, "%s: limit %s: %v", owner, d.Name, err)
			continue
		}
		ls := model.LimitSpec{Name: d.Name, Value: v, Resource: model.NoResource}
		if d.Start != "" || d.End != "" {
			iv, err := parseInterval(IntervalDecl{Start: d.Start, End: d.End}, b.loc)
			if err != nil {
				b.errorf(line, "%s: limit %s: %v", owner, d.Name, err)
				continue
			}
			ls.Interval = &iv
		}
		if d.Resource != "" {
			if !task {
				b.errorf(line, "%s: limit %s: resource restriction is only allowed on tasks", owner, d.Name)
				continue
			}
			r, ok := b.p.ResourceByKey(d.Resource)
			if !ok {
				b.errorf(line, "%s: limit %s: unknown resource %s", owner, d.Name, d.Resource)
				continue
			}
			ls.Resource = r.ID
		}
		out = append(out, ls)
	}
	return out
}

func (b *builder) task(d TaskDecl, parent model.TaskID) {
	name := d.Name
	if name == "" {
		name = d.ID
	}
	t, err := b.p.AddTask(d.ID, name, parent)
	if err != nil {
		b.errorf(d.line, "%v", err)
		return
	}
	t.Source = b.source(d.line)

	spec := t.Spec(0)
	spec.Depends = b.dependencies(d.Depends, true)
	spec.Precedes = b.dependencies(d.Precedes, false)
	spec.Limits = b.limits(d.line, t.Key, d.Limits, true)
	if shifts := b.shiftAssignments(d.line, t.Key, d.Shifts); len(shifts) > 0 {
		spec.Shifts = shifts
	}
	spec.Alerts = b.alerts(d.line, t.Key, d.Alerts)
	b.taskAttrs(d.line, t, spec, d.TaskAttrs)
	// Undeclared inheritable attributes keep the parent's per scenario value.
	for i := 1; i < len(t.Specs); i++ {
		inherited, c := t.Specs[i], spec.Clone()
		if _, ok := impliedForward(d.TaskAttrs, spec); !ok && d.Scheduling == "" {
			c.Forward = inherited.Forward
		}
		if d.Priority == nil {
			c.Priority = inherited.Priority
		}
		if d.ChargeRate == nil {
			c.ChargeRate = inherited.ChargeRate
		}
		if len(d.Shifts) == 0 {
			c.Shifts = inherited.Shifts
		}
		t.Specs[i] = c
	}
	for sc, attrs := range d.Scenarios {
		if idx, ok := b.scenarioIndex(d.line, t.Key, sc); ok {
			b.taskAttrs(d.line, t, t.Spec(idx), attrs)
		}
	}
	for _, c := range d.Children {
		b.task(c, t.ID)
	}
}

func (b *builder) taskAttrs(line int, t *model.Task, spec *model.TaskSpec, a TaskAttrs) {
	fail := func(attr string, err error) { b.errorf(line, "task %s: %s: %v", t.Key, attr, err) }
	date := func(attr, s string, dst *time.Time) {
		if s == "" {
			return
		}
		v, err := parseOptionalDate(s, b.loc)
		if err != nil {
			fail(attr, err)
			return
		}
		*dst = v
	}
	dur := func(attr, s string, calendarTime bool, dst *time.Duration) {
		if s == "" {
			return
		}
		v, err := parseDuration(s, b.p, calendarTime)
		if err != nil {
			fail(attr, err)
			return
		}
		*dst = v
	}
	date("start", a.Start, &spec.Start)
	date("end", a.End, &spec.End)
	date("min_start", a.MinStart, &spec.MinStart)
	date("max_start", a.MaxStart, &spec.MaxStart)
	date("min_end", a.MinEnd, &spec.MinEnd)
	date("max_end", a.MaxEnd, &spec.MaxEnd)
	if a.Effort != "" || a.Length != "" || a.Duration != "" {
		spec.Effort, spec.Length, spec.Duration = 0, 0, 0
	}
	dur("effort", a.Effort, false, &spec.Effort)
	dur("length", a.Length, false, &spec.Length)
	dur("duration", a.Duration, true, &spec.Duration)
	if a.Milestone != nil {
		spec.Milestone = *a.Milestone
	}
	if a.Scheduled != nil {
		spec.Scheduled = *a.Scheduled
	}
	switch strings.ToLower(a.Scheduling) {
	case "":
		if fwd, ok := impliedForward(a, spec); ok {
			spec.Forward = fwd
		}
	case "asap":
		spec.Forward = true
	case "alap":
		spec.Forward = false
	default:
		fail("scheduling", fmt.Errorf("want asap or alap, got %q", a.Scheduling))
	}
	if a.Priority != nil {
		if *a.Priority < 1 || *a.Priority > 1000 {
			fail("priority", fmt.Errorf("must be in [1, 1000], got %d", *a.Priority))
		} else {
			spec.Priority = *a.Priority
		}
	}
	if a.ChargeRate != nil {
		spec.ChargeRate = *a.ChargeRate
	}
	if len(a.Allocate) > 0 {
		spec.Allocations = b.allocations(line, t.Key, a.Allocate)
	}
	if len(a.Bookings) > 0 {
		spec.Bookings = b.bookings(line, t, a.Bookings)
	}
}

func (b *builder) allocations(line int, owner string, decls []AllocationDecl) []model.Allocation {
	var out []model.Allocation
	for _, d := range decls {
		mode, err := model.ParseSelectionMode(d.Select)
		if err != nil {
			b.errorf(line, "%s: %v", owner, err)
			continue
		}
		a := model.Allocation{Mandatory: d.Mandatory, Persistent: d.Persistent, Selection: mode}
		for _, key := range d.Resources {
			r, ok := b.p.ResourceByKey(key)
			if !ok {
				b.errorf(line, "%s: unknown resource %s", owner, key)
				continue
			}
			a.Candidates = append(a.Candidates, r.ID)
		}
		if len(a.Candidates) > 0 {
			out = append(out, a)
		}
	}
	return out
}

func (b *builder) bookings(line int, t *model.Task, decls []BookingDecl) []*model.Booking {
	var out []*model.Booking
	for _, d := range decls {
		r, ok := b.p.ResourceByKey(d.Resource)
		if !ok {
			b.errorf(line, "%s: booking: unknown resource %s", t.Key, d.Resource)
			continue
		}
		if d.Overtime < 0 || d.Overtime > 2 || d.Sloppy < 0 || d.Sloppy > 2 {
			b.errorf(line, "%s: booking: overtime and sloppy must be in [0, 2]", t.Key)
			continue
		}
		ivs, err := parseIntervals(d.Intervals, b.loc)
		if err != nil {
			b.errorf(line, "%s: booking: %v", t.Key, err)
			continue
		}
		bk := model.NewBooking(r.ID, t.ID, ivs...)
		bk.Overtime, bk.Sloppy = d.Overtime, d.Sloppy
		bk.Source = b.source(line)
		out = append(out, bk)
	}
	return out
}

func (b *builder) dependencies(decls []DependencyDecl, depends bool) []model.Dependency {
	var out []model.Dependency
	for _, d := range decls {
		dep := model.Dependency{Target: d.Task, OnEnd: depends, Source: b.source(d.line)}
		switch strings.ToLower(d.On) {
		case "":
		case "start":
			dep.OnEnd = false
		case "end":
			dep.OnEnd = true
		default:
			b.errorf(d.line, "dependency %s: on must be start or end, got %q", d.Task, d.On)
			continue
		}
		var err error
		if dep.GapDuration, err = parseDuration(d.GapDuration, b.p, true); err != nil {
			b.errorf(d.line, "dependency %s: gap_duration: %v", d.Task, err)
			continue
		}
		if dep.GapLength, err = parseDuration(d.GapLength, b.p, false); err != nil {
			b.errorf(d.line, "dependency %s: gap_length: %v", d.Task, err)
			continue
		}
		out = append(out, dep)
	}
	return out
}

var alertAttrs = map[string]bool{
	"start": true, "end": true, "criticalness": true, "pathcriticalness": true, "effortdone": true,
}

var alertOps = map[string]bool{"<": true, "<=": true, ">": true, ">=": true, "==": true, "!=": true}

func (b *builder) alerts(line int, owner string, decls []AlertDecl) []model.Alert {
	var out []model.Alert
	for _, d := range decls {
		if !alertAttrs[d.Attr] || !alertOps[d.Op] {
			b.errorf(line, "%s: alert %q: invalid condition %s %s %s", owner, d.Message, d.Attr, d.Op, d.Value)
			continue
		}
		msg := d.Message
		if msg == "" {
			msg = d.Attr + " " + d.Op + " " + d.Value
		}
		out = append(out, model.Alert{Message: msg, Fail: d.Fail, Cond: model.Compare{Attr: d.Attr, Op: d.Op, Value: d.Value}})
	}
	return out
}

// impliedForward gives a task with a duration and a lone start or end the
// direction that keeps the given date: asap from a start, alap to an end.
func impliedForward(a TaskAttrs, spec *model.TaskSpec) (forward, ok bool) {
	if a.Scheduling != "" || (spec.Effort == 0 && spec.Length == 0 && spec.Duration == 0) {
		return false, false
	}
	switch {
	case a.Start != "" && a.End == "":
		return true, true
	case a.End != "" && a.Start == "":
		return false, true
	}
	return false, false
}
