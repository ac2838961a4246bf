package scheduler

import (
	"fmt"
	"time"

	"github.com/kilianp07/slotplan/core/limits"
	"github.com/kilianp07/slotplan/core/logger"
	"github.com/kilianp07/slotplan/core/message"
	"github.com/kilianp07/slotplan/core/model"
	"github.com/kilianp07/slotplan/core/scoreboard"
)

// ScenarioBehavior is the per scenario protocol shared by tasks and
// resources. The orchestrator drives every implementation through these
// phases in order.
type ScenarioBehavior interface {
	PrepareScheduling()
	PreScheduleCheck() bool
	FinishScheduling()
	PostScheduleCheck() bool
}

var (
	_ ScenarioBehavior = (*TaskScenario)(nil)
	_ ScenarioBehavior = (*ResourceScenario)(nil)
)

// scenario is the state of one scheduling run of one scenario.
type scenario struct {
	project *model.Project
	idx     int
	name    string
	runID   string

	tasks     []*TaskScenario
	resources []*ResourceScenario

	sink   message.Sink
	log    logger.Logger
	events EventPublisher

	gran        time.Duration
	workingTime *scoreboard.Scoreboard[bool]
	limitsCfg   limits.Settings

	severities [3]int
}

func newScenario(p *model.Project, idx int, runID string, sink message.Sink, log logger.Logger, events EventPublisher) *scenario {
	s := &scenario{
		project:   p,
		idx:       idx,
		name:      p.Scenarios[idx].Name,
		runID:     runID,
		sink:      sink,
		log:       log,
		events:    events,
		gran:      p.Granularity,
		limitsCfg: limits.Settings{Frame: p.Frame(), WeekStartsMonday: p.WeekStartsMonday},
	}
	for _, t := range p.Tasks() {
		s.tasks = append(s.tasks, newTaskScenario(s, t))
	}
	for _, r := range p.Resources() {
		s.resources = append(s.resources, newResourceScenario(s, r))
	}
	return s
}

// buildWorkingTime precomputes project working time: on shift in the
// project calendar and not a global vacation.
func (s *scenario) buildWorkingTime() {
	board, err := scoreboard.New(s.project.Start, s.project.End, s.gran, false)
	if err != nil {
		// The project constructor guarantees a valid frame.
		panic(err)
	}
	for i := 0; i < board.Size(); i++ {
		board.Set(i, s.project.WorkingHours.OnShift(board.IdxToDate(i)))
	}
	for _, v := range s.project.Vacations {
		s.fill(v, func(i int) { board.Set(i, false) })
	}
	s.workingTime = board
}

func (s *scenario) task(id model.TaskID) *TaskScenario {
	if id < 0 || int(id) >= len(s.tasks) {
		return nil
	}
	return s.tasks[id]
}

func (s *scenario) resource(id model.ResourceID) *ResourceScenario {
	if id < 0 || int(id) >= len(s.resources) {
		return nil
	}
	return s.resources[id]
}

// leaves expands a resource into its leaf members.
func (s *scenario) leaves(id model.ResourceID) []*ResourceScenario {
	r := s.resource(id)
	if r == nil {
		return nil
	}
	if r.res.Leaf() {
		return []*ResourceScenario{r}
	}
	var out []*ResourceScenario
	for _, c := range r.res.Children {
		out = append(out, s.leaves(c)...)
	}
	return out
}

// slots converts a duration into a slot count, rounding up.
func (s *scenario) slots(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + s.gran - 1) / s.gran)
}

func (s *scenario) dateToIdx(t time.Time) int {
	d := t.Sub(s.project.Start)
	idx := int(d / s.gran)
	if d%s.gran < 0 {
		idx--
	}
	return idx
}

func (s *scenario) idxToDate(i int) time.Time {
	return s.project.Start.Add(time.Duration(i) * s.gran)
}

func (s *scenario) inFrame(t time.Time) bool {
	return !t.Before(s.project.Start) && !t.After(s.project.End)
}

// alignUp rounds t up to the next slot boundary.
func (s *scenario) alignUp(t time.Time) time.Time {
	a := s.alignDown(t)
	if a.Before(t) {
		a = a.Add(s.gran)
	}
	return a
}

// alignDown rounds t down to a slot boundary.
func (s *scenario) alignDown(t time.Time) time.Time {
	return s.idxToDate(s.dateToIdx(t))
}

func (s *scenario) isWorkingTime(t time.Time) bool {
	if s.workingTime == nil {
		return s.project.IsWorkingTime(t)
	}
	idx := s.dateToIdx(t)
	if !s.workingTime.InRange(idx) {
		return s.project.IsWorkingTime(t)
	}
	return s.workingTime.Get(idx)
}

// addWorkingLength returns the date after n working slots following t.
func (s *scenario) addWorkingLength(t time.Time, n int) time.Time {
	for n > 0 && t.Before(s.project.End) {
		if s.isWorkingTime(t) {
			n--
		}
		t = t.Add(s.gran)
	}
	return t
}

// subWorkingLength returns the date n working slots before t.
func (s *scenario) subWorkingLength(t time.Time, n int) time.Time {
	for n > 0 && t.After(s.project.Start) {
		t = t.Add(-s.gran)
		if s.isWorkingTime(t) {
			n--
		}
	}
	return t
}

// workingSlotsBetween counts working slots in [from, to).
func (s *scenario) workingSlotsBetween(from, to time.Time) int {
	n := 0
	for t := s.alignDown(from); t.Before(to); t = t.Add(s.gran) {
		if s.isWorkingTime(t) {
			n++
		}
	}
	return n
}

// fill calls fn for every slot index of iv inside the project frame.
func (s *scenario) fill(iv scoreboard.Interval, fn func(idx int)) {
	clipped, ok := iv.Intersect(s.project.Frame())
	if !ok {
		return
	}
	last := s.dateToIdx(clipped.End.Add(-1))
	for i := s.dateToIdx(clipped.Start); i <= last; i++ {
		fn(i)
	}
}

func (s *scenario) report(sev message.Severity, id string, src *message.SourceLocation, property, format string, args ...any) {
	s.severities[sev]++
	s.sink.Report(message.Message{
		ID:       id,
		Severity: sev,
		Text:     fmt.Sprintf(format, args...),
		Scenario: s.name,
		Property: property,
		Source:   src,
	})
}

func (s *scenario) publish(e Event) {
	if s.events == nil {
		return
	}
	e.RunID = s.runID
	e.Scenario = s.name
	s.events.Publish(e)
}
