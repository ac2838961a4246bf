package scheduler

import "errors"

var (
	// ErrDependencyLoop aborts a scenario whose dependency graph has a cycle.
	ErrDependencyLoop = errors.New("dependency loop detected")
	// ErrNoTasks is returned when the project declares no task.
	ErrNoTasks = errors.New("project has no tasks")
	// ErrNonAdjacentSlot rejects a slot that does not follow the previously
	// scheduled one.
	ErrNonAdjacentSlot = errors.New("slot is not adjacent to the last scheduled slot")
	// ErrUnknownScenario is returned for an out of range scenario index.
	ErrUnknownScenario = errors.New("unknown scenario")
)

// Message ids reported to the sink.
const (
	msgLoop             = "loop_detected"
	msgUnknownDep       = "unknown_dependency"
	msgSelfDep          = "self_dependency"
	msgParentDep        = "parent_dependency"
	msgChildDep         = "child_dependency"
	msgDuplicateDep     = "duplicate_dependency"
	msgWeakStartDep     = "weak_start_dep"
	msgWeakEndDep       = "weak_end_dep"
	msgMultipleDuration = "multiple_durations"
	msgContainerSpec    = "container_spec"
	msgMilestoneSpec    = "milestone_spec"
	msgOverspecified    = "overspecified"
	msgDirection        = "scheduling_direction"
	msgEffortNoAlloc    = "effort_without_allocation"
	msgBookingConflict  = "booking_conflict"
	msgBookingOffShift  = "booking_off_shift"
	msgBookingVacation  = "booking_on_vacation"
	msgBookingInvalid   = "booking_invalid"
	msgInvalidLimit     = "invalid_limit"
	msgRunaway          = "runaway"
	msgStalled          = "scheduling_stalled"
	msgUnscheduled      = "unscheduled"
	msgNoStart          = "no_start"
	msgNoEnd            = "no_end"
	msgOutsideProject   = "outside_project"
	msgStartAfterEnd    = "start_after_end"
	msgOutsideParent    = "outside_parent"
	msgBoundViolated    = "bound_violated"
	msgDepViolated      = "dependency_violated"
	msgMilestoneLength  = "milestone_not_instant"
	msgAlert            = "alert"
	msgAlertInvalid     = "alert_invalid"
	msgMinimumLimit     = "minimum_limit"
	msgResourceSpec     = "resource_spec"
	msgDateOutside      = "date_outside_project"
)
