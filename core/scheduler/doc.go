// Package scheduler computes a feasible schedule for a model.Project.
//
// Scheduling is a greedy slot-by-slot simulation. For every enabled
// scenario the Scheduler prepares per task and per resource state, resolves
// dependencies, rejects dependency loops and ranks tasks by criticalness.
// It then repeatedly picks the most urgent ready leaf task and walks it one
// slot at a time, booking resources until the task's effort, length or
// duration is reached. Dates flow through the dependency graph as soon as
// they become known; containers take the bounds of their children.
//
// Warnings and errors are reported to a message.Sink. Only a dependency
// loop aborts a scenario.
package scheduler
