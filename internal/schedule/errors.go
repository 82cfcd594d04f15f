package schedule

import "errors"

// ErrInvalidOrder is returned when an execution order is not a valid
// topological order of the DAG it is being evaluated against (a task
// appears before one of its predecessors), or does not cover every task
// exactly once.
var ErrInvalidOrder = errors.New("schedule: order is not a valid topological order")

// ErrInvalidAssignment is returned when an assignment vector references a
// processor outside [0, M) or does not have one entry per task.
var ErrInvalidAssignment = errors.New("schedule: assignment is out of range")
