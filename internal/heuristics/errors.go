package heuristics

import "errors"

// ErrEmptyDAG is returned when a heuristic table is requested for a DAG with
// no tasks; every other heuristic in this package assumes at least one task.
var ErrEmptyDAG = errors.New("heuristics: DAG has no tasks")
