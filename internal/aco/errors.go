package aco

import "errors"

// ErrConstructionStuck is returned by an ant's construction when the ready
// set empties before every task has been placed, which means some task
// can never become ready.
var ErrConstructionStuck = errors.New("aco: ready set emptied before every task was placed")
