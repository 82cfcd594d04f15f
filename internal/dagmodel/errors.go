package dagmodel

import "errors"

// ErrInputFormat is returned when a DAG source file is malformed: a
// non-numeric token where a number was expected, too few lines, or an
// edge endpoint that is out of range in a way the reader cannot silently
// skip.
var ErrInputFormat = errors.New("dagmodel: malformed input")

// ErrDAGConsistency is returned when the task graph is not a DAG — Kahn's
// algorithm could not order every task, which means a cycle exists.
var ErrDAGConsistency = errors.New("dagmodel: cycle detected")
