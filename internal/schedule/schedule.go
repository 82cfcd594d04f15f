// Package schedule evaluates an (assignment, order) pair against a DAG into
// a concrete timeline: per-task start/finish times, the overall makespan,
// and the chain of critical-path links needed by local search to know which
// tasks it may legally perturb.
package schedule

import (
	"fmt"

	"github.com/swarmguard/dagsched/internal/dagmodel"
)

// noCritLink marks a task with no critical link: no predecessor's data
// arrival and no earlier task on its processor delayed its start. It ends
// the backward walk along the critical path.
const noCritLink = -1

// Schedule is the evaluated result of running (assignment, order) through
// the processor-ready / data-ready recurrence. It is a value produced by
// Evaluate; callers that want to perturb it should build a new assignment
// or order and re-evaluate rather than mutating a Schedule in place.
type Schedule struct {
	Assignment []int
	Order      []int

	Start    []float64
	Finish   []float64
	Makespan float64

	// CritLink has N+1 entries. CritLink[t] for t < N is the task that
	// pinned task t's start time: the predecessor whose (finish + comm
	// cost) was the binding constraint, otherwise the previous task run on
	// t's processor, or noCritLink when t is the first task on its
	// processor and no data arrival delayed it. CritLink[N] is a sentinel: the id of whichever
	// task's finish time equals the makespan, i.e. the tail of the
	// critical path. Walking CritLink from N back through noCritLink
	// yields the full critical path.
	CritLink []int
}

// Evaluate computes the timeline for assigning each task to the processor
// in assignment[task] and executing tasks in the given order. order must be
// a topological order covering every task in dag exactly once.
func Evaluate(dag *dagmodel.DAG, assignment, order []int) (*Schedule, error) {
	if len(assignment) != dag.N {
		return nil, fmt.Errorf("%w: %d entries, want %d", ErrInvalidAssignment, len(assignment), dag.N)
	}
	for _, p := range assignment {
		if p < 0 || p >= dag.M {
			return nil, fmt.Errorf("%w: processor %d out of range [0,%d)", ErrInvalidAssignment, p, dag.M)
		}
	}
	if err := validateOrder(dag, order); err != nil {
		return nil, err
	}

	s := &Schedule{
		Assignment: append([]int(nil), assignment...),
		Order:      append([]int(nil), order...),
		Start:      make([]float64, dag.N),
		Finish:     make([]float64, dag.N),
		CritLink:   make([]int, dag.N+1),
	}
	procReady := make([]float64, dag.M)
	lastOn := make([]int, dag.M)
	for p := range lastOn {
		lastOn[p] = noCritLink
	}

	for _, t := range order {
		task := dag.Tasks[t]
		p := assignment[t]

		maxData := 0.0
		dataLink := noCritLink
		for _, pred := range task.Pred {
			arrival := s.Finish[pred] + dag.CommCost(pred, t, assignment[pred], p)
			if arrival > maxData {
				maxData = arrival
				dataLink = pred
			}
		}

		start := procReady[p]
		link := lastOn[p]
		// Tie-break toward procReady: the critical link is the previous
		// task on p unless a predecessor's data arrival strictly exceeds
		// the processor's own availability.
		if maxData > start {
			start = maxData
			link = dataLink
		}

		finish := start + task.Comp[p]
		s.Start[t] = start
		s.Finish[t] = finish
		s.CritLink[t] = link
		procReady[p] = finish
		lastOn[p] = t

		if finish > s.Makespan {
			s.Makespan = finish
			s.CritLink[dag.N] = t
		}
	}

	return s, nil
}

// CriticalPath reconstructs the chain of tasks whose finish times
// determined the makespan, from the first task on the chain to the last.
func (s *Schedule) CriticalPath() []int {
	n := len(s.CritLink) - 1
	if n <= 0 {
		return nil
	}
	var rev []int
	t := s.CritLink[n]
	for t != noCritLink {
		rev = append(rev, t)
		t = s.CritLink[t]
	}
	path := make([]int, len(rev))
	for i, id := range rev {
		path[len(rev)-1-i] = id
	}
	return path
}

// Clone returns a deep copy safe for independent mutation by local search.
func (s *Schedule) Clone() *Schedule {
	return &Schedule{
		Assignment: append([]int(nil), s.Assignment...),
		Order:      append([]int(nil), s.Order...),
		Start:      append([]float64(nil), s.Start...),
		Finish:     append([]float64(nil), s.Finish...),
		Makespan:   s.Makespan,
		CritLink:   append([]int(nil), s.CritLink...),
	}
}

func validateOrder(dag *dagmodel.DAG, order []int) error {
	if len(order) != dag.N {
		return fmt.Errorf("%w: %d entries, want %d", ErrInvalidOrder, len(order), dag.N)
	}
	seen := make([]bool, dag.N)
	pos := make([]int, dag.N)
	for i, id := range order {
		if id < 0 || id >= dag.N {
			return fmt.Errorf("%w: task id %d out of range", ErrInvalidOrder, id)
		}
		if seen[id] {
			return fmt.Errorf("%w: task %d appears more than once", ErrInvalidOrder, id)
		}
		seen[id] = true
		pos[id] = i
	}
	for _, task := range dag.Tasks {
		for _, pred := range task.Pred {
			if pos[pred] >= pos[task.ID] {
				return fmt.Errorf("%w: predecessor %d does not precede %d", ErrInvalidOrder, pred, task.ID)
			}
		}
	}
	return nil
}
