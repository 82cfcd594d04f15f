package dagmodel

import (
	"container/heap"
	"fmt"
)

// DAG is the immutable, build-once-read-many workload graph: task count,
// processor count, the comm-rate matrix, the task arena, and caches derived
// purely from graph structure (topological order, reachability). Heuristic
// caches that need more than structure (Upward Rank, OCT) live one layer up
// in the heuristics package, which holds a *DAG by reference — keeping this
// package free of any heuristic-specific knowledge avoids the cyclic
// reference the design notes warn about.
type DAG struct {
	N     int
	M     int
	R     [][]float64
	Tasks []Task

	topoOrder  []int
	reachable  [][]bool
	reachBuilt bool
}

// New builds a DAG from a fully-populated task arena and comm-rate matrix,
// validating matrix dimensions, non-negative costs, rates and volumes, the
// presence of a source and a sink, and acyclicity. The diagonal R[p][p] is
// not checked; CommCost never reads it. The returned DAG owns tasks and R;
// callers must not mutate them afterward.
func New(m int, tasks []Task, r [][]float64) (*DAG, error) {
	n := len(tasks)
	if len(r) != m {
		return nil, fmt.Errorf("%w: comm-rate matrix has %d rows, want %d", ErrInputFormat, len(r), m)
	}
	for i, row := range r {
		if len(row) != m {
			return nil, fmt.Errorf("%w: comm-rate row %d has %d entries, want %d", ErrInputFormat, i, len(row), m)
		}
		for j, v := range row {
			if v < 0 {
				return nil, fmt.Errorf("%w: negative comm rate R[%d][%d]=%v", ErrInputFormat, i, j, v)
			}
		}
	}
	for _, t := range tasks {
		if len(t.Comp) != m {
			return nil, fmt.Errorf("%w: task %d has %d comp entries, want %d", ErrInputFormat, t.ID, len(t.Comp), m)
		}
		for p, c := range t.Comp {
			if c < 0 {
				return nil, fmt.Errorf("%w: negative comp[%d][%d]=%v", ErrInputFormat, t.ID, p, c)
			}
		}
		for succ, vol := range t.Volume {
			if vol < 0 {
				return nil, fmt.Errorf("%w: negative volume(%d,%d)=%v", ErrInputFormat, t.ID, succ, vol)
			}
		}
	}

	d := &DAG{N: n, M: m, R: r, Tasks: tasks}

	order, err := d.TopoOrderWithPriority(func(id int) int { return -id })
	if err != nil {
		return nil, err
	}
	d.topoOrder = order

	var hasSource, hasSink bool
	for _, t := range tasks {
		if t.IsSource() {
			hasSource = true
		}
		if t.IsSink() {
			hasSink = true
		}
	}
	if n > 0 && (!hasSource || !hasSink) {
		return nil, fmt.Errorf("%w: DAG has no source or sink task", ErrInputFormat)
	}

	return d, nil
}

// CommCost is the communication cost of the edge (i -> j) when i runs on p1
// and j runs on p2: volume(i,j)*R[p1][p2] when p1 != p2, zero otherwise
// (spec.md §3).
func (d *DAG) CommCost(i, j, p1, p2 int) float64 {
	if p1 == p2 {
		return 0
	}
	vol, ok := d.Tasks[i].Volume[j]
	if !ok {
		return 0
	}
	return vol * d.R[p1][p2]
}

// TopologicalOrder returns the cached topological order computed at load
// time, breaking ties toward the lower task id.
func (d *DAG) TopologicalOrder() []int {
	out := make([]int, len(d.topoOrder))
	copy(out, d.topoOrder)
	return out
}

// TopoOrderWithPriority runs Kahn's algorithm, picking among tasks whose
// predecessors are all scheduled the one with the highest priority(id),
// breaking ties toward the lower task id. New uses it to build the DAG's
// own topological order.
//
// Grounded on the priority-heap topological sort pattern (container/heap
// over a priority-then-id ordering) used for task scheduling in the
// example pack's DAG library.
func (d *DAG) TopoOrderWithPriority(priority func(taskID int) int) ([]int, error) {
	indeg := make([]int, d.N)
	for _, t := range d.Tasks {
		indeg[t.ID] = len(t.Pred)
	}

	pq := &taskHeap{priority: priority}
	for id, deg := range indeg {
		if deg == 0 {
			heap.Push(pq, id)
		}
	}

	order := make([]int, 0, d.N)
	for pq.Len() > 0 {
		id := heap.Pop(pq).(int)
		order = append(order, id)
		for _, s := range d.Tasks[id].Succ {
			indeg[s]--
			if indeg[s] == 0 {
				heap.Push(pq, s)
			}
		}
	}

	if len(order) != d.N {
		return nil, fmt.Errorf("%w: ordered %d of %d tasks", ErrDAGConsistency, len(order), d.N)
	}
	return order, nil
}

// Reachable reports whether there is a directed path i -> ... -> j through
// successor edges. The transitive closure is computed once, lazily, on
// first call.
func (d *DAG) Reachable(i, j int) bool {
	d.buildReachability()
	return d.reachable[i][j]
}

// ReachabilityRow returns a copy of row i of the transitive-closure matrix:
// ReachabilityRow(i)[j] == Reachable(i, j).
func (d *DAG) ReachabilityRow(i int) []bool {
	d.buildReachability()
	row := make([]bool, d.N)
	copy(row, d.reachable[i])
	return row
}

func (d *DAG) buildReachability() {
	if d.reachBuilt {
		return
	}
	reach := make([][]bool, d.N)
	for i := range reach {
		reach[i] = make([]bool, d.N)
	}
	// Walk the cached topological order in reverse so that by the time we
	// process task i, every successor's reachability row is already final.
	for k := len(d.topoOrder) - 1; k >= 0; k-- {
		i := d.topoOrder[k]
		for _, s := range d.Tasks[i].Succ {
			reach[i][s] = true
			for j := 0; j < d.N; j++ {
				if reach[s][j] {
					reach[i][j] = true
				}
			}
		}
	}
	d.reachable = reach
	d.reachBuilt = true
}

// taskHeap is a container/heap.Interface over task ids ordered by
// descending priority(id), with lower id breaking ties.
type taskHeap struct {
	ids      []int
	priority func(int) int
}

func (h *taskHeap) Len() int { return len(h.ids) }
func (h *taskHeap) Less(i, j int) bool {
	pi, pj := h.priority(h.ids[i]), h.priority(h.ids[j])
	if pi != pj {
		return pi > pj
	}
	return h.ids[i] < h.ids[j]
}
func (h *taskHeap) Swap(i, j int)      { h.ids[i], h.ids[j] = h.ids[j], h.ids[i] }
func (h *taskHeap) Push(x interface{}) { h.ids = append(h.ids, x.(int)) }
func (h *taskHeap) Pop() interface{} {
	old := h.ids
	n := len(old)
	id := old[n-1]
	h.ids = old[:n-1]
	return id
}
