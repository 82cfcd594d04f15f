// Package heuristics computes the lookahead tables the ant engine, the GA's
// smart mutation, and the PEFT/HEFT constructors all share: Upward Rank,
// the Optimistic Cost Table (OCT), and the PEFT rank derived from it.
//
// These caches need both graph structure and cost data, so they are kept
// out of dagmodel.DAG itself (which stays purely structural) and live here,
// wrapping a *dagmodel.DAG by reference. This mirrors the layering in the
// example pack's DAG library, where path/impact caches are computed by a
// separate analysis pass over an otherwise plain graph type rather than
// being fields the graph type owns.
package heuristics

import "github.com/swarmguard/dagsched/internal/dagmodel"

// Tables holds the per-DAG heuristic caches, computed once at construction
// and read-only afterward.
type Tables struct {
	dag *dagmodel.DAG

	// UpwardRank[t] is the classic HEFT upward rank of task t.
	UpwardRank []float64

	// OCT[t][p] is the optimistic cost table entry for task t on processor
	// p: the best-case remaining cost to the exit task, assuming t runs on
	// p and every other task can be freely reassigned.
	OCT [][]float64

	// PEFTRank[t] is the mean of OCT[t][*] across processors, used as the
	// rank that orders tasks in the PEFT list-scheduling constructor.
	PEFTRank []float64

	// avgRate is the mean of R[p][q] over all processor pairs p != q,
	// used by UpwardRank (which has no fixed processor to key a real
	// transfer cost on).
	avgRate float64
}

// NewTables computes all three caches for dag. dag must not be mutated
// afterward; NewTables keeps a reference to it.
func NewTables(dag *dagmodel.DAG) (*Tables, error) {
	if dag.N == 0 {
		return nil, ErrEmptyDAG
	}
	t := &Tables{dag: dag, avgRate: averageCommRate(dag)}
	t.UpwardRank = computeUpwardRank(dag, t.avgRate)
	t.OCT = computeOCT(dag)
	t.PEFTRank = make([]float64, dag.N)
	for i, row := range t.OCT {
		t.PEFTRank[i] = mean(row)
	}
	return t, nil
}

// AverageCommRate returns the mean cross-processor communication rate used
// internally by UpwardRank, exposed so constructors can reuse it for the
// same "average" convention HEFT uses for ready-time estimates.
func (t *Tables) AverageCommRate() float64 { return t.avgRate }

func averageCommRate(dag *dagmodel.DAG) float64 {
	if dag.M <= 1 {
		return 0
	}
	var sum float64
	var n int
	for p := 0; p < dag.M; p++ {
		for q := 0; q < dag.M; q++ {
			if p == q {
				continue
			}
			sum += dag.R[p][q]
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// computeUpwardRank follows the standard HEFT recurrence, walked in reverse
// topological order so every successor's rank is final before a task's rank
// is computed:
//
//	rank(exit) = avgComp(exit)
//	rank(t)    = avgComp(t) + max_{s in succ(t)} ( avgRate*volume(t,s) + rank(s) )
func computeUpwardRank(dag *dagmodel.DAG, avgRate float64) []float64 {
	rank := make([]float64, dag.N)
	order := dag.TopologicalOrder()
	for k := len(order) - 1; k >= 0; k-- {
		id := order[k]
		task := dag.Tasks[id]
		best := 0.0
		for _, s := range task.Succ {
			comm := avgRate * task.Volume[s]
			if v := comm + rank[s]; v > best {
				best = v
			}
		}
		rank[id] = task.AvgComp() + best
	}
	return rank
}

// computeOCT follows the PEFT definition: the exit tasks (no successors)
// have OCT 0 on every processor; every other task's OCT(t,p) is the worst
// case over its successors of the best case over the successor's
// processors, using the actual transfer cost between p and the
// successor's candidate processor.
func computeOCT(dag *dagmodel.DAG) [][]float64 {
	oct := make([][]float64, dag.N)
	for i := range oct {
		oct[i] = make([]float64, dag.M)
	}
	order := dag.TopologicalOrder()
	for k := len(order) - 1; k >= 0; k-- {
		id := order[k]
		task := dag.Tasks[id]
		if task.IsSink() {
			continue // already zero
		}
		for p := 0; p < dag.M; p++ {
			worst := 0.0
			for si, s := range task.Succ {
				best := 0.0
				for pw := 0; pw < dag.M; pw++ {
					v := oct[s][pw] + dag.Tasks[s].Comp[pw] + dag.CommCost(id, s, p, pw)
					if pw == 0 || v < best {
						best = v
					}
				}
				if si == 0 || best > worst {
					worst = best
				}
			}
			oct[id][p] = worst
		}
	}
	return oct
}

// RankOrder returns a topological order of dag's tasks built by always
// picking, among currently-ready tasks, the one with the highest rank
// (ties broken toward the lower task id). List-scheduling constructors and
// the genetic engine both use this to fix a construction order and vary
// only the processor assignment.
func RankOrder(dag *dagmodel.DAG, rank []float64) []int {
	indeg := make([]int, dag.N)
	for _, t := range dag.Tasks {
		indeg[t.ID] = len(t.Pred)
	}
	var ready []int
	for id, deg := range indeg {
		if deg == 0 {
			ready = append(ready, id)
		}
	}

	order := make([]int, 0, dag.N)
	for len(ready) > 0 {
		bestIdx := 0
		for i := 1; i < len(ready); i++ {
			a, b := ready[i], ready[bestIdx]
			if rank[a] > rank[b] || (rank[a] == rank[b] && a < b) {
				bestIdx = i
			}
		}
		picked := ready[bestIdx]
		ready = append(ready[:bestIdx], ready[bestIdx+1:]...)
		order = append(order, picked)

		for _, s := range dag.Tasks[picked].Succ {
			indeg[s]--
			if indeg[s] == 0 {
				ready = append(ready, s)
			}
		}
	}
	return order
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
