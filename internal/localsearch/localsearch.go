// Package localsearch implements the critical-path hill-climber used both
// as a standalone refinement step and as the memetic operator inside the
// genetic engine: reassign a critical-path task to a different processor
// only when doing so lowers the makespan, repeating against the new
// critical path until no single reassignment helps.
package localsearch

import (
	"github.com/swarmguard/dagsched/internal/dagmodel"
	"github.com/swarmguard/dagsched/internal/schedule"
)

// Improve runs best-improvement hill-climbing restricted to the tasks on
// the current critical path: at each round it tries every alternate
// processor for every critical-path task, keeps the single reassignment
// that improves the makespan the most, and re-evaluates the (now
// different) critical path. It stops at a local optimum, so calling it
// again on its own output is a no-op.
func Improve(dag *dagmodel.DAG, s *schedule.Schedule) *schedule.Schedule {
	cur := s
	for {
		next, improved := bestNeighbor(dag, cur)
		if !improved {
			return cur
		}
		cur = next
	}
}

func bestNeighbor(dag *dagmodel.DAG, cur *schedule.Schedule) (*schedule.Schedule, bool) {
	path := cur.CriticalPath()
	best := cur
	bestMakespan := cur.Makespan
	improved := false

	trial := append([]int(nil), cur.Assignment...)
	for _, t := range path {
		orig := cur.Assignment[t]
		for p := 0; p < dag.M; p++ {
			if p == orig {
				continue
			}
			trial[t] = p
			cand, err := schedule.Evaluate(dag, trial, cur.Order)
			trial[t] = orig
			if err != nil {
				continue
			}
			if cand.Makespan < bestMakespan {
				bestMakespan = cand.Makespan
				best = cand
				improved = true
			}
		}
	}
	return best, improved
}
