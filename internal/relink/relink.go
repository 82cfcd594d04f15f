// Package relink implements directed path-relinking between two
// schedules: starting from source, assignment entries are walked toward
// guide's one at a time, each intermediate step refined by local search,
// and the best schedule seen along the whole trajectory is returned. It
// is used both as a standalone recombination operator and as the island
// model's on-demand migration mechanism.
package relink

import (
	"math/rand"

	"github.com/swarmguard/dagsched/internal/dagmodel"
	"github.com/swarmguard/dagsched/internal/localsearch"
	"github.com/swarmguard/dagsched/internal/schedule"
)

// Relink walks from source toward guide one differing task assignment at a
// time, in a shuffled order, re-evaluating and locally optimizing after
// every step. The trajectory's best schedule (which may be the unmodified
// source, if guide never improves on it) is returned alongside the
// source's fixed execution order — path-relinking operates purely in
// assignment space, so only source.Order is ever used to evaluate a step.
func Relink(dag *dagmodel.DAG, source, guide *schedule.Schedule, rng *rand.Rand) (*schedule.Schedule, error) {
	assignment := append([]int(nil), source.Assignment...)
	order := append([]int(nil), source.Order...)

	best, err := schedule.Evaluate(dag, assignment, order)
	if err != nil {
		return nil, err
	}

	var diffs []int
	for t := range assignment {
		if assignment[t] != guide.Assignment[t] {
			diffs = append(diffs, t)
		}
	}
	rng.Shuffle(len(diffs), func(i, j int) { diffs[i], diffs[j] = diffs[j], diffs[i] })

	for _, t := range diffs {
		assignment[t] = guide.Assignment[t]
		step, err := schedule.Evaluate(dag, assignment, order)
		if err != nil {
			continue // a malformed guide assignment is skipped, not fatal
		}
		step = localsearch.Improve(dag, step)
		if step.Makespan < best.Makespan {
			best = step
		}
	}
	return best, nil
}
