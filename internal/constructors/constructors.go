// Package constructors builds initial schedules with classic list
// scheduling: tasks are ordered once by a priority rank and then assigned,
// in that order, to whichever processor is best by the constructor's
// selection rule. HEFT orders by Upward Rank and picks the processor with
// the earliest finish time; PEFT orders by PEFT rank and picks the
// processor that minimizes finish time plus optimistic remaining cost,
// looking one step further into the DAG's tail than HEFT does.
package constructors

import (
	"github.com/swarmguard/dagsched/internal/dagmodel"
	"github.com/swarmguard/dagsched/internal/heuristics"
	"github.com/swarmguard/dagsched/internal/schedule"
)

// HEFT builds a schedule by ordering tasks by decreasing Upward Rank and
// assigning each, in turn, to the processor that minimizes its own earliest
// finish time.
func HEFT(dag *dagmodel.DAG, tbl *heuristics.Tables) (*schedule.Schedule, error) {
	order := heuristics.RankOrder(dag, tbl.UpwardRank)
	assignment := listSchedule(dag, order, func(t, p int, assignment []int, procReady, finish []float64) float64 {
		return eft(dag, t, p, assignment, procReady, finish)
	})
	return schedule.Evaluate(dag, assignment, order)
}

// PEFT builds a schedule by ordering tasks by decreasing PEFT rank and
// assigning each, in turn, to the processor that minimizes finish time plus
// that processor's optimistic cost table entry for the task — a lookahead
// HEFT's EFT-only criterion does not have.
func PEFT(dag *dagmodel.DAG, tbl *heuristics.Tables) (*schedule.Schedule, error) {
	order := heuristics.RankOrder(dag, tbl.PEFTRank)
	assignment := listSchedule(dag, order, func(t, p int, assignment []int, procReady, finish []float64) float64 {
		return eft(dag, t, p, assignment, procReady, finish) + tbl.OCT[t][p]
	})
	return schedule.Evaluate(dag, assignment, order)
}

// eft is the earliest finish time of task t on processor p given the
// partial schedule's assignment/procReady/finish state, using the same
// procReady-vs-maxData recurrence as the evaluator.
func eft(dag *dagmodel.DAG, t, p int, assignment []int, procReady, finish []float64) float64 {
	maxData := 0.0
	for _, pred := range dag.Tasks[t].Pred {
		arrival := finish[pred] + dag.CommCost(pred, t, assignment[pred], p)
		if arrival > maxData {
			maxData = arrival
		}
	}
	start := procReady[p]
	if maxData > start {
		start = maxData
	}
	return start + dag.Tasks[t].Comp[p]
}

// listSchedule walks order once, assigning each task to the processor that
// minimizes cost(task, processor, partial-assignment, ...) and maintaining
// the running assignment/procReady/finish state the next task's cost
// evaluation needs.
func listSchedule(dag *dagmodel.DAG, order []int, cost func(t, p int, assignment []int, procReady, finish []float64) float64) []int {
	assignment := make([]int, dag.N)
	procReady := make([]float64, dag.M)
	finish := make([]float64, dag.N)

	for _, t := range order {
		bestP := 0
		bestCost := cost(t, 0, assignment, procReady, finish)
		for p := 1; p < dag.M; p++ {
			if c := cost(t, p, assignment, procReady, finish); c < bestCost {
				bestCost = c
				bestP = p
			}
		}
		assignment[t] = bestP
		procReady[bestP] = eft(dag, t, bestP, assignment, procReady, finish)
		finish[t] = procReady[bestP]
	}
	return assignment
}
