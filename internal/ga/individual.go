package ga

import (
	"github.com/swarmguard/dagsched/internal/dagmodel"
	"github.com/swarmguard/dagsched/internal/schedule"
)

// Individual is one population member: a processor assignment paired with
// a task execution order. The order is usually shared across the whole
// population (inherited unchanged through crossover) but can drift per
// individual once the reachability-safe order-swap mutation fires.
type Individual struct {
	Assignment []int
	Order      []int
	Schedule   *schedule.Schedule
}

func (ind *Individual) evaluate(dag *dagmodel.DAG) error {
	s, err := schedule.Evaluate(dag, ind.Assignment, ind.Order)
	if err != nil {
		return err
	}
	ind.Schedule = s
	return nil
}

func (ind *Individual) clone() *Individual {
	return &Individual{
		Assignment: append([]int(nil), ind.Assignment...),
		Order:      append([]int(nil), ind.Order...),
		Schedule:   ind.Schedule,
	}
}
