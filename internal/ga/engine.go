// Package ga implements the memetic genetic engine: tournament selection,
// uniform crossover on the processor assignment with the execution order
// inherited from the first parent, per-gene OCT-guided mutation plus
// reachability-safe order-swap mutation, and critical-path local search
// applied as a memetic refinement step gated on the child outperforming a
// parent, with a fixed-duration exploration mode triggered by stagnation.
package ga

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/swarmguard/dagsched/internal/dagmodel"
	"github.com/swarmguard/dagsched/internal/heuristics"
	"github.com/swarmguard/dagsched/internal/localsearch"
	"github.com/swarmguard/dagsched/internal/schedule"
	"github.com/swarmguard/dagsched/internal/telemetry"
)

// Engine owns the population and stagnation state across a run.
type Engine struct {
	dag    *dagmodel.DAG
	tbl    *heuristics.Tables
	params Params
	rng    *rand.Rand

	population []*Individual
	best       *Individual
	stagnation int

	exploring            bool
	explorationRemaining int

	log         *slog.Logger
	instruments telemetry.Instruments
}

// NewEngine seeds an initial population with a shared topological order
// (the seed's order when a seed is given, otherwise by Upward Rank) and
// independently randomized processor assignments, one of which is the
// PEFT-quality seed passed in as seed (nil to skip seeding and let the
// whole population start random).
func NewEngine(dag *dagmodel.DAG, tbl *heuristics.Tables, params Params, seed *schedule.Schedule) (*Engine, error) {
	e := &Engine{
		dag:         dag,
		tbl:         tbl,
		params:      params,
		rng:         rand.New(rand.NewSource(params.Seed)),
		log:         slog.Default().With("component", "ga"),
		instruments: telemetry.DefaultInstruments(),
	}
	order := heuristics.RankOrder(dag, tbl.UpwardRank)
	if seed != nil {
		order = seed.Order
	}

	e.population = make([]*Individual, 0, params.PopSize)
	if seed != nil {
		ind := &Individual{Assignment: append([]int(nil), seed.Assignment...), Order: append([]int(nil), seed.Order...)}
		if err := ind.evaluate(dag); err != nil {
			return nil, err
		}
		e.population = append(e.population, ind)
	}
	for len(e.population) < params.PopSize {
		ind := &Individual{Assignment: e.randomAssignment(), Order: append([]int(nil), order...)}
		if err := ind.evaluate(dag); err != nil {
			return nil, err
		}
		e.population = append(e.population, ind)
	}
	e.updateBest()
	return e, nil
}

// Best returns the best schedule found so far.
func (e *Engine) Best() *schedule.Schedule {
	if e.best == nil {
		return nil
	}
	return e.best.Schedule
}

// Exploring reports whether the population is currently in its
// fixed-duration exploration window, triggered by StagnationThreshold
// generations without a new best and ended either after
// ExplorationDuration generations or early by a new global best. The
// island model uses this as the on-demand trigger for migration — it does
// not migrate on a fixed schedule, only when an island actually needs help.
func (e *Engine) Exploring() bool { return e.exploring }

// InjectMigrant replaces the worst individual in the population with s,
// folding it into this island's gene pool the way path-relinking-sourced
// migration is meant to: as one new competitive individual, not a wholesale
// population replacement. It updates the running best and resets the
// stagnation counter and exploration mode.
func (e *Engine) InjectMigrant(s *schedule.Schedule) {
	e.InjectMigrants([]*schedule.Schedule{s})
}

// InjectMigrants replaces the len(migrants) worst individuals in the
// population with the given schedules — the batch form used by the island
// model's migration round, which moves several schedules at once rather
// than one at a time. It also resets the stagnation counter and ends
// exploration mode.
func (e *Engine) InjectMigrants(migrants []*schedule.Schedule) {
	order := make([]int, len(e.population))
	for i := range order {
		order[i] = i
	}
	for i := 0; i < len(order); i++ {
		for j := i + 1; j < len(order); j++ {
			if e.population[order[j]].Schedule.Makespan > e.population[order[i]].Schedule.Makespan {
				order[i], order[j] = order[j], order[i]
			}
		}
	}
	for i, s := range migrants {
		if i >= len(order) {
			break
		}
		ind := &Individual{
			Assignment: append([]int(nil), s.Assignment...),
			Order:      append([]int(nil), s.Order...),
			Schedule:   s,
		}
		e.population[order[i]] = ind
	}
	e.stagnation = 0
	e.exploring = false
	e.explorationRemaining = 0
	e.updateBest()
}

// TopSchedules returns up to m schedules from this island's population,
// best makespan first — the donor side of the island model's batch
// migration.
func (e *Engine) TopSchedules(m int) []*schedule.Schedule {
	sorted := append([]*Individual(nil), e.population...)
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[j].Schedule.Makespan < sorted[i].Schedule.Makespan {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}
	if m > len(sorted) {
		m = len(sorted)
	}
	out := make([]*schedule.Schedule, m)
	for i := 0; i < m; i++ {
		out[i] = sorted[i].Schedule
	}
	return out
}

// Run executes up to generations rounds of selection, crossover, mutation,
// and memetic refinement, checking for cancellation once per generation.
func (e *Engine) Run(ctx context.Context, generations int) (*schedule.Schedule, error) {
	for g := 0; g < generations; g++ {
		if err := ctx.Err(); err != nil {
			return e.Best(), err
		}
		start := time.Now()

		next := make([]*Individual, 0, e.params.PopSize)
		next = append(next, e.best.clone()) // elitism

		for len(next) < e.params.PopSize {
			p1 := e.tournamentSelect()
			p2 := e.tournamentSelect()
			child := e.crossover(p1, p2)
			e.mutate(child)

			beatsParent := child.Schedule.Makespan < p1.Schedule.Makespan || child.Schedule.Makespan < p2.Schedule.Makespan

			applyLS := false
			if e.exploring {
				applyLS = e.rng.Float64() < e.params.LocalSearchProbNormal/5
			} else if beatsParent {
				applyLS = e.rng.Float64() < e.params.LocalSearchProbNormal
			}
			if applyLS {
				refined := localsearch.Improve(e.dag, child.Schedule)
				child.Assignment = refined.Assignment
				child.Schedule = refined
			}
			next = append(next, child)
		}

		prevMakespan := e.best.Schedule.Makespan
		e.population = next
		e.updateBest()
		e.generationStagnationUpdate(prevMakespan)

		e.instruments.GenerationDuration.Record(ctx, time.Since(start).Seconds())
		e.instruments.IncumbentMakespan.Record(ctx, e.best.Schedule.Makespan)
		e.log.Debug("generation complete", "generation", g, "incumbent_makespan", e.best.Schedule.Makespan, "stagnation", e.stagnation, "exploring", e.exploring)
	}
	return e.Best(), nil
}

func (e *Engine) updateBest() {
	for _, ind := range e.population {
		if e.best == nil || ind.Schedule.Makespan < e.best.Schedule.Makespan {
			e.best = ind
		}
	}
}

// generationStagnationUpdate advances the stagnation counter, starts
// exploration mode once it crosses StagnationThreshold, counts down the
// fixed exploration window, and ends exploration early the moment a new
// global best is found.
func (e *Engine) generationStagnationUpdate(prevMakespan float64) {
	improved := e.best.Schedule.Makespan < prevMakespan
	if improved {
		e.stagnation = 0
		if e.exploring {
			e.exploring = false
			e.explorationRemaining = 0
		}
	} else {
		e.stagnation++
	}

	if e.exploring {
		e.explorationRemaining--
		if e.explorationRemaining <= 0 {
			e.exploring = false
			e.log.Info("exploration window ended", "stagnation", e.stagnation)
		}
		return
	}
	if e.stagnation >= e.params.StagnationThreshold {
		e.instruments.StagnationEvents.Add(context.Background(), 1)
		e.log.Info("stagnation threshold reached, entering exploration mode", "stagnation", e.stagnation)
		e.exploring = true
		e.explorationRemaining = e.params.ExplorationDuration
	}
}

func (e *Engine) tournamentSelect() *Individual {
	best := e.population[e.rng.Intn(len(e.population))]
	for i := 1; i < e.params.TournamentSize; i++ {
		cand := e.population[e.rng.Intn(len(e.population))]
		if cand.Schedule.Makespan < best.Schedule.Makespan {
			best = cand
		}
	}
	return best
}

// crossover performs uniform crossover on the assignment vector; the
// order is inherited unchanged from the first parent.
func (e *Engine) crossover(p1, p2 *Individual) *Individual {
	assignment := make([]int, len(p1.Assignment))
	for i := range assignment {
		if e.rng.Float64() < 0.5 {
			assignment[i] = p1.Assignment[i]
		} else {
			assignment[i] = p2.Assignment[i]
		}
	}
	child := &Individual{Assignment: assignment, Order: append([]int(nil), p1.Order...)}
	if err := child.evaluate(e.dag); err != nil {
		// Invalid processor indices cannot occur since both parents were
		// evaluated successfully and assignment entries are copied
		// verbatim; Order is likewise inherited unchanged.
		panic(err)
	}
	return child
}

// mutate applies the OCT-guided reassignment independently to every gene
// at the current mutation rate, then independently considers an
// order-swap pass, re-evaluating only if something actually changed.
func (e *Engine) mutate(child *Individual) {
	mu := e.params.MutationRate
	if e.exploring {
		mu = min1(mu * 5)
	}

	changed := e.octMutate(child, mu)
	if e.rng.Float64() < e.params.OrderSwapOuterProb {
		changed = e.orderSwapMutate(child) || changed
	}
	if changed {
		if err := child.evaluate(e.dag); err != nil {
			panic(err)
		}
	}
}

// octMutate considers every task independently with probability mu,
// reassigning it to whichever processor minimizes its Optimistic Cost Table
// entry; if that processor is already the one assigned, the gene is
// perturbed anyway by reassigning to a uniformly random other processor, so
// an already-OCT-optimal gene still gets its share of exploration.
func (e *Engine) octMutate(child *Individual, mu float64) bool {
	changed := false
	for t := 0; t < e.dag.N; t++ {
		if e.rng.Float64() >= mu {
			continue
		}
		bestP := child.Assignment[t]
		bestCost := e.tbl.OCT[t][bestP]
		for p := 0; p < e.dag.M; p++ {
			if e.tbl.OCT[t][p] < bestCost {
				bestCost = e.tbl.OCT[t][p]
				bestP = p
			}
		}
		if bestP == child.Assignment[t] {
			if e.dag.M > 1 {
				bestP = e.randomOtherProcessor(child.Assignment[t])
			} else {
				continue
			}
		}
		child.Assignment[t] = bestP
		changed = true
	}
	return changed
}

// randomOtherProcessor picks a processor uniformly at random from every
// processor other than current.
func (e *Engine) randomOtherProcessor(current int) int {
	p := e.rng.Intn(e.dag.M - 1)
	if p >= current {
		p++
	}
	return p
}

// orderSwapMutate scans every adjacent pair in the order independently at
// OrderSwapInnerProb, swapping only when doing so keeps the order
// topologically valid: the later task must not be reachable from — i.e.
// depend on — the earlier one.
func (e *Engine) orderSwapMutate(child *Individual) bool {
	changed := false
	for i := 0; i+1 < len(child.Order); i++ {
		if e.rng.Float64() >= e.params.OrderSwapInnerProb {
			continue
		}
		a, b := child.Order[i], child.Order[i+1]
		if e.dag.Reachable(a, b) {
			continue // a is an ancestor of b; swapping would violate precedence
		}
		child.Order[i], child.Order[i+1] = b, a
		changed = true
	}
	return changed
}

func (e *Engine) randomAssignment() []int {
	assignment := make([]int, e.dag.N)
	for i := range assignment {
		assignment[i] = e.rng.Intn(e.dag.M)
	}
	return assignment
}

func min1(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}
