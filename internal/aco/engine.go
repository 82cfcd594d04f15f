// Package aco implements MMAS-AS_rank: a Max-Min Ant System driven by a
// composite heuristic of each task's Upward Rank and earliest finish time,
// with rank-based plus elitist pheromone deposit and adaptive stagnation
// handling.
package aco

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/swarmguard/dagsched/internal/checkpoint"
	"github.com/swarmguard/dagsched/internal/constructors"
	"github.com/swarmguard/dagsched/internal/dagmodel"
	"github.com/swarmguard/dagsched/internal/heuristics"
	"github.com/swarmguard/dagsched/internal/localsearch"
	"github.com/swarmguard/dagsched/internal/schedule"
	"github.com/swarmguard/dagsched/internal/telemetry"
)

const epsilon = 1e-9

// Engine owns the pheromone matrix and stagnation state across a run.
type Engine struct {
	dag    *dagmodel.DAG
	tbl    *heuristics.Tables
	params Params

	tau            [][]float64
	tauMin, tauMax float64
	rng            *rand.Rand

	best       *schedule.Schedule
	stagnation int
	kappa      int // convergence counter
	q0         float64

	pendingInjection *schedule.Schedule
	prevIncumbent    float64

	log         *slog.Logger
	instruments telemetry.Instruments
	checkpoint  *checkpoint.Store
}

// NewEngine builds an Engine. Pheromone bounds follow MMAS: tau starts at
// tauMax everywhere, where tauMax = 1/(rho*M0) and M0 is the makespan of an
// initial PEFT schedule, fixed for the life of the run. tauMin follows the
// standard p_best-derived formula, with n the number of processors acting
// as the average branching factor of the construction graph.
func NewEngine(dag *dagmodel.DAG, tbl *heuristics.Tables, params Params) *Engine {
	m0 := 1.0
	if seed, err := constructors.PEFT(dag, tbl); err == nil && seed.Makespan > 0 {
		m0 = seed.Makespan
	}
	tauMax := 1.0 / (params.Rho * math.Max(m0, epsilon))

	n := float64(dag.M)
	pBest := math.Pow(1.0/n, 1.0/n)
	pBestRoot := math.Pow(pBest, 1.0/n)
	denom := (n/2 - 1) * pBestRoot
	tauMin := tauMax * 0.1
	if denom > epsilon {
		tauMin = tauMax * (1 - pBestRoot) / denom
	}
	if tauMin < 0 || tauMin > tauMax {
		tauMin = tauMax * 0.1
	}

	tau := make([][]float64, dag.N)
	for i := range tau {
		tau[i] = make([]float64, dag.M)
		for p := range tau[i] {
			tau[i][p] = tauMax
		}
	}
	e := &Engine{
		dag:           dag,
		tbl:           tbl,
		params:        params,
		tau:           tau,
		tauMin:        tauMin,
		tauMax:        tauMax,
		rng:           rand.New(rand.NewSource(params.Seed)),
		q0:            params.Q0,
		prevIncumbent: math.Inf(1),
		log:           slog.Default().With("component", "aco"),
		instruments:   telemetry.DefaultInstruments(),
	}
	if params.CheckpointPath != "" {
		store, err := checkpoint.Open(params.CheckpointPath, nil)
		if err != nil {
			e.log.Warn("checkpoint store open failed, continuing without checkpointing", "error", err)
		} else {
			e.checkpoint = store
		}
	}
	return e
}

// Best returns the best schedule found so far, or nil if Run has not been
// called yet.
func (e *Engine) Best() *schedule.Schedule { return e.best }

// Run executes up to generations rounds of ant construction and pheromone
// update, stopping early if ctx is cancelled (checked once per generation)
// or if the incumbent has converged (kappa reaches ConvergenceLimit). It
// returns the best schedule found and the per-generation incumbent
// makespan series actually completed.
func (e *Engine) Run(ctx context.Context, generations int) (*schedule.Schedule, []float64, error) {
	if e.checkpoint != nil {
		defer e.checkpoint.Close()
	}
	series := make([]float64, 0, generations)
	for g := 0; g < generations; g++ {
		if err := ctx.Err(); err != nil {
			return e.best, series, err
		}
		start := time.Now()

		ants, err := e.constructGeneration()
		if err != nil {
			return e.best, series, err
		}
		if e.pendingInjection != nil {
			sort.Slice(ants, func(i, j int) bool { return ants[i].Makespan < ants[j].Makespan })
			ants[len(ants)-1] = e.pendingInjection
			e.pendingInjection = nil
		}
		sort.Slice(ants, func(i, j int) bool { return ants[i].Makespan < ants[j].Makespan })

		improved := e.considerIncumbent(ants[0])
		e.updatePheromone(ants, g, generations)
		e.updateAdaptiveState(improved)

		series = append(series, e.best.Makespan)
		e.instruments.GenerationDuration.Record(ctx, time.Since(start).Seconds())
		e.instruments.IncumbentMakespan.Record(ctx, e.best.Makespan)
		e.log.Debug("generation complete", "generation", g, "incumbent_makespan", e.best.Makespan, "stagnation", e.stagnation, "kappa", e.kappa)
		if e.checkpoint != nil && e.params.CheckpointEvery > 0 && (g+1)%e.params.CheckpointEvery == 0 {
			e.saveCheckpoint(ctx, g)
		}
		if e.kappa >= e.params.ConvergenceLimit {
			e.log.Info("converged, stopping early", "generation", g, "kappa", e.kappa)
			break
		}
	}
	return e.best, series, nil
}

// saveCheckpoint snapshots the current incumbent so a long run can resume
// after a crash without replaying every prior generation.
func (e *Engine) saveCheckpoint(ctx context.Context, gen int) {
	snap := checkpoint.Snapshot{
		RunID:      e.params.RunID,
		Generation: gen,
		Makespan:   e.best.Makespan,
		Assignment: append([]int(nil), e.best.Assignment...),
		Order:      append([]int(nil), e.best.Order...),
		TauMin:     e.tauMin,
		TauMax:     e.tauMax,
		SavedAt:    time.Now().Unix(),
	}
	if err := e.checkpoint.Save(ctx, snap); err != nil {
		e.log.Warn("checkpoint save failed", "generation", gen, "error", err)
	}
}

// constructGeneration builds one ant per NumAnts, distributed across a
// fixed worker pool the way the teacher's DAG engine distributes task
// execution across workers: a channel of work items, a pool of goroutines
// draining it, and a results slice the caller reduces afterward.
// Construction only reads tau and the caches, never writes them, so no
// synchronization is needed beyond collecting results; each ant gets its
// own *rand.Rand, seeded deterministically from the engine's main RNG
// before dispatch, so the generation stays reproducible under a fixed
// seed regardless of goroutine scheduling order.
func (e *Engine) constructGeneration() ([]*schedule.Schedule, error) {
	workers := e.params.Parallelism
	if workers < 1 {
		workers = 1
	}
	if workers > e.params.NumAnts {
		workers = e.params.NumAnts
	}

	rngs := make([]*rand.Rand, e.params.NumAnts)
	for i := range rngs {
		rngs[i] = rand.New(rand.NewSource(e.rng.Int63()))
	}

	ants := make([]*schedule.Schedule, e.params.NumAnts)
	errs := make([]error, e.params.NumAnts)

	work := make(chan int, e.params.NumAnts)
	for i := 0; i < e.params.NumAnts; i++ {
		work <- i
	}
	close(work)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				ants[i], errs[i] = e.constructAnt(rngs[i])
			}
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return ants, nil
}

// considerIncumbent applies critical-path local search to the generation's
// best ant only when it already beats the current incumbent G, accepting
// the refined result as the new G (which can only help, since local search
// never worsens a schedule).
func (e *Engine) considerIncumbent(bStar *schedule.Schedule) bool {
	if e.best != nil && bStar.Makespan >= e.best.Makespan {
		return false
	}
	refined := localsearch.Improve(e.dag, bStar.Clone())
	e.best = refined
	return true
}

// action is one candidate (task, processor) pair in the joint selection
// space the ant chooses from at each step.
type action struct {
	t, p int
	d    float64
}

// constructAnt builds one complete assignment by repeatedly choosing a
// (task, processor) pair jointly from the ready set (tasks whose
// predecessors are all already scheduled) crossed with every processor,
// via pseudo-random-proportional selection over desirability
// d(t,p) = tau(t,p)^alpha * eta(t,p)^beta, where eta(t,p) = UpwardRank[t] /
// EFT(t,p): exploitation picks argmax d(t,p) (ties broken by lower task id,
// then lower processor id), exploration rolls a roulette wheel over every
// ready (t,p) pair. If every pair in the ready set has zero or non-finite
// desirability, a pair is picked uniformly at random instead. If the ready
// set empties before every task is placed, ErrConstructionStuck is
// returned.
func (e *Engine) constructAnt(rng *rand.Rand) (*schedule.Schedule, error) {
	assignment := make([]int, e.dag.N)
	procReady := make([]float64, e.dag.M)
	finish := make([]float64, e.dag.N)
	order := make([]int, 0, e.dag.N)

	indegree := make([]int, e.dag.N)
	var ready []int
	for t := 0; t < e.dag.N; t++ {
		indegree[t] = len(e.dag.Tasks[t].Pred)
		if indegree[t] == 0 {
			ready = append(ready, t)
		}
	}

	for len(ready) > 0 {
		sort.Ints(ready)

		actions := make([]action, 0, len(ready)*e.dag.M)
		total := 0.0
		bestIdx := -1
		for _, t := range ready {
			for p := 0; p < e.dag.M; p++ {
				eftVal := eft(e.dag, t, p, assignment, procReady, finish)
				eta := e.tbl.UpwardRank[t] / math.Max(eftVal, epsilon)
				d := math.Pow(e.tau[t][p], e.params.Alpha) * math.Pow(eta, e.params.Beta)
				if math.IsNaN(d) || math.IsInf(d, 0) {
					d = 0
				}
				actions = append(actions, action{t: t, p: p, d: d})
				total += d
				if bestIdx < 0 || d > actions[bestIdx].d {
					bestIdx = len(actions) - 1
				}
			}
		}
		var chosen action
		if total <= 0 {
			chosen = actions[rng.Intn(len(actions))]
		} else if rng.Float64() < e.q0 {
			chosen = actions[bestIdx]
		} else {
			r := rng.Float64() * total
			acc := 0.0
			chosen = actions[len(actions)-1]
			for _, a := range actions {
				acc += a.d
				if r <= acc {
					chosen = a
					break
				}
			}
		}

		assignment[chosen.t] = chosen.p
		procReady[chosen.p] = eft(e.dag, chosen.t, chosen.p, assignment, procReady, finish)
		finish[chosen.t] = procReady[chosen.p]
		order = append(order, chosen.t)

		next := ready[:0]
		for _, r := range ready {
			if r != chosen.t {
				next = append(next, r)
			}
		}
		ready = next
		for _, succ := range e.dag.Tasks[chosen.t].Succ {
			indegree[succ]--
			if indegree[succ] == 0 {
				ready = append(ready, succ)
			}
		}
	}
	if len(order) < e.dag.N {
		return nil, ErrConstructionStuck
	}

	return schedule.Evaluate(e.dag, assignment, order)
}

// updatePheromone evaporates the whole matrix, deposits rank-based
// contributions from the RankSize best ants of this generation weighted
// (K-k+1)/makespan_k, deposits an elitist bonus for the incumbent that
// linearly decays across the run, then clamps every cell to [tauMin,
// tauMax] (both fixed for the life of the run, per MMAS).
func (e *Engine) updatePheromone(ants []*schedule.Schedule, gen, generations int) {
	for i := range e.tau {
		for p := range e.tau[i] {
			e.tau[i][p] *= 1 - e.params.Rho
		}
	}

	rankSize := e.params.RankSize
	if rankSize > len(ants) {
		rankSize = len(ants)
	}
	for r := 0; r < rankSize; r++ {
		weight := float64(rankSize - r + 1)
		amount := weight / math.Max(ants[r].Makespan, epsilon)
		deposit(e.tau, ants[r], amount)
	}

	if e.best != nil {
		progress := float64(gen) / math.Max(float64(generations), 1)
		amount := e.params.ElitistWeight * (1 / math.Max(e.best.Makespan, epsilon)) * (1 - progress)
		deposit(e.tau, e.best, amount)
	}

	clamped := int64(0)
	for i := range e.tau {
		for p := range e.tau[i] {
			before := e.tau[i][p]
			e.tau[i][p] = clamp(before, e.tauMin, e.tauMax)
			if e.tau[i][p] != before {
				clamped++
			}
		}
	}
	if clamped > 0 {
		e.instruments.PheromoneClampEvents.Add(context.Background(), clamped)
	}
}

// updateAdaptiveState advances the stagnation counter sigma and the
// convergence counter kappa, applies q0's decay/recovery schedule, and
// fires the soft- and hard-stagnation responses.
func (e *Engine) updateAdaptiveState(improved bool) {
	if improved {
		e.stagnation = 0
		if e.q0 < e.params.Q0InitMark {
			e.q0 = e.params.Q0InitMark
		} else {
			e.q0 = math.Min(0.98, e.q0/0.95)
		}
	} else {
		e.stagnation++
	}

	if e.best != nil {
		if math.Abs(e.best.Makespan-e.prevIncumbent) < e.params.ConvergenceEps {
			e.kappa++
		} else {
			e.kappa = 0
		}
		e.prevIncumbent = e.best.Makespan
	}

	if e.best == nil {
		return
	}
	if e.stagnation >= e.params.HardStagnation {
		e.instruments.StagnationEvents.Add(context.Background(), 1)
		e.log.Info("hard stagnation, injecting mutated incumbent", "stagnation", e.stagnation)
		e.pendingInjection = e.mutateIncumbent()
		e.stagnation = 0
		e.kappa = 0
		e.q0 = e.params.Q0InitMark
		return
	}
	if e.stagnation >= e.params.SoftStagnation {
		e.instruments.StagnationEvents.Add(context.Background(), 1)
		e.q0 = math.Max(e.params.Q0InitMark*0.3, e.q0*0.9)
		if e.diversityLow() {
			e.log.Info("soft stagnation with low diversity, randomizing pheromone", "stagnation", e.stagnation)
			e.randomizePheromoneFraction(0.3)
		}
	}
}

// mutateIncumbent clones G and reassigns each task to a random processor
// at HardMutateRate, the escape move injected into the next generation's
// ant pool when the search has been stuck for HardStagnation generations.
func (e *Engine) mutateIncumbent() *schedule.Schedule {
	assignment := append([]int(nil), e.best.Assignment...)
	for t := range assignment {
		if e.rng.Float64() < e.params.HardMutateRate {
			assignment[t] = e.rng.Intn(e.dag.M)
		}
	}
	mutated, err := schedule.Evaluate(e.dag, assignment, e.best.Order)
	if err != nil {
		return e.best.Clone()
	}
	return mutated
}

// diversityLow reports whether the pheromone matrix has collapsed toward a
// single dominant choice per task, approximated by checking whether most
// tasks have one processor holding the large majority of that task's
// pheromone mass.
func (e *Engine) diversityLow() bool {
	collapsed := 0
	for t := range e.tau {
		sum, max := 0.0, 0.0
		for _, v := range e.tau[t] {
			sum += v
			if v > max {
				max = v
			}
		}
		if sum > epsilon && max/sum > 0.8 {
			collapsed++
		}
	}
	return float64(collapsed)/float64(len(e.tau)) > 0.5
}

// randomizePheromoneFraction resets a random fraction of (task, processor)
// cells to a uniform random value within [tauMin, tauMax], the soft-
// stagnation diversification step.
func (e *Engine) randomizePheromoneFraction(fraction float64) {
	for t := range e.tau {
		for p := range e.tau[t] {
			if e.rng.Float64() < fraction {
				e.tau[t][p] = e.tauMin + e.rng.Float64()*(e.tauMax-e.tauMin)
			}
		}
	}
}

func deposit(tau [][]float64, s *schedule.Schedule, amount float64) {
	for t, p := range s.Assignment {
		tau[t][p] += amount
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// eft is the earliest finish time of task t on processor p given the
// partial schedule's assignment/procReady/finish state, matching the
// evaluator's own procReady-vs-maxData recurrence.
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
