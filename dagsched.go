// Package dagsched is the public facade over the heterogeneous
// multiprocessor DAG scheduling engines: DAG loading, the PEFT/HEFT list
// schedulers, the MMAS-AS_rank ant colony, the memetic island-model
// genetic algorithm, and the single-population genetic engine beneath it.
// The facade owns no algorithmic state of its own — it validates inputs,
// opens a trace span, and delegates to the internal package that matches
// the operation.
package dagsched

import (
	"context"

	"github.com/swarmguard/dagsched/internal/aco"
	"github.com/swarmguard/dagsched/internal/checkpoint"
	"github.com/swarmguard/dagsched/internal/config"
	"github.com/swarmguard/dagsched/internal/constructors"
	"github.com/swarmguard/dagsched/internal/dagmodel"
	"github.com/swarmguard/dagsched/internal/ga"
	"github.com/swarmguard/dagsched/internal/heuristics"
	"github.com/swarmguard/dagsched/internal/island"
	"github.com/swarmguard/dagsched/internal/schedule"
	"github.com/swarmguard/dagsched/internal/telemetry"
)

// Schedule is the result of any scheduling operation: a concrete
// processor assignment, execution order, and the timeline it produces.
type Schedule = schedule.Schedule

// ACOParams configures ACORun. See internal/aco.Params for field docs.
type ACOParams = aco.Params

// GAParams configures GARun and IslandRun. See internal/ga.Params for
// field docs.
type GAParams = ga.Params

// DefaultACOParams returns the ant colony's tuning parameters as loaded by
// internal/config: viper-registered defaults overridable by dagsched.yaml
// or DAGSCHED_ACO_* environment variables.
func DefaultACOParams() ACOParams { return config.Load().ACO.ToParams() }

// DefaultGAParams returns the genetic engine's tuning parameters as loaded
// by internal/config: viper-registered defaults overridable by
// dagsched.yaml or DAGSCHED_GA_* environment variables.
func DefaultGAParams() GAParams { return config.Load().GA.ToParams() }

// LoadDAG reads a DAG description from path. See internal/dagmodel for the
// accepted text format.
func LoadDAG(path string) (*dagmodel.DAG, error) {
	return dagmodel.Load(path)
}

// tables builds the heuristic cache a run needs once per DAG.
func tables(dag *dagmodel.DAG) (*heuristics.Tables, error) {
	return heuristics.NewTables(dag)
}

// PEFTSchedule builds an initial schedule with the PEFT list-scheduling
// heuristic: rank order by optimistic remaining cost, processor choice by
// earliest finish time plus that cost's lookahead.
func PEFTSchedule(dag *dagmodel.DAG) (*Schedule, error) {
	tbl, err := tables(dag)
	if err != nil {
		return nil, err
	}
	return constructors.PEFT(dag, tbl)
}

// HEFTSchedule builds an initial schedule with the HEFT list-scheduling
// heuristic: rank order by Upward Rank, processor choice by earliest
// finish time.
func HEFTSchedule(dag *dagmodel.DAG) (*Schedule, error) {
	tbl, err := tables(dag)
	if err != nil {
		return nil, err
	}
	return constructors.HEFT(dag, tbl)
}

// ACORun runs the MMAS-AS_rank ant colony for the given number of
// generations, returning the best schedule found and the per-generation
// incumbent makespan series.
func ACORun(ctx context.Context, dag *dagmodel.DAG, params ACOParams, generations int) (*Schedule, []float64, error) {
	ctx, end := telemetry.WithSpan(ctx, "dagsched.aco_run")
	defer end()

	tbl, err := tables(dag)
	if err != nil {
		return nil, nil, err
	}
	engine := aco.NewEngine(dag, tbl, params)
	return engine.Run(ctx, generations)
}

// GARun runs the memetic single-population genetic engine for the given
// number of generations, returning the best schedule found and the
// per-generation incumbent makespan series.
func GARun(ctx context.Context, dag *dagmodel.DAG, params GAParams, generations int) (*Schedule, []float64, error) {
	ctx, end := telemetry.WithSpan(ctx, "dagsched.ga_run")
	defer end()

	tbl, err := tables(dag)
	if err != nil {
		return nil, nil, err
	}
	seed, err := constructors.PEFT(dag, tbl)
	if err != nil {
		return nil, nil, err
	}
	engine, err := ga.NewEngine(dag, tbl, params, seed)
	if err != nil {
		return nil, nil, err
	}

	series := make([]float64, 0, generations)
	for g := 0; g < generations; g++ {
		best, err := engine.Run(ctx, 1)
		if err != nil {
			return best, series, err
		}
		series = append(series, best.Makespan)
	}
	return engine.Best(), series, nil
}

// IslandParams configures IslandRun: the per-island genetic engine
// parameters, the island topology, and optional checkpointing.
type IslandParams struct {
	GA                  GAParams
	NumIslands          int
	GenerationsPerRound int
	Rounds              int

	// RunID identifies this run's checkpoint snapshots. CheckpointPath, if
	// non-empty, opens a local BoltDB snapshot store and saves the overall
	// best schedule every CheckpointEvery rounds.
	RunID           string
	CheckpointPath  string
	CheckpointEvery int
}

// DefaultIslandParams returns the island topology and genetic engine
// parameters as loaded by internal/config: viper-registered defaults
// overridable by dagsched.yaml or DAGSCHED_ISLAND_*/DAGSCHED_GA_*
// environment variables.
func DefaultIslandParams() IslandParams {
	cfg := config.Load()
	return IslandParams{
		GA:                  cfg.GA.ToParams(),
		NumIslands:          cfg.Island.NumIslands,
		GenerationsPerRound: cfg.Island.GenerationsPerRound,
		Rounds:              cfg.Island.Rounds,
		RunID:               cfg.Island.RunID,
		CheckpointPath:      cfg.Island.CheckpointPath,
		CheckpointEvery:     cfg.Island.CheckpointEvery,
	}
}

// IslandRun runs the memetic island model: NumIslands independent
// populations evolved in lockstep, migrating on demand whenever an island
// stagnates. It returns only the best schedule found, with no convergence
// series (each island converges on its own schedule).
func IslandRun(ctx context.Context, dag *dagmodel.DAG, params IslandParams) (*Schedule, error) {
	ctx, end := telemetry.WithSpan(ctx, "dagsched.island_run")
	defer end()

	tbl, err := tables(dag)
	if err != nil {
		return nil, err
	}
	seed, err := constructors.PEFT(dag, tbl)
	if err != nil {
		return nil, err
	}
	model, err := island.NewModel(dag, tbl, params.GA, params.NumIslands, seed)
	if err != nil {
		return nil, err
	}

	if params.CheckpointPath != "" {
		store, err := checkpoint.Open(params.CheckpointPath, nil)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		model.SetCheckpoint(store, params.RunID, params.CheckpointEvery)
	}

	return model.Run(ctx, params.GenerationsPerRound, params.Rounds)
}
