// Package island runs several ga.Engine populations in lockstep, each
// evolving independently, and migrates a batch of schedules between
// islands only when one of them actually stagnates — never on a fixed
// interval. The migrant batch is the best island's top schedules plus one
// path-relinking trajectory from the stagnating island's best toward the
// best island's best, and it replaces the stagnating island's worst
// individuals in one round, not a single individual at a time.
package island

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/swarmguard/dagsched/internal/checkpoint"
	"github.com/swarmguard/dagsched/internal/dagmodel"
	"github.com/swarmguard/dagsched/internal/ga"
	"github.com/swarmguard/dagsched/internal/heuristics"
	"github.com/swarmguard/dagsched/internal/relink"
	"github.com/swarmguard/dagsched/internal/schedule"
)

// defaultMigrationSize is M: the number of top donor schedules pulled from
// the best island on each migration round, on top of the one relinked
// migrant, for M+1 schedules replaced per stagnating island.
const defaultMigrationSize = 2

// Model owns a fixed set of islands (independent GA populations).
type Model struct {
	dag           *dagmodel.DAG
	islands       []*ga.Engine
	migrationSize int
	rng           *rand.Rand
	log           *slog.Logger

	checkpoint      *checkpoint.Store
	runID           string
	checkpointEvery int
}

// NewModel builds numIslands independent GA engines, each seeded with the
// same starting schedule (if provided) but a distinct RNG seed derived
// from params.Seed so islands diverge from the first generation.
func NewModel(dag *dagmodel.DAG, tbl *heuristics.Tables, params ga.Params, numIslands int, seed *schedule.Schedule) (*Model, error) {
	if numIslands < 1 {
		return nil, fmt.Errorf("island: numIslands must be positive, got %d", numIslands)
	}
	islands := make([]*ga.Engine, numIslands)
	for i := range islands {
		p := params
		p.Seed = params.Seed + int64(i)
		e, err := ga.NewEngine(dag, tbl, p, seed)
		if err != nil {
			return nil, err
		}
		islands[i] = e
	}
	return &Model{
		dag:           dag,
		islands:       islands,
		migrationSize: defaultMigrationSize,
		rng:           rand.New(rand.NewSource(params.Seed)),
		log:           slog.Default().With("component", "island"),
	}, nil
}

// SetCheckpoint configures periodic snapshotting of the overall best
// schedule to store, every checkpointEvery rounds, under runID. Passing a
// nil store disables checkpointing. The caller owns the store's lifetime.
func (m *Model) SetCheckpoint(store *checkpoint.Store, runID string, checkpointEvery int) {
	m.checkpoint = store
	m.runID = runID
	m.checkpointEvery = checkpointEvery
}

// Best returns the best schedule found across every island so far.
func (m *Model) Best() *schedule.Schedule {
	var best *schedule.Schedule
	for _, isl := range m.islands {
		b := isl.Best()
		if b == nil {
			continue
		}
		if best == nil || b.Makespan < best.Makespan {
			best = b
		}
	}
	return best
}

// Run advances every island by generationsPerRound generations, rounds
// times, and after each round migrates a batch into any island that is
// currently stagnating (Exploring() true), sourced from whichever island
// currently holds the best schedule overall.
func (m *Model) Run(ctx context.Context, generationsPerRound, rounds int) (*schedule.Schedule, error) {
	for r := 0; r < rounds; r++ {
		if err := ctx.Err(); err != nil {
			return m.Best(), err
		}
		for _, isl := range m.islands {
			if _, err := isl.Run(ctx, generationsPerRound); err != nil {
				return m.Best(), err
			}
		}
		m.migrateStagnating()

		if m.checkpoint != nil && m.checkpointEvery > 0 && (r+1)%m.checkpointEvery == 0 {
			m.saveCheckpoint(ctx, r)
		}
	}
	return m.Best(), nil
}

// saveCheckpoint snapshots the overall best schedule found so far so a
// long island run can resume after a crash without replaying every prior
// round.
func (m *Model) saveCheckpoint(ctx context.Context, round int) {
	best := m.Best()
	if best == nil {
		return
	}
	snap := checkpoint.Snapshot{
		RunID:      m.runID,
		Generation: round,
		Makespan:   best.Makespan,
		Assignment: append([]int(nil), best.Assignment...),
		Order:      append([]int(nil), best.Order...),
		SavedAt:    time.Now().Unix(),
	}
	if err := m.checkpoint.Save(ctx, snap); err != nil {
		m.log.Warn("checkpoint save failed", "round", round, "error", err)
	}
}

// migrateStagnating identifies the island holding the best schedule, then
// for every other island whose stagnation has triggered exploration mode,
// relinks that island's best toward the best island's best to produce one
// migrant, and replaces the stagnating island's M+1 worst individuals with
// the best island's top-M schedules plus that migrant.
func (m *Model) migrateStagnating() {
	bestIdx := m.bestIslandIndex()
	if bestIdx < 0 {
		return
	}
	bestIsland := m.islands[bestIdx]
	bestSchedule := bestIsland.Best()

	for i, isl := range m.islands {
		if i == bestIdx || !isl.Exploring() {
			continue
		}
		migrant, err := relink.Relink(m.dag, isl.Best(), bestSchedule, m.rng)
		if err != nil {
			continue
		}
		batch := append(bestIsland.TopSchedules(m.migrationSize), migrant)
		isl.InjectMigrants(batch)
		m.log.Info("migrated batch into stagnating island", "island", i, "source_island", bestIdx, "batch_size", len(batch))
	}
}

// bestIslandIndex returns the index of the island currently holding the
// best schedule, or -1 if no island has produced one yet.
func (m *Model) bestIslandIndex() int {
	idx := -1
	var best *schedule.Schedule
	for i, isl := range m.islands {
		b := isl.Best()
		if b == nil {
			continue
		}
		if best == nil || b.Makespan < best.Makespan {
			best = b
			idx = i
		}
	}
	return idx
}
