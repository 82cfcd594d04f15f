package aco

// Params configures one Engine run. The zero value is not usable; callers
// should start from DefaultParams and override only what they need.
type Params struct {
	NumAnts int
	Alpha   float64 // pheromone weight
	Beta    float64 // heuristic weight
	Rho     float64 // evaporation rate, in (0,1]

	Q0         float64 // initial pseudo-random-proportional greedy probability
	Q0InitMark float64 // recorded copy of the initial Q0, restored on hard stagnation or a post-soft-decay improvement

	RankSize      int     // number of best ants per generation that deposit (K)
	ElitistWeight float64 // w: elitist deposit weight, linearly decayed across the run

	SoftStagnation int     // S_soft: generations without improvement before q0 softens
	HardStagnation int     // S_hard: generations without improvement before the incumbent-mutation injection fires
	HardMutateRate float64 // per-task reassignment probability applied to G when hard stagnation fires

	ConvergenceEps   float64 // ε_conv: incumbent deltas below this count toward stagnation-of-convergence
	ConvergenceLimit int     // K_conv: consecutive converged generations before early termination

	// Parallelism is the number of worker goroutines used to construct a
	// generation's ants concurrently (each ant only reads tau and owns its
	// own state, so construction is embarrassingly parallel; the
	// pheromone update is a sequential reduction barrier afterward). 1
	// runs construction on the calling goroutine.
	Parallelism int

	Seed int64

	// RunID identifies this run's checkpoint snapshots. CheckpointPath, if
	// non-empty, opens a local BoltDB snapshot store and saves the
	// incumbent every CheckpointEvery generations (0 disables
	// checkpointing even if a path is set).
	RunID           string
	CheckpointPath  string
	CheckpointEvery int
}

// DefaultParams mirrors the defaults named directly in the component
// design: soft/hard stagnation at 25/50 generations, convergence
// termination after 30 flat generations.
func DefaultParams() Params {
	q0 := 0.7
	return Params{
		NumAnts:          20,
		Alpha:            1.0,
		Beta:             2.0,
		Rho:              0.1,
		Q0:               q0,
		Q0InitMark:       q0,
		RankSize:         5,
		ElitistWeight:    2.0,
		SoftStagnation:   25,
		HardStagnation:   50,
		HardMutateRate:   0.05,
		ConvergenceEps:   1e-6,
		ConvergenceLimit: 30,
		Parallelism:      4,
		Seed:             1,
	}
}
