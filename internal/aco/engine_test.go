package aco

import (
	"context"
	"testing"

	"github.com/swarmguard/dagsched/internal/dagmodel"
	"github.com/swarmguard/dagsched/internal/heuristics"
)

func buildSkewedChain(t *testing.T) (*dagmodel.DAG, *heuristics.Tables) {
	t.Helper()
	tasks := []dagmodel.Task{
		{ID: 0, Comp: []float64{1, 1}, Succ: []int{1}, Volume: map[int]float64{1: 0}},
		{ID: 1, Comp: []float64{20, 2}, Pred: []int{0}, Succ: []int{2}, Volume: map[int]float64{2: 0}},
		{ID: 2, Comp: []float64{1, 1}, Pred: []int{1}, Volume: map[int]float64{}},
	}
	r := [][]float64{{0, 0}, {0, 0}}
	d, err := dagmodel.New(2, tasks, r)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tbl, err := heuristics.NewTables(d)
	if err != nil {
		t.Fatalf("NewTables: %v", err)
	}
	return d, tbl
}

func TestRunFindsCheapProcessorForSkewedTask(t *testing.T) {
	d, tbl := buildSkewedChain(t)
	e := NewEngine(d, tbl, DefaultParams())
	best, _, err := e.Run(context.Background(), 30)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if best.Assignment[1] != 1 {
		t.Errorf("expected task 1 on its cheap processor, assignment = %v (makespan %v)", best.Assignment, best.Makespan)
	}
}

func TestRunIsReproducibleUnderSameSeed(t *testing.T) {
	d, tbl := buildSkewedChain(t)
	params := DefaultParams()
	params.Seed = 42

	e1 := NewEngine(d, tbl, params)
	best1, _, err := e1.Run(context.Background(), 10)
	if err != nil {
		t.Fatalf("Run 1: %v", err)
	}

	e2 := NewEngine(d, tbl, params)
	best2, _, err := e2.Run(context.Background(), 10)
	if err != nil {
		t.Fatalf("Run 2: %v", err)
	}

	if best1.Makespan != best2.Makespan {
		t.Fatalf("makespans diverged under the same seed: %v vs %v", best1.Makespan, best2.Makespan)
	}
	for i := range best1.Assignment {
		if best1.Assignment[i] != best2.Assignment[i] {
			t.Fatalf("assignments diverged under the same seed: %v vs %v", best1.Assignment, best2.Assignment)
		}
	}
}

func TestRunRespectsContextCancellation(t *testing.T) {
	d, tbl := buildSkewedChain(t)
	e := NewEngine(d, tbl, DefaultParams())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := e.Run(ctx, 10)
	if err == nil {
		t.Fatal("expected an error from a pre-cancelled context")
	}
}

func TestPheromoneStaysWithinMMASBounds(t *testing.T) {
	d, tbl := buildSkewedChain(t)
	e := NewEngine(d, tbl, DefaultParams())
	if _, _, err := e.Run(context.Background(), 50); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if e.best == nil {
		t.Fatal("expected a best schedule after 50 generations")
	}
	for i := range e.tau {
		for p, v := range e.tau[i] {
			if v < e.tauMin-1e-6 || v > e.tauMax+1e-6 {
				t.Errorf("tau[%d][%d] = %v, want within [%v, %v]", i, p, v, e.tauMin, e.tauMax)
			}
		}
	}
}

func TestRunIsReproducibleAcrossParallelismLevels(t *testing.T) {
	d, tbl := buildSkewedChain(t)
	params := DefaultParams()
	params.Seed = 7
	params.Parallelism = 1
	e1 := NewEngine(d, tbl, params)
	best1, _, err := e1.Run(context.Background(), 10)
	if err != nil {
		t.Fatalf("Run (parallelism=1): %v", err)
	}

	params.Parallelism = 8
	e2 := NewEngine(d, tbl, params)
	best2, _, err := e2.Run(context.Background(), 10)
	if err != nil {
		t.Fatalf("Run (parallelism=8): %v", err)
	}

	if best1.Makespan != best2.Makespan {
		t.Fatalf("makespan depends on worker count: %v (1 worker) vs %v (8 workers)", best1.Makespan, best2.Makespan)
	}
}

func TestRunTerminatesEarlyOnConvergence(t *testing.T) {
	d, tbl := buildSkewedChain(t)
	params := DefaultParams()
	params.ConvergenceLimit = 5
	e := NewEngine(d, tbl, params)
	_, series, err := e.Run(context.Background(), 1000)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(series) >= 1000 {
		t.Errorf("expected convergence to stop the run well before 1000 generations, ran %d", len(series))
	}
}
