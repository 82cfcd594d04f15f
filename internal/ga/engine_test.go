package ga

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

func TestRunConvergesToCheapProcessor(t *testing.T) {
	d, tbl := buildSkewedChain(t)
	e, err := NewEngine(d, tbl, DefaultParams(), nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	best, err := e.Run(context.Background(), 40)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if best.Assignment[1] != 1 {
		t.Errorf("expected task 1 on its cheap processor, assignment = %v (makespan %v)", best.Assignment, best.Makespan)
	}
}

func TestRunNeverRegressesBest(t *testing.T) {
	d, tbl := buildSkewedChain(t)
	e, err := NewEngine(d, tbl, DefaultParams(), nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	prev := e.Best().Makespan
	for g := 0; g < 20; g++ {
		best, err := e.Run(context.Background(), 1)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if best.Makespan > prev {
			t.Fatalf("generation %d regressed: %v -> %v", g, prev, best.Makespan)
		}
		prev = best.Makespan
	}
}

func TestRunRespectsContextCancellation(t *testing.T) {
	d, tbl := buildSkewedChain(t)
	e, err := NewEngine(d, tbl, DefaultParams(), nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Run(ctx, 5); err == nil {
		t.Fatal("expected an error from a pre-cancelled context")
	}
}

func TestOrderSwapMutationNeverProducesInvalidOrder(t *testing.T) {
	d, tbl := buildSkewedChain(t)
	params := DefaultParams()
	params.MutationRate = 0
	params.OrderSwapOuterProb = 1
	params.OrderSwapInnerProb = 1 // always exercise the order-swap branch
	e, err := NewEngine(d, tbl, params, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if _, err := e.Run(context.Background(), 20); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Evaluate would have returned ErrInvalidOrder (surfaced as a panic in
	// evaluate's caller, mutate) had a swap ever broken precedence; reaching
	// here means every swap across 20 generations stayed legal.
}
