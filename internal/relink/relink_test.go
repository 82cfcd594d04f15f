package relink

import (
	"math/rand"
	"testing"

	"github.com/swarmguard/dagsched/internal/dagmodel"
	"github.com/swarmguard/dagsched/internal/schedule"
)

func buildSkewedChain(t *testing.T) *dagmodel.DAG {
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
	return d
}

func TestRelinkNeverReturnsWorseThanSource(t *testing.T) {
	d := buildSkewedChain(t)
	order := []int{0, 1, 2}
	source, err := schedule.Evaluate(d, []int{0, 0, 0}, order)
	if err != nil {
		t.Fatalf("Evaluate source: %v", err)
	}
	guide, err := schedule.Evaluate(d, []int{1, 1, 1}, order)
	if err != nil {
		t.Fatalf("Evaluate guide: %v", err)
	}

	best, err := Relink(d, source, guide, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Relink: %v", err)
	}
	if best.Makespan > source.Makespan {
		t.Fatalf("relinked makespan %v worse than source %v", best.Makespan, source.Makespan)
	}
}

func TestRelinkFindsGuideImprovement(t *testing.T) {
	d := buildSkewedChain(t)
	order := []int{0, 1, 2}
	// Source puts the expensive task 1 on the slow processor; guide moves
	// it to the fast one.
	source, err := schedule.Evaluate(d, []int{0, 0, 0}, order)
	if err != nil {
		t.Fatalf("Evaluate source: %v", err)
	}
	guide, err := schedule.Evaluate(d, []int{0, 1, 0}, order)
	if err != nil {
		t.Fatalf("Evaluate guide: %v", err)
	}

	best, err := Relink(d, source, guide, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Relink: %v", err)
	}
	if best.Assignment[1] != 1 {
		t.Errorf("expected the relinked trajectory to pick up task 1 on the fast processor, got assignment=%v", best.Assignment)
	}
}
