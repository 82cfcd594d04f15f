package localsearch

import (
	"testing"

	"github.com/swarmguard/dagsched/internal/dagmodel"
	"github.com/swarmguard/dagsched/internal/schedule"
)

// buildSkewed is a 3-task chain where task 1 is far cheaper on processor 1,
// so an initial all-on-processor-0 assignment has an obvious improving move.
func buildSkewed(t *testing.T) *dagmodel.DAG {
	t.Helper()
	tasks := []dagmodel.Task{
		{ID: 0, Comp: []float64{5, 5}, Succ: []int{1}, Volume: map[int]float64{1: 0}},
		{ID: 1, Comp: []float64{20, 2}, Pred: []int{0}, Succ: []int{2}, Volume: map[int]float64{2: 0}},
		{ID: 2, Comp: []float64{5, 5}, Pred: []int{1}, Volume: map[int]float64{}},
	}
	r := [][]float64{{0, 0}, {0, 0}}
	d, err := dagmodel.New(2, tasks, r)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func TestImproveLowersMakespan(t *testing.T) {
	d := buildSkewed(t)
	start, err := schedule.Evaluate(d, []int{0, 0, 0}, []int{0, 1, 2})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	improved := Improve(d, start)
	if improved.Makespan >= start.Makespan {
		t.Fatalf("makespan = %v, want improvement over %v", improved.Makespan, start.Makespan)
	}
	if improved.Assignment[1] != 1 {
		t.Errorf("expected task 1 moved to the cheap processor, assignment = %v", improved.Assignment)
	}
}

func TestImproveIsIdempotentAtLocalOptimum(t *testing.T) {
	d := buildSkewed(t)
	start, err := schedule.Evaluate(d, []int{0, 0, 0}, []int{0, 1, 2})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	once := Improve(d, start)
	twice := Improve(d, once)
	if twice.Makespan != once.Makespan {
		t.Fatalf("second pass changed makespan: %v -> %v", once.Makespan, twice.Makespan)
	}
	for i := range once.Assignment {
		if once.Assignment[i] != twice.Assignment[i] {
			t.Fatalf("second pass changed assignment: %v -> %v", once.Assignment, twice.Assignment)
		}
	}
}
