package heuristics

import (
	"math"
	"testing"

	"github.com/swarmguard/dagsched/internal/dagmodel"
)

func closeEnough(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

// buildDiamond builds the classic 4-task diamond: 0 -> {1,2} -> 3, two
// processors, unit comm rate, unit volumes.
func buildDiamond(t *testing.T) *dagmodel.DAG {
	t.Helper()
	tasks := []dagmodel.Task{
		{ID: 0, Comp: []float64{2, 2}, Succ: []int{1, 2}, Volume: map[int]float64{1: 1, 2: 1}},
		{ID: 1, Comp: []float64{3, 3}, Pred: []int{0}, Succ: []int{3}, Volume: map[int]float64{3: 1}},
		{ID: 2, Comp: []float64{3, 3}, Pred: []int{0}, Succ: []int{3}, Volume: map[int]float64{3: 1}},
		{ID: 3, Comp: []float64{1, 1}, Pred: []int{1, 2}, Volume: map[int]float64{}},
	}
	r := [][]float64{{0, 1}, {1, 0}}
	d, err := dagmodel.New(2, tasks, r)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func TestUpwardRankExitTaskEqualsAvgComp(t *testing.T) {
	d := buildDiamond(t)
	tbl, err := NewTables(d)
	if err != nil {
		t.Fatalf("NewTables: %v", err)
	}
	if !closeEnough(tbl.UpwardRank[3], 1) {
		t.Errorf("exit rank = %v, want 1", tbl.UpwardRank[3])
	}
}

func TestUpwardRankIsMonotoneAlongEdges(t *testing.T) {
	d := buildDiamond(t)
	tbl, err := NewTables(d)
	if err != nil {
		t.Fatalf("NewTables: %v", err)
	}
	for _, task := range d.Tasks {
		for _, s := range task.Succ {
			if tbl.UpwardRank[task.ID] <= tbl.UpwardRank[s] {
				t.Errorf("rank(%d)=%v should exceed rank(%d)=%v", task.ID, tbl.UpwardRank[task.ID], s, tbl.UpwardRank[s])
			}
		}
	}
}

func TestOCTExitTaskIsZero(t *testing.T) {
	d := buildDiamond(t)
	tbl, err := NewTables(d)
	if err != nil {
		t.Fatalf("NewTables: %v", err)
	}
	for p := 0; p < d.M; p++ {
		if tbl.OCT[3][p] != 0 {
			t.Errorf("OCT[3][%d] = %v, want 0", p, tbl.OCT[3][p])
		}
	}
}

func TestOCTSingleTaskAllZero(t *testing.T) {
	tasks := []dagmodel.Task{{ID: 0, Comp: []float64{5, 2, 7}, Volume: map[int]float64{}}}
	r := make([][]float64, 3)
	for i := range r {
		r[i] = make([]float64, 3)
	}
	d, err := dagmodel.New(3, tasks, r)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tbl, err := NewTables(d)
	if err != nil {
		t.Fatalf("NewTables: %v", err)
	}
	for p, v := range tbl.OCT[0] {
		if v != 0 {
			t.Errorf("OCT[0][%d] = %v, want 0 for a sink task", p, v)
		}
	}
	if len(tbl.PEFTRank) != 1 || tbl.PEFTRank[0] != 0 {
		t.Errorf("PEFTRank = %v, want [0]", tbl.PEFTRank)
	}
}

func TestNewTablesRejectsEmptyDAG(t *testing.T) {
	d, err := dagmodel.New(1, nil, [][]float64{{0}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := NewTables(d); err != ErrEmptyDAG {
		t.Fatalf("got %v, want ErrEmptyDAG", err)
	}
}
