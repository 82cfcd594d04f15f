package checkpoint

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "checkpoint.db")
	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	snap := Snapshot{
		RunID:      "run-1",
		Generation: 12,
		Makespan:   42.5,
		Assignment: []int{0, 1, 0, 2},
		Order:      []int{0, 1, 2, 3},
		TauMin:     0.1,
		TauMax:     5.0,
	}
	if err := s.Save(ctx, snap); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, found, err := s.Load(ctx, "run-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !found {
		t.Fatal("expected snapshot to be found")
	}
	if got.Generation != 12 || got.Makespan != 42.5 {
		t.Errorf("got %+v, want generation=12 makespan=42.5", got)
	}
}

func TestLoadMissingRunReturnsNotFound(t *testing.T) {
	s := openTestStore(t)
	_, found, err := s.Load(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if found {
		t.Fatal("expected found=false for a run id that was never saved")
	}
}

func TestSaveOverwritesPriorSnapshotForSameRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.Save(ctx, Snapshot{RunID: "run-1", Generation: 1}); err != nil {
		t.Fatalf("Save 1: %v", err)
	}
	if err := s.Save(ctx, Snapshot{RunID: "run-1", Generation: 2}); err != nil {
		t.Fatalf("Save 2: %v", err)
	}
	got, _, err := s.Load(ctx, "run-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Generation != 2 {
		t.Errorf("Generation = %d, want 2 (the latest save)", got.Generation)
	}
}

func TestLoadServesFromCacheAfterSave(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.Save(ctx, Snapshot{RunID: "run-1", Generation: 5}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// Close the underlying db to prove a cache hit does not touch it.
	if err := s.db.Close(); err != nil {
		t.Fatalf("close db: %v", err)
	}
	got, found, err := s.Load(ctx, "run-1")
	if err != nil {
		t.Fatalf("Load after db close: %v", err)
	}
	if !found || got.Generation != 5 {
		t.Errorf("Load = %+v, found=%v, want generation=5 served from cache", got, found)
	}
}
