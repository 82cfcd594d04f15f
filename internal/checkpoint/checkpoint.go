// Package checkpoint persists periodic run snapshots to a local BoltDB
// file so a long ACORun/IslandRun can be resumed after a crash without
// restarting the search from scratch. It mirrors the bucket-per-concern,
// memory-cache-backed, latency-instrumented storage layer pattern used
// elsewhere in the example pack for a single small-footprint key/value
// store (pure Go, no C dependency, single file on disk).
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.etcd.io/bbolt"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var bucketSnapshots = []byte("snapshots")

// Snapshot is the periodic state a long-running engine checkpoints:
// enough to resume the search without replaying every prior generation.
type Snapshot struct {
	RunID      string  `json:"run_id"`
	Generation int     `json:"generation"`
	Makespan   float64 `json:"makespan"`
	Assignment []int   `json:"assignment"`
	Order      []int   `json:"order"`
	TauMin     float64 `json:"tau_min"`
	TauMax     float64 `json:"tau_max"`
	SavedAt    int64   `json:"saved_at_unix"`
}

// Store is a single-file BoltDB-backed snapshot store with an in-memory
// read cache, one bucket ("snapshots"), keyed by run id.
type Store struct {
	db    *bbolt.DB
	mu    sync.RWMutex
	cache map[string]Snapshot

	readLatency  metric.Float64Histogram
	writeLatency metric.Float64Histogram
}

// Open opens (creating if necessary) the BoltDB file at path and ensures
// the snapshots bucket exists. meter may be nil, in which case latency is
// not recorded.
func Open(path string, meter metric.Meter) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open %s: %w", path, err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSnapshots)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("checkpoint: create bucket: %w", err)
	}

	s := &Store{db: db, cache: make(map[string]Snapshot)}
	if meter != nil {
		s.readLatency, _ = meter.Float64Histogram("dagsched_checkpoint_read_ms")
		s.writeLatency, _ = meter.Float64Histogram("dagsched_checkpoint_write_ms")
	}
	return s, nil
}

// Close closes the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save persists snap, overwriting any prior snapshot for the same run id,
// and updates the in-memory cache.
func (s *Store) Save(ctx context.Context, snap Snapshot) error {
	start := time.Now()
	defer s.recordLatency(ctx, s.writeLatency, start, "save")

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("checkpoint: marshal: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSnapshots).Put([]byte(snap.RunID), data)
	}); err != nil {
		return fmt.Errorf("checkpoint: write: %w", err)
	}
	s.cache[snap.RunID] = snap
	return nil
}

// Load retrieves the most recent snapshot for runID, checking the
// in-memory cache before falling back to the database.
func (s *Store) Load(ctx context.Context, runID string) (Snapshot, bool, error) {
	start := time.Now()
	defer s.recordLatency(ctx, s.readLatency, start, "load")

	s.mu.RLock()
	if snap, ok := s.cache[runID]; ok {
		s.mu.RUnlock()
		return snap, true, nil
	}
	s.mu.RUnlock()

	var snap Snapshot
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSnapshots).Get([]byte(runID))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &snap)
	})
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("checkpoint: read: %w", err)
	}
	if found {
		s.mu.Lock()
		s.cache[runID] = snap
		s.mu.Unlock()
	}
	return snap, found, nil
}

func (s *Store) recordLatency(ctx context.Context, h metric.Float64Histogram, start time.Time, op string) {
	if h == nil {
		return
	}
	h.Record(ctx, float64(time.Since(start).Microseconds())/1000.0, metric.WithAttributes(attribute.String("op", op)))
}
