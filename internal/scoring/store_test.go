package scoring

import (
	"context"
	"testing"
	"time"

	"github.com/meridian-idx/aggregator/internal/apperr"
	"github.com/meridian-idx/aggregator/internal/kvstore"
)

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	s := NewStore(kvstore.NewMock())
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	snap := Snapshot{
		Plugin:     "plugin-a",
		Category:   "movies",
		Bucket:     "current",
		Health:     EwmaState{Value: 0.72, LastUpdated: now, Samples: 5},
		Search:     EwmaState{Value: 0.64, LastUpdated: now, Samples: 3},
		Confidence: 0.5,
		Final:      0.68,
	}
	if err := s.Save(ctx, snap); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load(ctx, "plugin-a", "movies", "current")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != snap {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, snap)
	}
}

func TestStore_LoadMissingIsNotFound(t *testing.T) {
	s := NewStore(kvstore.NewMock())
	_, err := s.Load(context.Background(), "plugin-a", "movies", "current")
	if apperr.Classify(err) != apperr.ClassNotFound {
		t.Fatalf("Load on cold snapshot: got %v, want ClassNotFound", err)
	}
}

func TestStore_RecordLastRunAndLastRun(t *testing.T) {
	s := NewStore(kvstore.NewMock())
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	if err := s.RecordLastRun(ctx, "health", "plugin-a", "", "", now); err != nil {
		t.Fatalf("RecordLastRun: %v", err)
	}
	got, err := s.LastRun(ctx, "health", "plugin-a", "", "")
	if err != nil {
		t.Fatalf("LastRun: %v", err)
	}
	if !got.Equal(now) {
		t.Fatalf("LastRun = %v, want %v", got, now)
	}
}

func TestStore_LastRunNeverRunIsZero(t *testing.T) {
	s := NewStore(kvstore.NewMock())
	got, err := s.LastRun(context.Background(), "search", "plugin-a", "movies", "current")
	if err != nil {
		t.Fatalf("LastRun: %v", err)
	}
	if !got.IsZero() {
		t.Fatalf("LastRun on a never-run probe = %v, want zero time", got)
	}
}

func TestStore_ScopedLastRunKeysAreIndependent(t *testing.T) {
	s := NewStore(kvstore.NewMock())
	ctx := context.Background()
	t1 := time.Now().UTC().Truncate(time.Second)
	t2 := t1.Add(time.Hour)

	if err := s.RecordLastRun(ctx, "search", "plugin-a", "movies", "current", t1); err != nil {
		t.Fatalf("RecordLastRun movies: %v", err)
	}
	if err := s.RecordLastRun(ctx, "search", "plugin-a", "tv", "current", t2); err != nil {
		t.Fatalf("RecordLastRun tv: %v", err)
	}

	gotMovies, err := s.LastRun(ctx, "search", "plugin-a", "movies", "current")
	if err != nil {
		t.Fatalf("LastRun movies: %v", err)
	}
	gotTV, err := s.LastRun(ctx, "search", "plugin-a", "tv", "current")
	if err != nil {
		t.Fatalf("LastRun tv: %v", err)
	}
	if !gotMovies.Equal(t1) || !gotTV.Equal(t2) {
		t.Fatalf("scoped last-run keys collided: movies=%v tv=%v", gotMovies, gotTV)
	}
}

func TestStore_ListSnapshotKeysAccumulatesAndDedups(t *testing.T) {
	s := NewStore(kvstore.NewMock())
	ctx := context.Background()
	now := time.Now().UTC()

	snapA := Snapshot{Plugin: "plugin-a", Category: "movies", Bucket: "current", Health: EwmaState{LastUpdated: now}}
	snapB := Snapshot{Plugin: "plugin-b", Category: "tv", Bucket: "y1_2", Health: EwmaState{LastUpdated: now}}

	if err := s.Save(ctx, snapA); err != nil {
		t.Fatalf("Save A: %v", err)
	}
	if err := s.Save(ctx, snapB); err != nil {
		t.Fatalf("Save B: %v", err)
	}
	if err := s.Save(ctx, snapA); err != nil { // re-saving the same key must not duplicate the index entry
		t.Fatalf("Save A again: %v", err)
	}

	keys, err := s.ListSnapshotKeys(ctx)
	if err != nil {
		t.Fatalf("ListSnapshotKeys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("ListSnapshotKeys = %v, want 2 unique entries", keys)
	}
}

func TestStore_ListSnapshotKeysEmptyOnColdStart(t *testing.T) {
	s := NewStore(kvstore.NewMock())
	keys, err := s.ListSnapshotKeys(context.Background())
	if err != nil {
		t.Fatalf("ListSnapshotKeys: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("ListSnapshotKeys on a cold store = %v, want empty", keys)
	}
}
