package prober

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/meridian-idx/aggregator/internal/kvstore"
	"github.com/meridian-idx/aggregator/internal/model"
	"github.com/meridian-idx/aggregator/internal/registry"
	"github.com/meridian-idx/aggregator/internal/scoring"
)

func newTestScheduler(t *testing.T, descs []registry.Descriptor, client *http.Client) (*Scheduler, *scoring.Store) {
	t.Helper()
	store := scoring.NewStore(kvstore.NewMock())
	reg := registry.New(descs, func(d registry.Descriptor) (registry.Plugin, error) {
		return stubSearchPlugin{results: []model.SearchResult{{Title: "x"}}}, nil
	})
	s := NewScheduler(reg, store, client, func(string) bool { return true }, nil, zerolog.Nop())
	return s, store
}

func TestScheduler_DueForHealthWhenNeverRun(t *testing.T) {
	s, _ := newTestScheduler(t, nil, nil)
	if !s.dueForHealth(t.Context(), "plugin-a", time.Now()) {
		t.Fatal("a plugin that has never been health-probed should be due")
	}
}

func TestScheduler_NotDueForHealthRightAfterRunning(t *testing.T) {
	s, store := newTestScheduler(t, nil, nil)
	now := time.Now()
	if err := store.RecordLastRun(t.Context(), "health", "plugin-a", "", "", now); err != nil {
		t.Fatalf("RecordLastRun: %v", err)
	}
	if s.dueForHealth(t.Context(), "plugin-a", now.Add(time.Minute)) {
		t.Fatal("a plugin probed a minute ago should not be due again within 24h")
	}
}

func TestScheduler_DueForHealthAfter24Hours(t *testing.T) {
	s, store := newTestScheduler(t, nil, nil)
	now := time.Now()
	if err := store.RecordLastRun(t.Context(), "health", "plugin-a", "", "", now); err != nil {
		t.Fatalf("RecordLastRun: %v", err)
	}
	if !s.dueForHealth(t.Context(), "plugin-a", now.Add(25*time.Hour)) {
		t.Fatal("a plugin last probed 25h ago should be due")
	}
}

func TestScheduler_SearchDueTwicePerWeekByDefault(t *testing.T) {
	s, store := newTestScheduler(t, nil, nil)
	now := time.Now()
	if err := store.RecordLastRun(t.Context(), "search", "plugin-a", "movies", "current", now); err != nil {
		t.Fatalf("RecordLastRun: %v", err)
	}
	if s.dueForSearch(t.Context(), "plugin-a", "movies", "current", now.Add(24*time.Hour)) {
		t.Fatal("search should not be due again after only 1 day with 2 runs/week (3.5 day spacing)")
	}
	if !s.dueForSearch(t.Context(), "plugin-a", "movies", "current", now.Add(4*24*time.Hour)) {
		t.Fatal("search should be due again after 4 days with 2 runs/week")
	}
}

func TestScheduler_ApplyHealthThenSearchComposesSnapshot(t *testing.T) {
	s, store := newTestScheduler(t, nil, nil)
	now := time.Now()

	if err := s.applyHealthObservation(t.Context(), "plugin-a", scoring.HealthProbe{OK: true, DurationMS: 100}, now); err != nil {
		t.Fatalf("applyHealthObservation: %v", err)
	}
	wide, err := store.Load(t.Context(), "plugin-a", "", "")
	if err != nil {
		t.Fatalf("Load plugin-wide snapshot: %v", err)
	}
	if wide.Health.Samples != 1 {
		t.Fatalf("wide.Health.Samples = %d, want 1", wide.Health.Samples)
	}

	later := now.Add(time.Hour)
	if err := s.applySearchObservation(t.Context(), "plugin-a", "movies", "current", scoring.SearchProbe{OK: true, ItemsRatio: 1, HosterReachableRatio: 1, HosterSupportedRatio: 1}, later); err != nil {
		t.Fatalf("applySearchObservation: %v", err)
	}
	bucket, err := store.Load(t.Context(), "plugin-a", "movies", "current")
	if err != nil {
		t.Fatalf("Load bucket snapshot: %v", err)
	}
	if bucket.Search.Samples != 1 {
		t.Fatalf("bucket.Search.Samples = %d, want 1", bucket.Search.Samples)
	}
	if bucket.Health.Samples != wide.Health.Samples {
		t.Fatal("a fresh (category, bucket) snapshot should inherit the plugin-wide health state")
	}
	if bucket.Final <= 0 {
		t.Fatalf("Final = %v, want > 0 after a healthy, successful search observation", bucket.Final)
	}
}

func TestScheduler_RunCycleDispatchesDueHealthProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	descs := []registry.Descriptor{{
		Name:       "plugin-a",
		Mode:       registry.ModeFastHTTP,
		Provides:   registry.ProvidesDownload,
		OriginURL:  srv.URL,
		Languages:  []string{"en"},
		AgeBuckets: map[registry.AgeBucket]bool{registry.AgeBucketCurrent: true},
	}}
	s, store := newTestScheduler(t, descs, srv.Client())

	s.runCycle(t.Context())
	s.wg.Wait()

	if _, err := store.Load(t.Context(), "plugin-a", "", ""); err != nil {
		t.Fatalf("expected a health snapshot to be persisted after runCycle, got error: %v", err)
	}
}
