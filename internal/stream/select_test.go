package stream

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/meridian-idx/aggregator/internal/kvstore"
	"github.com/meridian-idx/aggregator/internal/scoring"
)

func TestSelectPlugins_DisabledReturnsAllCandidates(t *testing.T) {
	store := scoring.NewStore(kvstore.NewMock())
	candidates := []string{"a", "b", "c"}
	got := SelectPlugins(t.Context(), store, candidates, "movies", "current", false, 0, nil)
	if len(got) != len(candidates) {
		t.Fatalf("got %v, want all candidates when scoring is disabled", got)
	}
}

func TestSelectPlugins_LowCoverageFallsBackToAll(t *testing.T) {
	store := scoring.NewStore(kvstore.NewMock())
	candidates := []string{"a", "b", "c", "d"}
	// Only seed one plugin with a confident snapshot: 1/4 = 25% coverage,
	// below the 50% threshold.
	seedSnapshot(t, store, "a", "movies", "current", 0.9, 0.9)

	got := SelectPlugins(t.Context(), store, candidates, "movies", "current", true, 0, rand.New(rand.NewPCG(1, 1)))
	if len(got) != len(candidates) {
		t.Fatalf("got %v, want all candidates under low coverage", got)
	}
}

func TestSelectPlugins_HighCoverageSelectsTopScored(t *testing.T) {
	store := scoring.NewStore(kvstore.NewMock())
	candidates := []string{"best", "mid", "worst"}
	seedSnapshot(t, store, "best", "movies", "current", 0.9, 0.9)
	seedSnapshot(t, store, "mid", "movies", "current", 0.5, 0.9)
	seedSnapshot(t, store, "worst", "movies", "current", 0.1, 0.9)

	// A probability of 0 selects the default exploration probability, but
	// an exploration pick is only ever appended after the top-scored set,
	// so the first entry is deterministic.
	got := SelectPlugins(t.Context(), store, candidates, "movies", "current", true, 0, rand.New(rand.NewPCG(1, 1)))
	if len(got) == 0 || got[0] != "best" {
		t.Fatalf("got %v, want the top-scored plugin first", got)
	}
}

func TestSelectPlugins_ExplorationCanAddAnUnchosenPlugin(t *testing.T) {
	store := scoring.NewStore(kvstore.NewMock())
	// Three times MaxPluginsScored candidates, so the middle third of the
	// score order (where exploration draws from) lies wholly outside the
	// top-N selection and leaves unchosen candidates for exploration to pick.
	candidates := make([]string, 3*MaxPluginsScored)
	for i := range candidates {
		candidates[i] = string(rune('a' + i))
	}
	for i, name := range candidates {
		seedSnapshot(t, store, name, "movies", "current", float64(len(candidates)-i)/float64(len(candidates)), 0.9)
	}

	found := false
	for seed := uint64(0); seed < 50 && !found; seed++ {
		got := SelectPlugins(t.Context(), store, candidates, "movies", "current", true, 1.0, rand.New(rand.NewPCG(seed, seed)))
		if len(got) > MaxPluginsScored {
			found = true
		}
	}
	if !found {
		t.Fatal("expected at least one seed to trigger exploration and add an extra plugin")
	}
}

func seedSnapshot(t *testing.T, store *scoring.Store, plugin, category, bucket string, final, confidence float64) {
	t.Helper()
	snap := scoring.Snapshot{
		Plugin:     plugin,
		Category:   category,
		Bucket:     bucket,
		Confidence: confidence,
		Final:      final,
		Health:     scoring.EwmaState{Value: final, LastUpdated: time.Now(), Samples: 10},
		Search:     scoring.EwmaState{Value: final, LastUpdated: time.Now(), Samples: 10},
	}
	if err := store.Save(t.Context(), snap); err != nil {
		t.Fatalf("Save: %v", err)
	}
}
