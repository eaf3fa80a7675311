package stream

import (
	"context"
	"testing"
	"time"

	"github.com/meridian-idx/aggregator/internal/apperr"
)

type countingResolver struct {
	title Title
	calls int
}

func (c *countingResolver) Resolve(ctx context.Context, contentID, kind string) (Title, error) {
	c.calls++
	return c.title, nil
}

func TestCachingResolver_CachesWithinTTL(t *testing.T) {
	inner := &countingResolver{title: Title{Name: "Cached Movie"}}
	cache := NewCachingResolver(inner, time.Hour)

	for i := 0; i < 3; i++ {
		got, err := cache.Resolve(t.Context(), "tt123", "movie")
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if got.Name != "Cached Movie" {
			t.Fatalf("Name = %q", got.Name)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("inner resolver called %d times, want 1 (rest served from cache)", inner.calls)
	}
}

func TestCachingResolver_RefetchesAfterTTLExpiry(t *testing.T) {
	inner := &countingResolver{title: Title{Name: "Expiring Movie"}}
	cache := NewCachingResolver(inner, time.Millisecond)

	if _, err := cache.Resolve(t.Context(), "tt123", "movie"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := cache.Resolve(t.Context(), "tt123", "movie"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("inner resolver called %d times, want 2 after TTL expiry", inner.calls)
	}
}

func TestStaticTitleResolver_ReturnsSeededTitle(t *testing.T) {
	r := StaticTitleResolver{Titles: map[string]Title{
		"movie:tt1": {Name: "Seeded Movie", Year: 2020},
	}}
	got, err := r.Resolve(t.Context(), "tt1", "movie")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Name != "Seeded Movie" || got.Year != 2020 {
		t.Fatalf("got %+v", got)
	}
}

func TestStaticTitleResolver_UnknownIDReturnsNotFound(t *testing.T) {
	r := StaticTitleResolver{Titles: map[string]Title{}}
	_, err := r.Resolve(t.Context(), "tt-missing", "movie")
	if apperr.Classify(err) != apperr.ClassNotFound {
		t.Fatalf("expected ClassNotFound, got %v", err)
	}
}
