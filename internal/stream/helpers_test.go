package stream

import (
	"testing"

	"github.com/meridian-idx/aggregator/internal/model"
)

func TestBuildQueries_AddsPunctuationStrippedVariant(t *testing.T) {
	got := buildQueries(Title{Name: "The Great-Escape: Part II"})
	if len(got) != 2 {
		t.Fatalf("queries = %v, want 2 (original plus stripped variant)", got)
	}
	if got[0] != "The Great-Escape: Part II" {
		t.Fatalf("queries[0] = %q, want the original title", got[0])
	}
	if got[1] != "The Great Escape Part II" {
		t.Fatalf("queries[1] = %q, want the punctuation-stripped variant", got[1])
	}
}

func TestBuildQueries_NoVariantWhenNothingToStrip(t *testing.T) {
	got := buildQueries(Title{Name: "Plain Title"})
	if len(got) != 1 {
		t.Fatalf("queries = %v, want 1 when stripping changes nothing", got)
	}
}

func TestHosterName_PrefersAltURLTag(t *testing.T) {
	r := model.SearchResult{
		PrimaryURL: "https://cdn.example/file1",
		Alternatives: []model.AltURL{
			{URL: "https://cdn.example/file1", Hoster: "tagged-hoster"},
		},
	}
	if got := hosterName(r); got != "tagged-hoster" {
		t.Fatalf("hosterName = %q, want the AltURL tag", got)
	}
}

func TestHosterName_FallsBackToRegistrableDomain(t *testing.T) {
	r := model.SearchResult{PrimaryURL: "https://www.Hoster.Example.com/file1"}
	got := hosterName(r)
	if got != "hoster.example.com" {
		t.Fatalf("hosterName = %q, want the lowercased, www-stripped host", got)
	}
}

func TestHostOf_StripsSchemePathAndQuery(t *testing.T) {
	cases := map[string]string{
		"https://hoster.example/path/to/file?x=1#frag": "hoster.example",
		"http://hoster.example":                         "hoster.example",
		"hoster.example/file":                           "hoster.example",
	}
	for in, want := range cases {
		if got := hostOf(in); got != want {
			t.Fatalf("hostOf(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDedupByHoster_KeepsHighestRankedPerHoster(t *testing.T) {
	streams := []model.RankedStream{
		{HosterName: "a", RankScore: 10},
		{HosterName: "b", RankScore: 50},
		{HosterName: "a", RankScore: 90},
	}
	got := dedupByHoster(streams)
	if len(got) != 2 {
		t.Fatalf("streams = %d, want 2 (one per hoster)", len(got))
	}
	if got[0].HosterName != "a" || got[0].RankScore != 90 {
		t.Fatalf("got[0] = %+v, want hoster a with the higher score", got[0])
	}
	if got[1].HosterName != "b" || got[1].RankScore != 50 {
		t.Fatalf("got[1] = %+v, want hoster b unchanged", got[1])
	}
}

func TestDedupByHoster_PreservesFirstSeenOrder(t *testing.T) {
	streams := []model.RankedStream{
		{HosterName: "z", RankScore: 1},
		{HosterName: "a", RankScore: 1},
	}
	got := dedupByHoster(streams)
	if got[0].HosterName != "z" || got[1].HosterName != "a" {
		t.Fatalf("got = %+v, want first-seen order (z, a)", got)
	}
}
