package stream

import "testing"

func TestMatchScore_ExactTitleMatches(t *testing.T) {
	title := Title{Name: "The Great Escape", Year: 2024, Kind: "movie"}
	score := MatchScore(title, "The.Great.Escape.2024.1080p.WEB")
	if score < MatchThreshold {
		t.Fatalf("score = %v, want >= %v for an exact title hit", score, MatchThreshold)
	}
}

func TestMatchScore_UnrelatedTitleMisses(t *testing.T) {
	title := Title{Name: "The Great Escape", Year: 2024, Kind: "movie"}
	score := MatchScore(title, "Totally.Different.Show.S01E01")
	if score >= MatchThreshold {
		t.Fatalf("score = %v, want < %v for an unrelated release", score, MatchThreshold)
	}
}

func TestMatchScore_AltTitleMatches(t *testing.T) {
	title := Title{Name: "Der Name", AltTitles: []string{"The Name"}, Kind: "movie"}
	score := MatchScore(title, "The.Name.2020.720p")
	if score < MatchThreshold {
		t.Fatalf("score = %v, want >= %v via the alt title", score, MatchThreshold)
	}
}

func TestMatchScore_YearOutsideToleranceDoesNotBonus(t *testing.T) {
	// A title with a token the release never mentions keeps the base
	// token-set score below a clean 1.0, leaving room to observe the
	// year-tolerance bonus rather than having it clamped away.
	title := Title{Name: "Movie X Chronicles", Year: 2024, Kind: "movie"}
	near := MatchScore(title, "Movie.X.2024.1080p")
	far := MatchScore(title, "Movie.X.2019.1080p")
	if !(near > far) {
		t.Fatalf("near-year score %v should exceed far-year score %v", near, far)
	}
}

func TestMatchScore_SequelNumberMismatchPenalized(t *testing.T) {
	title := Title{Name: "Movie 2", Kind: "movie"}
	matching := MatchScore(title, "Movie.2.1080p")
	mismatched := MatchScore(title, "Movie.3.1080p")
	if !(matching > mismatched) {
		t.Fatalf("matching sequel score %v should exceed mismatched sequel score %v", matching, mismatched)
	}
}
