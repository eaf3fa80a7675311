package stream

import (
	"testing"

	"github.com/meridian-idx/aggregator/internal/model"
)

func TestParseQuality(t *testing.T) {
	cases := map[string]model.Quality{
		"Movie.2024.2160p.WEB-DL":  model.Quality4K,
		"Movie.2024.4K.HDR":        model.Quality4K,
		"Movie.2024.1080p.BluRay":  model.Quality1080,
		"Movie.2024.720p.WEB":      model.Quality720,
		"Movie.2024.480p":          model.QualitySD,
		"Movie.2024.HDCAM":         model.QualityCAM,
		"Movie.2024.TS":            model.QualityTS,
		"Movie.2024.German.DL":     model.QualityUnknown,
	}
	for name, want := range cases {
		if got := ParseQuality(name); got != want {
			t.Errorf("ParseQuality(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestParseLanguage(t *testing.T) {
	cases := map[string]model.Language{
		"Movie.2024.German.DUBBED.1080p":   model.LanguageGermanDub,
		"Movie.2024.German.SUBBED.1080p":   model.LanguageGermanSub,
		"Movie.2024.English.Dubbed.1080p":  model.LanguageEnglishDub,
		"Movie.2024.ENG.Subs.1080p":        model.LanguageEnglishSub,
		"Movie.2024.1080p.WEB":             model.LanguageUnknown,
	}
	for name, want := range cases {
		if got := ParseLanguage(name); got != want {
			t.Errorf("ParseLanguage(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestParseLanguage_GermanTakesPriorityOverEnglish(t *testing.T) {
	got := ParseLanguage("Movie.German.Dubbed.English.Subbed.1080p")
	if got != model.LanguageGermanDub {
		t.Fatalf("ParseLanguage = %v, want german-dub to take priority", got)
	}
}
