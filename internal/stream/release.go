// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package stream

import (
	"regexp"

	"github.com/meridian-idx/aggregator/internal/model"
)

var qualityPatterns = []struct {
	re      *regexp.Regexp
	quality model.Quality
}{
	{regexp.MustCompile(`(?i)\b(2160p|4k|uhd)\b`), model.Quality4K},
	{regexp.MustCompile(`(?i)\b1080p?\b`), model.Quality1080},
	{regexp.MustCompile(`(?i)\b720p?\b`), model.Quality720},
	{regexp.MustCompile(`(?i)\b(480p|576p|sdtv)\b`), model.QualitySD},
	{regexp.MustCompile(`(?i)\btelesync|tsync|\bts\b`), model.QualityTS},
	{regexp.MustCompile(`(?i)\bcam\b|hdcam`), model.QualityCAM},
}

// ParseQuality extracts the quality tier from a release name, per spec
// §4.10 step 7. Unrecognized or missing tags yield QualityUnknown.
func ParseQuality(releaseName string) model.Quality {
	for _, p := range qualityPatterns {
		if p.re.MatchString(releaseName) {
			return p.quality
		}
	}
	return model.QualityUnknown
}

var (
	germanTag  = regexp.MustCompile(`(?i)\b(german|ger|deutsch)\b`)
	englishTag = regexp.MustCompile(`(?i)\b(english|eng)\b`)
	dubTag     = regexp.MustCompile(`(?i)\bdub(s|bed)?\b`)
	subTag     = regexp.MustCompile(`(?i)\bsub(s|bed|title[ds]?)?\b`)
)

// ParseLanguage extracts the dub/sub language classification from a
// release name, per spec §4.10 step 7: German takes priority over
// English, and dub takes priority over sub when a release tags both.
// Unrecognized releases yield LanguageUnknown.
func ParseLanguage(releaseName string) model.Language {
	isGerman := germanTag.MatchString(releaseName)
	isEnglish := englishTag.MatchString(releaseName)
	isDub := dubTag.MatchString(releaseName)
	isSub := subTag.MatchString(releaseName)

	switch {
	case isGerman && isDub:
		return model.LanguageGermanDub
	case isGerman && isSub:
		return model.LanguageGermanSub
	case isEnglish && isDub:
		return model.LanguageEnglishDub
	case isEnglish && isSub:
		return model.LanguageEnglishSub
	default:
		return model.LanguageUnknown
	}
}
