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

import "github.com/meridian-idx/aggregator/internal/model"

// languageScore gives each dub/sub classification its spec §4.10 step 7
// weight.
var languageScore = map[model.Language]float64{
	model.LanguageGermanDub:   1000,
	model.LanguageGermanSub:   500,
	model.LanguageEnglishSub:  200,
	model.LanguageEnglishDub:  150,
	model.LanguageUnknown:     100,
}

// qualityValue gives each quality tier its spec §4.10 step 7 weight.
var qualityValue = map[model.Quality]float64{
	model.Quality4K:      60,
	model.Quality1080:    50,
	model.Quality720:     40,
	model.QualitySD:      30,
	model.QualityTS:      20,
	model.QualityCAM:     10,
	model.QualityUnknown: 0,
}

// QualityMultiplier scales qualityValue in the rank formula.
const QualityMultiplier = 1.0

// HosterBonus reports the 1-5 point bonus a known-reliable hoster earns,
// looked up by name; an unlisted hoster earns no bonus.
func HosterBonus(hosterName string, bonuses map[string]float64) float64 {
	return bonuses[hosterName]
}

// Rank computes the spec §4.10 step 7 composite score:
// language_score + quality_value*quality_multiplier + hoster_bonus.
func Rank(lang model.Language, quality model.Quality, hosterBonus float64) float64 {
	return languageScore[lang] + qualityValue[quality]*QualityMultiplier + hosterBonus
}
