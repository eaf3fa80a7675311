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

// Package model holds the shared, immutable data types that flow between
// the orchestrators (C9/C10), the registry (C5), and the scoring and
// resolver subsystems (C6/C8): search results, ranked streams, and the
// quality/language enums parsed out of release names.
package model

import "time"

// AltURL is an alternative download URL for a SearchResult, with an
// optional hoster name when it's known without a resolve.
type AltURL struct {
	URL    string
	Hoster string
}

// SearchResult is the immutable record a plugin's search operation
// produces. Title and PrimaryURL are always non-empty; Alternatives never
// contains PrimaryURL.
type SearchResult struct {
	Title          string
	PrimaryURL     string
	Alternatives   []AltURL
	SizeBytes      int64 // best-effort, 0 if unknown
	Seeders        *int
	Peers          *int
	PublishedAt    *time.Time
	ReleaseName    string // used for quality/language parsing; may be empty
	CategoryID     string
	SourcePageURL  string
	Metadata       map[string]string
	PluginName     string // which plugin produced this result
}

// Quality is a parsed release quality tier, ordered 4K highest.
type Quality int

const (
	QualityUnknown Quality = iota
	QualityCAM
	QualityTS
	QualitySD
	Quality720
	Quality1080
	Quality4K
)

func (q Quality) String() string {
	switch q {
	case Quality4K:
		return "4K"
	case Quality1080:
		return "1080p"
	case Quality720:
		return "720p"
	case QualitySD:
		return "SD"
	case QualityTS:
		return "TS"
	case QualityCAM:
		return "CAM"
	default:
		return "UNKNOWN"
	}
}

// Language is a parsed release language/dub-sub classification.
type Language int

const (
	LanguageUnknown Language = iota
	LanguageEnglishDub
	LanguageEnglishSub
	LanguageGermanSub
	LanguageGermanDub
)

func (l Language) String() string {
	switch l {
	case LanguageGermanDub:
		return "german-dub"
	case LanguageGermanSub:
		return "german-sub"
	case LanguageEnglishSub:
		return "english-sub"
	case LanguageEnglishDub:
		return "english-dub"
	default:
		return "unknown"
	}
}

// PlaybackHeaders are HTTP headers a player must send to a resolved
// direct-video URL (e.g. Referer) for it to be accepted by the hoster.
type PlaybackHeaders map[string]string

// RankedStream is derived from a SearchResult once it has been matched,
// quality/language-parsed, scored, and optionally resolved.
type RankedStream struct {
	URL             string
	HosterName      string
	Quality         Quality
	Language        Language
	PluginName      string
	RankScore       float64
	DirectURL       string // set once resolved through C8; empty otherwise
	PlaybackHeaders PlaybackHeaders
	Origin          SearchResult
}
