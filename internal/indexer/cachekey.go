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

package indexer

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"time"
)

// DefaultCacheTTL sits in the middle of spec §3's "15-30 min" band for
// result-cache entries.
const DefaultCacheTTL = 20 * time.Minute

// cacheKey computes the deterministic result-cache key for
// (plugin, query, category), per spec §4.9 step 1: "stable hash of
// plugin+query+category."
func cacheKey(plugin, query, category string) string {
	h := fnv.New64a()
	h.Write([]byte(plugin))
	h.Write([]byte{0})
	h.Write([]byte(query))
	h.Write([]byte{0})
	h.Write([]byte(category))
	return fmt.Sprintf("idxcache:%s:%016x", plugin, h.Sum64())
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// normalizeTitle lowercases and collapses a title to its alphanumeric
// skeleton, used as half of the dedup key in spec §4.9 step 4.
func normalizeTitle(title string) string {
	lower := strings.ToLower(title)
	return strings.Trim(nonAlnum.ReplaceAllString(lower, " "), " ")
}
