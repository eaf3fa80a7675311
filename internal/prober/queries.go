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

package prober

import (
	"bufio"
	"bytes"
	_ "embed"
	"math/rand/v2"
)

//go:embed fallback_queries.txt
var fallbackQueriesRaw []byte

// fallbackQueries is the bundled query pool used when no QuerySource is
// configured or the dynamic fetch fails.
var fallbackQueries = mustParseQueries(fallbackQueriesRaw)

func mustParseQueries(raw []byte) []string {
	var out []string
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

// QuerySource supplies a dynamically-refreshed query pool. The Scheduler
// calls Queries on every tick and does not cache the result; any caching
// is up to the implementation. Implementations that fail should return an
// error so callers fall back to the bundled list.
type QuerySource interface {
	Queries() ([]string, error)
}

// WeeklyQueries selects n queries from pool using a seeded Fisher-Yates
// shuffle keyed on isoWeek, so every prober instance picks the same queries
// for a given ISO week without coordination. If pool is empty the bundled
// fallback list is used instead.
func WeeklyQueries(pool []string, isoWeek int, n int) []string {
	if len(pool) == 0 {
		pool = fallbackQueries
	}
	if len(pool) == 0 {
		return nil
	}

	shuffled := make([]string, len(pool))
	copy(shuffled, pool)

	rng := rand.New(rand.NewPCG(uint64(isoWeek), 0x6d65726964696178))
	for i := len(shuffled) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}

	if n > len(shuffled) {
		n = len(shuffled)
	}
	return shuffled[:n]
}
