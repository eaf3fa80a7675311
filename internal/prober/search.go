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
	"context"
	"net/http"
	"time"

	"github.com/meridian-idx/aggregator/internal/model"
	"github.com/meridian-idx/aggregator/internal/registry"
	"github.com/meridian-idx/aggregator/internal/scoring"
)

// SearchTimeout and searchItemCap bound a single mini-search probe, per
// spec §4.7.
const (
	SearchTimeout = 10 * time.Second
	searchItemCap = 20
	linkCheckCap  = 3
)

// HosterSupported reports whether url's registrable domain is recognized
// by the hoster resolver registry (C8). The prober is given this as a
// callback rather than a direct dependency so it can be exercised without
// wiring the full resolver registry in tests.
type HosterSupported func(url string) bool

// RunSearchProbe runs a short search against plugin for query/category and
// HEAD-checks a sample of the resulting links, producing the observation
// scoring.SearchObservation expects.
func RunSearchProbe(ctx context.Context, client *http.Client, plugin registry.Plugin, query, category string, supported HosterSupported) scoring.SearchProbe {
	ctx, cancel := context.WithTimeout(ctx, SearchTimeout)
	defer cancel()

	start := time.Now()
	results, err := plugin.Search(ctx, query, category, 0, 0)
	duration := time.Since(start)

	if err != nil {
		return scoring.SearchProbe{OK: false, DurationMS: float64(duration.Milliseconds())}
	}
	if len(results) > searchItemCap {
		results = results[:searchItemCap]
	}

	itemsRatio := clampRatio(float64(len(results)) / float64(searchItemCap))
	hosterSupportedRatio := hosterSupportRatio(results, supported)
	hosterReachableRatio := checkLinkReachability(ctx, client, results, supported)

	return scoring.SearchProbe{
		OK:                   true,
		DurationMS:           float64(duration.Milliseconds()),
		ItemsRatio:           itemsRatio,
		HosterReachableRatio: hosterReachableRatio,
		HosterSupportedRatio: hosterSupportedRatio,
	}
}

// hosterSupportRatio is the fraction of distinct hosters named across all
// results' alternatives that the resolver registry recognizes. Results
// with no alternative hosters named are treated as trivially supported.
func hosterSupportRatio(results []model.SearchResult, supported HosterSupported) float64 {
	seen := make(map[string]bool)
	supportedCount, total := 0, 0
	for _, r := range results {
		for _, alt := range r.Alternatives {
			if alt.Hoster == "" || seen[alt.Hoster] {
				continue
			}
			seen[alt.Hoster] = true
			total++
			if supported(alt.URL) {
				supportedCount++
			}
		}
	}
	if total == 0 {
		return 1
	}
	return clampRatio(float64(supportedCount) / float64(total))
}

// checkLinkReachability HEADs up to linkCheckCap candidate URLs, restricted
// to hosters the resolver recognizes, and returns the reachable fraction.
func checkLinkReachability(ctx context.Context, client *http.Client, results []model.SearchResult, supported HosterSupported) float64 {
	var candidates []string
	for _, r := range results {
		for _, alt := range r.Alternatives {
			if len(candidates) >= linkCheckCap {
				break
			}
			if supported(alt.URL) {
				candidates = append(candidates, alt.URL)
			}
		}
		if len(candidates) >= linkCheckCap {
			break
		}
	}
	if len(candidates) == 0 {
		return 0
	}

	reachable := 0
	for _, url := range candidates {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			continue
		}
		resp, err := client.Do(req)
		if err != nil {
			continue
		}
		resp.Body.Close()
		if resp.StatusCode < 400 {
			reachable++
		}
	}
	return clampRatio(float64(reachable) / float64(len(candidates)))
}

func clampRatio(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
