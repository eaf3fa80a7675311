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

package httpapi

import (
	"net/http"
	"strings"

	"github.com/meridian-idx/aggregator/internal/concurrency"
)

// handleHealthz implements `GET /healthz`: a liveness probe that never
// depends on downstream state.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz implements `GET /readyz`, backed directly by C11's
// readiness flag.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if !s.App.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type circuitStat struct {
	Plugin string `json:"plugin"`
	State  string `json:"state"`
}

type poolStat struct {
	Class    string `json:"class"`
	InUse    int64  `json:"in_use"`
	Capacity int64  `json:"capacity"`
}

// handleStatsMetrics implements `GET /stats/metrics`: a JSON snapshot of
// C4's breaker states and C3's pool utilization, reading directly off the
// live registries rather than internal/metrics's Prometheus vectors
// (those are for scrape-based collection; this endpoint is for a human
// or a dashboard that wants one synchronous read).
func (s *Server) handleStatsMetrics(w http.ResponseWriter, r *http.Request) {
	circuits := make([]circuitStat, 0, len(s.Registry.ListNames()))
	for _, name := range s.Registry.ListNames() {
		circuits = append(circuits, circuitStat{Plugin: name, State: s.Breakers.Get(name).State().String()})
	}

	pools := []poolStat{}
	if s.Pool != nil {
		for _, class := range []concurrency.Class{concurrency.ClassFastHTTP, concurrency.ClassHeadless} {
			inUse, capacity := s.Pool.Stats(class)
			pools = append(pools, poolStat{Class: classLabel(class), InUse: inUse, Capacity: capacity})
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"circuits": circuits,
		"pools":    pools,
	})
}

func classLabel(c concurrency.Class) string {
	if c == concurrency.ClassHeadless {
		return "headless"
	}
	return "fast_http"
}

// handleStatsPluginScores implements
// `GET /stats/plugin-scores?plugin=&category=&bucket=`.
func (s *Server) handleStatsPluginScores(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pluginFilter := q.Get("plugin")
	categoryFilter := q.Get("category")
	bucketFilter := q.Get("bucket")

	keys, err := s.Scores.ListSnapshotKeys(r.Context())
	if err != nil {
		s.writeError(w, err, nil)
		return
	}

	snapshots := make([]any, 0, len(keys))
	for _, key := range keys {
		plugin, category, bucket, ok := parseSnapshotKey(key)
		if !ok {
			continue
		}
		if pluginFilter != "" && plugin != pluginFilter {
			continue
		}
		if categoryFilter != "" && category != categoryFilter {
			continue
		}
		if bucketFilter != "" && bucket != bucketFilter {
			continue
		}
		snap, err := s.Scores.Load(r.Context(), plugin, category, bucket)
		if err != nil {
			continue
		}
		snapshots = append(snapshots, snap)
	}
	writeJSON(w, http.StatusOK, map[string]any{"scores": snapshots})
}

// parseSnapshotKey splits a "score:plugin:category:bucket" key back into
// its components.
func parseSnapshotKey(key string) (plugin, category, bucket string, ok bool) {
	parts := strings.Split(key, ":")
	if len(parts) != 4 || parts[0] != "score" {
		return "", "", "", false
	}
	return parts[1], parts[2], parts[3], true
}
