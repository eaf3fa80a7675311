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
	"encoding/xml"
	"net/http"
	"strconv"
	"strings"

	"github.com/meridian-idx/aggregator/internal/crawljob"
	"github.com/meridian-idx/aggregator/internal/indexer"
	"github.com/meridian-idx/aggregator/internal/prober"
)

type indexerListEntry struct {
	Name      string   `json:"name"`
	Provides  string   `json:"provides"`
	Languages []string `json:"languages"`
	Mode      string   `json:"mode"`
}

// handleListIndexers implements `GET /indexers`.
func (s *Server) handleListIndexers(w http.ResponseWriter, r *http.Request) {
	names := s.Registry.ListNames()
	entries := make([]indexerListEntry, 0, len(names))
	for _, name := range names {
		d, ok := s.Registry.Descriptor(name)
		if !ok {
			continue
		}
		entries = append(entries, indexerListEntry{
			Name:      d.Name,
			Provides:  string(d.Provides),
			Languages: d.Languages,
			Mode:      string(d.Mode),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"indexers": entries})
}

// handleTorznab implements both `t=caps` and `t=search` under
// `GET /torznab/{plugin}`, dispatched by the `t` query param per spec §6.
func (s *Server) handleTorznab(w http.ResponseWriter, r *http.Request) {
	plugin := r.PathValue("plugin")
	if _, ok := s.Registry.Descriptor(plugin); !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown plugin " + plugin})
		return
	}

	switch r.URL.Query().Get("t") {
	case "caps":
		s.handleTorznabCaps(w, plugin)
	case "search", "tvsearch", "movie-search":
		s.handleTorznabSearch(w, r, plugin)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown or missing t parameter"})
	}
}

func (s *Server) handleTorznabCaps(w http.ResponseWriter, plugin string) {
	caps := defaultCaps(plugin)
	writeXML(w, http.StatusOK, caps)
}

func (s *Server) handleTorznabSearch(w http.ResponseWriter, r *http.Request, plugin string) {
	q := r.URL.Query()
	query := q.Get("q")
	category := q.Get("cat")
	extended := q.Get("extended") == "1"
	offset := parseIntDefault(q.Get("offset"), 0)
	limit := parseIntDefault(q.Get("limit"), 100)

	if extended && query == "" {
		s.handleReachabilityProbe(w, r, plugin)
		return
	}

	feed, err := s.Indexer.Search(r.Context(), plugin, query, category, offset, limit)
	if err != nil {
		s.writeError(w, err, func(w http.ResponseWriter) { s.writeSearchFeed(w, plugin, nil, false) })
		return
	}
	s.writeSearchFeed(w, plugin, feed.Items, feed.CacheHit)
}

// handleReachabilityProbe answers an `extended=1`, query-less search with a
// single synthetic item when the plugin's origin is reachable, or an empty
// feed otherwise — spec §6's lightweight reachability shortcut, reusing the
// C7 health-probe primitive instead of running a real search.
func (s *Server) handleReachabilityProbe(w http.ResponseWriter, r *http.Request, plugin string) {
	d, ok := s.Registry.Descriptor(plugin)
	if !ok {
		s.writeSearchFeed(w, plugin, nil, false)
		return
	}
	result := prober.RunHealthProbe(r.Context(), s.httpClient(), d.OriginURL)
	w.Header().Set("X-Cache", "MISS")
	if !result.OK {
		writeXML(w, http.StatusOK, newTorznabRSS(plugin, nil))
		return
	}
	item := torznabItem{Title: "reachability probe", GUID: plugin + "-reachable", Link: d.OriginURL}
	writeXML(w, http.StatusOK, newTorznabRSS(plugin, []torznabItem{item}))
}

// writeSearchFeed renders items as a Torznab RSS feed and sets the
// X-Cache header spec §6 requires on every search response.
func (s *Server) writeSearchFeed(w http.ResponseWriter, plugin string, items []indexer.FeedItem, cacheHit bool) {
	if cacheHit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	xmlItems := make([]torznabItem, 0, len(items))
	for _, it := range items {
		xmlItems = append(xmlItems, torznabItem{
			Title: it.Result.Title,
			GUID:  it.JobID,
			Link:  "/download/" + it.JobID,
			Size:  it.Result.SizeBytes,
			Attrs: []torznabAttr{
				{Name: "category", Value: it.Result.CategoryID},
				{Name: "jobid", Value: it.JobID},
			},
		})
	}
	writeXML(w, http.StatusOK, newTorznabRSS(plugin, xmlItems))
}

func writeXML(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(xml.Header))
	_ = xml.NewEncoder(w).Encode(v)
}

// handleTorznabHealth implements `GET /torznab/{plugin}/health`.
func (s *Server) handleTorznabHealth(w http.ResponseWriter, r *http.Request) {
	plugin := r.PathValue("plugin")
	d, ok := s.Registry.Descriptor(plugin)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown plugin " + plugin})
		return
	}
	result := prober.RunHealthProbe(r.Context(), s.httpClient(), d.OriginURL)
	writeJSON(w, http.StatusOK, map[string]any{
		"plugin":      plugin,
		"base_url":    d.OriginURL,
		"checked_url": d.OriginURL,
		"reachable":   result.OK,
	})
}

// handleDownload implements `GET /download/{job_id}`.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")
	job, err := s.Indexer.LoadJob(r.Context(), jobID)
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	body := crawljob.Serialize(job)
	w.Header().Set("Content-Type", "application/x-crawljob")
	w.Header().Set("Content-Disposition", `attachment; filename="`+job.ID+`.crawljob"`)
	w.Header().Set("X-CrawlJob-Id", job.ID)
	w.Header().Set("X-CrawlJob-Links", strings.Join(job.URLs, ","))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// handleDownloadInfo implements `GET /download/{job_id}/info`.
func (s *Server) handleDownloadInfo(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")
	job, err := s.Indexer.LoadJob(r.Context(), jobID)
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func parseIntDefault(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
