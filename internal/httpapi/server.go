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

// Package httpapi implements the public-facing HTTP server: the Torznab
// indexer surface, the Stremio addon surface, and the operational
// endpoints, wired onto a single http.ServeMux the way
// internal/ratelimiter/api.Server wires /check and /release, generalized
// from two routes to the full external interface.
package httpapi

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"

	"github.com/meridian-idx/aggregator/internal/apperr"
	"github.com/meridian-idx/aggregator/internal/breaker"
	"github.com/meridian-idx/aggregator/internal/concurrency"
	"github.com/meridian-idx/aggregator/internal/indexer"
	"github.com/meridian-idx/aggregator/internal/kvstore"
	"github.com/meridian-idx/aggregator/internal/lifecycle"
	"github.com/meridian-idx/aggregator/internal/registry"
	"github.com/meridian-idx/aggregator/internal/scoring"
	"github.com/meridian-idx/aggregator/internal/stream"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Server holds every component a route handler needs to reach. It has no
// behavior of its own beyond parsing requests, calling into the
// orchestrators, and formatting responses, per spec §6's "route handlers
// are thin" boundary.
type Server struct {
	App       *lifecycle.App
	Indexer   *indexer.Orchestrator
	Stream    *stream.Orchestrator
	Registry  *registry.Registry
	Breakers  *breaker.Registry
	Pool      *concurrency.Pool
	Scores    *scoring.Store
	KV        kvstore.Store
	Prod      bool
	Log       zerolog.Logger

	// BaseURL is this server's own externally-reachable origin, used to
	// build the /stremio/play URLs in stream responses.
	BaseURL string

	// HTTPClient performs the lightweight reachability probe behind
	// t=search&extended=1&q= and /torznab/{plugin}/health. Defaults to
	// http.DefaultClient when nil.
	HTTPClient *http.Client
}

func (s *Server) httpClient() *http.Client {
	if s.HTTPClient != nil {
		return s.HTTPClient
	}
	return http.DefaultClient
}

// NewServer builds a Server. Prod selects spec §7's error-visibility
// policy: true collapses Upstream/Internal failures into an empty
// feed/200 so client schedulers stay stable; false surfaces the real
// status code and error detail.
func NewServer(app *lifecycle.App, idx *indexer.Orchestrator, strm *stream.Orchestrator, reg *registry.Registry, breakers *breaker.Registry, pool *concurrency.Pool, scores *scoring.Store, kv kvstore.Store, prod bool, log zerolog.Logger) *Server {
	return &Server{
		App:      app,
		Indexer:  idx,
		Stream:   strm,
		Registry: reg,
		Breakers: breakers,
		Pool:     pool,
		Scores:   scores,
		KV:       kv,
		Prod:     prod,
		Log:      log,
	}
}

// RegisterRoutes wires every spec §6 endpoint onto mux, wrapped in the
// in-flight tracking middleware C11's drain wait depends on.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /indexers", s.track(s.handleListIndexers))
	mux.Handle("GET /torznab/{plugin}", s.track(s.handleTorznab))
	mux.Handle("GET /torznab/{plugin}/health", s.track(s.handleTorznabHealth))
	mux.Handle("GET /download/{job_id}", s.track(s.handleDownload))
	mux.Handle("GET /download/{job_id}/info", s.track(s.handleDownloadInfo))

	mux.Handle("GET /stremio/manifest.json", s.track(s.handleStremioManifest))
	mux.Handle("GET /stremio/catalog/{type}/{rest...}", s.track(s.handleStremioCatalog))
	mux.Handle("GET /stremio/stream/{type}/{rest...}", s.track(s.handleStremioStream))
	mux.Handle("GET /stremio/play/{stream_id}", s.track(s.handleStremioPlay))

	mux.Handle("GET /healthz", s.track(s.handleHealthz))
	mux.Handle("GET /readyz", s.track(s.handleReadyz))
	mux.Handle("GET /stats/metrics", s.track(s.handleStatsMetrics))
	mux.Handle("GET /stats/plugin-scores", s.track(s.handleStatsPluginScores))
}

// track wraps a handler with lifecycle.App's in-flight bookkeeping, so
// App.Stop's drain wait knows when the last request finished.
func (s *Server) track(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.App.BeginRequest()
		defer s.App.EndRequest()
		h(w, r)
	})
}

// writeJSON marshals v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusForClass maps an apperr.Class to the HTTP status it surfaces as
// in dev/test mode, per spec §7's taxonomy.
func statusForClass(class apperr.Class) int {
	switch class {
	case apperr.ClassNotFound:
		return http.StatusNotFound
	case apperr.ClassInvalidInput:
		return http.StatusBadRequest
	case apperr.ClassUpstreamTimeout:
		return http.StatusGatewayTimeout
	case apperr.ClassUpstreamUnavailable, apperr.ClassCircuitOpen, apperr.ClassBudgetExhausted:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError applies spec §7's propagation policy: BadInput/NotFound
// always surface their real status; Upstream/Internal collapse to an
// empty 200 in prod (callers pass the already-built empty response via
// emptyBody) and surface detail otherwise.
func (s *Server) writeError(w http.ResponseWriter, err error, emptyBody func(w http.ResponseWriter)) {
	class := apperr.Classify(err)
	if s.Prod && (class == apperr.ClassUpstreamTimeout || class == apperr.ClassUpstreamUnavailable ||
		class == apperr.ClassCircuitOpen || class == apperr.ClassBudgetExhausted || class == apperr.ClassInternal || class == apperr.ClassUnknown) {
		if emptyBody != nil {
			emptyBody(w)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	writeJSON(w, statusForClass(class), map[string]string{"error": err.Error()})
}
