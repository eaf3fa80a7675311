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
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-idx/aggregator/internal/model"
	"github.com/meridian-idx/aggregator/internal/registry"
	"github.com/meridian-idx/aggregator/internal/stream"
)

// playTokenTTL bounds how long a minted /stremio/play/{stream_id} token
// stays redeemable. A Stremio client fetches /stremio/stream then plays
// within seconds to minutes, so this is generous without outliving the
// underlying hoster link's own validity.
const playTokenTTL = time.Hour

type playTarget struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

func playKey(token string) string { return "streamplay:" + token }

type manifestResponse struct {
	ID         string            `json:"id"`
	Version    string            `json:"version"`
	Name       string            `json:"name"`
	Types      []string          `json:"types"`
	Resources  []string          `json:"resources"`
	Catalogs   []manifestCatalog `json:"catalogs"`
	IDPrefixes []string          `json:"idPrefixes"`
}

type manifestCatalog struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

// handleStremioManifest implements `GET /stremio/manifest.json`.
func (s *Server) handleStremioManifest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, manifestResponse{
		ID:         "org.meridian.aggregator",
		Version:    "1.0.0",
		Name:       "Meridian Aggregator",
		Types:      []string{"movie", "series"},
		Resources:  []string{"catalog", "stream"},
		Catalogs: []manifestCatalog{
			{Type: "movie", ID: "meridian-movies", Name: "Meridian Movies"},
			{Type: "series", ID: "meridian-series", Name: "Meridian Series"},
		},
		IDPrefixes: []string{"tt"},
	})
}

// handleStremioCatalog implements `GET /stremio/catalog/{type}/{id}.json`
// and its `.../search={q}.json` variant. This module's scope is indexing
// and stream resolution, not a catalog content source (no TMDB/Cinemeta
// client lives in this repo per spec §1's external-collaborators
// boundary), so the response always has the correct shape with an empty
// `metas` list; a deployment wires a real catalog source in front of or
// alongside this endpoint.
func (s *Server) handleStremioCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"metas": []any{}})
}

// parseStreamID splits a Stremio stream id into content ID and, for
// series, season/episode: "tt1234567" or "tt1234567:1:2".
func parseStreamID(id string) (contentID string, kind string, season, episode int) {
	parts := strings.Split(id, ":")
	contentID = parts[0]
	if len(parts) == 3 {
		kind = "series"
		season, _ = strconv.Atoi(parts[1])
		episode, _ = strconv.Atoi(parts[2])
		return
	}
	kind = "movie"
	return
}

// handleStremioStream implements `GET /stremio/stream/{type}/{id}.json`.
func (s *Server) handleStremioStream(w http.ResponseWriter, r *http.Request) {
	typ := r.PathValue("type")
	rawID := strings.TrimSuffix(r.PathValue("rest"), ".json")
	contentID, parsedKind, season, episode := parseStreamID(rawID)
	kind := typ
	if kind == "" {
		kind = parsedKind
	}

	req := stream.Request{
		ContentID: contentID,
		Kind:      kind,
		Season:    season,
		Episode:   episode,
		Category:  typ,
		Bucket:    string(registry.AgeBucketCurrent),
	}

	ranked, err := s.Stream.Resolve(r.Context(), req)
	if err != nil {
		s.writeError(w, err, func(w http.ResponseWriter) { writeJSON(w, http.StatusOK, map[string]any{"streams": []any{}}) })
		return
	}

	streams := make([]map[string]any, 0, len(ranked))
	for _, rs := range ranked {
		token, perr := s.mintPlayToken(r.Context(), rs)
		if perr != nil {
			s.Log.Warn().Err(perr).Str("hoster", rs.HosterName).Msg("failed to mint play token")
			continue
		}
		entry := map[string]any{
			"name":        rs.PluginName,
			"description": rs.HosterName + " · " + rs.Quality.String() + " · " + rs.Language.String(),
			"url":         s.BaseURL + "/stremio/play/" + token,
		}
		if len(rs.PlaybackHeaders) > 0 {
			entry["behaviorHints"] = map[string]any{
				"notWebReady": true,
				"proxyHeaders": map[string]any{
					"request": map[string]string(rs.PlaybackHeaders),
				},
			}
		}
		streams = append(streams, entry)
	}
	writeJSON(w, http.StatusOK, map[string]any{"streams": streams})
}

// mintPlayToken persists rs's resolved target under a fresh token so
// /stremio/play/{stream_id} can redeem it without re-running resolution.
func (s *Server) mintPlayToken(ctx context.Context, rs model.RankedStream) (string, error) {
	token := uuid.NewString()
	target := playTarget{URL: rs.DirectURL, Headers: rs.PlaybackHeaders}
	raw, err := json.Marshal(target)
	if err != nil {
		return "", err
	}
	if err := s.KV.Put(ctx, playKey(token), raw, playTokenTTL); err != nil {
		return "", err
	}
	return token, nil
}

// handleStremioPlay implements `GET /stremio/play/{stream_id}`: 302 to the
// resolved direct video URL, or 502 if the token is unknown/expired —
// never a redirect to an embed page, per spec §6.
func (s *Server) handleStremioPlay(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("stream_id")
	raw, err := s.KV.Get(r.Context(), playKey(token))
	if err != nil {
		http.Error(w, "stream unresolvable", http.StatusBadGateway)
		return
	}
	var target playTarget
	if err := json.Unmarshal(raw, &target); err != nil || target.URL == "" {
		http.Error(w, "stream unresolvable", http.StatusBadGateway)
		return
	}
	http.Redirect(w, r, target.URL, http.StatusFound)
}
