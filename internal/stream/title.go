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

// Package stream implements the Stremio-facing stream orchestrator
// (C10): canonical title resolution, search-plan construction, scored
// plugin selection, ranked merging, and early-stop resolve through the
// hoster registry.
package stream

import (
	"context"
	"sync"
	"time"
)

// Title is the canonical (title, year, alt-titles) triple a content ID
// resolves to, per spec §4.10 step 1.
type Title struct {
	ID        string
	Kind      string // "movie" | "series"
	Name      string
	Year      int
	AltTitles []string
}

// TitleResolver looks up the canonical Title for an external content ID.
// A real implementation talks to TMDB/IMDb; that network client is an
// external collaborator outside this module's scope, so only the
// interface and a caching decorator live here.
type TitleResolver interface {
	Resolve(ctx context.Context, contentID, kind string) (Title, error)
}

type cachedTitle struct {
	title   Title
	expires time.Time
}

// CachingResolver wraps a TitleResolver with a short in-memory TTL cache,
// per spec §4.10 step 1's "cache with short TTL."
type CachingResolver struct {
	next TitleResolver
	ttl  time.Duration

	mu    sync.Mutex
	cache map[string]cachedTitle
}

// DefaultTitleCacheTTL is the short cache lifetime for resolved titles.
const DefaultTitleCacheTTL = 15 * time.Minute

// NewCachingResolver wraps next with a ttl-bounded in-memory cache.
// ttl <= 0 uses DefaultTitleCacheTTL.
func NewCachingResolver(next TitleResolver, ttl time.Duration) *CachingResolver {
	if ttl <= 0 {
		ttl = DefaultTitleCacheTTL
	}
	return &CachingResolver{next: next, ttl: ttl, cache: make(map[string]cachedTitle)}
}

func titleCacheKey(contentID, kind string) string { return kind + ":" + contentID }

// Resolve returns the cached Title when still fresh, otherwise delegates
// to the wrapped resolver and caches the result.
func (c *CachingResolver) Resolve(ctx context.Context, contentID, kind string) (Title, error) {
	key := titleCacheKey(contentID, kind)

	c.mu.Lock()
	if entry, ok := c.cache[key]; ok && time.Now().Before(entry.expires) {
		c.mu.Unlock()
		return entry.title, nil
	}
	c.mu.Unlock()

	title, err := c.next.Resolve(ctx, contentID, kind)
	if err != nil {
		return Title{}, err
	}

	c.mu.Lock()
	c.cache[key] = cachedTitle{title: title, expires: time.Now().Add(c.ttl)}
	c.mu.Unlock()
	return title, nil
}

// StaticTitleResolver is a fixed-table TitleResolver for tests and for
// deployments that pre-seed their own catalog instead of calling out to
// TMDB/IMDb.
type StaticTitleResolver struct {
	Titles map[string]Title // keyed by "kind:contentID"
}

// Resolve looks contentID/kind up in the fixed table.
func (s StaticTitleResolver) Resolve(ctx context.Context, contentID, kind string) (Title, error) {
	t, ok := s.Titles[titleCacheKey(contentID, kind)]
	if !ok {
		return Title{}, errTitleNotFound(contentID, kind)
	}
	return t, nil
}
