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

package resolver

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	rendezvous "github.com/dgryski/go-rendezvous"

	"github.com/meridian-idx/aggregator/internal/netutil"
)

const (
	// DefaultCacheTTL is how long a resolved (or confirmed-dead) URL is
	// cached before the sweep reclaims it, per spec §4.8.
	DefaultCacheTTL = 2 * time.Hour
	defaultShards   = 16
	sweepInterval   = 10 * time.Minute
	maxRedirects    = 5
)

type cacheEntry struct {
	stream *ResolvedStream // nil means "confirmed unresolvable"
	expiry time.Time
}

// shard is one independently-locked slice of the resolve cache. Splitting
// the cache into shards keyed by rendezvous hashing keeps lock contention
// local instead of serializing every lookup behind one mutex, the same
// motivation [[internal/ratelimit]]'s per-domain Registry has for keeping
// its buckets in a sync.Map instead of one mutex-guarded map.
type shard struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// Registry is the hoster resolver dispatch table (C8): domain-keyed
// Resolver lookup, a final-domain redirect fallback, a content-type-probe
// fallback for unmatched direct-video URLs, and a sharded, TTL-evicted
// resolve cache.
type Registry struct {
	resolvers map[string]Resolver
	client    *http.Client
	cacheTTL  time.Duration

	ring       *rendezvous.Rendezvous
	shardNames []string
	shards     map[string]*shard

	stopCh  chan struct{}
	wg      sync.WaitGroup
	stopped atomic.Bool
}

// NewRegistry builds an empty Registry. Register hoster resolvers with
// Register before calling Resolve.
func NewRegistry(client *http.Client) *Registry {
	if client == nil {
		client = http.DefaultClient
	}
	shardNames := make([]string, defaultShards)
	shards := make(map[string]*shard, defaultShards)
	for i := range shardNames {
		name := fmt.Sprintf("shard-%d", i)
		shardNames[i] = name
		shards[name] = &shard{entries: make(map[string]cacheEntry)}
	}

	return &Registry{
		resolvers:  make(map[string]Resolver),
		client:     client,
		cacheTTL:   DefaultCacheTTL,
		ring:       rendezvous.New(shardNames, xxhash.Sum64String),
		shardNames: shardNames,
		shards:     shards,
		stopCh:     make(chan struct{}),
	}
}

// Register binds a Resolver to a registrable domain.
func (r *Registry) Register(domain string, resolver Resolver) {
	r.resolvers[netutil.RegistrableDomain(domain)] = resolver
}

// Supported reports whether rawURL's domain has a registered resolver,
// used by [[internal/prober]] to restrict mini-search link checks to
// hosters this registry actually understands.
func (r *Registry) Supported(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	_, ok := r.resolvers[netutil.RegistrableDomain(u.Host)]
	return ok
}

// Start launches the background cache sweep.
func (r *Registry) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.sweepLoop()
	}()
}

// Stop halts the sweep loop and waits for it to exit.
func (r *Registry) Stop() {
	if !r.stopped.CompareAndSwap(false, true) {
		return
	}
	close(r.stopCh)
	r.wg.Wait()
}

// Resolve implements the three-step algorithm from spec §4.8: exact
// domain dispatch, a redirect-chase fallback to find a resolvable final
// domain, and a content-type-probe fallback for URLs that are already a
// direct video. Results (including confirmed-unresolvable ones) are
// cached for cacheTTL.
func (r *Registry) Resolve(ctx context.Context, rawURL string) (*ResolvedStream, error) {
	if cached, ok := r.lookupCache(rawURL); ok {
		return cached, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	domain := netutil.RegistrableDomain(u.Host)
	res, ok := r.resolvers[domain]
	finalURL := rawURL
	if !ok {
		finalURL, res, ok = r.followRedirectsToResolver(ctx, rawURL)
	}

	var stream *ResolvedStream
	if ok {
		stream, err = res.Resolve(ctx, finalURL)
		if err != nil {
			return nil, err
		}
	} else if probed, probeErr := r.probeDirectVideo(ctx, finalURL); probeErr == nil && probed {
		stream = &ResolvedStream{VideoURL: finalURL}
	}

	r.storeCache(rawURL, stream)
	return stream, nil
}

// followRedirectsToResolver follows up to maxRedirects hops looking for a
// domain this registry has a resolver for.
func (r *Registry) followRedirectsToResolver(ctx context.Context, rawURL string) (string, Resolver, bool) {
	current := rawURL
	client := &http.Client{
		Transport: r.client.Transport,
		Timeout:   r.client.Timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	for i := 0; i < maxRedirects; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, current, nil)
		if err != nil {
			return current, nil, false
		}
		resp, err := client.Do(req)
		if err != nil {
			return current, nil, false
		}
		resp.Body.Close()

		if resp.StatusCode < 300 || resp.StatusCode >= 400 {
			break
		}
		loc := resp.Header.Get("Location")
		if loc == "" {
			break
		}
		next, err := resp.Request.URL.Parse(loc)
		if err != nil {
			break
		}
		current = next.String()
		if res, ok := r.resolvers[netutil.RegistrableDomain(next.Host)]; ok {
			return current, res, true
		}
	}
	return current, nil, false
}

// probeDirectVideo HEADs url and reports whether its Content-Type looks
// like a playable video, the registry's last-resort fallback for a domain
// with no registered resolver.
func (r *Registry) probeDirectVideo(ctx context.Context, rawURL string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return false, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return false, nil
	}
	ct := resp.Header.Get("Content-Type")
	return len(ct) >= 6 && ct[:6] == "video/", nil
}

func (r *Registry) shardFor(key string) *shard {
	return r.shards[r.ring.Lookup(key)]
}

func (r *Registry) lookupCache(key string) (*ResolvedStream, bool) {
	s := r.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok || time.Now().After(e.expiry) {
		return nil, false
	}
	return e.stream, true
}

func (r *Registry) storeCache(key string, stream *ResolvedStream) {
	s := r.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = cacheEntry{stream: stream, expiry: time.Now().Add(r.cacheTTL)}
}

func (r *Registry) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.sweepOnce()
		case <-r.stopCh:
			return
		}
	}
}

func (r *Registry) sweepOnce() {
	now := time.Now()
	for _, s := range r.shards {
		s.mu.Lock()
		for k, e := range s.entries {
			if now.After(e.expiry) {
				delete(s.entries, k)
			}
		}
		s.mu.Unlock()
	}
}
