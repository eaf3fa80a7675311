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

// Package indexer implements the indexer orchestrator (C9): the
// Torznab-facing pipeline that turns a (plugin, query) pair into a
// deduplicated, link-validated feed of CrawlJobs.
package indexer

import (
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/google/uuid"

	"github.com/meridian-idx/aggregator/internal/apperr"
	"github.com/meridian-idx/aggregator/internal/breaker"
	"github.com/meridian-idx/aggregator/internal/concurrency"
	"github.com/meridian-idx/aggregator/internal/crawljob"
	"github.com/meridian-idx/aggregator/internal/kvstore"
	"github.com/meridian-idx/aggregator/internal/metrics"
	"github.com/meridian-idx/aggregator/internal/model"
	"github.com/meridian-idx/aggregator/internal/registry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FeedItem pairs one surviving search result with the CrawlJob built for
// it.
type FeedItem struct {
	Result model.SearchResult
	JobID  string
}

// Feed is one page of an indexer response.
type Feed struct {
	Items []FeedItem
	// CacheHit is true when the underlying result set came from the
	// result cache rather than a live plugin invocation.
	CacheHit bool
}

// Orchestrator implements spec §4.9's 8-step algorithm, composing the
// registry (C5), concurrency pool (C3), breaker registry (C4), and KV
// store (C1).
type Orchestrator struct {
	Registry  *registry.Registry
	Pool      *concurrency.Pool
	Breakers  *breaker.Registry
	KV        kvstore.Store
	Validator *URLValidator
	CacheTTL  time.Duration
}

// NewOrchestrator builds an Orchestrator with the default cache TTL;
// override CacheTTL afterward if a deployment wants a different point in
// spec §3's 15-30 minute band.
func NewOrchestrator(reg *registry.Registry, pool *concurrency.Pool, breakers *breaker.Registry, kv kvstore.Store, validator *URLValidator) *Orchestrator {
	return &Orchestrator{
		Registry:  reg,
		Pool:      pool,
		Breakers:  breakers,
		KV:        kv,
		Validator: validator,
		CacheTTL:  DefaultCacheTTL,
	}
}

// Search runs the full C9 pipeline for one (plugin, query, category)
// request and returns the offset/limit page of the resulting feed.
func (o *Orchestrator) Search(ctx context.Context, plugin, query, category string, offset, limit int) (Feed, error) {
	key := cacheKey(plugin, query, category)

	if cached, ok := o.readCache(ctx, key); ok {
		return paginate(cached, offset, limit, true), nil
	}

	items, err := o.buildFeed(ctx, plugin, query, category)
	if err != nil {
		return Feed{}, err
	}

	o.writeCache(ctx, key, items)
	return paginate(items, offset, limit, false), nil
}

func (o *Orchestrator) buildFeed(ctx context.Context, plugin, query, category string) ([]FeedItem, error) {
	desc, ok := o.Registry.Descriptor(plugin)
	if !ok {
		return nil, apperr.Wrap(apperr.ClassNotFound, apperr.ErrNotFound, "plugin "+plugin)
	}

	req, deregister := o.Pool.Register()
	defer deregister()

	class := concurrency.ClassFastHTTP
	if desc.Mode == registry.ModeHeadlessBrowser {
		class = concurrency.ClassHeadless
	}
	if err := req.Acquire(ctx, class); err != nil {
		return nil, err
	}
	defer req.Release(class)

	results, err := o.invokePlugin(ctx, plugin, query, category)
	if err != nil {
		if apperr.Classify(err) == apperr.ClassCircuitOpen {
			return nil, nil
		}
		return nil, err
	}

	deduped := dedupResults(results)
	validated := o.validateAndPromote(ctx, deduped)

	return o.buildCrawlJobs(ctx, validated)
}

func (o *Orchestrator) invokePlugin(ctx context.Context, plugin, query, category string) ([]model.SearchResult, error) {
	br := o.Breakers.Get(plugin)
	if allowed, err := br.Allow(); !allowed {
		return nil, err
	}

	p, err := o.Registry.Get(plugin)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	results, err := p.Search(ctx, query, category, 0, 0)
	metrics.ObservePluginInvocation(plugin, err == nil, time.Since(start).Seconds())
	if err != nil {
		br.RecordFailure()
		return nil, apperr.Wrap(apperr.ClassUpstreamUnavailable, err, "plugin search "+plugin)
	}
	br.RecordSuccess()
	return results, nil
}

// dedupResults collapses results sharing (normalized-title, primary-url),
// keeping the first occurrence, per spec §4.9 step 4.
func dedupResults(results []model.SearchResult) []model.SearchResult {
	seen := make(map[string]bool, len(results))
	out := make([]model.SearchResult, 0, len(results))
	for _, r := range results {
		key := normalizeTitle(r.Title) + "|" + r.PrimaryURL
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

// validateAndPromote runs the single-batch URL validation of spec §4.9
// step 5 across every primary and alternative URL, then applies step 6:
// keep a valid primary as-is, promote the first valid alternative if the
// primary is invalid, or drop the result entirely if nothing validates.
func (o *Orchestrator) validateAndPromote(ctx context.Context, results []model.SearchResult) []model.SearchResult {
	urlSet := make(map[string]bool)
	for _, r := range results {
		urlSet[r.PrimaryURL] = true
		for _, alt := range r.Alternatives {
			urlSet[alt.URL] = true
		}
	}
	urls := make([]string, 0, len(urlSet))
	for u := range urlSet {
		urls = append(urls, u)
	}
	valid := o.Validator.ValidateAll(ctx, urls)

	out := make([]model.SearchResult, 0, len(results))
	for _, r := range results {
		if valid[r.PrimaryURL] {
			out = append(out, r)
			continue
		}
		promoted := false
		for _, alt := range r.Alternatives {
			if valid[alt.URL] {
				r.PrimaryURL = alt.URL
				promoted = true
				break
			}
		}
		if promoted {
			out = append(out, r)
		}
	}
	return out
}

// buildCrawlJobs builds and persists one CrawlJob per surviving result,
// per spec §4.9 step 7.
func (o *Orchestrator) buildCrawlJobs(ctx context.Context, results []model.SearchResult) ([]FeedItem, error) {
	items := make([]FeedItem, 0, len(results))
	now := time.Now()
	for _, r := range results {
		job := crawljob.Job{
			ID:          uuid.NewString(),
			PackageName: r.ReleaseName,
			CreatedAt:   now,
			ExpiresAt:   now.Add(crawljob.DefaultTTL),
			URLs:        []string{r.PrimaryURL},
			SourceURL:   r.SourcePageURL,
			Priority:    crawljob.PriorityNormal,
			AutoStart:   false,
			Enabled:     true,
		}
		if job.PackageName == "" {
			job.PackageName = r.Title
		}
		if err := o.saveJob(ctx, job); err != nil {
			return nil, err
		}
		items = append(items, FeedItem{Result: r, JobID: job.ID})
	}
	return items, nil
}

func (o *Orchestrator) saveJob(ctx context.Context, job crawljob.Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return apperr.Wrap(apperr.ClassInternal, err, "marshal crawljob")
	}
	return o.KV.Put(ctx, jobKey(job.ID), raw, crawljob.DefaultTTL)
}

// LoadJob fetches a previously-built CrawlJob by ID, for the
// /download/{job_id} and /download/{job_id}/info endpoints.
func (o *Orchestrator) LoadJob(ctx context.Context, jobID string) (crawljob.Job, error) {
	raw, err := o.KV.Get(ctx, jobKey(jobID))
	if err != nil {
		return crawljob.Job{}, err
	}
	var job crawljob.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return crawljob.Job{}, apperr.Wrap(apperr.ClassInternal, err, "unmarshal crawljob "+jobID)
	}
	return job, nil
}

func jobKey(id string) string { return "crawljob:" + id }

func (o *Orchestrator) readCache(ctx context.Context, key string) ([]FeedItem, bool) {
	raw, err := o.KV.Get(ctx, key)
	if err != nil {
		return nil, false
	}
	var items []FeedItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	return items, true
}

func (o *Orchestrator) writeCache(ctx context.Context, key string, items []FeedItem) {
	raw, err := json.Marshal(items)
	if err != nil {
		return
	}
	_ = o.KV.Put(ctx, key, raw, o.CacheTTL)
}

// paginate applies spec §4.9 step 8's offset/limit slicing.
func paginate(items []FeedItem, offset, limit int, cacheHit bool) Feed {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return Feed{Items: []FeedItem{}, CacheHit: cacheHit}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return Feed{Items: items[offset:end], CacheHit: cacheHit}
}
