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

// Package prober implements the background health and mini-search
// probers (C7) that keep the plugin score store (C6) warm.
package prober

import (
	"context"
	"hash/fnv"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/meridian-idx/aggregator/internal/apperr"
	"github.com/meridian-idx/aggregator/internal/metrics"
	"github.com/meridian-idx/aggregator/internal/registry"
	"github.com/meridian-idx/aggregator/internal/scoring"
)

const (
	tickInterval             = 5 * time.Minute
	healthInterval           = 24 * time.Hour
	defaultSearchRunsPerWeek = 2
	healthConcurrency        = 5
	searchConcurrency        = 3
)

// DefaultCategories is the set of Torznab categories mini-search probes
// cover when a caller does not supply its own list.
var DefaultCategories = []string{"movies", "tv"}

// Scheduler is the single 5-minute tick loop described in spec §4.7: it
// collects everything due, dispatches each probe under a per-type
// semaphore, and isolates one plugin's failure from the rest. It is the
// domain specialization of the teacher's Worker: Worker commits and
// evicts VSA state on two independent tickers, this scheduler probes and
// scores plugins on one.
type Scheduler struct {
	reg         *registry.Registry
	store       *scoring.Store
	client      *http.Client
	supported   HosterSupported
	querySource QuerySource
	categories  []string

	searchRunsPerWeek int
	healthSem         *semaphore.Weighted
	searchSem         *semaphore.Weighted

	log zerolog.Logger

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stopped atomic.Bool
}

// NewScheduler builds a Scheduler. supported classifies a URL as
// resolver-recognized (C8); pass a func that always returns true if C8
// isn't wired yet. querySource may be nil, in which case the bundled
// fallback query pool is used exclusively.
func NewScheduler(reg *registry.Registry, store *scoring.Store, client *http.Client, supported HosterSupported, querySource QuerySource, log zerolog.Logger) *Scheduler {
	if client == nil {
		client = http.DefaultClient
	}
	return &Scheduler{
		reg:               reg,
		store:             store,
		client:            client,
		supported:         supported,
		querySource:       querySource,
		categories:        DefaultCategories,
		searchRunsPerWeek: defaultSearchRunsPerWeek,
		healthSem:         semaphore.NewWeighted(healthConcurrency),
		searchSem:         semaphore.NewWeighted(searchConcurrency),
		log:               log,
	}
}

// Start launches the scheduler loop. Calling Start twice is a caller
// error; it is not guarded against, matching the teacher's Worker.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx)
	}()
}

// Stop cancels the loop and every in-flight probe, then waits for all
// dispatched probe goroutines to unwind.
func (s *Scheduler) Stop() {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.runCycle(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	now := time.Now()
	_, isoWeek := now.ISOWeek()
	queries := s.resolveQueries(isoWeek)

	for _, name := range s.reg.ListNames() {
		desc, ok := s.reg.Descriptor(name)
		if !ok {
			continue
		}

		if desc.OriginURL != "" && s.dueForHealth(ctx, name, now) {
			s.wg.Add(1)
			go s.runHealthJob(ctx, desc)
		}

		for _, category := range s.categories {
			for bucket := range desc.AgeBuckets {
				if !s.dueForSearch(ctx, name, category, string(bucket), now) {
					continue
				}
				query := pickQuery(queries, name, category, string(bucket))
				s.wg.Add(1)
				go s.runSearchJob(ctx, name, desc, category, bucket, query)
			}
		}
	}
}

func (s *Scheduler) resolveQueries(isoWeek int) []string {
	var pool []string
	if s.querySource != nil {
		if fetched, err := s.querySource.Queries(); err == nil {
			pool = fetched
		} else {
			s.log.Warn().Err(err).Msg("prober: query source fetch failed, using bundled fallback")
		}
	}
	return WeeklyQueries(pool, isoWeek, 20)
}

func (s *Scheduler) dueForHealth(ctx context.Context, plugin string, now time.Time) bool {
	last, err := s.store.LastRun(ctx, "health", plugin, "", "")
	if err != nil {
		s.log.Warn().Err(err).Str("plugin", plugin).Msg("prober: last-run lookup failed")
		return false
	}
	return now.Sub(last) >= healthInterval
}

func (s *Scheduler) dueForSearch(ctx context.Context, plugin, category, bucket string, now time.Time) bool {
	last, err := s.store.LastRun(ctx, "search", plugin, category, bucket)
	if err != nil {
		s.log.Warn().Err(err).Str("plugin", plugin).Msg("prober: last-run lookup failed")
		return false
	}
	interval := 7 * 24 * time.Hour / time.Duration(s.searchRunsPerWeek)
	return now.Sub(last) >= interval
}

func (s *Scheduler) runHealthJob(ctx context.Context, desc registry.Descriptor) {
	defer s.wg.Done()
	if err := s.healthSem.Acquire(ctx, 1); err != nil {
		return
	}
	defer s.healthSem.Release(1)
	defer s.isolate(desc.Name, "health")

	probe := RunHealthProbe(ctx, s.client, desc.OriginURL)
	now := time.Now()
	if err := s.applyHealthObservation(ctx, desc.Name, probe, now); err != nil {
		s.log.Warn().Err(err).Str("plugin", desc.Name).Msg("prober: failed to persist health observation")
	}
}

func (s *Scheduler) runSearchJob(ctx context.Context, name string, desc registry.Descriptor, category string, bucket registry.AgeBucket, query string) {
	defer s.wg.Done()
	if err := s.searchSem.Acquire(ctx, 1); err != nil {
		return
	}
	defer s.searchSem.Release(1)
	defer s.isolate(name, "search")

	plugin, err := s.reg.Get(name)
	if err != nil {
		s.log.Warn().Err(err).Str("plugin", name).Msg("prober: could not load plugin for search probe")
		return
	}

	probe := RunSearchProbe(ctx, s.client, plugin, query, category, s.supported)
	now := time.Now()
	if err := s.applySearchObservation(ctx, name, category, string(bucket), probe, now); err != nil {
		s.log.Warn().Err(err).Str("plugin", name).Msg("prober: failed to persist search observation")
	}
}

// isolate recovers a panicking probe goroutine so one plugin's crash
// cannot halt the scheduler, per spec §4.7.
func (s *Scheduler) isolate(plugin, probeType string) {
	if r := recover(); r != nil {
		s.log.Error().Interface("panic", r).Str("plugin", plugin).Str("probe", probeType).Msg("prober: recovered from panic")
	}
}

func (s *Scheduler) applyHealthObservation(ctx context.Context, plugin string, probe scoring.HealthProbe, now time.Time) error {
	snap, err := s.store.Load(ctx, plugin, "", "")
	if err != nil && apperr.Classify(err) != apperr.ClassNotFound {
		return err
	}
	if apperr.Classify(err) == apperr.ClassNotFound {
		snap = scoring.Snapshot{Plugin: plugin}
	}
	snap.Health = scoring.UpdateState(snap.Health, scoring.HealthObservation(probe), now, scoring.HealthHalfLife)
	recomputeFinal(&snap, now)
	metrics.ObserveProbeResult(plugin, probe.OK)
	metrics.SetPluginScore(plugin, snap.Category, snap.Bucket, snap.Confidence)
	if err := s.store.Save(ctx, snap); err != nil {
		return err
	}
	return s.store.RecordLastRun(ctx, "health", plugin, "", "", now)
}

func (s *Scheduler) applySearchObservation(ctx context.Context, plugin, category, bucket string, probe scoring.SearchProbe, now time.Time) error {
	snap, err := s.store.Load(ctx, plugin, category, bucket)
	if err != nil && apperr.Classify(err) != apperr.ClassNotFound {
		return err
	}
	if apperr.Classify(err) == apperr.ClassNotFound {
		snap = scoring.Snapshot{Plugin: plugin, Category: category, Bucket: bucket}
		// Seed this bucket's health from the plugin-wide snapshot so a
		// brand new (category, bucket) pair doesn't start at confidence 0
		// on the health axis just because search hasn't run here before.
		if wide, werr := s.store.Load(ctx, plugin, "", ""); werr == nil {
			snap.Health = wide.Health
		}
	}
	snap.Search = scoring.UpdateState(snap.Search, scoring.SearchObservation(probe), now, scoring.SearchHalfLife)
	recomputeFinal(&snap, now)
	metrics.ObserveProbeResult(plugin, probe.OK)
	metrics.SetPluginScore(plugin, category, bucket, snap.Confidence)
	if err := s.store.Save(ctx, snap); err != nil {
		return err
	}
	return s.store.RecordLastRun(ctx, "search", plugin, category, bucket, now)
}

func recomputeFinal(snap *scoring.Snapshot, now time.Time) {
	samples := snap.Health.Samples + snap.Search.Samples
	age := now.Sub(latestOf(snap.Health.LastUpdated, snap.Search.LastUpdated))
	snap.Confidence = scoring.Confidence(samples, age)
	snap.Final = scoring.Final(snap.Health.Value, snap.Search.Value, snap.Confidence)
}

func latestOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

// pickQuery deterministically selects one query for (plugin, category,
// bucket) from the week's pool, so repeated scheduler cycles within the
// same ISO week probe with the same query rather than a new random one
// every 5 minutes.
func pickQuery(queries []string, plugin, category, bucket string) string {
	if len(queries) == 0 {
		return ""
	}
	h := fnv.New32a()
	h.Write([]byte(plugin + "|" + category + "|" + bucket))
	return queries[int(h.Sum32())%len(queries)]
}
