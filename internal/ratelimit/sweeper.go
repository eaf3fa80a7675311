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

package ratelimit

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// DefaultIdleTimeout is how long a domain's bucket can sit unused before
// the Sweeper reclaims it, matching the order of magnitude of the
// teacher's own eviction sweep.
const DefaultIdleTimeout = 10 * time.Minute

// Sweeper periodically evicts buckets that have gone idle. It is a
// one-loop specialization of the teacher's Worker.evictionLoop: C2 has
// nothing analogous to the teacher's commit/persist loop (a token bucket
// has no external state to flush), so only the eviction half survives.
type Sweeper struct {
	registry *Registry
	idleFor  time.Duration
	interval time.Duration
	log      zerolog.Logger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	stopped atomic.Bool
}

// NewSweeper creates a Sweeper evicting buckets idle for at least idleFor,
// checking every interval.
func NewSweeper(registry *Registry, idleFor, interval time.Duration, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		registry: registry,
		idleFor:  idleFor,
		interval: interval,
		log:      log,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the background eviction loop.
func (s *Sweeper) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
}

// Stop halts the eviction loop and waits for it to exit.
func (s *Sweeper) Stop() {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Sweeper) loop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.runCycle()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Sweeper) runCycle() {
	now := time.Now()
	var stale []string
	s.registry.ForEach(func(domain string, b *Bucket) {
		if now.Sub(b.LastAccessed()) > s.idleFor {
			stale = append(stale, domain)
		}
	})
	for _, domain := range stale {
		s.registry.Delete(domain)
	}
	if len(stale) > 0 {
		s.log.Debug().Int("evicted", len(stale)).Msg("ratelimit: evicted idle domain buckets")
	}
}
