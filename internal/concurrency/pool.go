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

// Package concurrency implements the hierarchical concurrency budget
// (C3): a global pool of "fast HTTP" and "headless browser" slots, shared
// fairly across whatever top-level requests are currently in flight.
package concurrency

import (
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/meridian-idx/aggregator/internal/metrics"
	"github.com/meridian-idx/aggregator/pkg/budget"
)

// Class identifies which global slot pool a plugin invocation draws from.
type Class int

const (
	ClassFastHTTP Class = iota
	ClassHeadless
)

func (c Class) String() string {
	if c == ClassHeadless {
		return "headless"
	}
	return "fast_http"
}

// Pool holds the two global semaphores and tracks how many top-level
// requests are currently registered, which determines each request's fair
// share.
type Pool struct {
	fastHTTPSlots  *semaphore.Weighted
	headlessSlots  *semaphore.Weighted
	fastHTTPTotal  int64
	headlessTotal  int64
	fastHTTPInUse  atomic.Int64
	headlessInUse  atomic.Int64
	activeRequests atomic.Int64

	// waiter is broadcast whenever a Request deregisters or releases a
	// unit, so every blocked Acquire call re-reads its fair share instead
	// of waiting for its own request's next release.
	waiter *waiter
}

// NewPool creates a Pool sized by fastHTTPSlots/headlessSlots, typically
// the output of internal/autotune.
func NewPool(fastHTTPSlots, headlessSlots int) *Pool {
	return &Pool{
		fastHTTPSlots: semaphore.NewWeighted(int64(fastHTTPSlots)),
		headlessSlots: semaphore.NewWeighted(int64(headlessSlots)),
		fastHTTPTotal: int64(fastHTTPSlots),
		headlessTotal: int64(headlessSlots),
		waiter:        newWaiter(),
	}
}

func (p *Pool) semFor(class Class) *semaphore.Weighted {
	if class == ClassHeadless {
		return p.headlessSlots
	}
	return p.fastHTTPSlots
}

func (p *Pool) totalFor(class Class) int64 {
	if class == ClassHeadless {
		return p.headlessTotal
	}
	return p.fastHTTPTotal
}

func (p *Pool) inUseFor(class Class) *atomic.Int64 {
	if class == ClassHeadless {
		return &p.headlessInUse
	}
	return &p.fastHTTPInUse
}

// Stats reports the current capacity and in-use slot count for class, for
// internal/metrics and the /stats/metrics endpoint to publish utilization.
func (p *Pool) Stats(class Class) (inUse, capacity int64) {
	return p.inUseFor(class).Load(), p.totalFor(class)
}

// publishUtilization pushes class's current Stats to the
// aggregator_pool_utilization gauge. Called from Request.Acquire/Release
// so the gauge tracks every slot transition instead of a poll loop.
func (p *Pool) publishUtilization(class Class) {
	inUse, capacity := p.Stats(class)
	metrics.SetPoolUtilization(class.String(), int(inUse), int(capacity))
}

// Register returns a Request scoped to one top-level indexer/stream
// request, and increments the pool's active-request count. Callers must
// call the returned Deregister exactly once, typically via defer.
func (p *Pool) Register() (*Request, func()) {
	p.activeRequests.Add(1)
	r := &Request{
		pool:           p,
		fastBudget:     budget.New(1),
		headlessBudget: budget.New(1),
	}

	var deregistered atomic.Bool
	deregister := func() {
		if deregistered.CompareAndSwap(false, true) {
			p.activeRequests.Add(-1)
			p.waiter.broadcast()
		}
	}
	return r, deregister
}

// fairShare computes max(1, total/activeRequests), per spec §4.3. It is
// read fresh on every Acquire so surviving requests pick up a larger share
// as soon as a sibling deregisters.
func (p *Pool) fairShare(class Class) int64 {
	active := p.activeRequests.Load()
	if active < 1 {
		active = 1
	}
	share := p.totalFor(class) / active
	if share < 1 {
		share = 1
	}
	return share
}
