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

// Package breaker implements the per-plugin circuit breaker (C4): a
// lock-free finite-state machine that stops dispatching to a plugin once
// it fails repeatedly, and lets exactly one probe through per cooldown
// window to decide whether to recover.
package breaker

import (
	"sync/atomic"
	"time"

	"github.com/meridian-idx/aggregator/internal/apperr"
	"github.com/meridian-idx/aggregator/internal/metrics"
)

const (
	failureThreshold = 5
	cooldown         = 60 * time.Second
)

// State is one of the three FSM states from spec §4.4.
type State int32

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// Breaker is a per-plugin circuit breaker. All mutation is via atomic
// CAS loops rather than a mutex, the lock-free style pkg/budget also
// uses for its stripe updates — grounded on vsa.go's preference for
// atomics over locks on a hot, small piece of state.
type Breaker struct {
	name     string
	state    atomic.Int32
	failures atomic.Int32
	until    atomic.Int64 // UnixNano; valid while state == StateOpen
}

// New creates a Breaker starting Closed. name labels the
// aggregator_circuit_state gauge this breaker publishes on every
// transition.
func New(name string) *Breaker {
	return &Breaker{name: name}
}

// State reports the breaker's current state, accounting for an Open
// breaker whose cooldown has already elapsed (which Allow would promote
// to HalfOpen, but a pure State read must not mutate anything).
func (b *Breaker) State() State {
	s := State(b.state.Load())
	if s == StateOpen && time.Now().UnixNano() >= b.until.Load() {
		return StateHalfOpen
	}
	return s
}

// Allow reports whether a call may be dispatched. It returns a
// ClassCircuitOpen error when the breaker is Open (cooldown not yet
// elapsed) or when a HalfOpen probe is already in flight — only the first
// caller to observe the cooldown's expiry is admitted, matching spec
// §4.4's "exactly one probe is permitted per cooldown-expiry window."
func (b *Breaker) Allow() (bool, error) {
	for {
		switch State(b.state.Load()) {
		case StateClosed:
			return true, nil
		case StateHalfOpen:
			return false, apperr.New(apperr.ClassCircuitOpen, "half-open probe already in flight")
		case StateOpen:
			until := b.until.Load()
			if time.Now().UnixNano() < until {
				return false, apperr.New(apperr.ClassCircuitOpen, "circuit open")
			}
			if b.state.CompareAndSwap(int32(StateOpen), int32(StateHalfOpen)) {
				metrics.SetCircuitState(b.name, int(StateHalfOpen))
				return true, nil
			}
			// Lost the race to another goroutine claiming the probe; retry
			// the loop to see the state it left behind.
		}
	}
}

// RecordSuccess closes the breaker and resets the failure counter. A
// success while HalfOpen is the recovery path; a success while Closed is
// simply the common case.
func (b *Breaker) RecordSuccess() {
	b.failures.Store(0)
	b.state.Store(int32(StateClosed))
	metrics.SetCircuitState(b.name, int(StateClosed))
}

// RecordFailure counts a failure. A failure while HalfOpen immediately
// re-trips the breaker for another full cooldown; a failure while Closed
// trips it once the threshold is reached.
func (b *Breaker) RecordFailure() {
	if State(b.state.Load()) == StateHalfOpen {
		b.trip()
		return
	}
	if b.failures.Add(1) >= failureThreshold {
		b.trip()
	}
}

func (b *Breaker) trip() {
	b.until.Store(time.Now().Add(cooldown).UnixNano())
	b.failures.Store(0)
	b.state.Store(int32(StateOpen))
	metrics.SetCircuitState(b.name, int(StateOpen))
}
