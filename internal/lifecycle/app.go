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

// Package lifecycle composes C1 through C10 into a single application
// with an ordered startup, a readiness flag, a request-drain wait, and
// reverse-order teardown, generalizing cmd/ratelimiter-api/main.go's
// construct-then-Start-then-serve-then-signal-wait-then-Stop structure
// to N components.
package lifecycle

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/meridian-idx/aggregator/internal/metrics"
)

// component is one lifecycle participant. start/stop may be nil for
// components with nothing to start or stop (e.g. the plugin registry
// once discovery has run); App skips nil hooks.
type component struct {
	name  string
	start func(ctx context.Context) error
	stop  func(ctx context.Context) error
}

// App tracks readiness and in-flight requests around an ordered list of
// components, torn down in reverse order on Stop.
type App struct {
	log          zerolog.Logger
	components   []component
	ready        atomic.Bool
	inFlight     atomic.Int64
	drainTimeout time.Duration
}

// New creates an empty App. Components are registered via Register, in
// the startup order spec §4.11 names (KV, C2 transport, C3 pool, C5
// discovery, C6 store + C7 scheduler, C8 resolver, C9/C10 orchestrators);
// callers are responsible for registering in that order since App itself
// has no knowledge of the concrete component types.
func New(log zerolog.Logger, drainTimeout time.Duration) *App {
	return &App{log: log, drainTimeout: drainTimeout}
}

// Register adds a component to the startup sequence. start or stop may
// be nil.
func (a *App) Register(name string, start, stop func(ctx context.Context) error) {
	a.components = append(a.components, component{name: name, start: start, stop: stop})
}

// Start runs every registered component's start hook in registration
// order, stopping at the first failure (and not flipping readiness).
// On full success, readiness flips to true.
func (a *App) Start(ctx context.Context) error {
	for _, c := range a.components {
		if c.start == nil {
			continue
		}
		a.log.Info().Str("component", c.name).Msg("starting")
		if err := c.start(ctx); err != nil {
			return &StartError{Component: c.name, Err: err}
		}
	}
	a.ready.Store(true)
	return nil
}

// Ready reports whether startup has completed and the app is accepting
// new requests. /readyz reads this directly.
func (a *App) Ready() bool {
	return a.ready.Load()
}

// BeginRequest increments the in-flight counter. Callers (httpapi
// middleware) must pair it with a deferred EndRequest.
func (a *App) BeginRequest() {
	a.inFlight.Add(1)
	metrics.InFlightRequests.Inc()
}

// EndRequest decrements the in-flight counter.
func (a *App) EndRequest() {
	a.inFlight.Add(-1)
	metrics.InFlightRequests.Dec()
}

// InFlight reports the current in-flight request count, exposed for
// internal/metrics.
func (a *App) InFlight() int64 {
	return a.inFlight.Load()
}

// Stop flips readiness off (so /readyz reports 503 from here on; request
// handlers themselves do not check it), waits up to the configured drain
// timeout for in-flight requests to reach zero, then tears down every
// component in reverse registration order regardless of whether the
// drain wait succeeded — a shutdown must not hang forever on a stuck
// request.
func (a *App) Stop(ctx context.Context) error {
	a.ready.Store(false)

	a.drain(ctx)

	var firstErr error
	for i := len(a.components) - 1; i >= 0; i-- {
		c := a.components[i]
		if c.stop == nil {
			continue
		}
		a.log.Info().Str("component", c.name).Msg("stopping")
		if err := c.stop(ctx); err != nil {
			a.log.Error().Str("component", c.name).Err(err).Msg("component stop failed")
			if firstErr == nil {
				firstErr = &StopError{Component: c.name, Err: err}
			}
		}
	}
	return firstErr
}

func (a *App) drain(ctx context.Context) {
	deadline := time.Now().Add(a.drainTimeout)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for a.inFlight.Load() > 0 && time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
	if n := a.inFlight.Load(); n > 0 {
		a.log.Warn().Int64("in_flight", n).Msg("drain timeout elapsed with requests still in flight")
	}
}

// StartError reports which component failed during App.Start.
type StartError struct {
	Component string
	Err       error
}

func (e *StartError) Error() string { return "lifecycle: start " + e.Component + ": " + e.Err.Error() }
func (e *StartError) Unwrap() error { return e.Err }

// StopError reports which component failed during App.Stop. Stop still
// attempts every remaining component's teardown after this is recorded.
type StopError struct {
	Component string
	Err       error
}

func (e *StopError) Error() string { return "lifecycle: stop " + e.Component + ": " + e.Err.Error() }
func (e *StopError) Unwrap() error { return e.Err }
