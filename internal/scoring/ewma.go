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

// Package scoring implements the plugin score EWMA (C6): pure,
// side-effect-free scoring functions plus a Store that persists snapshots
// to a kvstore.Store.
package scoring

import (
	"math"
	"time"
)

// Half-lives for the two observation streams a plugin is scored on.
const (
	HealthHalfLife = 2 * 24 * time.Hour
	SearchHalfLife = 14 * 24 * time.Hour

	// TauConf is the confidence recency-decay time constant, "about 4
	// weeks" per spec §4.6.
	TauConf = 4 * 7 * 24 * time.Hour

	defaultWeightHealth = 0.4
	defaultWeightSearch = 0.6
)

// EwmaState is a single exponentially-weighted moving average: a value in
// [0,1], the timestamp of its last update, and how many observations have
// fed it.
type EwmaState struct {
	Value       float64
	LastUpdated time.Time
	Samples     int
}

// Alpha computes the EWMA blend weight for a gap dt against half-life.
func Alpha(dt, halfLife time.Duration) float64 {
	if halfLife <= 0 {
		return 1
	}
	return 1 - math.Pow(0.5, float64(dt)/float64(halfLife))
}

// UpdateState folds one new observation into state, returning the
// updated state: dt = now - state.LastUpdated, v' = alpha*obs +
// (1-alpha)*v, samples incremented. A freshly-created plugin score
// starts at EwmaState{Value: 0, LastUpdated: <registration time>,
// Samples: 0}; the formula is applied uniformly from there, exactly as
// spec scenario S4 works out (no special-casing the first observation).
func UpdateState(state EwmaState, observation float64, now time.Time, halfLife time.Duration) EwmaState {
	dt := now.Sub(state.LastUpdated)
	a := Alpha(dt, halfLife)
	return EwmaState{
		Value:       a*observation + (1-a)*state.Value,
		LastUpdated: now,
		Samples:     state.Samples + 1,
	}
}

// Confidence blends sample saturation with recency decay.
func Confidence(samples int, age time.Duration) float64 {
	sampleSat := 1 - math.Exp(-float64(samples)/10)
	recencyDecay := math.Exp(-float64(age) / float64(TauConf))
	return clamp01(sampleSat * recencyDecay)
}

// HealthProbe is the observation shape a health prober emits.
type HealthProbe struct {
	OK         bool
	DurationMS float64
	Captcha    bool
}

// HealthObservation converts a HealthProbe into a [0,1] observation for
// the health EWMA.
func HealthObservation(p HealthProbe) float64 {
	if p.Captcha {
		return 0
	}
	okTerm := 0.0
	if p.OK {
		okTerm = 1
	}
	speedTerm := math.Max(0, 1-p.DurationMS/5000)
	return 0.5*okTerm + 0.5*speedTerm
}

// SearchProbe is the observation shape a mini-search prober emits.
type SearchProbe struct {
	OK                   bool
	DurationMS           float64
	ItemsRatio           float64
	HosterReachableRatio float64
	HosterSupportedRatio float64
}

// SearchObservation converts a SearchProbe into a [0,1] observation for
// the search EWMA.
func SearchObservation(p SearchProbe) float64 {
	okTerm := 0.0
	if p.OK {
		okTerm = 1
	}
	speedTerm := 1 - math.Min(1, p.DurationMS/10000)
	return 0.20*okTerm + 0.15*speedTerm + 0.20*p.ItemsRatio + 0.20*p.HosterReachableRatio + 0.25*p.HosterSupportedRatio
}

// Final combines the health and search EWMA values with confidence into
// the composite score used for plugin selection.
func Final(health, search, confidence float64) float64 {
	return FinalWeighted(health, search, confidence, defaultWeightHealth, defaultWeightSearch)
}

// FinalWeighted is Final with explicit weights, exposed for tests and any
// future tuning.
func FinalWeighted(health, search, confidence, wHealth, wSearch float64) float64 {
	base := wHealth*health + wSearch*search
	return clamp01(base * (0.5 + 0.5*confidence))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
