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

package breaker

import "sync"

// Registry hands out one Breaker per plugin name, same lazy-construction
// shape as core.Store/ratelimit.Registry.
type Registry struct {
	breakers sync.Map // string -> *Breaker
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Get returns the Breaker for name, creating it on first use.
func (r *Registry) Get(name string) *Breaker {
	if actual, ok := r.breakers.Load(name); ok {
		return actual.(*Breaker)
	}
	newBreaker := New(name)
	actual, _ := r.breakers.LoadOrStore(name, newBreaker)
	return actual.(*Breaker)
}
