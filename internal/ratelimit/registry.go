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

import "sync"

// Registry manages one Bucket per registrable domain. It is the direct
// analogue of the teacher's core.Store: a lazily-populated sync.Map keyed
// by string, GetOrCreate on the hot path, Delete/ForEach for the
// background sweeper.
type Registry struct {
	buckets sync.Map // string -> *Bucket
	cfg     BucketConfig
}

// NewRegistry creates a Registry that constructs new Buckets with cfg.
func NewRegistry(cfg BucketConfig) *Registry {
	return &Registry{cfg: cfg}
}

// GetOrCreate returns the Bucket for domain, creating it on first use.
func (r *Registry) GetOrCreate(domain string) *Bucket {
	if actual, ok := r.buckets.Load(domain); ok {
		b := actual.(*Bucket)
		b.touch()
		return b
	}
	newBucket := NewBucket(r.cfg)
	if actual, loaded := r.buckets.LoadOrStore(domain, newBucket); loaded {
		b := actual.(*Bucket)
		b.touch()
		return b
	}
	return newBucket
}

// ForEach iterates every domain currently tracked.
func (r *Registry) ForEach(f func(domain string, b *Bucket)) {
	r.buckets.Range(func(key, value interface{}) bool {
		f(key.(string), value.(*Bucket))
		return true
	})
}

// Delete removes a domain's bucket, used by the Sweeper.
func (r *Registry) Delete(domain string) {
	r.buckets.Delete(domain)
}
