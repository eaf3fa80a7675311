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

package indexer

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// ValidateTimeout bounds a single URL's HEAD/GET check, per spec §4.9.
const ValidateTimeout = 3 * time.Second

// URLValidator batch-checks a set of URLs for reachability: HEAD first,
// falling back to GET for hosters that reject HEAD, under a bounded
// concurrency that C11's autotune sizes at startup.
type URLValidator struct {
	client      *http.Client
	concurrency *semaphore.Weighted
}

// NewURLValidator builds a validator capped at maxConcurrent simultaneous
// checks.
func NewURLValidator(client *http.Client, maxConcurrent int) *URLValidator {
	if client == nil {
		client = http.DefaultClient
	}
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &URLValidator{client: client, concurrency: semaphore.NewWeighted(int64(maxConcurrent))}
}

// ValidateAll checks every url in urls concurrently and returns a map of
// url to whether it is valid (status < 400).
func (v *URLValidator) ValidateAll(ctx context.Context, urls []string) map[string]bool {
	results := make(map[string]bool, len(urls))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, u := range urls {
		u := u
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := v.concurrency.Acquire(ctx, 1); err != nil {
				mu.Lock()
				results[u] = false
				mu.Unlock()
				return
			}
			defer v.concurrency.Release(1)

			ok := v.validateOne(ctx, u)
			mu.Lock()
			results[u] = ok
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}

func (v *URLValidator) validateOne(ctx context.Context, url string) bool {
	ctx, cancel := context.WithTimeout(ctx, ValidateTimeout)
	defer cancel()

	if ok, done := v.try(ctx, http.MethodHead, url); done {
		return ok
	}
	ok, _ := v.try(ctx, http.MethodGet, url)
	return ok
}

// try issues method against url. done is false when the request itself
// failed to round-trip at all (some hosters reject HEAD outright), so the
// caller knows to fall back to GET rather than trusting a false ok.
func (v *URLValidator) try(ctx context.Context, method, url string) (ok bool, done bool) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return false, true
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return false, false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 400, true
}
