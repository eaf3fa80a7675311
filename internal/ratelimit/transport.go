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
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/meridian-idx/aggregator/internal/apperr"
	"github.com/meridian-idx/aggregator/internal/netutil"
)

const (
	retryMaxAttempts = 2
	retryBase        = 500 * time.Millisecond
	retryMaxBackoff  = 10 * time.Second
)

// Transport is an http.RoundTripper that rate-limits outbound requests
// per registrable domain and retries 429/503 responses with AIMD
// feedback, per spec §4.2.
type Transport struct {
	Base     http.RoundTripper
	Registry *Registry
}

// NewTransport wraps base (http.DefaultTransport if nil) with per-domain
// rate limiting backed by registry.
func NewTransport(base http.RoundTripper, registry *Registry) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{Base: base, Registry: registry}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	domain := netutil.RegistrableDomain(req.URL.Host)
	bucket := t.Registry.GetOrCreate(domain)

	var lastErr error
	for attempt := 0; attempt <= retryMaxAttempts; attempt++ {
		if err := bucket.Acquire(req.Context()); err != nil {
			return nil, apperr.Wrap(apperr.ClassUpstreamTimeout, err, "rate limit wait canceled for "+domain)
		}

		resp, err := t.Base.RoundTrip(req)
		if err != nil {
			if isTimeout(err) {
				bucket.RecordTimeout()
				return nil, apperr.Wrap(apperr.ClassUpstreamTimeout, err, "request to "+domain+" timed out")
			}
			lastErr = err
			bucket.RecordThrottle()
			if attempt == retryMaxAttempts {
				break
			}
			sleepBackoff(req, attempt, 0)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 400 {
			bucket.RecordSuccess()
			return resp, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
			bucket.RecordThrottle()
			if attempt == retryMaxAttempts {
				return resp, nil
			}
			retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
			resp.Body.Close()
			sleepBackoff(req, attempt, retryAfter)
			continue
		}

		return resp, nil
	}

	return nil, apperr.Wrap(apperr.ClassUpstreamUnavailable, lastErr, "exhausted retries against "+domain)
}

// sleepBackoff blocks until the next retry is due, honoring retryAfter
// when the server supplied one, otherwise the capped exponential backoff
// base·2^n + jitter.
func sleepBackoff(req *http.Request, attempt int, retryAfter time.Duration) {
	wait := retryAfter
	if wait <= 0 {
		wait = time.Duration(float64(retryBase) * math.Pow(2, float64(attempt)))
		wait += time.Duration(rand.Int64N(int64(retryBase)))
	}
	if wait > retryMaxBackoff {
		wait = retryMaxBackoff
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-req.Context().Done():
	}
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		d := time.Duration(secs) * time.Second
		if d > retryMaxBackoff {
			return retryMaxBackoff
		}
		return d
	}
	return 0
}

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	te, ok := err.(timeouter)
	return ok && te.Timeout()
}
