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

package prober

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/meridian-idx/aggregator/internal/scoring"
)

// HealthTimeout bounds a single origin health check, per spec §4.7.
const HealthTimeout = 5 * time.Second

// RunHealthProbe HEADs originURL, falling back to a ranged GET when the
// origin rejects HEAD, and classifies the response into a
// scoring.HealthProbe observation.
func RunHealthProbe(ctx context.Context, client *http.Client, originURL string) scoring.HealthProbe {
	ctx, cancel := context.WithTimeout(ctx, HealthTimeout)
	defer cancel()

	start := time.Now()
	resp, err := doHead(ctx, client, originURL)
	duration := time.Since(start)

	if err != nil {
		return scoring.HealthProbe{OK: false, DurationMS: float64(duration.Milliseconds())}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented {
		start = time.Now()
		resp2, err2 := doRangedGet(ctx, client, originURL)
		duration = time.Since(start)
		if err2 != nil {
			return scoring.HealthProbe{OK: false, DurationMS: float64(duration.Milliseconds())}
		}
		defer resp2.Body.Close()
		resp = resp2
	}

	return scoring.HealthProbe{
		OK:         resp.StatusCode < 500,
		DurationMS: float64(duration.Milliseconds()),
		Captcha:    looksCaptchaBlocked(resp),
	}
}

func doHead(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, err
	}
	return client.Do(req)
}

func doRangedGet(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", "bytes=0-0")
	return client.Do(req)
}

// looksCaptchaBlocked applies the Cloudflare heuristic from spec §4.7: a
// cf-ray response header plus a 403/503 status marks the origin as
// challenge-gated rather than genuinely down.
func looksCaptchaBlocked(resp *http.Response) bool {
	if resp.Header.Get("cf-ray") == "" {
		return false
	}
	switch resp.StatusCode {
	case http.StatusForbidden, http.StatusServiceUnavailable:
		return true
	}
	server := strings.ToLower(resp.Header.Get("Server"))
	return strings.Contains(server, "cloudflare") && resp.StatusCode >= 400
}
