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

package resolver

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/meridian-idx/aggregator/internal/apperr"
)

// XFSConfig parameterizes the generic "XFS" resolver family: one struct
// per hoster, covering the handful of things that actually differ between
// members of that family (file-id extraction, offline detection, whether
// the page itself is already the video, whether it is known to gate
// behind a captcha).
type XFSConfig struct {
	// FileIDPattern extracts the hoster's internal file id from the page
	// body, used to build the final video URL.
	FileIDPattern *regexp.Regexp
	// VideoURLTemplate is formatted with the extracted file id via
	// strings.Replace(tmpl, "{id}", id, 1).
	VideoURLTemplate string
	// OfflineMarkers are body substrings that indicate the file is gone.
	OfflineMarkers []string
	// IsVideo means the page URL itself is already the direct video
	// (no further page fetch needed to resolve it).
	IsVideo bool
	// Captcha means this hoster is known to gate downloads behind a
	// captcha the resolver cannot solve; Resolve reports it without
	// fetching the page.
	Captcha bool
}

// xfsResolver is a Resolver built from an XFSConfig, shared by every
// hoster in the family.
type xfsResolver struct {
	cfg    XFSConfig
	client *http.Client
}

// NewXFSResolver builds a Resolver for one member of the XFS hoster
// family.
func NewXFSResolver(cfg XFSConfig, client *http.Client) Resolver {
	if client == nil {
		client = http.DefaultClient
	}
	return &xfsResolver{cfg: cfg, client: client}
}

func (r *xfsResolver) Resolve(ctx context.Context, url string) (*ResolvedStream, error) {
	if r.cfg.Captcha {
		return nil, nil
	}
	if r.cfg.IsVideo {
		return &ResolvedStream{VideoURL: url}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.ClassInternal, err, "build resolve request for "+url)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.ClassUpstreamUnavailable, err, "fetch "+url)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperr.Wrap(apperr.ClassUpstreamUnavailable, err, "read "+url)
	}
	text := string(body)

	for _, marker := range r.cfg.OfflineMarkers {
		if marker != "" && strings.Contains(text, marker) {
			return nil, nil
		}
	}

	if r.cfg.FileIDPattern == nil {
		return nil, apperr.New(apperr.ClassInternal, "xfs resolver missing FileIDPattern for "+url)
	}
	match := r.cfg.FileIDPattern.FindStringSubmatch(text)
	if len(match) < 2 {
		return nil, nil
	}
	videoURL := strings.Replace(r.cfg.VideoURLTemplate, "{id}", match[1], 1)

	return &ResolvedStream{VideoURL: videoURL}, nil
}
