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

// Package resolver implements the hoster resolver registry (C8): a
// domain-dispatch table that turns a hoster page URL into a direct,
// playable stream URL.
package resolver

import "context"

// ResolvedStream is what a Resolver produces for a hoster page that is
// confirmed playable.
type ResolvedStream struct {
	VideoURL string
	Quality  string
	Headers  map[string]string
}

// Resolver resolves one hoster page URL into a ResolvedStream. It returns
// (nil, nil) when the file is confirmed offline, deleted, or
// captcha-blocked — that is a known, non-error outcome, not a failure.
type Resolver interface {
	Resolve(ctx context.Context, url string) (*ResolvedStream, error)
}
