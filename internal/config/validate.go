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

package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/knadh/koanf/v2"
)

// FieldError reports a single invalid configuration field: an unknown key
// in a recognized section, or a value outside its valid range.
type FieldError struct {
	Path   string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Path, e.Reason)
}

// envKeyToPath turns MERIDIAN_RATELIMIT_MIN_RATE into ratelimit.min_rate,
// matching the _ -> . translation named in spec §6's Configuration contract.
// Only the first _ after the prefix separates the section from the field,
// since field names themselves contain underscores. MERIDIAN_CONFIG names
// the YAML file rather than a config key, so it maps to "" and is skipped.
func envKeyToPath(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, "MERIDIAN_"))
	if key == "config" {
		return ""
	}
	section, field, ok := strings.Cut(key, "_")
	if !ok {
		return key
	}
	return section + "." + field
}

// validate rejects unknown keys (paths not reachable from the Config
// struct's koanf tags) and out-of-range numeric fields.
func validate(k *koanf.Koanf, cfg *Config) error {
	known := collectKnownPaths(reflect.TypeOf(Config{}), "")
	for _, key := range k.Keys() {
		if !known[key] {
			return &FieldError{Path: key, Reason: "unknown configuration key"}
		}
	}
	return validateRanges(cfg)
}

// collectKnownPaths walks t's koanf-tagged fields recursively, returning
// the set of dotted paths (leaves and intermediate struct nodes) it
// accepts. koanf's flattened key set always includes intermediate section
// names for nested structs, hence returning both.
func collectKnownPaths(t reflect.Type, prefix string) map[string]bool {
	out := map[string]bool{}
	if prefix != "" {
		out[prefix] = true
	}
	if t.Kind() != reflect.Struct {
		return out
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("koanf")
		if tag == "" || tag == "-" {
			continue
		}
		path := tag
		if prefix != "" {
			path = prefix + "." + tag
		}
		if f.Type.Kind() == reflect.Struct {
			for k, v := range collectKnownPaths(f.Type, path) {
				out[k] = v
			}
			continue
		}
		out[path] = true
	}
	return out
}

func validateRanges(cfg *Config) error {
	switch {
	case cfg.RateLimit.MinRate <= 0:
		return &FieldError{Path: "ratelimit.min_rate", Reason: "must be > 0"}
	case cfg.RateLimit.MaxRate < cfg.RateLimit.MinRate:
		return &FieldError{Path: "ratelimit.max_rate", Reason: "must be >= ratelimit.min_rate"}
	case cfg.RateLimit.InitialRate < cfg.RateLimit.MinRate || cfg.RateLimit.InitialRate > cfg.RateLimit.MaxRate:
		return &FieldError{Path: "ratelimit.initial_rate", Reason: "must fall within [min_rate, max_rate]"}
	case !cfg.Concurrency.Autotune && cfg.Concurrency.FastHTTPSlots <= 0:
		return &FieldError{Path: "concurrency.fast_http_slots", Reason: "must be > 0 when autotune is disabled"}
	case !cfg.Concurrency.Autotune && cfg.Concurrency.HeadlessSlots <= 0:
		return &FieldError{Path: "concurrency.headless_slots", Reason: "must be > 0 when autotune is disabled"}
	case cfg.Indexer.MaxValidateInFly <= 0:
		return &FieldError{Path: "indexer.max_validate_in_flight", Reason: "must be > 0"}
	case cfg.Indexer.DefaultLimit <= 0:
		return &FieldError{Path: "indexer.default_limit", Reason: "must be > 0"}
	case cfg.Stream.ResolveTargetCount <= 0:
		return &FieldError{Path: "stream.resolve_target_count", Reason: "must be > 0"}
	case cfg.Stream.MaxProbeCount < cfg.Stream.ResolveTargetCount:
		return &FieldError{Path: "stream.max_probe_count", Reason: "must be >= stream.resolve_target_count"}
	case cfg.Stream.ExplorationProbability < 0 || cfg.Stream.ExplorationProbability > 1:
		return &FieldError{Path: "stream.exploration_probability", Reason: "must be within [0, 1]"}
	case cfg.Environment != "prod" && cfg.Environment != "dev" && cfg.Environment != "test":
		return &FieldError{Path: "environment", Reason: `must be one of "prod", "dev", "test"`}
	}
	return nil
}
