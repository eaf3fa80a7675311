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

// Package registry implements the plugin registry (C5): discovery of
// plugin manifests by directory walk, cheap metadata peeks that never
// force a full load, and lazy load-and-cache of the plugin instance
// itself on first Get.
package registry

import (
	"context"

	"github.com/meridian-idx/aggregator/internal/model"
)

// Mode is how a plugin performs its I/O.
type Mode string

const (
	ModeFastHTTP       Mode = "fast-http"
	ModeHeadlessBrowser Mode = "headless-browser"
)

// Provides is what a plugin contributes.
type Provides string

const (
	ProvidesDownload Provides = "download"
	ProvidesStream   Provides = "stream"
)

// AgeBucket is a release-age scoring dimension.
type AgeBucket string

const (
	AgeBucketCurrent AgeBucket = "current"
	AgeBucketY1To2   AgeBucket = "y1_2"
	AgeBucketY5To10  AgeBucket = "y5_10"
)

// Overrides are per-plugin configuration overrides applied once at
// discovery time.
type Overrides struct {
	TimeoutSeconds int  `yaml:"timeout" koanf:"timeout"`
	MaxConcurrent  int  `yaml:"max_concurrent" koanf:"max_concurrent"`
	MaxResults     int  `yaml:"max_results" koanf:"max_results"`
	Enabled        bool `yaml:"enabled" koanf:"enabled"`
}

// Descriptor is a plugin's immutable metadata, built once at Discover
// time and never mutated afterward.
type Descriptor struct {
	Name       string
	Mode       Mode
	Provides   Provides
	OriginURL  string
	Languages  []string
	AgeBuckets map[AgeBucket]bool
	Overrides  Overrides

	// dir is the manifest directory, used by the Loader to locate plugin
	// code/config at load time.
	dir string
}

// Dir returns the manifest directory backing this descriptor, for Loader
// implementations that need to locate plugin code.
func (d Descriptor) Dir() string { return d.dir }

// Plugin is the single operation every plugin unit must implement, per
// spec §4.5: "a search(...) operation."
type Plugin interface {
	Search(ctx context.Context, query string, category string, season, episode int) ([]model.SearchResult, error)
}

// Loader instantiates and validates a Plugin from its Descriptor, called
// lazily on first Get.
type Loader func(Descriptor) (Plugin, error)

// manifest is the on-disk plugin.yaml shape, parsed with yaml.v3.
type manifest struct {
	Name       string    `yaml:"name"`
	Mode       string    `yaml:"mode"`
	Provides   string    `yaml:"provides"`
	OriginURL  string    `yaml:"origin_url"`
	Languages  []string  `yaml:"languages"`
	AgeBuckets []string  `yaml:"age_buckets"`
	Overrides  Overrides `yaml:"overrides"`
}
