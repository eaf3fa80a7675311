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

package registry

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/meridian-idx/aggregator/internal/apperr"
)

const manifestFileName = "plugin.yaml"

// Discover walks root looking for plugin.yaml manifests, parsing metadata
// only — no plugin code is imported or executed here. Duplicate plugin
// names are an error. Entries with overrides.enabled=false are dropped
// from the returned slice entirely.
func Discover(root string) ([]Descriptor, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if d.Name() == manifestFileName {
			dirs = append(dirs, filepath.Dir(path))
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.ClassInternal, err, "walk plugin directory "+root)
	}
	sort.Strings(dirs)

	seen := make(map[string]bool, len(dirs))
	var out []Descriptor
	for _, dir := range dirs {
		desc, err := parseManifest(dir)
		if err != nil {
			return nil, err
		}
		if seen[desc.Name] {
			return nil, apperr.New(apperr.ClassInvalidInput, "duplicate plugin name: "+desc.Name)
		}
		seen[desc.Name] = true

		if !desc.Overrides.Enabled {
			continue
		}
		out = append(out, desc)
	}
	return out, nil
}

func parseManifest(dir string) (Descriptor, error) {
	path := filepath.Join(dir, manifestFileName)
	raw, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, apperr.Wrap(apperr.ClassInternal, err, "read manifest "+path)
	}

	var m manifest
	// Overrides.Enabled defaults to true unless the manifest says
	// otherwise; yaml.v3 zero-values bools to false, so default here
	// before unmarshal overwrites it.
	m.Overrides.Enabled = true
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return Descriptor{}, apperr.Wrap(apperr.ClassInvalidInput, err, "parse manifest "+path)
	}

	if m.Name == "" {
		return Descriptor{}, apperr.New(apperr.ClassInvalidInput, "manifest missing name: "+path)
	}
	if m.Provides == "" {
		return Descriptor{}, apperr.New(apperr.ClassInvalidInput, "manifest missing provides: "+path)
	}
	if len(m.Languages) == 0 {
		return Descriptor{}, apperr.New(apperr.ClassInvalidInput, "manifest declares no languages: "+path)
	}

	buckets := make(map[AgeBucket]bool, len(m.AgeBuckets))
	for _, b := range m.AgeBuckets {
		buckets[AgeBucket(b)] = true
	}

	return Descriptor{
		Name:       m.Name,
		Mode:       Mode(m.Mode),
		Provides:   Provides(m.Provides),
		OriginURL:  m.OriginURL,
		Languages:  m.Languages,
		AgeBuckets: buckets,
		Overrides:  m.Overrides,
		dir:        dir,
	}, nil
}
