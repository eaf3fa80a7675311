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
	"sync"

	"github.com/meridian-idx/aggregator/internal/apperr"
)

// Registry holds the discovered Descriptors and lazily loads Plugin
// instances on first Get, caching them for the process lifetime — the
// same Load-then-cache shape as core.Store.GetOrCreate, but loading from
// a caller-supplied Loader instead of constructing a VSA.
type Registry struct {
	byName map[string]Descriptor
	load   Loader

	mu       sync.Mutex
	loaded   map[string]Plugin
	loadErrs map[string]error
}

// New builds a Registry from already-discovered descriptors. load is
// called at most once per plugin name.
func New(descriptors []Descriptor, load Loader) *Registry {
	byName := make(map[string]Descriptor, len(descriptors))
	for _, d := range descriptors {
		byName[d.Name] = d
	}
	return &Registry{
		byName:   byName,
		load:     load,
		loaded:   make(map[string]Plugin),
		loadErrs: make(map[string]error),
	}
}

// ListNames returns every discovered plugin name. It is a metadata-only
// peek and never forces a load.
func (r *Registry) ListNames() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	return names
}

// Descriptor returns the metadata for name without loading the plugin.
func (r *Registry) Descriptor(name string) (Descriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// GetMode is a metadata-only peek at a plugin's Mode.
func (r *Registry) GetMode(name string) (Mode, error) {
	d, ok := r.byName[name]
	if !ok {
		return "", apperr.Wrap(apperr.ClassNotFound, apperr.ErrNotFound, "plugin "+name)
	}
	return d.Mode, nil
}

// GetLanguages is a metadata-only peek at a plugin's declared languages.
func (r *Registry) GetLanguages(name string) ([]string, error) {
	d, ok := r.byName[name]
	if !ok {
		return nil, apperr.Wrap(apperr.ClassNotFound, apperr.ErrNotFound, "plugin "+name)
	}
	return d.Languages, nil
}

// Get lazily loads and caches the Plugin instance for name.
func (r *Registry) Get(name string) (Plugin, error) {
	d, ok := r.byName[name]
	if !ok {
		return nil, apperr.Wrap(apperr.ClassNotFound, apperr.ErrNotFound, "plugin "+name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.loaded[name]; ok {
		return p, nil
	}
	if err, ok := r.loadErrs[name]; ok {
		return nil, err
	}

	p, err := r.load(d)
	if err != nil {
		wrapped := apperr.Wrap(apperr.ClassInternal, err, "load plugin "+name)
		r.loadErrs[name] = wrapped
		return nil, wrapped
	}
	r.loaded[name] = p
	return p, nil
}
