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
	"path/filepath"
	"plugin"

	"github.com/meridian-idx/aggregator/internal/apperr"
)

// pluginSymbol is the exported symbol every plugin.so must provide: a
// func() (Plugin, error) constructor, looked up by name at load time.
const pluginSymbol = "NewPlugin"

// SharedObjectLoader builds plugin instances from a `plugin.so` built
// alongside each manifest's plugin.yaml. The concrete scraping code inside
// that shared object is out of this module's scope; this loader only
// knows the calling convention (a NewPlugin() (Plugin, error) symbol).
func SharedObjectLoader() Loader {
	return func(desc Descriptor) (Plugin, error) {
		path := filepath.Join(desc.Dir(), "plugin.so")
		p, err := plugin.Open(path)
		if err != nil {
			return nil, apperr.Wrap(apperr.ClassInternal, err, "open plugin binary "+path)
		}
		sym, err := p.Lookup(pluginSymbol)
		if err != nil {
			return nil, apperr.Wrap(apperr.ClassInternal, err, "lookup "+pluginSymbol+" in "+path)
		}
		constructor, ok := sym.(func() (Plugin, error))
		if !ok {
			return nil, apperr.New(apperr.ClassInternal, path+": "+pluginSymbol+" has the wrong signature")
		}
		return constructor()
	}
}
