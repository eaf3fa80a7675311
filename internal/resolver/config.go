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
	"net/http"
	"os"
	"regexp"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/meridian-idx/aggregator/internal/apperr"
)

// HosterEntry is one domain's XFS resolver configuration as read from the
// hoster manifest file. The bit-exact file-id regex and URL template for a
// given real hoster are deployment detail, not this module's concern (the
// same boundary registry.Discover draws around plugin.yaml's scraping
// logic) — this type only has to carry whatever shape the deployment
// supplies.
type HosterEntry struct {
	Domain           string   `yaml:"domain"`
	FileIDPattern    string   `yaml:"file_id_pattern"`
	VideoURLTemplate string   `yaml:"video_url_template"`
	OfflineMarkers   []string `yaml:"offline_markers"`
	IsVideo          bool     `yaml:"is_video"`
	Captcha          bool     `yaml:"captcha"`
}

// LoadHosterConfigs reads a YAML list of HosterEntry from path. A missing
// file is not an error: a deployment with no configured hosters still runs
// with an empty resolver registry (every stream falls back to C10's proxy
// URL instead of a direct link).
func LoadHosterConfigs(path string) ([]HosterEntry, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.ClassInternal, err, "read hoster config "+path)
	}
	var entries []HosterEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, apperr.Wrap(apperr.ClassInvalidInput, err, "parse hoster config "+path)
	}
	return entries, nil
}

// RegisterHosters compiles each entry's XFSConfig and registers it on reg
// under its domain, skipping (and logging) entries with an invalid regex
// rather than failing the whole batch.
func RegisterHosters(reg *Registry, client *http.Client, entries []HosterEntry, log zerolog.Logger) {
	for _, e := range entries {
		var pattern *regexp.Regexp
		if e.FileIDPattern != "" {
			p, err := regexp.Compile(e.FileIDPattern)
			if err != nil {
				log.Warn().Err(err).Str("domain", e.Domain).Msg("skipping hoster with invalid file_id_pattern")
				continue
			}
			pattern = p
		}
		cfg := XFSConfig{
			FileIDPattern:    pattern,
			VideoURLTemplate: e.VideoURLTemplate,
			OfflineMarkers:   e.OfflineMarkers,
			IsVideo:          e.IsVideo,
			Captcha:          e.Captcha,
		}
		reg.Register(e.Domain, NewXFSResolver(cfg, client))
	}
}
