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

// Package crawljob implements the CrawlJob record (part of C9) and its
// INI-style wire format: a tiny packaging blob of validated download URLs
// handed to a downstream download manager, per spec §6.
package crawljob

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/meridian-idx/aggregator/internal/apperr"
)

// Priority is the CrawlJob's scheduling priority, per spec §3.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// DefaultTTL is how long a CrawlJob persists in C1, per spec §3's
// "Lifecycles" note.
const DefaultTTL = time.Hour

// Job is an immutable-post-creation record of validated download URLs.
type Job struct {
	ID          string
	PackageName string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	URLs        []string
	SourceURL   string
	Priority    Priority
	AutoStart   bool
	Comment     string
	Chunks      int
	Enabled     bool
}

// Serialize renders j as the INI-style text blob spec §6 describes:
// key=value lines, one text=<url> line per URL, comments starting with
// "#".
func Serialize(j Job) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# crawljob %s\n", j.ID)
	for _, u := range j.URLs {
		fmt.Fprintf(&b, "text=%s\n", u)
	}
	fmt.Fprintf(&b, "packageName=%s\n", j.PackageName)
	if j.Comment != "" {
		fmt.Fprintf(&b, "comment=%s\n", j.Comment)
	}
	fmt.Fprintf(&b, "autoStart=%s\n", strconv.FormatBool(j.AutoStart))
	fmt.Fprintf(&b, "priority=%s\n", string(j.Priority))
	fmt.Fprintf(&b, "enabled=%s\n", strconv.FormatBool(j.Enabled))
	if j.Chunks > 0 {
		fmt.Fprintf(&b, "chunks=%d\n", j.Chunks)
	}
	return b.String()
}

// Parse reads the INI-style text blob back into a Job. It is the inverse
// of Serialize: Parse(Serialize(j)) reproduces every field Serialize
// wrote, which is the round-trip law spec §8 requires.
func Parse(text string) (Job, error) {
	var j Job
	j.Priority = PriorityNormal

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			if id, ok := strings.CutPrefix(line, "# crawljob "); ok {
				j.ID = strings.TrimSpace(id)
			}
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return Job{}, apperr.New(apperr.ClassInvalidInput, "malformed crawljob line: "+line)
		}
		switch key {
		case "text":
			j.URLs = append(j.URLs, value)
		case "packageName":
			j.PackageName = value
		case "comment":
			j.Comment = value
		case "autoStart":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return Job{}, apperr.Wrap(apperr.ClassInvalidInput, err, "parse autoStart")
			}
			j.AutoStart = b
		case "priority":
			j.Priority = Priority(value)
		case "enabled":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return Job{}, apperr.Wrap(apperr.ClassInvalidInput, err, "parse enabled")
			}
			j.Enabled = b
		case "chunks":
			n, err := strconv.Atoi(value)
			if err != nil {
				return Job{}, apperr.Wrap(apperr.ClassInvalidInput, err, "parse chunks")
			}
			j.Chunks = n
		}
	}
	if len(j.URLs) == 0 {
		return Job{}, apperr.New(apperr.ClassInvalidInput, "crawljob has no text= URL lines")
	}
	return j, nil
}
