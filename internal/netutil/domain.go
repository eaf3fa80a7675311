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

// Package netutil holds small, dependency-free URL helpers shared across
// C2 and C8, both of which key state off a URL's registrable domain.
package netutil

import (
	"strconv"
	"strings"
)

// RegistrableDomain strips the port and a leading "www." label from host,
// so "WWW.Example.com:8443" and "example.com" bucket together.
func RegistrableDomain(host string) string {
	if i := strings.LastIndex(host, ":"); i != -1 {
		if _, err := strconv.Atoi(host[i+1:]); err == nil {
			host = host[:i]
		}
	}
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}
