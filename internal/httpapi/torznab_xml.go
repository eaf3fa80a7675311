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

package httpapi

import "encoding/xml"

// torznabCaps is the `t=caps` response: server identity, result limits,
// one fixed category list, and the search modes we declare support for.
// No feed/XML-generation library appears anywhere in the retrieved pack,
// so this is built with the standard library's encoding/xml.
type torznabCaps struct {
	XMLName    xml.Name          `xml:"caps"`
	Server     torznabServer     `xml:"server"`
	Limits     torznabLimits     `xml:"limits"`
	Categories torznabCategories `xml:"categories"`
	Searching  torznabSearching  `xml:"searching"`
}

type torznabServer struct {
	Title string `xml:"title,attr"`
}

type torznabLimits struct {
	Max     int `xml:"max,attr"`
	Default int `xml:"default,attr"`
}

type torznabCategories struct {
	Category []torznabCategory `xml:"category"`
}

type torznabCategory struct {
	ID   int    `xml:"id,attr"`
	Name string `xml:"name,attr"`
}

type torznabSearching struct {
	Search      torznabSearchMode `xml:"search"`
	TVSearch    torznabSearchMode `xml:"tv-search"`
	MovieSearch torznabSearchMode `xml:"movie-search"`
}

type torznabSearchMode struct {
	Available       string `xml:"available,attr"`
	SupportedParams string `xml:"supportedParams,attr"`
}

// defaultCaps returns the fixed capabilities declaration every plugin
// reports: Torznab's conventional Movies(2000)/TV(5000) top-level
// categories cover this system's two content kinds.
func defaultCaps(title string) torznabCaps {
	return torznabCaps{
		Server: torznabServer{Title: title},
		Limits: torznabLimits{Max: 100, Default: 100},
		Categories: torznabCategories{Category: []torznabCategory{
			{ID: 2000, Name: "Movies"},
			{ID: 5000, Name: "TV"},
		}},
		Searching: torznabSearching{
			Search:      torznabSearchMode{Available: "yes", SupportedParams: "q"},
			TVSearch:    torznabSearchMode{Available: "yes", SupportedParams: "q,season,ep"},
			MovieSearch: torznabSearchMode{Available: "yes", SupportedParams: "q"},
		},
	}
}

// torznabRSS is the `t=search` response: RSS 2.0 with the torznab
// namespace's typed attr children on each item.
type torznabRSS struct {
	XMLName      xml.Name       `xml:"rss"`
	Version      string         `xml:"version,attr"`
	XMLNSTorznab string         `xml:"xmlns:torznab,attr"`
	Channel      torznabChannel `xml:"channel"`
}

type torznabChannel struct {
	Title string        `xml:"title"`
	Item  []torznabItem `xml:"item"`
}

type torznabItem struct {
	Title   string        `xml:"title"`
	GUID    string        `xml:"guid"`
	Link    string        `xml:"link"`
	Size    int64         `xml:"size,omitempty"`
	PubDate string        `xml:"pubDate,omitempty"`
	Attrs   []torznabAttr `xml:"torznab:attr"`
}

type torznabAttr struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

func newTorznabRSS(channelTitle string, items []torznabItem) torznabRSS {
	return torznabRSS{
		Version:      "2.0",
		XMLNSTorznab: "http://torznab.com/schemas/2015/feed",
		Channel:      torznabChannel{Title: channelTitle, Item: items},
	}
}
