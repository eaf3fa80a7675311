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

package scoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/meridian-idx/aggregator/internal/apperr"
	"github.com/meridian-idx/aggregator/internal/kvstore"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SnapshotTTL is how long a persisted snapshot survives before the KV
// backend lazily expires it.
const SnapshotTTL = 30 * 24 * time.Hour

const indexKey = "score-index"

// Snapshot is a plugin's score for one (category, bucket) pair.
type Snapshot struct {
	Plugin     string
	Category   string
	Bucket     string
	Health     EwmaState
	Search     EwmaState
	Confidence float64
	Final      float64
}

// Store persists Snapshots and probe last-run timestamps to a
// kvstore.Store, grounded on spec §4.6's key layout.
type Store struct {
	kv kvstore.Store

	mu sync.Mutex // serializes index read-modify-write
}

// NewStore wraps kv as a score Store.
func NewStore(kv kvstore.Store) *Store {
	return &Store{kv: kv}
}

func snapshotKey(plugin, category, bucket string) string {
	return fmt.Sprintf("score:%s:%s:%s", plugin, category, bucket)
}

func lastRunKey(probeType, plugin, category, bucket string) string {
	if category == "" && bucket == "" {
		return fmt.Sprintf("lastrun:%s:%s", probeType, plugin)
	}
	return fmt.Sprintf("lastrun:%s:%s:%s:%s", probeType, plugin, category, bucket)
}

// Save persists snap and records its key in the index blob.
func (s *Store) Save(ctx context.Context, snap Snapshot) error {
	key := snapshotKey(snap.Plugin, snap.Category, snap.Bucket)
	raw, err := json.Marshal(snap)
	if err != nil {
		return apperr.Wrap(apperr.ClassInternal, err, "marshal snapshot")
	}
	if err := s.kv.Put(ctx, key, raw, SnapshotTTL); err != nil {
		return apperr.Wrap(apperr.ClassInternal, err, "persist snapshot "+key)
	}
	return s.addToIndex(ctx, key)
}

// Load returns the persisted snapshot for (plugin, category, bucket). A
// missing snapshot is reported via apperr.ClassNotFound; callers treat
// this as "cold" with confidence 0, per spec §4.6.
func (s *Store) Load(ctx context.Context, plugin, category, bucket string) (Snapshot, error) {
	key := snapshotKey(plugin, category, bucket)
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, apperr.Wrap(apperr.ClassInternal, err, "unmarshal snapshot "+key)
	}
	return snap, nil
}

// RecordLastRun stamps now as the last time probeType ran against plugin
// (optionally scoped to category/bucket for the mini-search prober).
func (s *Store) RecordLastRun(ctx context.Context, probeType, plugin, category, bucket string, now time.Time) error {
	key := lastRunKey(probeType, plugin, category, bucket)
	raw, err := now.UTC().MarshalText()
	if err != nil {
		return apperr.Wrap(apperr.ClassInternal, err, "marshal last-run timestamp")
	}
	return s.kv.Put(ctx, key, raw, 0)
}

// LastRun returns the last time probeType ran against plugin, or the zero
// time if it has never run.
func (s *Store) LastRun(ctx context.Context, probeType, plugin, category, bucket string) (time.Time, error) {
	key := lastRunKey(probeType, plugin, category, bucket)
	raw, err := s.kv.Get(ctx, key)
	if apperr.Classify(err) == apperr.ClassNotFound {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	var t time.Time
	if err := t.UnmarshalText(raw); err != nil {
		return time.Time{}, apperr.Wrap(apperr.ClassInternal, err, "unmarshal last-run timestamp")
	}
	return t, nil
}

// ListSnapshotKeys returns every snapshot key ever written, from the
// index blob, so a cold start can enumerate what exists without a
// backend-specific prefix scan.
func (s *Store) ListSnapshotKeys(ctx context.Context) ([]string, error) {
	raw, err := s.kv.Get(ctx, indexKey)
	if apperr.Classify(err) == apperr.ClassNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var keys []string
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, apperr.Wrap(apperr.ClassInternal, err, "unmarshal score index")
	}
	return keys, nil
}

func (s *Store) addToIndex(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.ListSnapshotKeys(ctx)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if k == key {
			return nil
		}
	}
	keys = append(keys, key)
	raw, err := json.Marshal(keys)
	if err != nil {
		return apperr.Wrap(apperr.ClassInternal, err, "marshal score index")
	}
	if err := s.kv.Put(ctx, indexKey, raw, 0); err != nil {
		return apperr.Wrap(apperr.ClassInternal, err, "persist score index")
	}
	return nil
}
