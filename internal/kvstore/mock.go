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

package kvstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/meridian-idx/aggregator/internal/apperr"
)

// mockEntry pairs a value with its absolute expiry, mirroring how NewBunt
// represents TTLs under the hood.
type mockEntry struct {
	value  []byte
	expiry time.Time // zero means no expiration
}

// mockStore is an in-memory Store used by tests and local dry runs. It is
// the direct analogue of the teacher's NewMockPersister: a stand-in backend
// that lets the rest of the system be exercised without a real database.
type mockStore struct {
	mu   sync.RWMutex
	data map[string]mockEntry
}

// NewMock returns a process-local, in-memory Store with no external
// dependencies.
func NewMock() Store {
	return &mockStore{data: make(map[string]mockEntry)}
}

func (m *mockStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.data[key]
	if !ok || m.expired(e) {
		return nil, apperr.Wrap(apperr.ClassNotFound, apperr.ErrNotFound, key)
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (m *mockStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expiry time.Time
	if ttl > 0 {
		expiry = time.Now().Add(ttl)
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	m.data[key] = mockEntry{value: stored, expiry: expiry}
	return nil
}

func (m *mockStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *mockStore) Scan(_ context.Context, prefix string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Entry
	for k, e := range m.data {
		if !strings.HasPrefix(k, prefix) || m.expired(e) {
			continue
		}
		v := make([]byte, len(e.value))
		copy(v, e.value)
		out = append(out, Entry{Key: k, Value: v})
	}
	return out, nil
}

func (m *mockStore) Close() error { return nil }

func (m *mockStore) expired(e mockEntry) bool {
	return !e.expiry.IsZero() && time.Now().After(e.expiry)
}
