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
	"time"

	"github.com/tidwall/buntdb"

	"github.com/meridian-idx/aggregator/internal/apperr"
)

// buntStore is the embedded, single-node Store backend. path=":memory:"
// runs entirely in RAM; any other path is an append-only file buntdb
// persists to on Close or on its own background sync schedule.
type buntStore struct {
	db *buntdb.DB
}

// NewBunt opens (creating if necessary) an embedded buntdb database at
// path. Pass ":memory:" for an ephemeral, file-less instance.
func NewBunt(path string) (Store, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.ClassInternal, err, "open buntdb at "+path)
	}
	return &buntStore{db: db}, nil
}

func (b *buntStore) Get(_ context.Context, key string) ([]byte, error) {
	var val string
	err := b.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(key)
		if err != nil {
			return err
		}
		val = v
		return nil
	})
	if err == buntdb.ErrNotFound {
		return nil, apperr.Wrap(apperr.ClassNotFound, apperr.ErrNotFound, key)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.ClassInternal, err, "get "+key)
	}
	return []byte(val), nil
}

func (b *buntStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	err := b.db.Update(func(tx *buntdb.Tx) error {
		var opts *buntdb.SetOptions
		if ttl > 0 {
			opts = &buntdb.SetOptions{Expires: true, TTL: ttl}
		}
		_, _, err := tx.Set(key, string(value), opts)
		return err
	})
	if err != nil {
		return apperr.Wrap(apperr.ClassInternal, err, "put "+key)
	}
	return nil
}

func (b *buntStore) Delete(_ context.Context, key string) error {
	err := b.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(key)
		if err == buntdb.ErrNotFound {
			return nil
		}
		return err
	})
	if err != nil {
		return apperr.Wrap(apperr.ClassInternal, err, "delete "+key)
	}
	return nil
}

func (b *buntStore) Scan(_ context.Context, prefix string) ([]Entry, error) {
	var out []Entry
	err := b.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(prefix+"*", func(key, value string) bool {
			out = append(out, Entry{Key: key, Value: []byte(value)})
			return true
		})
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.ClassInternal, err, "scan "+prefix)
	}
	return out, nil
}

func (b *buntStore) Close() error {
	return b.db.Close()
}
