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

	redis "github.com/redis/go-redis/v9"

	"github.com/meridian-idx/aggregator/internal/apperr"
)

// redisStore is the shared/remote Store backend, for deployments that run
// more than one aggregator process against the same plugin score cache and
// crawl-job table.
type redisStore struct {
	c *redis.Client
}

// NewRedis dials a Redis server at addr. The client is lazy: no connection
// is actually established until the first command.
func NewRedis(addr string) Store {
	return &redisStore{c: redis.NewClient(&redis.Options{Addr: addr})}
}

func (r *redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.c.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, apperr.Wrap(apperr.ClassNotFound, apperr.ErrNotFound, key)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.ClassUpstreamUnavailable, err, "redis get "+key)
	}
	return v, nil
}

func (r *redisStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.c.Set(ctx, key, value, ttl).Err(); err != nil {
		return apperr.Wrap(apperr.ClassUpstreamUnavailable, err, "redis set "+key)
	}
	return nil
}

func (r *redisStore) Delete(ctx context.Context, key string) error {
	if err := r.c.Del(ctx, key).Err(); err != nil {
		return apperr.Wrap(apperr.ClassUpstreamUnavailable, err, "redis del "+key)
	}
	return nil
}

func (r *redisStore) Scan(ctx context.Context, prefix string) ([]Entry, error) {
	var out []Entry
	iter := r.c.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		val, err := r.c.Get(ctx, key).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, apperr.Wrap(apperr.ClassUpstreamUnavailable, err, "redis scan get "+key)
		}
		out = append(out, Entry{Key: key, Value: val})
	}
	if err := iter.Err(); err != nil {
		return nil, apperr.Wrap(apperr.ClassUpstreamUnavailable, err, "redis scan "+prefix)
	}
	return out, nil
}

func (r *redisStore) Close() error {
	return r.c.Close()
}
