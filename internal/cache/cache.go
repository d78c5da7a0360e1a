// Copyright 2026 The Cotiza Authors
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

// Package cache provides the key/value backends shared by the catalog and
// pricing result caches, and the cache-aside helper composed at call sites.
package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/cotiza/cotiza/internal/observability/logger"
)

// Backend is a TTL'd byte store.
type Backend interface {
	// Get returns the value and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Del removes key, or every key matching it when it contains a '*'
	// wildcard, and returns the number of keys removed.
	Del(ctx context.Context, keyOrPattern string) (int, error)
}

// IsPattern reports whether s should be treated as a glob pattern.
func IsPattern(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

// GetOrSet returns the cached value for key or computes, stores and returns it.
// Backend failures degrade to computing; they never fail the call.
func GetOrSet[T any](ctx context.Context, b Backend, key string, ttl time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	log := logger.FromContext(ctx)

	if raw, ok, err := b.Get(ctx, key); err != nil {
		log.WarnContext(ctx, "cache get failed", logger.CacheKey(key), logger.Error(err))
	} else if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		log.WarnContext(ctx, "discarding undecodable cache entry", logger.CacheKey(key))
	}

	v, err := fn(ctx)
	if err != nil {
		return v, err
	}

	raw, err := json.Marshal(v)
	if err != nil {
		log.WarnContext(ctx, "cache encode failed", logger.CacheKey(key), logger.Error(err))
		return v, nil
	}
	if err := b.Set(ctx, key, raw, ttl); err != nil {
		log.WarnContext(ctx, "cache set failed", logger.CacheKey(key), logger.Error(err))
	}
	return v, nil
}
