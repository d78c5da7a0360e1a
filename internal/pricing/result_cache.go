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

package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/cotiza/cotiza/internal/cache"
	"github.com/cotiza/cotiza/internal/observability/logger"
	"github.com/cotiza/cotiza/internal/observability/metrics"
	"github.com/cotiza/cotiza/internal/tenant"
)

// DefaultResultTTL is how long computed results stay cached.
const DefaultResultTTL = time.Hour

// ResultKey returns the cache key of a fingerprint. Keys are namespaced by
// tenant so results never cross tenants.
func ResultKey(tenantID, fingerprint string) string {
	return "pricing:" + tenantID + ":" + fingerprint
}

// ResultCache is a cache-aside store of pricing results with at most one
// in-flight computation per key in this process.
type ResultCache struct {
	backend cache.Backend
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Pricing
}

// NewResultCache creates a result cache on backend. A non-positive ttl uses
// DefaultResultTTL.
func NewResultCache(backend cache.Backend, ttl time.Duration, m *metrics.Pricing) *ResultCache {
	if ttl <= 0 {
		ttl = DefaultResultTTL
	}
	if m == nil {
		m = metrics.NoopPricing()
	}
	return &ResultCache{backend: backend, ttl: ttl, metrics: m}
}

// GetOrCompute returns the cached result for fingerprint or runs compute.
// Concurrent callers for the same key share one computation. If ctx ends
// first the caller gets ErrComputeTimeout (or the context error) while the
// shared computation still completes and populates the cache.
func (c *ResultCache) GetOrCompute(ctx context.Context, fingerprint string, compute func() (*Result, error)) (*Result, error) {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}
	key := ResultKey(tc.TenantID, fingerprint)
	attr := metrics.TenantAttr(tc.TenantID)

	ch := c.group.DoChan(key, func() (any, error) {
		computed := false
		res, err := cache.GetOrSet(context.WithoutCancel(ctx), c.backend, key, c.ttl,
			func(context.Context) (res *Result, err error) {
				computed = true
				// a panic here would escape the singleflight goroutine
				defer func() {
					if r := recover(); r != nil {
						res, err = nil, fmt.Errorf("%w: %v", ErrComputeFailed, r)
					}
				}()
				return compute()
			})
		if computed {
			c.metrics.CacheMisses.Add(ctx, 1, attr)
		} else if err == nil {
			c.metrics.CacheHits.Add(ctx, 1, attr)
		}
		return res, err
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*Result), nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrComputeTimeout, fingerprint)
		}
		return nil, ctx.Err()
	}
}

// Invalidate removes a single fingerprint of the bound tenant.
func (c *ResultCache) Invalidate(ctx context.Context, fingerprint string) error {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return err
	}
	_, err = c.backend.Del(ctx, ResultKey(tc.TenantID, fingerprint))
	return err
}

// InvalidateTenant removes every cached result of tenantID.
func (c *ResultCache) InvalidateTenant(ctx context.Context, tenantID string) error {
	n, err := c.backend.Del(ctx, ResultKey(tenantID, "*"))
	if err != nil {
		return fmt.Errorf("failed to invalidate pricing results: %w", err)
	}
	logger.FromContext(ctx).DebugContext(ctx, "pricing results invalidated",
		logger.TenantID(tenantID), logger.Count("removed", n))
	return nil
}
