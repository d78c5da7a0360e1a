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

package store

import (
	"context"
	"fmt"

	"github.com/cotiza/cotiza/internal/tenant"
)

// globalEntities may be accessed without a tenant context.
var globalEntities = map[Entity]bool{
	"tenants":  true,
	"sessions": true,
}

// IsGlobal reports whether e is exempt from tenant scoping.
func IsGlobal(e Entity) bool {
	return globalEntities[e]
}

// Scoped enforces tenant isolation on top of a raw table: reads, counts,
// updates and deletes are restricted to the bound tenant and creates are
// stamped with it. Without a bound tenant every call on a tenant-scoped
// entity fails with tenant.ErrContextMissing. A record of another tenant is
// indistinguishable from a missing one.
type Scoped[T Record, PT interface {
	*T
	TenantRecord
}] struct {
	inner Table[T]
}

// NewScoped wraps inner with tenant isolation.
func NewScoped[T Record, PT interface {
	*T
	TenantRecord
}](inner Table[T]) *Scoped[T, PT] {
	return &Scoped[T, PT]{inner: inner}
}

func (s *Scoped[T, PT]) Entity() Entity { return s.inner.Entity() }

// scope returns the tenant id to apply, or "" for global entities.
func (s *Scoped[T, PT]) scope(ctx context.Context) (string, error) {
	if IsGlobal(s.inner.Entity()) {
		return "", nil
	}
	tc, ok := tenant.FromContext(ctx)
	if !ok {
		return "", fmt.Errorf("%s: %w", s.inner.Entity(), tenant.ErrContextMissing)
	}
	return tc.TenantID, nil
}

func (s *Scoped[T, PT]) filter(ctx context.Context, f Filter) (Filter, error) {
	tid, err := s.scope(ctx)
	if err != nil {
		return nil, err
	}
	if tid == "" {
		return f, nil
	}
	return f.With(TenantColumn, tid), nil
}

func (s *Scoped[T, PT]) Find(ctx context.Context, f Filter) (*T, error) {
	scoped, err := s.filter(ctx, f)
	if err != nil {
		return nil, err
	}
	return s.inner.Find(ctx, scoped)
}

func (s *Scoped[T, PT]) FindMany(ctx context.Context, q Query) ([]T, error) {
	scoped, err := s.filter(ctx, q.Filter)
	if err != nil {
		return nil, err
	}
	q.Filter = scoped
	return s.inner.FindMany(ctx, q)
}

func (s *Scoped[T, PT]) Count(ctx context.Context, f Filter) (int, error) {
	scoped, err := s.filter(ctx, f)
	if err != nil {
		return 0, err
	}
	return s.inner.Count(ctx, scoped)
}

func (s *Scoped[T, PT]) Create(ctx context.Context, rec *T) error {
	tid, err := s.scope(ctx)
	if err != nil {
		return err
	}
	if tid != "" {
		PT(rec).SetTenantID(tid)
	}
	return s.inner.Create(ctx, rec)
}

// Update also restamps rec so a record can never be moved to another tenant.
func (s *Scoped[T, PT]) Update(ctx context.Context, f Filter, rec *T) error {
	tid, err := s.scope(ctx)
	if err != nil {
		return err
	}
	if tid != "" {
		PT(rec).SetTenantID(tid)
		f = f.With(TenantColumn, tid)
	}
	return s.inner.Update(ctx, f, rec)
}

func (s *Scoped[T, PT]) Delete(ctx context.Context, f Filter) error {
	scoped, err := s.filter(ctx, f)
	if err != nil {
		return err
	}
	return s.inner.Delete(ctx, scoped)
}
