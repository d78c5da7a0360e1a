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

package tenant

import (
	"context"
	"errors"
	"slices"
)

// ErrContextMissing is returned when an operation needs a tenant context and
// none is bound to the call chain.
var ErrContextMissing = errors.New("tenant context missing")

// Context is the immutable identity of the current call chain.
// It is bound once per request or job and never mutated afterwards.
type Context struct {
	TenantID      string
	CallerID      string
	CallerRoles   []string
	CorrelationID string
}

// HasRole reports whether the caller holds any of the given roles.
func (c Context) HasRole(roles ...string) bool {
	for _, r := range roles {
		if slices.Contains(c.CallerRoles, r) {
			return true
		}
	}
	return false
}

type ctxKey struct{}

// WithContext returns a child context carrying tc. A nested binding shadows
// the outer one only for code running under the returned context.
func WithContext(ctx context.Context, tc Context) context.Context {
	tc.CallerRoles = slices.Clone(tc.CallerRoles)
	return context.WithValue(ctx, ctxKey{}, tc)
}

// Run executes fn with tc bound and returns its error.
func Run(ctx context.Context, tc Context, fn func(ctx context.Context) error) error {
	return fn(WithContext(ctx, tc))
}

// FromContext returns the bound tenant context, if any.
func FromContext(ctx context.Context) (Context, bool) {
	tc, ok := ctx.Value(ctxKey{}).(Context)
	if !ok || tc.TenantID == "" {
		return Context{}, false
	}
	tc.CallerRoles = slices.Clone(tc.CallerRoles)
	return tc, true
}

// Require is FromContext for code paths where a missing binding is a
// programming error.
func Require(ctx context.Context) (Context, error) {
	tc, ok := FromContext(ctx)
	if !ok {
		return Context{}, ErrContextMissing
	}
	return tc, nil
}
