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

// Package store defines the generic persistence contract shared by the
// PostgreSQL and in-memory backends, plus the tenant isolation wrapper every
// domain table is accessed through.
package store

import (
	"context"
	"errors"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// TenantColumn is the discriminator column of tenant-scoped entities.
const TenantColumn = "tenant_id"

// Entity names a persisted record class; it doubles as the table name.
type Entity string

// Record is a persisted row. Fields returns column name to value and must
// include "id".
type Record interface {
	Fields() map[string]any
}

// TenantRecord is implemented by pointers to tenant-scoped records.
type TenantRecord interface {
	SetTenantID(id string)
}

// Order sorts query results by a column.
type Order struct {
	Column string
	Desc   bool
}

// Query is a filtered, ordered and paged read.
type Query struct {
	Filter  Filter
	OrderBy []Order
	Limit   int
	Offset  int
}

// Table is the CRUD surface of one entity.
type Table[T Record] interface {
	Entity() Entity
	// Find returns the first matching record or ErrNotFound.
	Find(ctx context.Context, f Filter) (*T, error)
	FindMany(ctx context.Context, q Query) ([]T, error)
	Count(ctx context.Context, f Filter) (int, error)
	Create(ctx context.Context, rec *T) error
	// Update overwrites the matching record with rec or returns ErrNotFound.
	Update(ctx context.Context, f Filter, rec *T) error
	// Delete removes every matching record or returns ErrNotFound.
	Delete(ctx context.Context, f Filter) error
}

// Transactor runs fn atomically. Tables used with the ctx passed to fn join
// the transaction; nested calls reuse the outer one.
type Transactor interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}
