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

// Package memory is an in-process store backend used by tests and local
// development. Transactions are serialized and roll back by restoring a
// snapshot of every table. Writes outside a transaction wait for the running
// transaction, so a rollback never discards them.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/cotiza/cotiza/internal/store"
)

type table struct {
	rows  map[string]any
	order []string
}

func (t *table) clone() *table {
	return &table{rows: maps.Clone(t.rows), order: slices.Clone(t.order)}
}

// Store holds every table of the memory backend.
type Store struct {
	mu     sync.RWMutex
	tables map[store.Entity]*table
	txMu   sync.Mutex
}

// New creates an empty store.
func New() *Store {
	return &Store{tables: make(map[store.Entity]*table)}
}

type txKey struct{}

// Transaction runs fn atomically with respect to other transactions.
func (s *Store) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := make(map[store.Entity]*table, len(s.tables))
	for e, t := range s.tables {
		snapshot[e] = t.clone()
	}
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.tables = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// exclusive serializes a write made outside any transaction with running
// transactions. Writes inside a transaction already hold txMu.
func (s *Store) exclusive(ctx context.Context) func() {
	if ctx.Value(txKey{}) != nil {
		return func() {}
	}
	s.txMu.Lock()
	return s.txMu.Unlock
}

func (s *Store) table(e store.Entity) *table {
	t, ok := s.tables[e]
	if !ok {
		t = &table{rows: make(map[string]any)}
		s.tables[e] = t
	}
	return t
}

// Table is a typed view of one entity of a Store.
type Table[T store.Record] struct {
	s      *Store
	entity store.Entity
}

// NewTable returns the table for entity.
func NewTable[T store.Record](s *Store, entity store.Entity) *Table[T] {
	return &Table[T]{s: s, entity: entity}
}

func (t *Table[T]) Entity() store.Entity { return t.entity }

func idOf(fields map[string]any) (string, error) {
	id, ok := fields["id"].(string)
	if !ok || id == "" {
		return "", fmt.Errorf("record without id")
	}
	return id, nil
}

// scan returns copies of matching rows in insertion order.
func (t *Table[T]) scan(f store.Filter) []T {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	tbl, ok := t.s.tables[t.entity]
	if !ok {
		return nil
	}
	var out []T
	for _, id := range tbl.order {
		rec := tbl.rows[id].(T)
		if store.Match(rec.Fields(), f) {
			out = append(out, rec)
		}
	}
	return out
}

func (t *Table[T]) Find(ctx context.Context, f store.Filter) (*T, error) {
	rows := t.scan(f)
	if len(rows) == 0 {
		return nil, store.ErrNotFound
	}
	rec := rows[0]
	return &rec, nil
}

func (t *Table[T]) FindMany(ctx context.Context, q store.Query) ([]T, error) {
	rows := t.scan(q.Filter)
	if len(q.OrderBy) > 0 {
		slices.SortStableFunc(rows, func(a, b T) int {
			fa, fb := a.Fields(), b.Fields()
			for _, o := range q.OrderBy {
				n, _ := store.Compare(fa[o.Column], fb[o.Column])
				if o.Desc {
					n = -n
				}
				if n != 0 {
					return n
				}
			}
			return 0
		})
	}
	if q.Offset > 0 {
		rows = rows[min(q.Offset, len(rows)):]
	}
	if q.Limit > 0 {
		rows = rows[:min(q.Limit, len(rows))]
	}
	return rows, nil
}

func (t *Table[T]) Count(ctx context.Context, f store.Filter) (int, error) {
	return len(t.scan(f)), nil
}

func (t *Table[T]) Create(ctx context.Context, rec *T) error {
	id, err := idOf((*rec).Fields())
	if err != nil {
		return err
	}

	defer t.s.exclusive(ctx)()
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	tbl := t.s.table(t.entity)
	if _, exists := tbl.rows[id]; exists {
		return fmt.Errorf("%s %s: %w", t.entity, id, store.ErrDuplicate)
	}
	tbl.rows[id] = *rec
	tbl.order = append(tbl.order, id)
	return nil
}

func (t *Table[T]) Update(ctx context.Context, f store.Filter, rec *T) error {
	id, err := idOf((*rec).Fields())
	if err != nil {
		return err
	}

	defer t.s.exclusive(ctx)()
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	tbl := t.s.table(t.entity)
	cur, ok := tbl.rows[id]
	if !ok || !store.Match(cur.(T).Fields(), f) {
		return store.ErrNotFound
	}
	tbl.rows[id] = *rec
	return nil
}

func (t *Table[T]) Delete(ctx context.Context, f store.Filter) error {
	defer t.s.exclusive(ctx)()
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	tbl := t.s.table(t.entity)
	kept := tbl.order[:0:0]
	removed := 0
	for _, id := range tbl.order {
		if store.Match(tbl.rows[id].(T).Fields(), f) {
			delete(tbl.rows, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	if removed == 0 {
		return store.ErrNotFound
	}
	tbl.order = kept
	return nil
}

var _ store.Transactor = (*Store)(nil)
