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

package postgres

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/cotiza/cotiza/internal/store"
)

// Table implements store.Table for a struct type whose `db` tags match the
// column names returned by its Fields method.
type Table[T store.Record] struct {
	db      *DB
	entity  store.Entity
	columns []string
}

// NewTable creates a table bound to entity.
func NewTable[T store.Record](db *DB, entity store.Entity) *Table[T] {
	var zero T
	return &Table[T]{
		db:      db,
		entity:  entity,
		columns: slices.Sorted(maps.Keys(zero.Fields())),
	}
}

func (t *Table[T]) Entity() store.Entity { return t.entity }

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func (t *Table[T]) selectList() string {
	cols := make([]string, len(t.columns))
	for i, c := range t.columns {
		cols[i] = ident(c)
	}
	return strings.Join(cols, ", ")
}

// where renders f as a WHERE clause. Placeholders continue after args.
func where(f store.Filter, args []any) (string, []any) {
	if len(f) == 0 {
		return "", args
	}
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	var conds []string
	for _, col := range slices.Sorted(maps.Keys(f)) {
		switch c := f[col].(type) {
		case store.AnyOf:
			if len(c.Values) == 0 {
				conds = append(conds, "FALSE")
				continue
			}
			ph := make([]string, len(c.Values))
			for i, v := range c.Values {
				ph[i] = next(v)
			}
			conds = append(conds, fmt.Sprintf("%s IN (%s)", ident(col), strings.Join(ph, ", ")))
		case store.Before:
			conds = append(conds, fmt.Sprintf("%s < %s", ident(col), next(c.Value)))
		case store.NotBefore:
			conds = append(conds, fmt.Sprintf("%s >= %s", ident(col), next(c.Value)))
		case store.Within:
			lo := next(c.From)
			conds = append(conds, fmt.Sprintf("%s >= %s AND %s < %s", ident(col), lo, ident(col), next(c.To)))
		default:
			conds = append(conds, fmt.Sprintf("%s = %s", ident(col), next(c)))
		}
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (t *Table[T]) query(ctx context.Context, q store.Query) ([]T, error) {
	clause, args := where(q.Filter, nil)
	sql := fmt.Sprintf("SELECT %s FROM %s%s", t.selectList(), ident(string(t.entity)), clause)

	if len(q.OrderBy) > 0 {
		parts := make([]string, len(q.OrderBy))
		for i, o := range q.OrderBy {
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			parts[i] = ident(o.Column) + " " + dir
		}
		sql += " ORDER BY " + strings.Join(parts, ", ")
	}
	if q.Limit > 0 {
		sql += " LIMIT " + strconv.Itoa(q.Limit)
	}
	if q.Offset > 0 {
		sql += " OFFSET " + strconv.Itoa(q.Offset)
	}

	rows, err := t.db.querier(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", t.entity, err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[T])
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", t.entity, err)
	}
	return out, nil
}

func (t *Table[T]) Find(ctx context.Context, f store.Filter) (*T, error) {
	rows, err := t.query(ctx, store.Query{Filter: f, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, store.ErrNotFound
	}
	return &rows[0], nil
}

func (t *Table[T]) FindMany(ctx context.Context, q store.Query) ([]T, error) {
	return t.query(ctx, q)
}

func (t *Table[T]) Count(ctx context.Context, f store.Filter) (int, error) {
	clause, args := where(f, nil)
	var n int
	err := t.db.querier(ctx).QueryRow(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s%s", ident(string(t.entity)), clause), args...,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", t.entity, err)
	}
	return n, nil
}

func (t *Table[T]) Create(ctx context.Context, rec *T) error {
	fields := (*rec).Fields()
	cols := make([]string, len(t.columns))
	ph := make([]string, len(t.columns))
	args := make([]any, len(t.columns))
	for i, c := range t.columns {
		cols[i] = ident(c)
		ph[i] = "$" + strconv.Itoa(i+1)
		args[i] = fields[c]
	}

	_, err := t.db.querier(ctx).Exec(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		ident(string(t.entity)), strings.Join(cols, ", "), strings.Join(ph, ", "),
	), args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: %w", t.entity, store.ErrDuplicate)
		}
		return fmt.Errorf("failed to create %s: %w", t.entity, err)
	}
	return nil
}

func (t *Table[T]) Update(ctx context.Context, f store.Filter, rec *T) error {
	if len(f) == 0 {
		return fmt.Errorf("update %s: empty filter", t.entity)
	}
	fields := (*rec).Fields()
	var sets []string
	var args []any
	for _, c := range t.columns {
		if c == "id" {
			continue
		}
		args = append(args, fields[c])
		sets = append(sets, fmt.Sprintf("%s = $%d", ident(c), len(args)))
	}
	clause, args := where(f, args)

	tag, err := t.db.querier(ctx).Exec(ctx, fmt.Sprintf(
		"UPDATE %s SET %s%s", ident(string(t.entity)), strings.Join(sets, ", "), clause,
	), args...)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", t.entity, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *Table[T]) Delete(ctx context.Context, f store.Filter) error {
	clause, args := where(f, nil)
	tag, err := t.db.querier(ctx).Exec(ctx,
		fmt.Sprintf("DELETE FROM %s%s", ident(string(t.entity)), clause), args...,
	)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", t.entity, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
