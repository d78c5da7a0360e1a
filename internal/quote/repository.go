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

package quote

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/cotiza/cotiza/internal/store"
)

// Repository persists quotes and their items through tenant-scoped tables.
type Repository struct {
	quotes *store.Scoped[Quote, *Quote]
	items  *store.Scoped[Item, *Item]
	tx     store.Transactor
}

// NewRepository wraps the raw tables with tenant isolation. tx must be the
// transactor of the backend the tables belong to.
func NewRepository(quotes store.Table[Quote], items store.Table[Item], tx store.Transactor) *Repository {
	return &Repository{
		quotes: store.NewScoped[Quote](quotes),
		items:  store.NewScoped[Item](items),
		tx:     tx,
	}
}

// Get loads a quote of the bound tenant with its items in position order.
func (r *Repository) Get(ctx context.Context, id string) (*Quote, error) {
	q, err := r.quotes.Find(ctx, store.Filter{"id": id})
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	byQuote, err := r.itemsOf(ctx, q.ID)
	if err != nil {
		return nil, err
	}
	q.Items = byQuote[q.ID]
	return q, nil
}

// itemsOf loads the items of several quotes with one read.
func (r *Repository) itemsOf(ctx context.Context, quoteIDs ...string) (map[string][]Item, error) {
	out := make(map[string][]Item, len(quoteIDs))
	if len(quoteIDs) == 0 {
		return out, nil
	}
	rows, err := r.items.FindMany(ctx, store.Query{
		Filter:  store.Filter{"quote_id": store.In(quoteIDs...)},
		OrderBy: []store.Order{{Column: "quote_id"}, {Column: "position"}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load quote items: %w", err)
	}
	for _, it := range rows {
		out[it.QuoteID] = append(out[it.QuoteID], it)
	}
	return out, nil
}

// List returns one page of quotes matching f, newest first, and the total
// number of matches.
func (r *Repository) List(ctx context.Context, f store.Filter, limit, offset int) ([]Quote, int, error) {
	total, err := r.quotes.Count(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count quotes: %w", err)
	}
	rows, err := r.quotes.FindMany(ctx, store.Query{
		Filter:  f,
		OrderBy: []store.Order{{Column: "created_at", Desc: true}, {Column: "id", Desc: true}},
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list quotes: %w", err)
	}
	ids := make([]string, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	byQuote, err := r.itemsOf(ctx, ids...)
	if err != nil {
		return nil, 0, err
	}
	for i := range rows {
		rows[i].Items = byQuote[rows[i].ID]
	}
	return rows, total, nil
}

// Create inserts a new quote.
func (r *Repository) Create(ctx context.Context, q *Quote) error {
	return r.quotes.Create(ctx, q)
}

// Save writes q and the given items atomically. q.Version must be the
// version that was read; it is incremented on success. A quote changed by
// someone else in the meantime yields ErrConcurrentUpdate and nothing is
// written.
func (r *Repository) Save(ctx context.Context, q *Quote, items ...Item) error {
	read := q.Version
	next := *q
	next.Version = read + 1
	next.Items = nil

	err := r.tx.Transaction(ctx, func(ctx context.Context) error {
		for i := range items {
			if err := r.items.Update(ctx, store.Filter{"id": items[i].ID, "quote_id": q.ID}, &items[i]); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("%w: %s", ErrItemNotFound, items[i].ID)
				}
				return fmt.Errorf("failed to save item %s: %w", items[i].ID, err)
			}
		}
		err := r.quotes.Update(ctx, store.Filter{"id": q.ID, "version": read}, &next)
		if errors.Is(err, store.ErrNotFound) {
			return ErrConcurrentUpdate
		}
		return err
	})
	if err != nil {
		return err
	}
	q.Version = next.Version
	for _, it := range items {
		if i := slices.IndexFunc(q.Items, func(x Item) bool { return x.ID == it.ID }); i >= 0 {
			q.Items[i] = it
		}
	}
	return nil
}

// AddItem inserts an item and bumps the owning quote's version atomically.
// attach runs inside the same transaction.
func (r *Repository) AddItem(ctx context.Context, q *Quote, it *Item, attach func(ctx context.Context) error) error {
	read := q.Version
	next := *q
	next.Version = read + 1
	next.Items = nil

	err := r.tx.Transaction(ctx, func(ctx context.Context) error {
		if err := r.quotes.Update(ctx, store.Filter{"id": q.ID, "version": read}, &next); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrConcurrentUpdate
			}
			return err
		}
		if err := r.items.Create(ctx, it); err != nil {
			return fmt.Errorf("failed to create item: %w", err)
		}
		if attach != nil {
			return attach(ctx)
		}
		return nil
	})
	if err != nil {
		return err
	}
	q.Version = next.Version
	q.Items = append(q.Items, *it)
	return nil
}
