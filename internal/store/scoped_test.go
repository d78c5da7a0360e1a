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

package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cotiza/cotiza/internal/store"
	"github.com/cotiza/cotiza/internal/store/memory"
	"github.com/cotiza/cotiza/internal/tenant"
)

type widget struct {
	ID        string
	TenantID  string
	Name      string
	Rank      int
	CreatedAt time.Time
}

func (w widget) Fields() map[string]any {
	return map[string]any{
		"id":         w.ID,
		"tenant_id":  w.TenantID,
		"name":       w.Name,
		"rank":       w.Rank,
		"created_at": w.CreatedAt,
	}
}

func (w *widget) SetTenantID(id string) { w.TenantID = id }

type session struct {
	ID string
}

func (s session) Fields() map[string]any { return map[string]any{"id": s.ID} }
func (s *session) SetTenantID(string)    {}

func bind(id string) context.Context {
	return tenant.WithContext(context.Background(), tenant.Context{TenantID: id})
}

func newWidgets() *store.Scoped[widget, *widget] {
	return store.NewScoped[widget](memory.NewTable[widget](memory.New(), "widgets"))
}

// TestPurpose: Validates that every call on a tenant-scoped entity fails without a bound tenant context.
// Scope: Unit Test
// Security: Multi-tenant boundary enforcement
// Expected: Find, FindMany, Count, Create, Update and Delete return ErrContextMissing.
// Test Case ID: ISO-01
func TestScoped_RequiresContext(t *testing.T) {
	w := newWidgets()
	ctx := context.Background()

	_, err := w.Find(ctx, store.Filter{"id": "1"})
	assert.ErrorIs(t, err, tenant.ErrContextMissing)
	_, err = w.FindMany(ctx, store.Query{})
	assert.ErrorIs(t, err, tenant.ErrContextMissing)
	_, err = w.Count(ctx, nil)
	assert.ErrorIs(t, err, tenant.ErrContextMissing)
	assert.ErrorIs(t, w.Create(ctx, &widget{ID: "1"}), tenant.ErrContextMissing)
	assert.ErrorIs(t, w.Update(ctx, store.Filter{"id": "1"}, &widget{ID: "1"}), tenant.ErrContextMissing)
	assert.ErrorIs(t, w.Delete(ctx, store.Filter{"id": "1"}), tenant.ErrContextMissing)
}

// TestPurpose: Validates that create stamps the bound tenant, overriding any caller-supplied value.
// Scope: Unit Test
// Security: Multi-tenant boundary enforcement
// Expected: A record created with tenant_id=T2 under a T1 binding is persisted as T1.
// Test Case ID: ISO-02
func TestScoped_CreateStampsTenant(t *testing.T) {
	w := newWidgets()

	rec := &widget{ID: "w1", TenantID: "T2", Name: "bracket"}
	require.NoError(t, w.Create(bind("T1"), rec))
	assert.Equal(t, "T1", rec.TenantID)

	got, err := w.Find(bind("T1"), store.Filter{"id": "w1"})
	require.NoError(t, err)
	assert.Equal(t, "T1", got.TenantID)

	_, err = w.Find(bind("T2"), store.Filter{"id": "w1"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// TestPurpose: Validates that cross-tenant access is indistinguishable from a missing record.
// Scope: Unit Test
// Security: Multi-tenant boundary enforcement
// Expected: T2 cannot read, count, update or delete a T1 record; a caller-supplied tenant filter is overridden.
// Test Case ID: ISO-03
func TestScoped_CrossTenantIsNotFound(t *testing.T) {
	w := newWidgets()
	require.NoError(t, w.Create(bind("T1"), &widget{ID: "w1", Name: "a"}))

	t2 := bind("T2")
	_, err := w.Find(t2, store.Filter{"id": "w1", store.TenantColumn: "T1"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	n, err := w.Count(t2, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	err = w.Update(t2, store.Filter{"id": "w1"}, &widget{ID: "w1", Name: "stolen"})
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, w.Delete(t2, store.Filter{"id": "w1"}), store.ErrNotFound)

	got, err := w.Find(bind("T1"), store.Filter{"id": "w1"})
	require.NoError(t, err)
	assert.Equal(t, "a", got.Name)
}

func TestScoped_UpdateCannotMoveTenant(t *testing.T) {
	w := newWidgets()
	ctx := bind("T1")
	require.NoError(t, w.Create(ctx, &widget{ID: "w1"}))

	require.NoError(t, w.Update(ctx, store.Filter{"id": "w1"}, &widget{ID: "w1", TenantID: "T2", Name: "b"}))

	got, err := w.Find(ctx, store.Filter{"id": "w1"})
	require.NoError(t, err)
	assert.Equal(t, "T1", got.TenantID)
	assert.Equal(t, "b", got.Name)
}

func TestScoped_GlobalEntityWithoutContext(t *testing.T) {
	sessions := store.NewScoped[session](memory.NewTable[session](memory.New(), "sessions"))
	ctx := context.Background()

	require.NoError(t, sessions.Create(ctx, &session{ID: "s1"}))
	got, err := sessions.Find(ctx, store.Filter{"id": "s1"})
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID)
	assert.True(t, store.IsGlobal("tenants"))
	assert.False(t, store.IsGlobal("quotes"))
}

func TestScoped_FindManyOrderAndPaging(t *testing.T) {
	w := newWidgets()
	ctx := bind("T1")
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"c", "a", "d", "b"} {
		require.NoError(t, w.Create(ctx, &widget{ID: name, Name: name, Rank: i, CreatedAt: base.AddDate(0, 0, i)}))
	}
	require.NoError(t, w.Create(bind("T2"), &widget{ID: "z", Name: "z"}))

	rows, err := w.FindMany(ctx, store.Query{
		OrderBy: []store.Order{{Column: "name"}},
		Offset:  1,
		Limit:   2,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "b", rows[0].Name)
	assert.Equal(t, "c", rows[1].Name)

	rows, err = w.FindMany(ctx, store.Query{
		Filter:  store.Filter{"created_at": store.NotBefore{Value: base.AddDate(0, 0, 2)}},
		OrderBy: []store.Order{{Column: "rank", Desc: true}},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "b", rows[0].Name)

	n, err := w.Count(ctx, store.Filter{"id": store.In("a", "b", "z")})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = w.Count(ctx, store.Filter{"created_at": store.Before{Value: base.AddDate(0, 0, 1)}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = w.Count(ctx, store.Filter{"created_at": store.Within{From: base.AddDate(0, 0, 1), To: base.AddDate(0, 0, 3)}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMemory_TransactionRollback(t *testing.T) {
	s := memory.New()
	w := store.NewScoped[widget](memory.NewTable[widget](s, "widgets"))
	ctx := bind("T1")
	require.NoError(t, w.Create(ctx, &widget{ID: "w1", Name: "kept"}))

	boom := errors.New("boom")
	err := s.Transaction(ctx, func(ctx context.Context) error {
		require.NoError(t, w.Create(ctx, &widget{ID: "w2"}))
		require.NoError(t, w.Update(ctx, store.Filter{"id": "w1"}, &widget{ID: "w1", Name: "changed"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	n, _ := w.Count(ctx, nil)
	assert.Equal(t, 1, n)
	got, _ := w.Find(ctx, store.Filter{"id": "w1"})
	assert.Equal(t, "kept", got.Name)

	require.NoError(t, s.Transaction(ctx, func(ctx context.Context) error {
		return w.Create(ctx, &widget{ID: "w3"})
	}))
	n, _ = w.Count(ctx, nil)
	assert.Equal(t, 2, n)
}

// TestPurpose: Validates that a rollback only undoes the writes of its own transaction.
// Scope: Unit Test
// Expected: A write made outside a running transaction waits for it and survives its rollback.
// Test Case ID: STORE-01
func TestMemory_RollbackKeepsConcurrentWrites(t *testing.T) {
	s := memory.New()
	w := store.NewScoped[widget](memory.NewTable[widget](s, "widgets"))
	ctx := bind("T1")
	require.NoError(t, w.Create(ctx, &widget{ID: "w1", Name: "kept"}))

	boom := errors.New("boom")
	inTx := make(chan struct{})
	release := make(chan struct{})
	txErr := make(chan error, 1)
	go func() {
		txErr <- s.Transaction(ctx, func(ctx context.Context) error {
			if err := w.Create(ctx, &widget{ID: "w2"}); err != nil {
				return err
			}
			close(inTx)
			<-release
			return boom
		})
	}()
	<-inTx

	outside := make(chan error, 1)
	go func() {
		outside <- w.Update(ctx, store.Filter{"id": "w1"}, &widget{ID: "w1", Name: "outside"})
	}()
	select {
	case err := <-outside:
		t.Fatalf("write outside the transaction did not wait: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	assert.ErrorIs(t, <-txErr, boom)
	require.NoError(t, <-outside)

	_, err := w.Find(ctx, store.Filter{"id": "w2"})
	assert.ErrorIs(t, err, store.ErrNotFound)
	got, err := w.Find(ctx, store.Filter{"id": "w1"})
	require.NoError(t, err)
	assert.Equal(t, "outside", got.Name)
}

func TestMemory_CreateDuplicate(t *testing.T) {
	w := newWidgets()
	ctx := bind("T1")
	require.NoError(t, w.Create(ctx, &widget{ID: "w1"}))
	assert.ErrorIs(t, w.Create(ctx, &widget{ID: "w1"}), store.ErrDuplicate)
}
