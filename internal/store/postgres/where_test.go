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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cotiza/cotiza/internal/store"
)

func TestWhere_RendersSortedConditions(t *testing.T) {
	cutoff := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	clause, args := where(store.Filter{
		"tenant_id":  "T1",
		"status":     store.In("DRAFT", "QUOTED"),
		"created_at": store.NotBefore{Value: cutoff},
	}, nil)

	assert.Equal(t, ` WHERE "created_at" >= $1 AND "status" IN ($2, $3) AND "tenant_id" = $4`, clause)
	assert.Equal(t, []any{cutoff, "DRAFT", "QUOTED", "T1"}, args)
}

func TestWhere_ContinuesPlaceholders(t *testing.T) {
	clause, args := where(store.Filter{"id": "q1", "version": 3}, []any{"x", "y"})
	assert.Equal(t, ` WHERE "id" = $3 AND "version" = $4`, clause)
	assert.Len(t, args, 4)
}

func TestWhere_EmptyAnyOfMatchesNothing(t *testing.T) {
	clause, args := where(store.Filter{"id": store.In[string]()}, nil)
	assert.Equal(t, " WHERE FALSE", clause)
	assert.Empty(t, args)

	clause, _ = where(nil, nil)
	assert.Empty(t, clause)

	clause, _ = where(store.Filter{"validity_until": store.Before{Value: 1}}, nil)
	assert.Equal(t, ` WHERE "validity_until" < $1`, clause)
}

func TestWhere_Within(t *testing.T) {
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	clause, args := where(store.Filter{"created_at": store.Within{From: from, To: to}, "tenant_id": "T1"}, nil)
	assert.Equal(t, ` WHERE "created_at" >= $1 AND "created_at" < $2 AND "tenant_id" = $3`, clause)
	assert.Equal(t, []any{from, to, "T1"}, args)
}
