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
	"errors"
	"fmt"

	"github.com/cotiza/cotiza/internal/tenant"
)

// TenantRepository implements tenant.Repository on the global tenants table
// of any backend.
type TenantRepository struct {
	table Table[tenant.Tenant]
}

// NewTenantRepository creates a new tenant repository
func NewTenantRepository(table Table[tenant.Tenant]) *TenantRepository {
	return &TenantRepository{table: table}
}

func mapTenantErr(err error) error {
	if errors.Is(err, ErrNotFound) {
		return tenant.ErrTenantNotFound
	}
	if errors.Is(err, ErrDuplicate) {
		return tenant.ErrTenantExists
	}
	return err
}

// Create creates a new tenant
func (r *TenantRepository) Create(ctx context.Context, t *tenant.Tenant) error {
	return mapTenantErr(r.table.Create(ctx, t))
}

// GetByID retrieves a tenant by ID
func (r *TenantRepository) GetByID(ctx context.Context, id string) (*tenant.Tenant, error) {
	t, err := r.table.Find(ctx, Filter{"id": id})
	return t, mapTenantErr(err)
}

// GetByCode retrieves a tenant by its code
func (r *TenantRepository) GetByCode(ctx context.Context, code string) (*tenant.Tenant, error) {
	t, err := r.table.Find(ctx, Filter{"code": code})
	return t, mapTenantErr(err)
}

// Update persists name and status changes
func (r *TenantRepository) Update(ctx context.Context, t *tenant.Tenant) error {
	return mapTenantErr(r.table.Update(ctx, Filter{"id": t.ID}, t))
}

// List lists tenants ordered by creation
func (r *TenantRepository) List(ctx context.Context, limit, offset int) ([]*tenant.Tenant, error) {
	rows, err := r.table.FindMany(ctx, Query{
		OrderBy: []Order{{Column: "created_at"}, {Column: "id"}},
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	out := make([]*tenant.Tenant, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}

var _ tenant.Repository = (*TenantRepository)(nil)
