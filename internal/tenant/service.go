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
	"fmt"
	"strings"
	"time"

	"github.com/cotiza/cotiza/internal/audit"
	"github.com/cotiza/cotiza/internal/id"
)

// Service provides tenant registry business logic
type Service struct {
	repo        Repository
	auditLogger audit.Logger
	now         func() time.Time
}

// NewService creates a new tenant service
func NewService(repo Repository, auditLogger audit.Logger) *Service {
	return &Service{
		repo:        repo,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// CreateTenant registers a new active tenant.
func (s *Service) CreateTenant(ctx context.Context, name, code string) (*Tenant, error) {
	name = strings.TrimSpace(name)
	code = strings.ToUpper(strings.TrimSpace(code))
	if name == "" {
		return nil, fmt.Errorf("tenant name is required")
	}
	if code == "" {
		return nil, fmt.Errorf("tenant code is required")
	}

	if _, err := s.repo.GetByCode(ctx, code); err == nil {
		return nil, fmt.Errorf("%w: code %s", ErrTenantExists, code)
	} else if !errors.Is(err, ErrTenantNotFound) {
		return nil, err
	}

	now := s.now()
	t := &Tenant{
		ID:        id.NewUUIDv7(),
		Name:      name,
		Code:      code,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTenantCreated,
		TenantID: t.ID,
		Resource: t.Code,
	})

	return t, nil
}

// GetTenant retrieves a tenant by ID
func (s *Service) GetTenant(ctx context.Context, id string) (*Tenant, error) {
	return s.repo.GetByID(ctx, id)
}

// GetTenantByCode retrieves a tenant by its short code
func (s *Service) GetTenantByCode(ctx context.Context, code string) (*Tenant, error) {
	return s.repo.GetByCode(ctx, strings.ToUpper(code))
}

// ListTenants lists tenants with pagination
func (s *Service) ListTenants(ctx context.Context, limit, offset int) ([]*Tenant, error) {
	return s.repo.List(ctx, limit, offset)
}

// ListActive returns every active tenant, paging through the registry.
func (s *Service) ListActive(ctx context.Context) ([]*Tenant, error) {
	const page = 100
	var out []*Tenant
	for offset := 0; ; offset += page {
		batch, err := s.repo.List(ctx, page, offset)
		if err != nil {
			return nil, err
		}
		for _, t := range batch {
			if t.IsActive() {
				out = append(out, t)
			}
		}
		if len(batch) < page {
			return out, nil
		}
	}
}

// SetStatus activates or deactivates a tenant.
func (s *Service) SetStatus(ctx context.Context, id, status string) (*Tenant, error) {
	if status != StatusActive && status != StatusInactive {
		return nil, fmt.Errorf("invalid tenant status: %s", status)
	}
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status == status {
		return t, nil
	}
	t.Status = status
	t.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to update tenant: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTenantStatusChanged,
		TenantID: t.ID,
		Resource: t.Code,
		Metadata: map[string]any{"status": status},
	})
	return t, nil
}
