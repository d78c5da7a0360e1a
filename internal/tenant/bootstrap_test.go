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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestBootstrap_CreatesMissingTenant(t *testing.T) {
	t.Setenv(EnvBootstrapTenantName, "Acme Parts")
	t.Setenv(EnvBootstrapTenantCode, "acme")

	repo := new(mockRepo)
	auditLogger := new(mockAudit)
	service := NewService(repo, auditLogger)
	ctx := context.Background()

	repo.On("GetByCode", ctx, "ACME").Return((*Tenant)(nil), ErrTenantNotFound)
	repo.On("Create", ctx, mock.Anything).Return(nil)
	auditLogger.On("Log", ctx, mock.Anything).Return()

	tn, created, err := service.Bootstrap(ctx)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "ACME", tn.Code)
	assert.Equal(t, "Acme Parts", tn.Name)
}

func TestBootstrap_IsIdempotent(t *testing.T) {
	t.Setenv(EnvBootstrapTenantCode, "ACME")

	repo := new(mockRepo)
	service := NewService(repo, new(mockAudit))
	ctx := context.Background()

	repo.On("GetByCode", ctx, "ACME").Return(&Tenant{ID: "t-1", Code: "ACME", Status: StatusActive}, nil)

	tn, created, err := service.Bootstrap(ctx)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "t-1", tn.ID)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestBootstrap_ReactivatesTenant(t *testing.T) {
	t.Setenv(EnvBootstrapTenantCode, "ACME")

	repo := new(mockRepo)
	auditLogger := new(mockAudit)
	service := NewService(repo, auditLogger)
	ctx := context.Background()

	repo.On("GetByCode", ctx, "ACME").Return(&Tenant{ID: "t-1", Code: "ACME", Status: StatusInactive}, nil)
	repo.On("GetByID", ctx, "t-1").Return(&Tenant{ID: "t-1", Code: "ACME", Status: StatusInactive}, nil)
	repo.On("Update", ctx, mock.MatchedBy(func(t *Tenant) bool { return t.Status == StatusActive })).Return(nil)
	auditLogger.On("Log", ctx, mock.Anything).Return()

	tn, created, err := service.Bootstrap(ctx)
	require.NoError(t, err)
	assert.False(t, created)
	assert.True(t, tn.IsActive())
}

func TestBootstrap_RequiresCode(t *testing.T) {
	t.Setenv(EnvBootstrapTenantCode, "")

	_, _, err := NewService(new(mockRepo), new(mockAudit)).Bootstrap(context.Background())
	assert.Error(t, err)
}
