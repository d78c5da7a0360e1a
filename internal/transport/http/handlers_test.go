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

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cotiza/cotiza/internal/audit"
	"github.com/cotiza/cotiza/internal/cache"
	"github.com/cotiza/cotiza/internal/catalog"
	"github.com/cotiza/cotiza/internal/files"
	"github.com/cotiza/cotiza/internal/pricing"
	"github.com/cotiza/cotiza/internal/quote"
	"github.com/cotiza/cotiza/internal/store"
	"github.com/cotiza/cotiza/internal/store/memory"
	"github.com/cotiza/cotiza/internal/tenant"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fixture struct {
	router  http.Handler
	tokens  *Tokens
	tenants *tenant.Service
	acme    *tenant.Tenant
	globex  *tenant.Tenant
	dormant *tenant.Tenant
}

func newFixture(t *testing.T, limiter *RateLimiter) *fixture {
	t.Helper()
	ctx := context.Background()
	db := memory.New()
	backend := cache.NewMemory()
	results := pricing.NewResultCache(backend, time.Hour, nil)

	cat := catalog.NewService(
		memory.NewTable[catalog.PricingConfig](db, catalog.EntityPricingConfig),
		memory.NewTable[catalog.Material](db, catalog.EntityMaterial),
		memory.NewTable[catalog.Machine](db, catalog.EntityMachine),
		backend, catalog.DefaultTTLs(), results, audit.Nop{},
	)
	fileService := files.NewService(memory.NewTable[files.File](db, files.Entity))
	repo := quote.NewRepository(
		memory.NewTable[quote.Quote](db, quote.EntityQuote),
		memory.NewTable[quote.Item](db, quote.EntityItem),
		db,
	)
	quotes := quote.NewService(repo, cat, fileService, audit.Nop{})
	engine := quote.NewEngine(quote.EngineDeps{
		Repository: repo,
		Catalog:    cat,
		Files:      fileService,
		Pricer:     pricing.NewEngine(),
		Results:    results,
	}, quote.EngineConfig{})
	tenants := tenant.NewService(store.NewTenantRepository(memory.NewTable[tenant.Tenant](db, tenant.Entity)), audit.Nop{})

	f := &fixture{tenants: tenants}
	var err error
	f.acme, err = tenants.CreateTenant(ctx, "Acme", "ACME")
	require.NoError(t, err)
	f.globex, err = tenants.CreateTenant(ctx, "Globex", "GLOBEX")
	require.NoError(t, err)
	f.dormant, err = tenants.CreateTenant(ctx, "Dormant", "DORMANT")
	require.NoError(t, err)
	_, err = tenants.SetStatus(ctx, f.dormant.ID, tenant.StatusInactive)
	require.NoError(t, err)

	f.tokens = NewTokens(TokenConfig{Secret: []byte(testSecret), Issuer: "cotiza-test", Leeway: time.Second})
	if limiter == nil {
		limiter = NewRateLimiter(1000, 1000)
	}
	f.router = NewRouter(NewHandler(quotes, engine, cat, fileService, tenants, f.tokens), limiter)
	return f
}

func (f *fixture) token(t *testing.T, tenantID, subject string, roles ...string) string {
	t.Helper()
	tok, err := f.tokens.Issue(tenantID, subject, roles, time.Hour)
	require.NoError(t, err)
	return tok
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func newRequest(t *testing.T, method, path, token string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[map[string]string](t, rec)["status"])
}

func TestGetCurrentTenant(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/api/v1/tenant", f.token(t, f.acme.ID, "u-1", tenant.RoleCustomer), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ACME", decode[tenant.Tenant](t, rec).Code)
}

func TestRespondServiceError_Mapping(t *testing.T) {
	h := &Handler{}
	cases := []struct {
		err  error
		want int
	}{
		{quote.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", files.ErrNotFound), http.StatusNotFound},
		{store.ErrNotFound, http.StatusNotFound},
		{quote.ErrStateConflict, http.StatusConflict},
		{fmt.Errorf("%w: %w", quote.ErrStateConflict, quote.ErrExpired), http.StatusConflict},
		{quote.ErrConcurrentUpdate, http.StatusConflict},
		{quote.ErrInvalidInput, http.StatusBadRequest},
		{catalog.ErrInvalidConfig, http.StatusBadRequest},
		{pricing.ErrInvalidGeometry, http.StatusBadRequest},
		{tenant.ErrContextMissing, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		h.respondServiceError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tc.err)
		assert.Equal(t, tc.want, rec.Code, tc.err.Error())
	}
}

func TestRespondServiceError_HidesInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	(&Handler{}).respondServiceError(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("pq: connection refused"))
	assert.Equal(t, "internal error", decode[map[string]string](t, rec)["error"])
}
