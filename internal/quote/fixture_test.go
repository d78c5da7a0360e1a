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
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/cotiza/cotiza/internal/audit"
	"github.com/cotiza/cotiza/internal/cache"
	"github.com/cotiza/cotiza/internal/catalog"
	"github.com/cotiza/cotiza/internal/files"
	"github.com/cotiza/cotiza/internal/pricing"
	"github.com/cotiza/cotiza/internal/store/memory"
	"github.com/cotiza/cotiza/internal/tenant"
)

// countingPricer counts computations that actually ran.
type countingPricer struct {
	inner *pricing.Engine
	calls atomic.Int32
	delay map[string]time.Duration
}

func (p *countingPricer) Compute(in pricing.Input) (*pricing.Result, error) {
	p.calls.Add(1)
	if d := p.delay[in.Material.Code]; d > 0 {
		time.Sleep(d)
	}
	return p.inner.Compute(in)
}

type fixture struct {
	db      *memory.Store
	catalog *catalog.Service
	files   *files.Service
	repo    *Repository
	svc     *Service
	engine  *Engine
	pricer  *countingPricer
	now     time.Time
}

var march = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, cfg EngineConfig) *fixture {
	t.Helper()
	db := memory.New()
	backend := cache.NewMemory()
	results := pricing.NewResultCache(backend, time.Hour, nil)

	f := &fixture{db: db, now: march}
	f.catalog = catalog.NewService(
		memory.NewTable[catalog.PricingConfig](db, catalog.EntityPricingConfig),
		memory.NewTable[catalog.Material](db, catalog.EntityMaterial),
		memory.NewTable[catalog.Machine](db, catalog.EntityMachine),
		backend, catalog.DefaultTTLs(), results, audit.Nop{},
	)
	f.files = files.NewService(memory.NewTable[files.File](db, files.Entity))
	f.repo = NewRepository(memory.NewTable[Quote](db, EntityQuote), memory.NewTable[Item](db, EntityItem), db)
	f.svc = NewService(f.repo, f.catalog, f.files, audit.Nop{})
	f.pricer = &countingPricer{inner: pricing.NewEngine(), delay: map[string]time.Duration{}}
	f.engine = NewEngine(EngineDeps{
		Repository: f.repo,
		Catalog:    f.catalog,
		Files:      f.files,
		Pricer:     f.pricer,
		Results:    results,
	}, cfg)

	clock := func() time.Time { return f.now }
	f.svc.now = clock
	f.engine.now = clock
	return f
}

func staff(tid string) context.Context {
	return tenant.WithContext(context.Background(), tenant.Context{
		TenantID:    tid,
		CallerID:    "agent-1",
		CallerRoles: []string{tenant.RoleOperator},
	})
}

func customer(tid, id string) context.Context {
	return tenant.WithContext(context.Background(), tenant.Context{
		TenantID:    tid,
		CallerID:    id,
		CallerRoles: []string{tenant.RoleCustomer},
	})
}

// seedCatalog stores one FFF material and machine matching the reference
// scenario: material cost 1 per unit, machine rate 500 per hour.
func (f *fixture) seedCatalog(t *testing.T, ctx context.Context) {
	t.Helper()
	_, err := f.catalog.UpsertMaterial(ctx, catalog.Material{
		Process:     catalog.ProcessFFF,
		Code:        "PLA",
		Name:        "PLA",
		CostPerUnit: decimal.NewFromInt(1),
		Co2eFactor:  decimal.RequireFromString("0.0025"),
	})
	require.NoError(t, err)
	_, err = f.catalog.UpsertMachine(ctx, catalog.Machine{
		Process:      catalog.ProcessFFF,
		Code:         "MK4",
		HourlyRate:   decimal.NewFromInt(500),
		SetupMinutes: 10,
		RatedPowerKw: decimal.RequireFromString("0.35"),
	})
	require.NoError(t, err)
}

var block = pricing.GeometryMetrics{
	VolumeCm3:      100,
	SurfaceAreaCm2: 150,
	BBoxMm:         pricing.BoundingBox{X: 50, Y: 50, Z: 40},
}

// addItem registers an analyzed file with contentHash and adds an item for it.
func (f *fixture) addItem(t *testing.T, ctx context.Context, q *Quote, material, contentHash string, qty int) *Item {
	t.Helper()
	file, err := f.files.Register(ctx, "", contentHash+".stl", contentHash)
	require.NoError(t, err)
	_, err = f.files.RecordAnalysis(ctx, file.ID, block)
	require.NoError(t, err)
	it, err := f.svc.AddItem(ctx, q.ID, AddItemInput{
		FileID:       file.ID,
		Process:      catalog.ProcessFFF,
		MaterialCode: material,
		Quantity:     qty,
	})
	require.NoError(t, err)
	return it
}

func (f *fixture) newQuote(t *testing.T, ctx context.Context) *Quote {
	t.Helper()
	q, err := f.svc.Create(ctx, CreateInput{CustomerID: "cust-1"})
	require.NoError(t, err)
	return q
}
