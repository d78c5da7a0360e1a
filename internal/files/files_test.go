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

package files

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cotiza/cotiza/internal/pricing"
	"github.com/cotiza/cotiza/internal/store/memory"
	"github.com/cotiza/cotiza/internal/tenant"
)

func newService() *Service {
	return NewService(memory.NewTable[File](memory.New(), Entity))
}

func bind(tid string) context.Context {
	return tenant.WithContext(context.Background(), tenant.Context{TenantID: tid})
}

var cube = pricing.GeometryMetrics{VolumeCm3: 8, SurfaceAreaCm2: 24, BBoxMm: pricing.BoundingBox{X: 20, Y: 20, Z: 20}}

func TestGetAnalyzedGeometry(t *testing.T) {
	svc := newService()
	ctx := bind("T1")

	f, err := svc.Register(ctx, "item-1", "cube.stl", "ABC123")
	require.NoError(t, err)
	assert.Equal(t, "T1", f.TenantID)
	assert.Equal(t, "abc123", f.ContentHash)

	_, err = svc.GetAnalyzedGeometry(ctx, f.ID)
	assert.ErrorIs(t, err, ErrNotAnalyzed)

	_, err = svc.RecordAnalysis(ctx, f.ID, cube)
	require.NoError(t, err)

	g, err := svc.GetAnalyzedGeometry(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, cube, *g)

	_, err = svc.GetAnalyzedGeometry(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestPurpose: Validates that a file of another tenant resolves as missing.
// Scope: Unit Test
// Security: Multi-tenant boundary enforcement
// Expected: ErrNotFound for T2, never the geometry of T1.
// Test Case ID: FILE-01
func TestGetAnalyzedGeometry_CrossTenant(t *testing.T) {
	svc := newService()
	f, err := svc.Register(bind("T1"), "item-1", "cube.stl", "abc")
	require.NoError(t, err)
	_, err = svc.RecordAnalysis(bind("T1"), f.ID, cube)
	require.NoError(t, err)

	_, err = svc.GetAnalyzedGeometry(bind("T2"), f.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.RecordAnalysis(bind("T2"), f.ID, cube)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordAnalysis_RejectsInvalidGeometry(t *testing.T) {
	svc := newService()
	ctx := bind("T1")
	f, err := svc.Register(ctx, "item-1", "flat.stl", "abc")
	require.NoError(t, err)

	_, err = svc.RecordAnalysis(ctx, f.ID, pricing.GeometryMetrics{VolumeCm3: 0})
	assert.ErrorIs(t, err, pricing.ErrInvalidGeometry)
}

func TestRegister_Validation(t *testing.T) {
	_, err := newService().Register(bind("T1"), "item-1", "x.stl", " ")
	assert.ErrorIs(t, err, ErrInvalidFile)
	_, err = newService().Register(context.Background(), "item-1", "x.stl", "abc")
	assert.ErrorIs(t, err, tenant.ErrContextMissing)
}

func TestAttachToItem(t *testing.T) {
	svc := newService()
	ctx := bind("T1")
	f, err := svc.Register(ctx, "", "bracket.stl", "abc")
	require.NoError(t, err)
	_, err = svc.RecordAnalysis(ctx, f.ID, cube)
	require.NoError(t, err)

	got, err := svc.AnalyzedByItem(ctx, []string{"item-9"})
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = svc.AttachToItem(ctx, f.ID, "item-9")
	require.NoError(t, err)
	got, err = svc.AnalyzedByItem(ctx, []string{"item-9"})
	require.NoError(t, err)
	assert.Equal(t, f.ID, got["item-9"].ID)

	_, err = svc.AttachToItem(bind("T2"), f.ID, "item-x")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.AttachToItem(ctx, f.ID, "item-9")
	require.NoError(t, err)
	_, err = svc.AttachToItem(ctx, f.ID, "item-10")
	assert.ErrorIs(t, err, ErrAlreadyAttached)
	got, err = svc.AnalyzedByItem(ctx, []string{"item-9", "item-10"})
	require.NoError(t, err)
	assert.Equal(t, f.ID, got["item-9"].ID)
	assert.NotContains(t, got, "item-10")
}

func TestAnalyzedByItem(t *testing.T) {
	svc := newService()
	ctx := bind("T1")
	clock := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { clock = clock.Add(time.Minute); return clock }

	old, err := svc.Register(ctx, "item-1", "v1.stl", "aaa")
	require.NoError(t, err)
	_, err = svc.RecordAnalysis(ctx, old.ID, cube)
	require.NoError(t, err)
	latest, err := svc.Register(ctx, "item-1", "v2.stl", "bbb")
	require.NoError(t, err)
	_, err = svc.RecordAnalysis(ctx, latest.ID, cube)
	require.NoError(t, err)

	_, err = svc.Register(ctx, "item-2", "pending.stl", "ccc")
	require.NoError(t, err)

	got, err := svc.AnalyzedByItem(ctx, []string{"item-1", "item-2", "item-3"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "bbb", got["item-1"].ContentHash)

	empty, err := svc.AnalyzedByItem(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
