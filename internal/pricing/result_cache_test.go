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

package pricing

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cotiza/cotiza/internal/cache"
	"github.com/cotiza/cotiza/internal/catalog"
	"github.com/cotiza/cotiza/internal/tenant"
)

func tenantCtx(id string) context.Context {
	return tenant.WithContext(context.Background(), tenant.Context{TenantID: id})
}

func TestFingerprint(t *testing.T) {
	in := FingerprintInput{
		FileHash:     "sha256:abc",
		Process:      catalog.ProcessFFF,
		MaterialCode: "PLA",
		MachineCode:  "MK4",
		Quantity:     10,
		Selections:   Selections{InfillPercent: 20, LayerHeightMm: 0.2},
	}
	fp := Fingerprint(in)
	assert.Len(t, fp, 64)
	assert.Equal(t, fp, Fingerprint(in))

	other := in
	other.Quantity = 11
	assert.NotEqual(t, fp, Fingerprint(other))

	other = in
	other.Selections.Rush = true
	assert.NotEqual(t, fp, Fingerprint(other))
}

// TestPurpose: Validates that concurrent requests for one fingerprint trigger a single computation.
// Scope: Unit Test
// Expected: Two concurrent callers receive the same result and the compute counter equals 1.
// Test Case ID: RC-01
func TestResultCache_SingleFlight(t *testing.T) {
	rc := NewResultCache(cache.NewMemory(), 0, nil)
	ctx := tenantCtx("T1")

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	compute := func() (*Result, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return &Result{UnitPrice: d("12.50"), TotalPrice: d("25.00"), LeadDays: 3}, nil
	}

	var wg sync.WaitGroup
	results := make([]*Result, 2)
	errs := make([]error, 2)
	run := func(i int) {
		defer wg.Done()
		results[i], errs[i] = rc.GetOrCompute(ctx, "fp-1", compute)
	}

	wg.Add(1)
	go run(0)
	<-started
	wg.Add(1)
	go run(1)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.EqualValues(t, 1, calls.Load())
	assert.True(t, results[0].UnitPrice.Equal(results[1].UnitPrice))
}

func TestResultCache_HitWithinTTL(t *testing.T) {
	backend := cache.NewMemory()
	rc := NewResultCache(backend, time.Hour, nil)
	ctx := tenantCtx("T1")

	var calls atomic.Int32
	compute := func() (*Result, error) {
		calls.Add(1)
		return &Result{UnitPrice: d("3.10"), LeadDays: 3}, nil
	}

	_, err := rc.GetOrCompute(ctx, "fp", compute)
	require.NoError(t, err)
	got, err := rc.GetOrCompute(ctx, "fp", compute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, "3.1", got.UnitPrice.String())

	_, ok, _ := backend.Get(ctx, ResultKey("T1", "fp"))
	assert.True(t, ok)
}

// TestPurpose: Validates that cached results never cross tenants.
// Scope: Unit Test
// Security: Multi-tenant boundary enforcement
// Expected: The same fingerprint under another tenant triggers its own computation.
// Test Case ID: RC-02
func TestResultCache_TenantNamespaced(t *testing.T) {
	rc := NewResultCache(cache.NewMemory(), time.Hour, nil)
	var calls atomic.Int32
	compute := func() (*Result, error) {
		calls.Add(1)
		return &Result{}, nil
	}

	_, err := rc.GetOrCompute(tenantCtx("T1"), "fp", compute)
	require.NoError(t, err)
	_, err = rc.GetOrCompute(tenantCtx("T2"), "fp", compute)
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())

	_, err = rc.GetOrCompute(context.Background(), "fp", compute)
	assert.ErrorIs(t, err, tenant.ErrContextMissing)
}

func TestResultCache_ErrorsAreNotCached(t *testing.T) {
	rc := NewResultCache(cache.NewMemory(), time.Hour, nil)
	ctx := tenantCtx("T1")
	var calls atomic.Int32

	_, err := rc.GetOrCompute(ctx, "fp", func() (*Result, error) {
		calls.Add(1)
		return nil, ErrInvalidGeometry
	})
	assert.ErrorIs(t, err, ErrInvalidGeometry)

	_, err = rc.GetOrCompute(ctx, "fp", func() (*Result, error) {
		calls.Add(1)
		return &Result{}, nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestResultCache_ComputePanicIsAnError(t *testing.T) {
	rc := NewResultCache(cache.NewMemory(), time.Hour, nil)
	ctx := tenantCtx("T1")

	var err error
	require.NotPanics(t, func() {
		_, err = rc.GetOrCompute(ctx, "fp", func() (*Result, error) {
			panic("boom")
		})
	})
	assert.ErrorIs(t, err, ErrComputeFailed)

	res, err := rc.GetOrCompute(ctx, "fp", func() (*Result, error) {
		return &Result{LeadDays: 3}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.LeadDays)
}

func TestResultCache_TimeoutReportsComputeTimeout(t *testing.T) {
	rc := NewResultCache(cache.NewMemory(), time.Hour, nil)
	base := tenantCtx("T1")
	release := make(chan struct{})
	var calls atomic.Int32

	ctx, cancel := context.WithTimeout(base, 20*time.Millisecond)
	defer cancel()
	_, err := rc.GetOrCompute(ctx, "slow", func() (*Result, error) {
		calls.Add(1)
		<-release
		return &Result{LeadDays: 7}, nil
	})
	assert.ErrorIs(t, err, ErrComputeTimeout)

	close(release)
	// the abandoned computation still completes and is shared or cached
	res, err := rc.GetOrCompute(base, "slow", func() (*Result, error) {
		calls.Add(1)
		return nil, errors.New("must not run")
	})
	require.NoError(t, err)
	assert.Equal(t, 7, res.LeadDays)
	assert.EqualValues(t, 1, calls.Load())
}

func TestResultCache_Invalidate(t *testing.T) {
	backend := cache.NewMemory()
	rc := NewResultCache(backend, time.Hour, nil)
	t1, t2 := tenantCtx("T1"), tenantCtx("T2")
	ok := func() (*Result, error) { return &Result{}, nil }

	for _, fp := range []string{"a", "b"} {
		_, err := rc.GetOrCompute(t1, fp, ok)
		require.NoError(t, err)
	}
	_, err := rc.GetOrCompute(t2, "a", ok)
	require.NoError(t, err)

	require.NoError(t, rc.Invalidate(t1, "a"))
	assert.Equal(t, 2, backend.Len())

	require.NoError(t, rc.InvalidateTenant(context.Background(), "T1"))
	assert.Equal(t, 1, backend.Len())
	_, found, _ := backend.Get(context.Background(), ResultKey("T2", "a"))
	assert.True(t, found)
}
