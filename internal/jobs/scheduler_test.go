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

package jobs

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cotiza/cotiza/internal/tenant"
)

type staticTenants []*tenant.Tenant

func (s staticTenants) ListActive(context.Context) ([]*tenant.Tenant, error) { return s, nil }

type recordingExpirer struct {
	seen   []tenant.Context
	failOn string
}

func (r *recordingExpirer) ExpireStale(ctx context.Context) (int, error) {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return 0, err
	}
	r.seen = append(r.seen, tc)
	if tc.TenantID == r.failOn {
		return 0, errors.New("store unavailable")
	}
	return 2, nil
}

// TestPurpose: Validates that the cross-tenant sweep binds each tenant in turn.
// Scope: Unit Test
// Security: Multi-tenant boundary enforcement
// Expected: Every active tenant is processed under its own binding and a
// failing tenant does not stop the others.
// Test Case ID: JOB-01
func TestExpireQuotes_BindsEachTenant(t *testing.T) {
	exp := &recordingExpirer{failOn: "T2"}
	var buf bytes.Buffer
	s := NewScheduler(staticTenants{{ID: "T1"}, {ID: "T2"}, {ID: "T3"}}, exp, slog.New(slog.NewJSONHandler(&buf, nil)))

	n, err := s.ExpireQuotes(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tenant T2")
	assert.Equal(t, 4, n)

	require.Len(t, exp.seen, 3)
	for i, want := range []string{"T1", "T2", "T3"} {
		assert.Equal(t, want, exp.seen[i].TenantID)
		assert.Equal(t, SystemCaller, exp.seen[i].CallerID)
		assert.True(t, exp.seen[i].IsStaff())
		assert.NotEmpty(t, exp.seen[i].CorrelationID)
	}
	assert.NotEqual(t, exp.seen[0].CorrelationID, exp.seen[1].CorrelationID)
	assert.Contains(t, buf.String(), "quote expiry failed for tenant")
}

func TestRegisterExpiry(t *testing.T) {
	s := NewScheduler(staticTenants{}, &recordingExpirer{}, nil)
	assert.NoError(t, s.RegisterExpiry(""))
	assert.NoError(t, s.RegisterExpiry("0 3 * * *"))
	assert.Error(t, s.RegisterExpiry("not a schedule"))

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}
