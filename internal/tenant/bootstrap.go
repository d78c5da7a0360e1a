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
	"os"
)

const (
	EnvBootstrapTenantName = "COTIZA_BOOTSTRAP_TENANT_NAME"
	EnvBootstrapTenantCode = "COTIZA_BOOTSTRAP_TENANT_CODE"
)

// Bootstrap ensures the tenant named by the bootstrap environment exists and
// is active. It reports whether the tenant was created by this call.
func (s *Service) Bootstrap(ctx context.Context) (*Tenant, bool, error) {
	name := os.Getenv(EnvBootstrapTenantName)
	code := os.Getenv(EnvBootstrapTenantCode)
	if code == "" {
		return nil, false, fmt.Errorf("%s is required", EnvBootstrapTenantCode)
	}
	if name == "" {
		name = code
	}

	t, err := s.GetTenantByCode(ctx, code)
	switch {
	case err == nil:
		if !t.IsActive() {
			t, err = s.SetStatus(ctx, t.ID, StatusActive)
			if err != nil {
				return nil, false, err
			}
		}
		return t, false, nil
	case !errors.Is(err, ErrTenantNotFound):
		return nil, false, fmt.Errorf("failed to look up bootstrap tenant: %w", err)
	}

	t, err = s.CreateTenant(ctx, name, code)
	if err != nil {
		return nil, false, err
	}
	return t, true, nil
}
