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
	"net/http"

	"github.com/cotiza/cotiza/internal/tenant"
)

// GetCurrentTenant returns the tenant bound to the caller
// @Summary Current Tenant
// @Tags Tenant
// @Produce json
// @Security BearerAuth
// @Success 200 {object} tenant.Tenant
// @Router /tenant [get]
func (h *Handler) GetCurrentTenant(w http.ResponseWriter, r *http.Request) {
	tc, err := tenant.Require(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	t, err := h.tenantService.GetTenant(r.Context(), tc.TenantID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}
