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

// Caller roles carried in access tokens.
const (
	RoleAdmin    = "admin"
	RoleManager  = "manager"
	RoleOperator = "operator"
	RoleCustomer = "customer"
)

// StaffRoles may act on any quote of their tenant.
var StaffRoles = []string{RoleAdmin, RoleManager, RoleOperator}

// IsStaff reports whether the caller holds a staff role.
func (c Context) IsStaff() bool {
	return c.HasRole(StaffRoles...)
}

// CanAdminister reports whether the caller may change tenant pricing data.
func (c Context) CanAdminister() bool {
	return c.HasRole(RoleAdmin, RoleManager)
}
