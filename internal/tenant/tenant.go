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
	"time"
)

// Tenant is an isolated customer account of the pricing engine.
type Tenant struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Code      string    `json:"code" db:"code"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Entity is the table name of the tenant registry.
const Entity = "tenants"

// Fields returns the persisted columns of t.
func (t Tenant) Fields() map[string]any {
	return map[string]any{
		"id":         t.ID,
		"name":       t.Name,
		"code":       t.Code,
		"status":     t.Status,
		"created_at": t.CreatedAt,
		"updated_at": t.UpdatedAt,
	}
}

// Status constants
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// IsActive reports whether the tenant may issue requests.
func (t *Tenant) IsActive() bool {
	return t.Status == StatusActive
}
