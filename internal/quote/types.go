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

// Package quote implements the quote aggregate: creation and numbering,
// item management, concurrent price calculation and the approval lifecycle.
package quote

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cotiza/cotiza/internal/catalog"
	"github.com/cotiza/cotiza/internal/pricing"
)

// Entity names
const (
	EntityQuote = "quotes"
	EntityItem  = "quote_items"
)

var (
	ErrNotFound         = errors.New("quote not found")
	ErrItemNotFound     = errors.New("quote item not found")
	ErrStateConflict    = errors.New("operation not allowed in current quote status")
	ErrConcurrentUpdate = errors.New("quote was modified concurrently")
	ErrExpired          = errors.New("quote has expired")
	ErrInvalidInput     = errors.New("invalid quote input")
	// ErrResourceNotFound fails a single item whose material or machine is
	// missing or inactive.
	ErrResourceNotFound = errors.New("Material or machine not found")
)

// Status is the lifecycle state of a quote.
type Status string

const (
	StatusDraft       Status = "DRAFT"
	StatusSubmitted   Status = "SUBMITTED"
	StatusAutoQuoted  Status = "AUTO_QUOTED"
	StatusQuoted      Status = "QUOTED"
	StatusNeedsReview Status = "NEEDS_REVIEW"
	StatusApproved    Status = "APPROVED"
	StatusCancelled   Status = "CANCELLED"
	StatusExpired     Status = "EXPIRED"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusCancelled || s == StatusExpired
}

// Calculable reports whether prices may be (re)computed in this status.
func (s Status) Calculable() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusNeedsReview, StatusAutoQuoted:
		return true
	}
	return false
}

// Approvable reports whether the customer may accept the quote.
func (s Status) Approvable() bool {
	return s == StatusQuoted || s == StatusAutoQuoted
}

// Editable reports whether the quote header may change.
func (s Status) Editable() bool {
	return s == StatusDraft || s == StatusSubmitted
}

// ItemStatus is the pricing state of one item.
type ItemStatus string

const (
	ItemPending ItemStatus = "pending"
	ItemQuoted  ItemStatus = "quoted"
	ItemFailed  ItemStatus = "failed"
)

// Objective weights the cost, lead time and sustainability goals of the
// customer. Weights sum to roughly one.
type Objective struct {
	Cost  float64 `json:"cost"`
	Lead  float64 `json:"lead"`
	Green float64 `json:"green"`
}

// DefaultObjective favours cost.
func DefaultObjective() Objective {
	return Objective{Cost: 0.5, Lead: 0.3, Green: 0.2}
}

// Validate rejects negative weights and sums far from one.
func (o Objective) Validate() error {
	if o.Cost < 0 || o.Lead < 0 || o.Green < 0 {
		return errors.New("objective weights must not be negative")
	}
	if sum := o.Cost + o.Lead + o.Green; sum < 0.95 || sum > 1.05 {
		return errors.New("objective weights must sum to 1")
	}
	return nil
}

// SustainabilitySummary aggregates the sustainability of priced items.
type SustainabilitySummary struct {
	Score       int             `json:"score"`
	Co2eKg      decimal.Decimal `json:"co2eKg"`
	EnergyKwh   decimal.Decimal `json:"energyKwh"`
	ItemsScored int             `json:"itemsScored"`
}

// Quote is a priced proposal owned by one customer of a tenant.
type Quote struct {
	ID             string                `json:"id" db:"id"`
	TenantID       string                `json:"tenantId" db:"tenant_id"`
	CustomerID     string                `json:"customerId" db:"customer_id"`
	Number         string                `json:"number" db:"number"`
	Currency       string                `json:"currency" db:"currency"`
	Objective      Objective             `json:"objective" db:"objective"`
	Status         Status                `json:"status" db:"status"`
	ValidityUntil  time.Time             `json:"validityUntil" db:"validity_until"`
	Subtotal       decimal.Decimal       `json:"subtotal" db:"subtotal"`
	Tax            decimal.Decimal       `json:"tax" db:"tax"`
	Shipping       decimal.Decimal       `json:"shipping" db:"shipping"`
	GrandTotal     decimal.Decimal       `json:"grandTotal" db:"grand_total"`
	Sustainability SustainabilitySummary `json:"sustainability" db:"sustainability"`
	Notes          string                `json:"notes,omitempty" db:"notes"`
	Version        int                   `json:"version" db:"version"`
	CalculatedAt   *time.Time            `json:"calculatedAt,omitempty" db:"calculated_at"`
	ApprovedAt     *time.Time            `json:"approvedAt,omitempty" db:"approved_at"`
	CreatedAt      time.Time             `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time             `json:"updatedAt" db:"updated_at"`

	Items []Item `json:"items,omitempty" db:"-"`
}

func (q Quote) Fields() map[string]any {
	return map[string]any{
		"id":             q.ID,
		"tenant_id":      q.TenantID,
		"customer_id":    q.CustomerID,
		"number":         q.Number,
		"currency":       q.Currency,
		"objective":      q.Objective,
		"status":         q.Status,
		"validity_until": q.ValidityUntil,
		"subtotal":       q.Subtotal,
		"tax":            q.Tax,
		"shipping":       q.Shipping,
		"grand_total":    q.GrandTotal,
		"sustainability": q.Sustainability,
		"notes":          q.Notes,
		"version":        q.Version,
		"calculated_at":  q.CalculatedAt,
		"approved_at":    q.ApprovedAt,
		"created_at":     q.CreatedAt,
		"updated_at":     q.UpdatedAt,
	}
}

func (q *Quote) SetTenantID(id string) { q.TenantID = id }

// Item is one manufactured part of a quote. TenantID duplicates the owning
// quote's tenant so items are isolated on their own.
type Item struct {
	ID             string                  `json:"id" db:"id"`
	TenantID       string                  `json:"tenantId" db:"tenant_id"`
	QuoteID        string                  `json:"quoteId" db:"quote_id"`
	Position       int                     `json:"position" db:"position"`
	Name           string                  `json:"name" db:"name"`
	Process        catalog.Process         `json:"process" db:"process"`
	MaterialCode   string                  `json:"material" db:"material_code"`
	Quantity       int                     `json:"quantity" db:"quantity"`
	Selections     pricing.Selections      `json:"selections" db:"selections"`
	Status         ItemStatus              `json:"status" db:"status"`
	UnitPrice      decimal.Decimal         `json:"unitPrice" db:"unit_price"`
	TotalPrice     decimal.Decimal         `json:"totalPrice" db:"total_price"`
	LeadDays       int                     `json:"leadDays" db:"lead_days"`
	CostBreakdown  *pricing.CostBreakdown  `json:"costBreakdown,omitempty" db:"cost_breakdown"`
	Sustainability *pricing.Sustainability `json:"sustainability,omitempty" db:"sustainability"`
	Warnings       []string                `json:"warnings,omitempty" db:"warnings"`
	Fingerprint    string                  `json:"-" db:"fingerprint"`
	Error          string                  `json:"error,omitempty" db:"error"`
	CreatedAt      time.Time               `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time               `json:"updatedAt" db:"updated_at"`
}

func (i Item) Fields() map[string]any {
	return map[string]any{
		"id":             i.ID,
		"tenant_id":      i.TenantID,
		"quote_id":       i.QuoteID,
		"position":       i.Position,
		"name":           i.Name,
		"process":        i.Process,
		"material_code":  i.MaterialCode,
		"quantity":       i.Quantity,
		"selections":     i.Selections,
		"status":         i.Status,
		"unit_price":     i.UnitPrice,
		"total_price":    i.TotalPrice,
		"lead_days":      i.LeadDays,
		"cost_breakdown": i.CostBreakdown,
		"sustainability": i.Sustainability,
		"warnings":       i.Warnings,
		"fingerprint":    i.Fingerprint,
		"error":          i.Error,
		"created_at":     i.CreatedAt,
		"updated_at":     i.UpdatedAt,
	}
}

func (i *Item) SetTenantID(id string) { i.TenantID = id }

// ItemError reports why one item could not be priced.
type ItemError struct {
	ItemID string `json:"itemId"`
	Error  string `json:"error"`
}

// ItemUpdate overrides the inputs of one item before calculation. Nil fields
// keep the stored value.
type ItemUpdate struct {
	ItemID       string              `json:"id"`
	MaterialCode *string             `json:"material,omitempty"`
	Quantity     *int                `json:"quantity,omitempty"`
	Selections   *pricing.Selections `json:"selections,omitempty"`
}

// Calculation is the outcome of Engine.Calculate.
type Calculation struct {
	Quote  *Quote      `json:"quote"`
	Errors []ItemError `json:"errors,omitempty"`
}
