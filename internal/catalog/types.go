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

package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Process identifies a manufacturing process.
type Process string

const (
	ProcessFFF   Process = "3d_fff"
	ProcessSLA   Process = "3d_sla"
	ProcessCNC   Process = "cnc_3axis"
	ProcessLaser Process = "laser_2d"
)

// Processes lists every supported process.
var Processes = []Process{ProcessFFF, ProcessSLA, ProcessCNC, ProcessLaser}

// Valid reports whether p is a supported process.
func (p Process) Valid() bool {
	switch p {
	case ProcessFFF, ProcessSLA, ProcessCNC, ProcessLaser:
		return true
	}
	return false
}

// Entity names
const (
	EntityMaterial      = "materials"
	EntityMachine       = "machines"
	EntityPricingConfig = "pricing_configs"
)

// Material is a tenant-scoped stock material.
// CostPerUnit is the price of one liter of raw material.
type Material struct {
	ID          string          `json:"id" db:"id"`
	TenantID    string          `json:"tenantId" db:"tenant_id"`
	Process     Process         `json:"process" db:"process"`
	Code        string          `json:"code" db:"code"`
	Name        string          `json:"name" db:"name"`
	CostPerUnit decimal.Decimal `json:"costPerUnit" db:"cost_per_unit"`
	// Co2eFactor is kg CO2e per cm3 of consumed material.
	Co2eFactor      decimal.Decimal `json:"co2eFactor" db:"co2e_factor"`
	RecycledPercent decimal.Decimal `json:"recycledPercent" db:"recycled_percent"`
	// RemovalRate is the CNC material removal rate in cm3/min; zero uses the default.
	RemovalRate decimal.Decimal `json:"removalRate" db:"removal_rate"`
	Active      bool            `json:"active" db:"active"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time       `json:"updatedAt" db:"updated_at"`
}

func (m Material) Fields() map[string]any {
	return map[string]any{
		"id":               m.ID,
		"tenant_id":        m.TenantID,
		"process":          m.Process,
		"code":             m.Code,
		"name":             m.Name,
		"cost_per_unit":    m.CostPerUnit,
		"co2e_factor":      m.Co2eFactor,
		"recycled_percent": m.RecycledPercent,
		"removal_rate":     m.RemovalRate,
		"active":           m.Active,
		"created_at":       m.CreatedAt,
		"updated_at":       m.UpdatedAt,
	}
}

func (m *Material) SetTenantID(id string) { m.TenantID = id }

// Machine is a tenant-scoped production machine.
type Machine struct {
	ID           string          `json:"id" db:"id"`
	TenantID     string          `json:"tenantId" db:"tenant_id"`
	Process      Process         `json:"process" db:"process"`
	Code         string          `json:"code" db:"code"`
	Name         string          `json:"name" db:"name"`
	HourlyRate   decimal.Decimal `json:"hourlyRate" db:"hourly_rate"`
	SetupMinutes int             `json:"setupMinutes" db:"setup_minutes"`
	RatedPowerKw decimal.Decimal `json:"ratedPowerKw" db:"rated_power_kw"`
	Active       bool            `json:"active" db:"active"`
	CreatedAt    time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time       `json:"updatedAt" db:"updated_at"`
}

func (m Machine) Fields() map[string]any {
	return map[string]any{
		"id":             m.ID,
		"tenant_id":      m.TenantID,
		"process":        m.Process,
		"code":           m.Code,
		"name":           m.Name,
		"hourly_rate":    m.HourlyRate,
		"setup_minutes":  m.SetupMinutes,
		"rated_power_kw": m.RatedPowerKw,
		"active":         m.Active,
		"created_at":     m.CreatedAt,
		"updated_at":     m.UpdatedAt,
	}
}

func (m *Machine) SetTenantID(id string) { m.TenantID = id }

// DiscountTier reduces cost by DiscountPercent from MinQuantity units on.
type DiscountTier struct {
	MinQuantity     int             `json:"minQuantity"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
}

// PricingConfig holds the commercial parameters of one tenant.
// Percent fields are expressed in percent (30 means 30%); TaxRate is a
// fraction (0.16 means 16%).
type PricingConfig struct {
	ID                    string          `json:"id" db:"id"`
	TenantID              string          `json:"tenantId" db:"tenant_id"`
	Currency              string          `json:"currency" db:"currency"`
	MarginFloorPercent    decimal.Decimal `json:"marginFloorPercent" db:"margin_floor_percent"`
	TargetMarginPercent   decimal.Decimal `json:"targetMarginPercent" db:"target_margin_percent"`
	OverheadPercent       decimal.Decimal `json:"overheadPercent" db:"overhead_percent"`
	EnergyTariffPerKwh    decimal.Decimal `json:"energyTariffPerKwh" db:"energy_tariff_per_kwh"`
	LaborRatePerHour      decimal.Decimal `json:"laborRatePerHour" db:"labor_rate_per_hour"`
	RushUpchargePercent   decimal.Decimal `json:"rushUpchargePercent" db:"rush_upcharge_percent"`
	VolumeDiscounts       []DiscountTier  `json:"volumeDiscounts" db:"volume_discounts"`
	GridCo2eFactor        decimal.Decimal `json:"gridCo2eFactor" db:"grid_co2e_factor"`
	TaxRate               decimal.Decimal `json:"taxRate" db:"tax_rate"`
	FreeShippingThreshold decimal.Decimal `json:"freeShippingThreshold" db:"free_shipping_threshold"`
	StandardShippingRate  decimal.Decimal `json:"standardShippingRate" db:"standard_shipping_rate"`
	ValidityDays          int             `json:"validityDays" db:"validity_days"`
	UpdatedAt             time.Time       `json:"updatedAt" db:"updated_at"`
}

func (c PricingConfig) Fields() map[string]any {
	return map[string]any{
		"id":                      c.ID,
		"tenant_id":               c.TenantID,
		"currency":                c.Currency,
		"margin_floor_percent":    c.MarginFloorPercent,
		"target_margin_percent":   c.TargetMarginPercent,
		"overhead_percent":        c.OverheadPercent,
		"energy_tariff_per_kwh":   c.EnergyTariffPerKwh,
		"labor_rate_per_hour":     c.LaborRatePerHour,
		"rush_upcharge_percent":   c.RushUpchargePercent,
		"volume_discounts":        c.VolumeDiscounts,
		"grid_co2e_factor":        c.GridCo2eFactor,
		"tax_rate":                c.TaxRate,
		"free_shipping_threshold": c.FreeShippingThreshold,
		"standard_shipping_rate":  c.StandardShippingRate,
		"validity_days":           c.ValidityDays,
		"updated_at":              c.UpdatedAt,
	}
}

func (c *PricingConfig) SetTenantID(id string) { c.TenantID = id }

// DefaultConfig returns the configuration used for tenants that have not
// stored their own.
func DefaultConfig(tenantID string) PricingConfig {
	d := decimal.RequireFromString
	return PricingConfig{
		TenantID:            tenantID,
		Currency:            "MXN",
		MarginFloorPercent:  d("30"),
		TargetMarginPercent: d("40"),
		OverheadPercent:     d("15"),
		EnergyTariffPerKwh:  d("0.12"),
		LaborRatePerHour:    d("25"),
		RushUpchargePercent: d("50"),
		VolumeDiscounts: []DiscountTier{
			{MinQuantity: 10, DiscountPercent: d("5")},
			{MinQuantity: 50, DiscountPercent: d("10")},
			{MinQuantity: 100, DiscountPercent: d("15")},
		},
		GridCo2eFactor:        d("0.42"),
		TaxRate:               d("0.16"),
		FreeShippingThreshold: d("1000"),
		StandardShippingRate:  d("150"),
		ValidityDays:          14,
	}
}
