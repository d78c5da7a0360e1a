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

// Package pricing computes manufacturing cost and price for one quote item
// and caches results by input fingerprint.
package pricing

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"

	"github.com/cotiza/cotiza/internal/catalog"
)

var (
	ErrInvalidGeometry    = errors.New("invalid geometry")
	ErrInvalidInput       = errors.New("invalid pricing input")
	ErrUnsupportedProcess = errors.New("unsupported process")
	ErrComputeTimeout     = errors.New("pricing computation timed out")
	ErrComputeFailed      = errors.New("pricing computation failed")
)

// Upper bounds of accepted geometry. Larger values are analysis garbage and
// would push the process models out of the finite float range.
const (
	MaxDimensionMm = 1e5
	MaxMeasure     = 1e9
	MaxHoles       = 1e6
)

// BoundingBox dimensions in millimeters.
type BoundingBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// GeometryMetrics are produced by file analysis.
type GeometryMetrics struct {
	VolumeCm3       float64     `json:"volumeCm3"`
	SurfaceAreaCm2  float64     `json:"surfaceAreaCm2"`
	BBoxMm          BoundingBox `json:"bboxMm"`
	OverhangAreaCm2 float64     `json:"overhangAreaCm2,omitempty"`
	HolesCount      int         `json:"holesCount,omitempty"`
	LengthCutMm     float64     `json:"lengthCutMm,omitempty"`
}

// Validate rejects metrics that cannot be priced.
func (g GeometryMetrics) Validate() error {
	if !(g.VolumeCm3 > 0) {
		return ErrInvalidGeometry
	}
	for _, v := range []float64{g.VolumeCm3, g.SurfaceAreaCm2, g.OverhangAreaCm2, g.LengthCutMm} {
		if !within(v, MaxMeasure) {
			return ErrInvalidGeometry
		}
	}
	for _, v := range []float64{g.BBoxMm.X, g.BBoxMm.Y, g.BBoxMm.Z} {
		if !within(v, MaxDimensionMm) {
			return ErrInvalidGeometry
		}
	}
	if g.HolesCount < 0 || g.HolesCount > MaxHoles {
		return ErrInvalidGeometry
	}
	return nil
}

// within reports whether v is a finite value in [0, limit].
func within(v, limit float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= limit
}

// Selections are the process-specific options chosen for an item.
// Zero values fall back to process defaults.
type Selections struct {
	LayerHeightMm float64 `json:"layerHeightMm,omitempty"`
	InfillPercent float64 `json:"infillPercent,omitempty"`
	Tolerance     string  `json:"tolerance,omitempty"`
	Finish        string  `json:"finish,omitempty"`
	ThicknessMm   float64 `json:"thicknessMm,omitempty"`
	Engraving     bool    `json:"engraving,omitempty"`
	Rush          bool    `json:"rush,omitempty"`
}

// Tolerance and finish values understood by the process models.
const (
	ToleranceStandard = "standard"
	ToleranceTight    = "tight"
	FinishSmooth      = "smooth"
	FinishPolished    = "polished"
)

// Input is everything one computation depends on.
type Input struct {
	Process    catalog.Process
	Geometry   GeometryMetrics
	Material   catalog.Material
	Machine    catalog.Machine
	Selections Selections
	Quantity   int
	Config     catalog.PricingConfig
}

// CostBreakdown holds per-unit amounts.
type CostBreakdown struct {
	Material decimal.Decimal `json:"material"`
	Machine  decimal.Decimal `json:"machine"`
	Energy   decimal.Decimal `json:"energy"`
	Labor    decimal.Decimal `json:"labor"`
	Overhead decimal.Decimal `json:"overhead"`
	Margin   decimal.Decimal `json:"margin"`
	Tooling  decimal.Decimal `json:"tooling,omitzero"`
	Discount decimal.Decimal `json:"discount,omitzero"`
}

// Costs is the unit cost before discount and margin.
func (b CostBreakdown) Costs() decimal.Decimal {
	return b.Material.Add(b.Machine).Add(b.Energy).Add(b.Labor).Add(b.Overhead).Add(b.Tooling)
}

// Sustainability covers the whole line (all units).
type Sustainability struct {
	Score           int             `json:"score"`
	Co2eKg          decimal.Decimal `json:"co2eKg"`
	EnergyKwh       decimal.Decimal `json:"energyKwh"`
	RecycledPercent decimal.Decimal `json:"recycledPercent"`
	WastePercent    int             `json:"wastePercent"`
}

// Result is the outcome of one computation.
type Result struct {
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	TotalPrice     decimal.Decimal `json:"totalPrice"`
	LeadDays       int             `json:"leadDays"`
	CostBreakdown  CostBreakdown   `json:"costBreakdown"`
	Sustainability Sustainability  `json:"sustainability"`
	Warnings       []string        `json:"warnings,omitempty"`
}
