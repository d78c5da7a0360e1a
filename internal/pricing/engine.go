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
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/cotiza/cotiza/internal/catalog"
)

// Engine computes item prices. It holds no state and is safe for concurrent use.
type Engine struct{}

// NewEngine creates a pricing engine.
func NewEngine() *Engine { return &Engine{} }

// Compute prices one item. Amounts in the cost breakdown are per unit.
//
// Unit price is derived from the unit cost so that the realized margin never
// drops below the tenant margin floor, whatever volume discount applies:
//
//	price = discountedCost / (1 - max(floor, target))
//	unit  = max(price, cost / (1 - floor)), rounded up to cents
func (e *Engine) Compute(in Input) (*Result, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	m, err := modelFor(in.Process)
	if err != nil {
		return nil, err
	}

	cfg := in.Config
	qty := decimal.NewFromInt(int64(in.Quantity))
	u, t, err := measure(m, in)
	if err != nil {
		return nil, err
	}

	// setup is shared by every unit of the batch
	machineHours := t.processing.Add(t.setup.Div(qty)).Div(sixty)
	postHours := t.post.Div(sixty)

	// components are rounded before summing so the breakdown adds up exactly
	var b CostBreakdown
	b.Material = round4(u.gross.Mul(in.Material.CostPerUnit).Div(decimal.NewFromInt(1000)))
	b.Machine = round4(machineHours.Mul(in.Machine.HourlyRate))
	energyKwh := machineHours.Mul(in.Machine.RatedPowerKw)
	b.Energy = round4(energyKwh.Mul(cfg.EnergyTariffPerKwh))
	b.Labor = round4(machineHours.Mul(m.laborFraction()).Add(postHours).Mul(cfg.LaborRatePerHour))
	b.Overhead = round4(b.Material.Add(b.Machine).Mul(cfg.OverheadPercent).Div(hundred))
	b.Tooling = round4(m.tooling(t))

	costs := b.Costs()
	b.Discount = round4(costs.Mul(discountPercent(cfg.VolumeDiscounts, in.Quantity)).Div(hundred))
	discounted := costs.Sub(b.Discount)

	floor := cfg.MarginFloorPercent.Div(hundred)
	rate := decimal.Max(cfg.MarginFloorPercent, cfg.TargetMarginPercent).Div(hundred)
	unit := decimal.Max(
		discounted.Div(one.Sub(rate)),
		costs.Div(one.Sub(floor)),
	)
	if in.Selections.Rush {
		unit = unit.Mul(one.Add(cfg.RushUpchargePercent.Div(hundred)))
	}
	unit = unit.RoundCeil(2)
	b.Margin = unit.Sub(discounted)

	res := &Result{
		UnitPrice:      unit,
		TotalPrice:     unit.Mul(qty),
		LeadDays:       leadDays(in.Quantity, in.Selections.Rush),
		CostBreakdown:  b,
		Sustainability: sustainability(in, u, machineHours, energyKwh),
		Warnings:       m.warnings(in, u, t),
	}
	return res, nil
}

func validate(in Input) error {
	if err := in.Geometry.Validate(); err != nil {
		return err
	}
	if in.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", ErrInvalidInput)
	}
	sel := in.Selections
	for _, v := range []float64{sel.LayerHeightMm, sel.InfillPercent, sel.ThicknessMm} {
		if !within(v, MaxMeasure) {
			return fmt.Errorf("%w: selection out of range", ErrInvalidInput)
		}
	}
	if in.Material.Process != "" && in.Material.Process != in.Process {
		return fmt.Errorf("%w: material %s is not a %s material", ErrInvalidInput, in.Material.Code, in.Process)
	}
	if in.Machine.Process != "" && in.Machine.Process != in.Process {
		return fmt.Errorf("%w: machine %s does not run %s", ErrInvalidInput, in.Machine.Code, in.Process)
	}
	hundredPct := decimal.NewFromInt(100)
	if in.Config.MarginFloorPercent.IsNegative() || in.Config.MarginFloorPercent.GreaterThanOrEqual(hundredPct) ||
		in.Config.TargetMarginPercent.GreaterThanOrEqual(hundredPct) {
		return fmt.Errorf("%w: margin percent out of range", ErrInvalidInput)
	}
	return nil
}

// discountPercent returns the discount of the highest tier reached by qty.
func discountPercent(tiers []catalog.DiscountTier, qty int) decimal.Decimal {
	best := -1
	pct := decimal.Zero
	for _, t := range tiers {
		if t.MinQuantity <= qty && t.MinQuantity > best {
			best = t.MinQuantity
			pct = t.DiscountPercent
		}
	}
	return pct
}

func leadDays(qty int, rush bool) int {
	var days int
	switch {
	case qty <= 10:
		days = 3
	case qty <= 50:
		days = 5
	case qty <= 100:
		days = 7
	default:
		days = 10
	}
	if rush {
		days = max(1, (days+1)/2)
	}
	return days
}

func round4(d decimal.Decimal) decimal.Decimal { return d.Round(4) }

// sustainability scores the line. The score blends per-unit CO2e (50%),
// material waste (30%) and recycled content (20%) on a 0-100 scale.
func sustainability(in Input, u usage, machineHours, energyKwh decimal.Decimal) Sustainability {
	qty := decimal.NewFromInt(int64(in.Quantity))
	unitCo2e := u.gross.Mul(in.Material.Co2eFactor).Add(machineHours.Mul(in.Config.GridCo2eFactor))

	recycled := decimal.Min(decimal.Max(in.Material.RecycledPercent, decimal.Zero), hundred)
	waste := u.wastePercent().InexactFloat64()

	co2eScore := math.Max(0, 100-unitCo2e.InexactFloat64()*10)
	wasteScore := math.Max(0, 100-waste*2)
	score := math.Round(co2eScore*0.5 + wasteScore*0.3 + recycled.InexactFloat64()*0.2)

	return Sustainability{
		Score:           int(math.Min(100, math.Max(0, score))),
		Co2eKg:          unitCo2e.Mul(qty).Round(4),
		EnergyKwh:       energyKwh.Mul(qty).Round(4),
		RecycledPercent: recycled,
		WastePercent:    int(math.Round(waste)),
	}
}
