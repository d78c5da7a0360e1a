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

package quote

import (
	"github.com/shopspring/decimal"

	"github.com/cotiza/cotiza/internal/catalog"
)

// Totals are the money amounts of a quote.
type Totals struct {
	Subtotal   decimal.Decimal
	Tax        decimal.Decimal
	Shipping   decimal.Decimal
	GrandTotal decimal.Decimal
}

// ComputeTotals sums the quoted items and applies the tenant's tax and
// shipping rules. Shipping is only charged once something is priced.
func ComputeTotals(items []Item, cfg catalog.PricingConfig) Totals {
	subtotal := decimal.Zero
	priced := 0
	for _, it := range items {
		if it.Status == ItemQuoted {
			subtotal = subtotal.Add(it.TotalPrice)
			priced++
		}
	}
	t := Totals{
		Subtotal: subtotal,
		Tax:      subtotal.Mul(cfg.TaxRate).Round(2),
		Shipping: decimal.Zero,
	}
	if priced > 0 && subtotal.LessThan(cfg.FreeShippingThreshold) {
		t.Shipping = cfg.StandardShippingRate.Round(2)
	}
	t.GrandTotal = t.Subtotal.Add(t.Tax).Add(t.Shipping)
	return t
}

// Summarize averages the score and sums the footprint of quoted items.
func Summarize(items []Item) SustainabilitySummary {
	s := SustainabilitySummary{Co2eKg: decimal.Zero, EnergyKwh: decimal.Zero}
	score := 0
	for _, it := range items {
		if it.Status != ItemQuoted || it.Sustainability == nil {
			continue
		}
		score += it.Sustainability.Score
		s.Co2eKg = s.Co2eKg.Add(it.Sustainability.Co2eKg)
		s.EnergyKwh = s.EnergyKwh.Add(it.Sustainability.EnergyKwh)
		s.ItemsScored++
	}
	if s.ItemsScored > 0 {
		s.Score = int(decimal.NewFromInt(int64(score)).
			Div(decimal.NewFromInt(int64(s.ItemsScored))).Round(0).IntPart())
	}
	return s
}

func (q *Quote) applyTotals(t Totals) {
	q.Subtotal = t.Subtotal
	q.Tax = t.Tax
	q.Shipping = t.Shipping
	q.GrandTotal = t.GrandTotal
}
