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
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cotiza/cotiza/internal/catalog"
)

var (
	sixty   = decimal.NewFromInt(60)
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// nonFinite is raised by dec when a model produces NaN or an infinity.
type nonFinite float64

func dec(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		panic(nonFinite(f))
	}
	return decimal.NewFromFloat(f)
}

// measure runs a process model. Intermediate values leaving the finite float
// range fail with ErrInvalidGeometry.
func measure(m model, in Input) (u usage, t timing, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, ok := r.(nonFinite)
			if !ok {
				panic(r)
			}
			u, t = usage{}, timing{}
			err = fmt.Errorf("%w: non-finite intermediate value %v", ErrInvalidGeometry, float64(v))
		}
	}()
	return m.usage(in), m.timing(in), nil
}

// usage is the material consumed by one unit, in cm3.
type usage struct {
	net     decimal.Decimal
	gross   decimal.Decimal
	support decimal.Decimal
}

// wastePercent is the share of gross material not ending up in the part.
func (u usage) wastePercent() decimal.Decimal {
	if !u.gross.IsPositive() {
		return decimal.Zero
	}
	return u.gross.Sub(u.net).Div(u.gross).Mul(hundred)
}

// timing is the per-run time of one unit, in minutes. Setup is per batch.
type timing struct {
	setup      decimal.Decimal
	processing decimal.Decimal
	post       decimal.Decimal
}

// model is a process-specific throughput model.
type model interface {
	usage(in Input) usage
	timing(in Input) timing
	// laborFraction is the share of machine time that needs an operator.
	laborFraction() decimal.Decimal
	tooling(t timing) decimal.Decimal
	warnings(in Input, u usage, t timing) []string
}

func modelFor(p catalog.Process) (model, error) {
	switch p {
	case catalog.ProcessFFF:
		return fff{}, nil
	case catalog.ProcessSLA:
		return sla{}, nil
	case catalog.ProcessCNC:
		return cnc{}, nil
	case catalog.ProcessLaser:
		return laser{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedProcess, p)
}

func orDefault(v, def float64) float64 {
	if v > 0 {
		return v
	}
	return def
}

func ceilMinutes(d decimal.Decimal) decimal.Decimal {
	return d.Ceil()
}

// fff models fused filament fabrication.
type fff struct{}

func (fff) usage(in Input) usage {
	g := in.Geometry
	infill := orDefault(in.Selections.InfillPercent, 35)
	net := dec(g.VolumeCm3).Mul(dec(infill)).Div(hundred)
	support := decimal.Zero
	if g.OverhangAreaCm2 > 0 {
		support = dec(g.VolumeCm3).Mul(dec(0.1))
	}
	return usage{net: net, support: support, gross: net.Add(support).Mul(dec(1.05))}
}

func (m fff) timing(in Input) timing {
	layer := orDefault(in.Selections.LayerHeightMm, 0.2)
	quality := one
	if layer <= 0.1 {
		quality = dec(1.5)
	}
	printHours := m.usage(in).net.Div(decimal.NewFromInt(12))
	post := int64(10)
	if in.Geometry.OverhangAreaCm2 > 0 {
		post += 10
	}
	return timing{
		setup:      decimal.NewFromInt(int64(in.Machine.SetupMinutes)),
		processing: ceilMinutes(printHours.Mul(sixty).Mul(quality)),
		post:       decimal.NewFromInt(post),
	}
}

func (fff) laborFraction() decimal.Decimal { return dec(0.1) }
func (fff) tooling(timing) decimal.Decimal { return decimal.Zero }

func (fff) warnings(in Input, u usage, t timing) []string {
	var w []string
	b := in.Geometry.BBoxMm
	if max(b.X, b.Y, b.Z) > 250 {
		w = append(w, "Part dimensions exceed typical build volume")
	}
	if t.processing.GreaterThan(decimal.NewFromInt(1440)) {
		w = append(w, "Print time exceeds 24 hours")
	}
	if l := in.Selections.LayerHeightMm; l > 0 && l < 0.1 {
		w = append(w, "Very fine layer height will significantly increase print time")
	}
	if u.support.GreaterThan(u.net.Mul(dec(0.3))) {
		w = append(w, "Significant support material required")
	}
	return w
}

// sla models resin stereolithography.
type sla struct{}

func (sla) usage(in Input) usage {
	g := in.Geometry
	vol := dec(g.VolumeCm3)
	// 2 mm raft under the footprint
	support := dec(g.BBoxMm.X).Mul(dec(g.BBoxMm.Y)).Mul(decimal.NewFromInt(2)).Div(decimal.NewFromInt(1000))
	if g.OverhangAreaCm2 > 0 {
		support = support.Add(vol.Mul(dec(0.15)))
	}
	support = support.Add(vol.Mul(dec(0.05)))
	return usage{net: vol, support: support, gross: vol.Add(support).Div(dec(0.92))}
}

func (sla) timing(in Input) timing {
	layer := orDefault(in.Selections.LayerHeightMm, 0.05)
	layers := dec(in.Geometry.BBoxMm.Z).Div(dec(layer)).Ceil()
	// exposure 8 s plus peel 3 s per layer
	seconds := layers.Mul(decimal.NewFromInt(11))
	post := int64(55)
	if in.Geometry.SurfaceAreaCm2 > 100 {
		post += 10
	}
	return timing{
		setup:      decimal.NewFromInt(int64(in.Machine.SetupMinutes)),
		processing: ceilMinutes(seconds.Div(sixty)),
		post:       decimal.NewFromInt(post),
	}
}

func (sla) laborFraction() decimal.Decimal { return dec(0.25) }
func (sla) tooling(timing) decimal.Decimal { return decimal.Zero }

func (sla) warnings(in Input, u usage, _ timing) []string {
	var w []string
	if in.Geometry.BBoxMm.Z > 200 {
		w = append(w, "Part height may exceed typical SLA build volume")
	}
	if in.Selections.Tolerance == ToleranceTight {
		w = append(w, "Tight tolerances may require manual finishing")
	}
	if u.gross.GreaterThan(decimal.NewFromInt(500)) {
		w = append(w, "Large resin volume may require multiple batches")
	}
	if u.support.GreaterThan(u.net.Mul(dec(0.5))) {
		w = append(w, "Extensive supports required, consider part orientation")
	}
	return w
}

// cnc models 3-axis milling from rectangular stock.
type cnc struct{}

const cncStockAllowanceMm = 5

func stockVolume(b BoundingBox) decimal.Decimal {
	side := func(v float64) decimal.Decimal { return dec(v + 2*cncStockAllowanceMm).Div(decimal.NewFromInt(10)) }
	return side(b.X).Mul(side(b.Y)).Mul(side(b.Z))
}

func (cnc) usage(in Input) usage {
	return usage{net: dec(in.Geometry.VolumeCm3), gross: stockVolume(in.Geometry.BBoxMm)}
}

func complexity(g GeometryMetrics, s Selections) float64 {
	f := 1.0
	switch s.Tolerance {
	case ToleranceTight:
		f *= 1.5
	case ToleranceStandard:
		f *= 1.2
	}
	switch s.Finish {
	case FinishPolished:
		f *= 1.4
	case FinishSmooth:
		f *= 1.2
	}
	if g.HolesCount > 0 {
		f *= 1 + float64(g.HolesCount)*0.05
	}
	if z := g.BBoxMm.Z; z > 0 && max(g.BBoxMm.X/z, g.BBoxMm.Y/z) > 10 {
		f *= 1.3
	}
	return min(f, 2.0)
}

func toolChanges(g GeometryMetrics) int64 {
	changes := int64(2)
	if g.HolesCount > 0 {
		changes += int64(math.Ceil(float64(g.HolesCount) / 10))
	}
	return changes
}

func (cnc) timing(in Input) timing {
	g := in.Geometry
	removal := decimal.Max(stockVolume(g.BBoxMm).Sub(dec(g.VolumeCm3)), decimal.Zero)
	mrr := in.Material.RemovalRate
	if !mrr.IsPositive() {
		mrr = decimal.NewFromInt(2)
	}
	cutting := removal.Div(mrr).Mul(dec(complexity(g, in.Selections)))
	changes := decimal.NewFromInt(toolChanges(g) * 5)

	post := int64(10)
	switch in.Selections.Finish {
	case FinishPolished:
		post += 30
	case FinishSmooth:
		post += 15
	}
	if in.Selections.Tolerance == ToleranceTight {
		post += 20
	}
	return timing{
		setup:      decimal.NewFromInt(int64(in.Machine.SetupMinutes) + 15),
		processing: ceilMinutes(cutting.Add(changes)),
		post:       decimal.NewFromInt(post),
	}
}

func (cnc) laborFraction() decimal.Decimal { return dec(0.5) }

// tooling wear is charged at 10 per processing hour.
func (cnc) tooling(t timing) decimal.Decimal {
	return t.processing.Div(sixty).Mul(decimal.NewFromInt(10))
}

func (cnc) warnings(in Input, u usage, t timing) []string {
	var w []string
	g := in.Geometry
	if t.processing.GreaterThan(decimal.NewFromInt(480)) {
		w = append(w, "Long machining time, consider design optimization")
	}
	if in.Selections.Tolerance == ToleranceTight && g.HolesCount > 10 {
		w = append(w, "Many features with tight tolerances will increase cost")
	}
	if min(g.BBoxMm.X, g.BBoxMm.Y, g.BBoxMm.Z) < 2 {
		w = append(w, "Very thin features may be difficult to machine")
	}
	if u.wastePercent().GreaterThan(decimal.NewFromInt(70)) {
		w = append(w, "High material waste, consider near-net-shape stock")
	}
	return w
}

// laser models 2D laser cutting of sheet stock.
type laser struct{}

type point struct{ x, y float64 }

// cutting speeds in mm/s by sheet thickness in mm
var cuttingSpeeds = map[string][]point{
	"acrylic": {{3, 15}, {6, 8}, {10, 4}, {20, 1.5}},
	"mdf":     {{3, 20}, {6, 10}, {10, 5}, {20, 2}},
	"plywood": {{3, 18}, {6, 9}, {10, 4.5}, {20, 1.8}},
}

// pierce time in seconds by sheet thickness in mm
var pierceTimes = []point{{3, 0.5}, {6, 1.0}, {10, 2.0}, {20, 4.0}}

// interpolate evaluates the piecewise-linear table at x, clamping at both ends.
func interpolate(table []point, x float64) float64 {
	if x <= table[0].x {
		return table[0].y
	}
	for i := 0; i < len(table)-1; i++ {
		lo, hi := table[i], table[i+1]
		if x <= hi.x {
			return lo.y + (x-lo.x)/(hi.x-lo.x)*(hi.y-lo.y)
		}
	}
	return table[len(table)-1].y
}

func speedTable(m catalog.Material) []point {
	name := strings.ToLower(m.Name + " " + m.Code)
	for _, family := range []string{"mdf", "plywood", "acrylic"} {
		if strings.Contains(name, family) {
			return cuttingSpeeds[family]
		}
	}
	return cuttingSpeeds["acrylic"]
}

func thickness(s Selections) float64 { return orDefault(s.ThicknessMm, 3) }

func (laser) usage(in Input) usage {
	g := in.Geometry
	area := g.SurfaceAreaCm2
	if area <= 0 {
		area = g.BBoxMm.X * g.BBoxMm.Y / 100
	}
	net := dec(area).Mul(dec(thickness(in.Selections))).Div(decimal.NewFromInt(10))
	// 85% nesting efficiency on the sheet
	return usage{net: net, gross: net.Div(dec(0.85))}
}

func (laser) timing(in Input) timing {
	g := in.Geometry
	th := thickness(in.Selections)
	cutSeconds := g.LengthCutMm / interpolate(speedTable(in.Material), th)
	pierces := 1 + g.HolesCount + int(math.Floor(g.LengthCutMm/500))
	pierceSeconds := interpolate(pierceTimes, th) * float64(pierces)
	engraving := 0.0
	if in.Selections.Engraving {
		// 20% of the surface at 50 cm2/min
		engraving = g.SurfaceAreaCm2 * 0.2 / 50
	}
	return timing{
		setup:      decimal.NewFromInt(int64(in.Machine.SetupMinutes)),
		processing: ceilMinutes(dec((cutSeconds+pierceSeconds)/60 + engraving)),
		post:       decimal.NewFromInt(5),
	}
}

func (laser) laborFraction() decimal.Decimal { return dec(0.15) }
func (laser) tooling(timing) decimal.Decimal { return decimal.Zero }

func (laser) warnings(in Input, u usage, _ timing) []string {
	var w []string
	th := thickness(in.Selections)
	if th > 10 && strings.Contains(strings.ToLower(in.Material.Name), "acrylic") {
		w = append(w, "Thick acrylic may require multiple passes")
	}
	if in.Selections.Tolerance == ToleranceTight {
		w = append(w, fmt.Sprintf("Minimum feature size is %gmm for this thickness", th*0.5))
	}
	if in.Geometry.LengthCutMm > 5000 {
		w = append(w, "Complex cutting path may affect edge quality")
	}
	return w
}
