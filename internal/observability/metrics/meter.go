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

package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Config holds metrics configuration
type Config struct {
	Enabled bool
}

// Meter wraps OpenTelemetry meter
type Meter struct {
	meter metric.Meter
}

// New creates a new meter instance backed by the global meter provider.
func New(ctx context.Context, cfg Config, serviceName string) (*Meter, error) {
	if !cfg.Enabled {
		return Noop(), nil
	}
	return &Meter{meter: otel.Meter(serviceName)}, nil
}

// Noop returns a meter whose instruments record nothing.
func Noop() *Meter {
	return &Meter{meter: noop.NewMeterProvider().Meter("noop")}
}

// GetMeter returns the underlying meter
func (m *Meter) GetMeter() metric.Meter {
	return m.meter
}

// CreateCounter creates a new counter metric
func (m *Meter) CreateCounter(name, description string) (metric.Int64Counter, error) {
	counter, err := m.meter.Int64Counter(
		name,
		metric.WithDescription(description),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", name, err)
	}
	return counter, nil
}

// CreateHistogram creates a new histogram metric
func (m *Meter) CreateHistogram(name, description, unit string) (metric.Float64Histogram, error) {
	histogram, err := m.meter.Float64Histogram(
		name,
		metric.WithDescription(description),
		metric.WithUnit(unit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram %s: %w", name, err)
	}
	return histogram, nil
}

// Pricing groups the instruments of the quote calculation path.
type Pricing struct {
	Calculations        metric.Int64Counter
	ItemFailures        metric.Int64Counter
	CalculationDuration metric.Float64Histogram
	CacheHits           metric.Int64Counter
	CacheMisses         metric.Int64Counter
}

// NewPricing registers the pricing instruments on m.
func NewPricing(m *Meter) (*Pricing, error) {
	var p Pricing
	var err error
	if p.Calculations, err = m.CreateCounter("quote_calculations_total", "Quote calculations by outcome status"); err != nil {
		return nil, err
	}
	if p.ItemFailures, err = m.CreateCounter("quote_item_failures_total", "Quote items that could not be priced"); err != nil {
		return nil, err
	}
	if p.CalculationDuration, err = m.CreateHistogram("quote_calculation_duration_ms", "Quote calculation latency", "ms"); err != nil {
		return nil, err
	}
	if p.CacheHits, err = m.CreateCounter("pricing_cache_hits_total", "Pricing results served from cache"); err != nil {
		return nil, err
	}
	if p.CacheMisses, err = m.CreateCounter("pricing_cache_misses_total", "Pricing results computed"); err != nil {
		return nil, err
	}
	return &p, nil
}

// NoopPricing returns pricing instruments that record nothing.
func NoopPricing() *Pricing {
	p, _ := NewPricing(Noop())
	return p
}

// TenantAttr is the attribute set used on tenant-labelled measurements.
func TenantAttr(tenantID string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("tenant_id", tenantID))
}
