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
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/cotiza/cotiza/internal/audit"
	"github.com/cotiza/cotiza/internal/catalog"
	"github.com/cotiza/cotiza/internal/files"
	"github.com/cotiza/cotiza/internal/observability/logger"
	"github.com/cotiza/cotiza/internal/observability/metrics"
	"github.com/cotiza/cotiza/internal/pricing"
	"github.com/cotiza/cotiza/internal/tenant"
)

// Defaults of EngineConfig.
const (
	DefaultConcurrency = 8
	DefaultItemTimeout = 10 * time.Second
)

// Resolver loads the catalog data a set of items needs.
type Resolver interface {
	Config(ctx context.Context) (catalog.PricingConfig, error)
	Resolve(ctx context.Context, refs []catalog.Ref) (*catalog.Resolution, error)
}

// GeometrySource returns the analyzed file of each item that has one.
type GeometrySource interface {
	AnalyzedByItem(ctx context.Context, itemIDs []string) (map[string]files.File, error)
}

// Pricer computes the price of one item.
type Pricer interface {
	Compute(in pricing.Input) (*pricing.Result, error)
}

// ResultStore deduplicates computations by fingerprint.
type ResultStore interface {
	GetOrCompute(ctx context.Context, fingerprint string, compute func() (*pricing.Result, error)) (*pricing.Result, error)
}

// EngineConfig bounds the per-calculation work.
type EngineConfig struct {
	Concurrency int
	ItemTimeout time.Duration
}

// EngineDeps are the collaborators of Engine. Metrics, Tracer and Audit may
// be nil.
type EngineDeps struct {
	Repository *Repository
	Catalog    Resolver
	Files      GeometrySource
	Pricer     Pricer
	Results    ResultStore
	Metrics    *metrics.Pricing
	Tracer     trace.Tracer
	Audit      audit.Logger
}

// Engine prices the items of a quote concurrently and aggregates the totals.
type Engine struct {
	repo    *Repository
	catalog Resolver
	files   GeometrySource
	pricer  Pricer
	results ResultStore
	metrics *metrics.Pricing
	tracer  trace.Tracer
	audit   audit.Logger
	cfg     EngineConfig
	now     func() time.Time
}

// NewEngine creates a calculation engine.
func NewEngine(deps EngineDeps, cfg EngineConfig) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.ItemTimeout <= 0 {
		cfg.ItemTimeout = DefaultItemTimeout
	}
	e := &Engine{
		repo:    deps.Repository,
		catalog: deps.Catalog,
		files:   deps.Files,
		pricer:  deps.Pricer,
		results: deps.Results,
		metrics: deps.Metrics,
		tracer:  deps.Tracer,
		audit:   deps.Audit,
		cfg:     cfg,
		now:     time.Now,
	}
	if e.metrics == nil {
		e.metrics = metrics.NoopPricing()
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer("github.com/cotiza/cotiza/internal/quote")
	}
	if e.audit == nil {
		e.audit = audit.Nop{}
	}
	return e
}

// job is one item to price and, once settled, its outcome.
type job struct {
	item *Item
	file files.File
	res  *pricing.Result
	err  error
}

// Calculate prices the quote's items and stores the outcome atomically.
//
// Without updates every pending or failed item that has an analyzed file is
// priced; with updates exactly the named items are, after applying their
// overrides. Items without an analyzed file are left pending. Item failures
// never abort the calculation: they are returned in Calculation.Errors and
// move the quote to NEEDS_REVIEW. Errors returned by Calculate itself mean
// nothing was written.
func (e *Engine) Calculate(ctx context.Context, quoteID string, updates []ItemUpdate) (*Calculation, error) {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}
	ctx, span := e.tracer.Start(ctx, "quote.calculate", trace.WithAttributes(
		attribute.String("tenant.id", tc.TenantID),
		attribute.String("quote.id", quoteID),
	))
	defer span.End()
	started := e.now()
	log := logger.FromContext(ctx).With(logger.QuoteID(quoteID))

	calc, err := e.calculate(ctx, tc, quoteID, updates)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.WarnContext(ctx, "quote calculation rejected", logger.Error(err))
		return nil, err
	}

	status := string(calc.Quote.Status)
	span.SetAttributes(attribute.String("quote.status", status), attribute.Int("quote.item_errors", len(calc.Errors)))
	e.metrics.Calculations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tenant_id", tc.TenantID), attribute.String("status", status)))
	if len(calc.Errors) > 0 {
		e.metrics.ItemFailures.Add(ctx, int64(len(calc.Errors)), metrics.TenantAttr(tc.TenantID))
	}
	e.metrics.CalculationDuration.Record(ctx, float64(e.now().Sub(started).Milliseconds()), metrics.TenantAttr(tc.TenantID))

	e.audit.Log(ctx, audit.Event{
		Type:          audit.TypeQuoteCalculated,
		TenantID:      tc.TenantID,
		ActorID:       tc.CallerID,
		CorrelationID: tc.CorrelationID,
		Resource:      quoteID,
		Metadata: map[string]any{
			"status":      status,
			"grand_total": calc.Quote.GrandTotal.String(),
			"item_errors": len(calc.Errors),
		},
	})
	log.InfoContext(ctx, "quote calculated",
		logger.Status(status), logger.Count("item_errors", len(calc.Errors)))
	return calc, nil
}

func (e *Engine) calculate(ctx context.Context, tc tenant.Context, quoteID string, updates []ItemUpdate) (*Calculation, error) {
	q, err := e.repo.Get(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if !tc.IsStaff() && q.CustomerID != tc.CallerID {
		return nil, ErrNotFound
	}
	if !q.Status.Calculable() {
		return nil, fmt.Errorf("%w: cannot calculate a %s quote", ErrStateConflict, q.Status)
	}
	if len(q.Items) == 0 {
		return nil, fmt.Errorf("%w: quote has no items", ErrInvalidInput)
	}

	targets, changed, err := selectTargets(q, updates)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(targets))
	for _, it := range targets {
		ids = append(ids, it.ID)
	}
	analyzed, err := e.files.AnalyzedByItem(ctx, ids)
	if err != nil {
		return nil, err
	}

	var jobs []*job
	refs := make([]catalog.Ref, 0, len(targets))
	for _, it := range targets {
		f, ok := analyzed[it.ID]
		if !ok {
			continue
		}
		jobs = append(jobs, &job{item: it, file: f})
		refs = append(refs, catalog.Ref{Process: it.Process, MaterialCode: it.MaterialCode})
	}

	var res *catalog.Resolution
	if len(jobs) > 0 {
		res, err = e.catalog.Resolve(ctx, refs)
	} else {
		res = &catalog.Resolution{}
		res.Config, err = e.catalog.Config(ctx)
	}
	if err != nil {
		return nil, err
	}

	e.priceAll(ctx, jobs, res)

	now := e.now()
	for _, j := range jobs {
		it := j.item
		it.UpdatedAt = now
		changed[it.ID] = true
		if j.err != nil {
			it.Status = ItemFailed
			it.Error = itemErrorMessage(j.err)
			it.clearPricing()
			continue
		}
		it.Status = ItemQuoted
		it.Error = ""
		it.UnitPrice = j.res.UnitPrice
		it.TotalPrice = j.res.TotalPrice
		it.LeadDays = j.res.LeadDays
		breakdown, sust := j.res.CostBreakdown, j.res.Sustainability
		it.CostBreakdown = &breakdown
		it.Sustainability = &sust
		it.Warnings = j.res.Warnings
	}

	q.applyTotals(ComputeTotals(q.Items, res.Config))
	q.Sustainability = Summarize(q.Items)
	// Items failed by an earlier run and not retried here still block the
	// quote from being fully quoted.
	itemErrors := failedItems(q.Items)
	q.Status = StatusAutoQuoted
	if len(itemErrors) > 0 {
		q.Status = StatusNeedsReview
	}
	q.ValidityUntil = now.AddDate(0, 0, res.Config.ValidityDays)
	q.CalculatedAt = &now
	q.UpdatedAt = now

	var dirty []Item
	for _, it := range q.Items {
		if changed[it.ID] {
			dirty = append(dirty, it)
		}
	}
	if err := e.repo.Save(ctx, q, dirty...); err != nil {
		return nil, err
	}
	return &Calculation{Quote: q, Errors: itemErrors}, nil
}

// failedItems reports every failed item of the quote in position order.
func failedItems(items []Item) []ItemError {
	var out []ItemError
	for _, it := range items {
		if it.Status == ItemFailed {
			out = append(out, ItemError{ItemID: it.ID, Error: it.Error})
		}
	}
	return out
}

// selectTargets applies updates to q's items in place and returns the items
// to price plus the ids of items whose stored inputs changed.
func selectTargets(q *Quote, updates []ItemUpdate) ([]*Item, map[string]bool, error) {
	changed := make(map[string]bool)
	index := make(map[string]*Item, len(q.Items))
	for i := range q.Items {
		index[q.Items[i].ID] = &q.Items[i]
	}

	if len(updates) == 0 {
		var targets []*Item
		for i := range q.Items {
			if s := q.Items[i].Status; s == ItemPending || s == ItemFailed {
				targets = append(targets, &q.Items[i])
			}
		}
		return targets, changed, nil
	}

	targets := make([]*Item, 0, len(updates))
	seen := make(map[string]bool, len(updates))
	for _, u := range updates {
		it, ok := index[u.ItemID]
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrItemNotFound, u.ItemID)
		}
		if u.Quantity != nil && *u.Quantity < 1 {
			return nil, nil, fmt.Errorf("%w: quantity must be at least 1", ErrInvalidInput)
		}
		if u.MaterialCode != nil {
			it.MaterialCode = *u.MaterialCode
		}
		if u.Quantity != nil {
			it.Quantity = *u.Quantity
		}
		if u.Selections != nil {
			it.Selections = *u.Selections
		}
		if u.MaterialCode != nil || u.Quantity != nil || u.Selections != nil {
			it.Status = ItemPending
			changed[it.ID] = true
		}
		if !seen[it.ID] {
			seen[it.ID] = true
			targets = append(targets, it)
		}
	}
	return targets, changed, nil
}

// priceAll runs every job with bounded parallelism and returns once all of
// them settled.
func (e *Engine) priceAll(ctx context.Context, jobs []*job, res *catalog.Resolution) {
	var g errgroup.Group
	g.SetLimit(e.cfg.Concurrency)
	for _, j := range jobs {
		g.Go(func() error {
			j.res, j.err = e.priceItem(ctx, j, res)
			return nil
		})
	}
	_ = g.Wait()
}

func (e *Engine) priceItem(ctx context.Context, j *job, res *catalog.Resolution) (*pricing.Result, error) {
	it := j.item
	ctx, span := e.tracer.Start(ctx, "quote.price_item", trace.WithAttributes(
		attribute.String("item.id", it.ID),
		attribute.String("item.process", string(it.Process)),
		attribute.Int("item.quantity", it.Quantity),
	))
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, e.cfg.ItemTimeout)
	defer cancel()

	result, err := e.price(ctx, j, res)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.FromContext(ctx).WarnContext(ctx, "quote item pricing failed",
			logger.QuoteID(it.QuoteID), logger.ItemID(it.ID), logger.Fingerprint(it.Fingerprint), logger.Error(err))
		return nil, err
	}
	return result, nil
}

func (e *Engine) price(ctx context.Context, j *job, res *catalog.Resolution) (*pricing.Result, error) {
	it := j.item
	if it.Quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", pricing.ErrInvalidInput)
	}
	material, okMaterial := res.Material(catalog.Ref{Process: it.Process, MaterialCode: it.MaterialCode})
	machine, okMachine := res.Machine(it.Process)
	if !okMaterial || !okMachine {
		return nil, ErrResourceNotFound
	}
	if j.file.Geometry == nil {
		return nil, pricing.ErrInvalidGeometry
	}
	geometry := *j.file.Geometry
	if err := geometry.Validate(); err != nil {
		return nil, err
	}

	fp := pricing.Fingerprint(pricing.FingerprintInput{
		FileHash:     j.file.ContentHash,
		Process:      it.Process,
		MaterialCode: material.Code,
		MachineCode:  machine.Code,
		Quantity:     it.Quantity,
		Selections:   it.Selections,
		Revision:     revision(material, machine),
	})
	it.Fingerprint = fp

	in := pricing.Input{
		Process:    it.Process,
		Geometry:   geometry,
		Material:   material,
		Machine:    machine,
		Selections: it.Selections,
		Quantity:   it.Quantity,
		Config:     res.Config,
	}
	return e.results.GetOrCompute(ctx, fp, func() (*pricing.Result, error) {
		return e.pricer.Compute(in)
	})
}

func (it *Item) clearPricing() {
	it.UnitPrice = decimal.Zero
	it.TotalPrice = decimal.Zero
	it.LeadDays = 0
	it.CostBreakdown = nil
	it.Sustainability = nil
	it.Warnings = nil
	it.Fingerprint = ""
}

// revision changes whenever the material or machine record is rewritten.
func revision(m catalog.Material, mc catalog.Machine) string {
	return strconv.FormatInt(m.UpdatedAt.UnixNano(), 36) + "." + strconv.FormatInt(mc.UpdatedAt.UnixNano(), 36)
}

// itemErrorMessage is the client-facing description of an item failure.
func itemErrorMessage(err error) string {
	for _, known := range []error{ErrResourceNotFound, pricing.ErrComputeTimeout} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return err.Error()
}
