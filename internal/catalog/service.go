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
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cotiza/cotiza/internal/audit"
	"github.com/cotiza/cotiza/internal/cache"
	"github.com/cotiza/cotiza/internal/id"
	"github.com/cotiza/cotiza/internal/observability/logger"
	"github.com/cotiza/cotiza/internal/store"
	"github.com/cotiza/cotiza/internal/tenant"
)

var (
	ErrInvalidConfig   = errors.New("invalid pricing configuration")
	ErrInvalidResource = errors.New("invalid catalog resource")
)

// TTLs are the cache lifetimes of the catalog reads.
type TTLs struct {
	Config    time.Duration
	Materials time.Duration
	Machines  time.Duration
}

// DefaultTTLs returns the standard cache lifetimes.
func DefaultTTLs() TTLs {
	return TTLs{Config: time.Hour, Materials: 2 * time.Hour, Machines: 30 * time.Minute}
}

// Invalidator drops derived pricing results of a tenant.
type Invalidator interface {
	InvalidateTenant(ctx context.Context, tenantID string) error
}

// Service is the cached, tenant-scoped accessor for materials, machines and
// pricing configuration.
type Service struct {
	configs     *store.Scoped[PricingConfig, *PricingConfig]
	materials   *store.Scoped[Material, *Material]
	machines    *store.Scoped[Machine, *Machine]
	cache       cache.Backend
	ttl         TTLs
	results     Invalidator
	auditLogger audit.Logger
	defaults    *PricingConfig
	now         func() time.Time
}

// NewService creates a catalog service. The raw tables are wrapped with
// tenant isolation here; results may be nil.
func NewService(
	configs store.Table[PricingConfig],
	materials store.Table[Material],
	machines store.Table[Machine],
	backend cache.Backend,
	ttl TTLs,
	results Invalidator,
	auditLogger audit.Logger,
) *Service {
	return &Service{
		configs:     store.NewScoped[PricingConfig](configs),
		materials:   store.NewScoped[Material](materials),
		machines:    store.NewScoped[Machine](machines),
		cache:       backend,
		ttl:         ttl,
		results:     results,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// WithDefaults replaces the configuration served to tenants that have not
// stored their own.
func (s *Service) WithDefaults(cfg PricingConfig) *Service {
	s.defaults = &cfg
	return s
}

func (s *Service) defaultConfig(tenantID string) PricingConfig {
	if s.defaults == nil {
		return DefaultConfig(tenantID)
	}
	cfg := *s.defaults
	cfg.TenantID = tenantID
	cfg.VolumeDiscounts = slices.Clone(cfg.VolumeDiscounts)
	return cfg
}

func configKey(tenantID string) string    { return "catalog:" + tenantID + ":config" }
func materialsKey(tenantID string) string { return "catalog:" + tenantID + ":materials" }
func machinesKey(tenantID string) string  { return "catalog:" + tenantID + ":machines" }

// Config returns the pricing configuration of the bound tenant, falling back
// to the service defaults when none is stored.
func (s *Service) Config(ctx context.Context) (PricingConfig, error) {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return PricingConfig{}, err
	}
	return cache.GetOrSet(ctx, s.cache, configKey(tc.TenantID), s.ttl.Config,
		func(ctx context.Context) (PricingConfig, error) {
			cfg, err := s.configs.Find(ctx, store.Filter{})
			if errors.Is(err, store.ErrNotFound) {
				return s.defaultConfig(tc.TenantID), nil
			}
			if err != nil {
				return PricingConfig{}, err
			}
			return *cfg, nil
		})
}

// Materials returns the active materials of the bound tenant, optionally
// restricted to one process.
func (s *Service) Materials(ctx context.Context, process Process) ([]Material, error) {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}
	all, err := cache.GetOrSet(ctx, s.cache, materialsKey(tc.TenantID), s.ttl.Materials,
		func(ctx context.Context) ([]Material, error) {
			return s.materials.FindMany(ctx, store.Query{
				Filter:  store.Filter{"active": true},
				OrderBy: []store.Order{{Column: "process"}, {Column: "code"}},
			})
		})
	if err != nil {
		return nil, err
	}
	return filterProcess(all, process, func(m Material) Process { return m.Process }), nil
}

// Machines returns the active machines of the bound tenant, cheapest first,
// optionally restricted to one process.
func (s *Service) Machines(ctx context.Context, process Process) ([]Machine, error) {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}
	all, err := cache.GetOrSet(ctx, s.cache, machinesKey(tc.TenantID), s.ttl.Machines,
		func(ctx context.Context) ([]Machine, error) {
			rows, err := s.machines.FindMany(ctx, store.Query{
				Filter: store.Filter{"active": true},
			})
			if err != nil {
				return nil, err
			}
			slices.SortStableFunc(rows, func(a, b Machine) int {
				return cmp.Or(a.HourlyRate.Cmp(b.HourlyRate), strings.Compare(a.Code, b.Code))
			})
			return rows, nil
		})
	if err != nil {
		return nil, err
	}
	return filterProcess(all, process, func(m Machine) Process { return m.Process }), nil
}

func filterProcess[T any](rows []T, p Process, of func(T) Process) []T {
	if p == "" {
		return rows
	}
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if of(r) == p {
			out = append(out, r)
		}
	}
	return out
}

// Ref names the material an item needs.
type Ref struct {
	Process      Process
	MaterialCode string
}

// Resolution is the outcome of a batch lookup.
type Resolution struct {
	Config    PricingConfig
	materials map[Ref]Material
	machines  map[Process]Machine
}

// Material returns the active material for ref.
func (r *Resolution) Material(ref Ref) (Material, bool) {
	m, ok := r.materials[ref]
	return m, ok
}

// Machine returns the cheapest active machine for p.
func (r *Resolution) Machine(p Process) (Machine, bool) {
	m, ok := r.machines[p]
	return m, ok
}

// Resolve loads the configuration and every material and machine the refs
// need with one read per resource type, whatever the number of refs.
func (s *Service) Resolve(ctx context.Context, refs []Ref) (*Resolution, error) {
	cfg, err := s.Config(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load pricing config: %w", err)
	}
	res := &Resolution{
		Config:    cfg,
		materials: make(map[Ref]Material, len(refs)),
		machines:  make(map[Process]Machine),
	}
	if len(refs) == 0 {
		return res, nil
	}

	materials, err := s.Materials(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load materials: %w", err)
	}
	machines, err := s.Machines(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load machines: %w", err)
	}

	wanted := make(map[Ref]bool, len(refs))
	for _, r := range refs {
		wanted[r] = true
	}
	for _, m := range materials {
		ref := Ref{Process: m.Process, MaterialCode: m.Code}
		if wanted[ref] {
			res.materials[ref] = m
		}
	}
	// machines are sorted cheapest first
	for _, m := range machines {
		if _, seen := res.machines[m.Process]; !seen {
			res.machines[m.Process] = m
		}
	}
	return res, nil
}

// UpdateConfig stores the pricing configuration of the bound tenant and drops
// every cached value derived from it.
func (s *Service) UpdateConfig(ctx context.Context, cfg PricingConfig) (PricingConfig, error) {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return PricingConfig{}, err
	}
	if err := ValidateConfig(cfg); err != nil {
		return PricingConfig{}, err
	}
	cfg.UpdatedAt = s.now()

	existing, err := s.configs.Find(ctx, store.Filter{})
	switch {
	case errors.Is(err, store.ErrNotFound):
		cfg.ID = id.NewUUIDv7()
		err = s.configs.Create(ctx, &cfg)
	case err == nil:
		cfg.ID = existing.ID
		err = s.configs.Update(ctx, store.Filter{"id": existing.ID}, &cfg)
	}
	if err != nil {
		return PricingConfig{}, fmt.Errorf("failed to save pricing config: %w", err)
	}

	s.invalidate(ctx, configKey(tc.TenantID))
	if s.results != nil {
		if err := s.results.InvalidateTenant(ctx, tc.TenantID); err != nil {
			logger.FromContext(ctx).WarnContext(ctx, "pricing result invalidation failed", logger.Error(err))
		}
	}
	s.auditLogger.Log(ctx, audit.Event{
		Type:          audit.TypePricingConfigUpdated,
		TenantID:      tc.TenantID,
		ActorID:       tc.CallerID,
		CorrelationID: tc.CorrelationID,
		Resource:      cfg.ID,
	})
	return cfg, nil
}

// ValidateConfig rejects configurations the pricing engine cannot use.
func ValidateConfig(cfg PricingConfig) error {
	hundred := decimal.NewFromInt(100)
	switch {
	case cfg.MarginFloorPercent.IsNegative() || cfg.MarginFloorPercent.GreaterThanOrEqual(hundred):
		return fmt.Errorf("%w: margin floor must be in [0, 100)", ErrInvalidConfig)
	case cfg.TargetMarginPercent.IsNegative() || cfg.TargetMarginPercent.GreaterThanOrEqual(hundred):
		return fmt.Errorf("%w: target margin must be in [0, 100)", ErrInvalidConfig)
	case cfg.OverheadPercent.IsNegative(), cfg.EnergyTariffPerKwh.IsNegative(), cfg.LaborRatePerHour.IsNegative(),
		cfg.RushUpchargePercent.IsNegative(), cfg.GridCo2eFactor.IsNegative():
		return fmt.Errorf("%w: rates must not be negative", ErrInvalidConfig)
	case cfg.TaxRate.IsNegative() || cfg.TaxRate.GreaterThan(decimal.NewFromInt(1)):
		return fmt.Errorf("%w: tax rate must be a fraction in [0, 1]", ErrInvalidConfig)
	case cfg.FreeShippingThreshold.IsNegative() || cfg.StandardShippingRate.IsNegative():
		return fmt.Errorf("%w: shipping amounts must not be negative", ErrInvalidConfig)
	case cfg.ValidityDays < 1:
		return fmt.Errorf("%w: validity days must be positive", ErrInvalidConfig)
	}
	for _, t := range cfg.VolumeDiscounts {
		if t.MinQuantity < 1 || t.DiscountPercent.IsNegative() || t.DiscountPercent.GreaterThanOrEqual(hundred) {
			return fmt.Errorf("%w: invalid discount tier from %d units", ErrInvalidConfig, t.MinQuantity)
		}
	}
	return nil
}

// UpsertMaterial creates or replaces the material identified by process and code.
func (s *Service) UpsertMaterial(ctx context.Context, m Material) (Material, error) {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return Material{}, err
	}
	m.Code = strings.TrimSpace(m.Code)
	if !m.Process.Valid() || m.Code == "" || m.CostPerUnit.IsNegative() || m.RemovalRate.IsNegative() {
		return Material{}, fmt.Errorf("%w: material needs a valid process, a code and non-negative rates", ErrInvalidResource)
	}

	now := s.now()
	m.UpdatedAt = now
	m.Active = true
	existing, err := s.materials.Find(ctx, store.Filter{"process": m.Process, "code": m.Code})
	switch {
	case errors.Is(err, store.ErrNotFound):
		m.ID = id.NewUUIDv7()
		m.CreatedAt = now
		err = s.materials.Create(ctx, &m)
	case err == nil:
		m.ID = existing.ID
		m.CreatedAt = existing.CreatedAt
		err = s.materials.Update(ctx, store.Filter{"id": existing.ID}, &m)
	}
	if err != nil {
		return Material{}, fmt.Errorf("failed to save material: %w", err)
	}

	s.invalidate(ctx, materialsKey(tc.TenantID))
	s.auditLogger.Log(ctx, audit.Event{
		Type:          audit.TypeMaterialUpserted,
		TenantID:      tc.TenantID,
		ActorID:       tc.CallerID,
		CorrelationID: tc.CorrelationID,
		Resource:      m.Code,
	})
	return m, nil
}

// DeactivateMaterial hides a material from new calculations.
func (s *Service) DeactivateMaterial(ctx context.Context, materialID string) error {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return err
	}
	m, err := s.materials.Find(ctx, store.Filter{"id": materialID})
	if err != nil {
		return err
	}
	m.Active = false
	m.UpdatedAt = s.now()
	if err := s.materials.Update(ctx, store.Filter{"id": m.ID}, m); err != nil {
		return fmt.Errorf("failed to deactivate material: %w", err)
	}

	s.invalidate(ctx, materialsKey(tc.TenantID))
	s.auditLogger.Log(ctx, audit.Event{
		Type:          audit.TypeMaterialDeactivated,
		TenantID:      tc.TenantID,
		ActorID:       tc.CallerID,
		CorrelationID: tc.CorrelationID,
		Resource:      m.Code,
	})
	return nil
}

// UpsertMachine creates or replaces the machine identified by process and code.
func (s *Service) UpsertMachine(ctx context.Context, m Machine) (Machine, error) {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return Machine{}, err
	}
	m.Code = strings.TrimSpace(m.Code)
	if !m.Process.Valid() || m.Code == "" || !m.HourlyRate.IsPositive() || m.SetupMinutes < 0 || m.RatedPowerKw.IsNegative() {
		return Machine{}, fmt.Errorf("%w: machine needs a valid process, a code and a positive hourly rate", ErrInvalidResource)
	}

	now := s.now()
	m.UpdatedAt = now
	m.Active = true
	existing, err := s.machines.Find(ctx, store.Filter{"process": m.Process, "code": m.Code})
	switch {
	case errors.Is(err, store.ErrNotFound):
		m.ID = id.NewUUIDv7()
		m.CreatedAt = now
		err = s.machines.Create(ctx, &m)
	case err == nil:
		m.ID = existing.ID
		m.CreatedAt = existing.CreatedAt
		err = s.machines.Update(ctx, store.Filter{"id": existing.ID}, &m)
	}
	if err != nil {
		return Machine{}, fmt.Errorf("failed to save machine: %w", err)
	}

	s.invalidate(ctx, machinesKey(tc.TenantID))
	s.auditLogger.Log(ctx, audit.Event{
		Type:          audit.TypeMachineUpserted,
		TenantID:      tc.TenantID,
		ActorID:       tc.CallerID,
		CorrelationID: tc.CorrelationID,
		Resource:      m.Code,
	})
	return m, nil
}

func (s *Service) invalidate(ctx context.Context, key string) {
	if _, err := s.cache.Del(ctx, key); err != nil {
		logger.FromContext(ctx).WarnContext(ctx, "catalog cache invalidation failed",
			logger.CacheKey(key), logger.Error(err))
	}
}
