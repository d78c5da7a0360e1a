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
	"math"
	"strings"
	"time"

	"github.com/cotiza/cotiza/internal/audit"
	"github.com/cotiza/cotiza/internal/catalog"
	"github.com/cotiza/cotiza/internal/files"
	"github.com/cotiza/cotiza/internal/id"
	"github.com/cotiza/cotiza/internal/observability/logger"
	"github.com/cotiza/cotiza/internal/pricing"
	"github.com/cotiza/cotiza/internal/store"
	"github.com/cotiza/cotiza/internal/tenant"
)

// Paging limits of List.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// MaxQuantity is the largest quantity one item may order.
const MaxQuantity = 10000

// numberAttempts bounds retries when a concurrent create took the number.
const numberAttempts = 3

// ConfigSource supplies the tenant's commercial defaults.
type ConfigSource interface {
	Config(ctx context.Context) (catalog.PricingConfig, error)
}

// FileRegistry resolves and links uploaded files.
type FileRegistry interface {
	Get(ctx context.Context, fileID string) (*files.File, error)
	AttachToItem(ctx context.Context, fileID, quoteItemID string) (*files.File, error)
}

// Service implements the quote lifecycle operations other than calculation.
type Service struct {
	repo        *Repository
	config      ConfigSource
	files       FileRegistry
	auditLogger audit.Logger
	now         func() time.Time
}

// NewService creates a quote service.
func NewService(repo *Repository, config ConfigSource, files FileRegistry, auditLogger audit.Logger) *Service {
	return &Service{
		repo:        repo,
		config:      config,
		files:       files,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// CreateInput describes a new quote. CustomerID is only honoured for staff
// callers; customers always create quotes for themselves.
type CreateInput struct {
	CustomerID string     `json:"customerId,omitempty"`
	Currency   string     `json:"currency,omitempty"`
	Objective  *Objective `json:"objective,omitempty"`
	Notes      string     `json:"notes,omitempty"`
}

// Create opens a DRAFT quote with the next monthly number.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Quote, error) {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}
	customerID := tc.CallerID
	if tc.IsStaff() && in.CustomerID != "" {
		customerID = in.CustomerID
	}
	if customerID == "" {
		return nil, fmt.Errorf("%w: customer is required", ErrInvalidInput)
	}
	objective := DefaultObjective()
	if in.Objective != nil {
		if err := in.Objective.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		objective = *in.Objective
	}
	cfg, err := s.config.Config(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load pricing config: %w", err)
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = cfg.Currency
	}

	now := s.now()
	q := &Quote{
		ID:            id.NewUUIDv7(),
		CustomerID:    customerID,
		Currency:      currency,
		Objective:     objective,
		Status:        StatusDraft,
		ValidityUntil: now.AddDate(0, 0, cfg.ValidityDays),
		Notes:         in.Notes,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for attempt := range numberAttempts {
		if q.Number, err = nextNumber(ctx, s.repo.quotes, now, attempt); err != nil {
			return nil, err
		}
		err = s.repo.Create(ctx, q)
		if !errors.Is(err, store.ErrDuplicate) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create quote: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:          audit.TypeQuoteCreated,
		TenantID:      tc.TenantID,
		ActorID:       tc.CallerID,
		CorrelationID: tc.CorrelationID,
		Resource:      q.ID,
		Metadata:      map[string]any{"number": q.Number, "customer_id": customerID},
	})
	return q, nil
}

// ListFilter selects and pages quotes.
type ListFilter struct {
	CustomerID string
	Status     Status
	Page       int
	PageSize   int
}

// Page is one page of a listing.
type Page struct {
	Items      []Quote `json:"items"`
	Total      int     `json:"total"`
	Page       int     `json:"page"`
	PageSize   int     `json:"pageSize"`
	TotalPages int     `json:"totalPages"`
}

// List returns quotes of the bound tenant, newest first. Customers only see
// their own quotes.
func (s *Service) List(ctx context.Context, f ListFilter) (*Page, error) {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}
	page := max(f.Page, 1)
	size := f.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	size = min(size, MaxPageSize)

	filter := store.Filter{}
	if !tc.IsStaff() {
		filter["customer_id"] = tc.CallerID
	} else if f.CustomerID != "" {
		filter["customer_id"] = f.CustomerID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}

	rows, total, err := s.repo.List(ctx, filter, size, (page-1)*size)
	if err != nil {
		return nil, err
	}
	return &Page{
		Items:      rows,
		Total:      total,
		Page:       page,
		PageSize:   size,
		TotalPages: int(math.Ceil(float64(total) / float64(size))),
	}, nil
}

// Get returns one quote with its items.
func (s *Service) Get(ctx context.Context, quoteID string) (*Quote, error) {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, tc, quoteID)
}

func (s *Service) load(ctx context.Context, tc tenant.Context, quoteID string) (*Quote, error) {
	q, err := s.repo.Get(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if !tc.IsStaff() && q.CustomerID != tc.CallerID {
		return nil, ErrNotFound
	}
	return q, nil
}

// UpdateInput changes the quote header. Nil fields are left unchanged.
type UpdateInput struct {
	Objective *Objective `json:"objective,omitempty"`
	Notes     *string    `json:"notes,omitempty"`
}

// Update edits a DRAFT or SUBMITTED quote.
func (s *Service) Update(ctx context.Context, quoteID string, in UpdateInput) (*Quote, error) {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}
	if in.Objective != nil {
		if err := in.Objective.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	q, err := s.load(ctx, tc, quoteID)
	if err != nil {
		return nil, err
	}
	if !q.Status.Editable() {
		return nil, fmt.Errorf("%w: cannot update a %s quote", ErrStateConflict, q.Status)
	}
	if in.Objective != nil {
		q.Objective = *in.Objective
	}
	if in.Notes != nil {
		q.Notes = *in.Notes
	}
	q.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// Submit hands a DRAFT quote over for pricing.
func (s *Service) Submit(ctx context.Context, quoteID string) (*Quote, error) {
	return s.transition(ctx, quoteID, StatusSubmitted, "", func(q *Quote) error {
		if q.Status != StatusDraft {
			return fmt.Errorf("%w: only draft quotes can be submitted", ErrStateConflict)
		}
		if len(q.Items) == 0 {
			return fmt.Errorf("%w: quote has no items", ErrInvalidInput)
		}
		return nil
	})
}

// AddItemInput describes a new item built from an uploaded file.
type AddItemInput struct {
	FileID       string             `json:"fileId"`
	Name         string             `json:"name,omitempty"`
	Process      catalog.Process    `json:"process"`
	MaterialCode string             `json:"material"`
	Quantity     int                `json:"quantity"`
	Selections   pricing.Selections `json:"selections"`
}

// AddItem appends a pending item to a DRAFT quote and links its file.
func (s *Service) AddItem(ctx context.Context, quoteID string, in AddItemInput) (*Item, error) {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}
	switch {
	case !in.Process.Valid():
		return nil, fmt.Errorf("%w: unsupported process %q", ErrInvalidInput, in.Process)
	case strings.TrimSpace(in.MaterialCode) == "":
		return nil, fmt.Errorf("%w: material is required", ErrInvalidInput)
	case in.Quantity < 1 || in.Quantity > MaxQuantity:
		return nil, fmt.Errorf("%w: quantity must be between 1 and %d", ErrInvalidInput, MaxQuantity)
	case in.FileID == "":
		return nil, fmt.Errorf("%w: file is required", ErrInvalidInput)
	}

	q, err := s.load(ctx, tc, quoteID)
	if err != nil {
		return nil, err
	}
	if q.Status != StatusDraft {
		return nil, fmt.Errorf("%w: items can only be added to draft quotes", ErrStateConflict)
	}
	f, err := s.files.Get(ctx, in.FileID)
	if err != nil {
		return nil, err
	}

	name := in.Name
	if name == "" {
		name = f.Name
	}
	now := s.now()
	it := &Item{
		ID:           id.NewUUIDv7(),
		QuoteID:      q.ID,
		Position:     len(q.Items) + 1,
		Name:         name,
		Process:      in.Process,
		MaterialCode: strings.TrimSpace(in.MaterialCode),
		Quantity:     in.Quantity,
		Selections:   in.Selections,
		Status:       ItemPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	q.UpdatedAt = now
	err = s.repo.AddItem(ctx, q, it, func(ctx context.Context) error {
		_, err := s.files.AttachToItem(ctx, f.ID, it.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return it, nil
}

// Approve accepts a priced, unexpired quote on behalf of its customer.
func (s *Service) Approve(ctx context.Context, quoteID string) (*Quote, error) {
	return s.transition(ctx, quoteID, StatusApproved, audit.TypeQuoteApproved, func(q *Quote) error {
		if !q.Status.Approvable() {
			return fmt.Errorf("%w: cannot approve a %s quote", ErrStateConflict, q.Status)
		}
		if q.ValidityUntil.Before(s.now()) {
			return fmt.Errorf("%w: %w", ErrStateConflict, ErrExpired)
		}
		return nil
	})
}

// Cancel withdraws a quote that has not reached a final status.
func (s *Service) Cancel(ctx context.Context, quoteID string) (*Quote, error) {
	return s.transition(ctx, quoteID, StatusCancelled, audit.TypeQuoteCancelled, func(q *Quote) error {
		if q.Status.Terminal() {
			return fmt.Errorf("%w: cannot cancel a %s quote", ErrStateConflict, q.Status)
		}
		return nil
	})
}

func (s *Service) transition(ctx context.Context, quoteID string, to Status, event string, check func(*Quote) error) (*Quote, error) {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}
	q, err := s.load(ctx, tc, quoteID)
	if err != nil {
		return nil, err
	}
	if err := check(q); err != nil {
		return nil, err
	}
	from := q.Status
	now := s.now()
	q.Status = to
	q.UpdatedAt = now
	if to == StatusApproved {
		q.ApprovedAt = &now
	}
	if err := s.repo.Save(ctx, q); err != nil {
		return nil, err
	}
	if event != "" {
		s.auditLogger.Log(ctx, audit.Event{
			Type:          event,
			TenantID:      tc.TenantID,
			ActorID:       tc.CallerID,
			CorrelationID: tc.CorrelationID,
			Resource:      q.ID,
			Metadata:      map[string]any{"from": string(from), "grand_total": q.GrandTotal.String()},
		})
	}
	return q, nil
}

// openStatuses may still expire.
var openStatuses = []Status{StatusDraft, StatusSubmitted, StatusAutoQuoted, StatusQuoted, StatusNeedsReview}

// ExpireStale marks every open quote of the bound tenant whose validity has
// passed as EXPIRED and returns how many were changed. Quotes modified
// concurrently are skipped and picked up by the next run.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return 0, err
	}
	now := s.now()
	stale, err := s.repo.quotes.FindMany(ctx, store.Query{
		Filter: store.Filter{
			"status":         store.In(openStatuses...),
			"validity_until": store.Before{Value: now},
		},
		OrderBy: []store.Order{{Column: "validity_until"}},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to find stale quotes: %w", err)
	}

	expired := 0
	for i := range stale {
		q := &stale[i]
		from := q.Status
		q.Status = StatusExpired
		q.UpdatedAt = now
		if err := s.repo.Save(ctx, q); err != nil {
			if errors.Is(err, ErrConcurrentUpdate) {
				continue
			}
			return expired, err
		}
		expired++
		s.auditLogger.Log(ctx, audit.Event{
			Type:          audit.TypeQuoteExpired,
			TenantID:      tc.TenantID,
			ActorID:       tc.CallerID,
			CorrelationID: tc.CorrelationID,
			Resource:      q.ID,
			Metadata:      map[string]any{"from": string(from)},
		})
	}
	if expired > 0 {
		logger.FromContext(ctx).InfoContext(ctx, "stale quotes expired", logger.Count("expired", expired))
	}
	return expired, nil
}
