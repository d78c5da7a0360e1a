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

// Package files tracks the design files attached to quote items and exposes
// their analyzed geometry to pricing. Upload and mesh analysis happen
// elsewhere; this package only records their outcome.
package files

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cotiza/cotiza/internal/id"
	"github.com/cotiza/cotiza/internal/pricing"
	"github.com/cotiza/cotiza/internal/store"
)

// Entity is the table name of file records.
const Entity = "files"

var (
	ErrNotFound        = errors.New("file not found")
	ErrNotAnalyzed     = errors.New("file not analyzed yet")
	ErrInvalidFile     = errors.New("invalid file")
	ErrAlreadyAttached = errors.New("file already attached to another item")
)

// File is an uploaded design file linked to one quote item.
type File struct {
	ID          string                   `json:"id" db:"id"`
	TenantID    string                   `json:"tenantId" db:"tenant_id"`
	QuoteItemID string                   `json:"quoteItemId" db:"quote_item_id"`
	Name        string                   `json:"name" db:"name"`
	ContentHash string                   `json:"contentHash" db:"content_hash"`
	Geometry    *pricing.GeometryMetrics `json:"geometry,omitempty" db:"geometry"`
	AnalyzedAt  *time.Time               `json:"analyzedAt,omitempty" db:"analyzed_at"`
	CreatedAt   time.Time                `json:"createdAt" db:"created_at"`
}

func (f File) Fields() map[string]any {
	return map[string]any{
		"id":            f.ID,
		"tenant_id":     f.TenantID,
		"quote_item_id": f.QuoteItemID,
		"name":          f.Name,
		"content_hash":  f.ContentHash,
		"geometry":      f.Geometry,
		"analyzed_at":   f.AnalyzedAt,
		"created_at":    f.CreatedAt,
	}
}

func (f *File) SetTenantID(id string) { f.TenantID = id }

// Analyzed reports whether geometry extraction finished for the file.
func (f File) Analyzed() bool {
	return f.AnalyzedAt != nil && f.Geometry != nil
}

// Service is the tenant-scoped file registry.
type Service struct {
	files *store.Scoped[File, *File]
	now   func() time.Time
}

// NewService wraps table with tenant isolation.
func NewService(table store.Table[File]) *Service {
	return &Service{files: store.NewScoped[File](table), now: time.Now}
}

// Register records a newly uploaded file. quoteItemID may be empty when the
// file is attached to an item later.
func (s *Service) Register(ctx context.Context, quoteItemID, name, contentHash string) (*File, error) {
	contentHash = strings.ToLower(strings.TrimSpace(contentHash))
	if contentHash == "" {
		return nil, fmt.Errorf("%w: content hash is required", ErrInvalidFile)
	}
	f := &File{
		ID:          id.NewUUIDv7(),
		QuoteItemID: quoteItemID,
		Name:        name,
		ContentHash: contentHash,
		CreatedAt:   s.now(),
	}
	if err := s.files.Create(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to register file: %w", err)
	}
	return f, nil
}

// RecordAnalysis stores the geometry extracted from a file.
func (s *Service) RecordAnalysis(ctx context.Context, fileID string, g pricing.GeometryMetrics) (*File, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	f, err := s.get(ctx, fileID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	f.Geometry = &g
	f.AnalyzedAt = &now
	if err := s.files.Update(ctx, store.Filter{"id": f.ID}, f); err != nil {
		return nil, fmt.Errorf("failed to record analysis: %w", err)
	}
	return f, nil
}

// Get returns a file of the bound tenant.
func (s *Service) Get(ctx context.Context, fileID string) (*File, error) {
	return s.get(ctx, fileID)
}

// AttachToItem links a file to a quote item. A file belongs to at most one
// item; relinking it to another item fails with ErrAlreadyAttached.
func (s *Service) AttachToItem(ctx context.Context, fileID, quoteItemID string) (*File, error) {
	f, err := s.get(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if f.QuoteItemID != "" && f.QuoteItemID != quoteItemID {
		return nil, ErrAlreadyAttached
	}
	f.QuoteItemID = quoteItemID
	if err := s.files.Update(ctx, store.Filter{"id": f.ID}, f); err != nil {
		return nil, fmt.Errorf("failed to attach file: %w", err)
	}
	return f, nil
}

// GetAnalyzedGeometry returns the geometry of a file of the bound tenant.
func (s *Service) GetAnalyzedGeometry(ctx context.Context, fileID string) (*pricing.GeometryMetrics, error) {
	f, err := s.get(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if !f.Analyzed() {
		return nil, ErrNotAnalyzed
	}
	g := *f.Geometry
	return &g, nil
}

// AnalyzedByItem returns, for each of the given items that has one, the most
// recently uploaded analyzed file. Items whose files are all pending are
// absent from the result.
func (s *Service) AnalyzedByItem(ctx context.Context, itemIDs []string) (map[string]File, error) {
	out := make(map[string]File, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}
	rows, err := s.files.FindMany(ctx, store.Query{
		Filter:  store.Filter{"quote_item_id": store.In(itemIDs...)},
		OrderBy: []store.Order{{Column: "created_at"}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load item files: %w", err)
	}
	for _, f := range rows {
		if f.Analyzed() {
			out[f.QuoteItemID] = f
		}
	}
	return out, nil
}

func (s *Service) get(ctx context.Context, fileID string) (*File, error) {
	f, err := s.files.Find(ctx, store.Filter{"id": fileID})
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}
