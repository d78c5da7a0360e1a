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

// Package jobs runs scheduled maintenance across all active tenants.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/cotiza/cotiza/internal/id"
	"github.com/cotiza/cotiza/internal/observability/logger"
	"github.com/cotiza/cotiza/internal/tenant"
)

// SystemCaller identifies scheduled jobs in audit trails.
const SystemCaller = "system:scheduler"

// DefaultExpirySpec runs the expiry sweep every 15 minutes.
const DefaultExpirySpec = "*/15 * * * *"

// TenantLister returns the tenants jobs iterate over.
type TenantLister interface {
	ListActive(ctx context.Context) ([]*tenant.Tenant, error)
}

// QuoteExpirer expires the stale quotes of the bound tenant.
type QuoteExpirer interface {
	ExpireStale(ctx context.Context) (int, error)
}

// Scheduler owns the cron runner and the job implementations.
type Scheduler struct {
	cron    *cron.Cron
	tenants TenantLister
	quotes  QuoteExpirer
	log     *slog.Logger
}

// NewScheduler creates a scheduler. Jobs that are still running when their
// next tick arrives are skipped, and panics are recovered and logged.
func NewScheduler(tenants TenantLister, quotes QuoteExpirer, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(logger.Component("scheduler"))
	cl := cronLogger{log: log}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		tenants: tenants,
		quotes:  quotes,
		log:     log,
	}
}

// RegisterExpiry schedules ExpireQuotes with a standard five-field cron spec.
func (s *Scheduler) RegisterExpiry(spec string) error {
	if spec == "" {
		spec = DefaultExpirySpec
	}
	_, err := s.cron.AddFunc(spec, func() {
		if _, err := s.ExpireQuotes(context.Background()); err != nil {
			s.log.Error("quote expiry sweep finished with errors", logger.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid expiry schedule %q: %w", spec, err)
	}
	return nil
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and waits for running jobs until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ExpireQuotes runs the expiry sweep once for every active tenant, each
// under its own tenant binding. A failing tenant does not stop the sweep.
func (s *Scheduler) ExpireQuotes(ctx context.Context) (int, error) {
	tenants, err := s.tenants.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list tenants: %w", err)
	}

	total := 0
	var errs []error
	for _, t := range tenants {
		tc := tenant.Context{
			TenantID:      t.ID,
			CallerID:      SystemCaller,
			CallerRoles:   []string{tenant.RoleAdmin},
			CorrelationID: id.NewUUIDv7(),
		}
		err := tenant.Run(ctx, tc, func(ctx context.Context) error {
			n, err := s.quotes.ExpireStale(ctx)
			total += n
			return err
		})
		if err != nil {
			s.log.WarnContext(ctx, "quote expiry failed for tenant", logger.TenantID(t.ID), logger.Error(err))
			errs = append(errs, fmt.Errorf("tenant %s: %w", t.ID, err))
		}
	}
	s.log.InfoContext(ctx, "quote expiry sweep completed",
		logger.Count("tenants", len(tenants)), logger.Count("expired", total))
	return total, errors.Join(errs...)
}

// cronLogger adapts slog to the cron logging interface.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append([]any{logger.Error(err)}, keysAndValues...)...)
}
