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

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/cotiza/cotiza/internal/audit"
	"github.com/cotiza/cotiza/internal/config"
	"github.com/cotiza/cotiza/internal/observability/logger"
	"github.com/cotiza/cotiza/internal/store"
	"github.com/cotiza/cotiza/internal/tenant"
	transportHTTP "github.com/cotiza/cotiza/internal/transport/http"
)

const (
	EnvBootstrapAdminSubject = "COTIZA_BOOTSTRAP_ADMIN_SUBJECT"
	EnvBootstrapTokenTTL     = "COTIZA_BOOTSTRAP_TOKEN_TTL"
)

// runBootstrap provisions the bootstrap tenant and prints an admin token for
// it, so a fresh deployment can configure its catalog.
func runBootstrap(cfg *config.Config, log *slog.Logger) error {
	if !cfg.UsesPostgres() {
		return errors.New("bootstrap requires a database")
	}

	ctx := context.Background()
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			return err
		}
	}

	tbl := postgresTables(db)
	tenantService := tenant.NewService(store.NewTenantRepository(tbl.tenants), audit.NewSlogLogger(log))

	t, created, err := tenantService.Bootstrap(ctx)
	if err != nil {
		return err
	}
	if created {
		slog.Info("bootstrap tenant created", logger.TenantID(t.ID))
	}

	subject := strings.TrimSpace(os.Getenv(EnvBootstrapAdminSubject))
	if subject == "" {
		subject = "bootstrap-admin"
	}
	ttl := 24 * time.Hour
	if v := os.Getenv(EnvBootstrapTokenTTL); v != "" {
		if ttl, err = time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s: %w", EnvBootstrapTokenTTL, err)
		}
	}

	tokens := transportHTTP.NewTokens(transportHTTP.TokenConfig{
		Secret:   []byte(cfg.Auth.JWTSecret),
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
	})
	token, err := tokens.Issue(t.ID, subject, []string{tenant.RoleAdmin}, ttl)
	if err != nil {
		return fmt.Errorf("failed to issue admin token: %w", err)
	}

	fmt.Printf("Tenant: %s (%s)\n", t.Code, t.ID)
	fmt.Printf("Admin token (expires in %s):\n%s\n", ttl, token)
	return nil
}
