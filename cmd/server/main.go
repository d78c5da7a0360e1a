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
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cotiza/cotiza/internal/audit"
	"github.com/cotiza/cotiza/internal/cache"
	"github.com/cotiza/cotiza/internal/catalog"
	"github.com/cotiza/cotiza/internal/config"
	"github.com/cotiza/cotiza/internal/files"
	"github.com/cotiza/cotiza/internal/jobs"
	"github.com/cotiza/cotiza/internal/observability/logger"
	"github.com/cotiza/cotiza/internal/observability/metrics"
	"github.com/cotiza/cotiza/internal/observability/tracing"
	"github.com/cotiza/cotiza/internal/pricing"
	"github.com/cotiza/cotiza/internal/quote"
	"github.com/cotiza/cotiza/internal/store"
	"github.com/cotiza/cotiza/internal/store/memory"
	"github.com/cotiza/cotiza/internal/store/postgres"
	"github.com/cotiza/cotiza/internal/tenant"
	transportHTTP "github.com/cotiza/cotiza/internal/transport/http"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})

	// CLI commands
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "bootstrap":
			if err := runBootstrap(cfg, log); err != nil {
				fmt.Printf("Bootstrap failed: %v\n", err)
				os.Exit(1)
			}
			os.Exit(0)
		case "migrate":
			if err := runMigrate(cfg); err != nil {
				fmt.Printf("Migration failed: %v\n", err)
				os.Exit(1)
			}
			os.Exit(0)
		}
	}

	slog.Info("starting cotiza quote service")
	if err := run(cfg, log); err != nil {
		slog.Error("server failed", logger.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   cfg.Observability.SamplingRate,
		Endpoint:       cfg.Observability.OTELEndpoint,
	})
	if err != nil {
		return err
	}
	defer tracer.Shutdown(context.Background())

	// Initialize meter
	meter, err := metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
		meter = metrics.Noop()
	}
	pricingMetrics, err := metrics.NewPricing(meter)
	if err != nil {
		slog.Error("failed to register pricing instruments", logger.Error(err))
		pricingMetrics = metrics.NoopPricing()
	}

	// Initialize storage
	tbl, closeStore, err := openTables(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	backend, closeCache, err := openCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	// Initialize services
	auditLogger := audit.NewSlogLogger(log)
	results := pricing.NewResultCache(backend, cfg.Pricing.ResultTTL, pricingMetrics)
	catalogService := catalog.NewService(
		tbl.configs, tbl.materials, tbl.machines,
		backend,
		catalog.TTLs{
			Config:    cfg.Pricing.ConfigTTL,
			Materials: cfg.Pricing.MaterialsTTL,
			Machines:  cfg.Pricing.MachinesTTL,
		},
		results,
		auditLogger,
	).WithDefaults(businessDefaults(cfg.Business))
	fileService := files.NewService(tbl.files)
	quoteRepo := quote.NewRepository(tbl.quotes, tbl.items, tbl.tx)
	quoteService := quote.NewService(quoteRepo, catalogService, fileService, auditLogger)
	quoteEngine := quote.NewEngine(quote.EngineDeps{
		Repository: quoteRepo,
		Catalog:    catalogService,
		Files:      fileService,
		Pricer:     pricing.NewEngine(),
		Results:    results,
		Metrics:    pricingMetrics,
		Tracer:     tracer.GetTracer(),
		Audit:      auditLogger,
	}, quote.EngineConfig{
		Concurrency: cfg.Pricing.Concurrency,
		ItemTimeout: cfg.Pricing.ItemTimeout,
	})
	tenantService := tenant.NewService(store.NewTenantRepository(tbl.tenants), auditLogger)

	// Scheduled jobs
	var scheduler *jobs.Scheduler
	if cfg.Jobs.Enabled {
		scheduler = jobs.NewScheduler(tenantService, quoteService, log)
		if err := scheduler.RegisterExpiry(cfg.Jobs.ExpirySpec); err != nil {
			return err
		}
		scheduler.Start()
	}

	// Rate limiter
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	go rateLimiter.Run(ctx, 10*time.Minute)

	// Initialize HTTP handler
	tokens := transportHTTP.NewTokens(transportHTTP.TokenConfig{
		Secret:   []byte(cfg.Auth.JWTSecret),
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		Leeway:   cfg.Auth.Leeway,
	})
	handler := transportHTTP.NewHandler(
		quoteService,
		quoteEngine,
		catalogService,
		fileService,
		tenantService,
		tokens,
	)
	router := transportHTTP.NewRouter(handler, rateLimiter)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"))
		slog.Info(fmt.Sprintf("listening on %s", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	slog.Info("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}
	if scheduler != nil {
		if err := scheduler.Stop(shutdownCtx); err != nil {
			slog.Error("scheduler shutdown error", logger.Error(err))
		}
	}

	slog.Info("server stopped")
	return nil
}

// tables are the raw entity tables the services are built on.
type tables struct {
	tenants   store.Table[tenant.Tenant]
	configs   store.Table[catalog.PricingConfig]
	materials store.Table[catalog.Material]
	machines  store.Table[catalog.Machine]
	files     store.Table[files.File]
	quotes    store.Table[quote.Quote]
	items     store.Table[quote.Item]
	tx        store.Transactor
}

func postgresTables(db *postgres.DB) tables {
	return tables{
		tenants:   postgres.NewTable[tenant.Tenant](db, tenant.Entity),
		configs:   postgres.NewTable[catalog.PricingConfig](db, catalog.EntityPricingConfig),
		materials: postgres.NewTable[catalog.Material](db, catalog.EntityMaterial),
		machines:  postgres.NewTable[catalog.Machine](db, catalog.EntityMachine),
		files:     postgres.NewTable[files.File](db, files.Entity),
		quotes:    postgres.NewTable[quote.Quote](db, quote.EntityQuote),
		items:     postgres.NewTable[quote.Item](db, quote.EntityItem),
		tx:        db,
	}
}

func memoryTables(s *memory.Store) tables {
	return tables{
		tenants:   memory.NewTable[tenant.Tenant](s, tenant.Entity),
		configs:   memory.NewTable[catalog.PricingConfig](s, catalog.EntityPricingConfig),
		materials: memory.NewTable[catalog.Material](s, catalog.EntityMaterial),
		machines:  memory.NewTable[catalog.Machine](s, catalog.EntityMachine),
		files:     memory.NewTable[files.File](s, files.Entity),
		quotes:    memory.NewTable[quote.Quote](s, quote.EntityQuote),
		items:     memory.NewTable[quote.Item](s, quote.EntityItem),
		tx:        s,
	}
}

func openDatabase(ctx context.Context, cfg *config.Config) (*postgres.DB, error) {
	return postgres.New(ctx, postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
	})
}

// openTables connects to PostgreSQL when a database host is configured and
// falls back to the in-memory store otherwise.
func openTables(ctx context.Context, cfg *config.Config) (tables, func(), error) {
	if !cfg.UsesPostgres() {
		slog.Warn("no database configured, using in-memory store")
		return memoryTables(memory.New()), func() {}, nil
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return tables{}, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("connected to database")

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return tables{}, nil, err
		}
	}
	return postgresTables(db), db.Close, nil
}

// openCache connects to Redis when an address is configured and falls back
// to the in-process cache otherwise.
func openCache(ctx context.Context, cfg *config.Config) (cache.Backend, func(), error) {
	if cfg.Redis.Addr == "" {
		return cache.NewMemory(), func() {}, nil
	}

	r, err := cache.NewRedis(ctx, cache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   cfg.Redis.KeyPrefix,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	slog.Info("connected to redis")
	return r, func() { r.Close() }, nil
}

// businessDefaults is the pricing configuration served to tenants without a
// stored one.
func businessDefaults(b config.BusinessConfig) catalog.PricingConfig {
	cfg := catalog.DefaultConfig("")
	cfg.Currency = b.Currency
	cfg.TaxRate = b.TaxRate
	cfg.FreeShippingThreshold = b.FreeShippingThreshold
	cfg.StandardShippingRate = b.StandardShippingRate
	cfg.ValidityDays = b.ValidityDays
	return cfg
}

func runMigrate(cfg *config.Config) error {
	if !cfg.UsesPostgres() {
		return errors.New("no database configured")
	}
	ctx := context.Background()
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("Applying migrations...")
	if err := db.Migrate(ctx); err != nil {
		return err
	}
	fmt.Println("Migration successful.")
	return nil
}
