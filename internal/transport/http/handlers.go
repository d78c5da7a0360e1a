// @title Cotiza API
// @version 1.0.0
// @description Multi-tenant manufacturing quote pricing
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url http://www.swagger.io/support
// @contact.email support@swagger.io

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/cotiza/cotiza/internal/catalog"
	"github.com/cotiza/cotiza/internal/files"
	"github.com/cotiza/cotiza/internal/observability/logger"
	"github.com/cotiza/cotiza/internal/pricing"
	"github.com/cotiza/cotiza/internal/quote"
	"github.com/cotiza/cotiza/internal/store"
	"github.com/cotiza/cotiza/internal/tenant"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// Handler holds HTTP handlers and dependencies
type Handler struct {
	quoteService   *quote.Service
	quoteEngine    *quote.Engine
	catalogService *catalog.Service
	fileService    *files.Service
	tenantService  *tenant.Service
	tokens         *Tokens
}

// NewHandler creates a new HTTP handler
func NewHandler(
	quoteService *quote.Service,
	quoteEngine *quote.Engine,
	catalogService *catalog.Service,
	fileService *files.Service,
	tenantService *tenant.Service,
	tokens *Tokens,
) *Handler {
	return &Handler{
		quoteService:   quoteService,
		quoteEngine:    quoteEngine,
		catalogService: catalogService,
		fileService:    fileService,
		tenantService:  tenantService,
		tokens:         tokens,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check
	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		// Every API route runs with a tenant context derived from the bearer token.
		r.Use(h.AuthMiddleware)
		r.Use(RateLimitMiddleware(rateLimiter))

		r.Get("/tenant", h.GetCurrentTenant)

		r.Route("/quotes", func(r chi.Router) {
			r.Post("/", h.CreateQuote)
			r.Get("/", h.ListQuotes)
			r.Route("/{quoteID}", func(r chi.Router) {
				r.Get("/", h.GetQuote)
				r.Patch("/", h.UpdateQuote)
				r.Post("/items", h.AddQuoteItem)
				r.Post("/submit", h.SubmitQuote)
				r.Post("/calculate", h.CalculateQuote)
				r.Post("/approve", h.ApproveQuote)
				r.Post("/cancel", h.CancelQuote)
			})
		})

		r.Route("/files", func(r chi.Router) {
			r.Post("/", h.RegisterFile)
			r.Get("/{fileID}", h.GetFile)
			r.With(RequireRole(tenant.StaffRoles...)).Put("/{fileID}/analysis", h.RecordFileAnalysis)
		})

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/materials", h.ListMaterials)
			r.Get("/machines", h.ListMachines)

			r.Group(func(r chi.Router) {
				r.Use(RequireRole(tenant.RoleAdmin, tenant.RoleManager))
				r.Get("/config", h.GetPricingConfig)
				r.Put("/config", h.UpdatePricingConfig)
				r.Put("/materials", h.UpsertMaterial)
				r.Delete("/materials/{materialID}", h.DeactivateMaterial)
				r.Put("/machines", h.UpsertMachine)
			})
		})
	})

	return r
}

// HealthCheck returns the health status
// @Summary Health Check
// @Description Checks if the service is up and running
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "cotiza",
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func queryInt(r *http.Request, key string) (int, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondServiceError maps domain errors onto HTTP statuses. Cross-tenant
// lookups already surface as not-found errors from the services.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, tenant.ErrContextMissing):
		slog.ErrorContext(r.Context(), "tenant context missing on authenticated route",
			logger.Path(r.URL.Path), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
	case errors.Is(err, quote.ErrNotFound),
		errors.Is(err, quote.ErrItemNotFound),
		errors.Is(err, files.ErrNotFound),
		errors.Is(err, tenant.ErrTenantNotFound),
		errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, quote.ErrStateConflict),
		errors.Is(err, quote.ErrConcurrentUpdate),
		errors.Is(err, files.ErrAlreadyAttached),
		errors.Is(err, store.ErrDuplicate):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, quote.ErrInvalidInput),
		errors.Is(err, catalog.ErrInvalidConfig),
		errors.Is(err, catalog.ErrInvalidResource),
		errors.Is(err, files.ErrInvalidFile),
		errors.Is(err, pricing.ErrInvalidGeometry):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		slog.ErrorContext(r.Context(), "request failed",
			logger.Method(r.Method), logger.Path(r.URL.Path), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
