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

package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/cotiza/cotiza/internal/observability/logger"
	"github.com/cotiza/cotiza/internal/tenant"
)

// Tenant context principles:
// 1. The tenant is derived exclusively from the verified bearer token.
// 2. Client-supplied tenant headers are rejected, never trusted.
// 3. Handlers read the tenant through tenant.Require and nothing else.

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			slog.InfoContext(r.Context(), "http_request_start",
				logger.RequestID(middleware.GetReqID(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.RemoteAddr(r.RemoteAddr),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request_end",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// AuthMiddleware verifies the bearer token, checks that its tenant is active
// and binds the tenant context for the rest of the request.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Tenant-ID") != "" {
			slog.WarnContext(r.Context(), "tenant header spoofing attempt detected",
				logger.Path(r.URL.Path), logger.RemoteAddr(r.RemoteAddr))
			respondError(w, http.StatusBadRequest, "X-Tenant-ID header is not allowed; tenant is derived from the bearer token")
			return
		}

		raw, ok := bearerToken(r)
		if !ok {
			respondError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		claims, err := h.tokens.Verify(raw)
		if err != nil {
			slog.InfoContext(r.Context(), "bearer token rejected", logger.Error(err))
			respondError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		t, err := h.tenantService.GetTenant(r.Context(), claims.TenantID)
		switch {
		case errors.Is(err, tenant.ErrTenantNotFound):
			respondError(w, http.StatusForbidden, "tenant is not active")
			return
		case err != nil:
			slog.ErrorContext(r.Context(), "failed to load tenant",
				logger.TenantID(claims.TenantID), logger.Error(err))
			respondError(w, http.StatusInternalServerError, "internal error")
			return
		case !t.IsActive():
			respondError(w, http.StatusForbidden, "tenant is not active")
			return
		}

		ctx := tenant.WithContext(r.Context(), tenant.Context{
			TenantID:      claims.TenantID,
			CallerID:      claims.Subject,
			CallerRoles:   claims.Roles,
			CorrelationID: middleware.GetReqID(r.Context()),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects callers holding none of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tc, ok := tenant.FromContext(r.Context())
			if !ok || !tc.HasRole(roles...) {
				respondError(w, http.StatusForbidden, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
