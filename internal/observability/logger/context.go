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

package logger

import (
	"context"
	"log/slog"

	"github.com/cotiza/cotiza/internal/tenant"
)

// FromContext returns the default logger enriched with the identity of the
// bound tenant context, if any.
func FromContext(ctx context.Context) *slog.Logger {
	l := slog.Default()
	tc, ok := tenant.FromContext(ctx)
	if !ok {
		return l
	}
	attrs := []any{TenantID(tc.TenantID)}
	if tc.CallerID != "" {
		attrs = append(attrs, CallerID(tc.CallerID))
	}
	if tc.CorrelationID != "" {
		attrs = append(attrs, CorrelationID(tc.CorrelationID))
	}
	return l.With(attrs...)
}
