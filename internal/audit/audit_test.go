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

package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates that sensitive keys are correctly identified as secrets to prevent them from being logged in plaintext.
// Scope: Unit Test
// Security: Data Masking and Leakage Prevention (CWE-532)
// Expected: Returns true for keys containing 'password', 'token', 'secret', etc., and false for non-sensitive keys.
// Test Case ID: AUD-01
func TestAudit_IsSecret(t *testing.T) {
	tests := []struct {
		key      string
		isSecret bool
	}{
		{"password", true},
		{"Password", true},
		{"token", true},
		{"access_token", true},
		{"api_key", true},
		{"content_hash", true},
		{"credential", true},
		{"tenant_id", false},
		{"quote_number", false},
		{"status", false},
		{"grand_total", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.isSecret, isSecret(tt.key))
		})
	}
}

// TestPurpose: Validates that audit records carry the tenant and redact secret metadata.
// Scope: Unit Test
// Expected: The JSON record holds tenant_id, audit_type and a redacted token value.
// Test Case ID: AUD-02
func TestAudit_SlogLogger_Log(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	l.Log(context.Background(), Event{
		Type:     TypeQuoteApproved,
		TenantID: "T1",
		ActorID:  "u-1",
		Resource: "Q-2025-03-0001",
		Metadata: map[string]any{"api_token": "abc", "grand_total": "120.00"},
	})

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "AUDIT_EVENT", rec["msg"])
	assert.Equal(t, "T1", rec["tenant_id"])
	assert.Equal(t, TypeQuoteApproved, rec["audit_type"])
	assert.Equal(t, "audit", rec["component"])

	md := rec["metadata"].(map[string]any)
	assert.Equal(t, "[REDACTED]", md["api_token"])
	assert.Equal(t, "120.00", md["grand_total"])
}
