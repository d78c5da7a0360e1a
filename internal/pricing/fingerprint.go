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

package pricing

import (
	"encoding/hex"
	"encoding/json"

	"golang.org/x/crypto/blake2b"

	"github.com/cotiza/cotiza/internal/catalog"
)

// FingerprintInput lists everything that determines a pricing result apart
// from tenant configuration, which is covered by cache invalidation.
type FingerprintInput struct {
	FileHash     string          `json:"fileHash"`
	Process      catalog.Process `json:"process"`
	MaterialCode string          `json:"material"`
	MachineCode  string          `json:"machine"`
	Quantity     int             `json:"quantity"`
	Selections   Selections      `json:"selections"`
	// Revision changes whenever material or machine rates change.
	Revision string `json:"revision,omitempty"`
}

// Fingerprint returns a hex BLAKE2b-256 digest of the canonical encoding of in.
// Selections are encoded in struct field order, so equal options always hash
// identically.
func Fingerprint(in FingerprintInput) string {
	raw, err := json.Marshal(in)
	if err != nil {
		// only plain values are encoded
		panic(err)
	}
	sum := blake2b.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
