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
	"fmt"
	"time"

	"github.com/cotiza/cotiza/internal/store"
)

// FormatNumber renders the number of the seq-th quote of t's month.
func FormatNumber(t time.Time, seq int) string {
	return fmt.Sprintf("Q-%04d-%02d-%04d", t.Year(), int(t.Month()), seq)
}

func monthBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 1, 0)
}

// nextNumber derives the next number from the count of quotes the bound
// tenant created in now's month, so sequences restart every month. offset
// skips numbers already taken by concurrent creators.
func nextNumber(ctx context.Context, quotes store.Table[Quote], now time.Time, offset int) (string, error) {
	start, end := monthBounds(now)
	n, err := quotes.Count(ctx, store.Filter{"created_at": store.Within{From: start, To: end}})
	if err != nil {
		return "", fmt.Errorf("failed to count quotes: %w", err)
	}
	return FormatNumber(now, n+1+offset), nil
}
