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

package store

import (
	"maps"
	"reflect"
	"strings"
	"time"
)

// Filter is a conjunction of column conditions. A plain value means equality;
// AnyOf, Before, NotBefore and Within express the other supported comparisons.
type Filter map[string]any

// With returns a copy of f with column set to v.
func (f Filter) With(column string, v any) Filter {
	out := make(Filter, len(f)+1)
	maps.Copy(out, f)
	out[column] = v
	return out
}

// AnyOf matches when the column equals one of Values.
type AnyOf struct {
	Values []any
}

// In builds an AnyOf condition.
func In[T any](values ...T) AnyOf {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return AnyOf{Values: out}
}

// Before matches when the column is strictly less than Value.
type Before struct {
	Value any
}

// NotBefore matches when the column is greater than or equal to Value.
type NotBefore struct {
	Value any
}

// Within matches when From <= column < To.
type Within struct {
	From any
	To   any
}

// Match evaluates f against a record's fields.
func Match(fields map[string]any, f Filter) bool {
	for col, cond := range f {
		v, ok := fields[col]
		if !ok {
			return false
		}
		switch c := cond.(type) {
		case AnyOf:
			found := false
			for _, want := range c.Values {
				if Equal(v, want) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		case Before:
			if n, ok := Compare(v, c.Value); !ok || n >= 0 {
				return false
			}
		case NotBefore:
			if n, ok := Compare(v, c.Value); !ok || n < 0 {
				return false
			}
		case Within:
			lo, okLo := Compare(v, c.From)
			hi, okHi := Compare(v, c.To)
			if !okLo || !okHi || lo < 0 || hi >= 0 {
				return false
			}
		default:
			if !Equal(v, cond) {
				return false
			}
		}
	}
	return true
}

// Equal compares two column values, treating numeric kinds by value.
func Equal(a, b any) bool {
	if n, ok := Compare(a, b); ok {
		return n == 0
	}
	return reflect.DeepEqual(a, b)
}

// Compare orders two column values of the same family (time, string, number).
// ok is false when the values are not comparable.
func Compare(a, b any) (n int, ok bool) {
	switch x := a.(type) {
	case time.Time:
		y, isTime := b.(time.Time)
		if !isTime {
			return 0, false
		}
		return x.Compare(y), true
	case *time.Time:
		if x == nil {
			return 0, false
		}
		return Compare(*x, b)
	}
	if sa, okA := toString(a); okA {
		sb, okB := toString(b)
		if !okB {
			return 0, false
		}
		return strings.Compare(sa, sb), true
	}
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if !okA || !okB {
		return 0, false
	}
	switch {
	case fa < fb:
		return -1, true
	case fa > fb:
		return 1, true
	}
	return 0, true
}

// toString accepts string and named string types such as enum values.
func toString(v any) (string, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.String {
		return "", false
	}
	return rv.String(), true
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
