// Copyright 2021 FerretDB Inc.
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

package types

import (
	"math"
	"math/big"

	"golang.org/x/exp/constraints"
)

// CompareResult represents the result of a comparison.
type CompareResult int8

// Values match results of comparison functions such as bytes.Compare.
const (
	Equal   CompareResult = 0  // ==
	Less    CompareResult = -1 // <
	Greater CompareResult = 1  // >

	// Incomparable is returned for values of kinds that have no order between them,
	// like a string and a number, and for NaN.
	Incomparable CompareResult = 2 // ≠
)

// String implements fmt.Stringer.
func (c CompareResult) String() string {
	switch c {
	case Equal:
		return "=="
	case Less:
		return "<"
	case Greater:
		return ">"
	case Incomparable:
		return "≠"
	default:
		return "CompareResult(?)"
	}
}

// Compare compares any supported values in the way queries do it.
//
// Integers and floats are compared by their numeric values.
// Strings are compared by bytes, booleans order false before true.
// Arrays are compared element by element, then by length.
// Documents are only ever Equal (same keys with equal values, in any order) or Incomparable.
// Values of different kinds are Incomparable.
func Compare(v1, v2 any) CompareResult {
	switch v1 := v1.(type) {
	case *Document:
		v2, ok := v2.(*Document)
		if !ok {
			return Incomparable
		}

		return compareDocuments(v1, v2)

	case *Array:
		v2, ok := v2.(*Array)
		if !ok {
			return Incomparable
		}

		return compareArrays(v1, v2)

	case int64:
		switch v2 := v2.(type) {
		case int64:
			return compareOrdered(v1, v2)
		case float64:
			return compareInvert(compareNumbers(v2, v1))
		}

	case float64:
		switch v2 := v2.(type) {
		case int64:
			return compareNumbers(v1, v2)
		case float64:
			if math.IsNaN(v1) || math.IsNaN(v2) {
				return Incomparable
			}
			return compareOrdered(v1, v2)
		}

	case string:
		if v2, ok := v2.(string); ok {
			return compareOrdered(v1, v2)
		}

	case bool:
		if v2, ok := v2.(bool); ok {
			switch {
			case v1 == v2:
				return Equal
			case v2:
				return Less
			default:
				return Greater
			}
		}

	case NullType:
		if _, ok := v2.(NullType); ok {
			return Equal
		}
	}

	return Incomparable
}

// compareDocuments compares documents for equality.
func compareDocuments(d1, d2 *Document) CompareResult {
	if d1.Len() != d2.Len() {
		return Incomparable
	}

	for _, k := range d1.keys {
		v2, ok := d2.m[k]
		if !ok {
			return Incomparable
		}

		if Compare(d1.m[k], v2) != Equal {
			return Incomparable
		}
	}

	return Equal
}

// compareArrays compares arrays lexicographically.
func compareArrays(a1, a2 *Array) CompareResult {
	for i := 0; i < a1.Len() && i < a2.Len(); i++ {
		if res := Compare(a1.s[i], a2.s[i]); res != Equal {
			return res
		}
	}

	return compareOrdered(a1.Len(), a2.Len())
}

// compareNumbers compares a float and an integer exactly.
func compareNumbers(f float64, i int64) CompareResult {
	if math.IsNaN(f) {
		return Incomparable
	}

	return CompareResult(big.NewFloat(f).Cmp(new(big.Float).SetInt64(i)))
}

// compareOrdered compares ordered values.
func compareOrdered[T constraints.Ordered](a, b T) CompareResult {
	switch {
	case a < b:
		return Less
	case a == b:
		return Equal
	default:
		return Greater
	}
}

// compareInvert swaps Less and Greater.
func compareInvert(res CompareResult) CompareResult {
	switch res {
	case Less:
		return Greater
	case Greater:
		return Less
	default:
		return res
	}
}

// Identical returns true if both values have the same types and values,
// including types of nested values and keys order of documents.
//
// Unlike Compare, 1 and 1.0 are not identical. That is useful mostly for tests.
func Identical(v1, v2 any) bool {
	switch v1 := v1.(type) {
	case *Document:
		v2, ok := v2.(*Document)
		if !ok || v1.Len() != v2.Len() {
			return false
		}

		for i, k := range v1.keys {
			if v2.keys[i] != k || !Identical(v1.m[k], v2.m[k]) {
				return false
			}
		}

		return true

	case *Array:
		v2, ok := v2.(*Array)
		if !ok || v1.Len() != v2.Len() {
			return false
		}

		for i := range v1.s {
			if !Identical(v1.s[i], v2.s[i]) {
				return false
			}
		}

		return true

	case float64:
		v2, ok := v2.(float64)
		if !ok {
			return false
		}

		if math.IsNaN(v1) {
			return math.IsNaN(v2)
		}

		return v1 == v2

	default:
		return v1 == v2
	}
}
