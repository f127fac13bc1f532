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

// Package types provides Go types for values stored in EphemeralDB documents.
//
// The set of types is closed:
//
//	*types.Document  record with ordered keys
//	*types.Array     sequence of values
//	int64            integer (int and int32 are converted on entry)
//	float64          64-bit binary floating point
//	string           UTF-8 string
//	bool             boolean
//	types.NullType   null
//
// Any other Go value is rejected by constructors and setters.
//
// Composite types are passed by pointers and are owned by their container;
// use DeepCopy to share them.
package types

import "fmt"

// ScalarType represents scalar type.
type ScalarType interface {
	int64 | float64 | string | bool | NullType
}

// CompositeType represents composite type - *Document or *Array.
type CompositeType interface {
	*Document | *Array
}

// Type represents any supported type (scalar or composite).
type Type interface {
	ScalarType | CompositeType
}

// NullType represents null.
//
// Most callers should use types.Null value instead.
type NullType struct{}

// Null represents null value.
var Null = NullType{}

// normalizeValue validates value and converts Go integer types to int64.
func normalizeValue(value any) (any, error) {
	switch value := value.(type) {
	case *Document:
		if value == nil {
			return nil, fmt.Errorf("types.normalizeValue: nil document")
		}
		return value, nil
	case *Array:
		if value == nil {
			return nil, fmt.Errorf("types.normalizeValue: nil array")
		}
		return value, nil
	case int64, float64, string, bool, NullType:
		return value, nil
	case int:
		return int64(value), nil
	case int32:
		return int64(value), nil
	default:
		return nil, fmt.Errorf("types.normalizeValue: unsupported type: %[1]T (%[1]v)", value)
	}
}

// deepCopy returns a deep copy of the given value.
func deepCopy(value any) any {
	switch value := value.(type) {
	case *Document:
		keys := make([]string, len(value.keys))
		copy(keys, value.keys)

		m := make(map[string]any, len(value.m))
		for k, v := range value.m {
			m[k] = deepCopy(v)
		}

		return &Document{
			keys: keys,
			m:    m,
		}

	case *Array:
		s := make([]any, len(value.s))
		for i, v := range value.s {
			s[i] = deepCopy(v)
		}

		return &Array{s: s}

	case int64, float64, string, bool, NullType:
		return value

	default:
		panic(fmt.Sprintf("types.deepCopy: unsupported type: %[1]T (%[1]v)", value))
	}
}
