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

// Package bson provides convertors between MongoDB driver's bson and types packages.
//
// It is used to read and write documents as MongoDB Extended JSON.
package bson

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/FerretDB/EphemeralDB/internal/types"
	"github.com/FerretDB/EphemeralDB/internal/util/lazyerrors"
	"github.com/FerretDB/EphemeralDB/internal/util/must"
)

// fromTypes converts types package value to bson package value.
//
// Invalid types cause panics.
func fromTypes(v any) any {
	switch v := v.(type) {
	case *types.Document:
		return FromDocument(v)
	case *types.Array:
		return FromArray(v)
	case int64:
		return v
	case float64:
		return v
	case string:
		return v
	case bool:
		return v
	case types.NullType:
		return nil

	default:
		panic(fmt.Sprintf("invalid type %T", v))
	}
}

// From converts types package value to bson package value.
func From[T types.Type](v T) any {
	return fromTypes(v)
}

// FromArray converts [*types.Array] to [bson.A].
func FromArray(arr *types.Array) bson.A {
	res := make(bson.A, arr.Len())
	for i := range res {
		res[i] = fromTypes(must.NotFail(arr.Get(i)))
	}

	return res
}

// FromDocument converts [*types.Document] to [bson.D], preserving field order.
func FromDocument(doc *types.Document) bson.D {
	keys := doc.Keys()
	res := make(bson.D, len(keys))

	for i, k := range keys {
		res[i] = bson.E{Key: k, Value: fromTypes(must.NotFail(doc.Get(k)))}
	}

	return res
}

// toTypes converts bson package value to types package value.
func toTypes(v any) (any, error) {
	switch v := v.(type) {
	case bson.D:
		return ToDocument(v)
	case bson.M:
		return toDocumentFromMap(v)
	case bson.A:
		return ToArray(v)
	case []any:
		return ToArray(v)
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return v, nil
	case string:
		return v, nil
	case bool:
		return v, nil
	case nil, primitive.Null:
		return types.Null, nil

	default:
		return nil, fmt.Errorf("bson: unsupported type %T", v)
	}
}

// To converts bson package value to types package value.
//
// Only types that have an equivalent in types package are supported.
func To(v any) (any, error) {
	return toTypes(v)
}

// ToArray converts a slice of bson values to [*types.Array].
func ToArray(arr []any) (*types.Array, error) {
	values := make([]any, len(arr))

	for i, v := range arr {
		var err error
		if values[i], err = toTypes(v); err != nil {
			return nil, lazyerrors.Error(err)
		}
	}

	return types.NewArray(values...)
}

// ToDocument converts [bson.D] to [*types.Document], preserving field order.
func ToDocument(d bson.D) (*types.Document, error) {
	res := types.MakeDocument(len(d))

	for _, e := range d {
		if res.Has(e.Key) {
			return nil, fmt.Errorf("bson: duplicate key %q", e.Key)
		}

		v, err := toTypes(e.Value)
		if err != nil {
			return nil, lazyerrors.Error(err)
		}

		if err = res.Set(e.Key, v); err != nil {
			return nil, lazyerrors.Error(err)
		}
	}

	return res, nil
}

// toDocumentFromMap converts [bson.M] to [*types.Document] with sorted keys.
func toDocumentFromMap(m bson.M) (*types.Document, error) {
	keys := maps.Keys(m)
	slices.Sort(keys)

	d := make(bson.D, len(keys))
	for i, k := range keys {
		d[i] = bson.E{Key: k, Value: m[k]}
	}

	return ToDocument(d)
}

// UnmarshalExtJSON parses a document in canonical or relaxed MongoDB Extended JSON.
func UnmarshalExtJSON(b []byte) (*types.Document, error) {
	var d bson.D
	if err := bson.UnmarshalExtJSON(b, false, &d); err != nil {
		return nil, lazyerrors.Error(err)
	}

	return ToDocument(d)
}

// MarshalExtJSON returns a document as relaxed MongoDB Extended JSON.
func MarshalExtJSON(doc *types.Document) ([]byte, error) {
	b, err := bson.MarshalExtJSON(FromDocument(doc), false, false)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	return b, nil
}

// MarshalExtJSONIndent is like MarshalExtJSON, but applies indent.
func MarshalExtJSONIndent(doc *types.Document, indent string) ([]byte, error) {
	b, err := bson.MarshalExtJSONIndent(FromDocument(doc), false, false, "", indent)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	return b, nil
}
