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

package ephemeral

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/FerretDB/EphemeralDB/internal/backends"
	"github.com/FerretDB/EphemeralDB/internal/types"
	"github.com/FerretDB/EphemeralDB/internal/util/must"
)

// index is a unique index with the set of value tuples seen so far.
//
// Tuples are added on insert and never removed, even if documents are deleted.
type index struct {
	fields []string
	values map[string]struct{}
}

// newIndex creates an empty index for the given fields.
func newIndex(fields []string) *index {
	return &index{
		fields: fields,
		values: map[string]struct{}{},
	}
}

// name returns the index name for logging, for example "a_b".
func (idx *index) name() string {
	return strings.Join(idx.fields, "_")
}

// tuple returns the values of index fields in the document and their canonical key.
//
// A missing field is represented by null.
func (idx *index) tuple(d *document) (string, []any) {
	values := make([]any, len(idx.fields))
	for i, f := range idx.fields {
		v, ok := d.value(f)
		if !ok {
			v = types.Null
		}

		values[i] = v
	}

	return encodeTuple(values), values
}

// has returns true if key is already present.
func (idx *index) has(key string) bool {
	_, ok := idx.values[key]
	return ok
}

// add registers key.
func (idx *index) add(key string) {
	idx.values[key] = struct{}{}
}

// duplicateKeyError returns a backend error for colliding values.
func (idx *index) duplicateKeyError(values []any) error {
	arg := &backends.DuplicateKeyArgument{
		Index: append([]string(nil), idx.fields...),
		Value: make([]any, len(values)),
	}

	formatted := make([]string, len(values))
	for i, v := range values {
		arg.Value[i] = copyValue(v)
		formatted[i] = types.FormatAnyValue(v)
	}

	err := fmt.Errorf("duplicate key error: index=%s value=(%s)", idx.name(), strings.Join(formatted, ", "))

	return backends.NewErrorWithArgument(backends.ErrorCodeDuplicateKey, err, arg)
}

// copyValue returns a copy of a value that could be shared with a stored document.
func copyValue(v any) any {
	switch v := v.(type) {
	case *types.Document:
		return v.DeepCopy()
	case *types.Array:
		return v.DeepCopy()
	default:
		return v
	}
}

// encodeTuple returns a canonical msgpack encoding of values.
//
// Values that compare equal produce the same encoding:
// integral floats are encoded as integers, document keys are sorted.
func encodeTuple(values []any) string {
	canonical := make([]any, len(values))
	for i, v := range values {
		canonical[i] = canonicalValue(v)
	}

	var buf bytes.Buffer

	enc := msgpack.GetEncoder()
	enc.Reset(&buf)
	enc.SetSortMapKeys(true)
	err := enc.Encode(canonical)
	msgpack.PutEncoder(enc)

	if err != nil {
		panic(fmt.Sprintf("failed to encode index tuple using MsgPack: %s", err))
	}

	return buf.String()
}

// canonicalValue converts a value to plain Go values for encoding.
func canonicalValue(v any) any {
	switch v := v.(type) {
	case *types.Document:
		m := make(map[string]any, v.Len())
		for _, k := range v.Keys() {
			m[k] = canonicalValue(must.NotFail(v.Get(k)))
		}

		return m

	case *types.Array:
		s := make([]any, v.Len())
		for i := range s {
			s[i] = canonicalValue(must.NotFail(v.Get(i)))
		}

		return s

	case float64:
		if v == math.Trunc(v) && v >= math.MinInt64 && v < math.MaxInt64 {
			return int64(v)
		}

		return v

	case types.NullType:
		return nil

	default:
		return v
	}
}
