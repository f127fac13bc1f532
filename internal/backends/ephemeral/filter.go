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
	"fmt"
	"strings"

	"github.com/FerretDB/EphemeralDB/internal/backends"
	"github.com/FerretDB/EphemeralDB/internal/types"
	"github.com/FerretDB/EphemeralDB/internal/util/must"
)

// operator compares a stored value with the query value.
type operator func(stored, value any) bool

// operators contains all supported query operators.
var operators = map[string]operator{
	"$in": func(stored, value any) bool {
		arr, ok := value.(*types.Array)
		if !ok {
			return types.Compare(stored, value) == types.Equal
		}

		for i := 0; i < arr.Len(); i++ {
			if types.Compare(stored, must.NotFail(arr.Get(i))) == types.Equal {
				return true
			}
		}

		return false
	},
	"$gte": func(stored, value any) bool {
		c := compareStored(stored, value)
		return c == types.Greater || c == types.Equal
	},
	"$gt": func(stored, value any) bool {
		return compareStored(stored, value) == types.Greater
	},
	"$lte": func(stored, value any) bool {
		c := compareStored(stored, value)
		return c == types.Less || c == types.Equal
	},
}

// compareStored compares values for ordering operators; stored null is never ordered.
func compareStored(stored, value any) types.CompareResult {
	if _, ok := stored.(types.NullType); ok {
		return types.Incomparable
	}

	return types.Compare(stored, value)
}

// condition is a single flat query pair.
type condition struct {
	path  string
	op    operator // nil for equality
	value any
}

// newCondition parses a flat query key and its value.
//
// If the last path element starts with `$`, it is an operator applied to the rest of the path.
func newCondition(key string, value any) (*condition, error) {
	path, last := "", key
	if i := strings.LastIndex(key, types.PathSeparator); i >= 0 {
		path, last = key[:i], key[i+1:]
	}

	if !strings.HasPrefix(last, "$") {
		return &condition{path: key, value: value}, nil
	}

	op, ok := operators[last]
	if !ok {
		err := fmt.Errorf("operator %q is not supported", last)
		return nil, backends.NewErrorWithArgument(backends.ErrorCodeUnsupportedOperator, err, last)
	}

	return &condition{path: path, op: op, value: value}, nil
}

// match returns true if the document satisfies the condition.
//
// A missing field never matches.
func (c *condition) match(d *document) bool {
	stored, ok := d.get(c.path)
	if !ok {
		return false
	}

	if c.op == nil {
		return types.Compare(stored, c.value) == types.Equal
	}

	return c.op(stored, c.value)
}

// filter is a parsed query; all conditions must match.
type filter []*condition

// newFilter flattens and parses the query.
//
// All operators are checked upfront, so an unsupported one is reported
// even if the collection is empty.
func newFilter(query *types.Document) (filter, error) {
	if query.Len() == 0 {
		return nil, nil
	}

	flat, err := types.Flatten(query)
	if err != nil {
		return nil, internalError(err)
	}

	f := make(filter, 0, flat.Len())

	for _, key := range flat.Keys() {
		c, err := newCondition(key, must.NotFail(flat.Get(key)))
		if err != nil {
			return nil, err
		}

		f = append(f, c)
	}

	return f, nil
}

// match returns true if the document satisfies all conditions.
func (f filter) match(d *document) bool {
	for _, c := range f {
		if !c.match(d) {
			return false
		}
	}

	return true
}

// equalityFields returns a flat document with conditions without operators.
func (f filter) equalityFields() *types.Document {
	res := new(types.Document)

	for _, c := range f {
		if c.op == nil {
			must.NoError(res.Set(c.path, c.value))
		}
	}

	return res
}
