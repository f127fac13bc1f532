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
	"errors"
	"fmt"
	"strings"
)

// PathSeparator separates keys of nested documents in flat paths.
const PathSeparator = "."

// ErrPathConflict is returned when paths of a flat document do not describe a tree.
//
// A well-formed flat document never produces it.
var ErrPathConflict = errors.New("path conflict")

// Flatten returns a new flat document for the given nested one.
//
// Each non-empty nested document is replaced by its fields, keyed by dot-joined paths:
// {a: {b: 1, c: {}}} becomes {"a.b": 1, "a.c": {}}.
// Empty documents and arrays are leaves. Values are deep-copied; doc is not modified.
//
// Keys containing a dot are indistinguishable from nested paths;
// if two keys produce the same path, ErrPathConflict is returned.
func Flatten(doc *Document) (*Document, error) {
	res := MakeDocument(doc.Len())

	if err := flattenInto(res, "", doc); err != nil {
		return nil, fmt.Errorf("types.Flatten: %w", err)
	}

	return res, nil
}

// flattenInto adds leaves of doc to res, prefixing their paths.
func flattenInto(res *Document, prefix string, doc *Document) error {
	for _, key := range doc.Keys() {
		path := key
		if prefix != "" {
			path = prefix + PathSeparator + key
		}

		value := doc.m[key]

		if sub, ok := value.(*Document); ok && sub.Len() > 0 {
			if err := flattenInto(res, path, sub); err != nil {
				return err
			}

			continue
		}

		if res.Has(path) {
			return fmt.Errorf("%w: duplicate path %q", ErrPathConflict, path)
		}

		res.set(path, deepCopy(value))
	}

	return nil
}

// Unflatten returns a new nested document for the given flat one.
//
// It is the inverse of Flatten: Flatten(Unflatten(flat)) equals flat for any flat produced by Flatten.
// Paths that need to descend into a non-document value, or a value that would replace
// a nested document, result in ErrPathConflict.
// An empty document leaf merges with other paths under the same prefix.
func Unflatten(flat *Document) (*Document, error) {
	res := MakeDocument(flat.Len())

	for _, key := range flat.Keys() {
		parts := strings.Split(key, PathSeparator)

		cur := res
		for i, part := range parts[:len(parts)-1] {
			if part == "" {
				return nil, fmt.Errorf("types.Unflatten: %w: empty element in path %q", ErrPathConflict, key)
			}

			v, ok := cur.m[part]
			if !ok {
				sub := new(Document)
				cur.set(part, sub)
				cur = sub

				continue
			}

			sub, ok := v.(*Document)
			if !ok {
				prefix := strings.Join(parts[:i+1], PathSeparator)
				return nil, fmt.Errorf("types.Unflatten: %w: %q is not a document in path %q", ErrPathConflict, prefix, key)
			}

			cur = sub
		}

		last := parts[len(parts)-1]
		if last == "" {
			return nil, fmt.Errorf("types.Unflatten: %w: empty element in path %q", ErrPathConflict, key)
		}

		value := deepCopy(flat.m[key])

		existing, ok := cur.m[last]
		if !ok {
			cur.set(last, value)
			continue
		}

		_, existingDoc := existing.(*Document)
		if valueDoc, ok := value.(*Document); ok && existingDoc && valueDoc.Len() == 0 {
			continue
		}

		return nil, fmt.Errorf("types.Unflatten: %w: value for %q overlaps another path", ErrPathConflict, key)
	}

	return res, nil
}
