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

// document is a single stored record in flat form.
type document struct {
	data *types.Document
}

// newDocument returns a document that owns a flat copy of doc.
//
// Keys with dots that overlap nested paths, like {"a": 1, "a.b": 2},
// can't be unflattened back and are rejected.
func newDocument(doc *types.Document) (*document, error) {
	data, err := types.Flatten(doc)
	if err != nil {
		return nil, internalError(err)
	}

	if _, err = types.Unflatten(data); err != nil {
		return nil, internalError(err)
	}

	return &document{data: data}, nil
}

// get returns the value stored at the exact flat path.
func (d *document) get(path string) (any, bool) {
	v, err := d.data.Get(path)
	return v, err == nil
}

// value returns the value at path, rebuilding a nested document
// if path is a prefix of stored paths.
func (d *document) value(path string) (any, bool) {
	if v, ok := d.get(path); ok {
		return v, true
	}

	prefix := path + types.PathSeparator
	sub := new(types.Document)

	for _, k := range d.data.Keys() {
		if rest := strings.TrimPrefix(k, prefix); rest != k && rest != "" {
			must.NoError(sub.Set(rest, must.NotFail(d.data.Get(k))))
		}
	}

	if sub.Len() == 0 {
		return nil, false
	}

	res, err := types.Unflatten(sub)
	if err != nil {
		return nil, false
	}

	return res, true
}

// match returns true if the document satisfies the query.
//
// A nil or empty query matches any document.
func (d *document) match(query *types.Document) (bool, error) {
	f, err := newFilter(query)
	if err != nil {
		return false, err
	}

	return f.match(d), nil
}

// matchKey returns true if the value at key satisfies the condition.
//
// Key may end with an operator; see match.
func (d *document) matchKey(key string, value any) (bool, error) {
	c, err := newCondition(key, value)
	if err != nil {
		return false, err
	}

	return c.match(d), nil
}

// selectFields returns a nested copy of the document projected by selection.
func (d *document) selectFields(selection *types.Document) (*types.Document, error) {
	p, err := newProjection(selection)
	if err != nil {
		return nil, err
	}

	return p.apply(d)
}

// toDocument returns a nested copy of the whole document.
func (d *document) toDocument() (*types.Document, error) {
	res, err := types.Unflatten(d.data)
	if err != nil {
		return nil, internalError(err)
	}

	return res, nil
}

// updatePayload returns fields to merge for the given update:
// the value of `$set` if present, update itself otherwise.
func updatePayload(update *types.Document) (*types.Document, error) {
	v, err := update.Get("$set")
	if err != nil {
		return update, nil
	}

	payload, ok := v.(*types.Document)
	if !ok {
		msg := fmt.Errorf("$set requires a document, got %s", types.FormatAnyValue(v))
		return nil, backends.NewError(backends.ErrorCodeInvalidDocument, msg)
	}

	return payload, nil
}

// update merges update's fields into the document.
//
// Existing fields are overwritten, new fields are added, no field is removed.
// If the result could not be represented as a nested document,
// the document is left unchanged and an error is returned.
func (d *document) update(update *types.Document) error {
	payload, err := updatePayload(update)
	if err != nil {
		return err
	}

	flat, err := types.Flatten(payload)
	if err != nil {
		return internalError(err)
	}

	merged := d.data.DeepCopy()
	mergeFlat(merged, flat)

	if _, err = types.Unflatten(merged); err != nil {
		return internalError(err)
	}

	d.data = merged

	return nil
}

// mergeFlat sets all src fields in dst.
//
// Empty documents are placeholders without fields:
// they are dropped when a field is set under them,
// and not set over existing nested fields.
func mergeFlat(dst, src *types.Document) {
	for _, k := range src.Keys() {
		v := must.NotFail(src.Get(k))

		if isEmptyDocument(v) && hasDescendants(dst, k) {
			continue
		}

		for i := 0; i < len(k); i++ {
			if k[i] != types.PathSeparator[0] {
				continue
			}

			if ancestor, err := dst.Get(k[:i]); err == nil && isEmptyDocument(ancestor) {
				dst.Remove(k[:i])
			}
		}

		must.NoError(dst.Set(k, v))
	}
}

// isEmptyDocument returns true if v is a document without fields.
func isEmptyDocument(v any) bool {
	doc, ok := v.(*types.Document)
	return ok && doc.Len() == 0
}

// hasDescendants returns true if doc has a path nested under path.
func hasDescendants(doc *types.Document, path string) bool {
	prefix := path + types.PathSeparator

	for _, k := range doc.Keys() {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}

	return false
}
