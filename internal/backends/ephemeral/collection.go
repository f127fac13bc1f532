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
	"errors"
	"math"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"

	"github.com/FerretDB/EphemeralDB/internal/backends"
	"github.com/FerretDB/EphemeralDB/internal/types"
	"github.com/FerretDB/EphemeralDB/internal/util/must"
)

// Collection is an ordered sequence of documents with unique indexes.
//
// It is not safe for concurrent use.
type Collection struct {
	name string
	l    *zap.Logger

	docs    []*document
	indexes []*index
}

// newCollection creates an empty collection with a unique index on _id.
func newCollection(name string, l *zap.Logger) *Collection {
	c := &Collection{
		name: name,
		l:    l,
	}

	must.NoError(c.CreateIndex(backends.IndexField("_id"), true))

	return c
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// Len returns the number of documents.
func (c *Collection) Len() int {
	return len(c.docs)
}

// Indexes returns field names of tracked unique indexes in creation order.
func (c *Collection) Indexes() [][]string {
	res := make([][]string, len(c.indexes))
	for i, idx := range c.indexes {
		res[i] = slices.Clone(idx.fields)
	}

	return res
}

// index returns the tracked index with the given fields, or nil.
func (c *Collection) index(fields []string) *index {
	for _, idx := range c.indexes {
		if slices.Equal(idx.fields, fields) {
			return idx
		}
	}

	return nil
}

// CreateIndex starts tracking a unique index on the given fields.
//
// It does nothing if unique is false or if the index already exists.
// Existing documents are registered in insertion order; on the first collision
// a duplicate key error is returned, and the index stays tracked
// with the values registered so far.
func (c *Collection) CreateIndex(keys backends.IndexKey, unique bool) error {
	if len(keys) == 0 {
		return backends.NewError(backends.ErrorCodeInvalidDocument, errors.New("index keys must not be empty"))
	}

	if !unique {
		return nil
	}

	fields := keys.Fields()
	if c.index(fields) != nil {
		return nil
	}

	idx := newIndex(fields)
	c.indexes = append(c.indexes, idx)

	c.l.Debug("Index created", zap.String("collection", c.name), zap.Strings("fields", fields))

	for _, d := range c.docs {
		key, values := idx.tuple(d)
		if idx.has(key) {
			c.l.Debug("Duplicate key during index creation", zap.String("collection", c.name), zap.String("index", idx.name()))
			return idx.duplicateKeyError(values)
		}

		idx.add(key)
	}

	return nil
}

// nextID returns _id for a new document: one more than the maximal numeric _id, or 1.
func (c *Collection) nextID() int64 {
	var maxID any

	for _, d := range c.docs {
		id, ok := d.get("_id")
		if !ok {
			continue
		}

		switch id := id.(type) {
		case int64:
		case float64:
			if math.IsNaN(id) || math.IsInf(id, 0) {
				continue
			}
		default:
			continue
		}

		if maxID == nil || types.Compare(id, maxID) == types.Greater {
			maxID = id
		}
	}

	switch maxID := maxID.(type) {
	case int64:
		return maxID + 1
	case float64:
		return int64(math.Floor(maxID)) + 1
	default:
		return 1
	}
}

// insert validates a single document against all indexes and appends it.
func (c *Collection) insert(doc *types.Document) (*document, error) {
	d, err := newDocument(doc)
	if err != nil {
		return nil, err
	}

	if _, ok := d.value("_id"); !ok {
		must.NoError(d.data.Set("_id", c.nextID()))
	}

	keys := make([]string, len(c.indexes))

	for i, idx := range c.indexes {
		key, values := idx.tuple(d)
		if idx.has(key) {
			c.l.Debug("Duplicate key on insert", zap.String("collection", c.name), zap.String("index", idx.name()))
			return nil, idx.duplicateKeyError(values)
		}

		keys[i] = key
	}

	for i, idx := range c.indexes {
		idx.add(keys[i])
	}

	c.docs = append(c.docs, d)

	return d, nil
}

// InsertMany inserts documents in order, assigning _id if it is absent.
// Given documents are not modified.
//
// Insertion is not atomic: if some document fails, documents before it stay inserted.
// It returns the number of given documents.
func (c *Collection) InsertMany(docs []*types.Document) (int, error) {
	for _, doc := range docs {
		if _, err := c.insert(doc); err != nil {
			return 0, err
		}
	}

	return len(docs), nil
}

// UpdateMany merges update into every document matching query and returns their number.
//
// Unique indexes are not checked.
func (c *Collection) UpdateMany(query, update *types.Document) (int, error) {
	f, err := newFilter(query)
	if err != nil {
		return 0, err
	}

	if _, err = updatePayload(update); err != nil {
		return 0, err
	}

	var n int

	for _, d := range c.docs {
		if !f.match(d) {
			continue
		}

		if err = d.update(update); err != nil {
			return n, err
		}

		n++
	}

	return n, nil
}

// Upsert updates documents matching query like UpdateMany.
// If nothing matches, it inserts a new document and returns its _id.
// For `$set` updates, the new document is query's equality fields merged with the `$set` value;
// otherwise, it is update itself.
func (c *Collection) Upsert(query, update *types.Document) (int, any, error) {
	n, err := c.UpdateMany(query, update)
	if err != nil || n > 0 {
		return n, nil, err
	}

	doc := update

	if update.Has("$set") {
		f := must.NotFail(newFilter(query))
		payload := must.NotFail(updatePayload(update))

		var flat *types.Document
		if flat, err = types.Flatten(payload); err != nil {
			return 0, nil, internalError(err)
		}

		merged := f.equalityFields()
		mergeFlat(merged, flat)

		if doc, err = types.Unflatten(merged); err != nil {
			return 0, nil, internalError(err)
		}
	}

	d, err := c.insert(doc)
	if err != nil {
		return 0, nil, err
	}

	id, _ := d.value("_id")

	return 0, copyValue(id), nil
}

// Find returns documents matching query in insertion order, projected by selection.
func (c *Collection) Find(query, selection *types.Document) ([]*types.Document, error) {
	f, err := newFilter(query)
	if err != nil {
		return nil, err
	}

	p, err := newProjection(selection)
	if err != nil {
		return nil, err
	}

	res := []*types.Document{}

	for _, d := range c.docs {
		if !f.match(d) {
			continue
		}

		doc, err := p.apply(d)
		if err != nil {
			return nil, err
		}

		res = append(res, doc)
	}

	return res, nil
}

// findFirst returns the first document matching query, or nil.
func (c *Collection) findFirst(query *types.Document) (*document, error) {
	f, err := newFilter(query)
	if err != nil {
		return nil, err
	}

	for _, d := range c.docs {
		if f.match(d) {
			return d, nil
		}
	}

	return nil, nil
}

// Count returns the number of documents matching query.
func (c *Collection) Count(query *types.Document) (int, error) {
	f, err := newFilter(query)
	if err != nil {
		return 0, err
	}

	var n int

	for _, d := range c.docs {
		if f.match(d) {
			n++
		}
	}

	return n, nil
}

// DeleteMany removes documents matching query and returns their number.
//
// Index values of removed documents stay registered,
// so their unique values can't be inserted again.
func (c *Collection) DeleteMany(query *types.Document) (int, error) {
	f, err := newFilter(query)
	if err != nil {
		return 0, err
	}

	retained := make([]*document, 0, len(c.docs))

	for _, d := range c.docs {
		if !f.match(d) {
			retained = append(retained, d)
		}
	}

	n := len(c.docs) - len(retained)
	c.docs = retained

	return n, nil
}

// Drop removes all documents and all indexes, including the index on _id.
func (c *Collection) Drop() {
	c.docs = nil
	c.indexes = nil

	c.l.Debug("Collection dropped", zap.String("collection", c.name))
}
