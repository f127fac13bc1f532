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
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/FerretDB/EphemeralDB/internal/backends"
	"github.com/FerretDB/EphemeralDB/internal/types"
	"github.com/FerretDB/EphemeralDB/internal/util/must"
)

// Database is an in-memory set of collections.
//
// It implements backends.Backend interface. All data is lost on CloseConnection.
// It is not safe for concurrent use.
type Database struct {
	l *zap.Logger

	// nil when not connected
	collections map[string]*Collection

	operations *prometheus.CounterVec
}

// NewDatabaseOpts represents the options of NewDatabase function.
type NewDatabaseOpts struct {
	L *zap.Logger // if nil, logging is disabled
}

// NewDatabase creates a new disconnected database.
func NewDatabase(opts *NewDatabaseOpts) *Database {
	l := zap.NewNop()
	if opts != nil && opts.L != nil {
		l = opts.L
	}

	return &Database{
		l:          l,
		operations: newOperationsMetric(),
	}
}

// Backend returns the database wrapped with backend contract checks.
func (db *Database) Backend() backends.Backend {
	return backends.BackendContract(db)
}

// InitiateConnection implements backends.Backend interface.
//
// It always starts with an empty set of collections.
func (db *Database) InitiateConnection() {
	db.collections = map[string]*Collection{}

	db.l.Debug("Connection initiated")
}

// CloseConnection implements backends.Backend interface.
func (db *Database) CloseConnection() {
	db.collections = nil

	db.l.Debug("Connection closed, all data discarded")
}

// IsConnected implements backends.Backend interface.
//
// It is true from InitiateConnection until CloseConnection;
// after CloseConnection all data is gone and operations fail with ErrorCodeNotConnected,
// so it returns false instead of staying true.
func (db *Database) IsConnected() bool {
	return db.collections != nil
}

// Collection returns the collection with the given name, creating it if needed.
func (db *Database) Collection(name string) (*Collection, error) {
	if !db.IsConnected() {
		return nil, errNotConnected
	}

	c := db.collections[name]
	if c == nil {
		c = newCollection(name, db.l.Named(name))
		db.collections[name] = c

		db.l.Debug("Collection created", zap.String("collection", name))
	}

	return c, nil
}

// HasCollection returns true if the collection with the given name exists.
// It does not create it.
func (db *Database) HasCollection(name string) bool {
	_, ok := db.collections[name]
	return ok
}

// EnsureIndex implements backends.Backend interface.
func (db *Database) EnsureIndex(ctx context.Context, params *backends.EnsureIndexParams) (err error) {
	defer db.observe("ensure_index", &err)

	c, err := db.Collection(params.Collection)
	if err != nil {
		return err
	}

	return c.CreateIndex(params.Keys, params.Unique)
}

// Write implements backends.Backend interface.
func (db *Database) Write(ctx context.Context, params *backends.WriteParams) (res *backends.WriteResult, err error) {
	defer db.observe("write", &err)

	c, err := db.Collection(params.Collection)
	if err != nil {
		return nil, err
	}

	if params.Query == nil {
		var docs []*types.Document
		if docs, err = documents(params.Data); err != nil {
			return nil, err
		}

		var n int
		if n, err = c.InsertMany(docs); err != nil {
			return nil, err
		}

		return &backends.WriteResult{Count: n}, nil
	}

	update, err := singleDocument(params.Data)
	if err != nil {
		return nil, err
	}

	set := must.NotFail(types.NewDocument("$set", update))

	if params.Upsert {
		var n int
		var id any
		if n, id, err = c.Upsert(params.Query, set); err != nil {
			return nil, err
		}

		return &backends.WriteResult{Count: n, UpsertedID: id}, nil
	}

	n, err := c.UpdateMany(params.Query, set)
	if err != nil {
		return nil, err
	}

	return &backends.WriteResult{Count: n}, nil
}

// Read implements backends.Backend interface.
func (db *Database) Read(ctx context.Context, params *backends.ReadParams) (res *backends.ReadResult, err error) {
	defer db.observe("read", &err)

	c, err := db.Collection(params.Collection)
	if err != nil {
		return nil, err
	}

	docs, err := c.Find(params.Query, params.Selection)
	if err != nil {
		return nil, err
	}

	return &backends.ReadResult{Docs: docs}, nil
}

// ReadAndWrite implements backends.Backend interface.
//
// The first document matching the query is updated and returned.
func (db *Database) ReadAndWrite(ctx context.Context, params *backends.ReadAndWriteParams) (res *backends.ReadAndWriteResult, err error) { //nolint:lll // for readability
	defer db.observe("read_and_write", &err)

	c, err := db.Collection(params.Collection)
	if err != nil {
		return nil, err
	}

	p, err := newProjection(params.Selection)
	if err != nil {
		return nil, err
	}

	if params.Data == nil {
		return nil, backends.NewError(backends.ErrorCodeInvalidDocument, errors.New("data must not be nil"))
	}

	d, err := c.findFirst(params.Query)
	if err != nil {
		return nil, err
	}

	if d == nil {
		return new(backends.ReadAndWriteResult), nil
	}

	if err = d.update(must.NotFail(types.NewDocument("$set", params.Data))); err != nil {
		return nil, err
	}

	doc, err := p.apply(d)
	if err != nil {
		return nil, err
	}

	return &backends.ReadAndWriteResult{Doc: doc}, nil
}

// Count implements backends.Backend interface.
func (db *Database) Count(ctx context.Context, params *backends.CountParams) (res *backends.CountResult, err error) {
	defer db.observe("count", &err)

	c, err := db.Collection(params.Collection)
	if err != nil {
		return nil, err
	}

	n, err := c.Count(params.Query)
	if err != nil {
		return nil, err
	}

	return &backends.CountResult{Count: n}, nil
}

// Remove implements backends.Backend interface.
func (db *Database) Remove(ctx context.Context, params *backends.RemoveParams) (res *backends.RemoveResult, err error) {
	defer db.observe("remove", &err)

	c, err := db.Collection(params.Collection)
	if err != nil {
		return nil, err
	}

	n, err := c.DeleteMany(params.Query)
	if err != nil {
		return nil, err
	}

	return &backends.RemoveResult{Deleted: n}, nil
}

// ListCollections implements backends.Backend interface.
func (db *Database) ListCollections(ctx context.Context, params *backends.ListCollectionsParams) (res *backends.ListCollectionsResult, err error) { //nolint:lll // for readability
	defer db.observe("list_collections", &err)

	if !db.IsConnected() {
		return nil, errNotConnected
	}

	names := maps.Keys(db.collections)
	slices.Sort(names)

	res = &backends.ListCollectionsResult{
		Collections: make([]backends.CollectionInfo, len(names)),
	}

	for i, name := range names {
		c := db.collections[name]
		res.Collections[i] = backends.CollectionInfo{
			Name:      name,
			Documents: c.Len(),
			Indexes:   c.Indexes(),
		}
	}

	return res, nil
}

// DropCollection implements backends.Backend interface.
func (db *Database) DropCollection(ctx context.Context, params *backends.DropCollectionParams) (err error) {
	defer db.observe("drop_collection", &err)

	if !db.IsConnected() {
		return errNotConnected
	}

	c, ok := db.collections[params.Name]
	if !ok {
		return nil
	}

	c.Drop()
	delete(db.collections, params.Name)

	return nil
}

// documents converts Write data to a batch of documents.
func documents(data any) ([]*types.Document, error) {
	switch data := data.(type) {
	case *types.Document:
		if data == nil {
			break
		}

		return []*types.Document{data}, nil

	case []*types.Document:
		for i, doc := range data {
			if doc == nil {
				err := fmt.Errorf("document %d is nil", i)
				return nil, backends.NewError(backends.ErrorCodeInvalidDocument, err)
			}
		}

		return data, nil

	case *types.Array:
		if data == nil {
			break
		}

		res := make([]*types.Document, data.Len())

		for i := range res {
			v := must.NotFail(data.Get(i))

			doc, ok := v.(*types.Document)
			if !ok {
				err := fmt.Errorf("element %d must be a document, got %s", i, types.FormatAnyValue(v))
				return nil, backends.NewError(backends.ErrorCodeInvalidDocument, err)
			}

			res[i] = doc
		}

		return res, nil
	}

	err := fmt.Errorf("expected document or array of documents, got %T", data)

	return nil, backends.NewError(backends.ErrorCodeInvalidDocument, err)
}

// singleDocument returns the only document of Write data.
func singleDocument(data any) (*types.Document, error) {
	docs, err := documents(data)
	if err != nil {
		return nil, err
	}

	if len(docs) != 1 {
		err = fmt.Errorf("update requires exactly one document, got %d", len(docs))
		return nil, backends.NewError(backends.ErrorCodeInvalidDocument, err)
	}

	return docs[0], nil
}

// check interfaces
var (
	_ backends.Backend = (*Database)(nil)
)
