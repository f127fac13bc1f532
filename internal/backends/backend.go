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

package backends

import (
	"context"

	"github.com/FerretDB/EphemeralDB/internal/types"
	"github.com/FerretDB/EphemeralDB/internal/util/observability"
)

// Backend is a generic interface for document databases.
//
// Backend object is expected to be stateful and wrap a database connection.
// Collections are created on first reference by any method.
//
// See backendContract and its methods for additional details.
type Backend interface {
	InitiateConnection()
	CloseConnection()
	IsConnected() bool

	EnsureIndex(context.Context, *EnsureIndexParams) error
	Write(context.Context, *WriteParams) (*WriteResult, error)
	Read(context.Context, *ReadParams) (*ReadResult, error)
	ReadAndWrite(context.Context, *ReadAndWriteParams) (*ReadAndWriteResult, error)
	Count(context.Context, *CountParams) (*CountResult, error)
	Remove(context.Context, *RemoveParams) (*RemoveResult, error)

	ListCollections(context.Context, *ListCollectionsParams) (*ListCollectionsResult, error)
	DropCollection(context.Context, *DropCollectionParams) error
}

// backendContract implements Backend interface.
type backendContract struct {
	b Backend
}

// BackendContract wraps Backend and enforces its contract.
//
// All backend implementations should use that function when they create new Backend instances.
//
// See backendContract and its methods for additional details.
func BackendContract(b Backend) Backend {
	return &backendContract{
		b: b,
	}
}

// InitiateConnection prepares the backend for operations.
func (bc *backendContract) InitiateConnection() {
	bc.b.InitiateConnection()
}

// CloseConnection discards the connection; for ephemeral backends, that discards all data.
func (bc *backendContract) CloseConnection() {
	bc.b.CloseConnection()
}

// IsConnected returns true between InitiateConnection and CloseConnection calls.
func (bc *backendContract) IsConnected() bool {
	return bc.b.IsConnected()
}

// IndexOrder represents the sort order of an index field.
//
// Order does not affect uniqueness.
type IndexOrder int8

// Index orders.
const (
	IndexOrderNone       IndexOrder = 0
	IndexOrderAscending  IndexOrder = 1
	IndexOrderDescending IndexOrder = -1
)

// IndexKeyPair consists of a field name and an order.
type IndexKeyPair struct {
	Field string
	Order IndexOrder
}

// IndexKey is an ordered list of index fields.
type IndexKey []IndexKeyPair

// IndexField returns IndexKey for a single field without order.
func IndexField(field string) IndexKey {
	return IndexKey{{Field: field}}
}

// Fields returns field names in order.
func (k IndexKey) Fields() []string {
	res := make([]string, len(k))
	for i, p := range k {
		res[i] = p.Field
	}

	return res
}

// EnsureIndexParams represents the parameters of Backend.EnsureIndex method.
type EnsureIndexParams struct {
	Collection string
	Keys       IndexKey
	Unique     bool
}

// EnsureIndex creates the given index if it does not exist yet.
//
// Non-unique indexes may be accepted without any effect.
func (bc *backendContract) EnsureIndex(ctx context.Context, params *EnsureIndexParams) (err error) {
	defer observability.FuncCall(ctx)()
	defer func() {
		checkError(
			err,
			ErrorCodeNotConnected,
			ErrorCodeCollectionNameIsInvalid,
			ErrorCodeInvalidDocument,
			ErrorCodeDuplicateKey,
		)
	}()

	if err = validateCollectionName(params.Collection); err != nil {
		return
	}

	err = bc.b.EnsureIndex(ctx, params)

	return
}

// WriteParams represents the parameters of Backend.Write method.
type WriteParams struct {
	Collection string

	// Data is *types.Document, *types.Array of documents, or []*types.Document.
	Data any

	// Query selects documents to update with Data's fields.
	// If nil, Data is inserted instead.
	Query *types.Document

	// Upsert inserts a document built from Query's equality fields and Data
	// if Query matches nothing.
	Upsert bool
}

// WriteResult represents the results of Backend.Write method.
type WriteResult struct {
	// Count is the number of inserted documents for inserts, or updated documents for updates.
	Count int

	// UpsertedID is the _id of the inserted document if Upsert was used and nothing matched.
	UpsertedID any
}

// Write inserts or updates documents.
//
// Inserts are not atomic: if the n-th document of the batch fails,
// the first n-1 documents stay in the collection.
func (bc *backendContract) Write(ctx context.Context, params *WriteParams) (res *WriteResult, err error) {
	defer observability.FuncCall(ctx)()
	defer func() {
		checkError(
			err,
			ErrorCodeNotConnected,
			ErrorCodeCollectionNameIsInvalid,
			ErrorCodeInvalidDocument,
			ErrorCodeDuplicateKey,
			ErrorCodeUnsupportedOperator,
			ErrorCodeInternalConsistency,
		)
	}()

	if err = validateCollectionName(params.Collection); err != nil {
		return
	}

	res, err = bc.b.Write(ctx, params)

	return
}

// ReadParams represents the parameters of Backend.Read method.
type ReadParams struct {
	Collection string
	Query      *types.Document // nil or empty matches all documents
	Selection  *types.Document // nil or empty returns whole documents
}

// ReadResult represents the results of Backend.Read method.
type ReadResult struct {
	Docs []*types.Document
}

// Read returns documents matching the query in insertion order.
func (bc *backendContract) Read(ctx context.Context, params *ReadParams) (res *ReadResult, err error) {
	defer observability.FuncCall(ctx)()
	defer func() {
		checkError(
			err,
			ErrorCodeNotConnected,
			ErrorCodeCollectionNameIsInvalid,
			ErrorCodeUnsupportedOperator,
			ErrorCodeInvalidSelection,
			ErrorCodeInternalConsistency,
		)
	}()

	if err = validateCollectionName(params.Collection); err != nil {
		return
	}

	res, err = bc.b.Read(ctx, params)

	return
}

// ReadAndWriteParams represents the parameters of Backend.ReadAndWrite method.
type ReadAndWriteParams struct {
	Collection string
	Query      *types.Document
	Data       *types.Document
	Selection  *types.Document
}

// ReadAndWriteResult represents the results of Backend.ReadAndWrite method.
type ReadAndWriteResult struct {
	// Doc is the updated document, or nil if nothing matched the query.
	Doc *types.Document
}

// ReadAndWrite updates the first document matching the query and returns it.
func (bc *backendContract) ReadAndWrite(ctx context.Context, params *ReadAndWriteParams) (res *ReadAndWriteResult, err error) {
	defer observability.FuncCall(ctx)()
	defer func() {
		checkError(
			err,
			ErrorCodeNotConnected,
			ErrorCodeCollectionNameIsInvalid,
			ErrorCodeInvalidDocument,
			ErrorCodeUnsupportedOperator,
			ErrorCodeInvalidSelection,
			ErrorCodeInternalConsistency,
		)
	}()

	if err = validateCollectionName(params.Collection); err != nil {
		return
	}

	res, err = bc.b.ReadAndWrite(ctx, params)

	return
}

// CountParams represents the parameters of Backend.Count method.
type CountParams struct {
	Collection string
	Query      *types.Document
}

// CountResult represents the results of Backend.Count method.
type CountResult struct {
	Count int
}

// Count returns the number of documents matching the query.
func (bc *backendContract) Count(ctx context.Context, params *CountParams) (res *CountResult, err error) {
	defer observability.FuncCall(ctx)()
	defer func() {
		checkError(
			err,
			ErrorCodeNotConnected,
			ErrorCodeCollectionNameIsInvalid,
			ErrorCodeUnsupportedOperator,
			ErrorCodeInternalConsistency,
		)
	}()

	if err = validateCollectionName(params.Collection); err != nil {
		return
	}

	res, err = bc.b.Count(ctx, params)

	return
}

// RemoveParams represents the parameters of Backend.Remove method.
type RemoveParams struct {
	Collection string
	Query      *types.Document
}

// RemoveResult represents the results of Backend.Remove method.
type RemoveResult struct {
	Deleted int
}

// Remove deletes documents matching the query.
func (bc *backendContract) Remove(ctx context.Context, params *RemoveParams) (res *RemoveResult, err error) {
	defer observability.FuncCall(ctx)()
	defer func() {
		checkError(
			err,
			ErrorCodeNotConnected,
			ErrorCodeCollectionNameIsInvalid,
			ErrorCodeUnsupportedOperator,
			ErrorCodeInternalConsistency,
		)
	}()

	if err = validateCollectionName(params.Collection); err != nil {
		return
	}

	res, err = bc.b.Remove(ctx, params)

	return
}

// ListCollectionsParams represents the parameters of Backend.ListCollections method.
type ListCollectionsParams struct{}

// ListCollectionsResult represents the results of Backend.ListCollections method.
type ListCollectionsResult struct {
	Collections []CollectionInfo
}

// CollectionInfo represents information about a single collection.
type CollectionInfo struct {
	Name      string
	Documents int
	Indexes   [][]string // unique indexes field names, _id first
}

// ListCollections returns information about existing collections sorted by name.
//
// It does not create any collection.
func (bc *backendContract) ListCollections(ctx context.Context, params *ListCollectionsParams) (res *ListCollectionsResult, err error) {
	defer observability.FuncCall(ctx)()
	defer func() { checkError(err, ErrorCodeNotConnected) }()

	res, err = bc.b.ListCollections(ctx, params)

	return
}

// DropCollectionParams represents the parameters of Backend.DropCollection method.
type DropCollectionParams struct {
	Name string
}

// DropCollection removes all documents and indexes of the collection.
//
// Dropping a collection that does not exist is not an error.
func (bc *backendContract) DropCollection(ctx context.Context, params *DropCollectionParams) (err error) {
	defer observability.FuncCall(ctx)()
	defer func() { checkError(err, ErrorCodeNotConnected, ErrorCodeCollectionNameIsInvalid) }()

	if err = validateCollectionName(params.Name); err != nil {
		return
	}

	err = bc.b.DropCollection(ctx, params)

	return
}

// check interfaces
var (
	_ Backend = (*backendContract)(nil)
)
