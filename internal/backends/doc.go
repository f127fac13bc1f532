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

// Package backends provides common interfaces and code for document database backends.
//
// # Design principles
//
//  1. The interface is relatively high-level: one call per caller operation.
//     For example, Write either inserts a batch of documents or updates all documents matching a query;
//     there is no method to insert a single document into an existing collection.
//  2. Backend objects are stateful. Collections are created on first reference; there is no method to create one.
//  3. Contexts are per-operation and should not be stored.
//  4. Errors returned by methods could be nil, *Error, or some other opaque error type.
//     *Error values can't be wrapped or be present anywhere in the error chain.
//     Contracts enforce *Error codes; they are not documented in the code comments
//     but are visible in the contract's code (to avoid duplication).
//
// Documents, queries, updates and projections are *types.Document values.
// Queries and projections use dot notation for nested fields;
// a trailing `$in`, `$gte`, `$gt` or `$lte` path element selects a comparison other than equality.
package backends
