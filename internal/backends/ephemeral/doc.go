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

// Package ephemeral provides a non-persistent, process-local backend.
//
// All data lives in memory and is lost when the connection is closed.
// It is meant for tests and short-lived sessions; it is not safe for concurrent use.
//
// # Design
//
// Documents are stored flattened: nested documents are replaced by dot-joined paths
// (see types.Flatten). Queries and projections are flattened the same way,
// so matching is a lookup of the exact path. Collections keep insertion order.
//
// Unique indexes track the set of value tuples seen for their fields.
// That set is only ever extended: deleted documents leave their values behind,
// and updates are not checked against indexes at all.
package ephemeral
