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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FerretDB/EphemeralDB/internal/backends"
	"github.com/FerretDB/EphemeralDB/internal/types"
	"github.com/FerretDB/EphemeralDB/internal/util/must"
	"github.com/FerretDB/EphemeralDB/internal/util/testutil"
)

// doc creates a document from pairs, panicking on error.
func doc(pairs ...any) *types.Document {
	return must.NotFail(types.NewDocument(pairs...))
}

// arr creates an array from values, panicking on error.
func arr(values ...any) *types.Array {
	return must.NotFail(types.NewArray(values...))
}

// newTestDocument returns a stored document for the given nested document.
func newTestDocument(t testing.TB, d *types.Document) *document {
	t.Helper()

	res, err := newDocument(d)
	require.NoError(t, err)

	return res
}

// newTestCollection returns an empty collection with a test logger.
func newTestCollection(t testing.TB) *Collection {
	t.Helper()

	return newCollection(t.Name(), testutil.Logger(t))
}

// assertErrorCode asserts that err is *backends.Error with one of the given error codes.
func assertErrorCode(t testing.TB, err error, code backends.ErrorCode, codes ...backends.ErrorCode) {
	t.Helper()

	assert.True(t, backends.ErrorCodeIs(err, code, codes...), "err = %v", err)
}
