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

package backends_test // to avoid import cycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FerretDB/EphemeralDB/internal/backends"
	"github.com/FerretDB/EphemeralDB/internal/backends/ephemeral"
	"github.com/FerretDB/EphemeralDB/internal/types"
	"github.com/FerretDB/EphemeralDB/internal/util/must"
	"github.com/FerretDB/EphemeralDB/internal/util/testutil"
)

// testBackends returns all connected backends configured for testing contracts.
func testBackends(t *testing.T) map[string]backends.Backend {
	t.Helper()

	l := testutil.Logger(t)

	res := map[string]backends.Backend{}

	{
		b := ephemeral.NewDatabase(&ephemeral.NewDatabaseOpts{L: l.Named("ephemeral")}).Backend()
		b.InitiateConnection()
		t.Cleanup(b.CloseConnection)

		res["ephemeral"] = b
	}

	return res
}

// assertErrorCode asserts that err is *Error with one of the given error codes.
func assertErrorCode(t *testing.T, err error, code backends.ErrorCode, codes ...backends.ErrorCode) {
	t.Helper()

	assert.True(t, backends.ErrorCodeIs(err, code, codes...), "err = %v", err)
}

// doc creates a document from pairs.
func doc(t *testing.T, pairs ...any) *types.Document {
	t.Helper()

	d, err := types.NewDocument(pairs...)
	require.NoError(t, err)

	return d
}

// arr creates an array of documents.
func arr(docs ...*types.Document) *types.Array {
	values := make([]any, len(docs))
	for i, d := range docs {
		values[i] = d
	}

	return must.NotFail(types.NewArray(values...))
}
