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
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FerretDB/EphemeralDB/internal/backends"
	"github.com/FerretDB/EphemeralDB/internal/types"
	"github.com/FerretDB/EphemeralDB/internal/util/testutil"
)

// setupDatabase returns a connected database wrapped with contract checks.
func setupDatabase(t *testing.T) (*Database, backends.Backend) {
	t.Helper()

	db := NewDatabase(&NewDatabaseOpts{L: testutil.Logger(t)})
	b := db.Backend()

	b.InitiateConnection()
	t.Cleanup(b.CloseConnection)

	return db, b
}

func TestDatabaseConnection(t *testing.T) {
	t.Parallel()
	ctx := testutil.Ctx(t)

	db := NewDatabase(nil)
	b := db.Backend()
	assert.False(t, b.IsConnected())

	_, err := b.Read(ctx, &backends.ReadParams{Collection: "c"})
	assertErrorCode(t, err, backends.ErrorCodeNotConnected)

	_, err = b.ListCollections(ctx, new(backends.ListCollectionsParams))
	assertErrorCode(t, err, backends.ErrorCodeNotConnected)

	_, err = db.Collection("c")
	assertErrorCode(t, err, backends.ErrorCodeNotConnected)

	b.InitiateConnection()
	assert.True(t, b.IsConnected())

	_, err = b.Write(ctx, &backends.WriteParams{Collection: "c", Data: doc("a", int64(1))})
	require.NoError(t, err)
	assert.True(t, db.HasCollection("c"))

	b.CloseConnection()
	assert.False(t, b.IsConnected())
	assert.False(t, db.HasCollection("c"))

	err = b.EnsureIndex(ctx, &backends.EnsureIndexParams{Collection: "c", Keys: backends.IndexField("a")})
	assertErrorCode(t, err, backends.ErrorCodeNotConnected)

	b.InitiateConnection()

	res, err := b.Count(ctx, &backends.CountParams{Collection: "c"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Count)
}

func TestDatabaseWrite(t *testing.T) {
	t.Parallel()
	ctx := testutil.Ctx(t)

	_, b := setupDatabase(t)

	res, err := b.Write(ctx, &backends.WriteParams{Collection: "c", Data: doc("a", int64(1))})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)

	res, err = b.Write(ctx, &backends.WriteParams{
		Collection: "c",
		Data:       arr(doc("a", int64(2)), doc("a", int64(3))),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)

	res, err = b.Write(ctx, &backends.WriteParams{
		Collection: "c",
		Data:       []*types.Document{doc("a", int64(4))},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)

	res, err = b.Write(ctx, &backends.WriteParams{
		Collection: "c",
		Data:       doc("b", "x"),
		Query:      doc("a.$gte", int64(3)),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)

	read, err := b.Read(ctx, &backends.ReadParams{
		Collection: "c",
		Query:      doc("b", "x"),
		Selection:  doc("a", int64(1), "_id", int64(0)),
	})
	require.NoError(t, err)
	testutil.AssertEqualSlices(t, []*types.Document{doc("a", int64(3)), doc("a", int64(4))}, read.Docs)

	t.Run("Upsert", func(t *testing.T) {
		res, err := b.Write(ctx, &backends.WriteParams{
			Collection: "upsert",
			Data:       doc("b", int64(1)),
			Query:      doc("a", int64(1)),
			Upsert:     true,
		})
		require.NoError(t, err)
		assert.Equal(t, &backends.WriteResult{Count: 0, UpsertedID: int64(1)}, res)

		res, err = b.Write(ctx, &backends.WriteParams{
			Collection: "upsert",
			Data:       doc("b", int64(2)),
			Query:      doc("a", int64(1)),
			Upsert:     true,
		})
		require.NoError(t, err)
		assert.Equal(t, &backends.WriteResult{Count: 1}, res)
	})

	t.Run("Invalid", func(t *testing.T) {
		for name, params := range map[string]*backends.WriteParams{
			"Scalar":         {Collection: "c", Data: int64(1)},
			"Nil":            {Collection: "c"},
			"NilDocument":    {Collection: "c", Data: (*types.Document)(nil)},
			"ArrayOfScalars": {Collection: "c", Data: arr(doc(), int64(1))},
			"UpdateBatch":    {Collection: "c", Data: arr(doc(), doc()), Query: doc()},
		} {
			t.Run(name, func(t *testing.T) {
				_, err := b.Write(ctx, params)
				assertErrorCode(t, err, backends.ErrorCodeInvalidDocument)
			})
		}

		_, err := b.Write(ctx, &backends.WriteParams{Collection: "$invalid", Data: doc()})
		assertErrorCode(t, err, backends.ErrorCodeCollectionNameIsInvalid)
	})
}

func TestDatabaseReadAndWrite(t *testing.T) {
	t.Parallel()
	ctx := testutil.Ctx(t)

	_, b := setupDatabase(t)

	_, err := b.Write(ctx, &backends.WriteParams{
		Collection: "c",
		Data:       arr(doc("a", int64(2), "b", int64(0), "_id", int64(1)), doc("a", int64(1), "b", int64(0), "_id", int64(3))),
	})
	require.NoError(t, err)

	res, err := b.ReadAndWrite(ctx, &backends.ReadAndWriteParams{
		Collection: "c",
		Query:      doc("a", int64(1)),
		Data:       doc("b", int64(9)),
	})
	require.NoError(t, err)
	testutil.AssertEqual(t, doc("a", int64(1), "b", int64(9), "_id", int64(3)), res.Doc)

	res, err = b.ReadAndWrite(ctx, &backends.ReadAndWriteParams{
		Collection: "c",
		Query:      doc("a", int64(42)),
		Data:       doc("b", int64(7)),
	})
	require.NoError(t, err)
	assert.Nil(t, res.Doc)

	res, err = b.ReadAndWrite(ctx, &backends.ReadAndWriteParams{
		Collection: "c",
		Query:      doc("b", int64(0)),
		Data:       doc("_id", int64(10), "c", true),
		Selection:  doc("c", int64(1)),
	})
	require.NoError(t, err)
	testutil.AssertEqual(t, doc("_id", int64(10), "c", true), res.Doc)

	read, err := b.Read(ctx, &backends.ReadParams{Collection: "c"})
	require.NoError(t, err)
	testutil.AssertEqualSlices(t, []*types.Document{
		doc("a", int64(2), "b", int64(0), "_id", int64(10), "c", true),
		doc("a", int64(1), "b", int64(9), "_id", int64(3)),
	}, read.Docs)

	_, err = b.ReadAndWrite(ctx, &backends.ReadAndWriteParams{
		Collection: "c",
		Query:      doc("a", int64(2)),
		Data:       doc("b", int64(1)),
		Selection:  doc("a", int64(1), "b", int64(0)),
	})
	assertErrorCode(t, err, backends.ErrorCodeInvalidSelection)

	count, err := b.Count(ctx, &backends.CountParams{Collection: "c", Query: doc("b", int64(1))})
	require.NoError(t, err)
	assert.Equal(t, 0, count.Count, "failed selection must not update documents")

	t.Run("NaNID", func(t *testing.T) {
		_, err := b.Write(ctx, &backends.WriteParams{Collection: "nan", Data: doc("_id", math.NaN(), "a", int64(1))})
		require.NoError(t, err)

		res, err := b.ReadAndWrite(ctx, &backends.ReadAndWriteParams{
			Collection: "nan",
			Query:      doc("a", int64(1)),
			Data:       doc("a", int64(2)),
		})
		require.NoError(t, err)
		testutil.AssertEqual(t, doc("_id", math.NaN(), "a", int64(2)), res.Doc)

		count, err := b.Count(ctx, &backends.CountParams{Collection: "nan", Query: doc("a", int64(2))})
		require.NoError(t, err)
		assert.Equal(t, 1, count.Count)
	})
}

func TestDatabaseReadExclusion(t *testing.T) {
	t.Parallel()
	ctx := testutil.Ctx(t)

	_, b := setupDatabase(t)

	_, err := b.Write(ctx, &backends.WriteParams{
		Collection: "c",
		Data: arr(
			doc("a", int64(1), "b", int64(2), "_id", int64(7)),
			doc("a", doc("b", int64(1)), "c", int64(2), "_id", int64(8)),
		),
	})
	require.NoError(t, err)

	res, err := b.Read(ctx, &backends.ReadParams{Collection: "c", Selection: doc("a", int64(0))})
	require.NoError(t, err)
	testutil.AssertEqualSlices(t, []*types.Document{
		doc("b", int64(2), "_id", int64(7)),
		doc("a", doc("b", int64(1)), "c", int64(2), "_id", int64(8)),
	}, res.Docs)

	res, err = b.Read(ctx, &backends.ReadParams{Collection: "c", Selection: doc("a.b", int64(0), "_id", int64(0))})
	require.NoError(t, err)
	testutil.AssertEqualSlices(t, []*types.Document{
		doc("a", int64(1), "b", int64(2)),
		doc("c", int64(2)),
	}, res.Docs)
}

func TestDatabaseCollections(t *testing.T) {
	t.Parallel()
	ctx := testutil.Ctx(t)

	db, b := setupDatabase(t)

	err := b.EnsureIndex(ctx, &backends.EnsureIndexParams{Collection: "b", Keys: backends.IndexField("x"), Unique: true})
	require.NoError(t, err)

	_, err = b.Write(ctx, &backends.WriteParams{Collection: "a", Data: arr(doc(), doc())})
	require.NoError(t, err)

	list, err := b.ListCollections(ctx, new(backends.ListCollectionsParams))
	require.NoError(t, err)
	assert.Equal(t, []backends.CollectionInfo{
		{Name: "a", Documents: 2, Indexes: [][]string{{"_id"}}},
		{Name: "b", Documents: 0, Indexes: [][]string{{"_id"}, {"x"}}},
	}, list.Collections)

	removed, err := b.Remove(ctx, &backends.RemoveParams{Collection: "a", Query: doc("_id", int64(1))})
	require.NoError(t, err)
	assert.Equal(t, 1, removed.Deleted)

	require.NoError(t, b.DropCollection(ctx, &backends.DropCollectionParams{Name: "b"}))
	require.NoError(t, b.DropCollection(ctx, &backends.DropCollectionParams{Name: "none"}))
	assert.False(t, db.HasCollection("b"))
	assert.False(t, db.HasCollection("none"))

	c, err := db.Collection("b")
	require.NoError(t, err)
	assert.Equal(t, "b", c.Name())
	assert.Equal(t, [][]string{{"_id"}}, c.Indexes())
}

func TestDatabaseMetrics(t *testing.T) {
	t.Parallel()
	ctx := testutil.Ctx(t)

	db, b := setupDatabase(t)

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(db))

	_, err := b.Write(ctx, &backends.WriteParams{Collection: "c", Data: arr(doc("_id", int64(1)), doc())})
	require.NoError(t, err)

	_, err = b.Write(ctx, &backends.WriteParams{Collection: "c", Data: doc("_id", int64(1))})
	assertErrorCode(t, err, backends.ErrorCodeDuplicateKey)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	families := make(map[string]*dto.MetricFamily, len(mfs))
	for _, mf := range mfs {
		families[mf.GetName()] = mf
	}

	ops := families["ephemeraldb_database_operations_total"]
	require.NotNil(t, ops)

	results := map[string]float64{}
	for _, m := range ops.GetMetric() {
		labels := map[string]string{}
		for _, l := range m.GetLabel() {
			labels[l.GetName()] = l.GetValue()
		}

		results[labels["operation"]+"/"+labels["result"]] = m.GetCounter().GetValue()
	}

	assert.Equal(t, map[string]float64{"write/ok": 1, "write/DuplicateKey": 1}, results)

	docs := families["ephemeraldb_database_documents"]
	require.NotNil(t, docs)
	require.Len(t, docs.GetMetric(), 1)
	assert.Equal(t, 2.0, docs.GetMetric()[0].GetGauge().GetValue())

	colls := families["ephemeraldb_database_collections"]
	require.NotNil(t, colls)
	assert.Equal(t, 1.0, colls.GetMetric()[0].GetGauge().GetValue())
}
