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
	"github.com/FerretDB/EphemeralDB/internal/util/testutil"
)

func TestCollectionInsertID(t *testing.T) {
	t.Parallel()

	c := newTestCollection(t)

	n, err := c.InsertMany([]*types.Document{doc("a", int64(1))})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = c.InsertMany([]*types.Document{doc("_id", int64(10)), doc("a", int64(2)), doc("_id", "str")})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = c.InsertMany([]*types.Document{doc("_id", 12.5), doc("a", int64(3))})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	docs, err := c.Find(nil, doc("_id", int64(1)))
	require.NoError(t, err)
	testutil.AssertEqualSlices(t, []*types.Document{
		doc("_id", int64(1)),
		doc("_id", int64(10)),
		doc("_id", int64(11)),
		doc("_id", "str"),
		doc("_id", 12.5),
		doc("_id", int64(13)),
	}, docs)

	t.Run("DoesNotModifyInput", func(t *testing.T) {
		t.Parallel()

		c := newTestCollection(t)

		in := doc("a", int64(1))
		_, err := c.InsertMany([]*types.Document{in})
		require.NoError(t, err)

		testutil.AssertEqual(t, doc("a", int64(1)), in)

		docs, err := c.Find(nil, nil)
		require.NoError(t, err)
		testutil.AssertEqualSlices(t, []*types.Document{doc("a", int64(1), "_id", int64(1))}, docs)
	})

	t.Run("OverlappingPaths", func(t *testing.T) {
		t.Parallel()

		c := newTestCollection(t)

		_, err := c.InsertMany([]*types.Document{doc("x", int64(1))})
		require.NoError(t, err)

		_, err = c.InsertMany([]*types.Document{doc("_id", int64(5), "a", int64(1), "a.b", int64(2))})
		assertErrorCode(t, err, backends.ErrorCodeInternalConsistency)
		assert.Equal(t, 1, c.Len())

		docs, err := c.Find(nil, nil)
		require.NoError(t, err)
		testutil.AssertEqualSlices(t, []*types.Document{doc("x", int64(1), "_id", int64(1))}, docs)

		n, err := c.Count(nil)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		// rejected document did not register its _id
		_, err = c.InsertMany([]*types.Document{doc("_id", int64(5))})
		require.NoError(t, err)
	})
}

func TestCollectionUniqueIndex(t *testing.T) {
	t.Parallel()

	t.Run("InsertDuplicate", func(t *testing.T) {
		t.Parallel()

		c := newTestCollection(t)
		require.NoError(t, c.CreateIndex(backends.IndexField("a"), true))

		_, err := c.InsertMany([]*types.Document{doc("a", int64(1))})
		require.NoError(t, err)

		_, err = c.InsertMany([]*types.Document{doc("a", int64(1))})
		assertErrorCode(t, err, backends.ErrorCodeDuplicateKey)

		arg, ok := backends.ErrorArgument(err).(*backends.DuplicateKeyArgument)
		require.True(t, ok)
		assert.Equal(t, []string{"a"}, arg.Index)
		assert.Equal(t, []any{int64(1)}, arg.Value)

		_, err = c.InsertMany([]*types.Document{doc("a", 1.0)})
		assertErrorCode(t, err, backends.ErrorCodeDuplicateKey)

		n, err := c.Count(doc())
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("DuplicateID", func(t *testing.T) {
		t.Parallel()

		c := newTestCollection(t)

		_, err := c.InsertMany([]*types.Document{doc("_id", int64(1))})
		require.NoError(t, err)

		_, err = c.InsertMany([]*types.Document{doc("_id", int64(1))})
		assertErrorCode(t, err, backends.ErrorCodeDuplicateKey)
	})

	t.Run("BatchIsNotAtomic", func(t *testing.T) {
		t.Parallel()

		c := newTestCollection(t)
		require.NoError(t, c.CreateIndex(backends.IndexField("a"), true))

		_, err := c.InsertMany([]*types.Document{
			doc("a", int64(1)),
			doc("a", int64(2)),
			doc("a", int64(1)),
			doc("a", int64(3)),
		})
		assertErrorCode(t, err, backends.ErrorCodeDuplicateKey)

		docs, err := c.Find(nil, doc("_id", int64(0)))
		require.NoError(t, err)
		testutil.AssertEqualSlices(t, []*types.Document{doc("a", int64(1)), doc("a", int64(2))}, docs)
	})

	t.Run("CreateOnDuplicates", func(t *testing.T) {
		t.Parallel()

		c := newTestCollection(t)

		_, err := c.InsertMany([]*types.Document{
			doc("a", int64(1)),
			doc("a", int64(2)),
			doc("a", int64(1)),
			doc("a", int64(5)),
		})
		require.NoError(t, err)

		err = c.CreateIndex(backends.IndexField("a"), true)
		assertErrorCode(t, err, backends.ErrorCodeDuplicateKey)

		assert.Equal(t, [][]string{{"_id"}, {"a"}}, c.Indexes())

		// values registered before the collision are enforced
		_, err = c.InsertMany([]*types.Document{doc("a", int64(2))})
		assertErrorCode(t, err, backends.ErrorCodeDuplicateKey)

		_, err = c.InsertMany([]*types.Document{doc("a", int64(1))})
		assertErrorCode(t, err, backends.ErrorCodeDuplicateKey)

		// the scan stopped before that document
		_, err = c.InsertMany([]*types.Document{doc("a", int64(5))})
		require.NoError(t, err)

		// creating it again does nothing
		require.NoError(t, c.CreateIndex(backends.IndexKey{{Field: "a", Order: backends.IndexOrderAscending}}, true))
	})

	t.Run("Compound", func(t *testing.T) {
		t.Parallel()

		c := newTestCollection(t)
		keys := backends.IndexKey{
			{Field: "a", Order: backends.IndexOrderAscending},
			{Field: "b.c", Order: backends.IndexOrderDescending},
		}
		require.NoError(t, c.CreateIndex(keys, true))

		_, err := c.InsertMany([]*types.Document{
			doc("a", int64(1), "b", doc("c", int64(1))),
			doc("a", int64(1), "b", doc("c", int64(2))),
			doc("a", int64(2), "b", doc("c", int64(1))),
		})
		require.NoError(t, err)

		_, err = c.InsertMany([]*types.Document{doc("b", doc("c", int64(2)), "a", int64(1))})
		assertErrorCode(t, err, backends.ErrorCodeDuplicateKey)

		arg := backends.ErrorArgument(err).(*backends.DuplicateKeyArgument)
		assert.Equal(t, []string{"a", "b.c"}, arg.Index)
		assert.Equal(t, []any{int64(1), int64(2)}, arg.Value)
	})

	t.Run("MissingFieldIsNull", func(t *testing.T) {
		t.Parallel()

		c := newTestCollection(t)
		require.NoError(t, c.CreateIndex(backends.IndexField("a"), true))

		_, err := c.InsertMany([]*types.Document{doc("b", int64(1))})
		require.NoError(t, err)

		_, err = c.InsertMany([]*types.Document{doc("a", types.Null)})
		assertErrorCode(t, err, backends.ErrorCodeDuplicateKey)
	})

	t.Run("NotUnique", func(t *testing.T) {
		t.Parallel()

		c := newTestCollection(t)
		require.NoError(t, c.CreateIndex(backends.IndexField("a"), false))
		assert.Equal(t, [][]string{{"_id"}}, c.Indexes())

		_, err := c.InsertMany([]*types.Document{doc("a", int64(1)), doc("a", int64(1))})
		require.NoError(t, err)
	})

	t.Run("EmptyKeys", func(t *testing.T) {
		t.Parallel()

		c := newTestCollection(t)
		err := c.CreateIndex(nil, true)
		assertErrorCode(t, err, backends.ErrorCodeInvalidDocument)
	})

	t.Run("UpdateIsNotChecked", func(t *testing.T) {
		t.Parallel()

		c := newTestCollection(t)
		require.NoError(t, c.CreateIndex(backends.IndexField("a"), true))

		_, err := c.InsertMany([]*types.Document{doc("a", int64(1)), doc("a", int64(2))})
		require.NoError(t, err)

		n, err := c.UpdateMany(doc("a", int64(2)), doc("$set", doc("a", int64(1))))
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = c.Count(doc("a", int64(1)))
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})
}

func TestCollectionFind(t *testing.T) {
	t.Parallel()

	c := newTestCollection(t)

	_, err := c.InsertMany([]*types.Document{doc("x", int64(3)), doc("x", int64(5)), doc("x", int64(9))})
	require.NoError(t, err)

	docs, err := c.Find(doc("x.$gte", int64(5)), nil)
	require.NoError(t, err)
	testutil.AssertEqualSlices(t, []*types.Document{
		doc("x", int64(5), "_id", int64(2)),
		doc("x", int64(9), "_id", int64(3)),
	}, docs)

	docs, err = c.Find(doc("x", int64(4)), nil)
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.NotNil(t, docs)

	n, err := c.Count(doc("x.$in", arr(int64(3), int64(9))))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	t.Run("ErrorsOnEmptyCollection", func(t *testing.T) {
		t.Parallel()

		c := newTestCollection(t)

		_, err := c.Find(doc("x.$ne", int64(1)), nil)
		assertErrorCode(t, err, backends.ErrorCodeUnsupportedOperator)

		_, err = c.Find(nil, doc("a", int64(1), "b", int64(0)))
		assertErrorCode(t, err, backends.ErrorCodeInvalidSelection)

		_, err = c.Count(doc("x.$ne", int64(1)))
		assertErrorCode(t, err, backends.ErrorCodeUnsupportedOperator)

		_, err = c.DeleteMany(doc("x.$ne", int64(1)))
		assertErrorCode(t, err, backends.ErrorCodeUnsupportedOperator)
	})
}

func TestCollectionUpdateMany(t *testing.T) {
	t.Parallel()

	c := newTestCollection(t)

	_, err := c.InsertMany([]*types.Document{
		doc("a", int64(1), "b", int64(0)),
		doc("a", int64(2), "b", int64(0)),
		doc("a", int64(1), "b", int64(0)),
	})
	require.NoError(t, err)

	n, err := c.UpdateMany(doc("a", int64(1)), doc("$set", doc("b", int64(9))))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = c.UpdateMany(doc("a", int64(3)), doc("b", int64(7)))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	docs, err := c.Find(nil, doc("_id", int64(0)))
	require.NoError(t, err)
	testutil.AssertEqualSlices(t, []*types.Document{
		doc("a", int64(1), "b", int64(9)),
		doc("a", int64(2), "b", int64(0)),
		doc("a", int64(1), "b", int64(9)),
	}, docs)

	_, err = c.UpdateMany(doc("a.$ne", int64(1)), doc("b", int64(1)))
	assertErrorCode(t, err, backends.ErrorCodeUnsupportedOperator)

	_, err = c.UpdateMany(nil, doc("$set", "x"))
	assertErrorCode(t, err, backends.ErrorCodeInvalidDocument)
}

func TestCollectionUpsert(t *testing.T) {
	t.Parallel()

	c := newTestCollection(t)

	_, err := c.InsertMany([]*types.Document{doc("a", int64(1))})
	require.NoError(t, err)

	n, id, err := c.Upsert(doc("a", int64(1)), doc("$set", doc("b", int64(2))))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Nil(t, id)

	n, id, err = c.Upsert(doc("a", int64(5), "x.$gt", int64(1)), doc("$set", doc("b", int64(3))))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, int64(2), id)

	docs, err := c.Find(doc("_id", int64(2)), nil)
	require.NoError(t, err)
	testutil.AssertEqualSlices(t, []*types.Document{doc("a", int64(5), "b", int64(3), "_id", int64(2))}, docs)

	// without $set, update is inserted as is
	n, id, err = c.Upsert(doc("a", int64(7)), doc("c", int64(1)))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, int64(3), id)

	docs, err = c.Find(doc("_id", int64(3)), nil)
	require.NoError(t, err)
	testutil.AssertEqualSlices(t, []*types.Document{doc("c", int64(1), "_id", int64(3))}, docs)
}

func TestCollectionDeleteMany(t *testing.T) {
	t.Parallel()

	c := newTestCollection(t)
	require.NoError(t, c.CreateIndex(backends.IndexField("a"), true))

	_, err := c.InsertMany([]*types.Document{doc("a", int64(1)), doc("a", int64(2)), doc("a", int64(3))})
	require.NoError(t, err)

	n, err := c.DeleteMany(doc("a", int64(1)))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = c.Count(nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// stale index entries are kept
	_, err = c.InsertMany([]*types.Document{doc("a", int64(1))})
	assertErrorCode(t, err, backends.ErrorCodeDuplicateKey)

	// new _id continues from the remaining documents
	_, err = c.InsertMany([]*types.Document{doc("a", int64(4))})
	require.NoError(t, err)

	docs, err := c.Find(doc("a", int64(4)), doc("_id", int64(1)))
	require.NoError(t, err)
	testutil.AssertEqualSlices(t, []*types.Document{doc("_id", int64(4))}, docs)

	n, err = c.DeleteMany(nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 0, c.Len())
}

func TestCollectionDrop(t *testing.T) {
	t.Parallel()

	c := newTestCollection(t)
	require.NoError(t, c.CreateIndex(backends.IndexField("a"), true))

	_, err := c.InsertMany([]*types.Document{doc("_id", int64(1), "a", int64(1))})
	require.NoError(t, err)

	c.Drop()
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Indexes())

	_, err = c.InsertMany([]*types.Document{doc("_id", int64(1), "a", int64(1)), doc("_id", int64(1), "a", int64(1))})
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
}
