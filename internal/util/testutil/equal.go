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

package testutil

import (
	"fmt"
	"testing"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FerretDB/EphemeralDB/internal/bson"
	"github.com/FerretDB/EphemeralDB/internal/types"
	"github.com/FerretDB/EphemeralDB/internal/util/must"
)

// AssertEqual asserts that two values are identical: same types, same values, same fields order.
func AssertEqual[T types.Type](t testing.TB, expected, actual T) bool {
	t.Helper()

	if types.Identical(expected, actual) {
		return true
	}

	expectedS, actualS, diff := diffValues(t, expected, actual)
	msg := fmt.Sprintf("Not equal: \nexpected: %s\nactual  : %s\n%s", expectedS, actualS, diff)
	return assert.Fail(t, msg)
}

// AssertEqualSlices asserts that two document slices are identical.
func AssertEqualSlices(t testing.TB, expected, actual []*types.Document) bool {
	t.Helper()

	e := must.NotFail(types.NewArray())
	for _, doc := range expected {
		must.NoError(e.Append(doc))
	}

	a := must.NotFail(types.NewArray())
	for _, doc := range actual {
		must.NoError(a.Append(doc))
	}

	return AssertEqual(t, e, a)
}

// diffValues returns a readable form of given values and the difference between them.
func diffValues[T types.Type](t testing.TB, expected, actual T) (expectedS string, actualS string, diff string) {
	expectedS = dump(t, expected)
	actualS = dump(t, actual)

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(expectedS),
		FromFile: "expected",
		B:        difflib.SplitLines(actualS),
		ToFile:   "actual",
		Context:  1,
	})
	require.NoError(t, err)

	return
}

// dump returns an indented Extended JSON representation of the value.
//
// Integers and floats are distinguished by Extended JSON itself.
func dump(t testing.TB, v any) string {
	doc := must.NotFail(types.NewDocument("v", v))

	b, err := bson.MarshalExtJSONIndent(doc, "  ")
	require.NoError(t, err)

	return string(b)
}
