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
	"fmt"
	"strings"

	"github.com/FerretDB/EphemeralDB/internal/backends"
	"github.com/FerretDB/EphemeralDB/internal/types"
	"github.com/FerretDB/EphemeralDB/internal/util/must"
)

// projection is a parsed selection.
//
// A nil projection selects whole documents.
type projection struct {
	paths     []string // included path prefixes, or excluded exact paths if exclusion is true
	exclusion bool
	id        bool // include _id
}

// newProjection flattens and validates selection.
//
// All values must be 0 or 1 (as integers, floats or booleans).
// Inclusion and exclusion can't be mixed, except for _id that is included unless set to 0.
// Included paths select stored paths nested under them;
// excluded paths remove only stored paths equal to them.
func newProjection(selection *types.Document) (*projection, error) {
	if selection.Len() == 0 {
		return nil, nil
	}

	flat, err := types.Flatten(selection)
	if err != nil {
		return nil, backends.NewError(backends.ErrorCodeInvalidSelection, err)
	}

	p := &projection{id: true}

	var included, excluded []string

	for _, key := range flat.Keys() {
		v := must.NotFail(flat.Get(key))

		include, ok := selectionFlag(v)
		if !ok {
			err = fmt.Errorf("selection value for %q must be 0 or 1, got %s", key, types.FormatAnyValue(v))
			return nil, backends.NewError(backends.ErrorCodeInvalidSelection, err)
		}

		switch {
		case key == "_id":
			p.id = include
		case include:
			included = append(included, key)
		default:
			excluded = append(excluded, key)
		}
	}

	switch {
	case len(included) > 0 && len(excluded) > 0:
		err = fmt.Errorf("cannot mix selection with 1 and 0s except for _id: %s", types.FormatAnyValue(selection))
		return nil, backends.NewError(backends.ErrorCodeInvalidSelection, err)

	case len(included) > 0:
		p.paths = included

	case len(excluded) == 0 && p.id:
		// {_id: 1} selects only _id

	default:
		p.paths = excluded
		p.exclusion = true
	}

	return p, nil
}

// selectionFlag converts a selection value to inclusion flag.
func selectionFlag(v any) (include, ok bool) {
	switch v := v.(type) {
	case int64:
		return v == 1, v == 0 || v == 1
	case float64:
		return v == 1, v == 0 || v == 1
	case bool:
		return v, true
	default:
		return false, false
	}
}

// pathMatches returns true if path is equal to selected or nested under it.
//
// "a.b.c" matches "a.b", but not "a.bx".
func pathMatches(path, selected string) bool {
	if path == selected {
		return true
	}

	return strings.HasPrefix(path, selected) && path[len(selected)] == types.PathSeparator[0]
}

// includes returns true if the stored path should be returned.
func (p *projection) includes(path string) bool {
	if pathMatches(path, "_id") {
		return p.id
	}

	for _, selected := range p.paths {
		if p.exclusion {
			if path == selected {
				return false
			}

			continue
		}

		if pathMatches(path, selected) {
			return true
		}
	}

	return p.exclusion
}

// apply returns a nested copy of the document with selected fields.
func (p *projection) apply(d *document) (*types.Document, error) {
	if p == nil {
		return d.toDocument()
	}

	selected := new(types.Document)

	for _, path := range d.data.Keys() {
		if p.includes(path) {
			must.NoError(selected.Set(path, must.NotFail(d.data.Get(path))))
		}
	}

	res, err := types.Unflatten(selected)
	if err != nil {
		return nil, internalError(err)
	}

	return res, nil
}
