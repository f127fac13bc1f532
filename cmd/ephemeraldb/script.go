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

package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/FerretDB/EphemeralDB/internal/backends"
	"github.com/FerretDB/EphemeralDB/internal/bson"
	"github.com/FerretDB/EphemeralDB/internal/types"
	"github.com/FerretDB/EphemeralDB/internal/util/lazyerrors"
	"github.com/FerretDB/EphemeralDB/internal/util/must"
)

// maxLineSize is the maximal size of a single script line.
const maxLineSize = 16 * 1024 * 1024

// command is a single parsed script line.
type command struct {
	op         string
	collection string
	data       any
	query      *types.Document
	selection  *types.Document
	keys       backends.IndexKey
	unique     bool
	upsert     bool
}

// scriptRunner executes script commands against the backend and writes results.
type scriptRunner struct {
	b        backends.Backend
	w        io.Writer
	l        *zap.Logger
	failFast bool

	commands int
	failed   int
}

// run executes all commands from r until EOF or context cancellation.
//
// Each command produces exactly one line of relaxed Extended JSON.
// Failed commands produce an error document; with failFast, the first failure stops the script.
func (s *scriptRunner) run(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var line int

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line++

		b := bytes.TrimSpace(scanner.Bytes())
		if len(b) == 0 {
			continue
		}

		s.commands++

		res, err := s.execute(ctx, b)
		if err != nil {
			s.failed++
			s.l.Debug("Command failed", zap.Int("line", line), zap.Error(err))

			res = errorResult(err)
		}

		out, merr := bson.MarshalExtJSON(res)
		if merr != nil {
			return lazyerrors.Error(merr)
		}

		if _, merr = fmt.Fprintf(s.w, "%s\n", out); merr != nil {
			return lazyerrors.Error(merr)
		}

		if err != nil && s.failFast {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}

	return scanner.Err()
}

// execute parses and runs a single command.
func (s *scriptRunner) execute(ctx context.Context, line []byte) (*types.Document, error) {
	doc, err := bson.UnmarshalExtJSON(line)
	if err != nil {
		return nil, err
	}

	cmd, err := parseCommand(doc)
	if err != nil {
		return nil, err
	}

	s.l.Debug("Executing command", zap.String("op", cmd.op), zap.String("collection", cmd.collection))

	switch cmd.op {
	case "ensure_index":
		err = s.b.EnsureIndex(ctx, &backends.EnsureIndexParams{
			Collection: cmd.collection,
			Keys:       cmd.keys,
			Unique:     cmd.unique,
		})
		if err != nil {
			return nil, err
		}

		return okResult(), nil

	case "write":
		res, err := s.b.Write(ctx, &backends.WriteParams{
			Collection: cmd.collection,
			Data:       cmd.data,
			Query:      cmd.query,
			Upsert:     cmd.upsert,
		})
		if err != nil {
			return nil, err
		}

		out := okResult("n", int64(res.Count))
		if res.UpsertedID != nil {
			must.NoError(out.Set("upserted", res.UpsertedID))
		}

		return out, nil

	case "read":
		res, err := s.b.Read(ctx, &backends.ReadParams{
			Collection: cmd.collection,
			Query:      cmd.query,
			Selection:  cmd.selection,
		})
		if err != nil {
			return nil, err
		}

		docs := types.MakeArray(len(res.Docs))
		for _, d := range res.Docs {
			must.NoError(docs.Append(d))
		}

		return okResult("docs", docs), nil

	case "read_and_write":
		data, ok := cmd.data.(*types.Document)
		if !ok {
			return nil, fmt.Errorf("read_and_write: data must be a document")
		}

		res, err := s.b.ReadAndWrite(ctx, &backends.ReadAndWriteParams{
			Collection: cmd.collection,
			Query:      cmd.query,
			Data:       data,
			Selection:  cmd.selection,
		})
		if err != nil {
			return nil, err
		}

		if res.Doc == nil {
			return okResult("doc", types.Null), nil
		}

		return okResult("doc", res.Doc), nil

	case "count":
		res, err := s.b.Count(ctx, &backends.CountParams{
			Collection: cmd.collection,
			Query:      cmd.query,
		})
		if err != nil {
			return nil, err
		}

		return okResult("n", int64(res.Count)), nil

	case "remove":
		res, err := s.b.Remove(ctx, &backends.RemoveParams{
			Collection: cmd.collection,
			Query:      cmd.query,
		})
		if err != nil {
			return nil, err
		}

		return okResult("n", int64(res.Deleted)), nil

	case "list_collections":
		res, err := s.b.ListCollections(ctx, new(backends.ListCollectionsParams))
		if err != nil {
			return nil, err
		}

		colls := types.MakeArray(len(res.Collections))
		for _, c := range res.Collections {
			indexes := types.MakeArray(len(c.Indexes))
			for _, idx := range c.Indexes {
				fields := types.MakeArray(len(idx))
				for _, f := range idx {
					must.NoError(fields.Append(f))
				}

				must.NoError(indexes.Append(fields))
			}

			must.NoError(colls.Append(must.NotFail(types.NewDocument(
				"name", c.Name,
				"documents", int64(c.Documents),
				"indexes", indexes,
			))))
		}

		return okResult("collections", colls), nil

	case "drop_collection":
		if err = s.b.DropCollection(ctx, &backends.DropCollectionParams{Name: cmd.collection}); err != nil {
			return nil, err
		}

		return okResult(), nil

	default:
		return nil, fmt.Errorf("unknown op %q", cmd.op)
	}
}

// okResult returns a successful result document with additional pairs.
func okResult(pairs ...any) *types.Document {
	return must.NotFail(types.NewDocument(append([]any{"ok", int64(1)}, pairs...)...))
}

// errorResult returns a failed result document for the given error.
func errorResult(err error) *types.Document {
	res := must.NotFail(types.NewDocument("ok", int64(0)))

	var e *backends.Error
	if errors.As(err, &e) {
		must.NoError(res.Set("code", e.Code().String()))

		if arg, ok := backends.ErrorArgument(e).(*backends.DuplicateKeyArgument); ok {
			fields := types.MakeArray(len(arg.Index))
			for _, f := range arg.Index {
				must.NoError(fields.Append(f))
			}

			values := must.NotFail(types.NewArray(arg.Value...))

			must.NoError(res.Set("index", fields))
			must.NoError(res.Set("value", values))
		}
	}

	must.NoError(res.Set("errmsg", err.Error()))

	return res
}

// parseCommand converts a script line document to command.
func parseCommand(doc *types.Document) (*command, error) {
	var cmd command
	var err error

	for _, k := range doc.Keys() {
		v := must.NotFail(doc.Get(k))

		switch k {
		case "op":
			cmd.op, err = getString(k, v)
		case "collection":
			cmd.collection, err = getString(k, v)
		case "data":
			cmd.data = v
		case "query":
			cmd.query, err = getDocument(k, v)
		case "selection":
			cmd.selection, err = getDocument(k, v)
		case "keys":
			cmd.keys, err = parseIndexKey(v)
		case "unique":
			cmd.unique, err = getBool(k, v)
		case "upsert":
			cmd.upsert, err = getBool(k, v)
		default:
			err = fmt.Errorf("unknown field %q", k)
		}

		if err != nil {
			return nil, err
		}
	}

	if cmd.op == "" {
		return nil, errors.New("op is required")
	}

	return &cmd, nil
}

// parseIndexKey accepts a field name, an array of field names or [field, order] pairs,
// or a document of field/order pairs.
func parseIndexKey(v any) (backends.IndexKey, error) {
	switch v := v.(type) {
	case string:
		return backends.IndexField(v), nil

	case *types.Document:
		res := make(backends.IndexKey, 0, v.Len())

		for _, f := range v.Keys() {
			order, err := parseIndexOrder(must.NotFail(v.Get(f)))
			if err != nil {
				return nil, err
			}

			res = append(res, backends.IndexKeyPair{Field: f, Order: order})
		}

		return res, nil

	case *types.Array:
		res := make(backends.IndexKey, 0, v.Len())

		for i := 0; i < v.Len(); i++ {
			switch el := must.NotFail(v.Get(i)).(type) {
			case string:
				res = append(res, backends.IndexKeyPair{Field: el})

			case *types.Array:
				if el.Len() != 2 {
					return nil, fmt.Errorf("keys: expected [field, order] pair, got %s", types.FormatAnyValue(el))
				}

				f, ok := must.NotFail(el.Get(0)).(string)
				if !ok {
					return nil, fmt.Errorf("keys: expected field name, got %s", types.FormatAnyValue(el))
				}

				order, err := parseIndexOrder(must.NotFail(el.Get(1)))
				if err != nil {
					return nil, err
				}

				res = append(res, backends.IndexKeyPair{Field: f, Order: order})

			default:
				return nil, fmt.Errorf("keys: unexpected element %s", types.FormatAnyValue(el))
			}
		}

		return res, nil

	default:
		return nil, fmt.Errorf("keys: unexpected value %s", types.FormatAnyValue(v))
	}
}

// parseIndexOrder converts 1 or -1 to index order.
func parseIndexOrder(v any) (backends.IndexOrder, error) {
	var order float64

	switch v := v.(type) {
	case int64:
		order = float64(v)
	case float64:
		order = v
	}

	switch order {
	case 1:
		return backends.IndexOrderAscending, nil
	case -1:
		return backends.IndexOrderDescending, nil
	default:
		return 0, fmt.Errorf("keys: index order must be 1 or -1, got %s", types.FormatAnyValue(v))
	}
}

// getString returns v as a string.
func getString(field string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s: expected string, got %s", field, types.FormatAnyValue(v))
	}

	return s, nil
}

// getBool returns v as a boolean.
func getBool(field string, v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%s: expected boolean, got %s", field, types.FormatAnyValue(v))
	}

	return b, nil
}

// getDocument returns v as a document; null is returned as nil.
func getDocument(field string, v any) (*types.Document, error) {
	switch v := v.(type) {
	case *types.Document:
		return v, nil
	case types.NullType:
		return nil, nil
	default:
		return nil, fmt.Errorf("%s: expected document, got %s", field, types.FormatAnyValue(v))
	}
}
