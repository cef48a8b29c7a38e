// Copyright 2024 Mango Authors
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

package mango

import (
	"context"
	"errors"
	"log/slog"

	"github.com/AlekSi/pointer"

	"github.com/mangodb/mango/bson"
	"github.com/mangodb/mango/internal/util/iterator"
	"github.com/mangodb/mango/internal/util/lazyerrors"
	"github.com/mangodb/mango/internal/util/must"
	"github.com/mangodb/mango/internal/util/resource"
)

// Cursor streams documents produced by a find command,
// fetching additional batches with getMore as needed.
//
// The usual pattern is
//
//	for cur.Next(ctx) {
//		doc, err := cur.Current()
//		...
//	}
//	err := cur.Err()
//
// Cursor is not safe for concurrent use.
type Cursor struct {
	coll   *Collection
	filter bson.RawDocument
	limit  *int64

	// non-zero while the server keeps the cursor open
	id int64

	batch        iterator.Interface[int, bson.RawDocument]
	lastBatchLen int
	current      bson.RawDocument

	started bool
	closed  bool
	err     error

	token *resource.Token
}

// newCursor creates a cursor for this collection.
// A nil limit means no limit.
func (c *Collection) newCursor(limit *int64) *Cursor {
	cur := &Cursor{
		coll:  c,
		limit: limit,
		token: resource.NewToken(),
	}
	resource.Track(cur, cur.token)

	return cur
}

// BindQuery sets the filter for the find command.
//
// It must be called at most once, before the first Next.
func (cur *Cursor) BindQuery(filter bson.RawDocument) error {
	if cur.started {
		return lazyerrors.New("cursor is already started")
	}

	if cur.filter != nil {
		return lazyerrors.New("query is already bound")
	}

	cur.filter = filter

	return nil
}

// Next advances the cursor to the next document.
// It returns false when the cursor is exhausted or an error occurred;
// the two cases are distinguished by Err.
func (cur *Cursor) Next(ctx context.Context) bool {
	if cur.closed || cur.err != nil {
		return false
	}

	if !cur.started {
		cur.started = true

		if err := cur.runFind(ctx); err != nil {
			cur.err = err
			return false
		}
	}

	for {
		_, doc, err := cur.batch.Next()
		if err == nil {
			cur.current = doc
			return true
		}

		if !errors.Is(err, iterator.ErrIteratorDone) {
			cur.err = lazyerrors.Error(err)
			return false
		}

		if cur.id == 0 {
			return false
		}

		if err = cur.runGetMore(ctx); err != nil {
			cur.err = err
			return false
		}

		// an empty non-final batch would loop forever on getMore;
		// treat it as exhaustion (Close still kills the server-side cursor)
		if cur.lastBatchLen == 0 {
			return false
		}
	}
}

// Current returns the document the cursor is positioned at.
// It must be called only after Next returned true.
func (cur *Cursor) Current() (*bson.Document, error) {
	if cur.current == nil {
		return nil, lazyerrors.New("cursor is not positioned")
	}

	doc, err := cur.current.Decode()
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	return doc, nil
}

// Err returns the error that stopped iteration, if any.
func (cur *Cursor) Err() error {
	return cur.err
}

// Close releases the cursor.
//
// If the server-side cursor is still open, a best-effort killCursors is sent.
// Close may be called multiple times.
func (cur *Cursor) Close(ctx context.Context) {
	if cur.closed {
		return
	}

	cur.closed = true

	if cur.id != 0 {
		cmd, err := bson.NewDocument(
			"killCursors", cur.coll.name,
			"cursors", must.NotFail(bson.NewArray(cur.id)),
			"$db", cur.coll.db.name,
		)
		if err == nil {
			if _, err = cur.coll.commandRaw(ctx, cmd); err != nil {
				cur.coll.db.client.l.DebugContext(ctx, "killCursors failed", slog.String("error", err.Error()))
			}
		}
	}

	if cur.batch != nil {
		cur.batch.Close()
		cur.batch = nil
	}

	cur.current = nil

	resource.Untrack(cur, cur.token)
}

// runFind sends the initial find command and installs the first batch.
func (cur *Cursor) runFind(ctx context.Context) error {
	c := cur.coll

	cmd := bson.MakeDocument(7)

	if err := cmd.Add("find", c.name); err != nil {
		return lazyerrors.Error(err)
	}

	if cur.filter != nil {
		if err := cmd.Add("filter", cur.filter); err != nil {
			return lazyerrors.Error(err)
		}
	}

	if cur.limit != nil {
		if err := cmd.Add("limit", pointer.GetInt64(cur.limit)); err != nil {
			return lazyerrors.Error(err)
		}

		if err := cmd.Add("singleBatch", true); err != nil {
			return lazyerrors.Error(err)
		}
	}

	if err := cmd.Add("batchSize", c.db.client.batchSize); err != nil {
		return lazyerrors.Error(err)
	}

	if err := cmd.Add("$db", c.db.name); err != nil {
		return lazyerrors.Error(err)
	}

	res, err := c.commandRaw(ctx, cmd)
	if err != nil {
		return err
	}

	return cur.installBatch(res, "firstBatch")
}

// runGetMore fetches the next batch for the open server-side cursor.
func (cur *Cursor) runGetMore(ctx context.Context) error {
	c := cur.coll

	cmd, err := bson.NewDocument(
		"getMore", cur.id,
		"collection", c.name,
		"batchSize", c.db.client.batchSize,
		"$db", c.db.name,
	)
	if err != nil {
		return lazyerrors.Error(err)
	}

	res, err := c.commandRaw(ctx, cmd)
	if err != nil {
		return err
	}

	prev := cur.batch
	defer func() {
		if prev != nil {
			prev.Close()
		}
	}()

	return cur.installBatch(res, "nextBatch")
}

// installBatch parses the cursor subdocument of a find or getMore reply
// and replaces the current batch iterator.
func (cur *Cursor) installBatch(res *bson.Document, batchField string) error {
	if ok, _ := res.Get("ok").(float64); ok != 1.0 {
		msg, _ := res.Get("errmsg").(string)
		code, _ := res.Get("code").(int32)
		name, _ := res.Get("codeName").(string)

		return &CommandError{
			Message: msg,
			Name:    name,
			Code:    code,
		}
	}

	rawCursor, ok := res.Get("cursor").(bson.RawDocument)
	if !ok {
		return lazyerrors.Errorf("unexpected cursor field %T", res.Get("cursor"))
	}

	cursorDoc, err := rawCursor.Decode()
	if err != nil {
		return lazyerrors.Error(err)
	}

	id, ok := cursorDoc.Get("id").(int64)
	if !ok {
		return lazyerrors.Errorf("unexpected cursor id %T", cursorDoc.Get("id"))
	}

	cur.id = id

	rawBatch, ok := cursorDoc.Get(batchField).(bson.RawArray)
	if !ok {
		return lazyerrors.Errorf("unexpected %s field %T", batchField, cursorDoc.Get(batchField))
	}

	arr, err := rawBatch.Decode()
	if err != nil {
		return lazyerrors.Error(err)
	}

	docs := make([]bson.RawDocument, arr.Len())

	for i := range docs {
		doc, ok := arr.Get(i).(bson.RawDocument)
		if !ok {
			return lazyerrors.Errorf("unexpected %s element %T", batchField, arr.Get(i))
		}

		docs[i] = doc
	}

	cur.batch = iterator.ForSlice(docs)
	cur.lastBatchLen = len(docs)

	return nil
}
