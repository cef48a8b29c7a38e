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
	"runtime"
	"runtime/pprof"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mangodb/mango/bson"
	"github.com/mangodb/mango/internal/connmetrics"
	"github.com/mangodb/mango/internal/util/must"
	"github.com/mangodb/mango/internal/util/testutil"
	"github.com/mangodb/mango/internal/wire"
)

// fakeConn implements driverConn for tests.
//
// Each request's command document is recorded, then passed to handler;
// the returned document becomes the reply body.
type fakeConn struct {
	handler func(cmd *bson.Document, msg *wire.OpMsg) (*bson.Document, error)

	commands []*bson.Document
	msgs     []*wire.OpMsg
	closed   bool
}

func (f *fakeConn) Request(_ context.Context, _ *wire.MsgHeader, body wire.MsgBody) (*wire.MsgHeader, wire.MsgBody, error) {
	msg, ok := body.(*wire.OpMsg)
	if !ok {
		return nil, nil, errors.New("unexpected body type")
	}

	cmd, err := msg.Document()
	if err != nil {
		return nil, nil, err
	}

	f.commands = append(f.commands, cmd)
	f.msgs = append(f.msgs, msg)

	res, err := f.handler(cmd, msg)
	if err != nil {
		return nil, nil, err
	}

	resMsg, err := wire.NewOpMsg(must.NotFail(res.Encode()))
	if err != nil {
		return nil, nil, err
	}

	return new(wire.MsgHeader), resMsg, nil
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

// okReply builds a `{"ok": 1.0}` reply with extra field/value pairs appended.
func okReply(tb testing.TB, pairs ...any) *bson.Document {
	tb.Helper()

	res := must.NotFail(bson.NewDocument("ok", float64(1)))

	for i := 0; i < len(pairs); i += 2 {
		require.NoError(tb, res.Add(pairs[i].(string), pairs[i+1]))
	}

	return res
}

// cursorReply builds a find/getMore reply carrying the given batch.
func cursorReply(tb testing.TB, id int64, batchField string, docs ...*bson.Document) *bson.Document {
	tb.Helper()

	batch := bson.MakeArray(len(docs))
	for _, doc := range docs {
		require.NoError(tb, batch.Append(must.NotFail(doc.Encode())))
	}

	cursor := must.NotFail(bson.NewDocument(
		batchField, batch,
		"id", id,
		"ns", "testdb.testcoll",
	))

	return okReply(tb, "cursor", cursor)
}

// testCollection returns a registered collection backed by the given fake connection.
func testCollection(tb testing.TB, conn *fakeConn, strict bool) *Collection {
	tb.Helper()

	client := newClient(conn, testutil.SLogger(tb), connmetrics.NewConnMetrics(), &Config{
		StrictWrites: strict,
	})

	coll, err := client.Database("testdb").Collection("testcoll")
	require.NoError(tb, err)

	return coll
}

// profileCount returns the number of live objects in the given resource profile.
func profileCount(name string) int {
	runtime.GC()

	p := pprof.Lookup(name)
	if p == nil {
		return 0
	}

	return p.Count()
}

func TestCollectionNotRegistered(t *testing.T) {
	t.Parallel()

	ctx := testutil.Ctx(t)

	conn := &fakeConn{
		handler: func(*bson.Document, *wire.OpMsg) (*bson.Document, error) {
			t.Fatal("no request expected")
			panic("not reached")
		},
	}

	// not registered with any database
	coll := NewCollection("orphan")
	assert.Equal(t, "", coll.Namespace())

	doc := must.NotFail(bson.NewDocument("_id", "a"))

	_, err := coll.Insert(ctx, doc)
	assert.ErrorIs(t, err, ErrNotRegistered)

	_, err = coll.Remove(ctx, doc)
	assert.ErrorIs(t, err, ErrNotRegistered)

	_, err = coll.Update(ctx, doc, doc, UpdateBasic)
	assert.ErrorIs(t, err, ErrNotRegistered)

	_, err = coll.FindOne(ctx, doc)
	assert.ErrorIs(t, err, ErrNotRegistered)

	_, err = coll.Find(ctx, doc)
	assert.ErrorIs(t, err, ErrNotRegistered)

	assert.Empty(t, conn.commands)
}

func TestCollectionRegister(t *testing.T) {
	t.Parallel()

	conn := &fakeConn{}
	client := newClient(conn, testutil.SLogger(t), connmetrics.NewConnMetrics(), new(Config))
	db := client.Database("testdb")

	coll := NewCollection("testcoll")
	require.NoError(t, coll.Register(db))
	assert.Equal(t, "testdb.testcoll", coll.Namespace())

	// registration is monotonic
	assert.Error(t, coll.Register(db))

	// the client remembers the collection under its qualified name
	assert.Same(t, coll, client.collections["testdb.testcoll"])
}

func TestCollectionInsert(t *testing.T) {
	t.Parallel()

	ctx := testutil.Ctx(t)

	conn := &fakeConn{
		handler: func(cmd *bson.Document, _ *wire.OpMsg) (*bson.Document, error) {
			return okReply(t, "n", int32(1)), nil
		},
	}
	coll := testCollection(t, conn, false)

	doc := must.NotFail(bson.NewDocument("_id", "a", "v", int32(42)))

	res, err := coll.Insert(ctx, doc)
	require.NoError(t, err)

	// the inserted document comes back unchanged
	assert.Same(t, doc, res)

	require.Len(t, conn.commands, 1)

	cmd := conn.commands[0]
	assert.Equal(t, "insert", cmd.Command())
	assert.Equal(t, "testcoll", cmd.Get("insert"))
	assert.Equal(t, "testdb", cmd.Get("$db"))

	// the document travels in a kind-1 section
	var seq *wire.OpMsgSection

	for _, s := range conn.msgs[0].Sections() {
		if s.Kind == 1 {
			s := s
			seq = &s
		}
	}

	require.NotNil(t, seq)
	assert.Equal(t, "documents", seq.Identifier)
	require.Len(t, seq.Documents, 1)

	inserted, err := seq.Documents[0].Decode()
	require.NoError(t, err)
	assert.Equal(t, "a", inserted.Get("_id"))
	assert.Equal(t, int32(42), inserted.Get("v"))
}

func TestCollectionRemove(t *testing.T) {
	t.Parallel()

	ctx := testutil.Ctx(t)

	conn := &fakeConn{
		handler: func(cmd *bson.Document, _ *wire.OpMsg) (*bson.Document, error) {
			return okReply(t, "n", int32(2)), nil
		},
	}
	coll := testCollection(t, conn, false)

	query := must.NotFail(bson.NewDocument("v", int32(42)))

	res, err := coll.Remove(ctx, query)
	require.NoError(t, err)
	assert.Same(t, query, res)

	require.Len(t, conn.commands, 1)

	cmd := conn.commands[0]
	assert.Equal(t, "delete", cmd.Command())
	assert.Equal(t, "testcoll", cmd.Get("delete"))

	deletes, err := cmd.Get("deletes").(bson.RawArray).DecodeDeep()
	require.NoError(t, err)
	require.Equal(t, 1, deletes.Len())

	del := deletes.Get(0).(*bson.Document)
	assert.Equal(t, int32(0), del.Get("limit"))
	assert.Equal(t, int32(42), del.Get("q").(*bson.Document).Get("v"))
}

func TestCollectionUpdate(t *testing.T) {
	t.Parallel()

	ctx := testutil.Ctx(t)

	for name, tc := range map[string]struct {
		mode   UpdateMode
		upsert bool
		multi  bool
	}{
		"Basic":  {mode: UpdateBasic},
		"Upsert": {mode: UpdateUpsert, upsert: true},
		"Multi":  {mode: UpdateMulti, multi: true},
	} {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			conn := &fakeConn{
				handler: func(cmd *bson.Document, _ *wire.OpMsg) (*bson.Document, error) {
					return okReply(t, "n", int32(1), "nModified", int32(1)), nil
				},
			}
			coll := testCollection(t, conn, false)

			query := must.NotFail(bson.NewDocument("_id", "a"))
			update := must.NotFail(bson.NewDocument("v", int32(1)))

			res, err := coll.Update(ctx, query, update, tc.mode)
			require.NoError(t, err)
			assert.Same(t, update, res)

			require.Len(t, conn.commands, 1)

			cmd := conn.commands[0]
			assert.Equal(t, "update", cmd.Command())

			updates, err := cmd.Get("updates").(bson.RawArray).DecodeDeep()
			require.NoError(t, err)
			require.Equal(t, 1, updates.Len())

			upd := updates.Get(0).(*bson.Document)
			assert.Equal(t, tc.upsert, upd.Get("upsert"))
			assert.Equal(t, tc.multi, upd.Get("multi"))
			assert.Equal(t, "a", upd.Get("q").(*bson.Document).Get("_id"))
		})
	}
}

func TestCollectionUpdateByID(t *testing.T) {
	t.Parallel()

	ctx := testutil.Ctx(t)

	conn := &fakeConn{
		handler: func(cmd *bson.Document, _ *wire.OpMsg) (*bson.Document, error) {
			return okReply(t, "n", int32(1)), nil
		},
	}
	coll := testCollection(t, conn, false)

	update := must.NotFail(bson.NewDocument("v", int32(1)))

	_, err := coll.UpdateByID(ctx, "a", update, UpdateBasic)
	require.NoError(t, err)

	require.Len(t, conn.commands, 1)

	updates, err := conn.commands[0].Get("updates").(bson.RawArray).DecodeDeep()
	require.NoError(t, err)

	q := updates.Get(0).(*bson.Document).Get("q").(*bson.Document)
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, "a", q.Get("_id"))
}

func TestCollectionStrictWrites(t *testing.T) {
	t.Parallel()

	ctx := testutil.Ctx(t)

	writeErr := must.NotFail(bson.NewDocument(
		"index", int32(0),
		"code", int32(11000),
		"errmsg", "E11000 duplicate key error",
	))

	handler := func(cmd *bson.Document, _ *wire.OpMsg) (*bson.Document, error) {
		return okReply(t, "n", int32(0), "writeErrors", must.NotFail(bson.NewArray(writeErr))), nil
	}

	doc := must.NotFail(bson.NewDocument("_id", "a"))

	t.Run("Strict", func(t *testing.T) {
		t.Parallel()

		coll := testCollection(t, &fakeConn{handler: handler}, true)

		_, err := coll.Insert(ctx, doc)

		var we *WriteError
		require.ErrorAs(t, err, &we)
		assert.Equal(t, int32(11000), we.Code)
		assert.Contains(t, we.Message, "duplicate key")
	})

	t.Run("FireAndForget", func(t *testing.T) {
		t.Parallel()

		coll := testCollection(t, &fakeConn{handler: handler}, false)

		// the same failed reply is not inspected by default
		res, err := coll.Insert(ctx, doc)
		require.NoError(t, err)
		assert.Same(t, doc, res)
	})

	t.Run("StrictCommandFailure", func(t *testing.T) {
		t.Parallel()

		coll := testCollection(t, &fakeConn{handler: func(*bson.Document, *wire.OpMsg) (*bson.Document, error) {
			return must.NotFail(bson.NewDocument(
				"ok", float64(0),
				"errmsg", "not authorized",
				"code", int32(13),
				"codeName", "Unauthorized",
			)), nil
		}}, true)

		_, err := coll.Insert(ctx, doc)

		var ce *CommandError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, int32(13), ce.Code)
		assert.Equal(t, "Unauthorized", ce.Name)
	})
}

func TestCollectionGuardsReleased(t *testing.T) {
	ctx := testutil.Ctx(t)

	connErr := errors.New("connection reset")

	conn := &fakeConn{
		handler: func(*bson.Document, *wire.OpMsg) (*bson.Document, error) {
			return nil, connErr
		},
	}
	coll := testCollection(t, conn, false)

	payloads := profileCount("mango/mango.payload")
	concerns := profileCount("mango/mango.writeConcern")

	doc := must.NotFail(bson.NewDocument("_id", "a"))

	_, err := coll.Insert(ctx, doc)
	require.ErrorIs(t, err, connErr)

	_, err = coll.Update(ctx, doc, doc, UpdateMulti)
	require.ErrorIs(t, err, connErr)

	_, err = coll.Remove(ctx, doc)
	require.ErrorIs(t, err, connErr)

	// every acquired guard was released even though every request failed
	assert.Equal(t, payloads, profileCount("mango/mango.payload"))
	assert.Equal(t, concerns, profileCount("mango/mango.writeConcern"))
}

func TestEqualIDs(t *testing.T) {
	t.Parallel()

	assert.True(t, equalIDs("a", "a"))
	assert.True(t, equalIDs(int32(1), int32(1)))
	assert.True(t, equalIDs(int64(1), int64(1)))
	assert.True(t, equalIDs(float64(1.5), float64(1.5)))
	assert.True(t, equalIDs(bson.ObjectID{0x01}, bson.ObjectID{0x01}))

	assert.False(t, equalIDs("a", "b"))
	assert.False(t, equalIDs(int32(1), int64(1)))
	assert.False(t, equalIDs(nil, nil))

	// types without well-defined equality never match
	assert.False(t, equalIDs(bson.Binary{B: []byte{1}}, bson.Binary{B: []byte{1}}))
}
