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

	"github.com/AlekSi/pointer"

	"github.com/mangodb/mango/bson"
	"github.com/mangodb/mango/internal/util/lazyerrors"
	"github.com/mangodb/mango/internal/util/must"
	"github.com/mangodb/mango/internal/util/observability"
	"github.com/mangodb/mango/internal/wire"
)

// UpdateMode selects update semantics.
type UpdateMode int32

// Numeric values match the wire protocol's legacy update flag bits.
// For the modern update command they map to the upsert/multi booleans.
const (
	// UpdateBasic replaces the first match only.
	UpdateBasic = UpdateMode(0)

	// UpdateUpsert replaces the first match, inserting the document if none match.
	UpdateUpsert = UpdateMode(1)

	// UpdateMulti replaces all matches.
	UpdateMulti = UpdateMode(2)
)

// Collection represents a collection bound to one database/collection pair.
//
// A Collection is created unregistered and becomes registered exactly once.
// Every operation returns ErrNotRegistered until then,
// before any encoding or resource acquisition takes place.
type Collection struct {
	name string

	// both nil until Register, both set after; never partially
	db   *Database
	conn driverConn
}

// NewCollection creates a new unregistered collection handle.
func NewCollection(name string) *Collection {
	return &Collection{
		name: name,
	}
}

// Register binds the collection to the given database and
// records it in the owning client's collection set.
//
// Registration is monotonic: a second call returns an error.
func (c *Collection) Register(db *Database) error {
	if c.db != nil {
		return lazyerrors.Errorf("collection %q is already registered", c.name)
	}

	db.client.collections[db.name+"."+c.name] = c

	c.db = db
	c.conn = db.client.conn

	return nil
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// Namespace returns the qualified `database.collection` name,
// or an empty string if the collection is not registered.
func (c *Collection) Namespace() string {
	if c.db == nil {
		return ""
	}

	return c.db.name + "." + c.name
}

// checkRegistered returns ErrNotRegistered if the collection is not registered.
func (c *Collection) checkRegistered() error {
	if c.db == nil || c.conn == nil {
		return ErrNotRegistered
	}

	return nil
}

// command sends a single command document and returns the shallowly decoded reply.
//
// The reply is returned as-is; the caller decides what failures mean.
func (c *Collection) command(ctx context.Context, sections ...wire.OpMsgSection) (*bson.Document, error) {
	var msg wire.OpMsg
	if err := msg.SetSections(sections...); err != nil {
		return nil, lazyerrors.Error(err)
	}

	_, resBody, err := c.conn.Request(ctx, nil, &msg)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	resMsg, ok := resBody.(*wire.OpMsg)
	if !ok {
		return nil, lazyerrors.Errorf("unexpected response type %T", resBody)
	}

	res, err := resMsg.Document()
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	return res, nil
}

// commandRaw encodes and sends a single command document.
func (c *Collection) commandRaw(ctx context.Context, cmd *bson.Document) (*bson.Document, error) {
	raw, err := cmd.Encode()
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	return c.command(ctx, wire.MakeOpMsgSection(raw))
}

// Insert inserts a single document and returns it unchanged.
//
// By default the server reply is not inspected (fire-and-forget);
// with StrictWrites a failure is returned as *WriteError.
func (c *Collection) Insert(ctx context.Context, doc *bson.Document) (*bson.Document, error) {
	defer observability.FuncCall(ctx)()

	if err := c.checkRegistered(); err != nil {
		return nil, err
	}

	p, err := encodePayload(doc)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}
	defer p.release()

	wc, err := acquireWriteConcern()
	if err != nil {
		return nil, lazyerrors.Error(err)
	}
	defer wc.release()

	cmd, err := bson.NewDocument(
		"insert", c.name,
		"ordered", true,
		"writeConcern", wc.doc,
		"$db", c.db.name,
	)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	raw, err := cmd.Encode()
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	res, err := c.command(ctx, wire.MakeOpMsgSection(raw), wire.MakeOpMsgSequence("documents", p.raw))
	if err != nil {
		return nil, err
	}

	if err = c.checkWriteResult(res); err != nil {
		return nil, err
	}

	return doc, nil
}

// Remove deletes all documents matching the query and returns the query unchanged.
//
// The deleted documents are not reported back.
func (c *Collection) Remove(ctx context.Context, query *bson.Document) (*bson.Document, error) {
	defer observability.FuncCall(ctx)()

	if err := c.checkRegistered(); err != nil {
		return nil, err
	}

	p, err := encodePayload(query)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}
	defer p.release()

	wc, err := acquireWriteConcern()
	if err != nil {
		return nil, lazyerrors.Error(err)
	}
	defer wc.release()

	del, err := bson.NewDocument(
		"q", p.raw,
		"limit", int32(0),
	)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	cmd, err := bson.NewDocument(
		"delete", c.name,
		"deletes", must.NotFail(bson.NewArray(del)),
		"ordered", true,
		"writeConcern", wc.doc,
		"$db", c.db.name,
	)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	res, err := c.commandRaw(ctx, cmd)
	if err != nil {
		return nil, err
	}

	if err = c.checkWriteResult(res); err != nil {
		return nil, err
	}

	return query, nil
}

// Update updates documents matching the query according to the given mode
// and returns the update document unchanged (not the post-update server state).
func (c *Collection) Update(ctx context.Context, query, update *bson.Document, mode UpdateMode) (*bson.Document, error) {
	defer observability.FuncCall(ctx)()

	if err := c.checkRegistered(); err != nil {
		return nil, err
	}

	q, err := encodePayload(query)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}
	defer q.release()

	u, err := encodePayload(update)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}
	defer u.release()

	wc, err := acquireWriteConcern()
	if err != nil {
		return nil, lazyerrors.Error(err)
	}
	defer wc.release()

	upd, err := bson.NewDocument(
		"q", q.raw,
		"u", u.raw,
		"upsert", mode == UpdateUpsert,
		"multi", mode == UpdateMulti,
	)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	cmd, err := bson.NewDocument(
		"update", c.name,
		"updates", must.NotFail(bson.NewArray(upd)),
		"ordered", true,
		"writeConcern", wc.doc,
		"$db", c.db.name,
	)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	res, err := c.commandRaw(ctx, cmd)
	if err != nil {
		return nil, err
	}

	if err = c.checkWriteResult(res); err != nil {
		return nil, err
	}

	return update, nil
}

// UpdateByID updates the document with the given id.
//
// It desugars the id to a `{"_id": id}` query and delegates to Update,
// propagating any failure unchanged.
func (c *Collection) UpdateByID(ctx context.Context, id string, update *bson.Document, mode UpdateMode) (*bson.Document, error) {
	query, err := bson.NewDocument("_id", id)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	return c.Update(ctx, query, update, mode)
}

// FindOne returns the first document matching the query.
//
// A nil query matches all documents.
// If nothing matches, ErrNoDocuments is returned.
func (c *Collection) FindOne(ctx context.Context, query *bson.Document) (*bson.Document, error) {
	defer observability.FuncCall(ctx)()

	if err := c.checkRegistered(); err != nil {
		return nil, err
	}

	cur := c.newCursor(pointer.ToInt64(1))
	defer cur.Close(ctx)

	if query != nil {
		p, err := encodePayload(query)
		if err != nil {
			return nil, lazyerrors.Error(err)
		}
		defer p.release()

		if err = cur.BindQuery(p.raw); err != nil {
			return nil, lazyerrors.Error(err)
		}
	}

	if !cur.Next(ctx) {
		if err := cur.Err(); err != nil {
			return nil, err
		}

		return nil, ErrNoDocuments
	}

	return cur.Current()
}

// FindOneByID returns the document with the given id.
//
// It desugars the id to a `{"_id": id}` query and delegates to FindOne,
// propagating any failure unchanged.
func (c *Collection) FindOneByID(ctx context.Context, id string) (*bson.Document, error) {
	query, err := bson.NewDocument("_id", id)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	return c.FindOne(ctx, query)
}

// Find returns all documents matching the query, in server order.
//
// A nil query matches all documents; an empty result is not an error.
//
// The underlying cursor is trusted for its own end-of-results signal,
// but as a safety net collection stops as soon as two consecutive
// documents carry equal identifiers.
func (c *Collection) Find(ctx context.Context, query *bson.Document) ([]*bson.Document, error) {
	defer observability.FuncCall(ctx)()

	if err := c.checkRegistered(); err != nil {
		return nil, err
	}

	cur := c.newCursor(nil)
	defer cur.Close(ctx)

	if query != nil {
		p, err := encodePayload(query)
		if err != nil {
			return nil, lazyerrors.Error(err)
		}
		defer p.release()

		if err = cur.BindQuery(p.raw); err != nil {
			return nil, lazyerrors.Error(err)
		}
	}

	res := []*bson.Document{}

	var prevID any

	for cur.Next(ctx) {
		doc, err := cur.Current()
		if err != nil {
			return nil, err
		}

		id := doc.Get("_id")
		if id != nil && prevID != nil && equalIDs(id, prevID) {
			break
		}

		res = append(res, doc)
		prevID = id
	}

	if err := cur.Err(); err != nil {
		return nil, err
	}

	return res, nil
}

// FindByID returns the documents with the given id.
//
// It desugars the id to a `{"_id": id}` query and delegates to Find,
// propagating any failure unchanged.
func (c *Collection) FindByID(ctx context.Context, id string) ([]*bson.Document, error) {
	query, err := bson.NewDocument("_id", id)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	return c.Find(ctx, query)
}

// checkWriteResult inspects a write command reply when StrictWrites is set.
func (c *Collection) checkWriteResult(res *bson.Document) error {
	if !c.db.client.strictWrites {
		return nil
	}

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

	if raw, ok := res.Get("writeErrors").(bson.RawArray); ok {
		arr, err := raw.Decode()
		if err != nil {
			return lazyerrors.Error(err)
		}

		if arr.Len() > 0 {
			we, ok := arr.Get(0).(bson.RawDocument)
			if !ok {
				return lazyerrors.Errorf("unexpected writeErrors element %T", arr.Get(0))
			}

			doc, err := we.Decode()
			if err != nil {
				return lazyerrors.Error(err)
			}

			msg, _ := doc.Get("errmsg").(string)
			code, _ := doc.Get("code").(int32)

			return &WriteError{
				Message: msg,
				Code:    code,
			}
		}
	}

	return nil
}

// equalIDs reports whether two identifier values are equal.
//
// Only identifier types with well-defined equality are compared;
// everything else never triggers the dedup guard.
func equalIDs(a, b any) bool {
	switch a := a.(type) {
	case string:
		b, ok := b.(string)
		return ok && a == b
	case bson.ObjectID:
		b, ok := b.(bson.ObjectID)
		return ok && a == b
	case int32:
		b, ok := b.(int32)
		return ok && a == b
	case int64:
		b, ok := b.(int64)
		return ok && a == b
	case float64:
		b, ok := b.(float64)
		return ok && a == b
	default:
		return false
	}
}
