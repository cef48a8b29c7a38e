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
	"github.com/mangodb/mango/bson"
	"github.com/mangodb/mango/internal/util/lazyerrors"
	"github.com/mangodb/mango/internal/util/resource"
)

// payload owns one encoded query/update buffer
// for the duration of a single operation.
//
// Every encode is paired with exactly one release on every exit path.
type payload struct {
	raw   bson.RawDocument
	token *resource.Token
}

// encodePayload encodes the given document into a tracked buffer.
func encodePayload(doc *bson.Document) (*payload, error) {
	raw, err := doc.Encode()
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	p := &payload{
		raw:   raw,
		token: resource.NewToken(),
	}
	resource.Track(p, p.token)

	return p, nil
}

// release releases the buffer.
func (p *payload) release() {
	resource.Untrack(p, p.token)
}

// writeConcern is the per-call write acknowledgement token.
//
// It is owned exclusively by the single mutating call that acquires it,
// passed to the operation, and released unconditionally when that call
// completes, regardless of outcome.
type writeConcern struct {
	doc   *bson.Document
	token *resource.Token
}

// acquireWriteConcern acquires a new write acknowledgement token.
func acquireWriteConcern() (*writeConcern, error) {
	doc, err := bson.NewDocument("w", int32(1))
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	wc := &writeConcern{
		doc:   doc,
		token: resource.NewToken(),
	}
	resource.Track(wc, wc.token)

	return wc, nil
}

// release releases the token.
func (wc *writeConcern) release() {
	resource.Untrack(wc, wc.token)
}
