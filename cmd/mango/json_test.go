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

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mangodb/mango/bson"
)

func TestParseDocument(t *testing.T) {
	t.Parallel()

	doc, err := parseDocument(`{"name": "test", "n": 42, "big": 9999999999, "pi": 3.14, "ok": true, "none": null}`)
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "n", "big", "pi", "ok", "none"}, doc.Fields())
	assert.Equal(t, "test", doc.Get("name"))
	assert.Equal(t, int32(42), doc.Get("n"))
	assert.Equal(t, int64(9999999999), doc.Get("big"))
	assert.Equal(t, 3.14, doc.Get("pi"))
	assert.Equal(t, true, doc.Get("ok"))
	assert.Equal(t, bson.Null, doc.Get("none"))
}

func TestParseDocumentNested(t *testing.T) {
	t.Parallel()

	doc, err := parseDocument(`{"q": {"v": {"$in": [1, 2, 3]}}}`)
	require.NoError(t, err)

	q, ok := doc.Get("q").(*bson.Document)
	require.True(t, ok)

	v, ok := q.Get("v").(*bson.Document)
	require.True(t, ok)

	in, ok := v.Get("$in").(*bson.Array)
	require.True(t, ok)
	require.Equal(t, 3, in.Len())
	assert.Equal(t, int32(2), in.Get(1))
}

func TestParseDocumentInvalid(t *testing.T) {
	t.Parallel()

	for _, s := range []string{
		``,
		`[]`,
		`42`,
		`{"a": 1} extra`,
		`{"a": }`,
	} {
		_, err := parseDocument(s)
		assert.Error(t, err, "input %q", s)
	}
}

func TestRenderDocument(t *testing.T) {
	t.Parallel()

	doc, err := parseDocument(`{"name": "test", "v": [1, {"deep": null}], "ok": true}`)
	require.NoError(t, err)

	s, err := renderDocument(doc)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"test","v":[1,{"deep":null}],"ok":true}`, s)
}

func TestRenderRoundTrip(t *testing.T) {
	t.Parallel()

	// encoded then shallowly decoded documents render the same as fresh ones
	doc, err := parseDocument(`{"a": {"b": [1.5, "x"]}}`)
	require.NoError(t, err)

	raw, err := doc.Encode()
	require.NoError(t, err)

	decoded, err := raw.Decode()
	require.NoError(t, err)

	s, err := renderDocument(decoded)
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"b":[1.5,"x"]}}`, s)
}
