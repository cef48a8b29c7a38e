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

package bson

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mangodb/mango/internal/util/must"
	"github.com/mangodb/mango/internal/util/testutil"
)

func TestDocumentEncode(t *testing.T) {
	t.Run("Ping", func(t *testing.T) {
		doc, err := NewDocument("ping", int32(1))
		require.NoError(t, err)

		raw, err := doc.Encode()
		require.NoError(t, err)

		expected := "0f0000001070696e67000100000000"
		actual := hex.EncodeToString(raw)

		if expected != actual {
			t.Fatal(testutil.Diff(t, expected, actual))
		}
	})

	t.Run("HelloWorld", func(t *testing.T) {
		doc, err := NewDocument("hello", "world")
		require.NoError(t, err)

		raw, err := doc.Encode()
		require.NoError(t, err)

		expected := "160000000268656c6c6f0006000000776f726c640000"
		actual := hex.EncodeToString(raw)

		if expected != actual {
			t.Fatal(testutil.Diff(t, expected, actual))
		}
	})

	t.Run("EncodeIsRepeatable", func(t *testing.T) {
		doc, err := NewDocument("v", int64(42))
		require.NoError(t, err)

		raw1, err := doc.Encode()
		require.NoError(t, err)

		raw2, err := doc.Encode()
		require.NoError(t, err)

		assert.Equal(t, raw1, raw2)
		assert.Equal(t, 1, doc.Len())
	})
}

func TestDocumentDecode(t *testing.T) {
	doc, err := NewDocument(
		"_id", "foo",
		"ok", true,
		"count", int32(3),
		"nested", must.NotFail(NewDocument("a", 1.5)),
		"tags", must.NotFail(NewArray("x", "y")),
	)
	require.NoError(t, err)

	raw, err := doc.Encode()
	require.NoError(t, err)

	require.NoError(t, raw.Check())

	t.Run("Shallow", func(t *testing.T) {
		actual, err := raw.Decode()
		require.NoError(t, err)

		assert.Equal(t, "foo", actual.Get("_id"))
		assert.Equal(t, true, actual.Get("ok"))
		assert.Equal(t, int32(3), actual.Get("count"))
		assert.IsType(t, RawDocument(nil), actual.Get("nested"))
		assert.IsType(t, RawArray(nil), actual.Get("tags"))
	})

	t.Run("Deep", func(t *testing.T) {
		actual, err := raw.DecodeDeep()
		require.NoError(t, err)

		nested, ok := actual.Get("nested").(*Document)
		require.True(t, ok)
		assert.Equal(t, 1.5, nested.Get("a"))

		tags, ok := actual.Get("tags").(*Array)
		require.True(t, ok)
		require.Equal(t, 2, tags.Len())
		assert.Equal(t, "y", tags.Get(1))
	})
}

func TestDocumentInvalid(t *testing.T) {
	doc := MakeDocument(1)
	err := doc.Add("v", uint8(42))
	assert.Error(t, err)

	_, err = NewDocument("v")
	assert.Error(t, err)

	_, err = NewDocument(42, "v")
	assert.Error(t, err)
}

func TestFindRaw(t *testing.T) {
	doc, err := NewDocument("ok", 1.0)
	require.NoError(t, err)

	raw, err := doc.Encode()
	require.NoError(t, err)

	b := append([]byte(nil), raw...)
	b = append(b, 0x42)

	l, err := FindRaw(b)
	require.NoError(t, err)
	assert.Equal(t, len(raw), l)

	_, err = FindRaw(b[:3])
	assert.ErrorIs(t, err, ErrDecodeShortInput)
}

func TestDecodeInvalid(t *testing.T) {
	_, err := RawDocument{0x01}.Decode()
	assert.ErrorIs(t, err, ErrDecodeShortInput)

	// length prefix does not match the slice length
	_, err = RawDocument{0x2a, 0x00, 0x00, 0x00, 0x00}.Decode()
	assert.ErrorIs(t, err, ErrDecodeInvalidInput)
}
