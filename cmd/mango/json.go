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
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/mangodb/mango/bson"
	"github.com/mangodb/mango/internal/util/lazyerrors"
)

// parseDocument parses a JSON object into a document, preserving field order.
func parseDocument(s string) (*bson.Document, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	if tok != json.Delim('{') {
		return nil, lazyerrors.Errorf("expected a JSON object, got %v", tok)
	}

	doc, err := parseObject(dec)
	if err != nil {
		return nil, err
	}

	if _, err = dec.Token(); err == nil {
		return nil, lazyerrors.New("unexpected data after JSON object")
	}

	return doc, nil
}

// parseObject parses object fields up to and including the closing brace.
func parseObject(dec *json.Decoder) (*bson.Document, error) {
	doc := bson.MakeDocument(0)

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, lazyerrors.Error(err)
		}

		name, ok := tok.(string)
		if !ok {
			return nil, lazyerrors.Errorf("expected field name, got %v", tok)
		}

		value, err := parseValue(dec)
		if err != nil {
			return nil, err
		}

		if err = doc.Add(name, value); err != nil {
			return nil, lazyerrors.Error(err)
		}
	}

	if _, err := dec.Token(); err != nil {
		return nil, lazyerrors.Error(err)
	}

	return doc, nil
}

// parseValue parses a single JSON value into its BSON representation.
func parseValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	switch tok := tok.(type) {
	case json.Delim:
		switch tok {
		case '{':
			return parseObject(dec)

		case '[':
			arr := bson.MakeArray(0)

			for dec.More() {
				value, err := parseValue(dec)
				if err != nil {
					return nil, err
				}

				if err = arr.Append(value); err != nil {
					return nil, lazyerrors.Error(err)
				}
			}

			if _, err = dec.Token(); err != nil {
				return nil, lazyerrors.Error(err)
			}

			return arr, nil

		default:
			return nil, lazyerrors.Errorf("unexpected delimiter %v", tok)
		}

	case json.Number:
		// integers that fit become int32, then int64; everything else is a double
		if i, err := tok.Int64(); err == nil {
			if i >= math.MinInt32 && i <= math.MaxInt32 {
				return int32(i), nil
			}

			return i, nil
		}

		f, err := tok.Float64()
		if err != nil {
			return nil, lazyerrors.Error(err)
		}

		return f, nil

	case string:
		return tok, nil

	case bool:
		return tok, nil

	case nil:
		return bson.Null, nil

	default:
		return nil, lazyerrors.Errorf("unexpected token %v", tok)
	}
}

// renderDocument renders a document as a single-line JSON object, preserving field order.
func renderDocument(doc *bson.Document) (string, error) {
	var buf bytes.Buffer

	if err := renderValue(&buf, doc); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// renderValue writes a single BSON value as JSON.
func renderValue(buf *bytes.Buffer, value any) error {
	switch value := value.(type) {
	case *bson.Document:
		buf.WriteByte('{')

		for i, name := range value.Fields() {
			if i > 0 {
				buf.WriteByte(',')
			}

			b, err := json.Marshal(name)
			if err != nil {
				return lazyerrors.Error(err)
			}

			buf.Write(b)
			buf.WriteByte(':')

			if err = renderValue(buf, value.Get(name)); err != nil {
				return err
			}
		}

		buf.WriteByte('}')

		return nil

	case bson.RawDocument:
		doc, err := value.Decode()
		if err != nil {
			return lazyerrors.Error(err)
		}

		return renderValue(buf, doc)

	case *bson.Array:
		buf.WriteByte('[')

		for i := 0; i < value.Len(); i++ {
			if i > 0 {
				buf.WriteByte(',')
			}

			if err := renderValue(buf, value.Get(i)); err != nil {
				return err
			}
		}

		buf.WriteByte(']')

		return nil

	case bson.RawArray:
		arr, err := value.Decode()
		if err != nil {
			return lazyerrors.Error(err)
		}

		return renderValue(buf, arr)

	case bson.ObjectID:
		fmt.Fprintf(buf, `{"$oid":%q}`, hex.EncodeToString(value[:]))
		return nil

	case bson.NullType:
		buf.WriteString("null")
		return nil

	case string, bool, int32, int64, float64:
		b, err := json.Marshal(value)
		if err != nil {
			return lazyerrors.Error(err)
		}

		buf.Write(b)

		return nil

	default:
		// binary, timestamps, regexes and the rest are shown by Go type
		fmt.Fprintf(buf, "%q", fmt.Sprintf("%v", value))
		return nil
	}
}
