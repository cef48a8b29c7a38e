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
	"strconv"

	"github.com/mangodb/mango/internal/util/lazyerrors"
)

// RawArray represents a BSON array in the binary encoded form.
//
// It generally references a part of a larger slice, not a copy.
type RawArray []byte

// Decode decodes a single BSON array that takes the whole byte slice.
//
// Only top-level elements are decoded;
// nested documents and arrays are converted to RawDocument and RawArray respectively,
// using raw's subslices without copying.
func (raw RawArray) Decode() (*Array, error) {
	res, err := raw.decodeArray(decodeShallow)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	return res, nil
}

// DecodeDeep decodes a single valid BSON array that takes the whole byte slice.
//
// All nested documents and arrays are decoded recursively.
func (raw RawArray) DecodeDeep() (*Array, error) {
	res, err := raw.decodeArray(decodeDeep)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	return res, nil
}

// decodeArray decodes the array via the document decoder,
// checking that field names are consecutive indexes.
func (raw RawArray) decodeArray(mode decodeMode) (*Array, error) {
	doc, err := RawDocument(raw).decode(mode)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	if mode == decodeCheckOnly {
		return nil, nil
	}

	res := MakeArray(len(doc.fields))

	for i, f := range doc.fields {
		if f.name != strconv.Itoa(i) {
			return nil, lazyerrors.Errorf("invalid array index: %q: %w", f.name, ErrDecodeInvalidInput)
		}

		if err = res.Append(f.value); err != nil {
			return nil, lazyerrors.Error(err)
		}
	}

	return res, nil
}
