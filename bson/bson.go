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

// Package bson implements encoding and decoding of BSON as defined by https://bsonspec.org/spec.html.
//
// # Types
//
// The following BSON types are supported:
//
//	BSON                Go
//
//	Document            *bson.Document or bson.RawDocument
//	Array               *bson.Array    or bson.RawArray
//
//	Double              float64
//	String              string
//	Binary data         bson.Binary
//	ObjectId            bson.ObjectID
//	Boolean             bool
//	Date                time.Time
//	Null                bson.NullType
//	Regular Expression  bson.Regex
//	32-bit integer      int32
//	Timestamp           bson.Timestamp
//	64-bit integer      int64
//
// Composite types (Document and Array) are passed by pointers.
// Raw composite types and scalars are passed by values.
package bson

import (
	"time"

	"github.com/cristalhq/bson/bsonproto"
)

type (
	// ScalarType represents a scalar BSON type.
	ScalarType = bsonproto.ScalarType

	// Binary represents BSON binary data.
	Binary = bsonproto.Binary

	// ObjectID represents a BSON object id.
	ObjectID = bsonproto.ObjectID

	// NullType represents the BSON null type.
	NullType = bsonproto.NullType

	// Regex represents a BSON regular expression.
	Regex = bsonproto.Regex

	// Timestamp represents a BSON timestamp.
	Timestamp = bsonproto.Timestamp
)

var (
	// ErrDecodeShortInput is returned when the input is too short to decode.
	ErrDecodeShortInput = bsonproto.ErrDecodeShortInput

	// ErrDecodeInvalidInput is returned when the input is invalid.
	ErrDecodeInvalidInput = bsonproto.ErrDecodeInvalidInput

	// Null is the BSON null value.
	Null = bsonproto.Null
)

// Type represents any BSON type (including raw types).
type Type interface {
	ScalarType | CompositeType
}

// CompositeType represents a BSON composite type (including raw types).
type CompositeType interface {
	*Document | *Array | RawDocument | RawArray
}

// validType checks if v is a valid BSON type (including raw types).
func validType(v any) bool {
	switch v.(type) {
	case *Document:
	case RawDocument:
	case *Array:
	case RawArray:

	default:
		return validScalarType(v)
	}

	return true
}

// validScalarType checks if v is a valid scalar BSON type.
func validScalarType(v any) bool {
	switch v.(type) {
	case float64:
	case string:
	case Binary:
	case ObjectID:
	case bool:
	case time.Time:
	case NullType:
	case Regex:
	case int32:
	case Timestamp:
	case int64:

	default:
		return false
	}

	return true
}
