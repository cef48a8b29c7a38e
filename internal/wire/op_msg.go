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

package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/mangodb/mango/bson"
	"github.com/mangodb/mango/internal/util/debugbuild"
	"github.com/mangodb/mango/internal/util/lazyerrors"
)

// OpMsgFlags are OP_MSG flags.
type OpMsgFlags uint32

const (
	// OpMsgChecksumPresent indicates that a CRC-32C checksum follows the sections.
	OpMsgChecksumPresent = OpMsgFlags(1 << 0)

	// OpMsgMoreToCome indicates that no response is expected.
	OpMsgMoreToCome = OpMsgFlags(1 << 1)

	// OpMsgExhaustAllowed indicates that multiple replies are allowed.
	OpMsgExhaustAllowed = OpMsgFlags(1 << 16)
)

// FlagSet reports whether the given flag is set.
func (f OpMsgFlags) FlagSet(flag OpMsgFlags) bool {
	return f&flag != 0
}

// String implements fmt.Stringer.
func (f OpMsgFlags) String() string {
	return fmt.Sprintf("OpMsgFlags(%b)", uint32(f))
}

// OpMsgSection is one or more sections contained in an OpMsg.
type OpMsgSection struct {
	Identifier string
	Documents  []bson.RawDocument
	Kind       byte
}

// MakeOpMsgSection creates a kind 0 [OpMsgSection] with a single document.
func MakeOpMsgSection(raw bson.RawDocument) OpMsgSection {
	return OpMsgSection{
		Documents: []bson.RawDocument{raw},
	}
}

// MakeOpMsgSequence creates a kind 1 [OpMsgSection] (document sequence)
// with the given identifier and documents.
func MakeOpMsgSequence(identifier string, docs ...bson.RawDocument) OpMsgSection {
	return OpMsgSection{
		Kind:       1,
		Identifier: identifier,
		Documents:  docs,
	}
}

// OpMsg is the main wire protocol message type.
type OpMsg struct {
	Flags OpMsgFlags

	sections []OpMsgSection
	checksum uint32
}

// NewOpMsg creates a message with a single kind 0 section.
func NewOpMsg(raw bson.RawDocument) (*OpMsg, error) {
	var msg OpMsg
	if err := msg.SetSections(MakeOpMsgSection(raw)); err != nil {
		return nil, lazyerrors.Error(err)
	}

	return &msg, nil
}

// Sections returns the sections of the OpMsg.
func (msg *OpMsg) Sections() []OpMsgSection {
	return msg.sections
}

// SetSections sets sections of the OpMsg.
//
// Exactly one kind 0 section is required.
func (msg *OpMsg) SetSections(sections ...OpMsgSection) error {
	var kind0 int

	for _, s := range sections {
		switch s.Kind {
		case 0:
			kind0++

			if l := len(s.Documents); l != 1 {
				return lazyerrors.Errorf("%d documents in kind 0 section", l)
			}

		case 1:
			if s.Identifier == "" {
				return lazyerrors.New("empty kind 1 section identifier")
			}

		default:
			return lazyerrors.Errorf("unknown section kind %d", s.Kind)
		}
	}

	if kind0 != 1 {
		return lazyerrors.Errorf("%d kind 0 sections", kind0)
	}

	msg.sections = sections

	return nil
}

// RawDocument returns the raw document of the kind 0 section.
func (msg *OpMsg) RawDocument() (bson.RawDocument, error) {
	for _, s := range msg.sections {
		if s.Kind == 0 {
			return s.Documents[0], nil
		}
	}

	return nil, lazyerrors.New("no kind 0 section")
}

// Document returns the shallowly decoded document of the kind 0 section.
func (msg *OpMsg) Document() (*bson.Document, error) {
	raw, err := msg.RawDocument()
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	doc, err := raw.Decode()
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	return doc, nil
}

func (msg *OpMsg) msgbody() {}

// UnmarshalBinary implements [MsgBody] interface.
func (msg *OpMsg) UnmarshalBinary(b []byte) error {
	if len(b) < 5 {
		return lazyerrors.Errorf("len=%d", len(b))
	}

	msg.Flags = OpMsgFlags(binary.LittleEndian.Uint32(b[0:4]))

	offset := 4
	end := len(b)

	if msg.Flags.FlagSet(OpMsgChecksumPresent) {
		if end-offset < 4 {
			return lazyerrors.Errorf("no checksum: len=%d", len(b))
		}

		end -= 4
		msg.checksum = binary.LittleEndian.Uint32(b[end:])
	}

	msg.sections = nil

	for offset < end {
		var section OpMsgSection
		section.Kind = b[offset]
		offset++

		switch section.Kind {
		case 0:
			l, err := bson.FindRaw(b[offset:end])
			if err != nil {
				return lazyerrors.Error(err)
			}

			section.Documents = []bson.RawDocument{bson.RawDocument(b[offset : offset+l])}
			offset += l

		case 1:
			if end-offset < 4 {
				return lazyerrors.Errorf("short kind 1 section: len=%d", end-offset)
			}

			size := int(binary.LittleEndian.Uint32(b[offset:])) - 4
			offset += 4

			id, err := bson.DecodeCString(b[offset:end])
			if err != nil {
				return lazyerrors.Error(err)
			}

			section.Identifier = id
			offset += bson.SizeCString(id)
			size -= bson.SizeCString(id)

			for size > 0 {
				l, err := bson.FindRaw(b[offset:end])
				if err != nil {
					return lazyerrors.Error(err)
				}

				section.Documents = append(section.Documents, bson.RawDocument(b[offset:offset+l]))
				offset += l
				size -= l
			}

			if size != 0 {
				return lazyerrors.Errorf("kind 1 section size mismatch: %d", size)
			}

		default:
			return lazyerrors.Errorf("unknown section kind %d", section.Kind)
		}

		msg.sections = append(msg.sections, section)
	}

	if debugbuild.Enabled {
		if err := msg.check(); err != nil {
			return lazyerrors.Error(err)
		}
	}

	return nil
}

// MarshalBinary implements [MsgBody] interface.
func (msg *OpMsg) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer

	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(msg.Flags))
	buf.Write(b)

	for _, section := range msg.sections {
		if err := buf.WriteByte(section.Kind); err != nil {
			return nil, lazyerrors.Error(err)
		}

		switch section.Kind {
		case 0:
			if l := len(section.Documents); l != 1 {
				panic(fmt.Sprintf("%d documents in section with kind 0", l))
			}

			if _, err := buf.Write(section.Documents[0]); err != nil {
				return nil, lazyerrors.Error(err)
			}

		case 1:
			size := 4 + bson.SizeCString(section.Identifier)
			for _, doc := range section.Documents {
				size += len(doc)
			}

			binary.LittleEndian.PutUint32(b, uint32(size))
			buf.Write(b)

			id := make([]byte, bson.SizeCString(section.Identifier))
			bson.EncodeCString(id, section.Identifier)
			buf.Write(id)

			for _, doc := range section.Documents {
				if _, err := buf.Write(doc); err != nil {
					return nil, lazyerrors.Error(err)
				}
			}

		default:
			return nil, lazyerrors.Errorf("unknown section kind %d", section.Kind)
		}
	}

	if msg.Flags.FlagSet(OpMsgChecksumPresent) {
		binary.LittleEndian.PutUint32(b, msg.checksum)
		buf.Write(b)
	}

	return buf.Bytes(), nil
}

// check validates all section documents.
func (msg *OpMsg) check() error {
	for _, s := range msg.sections {
		for _, d := range s.Documents {
			if err := d.Check(); err != nil {
				return lazyerrors.Error(err)
			}
		}
	}

	return nil
}

// String returns a string representation for logging.
func (msg *OpMsg) String() string {
	if msg == nil {
		return "<nil>"
	}

	doc, err := msg.Document()
	if err != nil {
		return fmt.Sprintf("OpMsg<invalid: %s>", err)
	}

	return fmt.Sprintf("OpMsg<%s, %d section(s)>", doc.Command(), len(msg.sections))
}

// check interfaces
var (
	_ MsgBody = (*OpMsg)(nil)
)
