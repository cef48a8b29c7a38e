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

// Package wire implements MongoDB wire protocol framing.
package wire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/mangodb/mango/internal/util/lazyerrors"
)

// OpCode represents a message operation code.
type OpCode int32

const (
	// OP_REPLY is a legacy response opcode.
	OP_REPLY = OpCode(1)

	// OP_QUERY is a legacy query opcode.
	OP_QUERY = OpCode(2004)

	// OP_COMPRESSED is a compressed message opcode.
	OP_COMPRESSED = OpCode(2012)

	// OP_MSG is the main opcode of the modern protocol.
	OP_MSG = OpCode(2013)
)

// String implements fmt.Stringer.
func (c OpCode) String() string {
	switch c {
	case OP_REPLY:
		return "OP_REPLY"
	case OP_QUERY:
		return "OP_QUERY"
	case OP_COMPRESSED:
		return "OP_COMPRESSED"
	case OP_MSG:
		return "OP_MSG"
	default:
		return fmt.Sprintf("OpCode(%d)", int32(c))
	}
}

// MsgHeaderLen is the length of MsgHeader in bytes.
const MsgHeaderLen = 16

// MsgHeader represents the standard message header.
type MsgHeader struct {
	MessageLength int32
	RequestID     int32
	ResponseTo    int32
	OpCode        OpCode
}

// readFrom reads the header from the reader.
func (h *MsgHeader) readFrom(r *bufio.Reader) error {
	b := make([]byte, MsgHeaderLen)
	if _, err := io.ReadFull(r, b); err != nil {
		return err
	}

	h.MessageLength = int32(binary.LittleEndian.Uint32(b[0:4]))
	h.RequestID = int32(binary.LittleEndian.Uint32(b[4:8]))
	h.ResponseTo = int32(binary.LittleEndian.Uint32(b[8:12]))
	h.OpCode = OpCode(binary.LittleEndian.Uint32(b[12:16]))

	if h.MessageLength < MsgHeaderLen {
		return lazyerrors.Errorf("invalid message length %d", h.MessageLength)
	}

	return nil
}

// writeTo writes the header to the writer.
func (h *MsgHeader) writeTo(w *bufio.Writer) error {
	b := make([]byte, MsgHeaderLen)

	binary.LittleEndian.PutUint32(b[0:4], uint32(h.MessageLength))
	binary.LittleEndian.PutUint32(b[4:8], uint32(h.RequestID))
	binary.LittleEndian.PutUint32(b[8:12], uint32(h.ResponseTo))
	binary.LittleEndian.PutUint32(b[12:16], uint32(h.OpCode))

	if _, err := w.Write(b); err != nil {
		return lazyerrors.Error(err)
	}

	return nil
}
