// Package wire defines the binary framing used between a replication
// authority and its followers, and between the promotion driver and the
// nodes it coordinates.
//
// Protocol Format:
//
//	[Header (5 bytes)] + [Body (JSON)]
//
// Header:
//   - OpCode (1 byte): message type
//   - Length (4 bytes): uint32 big-endian size of Body
//
// Body:
//   - JSON-encoded payload corresponding to the OpCode.
package wire

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// OpCode identifies the kind of message framed on the wire.
type OpCode uint8

const (
	// Replication stream.
	OpHandshake OpCode = 1
	OpRecord    OpCode = 2

	// Promotion protocol and admin RPCs.
	OpMarkerStatus      OpCode = 10
	OpPromoteValidate   OpCode = 11
	OpDrain             OpCode = 12
	OpPromoteMark       OpCode = 13
	OpPromoteTransition OpCode = 14

	// Generic envelopes.
	OpReply OpCode = 20
	OpError OpCode = 21
)

// Header is the fixed-size message header (5 bytes).
type Header struct {
	OpCode OpCode
	Length uint32 // length of the JSON body
}

const HeaderSize = 5

// WriteMessage frames and writes a single message (OpCode + JSON body).
func WriteMessage(w io.Writer, op OpCode, body interface{}) error {
	var bodyBytes []byte
	var err error
	if body != nil {
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("wire: marshal body: %w", err)
		}
	}

	if _, err := w.Write([]byte{byte(op)}); err != nil {
		return err
	}
	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(bodyBytes)))
	if _, err := w.Write(lenBuf); err != nil {
		return err
	}
	if len(bodyBytes) > 0 {
		if _, err := w.Write(bodyBytes); err != nil {
			return err
		}
	}
	return nil
}

// ReadHeader reads and decodes a message header.
func ReadHeader(r io.Reader) (Header, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Header{}, err
	}
	return Header{
		OpCode: OpCode(buf[0]),
		Length: binary.BigEndian.Uint32(buf[1:]),
	}, nil
}

// ReadBody reads length bytes and JSON-decodes them into v.
func ReadBody(r io.Reader, length uint32, v interface{}) error {
	if length == 0 {
		return nil
	}
	lr := io.LimitReader(r, int64(length))
	decoder := json.NewDecoder(lr)
	return decoder.Decode(v)
}
