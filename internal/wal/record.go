package wal

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// Kind is the type of a logical operation recorded in the WAL.
type Kind byte

const (
	KindInvalid Kind = iota
	KindInsert
	KindUpdate
	KindDelete
	KindCheckpointBegin
	KindCheckpointEnd
	KindPromotionMarker
)

func (k Kind) String() string {
	switch k {
	case KindInsert:
		return "insert"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	case KindCheckpointBegin:
		return "checkpoint-begin"
	case KindCheckpointEnd:
		return "checkpoint-end"
	case KindPromotionMarker:
		return "promotion-marker"
	default:
		return "invalid"
	}
}

// LSN (Log Sequence Number) uniquely identifies a WAL record. It is assigned
// at append time under the append mutex and is strictly increasing.
type LSN uint64

// crc32cTable is the Castagnoli polynomial, matching the on-disk format's
// CRC32C checksum.
var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// Record is a single logical WAL entry. On disk it is framed as:
//
//	u32 length (LE) || u8 kind || payload[length-1] || u32 crc32c (LE)
//
// length is the size of (kind + payload); the checksum covers kind+payload,
// i.e. the entire framed record preceding the checksum field itself. LSN is
// not part of the frame: it is implicit in append order and is assigned by
// the WAL, not encoded redundantly on disk.
type Record struct {
	LSN     LSN
	Kind    Kind
	Payload []byte
}

// Encode serializes the record to its on-disk frame.
func (r *Record) Encode() []byte {
	body := make([]byte, 1+len(r.Payload))
	body[0] = byte(r.Kind)
	copy(body[1:], r.Payload)

	buf := make([]byte, 4+len(body)+4)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(body)))
	copy(buf[4:4+len(body)], body)

	crc := crc32.Checksum(body, crc32cTable)
	binary.LittleEndian.PutUint32(buf[4+len(body):], crc)

	return buf
}

// Size returns the number of bytes Encode would produce.
func (r *Record) Size() int {
	return 4 + 1 + len(r.Payload) + 4
}

// decodeFrame parses a length-delimited frame body (already isolated by the
// reader) into Kind/Payload after verifying its trailing CRC32C. It does not
// know its own LSN; the caller assigns that from read order.
func decodeFrame(body []byte, crc uint32) (Kind, []byte, error) {
	if len(body) < 1 {
		return KindInvalid, nil, fmt.Errorf("record body too short: %d bytes", len(body))
	}
	actual := crc32.Checksum(body, crc32cTable)
	if actual != crc {
		return KindInvalid, nil, fmt.Errorf("crc32c mismatch: expected %d, got %d", crc, actual)
	}
	payload := make([]byte, len(body)-1)
	copy(payload, body[1:])
	return Kind(body[0]), payload, nil
}

func (r *Record) String() string {
	return fmt.Sprintf("Record{LSN:%d, Kind:%s, PayloadLen:%d}", r.LSN, r.Kind, len(r.Payload))
}
