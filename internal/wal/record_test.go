package wal

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// splitFrame re-derives (body, crc) from an encoded frame the way a reader
// would, for tests that want to drive decodeFrame directly.
func splitFrame(t *testing.T, encoded []byte) ([]byte, uint32) {
	t.Helper()
	length := binary.LittleEndian.Uint32(encoded[0:4])
	body := encoded[4 : 4+length]
	crc := binary.LittleEndian.Uint32(encoded[4+length:])
	return body, crc
}

func TestRecordEncodeDecode(t *testing.T) {
	original := &Record{Kind: KindInsert, Payload: []byte(`{"_id":"a","collection":"users"}`)}

	encoded := original.Encode()
	if len(encoded) != original.Size() {
		t.Fatalf("encoded size mismatch: expected %d, got %d", original.Size(), len(encoded))
	}

	body, crc := splitFrame(t, encoded)
	kind, payload, err := decodeFrame(body, crc)
	if err != nil {
		t.Fatalf("decodeFrame: %v", err)
	}
	if kind != original.Kind {
		t.Errorf("kind mismatch: expected %v, got %v", original.Kind, kind)
	}
	if !bytes.Equal(payload, original.Payload) {
		t.Errorf("payload mismatch: expected %q, got %q", original.Payload, payload)
	}
}

func TestRecordKinds(t *testing.T) {
	kinds := []Kind{KindInsert, KindUpdate, KindDelete, KindCheckpointBegin, KindCheckpointEnd, KindPromotionMarker}

	for _, k := range kinds {
		rec := &Record{Kind: k, Payload: []byte("payload")}
		body, crc := splitFrame(t, rec.Encode())

		decodedKind, _, err := decodeFrame(body, crc)
		if err != nil {
			t.Fatalf("decodeFrame(kind=%v): %v", k, err)
		}
		if decodedKind != k {
			t.Errorf("kind mismatch: expected %v, got %v", k, decodedKind)
		}
	}
}

func TestRecordCRCValidation(t *testing.T) {
	rec := &Record{Kind: KindInsert, Payload: []byte("payload")}
	encoded := rec.Encode()
	encoded[5] ^= 0xFF // corrupt a body byte

	body, crc := splitFrame(t, encoded)
	if _, _, err := decodeFrame(body, crc); err == nil {
		t.Error("expected crc32c mismatch for corrupted body, got nil")
	}
}

func TestRecordEmptyPayload(t *testing.T) {
	rec := &Record{Kind: KindCheckpointBegin, Payload: nil}
	body, crc := splitFrame(t, rec.Encode())

	kind, payload, err := decodeFrame(body, crc)
	if err != nil {
		t.Fatalf("decodeFrame: %v", err)
	}
	if kind != KindCheckpointBegin {
		t.Errorf("kind mismatch: got %v", kind)
	}
	if len(payload) != 0 {
		t.Errorf("expected empty payload, got %d bytes", len(payload))
	}
}

func TestRecordLargePayload(t *testing.T) {
	large := bytes.Repeat([]byte("v"), 64*1024)
	rec := &Record{Kind: KindUpdate, Payload: large}
	body, crc := splitFrame(t, rec.Encode())

	_, payload, err := decodeFrame(body, crc)
	if err != nil {
		t.Fatalf("decodeFrame: %v", err)
	}
	if !bytes.Equal(payload, large) {
		t.Error("large payload mismatch")
	}
}
