// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

type sampleHeader struct {
	Kind   uint8    `cbor:"kind"`
	Author [32]byte `cbor:"author"`
	Tag    []byte   `cbor:"tag,omitempty"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := sampleHeader{Kind: 3, Tag: []byte("carol")}
	original.Author[0] = 0xAB
	original.Author[31] = 0xCD

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded sampleHeader
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Kind != original.Kind || decoded.Author != original.Author || !bytes.Equal(decoded.Tag, original.Tag) {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestMarshalDeterministicMapOrder(t *testing.T) {
	// Map iteration order is random in Go; the encoding must not be.
	fields := map[string]string{"zeta": "1", "alpha": "2", "mid": "3", "beta": "4"}

	first, err := Marshal(fields)
	if err != nil {
		t.Fatalf("first Marshal: %v", err)
	}
	for range 20 {
		again, err := Marshal(fields)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("deterministic encoding violated: %x != %x", first, again)
		}
	}
}

func TestByteArrayEncodesAsByteString(t *testing.T) {
	var key [32]byte
	data, err := Marshal(key)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	// Major type 2 (byte string) with a one-byte length of 32.
	if len(data) != 34 || data[0] != 0x58 || data[1] != 32 {
		t.Errorf("encoding = %x, want 5820 followed by 32 zero bytes", data)
	}
}

func TestUnmarshalInvalidCBOR(t *testing.T) {
	var header sampleHeader
	if err := Unmarshal([]byte{0xFF, 0xFE, 0xFD}, &header); err == nil {
		t.Error("Unmarshal should reject invalid CBOR")
	}
	if err := Wellformed([]byte{0xFF}); err == nil {
		t.Error("Wellformed should reject a lone break byte")
	}
}
