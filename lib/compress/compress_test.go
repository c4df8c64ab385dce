// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package compress

import (
	"bytes"
	"crypto/rand"
	"strings"
	"testing"
)

func TestRoundtrip(t *testing.T) {
	payload := []byte(strings.Repeat(`{"nickname":"carol","fields":{"bio":"likes graphs"}}`, 20))

	for _, tag := range []Tag{None, LZ4, Zstd} {
		t.Run(tag.String(), func(t *testing.T) {
			compressed, used, err := Compress(payload, tag)
			if err != nil {
				t.Fatalf("Compress: %v", err)
			}
			if used != tag {
				t.Errorf("used tag = %s, want %s for repetitive input", used, tag)
			}
			if tag != None && len(compressed) >= len(payload) {
				t.Errorf("compressed %d bytes to %d", len(payload), len(compressed))
			}

			restored, err := Decompress(compressed, used, len(payload))
			if err != nil {
				t.Fatalf("Decompress: %v", err)
			}
			if !bytes.Equal(restored, payload) {
				t.Error("roundtrip changed the payload")
			}
		})
	}
}

func TestIncompressibleFallsBackToNone(t *testing.T) {
	random := make([]byte, 512)
	if _, err := rand.Read(random); err != nil {
		t.Fatal(err)
	}

	for _, tag := range []Tag{LZ4, Zstd} {
		compressed, used, err := Compress(random, tag)
		if err != nil {
			t.Fatalf("%s: Compress: %v", tag, err)
		}
		if used != None {
			t.Errorf("%s: used tag = %s, want none for random input", tag, used)
		}
		if !bytes.Equal(compressed, random) {
			t.Errorf("%s: fallback must return the input unchanged", tag)
		}
	}
}

func TestDecompressSizeMismatch(t *testing.T) {
	payload := []byte(strings.Repeat("abc", 100))
	compressed, used, err := Compress(payload, Zstd)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decompress(compressed, used, len(payload)+1); err == nil {
		t.Error("Decompress accepted a wrong size")
	}
	if _, err := Decompress(payload, None, len(payload)-1); err == nil {
		t.Error("Decompress(None) accepted a wrong size")
	}
}

func TestParseTag(t *testing.T) {
	for _, name := range []string{"none", "lz4", "zstd"} {
		tag, err := ParseTag(name)
		if err != nil {
			t.Fatalf("ParseTag(%q): %v", name, err)
		}
		if tag.String() != name {
			t.Errorf("ParseTag(%q).String() = %q", name, tag.String())
		}
	}
	if _, err := ParseTag("brotli"); err == nil {
		t.Error("ParseTag accepted an unknown codec")
	}
}
