// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package record

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Hash is a 32-byte BLAKE3 content address.
type Hash [32]byte

// domainKey is a 32-byte BLAKE3 key. The byte values are the ASCII
// domain name, zero-padded. Changing a key changes every address in
// that domain.
type domainKey [32]byte

var (
	actionDomainKey = domainKey{
		'p', 'r', 'o', 'f', 'i', 'l', 'e', 'd', 'i', 'r', '.', 'a', 'c', 't', 'i', 'o',
		'n', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}

	entryDomainKey = domainKey{
		'p', 'r', 'o', 'f', 'i', 'l', 'e', 'd', 'i', 'r', '.', 'e', 'n', 't', 'r', 'y',
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}

	pathDomainKey = domainKey{
		'p', 'r', 'o', 'f', 'i', 'l', 'e', 'd', 'i', 'r', '.', 'p', 'a', 't', 'h', 0,
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
)

// String returns the full hex encoding.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Short returns the first 12 hex characters, for logs and CLI output.
func (h Hash) Short() string {
	return hex.EncodeToString(h[:6])
}

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// MarshalText encodes the hash as hex. JSON output uses this; CBOR
// keeps the raw byte string.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText parses a hex-encoded hash.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ParseHash parses a 64-character hex string.
func ParseHash(hexString string) (Hash, error) {
	var hash Hash
	if err := parseHex32(hexString, hash[:]); err != nil {
		return hash, fmt.Errorf("parsing hash: %w", err)
	}
	return hash, nil
}

// AgentKey is the public key identifying a participant. It is opaque
// to profiledir.
type AgentKey [32]byte

// Hash returns the key as a linkable address.
func (k AgentKey) Hash() Hash {
	return Hash(k)
}

// String returns the full hex encoding.
func (k AgentKey) String() string {
	return hex.EncodeToString(k[:])
}

// Short returns the first 12 hex characters.
func (k AgentKey) Short() string {
	return hex.EncodeToString(k[:6])
}

// MarshalText encodes the key as hex.
func (k AgentKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a hex-encoded key.
func (k *AgentKey) UnmarshalText(text []byte) error {
	parsed, err := ParseAgentKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseAgentKey parses a 64-character hex string.
func ParseAgentKey(hexString string) (AgentKey, error) {
	var key AgentKey
	if err := parseHex32(hexString, key[:]); err != nil {
		return key, fmt.Errorf("parsing agent key: %w", err)
	}
	return key, nil
}

func parseHex32(hexString string, destination []byte) error {
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return err
	}
	if len(decoded) != 32 {
		return fmt.Errorf("%d bytes, want 32", len(decoded))
	}
	copy(destination, decoded)
	return nil
}

// HashEntry computes the entry-domain address of an entry. The type
// is length-prefixed so that ("ab", "c") and ("a", "bc") differ.
func HashEntry(entry Entry) Hash {
	hasher := newKeyedHasher(entryDomainKey)
	writeLengthPrefixed(hasher, []byte(entry.Type))
	hasher.Write(entry.Payload)
	return sum(hasher)
}

// PathHash computes the address of an index path from its segments.
// It performs no I/O: the same segments always yield the same address
// on every replica, which is what lets an index node be found without
// a registry.
func PathHash(segments ...string) Hash {
	hasher := newKeyedHasher(pathDomainKey)
	var count [binary.MaxVarintLen64]byte
	hasher.Write(count[:binary.PutUvarint(count[:], uint64(len(segments)))])
	for _, segment := range segments {
		writeLengthPrefixed(hasher, []byte(segment))
	}
	return sum(hasher)
}

// hashAction computes the action-domain address of encoded header
// bytes.
func hashAction(encodedHeader []byte) Hash {
	hasher := newKeyedHasher(actionDomainKey)
	hasher.Write(encodedHeader)
	return sum(hasher)
}

func newKeyedHasher(key domainKey) *blake3.Hasher {
	// NewKeyed only fails for keys that are not 32 bytes.
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("record: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	return hasher
}

func writeLengthPrefixed(hasher *blake3.Hasher, data []byte) {
	var length [binary.MaxVarintLen64]byte
	hasher.Write(length[:binary.PutUvarint(length[:], uint64(len(data)))])
	hasher.Write(data)
}

func sum(hasher *blake3.Hasher) Hash {
	var hash Hash
	copy(hash[:], hasher.Sum(nil))
	return hash
}
