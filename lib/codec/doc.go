// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is the single CBOR configuration used for everything
// profiledir hashes or persists: action headers, entry payloads, and
// the signal envelopes handed to subscribers.
//
// Content addresses are computed over encoded bytes, so the encoder
// uses Core Deterministic Encoding (RFC 8949 §4.2). Two replicas that
// encode the same logical action always agree on its address.
// Fixed-size byte arrays (record.Hash, record.AgentKey) encode as CBOR
// byte strings rather than arrays of integers.
//
// Callers import this package instead of fxamacker/cbor directly.
package codec
