// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package record defines the immutable, content-addressed primitives
// that every higher-level profiledir structure is built from.
//
// A [Record] is one action appended to an author's log: [Create],
// [Update] and [Delete] operate on entries, [CreateLink] and
// [DeleteLink] operate on typed edges between addresses. Nothing is
// ever modified in place. An update is a new record naming the action
// it supersedes; a deleted link is a DeleteLink record naming the
// CreateLink it tombstones.
//
// Addresses are 32-byte BLAKE3 keyed hashes with domain separation, in
// the same scheme the artifact store uses for chunks and containers:
//
//   - action domain: the deterministic CBOR encoding of the author,
//     per-author sequence, timestamp and action body.
//   - entry domain: the entry type and payload bytes. Identical
//     content written twice has one entry address.
//   - path domain: the segments of an index path. Path addresses are
//     pure functions of their segments; no record backs them.
//
// Identities ([AgentKey]) share the 32-byte shape so they can appear as
// link bases and targets directly.
package record
