// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package recordstore is the append-only, content-addressed record log
// the directory is built on.
//
// The [Store] interface offers exactly what an immutable substrate can:
// append an action (with its entry), fetch a record by address, fetch
// the details of an address (which later records supersede or delete
// it), and list live links. There is no in-place update or removal.
// A link is "deleted" by appending a DeleteLink that names the
// CreateLink; link queries join the two and drop tombstoned edges.
//
// Two backends implement Store:
//
//   - [MemoryStore] keeps an arena of records keyed by address plus
//     by-base and by-tombstoned-creation indices. Tests and the
//     CLI's --memory mode use it.
//   - [SQLiteStore] persists the log in SQLite through a WAL
//     connection pool, with entry payloads optionally compressed.
//
// Both validate the structure of every commit (an Update must name an
// existing Create or Update, a DeleteLink an existing CreateLink, and
// so on) and assign the author sequence number and commit timestamp.
// Backend failures are reported as *[StorageError]; rejected commits
// match [ErrRejected].
package recordstore
