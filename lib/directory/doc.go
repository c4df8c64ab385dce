// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package directory is the profile directory: participants register a
// nickname bound to their identity, edit it, look each other up, and
// search by case-insensitive nickname prefix.
//
// Everything is built from append-only records in a
// [recordstore.Store]:
//
//   - A profile is an update chain. Register commits a Create; each
//     Update supersedes the previous version. [chain.Resolver] finds
//     the current version.
//   - The identity is joined to the chain's first action by an
//     AgentToProfile link.
//   - The bucket path for the nickname (see [pathindex]) is joined to
//     the identity by a PathToAgent link tagged with the lowercased
//     nickname, so a search lists one bucket's links filtered by tag
//     prefix.
//
// A rename tombstones the identity's PathToAgent links in the old
// bucket and links the new one. There is no lock across those steps:
// concurrent renames from two replicas can leave two live index links
// for one identity, and readers tolerate that.
//
// Errors are the sentinels declared here, [chain.ErrMalformedChain],
// and two store-level errors passed through unchanged:
// [recordstore.ErrStorage] when the backend fails, and
// [recordstore.ErrRejected] when the store refuses a commit as
// structurally invalid. The directory only commits references it has
// just read back from the same store, so a rejection means the log
// contradicts itself (for example a link listed by GetLinks that Get
// cannot find); it is surfaced, never retried.
//
// Every record a call commits is handed to the configured
// [CommitObserver] once the call finishes, including on failure, so
// post-commit processing sees exactly what reached the log.
package directory
