// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for profiledir
// packages.
//
// [RequireReceive], [RequireNoReceive], and [RequireClosed] wrap the
// select-with-timeout pattern for channel assertions, so individual
// tests never call time.After themselves. Signals are emitted
// synchronously during a commit, which makes [RequireNoReceive] a
// non-blocking check rather than a wait.
//
// [UniqueAgent] hands out distinct identities for tests that share a
// store.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
