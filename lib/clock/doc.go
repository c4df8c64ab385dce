// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the injectable time source used to stamp
// committed records.
//
// Record addresses include the commit timestamp, so tests that compare
// addresses or ordering need a clock they control. Production code
// passes Real(); tests pass Fake() and step it explicitly:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	store := recordstore.NewMemoryStore(recordstore.MemoryConfig{Clock: c})
//	c.Advance(time.Second)
//
// Nothing in profiledir sleeps or waits on timers, so the interface
// stops at Now.
package clock
