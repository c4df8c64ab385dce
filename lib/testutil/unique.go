// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/bureau-foundation/profiledir/lib/record"
)

var uniqueCounter atomic.Uint64

// UniqueAgent returns an identity no other call in this process has
// returned. The counter is written big-endian into the last eight
// bytes; the first byte is fixed so keys are never all zero.
//
//	alice, bob := testutil.UniqueAgent(), testutil.UniqueAgent()
func UniqueAgent() record.AgentKey {
	var key record.AgentKey
	key[0] = 0xa7
	binary.BigEndian.PutUint64(key[24:], uniqueCounter.Add(1))
	return key
}
