// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"testing"
	"time"
)

type recordingT struct {
	failures []string
}

func (r *recordingT) Helper() {}

func (r *recordingT) Fatalf(format string, args ...any) {
	r.failures = append(r.failures, fmt.Sprintf(format, args...))
}

func TestRequireReceive(t *testing.T) {
	ch := make(chan int, 1)
	ch <- 7
	if got := RequireReceive(t, ch, time.Second, "buffered value"); got != 7 {
		t.Errorf("RequireReceive = %d, want 7", got)
	}
}

func TestRequireNoReceive(t *testing.T) {
	ch := make(chan string, 1)
	RequireNoReceive(t, ch, "empty channel")

	ch <- "late"
	recorder := &recordingT{}
	RequireNoReceive(recorder, ch, "pending %s", "value")
	if len(recorder.failures) != 1 {
		t.Fatalf("failures = %v, want one", recorder.failures)
	}

	closed := make(chan string)
	close(closed)
	recorder = &recordingT{}
	RequireNoReceive(recorder, closed)
	if len(recorder.failures) != 1 {
		t.Errorf("closed channel: failures = %v, want one", recorder.failures)
	}
}

func TestRequireReceiveReportsOnce(t *testing.T) {
	closed := make(chan int)
	close(closed)
	recorder := &recordingT{}
	if got := RequireReceive(recorder, closed, time.Second, "closed"); got != 0 {
		t.Errorf("RequireReceive on closed channel = %d, want zero value", got)
	}
	if len(recorder.failures) != 1 {
		t.Errorf("closed channel: failures = %v, want one", recorder.failures)
	}

	recorder = &recordingT{}
	RequireReceive(recorder, make(chan int), time.Millisecond, "never sent")
	if len(recorder.failures) != 1 {
		t.Errorf("timeout: failures = %v, want one", recorder.failures)
	}
}

func TestRequireClosedTimeoutReportsOnce(t *testing.T) {
	recorder := &recordingT{}
	RequireClosed(recorder, make(chan int), time.Millisecond, "never closed")
	if len(recorder.failures) != 1 {
		t.Errorf("failures = %v, want one", recorder.failures)
	}
}

func TestRequireClosedDrains(t *testing.T) {
	ch := make(chan int, 2)
	ch <- 1
	ch <- 2
	close(ch)
	RequireClosed(t, ch, time.Second, "closed after values")
}

func TestUniqueAgent(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		key := UniqueAgent()
		if seen[key.String()] {
			t.Fatalf("UniqueAgent repeated %s", key)
		}
		seen[key.String()] = true
	}
}
