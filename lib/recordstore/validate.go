// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package recordstore

import (
	"fmt"
	"time"

	"github.com/bureau-foundation/profiledir/lib/clock"
	"github.com/bureau-foundation/profiledir/lib/record"
)

// lookupFunc fetches a record by action address inside whatever
// consistency scope the backend holds during a commit.
type lookupFunc func(record.Hash) (record.Record, bool, error)

// validateCommit checks the structural rules every backend enforces.
// Errors from lookup are returned unchanged; rule violations wrap
// ErrRejected.
func validateCommit(action record.Action, entry *record.Entry, lookup lookupFunc) error {
	if action == nil {
		return fmt.Errorf("%w: nil action", ErrRejected)
	}

	entryHash, entryType, bearsEntry := record.EntryAddress(action)
	switch {
	case bearsEntry && entry == nil:
		return fmt.Errorf("%w: %s action without an entry", ErrRejected, action.Kind())
	case !bearsEntry && entry != nil:
		return fmt.Errorf("%w: %s action cannot carry an entry", ErrRejected, action.Kind())
	case bearsEntry && entry.Type != entryType:
		return fmt.Errorf("%w: entry type %q, action names %q", ErrRejected, entry.Type, entryType)
	case bearsEntry && record.HashEntry(*entry) != entryHash:
		return fmt.Errorf("%w: entry does not hash to %s", ErrRejected, entryHash.Short())
	}

	switch a := action.(type) {
	case record.Update:
		return requireEntryAction(lookup, "update", a.OriginalAction, a.OriginalEntry)
	case record.Delete:
		return requireEntryAction(lookup, "delete", a.DeletesAction, a.DeletesEntry)
	case record.DeleteLink:
		original, found, err := lookup(a.LinkAdd)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: delete_link names unknown link %s", ErrRejected, a.LinkAdd.Short())
		}
		createLink, ok := original.Action.(record.CreateLink)
		if !ok {
			return fmt.Errorf("%w: delete_link names a %s", ErrRejected, original.Action.Kind())
		}
		if createLink.Base != a.Base {
			return fmt.Errorf("%w: delete_link base %s, link base %s", ErrRejected, a.Base.Short(), createLink.Base.Short())
		}
	}
	return nil
}

// requireEntryAction checks that target is a Create or Update writing
// targetEntry.
func requireEntryAction(lookup lookupFunc, verb string, target, targetEntry record.Hash) error {
	original, found, err := lookup(target)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s names unknown action %s", ErrRejected, verb, target.Short())
	}
	entryHash, _, ok := record.EntryAddress(original.Action)
	if !ok {
		return fmt.Errorf("%w: %s names a %s", ErrRejected, verb, original.Action.Kind())
	}
	if entryHash != targetEntry {
		return fmt.Errorf("%w: %s names entry %s, action wrote %s", ErrRejected, verb, targetEntry.Short(), entryHash.Short())
	}
	return nil
}

// commitTime reads the clock at nanosecond precision with location and
// monotonic reading stripped, so a timestamp read back from any
// backend equals the one that was hashed.
func commitTime(c clock.Clock) time.Time {
	return time.Unix(0, c.Now().UnixNano()).UTC()
}

// sealRecord builds the committed record for the next position in an
// author's log.
func sealRecord(author record.AgentKey, seq uint64, timestamp time.Time, action record.Action, entry *record.Entry) (record.Record, error) {
	header := record.Header{Author: author, Seq: seq, Timestamp: timestamp, Action: action}
	address, err := header.Address()
	if err != nil {
		return record.Record{}, err
	}
	return record.Record{
		Hash:      address,
		Author:    author,
		Seq:       seq,
		Timestamp: timestamp,
		Action:    action,
		Entry:     entry,
	}, nil
}
