// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package recordstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/bureau-foundation/profiledir/lib/record"
)

// Store is an append-only log of content-addressed records.
//
// Implementations are safe for concurrent use. Records returned by a
// Store must be treated as immutable, including their Entry payloads.
type Store interface {
	// Commit appends action to author's log and returns the
	// committed record. entry is required for Create and Update and
	// must be nil otherwise.
	Commit(ctx context.Context, author record.AgentKey, action record.Action, entry *record.Entry) (record.Record, error)

	// Get returns the record at an action address. The bool is false
	// when no record has that address.
	Get(ctx context.Context, hash record.Hash) (record.Record, bool, error)

	// GetDetails returns *record.RecordDetails for an action address,
	// *record.EntryDetails for an entry address, or nil when the
	// address is unknown.
	GetDetails(ctx context.Context, hash record.Hash) (record.Details, error)

	// GetLinks returns the live links matching query in commit
	// order. A link is live while no DeleteLink names it.
	GetLinks(ctx context.Context, query LinkQuery) ([]record.Link, error)
}

// LinkQuery selects links by base and type, optionally narrowed to
// tags starting with TagPrefix (a byte-wise prefix match).
type LinkQuery struct {
	Base      record.Hash
	Type      record.LinkType
	TagPrefix []byte
}

// ErrStorage is matched by every *StorageError.
var ErrStorage = errors.New("recordstore: storage failure")

// ErrRejected is matched when a commit is structurally invalid.
var ErrRejected = errors.New("recordstore: commit rejected")

// StorageError reports a failure of the backend itself. Callers
// receive it unchanged through every layer above the store.
type StorageError struct {
	// Op names the store operation that failed.
	Op string

	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("recordstore: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrStorage) true for any StorageError.
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

func storageError(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// CreateLink commits a CreateLink action.
func CreateLink(ctx context.Context, store Store, author record.AgentKey, base, target record.Hash, linkType record.LinkType, tag []byte) (record.Record, error) {
	return store.Commit(ctx, author, record.CreateLink{Base: base, Target: target, LinkType: linkType, Tag: tag}, nil)
}

// DeleteLink commits a DeleteLink tombstoning the CreateLink at
// createLink. The base is copied from the CreateLink record.
func DeleteLink(ctx context.Context, store Store, author record.AgentKey, createLink record.Hash) (record.Record, error) {
	original, found, err := store.Get(ctx, createLink)
	if err != nil {
		return record.Record{}, err
	}
	if !found {
		return record.Record{}, fmt.Errorf("%w: link %s not found", ErrRejected, createLink.Short())
	}
	link, ok := original.Action.(record.CreateLink)
	if !ok {
		return record.Record{}, fmt.Errorf("%w: %s is a %s, not a create_link", ErrRejected, createLink.Short(), original.Action.Kind())
	}
	return store.Commit(ctx, author, record.DeleteLink{LinkAdd: createLink, Base: link.Base}, nil)
}
