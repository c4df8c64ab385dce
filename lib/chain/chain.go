// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package chain resolves update chains to their latest version.
//
// A logically mutable entry is a Create followed by Updates, each
// naming the action it supersedes. The latest version is found by
// starting from any action in the chain and repeatedly following the
// most recently appended Update that names the current action, until
// an action with no Updates is reached. Records are immutable and an
// Update can only name an action that existed before it, so the walk
// always terminates.
package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/bureau-foundation/profiledir/lib/record"
	"github.com/bureau-foundation/profiledir/lib/recordstore"
)

// ErrMalformedChain is matched by every *MalformedChainError.
var ErrMalformedChain = errors.New("chain: malformed update chain")

// MalformedChainError reports an address in an update chain that does
// not resolve to a Create or Update record with its entry.
type MalformedChainError struct {
	Hash   record.Hash
	Reason string
}

func (e *MalformedChainError) Error() string {
	return fmt.Sprintf("chain: malformed update chain at %s: %s", e.Hash.Short(), e.Reason)
}

// Is makes errors.Is(err, ErrMalformedChain) true.
func (e *MalformedChainError) Is(target error) bool { return target == ErrMalformedChain }

// Resolver walks update chains in a store.
type Resolver struct {
	store recordstore.Store
}

// NewResolver returns a Resolver reading from store.
func NewResolver(store recordstore.Store) *Resolver {
	return &Resolver{store: store}
}

// Latest returns the newest version of the chain containing hash.
// When several Updates supersede the same action, the one the store
// appended last wins. Store failures are returned unchanged.
func (r *Resolver) Latest(ctx context.Context, hash record.Hash) (record.Record, error) {
	var latest record.Record
	err := r.walk(ctx, hash, func(version record.Record) { latest = version })
	if err != nil {
		return record.Record{}, err
	}
	return latest, nil
}

// History returns every version along the path Latest takes, oldest
// first.
func (r *Resolver) History(ctx context.Context, hash record.Hash) ([]record.Record, error) {
	var versions []record.Record
	err := r.walk(ctx, hash, func(version record.Record) { versions = append(versions, version) })
	if err != nil {
		return nil, err
	}
	return versions, nil
}

func (r *Resolver) walk(ctx context.Context, hash record.Hash, visit func(record.Record)) error {
	current := hash
	for {
		details, err := r.store.GetDetails(ctx, current)
		if err != nil {
			return err
		}
		recordDetails, err := chainLink(current, details)
		if err != nil {
			return err
		}
		visit(recordDetails.Record)
		if len(recordDetails.Updates) == 0 {
			return nil
		}
		current = recordDetails.Updates[len(recordDetails.Updates)-1].Hash
	}
}

func chainLink(hash record.Hash, details record.Details) (*record.RecordDetails, error) {
	switch d := details.(type) {
	case nil:
		return nil, &MalformedChainError{Hash: hash, Reason: "no record at address"}
	case *record.EntryDetails:
		return nil, &MalformedChainError{Hash: hash, Reason: "address names an entry, not an action"}
	case *record.RecordDetails:
		if _, _, ok := record.EntryAddress(d.Record.Action); !ok {
			return nil, &MalformedChainError{Hash: hash, Reason: fmt.Sprintf("%s record cannot be part of an update chain", d.Record.Action.Kind())}
		}
		if d.Record.Entry == nil {
			return nil, &MalformedChainError{Hash: hash, Reason: "entry is not available"}
		}
		return d, nil
	default:
		return nil, &MalformedChainError{Hash: hash, Reason: fmt.Sprintf("unexpected details %T", details)}
	}
}
