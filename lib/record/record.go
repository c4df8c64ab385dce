// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package record

import (
	"bytes"
	"fmt"
	"time"

	"github.com/bureau-foundation/profiledir/lib/codec"
)

// Entry is an application payload attached to a Create or Update
// action. Payload is the encoded application value; its schema is
// named by Type.
type Entry struct {
	Type    EntryType `json:"type"`
	Payload []byte    `json:"payload"`
}

// Record is one committed action. Records are values: once a store
// returns one, nothing about it changes.
type Record struct {
	// Hash is the action address.
	Hash Hash

	// Author is the identity whose log the action was appended to.
	Author AgentKey

	// Seq is the position of the action in the author's log,
	// starting at 1.
	Seq uint64

	// Timestamp is the commit time assigned by the authoring store.
	Timestamp time.Time

	Action Action

	// Entry is set for Create and Update records when the entry is
	// available.
	Entry *Entry
}

// Header is the part of a record that its address covers.
type Header struct {
	Author    AgentKey
	Seq       uint64
	Timestamp time.Time
	Action    Action
}

type headerWire struct {
	Author    AgentKey   `cbor:"author"`
	Seq       uint64     `cbor:"seq"`
	Timestamp int64      `cbor:"ts"`
	Action    ActionWire `cbor:"action"`
}

// Address computes the action address of a header: keyed BLAKE3 over
// its deterministic CBOR encoding. Timestamps are hashed at nanosecond
// precision.
func (h Header) Address() (Hash, error) {
	encoded, err := codec.Marshal(headerWire{
		Author:    h.Author,
		Seq:       h.Seq,
		Timestamp: h.Timestamp.UnixNano(),
		Action:    WireAction(h.Action),
	})
	if err != nil {
		return Hash{}, fmt.Errorf("encoding action header: %w", err)
	}
	return hashAction(encoded), nil
}

// Verify reports whether the record's address matches its header and,
// for entry-bearing actions, whether the attached entry matches the
// entry address the action names.
func (r Record) Verify() error {
	address, err := Header{Author: r.Author, Seq: r.Seq, Timestamp: r.Timestamp, Action: r.Action}.Address()
	if err != nil {
		return err
	}
	if address != r.Hash {
		return fmt.Errorf("record %s: header hashes to %s", r.Hash.Short(), address.Short())
	}
	if r.Entry != nil {
		entryHash, entryType, ok := EntryAddress(r.Action)
		if !ok {
			return fmt.Errorf("record %s: %s action carries an entry", r.Hash.Short(), r.Action.Kind())
		}
		if entryType != r.Entry.Type {
			return fmt.Errorf("record %s: entry type %q, action names %q", r.Hash.Short(), r.Entry.Type, entryType)
		}
		if HashEntry(*r.Entry) != entryHash {
			return fmt.Errorf("record %s: entry does not match entry address %s", r.Hash.Short(), entryHash.Short())
		}
	}
	return nil
}

// Link is a live edge as returned by a link query: the CreateLink
// record flattened, addressed by that record's hash.
type Link struct {
	CreateLink Hash      `json:"create_link_hash"`
	Author     AgentKey  `json:"author"`
	Timestamp  time.Time `json:"timestamp"`
	Base       Hash      `json:"base"`
	Target     Hash      `json:"target"`
	Type       LinkType  `json:"link_type"`
	Tag        []byte    `json:"tag"`
}

// LinkFromRecord flattens a CreateLink record. It returns false for
// any other action.
func LinkFromRecord(r Record) (Link, bool) {
	createLink, ok := r.Action.(CreateLink)
	if !ok {
		return Link{}, false
	}
	return Link{
		CreateLink: r.Hash,
		Author:     r.Author,
		Timestamp:  r.Timestamp,
		Base:       createLink.Base,
		Target:     createLink.Target,
		Type:       createLink.LinkType,
		Tag:        createLink.Tag,
	}, true
}

// HasTagPrefix reports whether the link's tag starts with prefix. An
// empty prefix matches every tag.
func (l Link) HasTagPrefix(prefix []byte) bool {
	return bytes.HasPrefix(l.Tag, prefix)
}

// Details is what a store knows about an address: either an action
// ([RecordDetails]) or an entry ([EntryDetails]).
type Details interface {
	isDetails()
}

// RecordDetails is a record plus every record that references it as
// the action it supersedes or deletes. Updates and Deletes are in
// store order: the last element was appended last.
type RecordDetails struct {
	Record  Record
	Updates []Record
	Deletes []Record
}

// EntryDetails describes an entry address: the entry, the actions that
// wrote it, and the updates and deletes aimed at those actions.
type EntryDetails struct {
	Hash    Hash
	Entry   Entry
	Actions []Record
	Updates []Record
	Deletes []Record
}

func (*RecordDetails) isDetails() {}
func (*EntryDetails) isDetails()  {}
