// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package signal turns locally committed records into typed directory
// events and fans them out to subscribers.
//
// A [Classifier] is installed as the directory's post-commit observer.
// For each record the local participant appends, it decides whether
// the record means something to the directory (a recognized link type
// or application entry) and, if so, emits a [Signal] on a [Hub].
// Delivery is best-effort: a subscriber that falls behind loses
// signals, and a record that cannot be classified is logged and
// skipped without affecting the rest of its batch.
package signal

import (
	"time"

	"github.com/bureau-foundation/profiledir/lib/profile"
	"github.com/bureau-foundation/profiledir/lib/record"
)

// Type names a signal variant on the wire.
type Type string

const (
	TypeLinkCreated  Type = "link_created"
	TypeLinkDeleted  Type = "link_deleted"
	TypeEntryCreated Type = "entry_created"
	TypeEntryUpdated Type = "entry_updated"
	TypeEntryDeleted Type = "entry_deleted"
)

// Signal is the closed set of directory events.
type Signal interface {
	Type() Type

	// Source is the committed record the signal describes.
	Source() record.Record

	isSignal()
}

// LinkCreated reports a CreateLink of a directory link type.
type LinkCreated struct {
	Record   record.Record
	LinkType record.LinkType
}

// LinkDeleted reports a DeleteLink tombstoning a directory link.
// Original is the CreateLink it names.
type LinkDeleted struct {
	Record   record.Record
	Original record.Record
	LinkType record.LinkType
}

// EntryCreated reports a Create of a recognized application entry.
type EntryCreated struct {
	Record record.Record
	Entry  profile.AppEntry
}

// EntryUpdated reports an Update where both the new and the
// superseded entry could be resolved.
type EntryUpdated struct {
	Record        record.Record
	Entry         profile.AppEntry
	OriginalEntry profile.AppEntry
}

// EntryDeleted reports a Delete whose shadowed entry could be
// resolved.
type EntryDeleted struct {
	Record        record.Record
	OriginalEntry profile.AppEntry
}

func (LinkCreated) Type() Type  { return TypeLinkCreated }
func (LinkDeleted) Type() Type  { return TypeLinkDeleted }
func (EntryCreated) Type() Type { return TypeEntryCreated }
func (EntryUpdated) Type() Type { return TypeEntryUpdated }
func (EntryDeleted) Type() Type { return TypeEntryDeleted }

func (s LinkCreated) Source() record.Record  { return s.Record }
func (s LinkDeleted) Source() record.Record  { return s.Record }
func (s EntryCreated) Source() record.Record { return s.Record }
func (s EntryUpdated) Source() record.Record { return s.Record }
func (s EntryDeleted) Source() record.Record { return s.Record }

func (LinkCreated) isSignal()  {}
func (LinkDeleted) isSignal()  {}
func (EntryCreated) isSignal() {}
func (EntryUpdated) isSignal() {}
func (EntryDeleted) isSignal() {}

// Envelope is the serialized form of a signal handed to external
// subscribers. Type discriminates the variant; fields that do not
// apply to it are omitted. The json tags double as CBOR keys.
type Envelope struct {
	Type       Type              `json:"type"`
	ActionHash record.Hash       `json:"action_hash"`
	Author     record.AgentKey   `json:"author"`
	Seq        uint64            `json:"seq"`
	Timestamp  time.Time         `json:"timestamp"`
	Action     record.ActionWire `json:"action"`

	// LinkType is the link type name for link signals.
	LinkType string `json:"link_type,omitempty"`

	// OriginalLink is the CreateLink address a LinkDeleted tombstones.
	OriginalLink *record.Hash `json:"original_link,omitempty"`

	Entry         profile.AppEntry `json:"entry,omitempty"`
	OriginalEntry profile.AppEntry `json:"original_entry,omitempty"`
}

// NewEnvelope converts a signal to its serialized form.
func NewEnvelope(s Signal) Envelope {
	source := s.Source()
	envelope := Envelope{
		Type:       s.Type(),
		ActionHash: source.Hash,
		Author:     source.Author,
		Seq:        source.Seq,
		Timestamp:  source.Timestamp,
		Action:     record.WireAction(source.Action),
	}
	switch s := s.(type) {
	case LinkCreated:
		envelope.LinkType = linkTypeName(s.LinkType)
	case LinkDeleted:
		envelope.LinkType = linkTypeName(s.LinkType)
		envelope.OriginalLink = &s.Original.Hash
	case EntryCreated:
		envelope.Entry = s.Entry
	case EntryUpdated:
		envelope.Entry = s.Entry
		envelope.OriginalEntry = s.OriginalEntry
	case EntryDeleted:
		envelope.OriginalEntry = s.OriginalEntry
	}
	return envelope
}

func linkTypeName(linkType record.LinkType) string {
	name, _ := profile.LinkTypeName(linkType)
	return name
}
