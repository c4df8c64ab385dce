// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package profile defines the application schema of the directory: the
// Profile entry, the link types that index it, and decoding of raw
// entries into the closed set of recognized application entries.
//
// Stores carry entries and links from many applications. Anything this
// package does not recognize is someone else's data and is skipped,
// not rejected.
package profile

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bureau-foundation/profiledir/lib/codec"
	"github.com/bureau-foundation/profiledir/lib/record"
)

// EntryTypeProfile is the entry type of profile entries.
const EntryTypeProfile record.EntryType = "profiles/profile"

// Link types owned by the directory.
const (
	// PrefixPath joins an index path to each of its child paths. The
	// tag is the child's last segment.
	PrefixPath record.LinkType = 1

	// PathToAgent joins a bucket path to an identity whose current
	// nickname falls in the bucket. The tag is the lowercased
	// nickname.
	PathToAgent record.LinkType = 2

	// AgentToProfile joins an identity to the first action of its
	// profile's update chain.
	AgentToProfile record.LinkType = 3
)

// LinkTypeName returns the name of a directory link type, or false if
// the type belongs to some other application.
func LinkTypeName(linkType record.LinkType) (string, bool) {
	switch linkType {
	case PrefixPath:
		return "PrefixPath", true
	case PathToAgent:
		return "PathToAgent", true
	case AgentToProfile:
		return "AgentToProfile", true
	default:
		return "", false
	}
}

const (
	// MinNicknameLength is the shortest nickname, in characters, that
	// can be registered. It equals the bucket key length so every
	// registered profile is reachable by search.
	MinNicknameLength = 3

	// MaxNicknameLength bounds nickname size, in characters.
	MaxNicknameLength = 64
)

// ErrInvalid is matched by every validation failure.
var ErrInvalid = errors.New("profile: invalid")

// Profile is a participant's self-description. The nickname is the
// only indexed field.
type Profile struct {
	Nickname string            `json:"nickname"`
	Fields   map[string]string `json:"fields,omitempty"`
}

// Validate checks the nickname length bounds.
func (p Profile) Validate() error {
	length := utf8.RuneCountInString(p.Nickname)
	if length < MinNicknameLength {
		return fmt.Errorf("%w: nickname %q is shorter than %d characters", ErrInvalid, p.Nickname, MinNicknameLength)
	}
	if length > MaxNicknameLength {
		return fmt.Errorf("%w: nickname is %d characters, maximum is %d", ErrInvalid, length, MaxNicknameLength)
	}
	if strings.TrimSpace(p.Nickname) != p.Nickname {
		return fmt.Errorf("%w: nickname %q has leading or trailing whitespace", ErrInvalid, p.Nickname)
	}
	return nil
}

// Equal reports whether two profiles have the same nickname and
// fields. A nil and an empty Fields map are equal.
func (p Profile) Equal(other Profile) bool {
	if p.Nickname != other.Nickname || len(p.Fields) != len(other.Fields) {
		return false
	}
	for key, value := range p.Fields {
		if otherValue, ok := other.Fields[key]; !ok || otherValue != value {
			return false
		}
	}
	return true
}

// Entry encodes the profile as a store entry.
func (p Profile) Entry() (record.Entry, error) {
	payload, err := codec.Marshal(p)
	if err != nil {
		return record.Entry{}, fmt.Errorf("encoding profile: %w", err)
	}
	return record.Entry{Type: EntryTypeProfile, Payload: payload}, nil
}

// Decode decodes a profile entry.
func Decode(entry record.Entry) (Profile, error) {
	if entry.Type != EntryTypeProfile {
		return Profile{}, fmt.Errorf("entry type %q is not a profile", entry.Type)
	}
	var p Profile
	if err := codec.Unmarshal(entry.Payload, &p); err != nil {
		return Profile{}, fmt.Errorf("decoding profile: %w", err)
	}
	return p, nil
}

// FromRecord decodes the profile carried by a Create or Update record.
func FromRecord(r record.Record) (Profile, error) {
	if r.Entry == nil {
		return Profile{}, fmt.Errorf("record %s carries no entry", r.Hash.Short())
	}
	return Decode(*r.Entry)
}
