// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package record

import (
	"fmt"
)

// ActionKind tags the operation a record represents. The values are
// part of every action address; do not renumber.
type ActionKind uint8

const (
	ActionCreate     ActionKind = 1
	ActionUpdate     ActionKind = 2
	ActionDelete     ActionKind = 3
	ActionCreateLink ActionKind = 4
	ActionDeleteLink ActionKind = 5
)

// String returns the lowercase name of the kind.
func (k ActionKind) String() string {
	switch k {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	case ActionCreateLink:
		return "create_link"
	case ActionDeleteLink:
		return "delete_link"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// EntryType names the application schema of an entry payload. Entry
// types are owned by the application packages that define them.
type EntryType string

// LinkType distinguishes edges. Link types are owned by application
// packages; the store treats them as opaque numbers.
type LinkType uint8

// Action is the closed set of operations a record can carry: Create,
// Update, Delete, CreateLink, DeleteLink.
type Action interface {
	Kind() ActionKind
	isAction()
}

// Create writes a new entry.
type Create struct {
	EntryType EntryType
	EntryHash Hash
}

// Update writes a new entry that supersedes the entry written by
// OriginalAction.
type Update struct {
	EntryType      EntryType
	EntryHash      Hash
	OriginalAction Hash
	OriginalEntry  Hash
}

// Delete shadows the entry written by DeletesAction.
type Delete struct {
	DeletesAction Hash
	DeletesEntry  Hash
}

// CreateLink adds a typed, tagged edge from Base to Target.
type CreateLink struct {
	Base     Hash
	Target   Hash
	LinkType LinkType
	Tag      []byte
}

// DeleteLink tombstones the edge added by the CreateLink at LinkAdd.
type DeleteLink struct {
	LinkAdd Hash
	Base    Hash
}

func (Create) Kind() ActionKind     { return ActionCreate }
func (Update) Kind() ActionKind     { return ActionUpdate }
func (Delete) Kind() ActionKind     { return ActionDelete }
func (CreateLink) Kind() ActionKind { return ActionCreateLink }
func (DeleteLink) Kind() ActionKind { return ActionDeleteLink }

func (Create) isAction()     {}
func (Update) isAction()     {}
func (Delete) isAction()     {}
func (CreateLink) isAction() {}
func (DeleteLink) isAction() {}

// EntryAddress returns the entry an action writes, for Create and
// Update.
func EntryAddress(action Action) (Hash, EntryType, bool) {
	switch a := action.(type) {
	case Create:
		return a.EntryHash, a.EntryType, true
	case Update:
		return a.EntryHash, a.EntryType, true
	default:
		return Hash{}, "", false
	}
}

// ActionWire is the serialized form of an action. Persistent backends
// store it, action addresses are computed over it, and signal
// envelopes embed it. Fields not used by a kind are omitted. The json
// tags double as CBOR keys.
type ActionWire struct {
	Kind           ActionKind `json:"kind"`
	EntryType      EntryType  `json:"entry_type,omitempty"`
	EntryHash      *Hash      `json:"entry_hash,omitempty"`
	OriginalAction *Hash      `json:"original_action,omitempty"`
	OriginalEntry  *Hash      `json:"original_entry,omitempty"`
	Base           *Hash      `json:"base,omitempty"`
	Target         *Hash      `json:"target,omitempty"`
	LinkType       LinkType   `json:"link_type,omitempty"`
	Tag            []byte     `json:"tag,omitempty"`
	LinkAdd        *Hash      `json:"link_add,omitempty"`
}

// WireAction converts an action to its serialized form.
func WireAction(action Action) ActionWire {
	switch a := action.(type) {
	case Create:
		return ActionWire{Kind: ActionCreate, EntryType: a.EntryType, EntryHash: &a.EntryHash}
	case Update:
		return ActionWire{
			Kind:           ActionUpdate,
			EntryType:      a.EntryType,
			EntryHash:      &a.EntryHash,
			OriginalAction: &a.OriginalAction,
			OriginalEntry:  &a.OriginalEntry,
		}
	case Delete:
		return ActionWire{Kind: ActionDelete, OriginalAction: &a.DeletesAction, OriginalEntry: &a.DeletesEntry}
	case CreateLink:
		return ActionWire{Kind: ActionCreateLink, Base: &a.Base, Target: &a.Target, LinkType: a.LinkType, Tag: a.Tag}
	case DeleteLink:
		return ActionWire{Kind: ActionDeleteLink, Base: &a.Base, LinkAdd: &a.LinkAdd}
	default:
		panic(fmt.Sprintf("record: unhandled action type %T", action))
	}
}

// Action converts the serialized form back into an Action. Missing
// required fields or an unknown kind are errors.
func (w ActionWire) Action() (Action, error) {
	need := func(name string, hash *Hash) (Hash, error) {
		if hash == nil {
			return Hash{}, fmt.Errorf("%s action missing %s", w.Kind, name)
		}
		return *hash, nil
	}
	var errs [4]error
	switch w.Kind {
	case ActionCreate:
		var action Create
		action.EntryType = w.EntryType
		action.EntryHash, errs[0] = need("entry_hash", w.EntryHash)
		return orError(action, errs[:])
	case ActionUpdate:
		var action Update
		action.EntryType = w.EntryType
		action.EntryHash, errs[0] = need("entry_hash", w.EntryHash)
		action.OriginalAction, errs[1] = need("original_action", w.OriginalAction)
		action.OriginalEntry, errs[2] = need("original_entry", w.OriginalEntry)
		return orError(action, errs[:])
	case ActionDelete:
		var action Delete
		action.DeletesAction, errs[0] = need("original_action", w.OriginalAction)
		action.DeletesEntry, errs[1] = need("original_entry", w.OriginalEntry)
		return orError(action, errs[:])
	case ActionCreateLink:
		var action CreateLink
		action.Base, errs[0] = need("base", w.Base)
		action.Target, errs[1] = need("target", w.Target)
		action.LinkType = w.LinkType
		action.Tag = w.Tag
		return orError(action, errs[:])
	case ActionDeleteLink:
		var action DeleteLink
		action.Base, errs[0] = need("base", w.Base)
		action.LinkAdd, errs[1] = need("link_add", w.LinkAdd)
		return orError(action, errs[:])
	default:
		return nil, fmt.Errorf("unknown action kind %d", uint8(w.Kind))
	}
}

func orError(action Action, errs []error) (Action, error) {
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return action, nil
}
