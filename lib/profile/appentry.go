// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package profile

import (
	"github.com/bureau-foundation/profiledir/lib/record"
)

// AppEntry is the closed set of application entries this package
// recognizes. Profile is currently the only member.
type AppEntry interface {
	EntryType() record.EntryType
	isAppEntry()
}

// EntryType implements AppEntry.
func (Profile) EntryType() record.EntryType { return EntryTypeProfile }

func (Profile) isAppEntry() {}

// DecodeAppEntry decodes entry into its application type. It returns
// false with no error when the entry type is not recognized; an error
// means a recognized type failed to decode.
func DecodeAppEntry(entry record.Entry) (AppEntry, bool, error) {
	switch entry.Type {
	case EntryTypeProfile:
		p, err := Decode(entry)
		if err != nil {
			return nil, false, err
		}
		return p, true, nil
	default:
		return nil, false, nil
	}
}
