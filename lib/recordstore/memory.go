// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package recordstore

import (
	"context"
	"sync"

	"github.com/bureau-foundation/profiledir/lib/clock"
	"github.com/bureau-foundation/profiledir/lib/record"
)

// MemoryConfig holds the parameters for a MemoryStore.
type MemoryConfig struct {
	// Clock stamps committed records. Defaults to clock.Real().
	Clock clock.Clock
}

// MemoryStore is an in-process Store. Records live in an arena keyed
// by action address; every relation is a secondary index of addresses
// in commit order. Nothing is ever removed from any index.
type MemoryStore struct {
	clock clock.Clock

	mu      sync.RWMutex
	records map[record.Hash]record.Record
	entries map[record.Hash]record.Entry
	heads   map[record.AgentKey]uint64

	// entryActions maps an entry address to the actions that wrote it.
	entryActions map[record.Hash][]record.Hash

	// updates and deletes map an action address to the Update and
	// Delete records that name it.
	updates map[record.Hash][]record.Hash
	deletes map[record.Hash][]record.Hash

	// linksByBase maps (base, type) to CreateLink addresses.
	linksByBase map[linkIndexKey][]record.Hash

	// tombstones maps a CreateLink address to the DeleteLinks naming it.
	tombstones map[record.Hash][]record.Hash
}

type linkIndexKey struct {
	base     record.Hash
	linkType record.LinkType
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore(cfg MemoryConfig) *MemoryStore {
	c := cfg.Clock
	if c == nil {
		c = clock.Real()
	}
	return &MemoryStore{
		clock:        c,
		records:      make(map[record.Hash]record.Record),
		entries:      make(map[record.Hash]record.Entry),
		heads:        make(map[record.AgentKey]uint64),
		entryActions: make(map[record.Hash][]record.Hash),
		updates:      make(map[record.Hash][]record.Hash),
		deletes:      make(map[record.Hash][]record.Hash),
		linksByBase:  make(map[linkIndexKey][]record.Hash),
		tombstones:   make(map[record.Hash][]record.Hash),
	}
}

// Commit implements Store.
func (s *MemoryStore) Commit(ctx context.Context, author record.AgentKey, action record.Action, entry *record.Entry) (record.Record, error) {
	if err := ctx.Err(); err != nil {
		return record.Record{}, storageError("commit", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validateCommit(action, entry, s.lookupLocked); err != nil {
		return record.Record{}, err
	}

	var stored *record.Entry
	if entry != nil {
		copied := record.Entry{Type: entry.Type, Payload: append([]byte(nil), entry.Payload...)}
		stored = &copied
	}

	committed, err := sealRecord(author, s.heads[author]+1, commitTime(s.clock), action, stored)
	if err != nil {
		return record.Record{}, storageError("commit", err)
	}
	s.heads[author] = committed.Seq
	s.records[committed.Hash] = committed

	switch a := action.(type) {
	case record.Create:
		s.entries[a.EntryHash] = *stored
		s.entryActions[a.EntryHash] = append(s.entryActions[a.EntryHash], committed.Hash)
	case record.Update:
		s.entries[a.EntryHash] = *stored
		s.entryActions[a.EntryHash] = append(s.entryActions[a.EntryHash], committed.Hash)
		s.updates[a.OriginalAction] = append(s.updates[a.OriginalAction], committed.Hash)
	case record.Delete:
		s.deletes[a.DeletesAction] = append(s.deletes[a.DeletesAction], committed.Hash)
	case record.CreateLink:
		key := linkIndexKey{base: a.Base, linkType: a.LinkType}
		s.linksByBase[key] = append(s.linksByBase[key], committed.Hash)
	case record.DeleteLink:
		s.tombstones[a.LinkAdd] = append(s.tombstones[a.LinkAdd], committed.Hash)
	}

	return committed, nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, hash record.Hash) (record.Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return record.Record{}, false, storageError("get", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	found, ok := s.records[hash]
	return found, ok, nil
}

// GetDetails implements Store.
func (s *MemoryStore) GetDetails(ctx context.Context, hash record.Hash) (record.Details, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageError("get details", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if found, ok := s.records[hash]; ok {
		return &record.RecordDetails{
			Record:  found,
			Updates: s.resolveLocked(s.updates[hash]),
			Deletes: s.resolveLocked(s.deletes[hash]),
		}, nil
	}

	entry, ok := s.entries[hash]
	if !ok {
		return nil, nil
	}
	details := &record.EntryDetails{
		Hash:    hash,
		Entry:   entry,
		Actions: s.resolveLocked(s.entryActions[hash]),
	}
	for _, action := range s.entryActions[hash] {
		details.Updates = append(details.Updates, s.resolveLocked(s.updates[action])...)
		details.Deletes = append(details.Deletes, s.resolveLocked(s.deletes[action])...)
	}
	return details, nil
}

// GetLinks implements Store.
func (s *MemoryStore) GetLinks(ctx context.Context, query LinkQuery) ([]record.Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageError("get links", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var links []record.Link
	for _, createLink := range s.linksByBase[linkIndexKey{base: query.Base, linkType: query.Type}] {
		if len(s.tombstones[createLink]) > 0 {
			continue
		}
		link, _ := record.LinkFromRecord(s.records[createLink])
		if !link.HasTagPrefix(query.TagPrefix) {
			continue
		}
		links = append(links, link)
	}
	return links, nil
}

// Len returns the number of committed records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *MemoryStore) lookupLocked(hash record.Hash) (record.Record, bool, error) {
	found, ok := s.records[hash]
	return found, ok, nil
}

func (s *MemoryStore) resolveLocked(hashes []record.Hash) []record.Record {
	if len(hashes) == 0 {
		return nil
	}
	resolved := make([]record.Record, 0, len(hashes))
	for _, hash := range hashes {
		resolved = append(resolved, s.records[hash])
	}
	return resolved
}
