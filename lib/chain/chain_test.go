// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chain

import (
	"context"
	"errors"
	"testing"

	"github.com/bureau-foundation/profiledir/lib/record"
	"github.com/bureau-foundation/profiledir/lib/recordstore"
)

var author = record.AgentKey{1}

func create(t *testing.T, store recordstore.Store, payload string) record.Record {
	t.Helper()
	entry := record.Entry{Type: "test/text", Payload: []byte(payload)}
	committed, err := store.Commit(context.Background(), author,
		record.Create{EntryType: entry.Type, EntryHash: record.HashEntry(entry)}, &entry)
	if err != nil {
		t.Fatalf("Commit(create): %v", err)
	}
	return committed
}

func update(t *testing.T, store recordstore.Store, original record.Record, payload string) record.Record {
	t.Helper()
	entry := record.Entry{Type: "test/text", Payload: []byte(payload)}
	originalEntry, _, _ := record.EntryAddress(original.Action)
	committed, err := store.Commit(context.Background(), author, record.Update{
		EntryType:      entry.Type,
		EntryHash:      record.HashEntry(entry),
		OriginalAction: original.Hash,
		OriginalEntry:  originalEntry,
	}, &entry)
	if err != nil {
		t.Fatalf("Commit(update): %v", err)
	}
	return committed
}

func TestLatestFollowsChain(t *testing.T) {
	store := recordstore.NewMemoryStore(recordstore.MemoryConfig{})
	resolver := NewResolver(store)

	v1 := create(t, store, "v1")
	v2 := update(t, store, v1, "v2")
	v3 := update(t, store, v2, "v3")

	for _, start := range []record.Record{v1, v2, v3} {
		latest, err := resolver.Latest(context.Background(), start.Hash)
		if err != nil {
			t.Fatalf("Latest(%s): %v", start.Hash.Short(), err)
		}
		if latest.Hash != v3.Hash {
			t.Errorf("Latest(%s) = %s, want %s", start.Hash.Short(), latest.Hash.Short(), v3.Hash.Short())
		}
		if string(latest.Entry.Payload) != "v3" {
			t.Errorf("Latest entry = %q, want v3", latest.Entry.Payload)
		}
	}
}

func TestLatestOfUnupdatedCreate(t *testing.T) {
	store := recordstore.NewMemoryStore(recordstore.MemoryConfig{})
	v1 := create(t, store, "only")

	latest, err := NewResolver(store).Latest(context.Background(), v1.Hash)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.Hash != v1.Hash {
		t.Errorf("Latest = %s, want %s", latest.Hash.Short(), v1.Hash.Short())
	}
}

func TestLatestPrefersLastAppendedUpdate(t *testing.T) {
	store := recordstore.NewMemoryStore(recordstore.MemoryConfig{})
	v1 := create(t, store, "v1")
	update(t, store, v1, "fork-a")
	forkB := update(t, store, v1, "fork-b")

	latest, err := NewResolver(store).Latest(context.Background(), v1.Hash)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.Hash != forkB.Hash {
		t.Errorf("Latest = %q, want fork-b", latest.Entry.Payload)
	}
}

func TestHistory(t *testing.T) {
	store := recordstore.NewMemoryStore(recordstore.MemoryConfig{})
	v1 := create(t, store, "v1")
	v2 := update(t, store, v1, "v2")
	v3 := update(t, store, v2, "v3")

	history, err := NewResolver(store).History(context.Background(), v1.Hash)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	want := []record.Hash{v1.Hash, v2.Hash, v3.Hash}
	if len(history) != len(want) {
		t.Fatalf("History has %d versions, want %d", len(history), len(want))
	}
	for i := range want {
		if history[i].Hash != want[i] {
			t.Errorf("History[%d] = %s, want %s", i, history[i].Hash.Short(), want[i].Short())
		}
	}
}

func TestLatestMalformed(t *testing.T) {
	ctx := context.Background()
	store := recordstore.NewMemoryStore(recordstore.MemoryConfig{})
	created := create(t, store, "v1")
	link, err := recordstore.CreateLink(ctx, store, author, created.Hash, record.Hash{2}, 1, nil)
	if err != nil {
		t.Fatalf("CreateLink: %v", err)
	}
	entryAddress, _, _ := record.EntryAddress(created.Action)

	tests := []struct {
		name string
		hash record.Hash
	}{
		{"absent", record.Hash{0xee}},
		{"entry address", entryAddress},
		{"link record", link.Hash},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := NewResolver(store).Latest(ctx, test.hash)
			if !errors.Is(err, ErrMalformedChain) {
				t.Fatalf("Latest error = %v, want ErrMalformedChain", err)
			}
			var malformed *MalformedChainError
			if !errors.As(err, &malformed) || malformed.Hash != test.hash {
				t.Errorf("error = %#v, want *MalformedChainError at %s", err, test.hash.Short())
			}
		})
	}
}

type failingStore struct {
	recordstore.Store
}

func (failingStore) GetDetails(context.Context, record.Hash) (record.Details, error) {
	return nil, &recordstore.StorageError{Op: "get details", Err: errors.New("unreachable")}
}

func TestLatestPropagatesStorageError(t *testing.T) {
	_, err := NewResolver(failingStore{}).Latest(context.Background(), record.Hash{1})
	if !errors.Is(err, recordstore.ErrStorage) {
		t.Fatalf("Latest error = %v, want ErrStorage", err)
	}
	if errors.Is(err, ErrMalformedChain) {
		t.Errorf("storage failure reported as malformed chain: %v", err)
	}
}
