// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/bureau-foundation/profiledir/lib/chain"
	"github.com/bureau-foundation/profiledir/lib/pathindex"
	"github.com/bureau-foundation/profiledir/lib/profile"
	"github.com/bureau-foundation/profiledir/lib/record"
	"github.com/bureau-foundation/profiledir/lib/recordstore"
)

func agent(seed byte) record.AgentKey {
	var key record.AgentKey
	for i := range key {
		key[i] = seed
	}
	return key
}

type recordingObserver struct {
	mu      sync.Mutex
	batches [][]record.Record
}

func (o *recordingObserver) PostCommit(_ context.Context, records []record.Record) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.batches = append(o.batches, records)
}

func (o *recordingObserver) kinds(batch int) []record.ActionKind {
	o.mu.Lock()
	defer o.mu.Unlock()
	var kinds []record.ActionKind
	for _, r := range o.batches[batch] {
		kinds = append(kinds, r.Action.Kind())
	}
	return kinds
}

func newDirectory(t *testing.T, store recordstore.Store, author record.AgentKey, observer CommitObserver) *Directory {
	t.Helper()
	directory, err := New(Config{Store: store, Author: author, Observer: observer})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return directory
}

func register(t *testing.T, directory *Directory, nickname string) ProfileRecord {
	t.Helper()
	registered, err := directory.Register(context.Background(), directory.Author(), profile.Profile{Nickname: nickname})
	if err != nil {
		t.Fatalf("Register(%q): %v", nickname, err)
	}
	return registered
}

func search(t *testing.T, directory *Directory, prefix string) []record.AgentKey {
	t.Helper()
	agents, err := directory.Search(context.Background(), prefix)
	if err != nil {
		t.Fatalf("Search(%q): %v", prefix, err)
	}
	return agents
}

func assertAgents(t *testing.T, label string, got []record.AgentKey, want ...record.AgentKey) {
	t.Helper()
	sortKeys := func(keys []record.AgentKey) []record.AgentKey {
		sorted := slices.Clone(keys)
		slices.SortFunc(sorted, func(a, b record.AgentKey) int { return slices.Compare(a[:], b[:]) })
		return sorted
	}
	if !slices.Equal(sortKeys(got), sortKeys(want)) {
		t.Errorf("%s = %v, want %v", label, shortKeys(got), shortKeys(want))
	}
}

func shortKeys(keys []record.AgentKey) []string {
	result := make([]string, len(keys))
	for i, key := range keys {
		result[i] = key.Short()
	}
	return result
}

func TestRegisterGetSearchList(t *testing.T) {
	ctx := context.Background()
	store := recordstore.NewMemoryStore(recordstore.MemoryConfig{})
	k1 := agent(1)
	directory := newDirectory(t, store, k1, nil)

	want := profile.Profile{Nickname: "carol", Fields: map[string]string{"avatar": "https://example.com/carol.png"}}
	registered, err := directory.Register(ctx, k1, want)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if registered.Record.Action.Kind() != record.ActionCreate {
		t.Errorf("Register returned a %s record", registered.Record.Action.Kind())
	}

	got, found, err := directory.Get(ctx, k1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !found {
		t.Fatal("Get after Register found nothing")
	}
	if !got.Profile.Equal(want) {
		t.Errorf("Get = %+v, want %+v", got.Profile, want)
	}
	if got.Record.Hash != registered.Record.Hash {
		t.Errorf("Get record = %s, want %s", got.Record.Hash.Short(), registered.Record.Hash.Short())
	}

	assertAgents(t, `Search("car")`, search(t, directory, "car"), k1)
	assertAgents(t, `Search("CARO")`, search(t, directory, "CARO"), k1)
	assertAgents(t, `Search("carl")`, search(t, directory, "carl"))
	assertAgents(t, `Search("bob")`, search(t, directory, "bob"))

	all, err := directory.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	assertAgents(t, "ListAll", all, k1)
}

func TestRegisterTwice(t *testing.T) {
	store := recordstore.NewMemoryStore(recordstore.MemoryConfig{})
	directory := newDirectory(t, store, agent(1), nil)
	register(t, directory, "carol")
	before := store.Len()

	_, err := directory.Register(context.Background(), agent(1), profile.Profile{Nickname: "someone-else"})
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("second Register error = %v, want ErrAlreadyRegistered", err)
	}
	if store.Len() != before {
		t.Errorf("failed Register committed %d records", store.Len()-before)
	}
}

func TestWritesRejectedBeforeIO(t *testing.T) {
	store := recordstore.NewMemoryStore(recordstore.MemoryConfig{})
	directory := newDirectory(t, store, agent(1), nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		identity record.AgentKey
		nickname string
		want     error
	}{
		{"other identity", agent(2), "mallory", ErrNotAuthor},
		{"short nickname", agent(1), "ab", ErrInvalidProfile},
		{"empty nickname", agent(1), "", ErrInvalidProfile},
		{"padded nickname", agent(1), " carol", ErrInvalidProfile},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := directory.Register(ctx, test.identity, profile.Profile{Nickname: test.nickname})
			if !errors.Is(err, test.want) {
				t.Errorf("Register error = %v, want %v", err, test.want)
			}
			_, err = directory.Update(ctx, test.identity, profile.Profile{Nickname: test.nickname})
			if !errors.Is(err, test.want) {
				t.Errorf("Update error = %v, want %v", err, test.want)
			}
		})
	}
	if store.Len() != 0 {
		t.Errorf("rejected writes committed %d records", store.Len())
	}

	_, err := directory.Register(ctx, agent(1), profile.Profile{Nickname: "ab"})
	if !errors.Is(err, profile.ErrInvalid) {
		t.Errorf("invalid profile error %v does not wrap profile.ErrInvalid", err)
	}
}

func TestSharedBucket(t *testing.T) {
	store := recordstore.NewMemoryStore(recordstore.MemoryConfig{})
	k1, k2, k3 := agent(1), agent(2), agent(3)
	carol := newDirectory(t, store, k1, nil)
	carla := newDirectory(t, store, k2, nil)
	bob := newDirectory(t, store, k3, nil)

	register(t, carol, "carol")
	register(t, carla, "Carla")
	register(t, bob, "bob")

	assertAgents(t, `Search("car")`, search(t, bob, "car"), k1, k2)
	assertAgents(t, `Search("carl")`, search(t, bob, "carl"), k2)
	assertAgents(t, `Search("CAROL")`, search(t, bob, "CAROL"), k1)
	assertAgents(t, `Search("carolyn")`, search(t, bob, "carolyn"))

	all, err := carol.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	assertAgents(t, "ListAll", all, k1, k2, k3)

	// Each participant reads the others' profiles.
	got, found, err := bob.Get(context.Background(), k2)
	if err != nil || !found {
		t.Fatalf("Get(k2) = found %v, err %v", found, err)
	}
	if got.Profile.Nickname != "Carla" {
		t.Errorf("Get(k2) nickname = %q, want Carla", got.Profile.Nickname)
	}
}

func TestSearchInvalidPrefix(t *testing.T) {
	directory := newDirectory(t, recordstore.NewMemoryStore(recordstore.MemoryConfig{}), agent(1), nil)
	for _, prefix := range []string{"", "a", "ab", "AB", "é", "日本"} {
		_, err := directory.Search(context.Background(), prefix)
		if !errors.Is(err, ErrInvalidPrefix) {
			t.Errorf("Search(%q) error = %v, want ErrInvalidPrefix", prefix, err)
		}
	}
	// Three characters is enough even when they are multi-byte.
	if _, err := directory.Search(context.Background(), "日本語"); err != nil {
		t.Errorf("Search(three runes) = %v", err)
	}
}

func TestUpdateRename(t *testing.T) {
	ctx := context.Background()
	store := recordstore.NewMemoryStore(recordstore.MemoryConfig{})
	id := agent(1)
	observer := &recordingObserver{}
	directory := newDirectory(t, store, id, observer)
	register(t, directory, "Alice")

	updated, err := directory.Update(ctx, id, profile.Profile{Nickname: "Bob"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Record.Action.Kind() != record.ActionUpdate {
		t.Errorf("Update returned a %s record", updated.Record.Action.Kind())
	}

	assertAgents(t, `Search("ali")`, search(t, directory, "ali"))
	assertAgents(t, `Search("bob")`, search(t, directory, "bob"), id)

	got, found, err := directory.Get(ctx, id)
	if err != nil || !found {
		t.Fatalf("Get = found %v, err %v", found, err)
	}
	if got.Profile.Nickname != "Bob" || got.Record.Hash != updated.Record.Hash {
		t.Errorf("Get = %q at %s, want Bob at %s", got.Profile.Nickname, got.Record.Hash.Short(), updated.Record.Hash.Short())
	}

	all, err := directory.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	assertAgents(t, "ListAll", all, id)

	want := []record.ActionKind{
		record.ActionUpdate,
		record.ActionDeleteLink,
		record.ActionCreateLink,
		record.ActionCreateLink,
	}
	if got := observer.kinds(1); !slices.Equal(got, want) {
		t.Errorf("rename committed %v, want %v", got, want)
	}
}

func TestUpdateSameNickname(t *testing.T) {
	ctx := context.Background()
	store := recordstore.NewMemoryStore(recordstore.MemoryConfig{})
	id := agent(1)
	directory := newDirectory(t, store, id, nil)
	register(t, directory, "alice")

	for _, next := range []profile.Profile{
		{Nickname: "alice", Fields: map[string]string{"bio": "hello"}},
		{Nickname: "ALICE"},
	} {
		before := store.Len()
		if _, err := directory.Update(ctx, id, next); err != nil {
			t.Fatalf("Update(%+v): %v", next, err)
		}
		if committed := store.Len() - before; committed != 1 {
			t.Errorf("Update(%+v) committed %d records, want only the update", next, committed)
		}
	}

	assertAgents(t, `Search("ali")`, search(t, directory, "ali"), id)
	links, err := store.GetLinks(ctx, recordstore.LinkQuery{
		Base: pathindex.ForNickname("alice").Hash(),
		Type: profile.PathToAgent,
	})
	if err != nil {
		t.Fatalf("GetLinks: %v", err)
	}
	if len(links) != 1 {
		t.Errorf("bucket holds %d index links, want 1", len(links))
	}

	got, _, err := directory.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Profile.Nickname != "ALICE" {
		t.Errorf("Get nickname = %q, want ALICE", got.Profile.Nickname)
	}
}

func TestUpdateChainResolvesLatest(t *testing.T) {
	ctx := context.Background()
	store := recordstore.NewMemoryStore(recordstore.MemoryConfig{})
	id := agent(1)
	directory := newDirectory(t, store, id, nil)
	register(t, directory, "dave")

	var last ProfileRecord
	for _, bio := range []string{"one", "two", "three"} {
		var err error
		last, err = directory.Update(ctx, id, profile.Profile{Nickname: "dave", Fields: map[string]string{"bio": bio}})
		if err != nil {
			t.Fatalf("Update(%s): %v", bio, err)
		}
	}

	got, _, err := directory.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Record.Hash != last.Record.Hash || got.Profile.Fields["bio"] != "three" {
		t.Errorf("Get = %+v at %s, want bio three at %s", got.Profile, got.Record.Hash.Short(), last.Record.Hash.Short())
	}
}

func TestUpdateNotRegistered(t *testing.T) {
	directory := newDirectory(t, recordstore.NewMemoryStore(recordstore.MemoryConfig{}), agent(1), nil)
	_, err := directory.Update(context.Background(), agent(1), profile.Profile{Nickname: "nobody"})
	if !errors.Is(err, ErrNotRegistered) {
		t.Errorf("Update error = %v, want ErrNotRegistered", err)
	}
}

func TestGetUnknown(t *testing.T) {
	directory := newDirectory(t, recordstore.NewMemoryStore(recordstore.MemoryConfig{}), agent(1), nil)
	_, found, err := directory.Get(context.Background(), agent(9))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if found {
		t.Error("Get of an unregistered identity reported found")
	}
}

func TestGetNonProfileChain(t *testing.T) {
	ctx := context.Background()
	store := recordstore.NewMemoryStore(recordstore.MemoryConfig{})
	id := agent(1)
	entry := record.Entry{Type: "other/app", Payload: []byte{0xa0}}
	created, err := store.Commit(ctx, id, record.Create{EntryType: entry.Type, EntryHash: record.HashEntry(entry)}, &entry)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if _, err := recordstore.CreateLink(ctx, store, id, id.Hash(), created.Hash, profile.AgentToProfile, nil); err != nil {
		t.Fatalf("CreateLink: %v", err)
	}

	_, _, err = newDirectory(t, store, id, nil).Get(ctx, id)
	if !errors.Is(err, chain.ErrMalformedChain) {
		t.Errorf("Get error = %v, want ErrMalformedChain", err)
	}
}

func TestObserverBatches(t *testing.T) {
	store := recordstore.NewMemoryStore(recordstore.MemoryConfig{})
	observer := &recordingObserver{}
	first := newDirectory(t, store, agent(1), observer)
	second := newDirectory(t, store, agent(2), observer)

	register(t, first, "carol")
	register(t, second, "carla")

	// The first registration in a bucket also materializes it.
	want := []record.ActionKind{
		record.ActionCreate,
		record.ActionCreateLink,
		record.ActionCreateLink,
		record.ActionCreateLink,
	}
	if got := observer.kinds(0); !slices.Equal(got, want) {
		t.Errorf("first registration committed %v, want %v", got, want)
	}
	if got := observer.kinds(1); !slices.Equal(got, slices.Delete(slices.Clone(want), 1, 2)) {
		t.Errorf("second registration committed %v", got)
	}

	if _, err := first.Search(context.Background(), "car"); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(observer.batches) != 2 {
		t.Errorf("reads produced %d extra batches", len(observer.batches)-2)
	}
}

// faultyStore fails Commit after allow successful commits, and every
// GetLinks once failLinks is set.
type faultyStore struct {
	recordstore.Store
	allow     int
	failLinks bool
}

func (s *faultyStore) Commit(ctx context.Context, author record.AgentKey, action record.Action, entry *record.Entry) (record.Record, error) {
	if s.allow == 0 {
		return record.Record{}, &recordstore.StorageError{Op: "commit", Err: errors.New("disk full")}
	}
	s.allow--
	return s.Store.Commit(ctx, author, action, entry)
}

func (s *faultyStore) GetLinks(ctx context.Context, query recordstore.LinkQuery) ([]record.Link, error) {
	if s.failLinks {
		return nil, &recordstore.StorageError{Op: "get links", Err: errors.New("io error")}
	}
	return s.Store.GetLinks(ctx, query)
}

func TestStorageErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	store := &faultyStore{Store: recordstore.NewMemoryStore(recordstore.MemoryConfig{}), allow: 2}
	observer := &recordingObserver{}
	directory := newDirectory(t, store, agent(1), observer)

	_, err := directory.Register(ctx, agent(1), profile.Profile{Nickname: "carol"})
	var storageErr *recordstore.StorageError
	if !errors.As(err, &storageErr) || storageErr.Op != "commit" {
		t.Fatalf("Register error = %v, want *StorageError from commit", err)
	}
	// The records that did reach the log are still reported.
	if got := len(observer.batches); got != 1 || len(observer.batches[0]) != 2 {
		t.Errorf("observer batches = %d, want one batch of 2", got)
	}

	store.failLinks = true
	checks := map[string]func() error{
		"Search":   func() error { _, err := directory.Search(ctx, "car"); return err },
		"ListAll":  func() error { _, err := directory.ListAll(ctx); return err },
		"Get":      func() error { _, _, err := directory.Get(ctx, agent(1)); return err },
		"Register": func() error { _, err := directory.Register(ctx, agent(1), profile.Profile{Nickname: "carol"}); return err },
		"Update":   func() error { _, err := directory.Update(ctx, agent(1), profile.Profile{Nickname: "carol"}); return err },
	}
	for name, check := range checks {
		if err := check(); !errors.Is(err, recordstore.ErrStorage) {
			t.Errorf("%s error = %v, want ErrStorage", name, err)
		}
	}
}

func TestNewRequiresStore(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New without a store succeeded")
	}
}

// rejectingStore refuses every DeleteLink commit, as a store does
// when the link it names cannot be found.
type rejectingStore struct {
	recordstore.Store
}

func (s *rejectingStore) Commit(ctx context.Context, author record.AgentKey, action record.Action, entry *record.Entry) (record.Record, error) {
	if _, ok := action.(record.DeleteLink); ok {
		return record.Record{}, fmt.Errorf("%w: delete_link names unknown link", recordstore.ErrRejected)
	}
	return s.Store.Commit(ctx, author, action, entry)
}

func TestUpdateSurfacesStoreRejection(t *testing.T) {
	ctx := context.Background()
	store := &rejectingStore{Store: recordstore.NewMemoryStore(recordstore.MemoryConfig{})}
	observer := &recordingObserver{}
	directory := newDirectory(t, store, agent(1), observer)
	register(t, directory, "carol")

	_, err := directory.Update(ctx, agent(1), profile.Profile{Nickname: "dave"})
	if !errors.Is(err, recordstore.ErrRejected) {
		t.Fatalf("Update error = %v, want ErrRejected", err)
	}
	if errors.Is(err, recordstore.ErrStorage) {
		t.Errorf("rejection reported as a storage failure: %v", err)
	}

	// The new version reached the log before the rejection and is
	// both visible and reported.
	if got := observer.kinds(1); len(got) != 1 || got[0] != record.ActionUpdate {
		t.Errorf("observer batch = %v, want [update]", got)
	}
	current, found, err := directory.Get(ctx, agent(1))
	if err != nil || !found {
		t.Fatalf("Get: found %v, err %v", found, err)
	}
	if current.Profile.Nickname != "dave" {
		t.Errorf("nickname = %q, want dave", current.Profile.Nickname)
	}
}
