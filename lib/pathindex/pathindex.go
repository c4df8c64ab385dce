// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package pathindex maintains the prefix-bucketed nickname index.
//
// An index node is a Path: the Namespace segment followed by a bucket
// key. Its address is record.PathHash over the segments, so any
// participant can find an existing bucket by recomputing the hash;
// nothing is registered anywhere. Bucket membership is expressed by
// links whose base is a bucket address (see lib/profile link types).
//
// For enumeration, every materialized node is joined to its parent by
// a PrefixPath link tagged with the child's final segment. Ensure
// writes those links the first time a path is needed.
package pathindex

import (
	"bytes"
	"context"
	"strings"
	"unicode/utf8"

	"github.com/bureau-foundation/profiledir/lib/profile"
	"github.com/bureau-foundation/profiledir/lib/record"
	"github.com/bureau-foundation/profiledir/lib/recordstore"
)

// Namespace is the root segment of every directory index path.
const Namespace = "all_profiles"

// BucketKeyLength is the length of a bucket key, in characters.
const BucketKeyLength = 3

// BucketKey returns the bucket a nickname (or search prefix) falls in:
// its first BucketKeyLength characters, lowercased. Shorter input
// yields a shorter key.
func BucketKey(nickname string) string {
	lowered := strings.ToLower(nickname)
	end, count := 0, 0
	for end < len(lowered) && count < BucketKeyLength {
		_, size := utf8.DecodeRuneInString(lowered[end:])
		end += size
		count++
	}
	return lowered[:end]
}

// Path is a sequence of index segments, root first.
type Path []string

// Root is the path every bucket hangs under.
func Root() Path { return Path{Namespace} }

// ForNickname returns the bucket path for a nickname or search prefix.
func ForNickname(nickname string) Path {
	return Path{Namespace, BucketKey(nickname)}
}

// Hash is the path's address.
func (p Path) Hash() record.Hash { return record.PathHash(p...) }

// Leaf returns the final segment.
func (p Path) Leaf() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Child returns p extended by one segment. p is not modified.
func (p Path) Child(segment string) Path {
	child := make(Path, len(p)+1)
	copy(child, p)
	child[len(p)] = segment
	return child
}

func (p Path) String() string { return strings.Join(p, ".") }

// Manager materializes and enumerates index paths in a store, writing
// as author.
type Manager struct {
	store  recordstore.Store
	author record.AgentKey
}

// NewManager returns a Manager over store.
func NewManager(store recordstore.Store, author record.AgentKey) *Manager {
	return &Manager{store: store, author: author}
}

// Ensure makes path enumerable, creating any missing PrefixPath link
// along it, and returns the path's address together with the records
// it committed. Calling it again for the same path commits nothing.
func (m *Manager) Ensure(ctx context.Context, path Path) (record.Hash, []record.Record, error) {
	var committed []record.Record
	for depth := 1; depth < len(path); depth++ {
		parent, child := path[:depth], path[:depth+1]
		exists, err := m.hasChild(ctx, parent, child)
		if err != nil {
			return record.Hash{}, committed, err
		}
		if exists {
			continue
		}
		link, err := recordstore.CreateLink(ctx, m.store, m.author,
			parent.Hash(), child.Hash(), profile.PrefixPath, []byte(child.Leaf()))
		if err != nil {
			return record.Hash{}, committed, err
		}
		committed = append(committed, link)
	}
	return path.Hash(), committed, nil
}

func (m *Manager) hasChild(ctx context.Context, parent, child Path) (bool, error) {
	leaf := []byte(child.Leaf())
	links, err := m.store.GetLinks(ctx, recordstore.LinkQuery{
		Base:      parent.Hash(),
		Type:      profile.PrefixPath,
		TagPrefix: leaf,
	})
	if err != nil {
		return false, err
	}
	target := child.Hash()
	for _, link := range links {
		if link.Target == target && bytes.Equal(link.Tag, leaf) {
			return true, nil
		}
	}
	return false, nil
}

// Children lists the materialized children of path, in the order they
// were first linked. Links whose target does not match the path their
// tag names are ignored, and concurrent Ensure calls that linked the
// same child twice yield it once.
func (m *Manager) Children(ctx context.Context, path Path) ([]Path, error) {
	links, err := m.store.GetLinks(ctx, recordstore.LinkQuery{
		Base: path.Hash(),
		Type: profile.PrefixPath,
	})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(links))
	var children []Path
	for _, link := range links {
		segment := string(link.Tag)
		if _, duplicate := seen[segment]; duplicate {
			continue
		}
		child := path.Child(segment)
		if child.Hash() != link.Target {
			continue
		}
		seen[segment] = struct{}{}
		children = append(children, child)
	}
	return children, nil
}

// Buckets lists every materialized bucket under Root.
func (m *Manager) Buckets(ctx context.Context) ([]Path, error) {
	return m.Children(ctx, Root())
}
