// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/bureau-foundation/profiledir/lib/chain"
	"github.com/bureau-foundation/profiledir/lib/pathindex"
	"github.com/bureau-foundation/profiledir/lib/profile"
	"github.com/bureau-foundation/profiledir/lib/record"
	"github.com/bureau-foundation/profiledir/lib/recordstore"
)

var (
	// ErrInvalidPrefix is returned by Search for prefixes shorter
	// than a bucket key.
	ErrInvalidPrefix = errors.New("directory: search prefix must be at least 3 characters")

	// ErrAlreadyRegistered is returned by Register when the identity
	// already has a profile.
	ErrAlreadyRegistered = errors.New("directory: identity already has a profile")

	// ErrNotRegistered is returned by Update when the identity has no
	// profile.
	ErrNotRegistered = errors.New("directory: identity has no profile")

	// ErrNotAuthor is returned when a write names an identity other
	// than the directory's own: an identity may only create or edit
	// its own profile.
	ErrNotAuthor = errors.New("directory: identity is not the local author")

	// ErrInvalidProfile wraps profile validation failures.
	ErrInvalidProfile = errors.New("directory: invalid profile")
)

// CommitObserver is notified after each directory call with the
// records that call appended to the log, in commit order. It is never
// called with an empty batch.
type CommitObserver interface {
	PostCommit(ctx context.Context, records []record.Record)
}

// Config holds the parameters for New.
type Config struct {
	// Store is the record log. Required.
	Store recordstore.Store

	// Author is the local identity. Writes are committed to its log
	// and only its own profile can be registered or updated.
	Author record.AgentKey

	// Observer, if set, receives every committed batch.
	Observer CommitObserver

	Logger *slog.Logger
}

// Directory implements the profile directory operations for one local
// author. Safe for concurrent use to the extent the Store is.
type Directory struct {
	store    recordstore.Store
	author   record.AgentKey
	index    *pathindex.Manager
	resolver *chain.Resolver
	observer CommitObserver
	logger   *slog.Logger
}

// ProfileRecord is the current version of a participant's profile.
type ProfileRecord struct {
	Agent record.AgentKey

	// Record is the latest Create or Update in the profile's chain.
	Record record.Record

	Profile profile.Profile
}

// New returns a Directory over cfg.Store.
func New(cfg Config) (*Directory, error) {
	if cfg.Store == nil {
		return nil, errors.New("directory: Store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Directory{
		store:    cfg.Store,
		author:   cfg.Author,
		index:    pathindex.NewManager(cfg.Store, cfg.Author),
		resolver: chain.NewResolver(cfg.Store),
		observer: cfg.Observer,
		logger:   logger,
	}, nil
}

// Author returns the local identity.
func (d *Directory) Author() record.AgentKey { return d.author }

// Register creates identity's profile and indexes its nickname.
func (d *Directory) Register(ctx context.Context, identity record.AgentKey, p profile.Profile) (ProfileRecord, error) {
	if err := d.checkWrite(identity, p); err != nil {
		return ProfileRecord{}, err
	}

	existing, err := d.store.GetLinks(ctx, recordstore.LinkQuery{Base: identity.Hash(), Type: profile.AgentToProfile})
	if err != nil {
		return ProfileRecord{}, err
	}
	if len(existing) > 0 {
		return ProfileRecord{}, fmt.Errorf("%w: %s", ErrAlreadyRegistered, identity.Short())
	}

	var committed []record.Record
	defer func() { d.notify(ctx, committed) }()

	entry, err := p.Entry()
	if err != nil {
		return ProfileRecord{}, fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}
	created, err := d.store.Commit(ctx, d.author,
		record.Create{EntryType: entry.Type, EntryHash: record.HashEntry(entry)}, &entry)
	if err != nil {
		return ProfileRecord{}, err
	}
	committed = append(committed, created)

	indexed, err := d.indexNickname(ctx, identity, p.Nickname)
	committed = append(committed, indexed...)
	if err != nil {
		return ProfileRecord{}, err
	}

	link, err := recordstore.CreateLink(ctx, d.store, d.author,
		identity.Hash(), created.Hash, profile.AgentToProfile, nil)
	if err != nil {
		return ProfileRecord{}, err
	}
	committed = append(committed, link)

	d.logger.Info("profile registered",
		"agent", identity.Short(),
		"nickname", p.Nickname,
		"action_hash", created.Hash.Short(),
	)
	return ProfileRecord{Agent: identity, Record: created, Profile: p}, nil
}

// Update appends a new version of identity's profile. When the
// lowercased nickname changes, the identity moves from the old
// bucket to the new one; otherwise the index is left alone.
//
// If the store rejects tombstoning an old index link
// ([recordstore.ErrRejected]), Update returns that error; the new
// version is already committed and reported to the observer.
func (d *Directory) Update(ctx context.Context, identity record.AgentKey, p profile.Profile) (ProfileRecord, error) {
	if err := d.checkWrite(identity, p); err != nil {
		return ProfileRecord{}, err
	}

	current, found, err := d.Get(ctx, identity)
	if err != nil {
		return ProfileRecord{}, err
	}
	if !found {
		return ProfileRecord{}, fmt.Errorf("%w: %s", ErrNotRegistered, identity.Short())
	}

	var committed []record.Record
	defer func() { d.notify(ctx, committed) }()

	entry, err := p.Entry()
	if err != nil {
		return ProfileRecord{}, fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}
	originalEntry, _, _ := record.EntryAddress(current.Record.Action)
	updated, err := d.store.Commit(ctx, d.author, record.Update{
		EntryType:      entry.Type,
		EntryHash:      record.HashEntry(entry),
		OriginalAction: current.Record.Hash,
		OriginalEntry:  originalEntry,
	}, &entry)
	if err != nil {
		return ProfileRecord{}, err
	}
	committed = append(committed, updated)

	oldTag, newTag := strings.ToLower(current.Profile.Nickname), strings.ToLower(p.Nickname)
	if oldTag != newTag {
		unindexed, err := d.unindexNickname(ctx, identity, current.Profile.Nickname)
		committed = append(committed, unindexed...)
		if err != nil {
			return ProfileRecord{}, err
		}
		indexed, err := d.indexNickname(ctx, identity, p.Nickname)
		committed = append(committed, indexed...)
		if err != nil {
			return ProfileRecord{}, err
		}
		d.logger.Info("profile renamed",
			"agent", identity.Short(),
			"old_nickname", current.Profile.Nickname,
			"nickname", p.Nickname,
		)
	}

	d.logger.Debug("profile updated",
		"agent", identity.Short(),
		"action_hash", updated.Hash.Short(),
		"supersedes", current.Record.Hash.Short(),
	)
	return ProfileRecord{Agent: identity, Record: updated, Profile: p}, nil
}

// Get returns identity's current profile. The bool is false when the
// identity has not registered. If more than one AgentToProfile link
// exists, the first in store order is used.
func (d *Directory) Get(ctx context.Context, identity record.AgentKey) (ProfileRecord, bool, error) {
	links, err := d.store.GetLinks(ctx, recordstore.LinkQuery{Base: identity.Hash(), Type: profile.AgentToProfile})
	if err != nil {
		return ProfileRecord{}, false, err
	}
	if len(links) == 0 {
		return ProfileRecord{}, false, nil
	}
	if len(links) > 1 {
		d.logger.Warn("identity has several profiles, using the first",
			"agent", identity.Short(),
			"count", len(links),
		)
	}

	latest, err := d.resolver.Latest(ctx, links[0].Target)
	if err != nil {
		return ProfileRecord{}, false, err
	}
	current, err := profile.FromRecord(latest)
	if err != nil {
		return ProfileRecord{}, false, &chain.MalformedChainError{Hash: latest.Hash, Reason: err.Error()}
	}
	return ProfileRecord{Agent: identity, Record: latest, Profile: current}, true, nil
}

// Search returns the identities whose nickname starts with prefix,
// ignoring case. prefix must be at least a bucket key long.
func (d *Directory) Search(ctx context.Context, prefix string) ([]record.AgentKey, error) {
	if utf8.RuneCountInString(prefix) < pathindex.BucketKeyLength {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPrefix, prefix)
	}
	links, err := d.store.GetLinks(ctx, recordstore.LinkQuery{
		Base:      pathindex.ForNickname(prefix).Hash(),
		Type:      profile.PathToAgent,
		TagPrefix: []byte(strings.ToLower(prefix)),
	})
	if err != nil {
		return nil, err
	}
	return collectAgents(nil, links, make(map[record.AgentKey]struct{})), nil
}

// ListAll returns every indexed identity across all buckets.
func (d *Directory) ListAll(ctx context.Context) ([]record.AgentKey, error) {
	buckets, err := d.index.Buckets(ctx)
	if err != nil {
		return nil, err
	}
	var agents []record.AgentKey
	seen := make(map[record.AgentKey]struct{})
	for _, bucket := range buckets {
		links, err := d.store.GetLinks(ctx, recordstore.LinkQuery{Base: bucket.Hash(), Type: profile.PathToAgent})
		if err != nil {
			return nil, err
		}
		agents = collectAgents(agents, links, seen)
	}
	return agents, nil
}

func (d *Directory) checkWrite(identity record.AgentKey, p profile.Profile) error {
	if identity != d.author {
		return fmt.Errorf("%w: %s writing as %s", ErrNotAuthor, d.author.Short(), identity.Short())
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}
	return nil
}

// indexNickname links identity into its nickname's bucket.
func (d *Directory) indexNickname(ctx context.Context, identity record.AgentKey, nickname string) ([]record.Record, error) {
	bucket, committed, err := d.index.Ensure(ctx, pathindex.ForNickname(nickname))
	if err != nil {
		return committed, err
	}
	link, err := recordstore.CreateLink(ctx, d.store, d.author,
		bucket, identity.Hash(), profile.PathToAgent, []byte(strings.ToLower(nickname)))
	if err != nil {
		return committed, err
	}
	return append(committed, link), nil
}

// unindexNickname tombstones every live link from nickname's bucket
// to identity, whatever its tag.
func (d *Directory) unindexNickname(ctx context.Context, identity record.AgentKey, nickname string) ([]record.Record, error) {
	links, err := d.store.GetLinks(ctx, recordstore.LinkQuery{
		Base: pathindex.ForNickname(nickname).Hash(),
		Type: profile.PathToAgent,
	})
	if err != nil {
		return nil, err
	}
	var committed []record.Record
	for _, link := range links {
		if link.Target != identity.Hash() {
			continue
		}
		deleted, err := recordstore.DeleteLink(ctx, d.store, d.author, link.CreateLink)
		if err != nil {
			return committed, err
		}
		committed = append(committed, deleted)
	}
	return committed, nil
}

func (d *Directory) notify(ctx context.Context, committed []record.Record) {
	if d.observer == nil || len(committed) == 0 {
		return
	}
	d.observer.PostCommit(ctx, committed)
}

func collectAgents(agents []record.AgentKey, links []record.Link, seen map[record.AgentKey]struct{}) []record.AgentKey {
	for _, link := range links {
		agent := record.AgentKey(link.Target)
		if _, duplicate := seen[agent]; duplicate {
			continue
		}
		seen[agent] = struct{}{}
		agents = append(agents, agent)
	}
	return agents
}
