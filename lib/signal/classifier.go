// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package signal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/profiledir/lib/profile"
	"github.com/bureau-foundation/profiledir/lib/record"
	"github.com/bureau-foundation/profiledir/lib/recordstore"
)

// ErrDanglingDeleteLink is returned when a DeleteLink names a record
// that cannot be fetched or is not a CreateLink.
var ErrDanglingDeleteLink = errors.New("signal: delete_link names no create_link")

// Emitter receives classified signals. Emit must not block.
type Emitter interface {
	Emit(Signal)
}

// ClassifierConfig holds the parameters for NewClassifier.
type ClassifierConfig struct {
	// Store resolves the records and entries a signal refers to.
	// Required.
	Store recordstore.Store

	// Emitter receives every signal. Required.
	Emitter Emitter

	Logger *slog.Logger
}

// Classifier maps committed records to signals. It satisfies
// directory.CommitObserver.
type Classifier struct {
	store   recordstore.Store
	emitter Emitter
	logger  *slog.Logger
}

// NewClassifier returns a Classifier.
func NewClassifier(cfg ClassifierConfig) (*Classifier, error) {
	if cfg.Store == nil {
		return nil, errors.New("signal: Store is required")
	}
	if cfg.Emitter == nil {
		return nil, errors.New("signal: Emitter is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Classifier{store: cfg.Store, emitter: cfg.Emitter, logger: logger}, nil
}

// PostCommit classifies each record in order and emits the resulting
// signals. A record that fails classification is logged and skipped;
// the rest of the batch is still processed.
func (c *Classifier) PostCommit(ctx context.Context, records []record.Record) {
	for _, committed := range records {
		classified, ok, err := c.Classify(ctx, committed)
		if err != nil {
			c.logger.Error("classifying committed record",
				"action_hash", committed.Hash.Short(),
				"action", committed.Action.Kind().String(),
				"error", err,
			)
			continue
		}
		if !ok {
			continue
		}
		c.emitter.Emit(classified)
	}
}

// Classify returns the signal a record produces. The bool is false
// for records the directory does not care about: links of other
// applications, unrecognized or undecodable entries, or updates and
// deletes whose entries are not visible.
func (c *Classifier) Classify(ctx context.Context, committed record.Record) (Signal, bool, error) {
	switch action := committed.Action.(type) {
	case record.CreateLink:
		if _, known := profile.LinkTypeName(action.LinkType); !known {
			return nil, false, nil
		}
		return LinkCreated{Record: committed, LinkType: action.LinkType}, true, nil

	case record.DeleteLink:
		original, found, err := c.store.Get(ctx, action.LinkAdd)
		if err != nil {
			return nil, false, err
		}
		if !found {
			return nil, false, fmt.Errorf("%w: %s not found", ErrDanglingDeleteLink, action.LinkAdd.Short())
		}
		createLink, ok := original.Action.(record.CreateLink)
		if !ok {
			return nil, false, fmt.Errorf("%w: %s is a %s", ErrDanglingDeleteLink, action.LinkAdd.Short(), original.Action.Kind())
		}
		if _, known := profile.LinkTypeName(createLink.LinkType); !known {
			return nil, false, nil
		}
		return LinkDeleted{Record: committed, Original: original, LinkType: createLink.LinkType}, true, nil

	case record.Create:
		entry, ok, err := c.resolveEntry(ctx, action.EntryHash, committed.Entry)
		if err != nil || !ok {
			return nil, false, err
		}
		return EntryCreated{Record: committed, Entry: entry}, true, nil

	case record.Update:
		entry, ok, err := c.resolveEntry(ctx, action.EntryHash, committed.Entry)
		if err != nil || !ok {
			return nil, false, err
		}
		original, ok, err := c.resolveEntry(ctx, action.OriginalEntry, nil)
		if err != nil || !ok {
			return nil, false, err
		}
		return EntryUpdated{Record: committed, Entry: entry, OriginalEntry: original}, true, nil

	case record.Delete:
		original, ok, err := c.resolveEntry(ctx, action.DeletesEntry, nil)
		if err != nil || !ok {
			return nil, false, err
		}
		return EntryDeleted{Record: committed, OriginalEntry: original}, true, nil

	default:
		return nil, false, nil
	}
}

// resolveEntry decodes the entry at hash, using attached when the
// record carried it. The bool is false when the entry is not in the
// store, its type is not recognized, or it does not decode. Only
// store failures are errors.
func (c *Classifier) resolveEntry(ctx context.Context, hash record.Hash, attached *record.Entry) (profile.AppEntry, bool, error) {
	if attached == nil {
		details, err := c.store.GetDetails(ctx, hash)
		if err != nil {
			return nil, false, err
		}
		entryDetails, ok := details.(*record.EntryDetails)
		if !ok {
			return nil, false, nil
		}
		attached = &entryDetails.Entry
	}
	decoded, ok, err := profile.DecodeAppEntry(*attached)
	if err != nil {
		c.logger.Debug("skipping undecodable entry",
			"entry_hash", hash.Short(),
			"entry_type", string(attached.Type),
			"error", err,
		)
		return nil, false, nil
	}
	return decoded, ok, nil
}
