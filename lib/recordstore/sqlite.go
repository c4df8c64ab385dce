// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package recordstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/profiledir/lib/clock"
	"github.com/bureau-foundation/profiledir/lib/codec"
	"github.com/bureau-foundation/profiledir/lib/compress"
	"github.com/bureau-foundation/profiledir/lib/record"
)

// schema holds the log. records is append-only; the relation columns
// (entry_hash, supersedes, link_*) are projections of the CBOR action
// blob, kept for indexing. entries is keyed by entry address, so two
// actions writing the same entry share one row.
const schema = `
CREATE TABLE IF NOT EXISTS records (
	position   INTEGER PRIMARY KEY AUTOINCREMENT,
	hash       BLOB NOT NULL UNIQUE,
	author     BLOB NOT NULL,
	seq        INTEGER NOT NULL,
	timestamp  INTEGER NOT NULL,
	kind       INTEGER NOT NULL,
	action     BLOB NOT NULL,
	entry_hash BLOB,
	supersedes BLOB,
	link_base  BLOB,
	link_type  INTEGER,
	link_tag   BLOB,
	link_add   BLOB,
	UNIQUE (author, seq)
);

CREATE INDEX IF NOT EXISTS records_supersedes ON records (supersedes, kind)
	WHERE supersedes IS NOT NULL;
CREATE INDEX IF NOT EXISTS records_entry ON records (entry_hash)
	WHERE entry_hash IS NOT NULL;
CREATE INDEX IF NOT EXISTS records_links ON records (link_base, link_type)
	WHERE kind = 4;
CREATE INDEX IF NOT EXISTS records_link_add ON records (link_add)
	WHERE kind = 5;

CREATE TABLE IF NOT EXISTS entries (
	hash        BLOB PRIMARY KEY,
	entry_type  TEXT NOT NULL,
	compression INTEGER NOT NULL,
	size        INTEGER NOT NULL,
	payload     BLOB NOT NULL
);
`

// recordColumns selects a record joined with its entry. scanRecord
// reads them in this order.
const recordColumns = `
	r.hash, r.author, r.seq, r.timestamp, r.action,
	e.entry_type, e.compression, e.size, e.payload
FROM records r
LEFT JOIN entries e ON e.hash = r.entry_hash`

// SQLiteConfig holds the parameters for OpenSQLite.
type SQLiteConfig struct {
	// Path is the database file. The parent directory must exist.
	Path string

	// PoolSize is the number of pooled connections. Zero picks
	// max(NumCPU, 4).
	PoolSize int

	// Compression is applied to entry payloads of at least
	// CompressionThreshold bytes. Payloads that do not shrink are
	// stored uncompressed.
	Compression          compress.Tag
	CompressionThreshold int

	// Clock stamps committed records. Defaults to clock.Real().
	Clock clock.Clock

	Logger *slog.Logger
}

// SQLiteStore is a Store persisted in a SQLite database. Commits run
// in immediate transactions, so sequence assignment and validation see
// a consistent log.
type SQLiteStore struct {
	pool                 *pool
	clock                clock.Clock
	logger               *slog.Logger
	compression          compress.Tag
	compressionThreshold int
}

// OpenSQLite opens (creating if needed) a SQLite-backed store. The
// caller must Close it.
func OpenSQLite(ctx context.Context, cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, errors.New("recordstore: sqlite path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	storeClock := cfg.Clock
	if storeClock == nil {
		storeClock = clock.Real()
	}

	connections, err := openPool(cfg.Path, cfg.PoolSize, logger)
	if err != nil {
		return nil, storageError("open", err)
	}

	conn, err := connections.take(ctx)
	if err != nil {
		connections.close()
		return nil, storageError("open", err)
	}
	err = sqlitex.ExecuteScript(conn, schema, nil)
	connections.put(conn)
	if err != nil {
		connections.close()
		return nil, storageError("create schema", err)
	}

	return &SQLiteStore{
		pool:                 connections,
		clock:                storeClock,
		logger:               logger,
		compression:          cfg.Compression,
		compressionThreshold: cfg.CompressionThreshold,
	}, nil
}

// Close releases every pooled connection.
func (s *SQLiteStore) Close() error {
	if err := s.pool.close(); err != nil {
		return storageError("close", err)
	}
	return nil
}

// Commit implements Store.
func (s *SQLiteStore) Commit(ctx context.Context, author record.AgentKey, action record.Action, entry *record.Entry) (committed record.Record, err error) {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return record.Record{}, storageError("commit", err)
	}
	defer s.pool.put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return record.Record{}, storageError("commit", fmt.Errorf("begin transaction: %w", err))
	}
	defer endTransaction(&err)

	lookup := func(hash record.Hash) (record.Record, bool, error) {
		found, ok, lookupErr := getRecord(conn, hash)
		if lookupErr != nil {
			return record.Record{}, false, storageError("commit", lookupErr)
		}
		return found, ok, nil
	}
	if err := validateCommit(action, entry, lookup); err != nil {
		return record.Record{}, err
	}

	var head int64
	err = sqlitex.Execute(conn, `SELECT COALESCE(MAX(seq), 0) FROM records WHERE author = ?`, &sqlitex.ExecOptions{
		Args: []any{author[:]},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			head = stmt.ColumnInt64(0)
			return nil
		},
	})
	if err != nil {
		return record.Record{}, storageError("commit", fmt.Errorf("reading author head: %w", err))
	}

	committed, err = sealRecord(author, uint64(head)+1, commitTime(s.clock), action, entry)
	if err != nil {
		return record.Record{}, storageError("commit", err)
	}

	if entry != nil {
		if err := s.insertEntry(conn, action, *entry); err != nil {
			return record.Record{}, storageError("commit", err)
		}
	}
	if err := insertRecord(conn, committed); err != nil {
		return record.Record{}, storageError("commit", err)
	}
	return committed, nil
}

func (s *SQLiteStore) insertEntry(conn *sqlite.Conn, action record.Action, entry record.Entry) error {
	entryHash, _, _ := record.EntryAddress(action)

	payload, tag := entry.Payload, compress.None
	if s.compression != compress.None && len(entry.Payload) >= s.compressionThreshold {
		var err error
		payload, tag, err = compress.Compress(entry.Payload, s.compression)
		if err != nil {
			return fmt.Errorf("compressing entry %s: %w", entryHash.Short(), err)
		}
	}

	err := sqlitex.Execute(conn, `
		INSERT OR IGNORE INTO entries (hash, entry_type, compression, size, payload)
		VALUES (?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
		Args: []any{entryHash[:], string(entry.Type), int64(tag), int64(len(entry.Payload)), payload},
	})
	if err != nil {
		return fmt.Errorf("inserting entry %s: %w", entryHash.Short(), err)
	}
	return nil
}

func insertRecord(conn *sqlite.Conn, committed record.Record) error {
	encoded, err := codec.Marshal(record.WireAction(committed.Action))
	if err != nil {
		return fmt.Errorf("encoding action: %w", err)
	}

	var entryHash, supersedes, linkBase, linkType, linkTag, linkAdd any
	switch a := committed.Action.(type) {
	case record.Create:
		entryHash = a.EntryHash[:]
	case record.Update:
		entryHash = a.EntryHash[:]
		supersedes = a.OriginalAction[:]
	case record.Delete:
		supersedes = a.DeletesAction[:]
	case record.CreateLink:
		linkBase = a.Base[:]
		linkType = int64(a.LinkType)
		linkTag = a.Tag
	case record.DeleteLink:
		linkBase = a.Base[:]
		linkAdd = a.LinkAdd[:]
	}

	err = sqlitex.Execute(conn, `
		INSERT INTO records (hash, author, seq, timestamp, kind, action,
			entry_hash, supersedes, link_base, link_type, link_tag, link_add)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
		Args: []any{
			committed.Hash[:], committed.Author[:], int64(committed.Seq),
			committed.Timestamp.UnixNano(), int64(committed.Action.Kind()), encoded,
			entryHash, supersedes, linkBase, linkType, linkTag, linkAdd,
		},
	})
	if err != nil {
		return fmt.Errorf("inserting record %s: %w", committed.Hash.Short(), err)
	}
	return nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, hash record.Hash) (record.Record, bool, error) {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return record.Record{}, false, storageError("get", err)
	}
	defer s.pool.put(conn)

	found, ok, err := getRecord(conn, hash)
	if err != nil {
		return record.Record{}, false, storageError("get", err)
	}
	return found, ok, nil
}

// GetDetails implements Store.
func (s *SQLiteStore) GetDetails(ctx context.Context, hash record.Hash) (record.Details, error) {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return nil, storageError("get details", err)
	}
	defer s.pool.put(conn)

	details, err := getDetails(conn, hash)
	if err != nil {
		return nil, storageError("get details", err)
	}
	return details, nil
}

func getDetails(conn *sqlite.Conn, hash record.Hash) (record.Details, error) {
	found, ok, err := getRecord(conn, hash)
	if err != nil {
		return nil, err
	}
	if ok {
		details := &record.RecordDetails{Record: found}
		details.Updates, err = queryRecords(conn,
			`WHERE r.supersedes = ? AND r.kind = ? ORDER BY r.position`,
			hash[:], int64(record.ActionUpdate))
		if err != nil {
			return nil, err
		}
		details.Deletes, err = queryRecords(conn,
			`WHERE r.supersedes = ? AND r.kind = ? ORDER BY r.position`,
			hash[:], int64(record.ActionDelete))
		if err != nil {
			return nil, err
		}
		return details, nil
	}

	var entry *record.Entry
	err = sqlitex.Execute(conn, `
		SELECT entry_type, compression, size, payload FROM entries WHERE hash = ?`, &sqlitex.ExecOptions{
		Args: []any{hash[:]},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			var scanErr error
			entry, scanErr = scanEntry(stmt, 0)
			return scanErr
		},
	})
	if err != nil {
		return nil, fmt.Errorf("reading entry %s: %w", hash.Short(), err)
	}
	if entry == nil {
		return nil, nil
	}

	details := &record.EntryDetails{Hash: hash, Entry: *entry}
	details.Actions, err = queryRecords(conn,
		`WHERE r.entry_hash = ? ORDER BY r.position`, hash[:])
	if err != nil {
		return nil, err
	}
	const aimedAtEntry = `WHERE r.kind = ? AND r.supersedes IN (
		SELECT hash FROM records WHERE entry_hash = ?) ORDER BY r.position`
	details.Updates, err = queryRecords(conn, aimedAtEntry, int64(record.ActionUpdate), hash[:])
	if err != nil {
		return nil, err
	}
	details.Deletes, err = queryRecords(conn, aimedAtEntry, int64(record.ActionDelete), hash[:])
	if err != nil {
		return nil, err
	}
	return details, nil
}

// GetLinks implements Store.
func (s *SQLiteStore) GetLinks(ctx context.Context, query LinkQuery) ([]record.Link, error) {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return nil, storageError("get links", err)
	}
	defer s.pool.put(conn)

	clause := `WHERE r.kind = 4 AND r.link_base = ? AND r.link_type = ?
		AND NOT EXISTS (SELECT 1 FROM records d WHERE d.kind = 5 AND d.link_add = r.hash)`
	args := []any{query.Base[:], int64(query.Type)}
	if len(query.TagPrefix) > 0 {
		clause += ` AND substr(r.link_tag, 1, ?) = ?`
		args = append(args, int64(len(query.TagPrefix)), query.TagPrefix)
	}
	clause += ` ORDER BY r.position`

	records, err := queryRecords(conn, clause, args...)
	if err != nil {
		return nil, storageError("get links", err)
	}
	links := make([]record.Link, 0, len(records))
	for _, createLink := range records {
		link, _ := record.LinkFromRecord(createLink)
		links = append(links, link)
	}
	return links, nil
}

func getRecord(conn *sqlite.Conn, hash record.Hash) (record.Record, bool, error) {
	found, err := queryRecords(conn, `WHERE r.hash = ?`, hash[:])
	if err != nil {
		return record.Record{}, false, err
	}
	if len(found) == 0 {
		return record.Record{}, false, nil
	}
	return found[0], true, nil
}

// queryRecords runs SELECT recordColumns with the given trailing
// clause.
func queryRecords(conn *sqlite.Conn, clause string, args ...any) ([]record.Record, error) {
	var records []record.Record
	err := sqlitex.Execute(conn, "SELECT "+recordColumns+" "+clause, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			scanned, err := scanRecord(stmt)
			if err != nil {
				return err
			}
			records = append(records, scanned)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	return records, nil
}

func scanRecord(stmt *sqlite.Stmt) (record.Record, error) {
	var scanned record.Record
	stmt.ColumnBytes(0, scanned.Hash[:])
	stmt.ColumnBytes(1, scanned.Author[:])
	scanned.Seq = uint64(stmt.ColumnInt64(2))
	scanned.Timestamp = time.Unix(0, stmt.ColumnInt64(3)).UTC()

	encoded := make([]byte, stmt.ColumnLen(4))
	stmt.ColumnBytes(4, encoded)
	var wire record.ActionWire
	if err := codec.Unmarshal(encoded, &wire); err != nil {
		return record.Record{}, fmt.Errorf("decoding action of %s: %w", scanned.Hash.Short(), err)
	}
	action, err := wire.Action()
	if err != nil {
		return record.Record{}, fmt.Errorf("decoding action of %s: %w", scanned.Hash.Short(), err)
	}
	scanned.Action = action

	scanned.Entry, err = scanEntry(stmt, 5)
	if err != nil {
		return record.Record{}, fmt.Errorf("reading entry of %s: %w", scanned.Hash.Short(), err)
	}
	return scanned, nil
}

// scanEntry reads (entry_type, compression, size, payload) starting at
// column first. A NULL entry_type means no entry row was joined.
func scanEntry(stmt *sqlite.Stmt, first int) (*record.Entry, error) {
	if stmt.ColumnIsNull(first) {
		return nil, nil
	}
	entryType := record.EntryType(stmt.ColumnText(first))
	tag := compress.Tag(stmt.ColumnInt64(first + 1))
	size := int(stmt.ColumnInt64(first + 2))

	stored := make([]byte, stmt.ColumnLen(first+3))
	stmt.ColumnBytes(first+3, stored)
	payload, err := compress.Decompress(stored, tag, size)
	if err != nil {
		return nil, err
	}
	return &record.Entry{Type: entryType, Payload: payload}, nil
}
