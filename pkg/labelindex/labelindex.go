// Package labelindex implements the Label Index: a durable, thread-safe
// key/value store mapping file identities (absolute path or content hash,
// caller's choice) to label sets, scoring results, and modification
// times. It is backed by SQLite through sqlx, following the
// connection-pool-and-explicit-transaction idiom the pack's Postgres
// stores use, adapted to a single-file embedded database suited to a
// CLI-scale index rather than a server-scale one.
package labelindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/MacAttak/riskscan/pkg/wire"
)

// schemaVersion is the on-disk schema's first-class version field. A
// stored row whose schema_version differs from this constant returns
// ErrSchemaMismatch on read rather than attempting silent coercion.
const schemaVersion = 1

var (
	// ErrDatabaseError wraps a transient storage failure; callers may
	// retry.
	ErrDatabaseError = errors.New("labelindex: database error")
	// ErrSchemaMismatch is permanent: the stored row's schema_version
	// does not match this build's, and requires a migration rather than
	// a coercion.
	ErrSchemaMismatch = errors.New("labelindex: schema mismatch")
	// ErrClosed is a programmer error: an operation was attempted after
	// Close.
	ErrClosed = errors.New("labelindex: index is closed")
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS labels (
	id             TEXT PRIMARY KEY,
	schema_version INTEGER NOT NULL,
	label_set      TEXT NOT NULL,
	scoring_result TEXT NOT NULL,
	mtime          INTEGER NOT NULL
);
`

// Entry is one stored record: the label set, its serialized scoring
// result, and the modification time of the last write.
type Entry struct {
	ID            string
	LabelSet      wire.LabelSet
	ScoringResult json.RawMessage
	Mtime         time.Time
}

type row struct {
	ID            string `db:"id"`
	SchemaVersion int    `db:"schema_version"`
	LabelSet      string `db:"label_set"`
	ScoringResult string `db:"scoring_result"`
	Mtime         int64  `db:"mtime"`
}

// Index is the durable, thread-safe label store. There is no global
// default instance: every Index is an explicitly constructed, explicitly
// owned collaborator.
type Index struct {
	mu     sync.RWMutex
	db     *sqlx.DB
	closed bool
}

// Open constructs an Index backed by the SQLite file at path. Use
// ":memory:" for an ephemeral in-process index (useful for tests and
// short-lived CLI invocations that don't need cross-process durability).
func Open(path string) (*Index, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrDatabaseError, path, err)
	}
	db.SetMaxOpenConns(1) // sqlite3 serializes writers regardless; avoid pool contention on the single file.

	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: create schema: %v", ErrDatabaseError, err)
	}
	return &Index{db: db}, nil
}

// checkoutConn validates the pooled connection with a heartbeat query
// before use, discarding and letting the pool recreate it if invalid.
// sqlx/database-sql's pool already recycles broken
// connections on error, so this heartbeat is a cheap, explicit check
// ahead of the real operation rather than a replacement for that
// recovery.
func (idx *Index) checkoutConn(ctx context.Context) error {
	if err := idx.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: connection heartbeat failed: %v", ErrDatabaseError, err)
	}
	return nil
}

// Get performs a point lookup by file identity.
func (idx *Index) Get(ctx context.Context, id string) (Entry, bool, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return Entry{}, false, ErrClosed
	}
	if err := idx.checkoutConn(ctx); err != nil {
		return Entry{}, false, err
	}

	var r row
	err := idx.db.GetContext(ctx, &r, `SELECT id, schema_version, label_set, scoring_result, mtime FROM labels WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("%w: get %s: %v", ErrDatabaseError, id, err)
	}
	entry, err := rowToEntry(r)
	if err != nil {
		return Entry{}, false, err
	}
	return entry, true, nil
}

// Put atomically upserts id -> entry under a single explicit transaction
// with an explicit commit. On any error the transaction is rolled back;
// a rollback's own failure is never swallowed — it is returned wrapped
// alongside the original error so neither is lost.
func (idx *Index) Put(ctx context.Context, id string, entry Entry) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return ErrClosed
	}
	if err := idx.checkoutConn(ctx); err != nil {
		return err
	}

	labelSetJSON, err := json.Marshal(entry.LabelSet)
	if err != nil {
		return fmt.Errorf("%w: marshal label set: %v", ErrDatabaseError, err)
	}
	if entry.ScoringResult == nil {
		entry.ScoringResult = json.RawMessage("{}")
	}
	mtime := entry.Mtime
	if mtime.IsZero() {
		mtime = time.Now()
	}

	tx, err := idx.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", ErrDatabaseError, err)
	}

	_, execErr := tx.ExecContext(ctx, `
		INSERT INTO labels (id, schema_version, label_set, scoring_result, mtime)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			schema_version = excluded.schema_version,
			label_set = excluded.label_set,
			scoring_result = excluded.scoring_result,
			mtime = excluded.mtime
	`, id, schemaVersion, string(labelSetJSON), string(entry.ScoringResult), mtime.Unix())

	if execErr != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w: put %s failed (%v) and rollback failed (%v)", ErrDatabaseError, id, execErr, rbErr)
		}
		return fmt.Errorf("%w: put %s: %v", ErrDatabaseError, id, execErr)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit put %s: %v", ErrDatabaseError, id, err)
	}
	return nil
}

// Delete removes id, reporting whether a prior value existed.
func (idx *Index) Delete(ctx context.Context, id string) (bool, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return false, ErrClosed
	}
	if err := idx.checkoutConn(ctx); err != nil {
		return false, err
	}

	tx, err := idx.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("%w: begin transaction: %v", ErrDatabaseError, err)
	}

	res, execErr := tx.ExecContext(ctx, `DELETE FROM labels WHERE id = ?`, id)
	if execErr != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return false, fmt.Errorf("%w: delete %s failed (%v) and rollback failed (%v)", ErrDatabaseError, id, execErr, rbErr)
		}
		return false, fmt.Errorf("%w: delete %s: %v", ErrDatabaseError, id, execErr)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("%w: commit delete %s: %v", ErrDatabaseError, id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// PrefixScan returns every entry whose id starts with pathPrefix, ordered
// by id, as a fully-materialized snapshot taken under one read — safe
// under concurrent writers since it never observes a torn intermediate
// row set (SQLite's reader sees a consistent snapshot for the duration of
// the query).
func (idx *Index) PrefixScan(ctx context.Context, pathPrefix string) ([]Entry, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return nil, ErrClosed
	}
	if err := idx.checkoutConn(ctx); err != nil {
		return nil, err
	}

	var rows []row
	// Escape SQL LIKE metacharacters in pathPrefix so a path literally
	// containing '%' or '_' doesn't widen the match.
	escaped := escapeLike(pathPrefix)
	err := idx.db.SelectContext(ctx, &rows, `
		SELECT id, schema_version, label_set, scoring_result, mtime
		FROM labels WHERE id LIKE ? ESCAPE '\' ORDER BY id
	`, escaped+"%")
	if err != nil {
		return nil, fmt.Errorf("%w: prefix scan %s: %v", ErrDatabaseError, pathPrefix, err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		entry, err := rowToEntry(r)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Close is idempotent: it waits for in-flight writes (guaranteed by
// taking the write lock) and releases the backing database handle.
// Calling Close more than once is a no-op, not an error.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return nil
	}
	idx.closed = true
	if err := idx.db.Close(); err != nil {
		return fmt.Errorf("%w: close: %v", ErrDatabaseError, err)
	}
	return nil
}

func rowToEntry(r row) (Entry, error) {
	if r.SchemaVersion != schemaVersion {
		return Entry{}, fmt.Errorf("%w: row %s has schema_version %d, expected %d", ErrSchemaMismatch, r.ID, r.SchemaVersion, schemaVersion)
	}
	var set wire.LabelSet
	if err := json.Unmarshal([]byte(r.LabelSet), &set); err != nil {
		return Entry{}, fmt.Errorf("%w: unmarshal label set for %s: %v", ErrDatabaseError, r.ID, err)
	}
	return Entry{
		ID:            r.ID,
		LabelSet:      set,
		ScoringResult: json.RawMessage(r.ScoringResult),
		Mtime:         time.Unix(r.Mtime, 0).UTC(),
	}, nil
}

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '%' || c == '_' || c == '\\' {
			out = append(out, '\\')
		}
		out = append(out, c)
	}
	return string(out)
}
