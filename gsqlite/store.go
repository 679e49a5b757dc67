// Package gsqlite is a SQLite implementation of the [gstore] interfaces.
//
// The driver is chosen by build tags:
// github.com/mattn/go-sqlite3 when cgo is available,
// or modernc.org/sqlite with the purego tag or without cgo.
package gsqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/trace"
	"strings"
	"sync/atomic"

	"github.com/gordian-engine/glight/gchain"
	"github.com/gordian-engine/glight/gstore"
)

// Store is a single type satisfying all the [gstore] interfaces.
type Store struct {
	// The string "purego" or "cgo" depending on build tags.
	BuildType string

	// Due to transaction locking behaviors of sqlite
	// (see: https://www.sqlite.org/lang_transaction.html),
	// and the way they interact with the Go SQL drivers,
	// it is better to maintain two separate connection pools.
	ro, rw *sql.DB
}

func NewOnDiskStore(ctx context.Context, dbPath string) (*Store, error) {
	dbPath = filepath.Clean(dbPath)
	if _, err := os.Stat(dbPath); err != nil {
		// The startup pragmas fail if the file does not exist.
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat path %q: %w", dbPath, err)
		}

		// Not os.Create, which would truncate a file created in the meantime.
		f, err := os.OpenFile(dbPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err != nil {
			return nil, fmt.Errorf("failed to create empty database file: %w", err)
		}
		if err := f.Close(); err != nil {
			return nil, fmt.Errorf("failed to close new empty database file: %w", err)
		}
	}

	// With SetMaxOpenConns(1), writers block on the single connection
	// instead of getting "database is locked" errors.
	uri := "file:" + dbPath + "?mode=rw"

	rw, err := sql.Open(sqliteDriverType, uri)
	if err != nil {
		return nil, fmt.Errorf("error opening read-write database: %w", err)
	}

	rw.SetMaxOpenConns(1)

	// Unlike other pragmas, this is persistent,
	// and it is only relevant to on-disk databases.
	if _, err := rw.ExecContext(ctx, `PRAGMA journal_mode = WAL`); err != nil {
		_ = rw.Close()
		return nil, fmt.Errorf("failed to set journal_mode=WAL: %w", err)
	}

	if err := pragmasRW(ctx, rw); err != nil {
		_ = rw.Close()
		return nil, err
	}

	if err := migrate(ctx, rw); err != nil {
		_ = rw.Close()
		return nil, err
	}

	// Change mode=rw to mode=ro (since we know that was the final query parameter).
	uri = uri[:len(uri)-1] + "o"
	ro, err := sql.Open(sqliteDriverType, uri)
	if err != nil {
		_ = rw.Close()
		return nil, fmt.Errorf("error opening read-only database: %w", err)
	}
	if err := pragmasRO(ctx, ro); err != nil {
		return nil, errors.Join(err, ro.Close(), rw.Close())
	}

	return &Store{
		BuildType: sqliteBuildType,

		rw: rw,
		ro: ro,
	}, nil
}

var inMemNameCounter uint32

func NewInMemStore(ctx context.Context) (*Store, error) {
	dbName := fmt.Sprintf("glightdb%d", atomic.AddUint32(&inMemNameCounter, 1))
	uri := "file:" + dbName +
		// A named in-memory database with a shared cache
		// lets both pools in this process see the same data.
		"?mode=memory" +
		"&cache=shared" +
		// Both SQLite wrappers support _txlock.
		// Immediate takes the write lock at the start of every transaction.
		// https://www.sqlite.org/lang_transaction.html#deferred_immediate_and_exclusive_transactions
		"&_txlock=immediate"

	rw, err := sql.Open(sqliteDriverType, uri)
	if err != nil {
		return nil, fmt.Errorf("error opening read-write database: %w", err)
	}

	// More than one connection produces "table is locked" errors
	// that the busy timeout does not resolve.
	rw.SetMaxOpenConns(1)

	if err := pragmasRW(ctx, rw); err != nil {
		_ = rw.Close()
		return nil, err
	}

	if err := migrate(ctx, rw); err != nil {
		_ = rw.Close()
		return nil, err
	}

	// The drivers cannot mark an in-memory connection read-only,
	// so the read pool only drops the txlock directive.
	var ok bool
	uri, ok = strings.CutSuffix(uri, "&_txlock=immediate")
	if !ok {
		panic(fmt.Errorf("BUG: failed to cut _txlock suffix from uri %q", uri))
	}
	ro, err := sql.Open(sqliteDriverType, uri)
	if err != nil {
		_ = rw.Close()
		return nil, fmt.Errorf("error opening read-only database: %w", err)
	}
	if err := pragmasRO(ctx, ro); err != nil {
		return nil, errors.Join(err, ro.Close(), rw.Close())
	}

	return &Store{
		BuildType: sqliteBuildType,

		rw: rw,
		ro: ro,
	}, nil
}

func (s *Store) Close() error {
	errRO := s.ro.Close()
	if errRO != nil {
		errRO = fmt.Errorf("error closing read-only database: %w", errRO)
	}
	errRW := s.rw.Close()
	if errRW != nil {
		errRW = fmt.Errorf("error closing read-write database: %w", errRW)
	}

	return errors.Join(errRO, errRW)
}

func (s *Store) SaveStateChanges(
	ctx context.Context,
	blockNumber gchain.BlockNumber,
	root gchain.Hash,
	changes gchain.StorageChanges,
) error {
	defer trace.StartRegion(ctx, "SaveStateChanges").End()

	for _, cc := range changes.ChildStorageChanges {
		if len(cc.StorageKey) == 0 {
			return errors.New("child storage changes must have a non-empty storage key")
		}
	}

	tx, err := s.rw.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var prev sql.NullInt64
	if err := tx.QueryRowContext(
		ctx, `SELECT block_number FROM state_meta WHERE id=0`,
	).Scan(&prev); err != nil {
		return fmt.Errorf("failed to select last block number: %w", err)
	}
	if prev.Valid && int64(blockNumber) != prev.Int64+1 {
		return gstore.BlockNumberGapError{
			Want: gchain.BlockNumber(prev.Int64 + 1),
			Got:  blockNumber,
		}
	}

	upsert, err := tx.PrepareContext(
		ctx,
		`INSERT INTO state_pairs(child_key, key, value) VALUES (?, ?, ?)
ON CONFLICT(child_key, key) DO UPDATE SET value = excluded.value`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer upsert.Close()

	del, err := tx.PrepareContext(
		ctx, `DELETE FROM state_pairs WHERE child_key = ? AND key = ?`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare delete: %w", err)
	}
	defer del.Close()

	apply := func(childKey []byte, kvs []gchain.KeyValue) error {
		for _, kv := range kvs {
			key := nonNil(kv.Key)
			if kv.Value == nil {
				if _, err := del.ExecContext(ctx, childKey, key); err != nil {
					return fmt.Errorf("failed to delete key %x: %w", kv.Key, err)
				}
				continue
			}
			if _, err := upsert.ExecContext(ctx, childKey, key, kv.Value); err != nil {
				return fmt.Errorf("failed to write key %x: %w", kv.Key, err)
			}
		}
		return nil
	}

	if err := apply([]byte{}, changes.MainStorageChanges); err != nil {
		return fmt.Errorf("main storage: %w", err)
	}
	for _, cc := range changes.ChildStorageChanges {
		if err := apply(cc.StorageKey, cc.Changes); err != nil {
			return fmt.Errorf("child storage %x: %w", cc.StorageKey, err)
		}
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE state_meta SET block_number = ?, root = ? WHERE id=0`,
		int64(blockNumber), root[:],
	); err != nil {
		return fmt.Errorf("failed to update state metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) LoadState(ctx context.Context) (
	blockNumber gchain.BlockNumber,
	root gchain.Hash,
	pairs []gstore.StatePair,
	err error,
) {
	defer trace.StartRegion(ctx, "LoadState").End()

	// One read transaction so the metadata and pairs are consistent.
	tx, err := s.ro.BeginTx(ctx, nil)
	if err != nil {
		return 0, root, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var n sql.NullInt64
	var rootBytes []byte
	if err := tx.QueryRowContext(
		ctx, `SELECT block_number, root FROM state_meta WHERE id=0`,
	).Scan(&n, &rootBytes); err != nil {
		return 0, root, nil, fmt.Errorf("failed to select state metadata: %w", err)
	}
	if !n.Valid {
		return 0, root, nil, gstore.ErrStoreUninitialized
	}

	root, err = gchain.HashFromBytes(rootBytes)
	if err != nil {
		return 0, root, nil, fmt.Errorf("invalid stored root: %w", err)
	}

	rows, err := tx.QueryContext(
		ctx,
		`SELECT child_key, key, value FROM state_pairs ORDER BY child_key, key`,
	)
	if err != nil {
		return 0, root, nil, fmt.Errorf("failed to select state pairs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p gstore.StatePair
		if err := rows.Scan(&p.ChildKey, &p.Key, &p.Value); err != nil {
			return 0, root, nil, fmt.Errorf("failed to scan state pair: %w", err)
		}

		// Drivers differ on whether a zero-length blob scans as nil.
		if len(p.ChildKey) == 0 {
			p.ChildKey = nil
		}
		p.Key = nonNil(p.Key)
		p.Value = nonNil(p.Value)

		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return 0, root, nil, fmt.Errorf("failed to iterate state pairs: %w", err)
	}

	return gchain.BlockNumber(n.Int64), root, pairs, nil
}

func (s *Store) LoadStateRoot(ctx context.Context) (gchain.BlockNumber, gchain.Hash, error) {
	defer trace.StartRegion(ctx, "LoadStateRoot").End()

	var n sql.NullInt64
	var rootBytes []byte
	if err := s.ro.QueryRowContext(
		ctx, `SELECT block_number, root FROM state_meta WHERE id=0`,
	).Scan(&n, &rootBytes); err != nil {
		return 0, gchain.Hash{}, fmt.Errorf("failed to select state metadata: %w", err)
	}
	if !n.Valid {
		return 0, gchain.Hash{}, gstore.ErrStoreUninitialized
	}

	root, err := gchain.HashFromBytes(rootBytes)
	if err != nil {
		return 0, gchain.Hash{}, fmt.Errorf("invalid stored root: %w", err)
	}
	return gchain.BlockNumber(n.Int64), root, nil
}

func (s *Store) SaveCounters(ctx context.Context, c gstore.Counters) error {
	defer trace.StartRegion(ctx, "SaveCounters").End()

	_, err := s.rw.ExecContext(
		ctx,
		`INSERT INTO progress(id, next_header, next_para_header, next_block) VALUES (0, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  next_header = excluded.next_header,
  next_para_header = excluded.next_para_header,
  next_block = excluded.next_block`,
		int64(c.NextHeaderNumber), int64(c.NextParaHeaderNumber), int64(c.NextBlockNumber),
	)
	if err != nil {
		return fmt.Errorf("failed to save counters: %w", err)
	}
	return nil
}

func (s *Store) LoadCounters(ctx context.Context) (gstore.Counters, error) {
	defer trace.StartRegion(ctx, "LoadCounters").End()

	var h, p, b int64
	err := s.ro.QueryRowContext(
		ctx,
		`SELECT next_header, next_para_header, next_block FROM progress WHERE id=0`,
	).Scan(&h, &p, &b)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return gstore.Counters{}, gstore.ErrStoreUninitialized
		}
		return gstore.Counters{}, fmt.Errorf("failed to load counters: %w", err)
	}

	return gstore.Counters{
		NextHeaderNumber:     gchain.BlockNumber(h),
		NextParaHeaderNumber: gchain.BlockNumber(p),
		NextBlockNumber:      gchain.BlockNumber(b),
	}, nil
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

func pragmasRW(ctx context.Context, db *sql.DB) error {
	defer trace.StartRegion(ctx, "pragmasRW").End()

	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON;`); err != nil {
		return fmt.Errorf("failed to set foreign keys on: %w", err)
	}

	// https://www.sqlite.org/lang_analyze.html#periodically_run_pragma_optimize_
	// "Applications that use long-lived database connections should run `PRAGMA optimize=0x10002;`
	// when the connection is first opened."
	if _, err := db.ExecContext(ctx, `PRAGMA optimize(0x10002);`); err != nil {
		return fmt.Errorf("failed to run startup PRAGMA optimize: %w", err)
	}

	return nil
}

func pragmasRO(ctx context.Context, db *sql.DB) error {
	defer trace.StartRegion(ctx, "pragmasRO").End()

	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON;`); err != nil {
		return fmt.Errorf("failed to set foreign keys on: %w", err)
	}

	return nil
}

var (
	_ gstore.StateStore    = (*Store)(nil)
	_ gstore.ProgressStore = (*Store)(nil)
)
