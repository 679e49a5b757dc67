package gsqlite

import (
	"context"
	"database/sql"
	"fmt"
)

func migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(
		ctx,
		`CREATE TABLE IF NOT EXISTS migrations(
  id INTEGER PRIMARY KEY CHECK (id = 0),
  version INTEGER
);`,
	); err != nil {
		return fmt.Errorf("error getting initial migrations table: %w", err)
	}

	if _, err := tx.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO migrations(id, version) VALUES (0, 0)`,
	); err != nil {
		return fmt.Errorf("error setting initial migration version: %w", err)
	}

	var migrationVersion int
	if err := tx.QueryRowContext(
		ctx, `SELECT version FROM migrations WHERE id=0;`,
	).Scan(&migrationVersion); err != nil {
		return fmt.Errorf("failed to scan migration version: %w", err)
	}

	if err := migrateFrom(ctx, tx, migrationVersion); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}

	return nil
}

func migrateFrom(ctx context.Context, tx *sql.Tx, version int) error {
	switch version {
	case 0:
		if err := migrateInitial(ctx, tx); err != nil {
			return fmt.Errorf("initial migration: %w", err)
		}
		if err := setMigrationVersion(ctx, tx, 1); err != nil {
			return err
		}
	case 1:
		// Up to date.
		return nil
	default:
		return fmt.Errorf("unknown migration version %d", version)
	}

	// "All applications should run `PRAGMA optimize;` after a schema change",
	// per https://sqlite.org/pragma.html#pragma_optimize.
	if _, err := tx.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		return fmt.Errorf("failed to run PRAGMA optimize after migration: %w", err)
	}

	return nil
}

func migrateInitial(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(
		ctx,
		// The last applied block and its state root.
		// Both are null until the first save.
		//
		// CHECK id=0 limits the table to a single row:
		// https://stackoverflow.com/a/33104119
		`
CREATE TABLE state_meta(
  id INTEGER PRIMARY KEY CHECK (id = 0),
  block_number INTEGER CHECK (block_number IS NULL OR block_number >= 0),
  root BLOB CHECK (root IS NULL OR length(root) = 32)
);
INSERT INTO state_meta VALUES(0, NULL, NULL);`+

			// Every live storage entry.
			// The empty child key is main storage;
			// child tries always have a non-empty storage key.
			`
CREATE TABLE state_pairs(
  child_key BLOB NOT NULL,
  key BLOB NOT NULL,
  value BLOB NOT NULL,
  PRIMARY KEY (child_key, key)
) WITHOUT ROWID;`+

			// Synchronizer counters.
			// Unlike state_meta, the row only exists after the first save.
			`
CREATE TABLE progress(
  id INTEGER PRIMARY KEY CHECK (id = 0),
  next_header INTEGER NOT NULL CHECK (next_header >= 0),
  next_para_header INTEGER NOT NULL CHECK (next_para_header >= 0),
  next_block INTEGER NOT NULL CHECK (next_block >= 0)
);`+

			// Consistent end of long concatenated literal, to minimize diffs.
			"",
	)

	return err
}

func setMigrationVersion(ctx context.Context, tx *sql.Tx, version int) error {
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE migrations SET version = ? WHERE id = 0`,
		version,
	); err != nil {
		return fmt.Errorf("error setting migration version to %d: %w", version, err)
	}

	return nil
}
