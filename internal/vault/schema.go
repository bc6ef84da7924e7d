package vault

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/famledger/famledger/internal/platform/db"
	"github.com/famledger/famledger/internal/shared"
)

// SchemaVersion is the version reached once every migration has run.
const SchemaVersion = 7

const (
	metaSchemaVersion = "schema_version"
	metaStoreID       = "store_id"
)

type migration struct {
	version int
	name    string
	stmts   []string
}

var migrations = []migration{
	{version: 1, name: "meta"},
	{version: 2, name: "accounts", stmts: []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_accounts_type ON accounts(type)`,
	}},
	{version: 3, name: "operations", stmts: []string{
		`CREATE TABLE IF NOT EXISTS operations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			account_id INTEGER NOT NULL REFERENCES accounts(id),
			amount TEXT NOT NULL,
			description TEXT NOT NULL,
			ts INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_operations_account_ts ON operations(account_id, ts, id)`,
	}},
	{version: 4, name: "states", stmts: []string{
		`CREATE TABLE IF NOT EXISTS states (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			account_id INTEGER NOT NULL REFERENCES accounts(id),
			balance TEXT NOT NULL,
			ts INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_states_account_ts ON states(account_id, ts, id)`,
	}},
	{version: 5, name: "version_log", stmts: []string{
		`CREATE TABLE IF NOT EXISTS version_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			entity TEXT NOT NULL,
			entity_id INTEGER NOT NULL,
			action TEXT NOT NULL,
			payload TEXT NOT NULL,
			ts INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_version_log_entity ON version_log(entity, entity_id)`,
		`CREATE INDEX IF NOT EXISTS idx_version_log_ts ON version_log(ts)`,
	}},
	{version: 6, name: "keystore", stmts: []string{
		`CREATE TABLE IF NOT EXISTS keystore (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL
		)`,
	}},
	{version: 7, name: "version_signatures", stmts: []string{
		`CREATE TABLE IF NOT EXISTS version_signatures (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			version_id INTEGER NOT NULL UNIQUE REFERENCES version_log(id),
			signature BLOB NOT NULL,
			public_key BLOB NOT NULL,
			ts INTEGER NOT NULL
		)`,
	}},
}

// migrate brings the store up to SchemaVersion inside one transaction.
func migrate(ctx context.Context, handle *sql.DB) error {
	return db.WithTx(ctx, handle, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`); err != nil {
			return shared.StorageError("vault: create meta", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO meta (key, value) VALUES (?, '0')`, metaSchemaVersion); err != nil {
			return shared.StorageError("vault: seed meta", err)
		}
		raw, err := readMeta(ctx, tx, metaSchemaVersion)
		if err != nil {
			return err
		}
		current, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%w: version marker %q", ErrCorruptStore, raw)
		}
		for _, m := range migrations {
			if m.version <= current {
				continue
			}
			for _, stmt := range m.stmts {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return shared.StorageError("vault: migration "+m.name, err)
				}
			}
			if err := writeMeta(ctx, tx, metaSchemaVersion, strconv.Itoa(m.version)); err != nil {
				return err
			}
		}
		return nil
	})
}

func readMeta(ctx context.Context, q db.Querier, key string) (string, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("vault: meta %s: %w", key, shared.ErrNotFound)
	}
	if err != nil {
		return "", shared.StorageError("vault: read meta", err)
	}
	return value, nil
}

func writeMeta(ctx context.Context, q db.Querier, key, value string) error {
	if _, err := q.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value); err != nil {
		return shared.StorageError("vault: write meta", err)
	}
	return nil
}
