package db

import (
	"context"
	"database/sql"

	"github.com/famledger/famledger/internal/shared"
)

// WithTx executes fn within a transaction. Any error from fn rolls the
// transaction back and is returned unchanged; begin and commit failures are
// reported as storage failures.
func WithTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return shared.StorageError("platform/db: begin tx", err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return shared.StorageError("platform/db: commit tx", err)
	}

	return nil
}
