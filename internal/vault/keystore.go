package vault

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/famledger/famledger/internal/platform/db"
	"github.com/famledger/famledger/internal/shared"
)

const (
	keySigningSeed   = "ed25519_private"
	keySigningPublic = "ed25519_public"
)

// identity is created on first open and lives inside the encrypted file.
type identity struct {
	storeID string
	signer  ed25519.PrivateKey
}

func ensureIdentity(ctx context.Context, handle *sql.DB) (identity, error) {
	var out identity
	err := db.WithTx(ctx, handle, func(tx *sql.Tx) error {
		id, err := ensureStoreID(ctx, tx)
		if err != nil {
			return err
		}
		signer, err := ensureSigningKey(ctx, tx)
		if err != nil {
			return err
		}
		out = identity{storeID: id, signer: signer}
		return nil
	})
	return out, err
}

func ensureStoreID(ctx context.Context, tx *sql.Tx) (string, error) {
	id, err := readMeta(ctx, tx, metaStoreID)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return "", err
	}
	id = uuid.NewString()
	return id, writeMeta(ctx, tx, metaStoreID, id)
}

func ensureSigningKey(ctx context.Context, tx *sql.Tx) (ed25519.PrivateKey, error) {
	seed, err := loadKey(ctx, tx, keySigningSeed)
	if err == nil {
		if len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("%w: signing key has %d bytes", ErrCorruptStore, len(seed))
		}
		return ed25519.NewKeyFromSeed(seed), nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("vault: generate signing key: %w", err)
	}
	if err := saveKey(ctx, tx, keySigningSeed, priv.Seed()); err != nil {
		return nil, err
	}
	if err := saveKey(ctx, tx, keySigningPublic, pub); err != nil {
		return nil, err
	}
	return priv, nil
}

func loadKey(ctx context.Context, q db.Querier, name string) ([]byte, error) {
	var value []byte
	err := q.QueryRowContext(ctx, `SELECT value FROM keystore WHERE key = ?`, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("vault: keystore %s: %w", name, shared.ErrNotFound)
	}
	if err != nil {
		return nil, shared.StorageError("vault: load key", err)
	}
	return value, nil
}

func saveKey(ctx context.Context, q db.Querier, name string, value []byte) error {
	if _, err := q.ExecContext(ctx, `INSERT OR REPLACE INTO keystore (key, value) VALUES (?, ?)`, name, value); err != nil {
		return shared.StorageError("vault: save key", err)
	}
	return nil
}
