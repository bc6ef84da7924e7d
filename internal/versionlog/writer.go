package versionlog

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"

	"github.com/famledger/famledger/internal/platform/db"
	"github.com/famledger/famledger/internal/shared"
)

// Append writes e and its signature through q, which must be the
// transaction of the mutation being recorded. There is no other write path
// into the log.
func Append(ctx context.Context, q db.Querier, signer ed25519.PrivateKey, e Entry) (Record, error) {
	if !e.Entity.Valid() || !e.Action.Valid() {
		return Record{}, ErrInvalidEntry
	}
	if len(signer) != ed25519.PrivateKeySize {
		return Record{}, fmt.Errorf("versionlog: signing key unavailable: %w", shared.ErrStorage)
	}
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	rec := Record{
		TS:       e.TS,
		Action:   e.Action,
		Entity:   e.Entity,
		EntityID: e.EntityID,
		Payload:  payload,
	}
	res, err := q.ExecContext(ctx, `INSERT INTO version_log (entity, entity_id, action, payload, ts)
VALUES (?, ?, ?, ?, ?)`, rec.Entity, rec.EntityID, rec.Action, string(payload), rec.TS)
	if err != nil {
		return Record{}, shared.StorageError("versionlog: insert record", err)
	}
	if rec.ID, err = res.LastInsertId(); err != nil {
		return Record{}, shared.StorageError("versionlog: record id", err)
	}

	sig := ed25519.Sign(signer, rec.signedMessage())
	pub := signer.Public().(ed25519.PublicKey)
	if _, err := q.ExecContext(ctx, `INSERT INTO version_signatures (version_id, signature, public_key, ts)
VALUES (?, ?, ?, ?)`, rec.ID, sig, []byte(pub), rec.TS); err != nil {
		return Record{}, shared.StorageError("versionlog: insert signature", err)
	}
	return rec, nil
}
