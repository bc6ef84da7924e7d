package versionlog

import (
	"context"
	"crypto/ed25519"
	"database/sql"
	"errors"
	"strings"

	"github.com/famledger/famledger/internal/shared"
)

// Store provides snapshot reads over the encrypted store.
type Store interface {
	ReadTx(ctx context.Context, fn func(context.Context, *sql.Tx) error) error
}

// Service answers read queries over the log.
type Service struct {
	store Store
}

// NewService constructs a Service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// List returns records matching f ordered by id.
func (s *Service) List(ctx context.Context, f Filter) ([]Record, error) {
	if f.Entity != 0 && !f.Entity.Valid() {
		return nil, ErrInvalidEntry
	}
	var (
		where []string
		args  []any
	)
	if f.Entity != 0 {
		where = append(where, "entity = ?")
		args = append(args, f.Entity)
	}
	if f.EntityID != nil {
		where = append(where, "entity_id = ?")
		args = append(args, *f.EntityID)
	}
	query := `SELECT id, ts, action, entity, entity_id, payload FROM version_log`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id ASC"

	records := make([]Record, 0)
	err := s.store.ReadTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return shared.StorageError("versionlog: list", err)
		}
		defer rows.Close()
		for rows.Next() {
			rec, err := scanRecord(rows)
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		return shared.StorageError("versionlog: list rows", rows.Err())
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Get returns one record by id.
func (s *Service) Get(ctx context.Context, id int64) (Record, error) {
	var rec Record
	err := s.store.ReadTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		rec, err = getRecord(ctx, tx, id)
		return err
	})
	return rec, err
}

// Verify checks the stored signature of record id against its current
// content. A tampered record reports false.
func (s *Service) Verify(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := s.store.ReadTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		rec, err := getRecord(ctx, tx, id)
		if err != nil {
			return err
		}
		var sig, pub []byte
		err = tx.QueryRowContext(ctx, `SELECT signature, public_key FROM version_signatures WHERE version_id = ?`, id).Scan(&sig, &pub)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrSignatureNotFound
		}
		if err != nil {
			return shared.StorageError("versionlog: load signature", err)
		}
		if len(pub) != ed25519.PublicKeySize {
			return nil
		}
		ok = ed25519.Verify(ed25519.PublicKey(pub), rec.signedMessage(), sig)
		return nil
	})
	return ok, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec     Record
		payload string
	)
	if err := row.Scan(&rec.ID, &rec.TS, &rec.Action, &rec.Entity, &rec.EntityID, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrRecordNotFound
		}
		return Record{}, shared.StorageError("versionlog: scan", err)
	}
	rec.Payload = []byte(payload)
	return rec, nil
}

func getRecord(ctx context.Context, tx *sql.Tx, id int64) (Record, error) {
	return scanRecord(tx.QueryRowContext(ctx,
		`SELECT id, ts, action, entity, entity_id, payload FROM version_log WHERE id = ?`, id))
}
