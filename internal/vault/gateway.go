// Package vault owns the encrypted store file: opening and unlocking it,
// migrations, the schema-version cell and the transaction boundaries used by
// the ledger.
package vault

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/famledger/famledger/internal/platform/db"
	"github.com/famledger/famledger/internal/shared"
)

// Status is the gateway lifecycle state.
type Status string

const (
	StatusUninitialized Status = "uninitialized"
	StatusConnected     Status = "connected"
	StatusLocked        Status = "locked"
	StatusError         Status = "error"
)

var (
	// ErrWrongKey indicates the key does not unlock an existing store.
	ErrWrongKey = fmt.Errorf("vault: wrong key: %w", shared.ErrAuthentication)
	// ErrCorruptStore indicates a file that is not a readable encrypted store.
	ErrCorruptStore = fmt.Errorf("vault: corrupt or foreign store file: %w", shared.ErrStorage)
	// ErrMissingStore indicates the store file does not exist.
	ErrMissingStore = fmt.Errorf("vault: store file not found: %w", shared.ErrStorage)
	// ErrNotConnected indicates an operation on a store that is not open.
	ErrNotConnected = fmt.Errorf("vault: store not connected: %w", shared.ErrStorage)
	// ErrInvalidVersion indicates a version marker that is not a
	// non-negative integer.
	ErrInvalidVersion = fmt.Errorf("vault: version must be a non-negative integer: %w", shared.ErrInvalidInput)
)

// Gateway is the storage session for one store file. It is safe for
// concurrent use; writes are serialized, reads run concurrently on WAL
// snapshots.
type Gateway struct {
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	status  Status
	reader  *sql.DB
	writer  *sql.DB
	key     []byte
	storeID string
	signer  ed25519.PrivateKey

	writeMu sync.Mutex
	gen     atomic.Uint64
}

// New returns an uninitialized gateway for path.
func New(path string, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{path: path, logger: logger, status: StatusUninitialized}
}

// Path returns the store file path.
func (g *Gateway) Path() string { return g.path }

// Status reports the lifecycle state.
func (g *Gateway) Status() Status {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.status
}

// StoreID returns the identifier assigned when the store was created.
func (g *Gateway) StoreID() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.storeID
}

// Signer returns the store's version log signing key.
func (g *Gateway) Signer() ed25519.PrivateKey {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.signer
}

// Generation changes after every write transaction and every unlock. Reads
// that observed one generation cannot have missed a commit that preceded it.
func (g *Gateway) Generation() uint64 { return g.gen.Load() }

// MatchesKey compares key with the key the store was opened with in
// constant time. It reports false when the store is not connected.
func (g *Gateway) MatchesKey(key []byte) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.status == StatusConnected && subtle.ConstantTimeCompare(g.key, key) == 1
}

// Open unlocks the store with key, creating the file when absent, and runs
// migrations. Opening a connected gateway with the same key is a no-op; a
// different key moves it to StatusError.
func (g *Gateway) Open(ctx context.Context, key []byte) error {
	if len(key) != db.KeySize {
		return db.ErrKeySize
	}
	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.status == StatusConnected {
		if subtle.ConstantTimeCompare(g.key, key) == 1 {
			return nil
		}
		g.closeLocked()
		g.status = StatusError
		g.logger.Warn("store key mismatch", slog.String("path", g.path))
		return ErrWrongKey
	}

	if err := g.openLocked(ctx, key); err != nil {
		g.status = StatusError
		g.logger.Warn("open store", slog.String("path", g.path), slog.Any("error", err))
		return err
	}
	g.status = StatusConnected
	g.gen.Add(1)
	g.logger.Info("store opened", slog.String("path", g.path), slog.String("store_id", g.storeID))
	return nil
}

func (g *Gateway) openLocked(ctx context.Context, key []byte) error {
	if dir := filepath.Dir(g.path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return shared.StorageError("vault: create directory", err)
		}
	}

	writer, err := db.Open(ctx, g.path, key, db.Writer)
	if err == nil {
		err = db.Probe(ctx, writer)
	}
	if err != nil {
		if writer != nil {
			_ = writer.Close()
		}
		return classifyOpenError(g.path, err)
	}

	if err := migrate(ctx, writer); err != nil {
		_ = writer.Close()
		return err
	}
	id, err := ensureIdentity(ctx, writer)
	if err != nil {
		_ = writer.Close()
		return err
	}

	reader, err := db.Open(ctx, g.path, key, db.Reader)
	if err != nil {
		if reader != nil {
			_ = reader.Close()
		}
		_ = writer.Close()
		return shared.StorageError("vault: open reader", err)
	}

	g.writer = writer
	g.reader = reader
	g.key = bytes.Clone(key)
	g.storeID = id.storeID
	g.signer = id.signer
	return nil
}

// classifyOpenError separates wrong keys from unreadable files. Both paths
// perform the same header read.
func classifyOpenError(path string, err error) error {
	if errors.Is(err, shared.ErrStorage) || errors.Is(err, shared.ErrInvalidInput) {
		return err
	}
	encrypted := db.LooksEncrypted(path)
	if db.IsNotADatabase(err) {
		if encrypted {
			return ErrWrongKey
		}
		return fmt.Errorf("%w: %v", ErrCorruptStore, err)
	}
	return shared.StorageError("vault: open", err)
}

// Close releases the store and forgets the key. In-flight writes finish
// first.
func (g *Gateway) Close() error {
	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status != StatusConnected {
		return nil
	}
	err := g.closeLocked()
	g.status = StatusLocked
	g.logger.Info("store locked", slog.String("path", g.path))
	return err
}

func (g *Gateway) closeLocked() error {
	var errs []error
	if g.reader != nil {
		errs = append(errs, g.reader.Close())
	}
	if g.writer != nil {
		errs = append(errs, g.writer.Close())
	}
	clear(g.key)
	clear(g.signer)
	g.key, g.signer, g.reader, g.writer = nil, nil, nil, nil
	if err := errors.Join(errs...); err != nil {
		return shared.StorageError("vault: close", err)
	}
	return nil
}

// WithTx runs fn in an exclusive write transaction. Concurrent callers are
// queued. fn's error rolls back every write made through tx.
func (g *Gateway) WithTx(ctx context.Context, fn func(context.Context, *sql.Tx) error) error {
	return g.WithSignedTx(ctx, func(ctx context.Context, tx *sql.Tx, _ ed25519.PrivateKey) error {
		return fn(ctx, tx)
	})
}

// WithSignedTx is WithTx with the version log signing key. fn must not open
// another write transaction on the gateway.
func (g *Gateway) WithSignedTx(ctx context.Context, fn func(context.Context, *sql.Tx, ed25519.PrivateKey) error) error {
	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.status != StatusConnected {
		return ErrNotConnected
	}
	defer g.gen.Add(1)
	return db.WithTx(ctx, g.writer, func(tx *sql.Tx) error {
		return fn(ctx, tx, g.signer)
	})
}

// ReadTx runs fn on a read snapshot that only sees committed data.
func (g *Gateway) ReadTx(ctx context.Context, fn func(context.Context, *sql.Tx) error) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.status != StatusConnected {
		return ErrNotConnected
	}
	return db.WithTx(ctx, g.reader, func(tx *sql.Tx) error {
		return fn(ctx, tx)
	})
}

// Version returns the schema-version marker.
func (g *Gateway) Version(ctx context.Context) (string, error) {
	var version string
	err := g.ReadTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		v, err := readMeta(ctx, tx, metaSchemaVersion)
		version = v
		return err
	})
	return version, err
}

// SetVersion atomically replaces the schema-version marker.
func (g *Gateway) SetVersion(ctx context.Context, version string) error {
	version = strings.TrimSpace(version)
	if _, err := strconv.ParseUint(version, 10, 31); err != nil {
		return ErrInvalidVersion
	}
	return g.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return writeMeta(ctx, tx, metaSchemaVersion, version)
	})
}

// CheckConnection opens path read-only with key and returns the version
// marker without modifying the store.
func CheckConnection(ctx context.Context, path string, key []byte) (string, error) {
	if len(key) != db.KeySize {
		return "", db.ErrKeySize
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrMissingStore
		}
		return "", shared.StorageError("vault: stat", err)
	}
	handle, err := db.Open(ctx, path, key, db.ReadOnly)
	if handle != nil {
		defer handle.Close()
	}
	if err == nil {
		err = db.Probe(ctx, handle)
	}
	if err != nil {
		return "", classifyOpenError(path, err)
	}
	return readMeta(ctx, handle, metaSchemaVersion)
}
