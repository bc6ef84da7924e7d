package db

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	sqlite3 "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/famledger/famledger/internal/shared"
)

// KeySize is the raw SQLCipher key length in bytes.
const KeySize = 32

// ErrKeySize is returned for keys that are not exactly KeySize bytes.
var ErrKeySize = fmt.Errorf("platform/db: key must be %d bytes: %w", KeySize, shared.ErrInvalidInput)

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Mode selects how a handle is opened.
type Mode int

const (
	// Reader handles run deferred transactions; WAL lets them proceed while
	// a writer is active.
	Reader Mode = iota
	// Writer handles use BEGIN IMMEDIATE on a single connection.
	Writer
	// ReadOnly handles cannot modify the file.
	ReadOnly
)

var pathEscaper = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

// DSN builds an SQLCipher URI for path unlocked with the raw key.
func DSN(path string, key []byte, mode Mode) string {
	var b strings.Builder
	b.WriteString("file:")
	b.WriteString(pathEscaper.Replace(path))
	b.WriteString("?_pragma_key=x'")
	b.WriteString(hex.EncodeToString(key))
	b.WriteString("'&_pragma_cipher_page_size=4096&_foreign_keys=on&_busy_timeout=5000")
	switch mode {
	case ReadOnly:
		b.WriteString("&mode=ro")
	case Writer:
		b.WriteString("&_journal_mode=WAL&_synchronous=FULL&_txlock=immediate")
	default:
		b.WriteString("&_journal_mode=WAL")
	}
	return b.String()
}

// Open opens the encrypted database at path and pings it. The handle is
// returned even when the ping fails so callers can classify the error with
// IsNotADatabase before closing it.
func Open(ctx context.Context, path string, key []byte, mode Mode) (*sql.DB, error) {
	if len(key) != KeySize {
		return nil, ErrKeySize
	}
	db, err := sql.Open("sqlite3", DSN(path, key, mode))
	if err != nil {
		return nil, shared.StorageError("platform/db: open", err)
	}
	if mode == Writer {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		return db, err
	}
	return db, nil
}

// Probe forces SQLCipher to decrypt the first page.
func Probe(ctx context.Context, q Querier) error {
	var n int
	return q.QueryRowContext(ctx, `SELECT count(*) FROM sqlite_master`).Scan(&n)
}

// IsNotADatabase reports whether err is SQLITE_NOTADB, which SQLCipher
// returns both for wrong keys and for files it cannot decode.
func IsNotADatabase(err error) bool {
	if err == nil {
		return false
	}
	var sqlErr sqlite3.Error
	if errors.As(err, &sqlErr) {
		return sqlErr.Code == sqlite3.ErrNotADB
	}
	return strings.Contains(err.Error(), "file is not a database")
}

// LooksEncrypted reports whether the file header is not a plaintext SQLite
// header. Unreadable or short files report false.
func LooksEncrypted(path string) bool {
	encrypted, err := sqlite3.IsEncrypted(path)
	return err == nil && encrypted
}
