// Package cli implements the famledger terminal client on top of the
// command engine. Each invocation unlocks one store, runs one command and
// locks the store again.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/google/subcommands"

	"github.com/famledger/famledger/internal/commands"
	"github.com/famledger/famledger/internal/kdf"
)

// PasswordEnv names the variable the password is read from when no
// password file is given.
const PasswordEnv = "FAMLEDGER_PASSWORD"

// HeaderSuffix is appended to the store path to name the key header file.
const HeaderSuffix = ".kdf"

var (
	// ErrNoPassword is returned when neither the password file nor the
	// environment provides a password.
	ErrNoPassword = errors.New("cli: no password: set " + PasswordEnv + " or pass -password-file")
	// ErrNoHeader is returned when a store has no key header next to it.
	ErrNoHeader = errors.New("cli: store has no key header; run famledger init")
	// ErrNoStore is returned for commands that need an existing store.
	ErrNoStore = errors.New("cli: store not found; run famledger init")
)

// Env is shared by every subcommand.
type Env struct {
	Engine   *commands.Engine
	Deriver  *kdf.Deriver
	Logger   *slog.Logger
	Currency string

	StorePath    string
	PasswordFile string
	JSON         bool

	Out    io.Writer
	Getenv func(string) string
}

func (e *Env) getenv(key string) string {
	if e.Getenv != nil {
		return e.Getenv(key)
	}
	return os.Getenv(key)
}

func (e *Env) headerPath() string {
	return e.StorePath + HeaderSuffix
}

func (e *Env) password() (string, error) {
	if e.PasswordFile != "" {
		raw, err := os.ReadFile(e.PasswordFile)
		if err != nil {
			return "", fmt.Errorf("cli: read password file: %w", err)
		}
		return strings.TrimRight(string(raw), "\r\n"), nil
	}
	if pw := e.getenv(PasswordEnv); pw != "" {
		return pw, nil
	}
	return "", ErrNoPassword
}

// storeKey re-derives the store key from the password and the key header.
// With create set, a missing header is written from a fresh derivation.
func (e *Env) storeKey(create bool) ([]byte, error) {
	pw, err := e.password()
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(e.headerPath())
	switch {
	case err == nil:
		return e.Deriver.Rederive(pw, strings.TrimSpace(string(raw)))
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("cli: read key header: %w", err)
	case !create:
		return nil, ErrNoHeader
	}
	if _, err := os.Stat(e.StorePath); err == nil {
		return nil, fmt.Errorf("cli: %s exists without %s: %w", e.StorePath, e.headerPath(), ErrNoHeader)
	}
	dk, err := e.Deriver.DerivePasswordKey(pw)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(e.headerPath(), []byte(dk.Header()+"\n"), 0o600); err != nil {
		return nil, fmt.Errorf("cli: write key header: %w", err)
	}
	return dk.Key, nil
}

// unlock opens an existing store and returns its key. The caller closes
// the store with lock.
func (e *Env) unlock(ctx context.Context) ([]byte, error) {
	if _, err := os.Stat(e.StorePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoStore
		}
		return nil, err
	}
	key, err := e.storeKey(false)
	if err != nil {
		return nil, err
	}
	if _, err := e.Engine.InitDatabase(ctx, e.StorePath, key); err != nil {
		return nil, err
	}
	return key, nil
}

func (e *Env) lock(ctx context.Context, key []byte) {
	if _, err := e.Engine.CloseDatabase(ctx, e.StorePath, key); err != nil {
		e.Logger.Warn("close store", slog.String("path", e.StorePath), slog.Any("error", err))
	}
}

// withStore unlocks the store around fn.
func (e *Env) withStore(ctx context.Context, fn func(key []byte) error) error {
	key, err := e.unlock(ctx)
	if err != nil {
		return err
	}
	defer e.lock(ctx, key)
	return fn(key)
}

func (e *Env) printJSON(v any) error {
	enc := json.NewEncoder(e.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exit reports err on stderr and maps it onto an exit status.
func exit(err error) subcommands.ExitStatus {
	if err == nil {
		return subcommands.ExitSuccess
	}
	fmt.Fprintln(os.Stderr, err)
	return subcommands.ExitFailure
}
