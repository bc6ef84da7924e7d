package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/famledger/famledger/internal/shared"
	"github.com/famledger/famledger/internal/vault"
)

// InitDatabase opens or creates the store at path with key and makes it
// the current session. A wrong key leaves the session in the error state.
func (e *Engine) InitDatabase(ctx context.Context, path string, key []byte) (Result, error) {
	return track(e, CmdInitDatabase, func() (Result, error) {
		clean, err := cleanPath(path)
		if err != nil {
			return failure(err), err
		}
		e.mu.Lock()
		s, ok := e.sessions[clean]
		if !ok {
			s = e.newSession(clean)
			e.sessions[clean] = s
		}
		e.current = clean
		e.mu.Unlock()

		if err := s.gateway.Open(ctx, key); err != nil {
			return failure(err), err
		}
		return Result{Success: true, Message: "store opened"}, nil
	})
}

// CheckConnection verifies read-only that key unlocks the store at path.
func (e *Engine) CheckConnection(ctx context.Context, path string, key []byte) (Result, error) {
	return track(e, CmdCheckConnection, func() (Result, error) {
		clean, err := cleanPath(path)
		if err != nil {
			return failure(err), err
		}
		version, err := vault.CheckConnection(ctx, clean, key)
		if err != nil {
			return failure(err), err
		}
		return Result{Success: true, Message: "store readable, schema version " + version}, nil
	})
}

// CloseDatabase locks the store at path and forgets its key.
func (e *Engine) CloseDatabase(ctx context.Context, path string, key []byte) (Result, error) {
	return track(e, CmdCloseDatabase, func() (Result, error) {
		s, _, err := e.open(path, key)
		if err != nil {
			return failure(err), err
		}
		if err := s.gateway.Close(); err != nil {
			return failure(err), err
		}
		return Result{Success: true, Message: "store locked"}, nil
	})
}

// GetStatus reports the lifecycle state of the most recently initialised
// store.
func (e *Engine) GetStatus() vault.Status {
	status, _ := track(e, CmdGetStatus, func() (vault.Status, error) {
		e.mu.Lock()
		defer e.mu.Unlock()
		s, ok := e.sessions[e.current]
		if !ok {
			return vault.StatusUninitialized, nil
		}
		return s.gateway.Status(), nil
	})
	return status
}

// GetVersion returns the schema-version marker. Stores that are not open in
// this engine are probed read-only.
func (e *Engine) GetVersion(ctx context.Context, path string, key []byte) (string, error) {
	return track(e, CmdGetVersion, func() (string, error) {
		s, _, err := e.open(path, key)
		if errors.Is(err, vault.ErrNotConnected) {
			return vault.CheckConnection(ctx, path, key)
		}
		if err != nil {
			return "", err
		}
		return s.gateway.Version(ctx)
	})
}

// SetVersion replaces the schema-version marker.
func (e *Engine) SetVersion(ctx context.Context, path string, key []byte, version string) (Result, error) {
	return track(e, CmdSetVersion, func() (Result, error) {
		s, _, err := e.open(path, key)
		if err != nil {
			return failure(err), err
		}
		if err := s.gateway.SetVersion(ctx, version); err != nil {
			return failure(err), err
		}
		e.logger.Info("schema version set", slog.String("version", version))
		return Result{Success: true, Message: "version set to " + version}, nil
	})
}

// ExecuteQuery runs a raw statement against the store. It bypasses ledger
// validation and writes no version log records.
func (e *Engine) ExecuteQuery(ctx context.Context, path string, key []byte, query string) (string, error) {
	return track(e, CmdExecuteQuery, func() (string, error) {
		s, _, err := e.open(path, key)
		if err != nil {
			return "", err
		}
		return s.gateway.ExecuteQuery(ctx, query)
	})
}

func failure(err error) Result {
	return Result{Success: false, Message: message(err)}
}

// message turns an error into text for the presentation layer. Wrong keys
// and unreadable files get distinct messages.
func message(err error) string {
	switch {
	case errors.Is(err, vault.ErrWrongKey), errors.Is(err, ErrKeyMismatch):
		return "wrong key"
	case errors.Is(err, vault.ErrMissingStore):
		return "store file not found"
	case errors.Is(err, vault.ErrCorruptStore):
		return "store file is corrupt or not an encrypted ledger"
	case errors.Is(err, vault.ErrNotConnected):
		return "store not connected"
	default:
		return fmt.Sprintf("%s: %v", shared.KindOf(err), err)
	}
}

// readKey names a shared read. The store generation keeps a read issued after
// a commit from joining a flight that started before it.
func readKey(s *session, path, op string, parts ...int64) string {
	key := path + "|" + strconv.FormatUint(s.gateway.Generation(), 10) + "|" + op
	for _, p := range parts {
		key += "|" + strconv.FormatInt(p, 10)
	}
	return key
}
