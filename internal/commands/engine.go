// Package commands is the stable command surface of the ledger engine. It
// owns one storage session per store path and routes every command to the
// kdf, vault, ledger, versionlog and analytics services.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/famledger/famledger/internal/analytics"
	"github.com/famledger/famledger/internal/kdf"
	"github.com/famledger/famledger/internal/ledger"
	"github.com/famledger/famledger/internal/observability"
	"github.com/famledger/famledger/internal/shared"
	"github.com/famledger/famledger/internal/vault"
	"github.com/famledger/famledger/internal/versionlog"
)

var (
	// ErrKeyMismatch indicates a key that differs from the one the open
	// session was unlocked with.
	ErrKeyMismatch = fmt.Errorf("commands: key does not match open store: %w", shared.ErrAuthentication)
	// ErrPathRequired indicates a blank store path.
	ErrPathRequired = fmt.Errorf("commands: store path required: %w", shared.ErrInvalidInput)
)

// Result is the outcome of lifecycle commands.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Options configures an Engine.
type Options struct {
	Deriver      *kdf.Deriver
	AccountTypes ledger.AccountTypes
	Logger       *slog.Logger
	Metrics      *observability.CommandMetrics
	// Now overrides the ledger clock, mainly for tests.
	Now func() time.Time
}

// Engine executes commands. It is safe for concurrent use.
type Engine struct {
	deriver *kdf.Deriver
	types   ledger.AccountTypes
	logger  *slog.Logger
	metrics *observability.CommandMetrics
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
	current  string

	reads singleflight.Group
}

type session struct {
	gateway   *vault.Gateway
	ledger    *ledger.Service
	analytics *analytics.Service
	versions  *versionlog.Service
}

// NewEngine validates opts and builds an Engine. Missing collaborators fall
// back to defaults: Argon2id default parameters and the default account
// types.
func NewEngine(opts Options) (*Engine, error) {
	deriver := opts.Deriver
	if deriver == nil {
		var err error
		if deriver, err = kdf.New(kdf.DefaultParams()); err != nil {
			return nil, err
		}
	}
	types := opts.AccountTypes
	if len(types.Names()) == 0 {
		types = ledger.MustAccountTypes(ledger.DefaultAccountTypes...)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		deriver:  deriver,
		types:    types,
		logger:   logger,
		metrics:  opts.Metrics,
		now:      opts.Now,
		sessions: make(map[string]*session),
	}, nil
}

// Close locks every open store.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var errs []error
	for _, s := range e.sessions {
		errs = append(errs, s.gateway.Close())
	}
	return errors.Join(errs...)
}

func cleanPath(path string) (string, error) {
	if path == "" {
		return "", ErrPathRequired
	}
	return filepath.Clean(path), nil
}

func (e *Engine) newSession(path string) *session {
	gw := vault.New(path, e.logger.With(slog.String("store", path)))
	repo := ledger.NewRepository(gw)
	svc := ledger.NewService(repo, e.types, e.logger)
	if e.now != nil {
		svc.WithNow(e.now)
	}
	return &session{
		gateway:   gw,
		ledger:    svc,
		analytics: analytics.NewService(repo),
		versions:  versionlog.NewService(gw),
	}
}

// open returns the connected session for path after checking key.
func (e *Engine) open(path string, key []byte) (*session, string, error) {
	clean, err := cleanPath(path)
	if err != nil {
		return nil, "", err
	}
	e.mu.Lock()
	s, ok := e.sessions[clean]
	e.mu.Unlock()
	if !ok || s.gateway.Status() != vault.StatusConnected {
		return nil, "", vault.ErrNotConnected
	}
	if !s.gateway.MatchesKey(key) {
		return nil, "", ErrKeyMismatch
	}
	return s, clean, nil
}

// track times fn under the command name and records its outcome.
func track[T any](e *Engine, name string, fn func() (T, error)) (T, error) {
	t := e.metrics.Track(name)
	v, err := fn()
	if err != nil {
		e.logger.Debug("command failed", slog.String("command", name), slog.String("kind", shared.KindOf(err)), slog.Any("error", err))
	}
	return v, t.End(err)
}

// shareRead collapses identical concurrent reads on one store generation.
func shareRead[T any](e *Engine, ctx context.Context, key string, fn func(context.Context) (T, error)) (T, error) {
	ch := e.reads.DoChan(key, func() (any, error) {
		return fn(context.WithoutCancel(ctx))
	})
	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}
