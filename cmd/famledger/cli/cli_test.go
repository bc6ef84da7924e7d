package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/subcommands"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/famledger/famledger/internal/commands"
	"github.com/famledger/famledger/internal/kdf"
	"github.com/famledger/famledger/internal/observability"
)

func newEnv(t *testing.T, password string) (*Env, *bytes.Buffer) {
	t.Helper()
	d, err := kdf.New(kdf.Params{MemoryKiB: 8192, TimeCost: 1, Parallelism: 1, KeySize: 32, SaltSize: 16})
	require.NoError(t, err)
	engine, err := commands.NewEngine(commands.Options{
		Deriver: d,
		Metrics: observability.NewCommandMetrics(prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	var out bytes.Buffer
	return &Env{
		Engine:    engine,
		Deriver:   d,
		Logger:    slog.New(slog.DiscardHandler),
		Currency:  "USD",
		StorePath: filepath.Join(t.TempDir(), "family.db"),
		Out:       &out,
		Getenv: func(key string) string {
			if key == PasswordEnv {
				return password
			}
			return ""
		},
	}, &out
}

func execute(t *testing.T, cmd subcommands.Command, args ...string) subcommands.ExitStatus {
	t.Helper()
	f := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	cmd.SetFlags(f)
	require.NoError(t, f.Parse(args))
	return cmd.Execute(context.Background(), f)
}

func TestCLIWalletSession(t *testing.T) {
	env, out := newEnv(t, "correct horse")

	require.Equal(t, subcommands.ExitSuccess, execute(t, &initCmd{env}))
	info, err := os.Stat(env.headerPath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.Equal(t, subcommands.ExitSuccess, execute(t, &accountAddCmd{Env: env}, "-name", "Wallet", "-type", "cash"))
	require.Equal(t, subcommands.ExitSuccess, execute(t, &opAddCmd{Env: env}, "-account", "1", "-amount", "100", "-d", "salary"))
	require.Equal(t, subcommands.ExitSuccess, execute(t, &opAddCmd{Env: env}, "-account", "1", "-amount", "-40.5", "-d", "groceries"))

	out.Reset()
	require.Equal(t, subcommands.ExitSuccess, execute(t, &balanceCmd{Env: env}, "-account", "1"))
	assert.Equal(t, "$59.50\n", out.String())

	out.Reset()
	require.Equal(t, subcommands.ExitSuccess, execute(t, &netWorthCmd{env}))
	assert.Equal(t, "$59.50\n", out.String())

	out.Reset()
	require.Equal(t, subcommands.ExitSuccess, execute(t, &allocationCmd{env}))
	assert.Contains(t, out.String(), "cash")

	out.Reset()
	env.JSON = true
	require.Equal(t, subcommands.ExitSuccess, execute(t, &logCmd{Env: env}))
	var records []map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &records))
	assert.Len(t, records, 3)
	env.JSON = false

	out.Reset()
	require.Equal(t, subcommands.ExitSuccess, execute(t, &verifyLogCmd{env}))
	assert.Contains(t, out.String(), "3 records, 0 failed")

	out.Reset()
	require.Equal(t, subcommands.ExitSuccess, execute(t, &checkCmd{env}))
	assert.True(t, strings.HasPrefix(out.String(), "store readable"))
}

func TestCLIWrongPassword(t *testing.T) {
	env, _ := newEnv(t, "right")
	require.Equal(t, subcommands.ExitSuccess, execute(t, &initCmd{env}))

	env.Getenv = func(string) string { return "wrong" }
	assert.Equal(t, subcommands.ExitFailure, execute(t, &accountsCmd{env}))
	assert.Equal(t, subcommands.ExitFailure, execute(t, &checkCmd{env}))
}

func TestCLIStoreKeyErrors(t *testing.T) {
	ctx := context.Background()

	env, _ := newEnv(t, "pw")
	_, err := env.unlock(ctx)
	assert.ErrorIs(t, err, ErrNoStore)

	env, _ = newEnv(t, "")
	_, err = env.storeKey(true)
	assert.ErrorIs(t, err, ErrNoPassword)

	env, _ = newEnv(t, "pw")
	require.NoError(t, os.WriteFile(env.StorePath, []byte("existing"), 0o600))
	_, err = env.storeKey(true)
	assert.ErrorIs(t, err, ErrNoHeader)
}

func TestCLIPasswordFile(t *testing.T) {
	env, _ := newEnv(t, "")
	env.PasswordFile = filepath.Join(t.TempDir(), "pw")
	require.NoError(t, os.WriteFile(env.PasswordFile, []byte("from file\n"), 0o600))

	key, err := env.storeKey(true)
	require.NoError(t, err)

	env.PasswordFile = ""
	env.Getenv = func(string) string { return "from file" }
	again, err := env.storeKey(false)
	require.NoError(t, err)
	assert.Equal(t, key, again)
}

func TestCLIUsageErrors(t *testing.T) {
	env, _ := newEnv(t, "pw")
	assert.Equal(t, subcommands.ExitUsageError, execute(t, &setVersionCmd{env}))
	assert.Equal(t, subcommands.ExitUsageError, execute(t, &queryCmd{env}))
	assert.Equal(t, subcommands.ExitUsageError, execute(t, &verifyPasswordCmd{env}))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "$59.50", formatAmount(decimal.RequireFromString("59.5"), "USD"))
	assert.Equal(t, "-$40.50", formatAmount(decimal.RequireFromString("-40.5"), "USD"))
	assert.Equal(t, "$1,234.57", formatAmount(decimal.RequireFromString("1234.565"), "USD"))
	assert.Equal(t, "12.5", formatAmount(decimal.RequireFromString("12.5"), "XXY"))
}
