package commands

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/famledger/famledger/internal/kdf"
	"github.com/famledger/famledger/internal/observability"
	"github.com/famledger/famledger/internal/shared"
	"github.com/famledger/famledger/internal/vault"
)

var fastParams = kdf.Params{MemoryKiB: 8192, TimeCost: 1, Parallelism: 1, KeySize: 32, SaltSize: 16}

func newEngine(t *testing.T) (*Engine, *prometheus.Registry) {
	t.Helper()
	d, err := kdf.New(fastParams)
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	e, err := NewEngine(Options{Deriver: d, Metrics: observability.NewCommandMetrics(reg)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e, reg
}

func storeKey(t *testing.T, e *Engine, password string) []byte {
	t.Helper()
	dk, err := e.DerivePasswordKey(password)
	require.NoError(t, err)
	return dk.Key
}

func TestEngineWalletScenario(t *testing.T) {
	ctx := context.Background()
	e, reg := newEngine(t)
	path := filepath.Join(t.TempDir(), "wallet.db")
	key := storeKey(t, e, "correct horse")

	assert.Equal(t, vault.StatusUninitialized, e.GetStatus())
	res, err := e.InitDatabase(ctx, path, key)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, vault.StatusConnected, e.GetStatus())

	acc, err := e.CreateAccount(ctx, path, key, "Wallet", "cash")
	require.NoError(t, err)
	assert.Equal(t, int64(1), acc.ID)

	p1, err := e.AddOperation(ctx, path, key, acc.ID, 100.0, "salary")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p1.Operation.ID)
	p2, err := e.AddOperation(ctx, path, key, acc.ID, -40.5, "groceries")
	require.NoError(t, err)
	assert.Equal(t, int64(2), p2.Operation.ID)

	balance, err := e.GetAccountBalance(ctx, path, key, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "59.5", balance.String())

	nw, err := e.GetNetWorth(ctx, path, key)
	require.NoError(t, err)
	assert.Equal(t, "59.5", nw.String())

	history, err := e.GetBalanceHistory(ctx, path, key, acc.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "100", history[0].Balance.String())
	assert.Equal(t, "59.5", history[1].Balance.String())

	versions, err := e.ListVersions(ctx, path, key, "", nil)
	require.NoError(t, err)
	assert.Len(t, versions, 3)

	id := acc.ID
	accountVersions, err := e.ListVersions(ctx, path, key, "account", &id)
	require.NoError(t, err)
	require.Len(t, accountVersions, 1)
	assert.Equal(t, acc.ID, accountVersions[0].EntityID)

	_, err = e.ListVersions(ctx, path, key, "invoice", nil)
	assert.Equal(t, shared.KindInvalidInput, shared.KindOf(err))

	for _, v := range versions {
		ok, err := e.VerifyVersion(ctx, path, key, v.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	alloc, err := e.GetAssetAllocation(ctx, path, key)
	require.NoError(t, err)
	require.Len(t, alloc, 1)
	assert.Equal(t, "cash", alloc[0].Type)

	assert.Equal(t, 2.0, counterValue(t, reg, CmdAddOperation, observability.OutcomeOK))
}

func counterValue(t *testing.T, reg *prometheus.Registry, command, outcome string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != "famledger_commands_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["command"] == command && labels["outcome"] == outcome {
				return m.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("no counter for %s/%s", command, outcome)
	return 0
}

func TestEngineRequiresInit(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	path := filepath.Join(t.TempDir(), "never.db")
	key := make([]byte, 32)

	_, err := e.ListAccounts(ctx, path, key)
	assert.ErrorIs(t, err, vault.ErrNotConnected)
	assert.Equal(t, shared.KindStorage, shared.KindOf(err))

	_, err = e.ListAccounts(ctx, "", key)
	assert.ErrorIs(t, err, ErrPathRequired)
}

func TestEngineKeyChecks(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	path := filepath.Join(t.TempDir(), "keys.db")
	key := storeKey(t, e, "pw")
	other := storeKey(t, e, "pw")

	_, err := e.InitDatabase(ctx, path, key)
	require.NoError(t, err)

	_, err = e.ListAccounts(ctx, path, other)
	assert.ErrorIs(t, err, ErrKeyMismatch)
	assert.Equal(t, shared.KindAuthentication, shared.KindOf(err))
	assert.Equal(t, vault.StatusConnected, e.GetStatus())

	res, err := e.InitDatabase(ctx, path, other)
	assert.Equal(t, shared.KindAuthentication, shared.KindOf(err))
	assert.False(t, res.Success)
	assert.Equal(t, "wrong key", res.Message)
	assert.Equal(t, vault.StatusError, e.GetStatus())

	res, err = e.InitDatabase(ctx, path, key)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, vault.StatusConnected, e.GetStatus())
}

func TestEngineCloseAndReopen(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	path := filepath.Join(t.TempDir(), "close.db")
	key := storeKey(t, e, "pw")

	_, err := e.InitDatabase(ctx, path, key)
	require.NoError(t, err)
	_, err = e.CreateAccount(ctx, path, key, "Bank", "bank")
	require.NoError(t, err)

	res, err := e.CloseDatabase(ctx, path, key)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, vault.StatusLocked, e.GetStatus())

	_, err = e.ListAccounts(ctx, path, key)
	assert.ErrorIs(t, err, vault.ErrNotConnected)

	version, err := e.GetVersion(ctx, path, key)
	require.NoError(t, err)
	assert.Equal(t, "7", version)

	_, err = e.InitDatabase(ctx, path, key)
	require.NoError(t, err)
	accounts, err := e.ListAccounts(ctx, path, key)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}

func TestEngineIsolatedStores(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	dir := t.TempDir()
	a, b := filepath.Join(dir, "a.db"), filepath.Join(dir, "b.db")
	keyA, keyB := storeKey(t, e, "a"), storeKey(t, e, "b")

	_, err := e.InitDatabase(ctx, a, keyA)
	require.NoError(t, err)
	_, err = e.InitDatabase(ctx, b, keyB)
	require.NoError(t, err)

	_, err = e.CreateAccount(ctx, a, keyA, "Only in A", "cash")
	require.NoError(t, err)

	inB, err := e.ListAccounts(ctx, b, keyB)
	require.NoError(t, err)
	assert.Empty(t, inB)

	_, err = e.ListAccounts(ctx, a, keyB)
	assert.ErrorIs(t, err, ErrKeyMismatch)
}

func TestEngineVersionAndQuery(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	path := filepath.Join(t.TempDir(), "version.db")
	key := storeKey(t, e, "pw")
	_, err := e.InitDatabase(ctx, path, key)
	require.NoError(t, err)

	res, err := e.SetVersion(ctx, path, key, "8")
	require.NoError(t, err)
	assert.True(t, res.Success)
	v, err := e.GetVersion(ctx, path, key)
	require.NoError(t, err)
	assert.Equal(t, "8", v)

	_, err = e.SetVersion(ctx, path, key, "eight")
	assert.Equal(t, shared.KindInvalidInput, shared.KindOf(err))
	v, err = e.GetVersion(ctx, path, key)
	require.NoError(t, err)
	assert.Equal(t, "8", v)

	_, err = e.CreateAccount(ctx, path, key, "Wallet", "cash")
	require.NoError(t, err)
	out, err := e.ExecuteQuery(ctx, path, key, "SELECT name FROM accounts")
	require.NoError(t, err)
	var rows []map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	assert.Equal(t, []map[string]string{{"name": "Wallet"}}, rows)

	_, err = e.ExecuteQuery(ctx, path, key, "UPDATE version_log SET payload = '{}'")
	require.NoError(t, err)
	versions, err := e.ListVersions(ctx, path, key, "", nil)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	ok, err := e.VerifyVersion(ctx, path, key, versions[0].ID)
	require.NoError(t, err)
	assert.False(t, ok)

	check, err := e.CheckConnection(ctx, path, key)
	require.NoError(t, err)
	assert.True(t, check.Success)
}

func TestEngineCryptoCommands(t *testing.T) {
	e, _ := newEngine(t)

	k1, err := e.GenerateKey()
	require.NoError(t, err)
	k2, err := e.GenerateKey()
	require.NoError(t, err)
	assert.Len(t, k1, 32)
	assert.NotEqual(t, k1, k2)

	dk, err := e.DerivePasswordKey("secret")
	require.NoError(t, err)
	assert.True(t, e.VerifyPasswordKey("secret", dk.Hash))
	assert.False(t, e.VerifyPasswordKey("Secret", dk.Hash))
	assert.False(t, e.VerifyPasswordKey("secret", "garbage"))

	cfg := e.GetCryptoConfig()
	assert.Equal(t, uint32(8192), cfg.MemCost)
	assert.Equal(t, "Argon2id", cfg.Algorithm)
}

func TestEngineConcurrentReadsAndWrites(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	path := filepath.Join(t.TempDir(), "busy.db")
	key := storeKey(t, e, "pw")
	_, err := e.InitDatabase(ctx, path, key)
	require.NoError(t, err)
	acc, err := e.CreateAccount(ctx, path, key, "Cash", "cash")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := e.AddOperation(ctx, path, key, acc.ID, 1, "tick")
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := e.GetNetWorth(ctx, path, key)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	nw, err := e.GetNetWorth(ctx, path, key)
	require.NoError(t, err)
	assert.Equal(t, "10", nw.String())
}

func TestEngineReadsObserveOwnWrites(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	path := filepath.Join(t.TempDir(), "readers.db")
	key := storeKey(t, e, "pw")
	_, err := e.InitDatabase(ctx, path, key)
	require.NoError(t, err)
	acc, err := e.CreateAccount(ctx, path, key, "Cash", "cash")
	require.NoError(t, err)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				_, _ = e.GetNetWorth(ctx, path, key)
				_, _ = e.GetAccountBalance(ctx, path, key, acc.ID)
				_, _ = e.GetAssetAllocation(ctx, path, key)
			}
		}()
	}
	defer func() {
		close(stop)
		wg.Wait()
	}()

	for i := 1; i <= 30; i++ {
		_, err := e.AddOperation(ctx, path, key, acc.ID, 1, "tick")
		require.NoError(t, err)
		want := decimal.NewFromInt(int64(i))

		balance, err := e.GetAccountBalance(ctx, path, key, acc.ID)
		require.NoError(t, err)
		assert.True(t, want.Equal(balance), "after op %d: balance %s", i, balance)

		nw, err := e.GetNetWorth(ctx, path, key)
		require.NoError(t, err)
		assert.True(t, want.Equal(nw), "after op %d: net worth %s", i, nw)

		alloc, err := e.GetAssetAllocation(ctx, path, key)
		require.NoError(t, err)
		require.Len(t, alloc, 1)
		assert.True(t, want.Equal(alloc[0].TotalBalance), "after op %d: allocation %s", i, alloc[0].TotalBalance)
	}
}
