package commandshttp

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/famledger/famledger/internal/commands"
	"github.com/famledger/famledger/internal/kdf"
	"github.com/famledger/famledger/internal/observability"
	"github.com/famledger/famledger/internal/platform/httpx"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	d, err := kdf.New(kdf.Params{MemoryKiB: 8192, TimeCost: 1, Parallelism: 1, KeySize: 32, SaltSize: 16})
	require.NoError(t, err)
	engine, err := commands.NewEngine(commands.Options{
		Deriver: d,
		Metrics: observability.NewCommandMetrics(prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	r := chi.NewRouter()
	NewHandler(nil, engine).MountRoutes(r)
	return r
}

func call(t *testing.T, h http.Handler, name string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, "/commands/"+name, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestBridgeWalletFlow(t *testing.T) {
	h := newTestRouter(t)

	rec := call(t, h, commands.CmdGenerateKey, map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code)
	key := decode[map[string]string](t, rec)["key"]
	require.Len(t, key, 64)

	store := map[string]any{"path": filepath.Join(t.TempDir(), "bridge.db"), "key": key}
	with := func(extra map[string]any) map[string]any {
		out := map[string]any{}
		for k, v := range store {
			out[k] = v
		}
		for k, v := range extra {
			out[k] = v
		}
		return out
	}

	rec = call(t, h, commands.CmdInitDatabase, store)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[commands.Result](t, rec).Success)

	rec = call(t, h, commands.CmdCreateAccount, with(map[string]any{"name": "Wallet", "type": "cash"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	acc := decode[map[string]any](t, rec)
	assert.Equal(t, "Wallet", acc["name"])

	rec = call(t, h, commands.CmdAddOperation, with(map[string]any{"account_id": 1, "amount": 100, "description": "salary"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = call(t, h, commands.CmdAddOperation, with(map[string]any{"account_id": 1, "amount": "-40.5", "description": "groceries"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = call(t, h, commands.CmdGetAccountBalance, with(map[string]any{"account_id": 1}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "59.5", decode[map[string]any](t, rec)["balance"])

	rec = call(t, h, commands.CmdGetNetWorth, store)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "59.5", decode[map[string]any](t, rec)["net_worth"])

	rec = call(t, h, commands.CmdListVersions, store)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 3)

	rec = call(t, h, commands.CmdVerifyVersion, with(map[string]any{"id": 1}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]bool{"valid": true}, decode[map[string]bool](t, rec))

	rec = call(t, h, commands.CmdExecuteQuery, with(map[string]any{"query": "SELECT name FROM accounts"}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"name":"Wallet"}]`, rec.Body.String())

	rec = call(t, h, commands.CmdGetStatus, map[string]any{})
	assert.Equal(t, map[string]string{"status": "connected"}, decode[map[string]string](t, rec))
}

func TestBridgeErrorKinds(t *testing.T) {
	h := newTestRouter(t)
	key := hex.EncodeToString(bytes.Repeat([]byte{7}, 32))
	path := filepath.Join(t.TempDir(), "errors.db")

	rec := call(t, h, commands.CmdInitDatabase, map[string]any{"path": path, "key": key})
	require.Equal(t, http.StatusOK, rec.Code)

	cases := []struct {
		name    string
		command string
		body    map[string]any
		status  int
		kind    string
	}{
		{"unknown account", commands.CmdGetOperations, map[string]any{"path": path, "key": key, "account_id": 99}, http.StatusNotFound, "NotFound"},
		{"text amount", commands.CmdAddOperation, map[string]any{"path": path, "key": key, "account_id": 1, "amount": "lots", "description": "x"}, http.StatusBadRequest, "InvalidAmount"},
		{"missing amount", commands.CmdAddOperation, map[string]any{"path": path, "key": key, "account_id": 1, "description": "x"}, http.StatusBadRequest, "InvalidAmount"},
		{"short key", commands.CmdListAccounts, map[string]any{"path": path, "key": "abcd"}, http.StatusBadRequest, "InvalidInput"},
		{"unknown field", commands.CmdListAccounts, map[string]any{"path": path, "key": key, "extra": true}, http.StatusBadRequest, "InvalidInput"},
		{"wrong key", commands.CmdListAccounts, map[string]any{"path": path, "key": hex.EncodeToString(make([]byte, 32))}, http.StatusUnauthorized, "AuthenticationFailure"},
		{"unknown command", "dropTables", map[string]any{}, http.StatusNotFound, "NotFound"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := call(t, h, tc.command, tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
			problem := decode[httpx.ProblemDetail](t, rec)
			assert.Equal(t, tc.kind, problem.Kind)
		})
	}
}

func TestBridgeListsCommands(t *testing.T) {
	h := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/commands", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.ElementsMatch(t, commands.Names, decode[map[string][]string](t, rec)["commands"])
}
