package app

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/famledger/famledger/internal/commands"
	"github.com/famledger/famledger/internal/kdf"
	"github.com/famledger/famledger/internal/observability"
	"github.com/famledger/famledger/internal/shared"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7420", cfg.BridgeAddr)
	assert.Equal(t, kdf.DefaultParams(), cfg.KDFParams())
	assert.Equal(t, "USD", cfg.Currency())

	types, err := cfg.AccountTypes()
	require.NoError(t, err)
	assert.Equal(t, []string{"cash", "card", "bank", "deposit"}, types.Names())
}

func TestLoadConfigRejects(t *testing.T) {
	cases := map[string][2]string{
		"zero memory":     {"KDF_MEMORY_KIB", "0"},
		"short key":       {"KDF_KEY_SIZE", "16"},
		"public bridge":   {"BRIDGE_ADDR", "0.0.0.0:7420"},
		"no port":         {"BRIDGE_ADDR", "127.0.0.1"},
		"blank types":     {"LEDGER_ACCOUNT_TYPES", " , "},
		"unknown money":   {"LEDGER_CURRENCY", "XXY"},
		"not a number":    {"KDF_TIME_COST", "three"},
		"zero rate limit": {"BRIDGE_RATE_LIMIT", "0"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := LoadConfig()
			require.Error(t, err)
			assert.Equal(t, shared.KindConfiguration, shared.KindOf(err))
		})
	}
}

func TestLoadConfigCustomTypes(t *testing.T) {
	t.Setenv("LEDGER_ACCOUNT_TYPES", "Cash,crypto")
	t.Setenv("BRIDGE_ADDR", "localhost:9000")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	types, err := cfg.AccountTypes()
	require.NoError(t, err)
	assert.True(t, types.Contains("crypto"))
	assert.False(t, types.Contains("bank"))
}

func TestLoggerRedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogFormat: "json"}, &buf)
	logger.Info("derive", slog.String("password", "hunter2"), slog.String("path", "a.db"))
	assert.NotContains(t, buf.String(), "hunter2")
	assert.Contains(t, buf.String(), "a.db")
}

func newTestBridge(t *testing.T, token string) http.Handler {
	t.Helper()
	d, err := kdf.New(kdf.Params{MemoryKiB: 8192, TimeCost: 1, Parallelism: 1, KeySize: 32, SaltSize: 16})
	require.NoError(t, err)
	metrics := observability.NewMetrics()
	engine, err := commands.NewEngine(commands.Options{Deriver: d, Metrics: metrics.Commands()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	cfg := &Config{BridgeAddr: "127.0.0.1:7420", BridgeToken: token, BridgeRateLimit: 1000}
	return NewRouter(RouterParams{Logger: slog.New(slog.DiscardHandler), Config: cfg, Engine: engine, Metrics: metrics})
}

func bridgeRequest(method, path, remote, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = remote
	return req
}

func TestRouterHealthAndCommands(t *testing.T) {
	h := newTestBridge(t, "")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, bridgeRequest(http.MethodGet, "/healthz", "127.0.0.1:50000", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, bridgeRequest(http.MethodPost, "/commands/getCryptoConfig", "[::1]:50000", "{}"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"algorithm":"Argon2id"`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, bridgeRequest(http.MethodGet, "/metrics", "127.0.0.1:50000", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "famledger_commands_total")
}

func TestRouterRejectsRemotePeers(t *testing.T) {
	h := newTestBridge(t, "")

	req := bridgeRequest(http.MethodPost, "/commands/getStatus", "192.0.2.10:4000", "{}")
	req.Header.Set("X-Forwarded-For", "127.0.0.1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouterBridgeToken(t *testing.T) {
	h := newTestBridge(t, "s3cret")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, bridgeRequest(http.MethodPost, "/commands/getStatus", "127.0.0.1:1", "{}"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := bridgeRequest(http.MethodPost, "/commands/getStatus", "127.0.0.1:1", "{}")
	req.Header.Set(BridgeTokenHeader, "s3cret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"uninitialized"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, bridgeRequest(http.MethodGet, "/healthz", "127.0.0.1:1", ""))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTestModeFlag(t *testing.T) {
	t.Setenv(TestModeEnv, "true")
	RefreshTestMode()
	assert.True(t, InTestMode())

	t.Setenv(TestModeEnv, "0")
	RefreshTestMode()
	assert.False(t, InTestMode())
}
