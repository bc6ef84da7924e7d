// Package commandshttp exposes the command engine to the local presentation
// layer as POST /commands/{name}.
package commandshttp

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/famledger/famledger/internal/commands"
	"github.com/famledger/famledger/internal/platform/httpx"
	"github.com/famledger/famledger/internal/shared"
)

// ErrUnknownCommand is returned for names outside the command surface.
var ErrUnknownCommand = fmt.Errorf("bridge: unknown command: %w", shared.ErrNotFound)

type commandFunc func(r *http.Request) (any, error)

// Handler dispatches bridge requests to the engine.
type Handler struct {
	logger *slog.Logger
	engine *commands.Engine
	routes map[string]commandFunc
}

// NewHandler wires every command name to its decoder.
func NewHandler(logger *slog.Logger, engine *commands.Engine) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{logger: logger, engine: engine}
	h.routes = map[string]commandFunc{
		commands.CmdCreateAccount:      h.createAccount,
		commands.CmdListAccounts:       h.listAccounts,
		commands.CmdAddOperation:       h.addOperation,
		commands.CmdGetOperations:      h.getOperations,
		commands.CmdListVersions:       h.listVersions,
		commands.CmdVerifyVersion:      h.verifyVersion,
		commands.CmdGetAccountBalance:  h.getAccountBalance,
		commands.CmdGetNetWorth:        h.getNetWorth,
		commands.CmdGetBalanceHistory:  h.getBalanceHistory,
		commands.CmdGetAssetAllocation: h.getAssetAllocation,
		commands.CmdGenerateKey:        h.generateKey,
		commands.CmdDerivePasswordKey:  h.derivePasswordKey,
		commands.CmdVerifyPasswordKey:  h.verifyPasswordKey,
		commands.CmdGetCryptoConfig:    h.getCryptoConfig,
		commands.CmdInitDatabase:       h.initDatabase,
		commands.CmdCheckConnection:    h.checkConnection,
		commands.CmdGetVersion:         h.getVersion,
		commands.CmdSetVersion:         h.setVersion,
		commands.CmdGetStatus:          h.getStatus,
		commands.CmdExecuteQuery:       h.executeQuery,
		commands.CmdCloseDatabase:      h.closeDatabase,
	}
	return h
}

// MountRoutes registers the command endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/commands", h.list)
	r.Post("/commands/{name}", h.dispatch)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string][]string{"commands": commands.Names})
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	fn, ok := h.routes[name]
	if !ok {
		httpx.RespondError(w, fmt.Errorf("%w: %q", ErrUnknownCommand, name))
		return
	}
	out, err := fn(r)
	if err != nil {
		if shared.KindOf(err) == shared.KindStorage {
			h.logger.Error("command failed", slog.String("command", name), slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	if raw, ok := out.(json.RawMessage); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(raw)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

// decodeStore decodes req from the body, validates it and returns the raw
// store key.
func decodeStore[T interface{ rawKey() ([]byte, error) }](r *http.Request, req T) ([]byte, error) {
	if err := httpx.DecodeJSON(r, req); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return req.rawKey()
}

func (h *Handler) createAccount(r *http.Request) (any, error) {
	var req createAccountRequest
	key, err := decodeStore(r, &req)
	if err != nil {
		return nil, err
	}
	return h.engine.CreateAccount(r.Context(), req.Path, key, req.Name, req.Type)
}

func (h *Handler) listAccounts(r *http.Request) (any, error) {
	var req storeRequest
	key, err := decodeStore(r, &req)
	if err != nil {
		return nil, err
	}
	return h.engine.ListAccounts(r.Context(), req.Path, key)
}

func (h *Handler) addOperation(r *http.Request) (any, error) {
	var req addOperationRequest
	key, err := decodeStore(r, &req)
	if err != nil {
		return nil, err
	}
	amount, err := req.amount()
	if err != nil {
		return nil, err
	}
	return h.engine.AddOperation(r.Context(), req.Path, key, req.AccountID, amount, req.Description)
}

func (h *Handler) getOperations(r *http.Request) (any, error) {
	var req accountRequest
	key, err := decodeStore(r, &req)
	if err != nil {
		return nil, err
	}
	return h.engine.GetOperations(r.Context(), req.Path, key, req.AccountID)
}

func (h *Handler) listVersions(r *http.Request) (any, error) {
	var req listVersionsRequest
	key, err := decodeStore(r, &req)
	if err != nil {
		return nil, err
	}
	return h.engine.ListVersions(r.Context(), req.Path, key, req.Entity, req.EntityID)
}

func (h *Handler) verifyVersion(r *http.Request) (any, error) {
	var req verifyVersionRequest
	key, err := decodeStore(r, &req)
	if err != nil {
		return nil, err
	}
	ok, err := h.engine.VerifyVersion(r.Context(), req.Path, key, req.ID)
	if err != nil {
		return nil, err
	}
	return map[string]bool{"valid": ok}, nil
}

func (h *Handler) getAccountBalance(r *http.Request) (any, error) {
	var req accountRequest
	key, err := decodeStore(r, &req)
	if err != nil {
		return nil, err
	}
	balance, err := h.engine.GetAccountBalance(r.Context(), req.Path, key, req.AccountID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"account_id": req.AccountID, "balance": balance}, nil
}

func (h *Handler) getNetWorth(r *http.Request) (any, error) {
	var req storeRequest
	key, err := decodeStore(r, &req)
	if err != nil {
		return nil, err
	}
	nw, err := h.engine.GetNetWorth(r.Context(), req.Path, key)
	if err != nil {
		return nil, err
	}
	return map[string]any{"net_worth": nw}, nil
}

func (h *Handler) getBalanceHistory(r *http.Request) (any, error) {
	var req accountRequest
	key, err := decodeStore(r, &req)
	if err != nil {
		return nil, err
	}
	return h.engine.GetBalanceHistory(r.Context(), req.Path, key, req.AccountID)
}

func (h *Handler) getAssetAllocation(r *http.Request) (any, error) {
	var req storeRequest
	key, err := decodeStore(r, &req)
	if err != nil {
		return nil, err
	}
	return h.engine.GetAssetAllocation(r.Context(), req.Path, key)
}

func (h *Handler) generateKey(r *http.Request) (any, error) {
	key, err := h.engine.GenerateKey()
	if err != nil {
		return nil, err
	}
	return map[string]string{"key": hex.EncodeToString(key)}, nil
}

func (h *Handler) derivePasswordKey(r *http.Request) (any, error) {
	var req passwordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return nil, err
	}
	dk, err := h.engine.DerivePasswordKey(req.Password)
	if err != nil {
		return nil, err
	}
	return derivedKeyResponse{
		Key:  hex.EncodeToString(dk.Key),
		Salt: hex.EncodeToString(dk.Salt),
		Hash: dk.Hash,
	}, nil
}

func (h *Handler) verifyPasswordKey(r *http.Request) (any, error) {
	var req verifyPasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return map[string]bool{"valid": h.engine.VerifyPasswordKey(req.Password, req.Hash)}, nil
}

func (h *Handler) getCryptoConfig(r *http.Request) (any, error) {
	return h.engine.GetCryptoConfig(), nil
}

func (h *Handler) initDatabase(r *http.Request) (any, error) {
	var req storeRequest
	key, err := decodeStore(r, &req)
	if err != nil {
		return nil, err
	}
	return h.engine.InitDatabase(r.Context(), req.Path, key)
}

func (h *Handler) checkConnection(r *http.Request) (any, error) {
	var req storeRequest
	key, err := decodeStore(r, &req)
	if err != nil {
		return nil, err
	}
	return h.engine.CheckConnection(r.Context(), req.Path, key)
}

func (h *Handler) closeDatabase(r *http.Request) (any, error) {
	var req storeRequest
	key, err := decodeStore(r, &req)
	if err != nil {
		return nil, err
	}
	return h.engine.CloseDatabase(r.Context(), req.Path, key)
}

func (h *Handler) getVersion(r *http.Request) (any, error) {
	var req storeRequest
	key, err := decodeStore(r, &req)
	if err != nil {
		return nil, err
	}
	v, err := h.engine.GetVersion(r.Context(), req.Path, key)
	if err != nil {
		return nil, err
	}
	return map[string]string{"version": v}, nil
}

func (h *Handler) setVersion(r *http.Request) (any, error) {
	var req setVersionRequest
	key, err := decodeStore(r, &req)
	if err != nil {
		return nil, err
	}
	return h.engine.SetVersion(r.Context(), req.Path, key, req.Version)
}

func (h *Handler) getStatus(r *http.Request) (any, error) {
	return map[string]string{"status": string(h.engine.GetStatus())}, nil
}

func (h *Handler) executeQuery(r *http.Request) (any, error) {
	var req queryRequest
	key, err := decodeStore(r, &req)
	if err != nil {
		return nil, err
	}
	out, err := h.engine.ExecuteQuery(r.Context(), req.Path, key, req.Query)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(out), nil
}
