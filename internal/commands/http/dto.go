package commandshttp

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/famledger/famledger/internal/ledger"
	"github.com/famledger/famledger/internal/shared"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type storeRequest struct {
	Path string `json:"path" validate:"required"`
	Key  string `json:"key" validate:"required,len=64,hexadecimal"`
}

func (r storeRequest) rawKey() ([]byte, error) {
	key, err := hex.DecodeString(r.Key)
	if err != nil {
		return nil, fmt.Errorf("bridge: key must be hex: %w", shared.ErrInvalidInput)
	}
	return key, nil
}

type createAccountRequest struct {
	storeRequest
	Name string `json:"name"`
	Type string `json:"type"`
}

type addOperationRequest struct {
	storeRequest
	AccountID   int64           `json:"account_id"`
	Amount      json.RawMessage `json:"amount"`
	Description string          `json:"description"`
}

// amount accepts a JSON number or a numeric string. Anything else,
// including a missing amount, is an invalid amount.
func (r addOperationRequest) amount() (float64, error) {
	raw := bytes.TrimSpace(r.Amount)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, ledger.ErrInvalidAmount
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, ledger.ErrInvalidAmount
		}
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, ledger.ErrInvalidAmount
	}
	return v, nil
}

type accountRequest struct {
	storeRequest
	AccountID int64 `json:"account_id"`
}

type listVersionsRequest struct {
	storeRequest
	Entity   string `json:"entity"`
	EntityID *int64 `json:"entity_id"`
}

type verifyVersionRequest struct {
	storeRequest
	ID int64 `json:"id" validate:"gt=0"`
}

type setVersionRequest struct {
	storeRequest
	Version string `json:"version" validate:"required"`
}

type queryRequest struct {
	storeRequest
	Query string `json:"query" validate:"required"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

type verifyPasswordRequest struct {
	Password string `json:"password"`
	Hash     string `json:"hash" validate:"required"`
}

type derivedKeyResponse struct {
	Key  string `json:"key"`
	Salt string `json:"salt"`
	Hash string `json:"hash"`
}

func validateRequest(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("bridge: %w: %v", shared.ErrInvalidInput, err)
	}
	return nil
}
