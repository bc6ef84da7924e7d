package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/famledger/famledger/internal/shared"
)

// Account is a single-entry ledger account.
type Account struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	CreatedAt int64  `json:"created_at"`
}

// Operation is a signed amount applied to one account. Positive amounts are
// credits.
type Operation struct {
	ID          int64           `json:"id"`
	AccountID   int64           `json:"account_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	TS          int64           `json:"ts"`
}

// State is the running balance of an account after one operation.
type State struct {
	ID        int64           `json:"id"`
	AccountID int64           `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
	TS        int64           `json:"ts"`
}

// Posting is the result of AddOperation: the stored operation and the
// balance snapshot it produced.
type Posting struct {
	Operation Operation `json:"operation"`
	State     State     `json:"state"`
}

// DefaultAccountTypes is used when no types are configured.
var DefaultAccountTypes = []string{"cash", "card", "bank", "deposit"}

// AccountTypes is the configured set of recognised account types.
type AccountTypes struct {
	names []string
	set   map[string]struct{}
}

// NewAccountTypes normalises names to lower case and removes duplicates.
// An empty list or a blank name is a configuration error.
func NewAccountTypes(names ...string) (AccountTypes, error) {
	t := AccountTypes{set: make(map[string]struct{}, len(names))}
	for _, raw := range names {
		name := normalizeType(raw)
		if name == "" {
			return AccountTypes{}, fmt.Errorf("ledger: blank account type: %w", shared.ErrConfiguration)
		}
		if _, dup := t.set[name]; dup {
			continue
		}
		t.set[name] = struct{}{}
		t.names = append(t.names, name)
	}
	if len(t.names) == 0 {
		return AccountTypes{}, fmt.Errorf("ledger: no account types configured: %w", shared.ErrConfiguration)
	}
	return t, nil
}

// MustAccountTypes is NewAccountTypes for static lists.
func MustAccountTypes(names ...string) AccountTypes {
	t, err := NewAccountTypes(names...)
	if err != nil {
		panic(err)
	}
	return t
}

// Contains reports whether name, after normalisation, is recognised.
func (t AccountTypes) Contains(name string) bool {
	_, ok := t.set[normalizeType(name)]
	return ok
}

// Names lists the types in configuration order.
func (t AccountTypes) Names() []string {
	return append([]string(nil), t.names...)
}

func normalizeType(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
