package commands

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/famledger/famledger/internal/analytics"
	"github.com/famledger/famledger/internal/ledger"
	"github.com/famledger/famledger/internal/versionlog"
)

// CreateAccount stores a new account and returns it.
func (e *Engine) CreateAccount(ctx context.Context, path string, key []byte, name, accountType string) (ledger.Account, error) {
	return track(e, CmdCreateAccount, func() (ledger.Account, error) {
		s, _, err := e.open(path, key)
		if err != nil {
			return ledger.Account{}, err
		}
		return s.ledger.CreateAccount(ctx, ledger.AccountInput{Name: name, Type: accountType})
	})
}

// ListAccounts returns all accounts in creation order.
func (e *Engine) ListAccounts(ctx context.Context, path string, key []byte) ([]ledger.Account, error) {
	return track(e, CmdListAccounts, func() ([]ledger.Account, error) {
		s, _, err := e.open(path, key)
		if err != nil {
			return nil, err
		}
		return s.ledger.ListAccounts(ctx)
	})
}

// AddOperation records amount against accountID and returns the operation
// with the balance snapshot it produced.
func (e *Engine) AddOperation(ctx context.Context, path string, key []byte, accountID int64, amount float64, description string) (ledger.Posting, error) {
	return track(e, CmdAddOperation, func() (ledger.Posting, error) {
		s, _, err := e.open(path, key)
		if err != nil {
			return ledger.Posting{}, err
		}
		return s.ledger.AddOperation(ctx, ledger.OperationInput{AccountID: accountID, Amount: amount, Description: description})
	})
}

// GetOperations returns an account's operations ordered by (ts, id).
func (e *Engine) GetOperations(ctx context.Context, path string, key []byte, accountID int64) ([]ledger.Operation, error) {
	return track(e, CmdGetOperations, func() ([]ledger.Operation, error) {
		s, _, err := e.open(path, key)
		if err != nil {
			return nil, err
		}
		return s.ledger.GetOperations(ctx, accountID)
	})
}

// ListVersions returns log records ordered by id. entity may be empty;
// entityID may be nil.
func (e *Engine) ListVersions(ctx context.Context, path string, key []byte, entity string, entityID *int64) ([]versionlog.Record, error) {
	return track(e, CmdListVersions, func() ([]versionlog.Record, error) {
		s, _, err := e.open(path, key)
		if err != nil {
			return nil, err
		}
		filter := versionlog.Filter{EntityID: entityID}
		if entity != "" {
			if filter.Entity, err = versionlog.ParseEntity(entity); err != nil {
				return nil, err
			}
		}
		return s.versions.List(ctx, filter)
	})
}

// VerifyVersion checks the signature of one log record.
func (e *Engine) VerifyVersion(ctx context.Context, path string, key []byte, id int64) (bool, error) {
	return track(e, CmdVerifyVersion, func() (bool, error) {
		s, _, err := e.open(path, key)
		if err != nil {
			return false, err
		}
		return s.versions.Verify(ctx, id)
	})
}

// GetAccountBalance returns the latest balance of an account.
func (e *Engine) GetAccountBalance(ctx context.Context, path string, key []byte, accountID int64) (decimal.Decimal, error) {
	return track(e, CmdGetAccountBalance, func() (decimal.Decimal, error) {
		s, clean, err := e.open(path, key)
		if err != nil {
			return decimal.Zero, err
		}
		return shareRead(e, ctx, readKey(s, clean, CmdGetAccountBalance, accountID), func(ctx context.Context) (decimal.Decimal, error) {
			return s.analytics.Balance(ctx, accountID)
		})
	})
}

// GetNetWorth sums every account balance.
func (e *Engine) GetNetWorth(ctx context.Context, path string, key []byte) (decimal.Decimal, error) {
	return track(e, CmdGetNetWorth, func() (decimal.Decimal, error) {
		s, clean, err := e.open(path, key)
		if err != nil {
			return decimal.Zero, err
		}
		return shareRead(e, ctx, readKey(s, clean, CmdGetNetWorth), s.analytics.NetWorth)
	})
}

// GetBalanceHistory returns an account's balance snapshots.
func (e *Engine) GetBalanceHistory(ctx context.Context, path string, key []byte, accountID int64) ([]ledger.State, error) {
	return track(e, CmdGetBalanceHistory, func() ([]ledger.State, error) {
		s, _, err := e.open(path, key)
		if err != nil {
			return nil, err
		}
		return s.analytics.History(ctx, accountID)
	})
}

// GetAssetAllocation groups balances by account type.
func (e *Engine) GetAssetAllocation(ctx context.Context, path string, key []byte) ([]analytics.Allocation, error) {
	return track(e, CmdGetAssetAllocation, func() ([]analytics.Allocation, error) {
		s, clean, err := e.open(path, key)
		if err != nil {
			return nil, err
		}
		return shareRead(e, ctx, readKey(s, clean, CmdGetAssetAllocation), s.analytics.Allocation)
	})
}
