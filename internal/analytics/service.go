// Package analytics answers read-only aggregate questions over the ledger:
// balances, net worth, balance history and allocation by account type.
// Nothing it computes is persisted.
package analytics

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/famledger/famledger/internal/ledger"
)

// Allocation groups balances by account type.
type Allocation struct {
	Type         string          `json:"type"`
	AccountCount int64           `json:"account_count"`
	TotalBalance decimal.Decimal `json:"total_balance"`
}

// Snapshotter opens read snapshots over the ledger.
type Snapshotter interface {
	WithRead(ctx context.Context, fn func(context.Context, ledger.Reader) error) error
}

// Service computes aggregates inside a single read snapshot per call.
type Service struct {
	repo Snapshotter
}

// NewService wires the ledger read side.
func NewService(repo Snapshotter) *Service {
	return &Service{repo: repo}
}

// Balance returns the latest balance of accountID, zero when it has no
// operations.
func (s *Service) Balance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.repo.WithRead(ctx, func(ctx context.Context, r ledger.Reader) error {
		if _, err := r.GetAccount(ctx, accountID); err != nil {
			return err
		}
		var err error
		balance, err = r.LatestBalance(ctx, accountID)
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// NetWorth sums the latest balance of every account.
func (s *Service) NetWorth(ctx context.Context) (decimal.Decimal, error) {
	total := decimal.Zero
	err := s.repo.WithRead(ctx, func(ctx context.Context, r ledger.Reader) error {
		balances, err := r.LatestBalances(ctx)
		if err != nil {
			return err
		}
		for _, b := range balances {
			total = total.Add(b)
		}
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// History returns the account's balance snapshots ordered by (ts, id).
func (s *Service) History(ctx context.Context, accountID int64) ([]ledger.State, error) {
	var states []ledger.State
	err := s.repo.WithRead(ctx, func(ctx context.Context, r ledger.Reader) error {
		if _, err := r.GetAccount(ctx, accountID); err != nil {
			return err
		}
		var err error
		states, err = r.ListStates(ctx, accountID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return states, nil
}

// Allocation returns one row per account type present, sorted by type.
func (s *Service) Allocation(ctx context.Context) ([]Allocation, error) {
	var out []Allocation
	err := s.repo.WithRead(ctx, func(ctx context.Context, r ledger.Reader) error {
		accounts, err := r.ListAccounts(ctx)
		if err != nil {
			return err
		}
		balances, err := r.LatestBalances(ctx)
		if err != nil {
			return err
		}
		out = allocate(accounts, balances)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func allocate(accounts []ledger.Account, balances map[int64]decimal.Decimal) []Allocation {
	byType := make(map[string]*Allocation)
	for _, a := range accounts {
		row, ok := byType[a.Type]
		if !ok {
			row = &Allocation{Type: a.Type, TotalBalance: decimal.Zero}
			byType[a.Type] = row
		}
		row.AccountCount++
		if b, ok := balances[a.ID]; ok {
			row.TotalBalance = row.TotalBalance.Add(b)
		}
	}
	out := make([]Allocation, 0, len(byType))
	for _, row := range byType {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}
