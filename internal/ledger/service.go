// Package ledger owns accounts, operations and balance snapshots. Every
// mutation commits together with its version log record.
package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/famledger/famledger/internal/versionlog"
)

// Service implements the ledger use cases.
type Service struct {
	repo   Repository
	types  AccountTypes
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires the repository and the recognised account types.
func NewService(repo Repository, types AccountTypes, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, types: types, logger: logger, now: time.Now}
}

// WithNow overrides the clock.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// AccountTypes returns the recognised types.
func (s *Service) AccountTypes() AccountTypes {
	return s.types
}

// CreateAccount validates and stores a new account.
func (s *Service) CreateAccount(ctx context.Context, in AccountInput) (Account, error) {
	if err := in.Validate(s.types); err != nil {
		return Account{}, err
	}
	in = in.normalize()
	var account Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		created, err := tx.InsertAccount(ctx, Account{Name: in.Name, Type: in.Type, CreatedAt: s.now().Unix()})
		if err != nil {
			return err
		}
		if _, err := tx.AppendVersion(ctx, versionlog.Entry{
			Action:   versionlog.ActionCreate,
			Entity:   versionlog.EntityAccount,
			EntityID: created.ID,
			TS:       created.CreatedAt,
			Payload:  created,
		}); err != nil {
			return err
		}
		account = created
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	s.logger.Info("account created", slog.Int64("account_id", account.ID), slog.String("type", account.Type))
	return account, nil
}

// AddOperation records an amount against an existing account and stores
// the resulting balance snapshot.
func (s *Service) AddOperation(ctx context.Context, in OperationInput) (Posting, error) {
	if err := in.Validate(); err != nil {
		return Posting{}, err
	}
	in = in.normalize()
	amount := decimal.NewFromFloat(in.Amount)

	var posted Posting
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetAccount(ctx, in.AccountID); err != nil {
			return err
		}
		ts := s.now().Unix()
		op, err := tx.InsertOperation(ctx, Operation{
			AccountID:   in.AccountID,
			Amount:      amount,
			Description: in.Description,
			TS:          ts,
		})
		if err != nil {
			return err
		}
		previous, err := tx.LatestBalance(ctx, in.AccountID)
		if err != nil {
			return err
		}
		state, err := tx.InsertState(ctx, State{AccountID: in.AccountID, Balance: previous.Add(amount), TS: ts})
		if err != nil {
			return err
		}
		if _, err := tx.AppendVersion(ctx, versionlog.Entry{
			Action:   versionlog.ActionCreate,
			Entity:   versionlog.EntityOperation,
			EntityID: op.ID,
			TS:       ts,
			Payload:  op,
		}); err != nil {
			return err
		}
		posted = Posting{Operation: op, State: state}
		return nil
	})
	if err != nil {
		return Posting{}, err
	}
	s.logger.Info("operation added",
		slog.Int64("operation_id", posted.Operation.ID),
		slog.Int64("account_id", posted.Operation.AccountID))
	return posted, nil
}

// GetOperations returns the account's operations ordered by (ts, id).
func (s *Service) GetOperations(ctx context.Context, accountID int64) ([]Operation, error) {
	var ops []Operation
	err := s.repo.WithRead(ctx, func(ctx context.Context, r Reader) error {
		if _, err := r.GetAccount(ctx, accountID); err != nil {
			return err
		}
		var err error
		ops, err = r.ListOperations(ctx, accountID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ops, nil
}

// ListAccounts returns all accounts in creation order.
func (s *Service) ListAccounts(ctx context.Context) ([]Account, error) {
	var accounts []Account
	err := s.repo.WithRead(ctx, func(ctx context.Context, r Reader) error {
		var err error
		accounts, err = r.ListAccounts(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return accounts, nil
}
