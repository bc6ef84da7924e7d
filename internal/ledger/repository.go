package ledger

import (
	"context"
	"crypto/ed25519"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/famledger/famledger/internal/platform/db"
	"github.com/famledger/famledger/internal/shared"
	"github.com/famledger/famledger/internal/versionlog"
)

// Reader exposes the queries available inside a read snapshot or a write
// transaction.
type Reader interface {
	GetAccount(ctx context.Context, id int64) (Account, error)
	ListAccounts(ctx context.Context) ([]Account, error)
	ListOperations(ctx context.Context, accountID int64) ([]Operation, error)
	ListStates(ctx context.Context, accountID int64) ([]State, error)
	// LatestBalance returns the balance of the newest state, or zero.
	LatestBalance(ctx context.Context, accountID int64) (decimal.Decimal, error)
	// LatestBalances maps every account with at least one state to its
	// newest balance.
	LatestBalances(ctx context.Context) (map[int64]decimal.Decimal, error)
}

// TxRepository exposes writes available within a transaction.
type TxRepository interface {
	Reader
	InsertAccount(ctx context.Context, a Account) (Account, error)
	InsertOperation(ctx context.Context, op Operation) (Operation, error)
	InsertState(ctx context.Context, st State) (State, error)
	AppendVersion(ctx context.Context, e versionlog.Entry) (versionlog.Record, error)
}

// Repository opens units of work over the store.
type Repository interface {
	WithRead(ctx context.Context, fn func(context.Context, Reader) error) error
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// Store is the part of the storage session the repository needs.
type Store interface {
	WithSignedTx(ctx context.Context, fn func(context.Context, *sql.Tx, ed25519.PrivateKey) error) error
	ReadTx(ctx context.Context, fn func(context.Context, *sql.Tx) error) error
}

type repository struct {
	store Store
}

// NewRepository returns a Repository backed by an open store.
func NewRepository(store Store) Repository {
	return &repository{store: store}
}

func (r *repository) WithRead(ctx context.Context, fn func(context.Context, Reader) error) error {
	return r.store.ReadTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, &reader{q: tx})
	})
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.store.WithSignedTx(ctx, func(ctx context.Context, tx *sql.Tx, signer ed25519.PrivateKey) error {
		return fn(ctx, &txRepository{reader: reader{q: tx}, signer: signer})
	})
}

type reader struct {
	q db.Querier
}

func (r *reader) GetAccount(ctx context.Context, id int64) (Account, error) {
	var a Account
	err := r.q.QueryRowContext(ctx, `SELECT id, name, type, created_at FROM accounts WHERE id = ?`, id).
		Scan(&a.ID, &a.Name, &a.Type, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrAccountNotFound
	}
	if err != nil {
		return Account{}, shared.StorageError("ledger: get account", err)
	}
	return a, nil
}

func (r *reader) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT id, name, type, created_at FROM accounts ORDER BY id ASC`)
	if err != nil {
		return nil, shared.StorageError("ledger: list accounts", err)
	}
	defer rows.Close()
	accounts := make([]Account, 0)
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Name, &a.Type, &a.CreatedAt); err != nil {
			return nil, shared.StorageError("ledger: scan account", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.StorageError("ledger: list accounts", err)
	}
	return accounts, nil
}

func (r *reader) ListOperations(ctx context.Context, accountID int64) ([]Operation, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT id, account_id, amount, description, ts
FROM operations WHERE account_id = ? ORDER BY ts ASC, id ASC`, accountID)
	if err != nil {
		return nil, shared.StorageError("ledger: list operations", err)
	}
	defer rows.Close()
	ops := make([]Operation, 0)
	for rows.Next() {
		var op Operation
		if err := rows.Scan(&op.ID, &op.AccountID, &op.Amount, &op.Description, &op.TS); err != nil {
			return nil, shared.StorageError("ledger: scan operation", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.StorageError("ledger: list operations", err)
	}
	return ops, nil
}

func (r *reader) ListStates(ctx context.Context, accountID int64) ([]State, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT id, account_id, balance, ts
FROM states WHERE account_id = ? ORDER BY ts ASC, id ASC`, accountID)
	if err != nil {
		return nil, shared.StorageError("ledger: list states", err)
	}
	defer rows.Close()
	states := make([]State, 0)
	for rows.Next() {
		var st State
		if err := rows.Scan(&st.ID, &st.AccountID, &st.Balance, &st.TS); err != nil {
			return nil, shared.StorageError("ledger: scan state", err)
		}
		states = append(states, st)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.StorageError("ledger: list states", err)
	}
	return states, nil
}

func (r *reader) LatestBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.q.QueryRowContext(ctx, `SELECT balance FROM states WHERE account_id = ? ORDER BY id DESC LIMIT 1`, accountID).
		Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, shared.StorageError("ledger: latest balance", err)
	}
	return balance, nil
}

func (r *reader) LatestBalances(ctx context.Context) (map[int64]decimal.Decimal, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT s.account_id, s.balance FROM states s
JOIN (SELECT account_id, MAX(id) AS id FROM states GROUP BY account_id) latest ON latest.id = s.id`)
	if err != nil {
		return nil, shared.StorageError("ledger: latest balances", err)
	}
	defer rows.Close()
	out := make(map[int64]decimal.Decimal)
	for rows.Next() {
		var (
			id      int64
			balance decimal.Decimal
		)
		if err := rows.Scan(&id, &balance); err != nil {
			return nil, shared.StorageError("ledger: scan balance", err)
		}
		out[id] = balance
	}
	if err := rows.Err(); err != nil {
		return nil, shared.StorageError("ledger: latest balances", err)
	}
	return out, nil
}

type txRepository struct {
	reader
	signer ed25519.PrivateKey
}

func (t *txRepository) InsertAccount(ctx context.Context, a Account) (Account, error) {
	res, err := t.q.ExecContext(ctx, `INSERT INTO accounts (name, type, created_at) VALUES (?, ?, ?)`,
		a.Name, a.Type, a.CreatedAt)
	if err != nil {
		return Account{}, shared.StorageError("ledger: insert account", err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return Account{}, shared.StorageError("ledger: account id", err)
	}
	return a, nil
}

func (t *txRepository) InsertOperation(ctx context.Context, op Operation) (Operation, error) {
	res, err := t.q.ExecContext(ctx, `INSERT INTO operations (account_id, amount, description, ts) VALUES (?, ?, ?, ?)`,
		op.AccountID, op.Amount.String(), op.Description, op.TS)
	if err != nil {
		return Operation{}, shared.StorageError("ledger: insert operation", err)
	}
	if op.ID, err = res.LastInsertId(); err != nil {
		return Operation{}, shared.StorageError("ledger: operation id", err)
	}
	return op, nil
}

func (t *txRepository) InsertState(ctx context.Context, st State) (State, error) {
	res, err := t.q.ExecContext(ctx, `INSERT INTO states (account_id, balance, ts) VALUES (?, ?, ?)`,
		st.AccountID, st.Balance.String(), st.TS)
	if err != nil {
		return State{}, shared.StorageError("ledger: insert state", err)
	}
	if st.ID, err = res.LastInsertId(); err != nil {
		return State{}, shared.StorageError("ledger: state id", err)
	}
	return st, nil
}

func (t *txRepository) AppendVersion(ctx context.Context, e versionlog.Entry) (versionlog.Record, error) {
	return versionlog.Append(ctx, t.q, t.signer, e)
}
