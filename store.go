package financial

import (
	"context"

	"github.com/shopspring/decimal"
)

// Store is the persistence boundary consumed by the Manager and the Ledger.
//
// Every call is independently atomic at the single-entity level, but the
// store offers no cross-call transaction: a write that touches a transaction
// and an account balance is two separate calls, and consistency across them
// is the Ledger's job.
//
// Implementations live in the store subpackage (JSONL file, MySQL, in-memory).
type Store interface {
	// Transactions returns every stored transaction.
	Transactions(ctx context.Context) ([]Transaction, error)
	// AddTransaction persists a new transaction. The ID is assigned by the caller.
	AddTransaction(ctx context.Context, t Transaction) error
	// UpdateTransaction replaces the stored transaction with the given id.
	UpdateTransaction(ctx context.Context, id string, t Transaction) error
	// DeleteTransaction removes the transaction with the given id.
	DeleteTransaction(ctx context.Context, id string) error

	// CashAccount returns the cash account with the given id.
	CashAccount(ctx context.Context, id string) (CashAccount, error)
	// UpdateCashBalance stores a new balance for the cash account.
	UpdateCashBalance(ctx context.Context, id string, balance decimal.Decimal) error

	// DebtAccount returns the debt account with the given id.
	DebtAccount(ctx context.Context, id string) (DebtAccount, error)
	// UpdateDebtBalance stores a new balance for the debt account.
	UpdateDebtBalance(ctx context.Context, id string, balance decimal.Decimal) error
}
