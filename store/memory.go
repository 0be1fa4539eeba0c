package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/ryokushen/financial"
	"github.com/shopspring/decimal"
)

// Memory is an in-memory store for tests and throwaway sessions. It hands out
// copies, never aliases of its internal state, and supports one-shot failure
// injection per operation so callers can exercise their compensation paths.
type Memory struct {
	mu       sync.Mutex
	txs      []financial.Transaction
	cash     map[string]financial.CashAccount
	debt     map[string]financial.DebtAccount
	failures map[string]error
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		cash:     make(map[string]financial.CashAccount),
		debt:     make(map[string]financial.DebtAccount),
		failures: make(map[string]error),
	}
}

// FailNext arms a one-shot failure for the named operation ("AddTransaction",
// "UpdateDebtBalance", ...). The next call to that operation returns err
// without touching state, then the trap is cleared.
func (m *Memory) FailNext(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = err
}

// trap pops an armed failure for op. Callers hold the mutex.
func (m *Memory) trap(op string) error {
	err := m.failures[op]
	if err != nil {
		delete(m.failures, op)
	}
	return err
}

// SeedCashAccount inserts or replaces a cash account.
func (m *Memory) SeedCashAccount(a financial.CashAccount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cash[a.ID] = a
}

// SeedDebtAccount inserts or replaces a debt account.
func (m *Memory) SeedDebtAccount(a financial.DebtAccount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debt[a.ID] = a
}

func (m *Memory) Transactions(ctx context.Context) ([]financial.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.trap("Transactions"); err != nil {
		return nil, err
	}
	out := make([]financial.Transaction, len(m.txs))
	copy(out, m.txs)
	return out, nil
}

func (m *Memory) AddTransaction(ctx context.Context, t financial.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.trap("AddTransaction"); err != nil {
		return err
	}
	for _, existing := range m.txs {
		if existing.ID == t.ID {
			return fmt.Errorf("transaction %q already exists", t.ID)
		}
	}
	m.txs = append(m.txs, t)
	return nil
}

func (m *Memory) UpdateTransaction(ctx context.Context, id string, t financial.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.trap("UpdateTransaction"); err != nil {
		return err
	}
	for i, existing := range m.txs {
		if existing.ID == id {
			m.txs[i] = t
			return nil
		}
	}
	return &financial.NotFoundError{Kind: "transaction", ID: id}
}

func (m *Memory) DeleteTransaction(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.trap("DeleteTransaction"); err != nil {
		return err
	}
	for i, existing := range m.txs {
		if existing.ID == id {
			m.txs = append(m.txs[:i], m.txs[i+1:]...)
			return nil
		}
	}
	return &financial.NotFoundError{Kind: "transaction", ID: id}
}

func (m *Memory) CashAccount(ctx context.Context, id string) (financial.CashAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.trap("CashAccount"); err != nil {
		return financial.CashAccount{}, err
	}
	a, ok := m.cash[id]
	if !ok {
		return financial.CashAccount{}, &financial.NotFoundError{Kind: "cash account", ID: id}
	}
	return a, nil
}

func (m *Memory) UpdateCashBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.trap("UpdateCashBalance"); err != nil {
		return err
	}
	a, ok := m.cash[id]
	if !ok {
		return &financial.NotFoundError{Kind: "cash account", ID: id}
	}
	a.Balance = balance
	m.cash[id] = a
	return nil
}

func (m *Memory) DebtAccount(ctx context.Context, id string) (financial.DebtAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.trap("DebtAccount"); err != nil {
		return financial.DebtAccount{}, err
	}
	a, ok := m.debt[id]
	if !ok {
		return financial.DebtAccount{}, &financial.NotFoundError{Kind: "debt account", ID: id}
	}
	return a, nil
}

func (m *Memory) UpdateDebtBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.trap("UpdateDebtBalance"); err != nil {
		return err
	}
	a, ok := m.debt[id]
	if !ok {
		return &financial.NotFoundError{Kind: "debt account", ID: id}
	}
	a.Balance = balance
	m.debt[id] = a
	return nil
}
