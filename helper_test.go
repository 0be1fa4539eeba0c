package financial

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ryokushen/financial/date"
	"github.com/shopspring/decimal"
)

// dec is a helper for tests to build decimals from const strings.
func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// fakeStore is an in-memory Store with one-shot failure injection, so tests
// can force any persistence step to fail and observe the compensation.
type fakeStore struct {
	mu       sync.Mutex
	txs      []Transaction
	cash     map[string]CashAccount
	debt     map[string]DebtAccount
	failures map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		cash:     make(map[string]CashAccount),
		debt:     make(map[string]DebtAccount),
		failures: make(map[string]error),
	}
}

// failNext arms a one-shot failure for the named operation.
func (s *fakeStore) failNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

func (s *fakeStore) trap(op string) error {
	err := s.failures[op]
	if err != nil {
		delete(s.failures, op)
	}
	return err
}

func (s *fakeStore) seedCash(a CashAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cash[a.ID] = a
}

func (s *fakeStore) seedDebt(a DebtAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debt[a.ID] = a
}

func (s *fakeStore) seedTx(txs ...Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = append(s.txs, txs...)
}

func (s *fakeStore) cashBalance(id string) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cash[id].Balance
}

func (s *fakeStore) debtBalance(id string) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.debt[id].Balance
}

func (s *fakeStore) has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.txs {
		if t.ID == id {
			return true
		}
	}
	return false
}

func (s *fakeStore) Transactions(ctx context.Context) ([]Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.trap("Transactions"); err != nil {
		return nil, err
	}
	out := make([]Transaction, len(s.txs))
	copy(out, s.txs)
	return out, nil
}

func (s *fakeStore) AddTransaction(ctx context.Context, t Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.trap("AddTransaction"); err != nil {
		return err
	}
	for _, existing := range s.txs {
		if existing.ID == t.ID {
			return fmt.Errorf("transaction %q already exists", t.ID)
		}
	}
	s.txs = append(s.txs, t)
	return nil
}

func (s *fakeStore) UpdateTransaction(ctx context.Context, id string, t Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.trap("UpdateTransaction"); err != nil {
		return err
	}
	for i, existing := range s.txs {
		if existing.ID == id {
			s.txs[i] = t
			return nil
		}
	}
	return &NotFoundError{Kind: "transaction", ID: id}
}

func (s *fakeStore) DeleteTransaction(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.trap("DeleteTransaction"); err != nil {
		return err
	}
	for i, existing := range s.txs {
		if existing.ID == id {
			s.txs = append(s.txs[:i], s.txs[i+1:]...)
			return nil
		}
	}
	return &NotFoundError{Kind: "transaction", ID: id}
}

func (s *fakeStore) CashAccount(ctx context.Context, id string) (CashAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.trap("CashAccount"); err != nil {
		return CashAccount{}, err
	}
	a, ok := s.cash[id]
	if !ok {
		return CashAccount{}, &NotFoundError{Kind: "cash account", ID: id}
	}
	return a, nil
}

func (s *fakeStore) UpdateCashBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.trap("UpdateCashBalance"); err != nil {
		return err
	}
	a, ok := s.cash[id]
	if !ok {
		return &NotFoundError{Kind: "cash account", ID: id}
	}
	a.Balance = balance
	s.cash[id] = a
	return nil
}

func (s *fakeStore) DebtAccount(ctx context.Context, id string) (DebtAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.trap("DebtAccount"); err != nil {
		return DebtAccount{}, err
	}
	a, ok := s.debt[id]
	if !ok {
		return DebtAccount{}, &NotFoundError{Kind: "debt account", ID: id}
	}
	return a, nil
}

func (s *fakeStore) UpdateDebtBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.trap("UpdateDebtBalance"); err != nil {
		return err
	}
	a, ok := s.debt[id]
	if !ok {
		return &NotFoundError{Kind: "debt account", ID: id}
	}
	a.Balance = balance
	s.debt[id] = a
	return nil
}

// testClock is an injectable manual clock.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// newTestManager builds a Manager over the fake store with a manual clock,
// sequential ids ("id-1", "id-2", ...) and a debounce long enough that events
// only ever deliver on an explicit Flush.
func newTestManager(t *testing.T, s *fakeStore) (*Manager, *testClock) {
	t.Helper()
	clock := newTestClock()
	var n atomic.Int64
	m := NewManager(s,
		WithClock(clock.now),
		WithIDGenerator(func() string { return fmt.Sprintf("id-%d", n.Add(1)) }),
		WithDebounce(time.Hour),
	)
	t.Cleanup(m.Close)
	return m, clock
}

// cashTx builds a valid cash-account transaction for tests.
func cashTx(id string, day int, amount, category string) Transaction {
	return Transaction{
		ID:            id,
		Date:          date.New(2026, time.March, day),
		Amount:        dec(amount),
		Category:      category,
		Description:   "desc " + id,
		CashAccountID: "checking",
	}
}

// debtTx builds a valid debt-account transaction for tests.
func debtTx(id string, day int, amount, category string) Transaction {
	return Transaction{
		ID:            id,
		Date:          date.New(2026, time.March, day),
		Amount:        dec(amount),
		Category:      category,
		Description:   "desc " + id,
		DebtAccountID: "visa",
	}
}
