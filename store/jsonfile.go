// Package store provides the persistence adapters behind the financial.Store
// interface: a JSONL file store, a MySQL store, an in-memory store for tests,
// and a retry decorator for transient failures.
package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ryokushen/financial"
	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

const (
	transactionsFile = "transactions.jsonl"
	accountsFile     = "accounts.jsonl"
)

// File persists the full state as two JSONL files in a directory:
// transactions.jsonl holds one transaction per line, accounts.jsonl one
// account record per line with a "kind" discriminator. The whole state is
// held in memory and the touched file is rewritten on every mutation, which
// keeps the files canonical (date-sorted, stable) and trivially mergeable.
type File struct {
	dir string

	mu   sync.Mutex
	txs  []financial.Transaction
	cash map[string]financial.CashAccount
	debt map[string]financial.DebtAccount
}

// OpenFile loads the store rooted at dir, creating it when absent.
func OpenFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create store directory %q: %w", dir, err)
	}
	f := &File{
		dir:  dir,
		cash: make(map[string]financial.CashAccount),
		debt: make(map[string]financial.DebtAccount),
	}
	if err := f.loadTransactions(); err != nil {
		return nil, err
	}
	if err := f.loadAccounts(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) loadTransactions() error {
	file, err := os.Open(filepath.Join(f.dir, transactionsFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not open %q: %w", transactionsFile, err)
	}
	defer file.Close()

	txs, err := decodeTransactions(file)
	if err != nil {
		return fmt.Errorf("could not decode %q: %w", transactionsFile, err)
	}
	f.txs = txs
	return nil
}

// decodeTransactions decodes a JSONL stream of transactions.
func decodeTransactions(r io.Reader) ([]financial.Transaction, error) {
	var txs []financial.Transaction
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineBytes := scanner.Bytes()
		if len(lineBytes) == 0 {
			continue // Skip empty lines
		}
		var t financial.Transaction
		if err := json.Unmarshal(lineBytes, &t); err != nil {
			return nil, fmt.Errorf("could not decode transaction line %q: %w", string(lineBytes), err)
		}
		txs = append(txs, t)
	}
	return txs, scanner.Err()
}

// accountRecord is a specialized struct for decoding account lines: the kind
// field discriminates, the rest is decoded again into the concrete type.
type accountRecord struct {
	Kind string `json:"kind"`
}

func (f *File) loadAccounts() error {
	file, err := os.Open(filepath.Join(f.dir, accountsFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not open %q: %w", accountsFile, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lineBytes := scanner.Bytes()
		if len(lineBytes) == 0 {
			continue
		}
		var rec accountRecord
		if err := json.Unmarshal(lineBytes, &rec); err != nil {
			return fmt.Errorf("could not identify account in line %q: %w", string(lineBytes), err)
		}
		switch rec.Kind {
		case "cash":
			var a financial.CashAccount
			if err := json.Unmarshal(lineBytes, &a); err != nil {
				return fmt.Errorf("could not decode cash account line %q: %w", string(lineBytes), err)
			}
			f.cash[a.ID] = a
		case "debt":
			var a financial.DebtAccount
			if err := json.Unmarshal(lineBytes, &a); err != nil {
				return fmt.Errorf("could not decode debt account line %q: %w", string(lineBytes), err)
			}
			f.debt[a.ID] = a
		default:
			return fmt.Errorf("unknown account kind %q in %q", rec.Kind, accountsFile)
		}
	}
	return scanner.Err()
}

// saveTransactions rewrites transactions.jsonl, date-sorted with a stable
// order for same-day transactions.
func (f *File) saveTransactions() error {
	sort.SliceStable(f.txs, func(i, j int) bool { return f.txs[i].Date.Before(f.txs[j].Date) })

	file, err := os.Create(filepath.Join(f.dir, transactionsFile))
	if err != nil {
		return fmt.Errorf("could not write %q: %w", transactionsFile, err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	for _, t := range f.txs {
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("could not encode transaction %q: %w", t.ID, err)
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return err
		}
	}
	return w.Flush()
}

// saveAccounts rewrites accounts.jsonl, cash accounts first, id-sorted.
func (f *File) saveAccounts() error {
	file, err := os.Create(filepath.Join(f.dir, accountsFile))
	if err != nil {
		return fmt.Errorf("could not write %q: %w", accountsFile, err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	write := func(kind string, account any) error {
		data, err := json.Marshal(account)
		if err != nil {
			return err
		}
		// splice the discriminator in front of the account fields
		line := append([]byte(`{"kind":"`+kind+`",`), data[1:]...)
		_, err = w.Write(append(line, '\n'))
		return err
	}
	for _, id := range sortedKeys(f.cash) {
		if err := write("cash", f.cash[id]); err != nil {
			return fmt.Errorf("could not encode cash account %q: %w", id, err)
		}
	}
	for _, id := range sortedKeys(f.debt) {
		if err := write("debt", f.debt[id]); err != nil {
			return fmt.Errorf("could not encode debt account %q: %w", id, err)
		}
	}
	return w.Flush()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SeedCashAccount inserts or replaces a cash account.
func (f *File) SeedCashAccount(a financial.CashAccount) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cash[a.ID] = a
	return f.saveAccounts()
}

// SeedDebtAccount inserts or replaces a debt account.
func (f *File) SeedDebtAccount(a financial.DebtAccount) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.debt[a.ID] = a
	return f.saveAccounts()
}

func (f *File) Transactions(ctx context.Context) ([]financial.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]financial.Transaction, len(f.txs))
	copy(out, f.txs)
	return out, nil
}

func (f *File) AddTransaction(ctx context.Context, t financial.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.txs {
		if existing.ID == t.ID {
			return fmt.Errorf("transaction %q already exists", t.ID)
		}
	}
	f.txs = append(f.txs, t)
	return f.saveTransactions()
}

func (f *File) UpdateTransaction(ctx context.Context, id string, t financial.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.txs {
		if existing.ID == id {
			f.txs[i] = t
			return f.saveTransactions()
		}
	}
	return &financial.NotFoundError{Kind: "transaction", ID: id}
}

func (f *File) DeleteTransaction(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.txs {
		if existing.ID == id {
			f.txs = append(f.txs[:i], f.txs[i+1:]...)
			return f.saveTransactions()
		}
	}
	return &financial.NotFoundError{Kind: "transaction", ID: id}
}

func (f *File) CashAccount(ctx context.Context, id string) (financial.CashAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.cash[id]
	if !ok {
		return financial.CashAccount{}, &financial.NotFoundError{Kind: "cash account", ID: id}
	}
	return a, nil
}

func (f *File) UpdateCashBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.cash[id]
	if !ok {
		return &financial.NotFoundError{Kind: "cash account", ID: id}
	}
	a.Balance = balance
	f.cash[id] = a
	return f.saveAccounts()
}

func (f *File) DebtAccount(ctx context.Context, id string) (financial.DebtAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.debt[id]
	if !ok {
		return financial.DebtAccount{}, &financial.NotFoundError{Kind: "debt account", ID: id}
	}
	return a, nil
}

func (f *File) UpdateDebtBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.debt[id]
	if !ok {
		return &financial.NotFoundError{Kind: "debt account", ID: id}
	}
	a.Balance = balance
	f.debt[id] = a
	return f.saveAccounts()
}
