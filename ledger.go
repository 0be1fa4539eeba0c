package financial

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Adjustment is a signed delta to apply to a named account balance as part
// of a ledger operation.
type Adjustment struct {
	AccountType AccountType     `json:"accountType"`
	AccountID   string          `json:"accountId"`
	Delta       decimal.Decimal `json:"delta"`
}

// ReversalOf returns the adjustment that undoes a transaction's effect on
// the account it references: the negation of its signed amount.
func ReversalOf(t Transaction) (Adjustment, bool) {
	typ, id, ok := t.AccountRef()
	if !ok {
		return Adjustment{}, false
	}
	return Adjustment{AccountType: typ, AccountID: id, Delta: t.Amount.Neg()}, true
}

// BalanceRestoration is a rollback step that could not be applied during a
// failed compensation: the named account should hold Balance but may not.
type BalanceRestoration struct {
	AccountType AccountType     `json:"accountType"`
	AccountID   string          `json:"accountId"`
	Balance     decimal.Decimal `json:"balance"`
}

// recorder is the single-record surface the Ledger drives. The Manager
// implements it: each method validates or captures state, persists through
// the store, and maintains cache, index and events.
type recorder interface {
	// record validates and persists a new transaction.
	record(ctx context.Context, t Transaction) (Transaction, error)
	// amend updates a transaction in place, returning the pre-update snapshot
	// and the updated record.
	amend(ctx context.Context, id string, patch TransactionPatch) (prev, updated Transaction, err error)
	// discard captures and deletes a transaction, returning the snapshot.
	discard(ctx context.Context, id string) (Transaction, error)
	// unrecord deletes a transaction created earlier in the same operation.
	unrecord(ctx context.Context, id string) error
	// revert restores a transaction to its pre-update snapshot.
	revert(ctx context.Context, snapshot Transaction) error
	// reinsert puts a deleted transaction back from its snapshot.
	reinsert(ctx context.Context, snapshot Transaction) error
}

// Ledger orchestrates "transaction + balance adjustment" as one logical unit
// with compensating rollback on partial failure. The store offers no
// multi-statement transaction, so correctness under partial failure is
// achieved by undoing forward steps in reverse: a manual saga with a small,
// fixed number of steps whose inverses are cheap and well defined.
//
// All balance mutations for an account are serialized through a per-account
// lock, closing the read-modify-write window between the balance read and
// the write-back.
type Ledger struct {
	store Store
	rec   recorder
	locks accountLocks
	log   zerolog.Logger

	// onRollback and onDeadLetter are metric/history hooks set by the Manager.
	onRollback   func()
	onDeadLetter func(*CompensationFailureError)
}

func newLedger(store Store, rec recorder, log zerolog.Logger) *Ledger {
	return &Ledger{
		store:        store,
		rec:          rec,
		log:          log,
		onRollback:   func() {},
		onDeadLetter: func(*CompensationFailureError) {},
	}
}

// balanceSnapshot records an account balance as it was before this operation
// mutated it, keyed by (account type, account id).
type balanceSnapshot struct {
	typ  AccountType
	id   string
	prev decimal.Decimal
}

// CreateWithBalanceUpdate writes a transaction and applies the requested
// balance adjustments as one logical unit. On any failure every balance
// already mutated in this call is restored and the created transaction is
// deleted, then the original error is returned. If the compensation itself
// fails a *CompensationFailureError is returned instead.
func (l *Ledger) CreateWithBalanceUpdate(ctx context.Context, payload Transaction, adjs []Adjustment) (Transaction, error) {
	unlock := l.locks.lockAll(adjs)
	defer unlock()

	saved, err := l.rec.record(ctx, payload)
	if err != nil {
		return Transaction{}, err
	}

	applied, err := l.applyAdjustments(ctx, adjs)
	if err != nil {
		return Transaction{}, l.compensateCreate(ctx, saved, applied, err)
	}
	return saved, nil
}

// UpdateWithBalanceAdjustment updates a transaction in place and applies the
// requested adjustments. A single call can re-point a transaction's effect:
// the caller passes both the reversal of the old amount and the application
// of the new one. Rollback restores the original balances and reverts the
// transaction to its pre-update snapshot.
func (l *Ledger) UpdateWithBalanceAdjustment(ctx context.Context, id string, patch TransactionPatch, adjs []Adjustment) (Transaction, error) {
	unlock := l.locks.lockAll(adjs)
	defer unlock()

	prev, updated, err := l.rec.amend(ctx, id, patch)
	if err != nil {
		return Transaction{}, err
	}

	applied, err := l.applyAdjustments(ctx, adjs)
	if err != nil {
		return Transaction{}, l.compensateUpdate(ctx, prev, applied, err)
	}
	return updated, nil
}

// DeleteWithBalanceReversal captures the transaction, deletes it and applies
// each reversal (typically the negation of the original amount). On failure
// every mutated balance is restored and the deleted record is re-inserted
// from the snapshot.
func (l *Ledger) DeleteWithBalanceReversal(ctx context.Context, id string, reversals []Adjustment) (Transaction, error) {
	unlock := l.locks.lockAll(reversals)
	defer unlock()

	snapshot, err := l.rec.discard(ctx, id)
	if err != nil {
		return Transaction{}, err
	}

	applied, err := l.applyAdjustments(ctx, reversals)
	if err != nil {
		return Transaction{}, l.compensateDelete(ctx, snapshot, applied, err)
	}
	return snapshot, nil
}

// applyAdjustments reads, records and writes each adjusted balance in turn.
// It returns the snapshots captured so far; on error, the returned snapshots
// cover exactly the balances already written.
func (l *Ledger) applyAdjustments(ctx context.Context, adjs []Adjustment) ([]balanceSnapshot, error) {
	var applied []balanceSnapshot
	for _, adj := range adjs {
		current, err := l.readBalance(ctx, adj.AccountType, adj.AccountID)
		if err != nil {
			return applied, fmt.Errorf("reading %s balance of %q: %w", adj.AccountType, adj.AccountID, err)
		}
		applied = append(applied, balanceSnapshot{typ: adj.AccountType, id: adj.AccountID, prev: current})
		if err := l.writeBalance(ctx, adj.AccountType, adj.AccountID, current.Add(adj.Delta)); err != nil {
			// the failed write did not mutate the balance, drop its snapshot
			applied = applied[:len(applied)-1]
			return applied, fmt.Errorf("writing %s balance of %q: %w", adj.AccountType, adj.AccountID, err)
		}
	}
	return applied, nil
}

// rollbackBalances replays the snapshots in the order captured. It returns
// the restorations left unapplied when a restore fails.
func (l *Ledger) rollbackBalances(ctx context.Context, applied []balanceSnapshot) (unapplied []BalanceRestoration, err error) {
	l.onRollback()
	for i, snap := range applied {
		if werr := l.writeBalance(ctx, snap.typ, snap.id, snap.prev); werr != nil {
			for _, rest := range applied[i:] {
				unapplied = append(unapplied, BalanceRestoration{AccountType: rest.typ, AccountID: rest.id, Balance: rest.prev})
			}
			return unapplied, werr
		}
	}
	return nil, nil
}

func (l *Ledger) compensateCreate(ctx context.Context, saved Transaction, applied []balanceSnapshot, cause error) error {
	unapplied, rbErr := l.rollbackBalances(ctx, applied)
	if rbErr != nil {
		return l.deadLetter("createWithBalanceUpdate", cause, rbErr, unapplied)
	}
	// Best effort removal of the record created in this call; failure to
	// delete leaves an orphan transaction and is escalated.
	if delErr := l.rec.unrecord(ctx, saved.ID); delErr != nil {
		return l.deadLetter("createWithBalanceUpdate", cause, delErr, nil)
	}
	l.log.Debug().Str("transaction", saved.ID).Msg("rolled back create with balance update")
	return cause
}

func (l *Ledger) compensateUpdate(ctx context.Context, prev Transaction, applied []balanceSnapshot, cause error) error {
	unapplied, rbErr := l.rollbackBalances(ctx, applied)
	if rbErr != nil {
		return l.deadLetter("updateWithBalanceAdjustment", cause, rbErr, unapplied)
	}
	if revErr := l.rec.revert(ctx, prev); revErr != nil {
		return l.deadLetter("updateWithBalanceAdjustment", cause, revErr, nil)
	}
	l.log.Debug().Str("transaction", prev.ID).Msg("rolled back update with balance adjustment")
	return cause
}

func (l *Ledger) compensateDelete(ctx context.Context, snapshot Transaction, applied []balanceSnapshot, cause error) error {
	unapplied, rbErr := l.rollbackBalances(ctx, applied)
	if rbErr != nil {
		return l.deadLetter("deleteWithBalanceReversal", cause, rbErr, unapplied)
	}
	if insErr := l.rec.reinsert(ctx, snapshot); insErr != nil {
		return l.deadLetter("deleteWithBalanceReversal", cause, insErr, nil)
	}
	l.log.Debug().Str("transaction", snapshot.ID).Msg("rolled back delete with balance reversal")
	return cause
}

// deadLetter builds the compensation failure, hands it to the history hook
// for operator repair, and logs it at error level. The stored state may be
// inconsistent at this point and cannot self-heal.
func (l *Ledger) deadLetter(op string, cause, rbErr error, unapplied []BalanceRestoration) error {
	cf := &CompensationFailureError{Op: op, Cause: cause, RollbackErr: rbErr, Unapplied: unapplied}
	l.onDeadLetter(cf)
	l.log.Error().Err(rbErr).Str("op", op).Int("unapplied", len(unapplied)).
		Msg("compensation failed, state may be inconsistent")
	return cf
}

func (l *Ledger) readBalance(ctx context.Context, typ AccountType, id string) (decimal.Decimal, error) {
	switch typ {
	case AccountCash:
		acc, err := l.store.CashAccount(ctx, id)
		if err != nil {
			return decimal.Zero, err
		}
		return acc.Balance, nil
	case AccountDebt:
		acc, err := l.store.DebtAccount(ctx, id)
		if err != nil {
			return decimal.Zero, err
		}
		return acc.Balance, nil
	}
	return decimal.Zero, fmt.Errorf("unknown account type %q", typ)
}

func (l *Ledger) writeBalance(ctx context.Context, typ AccountType, id string, balance decimal.Decimal) error {
	switch typ {
	case AccountCash:
		return l.store.UpdateCashBalance(ctx, id, balance)
	case AccountDebt:
		return l.store.UpdateDebtBalance(ctx, id, balance)
	}
	return fmt.Errorf("unknown account type %q", typ)
}

// accountLocks serializes all balance mutations touching the same account.
type accountLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

// lockAll acquires the lock of every account named in adjs, in sorted key
// order so two overlapping operations can never deadlock. The returned
// function releases them.
func (a *accountLocks) lockAll(adjs []Adjustment) (unlock func()) {
	keys := make([]string, 0, len(adjs))
	seen := make(map[string]bool, len(adjs))
	for _, adj := range adjs {
		k := accountKey(adj.AccountType, adj.AccountID)
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	a.mu.Lock()
	if a.m == nil {
		a.m = make(map[string]*sync.Mutex)
	}
	locks := make([]*sync.Mutex, 0, len(keys))
	for _, k := range keys {
		lk, ok := a.m[k]
		if !ok {
			lk = new(sync.Mutex)
			a.m[k] = lk
		}
		locks = append(locks, lk)
	}
	a.mu.Unlock()

	for _, lk := range locks {
		lk.Lock()
	}
	return func() {
		for i := len(locks) - 1; i >= 0; i-- {
			locks[i].Unlock()
		}
	}
}
