package financial

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/ryokushen/financial/date"
)

// Manager is the public façade of the transaction core. All mutating calls
// enter here: they are validated, dispatched to the store, reflected in the
// cache and the secondary index, and announced through the event dispatcher.
// Read calls check the cache first, falling back to the store and
// repopulating the cache.
//
// A Manager is an explicit service object: its store, clock and id generator
// are injected, and separate instances share no state.
type Manager struct {
	store  Store
	cache  *Cache
	index  *Index
	events *Dispatcher
	ledger *Ledger
	track  *tracker

	now   func() time.Time
	newID func() string
	log   zerolog.Logger

	mu     sync.Mutex // guards index population
	loaded bool
}

// Option configures a Manager.
type Option func(*managerConfig)

type managerConfig struct {
	now         func() time.Time
	newID       func() string
	log         zerolog.Logger
	cacheTTL    time.Duration
	debounce    time.Duration
	historySize int
}

// WithClock injects the time source, for tests and replays.
func WithClock(now func() time.Time) Option {
	return func(c *managerConfig) { c.now = now }
}

// WithIDGenerator injects the transaction id generator.
func WithIDGenerator(gen func() string) Option {
	return func(c *managerConfig) { c.newID = gen }
}

// WithLogger injects the structured logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *managerConfig) { c.log = log }
}

// WithCacheTTL overrides the read-cache TTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *managerConfig) { c.cacheTTL = ttl }
}

// WithDebounce overrides the event debounce window.
func WithDebounce(d time.Duration) Option {
	return func(c *managerConfig) { c.debounce = d }
}

// WithHistorySize overrides the operation history bound.
func WithHistorySize(n int) Option {
	return func(c *managerConfig) { c.historySize = n }
}

// NewManager creates a Manager over the given store.
func NewManager(store Store, opts ...Option) *Manager {
	cfg := managerConfig{
		now:   time.Now,
		newID: uuid.NewString,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	m := &Manager{
		store:  store,
		cache:  NewCache(cfg.cacheTTL, cfg.now),
		index:  NewIndex(),
		events: NewDispatcher(cfg.debounce),
		track:  newTracker(cfg.historySize, cfg.now),
		now:    cfg.now,
		newID:  cfg.newID,
		log:    cfg.log,
	}
	m.ledger = newLedger(store, m, cfg.log)
	m.ledger.onRollback = m.track.rollback
	m.ledger.onDeadLetter = m.track.deadLetter
	return m
}

// Close flushes pending events and stops the dispatcher.
func (m *Manager) Close() { m.events.Close() }

// Subscribe registers an observer for change events.
func (m *Manager) Subscribe(fn func(Event)) (unsubscribe func()) {
	return m.events.Subscribe(fn)
}

// Flush synchronously delivers any queued events.
func (m *Manager) Flush() { m.events.Flush() }

// History returns a copy of the bounded operation history, oldest first.
func (m *Manager) History() []OperationRecord { return m.track.snapshotHistory() }

// Metrics returns the running counters.
func (m *Manager) Metrics() Metrics { return m.track.snapshotMetrics() }

// ensureLoaded populates the secondary index from the store on first use.
func (m *Manager) ensureLoaded(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loaded {
		return nil
	}
	txs, err := m.store.Transactions(ctx)
	if err != nil {
		return fmt.Errorf("loading transactions: %w", err)
	}
	m.index.Rebuild(txs)
	m.loaded = true
	return nil
}

// invalidateReads drops every memoized read result after a mutation.
func (m *Manager) invalidateReads() {
	m.cache.InvalidateByPattern("list|*")
	m.cache.InvalidateByPattern("search|*")
	m.cache.InvalidateByPattern("stats|*")
}

// AddOption tunes the validation of a single add or update.
type AddOption func(*ValidateOptions)

// WaiveLinkedTransfer accepts a transfer-like transaction without a linked
// counterpart, for when the other leg lives outside the tracker.
func WaiveLinkedTransfer() AddOption {
	return func(v *ValidateOptions) { v.WaiveLinkedTransfer = true }
}

// Get returns the transaction with the given id.
func (m *Manager) Get(ctx context.Context, id string) (Transaction, error) {
	if err := m.ensureLoaded(ctx); err != nil {
		return Transaction{}, err
	}
	t, ok := m.index.Get(id)
	if !ok {
		return Transaction{}, &NotFoundError{Kind: "transaction", ID: id}
	}
	return t, nil
}

// Filters narrows a List call. Zero fields do not filter.
type Filters struct {
	AccountType AccountType
	AccountID   string
	Category    string
	Merchant    string
	Range       date.Range
	Cleared     *bool
}

// cacheFields flattens the filters into the normalized form CacheKey expects.
func (f Filters) cacheFields() map[string]string {
	fields := map[string]string{
		"accountType": string(f.AccountType),
		"accountId":   f.AccountID,
		"category":    f.Category,
		"merchant":    f.Merchant,
	}
	if !f.Range.From.IsZero() {
		fields["from"] = f.Range.From.String()
	}
	if !f.Range.To.IsZero() {
		fields["to"] = f.Range.To.String()
	}
	if f.Cleared != nil {
		fields["cleared"] = strconv.FormatBool(*f.Cleared)
	}
	return fields
}

func (f Filters) match(t Transaction) bool {
	if f.AccountID != "" {
		typ, id, ok := t.AccountRef()
		if !ok || id != f.AccountID || (f.AccountType != "" && typ != f.AccountType) {
			return false
		}
	} else if f.AccountType != "" {
		typ, _, ok := t.AccountRef()
		if !ok || typ != f.AccountType {
			return false
		}
	}
	if f.Category != "" && !strings.EqualFold(f.Category, t.Category) {
		return false
	}
	if f.Merchant != "" && MerchantKey(t.Description) != f.Merchant {
		return false
	}
	if !f.Range.IsZero() && !f.Range.Contains(t.Date) {
		return false
	}
	if f.Cleared != nil && t.Cleared != *f.Cleared {
		return false
	}
	return true
}

// List returns the transactions matching the filters, sorted by date then id.
func (m *Manager) List(ctx context.Context, f Filters) ([]Transaction, error) {
	key := CacheKey("list", f.cacheFields())
	if v, ok := m.cache.Get(key); ok {
		m.track.cacheHit()
		return slices.Clone(v.([]Transaction)), nil
	}
	m.track.cacheMiss()

	if err := m.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	var out []Transaction
	for _, t := range m.index.All() {
		if f.match(t) {
			out = append(out, t)
		}
	}
	m.cache.Set(key, out)
	// callers get their own slice; the cached one stays pristine
	return slices.Clone(out), nil
}

// Add validates and persists a new transaction. The id is assigned here when
// the payload carries none; the date defaults to today.
func (m *Manager) Add(ctx context.Context, t Transaction, opts ...AddOption) (Transaction, error) {
	if t.ID == "" {
		t.ID = m.newID()
	}
	opID := "add:" + t.ID
	if err := m.track.begin(opID); err != nil {
		return Transaction{}, err
	}
	saved, err := m.doAdd(ctx, t, opts...)
	m.track.end(opID, "add", err)
	return saved, err
}

// doAdd is the single-record add path shared by Add, AddLinked and the batch
// operations. It announces the add; the Ledger's forward step goes through
// applyAdd instead, so a balance-coupled create emits only its combined event.
func (m *Manager) doAdd(ctx context.Context, t Transaction, opts ...AddOption) (Transaction, error) {
	saved, err := m.applyAdd(ctx, t, opts...)
	if err != nil {
		return Transaction{}, err
	}
	m.events.Queue(EventAdded, saved)
	return saved, nil
}

func (m *Manager) applyAdd(ctx context.Context, t Transaction, opts ...AddOption) (Transaction, error) {
	if err := m.ensureLoaded(ctx); err != nil {
		return Transaction{}, err
	}
	if t.ID == "" {
		t.ID = m.newID()
	}
	if t.Date.IsZero() {
		t.Date = date.FromTime(m.now())
	}
	var vopts ValidateOptions
	for _, opt := range opts {
		opt(&vopts)
	}
	if err := ValidateTransaction(t, vopts); err != nil {
		return Transaction{}, err
	}
	if err := m.store.AddTransaction(ctx, t); err != nil {
		return Transaction{}, fmt.Errorf("adding transaction %q: %w", t.ID, err)
	}
	m.index.Add(t)
	m.invalidateReads()
	m.log.Debug().Str("transaction", t.ID).Str("category", t.Category).Msg("transaction added")
	return t, nil
}

// Update applies a patch to an existing transaction.
func (m *Manager) Update(ctx context.Context, id string, patch TransactionPatch) (Transaction, error) {
	opID := "update:" + id
	if err := m.track.begin(opID); err != nil {
		return Transaction{}, err
	}
	_, updated, err := m.doUpdate(ctx, id, patch)
	m.track.end(opID, "update", err)
	return updated, err
}

func (m *Manager) doUpdate(ctx context.Context, id string, patch TransactionPatch) (prev, updated Transaction, err error) {
	prev, updated, err = m.applyUpdate(ctx, id, patch)
	if err != nil {
		return Transaction{}, Transaction{}, err
	}
	m.events.Queue(EventUpdated, updated)
	return prev, updated, nil
}

func (m *Manager) applyUpdate(ctx context.Context, id string, patch TransactionPatch) (prev, updated Transaction, err error) {
	if err := m.ensureLoaded(ctx); err != nil {
		return Transaction{}, Transaction{}, err
	}
	prev, ok := m.index.Get(id)
	if !ok {
		return Transaction{}, Transaction{}, &NotFoundError{Kind: "transaction", ID: id}
	}
	updated = patch.Apply(prev)
	if err := ValidateTransaction(updated, ValidateOptions{WaiveLinkedTransfer: true}); err != nil {
		return Transaction{}, Transaction{}, err
	}
	if err := m.store.UpdateTransaction(ctx, id, updated); err != nil {
		return Transaction{}, Transaction{}, fmt.Errorf("updating transaction %q: %w", id, err)
	}
	m.index.Update(id, updated)
	m.invalidateReads()
	m.log.Debug().Str("transaction", id).Msg("transaction updated")
	return prev, updated, nil
}

// Delete removes a transaction.
func (m *Manager) Delete(ctx context.Context, id string) error {
	opID := "delete:" + id
	if err := m.track.begin(opID); err != nil {
		return err
	}
	_, err := m.doDelete(ctx, id)
	m.track.end(opID, "delete", err)
	return err
}

func (m *Manager) doDelete(ctx context.Context, id string) (Transaction, error) {
	snapshot, err := m.applyDelete(ctx, id)
	if err != nil {
		return Transaction{}, err
	}
	m.events.Queue(EventDeleted, snapshot)
	return snapshot, nil
}

func (m *Manager) applyDelete(ctx context.Context, id string) (Transaction, error) {
	if err := m.ensureLoaded(ctx); err != nil {
		return Transaction{}, err
	}
	snapshot, ok := m.index.Get(id)
	if !ok {
		return Transaction{}, &NotFoundError{Kind: "transaction", ID: id}
	}
	if err := m.store.DeleteTransaction(ctx, id); err != nil {
		return Transaction{}, fmt.Errorf("deleting transaction %q: %w", id, err)
	}
	m.index.Remove(id)
	m.invalidateReads()
	m.log.Debug().Str("transaction", id).Msg("transaction deleted")
	return snapshot, nil
}

// AddLinked creates two transactions as a pair, e.g. the two legs of a
// transfer, linking each to the other. If the second write fails the first
// is rolled back.
func (m *Manager) AddLinked(ctx context.Context, from, to Transaction) (Transaction, Transaction, error) {
	if from.ID == "" {
		from.ID = m.newID()
	}
	if to.ID == "" {
		to.ID = m.newID()
	}
	from.LinkedID = to.ID
	to.LinkedID = from.ID

	opID := "addLinked:" + from.ID
	if err := m.track.begin(opID); err != nil {
		return Transaction{}, Transaction{}, err
	}

	savedFrom, err := m.doAdd(ctx, from)
	if err != nil {
		m.track.end(opID, "addLinked", err)
		return Transaction{}, Transaction{}, err
	}
	savedTo, err := m.doAdd(ctx, to)
	if err != nil {
		// roll back the first leg so no half-pair survives
		m.track.rollback()
		if _, delErr := m.doDelete(ctx, savedFrom.ID); delErr != nil {
			cf := &CompensationFailureError{Op: "addLinked", Cause: err, RollbackErr: delErr}
			m.track.deadLetter(cf)
			m.track.end(opID, "addLinked", cf)
			return Transaction{}, Transaction{}, cf
		}
		m.track.end(opID, "addLinked", err)
		return Transaction{}, Transaction{}, err
	}
	m.track.end(opID, "addLinked", nil)
	return savedFrom, savedTo, nil
}

// AddWithBalanceUpdate writes a transaction and applies the balance
// adjustments as one logical unit through the Ledger.
func (m *Manager) AddWithBalanceUpdate(ctx context.Context, t Transaction, adjs []Adjustment) (Transaction, error) {
	if t.ID == "" {
		t.ID = m.newID()
	}
	opID := "addWithBalance:" + t.ID
	if err := m.track.begin(opID); err != nil {
		return Transaction{}, err
	}
	saved, err := m.ledger.CreateWithBalanceUpdate(ctx, t, adjs)
	if err == nil {
		m.events.Queue(EventCreatedWithBalance, BalanceEventPayload{Transaction: saved, Adjustments: adjs})
	}
	m.track.end(opID, "addWithBalance", err)
	return saved, err
}

// UpdateWithBalanceAdjustment updates a transaction and applies the balance
// adjustments as one logical unit through the Ledger.
func (m *Manager) UpdateWithBalanceAdjustment(ctx context.Context, id string, patch TransactionPatch, adjs []Adjustment) (Transaction, error) {
	opID := "updateWithBalance:" + id
	if err := m.track.begin(opID); err != nil {
		return Transaction{}, err
	}
	updated, err := m.ledger.UpdateWithBalanceAdjustment(ctx, id, patch, adjs)
	if err == nil {
		m.events.Queue(EventUpdatedWithBalance, BalanceEventPayload{Transaction: updated, Adjustments: adjs})
	}
	m.track.end(opID, "updateWithBalance", err)
	return updated, err
}

// DeleteWithBalanceReversal deletes a transaction and applies the reversals
// as one logical unit through the Ledger.
func (m *Manager) DeleteWithBalanceReversal(ctx context.Context, id string, reversals []Adjustment) error {
	opID := "deleteWithBalance:" + id
	if err := m.track.begin(opID); err != nil {
		return err
	}
	snapshot, err := m.ledger.DeleteWithBalanceReversal(ctx, id, reversals)
	if err == nil {
		m.events.Queue(EventDeletedWithBalance, BalanceEventPayload{Transaction: snapshot, Adjustments: reversals})
	}
	m.track.end(opID, "deleteWithBalance", err)
	return err
}

// AddBatch adds many transactions through the batch processor. Per-item
// failures are collected, not fatal; with RollbackOnFailure the same-run
// successes are deleted again.
func (m *Manager) AddBatch(ctx context.Context, items []Transaction, opts BatchOptions) BatchResult[Transaction] {
	return ProcessBatch(ctx, items,
		func(ctx context.Context, t Transaction) (Transaction, error) {
			return m.doAdd(ctx, t)
		},
		func(ctx context.Context, saved Transaction) error {
			_, err := m.doDelete(ctx, saved.ID)
			return err
		},
		opts)
}

// DeleteBatch deletes many transactions through the batch processor. With
// RollbackOnFailure the same-run deletions are re-inserted from their
// snapshots.
func (m *Manager) DeleteBatch(ctx context.Context, ids []string, opts BatchOptions) BatchResult[Transaction] {
	return ProcessBatch(ctx, ids,
		func(ctx context.Context, id string) (Transaction, error) {
			return m.doDelete(ctx, id)
		},
		func(ctx context.Context, snapshot Transaction) error {
			_, err := m.doAdd(ctx, snapshot)
			return err
		},
		opts)
}

// recorder implementation: the Ledger drives these single-record steps. They
// skip the single-record events so a balance-coupled operation announces
// itself exactly once, with its combined event, and a compensated one not at
// all.

func (m *Manager) record(ctx context.Context, t Transaction) (Transaction, error) {
	return m.applyAdd(ctx, t)
}

func (m *Manager) amend(ctx context.Context, id string, patch TransactionPatch) (prev, updated Transaction, err error) {
	return m.applyUpdate(ctx, id, patch)
}

func (m *Manager) discard(ctx context.Context, id string) (Transaction, error) {
	return m.applyDelete(ctx, id)
}

func (m *Manager) unrecord(ctx context.Context, id string) error {
	_, err := m.applyDelete(ctx, id)
	return err
}

func (m *Manager) revert(ctx context.Context, snapshot Transaction) error {
	if err := m.store.UpdateTransaction(ctx, snapshot.ID, snapshot); err != nil {
		return fmt.Errorf("reverting transaction %q: %w", snapshot.ID, err)
	}
	m.index.Update(snapshot.ID, snapshot)
	m.invalidateReads()
	return nil
}

func (m *Manager) reinsert(ctx context.Context, snapshot Transaction) error {
	if err := m.store.AddTransaction(ctx, snapshot); err != nil {
		return fmt.Errorf("re-inserting transaction %q: %w", snapshot.ID, err)
	}
	m.index.Add(snapshot)
	m.invalidateReads()
	return nil
}
