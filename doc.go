// Package financial implements the transaction-management core of a
// personal-finance tracker.
//
// The package keeps a set of transactions and two kinds of accounts
// consistent with each other. Cash account balances are derived from the
// transaction set; debt account balances are stored and adjusted explicitly.
// Because the underlying [Store] offers only single-entity operations, every
// multi-entity write (a transaction plus one or two balance adjustments) goes
// through the [Ledger], which applies compensating rollback when a later step
// fails.
//
// [Manager] is the public façade: validation, single-record CRUD, atomic
// multi-entity operations, batch operations, search, statistics, and
// import/export all enter through it. Reads are memoized in a TTL cache and
// served from an in-memory secondary index; mutations invalidate the cache,
// maintain the index incrementally and emit debounced change events to
// subscribed observers.
package financial
