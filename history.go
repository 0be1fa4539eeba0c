package financial

import (
	"sync"
	"time"
)

// DefaultHistorySize bounds the operation history ring buffer.
const DefaultHistorySize = 50

// pendingTTL is the age past which an in-flight operation is considered
// abandoned and swept. The sweep runs lazily before each new operation,
// so it is deterministic under an injected clock.
const pendingTTL = 10 * time.Minute

// OperationRecord is one entry of the bounded operation history.
type OperationRecord struct {
	OpID  string
	Kind  string
	Start time.Time
	OK    bool
	Err   string
	// DeadLetter carries the compensation failure left for manual repair,
	// when the operation ended in one.
	DeadLetter *CompensationFailureError
}

// Metrics are running counters over the Manager's lifetime.
type Metrics struct {
	Operations  uint64
	CacheHits   uint64
	CacheMisses uint64
	Errors      uint64
	Rollbacks   uint64
}

// tracker owns the pending-operation set, the operation history ring buffer
// and the running metrics.
type tracker struct {
	mu      sync.Mutex
	size    int
	history []OperationRecord
	pending map[string]time.Time
	metrics Metrics
	now     func() time.Time
}

func newTracker(size int, now func() time.Time) *tracker {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &tracker{size: size, pending: make(map[string]time.Time), now: now}
}

// begin registers an in-flight operation. It first garbage-collects stale
// pending entries, then rejects a duplicate operation id with an
// OperationConflictError.
func (t *tracker) begin(opID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for id, started := range t.pending {
		if now.Sub(started) > pendingTTL {
			delete(t.pending, id)
		}
	}

	if _, inFlight := t.pending[opID]; inFlight {
		return &OperationConflictError{OpID: opID}
	}
	t.pending[opID] = now
	t.metrics.Operations++
	return nil
}

// end completes an in-flight operation and appends its outcome to the history.
func (t *tracker) end(opID, kind string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	start, ok := t.pending[opID]
	if !ok {
		start = t.now()
	}
	delete(t.pending, opID)

	rec := OperationRecord{OpID: opID, Kind: kind, Start: start, OK: err == nil}
	if err != nil {
		t.metrics.Errors++
		rec.Err = err.Error()
	}
	t.append(rec)
}

// deadLetter appends a repair record for a failed compensation.
func (t *tracker) deadLetter(cf *CompensationFailureError) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.append(OperationRecord{
		OpID:       "dead-letter:" + cf.Op,
		Kind:       cf.Op,
		Start:      t.now(),
		Err:        cf.Error(),
		DeadLetter: cf,
	})
}

// append keeps the history bounded to the configured size, dropping the
// oldest records first. Callers must hold the mutex.
func (t *tracker) append(rec OperationRecord) {
	t.history = append(t.history, rec)
	if overflow := len(t.history) - t.size; overflow > 0 {
		t.history = append(t.history[:0:0], t.history[overflow:]...)
	}
}

func (t *tracker) cacheHit() {
	t.mu.Lock()
	t.metrics.CacheHits++
	t.mu.Unlock()
}

func (t *tracker) cacheMiss() {
	t.mu.Lock()
	t.metrics.CacheMisses++
	t.mu.Unlock()
}

func (t *tracker) rollback() {
	t.mu.Lock()
	t.metrics.Rollbacks++
	t.mu.Unlock()
}

// snapshotHistory returns a copy of the operation history, oldest first.
func (t *tracker) snapshotHistory() []OperationRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]OperationRecord(nil), t.history...)
}

func (t *tracker) snapshotMetrics() Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.metrics
}

func (t *tracker) pendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
