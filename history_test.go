package financial

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestHistoryRingBuffer(t *testing.T) {
	ctx := context.Background()
	s := newFakeStore()
	clock := newTestClock()
	m := NewManager(s,
		WithClock(clock.now),
		WithHistorySize(3),
		WithDebounce(time.Hour),
	)
	defer m.Close()

	for i := 0; i < 5; i++ {
		if _, err := m.Add(ctx, cashTx(fmt.Sprintf("t%d", i), 5, "-1.00", "coffee")); err != nil {
			t.Fatal(err)
		}
	}

	hist := m.History()
	if len(hist) != 3 {
		t.Fatalf("history = %d records, want the 3 newest", len(hist))
	}
	if hist[0].OpID != "add:t2" || hist[2].OpID != "add:t4" {
		t.Errorf("kept records = %v, %v, %v", hist[0].OpID, hist[1].OpID, hist[2].OpID)
	}
}

// A pending operation older than the staleness window is swept before the
// next operation begins, so an abandoned op id does not block forever.
func TestPendingSweep(t *testing.T) {
	clock := newTestClock()
	track := newTracker(10, clock.now)

	if err := track.begin("add:t1"); err != nil {
		t.Fatal(err)
	}
	// abandoned: never ended

	var conflict *OperationConflictError
	if err := track.begin("add:t1"); !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want a conflict while in flight", err)
	}

	clock.advance(11 * time.Minute)
	if err := track.begin("add:t1"); err != nil {
		t.Errorf("stale pending op should be swept, got %v", err)
	}
	if got := track.pendingCount(); got != 1 {
		t.Errorf("pendingCount = %d, want 1", got)
	}
}

func TestTrackerEndWithoutBegin(t *testing.T) {
	clock := newTestClock()
	track := newTracker(10, clock.now)

	// defensive path: end for an id begin never saw still records the outcome
	track.end("add:ghost", "add", nil)
	if got := len(track.snapshotHistory()); got != 1 {
		t.Errorf("history = %d, want 1", got)
	}
}

func TestMetricsCounters(t *testing.T) {
	ctx := context.Background()
	s := newFakeStore()
	s.seedTx(cashTx("t1", 5, "-30.00", "groceries"))
	m, _ := newTestManager(t, s)

	if _, err := m.List(ctx, Filters{}); err != nil { // miss
		t.Fatal(err)
	}
	if _, err := m.List(ctx, Filters{}); err != nil { // hit
		t.Fatal(err)
	}
	if _, err := m.Add(ctx, Transaction{}); err == nil { // error
		t.Fatal("invalid add should fail")
	}

	got := m.Metrics()
	if got.Operations != 1 || got.Errors != 1 || got.CacheHits != 1 || got.CacheMisses != 1 {
		t.Errorf("metrics = %+v", got)
	}
}
