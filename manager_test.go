package financial

import (
	"context"
	"errors"
	"testing"

	"github.com/ryokushen/financial/date"
)

func TestManagerAddGet(t *testing.T) {
	ctx := context.Background()
	s := newFakeStore()
	m, _ := newTestManager(t, s)

	saved, err := m.Add(ctx, Transaction{
		Amount:        dec("-42.00"),
		Category:      "groceries",
		Description:   "weekly shop",
		CashAccountID: "checking",
	})
	if err != nil {
		t.Fatal(err)
	}
	if saved.ID == "" {
		t.Fatal("an id should be assigned")
	}
	if saved.Date.IsZero() {
		t.Fatal("the date should default to today")
	}
	if saved.Date != date.FromTime(newTestClock().now()) {
		t.Errorf("date = %s, want the injected clock's today", saved.Date)
	}

	got, err := m.Get(ctx, saved.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(saved) {
		t.Errorf("Get = %+v, want %+v", got, saved)
	}

	if _, err := m.Get(ctx, "nope"); !IsNotFound(err) {
		t.Errorf("Get(nope) = %v, want not-found", err)
	}
}

func TestManagerAddValidation(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, newFakeStore())

	_, err := m.Add(ctx, Transaction{}) // everything missing
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	for _, field := range []string{"date", "amount", "category", "account"} {
		if _, ok := ve.Fields[field]; !ok {
			t.Errorf("missing violation for field %q in %v", field, ve.Fields)
		}
	}

	// transfer-like categories demand a linked counterpart...
	_, err = m.Add(ctx, cashTx("", 5, "-50.00", "transfer"))
	if !errors.As(err, &ve) || ve.Fields["linkedId"] == "" {
		t.Fatalf("transfer without link: err = %v, want linkedId violation", err)
	}
	// ...unless explicitly waived
	if _, err := m.Add(ctx, cashTx("", 6, "-50.00", "transfer"), WaiveLinkedTransfer()); err != nil {
		t.Fatalf("waived transfer: %v", err)
	}
}

func TestManagerUpdateDelete(t *testing.T) {
	ctx := context.Background()
	s := newFakeStore()
	s.seedTx(cashTx("t1", 5, "-30.00", "groceries"))
	m, _ := newTestManager(t, s)

	category := "dining"
	amount := dec("-35.00")
	updated, err := m.Update(ctx, "t1", TransactionPatch{Category: &category, Amount: &amount})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Category != "dining" || !updated.Amount.Equal(dec("-35.00")) {
		t.Errorf("updated = %+v", updated)
	}
	if updated.Description != "desc t1" {
		t.Error("unpatched fields must be preserved")
	}

	if err := m.Delete(ctx, "t1"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Get(ctx, "t1"); !IsNotFound(err) {
		t.Error("deleted transaction should be gone")
	}
	if err := m.Delete(ctx, "t1"); !IsNotFound(err) {
		t.Errorf("second delete = %v, want not-found", err)
	}
}

func TestManagerListFilters(t *testing.T) {
	ctx := context.Background()
	s := newFakeStore()
	s.seedTx(
		cashTx("t1", 3, "-30.00", "groceries"),
		cashTx("t2", 5, "-12.00", "dining"),
		debtTx("t3", 5, "-99.00", "dining"),
		cashTx("t4", 9, "1500.00", "salary"),
	)
	m, _ := newTestManager(t, s)

	all, err := m.List(ctx, Filters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Fatalf("List() = %d, want 4", len(all))
	}
	// sorted by date then id
	if all[0].ID != "t1" || all[1].ID != "t2" || all[2].ID != "t3" {
		t.Errorf("order = %v", []string{all[0].ID, all[1].ID, all[2].ID, all[3].ID})
	}

	dining, err := m.List(ctx, Filters{Category: "Dining"})
	if err != nil {
		t.Fatal(err)
	}
	if len(dining) != 2 {
		t.Errorf("category filter = %d, want 2 (case-insensitive)", len(dining))
	}

	debt, err := m.List(ctx, Filters{AccountType: AccountDebt, AccountID: "visa"})
	if err != nil {
		t.Fatal(err)
	}
	if len(debt) != 1 || debt[0].ID != "t3" {
		t.Errorf("account filter = %v", debt)
	}

	march5on, err := m.List(ctx, Filters{Range: date.Range{From: date.New(2026, 3, 5)}})
	if err != nil {
		t.Fatal(err)
	}
	if len(march5on) != 3 {
		t.Errorf("range filter = %d, want 3", len(march5on))
	}
}

// A mutation must drop memoized reads: a List after an Add reflects the new
// transaction even within the cache TTL.
func TestManagerCacheInvalidation(t *testing.T) {
	ctx := context.Background()
	s := newFakeStore()
	s.seedTx(cashTx("t1", 3, "-30.00", "groceries"))
	m, _ := newTestManager(t, s)

	if _, err := m.List(ctx, Filters{}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.List(ctx, Filters{}); err != nil {
		t.Fatal(err)
	}
	metrics := m.Metrics()
	if metrics.CacheHits != 1 || metrics.CacheMisses != 1 {
		t.Errorf("hits/misses = %d/%d, want 1/1", metrics.CacheHits, metrics.CacheMisses)
	}

	if _, err := m.Add(ctx, cashTx("t2", 4, "-10.00", "dining")); err != nil {
		t.Fatal(err)
	}
	all, err := m.List(ctx, Filters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("List after Add = %d, want 2 (stale cache served?)", len(all))
	}
}

// A filter value carrying a '/' lands verbatim in the cache key; the entry
// must still be dropped when a mutation invalidates the reads.
func TestManagerCacheInvalidationSlashInFilter(t *testing.T) {
	ctx := context.Background()
	s := newFakeStore()
	s.seedTx(cashTx("t1", 3, "-30.00", "food/dining"))
	m, _ := newTestManager(t, s)

	one, err := m.List(ctx, Filters{Category: "food/dining"})
	if err != nil {
		t.Fatal(err)
	}
	if len(one) != 1 {
		t.Fatalf("List = %d, want 1", len(one))
	}

	if _, err := m.Add(ctx, cashTx("t2", 4, "-12.00", "food/dining")); err != nil {
		t.Fatal(err)
	}
	two, err := m.List(ctx, Filters{Category: "food/dining"})
	if err != nil {
		t.Fatal(err)
	}
	if len(two) != 2 {
		t.Errorf("List after Add = %d, want 2 (stale cache served?)", len(two))
	}
}

// A caller mutating its List result must not corrupt the memoized value.
func TestManagerListReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := newFakeStore()
	s.seedTx(cashTx("t1", 3, "-30.00", "groceries"))
	m, _ := newTestManager(t, s)

	first, err := m.List(ctx, Filters{})
	if err != nil {
		t.Fatal(err)
	}
	first[0].Category = "mangled"

	second, err := m.List(ctx, Filters{})
	if err != nil {
		t.Fatal(err)
	}
	if second[0].Category != "groceries" {
		t.Errorf("cached category = %q, want groceries", second[0].Category)
	}
}

func TestManagerOperationConflict(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, newFakeStore())

	// simulate an in-flight add for the same id
	if err := m.track.begin("add:t1"); err != nil {
		t.Fatal(err)
	}
	_, err := m.Add(ctx, cashTx("t1", 5, "-30.00", "groceries"))
	var conflict *OperationConflictError
	if !errors.As(err, &conflict) || conflict.OpID != "add:t1" {
		t.Fatalf("err = %v, want conflict on add:t1", err)
	}
}

func TestAddLinked(t *testing.T) {
	ctx := context.Background()
	s := newFakeStore()
	m, _ := newTestManager(t, s)

	out := cashTx("", 5, "-200.00", "transfer")
	in := Transaction{
		Date:          date.New(2026, 3, 5),
		Amount:        dec("200.00"),
		Category:      "transfer",
		Description:   "to savings",
		CashAccountID: "savings",
	}

	savedOut, savedIn, err := m.AddLinked(ctx, out, in)
	if err != nil {
		t.Fatal(err)
	}
	if savedOut.LinkedID != savedIn.ID || savedIn.LinkedID != savedOut.ID {
		t.Errorf("legs not cross-linked: %q <-> %q", savedOut.LinkedID, savedIn.LinkedID)
	}
	if !s.has(savedOut.ID) || !s.has(savedIn.ID) {
		t.Error("both legs should be persisted")
	}
}

// The second leg failing must remove the first so no half-pair survives.
func TestAddLinkedRollsBackFirstLeg(t *testing.T) {
	ctx := context.Background()
	s := newFakeStore()
	m, _ := newTestManager(t, s)

	out := cashTx("", 5, "-200.00", "transfer")
	in := Transaction{} // invalid second leg

	_, _, err := m.AddLinked(ctx, out, in)
	if !IsValidation(err) {
		t.Fatalf("err = %v, want the second leg's validation failure", err)
	}
	txs, listErr := m.List(ctx, Filters{})
	if listErr != nil {
		t.Fatal(listErr)
	}
	if len(txs) != 0 {
		t.Errorf("half-pair survived: %v", txs)
	}
}

func TestManagerEvents(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, newFakeStore())

	var got []Event
	unsubscribe := m.Subscribe(func(e Event) { got = append(got, e) })
	defer unsubscribe()

	saved, err := m.Add(ctx, cashTx("", 5, "-30.00", "groceries"))
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Delete(ctx, saved.ID); err != nil {
		t.Fatal(err)
	}
	m.Flush()

	if len(got) != 2 {
		t.Fatalf("events = %d, want 2", len(got))
	}
	if got[0].Name != EventAdded || got[1].Name != EventDeleted {
		t.Errorf("event names = %q, %q", got[0].Name, got[1].Name)
	}
	if tx, ok := got[0].Payload.(Transaction); !ok || tx.ID != saved.ID {
		t.Errorf("payload = %+v", got[0].Payload)
	}
}

func TestManagerHistory(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, newFakeStore())

	if _, err := m.Add(ctx, cashTx("t1", 5, "-30.00", "groceries")); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Add(ctx, Transaction{}); err == nil {
		t.Fatal("invalid add should fail")
	}

	hist := m.History()
	if len(hist) != 2 {
		t.Fatalf("history = %d records, want 2", len(hist))
	}
	if !hist[0].OK || hist[0].Kind != "add" {
		t.Errorf("first record = %+v", hist[0])
	}
	if hist[1].OK || hist[1].Err == "" {
		t.Errorf("second record = %+v", hist[1])
	}

	metrics := m.Metrics()
	if metrics.Operations != 2 || metrics.Errors != 1 {
		t.Errorf("metrics = %+v", metrics)
	}
}
