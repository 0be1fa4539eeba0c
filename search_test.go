package financial

import (
	"context"
	"testing"

	"github.com/ryokushen/financial/date"
)

func seedSearchSet(s *fakeStore) {
	t1 := cashTx("t1", 3, "-30.00", "groceries")
	t1.Description = "WHOLEFOODS MARKET"
	t2 := cashTx("t2", 5, "-4.50", "coffee")
	t2.Description = "STARBUCKS"
	t2.Cleared = true
	t3 := debtTx("t3", 8, "-120.00", "dining")
	t3.Description = "fancy restaurant"
	t3.Notes = "birthday dinner"
	t4 := cashTx("t4", 12, "2500.00", "salary")
	t4.Description = "ACME CORP PAYROLL"
	s.seedTx(t1, t2, t3, t4)
}

func TestSearchText(t *testing.T) {
	ctx := context.Background()
	s := newFakeStore()
	seedSearchSet(s)
	m, _ := newTestManager(t, s)

	res, err := m.Search(ctx, SearchCriteria{Text: "starbucks"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 1 || res.Transactions[0].ID != "t2" {
		t.Errorf("text search = %+v", res)
	}

	// notes participate in the text match
	res, err = m.Search(ctx, SearchCriteria{Text: "birthday"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 1 || res.Transactions[0].ID != "t3" {
		t.Errorf("notes search = %+v", res)
	}
}

func TestSearchFilters(t *testing.T) {
	ctx := context.Background()
	s := newFakeStore()
	seedSearchSet(s)
	m, _ := newTestManager(t, s)

	minAmount := dec("-50.00")
	maxAmount := dec("0.00")
	res, err := m.Search(ctx, SearchCriteria{MinAmount: &minAmount, MaxAmount: &maxAmount})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 2 { // -30.00 and -4.50
		t.Errorf("amount range = %d, want 2", res.Total)
	}

	cleared := true
	res, err = m.Search(ctx, SearchCriteria{Cleared: &cleared})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 1 || res.Transactions[0].ID != "t2" {
		t.Errorf("cleared filter = %+v", res)
	}

	res, err = m.Search(ctx, SearchCriteria{
		Categories: []string{"Groceries", "dining"},
		Range:      date.Range{To: date.New(2026, 3, 7)},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 1 || res.Transactions[0].ID != "t1" {
		t.Errorf("categories+range = %+v", res)
	}

	res, err = m.Search(ctx, SearchCriteria{AccountType: AccountDebt})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 1 || res.Transactions[0].ID != "t3" {
		t.Errorf("account type filter = %+v", res)
	}
}

func TestSearchSortAndPaginate(t *testing.T) {
	ctx := context.Background()
	s := newFakeStore()
	seedSearchSet(s)
	m, _ := newTestManager(t, s)

	res, err := m.Search(ctx, SearchCriteria{SortBy: "amount"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Transactions[0].ID != "t3" || res.Transactions[3].ID != "t4" {
		t.Errorf("amount sort order wrong: %v", ids(res.Transactions))
	}

	res, err = m.Search(ctx, SearchCriteria{SortBy: "date", SortDesc: true, Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 4 {
		t.Errorf("Total = %d, want the pre-pagination count", res.Total)
	}
	if len(res.Transactions) != 2 || res.Transactions[0].ID != "t4" {
		t.Errorf("desc page = %v", ids(res.Transactions))
	}

	res, err = m.Search(ctx, SearchCriteria{Offset: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Transactions) != 1 || res.Transactions[0].ID != "t4" {
		t.Errorf("offset page = %v", ids(res.Transactions))
	}

	res, err = m.Search(ctx, SearchCriteria{Offset: 99})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Transactions) != 0 || res.Total != 4 {
		t.Errorf("overshoot offset = %+v", res)
	}
}

func TestSearchCached(t *testing.T) {
	ctx := context.Background()
	s := newFakeStore()
	seedSearchSet(s)
	m, _ := newTestManager(t, s)

	criteria := SearchCriteria{Text: "starbucks", Limit: 5}
	if _, err := m.Search(ctx, criteria); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Search(ctx, criteria); err != nil {
		t.Fatal(err)
	}
	metrics := m.Metrics()
	if metrics.CacheHits != 1 || metrics.CacheMisses != 1 {
		t.Errorf("hits/misses = %d/%d, want 1/1", metrics.CacheHits, metrics.CacheMisses)
	}
}

// A caller mutating its result slice must not corrupt the memoized value.
func TestSearchReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := newFakeStore()
	seedSearchSet(s)
	m, _ := newTestManager(t, s)

	criteria := SearchCriteria{Text: "starbucks"}
	first, err := m.Search(ctx, criteria)
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Transactions) != 1 {
		t.Fatalf("matches = %d, want 1", len(first.Transactions))
	}
	first.Transactions[0].Description = "mangled"

	second, err := m.Search(ctx, criteria)
	if err != nil {
		t.Fatal(err)
	}
	if second.Transactions[0].Description != "STARBUCKS" {
		t.Errorf("cached description = %q, want STARBUCKS", second.Transactions[0].Description)
	}
}

func ids(txs []Transaction) []string {
	out := make([]string, len(txs))
	for i, t := range txs {
		out[i] = t.ID
	}
	return out
}
