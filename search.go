package financial

import (
	"context"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/ryokushen/financial/date"
	"github.com/shopspring/decimal"
)

// SearchCriteria narrows, orders and paginates a transaction search.
type SearchCriteria struct {
	// Text matches case-insensitively against description, category and notes.
	Text string
	// Categories keeps transactions in any of the given categories.
	Categories []string
	// AccountType/AccountID keep transactions referencing that account.
	AccountType AccountType
	AccountID   string
	// MinAmount/MaxAmount bound the signed amount, inclusive.
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal
	// Range bounds the transaction date.
	Range date.Range
	// Cleared filters on the cleared flag when non-nil.
	Cleared *bool

	// SortBy is one of "date" (default), "amount", "description", "category".
	SortBy string
	// SortDesc reverses the sort order.
	SortDesc bool

	// Offset/Limit paginate the result. A zero Limit returns everything.
	Offset int
	Limit  int
}

// SearchResult is one page of matches plus the total match count before
// pagination.
type SearchResult struct {
	Transactions []Transaction
	Total        int
}

func (c SearchCriteria) cacheFields() map[string]string {
	fields := map[string]string{
		"text":        strings.ToLower(c.Text),
		"categories":  strings.ToLower(strings.Join(c.Categories, ",")),
		"accountType": string(c.AccountType),
		"accountId":   c.AccountID,
		"sortBy":      c.SortBy,
	}
	if c.MinAmount != nil {
		fields["min"] = c.MinAmount.String()
	}
	if c.MaxAmount != nil {
		fields["max"] = c.MaxAmount.String()
	}
	if !c.Range.From.IsZero() {
		fields["from"] = c.Range.From.String()
	}
	if !c.Range.To.IsZero() {
		fields["to"] = c.Range.To.String()
	}
	if c.Cleared != nil {
		fields["cleared"] = strconv.FormatBool(*c.Cleared)
	}
	if c.SortDesc {
		fields["desc"] = "true"
	}
	if c.Offset > 0 {
		fields["offset"] = strconv.Itoa(c.Offset)
	}
	if c.Limit > 0 {
		fields["limit"] = strconv.Itoa(c.Limit)
	}
	return fields
}

func (c SearchCriteria) match(t Transaction) bool {
	if c.Text != "" {
		needle := strings.ToLower(c.Text)
		if !strings.Contains(strings.ToLower(t.Description), needle) &&
			!strings.Contains(strings.ToLower(t.Category), needle) &&
			!strings.Contains(strings.ToLower(t.Notes), needle) {
			return false
		}
	}
	if len(c.Categories) > 0 {
		found := false
		for _, cat := range c.Categories {
			if strings.EqualFold(cat, t.Category) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if c.AccountID != "" || c.AccountType != "" {
		typ, id, ok := t.AccountRef()
		if !ok {
			return false
		}
		if c.AccountID != "" && id != c.AccountID {
			return false
		}
		if c.AccountType != "" && typ != c.AccountType {
			return false
		}
	}
	if c.MinAmount != nil && t.Amount.LessThan(*c.MinAmount) {
		return false
	}
	if c.MaxAmount != nil && t.Amount.GreaterThan(*c.MaxAmount) {
		return false
	}
	if !c.Range.IsZero() && !c.Range.Contains(t.Date) {
		return false
	}
	if c.Cleared != nil && t.Cleared != *c.Cleared {
		return false
	}
	return true
}

// Search returns the transactions matching the criteria, sorted and
// paginated. Results are memoized in the read cache.
func (m *Manager) Search(ctx context.Context, c SearchCriteria) (SearchResult, error) {
	key := CacheKey("search", c.cacheFields())
	if v, ok := m.cache.Get(key); ok {
		m.track.cacheHit()
		res := v.(SearchResult)
		res.Transactions = slices.Clone(res.Transactions)
		return res, nil
	}
	m.track.cacheMiss()

	if err := m.ensureLoaded(ctx); err != nil {
		return SearchResult{}, err
	}

	var matches []Transaction
	for _, t := range m.index.All() {
		if c.match(t) {
			matches = append(matches, t)
		}
	}

	sortBy(matches, c.SortBy, c.SortDesc)

	total := len(matches)
	if c.Offset > 0 {
		if c.Offset >= len(matches) {
			matches = nil
		} else {
			matches = matches[c.Offset:]
		}
	}
	if c.Limit > 0 && len(matches) > c.Limit {
		matches = matches[:c.Limit]
	}

	m.cache.Set(key, SearchResult{Transactions: matches, Total: total})
	return SearchResult{Transactions: slices.Clone(matches), Total: total}, nil
}

// sortBy orders transactions on the requested dimension, falling back to
// date then id so the order is always total and deterministic.
func sortBy(txs []Transaction, field string, desc bool) {
	less := func(a, b Transaction) bool {
		if a.Date != b.Date {
			return a.Date.Before(b.Date)
		}
		return a.ID < b.ID
	}
	switch field {
	case "amount":
		less = func(a, b Transaction) bool {
			if !a.Amount.Equal(b.Amount) {
				return a.Amount.LessThan(b.Amount)
			}
			return a.ID < b.ID
		}
	case "description":
		less = func(a, b Transaction) bool {
			da, db := strings.ToLower(a.Description), strings.ToLower(b.Description)
			if da != db {
				return da < db
			}
			return a.ID < b.ID
		}
	case "category":
		less = func(a, b Transaction) bool {
			ca, cb := strings.ToLower(a.Category), strings.ToLower(b.Category)
			if ca != cb {
				return ca < cb
			}
			return a.ID < b.ID
		}
	}
	sort.Slice(txs, func(i, j int) bool {
		if desc {
			return less(txs[j], txs[i])
		}
		return less(txs[i], txs[j])
	})
}
