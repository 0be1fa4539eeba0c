package financial

import (
	"context"
	"maps"

	"github.com/ryokushen/financial/date"
	"github.com/shopspring/decimal"
)

// MonthlyTotals aggregates one calendar month.
type MonthlyTotals struct {
	Income   decimal.Decimal
	Expenses decimal.Decimal // negative sum of outflows
	Count    int
}

// Net is the month's income plus expenses.
func (m MonthlyTotals) Net() decimal.Decimal { return m.Income.Add(m.Expenses) }

// Statistics aggregates the transactions of a date range.
type Statistics struct {
	Range    date.Range
	Count    int
	Income   decimal.Decimal
	Expenses decimal.Decimal
	Net      decimal.Decimal
	// ByCategory is the signed total per category.
	ByCategory map[string]decimal.Decimal
	// ByMonth groups totals per "YYYY-MM" key.
	ByMonth map[string]MonthlyTotals
}

// Statistics computes aggregate, per-category and per-month totals over the
// given date range. A zero range covers everything. Results are memoized in
// the read cache.
func (m *Manager) Statistics(ctx context.Context, r date.Range) (Statistics, error) {
	fields := map[string]string{}
	if !r.From.IsZero() {
		fields["from"] = r.From.String()
	}
	if !r.To.IsZero() {
		fields["to"] = r.To.String()
	}
	key := CacheKey("stats", fields)
	if v, ok := m.cache.Get(key); ok {
		m.track.cacheHit()
		stats := v.(Statistics)
		stats.ByCategory = maps.Clone(stats.ByCategory)
		stats.ByMonth = maps.Clone(stats.ByMonth)
		return stats, nil
	}
	m.track.cacheMiss()

	if err := m.ensureLoaded(ctx); err != nil {
		return Statistics{}, err
	}

	stats := Statistics{
		Range:      r,
		ByCategory: make(map[string]decimal.Decimal),
		ByMonth:    make(map[string]MonthlyTotals),
	}
	for _, t := range m.index.All() {
		if !r.IsZero() && !r.Contains(t.Date) {
			continue
		}
		stats.Count++
		if t.Amount.IsPositive() {
			stats.Income = stats.Income.Add(t.Amount)
		} else {
			stats.Expenses = stats.Expenses.Add(t.Amount)
		}
		stats.ByCategory[t.Category] = stats.ByCategory[t.Category].Add(t.Amount)

		monthKey := t.Date.MonthKey()
		month := stats.ByMonth[monthKey]
		month.Count++
		if t.Amount.IsPositive() {
			month.Income = month.Income.Add(t.Amount)
		} else {
			month.Expenses = month.Expenses.Add(t.Amount)
		}
		stats.ByMonth[monthKey] = month
	}
	stats.Net = stats.Income.Add(stats.Expenses)

	m.cache.Set(key, stats)
	stats.ByCategory = maps.Clone(stats.ByCategory)
	stats.ByMonth = maps.Clone(stats.ByMonth)
	return stats, nil
}
