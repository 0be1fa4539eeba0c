package cmd

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"
	"github.com/ryokushen/financial"
	"github.com/ryokushen/financial/date"
	"github.com/ryokushen/financial/renderer"
	"github.com/shopspring/decimal"
)

// parseRange builds a date range from an optional period name or from/to
// strings. A period wins over explicit bounds and covers the period
// containing today.
func parseRange(period, from, to string) (date.Range, error) {
	if period != "" {
		p, err := date.ParsePeriod(period)
		if err != nil {
			return date.Range{}, err
		}
		return p.Range(date.Today()), nil
	}
	var r date.Range
	if from != "" {
		d, err := date.Parse(from)
		if err != nil {
			return r, fmt.Errorf("parsing -from: %w", err)
		}
		r.From = d
	}
	if to != "" {
		d, err := date.Parse(to)
		if err != nil {
			return r, fmt.Errorf("parsing -to: %w", err)
		}
		r.To = d
	}
	return r, nil
}

// --- Tx Command ---

type txCmd struct {
	period   string
	from     string
	to       string
	category string
	merchant string
	account  string
	cleared  bool
	open     bool
}

func (*txCmd) Name() string     { return "tx" }
func (*txCmd) Synopsis() string { return "list transactions" }
func (*txCmd) Usage() string {
	return `tx [-p <period> | -from <date> -to <date>] [-category <name>] [-merchant <name>] [-on <account>] [-cleared | -open]

  Lists transactions as a markdown table, newest first, with optional
  filters.
`
}

func (c *txCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.period, "p", "", "Predefined period containing today (day, week, month, quarter, year).")
	f.StringVar(&c.from, "from", "", "Start date (YYYY-MM-DD), inclusive.")
	f.StringVar(&c.to, "to", "", "End date (YYYY-MM-DD), inclusive.")
	f.StringVar(&c.category, "category", "", "Only this category.")
	f.StringVar(&c.merchant, "merchant", "", "Only this merchant.")
	f.StringVar(&c.account, "on", "", "Only this account (cash:<id> or debt:<id>).")
	f.BoolVar(&c.cleared, "cleared", false, "Only cleared transactions.")
	f.BoolVar(&c.open, "open", false, "Only uncleared transactions.")
}

func (c *txCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.cleared && c.open {
		return usageError("-cleared and -open cannot be used together")
	}

	filters := financial.Filters{Category: c.category, Merchant: c.merchant}
	var err error
	if filters.Range, err = parseRange(c.period, c.from, c.to); err != nil {
		return usageError(err.Error())
	}
	if c.account != "" {
		typ, id, err := parseAccountRef(c.account)
		if err != nil {
			return usageError(err.Error())
		}
		filters.AccountType, filters.AccountID = typ, id
	}
	if c.cleared || c.open {
		cleared := c.cleared
		filters.Cleared = &cleared
	}

	m, err := openManager()
	if err != nil {
		return fail(err)
	}
	defer m.Close()

	txs, err := m.List(ctx, filters)
	if err != nil {
		return fail(err)
	}
	printMarkdown(renderer.TransactionsMarkdown(txs))
	return subcommands.ExitSuccess
}

// --- Search Command ---

type searchCmd struct {
	categories string
	account    string
	from       string
	to         string
	min        string
	max        string
	sortBy     string
	desc       bool
	offset     int
	limit      int
}

func (*searchCmd) Name() string     { return "search" }
func (*searchCmd) Synopsis() string { return "search transactions by text and criteria" }
func (*searchCmd) Usage() string {
	return `search [flags] [<text>]

  Searches transactions. The free text matches description, category and
  notes, case-insensitively. Criteria flags narrow the result further.
`
}

func (c *searchCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.categories, "category", "", "Comma-separated categories to match.")
	f.StringVar(&c.account, "on", "", "Only this account (cash:<id> or debt:<id>).")
	f.StringVar(&c.from, "from", "", "Start date (YYYY-MM-DD), inclusive.")
	f.StringVar(&c.to, "to", "", "End date (YYYY-MM-DD), inclusive.")
	f.StringVar(&c.min, "min", "", "Minimum signed amount, inclusive.")
	f.StringVar(&c.max, "max", "", "Maximum signed amount, inclusive.")
	f.StringVar(&c.sortBy, "sort", "date", "Sort key: date, amount, description or category.")
	f.BoolVar(&c.desc, "desc", false, "Reverse the sort order.")
	f.IntVar(&c.offset, "offset", 0, "Skip the first N matches.")
	f.IntVar(&c.limit, "limit", 0, "Return at most N matches, 0 for all.")
}

func (c *searchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	criteria := financial.SearchCriteria{
		Text:     strings.Join(f.Args(), " "),
		SortBy:   c.sortBy,
		SortDesc: c.desc,
		Offset:   c.offset,
		Limit:    c.limit,
	}
	if c.categories != "" {
		criteria.Categories = strings.Split(c.categories, ",")
	}
	if c.account != "" {
		typ, id, err := parseAccountRef(c.account)
		if err != nil {
			return usageError(err.Error())
		}
		criteria.AccountType, criteria.AccountID = typ, id
	}
	var err error
	if criteria.Range, err = parseRange("", c.from, c.to); err != nil {
		return usageError(err.Error())
	}
	if c.min != "" {
		v, err := decimal.NewFromString(c.min)
		if err != nil {
			return usageError(fmt.Sprintf("parsing -min: %v", err))
		}
		criteria.MinAmount = &v
	}
	if c.max != "" {
		v, err := decimal.NewFromString(c.max)
		if err != nil {
			return usageError(fmt.Sprintf("parsing -max: %v", err))
		}
		criteria.MaxAmount = &v
	}

	m, err := openManager()
	if err != nil {
		return fail(err)
	}
	defer m.Close()

	result, err := m.Search(ctx, criteria)
	if err != nil {
		return fail(err)
	}
	printMarkdown(renderer.TransactionsMarkdown(result.Transactions))
	if result.Total > len(result.Transactions) {
		fmt.Printf("Showing %d of %d matches.\n", len(result.Transactions), result.Total)
	}
	return subcommands.ExitSuccess
}

// --- Summary Command ---

type summaryCmd struct {
	period string
	from   string
	to     string
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "income, expenses and totals over a period" }
func (*summaryCmd) Usage() string {
	return `summary [-p <period> | -from <date> -to <date>]

  Prints aggregate, per-category and per-month totals for the period.
  Without flags the whole history is summarized.
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.period, "p", "", "Predefined period containing today (day, week, month, quarter, year).")
	f.StringVar(&c.from, "from", "", "Start date (YYYY-MM-DD), inclusive.")
	f.StringVar(&c.to, "to", "", "End date (YYYY-MM-DD), inclusive.")
}

func (c *summaryCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	r, err := parseRange(c.period, c.from, c.to)
	if err != nil {
		return usageError(err.Error())
	}

	m, err := openManager()
	if err != nil {
		return fail(err)
	}
	defer m.Close()

	stats, err := m.Statistics(ctx, r)
	if err != nil {
		return fail(err)
	}
	printMarkdown(renderer.SummaryMarkdown(&stats))
	return subcommands.ExitSuccess
}
