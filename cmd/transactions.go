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

// parseAccountRef splits "cash:<id>" or "debt:<id>"; a bare id is a cash
// account.
func parseAccountRef(s string) (financial.AccountType, string, error) {
	typ, id, ok := strings.Cut(s, ":")
	if !ok {
		return financial.AccountCash, s, nil
	}
	switch financial.AccountType(typ) {
	case financial.AccountCash:
		return financial.AccountCash, id, nil
	case financial.AccountDebt:
		return financial.AccountDebt, id, nil
	}
	return "", "", fmt.Errorf("unknown account type %q, want cash or debt", typ)
}

// --- Add Command ---

type addCmd struct {
	date     string
	amount   string
	category string
	desc     string
	account  string
	notes    string
	cleared  bool
	force    bool
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "record a transaction" }
func (*addCmd) Usage() string {
	return `add -amount <amount> -category <category> -on <account> [-d <date>] [-desc <text>] [-notes <text>] [-cleared] [-force]

  Records a transaction against a cash or debt account. Negative amounts
  are outflows.
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", date.Today().String(), "Transaction date (YYYY-MM-DD)")
	f.StringVar(&c.amount, "amount", "", "Signed amount, negative for outflows")
	f.StringVar(&c.category, "category", "", "Category tag")
	f.StringVar(&c.desc, "desc", "", "Description")
	f.StringVar(&c.account, "on", "", "Account reference (cash:<id> or debt:<id>)")
	f.StringVar(&c.notes, "notes", "", "Optional notes")
	f.BoolVar(&c.cleared, "cleared", false, "Mark the transaction as cleared")
	f.BoolVar(&c.force, "force", false, "Accept a transfer-like category without a linked counterpart")
}

func (c *addCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.amount == "" || c.category == "" || c.account == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	t, err := c.transaction()
	if err != nil {
		return usageError(err.Error())
	}

	m, err := openManager()
	if err != nil {
		return fail(err)
	}
	defer m.Close()

	var opts []financial.AddOption
	if c.force {
		opts = append(opts, financial.WaiveLinkedTransfer())
	}
	saved, err := m.Add(ctx, t, opts...)
	if err != nil {
		return fail(err)
	}
	fmt.Println("Recorded", renderer.Transaction(saved))
	return subcommands.ExitSuccess
}

func (c *addCmd) transaction() (financial.Transaction, error) {
	day, err := date.Parse(c.date)
	if err != nil {
		return financial.Transaction{}, fmt.Errorf("parsing date: %w", err)
	}
	amount, err := decimal.NewFromString(c.amount)
	if err != nil {
		return financial.Transaction{}, fmt.Errorf("parsing amount: %w", err)
	}
	typ, id, err := parseAccountRef(c.account)
	if err != nil {
		return financial.Transaction{}, err
	}
	t := financial.Transaction{
		Date:        day,
		Amount:      amount,
		Category:    c.category,
		Description: c.desc,
		Cleared:     c.cleared,
		Notes:       c.notes,
	}
	if typ == financial.AccountDebt {
		t.DebtAccountID = id
	} else {
		t.CashAccountID = id
	}
	return t, nil
}

// --- Transfer Command ---

type transferCmd struct {
	date   string
	amount string
	from   string
	to     string
	desc   string
}

func (*transferCmd) Name() string     { return "transfer" }
func (*transferCmd) Synopsis() string { return "move money between two accounts" }
func (*transferCmd) Usage() string {
	return `transfer -amount <amount> -from <account> -to <account> [-d <date>] [-desc <text>]

  Records the two linked legs of a transfer: an outflow on the source
  account and a matching inflow on the destination. Both legs are written
  together; if the second write fails the first is removed.
`
}

func (c *transferCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", date.Today().String(), "Transfer date (YYYY-MM-DD)")
	f.StringVar(&c.amount, "amount", "", "Amount to move, positive")
	f.StringVar(&c.from, "from", "", "Source account (cash:<id> or debt:<id>)")
	f.StringVar(&c.to, "to", "", "Destination account (cash:<id> or debt:<id>)")
	f.StringVar(&c.desc, "desc", "transfer", "Description for both legs")
}

func (c *transferCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.amount == "" || c.from == "" || c.to == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	day, err := date.Parse(c.date)
	if err != nil {
		return usageError(fmt.Sprintf("parsing date: %v", err))
	}
	amount, err := decimal.NewFromString(c.amount)
	if err != nil {
		return usageError(fmt.Sprintf("parsing amount: %v", err))
	}
	if !amount.IsPositive() {
		return usageError("transfer amount must be positive")
	}

	leg := func(account string, amt decimal.Decimal) (financial.Transaction, error) {
		typ, id, err := parseAccountRef(account)
		if err != nil {
			return financial.Transaction{}, err
		}
		t := financial.Transaction{Date: day, Amount: amt, Category: "transfer", Description: c.desc}
		if typ == financial.AccountDebt {
			t.DebtAccountID = id
		} else {
			t.CashAccountID = id
		}
		return t, nil
	}

	from, err := leg(c.from, amount.Neg())
	if err != nil {
		return usageError(err.Error())
	}
	to, err := leg(c.to, amount)
	if err != nil {
		return usageError(err.Error())
	}

	m, err := openManager()
	if err != nil {
		return fail(err)
	}
	defer m.Close()

	savedFrom, savedTo, err := m.AddLinked(ctx, from, to)
	if err != nil {
		return fail(err)
	}
	fmt.Println("Recorded", renderer.Transaction(savedFrom))
	fmt.Println("Recorded", renderer.Transaction(savedTo))
	return subcommands.ExitSuccess
}

// --- Pay Command ---

type payCmd struct {
	date   string
	amount string
	cash   string
	debt   string
	desc   string
}

func (*payCmd) Name() string     { return "pay" }
func (*payCmd) Synopsis() string { return "pay down a debt account from a cash account" }
func (*payCmd) Usage() string {
	return `pay -amount <amount> -cash <id> -debt <id> [-d <date>] [-desc <text>]

  Records a debt payment: a negative transaction on the cash account,
  and lowers both the cash balance and the debt balance by the amount,
  as one atomic operation.
`
}

func (c *payCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", date.Today().String(), "Payment date (YYYY-MM-DD)")
	f.StringVar(&c.amount, "amount", "", "Amount to pay, positive")
	f.StringVar(&c.cash, "cash", "", "Cash account the payment comes from")
	f.StringVar(&c.debt, "debt", "", "Debt account the payment goes to")
	f.StringVar(&c.desc, "desc", "debt payment", "Description")
}

func (c *payCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.amount == "" || c.cash == "" || c.debt == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	day, err := date.Parse(c.date)
	if err != nil {
		return usageError(fmt.Sprintf("parsing date: %v", err))
	}
	amount, err := decimal.NewFromString(c.amount)
	if err != nil {
		return usageError(fmt.Sprintf("parsing amount: %v", err))
	}
	if !amount.IsPositive() {
		return usageError("payment amount must be positive")
	}

	m, err := openManager()
	if err != nil {
		return fail(err)
	}
	defer m.Close()

	t := financial.Transaction{
		Date:          day,
		Amount:        amount.Neg(),
		Category:      "debt payment",
		Description:   c.desc,
		CashAccountID: c.cash,
	}
	saved, err := m.AddWithBalanceUpdate(ctx, t, []financial.Adjustment{
		{AccountType: financial.AccountCash, AccountID: c.cash, Delta: amount.Neg()},
		{AccountType: financial.AccountDebt, AccountID: c.debt, Delta: amount.Neg()},
	})
	if err != nil {
		return fail(err)
	}
	fmt.Println("Recorded", renderer.Transaction(saved))
	return subcommands.ExitSuccess
}

// --- Remove Command ---

type rmCmd struct {
	reverse bool
}

func (*rmCmd) Name() string     { return "rm" }
func (*rmCmd) Synopsis() string { return "delete transactions by id" }
func (*rmCmd) Usage() string {
	return `rm [-reverse] <id>...

  Deletes the given transactions. With -reverse, the effect of each
  transaction on its account balance is undone in the same operation.
`
}

func (c *rmCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.reverse, "reverse", false, "Also undo the transaction's effect on its account balance")
}

func (c *rmCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ids := f.Args()
	if len(ids) == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	m, err := openManager()
	if err != nil {
		return fail(err)
	}
	defer m.Close()

	for _, id := range ids {
		if c.reverse {
			t, err := m.Get(ctx, id)
			if err != nil {
				return fail(err)
			}
			var reversals []financial.Adjustment
			if rev, ok := financial.ReversalOf(t); ok {
				reversals = append(reversals, rev)
			}
			if err := m.DeleteWithBalanceReversal(ctx, id, reversals); err != nil {
				return fail(err)
			}
		} else if err := m.Delete(ctx, id); err != nil {
			return fail(err)
		}
		fmt.Println("Deleted", id)
	}
	return subcommands.ExitSuccess
}
