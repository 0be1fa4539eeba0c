package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/ryokushen/financial"
)

// --- Import Command ---

type importCmd struct {
	fields         repeated
	categories     repeated
	accounts       repeated
	skipDuplicates bool
	stopOnError    bool
	rollback       bool
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "import transactions from a JSONL file" }
func (*importCmd) Usage() string {
	return `import [flags] <file>

  Reads one JSON object per line and records each as a transaction.
  Use -field to map transaction fields to JSONPath expressions, and
  -category / -account to rewrite source values. See "fin topic import".
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	c.fields = repeated{}
	c.categories = repeated{}
	c.accounts = repeated{}
	f.Var(c.fields, "field", "Field mapping <field>=<jsonpath>, repeatable.")
	f.Var(c.categories, "category", "Category mapping <source>=<local>, repeatable.")
	f.Var(c.accounts, "account", "Account mapping <source>=<cash:<id>|debt:<id>>, repeatable.")
	f.BoolVar(&c.skipDuplicates, "skip-duplicates", false, "Silently drop rows matching an existing transaction.")
	f.BoolVar(&c.stopOnError, "stop-on-error", false, "Abort the import after the first failed row.")
	f.BoolVar(&c.rollback, "rollback", false, "Undo the whole import when any row fails.")
}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	file, err := os.Open(f.Arg(0))
	if err != nil {
		return fail(err)
	}
	defer file.Close()

	items, err := financial.ReadItems(file)
	if err != nil {
		return fail(err)
	}

	m, err := openManager()
	if err != nil {
		return fail(err)
	}
	defer m.Close()

	result, err := m.ImportBatch(ctx, items, financial.ImportOptions{
		FieldPaths:     c.fields,
		CategoryMap:    c.categories,
		AccountMap:     c.accounts,
		SkipDuplicates: c.skipDuplicates,
		Batch: financial.BatchOptions{
			StopOnError:       c.stopOnError,
			RollbackOnFailure: c.rollback,
		},
	})
	if err != nil {
		return fail(err)
	}

	fmt.Printf("Imported %d of %d rows.\n", len(result.Successful), result.Total)
	for _, failure := range result.Failed {
		fmt.Fprintf(os.Stderr, "  row %d: %v\n", failure.Index+1, failure.Err)
	}
	if result.Stopped {
		fmt.Fprintln(os.Stderr, "Import stopped after the first failure; remaining rows were not attempted.")
	}
	if result.RolledBack {
		fmt.Fprintln(os.Stderr, "Import rolled back: no rows were kept.")
	}
	if len(result.Failed) > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// --- Export Command ---

type exportCmd struct {
	format string
	output string
	from   string
	to     string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "export transactions as csv, records or ledger" }
func (*exportCmd) Usage() string {
	return `export [-format <csv|records|ledger>] [-o <file>] [-from <date>] [-to <date>]

  Writes the selected transactions to stdout or a file. See
  "fin topic formats" for the formats.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.format, "format", "csv", "Output format: csv, records or ledger.")
	f.StringVar(&c.output, "o", "", "Output file; stdout when empty.")
	f.StringVar(&c.from, "from", "", "Start date (YYYY-MM-DD), inclusive.")
	f.StringVar(&c.to, "to", "", "End date (YYYY-MM-DD), inclusive.")
}

func (c *exportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	format, err := financial.ParseExportFormat(c.format)
	if err != nil {
		return usageError(err.Error())
	}
	r, err := parseRange("", c.from, c.to)
	if err != nil {
		return usageError(err.Error())
	}

	m, err := openManager()
	if err != nil {
		return fail(err)
	}
	defer m.Close()

	txs, err := m.List(ctx, financial.Filters{Range: r})
	if err != nil {
		return fail(err)
	}

	out := os.Stdout
	if c.output != "" {
		out, err = os.Create(c.output)
		if err != nil {
			return fail(err)
		}
		defer out.Close()
	}
	if err := financial.Export(out, txs, format); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

// --- Repair Command ---

type repairCmd struct {
	debt string
}

func (*repairCmd) Name() string     { return "repair" }
func (*repairCmd) Synopsis() string { return "attach legacy debt payments to their debt account" }
func (*repairCmd) Usage() string {
	return `repair -debt <account-id>

  Scans for transactions without an account reference and attaches the
  given debt account to those categorized as debt payments. Safe to run
  repeatedly. See "fin topic repair".
`
}

func (c *repairCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.debt, "debt", "", "Debt account to attach legacy payments to.")
}

func (c *repairCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.debt == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}

	m, err := openManager()
	if err != nil {
		return fail(err)
	}
	defer m.Close()

	report, err := m.RepairLegacyDebtReferences(ctx, c.debt)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("Scanned %d transactions, repaired %d.\n", report.Scanned, report.Repaired)
	for _, id := range report.Skipped {
		fmt.Printf("  %s has no account reference but is not a debt payment; review it manually.\n", id)
	}
	return subcommands.ExitSuccess
}
