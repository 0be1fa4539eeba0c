package financial

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/PaesslerAG/jsonpath"
	"github.com/ryokushen/financial/date"
	"github.com/shopspring/decimal"
)

// this file handles the import/export formats. They stay human readable,
// single file, and easy to merge into another tool.

// ErrDuplicate marks an import item skipped by duplicate detection.
var ErrDuplicate = errors.New("duplicate transaction")

// ImportOptions tunes ImportBatch.
type ImportOptions struct {
	// FieldPaths overrides how raw items map to transaction fields, as a
	// jsonpath expression per field name ("date", "amount", "description",
	// "category", "account", "cleared", "notes"). Unset fields read the
	// same-named top-level key.
	FieldPaths map[string]string
	// CategoryMap remaps source categories to local ones.
	CategoryMap map[string]string
	// AccountMap remaps source account labels to local account references:
	// "cash:<id>" or "debt:<id>" (a bare id means a cash account).
	AccountMap map[string]string
	// Transform, when set, runs after mapping and before validation.
	Transform func(Transaction) Transaction
	// SkipDuplicates drops items whose date+amount+description already
	// exists, reporting them as failed with ErrDuplicate.
	SkipDuplicates bool
	// Batch tunes the underlying batch processor.
	Batch BatchOptions
}

// ImportBatch maps raw items to transactions and adds them through the
// batch processor. Per-item mapping or validation failures are collected,
// never fatal to the whole batch.
func (m *Manager) ImportBatch(ctx context.Context, rawItems []map[string]any, opts ImportOptions) (BatchResult[Transaction], error) {
	if err := m.ensureLoaded(ctx); err != nil {
		return BatchResult[Transaction]{}, err
	}

	// Seed duplicate detection with the stored set; claimed keys cover
	// duplicates within the import itself.
	var dupMu sync.Mutex
	seen := make(map[string]bool)
	if opts.SkipDuplicates {
		for _, t := range m.index.All() {
			seen[t.DuplicateKey()] = true
		}
	}

	res := ProcessBatch(ctx, rawItems,
		func(ctx context.Context, raw map[string]any) (Transaction, error) {
			t, err := mapRawItem(raw, opts)
			if err != nil {
				return Transaction{}, err
			}
			if opts.Transform != nil {
				t = opts.Transform(t)
			}
			if opts.SkipDuplicates {
				key := t.DuplicateKey()
				dupMu.Lock()
				dup := seen[key]
				if !dup {
					seen[key] = true
				}
				dupMu.Unlock()
				if dup {
					return Transaction{}, fmt.Errorf("%w: %s", ErrDuplicate, key)
				}
			}
			return m.doAdd(ctx, t)
		},
		func(ctx context.Context, saved Transaction) error {
			_, err := m.doDelete(ctx, saved.ID)
			return err
		},
		opts.Batch)
	return res, nil
}

// ReadItems reads raw import items from a JSONL stream, one object per line.
func ReadItems(r io.Reader) ([]map[string]any, error) {
	var items []map[string]any
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var item map[string]any
		if err := json.Unmarshal(line, &item); err != nil {
			return nil, fmt.Errorf("cannot parse import line %q: %w", string(line), err)
		}
		items = append(items, item)
	}
	return items, scanner.Err()
}

// mapRawItem converts one raw import item into a transaction.
func mapRawItem(raw map[string]any, opts ImportOptions) (Transaction, error) {
	get := func(field string) any {
		if path, ok := opts.FieldPaths[field]; ok {
			val, err := jsonpath.Get(path, any(raw))
			if err != nil {
				return nil
			}
			// jsonpath is never clear about whether it returns a list of one
			// answer or a single answer: keep the first one if any
			if list, ok := val.([]any); ok && len(list) > 0 {
				val = list[0]
			}
			return val
		}
		return raw[field]
	}

	var t Transaction

	dateStr, _ := get("date").(string)
	if dateStr != "" {
		d, err := date.Parse(dateStr)
		if err != nil {
			return Transaction{}, fmt.Errorf("import item: %w", err)
		}
		t.Date = d
	}

	amount, err := toDecimal(get("amount"))
	if err != nil {
		return Transaction{}, fmt.Errorf("import item: %w", err)
	}
	t.Amount = amount

	t.Description, _ = get("description").(string)
	t.Category, _ = get("category").(string)
	t.Notes, _ = get("notes").(string)
	t.Cleared, _ = get("cleared").(bool)

	if mapped, ok := opts.CategoryMap[t.Category]; ok {
		t.Category = mapped
	}

	account, _ := get("account").(string)
	if mapped, ok := opts.AccountMap[account]; ok {
		account = mapped
	}
	switch {
	case strings.HasPrefix(account, "debt:"):
		t.DebtAccountID = strings.TrimPrefix(account, "debt:")
	case strings.HasPrefix(account, "cash:"):
		t.CashAccountID = strings.TrimPrefix(account, "cash:")
	case account != "":
		t.CashAccountID = account
	}

	return t, nil
}

// toDecimal accepts the amount representations seen in exports from other
// tools: JSON numbers and numeric strings.
func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid amount %q: %w", n, err)
		}
		return d, nil
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid amount %q: %w", n, err)
		}
		return d, nil
	case nil:
		return decimal.Zero, errors.New("missing amount")
	}
	return decimal.Zero, fmt.Errorf("invalid amount of type %T", v)
}

// ExportFormat selects the output shape of Export.
type ExportFormat string

const (
	// FormatCSV is a delimited-text table: a header row then one row per
	// transaction.
	FormatCSV ExportFormat = "csv"
	// FormatRecords is a structured plain-text record format: one
	// "key: value" line per field, a blank line between records.
	FormatRecords ExportFormat = "records"
	// FormatLedger is a line-oriented ledger format: one labeled field per
	// line with a record separator line.
	FormatLedger ExportFormat = "ledger"
)

// ParseExportFormat parses a string into an ExportFormat.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(s)) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatRecords:
		return FormatRecords, nil
	case FormatLedger:
		return FormatLedger, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// accountLabel renders the account reference of a transaction.
func accountLabel(t Transaction) string {
	typ, id, ok := t.AccountRef()
	if !ok {
		return ""
	}
	return string(typ) + ":" + id
}

// Export writes the transactions to w in the given format.
func Export(w io.Writer, txs []Transaction, format ExportFormat) error {
	switch format {
	case FormatCSV:
		return exportCSV(w, txs)
	case FormatRecords:
		return exportRecords(w, txs)
	case FormatLedger:
		return exportLedger(w, txs)
	}
	return fmt.Errorf("unknown export format %q", format)
}

func exportCSV(w io.Writer, txs []Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "description", "category", "amount", "account", "cleared"}); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, t := range txs {
		row := []string{
			t.Date.String(),
			t.Description,
			t.Category,
			t.Amount.StringFixed(2),
			accountLabel(t),
			strconv.FormatBool(t.Cleared),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing csv row for %q: %w", t.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func exportRecords(w io.Writer, txs []Transaction) error {
	for i, t := range txs {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		fmt.Fprintf(w, "id: %s\n", t.ID)
		fmt.Fprintf(w, "date: %s\n", t.Date)
		fmt.Fprintf(w, "description: %s\n", t.Description)
		fmt.Fprintf(w, "category: %s\n", t.Category)
		fmt.Fprintf(w, "amount: %s\n", t.Amount.StringFixed(2))
		fmt.Fprintf(w, "account: %s\n", accountLabel(t))
		if t.Notes != "" {
			fmt.Fprintf(w, "notes: %s\n", t.Notes)
		}
		if _, err := fmt.Fprintf(w, "cleared: %t\n", t.Cleared); err != nil {
			return err
		}
	}
	return nil
}

func exportLedger(w io.Writer, txs []Transaction) error {
	for _, t := range txs {
		fmt.Fprintf(w, "Date: %s\n", t.Date)
		fmt.Fprintf(w, "Description: %s\n", t.Description)
		fmt.Fprintf(w, "Category: %s\n", t.Category)
		fmt.Fprintf(w, "Amount: %s\n", M(t.Amount, "").String())
		fmt.Fprintf(w, "Account: %s\n", accountLabel(t))
		cleared := "no"
		if t.Cleared {
			cleared = "yes"
		}
		fmt.Fprintf(w, "Cleared: %s\n", cleared)
		if _, err := fmt.Fprintln(w, "---"); err != nil {
			return err
		}
	}
	return nil
}
