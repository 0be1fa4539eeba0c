package financial

import "strings"

// transferCategories are the categories that move money between two records
// rather than in or out of the books. A transaction in one of these
// categories must name its counterpart through LinkedID, unless the caller
// explicitly waives the rule (e.g. the other leg lives outside the tracker).
var transferCategories = map[string]bool{
	"transfer":     true,
	"debt payment": true,
	"payment":      true,
}

// ValidateOptions tunes the custom validation rules.
type ValidateOptions struct {
	// WaiveLinkedTransfer accepts a transfer-like transaction without a
	// linked counterpart.
	WaiveLinkedTransfer bool
}

// ValidateTransaction checks a transaction against the schema rules and the
// custom rules. On failure it returns a *ValidationError carrying one
// message per offending field; the transaction has not been persisted.
func ValidateTransaction(t Transaction, opts ValidateOptions) error {
	var ve ValidationError

	if t.Date.IsZero() {
		ve.field("date", "date is required")
	}
	if t.Amount.IsZero() {
		ve.field("amount", "amount must be non-zero")
	}
	if strings.TrimSpace(t.Category) == "" {
		ve.field("category", "category is required")
	}

	// Integrity rule: exactly one account reference.
	switch {
	case t.CashAccountID == "" && t.DebtAccountID == "":
		ve.field("account", "transaction must reference a cash or a debt account")
	case t.CashAccountID != "" && t.DebtAccountID != "":
		ve.field("account", "transaction cannot reference both a cash and a debt account")
	}

	if transferCategories[strings.ToLower(t.Category)] && t.LinkedID == "" && !opts.WaiveLinkedTransfer {
		ve.field("linkedId", "transfer-like category requires a linked counterpart")
	}

	if ve.zero() {
		return nil
	}
	return &ve
}
