package financial

import (
	"fmt"
	"strings"

	"github.com/ryokushen/financial/date"
	"github.com/shopspring/decimal"
)

// AccountType identifies which kind of account a transaction or a balance
// adjustment refers to.
type AccountType string

const (
	// AccountCash is an account whose balance is derived from the
	// transaction set.
	AccountCash AccountType = "cash"
	// AccountDebt is an account whose balance is authoritative and stored,
	// mutated explicitly through the Ledger.
	AccountDebt AccountType = "debt"
)

// Transaction is a single financial movement. A valid transaction references
// exactly one account, either a cash account or a debt account.
type Transaction struct {
	ID            string          `json:"id"`
	Date          date.Date       `json:"date"`
	Amount        decimal.Decimal `json:"amount"` // signed, negative = outflow
	Category      string          `json:"category"`
	Description   string          `json:"description"`
	Cleared       bool            `json:"cleared,omitempty"`
	CashAccountID string          `json:"cashAccountId,omitempty"`
	DebtAccountID string          `json:"debtAccountId,omitempty"`
	LinkedID      string          `json:"linkedId,omitempty"` // counterpart of a transfer pair
	Notes         string          `json:"notes,omitempty"`
}

// AccountRef returns the account the transaction references. ok is false when
// the transaction references no account at all, which violates the integrity
// rules and is only ever seen on legacy records awaiting repair.
func (t Transaction) AccountRef() (typ AccountType, id string, ok bool) {
	switch {
	case t.CashAccountID != "":
		return AccountCash, t.CashAccountID, true
	case t.DebtAccountID != "":
		return AccountDebt, t.DebtAccountID, true
	}
	return "", "", false
}

// Equal reports whether two transactions carry the same content.
func (t Transaction) Equal(o Transaction) bool {
	return t.ID == o.ID &&
		t.Date == o.Date &&
		t.Amount.Equal(o.Amount) &&
		t.Category == o.Category &&
		t.Description == o.Description &&
		t.Cleared == o.Cleared &&
		t.CashAccountID == o.CashAccountID &&
		t.DebtAccountID == o.DebtAccountID &&
		t.LinkedID == o.LinkedID &&
		t.Notes == o.Notes
}

// DuplicateKey returns the key used for duplicate detection on import:
// same day, same amount at two decimals, same case-folded description.
func (t Transaction) DuplicateKey() string {
	return fmt.Sprintf("%s|%s|%s", t.Date, t.Amount.StringFixed(2), strings.ToLower(strings.TrimSpace(t.Description)))
}

// TransactionPatch describes an in-place update of a transaction. Nil fields
// are left untouched.
type TransactionPatch struct {
	Date          *date.Date
	Amount        *decimal.Decimal
	Category      *string
	Description   *string
	Cleared       *bool
	CashAccountID *string
	DebtAccountID *string
	LinkedID      *string
	Notes         *string
}

// Apply returns a copy of t with the non-nil fields of the patch applied.
func (p TransactionPatch) Apply(t Transaction) Transaction {
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Cleared != nil {
		t.Cleared = *p.Cleared
	}
	if p.CashAccountID != nil {
		t.CashAccountID = *p.CashAccountID
	}
	if p.DebtAccountID != nil {
		t.DebtAccountID = *p.DebtAccountID
	}
	if p.LinkedID != nil {
		t.LinkedID = *p.LinkedID
	}
	if p.Notes != nil {
		t.Notes = *p.Notes
	}
	return t
}
