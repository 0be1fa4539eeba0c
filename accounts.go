package financial

import (
	"github.com/shopspring/decimal"
)

// CashAccount is a checking or savings style account. Its Balance field is a
// cached convenience: the authoritative value is the sum of the signed
// amounts of all transactions referencing the account, see
// [DerivedCashBalance].
type CashAccount struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Type    string          `json:"type,omitempty"` // e.g. "checking", "savings"
	Active  bool            `json:"active"`
	Balance decimal.Decimal `json:"balance"`
}

// DebtAccount is a credit card or loan. Unlike a cash account its Balance is
// authoritative and stored; payments and charges are signed adjustments
// applied to it through the Ledger.
type DebtAccount struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	Balance        decimal.Decimal  `json:"balance"`
	InterestRate   decimal.Decimal  `json:"interestRate,omitempty"`
	MinimumPayment decimal.Decimal  `json:"minimumPayment,omitempty"`
	CreditLimit    *decimal.Decimal `json:"creditLimit,omitempty"`
}

// DerivedCashBalance recomputes a cash account balance from scratch as the
// sum of the signed amounts of all transactions referencing it. The cached
// CashAccount.Balance should always agree with this value.
func DerivedCashBalance(accountID string, txs []Transaction) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range txs {
		if t.CashAccountID == accountID {
			sum = sum.Add(t.Amount)
		}
	}
	return sum
}
