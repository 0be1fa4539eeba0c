package financial

import (
	"errors"
	"testing"

	"github.com/ryokushen/financial/date"
)

func TestValidateTransaction(t *testing.T) {
	valid := cashTx("t1", 5, "-30.00", "groceries")

	tests := []struct {
		name      string
		mutate    func(*Transaction)
		opts      ValidateOptions
		wantField string // empty means valid
	}{
		{name: "valid", mutate: func(*Transaction) {}},
		{name: "zero date", mutate: func(t *Transaction) { t.Date = date.Date{} }, wantField: "date"},
		{name: "zero amount", mutate: func(t *Transaction) { t.Amount = dec("0") }, wantField: "amount"},
		{name: "blank category", mutate: func(t *Transaction) { t.Category = "  " }, wantField: "category"},
		{name: "no account", mutate: func(t *Transaction) { t.CashAccountID = "" }, wantField: "account"},
		{name: "both accounts", mutate: func(t *Transaction) { t.DebtAccountID = "visa" }, wantField: "account"},
		{name: "transfer without link", mutate: func(t *Transaction) { t.Category = "transfer" }, wantField: "linkedId"},
		{name: "transfer with link", mutate: func(t *Transaction) { t.Category = "Transfer"; t.LinkedID = "t2" }},
		{name: "transfer waived", mutate: func(t *Transaction) { t.Category = "debt payment" },
			opts: ValidateOptions{WaiveLinkedTransfer: true}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tx := valid
			tc.mutate(&tx)
			err := ValidateTransaction(tx, tc.opts)
			if tc.wantField == "" {
				if err != nil {
					t.Fatalf("ValidateTransaction() = %v, want nil", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("ValidateTransaction() = %v, want *ValidationError", err)
			}
			if _, ok := ve.Fields[tc.wantField]; !ok {
				t.Errorf("Fields = %v, want a violation on %q", ve.Fields, tc.wantField)
			}
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := ValidateTransaction(Transaction{}, ValidateOptions{})
	msg := err.Error()
	if msg == "" || msg == "validation failed" {
		t.Errorf("message should list the violations, got %q", msg)
	}
	if !IsValidation(err) {
		t.Error("IsValidation should match")
	}
}

func TestDuplicateKey(t *testing.T) {
	a := cashTx("t1", 5, "-42.50", "groceries")
	a.Description = "Weekly Shop "
	b := cashTx("t2", 5, "-42.5", "dining") // category and id play no part
	b.Description = "weekly shop"

	if a.DuplicateKey() != b.DuplicateKey() {
		t.Errorf("keys differ: %q vs %q", a.DuplicateKey(), b.DuplicateKey())
	}

	c := b
	c.Amount = dec("-42.51")
	if a.DuplicateKey() == c.DuplicateKey() {
		t.Error("different amounts must not collide")
	}
}
