package financial

import "testing"

func TestMoneyString(t *testing.T) {
	tests := []struct {
		value    string
		currency string
		want     string
	}{
		{"-42.50", "", "-$42.50"},
		{"1234.00", "USD", "$1,234.00"},
		{"0", "", "$0.00"},
	}
	for _, tc := range tests {
		if got := M(dec(tc.value), tc.currency).String(); got != tc.want {
			t.Errorf("M(%s, %q).String() = %q, want %q", tc.value, tc.currency, got, tc.want)
		}
	}
}

func TestMoneySignedString(t *testing.T) {
	if got := M(dec("10.00"), "").SignedString(); got != "+$10.00" {
		t.Errorf("SignedString = %q", got)
	}
	if got := M(dec("0"), "").SignedString(); got != "-" {
		t.Errorf("zero SignedString = %q", got)
	}
}

func TestDerivedCashBalance(t *testing.T) {
	txs := []Transaction{
		cashTx("t1", 3, "-30.00", "groceries"),
		cashTx("t2", 5, "100.00", "salary"),
		debtTx("t3", 5, "-99.00", "dining"), // other account, ignored
	}
	if got := DerivedCashBalance("checking", txs); !got.Equal(dec("70.00")) {
		t.Errorf("DerivedCashBalance = %s, want 70.00", got)
	}
	if got := DerivedCashBalance("nope", txs); !got.IsZero() {
		t.Errorf("unknown account balance = %s, want 0", got)
	}
}
